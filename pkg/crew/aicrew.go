package crew

import (
	"context"
	"encoding/json"
	"log/slog"
	"strings"

	"github.com/khenlevy/ai-army/pkg/ai"
	armyerrors "github.com/khenlevy/ai-army/pkg/errors"
	"github.com/khenlevy/ai-army/pkg/lifecycle"
)

// AICrew runs a pipeline stage on an AI provider: one prompt per run, one
// JSON proposal back.
type AICrew struct {
	stage    lifecycle.Stage
	category string
	provider ai.Provider
	logger   *slog.Logger
}

// Compile-time check that AICrew implements Crew.
var _ Crew = (*AICrew)(nil)

// AICrewOption is a functional option for configuring an AICrew.
type AICrewOption func(*AICrew)

// WithCrewLogger sets a custom logger.
func WithCrewLogger(logger *slog.Logger) AICrewOption {
	return func(c *AICrew) {
		c.logger = logger
	}
}

// WithCategory fixes the work-type category for a dev crew.
func WithCategory(category string) AICrewOption {
	return func(c *AICrew) {
		c.category = category
	}
}

// NewAICrew creates a crew for the given stage.
func NewAICrew(stage lifecycle.Stage, provider ai.Provider, opts ...AICrewOption) *AICrew {
	c := &AICrew{
		stage:    stage,
		provider: provider,
		logger:   slog.Default(),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Stage identifies which pipeline stage this crew serves.
func (c *AICrew) Stage() lifecycle.Stage {
	return c.stage
}

// Kickoff sends the run snapshot to the provider and parses the proposal.
// Any provider or parse failure comes back as a CollaboratorError so the
// runner can record the failure without aborting the run.
func (c *AICrew) Kickoff(ctx context.Context, input Input) (*Proposal, error) {
	if !c.provider.IsAvailable() {
		return nil, armyerrors.NewCollaboratorError(string(c.stage), "AI provider not available")
	}

	category := input.Category
	if category == "" {
		category = c.category
	}

	userPrompt, err := buildUserPrompt(input)
	if err != nil {
		return nil, armyerrors.NewCollaboratorErrorWithCause(string(c.stage), 0, "failed to build prompt", err)
	}

	messages := []ai.Message{
		{Role: "system", Content: systemPrompt(c.stage, category)},
		{Role: "user", Content: userPrompt},
	}

	c.logger.Debug("crew kickoff",
		"stage", c.stage, "category", category,
		"items", len(input.Items), "pull_requests", len(input.PullRequests))

	// Transient provider errors (429, 5xx) retry in place; everything else
	// waits for the next scheduled tick.
	resp, err := armyerrors.RetryWithResult(ctx, armyerrors.DefaultRetryConfig(), func() (*ai.Response, error) {
		return c.provider.Chat(ctx, messages)
	})
	if err != nil {
		return nil, armyerrors.NewCollaboratorErrorWithCause(string(c.stage), 0, "provider call failed", err)
	}

	proposal, err := parseProposal(resp.Content)
	if err != nil {
		return nil, armyerrors.NewCollaboratorErrorWithCause(string(c.stage), 0, "unparseable proposal", err)
	}

	c.logger.Debug("crew proposal",
		"stage", c.stage,
		"actions", len(proposal.Actions),
		"new_items", len(proposal.NewItems),
		"comments", len(proposal.Comments),
		"merges", len(proposal.Merges))

	return proposal, nil
}

// parseProposal extracts the JSON object from the model reply. Models wrap
// JSON in code fences or prose often enough that we cut from the first '{'
// to the last '}' before unmarshalling.
func parseProposal(content string) (*Proposal, error) {
	raw := strings.TrimSpace(content)

	start := strings.Index(raw, "{")
	end := strings.LastIndex(raw, "}")
	if start < 0 || end < start {
		return nil, armyerrors.New("no JSON object in reply")
	}

	var p Proposal
	if err := json.Unmarshal([]byte(raw[start:end+1]), &p); err != nil {
		return nil, err
	}
	return &p, nil
}
