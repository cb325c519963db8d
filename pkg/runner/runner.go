// Package runner executes one pipeline stage end to end: gate check,
// context handoff, crew kickoff, and validated application of the crew's
// proposal against the tracker.
//
// The runner is the only writer. Every proposed label movement is checked
// against the label state machine on a fresh item snapshot before any write
// goes out, and a failure on one item never aborts the rest of the run.
package runner

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/khenlevy/ai-army/pkg/contextstore"
	"github.com/khenlevy/ai-army/pkg/crew"
	armyerrors "github.com/khenlevy/ai-army/pkg/errors"
	"github.com/khenlevy/ai-army/pkg/history"
	"github.com/khenlevy/ai-army/pkg/lifecycle"
	"github.com/khenlevy/ai-army/pkg/rategate"
	"github.com/khenlevy/ai-army/pkg/tracker"
)

// Result summarizes one stage run.
type Result struct {
	RunID   string
	Stage   lifecycle.Stage
	Applied int
	Skipped int
	Failed  int
}

// JobRunner drives one stage of the pipeline.
type JobRunner struct {
	stage    lifecycle.Stage
	category string

	tracker tracker.Client
	crew    crew.Crew
	gate    *rategate.Gate
	store   *contextstore.Store
	machine *lifecycle.Machine
	history *history.Store
	logger  *slog.Logger
}

// Option is a functional option for configuring a JobRunner.
type Option func(*JobRunner)

// WithCategory narrows a dev runner to one work type.
func WithCategory(category string) Option {
	return func(r *JobRunner) {
		r.category = category
	}
}

// WithHistory enables run recording.
func WithHistory(h *history.Store) Option {
	return func(r *JobRunner) {
		r.history = h
	}
}

// WithLogger sets a custom logger.
func WithLogger(logger *slog.Logger) Option {
	return func(r *JobRunner) {
		r.logger = logger
	}
}

// WithMachine overrides the label state machine (for a custom open-item cap).
func WithMachine(m *lifecycle.Machine) Option {
	return func(r *JobRunner) {
		r.machine = m
	}
}

// New creates a runner for one stage.
func New(stage lifecycle.Stage, tc tracker.Client, cw crew.Crew, gate *rategate.Gate, store *contextstore.Store, opts ...Option) *JobRunner {
	r := &JobRunner{
		stage:   stage,
		tracker: tc,
		crew:    cw,
		gate:    gate,
		store:   store,
		machine: lifecycle.NewMachine(),
		logger:  slog.Default(),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Run executes one stage run. A spent rate budget or a failed crew is a
// clean skip, not an error; only a failure to read the tracker's item
// listing aborts the run. Item-level failures are counted in the result
// and never escalate.
func (r *JobRunner) Run(ctx context.Context) (*Result, error) {
	result := &Result{
		RunID: uuid.NewString(),
		Stage: r.stage,
	}
	started := time.Now()

	logger := r.logger.With("run_id", result.RunID, "stage", r.stage)
	if r.category != "" {
		logger = logger.With("category", r.category)
	}

	snap, err := r.gate.Allow(ctx)
	if err != nil {
		// Exhausted budget is the expected off-peak state. The next
		// scheduled tick retries; nothing was read or written.
		logger.Info("run skipped, rate budget unavailable", "error", err)
		return result, nil
	}
	logger.Debug("rate budget ok", "remaining", snap.Remaining)

	handoff, err := r.store.Summary(string(r.stage))
	if err != nil {
		// A broken context store degrades the run, it does not stop it.
		logger.Warn("context store unavailable, running without handoff", "error", err)
		handoff = ""
	}

	input, err := r.buildInput(ctx, handoff)
	if err != nil {
		r.record(ctx, result, started, "", err)
		return result, armyerrors.Wrap(err, "listing work items")
	}

	proposal, err := r.crew.Kickoff(ctx, *input)
	if err != nil {
		logger.Error("crew failed, no proposal this run", "error", err)
		r.record(ctx, result, started, "", err)
		return result, err
	}

	applied := r.apply(ctx, logger, input, proposal, result)

	// Every completed run refreshes this stage's handoff, even one that
	// applied nothing: downstream stages must not mistake last run's summary
	// for a fresh observation.
	summary := r.composeSummary(proposal.Summary, applied)
	if err := r.store.Put(string(r.stage), summary); err != nil {
		logger.Warn("failed to persist handoff summary", "error", err)
	}

	logger.Info("run finished",
		"applied", result.Applied, "skipped", result.Skipped, "failed", result.Failed,
		"duration", time.Since(started).Round(time.Millisecond))

	r.record(ctx, result, started, summary, nil)
	return result, nil
}

// buildInput lists the items this stage operates on. Listing failures are
// run-level: without a trustworthy snapshot nothing should be decided.
func (r *JobRunner) buildInput(ctx context.Context, handoff string) (*crew.Input, error) {
	input := &crew.Input{
		Context:     handoff,
		Category:    r.category,
		OpenItemCap: r.machine.OpenItemCap(),
	}

	switch r.stage {
	case lifecycle.StageProduct:
		items, err := r.tracker.ListOpenItems(ctx, "")
		if err != nil {
			return nil, err
		}
		input.Items = items
		input.OpenItems = len(items)

	case lifecycle.StageTeamLead:
		items, err := r.tracker.ListOpenItems(ctx, lifecycle.LabelReadyForBreakdown)
		if err != nil {
			return nil, err
		}
		all, err := r.tracker.ListOpenItems(ctx, "")
		if err != nil {
			return nil, err
		}
		input.Items = items
		input.OpenItems = len(all)

	case lifecycle.StageDev:
		items, err := r.tracker.ListOpenItems(ctx, r.category)
		if err != nil {
			return nil, err
		}
		input.Items = items
		input.OpenItems = len(items)

	case lifecycle.StageQA:
		items, err := r.tracker.ListOpenItems(ctx, lifecycle.LabelInReview)
		if err != nil {
			return nil, err
		}
		prs, err := r.tracker.ListOpenPullRequests(ctx)
		if err != nil {
			return nil, err
		}
		input.Items = items
		input.PullRequests = prs
		input.OpenItems = len(items)
	}

	return input, nil
}

// apply walks the proposal, validating and writing one element at a time.
// It returns human-readable descriptions of what was actually applied.
func (r *JobRunner) apply(ctx context.Context, logger *slog.Logger, input *crew.Input, proposal *crew.Proposal, result *Result) []string {
	var applied []string

	openCount := input.OpenItems
	claimed := false

	for _, action := range proposal.Actions {
		desc, err := r.applyAction(ctx, action, &claimed)
		if err != nil {
			switch {
			case armyerrors.IsIllegalTransition(err), armyerrors.IsClaimConflict(err):
				logger.Warn("proposed action rejected", "item", action.Item, "target", action.Target, "error", err)
				result.Skipped++
			default:
				logger.Error("action failed", "item", action.Item, "target", action.Target, "error", err)
				result.Failed++
			}
			continue
		}
		result.Applied++
		applied = append(applied, desc)
	}

	for _, proposed := range proposal.NewItems {
		if !r.machine.CanCreate(openCount) {
			logger.Warn("item creation skipped, open-item cap reached",
				"title", proposed.Title, "open", openCount)
			result.Skipped++
			continue
		}
		item, err := r.createItem(ctx, proposed)
		if err != nil {
			logger.Error("item creation failed", "title", proposed.Title, "error", err)
			result.Failed++
			continue
		}
		openCount++
		result.Applied++
		applied = append(applied, fmt.Sprintf("created #%d %q", item.Number, item.Title))
	}

	for _, comment := range proposal.Comments {
		if err := r.tracker.Comment(ctx, comment.Item, comment.Body); err != nil {
			logger.Error("comment failed", "item", comment.Item, "error", err)
			result.Failed++
			continue
		}
		result.Applied++
		applied = append(applied, fmt.Sprintf("commented on #%d", comment.Item))
	}

	for _, prNumber := range proposal.Merges {
		descs, err := r.applyMerge(ctx, logger, input, prNumber)
		result.Applied += len(descs)
		applied = append(applied, descs...)
		if err != nil {
			logger.Error("merge failed", "pr", prNumber, "error", err)
			result.Failed++
		}
	}

	return applied
}

// applyAction validates one label movement against a fresh snapshot and
// writes the resulting mutation. The re-fetch narrows the claim race: a
// rival claim that landed since listing shows up here as a conflict.
func (r *JobRunner) applyAction(ctx context.Context, action crew.LabelAction, claimed *bool) (string, error) {
	item, err := r.tracker.GetItem(ctx, action.Item)
	if err != nil {
		return "", err
	}

	req := lifecycle.Request{
		Stage:    r.stage,
		Category: r.category,
	}
	if action.Target == crew.TargetClaim {
		if *claimed {
			return "", armyerrors.NewClaimConflict(action.Item, string(r.stage), "one claim per run")
		}
		req.Action = lifecycle.ActionClaim
	} else {
		req.Action = lifecycle.ActionAdvance
		req.Target = action.Target
	}

	mut, err := r.machine.Decide(lifecycle.Item{
		Number: item.Number,
		Labels: item.Labels,
		Closed: item.Closed,
	}, req)
	if err != nil {
		return "", err
	}
	if mut.NoOp {
		return fmt.Sprintf("#%d already at %q", item.Number, action.Target), nil
	}

	if err := r.writeMutation(ctx, item.Number, mut); err != nil {
		return "", err
	}

	if req.Action == lifecycle.ActionClaim {
		*claimed = true
		return fmt.Sprintf("claimed #%d", item.Number), nil
	}
	return fmt.Sprintf("moved #%d to %q", item.Number, action.Target), nil
}

// writeMutation applies a decided mutation: removals first so the item
// never carries two lifecycle labels longer than one API call.
func (r *JobRunner) writeMutation(ctx context.Context, number int, mut lifecycle.Mutation) error {
	for _, label := range mut.Remove {
		if err := r.tracker.RemoveLabel(ctx, number, label); err != nil {
			return err
		}
	}
	if len(mut.Add) > 0 {
		if err := r.tracker.AddLabels(ctx, number, mut.Add); err != nil {
			return err
		}
	}
	return nil
}

// createItem builds the tracker item from a proposal: initial labels by
// stage, and the parent reference appended to the body.
func (r *JobRunner) createItem(ctx context.Context, proposed crew.NewItemProposal) (*tracker.WorkItem, error) {
	body := proposed.Body
	if proposed.Parent > 0 {
		body = strings.TrimRight(body, "\n") + "\n\n" + tracker.FormatParentRef(proposed.Parent)
	}

	var labels []string
	if r.stage == lifecycle.StageTeamLead && lifecycle.IsCategoryLabel(proposed.Category) {
		// Breakdown children start directly at their work-type stage.
		labels = []string{proposed.Category}
	} else {
		labels = []string{lifecycle.LabelBacklog}
	}

	return r.tracker.CreateItem(ctx, tracker.NewItem{
		Title:  proposed.Title,
		Body:   body,
		Labels: labels,
	})
}

// applyMerge advances the closed-out item to done, then merges. Ordering
// matters: once the merge lands the platform auto-closes the item, and
// labels on a just-closed item are not worth fighting over.
func (r *JobRunner) applyMerge(ctx context.Context, logger *slog.Logger, input *crew.Input, prNumber int) ([]string, error) {
	var body string
	found := false
	for _, pr := range input.PullRequests {
		if pr.Number == prNumber {
			body = pr.Body
			found = true
			break
		}
	}
	if !found {
		return nil, armyerrors.NewTrackerError("MergePullRequest",
			fmt.Sprintf("PR #%d not in the open review queue", prNumber))
	}

	var applied []string
	if itemNumber := tracker.ParseClosesRef(body); itemNumber > 0 {
		action := crew.LabelAction{Item: itemNumber, Target: lifecycle.LabelDone}
		desc, err := r.applyAction(ctx, action, new(bool))
		if err != nil {
			// The merge still proceeds; the item keeps its in-review
			// label for the next QA pass to reconcile.
			logger.Warn("could not advance item for merge", "item", itemNumber, "pr", prNumber, "error", err)
		} else {
			applied = append(applied, desc)
		}
	}

	if err := r.tracker.MergePullRequest(ctx, prNumber); err != nil {
		return applied, err
	}
	return append(applied, fmt.Sprintf("merged PR #%d", prNumber)), nil
}

// composeSummary prefers the crew's narrative but always appends the facts
// of what was actually applied, when there are any.
func (r *JobRunner) composeSummary(crewSummary string, applied []string) string {
	facts := strings.Join(applied, "; ")
	summary := strings.TrimSpace(crewSummary)
	switch {
	case summary == "":
		return facts
	case facts == "":
		return summary
	}
	return summary + "\n(" + facts + ")"
}

// record writes the run to history when a history store is configured.
func (r *JobRunner) record(ctx context.Context, result *Result, started time.Time, summary string, runErr error) {
	if r.history == nil {
		return
	}

	rec := history.Record{
		RunID:      result.RunID,
		Stage:      string(r.stage),
		Category:   r.category,
		StartedAt:  started,
		FinishedAt: time.Now(),
		Applied:    result.Applied,
		Skipped:    result.Skipped,
		Failed:     result.Failed,
		Summary:    summary,
	}
	if runErr != nil {
		rec.Err = runErr.Error()
	}

	if err := r.history.Record(ctx, rec); err != nil {
		r.logger.Warn("failed to record run history", "run_id", result.RunID, "error", err)
	}
}
