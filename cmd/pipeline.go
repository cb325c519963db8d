package cmd

import (
	"context"
	"os"

	"golang.org/x/oauth2"

	"github.com/khenlevy/ai-army/pkg/ai"
	"github.com/khenlevy/ai-army/pkg/config"
	"github.com/khenlevy/ai-army/pkg/contextstore"
	"github.com/khenlevy/ai-army/pkg/crew"
	armyerrors "github.com/khenlevy/ai-army/pkg/errors"
	"github.com/khenlevy/ai-army/pkg/history"
	"github.com/khenlevy/ai-army/pkg/lifecycle"
	"github.com/khenlevy/ai-army/pkg/rategate"
	"github.com/khenlevy/ai-army/pkg/runner"
	"github.com/khenlevy/ai-army/pkg/tracker"
)

// pipeline bundles the shared infrastructure every stage runner uses.
type pipeline struct {
	cfg     *config.Config
	tracker tracker.Client
	gate    *rategate.Gate
	store   *contextstore.Store
	ai      ai.Provider
	machine *lifecycle.Machine
	history *history.Store
}

// buildPipeline wires tracker, rate gate, context store, AI provider and
// history from the loaded config.
func buildPipeline(ctx context.Context) (*pipeline, error) {
	cfg := appConfig
	if cfg == nil {
		return nil, armyerrors.NewConfigError("config", "configuration not initialized")
	}
	if cfg.GitHub.Repo == "" {
		return nil, armyerrors.NewConfigError("github.repo",
			"target repository not set (github.repo in config or AIARMY_GITHUB_REPO)")
	}

	token, err := resolveToken(ctx, cfg)
	if err != nil {
		return nil, err
	}

	tc, err := tracker.NewAPIClient(token, cfg.GitHub.Repo, tracker.WithVerbose(verbose))
	if err != nil {
		return nil, err
	}

	gate := rategate.New(
		rategate.CheckerFunc(func(ctx context.Context) (rategate.Snapshot, error) {
			snap, err := tc.RateLimit(ctx)
			if err != nil {
				return rategate.Snapshot{}, err
			}
			return rategate.Snapshot{Remaining: snap.Remaining, Limit: snap.Limit, Reset: snap.Reset}, nil
		}),
		rategate.WithMinRemaining(cfg.Pipeline.RateThreshold),
	)

	provider, err := ai.NewProvider(ai.Settings{
		Provider: cfg.AI.Provider,
		Model:    cfg.AI.Model,
		APIKey:   cfg.AI.APIKey,
		Endpoint: cfg.AI.Endpoint,
	}, verbose)
	if err != nil {
		return nil, err
	}

	hist, err := history.Open(cfg.History.DatabasePath)
	if err != nil {
		return nil, err
	}

	return &pipeline{
		cfg:     cfg,
		tracker: tc,
		gate:    gate,
		store:   contextstore.New(cfg.Workspace.Root),
		ai:      provider,
		machine: lifecycle.NewMachine(lifecycle.WithOpenItemCap(cfg.Pipeline.OpenItemCap)),
		history: hist,
	}, nil
}

// Close releases the pipeline's resources.
func (p *pipeline) Close() error {
	return p.history.Close()
}

// newRunner builds the runner for one stage. Category applies to dev only.
func (p *pipeline) newRunner(stage lifecycle.Stage, category string) *runner.JobRunner {
	crewOpts := []crew.AICrewOption{}
	runnerOpts := []runner.Option{
		runner.WithMachine(p.machine),
		runner.WithHistory(p.history),
	}
	if category != "" {
		crewOpts = append(crewOpts, crew.WithCategory(category))
		runnerOpts = append(runnerOpts, runner.WithCategory(category))
	}

	cw := crew.NewAICrew(stage, p.ai, crewOpts...)
	return runner.New(stage, p.tracker, cw, p.gate, p.store, runnerOpts...)
}

// resolveToken picks the GitHub token: environment first, then the config
// file, then a cached OAuth token, and finally the device flow for the
// oauth auth method.
func resolveToken(ctx context.Context, cfg *config.Config) (string, error) {
	if token := cfg.ResolveGitHubToken(); token != "" {
		return token, nil
	}

	if cfg.GitHub.AuthMethod != "oauth" {
		return "", armyerrors.NewConfigError("github.token",
			"GitHub token not set (set AIARMY_GITHUB_TOKEN, github.token in config, or auth_method = \"oauth\")")
	}

	cache := tracker.NewTokenCache()
	if cached, err := cache.Get(); err == nil && cached != nil && cached.AccessToken != "" {
		return cached.AccessToken, nil
	}

	auth, err := tracker.DeviceAuth(ctx, tracker.OAuthConfig{ClientID: cfg.GitHub.ClientID}, os.Stdout)
	if err != nil {
		return "", err
	}

	if err := cache.Set(&oauth2.Token{AccessToken: auth.Token, TokenType: auth.Type}); err != nil {
		// A failed cache write costs a re-auth next run, nothing more.
		return auth.Token, nil
	}
	return auth.Token, nil
}
