// Package rategate guards stage execution behind the external service's
// remaining request budget.
//
// Every job queries the gate before starting. Capacity is owned by the
// external service, so the snapshot is fetched fresh per check and never
// cached across ticks. A failed capacity query is treated as exhausted
// (fail closed): the run is skipped and the next scheduled tick is the
// natural retry.
package rategate

import (
	"context"
	"log/slog"
	"time"

	armyerrors "github.com/khenlevy/ai-army/pkg/errors"
)

// DefaultMinRemaining is the floor below which the budget counts as
// exhausted. Kept above zero so the pipeline never burns the last requests
// another consumer of the same token may need.
const DefaultMinRemaining = 20

// Snapshot is the remaining-capacity view at check time.
type Snapshot struct {
	Remaining int
	Limit     int
	Reset     time.Time
}

// Checker performs the lightweight capacity query against the external
// service. The query itself must not consume meaningful quota.
type Checker interface {
	Check(ctx context.Context) (Snapshot, error)
}

// CheckerFunc adapts a function to the Checker interface.
type CheckerFunc func(ctx context.Context) (Snapshot, error)

// Check implements Checker.
func (f CheckerFunc) Check(ctx context.Context) (Snapshot, error) {
	return f(ctx)
}

// Gate wraps a Checker with the skip policy.
type Gate struct {
	checker      Checker
	minRemaining int
	logger       *slog.Logger
}

// Option is a functional option for configuring a Gate.
type Option func(*Gate)

// WithMinRemaining overrides the exhaustion floor.
func WithMinRemaining(n int) Option {
	return func(g *Gate) {
		if n >= 0 {
			g.minRemaining = n
		}
	}
}

// WithLogger sets a custom logger.
func WithLogger(logger *slog.Logger) Option {
	return func(g *Gate) {
		g.logger = logger
	}
}

// New creates a rate gate over the given checker.
func New(checker Checker, opts ...Option) *Gate {
	g := &Gate{
		checker:      checker,
		minRemaining: DefaultMinRemaining,
		logger:       slog.Default(),
	}
	for _, opt := range opts {
		opt(g)
	}
	return g
}

// Allow queries the external budget and returns the snapshot when the stage
// may run. When the budget is spent it returns a RateExhaustedError; when
// the query itself fails it also returns a RateExhaustedError (wrapping the
// cause) rather than guessing capacity is fine.
func (g *Gate) Allow(ctx context.Context) (Snapshot, error) {
	snap, err := g.checker.Check(ctx)
	if err != nil {
		g.logger.Warn("capacity query failed, assuming unavailable", "error", err)
		return Snapshot{}, armyerrors.NewRateExhaustedWithCause("capacity query failed", err)
	}

	if snap.Remaining <= g.minRemaining {
		return snap, armyerrors.NewRateExhausted(snap.Remaining, snap.Reset, "below minimum budget")
	}

	g.logger.Debug("capacity available",
		"remaining", snap.Remaining, "limit", snap.Limit, "reset", snap.Reset)
	return snap, nil
}
