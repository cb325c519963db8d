// Package scheduler fires stage jobs on fixed minute-of-hour offsets.
//
// The offsets stagger the stages so each one runs over the previous
// stage's settled output: product on the hour, team lead at :10, the dev
// crews at :20/:30/:40, QA at :50. A job still running when its next tick
// arrives is skipped, not queued; ticks are a steady heartbeat, and a slow
// run absorbs its own next slot.
package scheduler

import (
	"context"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/khenlevy/ai-army/pkg/lifecycle"
)

// Job is one schedulable unit of work. Entries name their jobs by stage and
// category, so the job itself only runs.
type Job interface {
	Run(ctx context.Context) error
}

// JobFunc adapts a function to the Job interface.
type JobFunc func(ctx context.Context) error

// Run implements Job.
func (f JobFunc) Run(ctx context.Context) error { return f(ctx) }

// Entry binds a job to its slot in the hour.
type Entry struct {
	Stage     lifecycle.Stage
	Category  string
	Minute    int  // minute of the hour this entry fires
	AtStartup bool // also fire once when the scheduler starts
	Enabled   bool
	Job       Job
}

// DefaultOffsets returns the standard stagger, without jobs bound. The
// caller attaches a Job to each entry before adding it.
func DefaultOffsets() []Entry {
	return []Entry{
		{Stage: lifecycle.StageProduct, Minute: 0, AtStartup: true, Enabled: true},
		{Stage: lifecycle.StageTeamLead, Minute: 10, Enabled: true},
		{Stage: lifecycle.StageDev, Category: lifecycle.CategoryFrontend, Minute: 20, Enabled: true},
		{Stage: lifecycle.StageDev, Category: lifecycle.CategoryBackend, Minute: 30, Enabled: true},
		{Stage: lifecycle.StageDev, Category: lifecycle.CategoryFullstack, Minute: 40, Enabled: true},
		{Stage: lifecycle.StageQA, Minute: 50, Enabled: true},
	}
}

// entry wraps an Entry with its overlap guard.
type entry struct {
	Entry
	running atomic.Bool
}

// Scheduler runs registered entries on their minute offsets.
type Scheduler struct {
	entries []*entry
	logger  *slog.Logger
	now     func() time.Time

	wg sync.WaitGroup
}

// Option is a functional option for configuring a Scheduler.
type Option func(*Scheduler)

// WithLogger sets a custom logger.
func WithLogger(logger *slog.Logger) Option {
	return func(s *Scheduler) {
		s.logger = logger
	}
}

// New creates an empty scheduler.
func New(opts ...Option) *Scheduler {
	s := &Scheduler{
		logger: slog.Default(),
		now:    time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Add registers an entry.
func (s *Scheduler) Add(e Entry) {
	s.entries = append(s.entries, &entry{Entry: e})
}

// Start runs the scheduler until ctx is cancelled. Startup entries fire
// immediately so a fresh deployment does not idle until the top of the
// hour.
func (s *Scheduler) Start(ctx context.Context) error {
	s.logger.Info("scheduler started", "entries", len(s.entries))

	for _, e := range s.entries {
		if e.Enabled && e.AtStartup {
			s.launch(ctx, e)
		}
	}

	for {
		wait := s.untilNextMinute()
		select {
		case <-ctx.Done():
			s.logger.Info("scheduler stopping, waiting for running jobs")
			s.wg.Wait()
			return ctx.Err()
		case <-time.After(wait):
			s.fire(ctx, s.now().Minute())
		}
	}
}

// fire launches every enabled entry due at the given minute.
func (s *Scheduler) fire(ctx context.Context, minute int) {
	for _, e := range s.entries {
		if !e.Enabled || e.Minute != minute {
			continue
		}
		s.launch(ctx, e)
	}
}

// launch starts one job unless its previous run is still going. The guard
// is claimed synchronously so a tick that overlaps a running job is
// decided before anything is spawned.
func (s *Scheduler) launch(ctx context.Context, e *entry) {
	name := e.name()
	if !e.running.CompareAndSwap(false, true) {
		s.logger.Warn("job still running, tick skipped", "job", name)
		return
	}

	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		defer e.running.Store(false)

		started := s.now()
		s.logger.Info("job started", "job", name)

		if err := e.Job.Run(ctx); err != nil {
			s.logger.Error("job failed", "job", name, "error", err,
				"duration", time.Since(started).Round(time.Millisecond))
			return
		}
		s.logger.Info("job finished", "job", name,
			"duration", time.Since(started).Round(time.Millisecond))
	}()
}

// untilNextMinute returns the wait until the next minute boundary.
func (s *Scheduler) untilNextMinute() time.Duration {
	now := s.now()
	next := now.Truncate(time.Minute).Add(time.Minute)
	return next.Sub(now)
}

func (e *entry) name() string {
	if e.Category != "" {
		return string(e.Stage) + "/" + e.Category
	}
	return string(e.Stage)
}
