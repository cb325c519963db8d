// Package contextstore persists the cross-stage context handoff.
//
// Each pipeline stage leaves a short summary of its last successful run;
// the next stage reads every summary except its own. State lives in a
// single JSON file under the workspace root and survives process restarts.
// Writes go through a temp file and rename so a crash mid-write never
// truncates the previous handoff.
package contextstore

import (
	"encoding/json"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"

	armyerrors "github.com/khenlevy/ai-army/pkg/errors"
)

const (
	// DefaultDir is the directory under the workspace root holding state.
	DefaultDir = ".ai-army"
	// DefaultFile is the context file name.
	DefaultFile = "context.json"
)

// handoffOrder fixes the order stages appear in the aggregated summary.
var handoffOrder = []string{"product", "team_lead", "dev", "qa"}

// Entry is one stage's persisted handoff.
type Entry struct {
	Summary   string    `json:"summary"`
	UpdatedAt time.Time `json:"updated_at"`
}

// Store is a durable stage -> summary map. Safe for concurrent use within
// a single process; cross-process races are out of scope for the intended
// single-scheduler deployment.
type Store struct {
	path   string
	logger *slog.Logger

	mu sync.Mutex
}

// Option is a functional option for configuring a Store.
type Option func(*Store)

// WithLogger sets a custom logger.
func WithLogger(logger *slog.Logger) Option {
	return func(s *Store) {
		s.logger = logger
	}
}

// New creates a context store rooted at workspaceRoot. An empty root means
// the current working directory.
func New(workspaceRoot string, opts ...Option) *Store {
	if workspaceRoot == "" {
		workspaceRoot = "."
	}
	s := &Store{
		path:   filepath.Join(workspaceRoot, DefaultDir, DefaultFile),
		logger: slog.Default(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Path returns the backing file path.
func (s *Store) Path() string {
	return s.path
}

// Get returns the latest entries for every stage other than excluding, so a
// stage never re-reads its own prior output as if it were new input.
// A missing file is an empty store, not an error.
func (s *Store) Get(excluding string) (map[string]Entry, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	data, err := s.load()
	if err != nil {
		return nil, err
	}

	out := make(map[string]Entry, len(data))
	for stage, entry := range data {
		if stage == excluding {
			continue
		}
		out[stage] = entry
	}
	return out, nil
}

// Put overwrites the entry for stage. The previous entry is replaced
// entirely; no history is retained. Returns a StoreUnavailableError when
// the backing medium cannot be written.
func (s *Store) Put(stage, summary string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	data, err := s.load()
	if err != nil {
		return err
	}
	data[stage] = Entry{Summary: summary, UpdatedAt: time.Now().UTC()}

	if err := s.save(data); err != nil {
		return err
	}
	s.logger.Debug("context stored", "stage", stage, "summary_len", len(summary), "path", s.path)
	return nil
}

// Summary formats the handoff block passed to a stage's crew: every other
// stage's latest summary in pipeline order. Returns "" when nothing has
// run yet.
func (s *Store) Summary(excluding string) (string, error) {
	entries, err := s.Get(excluding)
	if err != nil {
		return "", err
	}

	var parts []string
	for _, stage := range handoffOrder {
		entry, ok := entries[stage]
		if !ok {
			continue
		}
		text := strings.TrimSpace(entry.Summary)
		if text == "" {
			continue
		}
		parts = append(parts, "["+stage+"]\n"+text)
	}
	// Stages outside the known order still surface, appended alphabetically.
	var extra []string
	for stage := range entries {
		if !knownStage(stage) {
			extra = append(extra, stage)
		}
	}
	sort.Strings(extra)
	for _, stage := range extra {
		text := strings.TrimSpace(entries[stage].Summary)
		if text != "" {
			parts = append(parts, "["+stage+"]\n"+text)
		}
	}

	return strings.Join(parts, "\n\n---\n\n"), nil
}

// load reads the context file. Callers hold s.mu.
func (s *Store) load() (map[string]Entry, error) {
	raw, err := os.ReadFile(s.path)
	if err != nil {
		if os.IsNotExist(err) {
			return map[string]Entry{}, nil
		}
		return nil, armyerrors.NewStoreUnavailable("load", s.path, "cannot read context file", err)
	}

	var data map[string]Entry
	if err := json.Unmarshal(raw, &data); err != nil {
		return nil, armyerrors.NewStoreUnavailable("load", s.path, "cannot parse context file", err)
	}
	if data == nil {
		data = map[string]Entry{}
	}
	return data, nil
}

// save writes the full map atomically: marshal, write to a temp file in the
// same directory, fsync, then rename over the original. Callers hold s.mu.
func (s *Store) save(data map[string]Entry) error {
	dir := filepath.Dir(s.path)
	if err := os.MkdirAll(dir, 0o700); err != nil {
		return armyerrors.NewStoreUnavailable("put", s.path, "cannot create workspace directory", err)
	}

	raw, err := json.MarshalIndent(data, "", "  ")
	if err != nil {
		return armyerrors.NewStoreUnavailable("put", s.path, "cannot serialize context", err)
	}

	tmp, err := os.CreateTemp(dir, DefaultFile+".tmp-*")
	if err != nil {
		return armyerrors.NewStoreUnavailable("put", s.path, "cannot create temp file", err)
	}
	tmpPath := tmp.Name()

	if _, err := tmp.Write(raw); err != nil {
		tmp.Close()
		os.Remove(tmpPath)
		return armyerrors.NewStoreUnavailable("put", s.path, "cannot write temp file", err)
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		os.Remove(tmpPath)
		return armyerrors.NewStoreUnavailable("put", s.path, "cannot sync temp file", err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpPath)
		return armyerrors.NewStoreUnavailable("put", s.path, "cannot close temp file", err)
	}

	if err := os.Rename(tmpPath, s.path); err != nil {
		os.Remove(tmpPath)
		return armyerrors.NewStoreUnavailable("put", s.path, "cannot replace context file", err)
	}
	return nil
}

func knownStage(stage string) bool {
	for _, k := range handoffOrder {
		if k == stage {
			return true
		}
	}
	return false
}
