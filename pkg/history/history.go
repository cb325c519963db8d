// Package history records finished stage runs in a local SQLite database.
// The pipeline reads nothing back at decision time; history exists for
// operators asking "what did the runs actually do last night".
package history

import (
	"context"
	"database/sql"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	_ "modernc.org/sqlite"

	armyerrors "github.com/khenlevy/ai-army/pkg/errors"
)

// DefaultFile is the database file name under the workspace state directory.
const DefaultFile = "history.db"

// Record is one finished stage run.
type Record struct {
	RunID      string
	Stage      string
	Category   string
	StartedAt  time.Time
	FinishedAt time.Time
	Applied    int
	Skipped    int
	Failed     int
	Summary    string
	Err        string
}

// Store persists run records.
type Store struct {
	db     *sql.DB
	logger *slog.Logger
}

// Option is a functional option for configuring a Store.
type Option func(*Store)

// WithLogger sets a custom logger.
func WithLogger(logger *slog.Logger) Option {
	return func(s *Store) {
		s.logger = logger
	}
}

const schema = `
CREATE TABLE IF NOT EXISTS runs (
	run_id      TEXT PRIMARY KEY,
	stage       TEXT NOT NULL,
	category    TEXT NOT NULL DEFAULT '',
	started_at  TIMESTAMP NOT NULL,
	finished_at TIMESTAMP NOT NULL,
	applied     INTEGER NOT NULL DEFAULT 0,
	skipped     INTEGER NOT NULL DEFAULT 0,
	failed      INTEGER NOT NULL DEFAULT 0,
	summary     TEXT NOT NULL DEFAULT '',
	error       TEXT NOT NULL DEFAULT ''
);
CREATE INDEX IF NOT EXISTS idx_runs_started_at ON runs(started_at DESC);
CREATE INDEX IF NOT EXISTS idx_runs_stage ON runs(stage);
`

// Open opens (creating if needed) the history database at path.
func Open(path string, opts ...Option) (*Store, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o700); err != nil {
		return nil, armyerrors.NewStoreUnavailable("open", path, "cannot create history directory", err)
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, armyerrors.NewStoreUnavailable("open", path, "cannot open history database", err)
	}
	// modernc sqlite serializes writes itself; a single connection avoids
	// SQLITE_BUSY under concurrent stage runs.
	db.SetMaxOpenConns(1)

	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, armyerrors.NewStoreUnavailable("open", path, "cannot initialize schema", err)
	}

	s := &Store{
		db:     db,
		logger: slog.Default(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s, nil
}

// Record inserts one finished run.
func (s *Store) Record(ctx context.Context, rec Record) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO runs (run_id, stage, category, started_at, finished_at, applied, skipped, failed, summary, error)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		rec.RunID, rec.Stage, rec.Category,
		rec.StartedAt.UTC(), rec.FinishedAt.UTC(),
		rec.Applied, rec.Skipped, rec.Failed,
		rec.Summary, rec.Err,
	)
	if err != nil {
		return armyerrors.NewStoreUnavailable("record", "", "cannot insert run record", err)
	}

	s.logger.Debug("run recorded",
		"run_id", rec.RunID, "stage", rec.Stage,
		"applied", rec.Applied, "skipped", rec.Skipped, "failed", rec.Failed)
	return nil
}

// Recent returns the most recent runs, newest first. A non-empty stage
// filters to that stage.
func (s *Store) Recent(ctx context.Context, stage string, limit int) ([]Record, error) {
	if limit <= 0 {
		limit = 20
	}

	query := `
		SELECT run_id, stage, category, started_at, finished_at, applied, skipped, failed, summary, error
		FROM runs`
	args := []any{}
	if stage != "" {
		query += ` WHERE stage = ?`
		args = append(args, stage)
	}
	query += ` ORDER BY started_at DESC LIMIT ?`
	args = append(args, limit)

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, armyerrors.NewStoreUnavailable("recent", "", "cannot query run records", err)
	}
	defer rows.Close()

	var out []Record
	for rows.Next() {
		var rec Record
		if err := rows.Scan(
			&rec.RunID, &rec.Stage, &rec.Category,
			&rec.StartedAt, &rec.FinishedAt,
			&rec.Applied, &rec.Skipped, &rec.Failed,
			&rec.Summary, &rec.Err,
		); err != nil {
			return nil, armyerrors.NewStoreUnavailable("recent", "", "cannot scan run record", err)
		}
		out = append(out, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, armyerrors.NewStoreUnavailable("recent", "", "row iteration failed", err)
	}
	return out, nil
}

// Close closes the database.
func (s *Store) Close() error {
	return s.db.Close()
}
