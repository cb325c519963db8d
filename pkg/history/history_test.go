package history

import (
	"context"
	"path/filepath"
	"testing"
	"time"
)

func openTestStore(t *testing.T) *Store {
	t.Helper()
	s, err := Open(filepath.Join(t.TempDir(), DefaultFile))
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

func TestStore_RecordAndRecent(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	base := time.Now().Add(-time.Hour)
	runs := []Record{
		{RunID: "run-1", Stage: "product", StartedAt: base, FinishedAt: base.Add(time.Minute), Applied: 2, Summary: "prioritized two items"},
		{RunID: "run-2", Stage: "dev", Category: "backend", StartedAt: base.Add(10 * time.Minute), FinishedAt: base.Add(11 * time.Minute), Applied: 1, Skipped: 1},
		{RunID: "run-3", Stage: "dev", Category: "frontend", StartedAt: base.Add(20 * time.Minute), FinishedAt: base.Add(21 * time.Minute), Failed: 1, Err: "claim conflict"},
	}
	for _, rec := range runs {
		if err := s.Record(ctx, rec); err != nil {
			t.Fatalf("Record(%s): %v", rec.RunID, err)
		}
	}

	got, err := s.Recent(ctx, "", 10)
	if err != nil {
		t.Fatalf("Recent: %v", err)
	}
	if len(got) != 3 {
		t.Fatalf("len = %d, want 3", len(got))
	}
	// Newest first.
	if got[0].RunID != "run-3" || got[2].RunID != "run-1" {
		t.Errorf("order = %s, %s, %s", got[0].RunID, got[1].RunID, got[2].RunID)
	}
	if got[0].Err != "claim conflict" || got[0].Failed != 1 {
		t.Errorf("run-3 = %+v", got[0])
	}
}

func TestStore_RecentFilterByStage(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	now := time.Now()
	for i, stage := range []string{"product", "dev", "dev", "qa"} {
		rec := Record{
			RunID:      "run-" + string(rune('a'+i)),
			Stage:      stage,
			StartedAt:  now.Add(time.Duration(i) * time.Minute),
			FinishedAt: now.Add(time.Duration(i)*time.Minute + 30*time.Second),
		}
		if err := s.Record(ctx, rec); err != nil {
			t.Fatalf("Record: %v", err)
		}
	}

	got, err := s.Recent(ctx, "dev", 10)
	if err != nil {
		t.Fatalf("Recent: %v", err)
	}
	if len(got) != 2 {
		t.Fatalf("len = %d, want 2", len(got))
	}
	for _, rec := range got {
		if rec.Stage != "dev" {
			t.Errorf("unexpected stage %q", rec.Stage)
		}
	}
}

func TestStore_RecentLimit(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	now := time.Now()
	for i := 0; i < 5; i++ {
		rec := Record{
			RunID:      "run-" + string(rune('0'+i)),
			Stage:      "product",
			StartedAt:  now.Add(time.Duration(i) * time.Minute),
			FinishedAt: now.Add(time.Duration(i) * time.Minute),
		}
		if err := s.Record(ctx, rec); err != nil {
			t.Fatalf("Record: %v", err)
		}
	}

	got, err := s.Recent(ctx, "", 2)
	if err != nil {
		t.Fatalf("Recent: %v", err)
	}
	if len(got) != 2 {
		t.Errorf("len = %d, want 2", len(got))
	}
}

func TestStore_PersistsAcrossOpens(t *testing.T) {
	path := filepath.Join(t.TempDir(), DefaultFile)
	ctx := context.Background()

	first, err := Open(path)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	now := time.Now()
	if err := first.Record(ctx, Record{RunID: "run-1", Stage: "qa", StartedAt: now, FinishedAt: now}); err != nil {
		t.Fatalf("Record: %v", err)
	}
	if err := first.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}

	second, err := Open(path)
	if err != nil {
		t.Fatalf("reopen: %v", err)
	}
	defer second.Close()

	got, err := second.Recent(ctx, "", 10)
	if err != nil {
		t.Fatalf("Recent: %v", err)
	}
	if len(got) != 1 || got[0].RunID != "run-1" {
		t.Errorf("records after reopen = %+v", got)
	}
}
