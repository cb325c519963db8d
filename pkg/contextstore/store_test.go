package contextstore

import (
	"os"
	"path/filepath"
	"runtime"
	"strings"
	"testing"

	armyerrors "github.com/khenlevy/ai-army/pkg/errors"
)

func TestStore_RoundTrip(t *testing.T) {
	store := New(t.TempDir())

	if err := store.Put("dev", "summary X"); err != nil {
		t.Fatalf("Put: %v", err)
	}

	entries, err := store.Get("product")
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	entry, ok := entries["dev"]
	if !ok {
		t.Fatal("expected a dev entry")
	}
	if entry.Summary != "summary X" {
		t.Errorf("Summary = %q, want %q", entry.Summary, "summary X")
	}
	if entry.UpdatedAt.IsZero() {
		t.Error("UpdatedAt should be set")
	}
}

func TestStore_PutOverwrites(t *testing.T) {
	store := New(t.TempDir())

	if err := store.Put("dev", "summary X"); err != nil {
		t.Fatalf("Put: %v", err)
	}
	if err := store.Put("dev", "summary Y"); err != nil {
		t.Fatalf("Put: %v", err)
	}

	entries, err := store.Get("product")
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if len(entries) != 1 {
		t.Fatalf("expected one entry, got %d", len(entries))
	}
	if got := entries["dev"].Summary; got != "summary Y" {
		t.Errorf("Summary = %q, want %q (old entry must not survive)", got, "summary Y")
	}
}

func TestStore_GetExcludesOwnStage(t *testing.T) {
	store := New(t.TempDir())

	for stage, summary := range map[string]string{
		"product":   "shipped backlog",
		"team_lead": "broke down #42",
		"dev":       "opened PR #7",
	} {
		if err := store.Put(stage, summary); err != nil {
			t.Fatalf("Put(%s): %v", stage, err)
		}
	}

	entries, err := store.Get("dev")
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if _, ok := entries["dev"]; ok {
		t.Error("a stage must not see its own prior output")
	}
	if len(entries) != 2 {
		t.Errorf("expected 2 entries, got %d", len(entries))
	}
}

func TestStore_Summary(t *testing.T) {
	store := New(t.TempDir())

	if err := store.Put("team_lead", "created sub-items #43 #44"); err != nil {
		t.Fatalf("Put: %v", err)
	}
	if err := store.Put("product", "prioritized two features"); err != nil {
		t.Fatalf("Put: %v", err)
	}

	summary, err := store.Summary("dev")
	if err != nil {
		t.Fatalf("Summary: %v", err)
	}
	if !strings.Contains(summary, "[product]\nprioritized two features") {
		t.Errorf("summary missing product block:\n%s", summary)
	}
	if !strings.Contains(summary, "[team_lead]\ncreated sub-items #43 #44") {
		t.Errorf("summary missing team_lead block:\n%s", summary)
	}
	// Product ran first in the pipeline, so its block comes first.
	if strings.Index(summary, "[product]") > strings.Index(summary, "[team_lead]") {
		t.Errorf("summary blocks out of pipeline order:\n%s", summary)
	}

	own, err := store.Summary("product")
	if err != nil {
		t.Fatalf("Summary: %v", err)
	}
	if strings.Contains(own, "[product]") {
		t.Errorf("summary should exclude the caller's stage:\n%s", own)
	}
}

func TestStore_EmptyStore(t *testing.T) {
	store := New(t.TempDir())

	entries, err := store.Get("product")
	if err != nil {
		t.Fatalf("Get on missing file: %v", err)
	}
	if len(entries) != 0 {
		t.Errorf("expected empty store, got %v", entries)
	}

	summary, err := store.Summary("product")
	if err != nil {
		t.Fatalf("Summary on missing file: %v", err)
	}
	if summary != "" {
		t.Errorf("expected empty summary, got %q", summary)
	}
}

func TestStore_PersistsAcrossInstances(t *testing.T) {
	root := t.TempDir()

	first := New(root)
	if err := first.Put("qa", "merged PR #9"); err != nil {
		t.Fatalf("Put: %v", err)
	}

	// A new store over the same root models a process restart.
	second := New(root)
	entries, err := second.Get("product")
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if got := entries["qa"].Summary; got != "merged PR #9" {
		t.Errorf("Summary after restart = %q", got)
	}
}

func TestStore_NoTempFileLeftBehind(t *testing.T) {
	root := t.TempDir()
	store := New(root)

	if err := store.Put("dev", "summary"); err != nil {
		t.Fatalf("Put: %v", err)
	}

	files, err := os.ReadDir(filepath.Join(root, DefaultDir))
	if err != nil {
		t.Fatalf("ReadDir: %v", err)
	}
	for _, f := range files {
		if strings.Contains(f.Name(), ".tmp-") {
			t.Errorf("temp file %s left behind after rename", f.Name())
		}
	}
	if len(files) != 1 {
		t.Errorf("expected only the context file, got %d files", len(files))
	}
}

func TestStore_UnwritableRoot(t *testing.T) {
	if runtime.GOOS == "windows" || os.Geteuid() == 0 {
		t.Skip("permission bits not enforced for this user")
	}

	root := t.TempDir()
	if err := os.Chmod(root, 0o500); err != nil {
		t.Fatalf("Chmod: %v", err)
	}
	t.Cleanup(func() { _ = os.Chmod(root, 0o700) })

	store := New(root)
	err := store.Put("dev", "summary")
	if !armyerrors.IsStoreUnavailable(err) {
		t.Fatalf("expected StoreUnavailable, got %v", err)
	}
}

func TestStore_CorruptFile(t *testing.T) {
	root := t.TempDir()
	dir := filepath.Join(root, DefaultDir)
	if err := os.MkdirAll(dir, 0o700); err != nil {
		t.Fatalf("MkdirAll: %v", err)
	}
	if err := os.WriteFile(filepath.Join(dir, DefaultFile), []byte("{not json"), 0o600); err != nil {
		t.Fatalf("WriteFile: %v", err)
	}

	store := New(root)
	_, err := store.Get("product")
	if !armyerrors.IsStoreUnavailable(err) {
		t.Fatalf("expected StoreUnavailable, got %v", err)
	}
}
