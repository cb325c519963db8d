package rategate

import (
	"context"
	"testing"
	"time"

	armyerrors "github.com/khenlevy/ai-army/pkg/errors"
)

func TestGate_Allow(t *testing.T) {
	reset := time.Now().Add(30 * time.Minute)

	tests := []struct {
		name      string
		snapshot  Snapshot
		checkErr  error
		min       int
		wantErr   bool
		wantCalls int
	}{
		{
			name:     "capacity available",
			snapshot: Snapshot{Remaining: 4000, Limit: 5000, Reset: reset},
			min:      DefaultMinRemaining,
		},
		{
			name:     "budget exhausted",
			snapshot: Snapshot{Remaining: 0, Limit: 5000, Reset: reset},
			min:      DefaultMinRemaining,
			wantErr:  true,
		},
		{
			name:     "at the floor counts as exhausted",
			snapshot: Snapshot{Remaining: 20, Limit: 5000, Reset: reset},
			min:      20,
			wantErr:  true,
		},
		{
			name:     "just above the floor passes",
			snapshot: Snapshot{Remaining: 21, Limit: 5000, Reset: reset},
			min:      20,
		},
		{
			name:     "query failure fails closed",
			checkErr: armyerrors.NewTrackerError("RateLimit", "network unreachable"),
			min:      DefaultMinRemaining,
			wantErr:  true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			checker := CheckerFunc(func(ctx context.Context) (Snapshot, error) {
				return tt.snapshot, tt.checkErr
			})
			gate := New(checker, WithMinRemaining(tt.min))

			snap, err := gate.Allow(context.Background())
			if tt.wantErr {
				if !armyerrors.IsRateExhausted(err) {
					t.Fatalf("Allow() error = %v, want RateExhausted", err)
				}
				return
			}
			if err != nil {
				t.Fatalf("Allow() unexpected error: %v", err)
			}
			if snap.Remaining != tt.snapshot.Remaining {
				t.Errorf("Remaining = %d, want %d", snap.Remaining, tt.snapshot.Remaining)
			}
		})
	}
}

// TestGate_FreshQueryPerCheck asserts the snapshot is re-fetched on every
// check rather than cached across ticks.
func TestGate_FreshQueryPerCheck(t *testing.T) {
	calls := 0
	checker := CheckerFunc(func(ctx context.Context) (Snapshot, error) {
		calls++
		return Snapshot{Remaining: 1000, Limit: 5000}, nil
	})
	gate := New(checker)

	for i := 0; i < 3; i++ {
		if _, err := gate.Allow(context.Background()); err != nil {
			t.Fatalf("Allow() attempt %d: %v", i, err)
		}
	}
	if calls != 3 {
		t.Errorf("checker called %d times, want 3", calls)
	}
}
