package errors

import (
	"testing"
	"time"
)

func TestIllegalTransitionError_Error(t *testing.T) {
	tests := []struct {
		name     string
		err      *IllegalTransitionError
		expected string
	}{
		{
			name: "with from label",
			err: &IllegalTransitionError{
				Item:    42,
				From:    "backlog",
				To:      "ready-for-breakdown",
				Message: "transition requires the prioritized label",
			},
			expected: `illegal transition on item #42 ("backlog" -> "ready-for-breakdown"): transition requires the prioritized label`,
		},
		{
			name: "without labels",
			err: &IllegalTransitionError{
				Item:    7,
				Message: "item is closed",
			},
			expected: `illegal transition on item #7: item is closed`,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.err.Error(); got != tt.expected {
				t.Errorf("Error() = %q, want %q", got, tt.expected)
			}
		})
	}
}

func TestErrorPredicates(t *testing.T) {
	reset := time.Now().Add(time.Hour)

	tests := []struct {
		name  string
		err   error
		check func(error) bool
	}{
		{"illegal transition", NewIllegalTransition(1, "backlog", "done", "skip"), IsIllegalTransition},
		{"claim conflict", NewClaimConflict(1, "dev", "taken"), IsClaimConflict},
		{"store unavailable", NewStoreUnavailable("put", "/tmp/x", "disk full", nil), IsStoreUnavailable},
		{"rate exhausted", NewRateExhausted(3, reset, "below floor"), IsRateExhausted},
		{"collaborator", NewCollaboratorError("qa", "timeout"), IsCollaboratorError},
		{"tracker", NewTrackerError("GetItem", "not found"), IsTrackerError},
		{"config", NewConfigError("github.repo", "missing"), IsConfigError},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if !tt.check(tt.err) {
				t.Errorf("predicate rejected its own error: %v", tt.err)
			}
			// Predicates must see through wrapping.
			if !tt.check(Wrap(tt.err, "outer context")) {
				t.Errorf("predicate failed on wrapped error: %v", tt.err)
			}
		})
	}

	if IsClaimConflict(NewIllegalTransition(1, "", "done", "nope")) {
		t.Error("predicates must not cross error types")
	}
}

func TestIsRetryable(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want bool
	}{
		{"nil", nil, false},
		{"tracker 503", NewTrackerErrorWithStatus("ListOpenItems", 503, "unavailable"), true},
		{"tracker 404", NewTrackerErrorWithStatus("GetItem", 404, "gone"), false},
		{"tracker 429", NewTrackerErrorWithStatus("AddLabels", 429, "slow down"), true},
		{"ai 500", NewAIErrorWithStatus("anthropic", "Chat", 500, "overloaded"), true},
		{"ai 401", NewAIErrorWithStatus("anthropic", "Chat", 401, "bad key"), false},
		{"plain error", New("boom"), false},
		{"wrapped retryable", Wrap(NewTrackerErrorWithStatus("Comment", 502, "bad gateway"), "posting"), true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := IsRetryable(tt.err); got != tt.want {
				t.Errorf("IsRetryable() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestRateExhaustedError_Error(t *testing.T) {
	reset := time.Date(2025, 6, 1, 12, 30, 0, 0, time.UTC)
	err := NewRateExhausted(5, reset, "below minimum budget")
	got := err.Error()
	want := "rate budget exhausted (5 remaining, resets 2025-06-01T12:30:00Z): below minimum budget"
	if got != want {
		t.Errorf("Error() = %q, want %q", got, want)
	}
}
