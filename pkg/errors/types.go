// Package errors provides typed errors for the ai-army project.
//
// This package defines domain-specific error types for the orchestration
// core (lifecycle transitions, claim conflicts, context persistence, rate
// gating, crew collaborators, tracker access). All error types implement the
// standard error interface and support errors.Is() and errors.As() from the
// standard library and cockroachdb/errors.
package errors

import (
	"fmt"
	"time"

	"github.com/cockroachdb/errors"
)

// ConfigError represents configuration-related errors.
type ConfigError struct {
	Field   string // Which config field has the issue
	Message string
	Cause   error
}

// Error implements the error interface.
func (e *ConfigError) Error() string {
	if e.Field != "" {
		return fmt.Sprintf("config error in %s: %s", e.Field, e.Message)
	}
	return "config error: " + e.Message
}

// Unwrap returns the underlying cause for error chain traversal.
func (e *ConfigError) Unwrap() error {
	return e.Cause
}

// NewConfigError creates a new ConfigError.
func NewConfigError(field, message string) *ConfigError {
	return &ConfigError{Field: field, Message: message}
}

// NewConfigErrorWithCause creates a new ConfigError with an underlying cause.
func NewConfigErrorWithCause(field, message string, cause error) *ConfigError {
	return &ConfigError{Field: field, Message: message, Cause: cause}
}

// IllegalTransitionError reports a label transition whose precondition does
// not hold: wrong predecessor label, a skipped stage, or a closed item.
// The work item is left untouched.
type IllegalTransitionError struct {
	Item    int    // Tracker item number
	From    string // Lifecycle label currently on the item ("" if none)
	To      string // Requested target label
	Message string
}

// Error implements the error interface.
func (e *IllegalTransitionError) Error() string {
	if e.From != "" || e.To != "" {
		return fmt.Sprintf("illegal transition on item #%d (%q -> %q): %s", e.Item, e.From, e.To, e.Message)
	}
	return fmt.Sprintf("illegal transition on item #%d: %s", e.Item, e.Message)
}

// NewIllegalTransition creates a new IllegalTransitionError.
func NewIllegalTransition(item int, from, to, message string) *IllegalTransitionError {
	return &IllegalTransitionError{Item: item, From: from, To: to, Message: message}
}

// ClaimConflictError reports a lost optimistic claim: the exclusive claim
// marker was already present when the claim was attempted.
type ClaimConflictError struct {
	Item    int
	Stage   string // Stage that attempted the claim
	Message string
}

// Error implements the error interface.
func (e *ClaimConflictError) Error() string {
	if e.Stage != "" {
		return fmt.Sprintf("claim conflict on item #%d (stage %s): %s", e.Item, e.Stage, e.Message)
	}
	return fmt.Sprintf("claim conflict on item #%d: %s", e.Item, e.Message)
}

// NewClaimConflict creates a new ClaimConflictError.
func NewClaimConflict(item int, stage, message string) *ClaimConflictError {
	return &ClaimConflictError{Item: item, Stage: stage, Message: message}
}

// StoreUnavailableError reports a context store persistence failure.
// Losing a handoff silently would make the next stage operate on stale
// context, so store write failures are always surfaced.
type StoreUnavailableError struct {
	Path    string // Backing file path
	Op      string // "load", "put"
	Message string
	Cause   error
}

// Error implements the error interface.
func (e *StoreUnavailableError) Error() string {
	return fmt.Sprintf("context store %s failed for %s: %s", e.Op, e.Path, e.Message)
}

// Unwrap returns the underlying cause for error chain traversal.
func (e *StoreUnavailableError) Unwrap() error {
	return e.Cause
}

// NewStoreUnavailable creates a new StoreUnavailableError.
func NewStoreUnavailable(op, path, message string, cause error) *StoreUnavailableError {
	return &StoreUnavailableError{Op: op, Path: path, Message: message, Cause: cause}
}

// RateExhaustedError reports that the external request budget is spent (or
// could not be verified, which is treated the same). The stage run is
// skipped; the next scheduled tick is the retry.
type RateExhaustedError struct {
	Remaining int
	Reset     time.Time
	Message   string
	Cause     error
}

// Error implements the error interface.
func (e *RateExhaustedError) Error() string {
	if !e.Reset.IsZero() {
		return fmt.Sprintf("rate budget exhausted (%d remaining, resets %s): %s",
			e.Remaining, e.Reset.Format(time.RFC3339), e.Message)
	}
	return "rate budget exhausted: " + e.Message
}

// Unwrap returns the underlying cause for error chain traversal.
func (e *RateExhaustedError) Unwrap() error {
	return e.Cause
}

// NewRateExhausted creates a new RateExhaustedError.
func NewRateExhausted(remaining int, reset time.Time, message string) *RateExhaustedError {
	return &RateExhaustedError{Remaining: remaining, Reset: reset, Message: message}
}

// NewRateExhaustedWithCause creates a RateExhaustedError for a failed
// capacity query. The gate fails closed: an unverifiable budget is treated
// as an exhausted one.
func NewRateExhaustedWithCause(message string, cause error) *RateExhaustedError {
	return &RateExhaustedError{Message: message, Cause: cause}
}

// CollaboratorError represents a failed crew invocation. Collected per item
// or per run; never aborts sibling items in the same batch.
type CollaboratorError struct {
	Stage   string
	Item    int // 0 when the failure is not tied to a single item
	Message string
	Cause   error
}

// Error implements the error interface.
func (e *CollaboratorError) Error() string {
	if e.Item > 0 {
		return fmt.Sprintf("crew %s failed on item #%d: %s", e.Stage, e.Item, e.Message)
	}
	return fmt.Sprintf("crew %s failed: %s", e.Stage, e.Message)
}

// Unwrap returns the underlying cause for error chain traversal.
func (e *CollaboratorError) Unwrap() error {
	return e.Cause
}

// NewCollaboratorError creates a new CollaboratorError.
func NewCollaboratorError(stage, message string) *CollaboratorError {
	return &CollaboratorError{Stage: stage, Message: message}
}

// NewCollaboratorErrorWithCause creates a new CollaboratorError with an
// underlying cause.
func NewCollaboratorErrorWithCause(stage string, item int, message string, cause error) *CollaboratorError {
	return &CollaboratorError{Stage: stage, Item: item, Message: message, Cause: cause}
}

// TrackerError represents issue tracker API errors.
type TrackerError struct {
	Operation  string // e.g., "ListOpenItems", "AddLabels"
	StatusCode int    // HTTP status code if applicable
	Message    string
	Retryable  bool
	Cause      error
}

// Error implements the error interface.
func (e *TrackerError) Error() string {
	if e.StatusCode > 0 {
		return fmt.Sprintf("tracker %s failed (HTTP %d): %s", e.Operation, e.StatusCode, e.Message)
	}
	return fmt.Sprintf("tracker %s failed: %s", e.Operation, e.Message)
}

// Unwrap returns the underlying cause for error chain traversal.
func (e *TrackerError) Unwrap() error {
	return e.Cause
}

// NewTrackerError creates a new TrackerError.
func NewTrackerError(operation, message string) *TrackerError {
	return &TrackerError{Operation: operation, Message: message}
}

// NewTrackerErrorWithStatus creates a new TrackerError with HTTP status code.
func NewTrackerErrorWithStatus(operation string, statusCode int, message string) *TrackerError {
	return &TrackerError{
		Operation:  operation,
		StatusCode: statusCode,
		Message:    message,
		Retryable:  isRetryableHTTPStatus(statusCode),
	}
}

// NewTrackerErrorWithCause creates a new TrackerError with an underlying cause.
func NewTrackerErrorWithCause(operation, message string, cause error) *TrackerError {
	return &TrackerError{
		Operation: operation,
		Message:   message,
		Retryable: IsRetryable(cause),
		Cause:     cause,
	}
}

// AIError represents AI provider errors.
type AIError struct {
	Provider   string // e.g., "anthropic"
	Operation  string // e.g., "Chat"
	StatusCode int
	Message    string
	Retryable  bool
	Cause      error
}

// Error implements the error interface.
func (e *AIError) Error() string {
	if e.StatusCode > 0 {
		return fmt.Sprintf("ai %s %s failed (HTTP %d): %s", e.Provider, e.Operation, e.StatusCode, e.Message)
	}
	return fmt.Sprintf("ai %s %s failed: %s", e.Provider, e.Operation, e.Message)
}

// Unwrap returns the underlying cause for error chain traversal.
func (e *AIError) Unwrap() error {
	return e.Cause
}

// NewAIError creates a new AIError.
func NewAIError(provider, operation, message string) *AIError {
	return &AIError{Provider: provider, Operation: operation, Message: message}
}

// NewAIErrorWithStatus creates a new AIError with HTTP status code.
func NewAIErrorWithStatus(provider, operation string, statusCode int, message string) *AIError {
	return &AIError{
		Provider:   provider,
		Operation:  operation,
		StatusCode: statusCode,
		Message:    message,
		Retryable:  isRetryableHTTPStatus(statusCode),
	}
}

// NewAIErrorWithCause creates a new AIError with an underlying cause.
func NewAIErrorWithCause(provider, operation, message string, cause error) *AIError {
	return &AIError{
		Provider:  provider,
		Operation: operation,
		Message:   message,
		Retryable: IsRetryable(cause),
		Cause:     cause,
	}
}

// IsRetryable checks if an error or any error in its chain is retryable.
func IsRetryable(err error) bool {
	if err == nil {
		return false
	}

	var trackerErr *TrackerError
	if errors.As(err, &trackerErr) {
		return trackerErr.Retryable
	}

	var aiErr *AIError
	if errors.As(err, &aiErr) {
		return aiErr.Retryable
	}

	return false
}

// IsIllegalTransition checks if an error in the chain is an IllegalTransitionError.
func IsIllegalTransition(err error) bool {
	var e *IllegalTransitionError
	return errors.As(err, &e)
}

// IsClaimConflict checks if an error in the chain is a ClaimConflictError.
func IsClaimConflict(err error) bool {
	var e *ClaimConflictError
	return errors.As(err, &e)
}

// IsStoreUnavailable checks if an error in the chain is a StoreUnavailableError.
func IsStoreUnavailable(err error) bool {
	var e *StoreUnavailableError
	return errors.As(err, &e)
}

// IsRateExhausted checks if an error in the chain is a RateExhaustedError.
func IsRateExhausted(err error) bool {
	var e *RateExhaustedError
	return errors.As(err, &e)
}

// IsCollaboratorError checks if an error in the chain is a CollaboratorError.
func IsCollaboratorError(err error) bool {
	var e *CollaboratorError
	return errors.As(err, &e)
}

// IsTrackerError checks if an error in the chain is a TrackerError.
func IsTrackerError(err error) bool {
	var e *TrackerError
	return errors.As(err, &e)
}

// IsConfigError checks if an error in the chain is a ConfigError.
func IsConfigError(err error) bool {
	var e *ConfigError
	return errors.As(err, &e)
}

// isRetryableHTTPStatus returns true for HTTP status codes that are typically retryable.
func isRetryableHTTPStatus(statusCode int) bool {
	switch statusCode {
	case 408, // Request Timeout
		429, // Too Many Requests
		500, // Internal Server Error
		502, // Bad Gateway
		503, // Service Unavailable
		504: // Gateway Timeout
		return true
	default:
		return false
	}
}

// Re-export commonly used functions from cockroachdb/errors for convenience.
// This allows consumers to use armyerrors.Wrap() instead of importing two packages.
var (
	// New creates a new error with the given message.
	New = errors.New

	// Newf creates a new error with formatted message.
	Newf = errors.Newf

	// Wrap wraps an error with additional context.
	Wrap = errors.Wrap

	// Wrapf wraps an error with formatted additional context.
	Wrapf = errors.Wrapf

	// Is reports whether any error in err's chain matches target.
	Is = errors.Is

	// As finds the first error in err's chain that matches target.
	As = errors.As

	// Cause returns the root cause of an error.
	Cause = errors.Cause
)
