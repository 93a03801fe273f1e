// Package apperror defines the error taxonomy shared by the game-state core.
//
// Business-rule violations (ErrNotFound, ErrConflict, ErrStaleVersion, ErrInvalidValue) propagate
// to the caller without retry. ErrCacheUnavailable is recovered locally by falling back to the
// durable store. ErrWorkflowStepFailed marks a checkpoint step that exhausted its retries.
//
// Callers wrap these sentinels with fmt.Errorf("...: %w") and test them with errors.Is.
package apperror

import "errors"

var (
	// ErrNotFound is returned when a key is absent from both cache and durable store.
	ErrNotFound = errors.New("not found")
	// ErrConflict is returned when a game save already has an active session,
	// or when a terminal session is mutated.
	ErrConflict = errors.New("conflict")
	// ErrStaleVersion is returned when an optimistic version check fails.
	ErrStaleVersion = errors.New("stale version")
	// ErrCacheUnavailable is returned by cache adapters when the backing store cannot be reached.
	ErrCacheUnavailable = errors.New("cache unavailable")
	// ErrInvalidValue is returned when a value object violates its field constraints.
	ErrInvalidValue = errors.New("invalid value")
	// ErrWorkflowStepFailed is matched by workflow step errors that exhausted their retries.
	ErrWorkflowStepFailed = errors.New("workflow step failed")
)

// IsBusiness reports whether err is a business-rule violation that must not be retried.
func IsBusiness(err error) bool {
	return errors.Is(err, ErrNotFound) ||
		errors.Is(err, ErrConflict) ||
		errors.Is(err, ErrStaleVersion) ||
		errors.Is(err, ErrInvalidValue)
}
