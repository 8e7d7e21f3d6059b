package domain

import "errors"

var (
	// ErrConflict indicates the caller already has an active session or a
	// uniqueness rule was violated.
	ErrConflict = errors.New("conflict")

	// ErrInvalidState indicates the session is not in the state the
	// operation requires.
	ErrInvalidState = errors.New("invalid session state")

	// ErrNotFound indicates the entity does not exist or is not visible to
	// the caller.
	ErrNotFound = errors.New("not found")

	// ErrValidation indicates malformed input. Concrete failures are
	// reported as *ValidationError.
	ErrValidation = errors.New("validation failed")

	// ErrVersionConflict indicates a compare-and-swap write lost against a
	// concurrent writer of the same session.
	ErrVersionConflict = errors.New("stale session version")

	// ErrRetryExhausted indicates every compare-and-swap attempt lost.
	ErrRetryExhausted = errors.New("session write retries exhausted")
)

// ValidationError names the field that failed validation.
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	return "invalid " + e.Field + ": " + e.Reason
}

func (e *ValidationError) Unwrap() error {
	return ErrValidation
}
