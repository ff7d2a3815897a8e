/*
errors.go - Centralized error types

PURPOSE:
  All error types in one place for consistency and discoverability.
  Domain packages wrap these errors with additional context; the API
  layer maps them onto HTTP status codes via the classifiers below.

ERROR CATEGORIES:
  1. Validation errors - User-correctable, raised before any store call
  2. Lifecycle errors  - Illegal status transitions, duplicate submissions
  3. Identity errors   - Credentials, sessions, missing profiles
  4. Store errors      - Backend failures, surfaced verbatim

Nothing retries automatically.

SEE ALSO:
  - vacation/validate.go: Produces ValidationError
  - vacation/controller.go: Produces TransitionError
  - api/handlers.go: statusFor() maps errors to HTTP
*/
package generic

import (
	"errors"
	"fmt"
)

// =============================================================================
// SENTINEL ERRORS - Use with errors.Is()
// =============================================================================

var (
	// ErrInvalidInput is the root of every validation failure.
	ErrInvalidInput = errors.New("invalid input")

	// ErrInvalidPeriod is returned when a date range ends before it starts.
	ErrInvalidPeriod = errors.New("invalid period: end before start")

	// ErrNotFound is returned when a record does not exist or is not
	// visible to the caller. Ownership failures use this too, so callers
	// cannot probe for other users' ids.
	ErrNotFound = errors.New("not found")

	// ErrNotPending is returned when a transition requires a pending request.
	ErrNotPending = errors.New("request is not pending")

	// ErrSubmissionInFlight is returned when the same control already has
	// an outstanding call.
	ErrSubmissionInFlight = errors.New("submission already in progress")

	// ErrUnauthenticated is returned when no valid session exists.
	ErrUnauthenticated = errors.New("not signed in")

	// ErrInvalidCredentials covers both unknown email and wrong password.
	ErrInvalidCredentials = errors.New("invalid login credentials")

	// ErrEmailTaken is returned by sign-up for an already registered email.
	ErrEmailTaken = errors.New("user already registered")

	// ErrProfileUnavailable is returned when a valid session has no profile row.
	ErrProfileUnavailable = errors.New("unable to load profile data")

	// ErrConcurrentModification is returned when a conditional update matched
	// no row because the record changed underneath it.
	ErrConcurrentModification = errors.New("concurrent modification detected")
)

// =============================================================================
// STRUCTURED ERRORS - Carry additional context
// =============================================================================

// ValidationError is a user-facing rejection of one form field.
// Message is shown verbatim to the user.
type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	return e.Message
}

func (e *ValidationError) Unwrap() error {
	return ErrInvalidInput
}

// NewValidationError is shorthand for &ValidationError{...}.
func NewValidationError(field, format string, args ...any) *ValidationError {
	return &ValidationError{Field: field, Message: fmt.Sprintf(format, args...)}
}

// TransitionError reports an illegal status change.
type TransitionError struct {
	Kind string // "vacation_request", "compensation_request"
	ID   string
	From string
	To   string
}

func (e *TransitionError) Error() string {
	return fmt.Sprintf("cannot move %s %s from %s to %s", e.Kind, e.ID, e.From, e.To)
}

func (e *TransitionError) Unwrap() error {
	return ErrNotPending
}

// =============================================================================
// ERROR HELPERS
// =============================================================================

// IsRetryable returns true if the error might succeed on retry.
func IsRetryable(err error) bool {
	return errors.Is(err, ErrConcurrentModification)
}

// IsClientError returns true if the error is due to invalid client input.
func IsClientError(err error) bool {
	return errors.Is(err, ErrInvalidInput) ||
		errors.Is(err, ErrInvalidPeriod)
}

// IsNotFound returns true if the error indicates a missing resource.
func IsNotFound(err error) bool {
	return errors.Is(err, ErrNotFound)
}

// IsConflict returns true if the request clashes with current state.
func IsConflict(err error) bool {
	return errors.Is(err, ErrNotPending) ||
		errors.Is(err, ErrSubmissionInFlight) ||
		errors.Is(err, ErrEmailTaken) ||
		errors.Is(err, ErrConcurrentModification)
}
