/*
errors.go - Centralized error types for the engine

PURPOSE:
  All shared error types in one place for consistency and discoverability.
  Domain packages wrap these errors with additional context.

ERROR CATEGORIES:
  1. Query errors - A reader (store) failed while computing figures
  2. Validation errors - Business rule violations on writes
  3. Lookup errors - Referenced record does not exist

USAGE:
  if errors.Is(err, generic.ErrInvalidSessionAssignment) {
      // 400, tell the user which year the session must fall in
  }

SEE ALSO:
  - chazarah/errors.go: Structured errors that unwrap to these sentinels
  - api/handlers.go: Maps these to HTTP status codes
*/
package generic

import "errors"

// =============================================================================
// SENTINEL ERRORS - Use with errors.Is()
// =============================================================================

var (
	// ErrQuery is returned when a session, payment or obligation read fails.
	// Figures are never substituted with zero when this happens.
	ErrQuery = errors.New("query failed")

	// ErrInvalidSessionAssignment is returned when a session's start time
	// falls outside the year it claims to belong to.
	ErrInvalidSessionAssignment = errors.New("session outside its year")

	// ErrInvalidSession is returned for a session that is malformed on its
	// own (missing start time, negative length).
	ErrInvalidSession = errors.New("invalid session")

	// ErrInvalidPayment is returned for a negative or missing payment amount.
	ErrInvalidPayment = errors.New("invalid payment")

	// ErrInvalidObligation is returned for a negative weekly rate.
	ErrInvalidObligation = errors.New("invalid obligation")

	// ErrMalformedYear is returned when a year's start is not before its end.
	// The partitioner never returns it; it answers with no quarters instead.
	ErrMalformedYear = errors.New("malformed year: start not before end")

	// ErrConflict is returned when a write would change a record that must
	// not change, such as a catalog year's dates.
	ErrConflict = errors.New("conflicts with existing record")

	// ErrNotFound is returned when a referenced record doesn't exist.
	ErrNotFound = errors.New("not found")
)

// =============================================================================
// ERROR HELPERS
// =============================================================================

// IsClientError returns true if the error is due to invalid client input.
func IsClientError(err error) bool {
	return errors.Is(err, ErrInvalidSessionAssignment) ||
		errors.Is(err, ErrInvalidSession) ||
		errors.Is(err, ErrInvalidPayment) ||
		errors.Is(err, ErrInvalidObligation) ||
		errors.Is(err, ErrMalformedYear)
}

// IsNotFound returns true if the error indicates a missing record.
func IsNotFound(err error) bool {
	return errors.Is(err, ErrNotFound)
}

// IsConflict returns true if the error is a rejected change to an existing record.
func IsConflict(err error) bool {
	return errors.Is(err, ErrConflict)
}
