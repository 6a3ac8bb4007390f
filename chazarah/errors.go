package chazarah

import (
	"fmt"

	"github.com/chazarah/obligation-engine/generic"
)

// QueryError reports a failed read while settling a quarter. It unwraps to
// the store's own error, and errors.Is(err, generic.ErrQuery) also holds.
type QueryError struct {
	Op      string // "obligation", "sessions" or "payments"
	UserID  generic.UserID
	Quarter int // 0 when not quarter specific
	Err     error
}

func (e *QueryError) Error() string {
	if e.Quarter == 0 {
		return fmt.Sprintf("query %s for user %s: %v", e.Op, e.UserID, e.Err)
	}
	return fmt.Sprintf("query %s for user %s, quarter %d: %v", e.Op, e.UserID, e.Quarter, e.Err)
}

func (e *QueryError) Unwrap() []error {
	return []error{generic.ErrQuery, e.Err}
}

// InvalidSessionError is returned when a session starts outside its year.
type InvalidSessionError struct {
	StartTime generic.TimePoint
	Year      Year
}

func (e *InvalidSessionError) Error() string {
	return fmt.Sprintf("session start time %s must fall within Jewish year %d (%s - %s)",
		e.StartTime, e.Year.JewishYear, e.Year.StartDate.DateString(), e.Year.EndDate.DateString())
}

func (e *InvalidSessionError) Unwrap() error {
	return generic.ErrInvalidSessionAssignment
}
