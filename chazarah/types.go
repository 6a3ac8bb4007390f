/*
Package chazarah reconciles logged study time and payments against a weekly
study obligation, quarter by quarter.

PURPOSE:
  A user owes a number of study ("chazarah") minutes per week for a Jewish
  year. The year is split into four quarters. For each quarter the engine
  answers: how many minutes were owed so far, how many were logged, how much
  was paid, and, once the quarter is over, what is still owed.

KEY TYPES:
  Year:              Catalog entry with an inclusive date range
  Obligation:        Minutes owed per week for one (user, year)
  Session:           One logged study session (start time + length)
  Payment:           Money paid in lieu of minutes
  Quarter:           Derived; one of four contiguous ranges of a year
  QuarterSettlement: Derived; the figures for one (user, quarter)

SETTLEMENT:
  MinutesOwed     = MinutesPerWeek * days elapsed in quarter / 7
  MinutesChazered = floor(sum of session milliseconds / 60000)
  AmountPaid      = sum of payments in the elapsed range
  FinalAmountOwed = MinutesOwed - MinutesChazered - AmountPaid, once closed

  One currency unit stands in for one unlogged minute.

SEE ALSO:
  - partition.go: Year -> four quarters
  - settlement.go: Quarter -> settlement
  - report.go: Year -> ordered settlements for one user
*/
package chazarah

import (
	"github.com/shopspring/decimal"

	"github.com/chazarah/obligation-engine/generic"
)

// QuartersPerYear is the number of settlement periods in a year.
const QuartersPerYear = 4

// Year is a catalog entry. Start and End are inclusive calendar dates.
// A year's dates never change once saved.
type Year struct {
	JewishYear generic.YearID
	StartDate  generic.TimePoint
	EndDate    generic.TimePoint
}

// Valid reports whether both dates are set and start is before end.
func (y Year) Valid() bool {
	return !y.StartDate.IsZero() && !y.EndDate.IsZero() && y.StartDate.Before(y.EndDate)
}

// SameRange reports whether two years cover the same calendar days.
func (y Year) SameRange(other Year) bool {
	return y.StartDate.SameDay(other.StartDate) && y.EndDate.SameDay(other.EndDate)
}

// Period covers the whole of the year's last day.
func (y Year) Period() generic.Period {
	return generic.Period{Start: y.StartDate.Date(), End: y.EndDate.EndOfDay()}
}

// Obligation is the weekly study rate for one user in one year.
type Obligation struct {
	UserID         generic.UserID
	YearID         generic.YearID
	MinutesPerWeek decimal.Decimal

	// Defaulted is set when no obligation was on record and a zero rate
	// was substituted. Presentation decides whether to tell the user.
	Defaulted bool
}

// ZeroObligation is what a missing obligation row resolves to.
func ZeroObligation(userID generic.UserID, yearID generic.YearID) Obligation {
	return Obligation{UserID: userID, YearID: yearID, MinutesPerWeek: decimal.Zero, Defaulted: true}
}

// Session is one logged study session.
type Session struct {
	ID         string
	UserID     generic.UserID
	YearID     generic.YearID
	StartTime  generic.TimePoint
	DurationMs int64
	Note       string
}

// Payment is money paid against the obligation.
type Payment struct {
	ID     string
	UserID generic.UserID
	YearID generic.YearID
	Amount decimal.Decimal
	Date   generic.TimePoint
}

// Quarter is one of the four settlement periods of a year. Start is stamped
// 00:00:01 and End 23:59:59.
type Quarter struct {
	Index int
	Start generic.TimePoint
	End   generic.TimePoint
}

func (q Quarter) Period() generic.Period {
	return generic.Period{Start: q.Start, End: q.End}
}

// QuarterSettlement holds the figures for one user in one quarter.
// It is computed on every request and never stored.
type QuarterSettlement struct {
	Index int
	Start generic.TimePoint
	End   generic.TimePoint

	// Active is false only for quarters that start after today.
	Active bool

	MinutesOwed     decimal.Decimal
	MinutesChazered int64
	AmountPaid      decimal.Decimal

	// FinalAmountOwed is zero until the quarter has closed. Negative means
	// the user logged or paid more than was owed.
	FinalAmountOwed decimal.Decimal
}

// Closed reports whether the quarter had fully elapsed when computed.
func (s QuarterSettlement) Closed(today generic.TimePoint) bool {
	return today.DayAfter(s.End)
}

// Outstanding is minutes owed minus minutes logged, ignoring payments.
func (s QuarterSettlement) Outstanding() decimal.Decimal {
	return s.MinutesOwed.Sub(decimal.NewFromInt(s.MinutesChazered))
}

// Report is the settlement of a whole year for one user.
type Report struct {
	UserID     generic.UserID
	Year       Year
	Obligation Obligation
	Quarters   []QuarterSettlement
}

// CurrentQuarter returns the last active quarter, if any.
func (r Report) CurrentQuarter() (QuarterSettlement, bool) {
	for i := len(r.Quarters) - 1; i >= 0; i-- {
		if r.Quarters[i].Active {
			return r.Quarters[i], true
		}
	}
	return QuarterSettlement{}, false
}
