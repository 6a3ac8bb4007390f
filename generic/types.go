/*
Package generic provides the calendar and arithmetic building blocks of the
obligation engine.

PURPOSE:
  Nothing here knows about sessions, payments or quarters. It supplies
  civil timestamps, inclusive periods, a clock abstraction, decimal helpers
  and the shared error vocabulary that domain packages build on.

KEY CONCEPTS:
  - TimePoint: A wall clock timestamp with no zone conversion (time.go)
  - Period: An inclusive range of calendar days, splittable into parts (period.go)
  - Clock: Source of "today", injected so tests are deterministic (time.go)
  - Identifiers: Type-safe user and year IDs (this file)

DESIGN PRINCIPLES:
  1. Civil time: "2025-01-01 09:00:00" means nine o'clock wherever the user is
  2. Precision: Money and fractional minutes use decimal.Decimal, never float64
  3. Type Safety: Strong typing for IDs prevents mixing user IDs and year numbers

SEE ALSO:
  - chazarah/partition.go: Splits a year into quarters using Period.Split
  - chazarah/settlement.go: Sums minutes and payments with these helpers
*/
package generic

import (
	"github.com/shopspring/decimal"
)

// =============================================================================
// IDENTIFIERS
// =============================================================================

// UserID is the opaque subject issued by the auth provider.
type UserID string

// YearID is a Jewish year number, e.g. 5785.
type YearID int

// =============================================================================
// ARITHMETIC
// =============================================================================

// MillisPerMinute converts stored session lengths to whole minutes.
const MillisPerMinute int64 = 60_000

// FloorMinutes converts a millisecond total to whole minutes, rounding down.
// Callers sum first and convert once.
func FloorMinutes(ms int64) int64 {
	if ms <= 0 {
		return 0
	}
	return ms / MillisPerMinute
}

var daysPerWeek = decimal.NewFromInt(7)

// PerWeek prorates a weekly rate over a number of days. Multiplying before
// dividing keeps whole-week results exact.
func PerWeek(rate decimal.Decimal, days int) decimal.Decimal {
	return rate.Mul(decimal.NewFromInt(int64(days))).Div(daysPerWeek)
}
