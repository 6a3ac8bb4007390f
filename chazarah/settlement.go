/*
settlement.go - Per-quarter settlement calculation

PURPOSE:
  Computes what one user owes, logged and paid in one quarter as of today.
  This is the central calculation behind the obligation screen.

KEY INSIGHT:
  A quarter is only settled up to today. An in-progress quarter prorates
  the weekly rate over the days elapsed so far; a future quarter is not
  computed at all; a closed quarter additionally gets a final balance.

STATES (by calendar date, not time of day):
  today <  Start:        inactive, all zero, no reads issued
  Start <= today <= End: active, figures through today, FinalAmountOwed = 0
  today >  End:          active, figures for the whole quarter, final balance set

EXAMPLE:
  60 min/week, 91-day quarter, one 3,500,000 ms session, $10 paid, quarter over:

  MinutesOwed     = 60 * 91 / 7            = 780
  MinutesChazered = floor(3500000 / 60000) = 58
  FinalAmountOwed = 780 - 58 - 10          = 712

SEE ALSO:
  - report.go: Runs this for all four quarters
  - partition.go: Produces the quarters
*/
package chazarah

import (
	"context"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/chazarah/obligation-engine/generic"
)

// =============================================================================
// ENGINE
// =============================================================================

// Engine settles quarters from read-only stores. It holds no mutable state
// and is safe for concurrent use.
type Engine struct {
	Obligations ObligationReader
	Sessions    SessionReader
	Payments    PaymentReader
	Clock       generic.Clock
	Logger      *zap.Logger
}

// NewEngine wires an engine to a reader. A nil clock means the system clock;
// a nil logger discards output.
func NewEngine(r Reader, clock generic.Clock, logger *zap.Logger) *Engine {
	if clock == nil {
		clock = generic.SystemClock{}
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Engine{
		Obligations: r,
		Sessions:    r,
		Payments:    r,
		Clock:       clock,
		Logger:      logger,
	}
}

// Settle computes the settlement for one quarter as of the engine's clock.
// Store failures come back as *QueryError; figures are never defaulted.
func (e *Engine) Settle(ctx context.Context, userID generic.UserID, q Quarter, ob Obligation) (QuarterSettlement, error) {
	today := e.Clock.Now().Date()

	result := QuarterSettlement{
		Index:           q.Index,
		Start:           q.Start,
		End:             q.End,
		MinutesOwed:     decimal.Zero,
		AmountPaid:      decimal.Zero,
		FinalAmountOwed: decimal.Zero,
	}

	// Future quarter: nothing to read.
	if today.DayBefore(q.Start) {
		return result, nil
	}
	result.Active = true

	effectiveEnd := q.End.Date()
	if today.Before(effectiveEnd) {
		effectiveEnd = today
	}
	from, to := q.Start.Date(), effectiveEnd.EndOfDay()

	sessions, err := e.Sessions.SessionsBetween(ctx, userID, from, to)
	if err != nil {
		return QuarterSettlement{}, &QueryError{Op: "sessions", UserID: userID, Quarter: q.Index, Err: err}
	}
	var totalMs int64
	for _, s := range sessions {
		totalMs += s.DurationMs
	}
	result.MinutesChazered = generic.FloorMinutes(totalMs)

	result.MinutesOwed = generic.PerWeek(ob.MinutesPerWeek, generic.InclusiveDays(q.Start, effectiveEnd))

	payments, err := e.Payments.PaymentsBetween(ctx, userID, from, to)
	if err != nil {
		return QuarterSettlement{}, &QueryError{Op: "payments", UserID: userID, Quarter: q.Index, Err: err}
	}
	for _, p := range payments {
		result.AmountPaid = result.AmountPaid.Add(p.Amount)
	}

	if today.DayAfter(q.End) {
		result.FinalAmountOwed = result.MinutesOwed.
			Sub(decimal.NewFromInt(result.MinutesChazered)).
			Sub(result.AmountPaid)
	}

	e.Logger.Debug("quarter settled",
		zap.String("user_id", string(userID)),
		zap.Int("quarter", q.Index),
		zap.Int("sessions", len(sessions)),
		zap.Int("payments", len(payments)),
		zap.String("minutes_owed", result.MinutesOwed.String()),
		zap.Int64("minutes_chazered", result.MinutesChazered),
	)
	return result, nil
}
