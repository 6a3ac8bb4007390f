package chazarah

import (
	"context"
	"sort"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/chazarah/obligation-engine/generic"
)

// Obligation returns the user's weekly rate for a year. A missing row
// resolves to a zero rate with Defaulted set; only a failed read is an error.
func (e *Engine) Obligation(ctx context.Context, userID generic.UserID, yearID generic.YearID) (Obligation, error) {
	ob, err := e.Obligations.Obligation(ctx, userID, yearID)
	if err != nil {
		return Obligation{}, &QueryError{Op: "obligation", UserID: userID, Err: err}
	}
	if ob == nil {
		e.Logger.Info("no obligation on record, using zero rate",
			zap.String("user_id", string(userID)),
			zap.Int("year", int(yearID)),
		)
		return ZeroObligation(userID, yearID), nil
	}
	return *ob, nil
}

// UserQuarters returns the user's settlements for every quarter of the year,
// ordered by quarter index. A malformed year yields an empty slice.
func (e *Engine) UserQuarters(ctx context.Context, userID generic.UserID, y Year) ([]QuarterSettlement, error) {
	r, err := e.Report(ctx, userID, y)
	if err != nil {
		return nil, err
	}
	return r.Quarters, nil
}

// Report settles all quarters of a year concurrently. The first failing
// quarter cancels the rest and its error is returned; a cancelled ctx
// discards whatever was computed. A year with no quarters reads nothing.
func (e *Engine) Report(ctx context.Context, userID generic.UserID, y Year) (Report, error) {
	quarters := Partition(y)
	if len(quarters) == 0 {
		e.Logger.Warn("year has no quarters",
			zap.Int("year", int(y.JewishYear)),
			zap.String("start", y.StartDate.String()),
			zap.String("end", y.EndDate.String()),
		)
		return Report{
			UserID:     userID,
			Year:       y,
			Obligation: Obligation{UserID: userID, YearID: y.JewishYear, MinutesPerWeek: decimal.Zero},
			Quarters:   []QuarterSettlement{},
		}, nil
	}

	ob, err := e.Obligation(ctx, userID, y.JewishYear)
	if err != nil {
		return Report{}, err
	}
	report := Report{UserID: userID, Year: y, Obligation: ob}

	settled := make([]QuarterSettlement, len(quarters))
	g, gctx := errgroup.WithContext(ctx)
	for i, q := range quarters {
		i, q := i, q
		g.Go(func() error {
			s, err := e.Settle(gctx, userID, q, ob)
			if err != nil {
				return err
			}
			settled[i] = s
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return Report{}, err
	}
	if err := ctx.Err(); err != nil {
		return Report{}, err
	}

	sort.Slice(settled, func(i, j int) bool { return settled[i].Index < settled[j].Index })
	report.Quarters = settled
	return report, nil
}
