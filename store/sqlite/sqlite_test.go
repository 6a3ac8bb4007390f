package sqlite_test

import (
	"context"
	"database/sql"
	"path/filepath"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/chazarah/obligation-engine/chazarah"
	"github.com/chazarah/obligation-engine/generic"
	"github.com/chazarah/obligation-engine/store/sqlite"
)

// =============================================================================
// TEST SETUP
// =============================================================================

func newTestStore(t *testing.T) *sqlite.Store {
	store, err := sqlite.New(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })

	require.NoError(t, store.SaveYear(context.Background(), year5785()))
	return store
}

func year5785() chazarah.Year {
	return chazarah.Year{
		JewishYear: 5785,
		StartDate:  generic.NewDate(2024, time.September, 15),
		EndDate:    generic.NewDate(2025, time.September, 15),
	}
}

// =============================================================================
// YEAR / OBLIGATION TESTS
// =============================================================================

func TestStore_Years_NewestFirst(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	require.NoError(t, store.SaveYear(ctx, chazarah.Year{
		JewishYear: 5786,
		StartDate:  generic.NewDate(2025, time.September, 16),
		EndDate:    generic.NewDate(2026, time.September, 11),
	}))

	years, err := store.Years(ctx)
	require.NoError(t, err)
	require.Len(t, years, 2)
	assert.Equal(t, generic.YearID(5786), years[0].JewishYear)
	assert.Equal(t, year5785(), years[1])

	missing, err := store.Year(ctx, 5700)
	require.NoError(t, err)
	assert.Nil(t, missing)
}

func TestStore_SaveYear_KeepsExistingDates(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	require.NoError(t, store.SaveYear(ctx, year5785()))

	moved := year5785()
	moved.EndDate = generic.NewDate(2025, time.September, 20)
	assert.ErrorIs(t, store.SaveYear(ctx, moved), generic.ErrConflict)

	got, err := store.Year(ctx, 5785)
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, year5785(), *got)
}

func TestStore_Obligation(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	// Missing row is nil, not an error
	ob, err := store.Obligation(ctx, "user-1", 5785)
	require.NoError(t, err)
	assert.Nil(t, ob)

	require.NoError(t, store.SaveObligation(ctx, chazarah.Obligation{
		UserID: "user-1", YearID: 5785, MinutesPerWeek: decimal.RequireFromString("52.5"),
	}))
	require.NoError(t, store.SaveObligation(ctx, chazarah.Obligation{
		UserID: "user-1", YearID: 5785, MinutesPerWeek: decimal.NewFromInt(60),
	}))

	ob, err = store.Obligation(ctx, "user-1", 5785)
	require.NoError(t, err)
	require.NotNil(t, ob)
	assert.True(t, decimal.NewFromInt(60).Equal(ob.MinutesPerWeek))
	assert.False(t, ob.Defaulted)
}

// =============================================================================
// SESSION TESTS
// =============================================================================

func TestStore_SessionsBetween_InclusiveToTheSecond(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	for _, at := range []generic.TimePoint{
		generic.NewTimePoint(2025, time.January, 1, 0, 0, 0),
		generic.NewTimePoint(2025, time.January, 5, 23, 59, 59),
		generic.NewTimePoint(2025, time.January, 6, 0, 0, 0),
		generic.NewTimePoint(2024, time.December, 31, 23, 59, 59),
	} {
		_, err := store.CreateSession(ctx, chazarah.Session{
			UserID: "user-1", YearID: 5785, StartTime: at, DurationMs: 60_000,
		})
		require.NoError(t, err)
	}

	sessions, err := store.SessionsBetween(ctx, "user-1",
		generic.NewDate(2025, time.January, 1), generic.NewDate(2025, time.January, 5).EndOfDay())
	require.NoError(t, err)
	require.Len(t, sessions, 2)
	assert.Equal(t, "2025-01-01 00:00:00", sessions[0].StartTime.String())
	assert.Equal(t, "2025-01-05 23:59:59", sessions[1].StartTime.String())

	other, err := store.SessionsBetween(ctx, "user-2",
		generic.NewDate(2024, time.January, 1), generic.NewDate(2026, time.January, 1))
	require.NoError(t, err)
	assert.Empty(t, other)
}

func TestStore_SessionLifecycle(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	created, err := store.CreateSession(ctx, chazarah.Session{
		UserID:     "user-1",
		YearID:     5785,
		StartTime:  generic.NewTimePoint(2025, time.March, 2, 21, 15, 0),
		DurationMs: 1_234_567,
		Note:       "Mishnah Berurah",
	})
	require.NoError(t, err)
	require.NotEmpty(t, created.ID)

	got, err := store.Session(ctx, created.ID)
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, created, *got)

	created.DurationMs = 600_000
	created.Note = ""
	_, err = store.UpdateSession(ctx, created)
	require.NoError(t, err)

	byYear, err := store.SessionsByYear(ctx, "user-1", 5785)
	require.NoError(t, err)
	require.Len(t, byYear, 1)
	assert.Equal(t, int64(600_000), byYear[0].DurationMs)
	assert.Empty(t, byYear[0].Note)

	require.NoError(t, store.DeleteSession(ctx, created.ID))
	assert.ErrorIs(t, store.DeleteSession(ctx, created.ID), generic.ErrNotFound)

	_, err = store.UpdateSession(ctx, created)
	assert.ErrorIs(t, err, generic.ErrNotFound)

	gone, err := store.Session(ctx, created.ID)
	require.NoError(t, err)
	assert.Nil(t, gone)
}

func TestStore_NegativeDurationRejected(t *testing.T) {
	store := newTestStore(t)

	_, err := store.CreateSession(context.Background(), chazarah.Session{
		UserID: "user-1", YearID: 5785, StartTime: generic.NewDate(2025, time.March, 2), DurationMs: -1,
	})
	assert.Error(t, err)
}

// =============================================================================
// PAYMENT TESTS
// =============================================================================

func TestStore_Payments(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	for _, p := range []struct {
		date   generic.TimePoint
		amount string
	}{
		{generic.NewDate(2025, time.February, 1), "10.10"},
		{generic.NewDate(2025, time.January, 1), "0.20"},
		{generic.NewDate(2025, time.March, 1), "99"},
	} {
		_, err := store.CreatePayment(ctx, chazarah.Payment{
			UserID: "user-1", YearID: 5785, Amount: decimal.RequireFromString(p.amount), Date: p.date,
		})
		require.NoError(t, err)
	}

	between, err := store.PaymentsBetween(ctx, "user-1",
		generic.NewDate(2025, time.January, 1), generic.NewDate(2025, time.February, 1).EndOfDay())
	require.NoError(t, err)
	require.Len(t, between, 2)
	assert.Equal(t, "2025-01-01", between[0].Date.DateString())
	assert.True(t, decimal.RequireFromString("10.10").Equal(between[1].Amount))

	all, err := store.PaymentsByYear(ctx, "user-1", 5785)
	require.NoError(t, err)
	assert.Len(t, all, 3)
}

// =============================================================================
// ENGINE OVER SQLITE
// =============================================================================

func TestStore_Engine_Year5785Scenario(t *testing.T) {
	// GIVEN: The 5785 scenario persisted in SQLite
	// WHEN: Building the report on 2025-01-10
	// THEN: Quarter 1 settles at 712

	store := newTestStore(t)
	ctx := context.Background()

	require.NoError(t, store.SaveObligation(ctx, chazarah.Obligation{
		UserID: "user-1", YearID: 5785, MinutesPerWeek: decimal.NewFromInt(60),
	}))
	tracker := chazarah.NewTracker(store, nil)
	_, err := tracker.CreateSession(ctx, chazarah.Session{
		UserID: "user-1", YearID: 5785, StartTime: generic.NewTimePoint(2024, time.October, 1, 20, 0, 0), DurationMs: 3_500_000,
	})
	require.NoError(t, err)
	_, err = tracker.RecordPayment(ctx, chazarah.Payment{
		UserID: "user-1", YearID: 5785, Amount: decimal.NewFromInt(10), Date: generic.NewDate(2024, time.December, 16),
	})
	require.NoError(t, err)

	engine := chazarah.NewEngine(store, generic.FixedClock{At: generic.NewDate(2025, time.January, 10)}, nil)
	quarters, err := engine.UserQuarters(ctx, "user-1", year5785())
	require.NoError(t, err)
	require.Len(t, quarters, 4)

	q1 := quarters[0]
	assert.True(t, decimal.NewFromInt(780).Equal(q1.MinutesOwed))
	assert.Equal(t, int64(58), q1.MinutesChazered)
	assert.True(t, decimal.NewFromInt(10).Equal(q1.AmountPaid))
	assert.True(t, decimal.NewFromInt(712).Equal(q1.FinalAmountOwed))
}

func TestStore_CorruptedDecimals_FailInsteadOfZero(t *testing.T) {
	// GIVEN: A 60/week obligation and a $10 payment whose stored text later
	//        stops being a number
	// WHEN: Reading them back and settling the year
	// THEN: Every read fails; nothing is reported as zero

	path := filepath.Join(t.TempDir(), "chazarah.db")
	store, err := sqlite.New(path)
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })

	ctx := context.Background()
	require.NoError(t, store.SaveYear(ctx, year5785()))
	require.NoError(t, store.SaveObligation(ctx, chazarah.Obligation{
		UserID: "user-1", YearID: 5785, MinutesPerWeek: decimal.NewFromInt(60),
	}))
	_, err = store.CreatePayment(ctx, chazarah.Payment{
		UserID: "user-1", YearID: 5785, Amount: decimal.NewFromInt(10), Date: generic.NewDate(2024, time.November, 1),
	})
	require.NoError(t, err)

	raw, err := sql.Open("sqlite3", path)
	require.NoError(t, err)
	defer raw.Close()

	_, err = raw.Exec(`UPDATE payments SET amount = 'ten'`)
	require.NoError(t, err)

	_, err = store.PaymentsByYear(ctx, "user-1", 5785)
	assert.Error(t, err)

	engine := chazarah.NewEngine(store, generic.FixedClock{At: generic.NewDate(2025, time.January, 10)}, nil)
	report, err := engine.Report(ctx, "user-1", year5785())
	var qErr *chazarah.QueryError
	require.ErrorAs(t, err, &qErr)
	assert.Equal(t, "payments", qErr.Op)
	assert.ErrorIs(t, err, generic.ErrQuery)
	assert.Empty(t, report.Quarters)

	_, err = raw.Exec(`UPDATE obligations SET minutes_per_week = '60 min'`)
	require.NoError(t, err)

	ob, err := store.Obligation(ctx, "user-1", 5785)
	assert.Error(t, err)
	assert.Nil(t, ob)

	_, err = engine.Report(ctx, "user-1", year5785())
	require.ErrorAs(t, err, &qErr)
	assert.Equal(t, "obligation", qErr.Op)
}
