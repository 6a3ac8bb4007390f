/*
Package postgres provides a PostgreSQL implementation of chazarah.Store on pgx.

Same tables and semantics as store/sqlite. Timestamps are TIMESTAMP WITHOUT
TIME ZONE holding the civil wall clock. Rates and amounts are NUMERIC, bound
and read back as text so shopspring/decimal never passes through a float.

USAGE:
  store, err := postgres.New(ctx, os.Getenv("DATABASE_URL"))
  if err != nil {
      log.Fatal(err)
  }
  defer store.Close()
*/
package postgres

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"

	"github.com/chazarah/obligation-engine/chazarah"
	"github.com/chazarah/obligation-engine/generic"
)

// Store implements chazarah.Store using a pgx connection pool.
type Store struct {
	pool *pgxpool.Pool
}

var _ chazarah.Store = (*Store)(nil)

// New connects, pings and applies the schema.
func New(ctx context.Context, dsn string) (*Store, error) {
	pool, err := pgxpool.New(ctx, dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open pool: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	store := &Store{pool: pool}
	if err := store.migrate(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("failed to migrate database: %w", err)
	}
	return store, nil
}

func (s *Store) Close() error {
	s.pool.Close()
	return nil
}

func (s *Store) Ping(ctx context.Context) error {
	return s.pool.Ping(ctx)
}

func (s *Store) migrate(ctx context.Context) error {
	_, err := s.pool.Exec(ctx, `
		CREATE TABLE IF NOT EXISTS years (
			jewish_year INTEGER PRIMARY KEY,
			start_date TIMESTAMP NOT NULL,
			end_date TIMESTAMP NOT NULL
		);

		CREATE TABLE IF NOT EXISTS obligations (
			user_id TEXT NOT NULL,
			year_id INTEGER NOT NULL REFERENCES years(jewish_year),
			minutes_per_week NUMERIC NOT NULL,
			updated_at TIMESTAMPTZ NOT NULL DEFAULT now(),
			PRIMARY KEY (user_id, year_id)
		);

		CREATE TABLE IF NOT EXISTS sessions (
			id TEXT PRIMARY KEY,
			user_id TEXT NOT NULL,
			year_id INTEGER NOT NULL REFERENCES years(jewish_year),
			start_time TIMESTAMP NOT NULL,
			duration_ms BIGINT NOT NULL CHECK (duration_ms >= 0),
			note TEXT,
			created_at TIMESTAMPTZ NOT NULL DEFAULT now()
		);
		CREATE INDEX IF NOT EXISTS idx_sessions_user_start ON sessions(user_id, start_time);
		CREATE INDEX IF NOT EXISTS idx_sessions_user_year ON sessions(user_id, year_id, start_time);

		CREATE TABLE IF NOT EXISTS payments (
			id TEXT PRIMARY KEY,
			user_id TEXT NOT NULL,
			year_id INTEGER NOT NULL REFERENCES years(jewish_year),
			amount NUMERIC NOT NULL,
			payment_date TIMESTAMP NOT NULL,
			created_at TIMESTAMPTZ NOT NULL DEFAULT now()
		);
		CREATE INDEX IF NOT EXISTS idx_payments_user_date ON payments(user_id, payment_date);
		CREATE INDEX IF NOT EXISTS idx_payments_user_year ON payments(user_id, year_id, payment_date);
	`)
	return err
}

// =============================================================================
// YEAR CATALOG
// =============================================================================

// SaveYear inserts a year. An identical existing year is left as is; one
// with different dates is a conflict.
func (s *Store) SaveYear(ctx context.Context, y chazarah.Year) error {
	tag, err := s.pool.Exec(ctx, `
		INSERT INTO years (jewish_year, start_date, end_date)
		VALUES ($1, $2, $3)
		ON CONFLICT (jewish_year) DO NOTHING
	`, int(y.JewishYear), y.StartDate.Time, y.EndDate.Time)
	if err != nil {
		return fmt.Errorf("failed to save year: %w", err)
	}
	if tag.RowsAffected() > 0 {
		return nil
	}

	existing, err := s.Year(ctx, y.JewishYear)
	if err != nil {
		return err
	}
	if existing != nil && !existing.SameRange(y) {
		return fmt.Errorf("year %d: %w", y.JewishYear, generic.ErrConflict)
	}
	return nil
}

func (s *Store) Year(ctx context.Context, id generic.YearID) (*chazarah.Year, error) {
	var start, end time.Time
	err := s.pool.QueryRow(ctx,
		`SELECT start_date, end_date FROM years WHERE jewish_year = $1`, int(id),
	).Scan(&start, &end)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get year: %w", err)
	}
	return &chazarah.Year{JewishYear: id, StartDate: generic.FromTime(start), EndDate: generic.FromTime(end)}, nil
}

func (s *Store) Years(ctx context.Context) ([]chazarah.Year, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT jewish_year, start_date, end_date FROM years ORDER BY jewish_year DESC`)
	if err != nil {
		return nil, fmt.Errorf("failed to list years: %w", err)
	}
	defer rows.Close()

	years := []chazarah.Year{}
	for rows.Next() {
		var (
			id         int
			start, end time.Time
		)
		if err := rows.Scan(&id, &start, &end); err != nil {
			return nil, err
		}
		years = append(years, chazarah.Year{
			JewishYear: generic.YearID(id),
			StartDate:  generic.FromTime(start),
			EndDate:    generic.FromTime(end),
		})
	}
	return years, rows.Err()
}

// =============================================================================
// OBLIGATIONS
// =============================================================================

func (s *Store) SaveObligation(ctx context.Context, o chazarah.Obligation) error {
	_, err := s.pool.Exec(ctx, `
		INSERT INTO obligations (user_id, year_id, minutes_per_week)
		VALUES ($1, $2, $3::text::numeric)
		ON CONFLICT (user_id, year_id) DO UPDATE SET
			minutes_per_week = EXCLUDED.minutes_per_week,
			updated_at = now()
	`, string(o.UserID), int(o.YearID), o.MinutesPerWeek.String())
	if err != nil {
		return fmt.Errorf("failed to save obligation: %w", err)
	}
	return nil
}

func (s *Store) Obligation(ctx context.Context, userID generic.UserID, yearID generic.YearID) (*chazarah.Obligation, error) {
	var rate string
	err := s.pool.QueryRow(ctx,
		`SELECT minutes_per_week::text FROM obligations WHERE user_id = $1 AND year_id = $2`,
		string(userID), int(yearID),
	).Scan(&rate)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get obligation: %w", err)
	}
	minutes, err := decimal.NewFromString(rate)
	if err != nil {
		return nil, fmt.Errorf("failed to parse obligation rate %q: %w", rate, err)
	}

	return &chazarah.Obligation{
		UserID:         userID,
		YearID:         yearID,
		MinutesPerWeek: minutes,
	}, nil
}

// =============================================================================
// SESSIONS
// =============================================================================

const sessionColumns = "id, user_id, year_id, start_time, duration_ms, COALESCE(note, '')"

func (s *Store) CreateSession(ctx context.Context, sess chazarah.Session) (chazarah.Session, error) {
	if sess.ID == "" {
		sess.ID = uuid.NewString()
	}
	_, err := s.pool.Exec(ctx, `
		INSERT INTO sessions (id, user_id, year_id, start_time, duration_ms, note)
		VALUES ($1, $2, $3, $4, $5, $6)
	`, sess.ID, string(sess.UserID), int(sess.YearID), sess.StartTime.Time, sess.DurationMs, nullable(sess.Note))
	if err != nil {
		return chazarah.Session{}, fmt.Errorf("failed to create session: %w", err)
	}
	return sess, nil
}

func (s *Store) UpdateSession(ctx context.Context, sess chazarah.Session) (chazarah.Session, error) {
	tag, err := s.pool.Exec(ctx,
		`UPDATE sessions SET start_time = $1, duration_ms = $2, note = $3 WHERE id = $4`,
		sess.StartTime.Time, sess.DurationMs, nullable(sess.Note), sess.ID,
	)
	if err != nil {
		return chazarah.Session{}, fmt.Errorf("failed to update session: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return chazarah.Session{}, fmt.Errorf("session %s: %w", sess.ID, generic.ErrNotFound)
	}
	return sess, nil
}

func (s *Store) DeleteSession(ctx context.Context, id string) error {
	tag, err := s.pool.Exec(ctx, `DELETE FROM sessions WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("failed to delete session: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("session %s: %w", id, generic.ErrNotFound)
	}
	return nil
}

func (s *Store) Session(ctx context.Context, id string) (*chazarah.Session, error) {
	sessions, err := s.querySessions(ctx,
		`SELECT `+sessionColumns+` FROM sessions WHERE id = $1`, id)
	if err != nil || len(sessions) == 0 {
		return nil, err
	}
	return &sessions[0], nil
}

func (s *Store) SessionsByYear(ctx context.Context, userID generic.UserID, yearID generic.YearID) ([]chazarah.Session, error) {
	return s.querySessions(ctx, `
		SELECT `+sessionColumns+` FROM sessions
		WHERE user_id = $1 AND year_id = $2
		ORDER BY start_time ASC
	`, string(userID), int(yearID))
}

func (s *Store) SessionsBetween(ctx context.Context, userID generic.UserID, from, to generic.TimePoint) ([]chazarah.Session, error) {
	return s.querySessions(ctx, `
		SELECT `+sessionColumns+` FROM sessions
		WHERE user_id = $1 AND start_time >= $2 AND start_time <= $3
		ORDER BY start_time ASC
	`, string(userID), from.Time, to.Time)
}

func (s *Store) querySessions(ctx context.Context, query string, args ...any) ([]chazarah.Session, error) {
	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query sessions: %w", err)
	}
	defer rows.Close()

	var sessions []chazarah.Session
	for rows.Next() {
		var (
			sess   chazarah.Session
			userID string
			yearID int
			start  time.Time
		)
		if err := rows.Scan(&sess.ID, &userID, &yearID, &start, &sess.DurationMs, &sess.Note); err != nil {
			return nil, fmt.Errorf("failed to scan session: %w", err)
		}
		sess.UserID = generic.UserID(userID)
		sess.YearID = generic.YearID(yearID)
		sess.StartTime = generic.FromTime(start)
		sessions = append(sessions, sess)
	}
	return sessions, rows.Err()
}

// =============================================================================
// PAYMENTS
// =============================================================================

const paymentColumns = "id, user_id, year_id, amount::text, payment_date"

func (s *Store) CreatePayment(ctx context.Context, p chazarah.Payment) (chazarah.Payment, error) {
	if p.ID == "" {
		p.ID = uuid.NewString()
	}
	_, err := s.pool.Exec(ctx, `
		INSERT INTO payments (id, user_id, year_id, amount, payment_date)
		VALUES ($1, $2, $3, $4::text::numeric, $5)
	`, p.ID, string(p.UserID), int(p.YearID), p.Amount.String(), p.Date.Time)
	if err != nil {
		return chazarah.Payment{}, fmt.Errorf("failed to create payment: %w", err)
	}
	return p, nil
}

func (s *Store) PaymentsByYear(ctx context.Context, userID generic.UserID, yearID generic.YearID) ([]chazarah.Payment, error) {
	return s.queryPayments(ctx, `
		SELECT `+paymentColumns+` FROM payments
		WHERE user_id = $1 AND year_id = $2
		ORDER BY payment_date ASC
	`, string(userID), int(yearID))
}

func (s *Store) PaymentsBetween(ctx context.Context, userID generic.UserID, from, to generic.TimePoint) ([]chazarah.Payment, error) {
	return s.queryPayments(ctx, `
		SELECT `+paymentColumns+` FROM payments
		WHERE user_id = $1 AND payment_date >= $2 AND payment_date <= $3
		ORDER BY payment_date ASC
	`, string(userID), from.Time, to.Time)
}

func (s *Store) queryPayments(ctx context.Context, query string, args ...any) ([]chazarah.Payment, error) {
	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query payments: %w", err)
	}
	defer rows.Close()

	var payments []chazarah.Payment
	for rows.Next() {
		var (
			p      chazarah.Payment
			userID string
			yearID int
			amount string
			paidOn time.Time
		)
		if err := rows.Scan(&p.ID, &userID, &yearID, &amount, &paidOn); err != nil {
			return nil, fmt.Errorf("failed to scan payment: %w", err)
		}
		p.UserID = generic.UserID(userID)
		p.YearID = generic.YearID(yearID)
		if p.Amount, err = decimal.NewFromString(amount); err != nil {
			return nil, fmt.Errorf("failed to parse payment %s amount %q: %w", p.ID, amount, err)
		}
		p.Date = generic.FromTime(paidOn)
		payments = append(payments, p)
	}
	return payments, rows.Err()
}

// nullable maps blank notes to SQL NULL.
func nullable(s string) *string {
	if strings.TrimSpace(s) == "" {
		return nil
	}
	return &s
}
