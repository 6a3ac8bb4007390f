/*
Package sqlite provides a SQLite-backed implementation of chazarah.Store.

PURPOSE:
  Persists the year catalog, obligations, sessions and payments. The engine
  only reads from it; writes arrive through chazarah.Tracker after validation.

KEY TABLES:
  years:       Jewish year catalog, inclusive date range
  obligations: Weekly rate per (user, year)
  sessions:    Logged study sessions, start time + length in ms
  payments:    Payments per user

CIVIL TIME:
  Timestamps are stored as "YYYY-MM-DD HH:mm:ss" text with no zone. The
  format sorts lexicographically, so range queries compare strings directly.
  Payment dates are stored at midnight in the same format.

DECIMALS:
  Rates and amounts are stored as decimal strings and parsed with
  shopspring/decimal. Sums are done in Go, never in SQL floats.

INDEXES:
  - idx_sessions_user_start: settlement range query (hot path)
  - idx_payments_user_date:  settlement range query (hot path)
  - idx_sessions_user_year / idx_payments_user_year: per-year listings

CONCURRENCY:
  Uses sync.RWMutex for thread-safety, the same way for every table.

USAGE:
  store, err := sqlite.New("./data/chazarah.db")
  if err != nil {
      log.Fatal(err)
  }
  defer store.Close()

  engine := chazarah.NewEngine(store, nil, logger)

SEE ALSO:
  - chazarah/store.go: Interface definitions
  - chazarah/store/memory.go: In-memory implementation for testing
  - store/postgres/postgres.go: PostgreSQL implementation
*/
package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	_ "github.com/mattn/go-sqlite3"
	"github.com/shopspring/decimal"

	"github.com/chazarah/obligation-engine/chazarah"
	"github.com/chazarah/obligation-engine/generic"
)

// Store implements chazarah.Store using SQLite.
type Store struct {
	db *sql.DB
	mu sync.RWMutex
}

var _ chazarah.Store = (*Store)(nil)

// New creates a new SQLite store with the given database path.
// Use ":memory:" for an in-memory database.
func New(dbPath string) (*Store, error) {
	db, err := sql.Open("sqlite3", dbPath+"?_foreign_keys=on&_journal_mode=WAL")
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	if dbPath == ":memory:" {
		// Each connection would otherwise get its own empty database.
		db.SetMaxOpenConns(1)
	}

	store := &Store{db: db}
	if err := store.migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to migrate database: %w", err)
	}

	return store, nil
}

// Close closes the database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

// Ping checks the database connection.
func (s *Store) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

// migrate creates the database schema.
func (s *Store) migrate() error {
	schema := `
	CREATE TABLE IF NOT EXISTS years (
		jewish_year INTEGER PRIMARY KEY,
		start_date TEXT NOT NULL,
		end_date TEXT NOT NULL
	);

	CREATE TABLE IF NOT EXISTS obligations (
		user_id TEXT NOT NULL,
		year_id INTEGER NOT NULL REFERENCES years(jewish_year),
		minutes_per_week TEXT NOT NULL,
		updated_at TEXT NOT NULL,
		PRIMARY KEY (user_id, year_id)
	);

	CREATE TABLE IF NOT EXISTS sessions (
		id TEXT PRIMARY KEY,
		user_id TEXT NOT NULL,
		year_id INTEGER NOT NULL REFERENCES years(jewish_year),
		start_time TEXT NOT NULL,
		duration_ms INTEGER NOT NULL CHECK (duration_ms >= 0),
		note TEXT,
		created_at TEXT NOT NULL
	);

	CREATE INDEX IF NOT EXISTS idx_sessions_user_start
		ON sessions(user_id, start_time);
	CREATE INDEX IF NOT EXISTS idx_sessions_user_year
		ON sessions(user_id, year_id, start_time);

	CREATE TABLE IF NOT EXISTS payments (
		id TEXT PRIMARY KEY,
		user_id TEXT NOT NULL,
		year_id INTEGER NOT NULL REFERENCES years(jewish_year),
		amount TEXT NOT NULL,
		payment_date TEXT NOT NULL,
		created_at TEXT NOT NULL
	);

	CREATE INDEX IF NOT EXISTS idx_payments_user_date
		ON payments(user_id, payment_date);
	CREATE INDEX IF NOT EXISTS idx_payments_user_year
		ON payments(user_id, year_id, payment_date);
	`

	_, err := s.db.Exec(schema)
	return err
}

// =============================================================================
// YEAR CATALOG
// =============================================================================

// SaveYear inserts a year. An identical existing year is left as is; one
// with different dates is a conflict.
func (s *Store) SaveYear(ctx context.Context, y chazarah.Year) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	query := `
		INSERT INTO years (jewish_year, start_date, end_date)
		VALUES (?, ?, ?)
		ON CONFLICT(jewish_year) DO NOTHING
	`
	res, err := s.db.ExecContext(ctx, query, int(y.JewishYear), y.StartDate.String(), y.EndDate.String())
	if err != nil {
		return fmt.Errorf("failed to save year: %w", err)
	}
	if n, err := res.RowsAffected(); err != nil || n > 0 {
		return err
	}

	existing, err := s.year(ctx, y.JewishYear)
	if err != nil {
		return err
	}
	if existing != nil && !existing.SameRange(y) {
		return fmt.Errorf("year %d: %w", y.JewishYear, generic.ErrConflict)
	}
	return nil
}

// Year retrieves a year by number.
func (s *Store) Year(ctx context.Context, id generic.YearID) (*chazarah.Year, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.year(ctx, id)
}

func (s *Store) year(ctx context.Context, id generic.YearID) (*chazarah.Year, error) {
	var start, end string
	err := s.db.QueryRowContext(ctx,
		"SELECT start_date, end_date FROM years WHERE jewish_year = ?",
		int(id),
	).Scan(&start, &end)

	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get year: %w", err)
	}

	y := chazarah.Year{JewishYear: id}
	if y.StartDate, err = generic.ParseTimePoint(start); err != nil {
		return nil, err
	}
	if y.EndDate, err = generic.ParseTimePoint(end); err != nil {
		return nil, err
	}
	return &y, nil
}

// Years returns all years, newest first.
func (s *Store) Years(ctx context.Context) ([]chazarah.Year, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rows, err := s.db.QueryContext(ctx,
		"SELECT jewish_year, start_date, end_date FROM years ORDER BY jewish_year DESC",
	)
	if err != nil {
		return nil, fmt.Errorf("failed to list years: %w", err)
	}
	defer rows.Close()

	years := []chazarah.Year{}
	for rows.Next() {
		var (
			id         int
			start, end string
		)
		if err := rows.Scan(&id, &start, &end); err != nil {
			return nil, err
		}
		y := chazarah.Year{JewishYear: generic.YearID(id)}
		if y.StartDate, err = generic.ParseTimePoint(start); err != nil {
			return nil, err
		}
		if y.EndDate, err = generic.ParseTimePoint(end); err != nil {
			return nil, err
		}
		years = append(years, y)
	}
	return years, rows.Err()
}

// =============================================================================
// OBLIGATIONS
// =============================================================================

// SaveObligation sets the weekly rate for a user and year.
func (s *Store) SaveObligation(ctx context.Context, o chazarah.Obligation) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	query := `
		INSERT INTO obligations (user_id, year_id, minutes_per_week, updated_at)
		VALUES (?, ?, ?, ?)
		ON CONFLICT(user_id, year_id) DO UPDATE SET
			minutes_per_week = excluded.minutes_per_week,
			updated_at = excluded.updated_at
	`
	_, err := s.db.ExecContext(ctx, query,
		string(o.UserID), int(o.YearID), o.MinutesPerWeek.String(),
		time.Now().UTC().Format(time.RFC3339),
	)
	if err != nil {
		return fmt.Errorf("failed to save obligation: %w", err)
	}
	return nil
}

// Obligation returns nil, nil when the user has no obligation for the year.
func (s *Store) Obligation(ctx context.Context, userID generic.UserID, yearID generic.YearID) (*chazarah.Obligation, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var rate string
	err := s.db.QueryRowContext(ctx,
		"SELECT minutes_per_week FROM obligations WHERE user_id = ? AND year_id = ?",
		string(userID), int(yearID),
	).Scan(&rate)

	if err == sql.ErrNoRows {
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

const sessionColumns = "id, user_id, year_id, start_time, duration_ms, note"

// CreateSession inserts a session, assigning an ID if it has none.
func (s *Store) CreateSession(ctx context.Context, sess chazarah.Session) (chazarah.Session, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if sess.ID == "" {
		sess.ID = uuid.NewString()
	}

	query := `
		INSERT INTO sessions (id, user_id, year_id, start_time, duration_ms, note, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)
	`
	_, err := s.db.ExecContext(ctx, query,
		sess.ID, string(sess.UserID), int(sess.YearID), sess.StartTime.String(),
		sess.DurationMs, nullString(sess.Note),
		time.Now().UTC().Format(time.RFC3339),
	)
	if err != nil {
		return chazarah.Session{}, fmt.Errorf("failed to create session: %w", err)
	}
	return sess, nil
}

// UpdateSession replaces start time, length and note.
func (s *Store) UpdateSession(ctx context.Context, sess chazarah.Session) (chazarah.Session, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	res, err := s.db.ExecContext(ctx,
		"UPDATE sessions SET start_time = ?, duration_ms = ?, note = ? WHERE id = ?",
		sess.StartTime.String(), sess.DurationMs, nullString(sess.Note), sess.ID,
	)
	if err != nil {
		return chazarah.Session{}, fmt.Errorf("failed to update session: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return chazarah.Session{}, fmt.Errorf("session %s: %w", sess.ID, generic.ErrNotFound)
	}
	return sess, nil
}

// DeleteSession removes a session.
func (s *Store) DeleteSession(ctx context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	res, err := s.db.ExecContext(ctx, "DELETE FROM sessions WHERE id = ?", id)
	if err != nil {
		return fmt.Errorf("failed to delete session: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fmt.Errorf("session %s: %w", id, generic.ErrNotFound)
	}
	return nil
}

// Session retrieves a session by ID.
func (s *Store) Session(ctx context.Context, id string) (*chazarah.Session, error) {
	sessions, err := s.querySessions(ctx,
		"SELECT "+sessionColumns+" FROM sessions WHERE id = ?", id)
	if err != nil || len(sessions) == 0 {
		return nil, err
	}
	return &sessions[0], nil
}

// SessionsByYear returns a user's sessions for a year, oldest first.
func (s *Store) SessionsByYear(ctx context.Context, userID generic.UserID, yearID generic.YearID) ([]chazarah.Session, error) {
	return s.querySessions(ctx, `
		SELECT `+sessionColumns+` FROM sessions
		WHERE user_id = ? AND year_id = ?
		ORDER BY start_time ASC
	`, string(userID), int(yearID))
}

// SessionsBetween returns a user's sessions starting in [from, to].
func (s *Store) SessionsBetween(ctx context.Context, userID generic.UserID, from, to generic.TimePoint) ([]chazarah.Session, error) {
	return s.querySessions(ctx, `
		SELECT `+sessionColumns+` FROM sessions
		WHERE user_id = ? AND start_time >= ? AND start_time <= ?
		ORDER BY start_time ASC
	`, string(userID), from.String(), to.String())
}

func (s *Store) querySessions(ctx context.Context, query string, args ...any) ([]chazarah.Session, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query sessions: %w", err)
	}
	defer rows.Close()

	var sessions []chazarah.Session
	for rows.Next() {
		var (
			sess      chazarah.Session
			userID    string
			yearID    int
			startTime string
			note      sql.NullString
		)
		if err := rows.Scan(&sess.ID, &userID, &yearID, &startTime, &sess.DurationMs, &note); err != nil {
			return nil, fmt.Errorf("failed to scan session: %w", err)
		}
		sess.UserID = generic.UserID(userID)
		sess.YearID = generic.YearID(yearID)
		sess.Note = note.String
		if sess.StartTime, err = generic.ParseTimePoint(startTime); err != nil {
			return nil, err
		}
		sessions = append(sessions, sess)
	}
	return sessions, rows.Err()
}

// =============================================================================
// PAYMENTS
// =============================================================================

const paymentColumns = "id, user_id, year_id, amount, payment_date"

// CreatePayment inserts a payment, assigning an ID if it has none.
func (s *Store) CreatePayment(ctx context.Context, p chazarah.Payment) (chazarah.Payment, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if p.ID == "" {
		p.ID = uuid.NewString()
	}

	query := `
		INSERT INTO payments (id, user_id, year_id, amount, payment_date, created_at)
		VALUES (?, ?, ?, ?, ?, ?)
	`
	_, err := s.db.ExecContext(ctx, query,
		p.ID, string(p.UserID), int(p.YearID), p.Amount.String(), p.Date.String(),
		time.Now().UTC().Format(time.RFC3339),
	)
	if err != nil {
		return chazarah.Payment{}, fmt.Errorf("failed to create payment: %w", err)
	}
	return p, nil
}

// PaymentsByYear returns a user's payments for a year, oldest first.
func (s *Store) PaymentsByYear(ctx context.Context, userID generic.UserID, yearID generic.YearID) ([]chazarah.Payment, error) {
	return s.queryPayments(ctx, `
		SELECT `+paymentColumns+` FROM payments
		WHERE user_id = ? AND year_id = ?
		ORDER BY payment_date ASC
	`, string(userID), int(yearID))
}

// PaymentsBetween returns a user's payments dated in [from, to].
func (s *Store) PaymentsBetween(ctx context.Context, userID generic.UserID, from, to generic.TimePoint) ([]chazarah.Payment, error) {
	return s.queryPayments(ctx, `
		SELECT `+paymentColumns+` FROM payments
		WHERE user_id = ? AND payment_date >= ? AND payment_date <= ?
		ORDER BY payment_date ASC
	`, string(userID), from.String(), to.String())
}

func (s *Store) queryPayments(ctx context.Context, query string, args ...any) ([]chazarah.Payment, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rows, err := s.db.QueryContext(ctx, query, args...)
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
			paidOn string
		)
		if err := rows.Scan(&p.ID, &userID, &yearID, &amount, &paidOn); err != nil {
			return nil, fmt.Errorf("failed to scan payment: %w", err)
		}
		p.UserID = generic.UserID(userID)
		p.YearID = generic.YearID(yearID)
		if p.Amount, err = decimal.NewFromString(amount); err != nil {
			return nil, fmt.Errorf("failed to parse payment %s amount %q: %w", p.ID, amount, err)
		}
		if p.Date, err = generic.ParseTimePoint(paidOn); err != nil {
			return nil, err
		}
		payments = append(payments, p)
	}
	return payments, rows.Err()
}

// Helper functions

func nullString(s string) sql.NullString {
	if strings.TrimSpace(s) == "" {
		return sql.NullString{}
	}
	return sql.NullString{String: s, Valid: true}
}
