/*
store.go - Persistence interfaces consumed by the engine

PURPOSE:
  Defines the boundary between the settlement logic and the database.
  The engine itself only reads; writes go through Tracker, which
  validates before delegating.

KEY INTERFACES:
  ObligationReader / SessionReader / PaymentReader: what the engine needs
  Reader:        all three, what NewEngine takes
  YearCatalog:   Jewish year catalog
  SessionStore:  session CRUD
  PaymentStore:  payment reads and inserts
  Store:         everything a backing database provides

RANGE CONTRACT:
  SessionsBetween and PaymentsBetween are inclusive on both ends and compare
  full timestamps. Callers extend a date-only upper bound with EndOfDay.

IMPLEMENTATIONS:
  - chazarah/store/memory.go: In-memory for testing and dev
  - store/sqlite/sqlite.go: SQLite (default)
  - store/postgres/postgres.go: PostgreSQL
*/
package chazarah

import (
	"context"

	"github.com/chazarah/obligation-engine/generic"
)

// ObligationReader looks up a weekly rate.
type ObligationReader interface {
	// Obligation returns nil, nil when no row exists.
	Obligation(ctx context.Context, userID generic.UserID, yearID generic.YearID) (*Obligation, error)
}

// SessionReader returns sessions whose start time is in [from, to], ordered by start time.
type SessionReader interface {
	SessionsBetween(ctx context.Context, userID generic.UserID, from, to generic.TimePoint) ([]Session, error)
}

// PaymentReader returns payments dated in [from, to], ordered by date.
type PaymentReader interface {
	PaymentsBetween(ctx context.Context, userID generic.UserID, from, to generic.TimePoint) ([]Payment, error)
}

// Reader is the read surface the engine depends on.
type Reader interface {
	ObligationReader
	SessionReader
	PaymentReader
}

// YearCatalog stores Jewish years.
type YearCatalog interface {
	// Years lists years newest first.
	Years(ctx context.Context) ([]Year, error)
	// Year returns nil, nil when the year is unknown.
	Year(ctx context.Context, id generic.YearID) (*Year, error)
	// SaveYear inserts a year. Saving an identical year again is a no-op;
	// different dates for an existing year fail with generic.ErrConflict.
	SaveYear(ctx context.Context, y Year) error
}

// ObligationStore reads and sets weekly rates.
type ObligationStore interface {
	ObligationReader
	SaveObligation(ctx context.Context, o Obligation) error
}

// SessionStore is session CRUD. Writers assign an ID when Session.ID is empty.
type SessionStore interface {
	SessionReader
	Session(ctx context.Context, id string) (*Session, error)
	SessionsByYear(ctx context.Context, userID generic.UserID, yearID generic.YearID) ([]Session, error)
	CreateSession(ctx context.Context, s Session) (Session, error)
	UpdateSession(ctx context.Context, s Session) (Session, error)
	DeleteSession(ctx context.Context, id string) error
}

// PaymentStore reads and records payments.
type PaymentStore interface {
	PaymentReader
	PaymentsByYear(ctx context.Context, userID generic.UserID, yearID generic.YearID) ([]Payment, error)
	CreatePayment(ctx context.Context, p Payment) (Payment, error)
}

// Store is implemented by every backing database.
type Store interface {
	YearCatalog
	ObligationStore
	SessionStore
	PaymentStore

	Ping(ctx context.Context) error
	Close() error
}
