package chazarah

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/chazarah/obligation-engine/generic"
)

// ValidateSession checks a session against the year it claims to belong to.
// The year's last day counts through 23:59:59.
func ValidateSession(s Session, y Year) error {
	if s.StartTime.IsZero() {
		return fmt.Errorf("%w: start time is required", generic.ErrInvalidSession)
	}
	if s.DurationMs < 0 {
		return fmt.Errorf("%w: negative length %dms", generic.ErrInvalidSession, s.DurationMs)
	}
	if !y.Valid() {
		return fmt.Errorf("year %d: %w", y.JewishYear, generic.ErrMalformedYear)
	}
	if !y.Period().Contains(s.StartTime) {
		return &InvalidSessionError{StartTime: s.StartTime, Year: y}
	}
	return nil
}

// ValidatePayment rejects negative amounts and undated payments.
func ValidatePayment(p Payment) error {
	if p.Amount.IsNegative() {
		return fmt.Errorf("%w: negative amount %s", generic.ErrInvalidPayment, p.Amount)
	}
	if p.Date.IsZero() {
		return fmt.Errorf("%w: date is required", generic.ErrInvalidPayment)
	}
	return nil
}

// =============================================================================
// TRACKER - Validated writes
// =============================================================================

// Tracker is the write path for sessions and payments. Every write is
// validated against the year catalog before it reaches the store, so the
// settlement math can assume sessions sit inside their year.
type Tracker struct {
	Years       YearCatalog
	Obligations ObligationStore
	Sessions    SessionStore
	Payments    PaymentStore
	Logger      *zap.Logger
}

func NewTracker(store Store, logger *zap.Logger) *Tracker {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Tracker{Years: store, Obligations: store, Sessions: store, Payments: store, Logger: logger}
}

func (t *Tracker) year(ctx context.Context, id generic.YearID) (Year, error) {
	y, err := t.Years.Year(ctx, id)
	if err != nil {
		return Year{}, err
	}
	if y == nil {
		return Year{}, fmt.Errorf("year %d: %w", id, generic.ErrNotFound)
	}
	return *y, nil
}

// CreateSession validates and stores a new session.
func (t *Tracker) CreateSession(ctx context.Context, s Session) (Session, error) {
	y, err := t.year(ctx, s.YearID)
	if err != nil {
		return Session{}, err
	}
	if err := ValidateSession(s, y); err != nil {
		t.Logger.Info("session rejected", zap.String("user_id", string(s.UserID)), zap.Error(err))
		return Session{}, err
	}
	return t.Sessions.CreateSession(ctx, s)
}

// UpdateSession replaces the start time, length and note of an existing
// session owned by s.UserID. The session's year does not change.
func (t *Tracker) UpdateSession(ctx context.Context, s Session) (Session, error) {
	existing, err := t.Sessions.Session(ctx, s.ID)
	if err != nil {
		return Session{}, err
	}
	if existing == nil || existing.UserID != s.UserID {
		return Session{}, fmt.Errorf("session %s: %w", s.ID, generic.ErrNotFound)
	}
	s.YearID = existing.YearID

	y, err := t.year(ctx, s.YearID)
	if err != nil {
		return Session{}, err
	}
	if err := ValidateSession(s, y); err != nil {
		t.Logger.Info("session update rejected", zap.String("session_id", s.ID), zap.Error(err))
		return Session{}, err
	}
	return t.Sessions.UpdateSession(ctx, s)
}

// DeleteSession removes a session owned by userID.
func (t *Tracker) DeleteSession(ctx context.Context, userID generic.UserID, id string) error {
	existing, err := t.Sessions.Session(ctx, id)
	if err != nil {
		return err
	}
	if existing == nil || existing.UserID != userID {
		return fmt.Errorf("session %s: %w", id, generic.ErrNotFound)
	}
	return t.Sessions.DeleteSession(ctx, id)
}

// RecordPayment validates and stores a payment for a known year.
func (t *Tracker) RecordPayment(ctx context.Context, p Payment) (Payment, error) {
	if _, err := t.year(ctx, p.YearID); err != nil {
		return Payment{}, err
	}
	if err := ValidatePayment(p); err != nil {
		return Payment{}, err
	}
	return t.Payments.CreatePayment(ctx, p)
}

// SetObligation sets a user's weekly rate for a known year.
func (t *Tracker) SetObligation(ctx context.Context, o Obligation) (Obligation, error) {
	if _, err := t.year(ctx, o.YearID); err != nil {
		return Obligation{}, err
	}
	if o.MinutesPerWeek.IsNegative() {
		return Obligation{}, fmt.Errorf("%w: rate %s is negative", generic.ErrInvalidObligation, o.MinutesPerWeek)
	}
	o.Defaulted = false
	if err := t.Obligations.SaveObligation(ctx, o); err != nil {
		return Obligation{}, err
	}
	return o, nil
}

// CreateYear adds a year to the catalog. Years whose start is not before
// their end are rejected, and an existing year's dates cannot be changed:
// sessions were validated against them.
func (t *Tracker) CreateYear(ctx context.Context, y Year) error {
	if !y.Valid() {
		return fmt.Errorf("year %d: %w", y.JewishYear, generic.ErrMalformedYear)
	}
	return t.Years.SaveYear(ctx, y)
}
