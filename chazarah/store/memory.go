// Package store provides in-memory chazarah.Store implementations.
package store

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"github.com/google/uuid"

	"github.com/chazarah/obligation-engine/chazarah"
	"github.com/chazarah/obligation-engine/generic"
)

// =============================================================================
// MEMORY STORE - In-memory implementation (for testing/dev)
// =============================================================================

type Memory struct {
	mu          sync.RWMutex
	years       map[generic.YearID]chazarah.Year
	obligations map[key]chazarah.Obligation
	sessions    map[generic.UserID][]chazarah.Session // ordered by StartTime
	payments    map[generic.UserID][]chazarah.Payment // ordered by Date
}

type key struct {
	UserID generic.UserID
	YearID generic.YearID
}

func NewMemory() *Memory {
	return &Memory{
		years:       make(map[generic.YearID]chazarah.Year),
		obligations: make(map[key]chazarah.Obligation),
		sessions:    make(map[generic.UserID][]chazarah.Session),
		payments:    make(map[generic.UserID][]chazarah.Payment),
	}
}

var _ chazarah.Store = (*Memory)(nil)

func (m *Memory) Ping(context.Context) error { return nil }
func (m *Memory) Close() error               { return nil }

// =============================================================================
// YEARS
// =============================================================================

func (m *Memory) SaveYear(_ context.Context, y chazarah.Year) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if existing, ok := m.years[y.JewishYear]; ok {
		if !existing.SameRange(y) {
			return fmt.Errorf("year %d: %w", y.JewishYear, generic.ErrConflict)
		}
		return nil
	}
	m.years[y.JewishYear] = y
	return nil
}

func (m *Memory) Year(_ context.Context, id generic.YearID) (*chazarah.Year, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	y, ok := m.years[id]
	if !ok {
		return nil, nil
	}
	return &y, nil
}

func (m *Memory) Years(_ context.Context) ([]chazarah.Year, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	result := make([]chazarah.Year, 0, len(m.years))
	for _, y := range m.years {
		result = append(result, y)
	}
	sort.Slice(result, func(i, j int) bool { return result[i].JewishYear > result[j].JewishYear })
	return result, nil
}

// =============================================================================
// OBLIGATIONS
// =============================================================================

func (m *Memory) SaveObligation(_ context.Context, o chazarah.Obligation) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	o.Defaulted = false
	m.obligations[key{UserID: o.UserID, YearID: o.YearID}] = o
	return nil
}

func (m *Memory) Obligation(_ context.Context, userID generic.UserID, yearID generic.YearID) (*chazarah.Obligation, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	o, ok := m.obligations[key{UserID: userID, YearID: yearID}]
	if !ok {
		return nil, nil
	}
	return &o, nil
}

// =============================================================================
// SESSIONS
// =============================================================================

func (m *Memory) CreateSession(_ context.Context, s chazarah.Session) (chazarah.Session, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if s.ID == "" {
		s.ID = uuid.NewString()
	}
	m.insertSessionLocked(s)
	return s, nil
}

func (m *Memory) UpdateSession(_ context.Context, s chazarah.Session) (chazarah.Session, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if !m.removeSessionLocked(s.ID) {
		return chazarah.Session{}, generic.ErrNotFound
	}
	m.insertSessionLocked(s)
	return s, nil
}

func (m *Memory) DeleteSession(_ context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if !m.removeSessionLocked(id) {
		return generic.ErrNotFound
	}
	return nil
}

// insertSessionLocked keeps each user's sessions ordered by start time.
func (m *Memory) insertSessionLocked(s chazarah.Session) {
	ss := m.sessions[s.UserID]
	i := sort.Search(len(ss), func(i int) bool {
		return ss[i].StartTime.After(s.StartTime)
	})
	ss = append(ss, chazarah.Session{})
	copy(ss[i+1:], ss[i:])
	ss[i] = s
	m.sessions[s.UserID] = ss
}

func (m *Memory) removeSessionLocked(id string) bool {
	for user, ss := range m.sessions {
		for i, s := range ss {
			if s.ID == id {
				m.sessions[user] = append(ss[:i:i], ss[i+1:]...)
				return true
			}
		}
	}
	return false
}

func (m *Memory) Session(_ context.Context, id string) (*chazarah.Session, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	for _, ss := range m.sessions {
		for _, s := range ss {
			if s.ID == id {
				return &s, nil
			}
		}
	}
	return nil, nil
}

func (m *Memory) SessionsByYear(_ context.Context, userID generic.UserID, yearID generic.YearID) ([]chazarah.Session, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var result []chazarah.Session
	for _, s := range m.sessions[userID] {
		if s.YearID == yearID {
			result = append(result, s)
		}
	}
	return result, nil
}

func (m *Memory) SessionsBetween(_ context.Context, userID generic.UserID, from, to generic.TimePoint) ([]chazarah.Session, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var result []chazarah.Session
	for _, s := range m.sessions[userID] {
		if from.BeforeOrEqual(s.StartTime) && s.StartTime.BeforeOrEqual(to) {
			result = append(result, s)
		}
	}
	return result, nil
}

// =============================================================================
// PAYMENTS
// =============================================================================

func (m *Memory) CreatePayment(_ context.Context, p chazarah.Payment) (chazarah.Payment, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if p.ID == "" {
		p.ID = uuid.NewString()
	}
	ps := m.payments[p.UserID]
	i := sort.Search(len(ps), func(i int) bool {
		return ps[i].Date.After(p.Date)
	})
	ps = append(ps, chazarah.Payment{})
	copy(ps[i+1:], ps[i:])
	ps[i] = p
	m.payments[p.UserID] = ps
	return p, nil
}

func (m *Memory) PaymentsByYear(_ context.Context, userID generic.UserID, yearID generic.YearID) ([]chazarah.Payment, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var result []chazarah.Payment
	for _, p := range m.payments[userID] {
		if p.YearID == yearID {
			result = append(result, p)
		}
	}
	return result, nil
}

func (m *Memory) PaymentsBetween(_ context.Context, userID generic.UserID, from, to generic.TimePoint) ([]chazarah.Payment, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var result []chazarah.Payment
	for _, p := range m.payments[userID] {
		if from.BeforeOrEqual(p.Date) && p.Date.BeforeOrEqual(to) {
			result = append(result, p)
		}
	}
	return result, nil
}
