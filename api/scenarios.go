/*
scenarios.go - Demo scenario loaders for demonstrations

PURPOSE:

	Populates the store with a small, known data set so the settlement
	report can be explored without entering data by hand.

AVAILABLE SCENARIOS:

	year-5785:     60 min/week, one 58-minute session and $10 in quarter 1
	no-obligation: Sessions and a payment but no weekly rate on record

HOW SCENARIOS WORK:
 1. Save the 5785 and 5786 catalog years (idempotent)
 2. Refuse with 409 if the demo user already has sessions that year
 3. Set the obligation, log sessions and record payments through Tracker

USAGE VIA API:

	POST /api/scenarios/load
	{"scenario_id": "year-5785"}

SEE ALSO:
  - handlers.go: Report and record handlers
*/
package api

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/shopspring/decimal"

	"github.com/chazarah/obligation-engine/chazarah"
	"github.com/chazarah/obligation-engine/generic"
)

// =============================================================================
// SCENARIO DEFINITIONS
// =============================================================================

var scenarios = []ScenarioDTO{
	{
		ID:          "year-5785",
		Name:        "Year 5785",
		Description: "User demo: 60 min/week, 3,500,000 ms logged and $10 paid in quarter 1",
	},
	{
		ID:          "no-obligation",
		Name:        "No Obligation",
		Description: "User demo-unset: sessions and a payment with no weekly rate on record",
	},
}

var demoYears = []chazarah.Year{
	{
		JewishYear: 5785,
		StartDate:  generic.NewDate(2024, time.September, 15),
		EndDate:    generic.NewDate(2025, time.September, 15),
	},
	{
		JewishYear: 5786,
		StartDate:  generic.NewDate(2025, time.September, 16),
		EndDate:    generic.NewDate(2026, time.September, 11),
	},
}

var errScenarioLoaded = errors.New("scenario already loaded")

// ListScenarios returns available scenarios.
// GET /api/scenarios
func (h *Handler) ListScenarios(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, scenarios)
}

// LoadScenario loads a predefined scenario.
// POST /api/scenarios/load
func (h *Handler) LoadScenario(w http.ResponseWriter, r *http.Request) {
	var req LoadScenarioRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body", err)
		return
	}

	var load func(context.Context) error
	switch req.ScenarioID {
	case "year-5785":
		load = h.loadYear5785Scenario
	case "no-obligation":
		load = h.loadNoObligationScenario
	default:
		writeError(w, http.StatusBadRequest, "Unknown scenario", req.ScenarioID)
		return
	}

	ctx := r.Context()
	if err := h.seedYears(ctx); err != nil {
		h.fail(w, r, "Failed to seed years", err)
		return
	}
	if err := load(ctx); err != nil {
		if errors.Is(err, errScenarioLoaded) {
			writeError(w, http.StatusConflict, "Scenario already loaded", req.ScenarioID)
			return
		}
		h.fail(w, r, "Failed to load scenario", err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]string{"status": "loaded", "scenario": req.ScenarioID})
}

// =============================================================================
// SCENARIO LOADERS
// =============================================================================

func (h *Handler) seedYears(ctx context.Context) error {
	for _, y := range demoYears {
		if err := h.Tracker.CreateYear(ctx, y); err != nil {
			return err
		}
	}
	return nil
}

func (h *Handler) loadYear5785Scenario(ctx context.Context) error {
	const user generic.UserID = "demo"
	if err := h.ensureFresh(ctx, user, 5785); err != nil {
		return err
	}

	if _, err := h.Tracker.SetObligation(ctx, chazarah.Obligation{
		UserID: user, YearID: 5785, MinutesPerWeek: decimal.NewFromInt(60),
	}); err != nil {
		return err
	}
	if _, err := h.Tracker.CreateSession(ctx, chazarah.Session{
		UserID:     user,
		YearID:     5785,
		StartTime:  generic.NewTimePoint(2024, time.October, 1, 20, 30, 0),
		DurationMs: 3_500_000,
		Note:       "Gemara review",
	}); err != nil {
		return err
	}
	_, err := h.Tracker.RecordPayment(ctx, chazarah.Payment{
		UserID: user, YearID: 5785, Amount: decimal.NewFromInt(10), Date: generic.NewDate(2024, time.November, 1),
	})
	return err
}

func (h *Handler) loadNoObligationScenario(ctx context.Context) error {
	const user generic.UserID = "demo-unset"
	if err := h.ensureFresh(ctx, user, 5785); err != nil {
		return err
	}

	for _, s := range []chazarah.Session{
		{StartTime: generic.NewTimePoint(2025, time.July, 1, 9, 0, 0), DurationMs: 1_200_000},
		{StartTime: generic.NewTimePoint(2025, time.July, 8, 9, 0, 0), DurationMs: 600_000},
	} {
		s.UserID, s.YearID = user, 5785
		if _, err := h.Tracker.CreateSession(ctx, s); err != nil {
			return err
		}
	}
	_, err := h.Tracker.RecordPayment(ctx, chazarah.Payment{
		UserID: user, YearID: 5785, Amount: decimal.NewFromInt(5), Date: generic.NewDate(2025, time.July, 2),
	})
	return err
}

func (h *Handler) ensureFresh(ctx context.Context, user generic.UserID, year generic.YearID) error {
	existing, err := h.Store.SessionsByYear(ctx, user, year)
	if err != nil {
		return err
	}
	if len(existing) > 0 {
		return errScenarioLoaded
	}
	return nil
}
