/*
handlers.go - HTTP API handlers for the chazarah obligation engine

PURPOSE:
  Exposes year catalog, obligation, session and payment records plus the
  quarterly settlement report over REST. Handles HTTP request/response and
  JSON serialization; settlement math lives in chazarah.Engine and write
  validation in chazarah.Tracker.

ENDPOINTS:
  Years:
    GET    /api/years                              List years, newest first
    POST   /api/years                              Add a year
    GET    /api/years/current                      Year containing today
    GET    /api/years/{year}/quarters              Raw quarter partition

  Per user (bearer token subject must match {userID}):
    GET    /api/users/{userID}/years/{year}/quarters     Settlement report
    GET    /api/users/{userID}/years/{year}/obligation   Weekly rate
    PUT    /api/users/{userID}/years/{year}/obligation   Set weekly rate
    GET    /api/users/{userID}/years/{year}/sessions     List sessions
    POST   /api/users/{userID}/years/{year}/sessions     Log a session
    PUT    /api/users/{userID}/sessions/{sessionID}      Edit a session
    DELETE /api/users/{userID}/sessions/{sessionID}      Remove a session
    GET    /api/users/{userID}/years/{year}/payments     List payments
    POST   /api/users/{userID}/years/{year}/payments     Record a payment

ERROR HANDLING:
  Errors are returned as JSON with appropriate HTTP status:
  - 400: Validation errors, invalid input
  - 401/403: Missing, invalid or foreign token (auth.go)
  - 404: Year, session or route not found
  - 500: Store failures (logged, details withheld)

SEE ALSO:
  - dto.go: Request/response data structures
  - auth.go: Bearer token middleware
  - server.go: Router setup and middleware
*/
package api

import (
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"go.uber.org/zap"

	"github.com/chazarah/obligation-engine/chazarah"
	"github.com/chazarah/obligation-engine/generic"
)

// =============================================================================
// HANDLER CONTEXT
// =============================================================================

// Handler holds all dependencies for HTTP handlers.
type Handler struct {
	Store   chazarah.Store
	Engine  *chazarah.Engine
	Tracker *chazarah.Tracker
	Clock   generic.Clock
	Logger  *zap.Logger
}

// NewHandler wires the engine and tracker to a store. A nil clock means the
// system clock; a nil logger discards output.
func NewHandler(store chazarah.Store, clock generic.Clock, logger *zap.Logger) *Handler {
	if clock == nil {
		clock = generic.SystemClock{}
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Handler{
		Store:   store,
		Engine:  chazarah.NewEngine(store, clock, logger.Named("engine")),
		Tracker: chazarah.NewTracker(store, logger.Named("tracker")),
		Clock:   clock,
		Logger:  logger,
	}
}

// =============================================================================
// YEAR HANDLERS
// =============================================================================

// ListYears returns the catalog, newest first.
// GET /api/years
func (h *Handler) ListYears(w http.ResponseWriter, r *http.Request) {
	years, err := h.Store.Years(r.Context())
	if err != nil {
		h.fail(w, r, "Failed to list years", err)
		return
	}

	dtos := make([]YearDTO, len(years))
	for i, y := range years {
		dtos[i] = toYearDTO(y)
	}
	writeJSON(w, http.StatusOK, dtos)
}

// CreateYear adds a catalog year. Re-posting identical dates is accepted;
// changing an existing year is a 409.
// POST /api/years
func (h *Handler) CreateYear(w http.ResponseWriter, r *http.Request) {
	var req CreateYearRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid JSON", err)
		return
	}

	start, err := generic.ParseTimePoint(req.StartDate)
	if err != nil {
		writeError(w, http.StatusBadRequest, "Invalid start_date", err)
		return
	}
	end, err := generic.ParseTimePoint(req.EndDate)
	if err != nil {
		writeError(w, http.StatusBadRequest, "Invalid end_date", err)
		return
	}

	y := chazarah.Year{JewishYear: generic.YearID(req.JewishYear), StartDate: start.Date(), EndDate: end.Date()}
	if err := h.Tracker.CreateYear(r.Context(), y); err != nil {
		h.fail(w, r, "Failed to save year", err)
		return
	}
	writeJSON(w, http.StatusCreated, toYearDTO(y))
}

// CurrentYear returns the catalog year containing today.
// GET /api/years/current
func (h *Handler) CurrentYear(w http.ResponseWriter, r *http.Request) {
	years, err := h.Store.Years(r.Context())
	if err != nil {
		h.fail(w, r, "Failed to list years", err)
		return
	}

	today := h.Clock.Now()
	y, ok := chazarah.CurrentYear(years, today)
	if !ok {
		writeError(w, http.StatusNotFound, "No year contains today", today.DateString())
		return
	}
	writeJSON(w, http.StatusOK, toYearDTO(y))
}

// GetQuarters returns the partition of a year without any figures.
// GET /api/years/{year}/quarters
func (h *Handler) GetQuarters(w http.ResponseWriter, r *http.Request) {
	y, ok := h.loadYear(w, r)
	if !ok {
		return
	}
	writeJSON(w, http.StatusOK, toQuarterDTOs(chazarah.Partition(y)))
}

// =============================================================================
// REPORT HANDLER
// =============================================================================

// GetReport settles all four quarters of a year for a user.
// GET /api/users/{userID}/years/{year}/quarters
func (h *Handler) GetReport(w http.ResponseWriter, r *http.Request) {
	y, ok := h.loadYear(w, r)
	if !ok {
		return
	}

	report, err := h.Engine.Report(r.Context(), userParam(r), y)
	if err != nil {
		h.fail(w, r, "Failed to compute quarters", err)
		return
	}
	writeJSON(w, http.StatusOK, toReportDTO(report, h.Clock.Now()))
}

// =============================================================================
// OBLIGATION HANDLERS
// =============================================================================

// GetObligation returns the weekly rate, defaulting to zero when unset.
// GET /api/users/{userID}/years/{year}/obligation
func (h *Handler) GetObligation(w http.ResponseWriter, r *http.Request) {
	y, ok := h.loadYear(w, r)
	if !ok {
		return
	}

	ob, err := h.Engine.Obligation(r.Context(), userParam(r), y.JewishYear)
	if err != nil {
		h.fail(w, r, "Failed to get obligation", err)
		return
	}
	writeJSON(w, http.StatusOK, toObligationDTO(ob))
}

// SetObligation sets the weekly rate.
// PUT /api/users/{userID}/years/{year}/obligation
func (h *Handler) SetObligation(w http.ResponseWriter, r *http.Request) {
	yearID, ok := yearParam(w, r)
	if !ok {
		return
	}

	var req SetObligationRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid JSON", err)
		return
	}

	ob, err := h.Tracker.SetObligation(r.Context(), chazarah.Obligation{
		UserID:         userParam(r),
		YearID:         yearID,
		MinutesPerWeek: req.MinutesPerWeek,
	})
	if err != nil {
		h.fail(w, r, "Failed to set obligation", err)
		return
	}
	writeJSON(w, http.StatusOK, toObligationDTO(ob))
}

// =============================================================================
// SESSION HANDLERS
// =============================================================================

// ListSessions returns a user's sessions for a year, oldest first.
// GET /api/users/{userID}/years/{year}/sessions
func (h *Handler) ListSessions(w http.ResponseWriter, r *http.Request) {
	y, ok := h.loadYear(w, r)
	if !ok {
		return
	}

	sessions, err := h.Store.SessionsByYear(r.Context(), userParam(r), y.JewishYear)
	if err != nil {
		h.fail(w, r, "Failed to list sessions", err)
		return
	}
	writeJSON(w, http.StatusOK, toSessionDTOs(sessions))
}

// CreateSession logs a session. Its start time must fall inside the year.
// POST /api/users/{userID}/years/{year}/sessions
func (h *Handler) CreateSession(w http.ResponseWriter, r *http.Request) {
	yearID, ok := yearParam(w, r)
	if !ok {
		return
	}

	s, ok := decodeSession(w, r)
	if !ok {
		return
	}
	s.UserID = userParam(r)
	s.YearID = yearID

	created, err := h.Tracker.CreateSession(r.Context(), s)
	if err != nil {
		h.fail(w, r, "Failed to create session", err)
		return
	}
	writeJSON(w, http.StatusCreated, toSessionDTO(created))
}

// UpdateSession edits a session. The session keeps its year.
// PUT /api/users/{userID}/sessions/{sessionID}
func (h *Handler) UpdateSession(w http.ResponseWriter, r *http.Request) {
	s, ok := decodeSession(w, r)
	if !ok {
		return
	}
	s.ID = chi.URLParam(r, "sessionID")
	s.UserID = userParam(r)

	updated, err := h.Tracker.UpdateSession(r.Context(), s)
	if err != nil {
		h.fail(w, r, "Failed to update session", err)
		return
	}
	writeJSON(w, http.StatusOK, toSessionDTO(updated))
}

// DeleteSession removes a session.
// DELETE /api/users/{userID}/sessions/{sessionID}
func (h *Handler) DeleteSession(w http.ResponseWriter, r *http.Request) {
	if err := h.Tracker.DeleteSession(r.Context(), userParam(r), chi.URLParam(r, "sessionID")); err != nil {
		h.fail(w, r, "Failed to delete session", err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func decodeSession(w http.ResponseWriter, r *http.Request) (chazarah.Session, bool) {
	var req SessionRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid JSON", err)
		return chazarah.Session{}, false
	}
	start, err := generic.ParseTimePoint(req.StartTime)
	if err != nil {
		writeError(w, http.StatusBadRequest, "Invalid start_time", err)
		return chazarah.Session{}, false
	}
	return chazarah.Session{StartTime: start, DurationMs: req.DurationMs, Note: req.Note}, true
}

// =============================================================================
// PAYMENT HANDLERS
// =============================================================================

// ListPayments returns a user's payments for a year, oldest first.
// GET /api/users/{userID}/years/{year}/payments
func (h *Handler) ListPayments(w http.ResponseWriter, r *http.Request) {
	y, ok := h.loadYear(w, r)
	if !ok {
		return
	}

	payments, err := h.Store.PaymentsByYear(r.Context(), userParam(r), y.JewishYear)
	if err != nil {
		h.fail(w, r, "Failed to list payments", err)
		return
	}
	writeJSON(w, http.StatusOK, toPaymentDTOs(payments))
}

// RecordPayment records a payment. Only the calendar date is kept.
// POST /api/users/{userID}/years/{year}/payments
func (h *Handler) RecordPayment(w http.ResponseWriter, r *http.Request) {
	yearID, ok := yearParam(w, r)
	if !ok {
		return
	}

	var req RecordPaymentRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid JSON", err)
		return
	}
	date, err := generic.ParseTimePoint(req.Date)
	if err != nil {
		writeError(w, http.StatusBadRequest, "Invalid date", err)
		return
	}

	p, err := h.Tracker.RecordPayment(r.Context(), chazarah.Payment{
		UserID: userParam(r),
		YearID: yearID,
		Amount: req.Amount,
		Date:   date.Date(),
	})
	if err != nil {
		h.fail(w, r, "Failed to record payment", err)
		return
	}
	writeJSON(w, http.StatusCreated, toPaymentDTO(p))
}

// =============================================================================
// HELPERS
// =============================================================================

func userParam(r *http.Request) generic.UserID {
	return generic.UserID(chi.URLParam(r, "userID"))
}

func yearParam(w http.ResponseWriter, r *http.Request) (generic.YearID, bool) {
	raw := chi.URLParam(r, "year")
	n, err := strconv.Atoi(raw)
	if err != nil {
		writeError(w, http.StatusBadRequest, "Invalid year", raw)
		return 0, false
	}
	return generic.YearID(n), true
}

// loadYear resolves {year} against the catalog, writing 400/404 on failure.
func (h *Handler) loadYear(w http.ResponseWriter, r *http.Request) (chazarah.Year, bool) {
	id, ok := yearParam(w, r)
	if !ok {
		return chazarah.Year{}, false
	}
	y, err := h.Store.Year(r.Context(), id)
	if err != nil {
		h.fail(w, r, "Failed to get year", err)
		return chazarah.Year{}, false
	}
	if y == nil {
		writeError(w, http.StatusNotFound, "Year not found", fmt.Sprintf("year %d", id))
		return chazarah.Year{}, false
	}
	return *y, true
}

// fail maps a domain or store error to a status. Store failures are logged
// and their details withheld from the client.
func (h *Handler) fail(w http.ResponseWriter, r *http.Request, message string, err error) {
	switch {
	case generic.IsClientError(err):
		writeError(w, http.StatusBadRequest, message, err)
	case generic.IsNotFound(err):
		writeError(w, http.StatusNotFound, message, err)
	case generic.IsConflict(err):
		writeError(w, http.StatusConflict, message, err)
	default:
		h.Logger.Error(message,
			zap.String("request_id", middleware.GetReqID(r.Context())),
			zap.String("method", r.Method),
			zap.String("path", r.URL.Path),
			zap.Error(err),
		)
		writeError(w, http.StatusInternalServerError, message, nil)
	}
}

func writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}

func writeError(w http.ResponseWriter, status int, message string, details any) {
	resp := ErrorResponse{Error: message}
	if err, ok := details.(error); ok {
		resp.Details = err.Error()
	} else if details != nil {
		resp.Details = details
	}
	writeJSON(w, status, resp)
}
