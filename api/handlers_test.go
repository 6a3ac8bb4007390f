/*
handlers_test.go - HTTP tests for the API handlers

Tests for:
- Year catalog and raw partition
- Recording obligations, sessions and payments
- The settlement report over HTTP (Year 5785 walkthrough)
- Error mapping (400 / 404 / 409 / 500)
*/
package api_test

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/chazarah/obligation-engine/api"
	"github.com/chazarah/obligation-engine/chazarah"
	"github.com/chazarah/obligation-engine/chazarah/store"
	"github.com/chazarah/obligation-engine/generic"
)

// =============================================================================
// TEST SETUP
// =============================================================================

type testServer struct {
	t      *testing.T
	router http.Handler
	store  chazarah.Store
}

func newTestServer(t *testing.T, today generic.TimePoint, opts api.Options) *testServer {
	return newTestServerWithStore(t, store.NewMemory(), today, opts)
}

func newTestServerWithStore(t *testing.T, st chazarah.Store, today generic.TimePoint, opts api.Options) *testServer {
	h := api.NewHandler(st, generic.FixedClock{At: today}, nil)
	return &testServer{t: t, router: api.NewRouter(h, opts), store: st}
}

func (s *testServer) do(method, path string, body any, headers ...string) *httptest.ResponseRecorder {
	s.t.Helper()

	var buf bytes.Buffer
	if body != nil {
		require.NoError(s.t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	for i := 0; i+1 < len(headers); i += 2 {
		req.Header.Set(headers[i], headers[i+1])
	}

	rec := httptest.NewRecorder()
	s.router.ServeHTTP(rec, req)
	return rec
}

func decode[T any](t *testing.T, rec *httptest.ResponseRecorder) T {
	t.Helper()
	var out T
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &out), rec.Body.String())
	return out
}

func createYear5785(t *testing.T, s *testServer) {
	rec := s.do(http.MethodPost, "/api/years", api.CreateYearRequest{
		JewishYear: 5785, StartDate: "2024-09-15", EndDate: "2025-09-15",
	})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
}

// =============================================================================
// YEAR TESTS
// =============================================================================

func TestYears_CreateListCurrent(t *testing.T) {
	s := newTestServer(t, generic.NewDate(2025, time.January, 10), api.Options{})
	createYear5785(t, s)

	rec := s.do(http.MethodPost, "/api/years", api.CreateYearRequest{
		JewishYear: 5786, StartDate: "2025-09-16", EndDate: "2026-09-11",
	})
	require.Equal(t, http.StatusCreated, rec.Code)

	rec = s.do(http.MethodGet, "/api/years", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	years := decode[[]api.YearDTO](t, rec)
	require.Len(t, years, 2)
	assert.Equal(t, 5786, years[0].JewishYear)

	rec = s.do(http.MethodGet, "/api/years/current", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, api.YearDTO{JewishYear: 5785, StartDate: "2024-09-15", EndDate: "2025-09-15"}, decode[api.YearDTO](t, rec))
}

func TestYears_CurrentYear_NoneContainsToday(t *testing.T) {
	s := newTestServer(t, generic.NewDate(2030, time.January, 1), api.Options{})
	createYear5785(t, s)

	rec := s.do(http.MethodGet, "/api/years/current", nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestYears_CreateMalformed(t *testing.T) {
	s := newTestServer(t, generic.NewDate(2025, time.January, 10), api.Options{})

	rec := s.do(http.MethodPost, "/api/years", api.CreateYearRequest{
		JewishYear: 5790, StartDate: "2030-09-01", EndDate: "2030-08-01",
	})
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = s.do(http.MethodPost, "/api/years", api.CreateYearRequest{
		JewishYear: 5790, StartDate: "next tishrei", EndDate: "2030-08-01",
	})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestYears_CreateExisting_DatesCannotChange(t *testing.T) {
	// GIVEN: 5785 created and a session logged in its first quarter
	// WHEN: Posting 5785 again with other dates, then with the original ones
	// THEN: The change is a 409, the partition is untouched and the repeat is a 201

	s := newTestServer(t, generic.NewDate(2025, time.January, 10), api.Options{})
	createYear5785(t, s)
	rec := s.do(http.MethodPost, "/api/users/u1/years/5785/sessions", api.SessionRequest{
		StartTime: "2024-10-01 20:00:00", DurationMs: 3_500_000,
	})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())

	rec = s.do(http.MethodPost, "/api/years", api.CreateYearRequest{
		JewishYear: 5785, StartDate: "2025-01-01", EndDate: "2025-12-31",
	})
	assert.Equal(t, http.StatusConflict, rec.Code, rec.Body.String())

	rec = s.do(http.MethodGet, "/api/years/5785/quarters", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	quarters := decode[[]api.QuarterDTO](t, rec)
	require.Len(t, quarters, 4)
	assert.Equal(t, "2024-09-17 00:00:01", quarters[0].Start)

	createYear5785(t, s)
}

func TestYears_Quarters(t *testing.T) {
	s := newTestServer(t, generic.NewDate(2025, time.January, 10), api.Options{})
	createYear5785(t, s)

	rec := s.do(http.MethodGet, "/api/years/5785/quarters", nil)
	require.Equal(t, http.StatusOK, rec.Code)

	quarters := decode[[]api.QuarterDTO](t, rec)
	require.Len(t, quarters, 4)
	assert.Equal(t, api.QuarterDTO{Index: 1, Start: "2024-09-17 00:00:01", End: "2024-12-16 23:59:59"}, quarters[0])
	assert.Equal(t, "2025-09-15 23:59:59", quarters[3].End)

	assert.Equal(t, http.StatusNotFound, s.do(http.MethodGet, "/api/years/5700/quarters", nil).Code)
	assert.Equal(t, http.StatusBadRequest, s.do(http.MethodGet, "/api/years/abc/quarters", nil).Code)
}

// =============================================================================
// REPORT TESTS
// =============================================================================

func TestReport_Year5785Walkthrough(t *testing.T) {
	// GIVEN: 60 min/week, a 3,500,000 ms session and $10 recorded through the API
	// WHEN: Requesting the report on 2025-01-10
	// THEN: Quarter 1 closes at 780 - 58 - 10 = 712

	s := newTestServer(t, generic.NewDate(2025, time.January, 10), api.Options{})
	createYear5785(t, s)

	rec := s.do(http.MethodPut, "/api/users/u1/years/5785/obligation",
		map[string]any{"minutes_per_week": 60})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	rec = s.do(http.MethodPost, "/api/users/u1/years/5785/sessions", api.SessionRequest{
		StartTime: "2024-10-01 20:30:00", DurationMs: 3_500_000,
	})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	assert.Equal(t, int64(58), decode[api.SessionDTO](t, rec).Minutes)

	rec = s.do(http.MethodPost, "/api/users/u1/years/5785/payments",
		map[string]any{"amount": "10", "date": "2024-11-01"})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())

	rec = s.do(http.MethodGet, "/api/users/u1/years/5785/quarters", nil)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	report := decode[api.ReportDTO](t, rec)
	assert.False(t, report.ObligationDefaulted)
	assert.Empty(t, report.Notice)
	require.NotNil(t, report.CurrentQuarter)
	assert.Equal(t, 2, *report.CurrentQuarter)
	require.Len(t, report.Quarters, 4)

	q1 := report.Quarters[0]
	assert.True(t, q1.Closed)
	assert.True(t, decimal.NewFromInt(780).Equal(q1.MinutesOwed), q1.MinutesOwed.String())
	assert.Equal(t, int64(58), q1.MinutesChazered)
	assert.True(t, decimal.NewFromInt(10).Equal(q1.AmountPaid))
	assert.True(t, decimal.NewFromInt(712).Equal(q1.FinalAmountOwed), q1.FinalAmountOwed.String())

	assert.True(t, report.Quarters[1].Active)
	assert.False(t, report.Quarters[1].Closed)
	assert.False(t, report.Quarters[2].Active)
}

func TestReport_MissingObligation_Notice(t *testing.T) {
	s := newTestServer(t, generic.NewDate(2025, time.January, 10), api.Options{})
	createYear5785(t, s)

	rec := s.do(http.MethodGet, "/api/users/u1/years/5785/quarters", nil)
	require.Equal(t, http.StatusOK, rec.Code)

	report := decode[api.ReportDTO](t, rec)
	assert.True(t, report.ObligationDefaulted)
	assert.Contains(t, report.Notice, "5785")
	assert.True(t, report.MinutesPerWeek.IsZero())

	rec = s.do(http.MethodGet, "/api/users/u1/years/5785/obligation", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.True(t, decode[api.ObligationDTO](t, rec).Defaulted)
}

func TestReport_StoreFailure_500WithoutDetails(t *testing.T) {
	mem := store.NewMemory()
	s := newTestServerWithStore(t, &brokenSessions{Memory: mem}, generic.NewDate(2025, time.January, 10), api.Options{})
	createYear5785(t, s)

	rec := s.do(http.MethodGet, "/api/users/u1/years/5785/quarters", nil)
	assert.Equal(t, http.StatusInternalServerError, rec.Code)

	resp := decode[api.ErrorResponse](t, rec)
	assert.Nil(t, resp.Details)
}

// brokenSessions fails every settlement session read.
type brokenSessions struct {
	*store.Memory
}

func (b *brokenSessions) SessionsBetween(context.Context, generic.UserID, generic.TimePoint, generic.TimePoint) ([]chazarah.Session, error) {
	return nil, errors.New("disk I/O error")
}

// =============================================================================
// RECORD TESTS
// =============================================================================

func TestObligation_Negative_Rejected(t *testing.T) {
	s := newTestServer(t, generic.NewDate(2025, time.January, 10), api.Options{})
	createYear5785(t, s)

	rec := s.do(http.MethodPut, "/api/users/u1/years/5785/obligation",
		map[string]any{"minutes_per_week": "-5"})
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = s.do(http.MethodPut, "/api/users/u1/years/5800/obligation",
		map[string]any{"minutes_per_week": "5"})
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestSessions_Lifecycle(t *testing.T) {
	s := newTestServer(t, generic.NewDate(2025, time.January, 10), api.Options{})
	createYear5785(t, s)

	rec := s.do(http.MethodPost, "/api/users/u1/years/5785/sessions", api.SessionRequest{
		StartTime: "2025-03-01T21:00:00", DurationMs: 1_800_000, Note: "Berachos 2a",
	})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	created := decode[api.SessionDTO](t, rec)
	assert.Equal(t, "2025-03-01 21:00:00", created.StartTime)

	rec = s.do(http.MethodPut, "/api/users/u1/sessions/"+created.ID, api.SessionRequest{
		StartTime: "2025-03-02 21:00:00", DurationMs: 2_400_000,
	})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.Equal(t, int64(40), decode[api.SessionDTO](t, rec).Minutes)

	rec = s.do(http.MethodGet, "/api/users/u1/years/5785/sessions", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	listed := decode[[]api.SessionDTO](t, rec)
	require.Len(t, listed, 1)
	assert.Equal(t, "2025-03-02 21:00:00", listed[0].StartTime)

	// Another user cannot touch it.
	assert.Equal(t, http.StatusNotFound, s.do(http.MethodDelete, "/api/users/u2/sessions/"+created.ID, nil).Code)

	assert.Equal(t, http.StatusNoContent, s.do(http.MethodDelete, "/api/users/u1/sessions/"+created.ID, nil).Code)
	assert.Equal(t, http.StatusNotFound, s.do(http.MethodDelete, "/api/users/u1/sessions/"+created.ID, nil).Code)
}

func TestSessions_OutsideYear_Rejected(t *testing.T) {
	s := newTestServer(t, generic.NewDate(2025, time.January, 10), api.Options{})
	createYear5785(t, s)

	rec := s.do(http.MethodPost, "/api/users/u1/years/5785/sessions", api.SessionRequest{
		StartTime: "2025-09-16 00:00:00", DurationMs: 60_000,
	})
	require.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Contains(t, rec.Body.String(), "2024-09-15 - 2025-09-15")

	rec = s.do(http.MethodPost, "/api/users/u1/years/5785/sessions", api.SessionRequest{
		StartTime: "yesterday", DurationMs: 60_000,
	})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestPayments_RecordAndList(t *testing.T) {
	s := newTestServer(t, generic.NewDate(2025, time.January, 10), api.Options{})
	createYear5785(t, s)

	rec := s.do(http.MethodPost, "/api/users/u1/years/5785/payments",
		map[string]any{"amount": 18.5, "date": "2024-12-01 14:00:00"})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	assert.Equal(t, "2024-12-01", decode[api.PaymentDTO](t, rec).Date)

	rec = s.do(http.MethodPost, "/api/users/u1/years/5785/payments",
		map[string]any{"amount": "-1", "date": "2024-12-01"})
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = s.do(http.MethodGet, "/api/users/u1/years/5785/payments", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	payments := decode[[]api.PaymentDTO](t, rec)
	require.Len(t, payments, 1)
	assert.True(t, decimal.RequireFromString("18.5").Equal(payments[0].Amount))
}

// =============================================================================
// SCENARIO / HEALTH TESTS
// =============================================================================

func TestScenario_Year5785(t *testing.T) {
	s := newTestServer(t, generic.NewDate(2025, time.January, 10), api.Options{})

	rec := s.do(http.MethodPost, "/api/scenarios/load", api.LoadScenarioRequest{ScenarioID: "year-5785"})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	rec = s.do(http.MethodGet, "/api/users/demo/years/5785/quarters", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	report := decode[api.ReportDTO](t, rec)
	assert.True(t, decimal.NewFromInt(712).Equal(report.Quarters[0].FinalAmountOwed))

	rec = s.do(http.MethodPost, "/api/scenarios/load", api.LoadScenarioRequest{ScenarioID: "year-5785"})
	assert.Equal(t, http.StatusConflict, rec.Code)

	rec = s.do(http.MethodPost, "/api/scenarios/load", api.LoadScenarioRequest{ScenarioID: "unknown"})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestHealth(t *testing.T) {
	s := newTestServer(t, generic.NewDate(2025, time.January, 10), api.Options{})

	assert.Equal(t, http.StatusOK, s.do(http.MethodGet, "/health/live", nil).Code)
	assert.Equal(t, http.StatusOK, s.do(http.MethodGet, "/health/ready", nil).Code)
	assert.Equal(t, http.StatusNotFound, s.do(http.MethodGet, "/nowhere", nil).Code)
}
