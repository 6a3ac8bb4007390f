/*
dto.go - Data Transfer Objects for API requests and responses

PURPOSE:
  Defines the JSON structures for API communication, decoupling the
  chazarah domain types from the wire format.

NAMING CONVENTION:
  - *DTO: Response types returned to clients
  - *Request: Request body types from clients

WIRE FORMATS:
  - Timestamps: "YYYY-MM-DD HH:mm:ss" civil time, no zone
  - Dates:      "YYYY-MM-DD"
  - Decimals:   shopspring/decimal JSON (quoted string out, string or number in)

VALIDATION:
  Validation is done in handlers and chazarah.Tracker, not in DTOs.

SEE ALSO:
  - handlers.go: Uses these types
*/
package api

import (
	"fmt"

	"github.com/shopspring/decimal"

	"github.com/chazarah/obligation-engine/chazarah"
	"github.com/chazarah/obligation-engine/generic"
)

// =============================================================================
// YEARS
// =============================================================================

// YearDTO represents a catalog year.
type YearDTO struct {
	JewishYear int    `json:"jewish_year"`
	StartDate  string `json:"start_date"`
	EndDate    string `json:"end_date"`
}

// CreateYearRequest is the body for POST /api/years.
type CreateYearRequest struct {
	JewishYear int    `json:"jewish_year"`
	StartDate  string `json:"start_date"`
	EndDate    string `json:"end_date"`
}

// QuarterDTO is one quarter of the raw partition.
type QuarterDTO struct {
	Index int    `json:"index"`
	Start string `json:"start"`
	End   string `json:"end"`
}

func toYearDTO(y chazarah.Year) YearDTO {
	return YearDTO{
		JewishYear: int(y.JewishYear),
		StartDate:  y.StartDate.DateString(),
		EndDate:    y.EndDate.DateString(),
	}
}

func toQuarterDTOs(quarters []chazarah.Quarter) []QuarterDTO {
	dtos := make([]QuarterDTO, len(quarters))
	for i, q := range quarters {
		dtos[i] = QuarterDTO{Index: q.Index, Start: q.Start.String(), End: q.End.String()}
	}
	return dtos
}

// =============================================================================
// REPORT
// =============================================================================

// SettlementDTO is one quarter's figures.
type SettlementDTO struct {
	Index           int             `json:"index"`
	Start           string          `json:"start"`
	End             string          `json:"end"`
	Active          bool            `json:"active"`
	Closed          bool            `json:"closed"`
	MinutesOwed     decimal.Decimal `json:"minutes_owed"`
	MinutesChazered int64           `json:"minutes_chazered"`
	AmountPaid      decimal.Decimal `json:"amount_paid"`
	FinalAmountOwed decimal.Decimal `json:"final_amount_owed"`
}

// ReportDTO is the response for GET /api/users/{userID}/years/{year}/quarters.
type ReportDTO struct {
	UserID              string          `json:"user_id"`
	Year                YearDTO         `json:"year"`
	MinutesPerWeek      decimal.Decimal `json:"minutes_per_week"`
	ObligationDefaulted bool            `json:"obligation_defaulted"`
	Notice              string          `json:"notice,omitempty"`
	CurrentQuarter      *int            `json:"current_quarter,omitempty"`
	Quarters            []SettlementDTO `json:"quarters"`
}

func toReportDTO(r chazarah.Report, today generic.TimePoint) ReportDTO {
	dto := ReportDTO{
		UserID:              string(r.UserID),
		Year:                toYearDTO(r.Year),
		MinutesPerWeek:      r.Obligation.MinutesPerWeek,
		ObligationDefaulted: r.Obligation.Defaulted,
		Quarters:            make([]SettlementDTO, len(r.Quarters)),
	}
	if r.Obligation.Defaulted {
		dto.Notice = fmt.Sprintf("No obligation set for year %d; using 0 minutes per week", r.Year.JewishYear)
	}
	if current, ok := r.CurrentQuarter(); ok {
		idx := current.Index
		dto.CurrentQuarter = &idx
	}
	for i, q := range r.Quarters {
		dto.Quarters[i] = SettlementDTO{
			Index:           q.Index,
			Start:           q.Start.String(),
			End:             q.End.String(),
			Active:          q.Active,
			Closed:          q.Closed(today),
			MinutesOwed:     q.MinutesOwed,
			MinutesChazered: q.MinutesChazered,
			AmountPaid:      q.AmountPaid,
			FinalAmountOwed: q.FinalAmountOwed,
		}
	}
	return dto
}

// =============================================================================
// OBLIGATION
// =============================================================================

// ObligationDTO is a user's weekly rate for a year.
type ObligationDTO struct {
	UserID         string          `json:"user_id"`
	Year           int             `json:"year"`
	MinutesPerWeek decimal.Decimal `json:"minutes_per_week"`
	Defaulted      bool            `json:"defaulted"`
}

// SetObligationRequest is the body for PUT .../obligation.
type SetObligationRequest struct {
	MinutesPerWeek decimal.Decimal `json:"minutes_per_week"`
}

func toObligationDTO(o chazarah.Obligation) ObligationDTO {
	return ObligationDTO{
		UserID:         string(o.UserID),
		Year:           int(o.YearID),
		MinutesPerWeek: o.MinutesPerWeek,
		Defaulted:      o.Defaulted,
	}
}

// =============================================================================
// SESSIONS
// =============================================================================

// SessionDTO represents a logged session.
type SessionDTO struct {
	ID         string `json:"id"`
	UserID     string `json:"user_id"`
	Year       int    `json:"year"`
	StartTime  string `json:"start_time"`
	DurationMs int64  `json:"duration_ms"`
	Minutes    int64  `json:"minutes"`
	Note       string `json:"note,omitempty"`
}

// SessionRequest is the body for creating or updating a session.
type SessionRequest struct {
	StartTime  string `json:"start_time"`
	DurationMs int64  `json:"duration_ms"`
	Note       string `json:"note,omitempty"`
}

func toSessionDTO(s chazarah.Session) SessionDTO {
	return SessionDTO{
		ID:         s.ID,
		UserID:     string(s.UserID),
		Year:       int(s.YearID),
		StartTime:  s.StartTime.String(),
		DurationMs: s.DurationMs,
		Minutes:    generic.FloorMinutes(s.DurationMs),
		Note:       s.Note,
	}
}

func toSessionDTOs(sessions []chazarah.Session) []SessionDTO {
	dtos := make([]SessionDTO, len(sessions))
	for i, s := range sessions {
		dtos[i] = toSessionDTO(s)
	}
	return dtos
}

// =============================================================================
// PAYMENTS
// =============================================================================

// PaymentDTO represents a recorded payment.
type PaymentDTO struct {
	ID     string          `json:"id"`
	UserID string          `json:"user_id"`
	Year   int             `json:"year"`
	Amount decimal.Decimal `json:"amount"`
	Date   string          `json:"date"`
}

// RecordPaymentRequest is the body for POST .../payments.
type RecordPaymentRequest struct {
	Amount decimal.Decimal `json:"amount"`
	Date   string          `json:"date"`
}

func toPaymentDTOs(payments []chazarah.Payment) []PaymentDTO {
	dtos := make([]PaymentDTO, len(payments))
	for i, p := range payments {
		dtos[i] = toPaymentDTO(p)
	}
	return dtos
}

func toPaymentDTO(p chazarah.Payment) PaymentDTO {
	return PaymentDTO{
		ID:     p.ID,
		UserID: string(p.UserID),
		Year:   int(p.YearID),
		Amount: p.Amount,
		Date:   p.Date.DateString(),
	}
}

// =============================================================================
// SCENARIOS
// =============================================================================

// ScenarioDTO describes a loadable demo scenario.
type ScenarioDTO struct {
	ID          string `json:"id"`
	Name        string `json:"name"`
	Description string `json:"description"`
}

// LoadScenarioRequest is the body for POST /api/scenarios/load.
type LoadScenarioRequest struct {
	ScenarioID string `json:"scenario_id"`
}

// =============================================================================
// ERRORS
// =============================================================================

// ErrorResponse is the standard error response.
type ErrorResponse struct {
	Error   string `json:"error"`
	Details any    `json:"details,omitempty"`
}
