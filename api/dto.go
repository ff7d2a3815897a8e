/*
dto.go - Data Transfer Objects for API requests and responses

PURPOSE:
  Defines the JSON structures for API communication. These types decouple
  the domain model (decimal amounts, typed ids, generic.Date) from the
  external contract.

NAMING CONVENTION:
  - *DTO: Response types returned to clients
  - *Request: Request body types from clients
  - *Response: Complex response wrappers

AMOUNTS:
  Days and money go out as JSON numbers. Money additionally carries a
  *_display string fixed to 2 decimal places, which is the exact value.

VALIDATION:
  Auth bodies carry validator/v10 struct tags, checked in handlers.
  Request forms are validated by the vacation package so the same rules
  and messages apply whatever the transport.

SEE ALSO:
  - handlers.go: Uses these types
  - vacation/validate.go: Form rules
*/
package api

import (
	"bytes"
	"encoding/json"
	"time"

	"github.com/warp/vacation-desk/auth"
	"github.com/warp/vacation-desk/vacation"
)

// =============================================================================
// AUTH
// =============================================================================

// SignUpRequest is the body of POST /api/auth/signup.
type SignUpRequest struct {
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"required,min=6,max=72"`
	FullName string `json:"full_name" validate:"required"`
}

// SignInRequest is the body of POST /api/auth/signin.
type SignInRequest struct {
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"required"`
}

// SessionDTO is an issued bearer session.
type SessionDTO struct {
	Token     string `json:"access_token"`
	TokenType string `json:"token_type"`
	UserID    string `json:"user_id"`
	Email     string `json:"email"`
	ExpiresAt string `json:"expires_at"`
}

// IdentityDTO is the identity created by sign-up.
type IdentityDTO struct {
	ID    string `json:"id"`
	Email string `json:"email"`
}

// SignUpResponse is returned by sign-up. Session is nil if the automatic
// sign-in after registration failed.
type SignUpResponse struct {
	User    IdentityDTO `json:"user"`
	Session *SessionDTO `json:"session"`
	Message string      `json:"message"`
}

// ViewDTO is what GET /api/session reports.
type ViewDTO struct {
	State   string      `json:"state"`
	Email   string      `json:"email,omitempty"`
	Profile *ProfileDTO `json:"profile,omitempty"`
}

// =============================================================================
// PROFILE + BALANCE
// =============================================================================

type ProfileDTO struct {
	ID                     string  `json:"id"`
	Email                  string  `json:"email"`
	FullName               string  `json:"full_name"`
	Role                   string  `json:"role"`
	AnnualVacationDays     float64 `json:"annual_vacation_days"`
	RemainingVacationDays  float64 `json:"remaining_vacation_days"`
	CompensationRatePerDay float64 `json:"compensation_rate_per_day"`
	CreatedAt              string  `json:"created_at,omitempty"`
}

type BalanceDTO struct {
	AnnualDays     float64 `json:"annual_days"`
	RemainingDays  float64 `json:"remaining_days"`
	UsedDays       float64 `json:"used_days"`
	PercentageUsed float64 `json:"percentage_used"`
	PercentLabel   string  `json:"percent_label"`
	BarPercent     float64 `json:"bar_percent"`
	OutOfRange     bool    `json:"out_of_range"`
}

// =============================================================================
// REQUESTS
// =============================================================================

type VacationRequestDTO struct {
	ID            string `json:"id"`
	StartDate     string `json:"start_date"`
	EndDate       string `json:"end_date"`
	DaysRequested int    `json:"days_requested"`
	Status        string `json:"status"`
	Reason        string `json:"reason,omitempty"`
	CreatedAt     string `json:"created_at"`
	Cancellable   bool   `json:"cancellable"`
}

type CompensationRequestDTO struct {
	ID           string  `json:"id"`
	DaysToSell   float64 `json:"days_to_sell"`
	RatePerDay   float64 `json:"rate_per_day"`
	TotalAmount  float64 `json:"total_amount"`
	TotalDisplay string  `json:"total_amount_display"`
	Status       string  `json:"status"`
	Notes        string  `json:"notes,omitempty"`
	CreatedAt    string  `json:"created_at"`
	Cancellable  bool    `json:"cancellable"`
}

type DashboardDTO struct {
	Profile              ProfileDTO               `json:"profile"`
	Balance              BalanceDTO               `json:"balance"`
	VacationRequests     []VacationRequestDTO     `json:"vacation_requests"`
	CompensationRequests []CompensationRequestDTO `json:"compensation_requests"`
}

// FormValue accepts a JSON string or number and keeps the raw text, so
// `2.5` and `"2.5"` validate the same way and `"abc"` reaches the validator.
type FormValue string

func (v *FormValue) UnmarshalJSON(b []byte) error {
	b = bytes.TrimSpace(b)
	if bytes.Equal(b, []byte("null")) {
		*v = ""
		return nil
	}
	if len(b) > 0 && b[0] == '"' {
		var s string
		if err := json.Unmarshal(b, &s); err != nil {
			return err
		}
		*v = FormValue(s)
		return nil
	}
	var n json.Number
	if err := json.Unmarshal(b, &n); err != nil {
		return err
	}
	*v = FormValue(n.String())
	return nil
}

// SubmitVacationRequest is the body of POST /api/vacation-requests.
type SubmitVacationRequest struct {
	StartDate string `json:"start_date"`
	EndDate   string `json:"end_date"`
	Reason    string `json:"reason"`
}

// SubmitCompensationRequest is the body of POST /api/compensation-requests.
// A missing rate_per_day falls back to the profile default.
type SubmitCompensationRequest struct {
	DaysToSell FormValue  `json:"days_to_sell"`
	RatePerDay *FormValue `json:"rate_per_day"`
	Notes      string     `json:"notes"`
}

type VacationSubmitResponse struct {
	Request   VacationRequestDTO `json:"request"`
	Dashboard DashboardDTO       `json:"dashboard"`
}

type CompensationSubmitResponse struct {
	Request   CompensationRequestDTO `json:"request"`
	Dashboard DashboardDTO           `json:"dashboard"`
}

// CompensationDefaultsDTO pre-fills the compensation form.
type CompensationDefaultsDTO struct {
	DaysToSell    string  `json:"days_to_sell"`
	RatePerDay    string  `json:"rate_per_day"`
	MaxDaysToSell float64 `json:"max_days_to_sell"`
}

// BusinessDaysDTO previews a date range.
type BusinessDaysDTO struct {
	Start        string `json:"start"`
	End          string `json:"end"`
	BusinessDays int    `json:"business_days"`
}

// CompensationQuoteDTO previews days x rate.
type CompensationQuoteDTO struct {
	TotalAmount  float64 `json:"total_amount"`
	TotalDisplay string  `json:"total_amount_display"`
}

// =============================================================================
// SCENARIOS
// =============================================================================

type ScenarioDTO struct {
	ID          string `json:"id"`
	Name        string `json:"name"`
	Description string `json:"description"`
}

type LoadScenarioRequest struct {
	ScenarioID string `json:"scenario_id"`
}

// ScenarioAccountDTO is a demo login created by a scenario.
type ScenarioAccountDTO struct {
	Email    string `json:"email"`
	Password string `json:"password"`
	FullName string `json:"full_name"`
}

type LoadScenarioResponse struct {
	Scenario ScenarioDTO          `json:"scenario"`
	Accounts []ScenarioAccountDTO `json:"accounts"`
}

// =============================================================================
// ERRORS
// =============================================================================

// ErrorResponse is every non-2xx body.
type ErrorResponse struct {
	Error   string `json:"error"`
	Field   string `json:"field,omitempty"`
	Code    string `json:"code,omitempty"`
	Details string `json:"details,omitempty"`
}

// =============================================================================
// CONVERTERS
// =============================================================================

func toSessionDTO(s *auth.Session) *SessionDTO {
	if s == nil {
		return nil
	}
	return &SessionDTO{
		Token:     s.Token,
		TokenType: "bearer",
		UserID:    s.UserID,
		Email:     s.Email,
		ExpiresAt: s.ExpiresAt.Format(time.RFC3339),
	}
}

func toProfileDTO(p vacation.Profile) ProfileDTO {
	return ProfileDTO{
		ID:                     string(p.ID),
		Email:                  p.Email,
		FullName:               p.FullName,
		Role:                   string(p.Role),
		AnnualVacationDays:     p.AnnualVacationDays.InexactFloat64(),
		RemainingVacationDays:  p.RemainingVacationDays.InexactFloat64(),
		CompensationRatePerDay: p.CompensationRatePerDay.InexactFloat64(),
		CreatedAt:              formatTime(p.CreatedAt),
	}
}

func toBalanceDTO(b vacation.Balance) BalanceDTO {
	return BalanceDTO{
		AnnualDays:     b.AnnualDays.InexactFloat64(),
		RemainingDays:  b.RemainingDays.InexactFloat64(),
		UsedDays:       b.UsedDays.InexactFloat64(),
		PercentageUsed: b.PercentageUsed.Round(2).InexactFloat64(),
		PercentLabel:   b.PercentLabel(),
		BarPercent:     b.BarPercent.Round(2).InexactFloat64(),
		OutOfRange:     b.OutOfRange(),
	}
}

func toVacationRequestDTO(r vacation.VacationRequest) VacationRequestDTO {
	return VacationRequestDTO{
		ID:            r.ID,
		StartDate:     r.StartDate.String(),
		EndDate:       r.EndDate.String(),
		DaysRequested: r.DaysRequested,
		Status:        string(r.Status),
		Reason:        r.Reason,
		CreatedAt:     formatTime(r.CreatedAt),
		Cancellable:   r.Status.CanTransitionTo(vacation.StatusCancelled),
	}
}

func toCompensationRequestDTO(r vacation.CompensationRequest) CompensationRequestDTO {
	return CompensationRequestDTO{
		ID:           r.ID,
		DaysToSell:   r.DaysToSell.InexactFloat64(),
		RatePerDay:   r.RatePerDay.InexactFloat64(),
		TotalAmount:  r.TotalAmount.InexactFloat64(),
		TotalDisplay: r.TotalAmount.StringFixed(2),
		Status:       string(r.Status),
		Notes:        r.Notes,
		CreatedAt:    formatTime(r.CreatedAt),
		Cancellable:  r.Status.CanTransitionTo(vacation.StatusCancelled),
	}
}

func toDashboardDTO(d *vacation.Dashboard) DashboardDTO {
	dto := DashboardDTO{
		Profile:              toProfileDTO(d.Profile),
		Balance:              toBalanceDTO(d.Balance),
		VacationRequests:     make([]VacationRequestDTO, len(d.VacationRequests)),
		CompensationRequests: make([]CompensationRequestDTO, len(d.CompensationRequests)),
	}
	for i, r := range d.VacationRequests {
		dto.VacationRequests[i] = toVacationRequestDTO(r)
	}
	for i, r := range d.CompensationRequests {
		dto.CompensationRequests[i] = toCompensationRequestDTO(r)
	}
	return dto
}

func formatTime(t time.Time) string {
	if t.IsZero() {
		return ""
	}
	return t.UTC().Format(time.RFC3339)
}
