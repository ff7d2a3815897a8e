// Package vacation implements the employee vacation desk: balances, time-off
// and leave-compensation requests, and the gate in front of them.
package vacation

import (
	"fmt"
	"time"

	"github.com/shopspring/decimal"
	"github.com/warp/vacation-desk/generic"
)

// UserID is the opaque identity id shared by the identity provider and the profile.
type UserID string

// =============================================================================
// STATUS - Request lifecycle
// =============================================================================

// Status is the lifecycle state of a vacation or compensation request.
//
//	pending --> approved    (external)
//	        --> rejected    (external)
//	        --> cancelled   (owner)
//
// approved, rejected and cancelled accept no further transition.
type Status string

const (
	StatusPending   Status = "pending"
	StatusApproved  Status = "approved"
	StatusRejected  Status = "rejected"
	StatusCancelled Status = "cancelled"
)

// ParseStatus validates a stored status string.
func ParseStatus(s string) (Status, error) {
	switch st := Status(s); st {
	case StatusPending, StatusApproved, StatusRejected, StatusCancelled:
		return st, nil
	}
	return "", fmt.Errorf("unknown request status %q", s)
}

// IsTerminal reports whether the status accepts no further transition.
func (s Status) IsTerminal() bool { return s != StatusPending }

// CanTransitionTo reports whether s -> to is a legal lifecycle move.
func (s Status) CanTransitionTo(to Status) bool {
	if s.IsTerminal() {
		return false
	}
	switch to {
	case StatusApproved, StatusRejected, StatusCancelled:
		return true
	}
	return false
}

// Role of a profile. Only employees exist in this service.
type Role string

const RoleEmployee Role = "employee"

// =============================================================================
// PROFILE
// =============================================================================

// Profile is the employee record holding vacation balances and the default
// compensation rate. Balances are only changed by the external approval process.
type Profile struct {
	ID                     UserID
	Email                  string
	FullName               string
	Role                   Role
	AnnualVacationDays     decimal.Decimal
	RemainingVacationDays  decimal.Decimal
	CompensationRatePerDay decimal.Decimal
	CreatedAt              time.Time
	UpdatedAt              time.Time
}

// Validate enforces the creation-time invariants of a profile.
// Rows corrected externally after creation are not re-validated on read.
func (p Profile) Validate() error {
	if p.ID == "" {
		return generic.NewValidationError("id", "Profile id is required")
	}
	if p.AnnualVacationDays.IsNegative() {
		return generic.NewValidationError("annual_vacation_days", "Annual vacation days cannot be negative")
	}
	if p.RemainingVacationDays.IsNegative() {
		return generic.NewValidationError("remaining_vacation_days", "Remaining vacation days cannot be negative")
	}
	if p.RemainingVacationDays.GreaterThan(p.AnnualVacationDays) {
		return generic.NewValidationError("remaining_vacation_days",
			"Remaining vacation days (%s) cannot exceed annual days (%s)",
			p.RemainingVacationDays, p.AnnualVacationDays)
	}
	if p.CompensationRatePerDay.IsNegative() {
		return generic.NewValidationError("compensation_rate_per_day", "Compensation rate cannot be negative")
	}
	return nil
}

// ProfileDefaults are applied to every profile created at sign-up.
type ProfileDefaults struct {
	AnnualVacationDays     decimal.Decimal
	CompensationRatePerDay decimal.Decimal
}

// StandardDefaults gives new employees 20 days and a rate of 100 per day.
func StandardDefaults() ProfileDefaults {
	return ProfileDefaults{
		AnnualVacationDays:     decimal.NewFromInt(20),
		CompensationRatePerDay: decimal.NewFromInt(100),
	}
}

// =============================================================================
// REQUESTS
// =============================================================================

// VacationRequest asks for time off over an inclusive date range.
type VacationRequest struct {
	ID            string
	UserID        UserID
	StartDate     generic.Date
	EndDate       generic.Date
	DaysRequested int // business days in [StartDate, EndDate], > 0
	Status        Status
	Reason        string
	CreatedAt     time.Time
	UpdatedAt     time.Time
}

// CompensationRequest asks to be paid out for unused vacation days.
type CompensationRequest struct {
	ID          string
	UserID      UserID
	DaysToSell  decimal.Decimal
	RatePerDay  decimal.Decimal
	TotalAmount decimal.Decimal // CompensationTotal(DaysToSell, RatePerDay)
	Status      Status
	Notes       string
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

// CompensationTotal is days x rate rounded to 2 decimal places.
func CompensationTotal(days, rate decimal.Decimal) decimal.Decimal {
	return days.Mul(rate).Round(2)
}

// TotalMatches re-derives the total from the stored factors.
func (r CompensationRequest) TotalMatches() bool {
	return CompensationTotal(r.DaysToSell, r.RatePerDay).Equal(r.TotalAmount)
}

// Kind names a request type in errors and in-flight keys.
type Kind string

const (
	KindVacation     Kind = "vacation_request"
	KindCompensation Kind = "compensation_request"
)

// =============================================================================
// DASHBOARD - Everything the owner sees, reloaded after every mutation
// =============================================================================

type Dashboard struct {
	Profile              Profile
	Balance              Balance
	VacationRequests     []VacationRequest     // newest first
	CompensationRequests []CompensationRequest // newest first
}
