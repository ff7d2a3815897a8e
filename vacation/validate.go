package vacation

import (
	"fmt"
	"strings"

	"github.com/shopspring/decimal"
	"github.com/warp/vacation-desk/generic"
)

// =============================================================================
// FORMS - Raw user input, as typed
// =============================================================================

// VacationForm is the raw time-off form. Dates are YYYY-MM-DD.
type VacationForm struct {
	StartDate string
	EndDate   string
	Reason    string
}

// CompensationForm is the raw sell-my-days form.
type CompensationForm struct {
	DaysToSell string
	RatePerDay string
	Notes      string
}

// VacationDraft is a validated vacation form, ready to persist.
type VacationDraft struct {
	Period        generic.Period
	DaysRequested int
	Reason        string
}

// CompensationDraft is a validated compensation form, ready to persist.
type CompensationDraft struct {
	DaysToSell  decimal.Decimal
	RatePerDay  decimal.Decimal
	TotalAmount decimal.Decimal
	Notes       string
}

// =============================================================================
// AMOUNTS
// =============================================================================

const (
	// Bounds on a typed amount: decimal exponent and raw length.
	maxAmountExponent = 10
	maxAmountLength   = 32
)

// ParseAmount parses a day count or rate typed into a form, rejecting
// values whose size or exponent is out of range before any arithmetic.
func ParseAmount(raw string) (decimal.Decimal, error) {
	raw = strings.TrimSpace(raw)
	if len(raw) > maxAmountLength {
		return decimal.Zero, fmt.Errorf("%w: amount is longer than %d characters", generic.ErrInvalidInput, maxAmountLength)
	}
	d, err := decimal.NewFromString(raw)
	if err != nil {
		return decimal.Zero, fmt.Errorf("%w: %v", generic.ErrInvalidInput, err)
	}
	if exp := d.Exponent(); exp < -maxAmountExponent || exp > maxAmountExponent {
		return decimal.Zero, fmt.Errorf("%w: amount %q is out of range", generic.ErrInvalidInput, raw)
	}
	return d, nil
}

// =============================================================================
// VALIDATORS - Pure, run before any store call
// =============================================================================

// ValidateVacation checks a time-off form against the remaining balance.
// Every failure is a *generic.ValidationError.
func ValidateVacation(form VacationForm, remaining decimal.Decimal) (VacationDraft, error) {
	startRaw, endRaw := strings.TrimSpace(form.StartDate), strings.TrimSpace(form.EndDate)
	if startRaw == "" || endRaw == "" {
		return VacationDraft{}, generic.NewValidationError("start_date", "Please select both start and end dates")
	}

	start, err := generic.ParseDate(startRaw)
	if err != nil {
		return VacationDraft{}, generic.NewValidationError("start_date", "Invalid start date (use YYYY-MM-DD)")
	}
	end, err := generic.ParseDate(endRaw)
	if err != nil {
		return VacationDraft{}, generic.NewValidationError("end_date", "Invalid end date (use YYYY-MM-DD)")
	}

	period := generic.Period{Start: start, End: end}
	if period.Validate() != nil {
		return VacationDraft{}, generic.NewValidationError("end_date", "End date must be after start date")
	}

	days := period.BusinessDays()
	if days == 0 {
		return VacationDraft{}, generic.NewValidationError("start_date", "Please select at least one business day")
	}
	if decimal.NewFromInt(int64(days)).GreaterThan(remaining) {
		return VacationDraft{}, generic.NewValidationError("end_date", "You only have %s days available", remaining)
	}

	return VacationDraft{
		Period:        period,
		DaysRequested: days,
		Reason:        strings.TrimSpace(form.Reason),
	}, nil
}

// ValidateCompensation checks a sell-my-days form against the remaining balance.
func ValidateCompensation(form CompensationForm, remaining decimal.Decimal) (CompensationDraft, error) {
	daysRaw, rateRaw := strings.TrimSpace(form.DaysToSell), strings.TrimSpace(form.RatePerDay)
	if daysRaw == "" || rateRaw == "" {
		return CompensationDraft{}, generic.NewValidationError("days_to_sell", "Please fill in all required fields")
	}

	days, err := ParseAmount(daysRaw)
	if err != nil || !days.IsPositive() {
		return CompensationDraft{}, generic.NewValidationError("days_to_sell", "Days to sell must be a positive number")
	}
	rate, err := ParseAmount(rateRaw)
	if err != nil || !rate.IsPositive() {
		return CompensationDraft{}, generic.NewValidationError("rate_per_day", "Rate per day must be a positive number")
	}

	if days.GreaterThan(remaining) {
		return CompensationDraft{}, generic.NewValidationError("days_to_sell", "You only have %s days available to sell", remaining)
	}

	return CompensationDraft{
		DaysToSell:  days,
		RatePerDay:  rate,
		TotalAmount: CompensationTotal(days, rate),
		Notes:       strings.TrimSpace(form.Notes),
	}, nil
}
