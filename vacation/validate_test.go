package vacation_test

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/warp/vacation-desk/generic"
	"github.com/warp/vacation-desk/vacation"
)

// =============================================================================
// VACATION FORM
// =============================================================================

func TestValidateVacation(t *testing.T) {
	tests := []struct {
		name      string
		form      vacation.VacationForm
		remaining string
		field     string
		message   string
	}{
		{"missing end", vacation.VacationForm{StartDate: "2024-03-04"}, "20", "start_date", "Please select both start and end dates"},
		{"missing start", vacation.VacationForm{EndDate: "2024-03-04"}, "20", "start_date", "Please select both start and end dates"},
		{"bad start", vacation.VacationForm{StartDate: "tomorrow", EndDate: "2024-03-04"}, "20", "start_date", "Invalid start date (use YYYY-MM-DD)"},
		{"end before start", vacation.VacationForm{StartDate: "2024-03-08", EndDate: "2024-03-04"}, "20", "end_date", "End date must be after start date"},
		{"weekend only", vacation.VacationForm{StartDate: "2024-03-09", EndDate: "2024-03-10"}, "20", "start_date", "Please select at least one business day"},
		{"over balance", vacation.VacationForm{StartDate: "2024-03-04", EndDate: "2024-03-08"}, "3", "end_date", "You only have 3 days available"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := vacation.ValidateVacation(tt.form, dec(tt.remaining))
			require.Error(t, err)

			var verr *generic.ValidationError
			require.True(t, errors.As(err, &verr), "expected ValidationError, got %T", err)
			assert.Equal(t, tt.field, verr.Field)
			assert.Equal(t, tt.message, verr.Message)
			assert.True(t, generic.IsClientError(err))
		})
	}
}

func TestValidateVacation_Accepts(t *testing.T) {
	// GIVEN: Mon-Fri with exactly 5 days left
	draft, err := vacation.ValidateVacation(vacation.VacationForm{
		StartDate: "2024-03-04",
		EndDate:   "2024-03-08",
		Reason:    "  Family trip ",
	}, dec("5"))

	// THEN: Accepted, days derived from the range
	require.NoError(t, err)
	assert.Equal(t, 5, draft.DaysRequested)
	assert.Equal(t, "Family trip", draft.Reason)
	assert.Equal(t, "2024-03-04", draft.Period.Start.String())
}

func TestValidateVacation_SingleDay(t *testing.T) {
	draft, err := vacation.ValidateVacation(vacation.VacationForm{StartDate: "2024-03-06", EndDate: "2024-03-06"}, dec("1"))
	require.NoError(t, err)
	assert.Equal(t, 1, draft.DaysRequested)
}

func TestValidateVacation_DaysAlwaysMatchRange(t *testing.T) {
	// Whatever the range, an accepted draft counts the same days as the period.
	start := generic.MustParseDate("2024-03-01")
	for offset := 0; offset < 21; offset++ {
		end := start.AddDays(offset)
		draft, err := vacation.ValidateVacation(vacation.VacationForm{
			StartDate: start.String(),
			EndDate:   end.String(),
		}, dec("100"))
		if err != nil {
			continue
		}
		assert.Equal(t, generic.BusinessDaysBetween(start, end), draft.DaysRequested)
		assert.Greater(t, draft.DaysRequested, 0)
	}
}

// =============================================================================
// COMPENSATION FORM
// =============================================================================

func TestValidateCompensation(t *testing.T) {
	tests := []struct {
		name      string
		form      vacation.CompensationForm
		remaining string
		field     string
		message   string
	}{
		{"missing days", vacation.CompensationForm{RatePerDay: "100"}, "20", "days_to_sell", "Please fill in all required fields"},
		{"missing rate", vacation.CompensationForm{DaysToSell: "1"}, "20", "days_to_sell", "Please fill in all required fields"},
		{"zero days", vacation.CompensationForm{DaysToSell: "0", RatePerDay: "100"}, "20", "days_to_sell", "Days to sell must be a positive number"},
		{"text days", vacation.CompensationForm{DaysToSell: "abc", RatePerDay: "100"}, "20", "days_to_sell", "Days to sell must be a positive number"},
		{"negative rate", vacation.CompensationForm{DaysToSell: "1", RatePerDay: "-5"}, "20", "rate_per_day", "Rate per day must be a positive number"},
		{"over balance", vacation.CompensationForm{DaysToSell: "4", RatePerDay: "100"}, "3", "days_to_sell", "You only have 3 days available to sell"},
		{"tiny exponent days", vacation.CompensationForm{DaysToSell: "1e-2000000000", RatePerDay: "100"}, "20", "days_to_sell", "Days to sell must be a positive number"},
		{"huge exponent rate", vacation.CompensationForm{DaysToSell: "1", RatePerDay: "1e2000000000"}, "20", "rate_per_day", "Rate per day must be a positive number"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := vacation.ValidateCompensation(tt.form, dec(tt.remaining))
			var verr *generic.ValidationError
			require.True(t, errors.As(err, &verr), "expected ValidationError, got %v", err)
			assert.Equal(t, tt.field, verr.Field)
			assert.Equal(t, tt.message, verr.Message)
		})
	}
}

func TestValidateCompensation_Total(t *testing.T) {
	// GIVEN: 2.5 days at 100
	draft, err := vacation.ValidateCompensation(vacation.CompensationForm{DaysToSell: "2.5", RatePerDay: "100"}, dec("20"))

	// THEN: 250.00
	require.NoError(t, err)
	assert.Equal(t, "250.00", draft.TotalAmount.StringFixed(2))
}

func TestCompensationTotal_RoundsToCents(t *testing.T) {
	total := vacation.CompensationTotal(dec("1.333"), dec("100.01"))
	assert.Equal(t, "133.31", total.StringFixed(2))

	req := vacation.CompensationRequest{DaysToSell: dec("1.333"), RatePerDay: dec("100.01"), TotalAmount: total}
	assert.True(t, req.TotalMatches())
	req.TotalAmount = dec("133.32")
	assert.False(t, req.TotalMatches())
}

func TestValidateCompensation_SellEverything(t *testing.T) {
	_, err := vacation.ValidateCompensation(vacation.CompensationForm{DaysToSell: "3", RatePerDay: "100"}, dec("3"))
	assert.NoError(t, err, "selling exactly the remaining days is allowed")
}

func TestParseAmount(t *testing.T) {
	for _, ok := range []string{"2.5", " 100 ", "1e3", "0.5", "120.50"} {
		_, err := vacation.ParseAmount(ok)
		assert.NoError(t, err, ok)
	}

	for _, bad := range []string{"", "abc", "1e-2000000000", "1e2000000000", "0.000000000001", "1234567890123456789012345678901234"} {
		_, err := vacation.ParseAmount(bad)
		assert.ErrorIs(t, err, generic.ErrInvalidInput, bad)
	}
}

// =============================================================================
// PREVIEWS
// =============================================================================

func TestPreviews(t *testing.T) {
	assert.Equal(t, 5, vacation.PreviewBusinessDays("2024-03-04", "2024-03-08"))
	assert.Equal(t, 0, vacation.PreviewBusinessDays("2024-03-04", ""))
	assert.Equal(t, 0, vacation.PreviewBusinessDays("2024-03-08", "2024-03-04"))

	assert.Equal(t, "250.00", vacation.QuoteCompensation("2.5", "100").StringFixed(2))
	assert.True(t, vacation.QuoteCompensation("x", "100").IsZero())
	assert.True(t, vacation.QuoteCompensation("1e-2000000000", "1").IsZero())
	assert.True(t, vacation.QuoteCompensation("1", "1e2000000000").IsZero())
}
