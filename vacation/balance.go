package vacation

import "github.com/shopspring/decimal"

var hundred = decimal.NewFromInt(100)

// Balance is the derived view of a profile's vacation days.
type Balance struct {
	AnnualDays    decimal.Decimal
	RemainingDays decimal.Decimal
	UsedDays      decimal.Decimal

	// PercentageUsed is the raw usage. It can leave [0, 100] when a profile
	// was corrected externally so that remaining > annual.
	PercentageUsed decimal.Decimal

	// BarPercent is PercentageUsed clamped to [0, 100] for progress bars.
	BarPercent decimal.Decimal
}

// ComputeBalance derives used days and usage percentage.
// With annual == 0 the percentage is reported as 0.
func ComputeBalance(annual, remaining decimal.Decimal) Balance {
	used := annual.Sub(remaining)

	pct := decimal.Zero
	if !annual.IsZero() {
		pct = used.Div(annual).Mul(hundred)
	}

	bar := pct
	if bar.IsNegative() {
		bar = decimal.Zero
	}
	if bar.GreaterThan(hundred) {
		bar = hundred
	}

	return Balance{
		AnnualDays:     annual,
		RemainingDays:  remaining,
		UsedDays:       used,
		PercentageUsed: pct,
		BarPercent:     bar,
	}
}

// BalanceOf is ComputeBalance for a profile.
func BalanceOf(p Profile) Balance {
	return ComputeBalance(p.AnnualVacationDays, p.RemainingVacationDays)
}

// OutOfRange reports a percentage outside [0, 100].
func (b Balance) OutOfRange() bool {
	return b.PercentageUsed.IsNegative() || b.PercentageUsed.GreaterThan(hundred)
}

// PercentLabel renders the raw percentage as whole percent, e.g. "35%".
func (b Balance) PercentLabel() string {
	return b.PercentageUsed.Round(0).String() + "%"
}
