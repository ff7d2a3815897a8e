package generic

// =============================================================================
// PERIOD - Inclusive calendar range [Start, End]
// =============================================================================

// Period is an inclusive range of calendar days.
//
// Examples:
//   - A single day off: Start == End
//   - A week of vacation: Mon 2024-03-04 to Fri 2024-03-08
type Period struct {
	Start Date
	End   Date
}

// Validate rejects a period whose End is before its Start.
func (p Period) Validate() error {
	if p.End.Before(p.Start) {
		return ErrInvalidPeriod
	}
	return nil
}

// Contains returns true if d is within [Start, End].
func (p Period) Contains(d Date) bool {
	return !d.Before(p.Start) && !d.After(p.End)
}

// Days returns every calendar day in the period.
func (p Period) Days() []Date {
	var days []Date
	for current := p.Start; current.BeforeOrEqual(p.End); current = current.AddDays(1) {
		days = append(days, current)
	}
	return days
}

// BusinessDays counts the Monday-Friday days in [Start, End].
// An inverted period counts as zero; callers reject it with Validate first.
func (p Period) BusinessDays() int {
	count := 0
	for current := p.Start; current.BeforeOrEqual(p.End); current = current.AddDays(1) {
		if current.IsBusinessDay() {
			count++
		}
	}
	return count
}

// BusinessDaysBetween is BusinessDays for an ad-hoc range.
func BusinessDaysBetween(start, end Date) int {
	return Period{Start: start, End: end}.BusinessDays()
}

func (p Period) String() string {
	return "[" + p.Start.String() + ", " + p.End.String() + "]"
}
