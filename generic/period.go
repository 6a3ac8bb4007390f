package generic

// =============================================================================
// PERIOD - An inclusive range of calendar days
// =============================================================================

// Period is the inclusive range [Start, End].
//
// Examples:
//   - A Jewish year: 2024-09-15 .. 2025-09-15
//   - One quarter of it: 2024-09-17 .. 2024-12-16
type Period struct {
	Start TimePoint
	End   TimePoint
}

// Contains returns true if the time point is within the period [Start, End]
func (p Period) Contains(t TimePoint) bool {
	return t.AfterOrEqual(p.Start) && t.BeforeOrEqual(p.End)
}

// Days returns the inclusive number of calendar days, or 0 when End falls
// on a day before Start.
func (p Period) Days() int {
	if p.End.DayBefore(p.Start) {
		return 0
	}
	return InclusiveDays(p.Start, p.End)
}

// String returns a string representation of the period.
func (p Period) String() string {
	return "[" + p.Start.String() + ", " + p.End.String() + "]"
}

// Split divides the period into n contiguous day ranges. The first n-1 parts
// get floor(days/n) days each; the last part also absorbs the remainder and
// is clamped to End. Returned parts are date-only (midnight).
//
// Returns nil when the period is too short to give every part at least one day.
func (p Period) Split(n int) []Period {
	if n <= 0 {
		return nil
	}
	days := p.Days()
	base := days / n
	if base == 0 {
		return nil
	}

	last := p.End.Date()
	parts := make([]Period, 0, n)
	start := p.Start.Date()
	for i := 0; i < n; i++ {
		length := base
		if i == n-1 {
			length += days % n
		}
		end := start.AddDays(length - 1)
		if end.After(last) {
			end = last
		}
		parts = append(parts, Period{Start: start, End: end})
		start = end.AddDays(1)
	}
	return parts
}

