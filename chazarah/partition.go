package chazarah

import "github.com/chazarah/obligation-engine/generic"

// GraceDays is how long after a year starts the first quarter begins.
const GraceDays = 2

// Partition splits a year into four contiguous quarters.
//
// The window opens GraceDays after the year's start date and closes on its
// end date. With D inclusive days in the window, quarters 1-3 get D/4 days
// each and quarter 4 gets D/4 + D%4, ending on the year's end date. Each
// quarter starts at 00:00:01 and ends at 23:59:59.
//
// A malformed year, or one whose window is too short to give every quarter
// a day, yields no quarters.
func Partition(y Year) []Quarter {
	if !y.Valid() {
		return nil
	}
	window := generic.Period{
		Start: y.StartDate.AddDays(GraceDays).Date(),
		End:   y.EndDate.Date(),
	}
	if !window.End.DayAfter(window.Start) {
		return nil
	}

	parts := window.Split(QuartersPerYear)
	if len(parts) != QuartersPerYear {
		return nil
	}

	quarters := make([]Quarter, len(parts))
	for i, p := range parts {
		quarters[i] = Quarter{
			Index: i + 1,
			Start: p.Start.StartOfDay(),
			End:   p.End.EndOfDay(),
		}
	}
	return quarters
}
