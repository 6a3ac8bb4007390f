package chazarah

import "github.com/chazarah/obligation-engine/generic"

// CurrentYear returns the year whose range contains today.
func CurrentYear(years []Year, today generic.TimePoint) (Year, bool) {
	for _, y := range years {
		if y.Valid() && y.Period().Contains(today) {
			return y, true
		}
	}
	return Year{}, false
}
