package generic

import (
	"fmt"
	"regexp"
	"strings"
	"time"
)

// =============================================================================
// TIME POINT - Civil (wall clock) time, no time zone conversion
// =============================================================================

// Layouts used on the wire and in storage. Civil timestamps are compared
// lexicographically by the stores, so every timestamp is zero padded.
const (
	CivilLayout = "2006-01-02 15:04:05"
	DateLayout  = "2006-01-02"
)

// TimePoint is a local civil timestamp. The wall clock reading is kept in a
// UTC time.Time so that arithmetic never crosses a DST boundary.
type TimePoint struct {
	Time time.Time
}

// Constructors
func NewDate(year int, month time.Month, day int) TimePoint {
	return TimePoint{Time: time.Date(year, month, day, 0, 0, 0, 0, time.UTC)}
}

func NewTimePoint(year int, month time.Month, day, hour, min, sec int) TimePoint {
	return TimePoint{Time: time.Date(year, month, day, hour, min, sec, 0, time.UTC)}
}

// FromTime reads the wall clock of t and drops its zone.
func FromTime(t time.Time) TimePoint {
	return NewTimePoint(t.Year(), t.Month(), t.Day(), t.Hour(), t.Minute(), t.Second())
}

// civilSuffix is what may follow the seconds: a fraction and a zone, both
// optional and both ignored.
var civilSuffix = regexp.MustCompile(`^(\.\d+)?(Z|[+-]\d{2}:?\d{2})?$`)

// ParseTimePoint accepts "YYYY-MM-DD HH:mm:ss", the ISO "T" separated form
// and a bare date. Fractional seconds and zone suffixes are ignored; any
// other trailing text is an error.
func ParseTimePoint(s string) (TimePoint, error) {
	s = strings.TrimSpace(s)
	if len(s) == len(DateLayout) {
		t, err := time.Parse(DateLayout, s)
		if err != nil {
			return TimePoint{}, fmt.Errorf("invalid date %q: %w", s, err)
		}
		return TimePoint{Time: t}, nil
	}
	if len(s) < len(CivilLayout) || !civilSuffix.MatchString(s[len(CivilLayout):]) {
		return TimePoint{}, fmt.Errorf("invalid timestamp %q", s)
	}
	civil := strings.Replace(s[:len(CivilLayout)], "T", " ", 1)
	t, err := time.Parse(CivilLayout, civil)
	if err != nil {
		return TimePoint{}, fmt.Errorf("invalid timestamp %q: %w", s, err)
	}
	return TimePoint{Time: t}, nil
}

func MustParseTimePoint(s string) TimePoint {
	tp, err := ParseTimePoint(s)
	if err != nil {
		panic(err)
	}
	return tp
}

// Comparison (to the second)
func (tp TimePoint) Before(other TimePoint) bool        { return tp.Time.Before(other.Time) }
func (tp TimePoint) Equal(other TimePoint) bool         { return tp.Time.Equal(other.Time) }
func (tp TimePoint) After(other TimePoint) bool         { return tp.Time.After(other.Time) }
func (tp TimePoint) BeforeOrEqual(other TimePoint) bool { return !tp.After(other) }
func (tp TimePoint) AfterOrEqual(other TimePoint) bool  { return !tp.Before(other) }

// Comparison by calendar date only.
func (tp TimePoint) SameDay(other TimePoint) bool    { return tp.Date().Equal(other.Date()) }
func (tp TimePoint) DayBefore(other TimePoint) bool  { return tp.Date().Before(other.Date()) }
func (tp TimePoint) DayAfter(other TimePoint) bool   { return tp.Date().After(other.Date()) }

// Date truncates to midnight of the same calendar day.
func (tp TimePoint) Date() TimePoint {
	return NewDate(tp.Time.Year(), tp.Time.Month(), tp.Time.Day())
}

// StartOfDay stamps 00:00:01, the first second a quarter covers.
func (tp TimePoint) StartOfDay() TimePoint {
	return NewTimePoint(tp.Time.Year(), tp.Time.Month(), tp.Time.Day(), 0, 0, 1)
}

// EndOfDay stamps 23:59:59. Inclusive date-only upper bounds use it.
func (tp TimePoint) EndOfDay() TimePoint {
	return NewTimePoint(tp.Time.Year(), tp.Time.Month(), tp.Time.Day(), 23, 59, 59)
}

// Arithmetic
func (tp TimePoint) AddDays(n int) TimePoint { return TimePoint{Time: tp.Time.AddDate(0, 0, n)} }

// Properties
func (tp TimePoint) Year() int         { return tp.Time.Year() }
func (tp TimePoint) Month() time.Month { return tp.Time.Month() }
func (tp TimePoint) Day() int          { return tp.Time.Day() }
func (tp TimePoint) IsZero() bool      { return tp.Time.IsZero() }

func (tp TimePoint) String() string     { return tp.Time.Format(CivilLayout) }
func (tp TimePoint) DateString() string { return tp.Time.Format(DateLayout) }

// =============================================================================
// CLOCK - Source of "today"
// =============================================================================

// Clock supplies the current civil time. Engines never read the system clock
// directly so tests can pin "today".
type Clock interface {
	Now() TimePoint
}

// SystemClock reads the local wall clock.
type SystemClock struct{}

func (SystemClock) Now() TimePoint { return FromTime(time.Now()) }

// FixedClock always reports the same instant.
type FixedClock struct {
	At TimePoint
}

func (c FixedClock) Now() TimePoint { return c.At }

// =============================================================================
// TIME UTILITIES
// =============================================================================

// DaysBetween counts calendar days from one date to another, ignoring time of day.
func DaysBetween(from, to TimePoint) int {
	return int(to.Date().Time.Sub(from.Date().Time).Hours() / 24)
}

// InclusiveDays is DaysBetween plus one: both endpoints count.
func InclusiveDays(from, to TimePoint) int {
	return DaysBetween(from, to) + 1
}
