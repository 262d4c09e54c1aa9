package core

import (
	"fmt"
	"time"
)

// DateLayout is the calendar date format used on every boundary
const DateLayout = "2006-01-02"

// CivilDate returns midnight UTC of the calendar day t falls on in loc.
// All dates in the core are normalized this way so day arithmetic is exact.
func CivilDate(t time.Time, loc *time.Location) time.Time {
	if loc != nil {
		t = t.In(loc)
	}
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

// DaysBetween returns the whole number of days from a to b
func DaysBetween(a, b time.Time) int {
	a = CivilDate(a, nil)
	b = CivilDate(b, nil)
	return int(b.Sub(a).Hours() / 24)
}

// ParseDate parses a YYYY-MM-DD calendar date
func ParseDate(s string) (time.Time, error) {
	t, err := time.Parse(DateLayout, s)
	if err != nil {
		return time.Time{}, fmt.Errorf("invalid date %q: %w", s, err)
	}
	return t, nil
}

// Window is an inclusive lookahead band in days
type Window struct {
	MinDays int
	MaxDays int
}

// DefaultWindow is the reference 19-25 day alert band
var DefaultWindow = Window{MinDays: 19, MaxDays: 25}

// Contains reports whether days falls inside the window
func (w Window) Contains(days int) bool {
	return days >= w.MinDays && days <= w.MaxDays
}

// DateRange is an inclusive range of calendar dates
type DateRange struct {
	From time.Time `json:"from"`
	To   time.Time `json:"to"`
}

// NewDateRange normalizes both ends and validates the order
func NewDateRange(from, to time.Time) (DateRange, error) {
	r := DateRange{From: CivilDate(from, nil), To: CivilDate(to, nil)}
	if r.From.After(r.To) {
		return DateRange{}, fmt.Errorf("%s after %s: %w", r.From.Format(DateLayout), r.To.Format(DateLayout), ErrInvalidDateRange)
	}
	return r, nil
}

// Contains reports whether the day of t is inside the range
func (r DateRange) Contains(t time.Time) bool {
	d := CivilDate(t, nil)
	return !d.Before(r.From) && !d.After(r.To)
}
