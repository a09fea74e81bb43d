// Package window provides pure time-window boundary arithmetic.
//
// Both the rate limiter and the quota manager key their counters on
// aligned window boundaries. All arithmetic is done in UTC, is
// deterministic, and performs no I/O.
package window

import (
	"fmt"
	"time"
)

// Window identifies a measurement window.
type Window string

const (
	// Minute is a calendar-minute window.
	Minute Window = "minute"

	// Hour is a calendar-hour window.
	Hour Window = "hour"

	// Day is a calendar-day window (UTC midnight to midnight).
	Day Window = "day"

	// Week is an ISO week window, starting Monday 00:00 UTC.
	Week Window = "week"

	// Month is a calendar-month window.
	Month Window = "month"

	// Year is a calendar-year window.
	Year Window = "year"

	// Lifetime is an unbounded window with no reset boundary.
	Lifetime Window = "lifetime"
)

// lifetimeEnd is the nominal end of the Lifetime window. It only needs
// to sort after any realistic wall-clock time.
var lifetimeEnd = time.Date(9999, time.December, 31, 23, 59, 59, 0, time.UTC)

// Parse converts a string into a Window. It accepts the lowercase
// window names used in configuration files.
func Parse(s string) (Window, error) {
	switch Window(s) {
	case Minute, Hour, Day, Week, Month, Year, Lifetime:
		return Window(s), nil
	}
	return "", fmt.Errorf("unknown window %q", s)
}

// Valid reports whether w is one of the defined windows.
func (w Window) Valid() bool {
	_, err := Parse(string(w))
	return err == nil
}

// Boundaries returns the half-open interval [start, end) containing now.
//
// Minute, Hour, and Day truncate now to the unit. Week starts at the
// most recent Monday 00:00 UTC. Month and Year roll over on calendar
// boundaries. Lifetime returns the Unix epoch and a far-future sentinel.
func Boundaries(w Window, now time.Time) (start, end time.Time) {
	now = now.UTC()

	switch w {
	case Minute:
		start = now.Truncate(time.Minute)
		return start, start.Add(time.Minute)

	case Hour:
		start = now.Truncate(time.Hour)
		return start, start.Add(time.Hour)

	case Day:
		start = time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, time.UTC)
		return start, start.AddDate(0, 0, 1)

	case Week:
		day := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, time.UTC)
		// time.Weekday numbers Sunday as 0; shift so Monday is 0.
		offset := (int(day.Weekday()) + 6) % 7
		start = day.AddDate(0, 0, -offset)
		return start, start.AddDate(0, 0, 7)

	case Month:
		start = time.Date(now.Year(), now.Month(), 1, 0, 0, 0, 0, time.UTC)
		return start, start.AddDate(0, 1, 0)

	case Year:
		start = time.Date(now.Year(), 1, 1, 0, 0, 0, 0, time.UTC)
		return start, start.AddDate(1, 0, 0)

	case Lifetime:
		return time.Unix(0, 0).UTC(), lifetimeEnd

	default:
		// Unknown windows behave like Lifetime so callers never divide
		// by a zero-length interval.
		return time.Unix(0, 0).UTC(), lifetimeEnd
	}
}

// TTL returns the time remaining until the window containing now ends.
// Lifetime returns 0, which cache backends interpret as "no expiry".
func TTL(w Window, now time.Time) time.Duration {
	if w == Lifetime {
		return 0
	}
	_, end := Boundaries(w, now)
	return end.Sub(now.UTC())
}
