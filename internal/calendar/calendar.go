// Package calendar generates the bookable time windows of a studio day.
// Everything here is pure: no store is consulted and the same day under
// the same Rule always yields the same windows.
package calendar

import (
	"errors"
	"fmt"
	"strings"
	"time"
)

// TimeLayout is the display format of window boundaries ("9:00 AM").
const TimeLayout = "3:04 PM"

// DayLayout is the calendar-day key format.
const DayLayout = "2006-01-02"

// Window is one generated bookable interval.
type Window struct {
	StartTime string `json:"start_time"`
	EndTime   string `json:"end_time"`
}

// Rule is the weekly availability rule of the studio.
type Rule struct {
	OpenHour    int
	CloseHour   int
	SlotMinutes int
	ClosedDays  []time.Weekday
	Location    *time.Location
}

// DefaultRule is 9:00 to 21:00 in one hour steps, open every day.
func DefaultRule() Rule {
	return Rule{OpenHour: 9, CloseHour: 21, SlotMinutes: 60, Location: time.UTC}
}

var ErrInvalidRule = errors.New("invalid availability rule")

// Validate checks that the rule describes at least one whole window.
func (r Rule) Validate() error {
	if r.OpenHour < 0 || r.CloseHour > 24 || r.CloseHour <= r.OpenHour {
		return fmt.Errorf("%w: hours %d..%d", ErrInvalidRule, r.OpenHour, r.CloseHour)
	}
	if r.SlotMinutes <= 0 || ((r.CloseHour-r.OpenHour)*60)%r.SlotMinutes != 0 {
		return fmt.Errorf("%w: slot length %d does not divide the day", ErrInvalidRule, r.SlotMinutes)
	}
	return nil
}

// Closed reports whether the weekday of day is a closed day.
func (r Rule) Closed(day time.Time) bool {
	wd := day.Weekday()
	for _, c := range r.ClosedDays {
		if c == wd {
			return true
		}
	}
	return false
}

// Windows returns the ordered windows of day.  Only the calendar date of
// day is used.  A closed day yields an empty, non-nil slice.
func (r Rule) Windows(day time.Time) []Window {
	if r.Closed(day) {
		return []Window{}
	}
	base := time.Date(2000, time.January, 1, 0, 0, 0, 0, time.UTC)
	step := time.Duration(r.SlotMinutes) * time.Minute
	start := base.Add(time.Duration(r.OpenHour) * time.Hour)
	end := base.Add(time.Duration(r.CloseHour) * time.Hour)

	out := make([]Window, 0, int(end.Sub(start)/step))
	for t := start; t.Add(step).Compare(end) <= 0; t = t.Add(step) {
		out = append(out, Window{StartTime: t.Format(TimeLayout), EndTime: t.Add(step).Format(TimeLayout)})
	}
	return out
}

// Find returns the generated window of day starting at start.
func (r Rule) Find(day time.Time, start string) (Window, bool) {
	for _, w := range r.Windows(day) {
		if w.StartTime == start {
			return w, true
		}
	}
	return Window{}, false
}

// ParseDay reads a calendar day from "YYYY-MM-DD" or an RFC 3339
// timestamp and returns it at the canonical instant, midnight UTC.  A
// timestamp is first moved into loc so that late-evening local times land
// on the local date.
func ParseDay(s string, loc *time.Location) (time.Time, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return time.Time{}, errors.New("date is required")
	}
	if loc == nil {
		loc = time.UTC
	}
	if d, err := time.Parse(DayLayout, s); err == nil {
		return d, nil
	}
	ts, err := time.Parse(time.RFC3339, s)
	if err != nil {
		return time.Time{}, fmt.Errorf("date %q is not YYYY-MM-DD", s)
	}
	return Canonical(ts.In(loc)), nil
}

// Canonical truncates t to midnight UTC of its own calendar date.
func Canonical(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

// Key formats day as its "YYYY-MM-DD" store key.
func Key(day time.Time) string { return day.Format(DayLayout) }

// ParseWeekdays parses a comma separated list such as "sunday,mon".
func ParseWeekdays(s string) ([]time.Weekday, error) {
	var out []time.Weekday
	for _, p := range strings.Split(s, ",") {
		p = strings.ToLower(strings.TrimSpace(p))
		if p == "" {
			continue
		}
		found := false
		for wd := time.Sunday; wd <= time.Saturday; wd++ {
			name := strings.ToLower(wd.String())
			if p == name || p == name[:3] {
				out = append(out, wd)
				found = true
				break
			}
		}
		if !found {
			return nil, fmt.Errorf("%w: unknown weekday %q", ErrInvalidRule, p)
		}
	}
	return out, nil
}
