// Package dates holds the day arithmetic shared by the CPM solver and the
// Gantt period resolver. Every "day" in pertloom is a UTC calendar day and
// every duration is an exclusive difference between two such days.
package dates

import (
	"math"
	"strings"
	"time"
)

const day = 24 * time.Hour

// layouts accepted by Parse, tried in order.
var layouts = []string{
	"2006-01-02",
	time.RFC3339,
	time.RFC3339Nano,
	"2006-01-02T15:04:05",
	"2006-01-02 15:04:05",
	"02/01/2006",
}

// Day truncates t to midnight UTC of the calendar day it falls on.
func Day(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

// DaysBetween returns the number of whole days from `from` to `to`.
// The result is negative when `to` is before `from`.
func DaysBetween(from, to time.Time) int {
	return int(math.Round(float64(Day(to).Sub(Day(from))) / float64(day)))
}

// AddDays returns the calendar day n days after t.
func AddDays(t time.Time, n int) time.Time {
	d := Day(t)
	return d.AddDate(0, 0, n)
}

// Parse reads a date in any of the formats the entity store emits.
// Blank or unparseable input reports ok=false; it is never an error.
func Parse(s string) (time.Time, bool) {
	s = strings.TrimSpace(s)
	if s == "" || s == "null" {
		return time.Time{}, false
	}
	for _, layout := range layouts {
		if t, err := time.Parse(layout, s); err == nil {
			return Day(t), true
		}
	}
	return time.Time{}, false
}

// ParsePtr is Parse returning nil for "no date".
func ParsePtr(s string) *time.Time {
	t, ok := Parse(s)
	if !ok {
		return nil
	}
	return &t
}

// Epoch returns the earliest of the given dates, or today when none are set.
func Epoch(today time.Time, ts ...*time.Time) time.Time {
	var earliest *time.Time
	for _, t := range ts {
		if t == nil {
			continue
		}
		if earliest == nil || t.Before(*earliest) {
			earliest = t
		}
	}
	if earliest == nil {
		return Day(today)
	}
	return Day(*earliest)
}

// Offset returns the day offset of t from epoch, or ok=false when t is nil.
func Offset(epoch time.Time, t *time.Time) (int, bool) {
	if t == nil {
		return 0, false
	}
	return DaysBetween(epoch, *t), true
}

// Format renders a day as YYYY-MM-DD.
func Format(t time.Time) string {
	return Day(t).Format("2006-01-02")
}

// Ptr returns a pointer to the calendar day of t.
func Ptr(t time.Time) *time.Time {
	d := Day(t)
	return &d
}
