// Package calendar is the month/day calendar engine shared by the trips and
// refuelling screens.
//
// It derives the query window for a reference month, buckets dated records
// by day of month, tracks which month and day are on screen, and lays out
// the 7-column grid. Presentation is delegated to a Renderer supplied by the
// caller; the package never decides how a day looks.
package calendar

import (
	"fmt"
	"time"
)

// Window is the first and last calendar day of a month. It is always
// derived from a reference date with MonthWindow.
type Window struct {
	Start time.Time
	End   time.Time
}

// MonthWindow returns the window of ref's month. End is day 0 of the next
// month, i.e. the last day of ref's month, at midnight.
func MonthWindow(ref time.Time) Window {
	y, m, _ := ref.Date()
	loc := ref.Location()
	return Window{
		Start: time.Date(y, m, 1, 0, 0, 0, 0, loc),
		End:   time.Date(y, m+1, 0, 0, 0, 0, 0, loc),
	}
}

// Contains reports whether t falls on any day of the window, including the
// whole last day.
func (w Window) Contains(t time.Time) bool {
	if t.Before(w.Start) {
		return false
	}
	return t.Before(w.ExclusiveEnd())
}

// ExclusiveEnd is the first instant after the window: midnight of the
// next month's first day. Stores query [Start, ExclusiveEnd).
func (w Window) ExclusiveEnd() time.Time {
	return w.End.AddDate(0, 0, 1)
}

// Key identifies the window's month, e.g. "2024-02".
func (w Window) Key() string {
	return fmt.Sprintf("%04d-%02d", w.Start.Year(), int(w.Start.Month()))
}

// DaysIn returns the number of days in ref's month.
func DaysIn(ref time.Time) int {
	return MonthWindow(ref).End.Day()
}

// LeadingOffset returns how many blank cells precede day 1 when the grid's
// first column is firstWeekday. With Monday first, Sunday maps to 6 and every
// other weekday shifts left by one.
func LeadingOffset(ref time.Time, firstWeekday time.Weekday) int {
	first := MonthWindow(ref).Start.Weekday()
	return (int(first) - int(firstWeekday) + 7) % 7
}

// ParseMonth parses "2006-01" into the first day of that month in loc.
func ParseMonth(s string, loc *time.Location) (time.Time, error) {
	t, err := time.ParseInLocation("2006-01", s, loc)
	if err != nil {
		return time.Time{}, fmt.Errorf("parse month %q: %w", s, err)
	}
	return t, nil
}
