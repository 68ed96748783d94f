package calendar

import (
	"errors"
	"time"
)

// Mode is what the calendar is showing.
type Mode string

const (
	ModeMonth Mode = "month"
	ModeDay   Mode = "day"
)

var ErrInconsistentState = errors.New("selected day must be set exactly when mode is day")

// ViewState is the calendar's navigation state. It is a value: every
// transition returns a new state and leaves the receiver untouched.
// Selected is non-zero if and only if Mode is ModeDay.
type ViewState struct {
	Reference time.Time
	Mode      Mode
	Selected  time.Time
}

// NewViewState returns the initial state: month view of now's month with no
// day selected.
func NewViewState(now time.Time) ViewState {
	return ViewState{Reference: now, Mode: ModeMonth}
}

// Window is the query window for the displayed month.
func (s ViewState) Window() Window {
	return MonthWindow(s.Reference)
}

// PreviousMonth moves to day 1 of the previous month in month view.
func (s ViewState) PreviousMonth() ViewState {
	return s.shiftMonth(-1)
}

// NextMonth moves to day 1 of the next month in month view.
func (s ViewState) NextMonth() ViewState {
	return s.shiftMonth(1)
}

func (s ViewState) shiftMonth(delta int) ViewState {
	y, m, _ := s.Reference.Date()
	ref := time.Date(y, m+time.Month(delta), 1, 0, 0, 0, 0, s.Reference.Location())
	return ViewState{Reference: ref, Mode: ModeMonth}
}

// SelectDay opens the day detail for day. Whether day belongs to the
// displayed month is the caller's concern. A zero day leaves s unchanged.
func (s ViewState) SelectDay(day time.Time) ViewState {
	if day.IsZero() {
		return s
	}
	return ViewState{Reference: s.Reference, Mode: ModeDay, Selected: day}
}

// ReturnToMonth closes the day detail. Reference is unchanged.
func (s ViewState) ReturnToMonth() ViewState {
	return ViewState{Reference: s.Reference, Mode: ModeMonth}
}

// JumpToMonth shows ref's month directly, as a month/year picker does.
func (s ViewState) JumpToMonth(ref time.Time) ViewState {
	return ViewState{Reference: MonthWindow(ref).Start, Mode: ModeMonth}
}

// Validate checks the mode/selection invariant.
func (s ViewState) Validate() error {
	switch s.Mode {
	case ModeMonth:
		if !s.Selected.IsZero() {
			return ErrInconsistentState
		}
	case ModeDay:
		if s.Selected.IsZero() {
			return ErrInconsistentState
		}
	default:
		return ErrInconsistentState
	}
	return nil
}
