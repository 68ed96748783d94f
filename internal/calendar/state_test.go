package calendar

import (
	"testing"
	"time"
)

func TestNewViewState(t *testing.T) {
	now := time.Date(2024, 3, 14, 9, 0, 0, 0, time.UTC)
	s := NewViewState(now)
	if s.Mode != ModeMonth || !s.Selected.IsZero() || !s.Reference.Equal(now) {
		t.Fatalf("unexpected initial state: %+v", s)
	}
	if err := s.Validate(); err != nil {
		t.Fatalf("initial state invalid: %v", err)
	}
}

func TestSelectDayAndReturn(t *testing.T) {
	ref := date(2024, 3, 14)
	s := NewViewState(ref)

	day := s.SelectDay(date(2024, 3, 3))
	if day.Mode != ModeDay || !day.Selected.Equal(date(2024, 3, 3)) {
		t.Fatalf("expected day mode on March 3, got %+v", day)
	}
	if err := day.Validate(); err != nil {
		t.Fatalf("day state invalid: %v", err)
	}

	back := day.ReturnToMonth()
	if back.Mode != ModeMonth || !back.Selected.IsZero() {
		t.Fatalf("expected month mode without selection, got %+v", back)
	}
	if !back.Reference.Equal(ref) {
		t.Fatalf("reference changed: %v", back.Reference)
	}

	// The original value is untouched.
	if s.Mode != ModeMonth || !s.Selected.IsZero() {
		t.Fatalf("transition mutated receiver: %+v", s)
	}
}

func TestSelectZeroDayKeepsState(t *testing.T) {
	month := NewViewState(date(2024, 3, 14))
	if got := month.SelectDay(time.Time{}); got != month {
		t.Fatalf("zero day changed month state: %+v", got)
	}

	day := month.SelectDay(date(2024, 3, 3))
	got := day.SelectDay(time.Time{})
	if got != day {
		t.Fatalf("zero day changed day state: %+v", got)
	}
	if err := got.Validate(); err != nil {
		t.Fatalf("state invalid after zero day: %v", err)
	}
}

func TestMonthNavigation(t *testing.T) {
	tests := []struct {
		name string
		from time.Time
		step func(ViewState) ViewState
		want time.Time
	}{
		{"previous", date(2024, 3, 31), ViewState.PreviousMonth, date(2024, 2, 1)},
		{"previous across year", date(2024, 1, 15), ViewState.PreviousMonth, date(2023, 12, 1)},
		{"next", date(2024, 1, 31), ViewState.NextMonth, date(2024, 2, 1)},
		{"next across year", date(2024, 12, 5), ViewState.NextMonth, date(2025, 1, 1)},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := NewViewState(tt.from).SelectDay(tt.from)
			got := tt.step(s)
			if !got.Reference.Equal(tt.want) {
				t.Errorf("reference = %v, want %v", got.Reference, tt.want)
			}
			if got.Mode != ModeMonth || !got.Selected.IsZero() {
				t.Errorf("expected month mode without selection, got %+v", got)
			}
		})
	}
}

func TestRepeatedNavigationAppliesSequentially(t *testing.T) {
	s := NewViewState(date(2024, 3, 10))
	s = s.NextMonth().NextMonth().PreviousMonth()
	if !s.Reference.Equal(date(2024, 4, 1)) {
		t.Fatalf("expected April 2024, got %v", s.Reference)
	}
}

func TestJumpToMonth(t *testing.T) {
	s := NewViewState(date(2024, 3, 10)).SelectDay(date(2024, 3, 3))
	got := s.JumpToMonth(time.Date(2022, 11, 19, 13, 0, 0, 0, time.UTC))
	if !got.Reference.Equal(date(2022, 11, 1)) || got.Mode != ModeMonth || !got.Selected.IsZero() {
		t.Fatalf("unexpected jump result: %+v", got)
	}
}

func TestViewStateValidate(t *testing.T) {
	bads := []ViewState{
		{Reference: date(2024, 3, 1), Mode: ModeMonth, Selected: date(2024, 3, 3)},
		{Reference: date(2024, 3, 1), Mode: ModeDay},
		{Reference: date(2024, 3, 1), Mode: "week"},
	}
	for i, s := range bads {
		if err := s.Validate(); err != ErrInconsistentState {
			t.Fatalf("case %d: expected ErrInconsistentState, got %v", i, err)
		}
	}
}
