package calendar

import "time"

// GridCell is one slot of the month grid. Padding cells have a zero Date.
type GridCell struct {
	Date time.Time
}

// IsBlank reports whether the cell is padding before day 1 or after the
// last day.
func (c GridCell) IsBlank() bool { return c.Date.IsZero() }

// BuildGrid lays out ref's month in rows of 7 starting at firstWeekday:
// leading blanks, one cell per day, then trailing blanks up to a multiple
// of 7.
func BuildGrid(ref time.Time, firstWeekday time.Weekday) []GridCell {
	w := MonthWindow(ref)
	offset := LeadingOffset(ref, firstWeekday)
	days := w.End.Day()
	total := ((offset + days + 6) / 7) * 7

	cells := make([]GridCell, total)
	for d := 1; d <= days; d++ {
		cells[offset+d-1] = GridCell{Date: w.Start.AddDate(0, 0, d-1)}
	}
	return cells
}

// Renderer turns a day and its records into a presentation value V (an
// HTML fragment, a string, a view model). It is the only extension point
// of the engine.
type Renderer[T, V any] interface {
	RenderCell(day time.Time, items []T, isToday, isCurrentMonth bool) V
	RenderDetail(day time.Time, items []T) V
}

// Cell is a rendered grid slot. Blank cells carry no content and no
// Activate func.
type Cell[V any] struct {
	Date     time.Time
	Blank    bool
	Content  V
	Activate func()
}

// DayPredicate answers a yes/no question about a calendar day.
type DayPredicate func(day time.Time) bool

// RenderMonth renders every non-blank grid cell with its bucket and wires
// onDayClick to the cell's Activate.
func RenderMonth[T, V any](grid []GridCell, buckets DayBucket[T], isToday, isCurrentMonth DayPredicate, r Renderer[T, V], onDayClick func(time.Time)) []Cell[V] {
	out := make([]Cell[V], len(grid))
	for i, gc := range grid {
		if gc.IsBlank() {
			out[i] = Cell[V]{Blank: true}
			continue
		}
		day := gc.Date
		cell := Cell[V]{
			Date:    day,
			Content: r.RenderCell(day, buckets.Items(day.Day()), check(isToday, day), check(isCurrentMonth, day)),
		}
		if onDayClick != nil {
			cell.Activate = func() { onDayClick(day) }
		}
		out[i] = cell
	}
	return out
}

func check(p DayPredicate, day time.Time) bool {
	return p != nil && p(day)
}

// View is the rendered screen: either the month cells or the day detail.
type View[V any] struct {
	Mode     Mode
	Window   Window
	Selected time.Time
	Cells    []Cell[V]
	Detail   V
}

// RenderOptions carries the grid layout and the clock used for "today".
type RenderOptions struct {
	FirstWeekday time.Weekday
	Now          time.Time
}

// Render produces the view for state. In day mode the grid is not built at
// all and only RenderDetail runs.
func Render[T, V any](state ViewState, buckets DayBucket[T], opts RenderOptions, r Renderer[T, V], onDayClick func(time.Time)) View[V] {
	v := View[V]{Mode: state.Mode, Window: state.Window(), Selected: state.Selected}
	if state.Mode == ModeDay {
		v.Detail = r.RenderDetail(state.Selected, buckets.Items(state.Selected.Day()))
		return v
	}

	ref := state.Reference
	isToday := func(d time.Time) bool { return sameDay(d, opts.Now) }
	isCurrentMonth := func(d time.Time) bool {
		return d.Year() == ref.Year() && d.Month() == ref.Month()
	}
	v.Cells = RenderMonth(BuildGrid(ref, opts.FirstWeekday), buckets, isToday, isCurrentMonth, r, onDayClick)
	return v
}

func sameDay(a, b time.Time) bool {
	if b.IsZero() {
		return false
	}
	b = b.In(a.Location())
	ay, am, ad := a.Date()
	by, bm, bd := b.Date()
	return ay == by && am == bm && ad == bd
}
