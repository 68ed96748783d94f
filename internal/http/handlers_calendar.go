package http

import (
	"context"
	"errors"
	"html/template"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"

	"roadbook/internal/calendar"
	"roadbook/internal/log"
)

// navigator is the navigation surface shared by every calendar.Screen.
type navigator interface {
	PreviousMonth() calendar.ViewState
	NextMonth() calendar.ViewState
	ReturnToMonth() calendar.ViewState
	SelectDay(day time.Time) calendar.ViewState
	JumpToMonth(ref time.Time) calendar.ViewState
	State() calendar.ViewState
}

// page is a calendar screen bound to its renderer.
type page interface {
	Name() string
	Title() string
	Navigator() navigator
	View(ctx context.Context, opts calendar.RenderOptions) (calendar.View[template.HTML], error)
}

type screenPage[T any] struct {
	name     string
	title    string
	screen   *calendar.Screen[T]
	renderer func(ctx context.Context) (calendar.Renderer[T, template.HTML], error)
}

func (p *screenPage[T]) Name() string         { return p.name }
func (p *screenPage[T]) Title() string        { return p.title }
func (p *screenPage[T]) Navigator() navigator { return p.screen }

// staleRetries bounds how often View re-fetches when a concurrent
// navigation keeps invalidating the fetch.
const staleRetries = 3

// View loads the displayed month if needed and renders it. A month that
// could not be loaded renders with empty buckets next to the error.
func (p *screenPage[T]) View(ctx context.Context, opts calendar.RenderOptions) (calendar.View[template.HTML], error) {
	var loadErr error
	for i := 0; i < staleRetries; i++ {
		loadErr = p.screen.EnsureLoaded(ctx)
		if !errors.Is(loadErr, calendar.ErrStaleFetch) {
			break
		}
	}

	snap := p.screen.Snapshot()
	buckets := snap.Buckets
	if !snap.Loaded {
		buckets = make(calendar.DayBucket[T])
	}
	r, err := p.renderer(ctx)
	if err != nil {
		return calendar.View[template.HTML]{}, err
	}
	return calendar.Render(snap.State, buckets, opts, r, nil), loadErr
}

type weekRow []calendar.Cell[template.HTML]

type pageData struct {
	Title    string
	Screen   string
	Screens  []screenLink
	Month    string
	MonthKey string
	Mode     string
	Weekdays []string
	Weeks    []weekRow
	Detail   template.HTML
	Selected string
	Error    string
}

type screenLink struct {
	Name, Title string
	Active      bool
}

func (s *Server) handleScreen(w http.ResponseWriter, r *http.Request) {
	p, ok := s.pages[chi.URLParam(r, "screen")]
	if !ok {
		http.NotFound(w, r)
		return
	}
	ctx := r.Context()
	logger := log.FromContext(ctx).WithComponent(log.ComponentCalendar)

	view, err := p.View(ctx, calendar.RenderOptions{FirstWeekday: s.deps.FirstWeekday, Now: s.deps.Now().In(s.deps.Location)})
	data := pageData{
		Title:    p.Title(),
		Screen:   p.Name(),
		Month:    view.Window.Start.Format("January 2006"),
		MonthKey: view.Window.Key(),
		Mode:     string(view.Mode),
		Weekdays: weekdayNames(s.deps.FirstWeekday),
		Weeks:    splitWeeks(view.Cells),
		Detail:   view.Detail,
	}
	if !view.Selected.IsZero() {
		data.Selected = view.Selected.Format(time.DateOnly)
	}
	for _, name := range []string{screenTrips, screenRefuels} {
		data.Screens = append(data.Screens, screenLink{Name: name, Title: s.pages[name].Title(), Active: name == p.Name()})
	}
	if err != nil {
		logger.ErrorContext(ctx, "Failed to load calendar",
			log.NewFields().
				WithCalendar(p.Name(), view.Window.Key(), string(view.Mode)).
				WithError(err).
				ToSlice()...)
		data.Error = "Records for this month could not be loaded."
		if view.Window.Start.IsZero() {
			http.Error(w, "calendar unavailable", http.StatusBadGateway)
			return
		}
	}

	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	if err := s.templates.ExecuteTemplate(w, "calendar.html", data); err != nil {
		logger.ErrorContext(ctx, "Template execution failed", "template", "calendar.html", log.FieldError, err)
	}
}

func (s *Server) handleNavigate(w http.ResponseWriter, r *http.Request) {
	p, ok := s.pages[chi.URLParam(r, "screen")]
	if !ok {
		http.NotFound(w, r)
		return
	}
	nav := p.Navigator()
	loc := s.deps.Location

	var state calendar.ViewState
	switch action := chi.URLParam(r, "action"); action {
	case "prev":
		state = nav.PreviousMonth()
	case "next":
		state = nav.NextMonth()
	case "return":
		state = nav.ReturnToMonth()
	case "today":
		state = nav.JumpToMonth(s.deps.Now().In(loc))
	case "select":
		day, err := parseDayParam(r, loc)
		if err != nil {
			BadRequestError(err.Error()).Write(w)
			return
		}
		if !nav.State().Window().Contains(day) {
			BadRequestError("day is outside the displayed month").Write(w)
			return
		}
		state = nav.SelectDay(day)
	case "jump":
		month := r.URL.Query().Get("month")
		if month == "" {
			month = r.PostFormValue("month")
		}
		ref, err := calendar.ParseMonth(strings.TrimSpace(month), loc)
		if err != nil {
			BadRequestError("month is required as YYYY-MM").Write(w)
			return
		}
		state = nav.JumpToMonth(ref)
	default:
		http.NotFound(w, r)
		return
	}

	log.FromContext(r.Context()).WithComponent(log.ComponentCalendar).DebugContext(r.Context(), "Calendar navigated",
		log.NewFields().
			WithCalendar(p.Name(), state.Window().Key(), string(state.Mode)).
			WithOperation(log.OpNavigate).
			ToSlice()...)
	NewResponse().Redirect(r, "/"+p.Name()).Write(w)
}

// weekdayNames lists short day names starting at first.
func weekdayNames(first time.Weekday) []string {
	names := make([]string, 7)
	for i := range names {
		names[i] = time.Weekday((int(first) + i) % 7).String()[:3]
	}
	return names
}

func splitWeeks(cells []calendar.Cell[template.HTML]) []weekRow {
	var weeks []weekRow
	for i := 0; i+7 <= len(cells); i += 7 {
		weeks = append(weeks, weekRow(cells[i:i+7]))
	}
	return weeks
}
