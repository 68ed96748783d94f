package calendar

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"
)

// ErrStaleFetch is returned by Refresh when the user navigated while the
// fetch was in flight. The result was discarded.
var ErrStaleFetch = errors.New("stale fetch discarded")

// Fetcher loads the records of a window. It is the external data layer.
type Fetcher[T any] interface {
	Fetch(ctx context.Context, w Window) ([]T, error)
}

// FetchFunc adapts a function to Fetcher.
type FetchFunc[T any] func(ctx context.Context, w Window) ([]T, error)

func (f FetchFunc[T]) Fetch(ctx context.Context, w Window) ([]T, error) {
	return f(ctx, w)
}

// Snapshot is a consistent copy of a screen's state and buckets.
type Snapshot[T any] struct {
	State      ViewState
	Buckets    DayBucket[T]
	Generation uint64
	Loaded     bool
}

// Screen hosts one calendar: it holds the single mutable ViewState, the
// buckets for the displayed month and the fetcher that fills them.
//
// Every navigation bumps a generation counter. A Refresh whose fetch
// completes after the generation moved is discarded, so a slow response for
// a month the user already left never lands on the current month.
type Screen[T any] struct {
	name    string
	fetcher Fetcher[T]
	key     KeyFunc[T]

	mu         sync.Mutex
	state      ViewState
	buckets    DayBucket[T]
	generation uint64
	loadedGen  uint64
	loaded     bool
}

// NewScreen creates a screen showing now's month.
func NewScreen[T any](name string, fetcher Fetcher[T], key KeyFunc[T], now time.Time) *Screen[T] {
	return &Screen[T]{
		name:    name,
		fetcher: fetcher,
		key:     key,
		state:   NewViewState(now),
		buckets: make(DayBucket[T]),
	}
}

// Name identifies the screen in logs and routes.
func (s *Screen[T]) Name() string { return s.name }

// State returns the current view state.
func (s *Screen[T]) State() ViewState {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// Snapshot returns the state and buckets under one lock.
func (s *Screen[T]) Snapshot() Snapshot[T] {
	s.mu.Lock()
	defer s.mu.Unlock()
	return Snapshot[T]{
		State:      s.state,
		Buckets:    s.buckets,
		Generation: s.generation,
		Loaded:     s.loaded && s.loadedGen == s.generation,
	}
}

func (s *Screen[T]) PreviousMonth() ViewState {
	return s.apply(ViewState.PreviousMonth)
}

func (s *Screen[T]) NextMonth() ViewState {
	return s.apply(ViewState.NextMonth)
}

func (s *Screen[T]) ReturnToMonth() ViewState {
	return s.apply(ViewState.ReturnToMonth)
}

func (s *Screen[T]) SelectDay(day time.Time) ViewState {
	return s.apply(func(v ViewState) ViewState { return v.SelectDay(day) })
}

func (s *Screen[T]) JumpToMonth(ref time.Time) ViewState {
	return s.apply(func(v ViewState) ViewState { return v.JumpToMonth(ref) })
}

// apply replaces the state. The generation only moves when the window
// changes; selecting a day inside the loaded month keeps the buckets valid.
func (s *Screen[T]) apply(transition func(ViewState) ViewState) ViewState {
	s.mu.Lock()
	defer s.mu.Unlock()
	prev := s.state.Window()
	s.state = transition(s.state)
	if s.state.Window().Key() != prev.Key() {
		s.generation++
	}
	return s.state
}

// NeedsRefresh reports whether the buckets do not belong to the displayed
// month yet.
func (s *Screen[T]) NeedsRefresh() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return !s.loaded || s.loadedGen != s.generation
}

// Refresh fetches the displayed month and aggregates it. It returns
// ErrStaleFetch when navigation happened during the fetch.
func (s *Screen[T]) Refresh(ctx context.Context) error {
	s.mu.Lock()
	gen := s.generation
	window := s.state.Window()
	s.mu.Unlock()

	records, err := s.fetcher.Fetch(ctx, window)
	if err != nil {
		return fmt.Errorf("fetch %s %s: %w", s.name, window.Key(), err)
	}
	buckets := AggregateByDay(ctx, FilterWindow(records, window, s.key), s.key)

	s.mu.Lock()
	defer s.mu.Unlock()
	if gen != s.generation {
		slog.DebugContext(ctx, "Discarding stale calendar fetch",
			"screen", s.name,
			"window", window.Key(),
			"fetch_generation", gen,
			"current_generation", s.generation)
		return ErrStaleFetch
	}
	s.buckets = buckets
	s.loaded = true
	s.loadedGen = gen
	slog.DebugContext(ctx, "Calendar refreshed",
		"screen", s.name,
		"window", window.Key(),
		"records", buckets.Len(),
		"days", len(buckets))
	return nil
}

// MarkStale forces the next EnsureLoaded to fetch again, e.g. after a record
// of the displayed month changed. A fetch already in flight is discarded.
func (s *Screen[T]) MarkStale() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.loaded = false
	s.generation++
}

// MarkStaleMonth marks the screen stale only when it displays month (a
// Window key). It reports whether it did.
func (s *Screen[T]) MarkStaleMonth(month string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.state.Window().Key() != month {
		return false
	}
	s.loaded = false
	s.generation++
	return true
}

// EnsureLoaded refreshes only when the buckets are out of date.
func (s *Screen[T]) EnsureLoaded(ctx context.Context) error {
	if !s.NeedsRefresh() {
		return nil
	}
	return s.Refresh(ctx)
}
