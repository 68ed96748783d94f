// Package services orchestrates the record stores, the metric calculator
// and change notifications for the HTTP layer.
package services

import (
	"context"
	"fmt"
	"log/slog"

	"roadbook/internal/amqp"
	"roadbook/internal/calendar"
	"roadbook/internal/core"
	"roadbook/internal/sheets"
)

// Publisher announces written records.
type Publisher interface {
	Publish(ctx context.Context, msg *amqp.RecordChangedMessage) error
}

// PublisherFunc adapts a function, e.g. a local worker's HandleMessage, to
// Publisher.
type PublisherFunc func(ctx context.Context, msg *amqp.RecordChangedMessage) error

func (f PublisherFunc) Publish(ctx context.Context, msg *amqp.RecordChangedMessage) error {
	return f(ctx, msg)
}

// RecordStore is the write side of a backend.
type RecordStore interface {
	sheets.TripWriter
	sheets.FuelExpenseWriter
}

// RecordService validates and persists trips and fuel expenses and
// publishes a change message for each.
type RecordService struct {
	store     RecordStore
	publisher Publisher
}

// NewRecordService wires the store and an optional publisher.
func NewRecordService(store RecordStore, publisher Publisher) *RecordService {
	return &RecordService{store: store, publisher: publisher}
}

// CreateTrip stores t and returns it with its assigned id.
func (s *RecordService) CreateTrip(ctx context.Context, t core.Trip) (core.Trip, error) {
	if err := t.Validate(); err != nil {
		return core.Trip{}, err
	}
	id, err := s.store.CreateTrip(ctx, t)
	if err != nil {
		return core.Trip{}, fmt.Errorf("save trip: %w", err)
	}
	t.ID = id
	s.publish(ctx, amqp.NewRecordChangedMessage(amqp.KindTrip, id, t.Start))
	return t, nil
}

// CreateFuelExpense stores e and returns it with its assigned id.
func (s *RecordService) CreateFuelExpense(ctx context.Context, e core.FuelExpense) (core.FuelExpense, error) {
	if err := e.Validate(); err != nil {
		return core.FuelExpense{}, err
	}
	id, err := s.store.CreateFuelExpense(ctx, e)
	if err != nil {
		return core.FuelExpense{}, fmt.Errorf("save fuel expense: %w", err)
	}
	e.ID = id
	s.publish(ctx, amqp.NewRecordChangedMessage(amqp.KindFuelExpense, id, e.Date))
	return e, nil
}

// publish never fails the write: the record is already stored and caches
// expire on their own.
func (s *RecordService) publish(ctx context.Context, msg *amqp.RecordChangedMessage) {
	if s.publisher == nil {
		slog.WarnContext(ctx, "No publisher configured, skipping record change message", "kind", msg.Kind)
		return
	}
	if err := s.publisher.Publish(ctx, msg); err != nil {
		slog.ErrorContext(ctx, "Failed to publish record change",
			"kind", msg.Kind,
			"record_id", msg.RecordID,
			"month", msg.Month,
			"error", err)
	}
}

// TripFetcher exposes a TripLister as a calendar fetcher.
func TripFetcher(l sheets.TripLister) calendar.Fetcher[core.Trip] {
	return calendar.FetchFunc[core.Trip](func(ctx context.Context, w calendar.Window) ([]core.Trip, error) {
		return l.ListTrips(ctx, w.Start, w.ExclusiveEnd())
	})
}

// FuelExpenseFetcher exposes a FuelExpenseLister as a calendar fetcher.
func FuelExpenseFetcher(l sheets.FuelExpenseLister) calendar.Fetcher[core.FuelExpense] {
	return calendar.FetchFunc[core.FuelExpense](func(ctx context.Context, w calendar.Window) ([]core.FuelExpense, error) {
		return l.ListFuelExpenses(ctx, w.Start, w.ExclusiveEnd())
	})
}
