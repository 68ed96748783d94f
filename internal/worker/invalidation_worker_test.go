package worker

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"roadbook/internal/amqp"
	"roadbook/internal/calendar"
	"roadbook/internal/core"
)

type recordingCache struct{ months []string }

func (c *recordingCache) Invalidate(month string) { c.months = append(c.months, month) }

func TestHandleMessageInvalidatesMonth(t *testing.T) {
	var calls atomic.Int32
	fetch := calendar.FetchFunc[core.Trip](func(context.Context, calendar.Window) ([]core.Trip, error) {
		calls.Add(1)
		return nil, nil
	})
	cached := calendar.NewCachedFetcher[core.Trip]("trips", fetch, 4, time.Minute)
	screen := calendar.NewScreen[core.Trip]("trips", cached, calendar.TripStart, time.Date(2024, 3, 10, 0, 0, 0, 0, time.UTC))
	ctx := context.Background()
	if err := screen.EnsureLoaded(ctx); err != nil {
		t.Fatalf("load: %v", err)
	}

	fuel := &recordingCache{}
	w := NewInvalidationWorker()
	w.Register(amqp.KindTrip, cached, screen)
	w.Register(amqp.KindFuelExpense, fuel)

	msg := amqp.NewRecordChangedMessage(amqp.KindTrip, 1, time.Date(2024, 3, 22, 0, 0, 0, 0, time.UTC))
	if err := w.HandleMessage(ctx, msg); err != nil {
		t.Fatalf("handle: %v", err)
	}
	if !screen.NeedsRefresh() {
		t.Fatal("screen showing March should be stale")
	}
	if err := screen.EnsureLoaded(ctx); err != nil {
		t.Fatalf("reload: %v", err)
	}
	if calls.Load() != 2 {
		t.Fatalf("expected the cache to be bypassed after invalidation, got %d fetches", calls.Load())
	}
	if len(fuel.months) != 0 {
		t.Fatalf("fuel cache must not see trip messages, got %v", fuel.months)
	}

	other := amqp.NewRecordChangedMessage(amqp.KindFuelExpense, 2, time.Date(2024, 1, 5, 0, 0, 0, 0, time.UTC))
	if err := w.HandleMessage(ctx, other); err != nil {
		t.Fatalf("handle: %v", err)
	}
	if len(fuel.months) != 1 || fuel.months[0] != "2024-01" {
		t.Fatalf("unexpected fuel invalidations %v", fuel.months)
	}
	if screen.NeedsRefresh() {
		t.Fatal("fuel message must not touch the trips screen")
	}
}

type flakyConsumer struct {
	calls atomic.Int32
	msgs  []*amqp.RecordChangedMessage
}

func (c *flakyConsumer) Consume(ctx context.Context, h func(context.Context, *amqp.RecordChangedMessage) error) error {
	if c.calls.Add(1) == 1 {
		return errors.New("connection reset")
	}
	for _, m := range c.msgs {
		if err := h(ctx, m); err != nil {
			return err
		}
	}
	<-ctx.Done()
	return ctx.Err()
}

func TestRunRetriesConsumer(t *testing.T) {
	cache := &recordingCache{}
	w := NewInvalidationWorker()
	w.retryDelay = time.Millisecond
	w.Register(amqp.KindTrip, cache)

	c := &flakyConsumer{msgs: []*amqp.RecordChangedMessage{
		amqp.NewRecordChangedMessage(amqp.KindTrip, 7, time.Date(2024, 5, 1, 0, 0, 0, 0, time.UTC)),
	}}
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- w.Run(ctx, c) }()

	deadline := time.After(2 * time.Second)
	for c.calls.Load() < 2 {
		select {
		case <-deadline:
			t.Fatal("consumer was not restarted")
		case <-time.After(time.Millisecond):
		}
	}
	cancel()
	if err := <-done; !errors.Is(err, context.Canceled) {
		t.Fatalf("expected context.Canceled, got %v", err)
	}
	if len(cache.months) != 1 || cache.months[0] != "2024-05" {
		t.Fatalf("unexpected invalidations %v", cache.months)
	}
}
