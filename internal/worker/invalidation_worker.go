// Package worker consumes record change notifications and keeps the
// calendar caches and screens in step with the store.
package worker

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"roadbook/internal/amqp"
)

// Invalidator drops one cached month window.
type Invalidator interface {
	Invalidate(month string)
}

// StaleMarker is a calendar screen that can be told its month changed.
type StaleMarker interface {
	Name() string
	MarkStaleMonth(month string) bool
}

// Consumer delivers record change messages until ctx is done.
type Consumer interface {
	Consume(ctx context.Context, handler func(context.Context, *amqp.RecordChangedMessage) error) error
}

type target struct {
	caches  []Invalidator
	screens []StaleMarker
}

// InvalidationWorker maps record kinds to the caches and screens showing
// them.
type InvalidationWorker struct {
	mu      sync.RWMutex
	targets map[amqp.RecordKind]*target
	// retryDelay is the pause before consuming again after the consumer
	// failed.
	retryDelay time.Duration
}

func NewInvalidationWorker() *InvalidationWorker {
	return &InvalidationWorker{
		targets:    map[amqp.RecordKind]*target{},
		retryDelay: 5 * time.Second,
	}
}

// Register attaches a cache and the screens reading through it to kind.
func (w *InvalidationWorker) Register(kind amqp.RecordKind, cache Invalidator, screens ...StaleMarker) {
	w.mu.Lock()
	defer w.mu.Unlock()
	t, ok := w.targets[kind]
	if !ok {
		t = &target{}
		w.targets[kind] = t
	}
	if cache != nil {
		t.caches = append(t.caches, cache)
	}
	t.screens = append(t.screens, screens...)
}

// HandleMessage drops the month of msg from every cache registered for its
// kind and marks the screens displaying that month stale.
func (w *InvalidationWorker) HandleMessage(ctx context.Context, msg *amqp.RecordChangedMessage) error {
	w.mu.RLock()
	t, ok := w.targets[msg.Kind]
	w.mu.RUnlock()
	if !ok {
		slog.DebugContext(ctx, "No cache registered for record kind", "kind", msg.Kind)
		return nil
	}

	for _, c := range t.caches {
		c.Invalidate(msg.Month)
	}
	marked := 0
	for _, s := range t.screens {
		if s.MarkStaleMonth(msg.Month) {
			marked++
		}
	}
	slog.InfoContext(ctx, "Invalidated calendar month",
		"kind", msg.Kind,
		"month", msg.Month,
		"record_id", msg.RecordID,
		"caches", len(t.caches),
		"screens_marked", marked)
	return nil
}

// Run consumes until ctx is cancelled, starting over after consumer
// failures.
func (w *InvalidationWorker) Run(ctx context.Context, c Consumer) error {
	for {
		err := c.Consume(ctx, w.HandleMessage)
		if ctx.Err() != nil {
			return ctx.Err()
		}
		if errors.Is(err, context.Canceled) {
			return err
		}
		slog.ErrorContext(ctx, "Record change consumer stopped, retrying",
			"error", err,
			"retry_in", w.retryDelay)
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(w.retryDelay):
		}
	}
}

// String describes the registered targets, for startup logs.
func (w *InvalidationWorker) String() string {
	w.mu.RLock()
	defer w.mu.RUnlock()
	out := ""
	for kind, t := range w.targets {
		names := make([]string, 0, len(t.screens))
		for _, s := range t.screens {
			names = append(names, s.Name())
		}
		out += fmt.Sprintf("%s: %d caches, screens %v; ", kind, len(t.caches), names)
	}
	return out
}
