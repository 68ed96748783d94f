package calendar

import (
	"context"
	"log/slog"
	"slices"
	"time"

	"golang.org/x/sync/singleflight"

	"roadbook/internal/cache"
)

// fetchTimeout bounds a shared window fetch, which no longer follows the
// context of the caller that started it.
const fetchTimeout = 30 * time.Second

// CachedFetcher memoises a Fetcher per month window. Concurrent fetches of
// the same window share one call to the underlying fetcher; each caller
// still gives up on its own context. Every caller gets its own copy of the
// records.
type CachedFetcher[T any] struct {
	name  string
	next  Fetcher[T]
	cache *cache.LRUCache[[]T]
	group singleflight.Group
}

// NewCachedFetcher wraps next with an LRU of size entries that expire after
// ttl.
func NewCachedFetcher[T any](name string, next Fetcher[T], size int, ttl time.Duration) *CachedFetcher[T] {
	return &CachedFetcher[T]{
		name:  name,
		next:  next,
		cache: cache.NewLRUCache[[]T](size, ttl),
	}
}

func (f *CachedFetcher[T]) Fetch(ctx context.Context, w Window) ([]T, error) {
	key := w.Key()
	if records, ok := f.cache.Get(key); ok {
		return slices.Clone(records), nil
	}

	ch := f.group.DoChan(key, func() (any, error) {
		fetchCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), fetchTimeout)
		defer cancel()
		records, err := f.next.Fetch(fetchCtx, w)
		if err != nil {
			return nil, err
		}
		f.cache.Set(key, records)
		return records, nil
	})

	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	case res := <-ch:
		if res.Err != nil {
			return nil, res.Err
		}
		if res.Shared {
			slog.DebugContext(ctx, "Shared in-flight window fetch", "cache", f.name, "window", key)
		}
		return slices.Clone(res.Val.([]T)), nil
	}
}

// Invalidate drops the cached records of month (a Window key like
// "2024-02").
func (f *CachedFetcher[T]) Invalidate(month string) {
	f.cache.Delete(month)
	f.group.Forget(month)
}

// Cache exposes the underlying LRU for registration with a cache.Manager.
func (f *CachedFetcher[T]) Cache() *cache.LRUCache[[]T] {
	return f.cache
}
