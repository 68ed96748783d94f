package calendar

import (
	"context"
	"log/slog"
	"sort"
	"time"

	"roadbook/internal/core"
)

// KeyFunc extracts the date a record is filed under.
type KeyFunc[T any] func(T) time.Time

// Dated is implemented by records that know their own calendar date.
type Dated interface {
	RecordDate() time.Time
}

// ByRecordDate is the KeyFunc for any Dated record.
func ByRecordDate[T Dated]() KeyFunc[T] {
	return func(r T) time.Time { return r.RecordDate() }
}

// TripStart files trips under their start time.
func TripStart(t core.Trip) time.Time { return t.Start }

// FuelExpenseDate files fuel expenses under the expense timestamp.
func FuelExpenseDate(e core.FuelExpense) time.Time { return e.Date }

// DayBucket maps day of month (1-31) to the records filed under it, in the
// order they appeared in the source slice.
type DayBucket[T any] map[int][]T

// Items returns the records of day, or nil when there are none.
func (b DayBucket[T]) Items(day int) []T {
	return b[day]
}

// Days returns the days that have records, ascending.
func (b DayBucket[T]) Days() []int {
	days := make([]int, 0, len(b))
	for d := range b {
		days = append(days, d)
	}
	sort.Ints(days)
	return days
}

// Len returns the number of records across all days.
func (b DayBucket[T]) Len() int {
	n := 0
	for _, items := range b {
		n += len(items)
	}
	return n
}

// AggregateByDay buckets records by the day of month of key(record). It
// does not check month or year; filter with FilterWindow first. Records
// whose key is the zero time are skipped with a warning.
func AggregateByDay[T any](ctx context.Context, records []T, key KeyFunc[T]) DayBucket[T] {
	buckets := make(DayBucket[T])
	if key == nil {
		if len(records) > 0 {
			slog.WarnContext(ctx, "No key extractor supplied, skipping records", "count", len(records))
		}
		return buckets
	}

	skipped := 0
	for i, r := range records {
		t := key(r)
		if t.IsZero() {
			skipped++
			slog.DebugContext(ctx, "Record has no date, skipping", "index", i)
			continue
		}
		d := t.Day()
		buckets[d] = append(buckets[d], r)
	}
	if skipped > 0 {
		slog.WarnContext(ctx, "Skipped undated records during aggregation",
			"skipped", skipped,
			"total", len(records))
	}
	return buckets
}

// FilterWindow keeps the records whose key falls inside w. Undated records
// are kept so AggregateByDay reports them.
func FilterWindow[T any](records []T, w Window, key KeyFunc[T]) []T {
	if key == nil {
		return records
	}
	out := make([]T, 0, len(records))
	for _, r := range records {
		if t := key(r); t.IsZero() || w.Contains(t) {
			out = append(out, r)
		}
	}
	return out
}
