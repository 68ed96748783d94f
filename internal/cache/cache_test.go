package cache

import (
	"testing"
	"time"
)

func TestLRUCacheGetSet(t *testing.T) {
	c := NewLRUCache[[]int](2, time.Minute)
	c.Set("2024-01", []int{1})
	c.Set("2024-02", []int{2})

	if got, ok := c.Get("2024-01"); !ok || got[0] != 1 {
		t.Fatalf("expected hit for 2024-01, got %v %v", got, ok)
	}

	// 2024-02 is now least recently used and gets evicted.
	c.Set("2024-03", []int{3})
	if _, ok := c.Get("2024-02"); ok {
		t.Fatalf("expected 2024-02 to be evicted")
	}
	if c.Size() != 2 {
		t.Fatalf("expected size 2, got %d", c.Size())
	}

	st := c.Stats()
	if st.Hits != 1 || st.Misses != 1 || st.Evictions != 1 {
		t.Fatalf("unexpected stats: %+v", st)
	}
}

func TestLRUCacheExpiry(t *testing.T) {
	c := NewLRUCache[string](10, time.Minute)
	now := time.Date(2024, 1, 1, 12, 0, 0, 0, time.UTC)
	c.now = func() time.Time { return now }

	c.Set("a", "x")
	c.Set("b", "y")

	now = now.Add(2 * time.Minute)
	if removed := c.CleanExpired(); removed != 2 {
		t.Fatalf("expected 2 expired entries, got %d", removed)
	}

	c.Set("c", "z")
	now = now.Add(2 * time.Minute)
	if _, ok := c.Get("c"); ok {
		t.Fatalf("expected expired entry to miss")
	}
}

func TestLRUCacheDeleteAndPurge(t *testing.T) {
	c := NewLRUCache[int](10, time.Minute)
	c.Set("a", 1)
	c.Set("b", 2)
	c.Delete("a")
	if _, ok := c.Get("a"); ok {
		t.Fatalf("expected deleted key to miss")
	}
	c.Purge()
	if c.Size() != 0 {
		t.Fatalf("expected empty cache after purge, got %d", c.Size())
	}
}

func TestManagerCleanAll(t *testing.T) {
	c := NewLRUCache[int](10, time.Minute)
	now := time.Date(2024, 1, 1, 12, 0, 0, 0, time.UTC)
	c.now = func() time.Time { return now }
	c.Set("a", 1)
	now = now.Add(time.Hour)

	m := NewManager()
	m.Register("trips", c)
	got := m.CleanAll()
	if got["trips"] != 1 {
		t.Fatalf("expected 1 removed from trips, got %v", got)
	}

	m.StartCleanup(time.Hour)
	m.Stop()
	m.Stop()
}

func TestManagerStopWithoutStart(t *testing.T) {
	m := NewManager()
	m.Stop()
}
