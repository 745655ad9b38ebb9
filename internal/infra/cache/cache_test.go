package cache_test

import (
	"sync"
	"testing"
	"time"

	"github.com/boddenberg/dispute-assistant-bfa-go/internal/infra/cache"
)

type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func (f *fakeClock) Now() time.Time {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.now
}

func (f *fakeClock) Advance(d time.Duration) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.now = f.now.Add(d)
}

func newCache(t *testing.T, ttl time.Duration, opts ...cache.Option) (*cache.InMemory[string], *fakeClock) {
	t.Helper()
	clock := &fakeClock{now: time.Date(2025, 9, 2, 12, 0, 0, 0, time.UTC)}
	c := cache.New[string](ttl, append(opts, cache.WithClock(clock.Now))...)
	t.Cleanup(c.Close)
	return c, clock
}

func TestCache_HitMissAndDelete(t *testing.T) {
	c, _ := newCache(t, time.Hour)

	c.Set("k", "explanation")
	if v, ok := c.Get("k"); !ok || v != "explanation" {
		t.Fatalf("expected a hit, got %q, %v", v, ok)
	}
	if _, ok := c.Get("other"); ok {
		t.Error("expected a miss for an unknown key")
	}

	c.Delete("k")
	if _, ok := c.Get("k"); ok {
		t.Error("expected the key to be deleted")
	}
}

func TestCache_ExpiresAfterTTL(t *testing.T) {
	c, clock := newCache(t, time.Hour)
	c.Set("k", "v")

	clock.Advance(59 * time.Minute)
	if _, ok := c.Get("k"); !ok {
		t.Fatal("entry expired early")
	}

	clock.Advance(time.Minute)
	if _, ok := c.Get("k"); ok {
		t.Fatal("expected the entry to expire at exactly one TTL")
	}
}

func TestCache_EvictsClosestToExpiryWhenFull(t *testing.T) {
	c, clock := newCache(t, time.Hour, cache.WithMaxEntries(2))

	c.Set("first", "1")
	clock.Advance(time.Minute)
	c.Set("second", "2")
	clock.Advance(time.Minute)
	c.Set("third", "3")

	if c.Len() != 2 {
		t.Fatalf("expected 2 entries, got %d", c.Len())
	}
	if _, ok := c.Get("first"); ok {
		t.Error("expected the oldest entry to be evicted")
	}
	if _, ok := c.Get("third"); !ok {
		t.Error("expected the newest entry to be kept")
	}
}

func TestCache_FullCacheDropsExpiredBeforeEvicting(t *testing.T) {
	c, clock := newCache(t, time.Hour, cache.WithMaxEntries(2))

	c.Set("stale", "1")
	clock.Advance(30 * time.Minute)
	c.Set("fresh", "2")
	clock.Advance(45 * time.Minute) // stale has expired, fresh has not
	c.Set("new", "3")

	if _, ok := c.Get("fresh"); !ok {
		t.Error("a live entry was evicted while an expired one was available")
	}
}

func TestCache_Close(t *testing.T) {
	c, _ := newCache(t, time.Hour)
	c.Set("a", "1")

	c.Close()
	c.Close()

	if c.Len() != 1 {
		t.Errorf("expected entry to survive Close, got %d entries", c.Len())
	}
}

func TestFingerprint(t *testing.T) {
	a := cache.Fingerprint("explain", "statement text")
	if a != cache.Fingerprint("explain", "statement text") {
		t.Fatal("expected a stable fingerprint")
	}
	if len(a) != 64 {
		t.Errorf("expected 64 hex chars, got %d", len(a))
	}
	if cache.Fingerprint("ab", "c") == cache.Fingerprint("a", "bc") {
		t.Error("expected part boundaries to matter")
	}
}
