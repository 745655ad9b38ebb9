// Package cache memoizes gateway output for identical inputs. Keys are
// content fingerprints, so a statement analyzed twice within the TTL costs
// one gateway call.
package cache

import (
	"encoding/binary"
	"encoding/hex"
	"sync"
	"time"

	"golang.org/x/crypto/blake2b"
)

// DefaultMaxEntries bounds a cache created without WithMaxEntries.
const DefaultMaxEntries = 10_000

type entry[T any] struct {
	value     T
	expiresAt time.Time
}

type settings struct {
	maxEntries int
	now        func() time.Time
}

// Option tunes a cache at construction.
type Option func(*settings)

// WithMaxEntries caps the number of live entries. When full, Set evicts the
// entry closest to expiry.
func WithMaxEntries(n int) Option {
	return func(s *settings) {
		if n > 0 {
			s.maxEntries = n
		}
	}
}

// WithClock replaces time.Now.
func WithClock(now func() time.Time) Option {
	return func(s *settings) { s.now = now }
}

// InMemory is a goroutine-safe TTL cache with a size bound.
type InMemory[T any] struct {
	mu       sync.RWMutex
	items    map[string]entry[T]
	ttl      time.Duration
	settings settings
	stop     chan struct{}
	once     sync.Once
}

// New creates a cache whose entries live for ttl (one minute if ttl is not
// positive). Expired entries are swept once per ttl until Close.
func New[T any](ttl time.Duration, opts ...Option) *InMemory[T] {
	if ttl <= 0 {
		ttl = time.Minute
	}
	s := settings{maxEntries: DefaultMaxEntries, now: time.Now}
	for _, o := range opts {
		o(&s)
	}
	c := &InMemory[T]{
		items:    make(map[string]entry[T]),
		ttl:      ttl,
		settings: s,
		stop:     make(chan struct{}),
	}
	go c.sweepLoop()
	return c
}

// Get returns the value for key unless it is missing or expired.
func (c *InMemory[T]) Get(key string) (T, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	e, ok := c.items[key]
	if !ok || !c.settings.now().Before(e.expiresAt) {
		var zero T
		return zero, false
	}
	return e.value, true
}

// Set stores value under key for one TTL, evicting if the cache is full.
func (c *InMemory[T]) Set(key string, value T) {
	c.mu.Lock()
	defer c.mu.Unlock()

	now := c.settings.now()
	if _, exists := c.items[key]; !exists && len(c.items) >= c.settings.maxEntries {
		c.sweep(now)
		if len(c.items) >= c.settings.maxEntries {
			c.evictOldest()
		}
	}
	c.items[key] = entry[T]{value: value, expiresAt: now.Add(c.ttl)}
}

// Delete removes key.
func (c *InMemory[T]) Delete(key string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.items, key)
}

// Len returns the number of stored entries, expired or not.
func (c *InMemory[T]) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.items)
}

// Close stops the sweeper. It is safe to call more than once.
func (c *InMemory[T]) Close() {
	c.once.Do(func() { close(c.stop) })
}

func (c *InMemory[T]) sweepLoop() {
	ticker := time.NewTicker(c.ttl)
	defer ticker.Stop()

	for {
		select {
		case <-c.stop:
			return
		case <-ticker.C:
			c.mu.Lock()
			c.sweep(c.settings.now())
			c.mu.Unlock()
		}
	}
}

// sweep drops expired entries. Callers hold the write lock.
func (c *InMemory[T]) sweep(now time.Time) {
	for k, e := range c.items {
		if !now.Before(e.expiresAt) {
			delete(c.items, k)
		}
	}
}

// evictOldest drops the entry closest to expiry. Callers hold the write lock.
func (c *InMemory[T]) evictOldest() {
	var (
		victim string
		oldest time.Time
		found  bool
	)
	for k, e := range c.items {
		if !found || e.expiresAt.Before(oldest) {
			victim, oldest, found = k, e.expiresAt, true
		}
	}
	delete(c.items, victim)
}

// Fingerprint derives a fixed-length key from the given parts. Parts are
// length-prefixed so ("ab","c") and ("a","bc") never collide.
func Fingerprint(parts ...string) string {
	h, _ := blake2b.New256(nil)
	var n [8]byte
	for _, p := range parts {
		binary.LittleEndian.PutUint64(n[:], uint64(len(p)))
		h.Write(n[:])
		h.Write([]byte(p))
	}
	return hex.EncodeToString(h.Sum(nil))
}
