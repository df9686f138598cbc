// Package cache provides the shared query-result cache: TTL-bound,
// capacity-bound, keyed by a fingerprint that deliberately excludes caller
// identity so results are shared across callers. Entries are immutable once
// written; staleness is decided by elapsed time alone, an explicit
// eventual-consistency tradeoff.
package cache

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"strings"
	"sync"
	"time"
)

// DefaultTTL is how long an entry is served before reads treat it as a miss.
const DefaultTTL = 5 * time.Minute

// DefaultCapacity is the maximum number of entries held at once.
const DefaultCapacity = 100

// Config tunes the result cache.
type Config struct {
	TTL      time.Duration `yaml:"ttl"`
	Capacity int           `yaml:"capacity"`
}

// Cache is a fixed-capacity fingerprint → results map. Eviction at capacity
// removes the oldest-inserted entry, not the least recently used one; reads
// never refresh an entry's TTL.
type Cache[T any] struct {
	mu       sync.Mutex
	entries  map[string]entry[T]
	order    []string
	ttl      time.Duration
	capacity int
}

type entry[T any] struct {
	value    T
	insertAt time.Time
}

// New creates a cache with the given TTL and capacity, falling back to the
// defaults for zero values.
func New[T any](cfg Config) *Cache[T] {
	if cfg.TTL <= 0 {
		cfg.TTL = DefaultTTL
	}

	if cfg.Capacity <= 0 {
		cfg.Capacity = DefaultCapacity
	}

	return &Cache[T]{
		entries:  make(map[string]entry[T], cfg.Capacity),
		ttl:      cfg.TTL,
		capacity: cfg.Capacity,
	}
}

// Get returns the fresh entry for the fingerprint. Stale entries are misses;
// they are dropped on read rather than served.
func (c *Cache[T]) Get(fingerprint string) (T, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	e, ok := c.entries[fingerprint]
	if !ok {
		var zero T
		return zero, false
	}

	if time.Since(e.insertAt) > c.ttl {
		c.remove(fingerprint)

		var zero T
		return zero, false
	}

	return e.value, true
}

// Put inserts an entry, evicting the oldest-inserted one at capacity.
// Re-inserting an existing fingerprint refreshes its value and its place in
// the insertion order.
func (c *Cache[T]) Put(fingerprint string, value T) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if _, ok := c.entries[fingerprint]; ok {
		c.remove(fingerprint)
	}

	if len(c.entries) >= c.capacity && len(c.order) > 0 {
		c.remove(c.order[0])
	}

	c.entries[fingerprint] = entry[T]{
		value:    value,
		insertAt: time.Now(),
	}

	c.order = append(c.order, fingerprint)
}

// Len returns the number of entries currently held, stale ones included.
func (c *Cache[T]) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()

	return len(c.entries)
}

// Clear evicts everything.
func (c *Cache[T]) Clear() {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.entries = make(map[string]entry[T], c.capacity)
	c.order = c.order[:0]
}

// remove must be called with the lock held.
func (c *Cache[T]) remove(fingerprint string) {
	delete(c.entries, fingerprint)

	for i, fp := range c.order {
		if fp == fingerprint {
			c.order = append(c.order[:i], c.order[i+1:]...)
			break
		}
	}
}

// Fingerprint derives a deterministic cache key from the lower-cased query
// and the serialized request parameters. Caller identity is excluded on
// purpose: any future personalization needs a deliberate key redesign.
func Fingerprint(query string, params any) string {
	data := strings.ToLower(strings.TrimSpace(query))

	if bs, err := json.Marshal(params); err == nil {
		data += "|" + string(bs)
	}

	hash := sha256.Sum256([]byte(data))
	return hex.EncodeToString(hash[:16])
}
