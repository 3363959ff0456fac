// Package cache provides a simple in-memory TTL cache.
// Entries slide: every Get pushes the expiry forward, so an entry lives as
// long as it keeps being used.
package cache

import (
	"sync"
	"time"
)

type entry[T any] struct {
	value     T
	expiresAt time.Time
}

// InMemory is a thread-safe in-memory cache with TTL.
type InMemory[T any] struct {
	mu       sync.RWMutex
	items    map[string]entry[T]
	ttl      time.Duration
	interval time.Duration
	onEvict  func(key string, value T)
	done     chan struct{}
	once     sync.Once
}

// Option configures an InMemory cache.
type Option[T any] func(*InMemory[T])

// WithEvictionHook registers fn to run after an entry leaves the cache:
// on expiry (seen by Get or by the sweep), on Delete, and when Set replaces it.
// fn runs without the cache lock held.
func WithEvictionHook[T any](fn func(key string, value T)) Option[T] {
	return func(c *InMemory[T]) { c.onEvict = fn }
}

// WithCleanupInterval sets how often expired entries are swept. Defaults to the TTL.
func WithCleanupInterval[T any](d time.Duration) Option[T] {
	return func(c *InMemory[T]) {
		if d > 0 {
			c.interval = d
		}
	}
}

// New creates a new in-memory cache with the given TTL.
func New[T any](ttl time.Duration, opts ...Option[T]) *InMemory[T] {
	c := &InMemory[T]{
		items:    make(map[string]entry[T]),
		ttl:      ttl,
		interval: ttl,
		done:     make(chan struct{}),
	}
	for _, opt := range opts {
		opt(c)
	}
	// Background cleanup goroutine
	go c.cleanup()
	return c
}

// Get retrieves a value from the cache and refreshes its expiry.
// Returns false if not found or expired. An expired entry is evicted on the
// spot instead of waiting for the sweep.
func (c *InMemory[T]) Get(key string) (T, bool) {
	var zero T
	now := time.Now()

	c.mu.Lock()
	e, ok := c.items[key]
	if !ok {
		c.mu.Unlock()
		return zero, false
	}
	if now.After(e.expiresAt) {
		delete(c.items, key)
		c.mu.Unlock()
		c.evicted(key, e.value)
		return zero, false
	}
	e.expiresAt = now.Add(c.ttl)
	c.items[key] = e
	c.mu.Unlock()

	return e.value, true
}

// Set stores a value in the cache with the configured TTL. A value it
// replaces goes through the eviction hook.
func (c *InMemory[T]) Set(key string, value T) {
	c.mu.Lock()
	old, replaced := c.items[key]
	c.items[key] = entry[T]{
		value:     value,
		expiresAt: time.Now().Add(c.ttl),
	}
	c.mu.Unlock()

	if replaced {
		c.evicted(key, old.value)
	}
}

// Delete removes a value from the cache.
func (c *InMemory[T]) Delete(key string) {
	c.mu.Lock()
	e, ok := c.items[key]
	delete(c.items, key)
	c.mu.Unlock()

	if ok {
		c.evicted(key, e.value)
	}
}

// Len returns the number of live entries.
func (c *InMemory[T]) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()

	now := time.Now()
	n := 0
	for _, e := range c.items {
		if !now.After(e.expiresAt) {
			n++
		}
	}
	return n
}

// Close stops the cleanup goroutine.
func (c *InMemory[T]) Close() {
	c.once.Do(func() { close(c.done) })
}

// cleanup periodically removes expired entries.
func (c *InMemory[T]) cleanup() {
	ticker := time.NewTicker(c.interval)
	defer ticker.Stop()

	for {
		select {
		case <-c.done:
			return
		case <-ticker.C:
			c.evictExpired(time.Now())
		}
	}
}

func (c *InMemory[T]) evictExpired(now time.Time) {
	type evicted struct {
		key   string
		value T
	}
	var out []evicted

	c.mu.Lock()
	for k, v := range c.items {
		if now.After(v.expiresAt) {
			delete(c.items, k)
			out = append(out, evicted{key: k, value: v.value})
		}
	}
	c.mu.Unlock()

	for _, e := range out {
		c.evicted(e.key, e.value)
	}
}

func (c *InMemory[T]) evicted(key string, value T) {
	if c.onEvict != nil {
		c.onEvict(key, value)
	}
}
