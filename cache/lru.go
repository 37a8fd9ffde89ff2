package cache

import (
	"context"

	lru "github.com/hashicorp/golang-lru/v2"
)

// LRU is an in-memory, capacity-bounded cache with least-recently-used eviction.
type LRU[V any] struct {
	entries *lru.Cache[string, V]
}

// LRUOption configures an LRU.
type LRUOption func(*lruOptions)

type lruOptions struct {
	onEvict func(key string)
}

// WithEvictCallback registers a function called with the key of every entry
// that leaves the cache, whether by eviction, Delete or Purge.
func WithEvictCallback(fn func(key string)) LRUOption {
	return func(o *lruOptions) {
		o.onEvict = fn
	}
}

// NewLRU creates an LRU sized by policy. A policy that disables caching
// yields an LRU of capacity one that is never consulted by Memoizer.
func NewLRU[V any](policy Policy, opts ...LRUOption) *LRU[V] {
	var o lruOptions
	for _, opt := range opts {
		opt(&o)
	}

	size := policy.Capacity
	if size <= 0 {
		size = 1
	}

	var (
		entries *lru.Cache[string, V]
		err     error
	)
	if o.onEvict != nil {
		onEvict := o.onEvict
		entries, err = lru.NewWithEvict[string, V](size, func(key string, _ V) {
			onEvict(key)
		})
	} else {
		entries, err = lru.New[string, V](size)
	}
	if err != nil {
		// Only reachable with a non-positive size, which is clamped above.
		panic(err)
	}
	return &LRU[V]{entries: entries}
}

// Get retrieves a value and refreshes its recency. Returns (zero, false) on miss.
func (c *LRU[V]) Get(_ context.Context, key string) (V, bool) {
	return c.entries.Get(key)
}

// Peek retrieves a value without refreshing its recency.
func (c *LRU[V]) Peek(key string) (V, bool) {
	return c.entries.Peek(key)
}

// Set stores a value, evicting the least recently used entry if at capacity.
func (c *LRU[V]) Set(_ context.Context, key string, value V) error {
	if err := ValidateKey(key); err != nil {
		return err
	}
	c.entries.Add(key, value)
	return nil
}

// Delete removes a value from the cache. Idempotent - no error on miss.
func (c *LRU[V]) Delete(_ context.Context, key string) error {
	c.entries.Remove(key)
	return nil
}

// Len reports the number of cached entries.
func (c *LRU[V]) Len() int {
	return c.entries.Len()
}

// Keys returns the cached keys from least to most recently used.
func (c *LRU[V]) Keys() []string {
	return c.entries.Keys()
}

// Purge removes every entry.
func (c *LRU[V]) Purge() {
	c.entries.Purge()
}

var _ Cache[string] = (*LRU[string])(nil)
