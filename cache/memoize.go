package cache

import (
	"context"

	"golang.org/x/sync/singleflight"
)

// LoadFunc computes the value for key on a cache miss.
type LoadFunc[V any] func(ctx context.Context, key string) (V, error)

// Memoizer wraps a load function with caching.
//
// Contract:
//   - Concurrency: safe for concurrent use; concurrent misses for the same key
//     share a single load.
//   - Errors: load errors are returned to every waiting caller and are NOT cached.
//   - Context: a shared load runs detached from any one caller's cancellation;
//     each caller stops waiting when its own context is done.
//   - Keys: blank keys (see ValidateKey) bypass the cache and always load.
type Memoizer[V any] struct {
	cache  Cache[V]
	policy Policy
	group  singleflight.Group
}

// NewMemoizer creates a new memoizer over cache.
// If cache is nil, an LRU sized by policy is created.
func NewMemoizer[V any](cache Cache[V], policy Policy) *Memoizer[V] {
	if cache == nil {
		cache = NewLRU[V](policy)
	}
	return &Memoizer[V]{
		cache:  cache,
		policy: policy,
	}
}

// Execute returns the cached value for key, or loads, stores and returns it.
// The cached result reports whether the value was served from the cache.
func (m *Memoizer[V]) Execute(ctx context.Context, key string, load LoadFunc[V]) (value V, cached bool, err error) {
	if !m.policy.ShouldCache() || ValidateKey(key) != nil {
		value, err = load(ctx, key)
		return value, false, err
	}

	if v, ok := m.cache.Get(ctx, key); ok {
		return v, true, nil
	}
	if err := ctx.Err(); err != nil {
		return value, false, err
	}

	// The load outlives any single waiter, so it must not inherit a
	// cancellation that only one of them asked for.
	loadCtx := context.WithoutCancel(ctx)
	ch := m.group.DoChan(key, func() (any, error) {
		if v, ok := m.cache.Get(loadCtx, key); ok {
			return v, nil
		}
		v, err := load(loadCtx, key)
		if err != nil {
			return v, err
		}
		_ = m.cache.Set(loadCtx, key, v)
		return v, nil
	})

	select {
	case <-ctx.Done():
		return value, false, ctx.Err()
	case res := <-ch:
		if res.Err != nil {
			return value, false, res.Err
		}
		v, _ := res.Val.(V)
		return v, false, nil
	}
}

// Forget removes key from the cache so the next Execute loads it again.
func (m *Memoizer[V]) Forget(ctx context.Context, key string) error {
	m.group.Forget(key)
	return m.cache.Delete(ctx, key)
}

// Cache returns the underlying cache.
func (m *Memoizer[V]) Cache() Cache[V] {
	return m.cache
}
