package cache

import (
	"context"
	"errors"
	"strings"
)

// Sentinel errors for cache operations.
var (
	ErrNilCache   = errors.New("cache: cache is nil")
	ErrInvalidKey = errors.New("cache: key is invalid")
)

// Cache stores resolution results keyed by name.
//
// Contract:
// - Concurrency: implementations must be safe for concurrent use.
// - Errors: Get should never error; it returns (zero, false) on miss.
// - Expiry: entries never expire; they leave the cache only on Delete or eviction.
type Cache[V any] interface {
	// Get retrieves a cached value and marks it as recently used.
	Get(ctx context.Context, key string) (V, bool)

	// Set stores a value, evicting the least recently used entry when full.
	Set(ctx context.Context, key string, value V) error

	// Delete removes a cached value. Idempotent - no error on miss.
	Delete(ctx context.Context, key string) error

	// Len reports the number of cached entries.
	Len() int
}

// ValidateKey rejects blank keys. Any other string is a valid key: secret
// names are opaque, so length and content are not restricted.
func ValidateKey(key string) error {
	if strings.TrimSpace(key) == "" {
		return ErrInvalidKey
	}
	return nil
}
