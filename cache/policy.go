package cache

// DefaultCapacity is the number of distinct keys kept by DefaultPolicy.
const DefaultCapacity = 128

// Policy configures caching behavior.
type Policy struct {
	// Capacity bounds the number of distinct keys held at once.
	// Zero or negative disables caching.
	Capacity int
}

// DefaultPolicy returns the default caching policy (128 entries, LRU eviction).
func DefaultPolicy() Policy {
	return Policy{Capacity: DefaultCapacity}
}

// NoCachePolicy returns a policy that disables caching entirely.
func NoCachePolicy() Policy {
	return Policy{Capacity: 0}
}

// ShouldCache returns true if caching is enabled by this policy.
func (p Policy) ShouldCache() bool {
	return p.Capacity > 0
}
