// Package cache provides bounded, non-expiring memoization for secret lookups.
//
// It provides a generic Cache interface with an LRU implementation backed by
// hashicorp/golang-lru, a capacity Policy, and a Memoizer that wraps a load
// function so repeated lookups for the same key are answered from memory.
// Entries never expire: a value (or a cached absence, when V models one) stays
// until it is evicted by capacity pressure or explicitly forgotten.
package cache
