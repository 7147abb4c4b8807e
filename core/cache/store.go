// Package cache declares the key-value store used for short lived state
// such as discovery results and per-client rate limiters.
package cache

import "time"

// Store is a goroutine-safe key-value store with per-entry expiry.
type Store[V any] interface {
	// Get returns the value stored under key if it has not expired.
	Get(key string) (V, bool)
	// Set stores value under key. A ttl of zero selects the store default.
	Set(key string, value V, ttl time.Duration)
	// GetOrSet returns the existing value for key, or stores and returns
	// value when there is none. loaded reports whether the value existed.
	GetOrSet(key string, value V) (actual V, loaded bool)
	Delete(key string)
	Len() int
}
