// Package cache implements core/cache.Store on top of jellydator/ttlcache.
package cache

import (
	"time"

	"github.com/jellydator/ttlcache/v3"

	corecache "github.com/kilianp07/evreco/core/cache"
)

// Config bounds a TTL store.
type Config struct {
	TTLSeconds int `json:"ttl_seconds"`
	// Capacity caps the number of entries; zero means unbounded.
	Capacity uint64 `json:"capacity"`
}

// SetDefaults applies a five minute TTL.
func (c *Config) SetDefaults() {
	if c.TTLSeconds <= 0 {
		c.TTLSeconds = 300
	}
}

// TTL returns the configured expiry.
func (c Config) TTL() time.Duration { return time.Duration(c.TTLSeconds) * time.Second }

// TTLStore is a Store whose entries expire after a fixed TTL unless set
// with an explicit one. Reads do not extend the lifetime of an entry.
type TTLStore[V any] struct {
	c *ttlcache.Cache[string, V]
}

var _ corecache.Store[int] = (*TTLStore[int])(nil)

// NewTTLStore creates a store and starts its expiry loop. Call Stop to
// release it.
func NewTTLStore[V any](cfg Config) *TTLStore[V] {
	cfg.SetDefaults()
	opts := []ttlcache.Option[string, V]{
		ttlcache.WithTTL[string, V](cfg.TTL()),
		ttlcache.WithDisableTouchOnHit[string, V](),
	}
	if cfg.Capacity > 0 {
		opts = append(opts, ttlcache.WithCapacity[string, V](cfg.Capacity))
	}
	c := ttlcache.New[string, V](opts...)
	go c.Start()
	return &TTLStore[V]{c: c}
}

func (s *TTLStore[V]) Get(key string) (V, bool) {
	item := s.c.Get(key)
	if item == nil {
		var zero V
		return zero, false
	}
	return item.Value(), true
}

func (s *TTLStore[V]) Set(key string, value V, ttl time.Duration) {
	if ttl <= 0 {
		ttl = ttlcache.DefaultTTL
	}
	s.c.Set(key, value, ttl)
}

func (s *TTLStore[V]) GetOrSet(key string, value V) (V, bool) {
	item, loaded := s.c.GetOrSet(key, value)
	return item.Value(), loaded
}

func (s *TTLStore[V]) Delete(key string) { s.c.Delete(key) }

func (s *TTLStore[V]) Len() int { return s.c.Len() }

// Stop halts the expiry loop.
func (s *TTLStore[V]) Stop() { s.c.Stop() }
