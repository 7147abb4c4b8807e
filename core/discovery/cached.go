package discovery

import (
	"context"
	"fmt"
	"time"

	"github.com/kilianp07/evreco/core/cache"
	"github.com/kilianp07/evreco/core/events"
	"github.com/kilianp07/evreco/core/logger"
	"github.com/kilianp07/evreco/core/model"
	"github.com/kilianp07/evreco/internal/eventbus"
)

// DefaultTTL is how long a discovery answer is reused.
const DefaultTTL = 5 * time.Minute

// CachedSource memoizes the answers of a Source. Queries are keyed on
// coordinates rounded to three decimals (about 100 m) so that nearby
// requests share an entry. Errors are never cached.
type CachedSource struct {
	src    Source
	store  cache.Store[[]model.RawStation]
	ttl    time.Duration
	bus    eventbus.Publisher
	logger logger.Logger
}

// NewCachedSource wraps src. A ttl of zero selects DefaultTTL.
func NewCachedSource(src Source, store cache.Store[[]model.RawStation], ttl time.Duration, log logger.Logger) *CachedSource {
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	return &CachedSource{src: src, store: store, ttl: ttl, logger: log}
}

// SetEventBus configures the bus receiving one DiscoveryEvent per lookup.
func (c *CachedSource) SetEventBus(bus eventbus.Publisher) { c.bus = bus }

func (c *CachedSource) Name() string { return c.src.Name() }

// Key returns the cache key of q.
func Key(source string, q Query) string {
	q = q.Normalize()
	return fmt.Sprintf("%s:%.3f:%.3f:%.1f:%d", source, q.Lat, q.Lon, q.RadiusKM, q.MaxResults)
}

// Nearby implements Source.
func (c *CachedSource) Nearby(ctx context.Context, q Query) ([]model.RawStation, error) {
	start := time.Now()
	key := Key(c.src.Name(), q)
	if out, ok := c.store.Get(key); ok {
		c.publish(events.DiscoveryEvent{CacheHit: true, Stations: len(out), Latency: time.Since(start)})
		return out, nil
	}
	out, err := c.src.Nearby(ctx, q.Normalize())
	ev := events.DiscoveryEvent{Stations: len(out), Err: err, Latency: time.Since(start)}
	c.publish(ev)
	if err != nil {
		c.logger.Warnf("discovery from %s failed: %v", c.src.Name(), err)
		return nil, err
	}
	c.logger.Debugf("discovered %d stations from %s", len(out), c.src.Name())
	c.store.Set(key, out, c.ttl)
	return out, nil
}

// Warm refreshes the cache entry of q regardless of its age.
func (c *CachedSource) Warm(ctx context.Context, q Query) (int, error) {
	out, err := c.src.Nearby(ctx, q.Normalize())
	if err != nil {
		return 0, err
	}
	c.store.Set(Key(c.src.Name(), q), out, c.ttl)
	return len(out), nil
}

func (c *CachedSource) publish(ev events.DiscoveryEvent) {
	if c.bus == nil {
		return
	}
	ev.Source = c.src.Name()
	ev.Time = time.Now()
	c.bus.Publish(ev)
}
