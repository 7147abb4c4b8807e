// Package prefetch keeps the discovery cache warm for busy areas.
package prefetch

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/robfig/cron/v3"

	"github.com/kilianp07/evreco/config"
	"github.com/kilianp07/evreco/core/discovery"
	"github.com/kilianp07/evreco/core/logger"
)

// Warmer refreshes the cached stations of a query.
type Warmer interface {
	Warm(ctx context.Context, q discovery.Query) (int, error)
}

// Job fetches every hotspot on a cron schedule.
type Job struct {
	mu       sync.Mutex
	cron     *cron.Cron
	warmer   Warmer
	hotspots []config.Hotspot
	timeout  time.Duration
	logger   logger.Logger
	ctx      context.Context
}

// New schedules the hotspots of cfg. Hotspots without a radius use the
// default lookup radius, which is also the radius of a request that leaves
// max_distance unset.
func New(cfg config.PrefetchConfig, warmer Warmer, log logger.Logger) (*Job, error) {
	if warmer == nil {
		return nil, errors.New("prefetch: warmer must not be nil")
	}
	c := cron.New()
	j := &Job{
		cron:     c,
		warmer:   warmer,
		hotspots: cfg.Hotspots,
		timeout:  time.Minute,
		logger:   log,
		ctx:      context.Background(),
	}
	if _, err := c.AddFunc(cfg.Schedule, j.run); err != nil {
		return nil, fmt.Errorf("prefetch: add cron: %w", err)
	}
	return j, nil
}

// Start runs one warm-up immediately, then follows the schedule until ctx
// is cancelled.
func (j *Job) Start(ctx context.Context) {
	j.mu.Lock()
	j.ctx = ctx
	j.mu.Unlock()
	go j.run()
	j.cron.Start()
	go func() {
		<-ctx.Done()
		j.Stop()
	}()
}

// Stop stops the scheduler and waits for a running warm-up.
func (j *Job) Stop() {
	<-j.cron.Stop().Done()
}

// RunOnce warms every hotspot and returns the number of stations fetched.
// Failures are logged and joined.
func (j *Job) RunOnce(ctx context.Context) (int, error) {
	var errs []error
	total := 0
	for _, h := range j.hotspots {
		q := discovery.Query{Lat: h.Lat, Lon: h.Lon, RadiusKM: h.RadiusKM}
		cctx, cancel := context.WithTimeout(ctx, j.timeout)
		n, err := j.warmer.Warm(cctx, q)
		cancel()
		if err != nil {
			j.logger.Warnf("prefetch %s failed: %v", h.Name, err)
			errs = append(errs, fmt.Errorf("%s: %w", h.Name, err))
			continue
		}
		total += n
		j.logger.Debugw("prefetched hotspot", map[string]any{"hotspot": h.Name, "stations": n})
	}
	return total, errors.Join(errs...)
}

func (j *Job) run() {
	j.mu.Lock()
	ctx := j.ctx
	j.mu.Unlock()
	if ctx.Err() != nil {
		return
	}
	n, _ := j.RunOnce(ctx)
	j.logger.Infof("prefetch refreshed %d stations across %d hotspots", n, len(j.hotspots))
}
