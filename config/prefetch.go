package config

import (
	"fmt"

	"github.com/robfig/cron/v3"
)

// Hotspot is an area whose stations are fetched ahead of requests.
type Hotspot struct {
	Name     string  `json:"name"`
	Lat      float64 `json:"lat"`
	Lon      float64 `json:"lon"`
	RadiusKM float64 `json:"radius_km"`
}

// PrefetchConfig drives the discovery cache warm-up job.
type PrefetchConfig struct {
	Enabled  bool      `json:"enabled"`
	Schedule string    `json:"schedule"`
	Hotspots []Hotspot `json:"hotspots"`
}

// SetDefaults refreshes every four minutes, inside the default cache TTL.
func (c *PrefetchConfig) SetDefaults() {
	if c.Schedule == "" {
		c.Schedule = "@every 4m"
	}
}

// Validate checks the schedule and the hotspot coordinates.
func (c PrefetchConfig) Validate() error {
	if !c.Enabled {
		return nil
	}
	if _, err := cron.ParseStandard(c.Schedule); err != nil {
		return fmt.Errorf("prefetch: schedule %q: %w", c.Schedule, err)
	}
	for _, h := range c.Hotspots {
		if h.Lat < -90 || h.Lat > 90 || h.Lon < -180 || h.Lon > 180 {
			return fmt.Errorf("prefetch: hotspot %s: coordinates out of range", h.Name)
		}
	}
	return nil
}
