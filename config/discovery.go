package config

import (
	"fmt"

	"github.com/kilianp07/evreco/infra/ocm"
	"github.com/kilianp07/evreco/infra/overpass"
)

// DiscoveryConfig lists the station catalogues, tried in order.
type DiscoveryConfig struct {
	// Sources holds "ocm" and/or "osm".
	Sources  []string        `json:"sources"`
	OCM      ocm.Config      `json:"ocm"`
	Overpass overpass.Config `json:"overpass"`
}

// SetDefaults selects OpenChargeMap only.
func (c *DiscoveryConfig) SetDefaults() {
	if len(c.Sources) == 0 {
		c.Sources = []string{"ocm"}
	}
	c.OCM.SetDefaults()
	c.Overpass.SetDefaults()
}

// Validate checks the source names.
func (c DiscoveryConfig) Validate() error {
	for _, s := range c.Sources {
		switch s {
		case "ocm":
			if err := c.OCM.Validate(); err != nil {
				return err
			}
		case "osm":
		default:
			return fmt.Errorf("discovery: unknown source %q", s)
		}
	}
	return nil
}
