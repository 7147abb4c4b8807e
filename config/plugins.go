package config

import (
	"fmt"

	"github.com/kilianp07/evreco/core/factory"
)

// PredictionConfig selects the transport reaching the rating model. Type is
// one of "none", "mock", "exec", "http" or "mqtt"; Conf is decoded by the
// selected transport. The mqtt transport reads the top level mqtt section.
type PredictionConfig struct {
	Type string         `json:"type"`
	Conf map[string]any `json:"conf"`
}

// SetDefaults disables the model so that rule-based scoring is used.
func (c *PredictionConfig) SetDefaults() {
	if c.Type == "" {
		c.Type = "none"
	}
}

// Validate checks the transport name.
func (c PredictionConfig) Validate() error {
	switch c.Type {
	case "none", "mock", "exec", "http", "mqtt":
		return nil
	default:
		return fmt.Errorf("prediction: unknown transport %q", c.Type)
	}
}

// Module returns the factory configuration of the transport.
func (c PredictionConfig) Module() factory.ModuleConfig {
	return factory.ModuleConfig{Type: c.Type, Conf: c.Conf}
}
