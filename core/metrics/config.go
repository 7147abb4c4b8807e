package metrics

import "github.com/kilianp07/evreco/core/factory"

// Config defines settings for metrics sinks.
type Config struct {
	Sinks []factory.ModuleConfig `json:"sinks"`
	// PromAddr is the listen address of the dedicated /metrics server.
	// Empty disables it; the API server always exposes /metrics.
	PromAddr string `json:"prom_addr"`
}
