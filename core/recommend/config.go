package recommend

import (
	"fmt"
	"time"
)

// ZeroBudgetMode decides how the filter treats a budget of exactly zero.
type ZeroBudgetMode string

const (
	// ZeroBudgetNoCap disables the cost filter when the budget is zero.
	ZeroBudgetNoCap ZeroBudgetMode = "no_cap"
	// ZeroBudgetStrict only admits free stations when the budget is zero.
	ZeroBudgetStrict ZeroBudgetMode = "strict"
)

// Defaults for Config.
const (
	DefaultModelTimeout = 60 * time.Second
	DefaultMaxResults   = 20
)

// Config defines recommendation settings.
type Config struct {
	ModelTimeoutSeconds int            `json:"model_timeout_seconds"`
	MaxResults          int            `json:"max_results"`
	ZeroBudgetMode      ZeroBudgetMode `json:"zero_budget_mode"`
	Weights             Weights        `json:"weights"`
}

// SetDefaults applies sane defaults.
func (c *Config) SetDefaults() {
	if c.ModelTimeoutSeconds <= 0 {
		c.ModelTimeoutSeconds = int(DefaultModelTimeout / time.Second)
	}
	if c.MaxResults <= 0 {
		c.MaxResults = DefaultMaxResults
	}
	if c.ZeroBudgetMode == "" {
		c.ZeroBudgetMode = ZeroBudgetNoCap
	}
	if c.Weights == (Weights{}) {
		c.Weights = DefaultWeights()
	}
}

// Validate checks the configured values.
func (c Config) Validate() error {
	switch c.ZeroBudgetMode {
	case ZeroBudgetNoCap, ZeroBudgetStrict:
	default:
		return fmt.Errorf("recommend: unknown zero_budget_mode %q", c.ZeroBudgetMode)
	}
	if c.MaxResults <= 0 {
		return fmt.Errorf("recommend: max_results must be positive")
	}
	if c.Weights.DistanceRangeKM <= 0 {
		return fmt.Errorf("recommend: weights.distance_range_km must be positive")
	}
	return nil
}

// ModelTimeout returns the hard deadline of a model call.
func (c Config) ModelTimeout() time.Duration {
	return time.Duration(c.ModelTimeoutSeconds) * time.Second
}
