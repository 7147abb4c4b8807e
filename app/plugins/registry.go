package plugins

import (
	"fmt"
	"sort"
	"strings"

	"github.com/kilianp07/evreco/config"
	"github.com/kilianp07/evreco/core/discovery"
	"github.com/kilianp07/evreco/core/logger"
	"github.com/kilianp07/evreco/core/prediction"
	"github.com/kilianp07/evreco/infra/mqtt"
)

// Env carries the settings shared by several factories.
type Env struct {
	// MQTT is the broker section; conf keys of the mqtt transport override it.
	MQTT   mqtt.Config
	Logger logger.Logger
}

// PredictionFactory builds a model client from raw config. A nil client
// selects rule-based scoring.
type PredictionFactory func(conf map[string]any, env Env) (prediction.ModelClient, error)

// SourceFactory builds a station source from the discovery section.
type SourceFactory func(cfg config.DiscoveryConfig) (discovery.Source, error)

var (
	Predictions = map[string]PredictionFactory{}
	Sources     = map[string]SourceFactory{}
)

func RegisterPrediction(name string, f PredictionFactory) { Predictions[name] = f }
func RegisterSource(name string, f SourceFactory)         { Sources[name] = f }

// NewModelClient creates the transport selected by cfg.
func NewModelClient(cfg config.PredictionConfig, env Env) (prediction.ModelClient, error) {
	f, ok := Predictions[cfg.Type]
	if !ok {
		return nil, fmt.Errorf("unknown prediction transport %q (known: %s)", cfg.Type, known(Predictions))
	}
	conf := cfg.Conf
	if conf == nil {
		conf = map[string]any{}
	}
	return f(conf, env)
}

// NewSource chains the sources listed in cfg in order.
func NewSource(cfg config.DiscoveryConfig) (discovery.Source, error) {
	if len(cfg.Sources) == 0 {
		return nil, fmt.Errorf("no discovery source configured")
	}
	chain := make(discovery.Chain, 0, len(cfg.Sources))
	for _, name := range cfg.Sources {
		f, ok := Sources[name]
		if !ok {
			return nil, fmt.Errorf("unknown discovery source %q (known: %s)", name, known(Sources))
		}
		src, err := f(cfg)
		if err != nil {
			return nil, fmt.Errorf("source %s: %w", name, err)
		}
		chain = append(chain, src)
	}
	if len(chain) == 1 {
		return chain[0], nil
	}
	return chain, nil
}

func known[T any](m map[string]T) string {
	names := make([]string, 0, len(m))
	for n := range m {
		names = append(names, n)
	}
	sort.Strings(names)
	return strings.Join(names, ", ")
}
