package config

import (
	"errors"
	"fmt"
	"io/fs"
	"path/filepath"
	"strings"

	"github.com/joho/godotenv"
	"github.com/knadh/koanf/parsers/json"
	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/v2"

	"github.com/kilianp07/evreco/core/metrics"
	"github.com/kilianp07/evreco/core/recommend"
	"github.com/kilianp07/evreco/core/records"
	"github.com/kilianp07/evreco/infra/cache"
	"github.com/kilianp07/evreco/infra/mqtt"
)

type Config struct {
	Server     ServerConfig     `json:"server"`
	Discovery  DiscoveryConfig  `json:"discovery"`
	Cache      cache.Config     `json:"cache"`
	Recommend  recommend.Config `json:"recommend"`
	Prediction PredictionConfig `json:"prediction"`
	MQTT       mqtt.Config      `json:"mqtt"`
	Metrics    metrics.Config   `json:"metrics"`
	Records    records.Config   `json:"records"`
	Logging    LoggingConfig    `json:"logging"`
	Sentry     SentryConfig     `json:"sentry"`
	Prefetch   PrefetchConfig   `json:"prefetch"`
}

// Load reads the configuration file at path, applies K_ prefixed environment
// overrides (K_SERVER__ADDR sets server.addr) and validates the result. A
// .env file in the working directory is loaded first when present. An empty
// path loads defaults and environment only.
func Load(path string) (*Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("load .env: %w", err)
	}
	k := koanf.New(".")
	if path != "" {
		ext := strings.ToLower(filepath.Ext(path))
		var parser koanf.Parser
		switch ext {
		case ".yaml", ".yml":
			parser = yaml.Parser()
		case ".json":
			parser = json.Parser()
		default:
			return nil, fmt.Errorf("unsupported config format: %s", ext)
		}
		if err := k.Load(file.Provider(path), parser); err != nil {
			return nil, err
		}
	}
	// Optional environment overrides
	if err := k.Load(env.Provider("K_", ".", func(s string) string {
		s = strings.TrimPrefix(strings.ToLower(s), "k_")
		return strings.ReplaceAll(s, "__", ".")
	}), nil); err != nil {
		return nil, err
	}
	var cfg Config
	if err := k.UnmarshalWithConf("", &cfg, koanf.UnmarshalConf{Tag: "json"}); err != nil {
		return nil, err
	}
	cfg.SetDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Default returns a configuration holding only default values.
func Default() *Config {
	var cfg Config
	cfg.SetDefaults()
	return &cfg
}

// SetDefaults applies the defaults of every section.
func (c *Config) SetDefaults() {
	c.Server.SetDefaults()
	c.Discovery.SetDefaults()
	c.Cache.SetDefaults()
	c.Recommend.SetDefaults()
	c.Prediction.SetDefaults()
	c.MQTT.SetDefaults()
	c.Records.SetDefaults()
	c.Logging.SetDefaults()
	c.Prefetch.SetDefaults()
}

// Validate checks every section. The mqtt section is only checked when the
// model is reached over MQTT.
func (c Config) Validate() error {
	validators := []func() error{
		c.Server.Validate,
		c.Discovery.Validate,
		c.Recommend.Validate,
		c.Prediction.Validate,
		c.Records.Validate,
		c.Logging.Validate,
		c.Prefetch.Validate,
	}
	if c.Prediction.Type == "mqtt" {
		validators = append(validators, c.MQTT.Validate)
	}
	for _, v := range validators {
		if err := v(); err != nil {
			return err
		}
	}
	return nil
}
