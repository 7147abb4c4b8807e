package plugins

import (
	"github.com/kilianp07/evreco/config"
	"github.com/kilianp07/evreco/core/discovery"
	"github.com/kilianp07/evreco/core/factory"
	"github.com/kilianp07/evreco/core/prediction"
	"github.com/kilianp07/evreco/infra/mqtt"
	"github.com/kilianp07/evreco/infra/ocm"
	"github.com/kilianp07/evreco/infra/overpass"
	infrapred "github.com/kilianp07/evreco/infra/prediction"
)

func init() {
	RegisterPrediction("none", func(map[string]any, Env) (prediction.ModelClient, error) {
		return nil, nil
	})
	RegisterPrediction("mock", func(conf map[string]any, _ Env) (prediction.ModelClient, error) {
		m := &prediction.MockModelClient{Default: 3}
		if err := factory.Decode(conf, m); err != nil {
			return nil, err
		}
		return m, nil
	})
	RegisterPrediction("exec", func(conf map[string]any, env Env) (prediction.ModelClient, error) {
		var c infrapred.ExecConfig
		if err := factory.Decode(conf, &c); err != nil {
			return nil, err
		}
		return infrapred.NewExecClient(c, env.Logger)
	})
	RegisterPrediction("http", func(conf map[string]any, _ Env) (prediction.ModelClient, error) {
		var c infrapred.HTTPConfig
		if err := factory.Decode(conf, &c); err != nil {
			return nil, err
		}
		return infrapred.NewHTTPClient(c)
	})
	RegisterPrediction("mqtt", func(conf map[string]any, env Env) (prediction.ModelClient, error) {
		c := env.MQTT
		if err := factory.Decode(conf, &c); err != nil {
			return nil, err
		}
		c.SetDefaults()
		if err := c.Validate(); err != nil {
			return nil, err
		}
		return mqtt.NewModelClient(c)
	})

	RegisterSource("ocm", func(cfg config.DiscoveryConfig) (discovery.Source, error) {
		c := cfg.OCM
		c.SetDefaults()
		if err := c.Validate(); err != nil {
			return nil, err
		}
		return ocm.NewClient(c), nil
	})
	RegisterSource("osm", func(cfg config.DiscoveryConfig) (discovery.Source, error) {
		c := cfg.Overpass
		c.SetDefaults()
		return overpass.NewSource(c), nil
	})
}
