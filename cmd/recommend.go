package cmd

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/kilianp07/evreco/app/plugins"
	"github.com/kilianp07/evreco/core/discovery"
	"github.com/kilianp07/evreco/core/model"
	"github.com/kilianp07/evreco/core/recommend"
	"github.com/kilianp07/evreco/infra/logger"
	"github.com/kilianp07/evreco/pkg/export"
)

var recommendOpts struct {
	input          string
	format         string
	chart          string
	lat, lng       float64
	maxDistance    float64
	budget         float64
	battery        float64
	operator       string
	fast, public   bool
	priceSensitive bool
}

var recommendCmd = &cobra.Command{
	Use:   "recommend",
	Short: "Rank the charging stations around a point once and print the result",
	Long: "Runs the recommendation pipeline a single time. Stations are read from --input, a JSON array of " +
		"OpenChargeMap records, or fetched from the configured discovery sources.",
	RunE: runRecommend,
}

func init() {
	f := recommendCmd.Flags()
	f.StringVarP(&recommendOpts.input, "input", "i", "", "JSON file of raw stations instead of live discovery")
	f.StringVarP(&recommendOpts.format, "format", "f", "json", "output format: json or csv")
	f.StringVar(&recommendOpts.chart, "chart", "", "write an HTML rating chart to this file")
	f.Float64Var(&recommendOpts.lat, "lat", 0, "latitude")
	f.Float64Var(&recommendOpts.lng, "lng", 0, "longitude")
	f.Float64Var(&recommendOpts.maxDistance, "max-distance", model.DefaultMaxDistanceKM, "maximum distance in km")
	f.Float64Var(&recommendOpts.budget, "budget", model.DefaultBudget, "maximum session cost")
	f.Float64Var(&recommendOpts.battery, "battery", model.DefaultBatteryCapacity, "battery capacity in kWh")
	f.StringVar(&recommendOpts.operator, "operator", "", "preferred operator")
	f.BoolVar(&recommendOpts.fast, "fast", false, "fast charging only")
	f.BoolVar(&recommendOpts.public, "public", false, "public access only")
	f.BoolVar(&recommendOpts.priceSensitive, "price-sensitive", false, "favour cheaper stations")
	_ = recommendCmd.MarkFlagRequired("lat")
	_ = recommendCmd.MarkFlagRequired("lng")
	rootCmd.AddCommand(recommendCmd)
}

func preferencesFromFlags() (model.UserPreferences, error) {
	o := recommendOpts
	return model.PreferencesInput{
		Latitude:           &o.lat,
		Longitude:          &o.lng,
		MaxDistance:        &o.maxDistance,
		Budget:             &o.budget,
		PreferredOperator:  o.operator,
		FastChargingOnly:   o.fast,
		PublicAccessOnly:   o.public,
		BatteryCapacityKWh: &o.battery,
		IsPriceSensitive:   o.priceSensitive,
	}.Resolve()
}

func readStations(path string) ([]model.RawStation, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	raw, bad, err := model.DecodeRawStations(data)
	if err != nil {
		return nil, fmt.Errorf("decode %s: %w", path, err)
	}
	if bad > 0 {
		logger.New("recommend").Warnf("%s: %d undecodable stations skipped", path, bad)
	}
	return raw, nil
}

func runRecommend(cmd *cobra.Command, _ []string) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}
	prefs, err := preferencesFromFlags()
	if err != nil {
		return err
	}

	var raw []model.RawStation
	if recommendOpts.input != "" {
		raw, err = readStations(recommendOpts.input)
	} else {
		var src discovery.Source
		if src, err = plugins.NewSource(cfg.Discovery); err == nil {
			raw, err = src.Nearby(ctx, discovery.Query{Lat: prefs.Latitude, Lon: prefs.Longitude, RadiusKM: prefs.MaxDistance})
		}
	}
	if err != nil {
		return err
	}

	client, err := plugins.NewModelClient(cfg.Prediction, plugins.Env{MQTT: cfg.MQTT, Logger: logger.New("prediction")})
	if err != nil {
		return err
	}
	if c, ok := client.(io.Closer); ok {
		defer c.Close()
	}
	eng := recommend.NewEngineFromConfig(cfg.Recommend, client, logger.New("recommend"))
	res, err := eng.Recommend(ctx, raw, prefs)
	if err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	switch recommendOpts.format {
	case "csv":
		err = export.WriteStationsCSV(out, res.Stations)
	case "json":
		err = export.WriteJSON(out, res)
	default:
		err = fmt.Errorf("unknown format %q", recommendOpts.format)
	}
	if err != nil {
		return err
	}
	if recommendOpts.chart != "" {
		return writeChart(recommendOpts.chart, res)
	}
	return nil
}

func writeChart(path string, res model.Result) error {
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	if err := export.RatingChart(f, res); err != nil {
		_ = f.Close()
		return err
	}
	return f.Close()
}
