package metrics

import (
	"context"
	"net/http"
	"strings"
	"time"

	influxdb2 "github.com/influxdata/influxdb-client-go/v2"
	"github.com/influxdata/influxdb-client-go/v2/api"
	"github.com/influxdata/influxdb-client-go/v2/api/write"
	"gonum.org/v1/gonum/floats/scalar"

	coremetrics "github.com/kilianp07/evreco/core/metrics"
	"github.com/kilianp07/evreco/infra/logger"
)

// InfluxConfig locates the InfluxDB bucket receiving the events.
type InfluxConfig struct {
	URL    string `json:"url"`
	Token  string `json:"token"`
	Org    string `json:"org"`
	Bucket string `json:"bucket"`
}

// InfluxSink writes recommendation events to InfluxDB using the official client.
type InfluxSink struct {
	client   influxdb2.Client
	writeAPI api.WriteAPIBlocking
	log      logger.Logger
}

// NewInfluxSink creates a new sink configured for the given InfluxDB endpoint.
func NewInfluxSink(cfg InfluxConfig) *InfluxSink {
	base := strings.TrimSuffix(cfg.URL, "/api/v2/write")
	client := influxdb2.NewClientWithOptions(base, cfg.Token,
		influxdb2.DefaultOptions().SetHTTPClient(&http.Client{Timeout: 5 * time.Second}))
	return &InfluxSink{
		client:   client,
		writeAPI: client.WriteAPIBlocking(cfg.Org, cfg.Bucket),
		log:      logger.New("influx-sink"),
	}
}

// NewInfluxSinkWithFallback pings the InfluxDB instance and returns a
// NopSink if the health check fails.
func NewInfluxSinkWithFallback(cfg InfluxConfig) coremetrics.MetricsSink {
	sink := NewInfluxSink(cfg)
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	health, err := sink.client.Health(ctx)
	if err != nil || health.Status != "pass" {
		if err != nil {
			sink.log.Errorf("influx health check error: %v", err)
		} else {
			sink.log.Errorf("influx health status: %s", health.Status)
		}
		sink.client.Close()
		return coremetrics.NopSink{}
	}
	return sink
}

// RecordRecommendation writes one recommendation_served point.
func (s *InfluxSink) RecordRecommendation(ev coremetrics.RecommendationEvent) error {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	p := write.NewPointWithMeasurement("recommendation_served").
		AddTag("strategy", string(ev.Strategy)).
		AddTag("component", "engine")
	if ev.Reason != "" {
		p = p.AddTag("reason", string(ev.Reason))
	}
	if ev.FallbackReason != "" {
		p = p.AddTag("fallback_reason", ev.FallbackReason)
	}
	p = p.AddField("request_id", ev.RequestID).
		AddField("raw", ev.Raw).
		AddField("candidates", ev.Candidates).
		AddField("matched", ev.Matched).
		AddField("returned", ev.Returned).
		AddField("top_rating", round3(ev.TopRating)).
		AddField("model_latency_ms", round3(ev.ModelLatency.Seconds()*1000)).
		AddField("duration_ms", round3(ev.Duration.Seconds()*1000)).
		SetTime(ev.Time)
	if ev.TopStationID != "" {
		p = p.AddField("top_station_id", ev.TopStationID)
	}
	return s.writeAPI.WritePoint(ctx, p)
}

// RecordDiscovery writes one discovery_lookup point.
func (s *InfluxSink) RecordDiscovery(ev coremetrics.DiscoveryEvent) error {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	p := write.NewPointWithMeasurement("discovery_lookup").
		AddTag("source", ev.Source).
		AddTag("cache_hit", boolString(ev.CacheHit)).
		AddField("stations", ev.Stations).
		AddField("latency_ms", round3(ev.Latency.Seconds()*1000)).
		SetTime(ev.Time)
	if ev.Error != "" {
		p = p.AddField("error", ev.Error)
	}
	return s.writeAPI.WritePoint(ctx, p)
}

// RecordFallback writes one fallback_applied point.
func (s *InfluxSink) RecordFallback(ev coremetrics.FallbackEvent) error {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	p := write.NewPointWithMeasurement("fallback_applied").
		AddTag("reason", ev.Reason).
		AddTag("component", "scorer").
		AddField("request_id", ev.RequestID).
		AddField("stations", ev.Stations).
		SetTime(ev.Time)
	return s.writeAPI.WritePoint(ctx, p)
}

// Close releases the client.
func (s *InfluxSink) Close() error {
	s.client.Close()
	return nil
}

func round3(f float64) float64 { return scalar.Round(f, 3) }

func boolString(b bool) string {
	if b {
		return "true"
	}
	return "false"
}
