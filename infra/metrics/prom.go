package metrics

import (
	"errors"

	"github.com/prometheus/client_golang/prometheus"

	coremetrics "github.com/kilianp07/evreco/core/metrics"
)

// PromSink records recommendation, discovery and fallback events in
// Prometheus metrics.
type PromSink struct {
	served    *prometheus.CounterVec
	duration  prometheus.Histogram
	topRating prometheus.Histogram
	lookups   *prometheus.CounterVec
	lookupLat *prometheus.HistogramVec
	fallbacks *prometheus.CounterVec
}

// NewPromSink registers the metrics on the default Prometheus registerer.
func NewPromSink() (*PromSink, error) {
	return NewPromSinkWithRegistry(prometheus.DefaultRegisterer)
}

// NewPromSinkWithRegistry registers metrics on the provided registerer.
// A nil registerer defaults to the global Prometheus registerer. Collectors
// already registered under the same name are reused.
func NewPromSinkWithRegistry(reg prometheus.Registerer) (*PromSink, error) {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	s := &PromSink{
		served: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "evreco_sink_recommendations_total",
			Help: "Recommendations reported to the sink",
		}, []string{"strategy", "empty"}),
		duration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "evreco_recommendation_duration_seconds",
			Help:    "End to end duration of a recommendation",
			Buckets: prometheus.DefBuckets,
		}),
		topRating: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "evreco_top_rating",
			Help:    "Predicted rating of the first ranked station",
			Buckets: []float64{1, 1.5, 2, 2.5, 3, 3.5, 4, 4.5, 5},
		}),
		lookups: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "evreco_discovery_lookups_total",
			Help: "Station source lookups",
		}, []string{"source", "cache", "outcome"}),
		lookupLat: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "evreco_discovery_latency_seconds",
			Help:    "Latency of station source lookups",
			Buckets: prometheus.DefBuckets,
		}, []string{"source"}),
		fallbacks: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "evreco_sink_fallbacks_total",
			Help: "Scoring fallbacks reported to the sink",
		}, []string{"reason"}),
	}
	var err error
	if s.served, err = register(reg, s.served); err != nil {
		return nil, err
	}
	if s.duration, err = register(reg, s.duration); err != nil {
		return nil, err
	}
	if s.topRating, err = register(reg, s.topRating); err != nil {
		return nil, err
	}
	if s.lookups, err = register(reg, s.lookups); err != nil {
		return nil, err
	}
	if s.lookupLat, err = register(reg, s.lookupLat); err != nil {
		return nil, err
	}
	if s.fallbacks, err = register(reg, s.fallbacks); err != nil {
		return nil, err
	}
	return s, nil
}

func register[C prometheus.Collector](reg prometheus.Registerer, c C) (C, error) {
	if err := reg.Register(c); err != nil {
		var are prometheus.AlreadyRegisteredError
		if errors.As(err, &are) {
			if exist, ok := are.ExistingCollector.(C); ok {
				return exist, nil
			}
		}
		return c, err
	}
	return c, nil
}

// RecordRecommendation implements coremetrics.MetricsSink.
func (s *PromSink) RecordRecommendation(ev coremetrics.RecommendationEvent) error {
	empty := "false"
	if ev.Returned == 0 {
		empty = "true"
	}
	s.served.WithLabelValues(string(ev.Strategy), empty).Inc()
	s.duration.Observe(ev.Duration.Seconds())
	if ev.Returned > 0 {
		s.topRating.Observe(ev.TopRating)
	}
	return nil
}

// RecordDiscovery implements coremetrics.DiscoveryRecorder.
func (s *PromSink) RecordDiscovery(ev coremetrics.DiscoveryEvent) error {
	cache := "miss"
	if ev.CacheHit {
		cache = "hit"
	}
	outcome := "ok"
	if ev.Error != "" {
		outcome = "error"
	}
	s.lookups.WithLabelValues(ev.Source, cache, outcome).Inc()
	if !ev.CacheHit {
		s.lookupLat.WithLabelValues(ev.Source).Observe(ev.Latency.Seconds())
	}
	return nil
}

// RecordFallback implements coremetrics.FallbackRecorder.
func (s *PromSink) RecordFallback(ev coremetrics.FallbackEvent) error {
	s.fallbacks.WithLabelValues(ev.Reason).Inc()
	return nil
}
