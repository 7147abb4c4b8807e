package recommend

import (
	"github.com/prometheus/client_golang/prometheus"
)

var (
	recommendationsTotal *prometheus.CounterVec
	scoringFallbacks     *prometheus.CounterVec
	modelLatency         prometheus.Histogram
	resultSize           prometheus.Histogram
	stationsDropped      prometheus.Counter
)

// newCollectors creates new metric collectors.
func newCollectors() (*prometheus.CounterVec, *prometheus.CounterVec, prometheus.Histogram, prometheus.Histogram, prometheus.Counter) {
	reqs := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "recommendations_total",
			Help: "Number of recommendation requests served",
		},
		[]string{"strategy", "reason"},
	)
	fallbacks := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "scoring_fallbacks_total",
			Help: "Number of times rule-based scoring replaced the model",
		},
		[]string{"reason"},
	)
	lat := prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "model_latency_seconds",
			Help:    "Latency of calls to the rating model",
			Buckets: []float64{0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30, 60},
		},
	)
	size := prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "recommendation_result_size",
			Help:    "Number of stations returned per recommendation",
			Buckets: []float64{0, 1, 2, 5, 10, 15, 20},
		},
	)
	dropped := prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "stations_dropped_total",
			Help: "Number of raw station records dropped during normalization",
		},
	)
	return reqs, fallbacks, lat, size, dropped
}

func init() {
	recommendationsTotal, scoringFallbacks, modelLatency, resultSize, stationsDropped = newCollectors()
	MustRegisterMetrics(nil)
}

// MustRegisterMetrics registers recommendation metrics on the provided registry.
// If reg is nil, prometheus.DefaultRegisterer is used.
func MustRegisterMetrics(reg prometheus.Registerer) {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	reg.MustRegister(recommendationsTotal, scoringFallbacks, modelLatency, resultSize, stationsDropped)
}

// ResetMetrics reinitializes metrics collectors for testing purposes and
// registers them on the provided registry if not nil.
func ResetMetrics(reg prometheus.Registerer) {
	recommendationsTotal, scoringFallbacks, modelLatency, resultSize, stationsDropped = newCollectors()
	if reg != nil {
		MustRegisterMetrics(reg)
	}
}
