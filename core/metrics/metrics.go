package metrics

import (
	"time"

	"github.com/kilianp07/evreco/core/model"
)

// RecommendationEvent summarises one served recommendation.
type RecommendationEvent struct {
	RequestID      string         `json:"request_id"`
	Strategy       model.Strategy `json:"strategy"`
	FallbackReason string         `json:"fallback_reason,omitempty"`
	Reason         model.Reason   `json:"reason,omitempty"`
	Raw            int            `json:"raw"`
	Candidates     int            `json:"candidates"`
	Matched        int            `json:"matched"`
	Returned       int            `json:"returned"`
	TopStationID   string         `json:"top_station_id,omitempty"`
	TopRating      float64        `json:"top_rating"`
	ModelLatency   time.Duration  `json:"model_latency"`
	Duration       time.Duration  `json:"duration"`
	Time           time.Time      `json:"time"`
}

// MetricsSink records recommendation outcomes for observability purposes.
type MetricsSink interface {
	RecordRecommendation(ev RecommendationEvent) error
}

// DiscoveryEvent captures one lookup against a station source.
type DiscoveryEvent struct {
	Source   string        `json:"source"`
	CacheHit bool          `json:"cache_hit"`
	Stations int           `json:"stations"`
	Error    string        `json:"error,omitempty"`
	Latency  time.Duration `json:"latency"`
	Time     time.Time     `json:"time"`
}

// DiscoveryRecorder records discovery lookups.
type DiscoveryRecorder interface {
	RecordDiscovery(ev DiscoveryEvent) error
}

// FallbackEvent records a switch from the model to rule-based scoring.
type FallbackEvent struct {
	RequestID string    `json:"request_id"`
	Reason    string    `json:"reason"`
	Stations  int       `json:"stations"`
	Time      time.Time `json:"time"`
}

// FallbackRecorder records scoring fallbacks.
type FallbackRecorder interface {
	RecordFallback(ev FallbackEvent) error
}

// NopSink implements MetricsSink with no-op methods.
type NopSink struct{}

func (NopSink) RecordRecommendation(RecommendationEvent) error { return nil }
func (NopSink) RecordDiscovery(DiscoveryEvent) error           { return nil }
func (NopSink) RecordFallback(FallbackEvent) error             { return nil }
