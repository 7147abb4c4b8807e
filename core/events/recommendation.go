package events

import (
	"time"

	"github.com/kilianp07/evreco/core/model"
)

// RecommendationEvent is published once per completed recommendation.
// FallbackReason is empty when the model produced the ratings.
type RecommendationEvent struct {
	RequestID      string
	Strategy       model.Strategy
	FallbackReason string
	Reason         model.Reason
	Raw            int
	Candidates     int
	Matched        int
	Returned       int
	TopStationID   string
	TopRating      float64
	ModelLatency   time.Duration
	Duration       time.Duration
	Time           time.Time
}
