package model

import "time"

// Strategy names the scoring path that produced a rating.
type Strategy string

const (
	StrategyModel    Strategy = "model"
	StrategyFallback Strategy = "fallback"
)

// Rating bounds shared by every scoring strategy.
const (
	MinRating = 1.0
	MaxRating = 5.0
)

// ScoredStation is a Station annotated with its predicted rating.
// RecommendationScore is only set by the rule-based fallback.
type ScoredStation struct {
	Station
	PredictedRating     float64  `json:"predicted_rating"`
	RecommendationScore *float64 `json:"recommendation_score,omitempty"`
	Strategy            Strategy `json:"strategy,omitempty"`
}

// RankKey returns the value used to order scored stations: the fallback
// score when present, the predicted rating otherwise.
func (s ScoredStation) RankKey() float64 {
	if s.RecommendationScore != nil {
		return *s.RecommendationScore
	}
	return s.PredictedRating
}

// Reason explains why a result carries no stations.
type Reason string

const (
	ReasonNone         Reason = ""
	ReasonNoCandidates Reason = "no_candidates"
	ReasonNoMatch      Reason = "no_match"
)

// Message returns the human readable text attached to an empty result.
func (r Reason) Message() string {
	switch r {
	case ReasonNoCandidates:
		return "No charging stations found in this area"
	case ReasonNoMatch:
		return "No stations match your criteria"
	default:
		return ""
	}
}

// Result is the outcome of one recommendation request.
type Result struct {
	RequestID   string          `json:"request_id"`
	Stations    []ScoredStation `json:"stations"`
	Reason      Reason          `json:"reason,omitempty"`
	Message     string          `json:"message,omitempty"`
	Strategy    Strategy        `json:"strategy,omitempty"`
	Candidates  int             `json:"candidates"`
	Matched     int             `json:"matched"`
	Dropped     int             `json:"dropped"`
	GeneratedAt time.Time       `json:"generated_at"`
}

// Empty reports whether the result holds no stations.
func (r Result) Empty() bool { return len(r.Stations) == 0 }
