package recommend

import (
	"context"
	"math"
	"strings"
	"time"

	"gonum.org/v1/gonum/floats/scalar"

	"github.com/kilianp07/evreco/core/model"
)

// FallbackReason explains why the model was bypassed.
type FallbackReason string

const (
	FallbackNone        FallbackReason = ""
	FallbackTimeout     FallbackReason = "timeout"
	FallbackUnavailable FallbackReason = "unavailable"
	FallbackMalformed   FallbackReason = "malformed"
	FallbackMismatch    FallbackReason = "mismatch"
	FallbackError       FallbackReason = "error"
	FallbackCancelled   FallbackReason = "cancelled"
)

// Scoring is the output of a Scorer.
type Scoring struct {
	Stations       []model.ScoredStation
	Strategy       model.Strategy
	FallbackReason FallbackReason
	ModelLatency   time.Duration
}

// Scorer assigns a predicted rating to every station. Implementations never
// fail: degraded conditions are absorbed and reported through Scoring.
type Scorer interface {
	Score(ctx context.Context, stations []model.Station, prefs model.UserPreferences) Scoring
}

// Weights are the coefficients of the rule-based formula.
type Weights struct {
	Distance          float64 `json:"distance"`
	DistanceRangeKM   float64 `json:"distance_range_km"`
	Cost              float64 `json:"cost"`
	OverBudgetPenalty float64 `json:"over_budget_penalty"`
	Operator          float64 `json:"operator"`
	Public            float64 `json:"public"`
	FastCharging      float64 `json:"fast_charging"`
}

// DefaultWeights returns the reference weights. The positive terms add up to 100.
func DefaultWeights() Weights {
	return Weights{
		Distance:          40,
		DistanceRangeKM:   20,
		Cost:              25,
		OverBudgetPenalty: 10,
		Operator:          15,
		Public:            10,
		FastCharging:      10,
	}
}

// RuleScorer rates stations with a deterministic weighted formula.
type RuleScorer struct {
	Weights Weights
}

// NewRuleScorer returns a RuleScorer using w, or the default weights when w is zero.
func NewRuleScorer(w Weights) RuleScorer {
	if w == (Weights{}) {
		w = DefaultWeights()
	}
	return RuleScorer{Weights: w}
}

// Score implements Scorer.
func (r RuleScorer) Score(_ context.Context, stations []model.Station, prefs model.UserPreferences) Scoring {
	out := make([]model.ScoredStation, len(stations))
	for i, st := range stations {
		out[i] = r.ScoreStation(st, prefs)
	}
	return Scoring{Stations: out, Strategy: model.StrategyFallback}
}

// ScoreStation rates a single station.
func (r RuleScorer) ScoreStation(st model.Station, prefs model.UserPreferences) model.ScoredStation {
	score := r.RecommendationScore(st, prefs)
	return model.ScoredStation{
		Station:             st,
		PredictedRating:     RatingFromScore(score),
		RecommendationScore: &score,
		Strategy:            model.StrategyFallback,
	}
}

// RecommendationScore returns the unbounded weighted score of st.
func (r RuleScorer) RecommendationScore(st model.Station, prefs model.UserPreferences) float64 {
	w := r.Weights
	score := r.distanceTerm(st.Distance) + r.costTerm(st.UsageCost, prefs.Budget)
	if strings.TrimSpace(prefs.PreferredOperator) != "" && OperatorMatches(st.Operator, prefs.PreferredOperator) {
		score += w.Operator
	}
	if st.AccessType == model.AccessPublic {
		score += w.Public
	}
	if st.FastCharging {
		score += w.FastCharging
	}
	return score
}

func (r RuleScorer) distanceTerm(d float64) float64 {
	rng := r.Weights.DistanceRangeKM
	if rng <= 0 {
		return 0
	}
	return math.Max(0, (rng-d)/rng) * r.Weights.Distance
}

// costTerm rewards headroom under the budget. A zero budget contributes
// nothing to free stations and the penalty to paid ones.
func (r RuleScorer) costTerm(cost, budget float64) float64 {
	if cost > budget {
		return -r.Weights.OverBudgetPenalty
	}
	if budget <= 0 {
		return 0
	}
	return math.Max(0, (budget-cost)/budget) * r.Weights.Cost
}

// RatingFromScore maps a recommendation score onto the 1 to 5 rating scale.
func RatingFromScore(score float64) float64 {
	return ClampRating(score/100*4 + 1)
}

// ClampRating bounds a rating to [1, 5] and rounds it to one decimal. NaN
// maps to the lowest rating.
func ClampRating(v float64) float64 {
	if math.IsNaN(v) {
		return model.MinRating
	}
	v = math.Max(model.MinRating, math.Min(model.MaxRating, v))
	return scalar.Round(v, 1)
}
