package recommend

import (
	"context"
	"errors"
	"fmt"
	"math"
	"time"

	"github.com/kilianp07/evreco/core/logger"
	"github.com/kilianp07/evreco/core/model"
	"github.com/kilianp07/evreco/core/monitoring"
	"github.com/kilianp07/evreco/core/prediction"
)

var errMismatch = errors.New("model response does not match request")

// ModelScorer delegates rating to a prediction.ModelClient under a hard
// timeout and falls back to rule-based scoring on any failure. It is safe for
// concurrent use.
type ModelScorer struct {
	client   prediction.ModelClient
	fallback RuleScorer
	timeout  time.Duration
	logger   logger.Logger
	now      func() time.Time
}

// NewModelScorer returns a ModelScorer. A nil client makes every call fall
// back with reason "unavailable". A non-positive timeout uses DefaultModelTimeout.
func NewModelScorer(client prediction.ModelClient, fallback RuleScorer, timeout time.Duration, log logger.Logger) *ModelScorer {
	if timeout <= 0 {
		timeout = DefaultModelTimeout
	}
	return &ModelScorer{client: client, fallback: fallback, timeout: timeout, logger: log, now: time.Now}
}

// Score implements Scorer.
func (m *ModelScorer) Score(ctx context.Context, stations []model.Station, prefs model.UserPreferences) Scoring {
	if len(stations) == 0 {
		return Scoring{Stations: []model.ScoredStation{}, Strategy: model.StrategyModel}
	}
	if m.client == nil {
		return m.fallBack(ctx, stations, prefs, FallbackUnavailable, prediction.ErrModelUnavailable, 0)
	}

	callCtx, cancel := context.WithTimeout(ctx, m.timeout)
	defer cancel()
	start := time.Now()
	out, err := m.client.Predict(callCtx, prediction.NewRequest(stations, prefs, m.now()))
	latency := time.Since(start)
	modelLatency.Observe(latency.Seconds())
	if err == nil {
		var scored []model.ScoredStation
		if scored, err = reconcile(stations, out); err == nil {
			m.logger.Debugf("model rated %d stations in %s", len(scored), latency)
			return Scoring{Stations: scored, Strategy: model.StrategyModel, ModelLatency: latency}
		}
	}
	return m.fallBack(ctx, stations, prefs, classify(ctx, callCtx, err), err, latency)
}

func (m *ModelScorer) fallBack(ctx context.Context, stations []model.Station, prefs model.UserPreferences, reason FallbackReason, cause error, latency time.Duration) Scoring {
	scoringFallbacks.WithLabelValues(string(reason)).Inc()
	m.logger.Warnf("model scoring failed (%s), using rule-based fallback: %v", reason, cause)
	if reason != FallbackUnavailable && reason != FallbackCancelled {
		monitoring.Capture(cause, "scorer", "reason", string(reason))
	}
	res := m.fallback.Score(ctx, stations, prefs)
	res.FallbackReason = reason
	res.ModelLatency = latency
	return res
}

// classify maps a model failure onto a fallback reason.
func classify(parent, call context.Context, err error) FallbackReason {
	switch {
	case parent.Err() != nil:
		return FallbackCancelled
	case errors.Is(err, context.DeadlineExceeded) || errors.Is(call.Err(), context.DeadlineExceeded):
		return FallbackTimeout
	case errors.Is(err, prediction.ErrModelUnavailable):
		return FallbackUnavailable
	case errors.Is(err, prediction.ErrMalformedResponse):
		return FallbackMalformed
	case errors.Is(err, errMismatch):
		return FallbackMismatch
	default:
		return FallbackError
	}
}

// reconcile checks that the model answered exactly once for every requested
// station and returns the canonical stations, in request order, carrying the
// model ratings.
func reconcile(stations []model.Station, out []model.ScoredStation) ([]model.ScoredStation, error) {
	if len(out) != len(stations) {
		return nil, fmt.Errorf("%w: got %d ratings for %d stations", errMismatch, len(out), len(stations))
	}
	ratings := make(map[string]float64, len(out))
	for _, s := range out {
		id := s.ID.String()
		if _, dup := ratings[id]; dup {
			return nil, fmt.Errorf("%w: duplicate station %s", errMismatch, id)
		}
		if math.IsNaN(s.PredictedRating) || math.IsInf(s.PredictedRating, 0) {
			return nil, fmt.Errorf("%w: invalid rating for station %s", prediction.ErrMalformedResponse, id)
		}
		ratings[id] = s.PredictedRating
	}
	scored := make([]model.ScoredStation, len(stations))
	for i, st := range stations {
		r, ok := ratings[st.ID.String()]
		if !ok {
			return nil, fmt.Errorf("%w: missing station %s", errMismatch, st.ID)
		}
		scored[i] = model.ScoredStation{Station: st, PredictedRating: ClampRating(r), Strategy: model.StrategyModel}
	}
	return scored, nil
}
