package recommend

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/kilianp07/evreco/core/events"
	"github.com/kilianp07/evreco/core/logger"
	"github.com/kilianp07/evreco/core/model"
	"github.com/kilianp07/evreco/core/prediction"
	"github.com/kilianp07/evreco/core/records"
	"github.com/kilianp07/evreco/core/station"
	"github.com/kilianp07/evreco/internal/eventbus"
)

// Engine runs the full recommendation pipeline.
type Engine struct {
	filter Filter
	scorer Scorer
	ranker Ranker
	logger logger.Logger
	bus    eventbus.Publisher
	store  records.Store
	now    func() time.Time
}

// NewEngine returns an Engine using the given stages.
func NewEngine(filter Filter, scorer Scorer, ranker Ranker, log logger.Logger) *Engine {
	return &Engine{
		filter: filter,
		scorer: scorer,
		ranker: ranker,
		logger: log,
		store:  records.NopStore{},
		now:    time.Now,
	}
}

// NewEngineFromConfig builds an Engine whose scorer delegates to client.
// A nil client selects rule-based scoring only.
func NewEngineFromConfig(cfg Config, client prediction.ModelClient, log logger.Logger) *Engine {
	cfg.SetDefaults()
	rules := NewRuleScorer(cfg.Weights)
	var scorer Scorer = rules
	if client != nil {
		scorer = NewModelScorer(client, rules, cfg.ModelTimeout(), log)
	}
	return NewEngine(Filter{ZeroBudget: cfg.ZeroBudgetMode}, scorer, Ranker{Limit: cfg.MaxResults}, log)
}

// SetEventBus configures the bus receiving one event per recommendation.
func (e *Engine) SetEventBus(bus eventbus.Publisher) { e.bus = bus }

// SetRecordStore configures the store used to persist recommendations.
func (e *Engine) SetRecordStore(store records.Store) {
	if store == nil {
		store = records.NopStore{}
	}
	e.store = store
}

// Recommend normalizes raw, then filters, scores and ranks the stations for
// prefs. Empty outcomes are reported through Result.Reason. The only error
// returned is the cancellation of ctx.
func (e *Engine) Recommend(ctx context.Context, raw []model.RawStation, prefs model.UserPreferences) (model.Result, error) {
	if err := ctx.Err(); err != nil {
		return model.Result{}, err
	}
	candidates, dropped := station.NewNormalizer().WithOrigin(prefs.Origin()).Normalize(raw)
	if dropped > 0 {
		stationsDropped.Add(float64(dropped))
		e.logger.Debugf("dropped %d of %d raw stations", dropped, len(raw))
	}
	return e.run(ctx, candidates, len(raw), dropped, prefs)
}

// RecommendStations runs the pipeline on already normalized stations.
func (e *Engine) RecommendStations(ctx context.Context, candidates []model.Station, prefs model.UserPreferences) (model.Result, error) {
	if err := ctx.Err(); err != nil {
		return model.Result{}, err
	}
	return e.run(ctx, candidates, len(candidates), 0, prefs)
}

func (e *Engine) run(ctx context.Context, candidates []model.Station, raw, dropped int, prefs model.UserPreferences) (model.Result, error) {
	start := time.Now()
	res := model.Result{
		RequestID:   uuid.NewString(),
		Stations:    []model.ScoredStation{},
		Candidates:  len(candidates),
		Dropped:     dropped,
		GeneratedAt: e.now().UTC(),
	}
	var scoring Scoring

	switch matched := e.filter.Apply(candidates, prefs); {
	case len(candidates) == 0:
		res.Reason = model.ReasonNoCandidates
	case len(matched) == 0:
		res.Reason = model.ReasonNoMatch
	default:
		res.Matched = len(matched)
		scoring = e.scorer.Score(ctx, matched, prefs)
		if err := ctx.Err(); err != nil {
			return model.Result{}, err
		}
		res.Strategy = scoring.Strategy
		res.Stations = e.ranker.Rank(scoring.Stations)
	}
	res.Message = res.Reason.Message()

	e.report(ctx, res, scoring, raw, prefs, time.Since(start))
	return res, nil
}

func (e *Engine) report(ctx context.Context, res model.Result, scoring Scoring, raw int, prefs model.UserPreferences, took time.Duration) {
	recommendationsTotal.WithLabelValues(string(res.Strategy), string(res.Reason)).Inc()
	resultSize.Observe(float64(len(res.Stations)))

	e.logger.Infow("recommendation served", map[string]any{
		"request_id": res.RequestID,
		"strategy":   string(res.Strategy),
		"fallback":   string(scoring.FallbackReason),
		"reason":     string(res.Reason),
		"candidates": res.Candidates,
		"matched":    res.Matched,
		"returned":   len(res.Stations),
		"duration":   took.String(),
	})

	if err := e.store.Append(ctx, records.FromResult(res, prefs, string(scoring.FallbackReason))); err != nil {
		e.logger.Errorf("record recommendation %s: %v", res.RequestID, err)
	}

	if e.bus == nil {
		return
	}
	ev := events.RecommendationEvent{
		RequestID:      res.RequestID,
		Strategy:       res.Strategy,
		FallbackReason: string(scoring.FallbackReason),
		Reason:         res.Reason,
		Raw:            raw,
		Candidates:     res.Candidates,
		Matched:        res.Matched,
		Returned:       len(res.Stations),
		ModelLatency:   scoring.ModelLatency,
		Duration:       took,
		Time:           res.GeneratedAt,
	}
	if len(res.Stations) > 0 {
		ev.TopStationID = res.Stations[0].ID.String()
		ev.TopRating = res.Stations[0].PredictedRating
	}
	e.bus.Publish(ev)
}
