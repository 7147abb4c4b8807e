package scenarios

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/kilianp07/evreco/core/events"
	"github.com/kilianp07/evreco/core/model"
	"github.com/kilianp07/evreco/core/prediction"
	"github.com/kilianp07/evreco/core/recommend"
	"github.com/kilianp07/evreco/infra/logger"
	"github.com/kilianp07/evreco/internal/eventbus"
)

// modelTimeout stands in for the production deadline so that "slow"
// scenarios finish quickly.
const modelTimeout = 50 * time.Millisecond

func scorerFor(def ModelDef) (recommend.Scorer, error) {
	rules := recommend.NewRuleScorer(recommend.DefaultWeights())
	mock := &prediction.MockModelClient{Default: def.Default, Ratings: def.Ratings}
	if mock.Default == 0 {
		mock.Default = 3
	}
	switch def.Mode {
	case "", "none":
		return rules, nil
	case "ok":
	case "slow":
		mock.Delay = time.Second
	case "unavailable":
		mock.Err = prediction.ErrModelUnavailable
	case "malformed":
		mock.Err = prediction.ErrMalformedResponse
	case "mismatch":
		mock.Drop = true
	default:
		return nil, fmt.Errorf("unknown model mode %q", def.Mode)
	}
	return recommend.NewModelScorer(mock, rules, modelTimeout, logger.NopLogger{}), nil
}

// RunScenario feeds the scenario through an Engine and checks the
// expectations.
func RunScenario(t *testing.T, sc *Scenario) {
	t.Helper()
	scorer, err := scorerFor(sc.Model)
	if err != nil {
		t.Fatalf("scenario %s: %v", sc.Name, err)
	}
	prefs, err := sc.Preferences.Resolve()
	if err != nil {
		t.Fatalf("scenario %s: preferences: %v", sc.Name, err)
	}
	mode := recommend.ZeroBudgetMode(sc.ZeroBudgetMode)
	if mode == "" {
		mode = recommend.ZeroBudgetNoCap
	}

	bus := eventbus.New()
	defer bus.Close()
	sub := bus.Subscribe()
	eng := recommend.NewEngine(recommend.Filter{ZeroBudget: mode}, scorer, recommend.Ranker{Limit: recommend.DefaultMaxResults}, logger.NopLogger{})
	eng.SetEventBus(bus)

	raw := make([]model.RawStation, len(sc.Stations))
	for i, d := range sc.Stations {
		raw[i] = d.ToRaw()
	}
	res, err := eng.Recommend(context.Background(), raw, prefs)
	if err != nil {
		t.Fatalf("scenario %s: recommend: %v", sc.Name, err)
	}
	var ev events.RecommendationEvent
	select {
	case e := <-sub:
		ev, _ = e.(events.RecommendationEvent)
	case <-time.After(time.Second):
		t.Fatalf("scenario %s: no recommendation event", sc.Name)
	}

	check(t, sc, res, ev)
}

//nolint:gocyclo
func check(t *testing.T, sc *Scenario, res model.Result, ev events.RecommendationEvent) {
	t.Helper()
	exp := sc.Expected
	if string(res.Reason) != exp.Reason {
		t.Errorf("scenario %s: reason %q, want %q", sc.Name, res.Reason, exp.Reason)
	}
	if exp.Strategy != "" && string(res.Strategy) != exp.Strategy {
		t.Errorf("scenario %s: strategy %q, want %q", sc.Name, res.Strategy, exp.Strategy)
	}
	if ev.FallbackReason != exp.FallbackReason {
		t.Errorf("scenario %s: fallback reason %q, want %q", sc.Name, ev.FallbackReason, exp.FallbackReason)
	}
	if exp.Candidates != nil && res.Candidates != *exp.Candidates {
		t.Errorf("scenario %s: %d candidates, want %d", sc.Name, res.Candidates, *exp.Candidates)
	}
	if exp.Dropped != nil && res.Dropped != *exp.Dropped {
		t.Errorf("scenario %s: %d dropped, want %d", sc.Name, res.Dropped, *exp.Dropped)
	}

	got := make([]string, len(res.Stations))
	byID := make(map[string]model.ScoredStation, len(res.Stations))
	for i, s := range res.Stations {
		got[i] = s.ID.String()
		byID[got[i]] = s
		if s.PredictedRating < model.MinRating || s.PredictedRating > model.MaxRating {
			t.Errorf("scenario %s: rating %v of %s out of bounds", sc.Name, s.PredictedRating, got[i])
		}
		if i > 0 && s.RankKey() > res.Stations[i-1].RankKey() {
			t.Errorf("scenario %s: ranking not monotone at %d", sc.Name, i)
		}
	}
	if exp.Order != nil && fmt.Sprint(got) != fmt.Sprint(exp.Order) {
		t.Errorf("scenario %s: order %v, want %v", sc.Name, got, exp.Order)
	}
	for _, id := range exp.Excluded {
		if _, ok := byID[id]; ok {
			t.Errorf("scenario %s: station %s should be excluded", sc.Name, id)
		}
	}
	for id, want := range exp.Stations {
		s, ok := byID[id]
		if !ok {
			t.Errorf("scenario %s: station %s missing", sc.Name, id)
			continue
		}
		if want.UsageCost != nil && s.UsageCost != *want.UsageCost {
			t.Errorf("scenario %s: %s usage cost %v, want %v", sc.Name, id, s.UsageCost, *want.UsageCost)
		}
		if want.MaxPowerKW != nil && s.MaxPowerKW != *want.MaxPowerKW {
			t.Errorf("scenario %s: %s power %v, want %v", sc.Name, id, s.MaxPowerKW, *want.MaxPowerKW)
		}
		if want.FastCharging != nil && s.FastCharging != *want.FastCharging {
			t.Errorf("scenario %s: %s fast charging %v", sc.Name, id, s.FastCharging)
		}
		if want.Rating != nil && s.PredictedRating != *want.Rating {
			t.Errorf("scenario %s: %s rating %v, want %v", sc.Name, id, s.PredictedRating, *want.Rating)
		}
	}
}
