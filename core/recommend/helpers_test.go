package recommend

import (
	"github.com/kilianp07/evreco/core/model"
)

func st(id int64, distance, cost float64, mutators ...func(*model.Station)) model.Station {
	s := model.Station{
		ID:         model.IntID(id),
		Name:       "station",
		Operator:   "ChargePoint",
		Distance:   distance,
		UsageCost:  cost,
		AccessType: model.AccessPublic,
		Status:     StatusOperational,
	}
	for _, m := range mutators {
		m(&s)
	}
	return s
}

func withOperator(op string) func(*model.Station) {
	return func(s *model.Station) { s.Operator = op }
}

func withStatus(v string) func(*model.Station) {
	return func(s *model.Station) { s.Status = v }
}

func withAccess(a model.AccessType) func(*model.Station) {
	return func(s *model.Station) { s.AccessType = a }
}

func fast(s *model.Station) {
	s.FastCharging = true
	s.MaxPowerKW = 150
}

func prefs() model.UserPreferences {
	return model.UserPreferences{Latitude: 48.85, Longitude: 2.35, MaxDistance: 10, Budget: 50}
}

func ids(scored []model.ScoredStation) []string {
	out := make([]string, len(scored))
	for i, s := range scored {
		out[i] = s.ID.String()
	}
	return out
}
