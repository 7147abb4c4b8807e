package recommend

import (
	"strings"

	"github.com/kilianp07/evreco/core/model"
)

// Status values admitted by the filter.
const (
	StatusOperational = "Operational"
	StatusUnknown     = "Unknown"
)

// Filter applies the hard constraints of a request.
type Filter struct {
	ZeroBudget ZeroBudgetMode
}

// Apply returns the stations satisfying every active constraint, in their
// original order. The input slice is not modified.
func (f Filter) Apply(stations []model.Station, prefs model.UserPreferences) []model.Station {
	out := make([]model.Station, 0, len(stations))
	for _, st := range stations {
		if f.Match(st, prefs) {
			out = append(out, st)
		}
	}
	return out
}

// Match reports whether st satisfies prefs.
func (f Filter) Match(st model.Station, prefs model.UserPreferences) bool {
	if !f.withinBudget(st.UsageCost, prefs.Budget) {
		return false
	}
	if prefs.MaxDistance > 0 && st.Distance > prefs.MaxDistance {
		return false
	}
	if !OperatorMatches(st.Operator, prefs.PreferredOperator) {
		return false
	}
	if prefs.FastChargingOnly && !st.FastCharging {
		return false
	}
	if prefs.PublicAccessOnly && st.AccessType != model.AccessPublic {
		return false
	}
	return st.Status == StatusOperational || st.Status == StatusUnknown
}

func (f Filter) withinBudget(cost, budget float64) bool {
	if budget == 0 && f.ZeroBudget != ZeroBudgetStrict {
		return true
	}
	return cost <= budget
}

// OperatorMatches reports whether preferred is a case-insensitive substring
// of operator. An empty preference matches every operator.
func OperatorMatches(operator, preferred string) bool {
	preferred = strings.TrimSpace(preferred)
	if preferred == "" {
		return true
	}
	return strings.Contains(strings.ToLower(operator), strings.ToLower(preferred))
}
