package recommend

import (
	"sort"

	"github.com/kilianp07/evreco/core/model"
)

// Ranker orders scored stations and keeps the best Limit of them.
type Ranker struct {
	Limit int
}

// Rank returns a new slice sorted by descending rank key. Stations with equal
// keys keep their relative input order.
func (r Ranker) Rank(scored []model.ScoredStation) []model.ScoredStation {
	out := make([]model.ScoredStation, len(scored))
	copy(out, scored)
	sort.SliceStable(out, func(i, j int) bool { return out[i].RankKey() > out[j].RankKey() })

	limit := r.Limit
	if limit <= 0 {
		limit = DefaultMaxResults
	}
	if len(out) > limit {
		out = out[:limit]
	}
	return out
}
