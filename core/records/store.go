// Package records persists one entry per served recommendation so that past
// rankings can be audited and exported.
package records

import (
	"context"
	"time"

	"github.com/kilianp07/evreco/core/model"
)

// Entry is one ranked station inside a Record.
type Entry struct {
	Rank      int      `json:"rank"`
	StationID string   `json:"station_id"`
	Name      string   `json:"name"`
	Operator  string   `json:"operator"`
	Distance  float64  `json:"distance"`
	UsageCost float64  `json:"usage_cost"`
	Rating    float64  `json:"predicted_rating"`
	Score     *float64 `json:"recommendation_score,omitempty"`
}

// Record captures one recommendation request and its ranked output.
type Record struct {
	Timestamp      time.Time             `json:"timestamp"`
	RequestID      string                `json:"request_id"`
	Preferences    model.UserPreferences `json:"preferences"`
	Strategy       model.Strategy        `json:"strategy,omitempty"`
	FallbackReason string                `json:"fallback_reason,omitempty"`
	Reason         model.Reason          `json:"reason,omitempty"`
	Candidates     int                   `json:"candidates"`
	Matched        int                   `json:"matched"`
	Stations       []Entry               `json:"stations"`
}

// FromResult builds a Record from a recommendation result.
func FromResult(res model.Result, prefs model.UserPreferences, fallbackReason string) Record {
	rec := Record{
		Timestamp:      res.GeneratedAt,
		RequestID:      res.RequestID,
		Preferences:    prefs,
		Strategy:       res.Strategy,
		FallbackReason: fallbackReason,
		Reason:         res.Reason,
		Candidates:     res.Candidates,
		Matched:        res.Matched,
		Stations:       make([]Entry, len(res.Stations)),
	}
	for i, s := range res.Stations {
		rec.Stations[i] = Entry{
			Rank:      i + 1,
			StationID: s.ID.String(),
			Name:      s.Name,
			Operator:  s.Operator,
			Distance:  s.Distance,
			UsageCost: s.UsageCost,
			Rating:    s.PredictedRating,
			Score:     s.RecommendationScore,
		}
	}
	return rec
}

// Query defines filters for retrieving records. Zero values match everything.
type Query struct {
	Start     time.Time
	End       time.Time
	StationID string
	Strategy  model.Strategy
	Limit     int
}

// Matches reports whether rec satisfies q, ignoring Limit.
func (q Query) Matches(rec Record) bool {
	if !q.Start.IsZero() && rec.Timestamp.Before(q.Start) {
		return false
	}
	if !q.End.IsZero() && rec.Timestamp.After(q.End) {
		return false
	}
	if q.Strategy != "" && rec.Strategy != q.Strategy {
		return false
	}
	if q.StationID == "" {
		return true
	}
	for _, e := range rec.Stations {
		if e.StationID == q.StationID {
			return true
		}
	}
	return false
}

// Store persists Records and supports querying.
type Store interface {
	Append(ctx context.Context, rec Record) error
	Query(ctx context.Context, q Query) ([]Record, error)
	Close() error
}

// NopStore discards every record.
type NopStore struct{}

func (NopStore) Append(context.Context, Record) error           { return nil }
func (NopStore) Query(context.Context, Query) ([]Record, error) { return nil, nil }
func (NopStore) Close() error                                   { return nil }
