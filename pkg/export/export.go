// Package export writes ranked stations and recommendation records as CSV,
// JSON or an HTML chart.
package export

import (
	"encoding/csv"
	"encoding/json"
	"io"
	"strconv"
	"time"

	"github.com/kilianp07/evreco/core/model"
	"github.com/kilianp07/evreco/core/records"
)

// WriteJSON writes v to w as indented JSON.
func WriteJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

// WriteStationsCSV writes the ranked stations of a result, one per row.
func WriteStationsCSV(w io.Writer, stations []model.ScoredStation) error {
	cw := csv.NewWriter(w)
	header := []string{"rank", "station_id", "name", "operator", "distance_km", "usage_cost", "max_power_kw", "predicted_rating", "recommendation_score", "strategy"}
	if err := cw.Write(header); err != nil {
		return err
	}
	for i, s := range stations {
		row := []string{
			strconv.Itoa(i + 1),
			s.ID.String(),
			s.Name,
			s.Operator,
			formatFloat(s.Distance),
			formatFloat(s.UsageCost),
			formatFloat(s.MaxPowerKW),
			formatFloat(s.PredictedRating),
			optionalFloat(s.RecommendationScore),
			string(s.Strategy),
		}
		if err := cw.Write(row); err != nil {
			return err
		}
	}
	cw.Flush()
	return cw.Error()
}

// WriteRecordsCSV flattens records to one row per ranked station. Records
// without stations produce a single row carrying the empty reason.
func WriteRecordsCSV(w io.Writer, recs []records.Record) error {
	cw := csv.NewWriter(w)
	header := []string{"timestamp", "request_id", "strategy", "fallback_reason", "reason", "candidates", "matched", "rank", "station_id", "name", "predicted_rating"}
	if err := cw.Write(header); err != nil {
		return err
	}
	for _, rec := range recs {
		base := []string{
			rec.Timestamp.UTC().Format(time.RFC3339),
			rec.RequestID,
			string(rec.Strategy),
			rec.FallbackReason,
			string(rec.Reason),
			strconv.Itoa(rec.Candidates),
			strconv.Itoa(rec.Matched),
		}
		if len(rec.Stations) == 0 {
			if err := cw.Write(append(base, "", "", "", "")); err != nil {
				return err
			}
			continue
		}
		for _, e := range rec.Stations {
			row := append(append([]string(nil), base...),
				strconv.Itoa(e.Rank),
				e.StationID,
				e.Name,
				formatFloat(e.Rating),
			)
			if err := cw.Write(row); err != nil {
				return err
			}
		}
	}
	cw.Flush()
	return cw.Error()
}

func formatFloat(f float64) string {
	return strconv.FormatFloat(f, 'f', -1, 64)
}

func optionalFloat(f *float64) string {
	if f == nil {
		return ""
	}
	return formatFloat(*f)
}
