package cmd

import (
	"context"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/kilianp07/evreco/core/model"
	"github.com/kilianp07/evreco/core/records"
	"github.com/kilianp07/evreco/pkg/export"
)

var historyOpts struct {
	since    time.Duration
	start    string
	end      string
	station  string
	strategy string
	limit    int
	format   string
}

var historyCmd = &cobra.Command{
	Use:   "history",
	Short: "Query served recommendations from the record store",
	RunE:  runHistory,
}

func init() {
	f := historyCmd.Flags()
	f.DurationVar(&historyOpts.since, "since", 0, "only records newer than this duration, e.g. 24h")
	f.StringVar(&historyOpts.start, "start", "", "RFC3339 lower bound")
	f.StringVar(&historyOpts.end, "end", "", "RFC3339 upper bound")
	f.StringVar(&historyOpts.station, "station", "", "only records ranking this station id")
	f.StringVar(&historyOpts.strategy, "strategy", "", "model or fallback")
	f.IntVar(&historyOpts.limit, "limit", 0, "maximum number of records")
	f.StringVarP(&historyOpts.format, "format", "f", "json", "output format: json or csv")
	rootCmd.AddCommand(historyCmd)
}

func historyQuery(now time.Time) (records.Query, error) {
	o := historyOpts
	q := records.Query{StationID: o.station, Strategy: model.Strategy(o.strategy), Limit: o.limit}
	if o.since > 0 {
		q.Start = now.Add(-o.since)
	}
	if o.start != "" {
		t, err := time.Parse(time.RFC3339, o.start)
		if err != nil {
			return q, fmt.Errorf("invalid start: %w", err)
		}
		q.Start = t
	}
	if o.end != "" {
		t, err := time.Parse(time.RFC3339, o.end)
		if err != nil {
			return q, fmt.Errorf("invalid end: %w", err)
		}
		q.End = t
	}
	return q, nil
}

func runHistory(cmd *cobra.Command, _ []string) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}
	q, err := historyQuery(time.Now())
	if err != nil {
		return err
	}
	store, err := records.Open(cfg.Records)
	if err != nil {
		return err
	}
	defer store.Close()

	recs, err := store.Query(context.Background(), q)
	if err != nil {
		return err
	}
	if recs == nil {
		recs = []records.Record{}
	}
	switch historyOpts.format {
	case "csv":
		return export.WriteRecordsCSV(cmd.OutOrStdout(), recs)
	case "json":
		return export.WriteJSON(cmd.OutOrStdout(), recs)
	default:
		return fmt.Errorf("unknown format %q", historyOpts.format)
	}
}
