package export

import (
	"fmt"
	"io"

	"github.com/go-echarts/go-echarts/v2/charts"
	"github.com/go-echarts/go-echarts/v2/opts"

	"github.com/kilianp07/evreco/core/model"
)

// RatingChart renders the predicted rating of every ranked station as an
// HTML bar chart.
func RatingChart(w io.Writer, res model.Result) error {
	bar := charts.NewBar()
	subtitle := fmt.Sprintf("%d of %d candidates, strategy %s", len(res.Stations), res.Candidates, res.Strategy)
	if res.Empty() {
		subtitle = res.Message
	}
	bar.SetGlobalOptions(
		charts.WithTitleOpts(opts.Title{Title: "Recommended stations", Subtitle: subtitle}),
		charts.WithXAxisOpts(opts.XAxis{Name: "Station"}),
		charts.WithYAxisOpts(opts.YAxis{Name: "Predicted rating", Min: model.MinRating, Max: model.MaxRating}),
	)

	names := make([]string, len(res.Stations))
	ratings := make([]opts.BarData, len(res.Stations))
	for i, s := range res.Stations {
		names[i] = fmt.Sprintf("%d. %s", i+1, s.Name)
		ratings[i] = opts.BarData{Name: s.ID.String(), Value: s.PredictedRating}
	}
	bar.SetXAxis(names).AddSeries("Rating", ratings)

	if err := bar.Render(w); err != nil {
		return fmt.Errorf("failed to render chart: %w", err)
	}
	return nil
}
