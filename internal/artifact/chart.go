package artifact

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/go-echarts/go-echarts/v2/charts"
	"github.com/go-echarts/go-echarts/v2/opts"

	"PriceForecaster/internal/model"
)

// missing is how echarts marks an absent point in a line series.
const missing = "-"

// RenderChart writes an interactive HTML chart overlaying observed and
// predicted values for one instrument. The predicted series is dashed and a
// slider controls the visible date range.
func RenderChart(path, instrument string, rows []model.ForecastRow, assetsHost string) (err error) {
	dates := make([]string, len(rows))
	observed := make([]opts.LineData, len(rows))
	predicted := make([]opts.LineData, len(rows))
	for i, r := range rows {
		dates[i] = r.Date.Format(dateLayout)
		if r.Observed.Valid {
			observed[i] = opts.LineData{Value: r.Observed.Float64}
		} else {
			observed[i] = opts.LineData{Value: missing}
		}
		predicted[i] = opts.LineData{Value: r.Predicted}
	}

	line := charts.NewLine()
	line.SetGlobalOptions(
		charts.WithInitializationOpts(opts.Initialization{
			PageTitle:  fmt.Sprintf("%s forecast", instrument),
			Width:      "1200px",
			Height:     "600px",
			AssetsHost: assetsHost,
		}),
		charts.WithTitleOpts(opts.Title{Title: fmt.Sprintf("%s price forecast", instrument)}),
		charts.WithTooltipOpts(opts.Tooltip{Trigger: "axis"}),
		charts.WithXAxisOpts(opts.XAxis{Name: "Date"}),
		charts.WithYAxisOpts(opts.YAxis{Name: "Price"}),
		charts.WithDataZoomOpts(opts.DataZoom{Type: "slider", Start: 0, End: 100}),
	)
	line.SetXAxis(dates).
		AddSeries("Observed price", observed).
		AddSeries("Predicted price", predicted, charts.WithLineStyleOpts(opts.LineStyle{Type: "dashed"}))

	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return err
	}
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	defer func() {
		if cerr := f.Close(); err == nil {
			err = cerr
		}
	}()
	return line.Render(f)
}
