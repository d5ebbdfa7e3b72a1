// Package artifact persists a run's tables and renders its charts.
package artifact

import (
	"context"
	"fmt"
	"os"
	"runtime"

	"github.com/rs/zerolog/log"
	"golang.org/x/sync/errgroup"

	"PriceForecaster/internal/apperrors"
	"PriceForecaster/internal/model"
)

// Artifacts lists the files produced for one run.
type Artifacts struct {
	Dir          string
	DataFile     string
	ChartFiles   []string
	WorkbookFile string
	Issues       []model.InstrumentIssue
}

// Writer writes run artifacts under an output root.
type Writer struct {
	Workers    int    // concurrent chart renders; <= 0 means runtime.NumCPU()
	AssetsHost string // echarts script host; empty uses the go-echarts default
	Workbook   bool   // also export an .xlsx workbook
}

// Write persists the normalized table, then renders one chart per instrument
// present in forecasts.
func (w *Writer) Write(ctx context.Context, normalized []model.NormalizedRow, forecasts []model.ForecastRow, root, runID string) (*Artifacts, error) {
	dataFile, err := w.WriteData(normalized, root, runID)
	if err != nil {
		return nil, err
	}
	art, err := w.WriteCharts(ctx, forecasts, root, runID)
	if err != nil {
		return nil, err
	}
	art.DataFile = dataFile
	if w.Workbook {
		art.WorkbookFile = w.WriteWorkbook(normalized, forecasts, root, runID)
	}
	return art, nil
}

// WriteData creates the run directory and writes the data file. Any failure
// is an ArtifactWriteFailure.
func (w *Writer) WriteData(normalized []model.NormalizedRow, root, runID string) (string, error) {
	dir := RunDir(root, runID)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return "", apperrors.ArtifactWriteFailure("create run directory "+dir, err)
	}
	path := DataFilePath(root, runID)
	if err := WriteDataFile(path, normalized); err != nil {
		return "", apperrors.ArtifactWriteFailure("write data file "+path, err)
	}
	log.Info().Str("path", path).Int("rows", len(normalized)).Msg("data file saved")
	return path, nil
}

// WriteCharts renders charts concurrently. A failed chart is reported in
// Artifacts.Issues and does not stop the others.
func (w *Writer) WriteCharts(ctx context.Context, forecasts []model.ForecastRow, root, runID string) (*Artifacts, error) {
	order, groups := groupByInstrument(forecasts)
	log.Info().Int("charts", len(order)).Msg("rendering charts")

	paths := make([]string, len(order))
	errs := make([]error, len(order))

	workers := w.Workers
	if workers <= 0 {
		workers = runtime.NumCPU()
	}
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(workers)
	for i, id := range order {
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			path := ChartPath(root, runID, id)
			if err := RenderChart(path, id, groups[id], w.AssetsHost); err != nil {
				errs[i] = apperrors.ArtifactWriteFailure("render chart "+path, err)
				return nil
			}
			paths[i] = path
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, fmt.Errorf("chart rendering cancelled: %w", err)
	}

	art := &Artifacts{Dir: RunDir(root, runID)}
	for i, id := range order {
		if errs[i] != nil {
			log.Error().Str("instrument", id).Err(errs[i]).Msg("chart failed, continuing")
			art.Issues = append(art.Issues, model.NewIssue(id, model.StageChart, errs[i]))
			continue
		}
		art.ChartFiles = append(art.ChartFiles, paths[i])
	}
	log.Info().Int("saved", len(art.ChartFiles)).Int("failed", len(art.Issues)).Msg("charts saved")
	return art, nil
}

// WriteWorkbook exports the spreadsheet and returns its path, or "" when the
// export failed. The workbook is a convenience copy, so failures only warn.
func (w *Writer) WriteWorkbook(normalized []model.NormalizedRow, forecasts []model.ForecastRow, root, runID string) string {
	path := WorkbookPath(root, runID)
	if err := WriteWorkbook(path, normalized, forecasts); err != nil {
		log.Warn().Str("path", path).Err(err).Msg("workbook export failed")
		return ""
	}
	log.Info().Str("path", path).Msg("workbook saved")
	return path
}

func groupByInstrument(rows []model.ForecastRow) ([]string, map[string][]model.ForecastRow) {
	var order []string
	groups := make(map[string][]model.ForecastRow)
	for _, r := range rows {
		if _, ok := groups[r.Instrument]; !ok {
			order = append(order, r.Instrument)
		}
		groups[r.Instrument] = append(groups[r.Instrument], r)
	}
	return order, groups
}
