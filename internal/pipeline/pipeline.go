// Package pipeline runs one forecast batch end to end: fetch, normalize,
// persist, forecast, chart. It is the single failure boundary of a run.
package pipeline

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"PriceForecaster/internal/apperrors"
	"PriceForecaster/internal/artifact"
	"PriceForecaster/internal/collector"
	"PriceForecaster/internal/forecast"
	"PriceForecaster/internal/model"
	"PriceForecaster/internal/normalizer"
	"PriceForecaster/internal/notifier"
	"PriceForecaster/internal/recorder"
)

// RunIDLayout formats the run clock into the run identifier.
const RunIDLayout = "20060102_150405"

// Notifier delivers run summaries.
type Notifier interface {
	SendWithRetry(ctx context.Context, text string, maxRetries int) error
}

// Config is the per-run settings passed to the pipeline.
type Config struct {
	HorizonDays int
	OutputRoot  string
	Scope       normalizer.Scope
}

// RunResult describes a completed run.
type RunResult struct {
	ID           uuid.UUID
	RunID        string
	Dir          string
	DataFile     string
	ChartFiles   []string
	WorkbookFile string
	Fetched      []string // instruments that yielded rows, in input order
	Normalized   []model.NormalizedRow
	Forecasts    []model.ForecastRow
	Issues       []model.InstrumentIssue
}

// Preview returns up to n leading rows of the normalized table.
func (r *RunResult) Preview(n int) []model.NormalizedRow {
	if n > len(r.Normalized) {
		n = len(r.Normalized)
	}
	return r.Normalized[:n]
}

// Pipeline wires the stages of a run.
type Pipeline struct {
	Collector *collector.Collector
	Engine    *forecast.Engine
	Writer    *artifact.Writer
	Recorder  recorder.Recorder // nil disables run history
	Notifier  Notifier          // nil disables summaries
	Config    Config
	Now       func() time.Time
}

// Run executes one batch over window. Instruments that fail inside a stage
// are skipped and listed in RunResult.Issues. Any other failure ends the run
// and is returned as an *apperrors.AppError or a wrapped context error.
func (p *Pipeline) Run(ctx context.Context, window model.InstrumentWindow) (*RunResult, error) {
	now := p.Now
	if now == nil {
		now = time.Now
	}
	started := now()
	res := &RunResult{ID: uuid.New(), RunID: started.Format(RunIDLayout)}
	logger := log.With().Str("run_id", res.RunID).Logger()
	logger.Info().Int("instruments", len(window.Instruments())).Msg("run started")

	err := p.execute(ctx, &logger, window, res)
	p.finish(ctx, &logger, window, res, started, now(), err)
	if err != nil {
		logger.Error().Err(err).Str("kind", string(apperrors.KindOf(err))).Msg("run failed")
		return nil, err
	}
	logger.Info().Str("dir", res.Dir).Int("charts", len(res.ChartFiles)).Int("issues", len(res.Issues)).
		Msg("run finished")
	return res, nil
}

func (p *Pipeline) execute(ctx context.Context, logger *zerolog.Logger, window model.InstrumentWindow, res *RunResult) error {
	root := p.Config.OutputRoot

	fetched, err := p.Collector.Fetch(ctx, window)
	if fetched != nil {
		res.Issues = append(res.Issues, fetched.Issues...)
	}
	if err != nil {
		return err
	}

	for _, s := range fetched.Series {
		res.Fetched = append(res.Fetched, s.Instrument)
	}
	res.Normalized = normalizer.Normalize(fetched.Series, p.Config.Scope)
	res.Dir = artifact.RunDir(root, res.RunID)
	if res.DataFile, err = p.Writer.WriteData(res.Normalized, root, res.RunID); err != nil {
		return err
	}

	fc, err := p.Engine.Forecast(ctx, res.Normalized, res.Fetched, p.Config.HorizonDays)
	if err != nil {
		return err
	}
	res.Forecasts = fc.Rows
	res.Issues = append(res.Issues, fc.Issues...)
	logger.Info().Int("rows", len(fc.Rows)).Msg("forecast table assembled")

	art, err := p.Writer.WriteCharts(ctx, fc.Rows, root, res.RunID)
	if err != nil {
		return err
	}
	res.ChartFiles = art.ChartFiles
	res.Issues = append(res.Issues, art.Issues...)

	if p.Writer.Workbook {
		res.WorkbookFile = p.Writer.WriteWorkbook(res.Normalized, res.Forecasts, root, res.RunID)
	}
	return nil
}

// finish records and announces the run. Neither step can fail the run.
func (p *Pipeline) finish(ctx context.Context, logger *zerolog.Logger, window model.InstrumentWindow, res *RunResult, started, finished time.Time, runErr error) {
	rec := &recorder.RunRecord{
		ID:             res.ID,
		RunID:          res.RunID,
		StartedAt:      started,
		FinishedAt:     finished,
		Status:         recorder.StatusSucceeded,
		Instruments:    len(window.Instruments()),
		Fetched:        len(res.Fetched),
		NormalizedRows: len(res.Normalized),
		ForecastRows:   len(res.Forecasts),
		Charts:         len(res.ChartFiles),
		DataFile:       res.DataFile,
	}
	if runErr != nil {
		rec.Status = recorder.StatusFailed
		rec.ErrorKind = string(apperrors.KindOf(runErr))
		rec.ErrorMessage = runErr.Error()
	}

	if p.Recorder != nil {
		if err := p.Recorder.RecordRun(rec); err != nil {
			logger.Error().Err(err).Msg("record run failed")
		} else if err := p.Recorder.RecordIssues(rec.ID, res.Issues); err != nil {
			logger.Error().Err(err).Msg("record instrument issues failed")
		}
	}

	if p.Notifier != nil {
		sendCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), time.Minute)
		defer cancel()
		if err := p.Notifier.SendWithRetry(sendCtx, notifier.FormatRunSummary(rec, res.Issues), 3); err != nil {
			logger.Error().Err(err).Msg("send run summary failed")
		}
	}
}
