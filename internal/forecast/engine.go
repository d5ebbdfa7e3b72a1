// Package forecast fits one independent model per instrument and merges its
// predictions with the observed closes.
package forecast

import (
	"context"
	"fmt"
	"runtime"
	"sort"
	"time"

	"github.com/guregu/null/v6"
	"github.com/rs/zerolog/log"
	"golang.org/x/sync/errgroup"

	"PriceForecaster/internal/apperrors"
	"PriceForecaster/internal/model"
)

// DefaultHorizonDays is the number of future calendar days forecast per instrument.
const DefaultHorizonDays = 30

// Options configures an Engine.
type Options struct {
	Workers    int // <= 0 means runtime.NumCPU()
	MinHistory int // below this many points an instrument is skipped; floor MinFitPoints
	NewModel   func() Model
}

// Engine runs per-instrument fits on a bounded worker pool.
type Engine struct {
	workers    int
	minHistory int
	newModel   func() Model
}

// Result is the ordered forecast table plus the instruments that were skipped.
type Result struct {
	Rows   []model.ForecastRow
	Issues []model.InstrumentIssue
}

// NewEngine creates an Engine. A nil NewModel uses the additive model with
// DefaultConfig.
func NewEngine(opts Options) *Engine {
	e := &Engine{
		workers:    opts.Workers,
		minHistory: opts.MinHistory,
		newModel:   opts.NewModel,
	}
	if e.workers <= 0 {
		e.workers = runtime.NumCPU()
	}
	if e.minHistory < MinFitPoints {
		e.minHistory = MinFitPoints
	}
	if e.newModel == nil {
		cfg := DefaultConfig()
		e.newModel = func() Model { return NewAdditiveModel(cfg) }
	}
	return e
}

// Forecast fits each instrument independently and returns rows grouped by
// instrument in the order of instruments. Instruments that cannot be fitted
// are reported in Result.Issues; only context cancellation fails the call.
func (e *Engine) Forecast(ctx context.Context, rows []model.NormalizedRow, instruments []string, horizonDays int) (*Result, error) {
	if horizonDays < 0 {
		return nil, fmt.Errorf("horizon must not be negative, got %d", horizonDays)
	}
	log.Info().Int("instruments", len(instruments)).Int("horizon_days", horizonDays).Msg("starting forecasts")

	histories := make(map[string][]Point, len(instruments))
	for _, id := range instruments {
		histories[id] = nil
	}
	for _, r := range rows {
		if _, ok := histories[r.Instrument]; !ok || !r.Close.Valid {
			continue
		}
		histories[r.Instrument] = append(histories[r.Instrument], Point{Date: naiveDate(r.Date), Value: r.Close.Float64})
	}

	out := make([][]model.ForecastRow, len(instruments))
	errs := make([]error, len(instruments))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(e.workers)
	for i, id := range instruments {
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			out[i], errs[i] = e.forecastOne(id, histories[id], horizonDays)
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, fmt.Errorf("forecast cancelled: %w", err)
	}

	res := &Result{}
	for i, id := range instruments {
		if errs[i] != nil {
			log.Warn().Str("instrument", id).Err(errs[i]).Msg("forecast skipped")
			res.Issues = append(res.Issues, model.NewIssue(id, model.StageForecast, errs[i]))
			continue
		}
		res.Rows = append(res.Rows, out[i]...)
	}
	log.Info().Int("rows", len(res.Rows)).Int("skipped", len(res.Issues)).Msg("forecasts finished")
	return res, nil
}

func (e *Engine) forecastOne(instrument string, history []Point, horizonDays int) ([]model.ForecastRow, error) {
	history = dedupeByDate(instrument, history)
	if len(history) < e.minHistory {
		return nil, apperrors.InsufficientHistory(instrument, len(history), e.minHistory)
	}

	m := e.newModel()
	if err := m.Fit(history); err != nil {
		return nil, fmt.Errorf("%s: fit: %w", instrument, err)
	}

	dates := make([]time.Time, 0, len(history)+horizonDays)
	for _, p := range history {
		dates = append(dates, p.Date)
	}
	dates = append(dates, FutureDates(history[len(history)-1].Date, horizonDays)...)

	estimates, err := m.Predict(dates)
	if err != nil {
		return nil, fmt.Errorf("%s: predict: %w", instrument, err)
	}
	if err := checkAlignment(dates, estimates); err != nil {
		return nil, fmt.Errorf("%s: %w", instrument, err)
	}

	observed := make(map[time.Time]float64, len(history))
	for _, p := range history {
		observed[p.Date] = p.Value
	}
	rows := make([]model.ForecastRow, len(estimates))
	for i, est := range estimates {
		row := model.ForecastRow{
			Date:       est.Date,
			Instrument: instrument,
			Predicted:  est.Value,
			Trend:      est.Trend,
			Seasonal:   est.Seasonal,
		}
		if i < len(history) {
			if v, ok := observed[est.Date]; ok {
				row.Observed = null.FloatFrom(v)
			}
		}
		rows[i] = row
	}
	log.Debug().Str("instrument", instrument).Int("history", len(history)).Int("rows", len(rows)).Msg("forecast fitted")
	return rows, nil
}

// checkAlignment guards the observed/predicted join: the model must return
// one estimate per requested date, in order.
func checkAlignment(dates []time.Time, estimates []Estimate) error {
	if len(estimates) != len(dates) {
		return fmt.Errorf("model returned %d estimates for %d dates", len(estimates), len(dates))
	}
	for i := range dates {
		if !estimates[i].Date.Equal(dates[i]) {
			return fmt.Errorf("estimate %d is for %s, want %s", i,
				estimates[i].Date.Format("2006-01-02"), dates[i].Format("2006-01-02"))
		}
	}
	return nil
}

// dedupeByDate sorts the history and keeps the last value seen for each date.
func dedupeByDate(instrument string, history []Point) []Point {
	index := make(map[time.Time]int, len(history))
	out := make([]Point, 0, len(history))
	for _, p := range history {
		if i, ok := index[p.Date]; ok {
			out[i] = p
			continue
		}
		index[p.Date] = len(out)
		out = append(out, p)
	}
	if dropped := len(history) - len(out); dropped > 0 {
		log.Warn().Str("instrument", instrument).Int("duplicates", dropped).Msg("collapsed duplicate dates")
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].Date.Before(out[j].Date) })
	return out
}

// naiveDate drops the time of day and zone, keeping the calendar date as seen
// in the value's own location.
func naiveDate(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}
