package collector

import (
	"context"
	"errors"
	"fmt"
	"runtime"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/sony/gobreaker"
	"golang.org/x/sync/errgroup"
	"golang.org/x/time/rate"

	"PriceForecaster/internal/apperrors"
	"PriceForecaster/internal/model"
)

// Options tunes the collector's fan-out and its protection of the source.
type Options struct {
	Workers           int     // concurrent requests; <= 0 means runtime.NumCPU()
	RequestsPerSecond float64 // shared request budget; <= 0 means unlimited
	BreakerFailures   uint32  // consecutive source failures that open the breaker; 0 means 5
	BreakerTimeout    time.Duration
}

// FetchResult holds the series that yielded rows, in input order, plus the
// instruments that were skipped.
type FetchResult struct {
	Series []model.InstrumentSeries
	Issues []model.InstrumentIssue
}

// Collector fetches every instrument of a window through a Fetcher.
type Collector struct {
	Fetcher Fetcher
	workers int
	limiter *rate.Limiter
	breaker *gobreaker.CircuitBreaker
}

// NewCollector creates a new Collector.
func NewCollector(fetcher Fetcher, opts Options) *Collector {
	workers := opts.Workers
	if workers <= 0 {
		workers = runtime.NumCPU()
	}
	limit := rate.Inf
	if opts.RequestsPerSecond > 0 {
		limit = rate.Limit(opts.RequestsPerSecond)
	}
	failures := opts.BreakerFailures
	if failures == 0 {
		failures = 5
	}
	timeout := opts.BreakerTimeout
	if timeout == 0 {
		timeout = 30 * time.Second
	}

	breaker := gobreaker.NewCircuitBreaker(gobreaker.Settings{
		Name:    fetcher.Name(),
		Timeout: timeout,
		ReadyToTrip: func(c gobreaker.Counts) bool {
			return c.ConsecutiveFailures >= failures
		},
		// An unknown symbol says nothing about the source's health.
		IsSuccessful: func(err error) bool {
			return err == nil || errors.Is(err, apperrors.ErrInstrumentNotFound)
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			log.Warn().Str("source", name).Str("from", from.String()).Str("to", to.String()).
				Msg("retrieval circuit breaker changed state")
		},
	})

	return &Collector{
		Fetcher: fetcher,
		workers: workers,
		limiter: rate.NewLimiter(limit, 1),
		breaker: breaker,
	}
}

// Fetch retrieves [start, end) for every instrument of the window.
// Instruments without rows are skipped with a diagnostic; the call fails with
// NoDataRetrieved only when no instrument yields rows.
func (c *Collector) Fetch(ctx context.Context, window model.InstrumentWindow) (*FetchResult, error) {
	instruments := window.Instruments()
	log.Info().Int("instruments", len(instruments)).Str("source", c.Fetcher.Name()).
		Str("start", window.Start().Format("2006-01-02")).Str("end", window.End().Format("2006-01-02")).
		Msg("downloading price series")

	rows := make([][]model.RawSeriesRow, len(instruments))
	issues := make([]error, len(instruments))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(c.workers)
	for i, symbol := range instruments {
		g.Go(func() error {
			r, err := c.fetchOne(gctx, symbol, window.Start(), window.End())
			if err != nil {
				if ctxErr := gctx.Err(); ctxErr != nil {
					return ctxErr
				}
				issues[i] = err
				return nil
			}
			rows[i] = r
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, fmt.Errorf("fetch cancelled: %w", err)
	}

	result := &FetchResult{}
	for i, symbol := range instruments {
		if err := issues[i]; err != nil {
			log.Warn().Str("instrument", symbol).Err(err).Msg("no data retrieved, skipping instrument")
			result.Issues = append(result.Issues, model.NewIssue(symbol, model.StageFetch, err))
			continue
		}
		result.Series = append(result.Series, model.InstrumentSeries{Instrument: symbol, Rows: rows[i]})
	}

	if len(result.Series) == 0 {
		return result, apperrors.NoDataRetrieved(fmt.Sprintf("none of %d instruments returned data", len(instruments)))
	}
	log.Info().Int("fetched", len(result.Series)).Int("skipped", len(result.Issues)).Msg("download finished")
	return result, nil
}

func (c *Collector) fetchOne(ctx context.Context, symbol string, start, end time.Time) ([]model.RawSeriesRow, error) {
	if err := c.limiter.Wait(ctx); err != nil {
		return nil, err
	}
	out, err := c.breaker.Execute(func() (interface{}, error) {
		return c.Fetcher.FetchRange(ctx, symbol, start, end)
	})
	if err != nil {
		var ae *apperrors.AppError
		if errors.As(err, &ae) {
			return nil, err
		}
		return nil, apperrors.InstrumentNotFound(symbol, "retrieval failed", err)
	}
	rows, _ := out.([]model.RawSeriesRow)
	if len(rows) == 0 {
		return nil, apperrors.InstrumentNotFound(symbol, "no rows in window", nil)
	}
	return rows, nil
}
