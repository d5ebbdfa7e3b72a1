package collector

import (
	"context"
	"time"

	"github.com/guregu/null/v6"

	"PriceForecaster/internal/apperrors"
	"PriceForecaster/internal/model"
)

// StaticFetcher serves fixed bars per symbol for development and testing.
// Symbols listed in Errors fail with that error; unknown symbols are not found.
type StaticFetcher struct {
	Bars   map[string][]model.RawSeriesRow
	Errors map[string]error
}

func (s *StaticFetcher) Name() string { return "static" }

func (s *StaticFetcher) FetchRange(ctx context.Context, symbol string, start, end time.Time) ([]model.RawSeriesRow, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if err, ok := s.Errors[symbol]; ok {
		return nil, err
	}
	bars, ok := s.Bars[symbol]
	if !ok {
		return nil, apperrors.InstrumentNotFound(symbol, "no such symbol", nil)
	}
	var out []model.RawSeriesRow
	for _, b := range bars {
		if b.Date.Before(start) || !b.Date.Before(end) {
			continue
		}
		b.Instrument = symbol
		out = append(out, b)
	}
	return out, nil
}

// GenerateBars builds count consecutive daily bars starting at from,
// drifting upward from basePrice.
func GenerateBars(basePrice float64, from time.Time, count int) []model.RawSeriesRow {
	bars := make([]model.RawSeriesRow, count)
	for i := 0; i < count; i++ {
		p := basePrice * (1 + float64(i-count/2)*0.001)
		bars[i] = model.RawSeriesRow{
			Date:          from.AddDate(0, 0, i),
			Open:          null.FloatFrom(p * 0.999),
			High:          null.FloatFrom(p * 1.005),
			Low:           null.FloatFrom(p * 0.995),
			Close:         null.FloatFrom(p),
			Volume:        null.FloatFrom(1000000),
			AdjustedClose: null.FloatFrom(p),
		}
	}
	return bars
}
