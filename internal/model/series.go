package model

import (
	"time"

	"github.com/guregu/null/v6"
)

// RawSeriesRow is one daily bar as returned by a retrieval source.
// Any numeric field may be null when the source reports a gap.
type RawSeriesRow struct {
	Date          time.Time
	Open          null.Float
	High          null.Float
	Low           null.Float
	Close         null.Float
	Volume        null.Float
	AdjustedClose null.Float
	Instrument    string
}

// InstrumentSeries holds the raw rows fetched for one instrument.
type InstrumentSeries struct {
	Instrument string
	Rows       []RawSeriesRow
}

// NormalizedRow is the canonical projection of a RawSeriesRow.
type NormalizedRow struct {
	Date       time.Time
	Instrument string
	Open       null.Float
	High       null.Float
	Low        null.Float
	Close      null.Float
	Volume     null.Float
}

// NumericFields returns pointers to the imputable columns in canonical order.
func (r *NormalizedRow) NumericFields() []*null.Float {
	return []*null.Float{&r.Open, &r.High, &r.Low, &r.Close, &r.Volume}
}

// NormalizedColumns is the canonical column order of the normalized table.
var NormalizedColumns = []string{"Date", "Ticker", "Open", "High", "Low", "Close", "Volume"}

// ForecastRow is one (instrument, date) point of a forecast span.
// Observed is null on the horizon.
type ForecastRow struct {
	Date       time.Time
	Instrument string
	Predicted  float64
	Trend      float64
	Seasonal   float64
	Observed   null.Float
}
