// Package normalizer merges per-instrument series into one canonical table
// and fills missing numeric values.
package normalizer

import (
	"fmt"
	"strings"

	"github.com/guregu/null/v6"
	"github.com/rs/zerolog/log"

	"PriceForecaster/internal/calculator"
	"PriceForecaster/internal/model"
)

// Scope selects the sequence over which imputation runs.
type Scope string

const (
	// ScopeInstrument imputes each instrument's rows independently.
	ScopeInstrument Scope = "instrument"
	// ScopeTable imputes the concatenated table as one sequence, so a gap
	// at an instrument boundary can borrow the neighbouring instrument's values.
	ScopeTable Scope = "table"
)

// ParseScope accepts "instrument" (default when empty) or "table".
func ParseScope(s string) (Scope, error) {
	switch Scope(strings.ToLower(strings.TrimSpace(s))) {
	case "", ScopeInstrument:
		return ScopeInstrument, nil
	case ScopeTable:
		return ScopeTable, nil
	default:
		return "", fmt.Errorf("unknown imputation scope %q", s)
	}
}

// Normalize concatenates the series in input order, projects each row onto
// the canonical columns and runs the imputation chain.
func Normalize(series []model.InstrumentSeries, scope Scope) []model.NormalizedRow {
	total := 0
	for _, s := range series {
		total += len(s.Rows)
	}
	rows := make([]model.NormalizedRow, 0, total)
	for _, s := range series {
		for _, r := range s.Rows {
			rows = append(rows, project(s.Instrument, r))
		}
	}

	if scope == ScopeTable {
		imputeColumns(rows)
	} else {
		start := 0
		for i := 1; i <= len(rows); i++ {
			if i == len(rows) || rows[i].Instrument != rows[start].Instrument {
				imputeColumns(rows[start:i])
				start = i
			}
		}
	}

	if n := countNulls(rows); n > 0 {
		log.Warn().Int("null_cells", n).Str("scope", string(scope)).
			Msg("imputation left null cells: a column has no observed value")
	}
	log.Info().Int("rows", len(rows)).Int("instruments", len(series)).Str("scope", string(scope)).
		Msg("normalized price table")
	return rows
}

func project(instrument string, r model.RawSeriesRow) model.NormalizedRow {
	if instrument == "" {
		instrument = r.Instrument
	}
	return model.NormalizedRow{
		Date:       r.Date,
		Instrument: instrument,
		Open:       r.Open,
		High:       r.High,
		Low:        r.Low,
		Close:      r.Close,
		Volume:     r.Volume,
	}
}

// imputeColumns runs the chain column by column over rows.
func imputeColumns(rows []model.NormalizedRow) {
	if len(rows) == 0 {
		return
	}
	columns := len(rows[0].NumericFields())
	col := make([]null.Float, len(rows))
	for c := 0; c < columns; c++ {
		for i := range rows {
			col[i] = *rows[i].NumericFields()[c]
		}
		calculator.Impute(col)
		for i := range rows {
			*rows[i].NumericFields()[c] = col[i]
		}
	}
}

func countNulls(rows []model.NormalizedRow) int {
	n := 0
	for i := range rows {
		for _, f := range rows[i].NumericFields() {
			if !f.Valid {
				n++
			}
		}
	}
	return n
}
