package model

import "PriceForecaster/internal/apperrors"

// Stage names a pipeline step in diagnostics.
type Stage string

const (
	StageFetch    Stage = "fetch"
	StageForecast Stage = "forecast"
	StageChart    Stage = "chart"
)

// InstrumentIssue records a per-instrument failure that was recovered
// by skipping the instrument for the given stage.
type InstrumentIssue struct {
	Instrument string
	Stage      Stage
	Kind       apperrors.Kind
	Detail     string
}

// NewIssue builds an InstrumentIssue from a recovered error.
func NewIssue(instrument string, stage Stage, err error) InstrumentIssue {
	return InstrumentIssue{
		Instrument: instrument,
		Stage:      stage,
		Kind:       apperrors.KindOf(err),
		Detail:     err.Error(),
	}
}
