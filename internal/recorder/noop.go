package recorder

import (
	"github.com/google/uuid"

	"PriceForecaster/internal/model"
)

// NoopRecorder is a no-op implementation used when SQLite is not configured.
type NoopRecorder struct{}

func NewNoopRecorder() *NoopRecorder { return &NoopRecorder{} }

func (n *NoopRecorder) RecordRun(_ *RunRecord) error                              { return nil }
func (n *NoopRecorder) RecordIssues(_ uuid.UUID, _ []model.InstrumentIssue) error { return nil }
func (n *NoopRecorder) LastRun() (*RunRecord, error)                              { return nil, nil }
func (n *NoopRecorder) Close() error                                              { return nil }
