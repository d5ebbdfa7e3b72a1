package recorder

import (
	"time"

	"github.com/google/uuid"

	"PriceForecaster/internal/model"
)

// Run statuses.
const (
	StatusSucceeded = "SUCCEEDED"
	StatusFailed    = "FAILED"
)

// RunRecord summarizes one pipeline run.
type RunRecord struct {
	ID             uuid.UUID
	RunID          string
	StartedAt      time.Time
	FinishedAt     time.Time
	Status         string
	ErrorKind      string // empty on success
	ErrorMessage   string
	Instruments    int
	Fetched        int
	NormalizedRows int
	ForecastRows   int
	Charts         int
	DataFile       string
}

// Recorder persists run history for later inspection.
type Recorder interface {
	RecordRun(rec *RunRecord) error
	RecordIssues(runID uuid.UUID, issues []model.InstrumentIssue) error
	// LastRun returns the most recent run, or nil when none was recorded.
	LastRun() (*RunRecord, error)
	Close() error
}
