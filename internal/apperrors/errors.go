// Package apperrors defines the failure taxonomy shared by the pipeline stages.
package apperrors

import (
	"errors"
	"fmt"
)

// Kind classifies a failure as recoverable per instrument or fatal per run.
type Kind string

const (
	KindInstrumentNotFound   Kind = "INSTRUMENT_NOT_FOUND"
	KindNoDataRetrieved      Kind = "NO_DATA_RETRIEVED"
	KindInsufficientHistory  Kind = "INSUFFICIENT_HISTORY"
	KindArtifactWriteFailure Kind = "ARTIFACT_WRITE_FAILURE"
	KindUnclassified         Kind = "UNCLASSIFIED"
)

// AppError carries a Kind plus the instrument it concerns, if any.
type AppError struct {
	Kind       Kind
	Instrument string
	Message    string
	Cause      error
}

func (e *AppError) Error() string {
	msg := e.Message
	if e.Instrument != "" {
		msg = fmt.Sprintf("%s: %s", e.Instrument, msg)
	}
	if e.Cause != nil {
		return fmt.Sprintf("[%s] %s: %v", e.Kind, msg, e.Cause)
	}
	return fmt.Sprintf("[%s] %s", e.Kind, msg)
}

// Unwrap allows errors.Is and errors.As to reach the cause.
func (e *AppError) Unwrap() error {
	return e.Cause
}

// Is matches another *AppError of the same Kind, so sentinel values below
// work with errors.Is regardless of instrument or message.
func (e *AppError) Is(target error) bool {
	var t *AppError
	if !errors.As(target, &t) {
		return false
	}
	return t.Kind == e.Kind && t.Instrument == "" && t.Message == "" && t.Cause == nil
}

// Sentinels for errors.Is.
var (
	ErrInstrumentNotFound   = &AppError{Kind: KindInstrumentNotFound}
	ErrNoDataRetrieved      = &AppError{Kind: KindNoDataRetrieved}
	ErrInsufficientHistory  = &AppError{Kind: KindInsufficientHistory}
	ErrArtifactWriteFailure = &AppError{Kind: KindArtifactWriteFailure}
)

func InstrumentNotFound(instrument, message string, cause error) *AppError {
	return &AppError{Kind: KindInstrumentNotFound, Instrument: instrument, Message: message, Cause: cause}
}

func NoDataRetrieved(message string) *AppError {
	return &AppError{Kind: KindNoDataRetrieved, Message: message}
}

func InsufficientHistory(instrument string, have, need int) *AppError {
	return &AppError{
		Kind:       KindInsufficientHistory,
		Instrument: instrument,
		Message:    fmt.Sprintf("%d usable points, need at least %d", have, need),
	}
}

func ArtifactWriteFailure(message string, cause error) *AppError {
	return &AppError{Kind: KindArtifactWriteFailure, Message: message, Cause: cause}
}

// KindOf returns the Kind of the first AppError in err's chain,
// or KindUnclassified.
func KindOf(err error) Kind {
	var ae *AppError
	if errors.As(err, &ae) {
		return ae.Kind
	}
	return KindUnclassified
}

// ExitCode maps a run error to a process exit status.
func ExitCode(err error) int {
	if err == nil {
		return 0
	}
	switch KindOf(err) {
	case KindNoDataRetrieved:
		return 2
	case KindArtifactWriteFailure:
		return 3
	default:
		return 1
	}
}
