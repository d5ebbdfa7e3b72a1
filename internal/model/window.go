package model

import (
	"errors"
	"fmt"
	"strings"
	"time"
)

// InstrumentWindow is the immutable input of a pipeline run.
type InstrumentWindow struct {
	instruments []string
	start       time.Time
	end         time.Time
}

// NewInstrumentWindow validates and builds a window. Identifiers are trimmed;
// empty or duplicate identifiers and a non-increasing range are rejected.
func NewInstrumentWindow(instruments []string, start, end time.Time) (InstrumentWindow, error) {
	if len(instruments) == 0 {
		return InstrumentWindow{}, errors.New("at least one instrument is required")
	}
	if !end.After(start) {
		return InstrumentWindow{}, fmt.Errorf("window end %s must be after start %s",
			end.Format("2006-01-02"), start.Format("2006-01-02"))
	}
	seen := make(map[string]struct{}, len(instruments))
	ids := make([]string, 0, len(instruments))
	for _, raw := range instruments {
		id := strings.TrimSpace(raw)
		if id == "" {
			return InstrumentWindow{}, errors.New("instrument identifier must not be empty")
		}
		if _, dup := seen[id]; dup {
			return InstrumentWindow{}, fmt.Errorf("duplicate instrument %q", id)
		}
		seen[id] = struct{}{}
		ids = append(ids, id)
	}
	return InstrumentWindow{instruments: ids, start: start, end: end}, nil
}

// Instruments returns a copy of the identifiers in input order.
func (w InstrumentWindow) Instruments() []string {
	out := make([]string, len(w.instruments))
	copy(out, w.instruments)
	return out
}

func (w InstrumentWindow) Start() time.Time { return w.start }
func (w InstrumentWindow) End() time.Time   { return w.end }
