package artifact

import (
	"fmt"
	"path/filepath"
	"strings"
)

// RunDir is the run-scoped directory under root.
func RunDir(root, runID string) string {
	return filepath.Join(root, runID)
}

// DataFilePath is where the normalized table of a run is written.
func DataFilePath(root, runID string) string {
	return filepath.Join(RunDir(root, runID), fmt.Sprintf("prices_%s.csv", runID))
}

// ChartPath is where an instrument's chart of a run is written.
func ChartPath(root, runID, instrument string) string {
	return filepath.Join(RunDir(root, runID), "charts", fmt.Sprintf("%s_forecast_%s.html", safeName(instrument), runID))
}

// WorkbookPath is where the optional spreadsheet export of a run is written.
func WorkbookPath(root, runID string) string {
	return filepath.Join(RunDir(root, runID), fmt.Sprintf("forecast_%s.xlsx", runID))
}

// safeName keeps identifiers like "BRK-B" intact and replaces characters
// that are unsafe in file names.
func safeName(id string) string {
	return strings.Map(func(r rune) rune {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9':
			return r
		case r == '-' || r == '.' || r == '_':
			return r
		default:
			return '_'
		}
	}, id)
}
