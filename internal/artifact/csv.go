package artifact

import (
	"encoding/csv"
	"fmt"
	"os"
	"strconv"

	"github.com/guregu/null/v6"

	"PriceForecaster/internal/model"
)

const dateLayout = "2006-01-02"

// WriteDataFile writes the normalized table as semicolon-separated text with
// a header row and no index column. Null cells are left empty.
func WriteDataFile(path string, rows []model.NormalizedRow) (err error) {
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	defer func() {
		if cerr := f.Close(); err == nil {
			err = cerr
		}
	}()

	w := csv.NewWriter(f)
	w.Comma = ';'
	if err := w.Write(model.NormalizedColumns); err != nil {
		return err
	}
	for _, r := range rows {
		rec := []string{
			r.Date.Format(dateLayout),
			r.Instrument,
			formatFloat(r.Open),
			formatFloat(r.High),
			formatFloat(r.Low),
			formatFloat(r.Close),
			formatFloat(r.Volume),
		}
		if err := w.Write(rec); err != nil {
			return fmt.Errorf("write %s row: %w", r.Instrument, err)
		}
	}
	w.Flush()
	return w.Error()
}

func formatFloat(v null.Float) string {
	if !v.Valid {
		return ""
	}
	return strconv.FormatFloat(v.Float64, 'f', -1, 64)
}
