package artifact

import (
	"fmt"

	"github.com/xuri/excelize/v2"

	"PriceForecaster/internal/model"
)

const (
	pricesSheet   = "Prices"
	forecastSheet = "Forecast"
)

// WriteWorkbook exports the normalized and forecast tables to one .xlsx file.
func WriteWorkbook(path string, normalized []model.NormalizedRow, forecasts []model.ForecastRow) error {
	f := excelize.NewFile()
	defer f.Close()

	if err := f.SetSheetName("Sheet1", pricesSheet); err != nil {
		return err
	}
	if _, err := f.NewSheet(forecastSheet); err != nil {
		return err
	}

	prices := make([][]interface{}, 0, len(normalized))
	for _, r := range normalized {
		prices = append(prices, []interface{}{
			r.Date.Format(dateLayout), r.Instrument,
			cell(r.Open.Ptr()), cell(r.High.Ptr()), cell(r.Low.Ptr()), cell(r.Close.Ptr()), cell(r.Volume.Ptr()),
		})
	}
	header := make([]interface{}, len(model.NormalizedColumns))
	for i, c := range model.NormalizedColumns {
		header[i] = c
	}
	if err := writeSheet(f, pricesSheet, header, prices); err != nil {
		return err
	}

	fc := make([][]interface{}, 0, len(forecasts))
	for _, r := range forecasts {
		fc = append(fc, []interface{}{
			r.Date.Format(dateLayout), r.Instrument, r.Predicted, r.Trend, r.Seasonal, cell(r.Observed.Ptr()),
		})
	}
	fcHeader := []interface{}{"Date", "Ticker", "Predicted", "Trend", "Seasonal", "Observed"}
	if err := writeSheet(f, forecastSheet, fcHeader, fc); err != nil {
		return err
	}

	return f.SaveAs(path)
}

func writeSheet(f *excelize.File, sheet string, header []interface{}, rows [][]interface{}) error {
	sw, err := f.NewStreamWriter(sheet)
	if err != nil {
		return fmt.Errorf("stream writer %s: %w", sheet, err)
	}
	if err := sw.SetRow("A1", header); err != nil {
		return err
	}
	for i, row := range rows {
		addr, err := excelize.CoordinatesToCellName(1, i+2)
		if err != nil {
			return err
		}
		if err := sw.SetRow(addr, row); err != nil {
			return fmt.Errorf("%s row %d: %w", sheet, i+2, err)
		}
	}
	return sw.Flush()
}

// cell leaves null values as empty cells.
func cell(v *float64) interface{} {
	if v == nil {
		return nil
	}
	return *v
}
