package commands

import (
	"os/signal"
	"strconv"
	"strings"
	"syscall"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"PriceForecaster/internal/config"
	"PriceForecaster/internal/pipeline"
)

var (
	runInstruments string
	runYears       int
	runHorizon     int
	runOutput      string
	runPreview     int
)

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Run one forecast batch and exit",
	Long: `Fetches the configured instruments, writes the data file and one chart per
instrument under <output>/<run_id>/, then exits.

Exit codes: 0 success, 2 no instrument returned data, 3 artifacts could not be
written, 1 any other failure.

Example:
  forecaster run --instruments AAPL,MSFT,BRK-B --output ./out`,
	RunE: runForecast,
}

func init() {
	rootCmd.AddCommand(runCmd)

	runCmd.Flags().StringVar(&runInstruments, "instruments", "", "comma separated instruments (default from config)")
	runCmd.Flags().IntVar(&runYears, "years", 0, "history length in years (default from config)")
	runCmd.Flags().IntVar(&runHorizon, "horizon", 0, "forecast horizon in days (default from config)")
	runCmd.Flags().StringVar(&runOutput, "output", "", "output root directory (default from config)")
	runCmd.Flags().IntVar(&runPreview, "preview", 5, "normalized rows to log after the run")
}

func applyRunFlags(c *config.Config) {
	if runInstruments != "" {
		c.Instruments = config.SplitList(runInstruments)
	}
	if runYears > 0 {
		c.Window.Years = runYears
	}
	if runHorizon > 0 {
		c.Forecast.HorizonDays = runHorizon
	}
	if runOutput != "" {
		c.Output.Root = runOutput
	}
}

func runForecast(cmd *cobra.Command, args []string) error {
	applyRunFlags(cfg)
	a, err := newApp(cfg)
	if err != nil {
		return err
	}
	defer a.Close()

	ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	window, err := cfg.InstrumentWindow(time.Now())
	if err != nil {
		return err
	}
	res, err := a.pipeline.Run(ctx, window)
	if err != nil {
		return err
	}
	logPreview(res, runPreview)
	log.Info().Str("data_file", res.DataFile).Int("charts", len(res.ChartFiles)).Msg("artifacts written")
	return nil
}

func logPreview(res *pipeline.RunResult, n int) {
	for _, r := range res.Preview(n) {
		fields := make([]string, 0, 5)
		for _, v := range r.NumericFields() {
			if v.Valid {
				fields = append(fields, strconv.FormatFloat(v.Float64, 'f', 2, 64))
			} else {
				fields = append(fields, "")
			}
		}
		log.Info().Str("date", r.Date.Format("2006-01-02")).Str("instrument", r.Instrument).
			Str("ohlcv", strings.Join(fields, ";")).Msg("preview")
	}
}
