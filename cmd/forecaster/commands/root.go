package commands

import (
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"PriceForecaster/internal/config"
	"PriceForecaster/internal/logging"
)

var (
	// Global flags
	configFile string
	logLevel   string

	cfg *config.Config
)

var rootCmd = &cobra.Command{
	Use:   "forecaster",
	Short: "Daily price series forecaster",
	Long: `PriceForecaster downloads daily price series for a list of instruments,
fills missing values, fits one forecasting model per instrument and writes a
semicolon separated data file plus one interactive chart per instrument.

Examples:
  forecaster run
  forecaster run --instruments AAPL,MSFT --years 2 --horizon 14
  forecaster schedule --config configs/config.yaml`,
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		var err error
		if cfg, err = config.Load(configFile); err != nil {
			return err
		}
		if logLevel != "" {
			cfg.Log.Level = logLevel
		}
		logging.Setup(cfg.Log.Level, cfg.Log.Format)
		return nil
	},
}

// Execute runs the root command. The returned error keeps its kind so the
// caller can pick an exit code.
func Execute() error {
	err := rootCmd.Execute()
	if err != nil {
		log.Error().Err(err).Msg("forecaster failed")
	}
	return err
}

func init() {
	rootCmd.PersistentFlags().StringVar(&configFile, "config", "configs/config.yaml", "config file")
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "", "log level (debug|info|warn|error), overrides config")
}
