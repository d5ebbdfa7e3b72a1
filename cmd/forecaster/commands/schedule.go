package commands

import (
	"context"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"PriceForecaster/internal/scheduler"
)

var scheduleRunOnStart bool

var scheduleCmd = &cobra.Command{
	Use:   "schedule",
	Short: "Run forecast batches on a cron schedule",
	Long: `Keeps running and starts a forecast batch whenever schedule.cron fires.
The cron expression has a leading seconds field.

When Telegram is configured every run sends a summary and the bot answers
/run, /status and /help. Stop with Ctrl+C.

Example:
  forecaster schedule --run-on-start`,
	RunE: runSchedule,
}

func init() {
	rootCmd.AddCommand(scheduleCmd)
	scheduleCmd.Flags().BoolVar(&scheduleRunOnStart, "run-on-start", false, "start one run immediately")
}

func runSchedule(cmd *cobra.Command, args []string) error {
	a, err := newApp(cfg)
	if err != nil {
		return err
	}
	defer a.Close()

	ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	job := func(ctx context.Context) error {
		window, err := cfg.InstrumentWindow(time.Now())
		if err != nil {
			return err
		}
		_, err = a.pipeline.Run(ctx, window)
		return err
	}
	sched := scheduler.NewScheduler(ctx, job, a.recorder)
	if err := sched.Register(cfg.Schedule.Cron); err != nil {
		return err
	}
	sched.Start()
	defer sched.Stop()

	if a.notifier != nil {
		go a.notifier.StartPolling(ctx, sched.HandleCommand)
		log.Info().Msg("telegram polling started")
	}
	if scheduleRunOnStart {
		go sched.RunNow()
	}

	log.Info().Msg("forecaster is running, press Ctrl+C to stop")
	<-ctx.Done()
	log.Info().Msg("shutdown signal received, stopping")
	return nil
}
