package commands

import (
	"github.com/rs/zerolog/log"

	"PriceForecaster/internal/artifact"
	"PriceForecaster/internal/collector"
	"PriceForecaster/internal/config"
	"PriceForecaster/internal/forecast"
	"PriceForecaster/internal/normalizer"
	"PriceForecaster/internal/notifier"
	"PriceForecaster/internal/pipeline"
	"PriceForecaster/internal/recorder"
)

// app holds the wired pipeline and the resources it owns.
type app struct {
	pipeline *pipeline.Pipeline
	recorder recorder.Recorder
	notifier *notifier.TelegramNotifier
}

func (a *app) Close() {
	if err := a.recorder.Close(); err != nil {
		log.Warn().Err(err).Msg("close recorder")
	}
}

func newApp(c *config.Config) (*app, error) {
	if err := c.Validate(); err != nil {
		return nil, err
	}
	scope, err := normalizer.ParseScope(c.Imputation.Scope)
	if err != nil {
		return nil, err
	}

	var fetcher collector.Fetcher
	if c.DataSource.BaseURL != "" {
		fetcher = collector.NewRESTFetcher(c.DataSource.BaseURL, c.DataSource.APIKey, c.Proxy)
	} else {
		fetcher = collector.NewYahooFetcher(c.Proxy)
	}
	log.Info().Str("source", fetcher.Name()).Msg("data source selected")

	modelCfg := forecast.DefaultConfig()
	modelCfg.SeasonalityPriorScale = c.Forecast.SeasonalityPriorScale
	modelCfg.ChangepointPriorScale = c.Forecast.ChangepointPriorScale

	var rec recorder.Recorder = recorder.NewNoopRecorder()
	if c.Database.SQLitePath != "" {
		sr, err := recorder.NewSQLiteRecorder(c.Database.SQLitePath)
		if err != nil {
			log.Warn().Err(err).Msg("init sqlite recorder failed, using noop")
		} else {
			rec = sr
		}
	}

	a := &app{recorder: rec}
	a.pipeline = &pipeline.Pipeline{
		Collector: collector.NewCollector(fetcher, collector.Options{
			Workers:           c.Workers,
			RequestsPerSecond: c.DataSource.RequestsPerSecond,
		}),
		Engine: forecast.NewEngine(forecast.Options{
			Workers:    c.Workers,
			MinHistory: c.Forecast.MinHistory,
			NewModel:   func() forecast.Model { return forecast.NewAdditiveModel(modelCfg) },
		}),
		Writer: &artifact.Writer{
			Workers:    c.Workers,
			AssetsHost: c.Output.AssetsHost,
			Workbook:   c.Output.Workbook,
		},
		Recorder: rec,
		Config: pipeline.Config{
			HorizonDays: c.Forecast.HorizonDays,
			OutputRoot:  c.Output.Root,
			Scope:       scope,
		},
	}
	if c.TelegramEnabled() {
		a.notifier = notifier.NewTelegramNotifier(c.Telegram.BotToken, c.Telegram.ChatID, c.Proxy)
		a.pipeline.Notifier = a.notifier
	}
	return a, nil
}
