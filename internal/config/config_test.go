package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(body), 0644))
	return path
}

func TestLoadDefaults(t *testing.T) {
	cfg, err := Load(filepath.Join(t.TempDir(), "missing.yaml"))
	require.NoError(t, err)

	assert.Equal(t, DefaultInstruments, cfg.Instruments)
	assert.Len(t, cfg.Instruments, 20)
	assert.Equal(t, 4, cfg.Window.Years)
	assert.Equal(t, 30, cfg.Forecast.HorizonDays)
	assert.Equal(t, 10.0, cfg.Forecast.SeasonalityPriorScale)
	assert.Equal(t, 0.5, cfg.Forecast.ChangepointPriorScale)
	assert.Equal(t, "instrument", cfg.Imputation.Scope)
	assert.Equal(t, "output", cfg.Output.Root)
	assert.False(t, cfg.TelegramEnabled())
	assert.NoError(t, cfg.Validate())
}

func TestLoadFileAndEnv(t *testing.T) {
	path := writeConfig(t, `
instruments: [ACME, ZEBRA]
window:
  years: 2
forecast:
  horizon_days: 10
imputation:
  scope: table
output:
  root: /tmp/out
  workbook: true
telegram:
  bot_token: file-token
  chat_id: "42"
`)
	t.Setenv("TELEGRAM_BOT_TOKEN", "env-token")
	t.Setenv("FORECASTER_OUTPUT", "/srv/forecasts")

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, []string{"ACME", "ZEBRA"}, cfg.Instruments)
	assert.Equal(t, 2, cfg.Window.Years)
	assert.Equal(t, 10, cfg.Forecast.HorizonDays)
	assert.Equal(t, "table", cfg.Imputation.Scope)
	assert.True(t, cfg.Output.Workbook)
	assert.Equal(t, "/srv/forecasts", cfg.Output.Root)
	assert.Equal(t, "env-token", cfg.Telegram.BotToken)
	assert.True(t, cfg.TelegramEnabled())
	assert.NoError(t, cfg.Validate())
}

func TestLoadInstrumentsFromEnv(t *testing.T) {
	t.Setenv("FORECASTER_INSTRUMENTS", " ACME, ,ZEBRA ")
	cfg, err := Load(filepath.Join(t.TempDir(), "missing.yaml"))
	require.NoError(t, err)
	assert.Equal(t, []string{"ACME", "ZEBRA"}, cfg.Instruments)
}

func TestLoadRejectsBadYAML(t *testing.T) {
	_, err := Load(writeConfig(t, "instruments: [ACME\n"))
	assert.Error(t, err)
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
	}{
		{"bad scope", func(c *Config) { c.Imputation.Scope = "global" }},
		{"negative horizon", func(c *Config) { c.Forecast.HorizonDays = -1 }},
		{"token without chat", func(c *Config) { c.Telegram.BotToken = "t" }},
		{"inverted window", func(c *Config) {
			c.Window.Start = "2024-02-01"
			c.Window.End = "2024-01-01"
		}},
		{"unparsable date", func(c *Config) { c.Window.End = "01/02/2024" }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg, err := Load(filepath.Join(t.TempDir(), "missing.yaml"))
			require.NoError(t, err)
			tt.mutate(cfg)
			assert.Error(t, cfg.Validate())
		})
	}
}

func TestInstrumentWindow(t *testing.T) {
	cfg, err := Load(filepath.Join(t.TempDir(), "missing.yaml"))
	require.NoError(t, err)
	cfg.Instruments = []string{"ACME"}

	now := time.Date(2024, 6, 1, 12, 0, 0, 0, time.UTC)
	w, err := cfg.InstrumentWindow(now)
	require.NoError(t, err)
	assert.Equal(t, now, w.End())
	assert.Equal(t, now.AddDate(0, 0, -4*365), w.Start())
	assert.Equal(t, []string{"ACME"}, w.Instruments())

	cfg.Window.Start = "2023-01-01"
	cfg.Window.End = "2023-03-01"
	w, err = cfg.InstrumentWindow(now)
	require.NoError(t, err)
	assert.Equal(t, time.Date(2023, 1, 1, 0, 0, 0, 0, time.UTC), w.Start())
	assert.Equal(t, time.Date(2023, 3, 1, 0, 0, 0, 0, time.UTC), w.End())
}

func TestLoadKeepsExplicitZeroHorizon(t *testing.T) {
	cfg, err := Load(writeConfig(t, "forecast:\n  horizon_days: 0\n"))
	require.NoError(t, err)

	assert.Equal(t, 0, cfg.Forecast.HorizonDays)
	assert.Equal(t, 10.0, cfg.Forecast.SeasonalityPriorScale, "unset keys keep their defaults")
	assert.Equal(t, DefaultInstruments, cfg.Instruments)
	assert.NoError(t, cfg.Validate())
}

func TestLoadExplicitZeroYearsIsRejected(t *testing.T) {
	cfg, err := Load(writeConfig(t, "window:\n  years: 0\n"))
	require.NoError(t, err)
	assert.Error(t, cfg.Validate())
}
