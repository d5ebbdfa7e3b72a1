package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"PriceForecaster/internal/model"
)

// DefaultInstruments is the instrument list used when none is configured.
var DefaultInstruments = []string{
	"AAPL", "MSFT", "GOOGL", "AMZN", "TSLA", "META", "BRK-B", "NVDA",
	"JPM", "JNJ", "V", "PG", "UNH", "HD", "DIS", "VZ", "NFLX",
	"PYPL", "INTC", "CMCSA",
}

const dateLayout = "2006-01-02"

// Config holds all application configuration.
type Config struct {
	Instruments []string `yaml:"instruments"`
	Window      struct {
		Years int    `yaml:"years"`
		Start string `yaml:"start"`
		End   string `yaml:"end"`
	} `yaml:"window"`
	Forecast struct {
		HorizonDays           int     `yaml:"horizon_days"`
		SeasonalityPriorScale float64 `yaml:"seasonality_prior_scale"`
		ChangepointPriorScale float64 `yaml:"changepoint_prior_scale"`
		MinHistory            int     `yaml:"min_history"`
	} `yaml:"forecast"`
	Imputation struct {
		Scope string `yaml:"scope"`
	} `yaml:"imputation"`
	Output struct {
		Root       string `yaml:"root"`
		Workbook   bool   `yaml:"workbook"`
		AssetsHost string `yaml:"assets_host"`
	} `yaml:"output"`
	Workers    int `yaml:"workers"`
	DataSource struct {
		BaseURL           string  `yaml:"base_url"`
		APIKey            string  `yaml:"api_key"`
		RequestsPerSecond float64 `yaml:"requests_per_second"`
	} `yaml:"data_source"`
	Proxy    string `yaml:"proxy"`
	Schedule struct {
		Cron string `yaml:"cron"`
	} `yaml:"schedule"`
	Database struct {
		SQLitePath string `yaml:"sqlite_path"`
	} `yaml:"database"`
	Telegram struct {
		BotToken string `yaml:"bot_token"`
		ChatID   string `yaml:"chat_id"`
	} `yaml:"telegram"`
	Log struct {
		Level  string `yaml:"level"`
		Format string `yaml:"format"`
	} `yaml:"log"`
}

// Load starts from Default, overlays the YAML file, then applies environment
// variable overrides. Keys present in the file are kept as written, zero
// values included. A missing file is not an error.
func Load(path string) (*Config, error) {
	cfg := Default()

	data, err := os.ReadFile(path)
	if err != nil && !os.IsNotExist(err) {
		return nil, fmt.Errorf("read config: %w", err)
	}
	if len(data) > 0 {
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("parse config: %w", err)
		}
	}

	cfg.applyEnv()
	return cfg, nil
}

func (c *Config) applyEnv() {
	if v := os.Getenv("FORECASTER_INSTRUMENTS"); v != "" {
		c.Instruments = SplitList(v)
	}
	if v := os.Getenv("FORECASTER_OUTPUT"); v != "" {
		c.Output.Root = v
	}
	if v := os.Getenv("TELEGRAM_BOT_TOKEN"); v != "" {
		c.Telegram.BotToken = v
	}
	if v := os.Getenv("TELEGRAM_CHAT_ID"); v != "" {
		c.Telegram.ChatID = v
	}
	if v := os.Getenv("DATA_BASE_URL"); v != "" {
		c.DataSource.BaseURL = v
	}
	if v := os.Getenv("DATA_API_KEY"); v != "" {
		c.DataSource.APIKey = v
	}
	if v := os.Getenv("HTTPS_PROXY"); v != "" {
		c.Proxy = v
	}
	if v := os.Getenv("SQLITE_PATH"); v != "" {
		c.Database.SQLitePath = v
	}
	if v := os.Getenv("CRON_SCHEDULE"); v != "" {
		c.Schedule.Cron = v
	}
	if v := os.Getenv("LOG_LEVEL"); v != "" {
		c.Log.Level = v
	}
	if v := os.Getenv("FORECASTER_WORKERS"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			c.Workers = n
		}
	}
}

// Default returns the configuration used when no file or environment
// override sets a key.
func Default() *Config {
	c := &Config{}
	c.Instruments = append([]string(nil), DefaultInstruments...)
	c.Window.Years = 4
	c.Forecast.HorizonDays = 30
	c.Forecast.SeasonalityPriorScale = 10.0
	c.Forecast.ChangepointPriorScale = 0.5
	c.Forecast.MinHistory = 2
	c.Imputation.Scope = "instrument"
	c.Output.Root = "output"
	c.Schedule.Cron = "0 30 22 * * 1-5"
	c.Log.Level = "info"
	c.Log.Format = "console"
	return c
}

// Validate checks that the settings are usable.
func (c *Config) Validate() error {
	if len(c.Instruments) == 0 {
		return fmt.Errorf("instruments must not be empty")
	}
	if c.Window.Years <= 0 {
		return fmt.Errorf("window.years must be positive")
	}
	if c.Forecast.HorizonDays < 0 {
		return fmt.Errorf("forecast.horizon_days must not be negative")
	}
	if c.Forecast.SeasonalityPriorScale <= 0 || c.Forecast.ChangepointPriorScale <= 0 {
		return fmt.Errorf("forecast prior scales must be positive")
	}
	switch c.Imputation.Scope {
	case "", "instrument", "table":
	default:
		return fmt.Errorf("imputation.scope must be instrument or table, got %q", c.Imputation.Scope)
	}
	if (c.Telegram.BotToken == "") != (c.Telegram.ChatID == "") {
		return fmt.Errorf("telegram.bot_token and telegram.chat_id must be set together")
	}
	if _, _, err := c.bounds(time.Now()); err != nil {
		return err
	}
	return nil
}

// TelegramEnabled reports whether run summaries should be sent.
func (c *Config) TelegramEnabled() bool {
	return c.Telegram.BotToken != "" && c.Telegram.ChatID != ""
}

// InstrumentWindow builds the run's instrument window. Without explicit dates
// it covers the last Window.Years years up to now.
func (c *Config) InstrumentWindow(now time.Time) (model.InstrumentWindow, error) {
	start, end, err := c.bounds(now)
	if err != nil {
		return model.InstrumentWindow{}, err
	}
	return model.NewInstrumentWindow(c.Instruments, start, end)
}

func (c *Config) bounds(now time.Time) (time.Time, time.Time, error) {
	end := now
	if c.Window.End != "" {
		t, err := time.Parse(dateLayout, c.Window.End)
		if err != nil {
			return time.Time{}, time.Time{}, fmt.Errorf("window.end: %w", err)
		}
		end = t
	}
	start := end.AddDate(0, 0, -365*c.Window.Years)
	if c.Window.Start != "" {
		t, err := time.Parse(dateLayout, c.Window.Start)
		if err != nil {
			return time.Time{}, time.Time{}, fmt.Errorf("window.start: %w", err)
		}
		start = t
	}
	if !end.After(start) {
		return time.Time{}, time.Time{}, fmt.Errorf("window end %s is not after start %s",
			end.Format(dateLayout), start.Format(dateLayout))
	}
	return start, end, nil
}

// SplitList parses a comma separated instrument list, dropping blanks.
func SplitList(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if p := strings.TrimSpace(part); p != "" {
			out = append(out, p)
		}
	}
	return out
}
