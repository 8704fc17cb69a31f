package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"DipSentinel/internal/model"
	"DipSentinel/internal/session"

	"github.com/creasty/defaults"
	"github.com/go-playground/validator/v10"
	"github.com/joho/godotenv"
	"github.com/robfig/cron/v3"
	"gopkg.in/yaml.v3"
)

// CronParser accepts the six-field (seconds first) specs the watch scheduler runs.
var CronParser = cron.NewParser(cron.Second | cron.Minute | cron.Hour | cron.Dom | cron.Month | cron.Dow | cron.Descriptor)

// WindowConfig is one market's session in the reference timezone.
type WindowConfig struct {
	Label string `yaml:"label"`
	Start string `yaml:"start" validate:"required"`
	End   string `yaml:"end" validate:"required"`
}

// Config holds all application configuration.
type Config struct {
	Ticker     string `yaml:"ticker" default:"005930.KS" validate:"required"`
	DataSource struct {
		BaseURL      string `yaml:"base_url"`
		APIKey       string `yaml:"api_key"`
		LookbackDays int    `yaml:"lookback_days" default:"1250" validate:"min=5"`
	} `yaml:"data_source"`
	Session struct {
		Timezone         string       `yaml:"timezone" default:"Asia/Seoul" validate:"required"`
		DomesticSuffixes []string     `yaml:"domestic_suffixes" default:"[\".KS\",\".KQ\"]" validate:"min=1,dive,required"`
		Domestic         WindowConfig `yaml:"domestic"`
		Foreign          WindowConfig `yaml:"foreign"`
	} `yaml:"session"`
	Watch struct {
		Cron           string `yaml:"cron" default:"0 */5 * * * *"`
		NotifyOnChange bool   `yaml:"notify_on_change"`
	} `yaml:"watch"`
	Telegram struct {
		BotToken string `yaml:"bot_token"`
		ChatID   string `yaml:"chat_id" validate:"required_with=BotToken"`
	} `yaml:"telegram"`
	Cache struct {
		Backend    string `yaml:"backend" default:"sqlite" validate:"oneof=none sqlite redis"`
		SQLitePath string `yaml:"sqlite_path" default:"data/dipsentinel.db"`
		Redis      struct {
			Addr     string        `yaml:"addr" default:"localhost:6379"`
			Password string        `yaml:"password"`
			DB       int           `yaml:"db"`
			TTL      time.Duration `yaml:"ttl" default:"24h"`
		} `yaml:"redis"`
	} `yaml:"cache"`
	Metrics struct {
		Addr string `yaml:"addr"`
	} `yaml:"metrics"`
	Log struct {
		Level string `yaml:"level" default:"info" validate:"oneof=debug info warn error"`
		File  string `yaml:"file"`
		Quiet bool   `yaml:"quiet"`
	} `yaml:"log"`
	Proxy string `yaml:"proxy"`
}

// Load reads config from a YAML file, then applies .env and environment
// variable overrides and finally defaults. A missing file is not an error.
func Load(path string) (*Config, error) {
	_ = godotenv.Load()

	cfg := &Config{}

	data, err := os.ReadFile(path)
	if err != nil && !os.IsNotExist(err) {
		return nil, fmt.Errorf("read config: %w", err)
	}
	if len(data) > 0 {
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("parse config: %w", err)
		}
	}

	applyEnv(cfg)

	if err := defaults.Set(cfg); err != nil {
		return nil, fmt.Errorf("apply defaults: %w", err)
	}
	if cfg.Session.Domestic == (WindowConfig{}) {
		cfg.Session.Domestic = WindowConfig{Label: "Korean regular session", Start: "09:20", End: "15:30"}
	}
	if cfg.Session.Foreign == (WindowConfig{}) {
		cfg.Session.Foreign = WindowConfig{Label: "US regular session", Start: "23:20", End: "06:00"}
	}

	return cfg, nil
}

func applyEnv(cfg *Config) {
	if v := os.Getenv("DIPSENTINEL_TICKER"); v != "" {
		cfg.Ticker = v
	}
	if v := os.Getenv("TELEGRAM_BOT_TOKEN"); v != "" {
		cfg.Telegram.BotToken = v
	}
	if v := os.Getenv("TELEGRAM_CHAT_ID"); v != "" {
		cfg.Telegram.ChatID = v
	}
	if v := os.Getenv("VSTRADER_BASE_URL"); v != "" {
		cfg.DataSource.BaseURL = v
	}
	if v := os.Getenv("VSTRADER_API_KEY"); v != "" {
		cfg.DataSource.APIKey = v
	}
	if v := os.Getenv("HTTPS_PROXY"); v != "" {
		cfg.Proxy = v
	}
	if v := os.Getenv("CACHE_BACKEND"); v != "" {
		cfg.Cache.Backend = v
	}
	if v := os.Getenv("SQLITE_PATH"); v != "" {
		cfg.Cache.SQLitePath = v
	}
	if v := os.Getenv("REDIS_ADDR"); v != "" {
		cfg.Cache.Redis.Addr = v
	}
	if v := os.Getenv("LOG_LEVEL"); v != "" {
		cfg.Log.Level = strings.ToLower(v)
	}
	if v := os.Getenv("METRICS_ADDR"); v != "" {
		cfg.Metrics.Addr = v
	}
	if v := os.Getenv("CRON_WATCH"); v != "" {
		cfg.Watch.Cron = v
	}
}

// Validate checks field constraints and that timezone, windows and cron parse.
func (c *Config) Validate() error {
	if err := validator.New().Struct(c); err != nil {
		return fmt.Errorf("invalid config: %w", err)
	}
	if _, err := c.Clock(); err != nil {
		return err
	}
	if _, err := CronParser.Parse(c.Watch.Cron); err != nil {
		return fmt.Errorf("watch.cron: %w", err)
	}
	return nil
}

// Location loads the reference timezone.
func (c *Config) Location() (*time.Location, error) {
	loc, err := time.LoadLocation(c.Session.Timezone)
	if err != nil {
		return nil, fmt.Errorf("session.timezone: %w", err)
	}
	return loc, nil
}

// Clock builds the session clock described by the configuration.
func (c *Config) Clock() (*session.Clock, error) {
	loc, err := c.Location()
	if err != nil {
		return nil, err
	}
	domestic, err := window(c.Session.Domestic, "domestic session")
	if err != nil {
		return nil, err
	}
	foreign, err := window(c.Session.Foreign, "foreign session")
	if err != nil {
		return nil, err
	}
	return session.NewClock(loc, c.Session.DomesticSuffixes, map[model.MarketClass]model.SessionWindow{
		model.DomesticEquity: domestic,
		model.ForeignEquity:  foreign,
	}), nil
}

func window(w WindowConfig, fallbackLabel string) (model.SessionWindow, error) {
	start, err := model.ParseTimeOfDay(w.Start)
	if err != nil {
		return model.SessionWindow{}, fmt.Errorf("%s start: %w", fallbackLabel, err)
	}
	end, err := model.ParseTimeOfDay(w.End)
	if err != nil {
		return model.SessionWindow{}, fmt.Errorf("%s end: %w", fallbackLabel, err)
	}
	label := w.Label
	if label == "" {
		label = fallbackLabel
	}
	return model.NewSessionWindow(label, start, end), nil
}
