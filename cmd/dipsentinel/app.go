package main

import (
	"context"
	"fmt"
	"sync"
	"time"

	"DipSentinel/internal/cache"
	"DipSentinel/internal/collector"
	"DipSentinel/internal/config"
	"DipSentinel/internal/logging"
	"DipSentinel/internal/metrics"
	"DipSentinel/internal/notifier"
	"DipSentinel/internal/session"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/rs/zerolog"
)

// defaultMetrics registers the process-wide collectors once.
var defaultMetrics = sync.OnceValue(func() *metrics.Recorder {
	return metrics.New(prometheus.DefaultRegisterer)
})

// App holds the wired dependencies shared by all commands.
type App struct {
	Config  *config.Config
	Logger  zerolog.Logger
	Clock   *session.Clock
	Cache   cache.HistoryCache
	Metrics *metrics.Recorder
}

func loadApp(cfgPath string) (*App, error) {
	cfg, err := config.Load(cfgPath)
	if err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	clock, err := cfg.Clock()
	if err != nil {
		return nil, err
	}
	logger := logging.New(logging.Config{
		Level:    cfg.Log.Level,
		Console:  !cfg.Log.Quiet,
		FilePath: cfg.Log.File,
	})
	return &App{Config: cfg, Logger: logger, Clock: clock}, nil
}

// openCache builds the configured history cache. Failures degrade to no cache.
func (a *App) openCache(ctx context.Context) cache.HistoryCache {
	c := a.Config.Cache
	switch c.Backend {
	case "sqlite":
		sc, err := cache.NewSQLiteCache(c.SQLitePath, a.Logger)
		if err != nil {
			a.Logger.Warn().Err(err).Msg("init sqlite cache failed, running without cache")
			return cache.NewNoopCache()
		}
		return sc
	case "redis":
		rc, err := cache.NewRedisCache(ctx, cache.RedisConfig{
			Addr:     c.Redis.Addr,
			Password: c.Redis.Password,
			DB:       c.Redis.DB,
			TTL:      c.Redis.TTL,
		})
		if err != nil {
			a.Logger.Warn().Err(err).Msg("init redis cache failed, running without cache")
			return cache.NewNoopCache()
		}
		return rc
	default:
		return cache.NewNoopCache()
	}
}

func (a *App) fetcher() collector.Fetcher {
	if a.Config.DataSource.BaseURL != "" {
		return collector.NewVsTraderFetcher(a.Config.DataSource.BaseURL, a.Config.DataSource.APIKey, a.Config.Proxy)
	}
	return collector.NewYahooFetcher(a.Config.Proxy)
}

func (a *App) collector(ctx context.Context) *collector.Collector {
	if a.Cache == nil {
		a.Cache = a.openCache(ctx)
	}
	if a.Metrics == nil {
		a.Metrics = defaultMetrics()
	}
	f := a.fetcher()
	a.Logger.Debug().Str("source", f.Name()).Str("cache", a.Cache.Name()).Msg("collector ready")
	return collector.NewCollector(f, a.Clock, a.Cache, a.Metrics, a.Config.DataSource.LookbackDays, a.Logger)
}

func (a *App) sender() notifier.Sender {
	if a.Config.Telegram.BotToken == "" {
		a.Logger.Warn().Msg("telegram not configured, notifications go to the log")
		return notifier.NewLogSender(a.Logger)
	}
	return notifier.NewTelegramNotifier(a.Config.Telegram.BotToken, a.Config.Telegram.ChatID, a.Config.Proxy, a.Logger)
}

// close releases the cache. Safe to call more than once.
func (a *App) close() {
	if a.Cache != nil {
		if err := a.Cache.Close(); err != nil {
			a.Logger.Warn().Err(err).Msg("close cache")
		}
		a.Cache = nil
	}
}

// parseAt parses a --at value in the reference timezone.
func parseAt(value string, loc *time.Location) (time.Time, error) {
	t, err := time.ParseInLocation("2006-01-02 15:04", value, loc)
	if err != nil {
		return time.Time{}, fmt.Errorf("--at must look like \"2006-01-02 15:04\": %w", err)
	}
	return t, nil
}
