package collector

import (
	"context"
	"fmt"
	"sync"
	"time"

	"DipSentinel/internal/cache"
	"DipSentinel/internal/calculator"
	"DipSentinel/internal/metrics"
	"DipSentinel/internal/model"
	"DipSentinel/internal/session"
	"DipSentinel/internal/strategy"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

const (
	// DefaultLookbackDays approximates five years of daily bars.
	DefaultLookbackDays = 1250
	// RefreshDays is how many recent bars are re-fetched over a same-day cache hit.
	RefreshDays = 5
)

// MockFetcher serves a fixed history, or a fixed error, for development and testing.
type MockFetcher struct {
	Bars model.PriceHistory
	Err  error

	mu    sync.Mutex
	calls []int
}

func (m *MockFetcher) Name() string { return "mock" }

func (m *MockFetcher) FetchDailyBars(_ context.Context, _ string, days int) (model.PriceHistory, error) {
	m.mu.Lock()
	m.calls = append(m.calls, days)
	m.mu.Unlock()
	if m.Err != nil {
		return nil, m.Err
	}
	bars := m.Bars
	if len(bars) > days {
		bars = bars[len(bars)-days:]
	}
	return bars.Clone(), nil
}

// Calls returns the `days` argument of every fetch so far.
func (m *MockFetcher) Calls() []int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]int(nil), m.calls...)
}

// Request describes one evaluation. At is only used in forced mode.
type Request struct {
	Ticker string
	Mode   model.TriggerMode
	At     time.Time
}

// Evaluation is everything a caller needs to render one check.
type Evaluation struct {
	ID          string
	Ticker      string
	Session     model.SessionStatus
	Band        *model.BandResult
	Recent      calculator.Range
	Source      string
	EvaluatedAt time.Time
}

// Collector gates a request on the session clock, fetches history and runs the band engine.
type Collector struct {
	Fetcher  Fetcher
	Clock    *session.Clock
	Cache    cache.HistoryCache
	Metrics  *metrics.Recorder
	Lookback int
	log      zerolog.Logger
}

// NewCollector creates a new Collector.
func NewCollector(fetcher Fetcher, clock *session.Clock, hc cache.HistoryCache, rec *metrics.Recorder, lookback int, log zerolog.Logger) *Collector {
	if hc == nil {
		hc = cache.NewNoopCache()
	}
	if lookback < strategy.MinBars {
		lookback = DefaultLookbackDays
	}
	return &Collector{
		Fetcher:  fetcher,
		Clock:    clock,
		Cache:    hc,
		Metrics:  rec,
		Lookback: lookback,
		log:      log,
	}
}

// Evaluate runs one check. The returned Evaluation is non-nil even on error
// so callers can still show the session status.
func (c *Collector) Evaluate(ctx context.Context, req Request) (*Evaluation, error) {
	eval := &Evaluation{
		ID:          uuid.NewString(),
		Ticker:      req.Ticker,
		Source:      c.Fetcher.Name(),
		EvaluatedAt: c.Clock.Now(),
	}
	log := c.log.With().
		Str("evaluation_id", eval.ID).
		Str("symbol", req.Ticker).
		Str("mode", string(req.Mode)).
		Logger()

	eval.Session = c.Clock.Evaluate(req.Ticker, req.Mode, req.At)
	if !eval.Session.IsOpen {
		_, err := strategy.Compute(req.Ticker, nil, eval.Session)
		log.Debug().Str("reason", eval.Session.Reason).Msg("session closed, skipping fetch")
		c.recordError(err)
		return eval, err
	}

	bars, err := c.history(ctx, req.Ticker, log)
	if err != nil {
		c.recordError(err)
		return eval, fmt.Errorf("fetch history %s: %w", req.Ticker, err)
	}

	res, err := strategy.Compute(req.Ticker, bars, eval.Session)
	if err != nil {
		log.Warn().Err(err).Int("bars", len(bars)).Msg("band computation failed")
		c.recordError(err)
		return eval, err
	}
	eval.Band = res

	if r, err := calculator.RecentRange(bars.Confirmed(), calculator.RecentWindow); err == nil {
		eval.Recent = r
	}

	if c.Metrics != nil {
		c.Metrics.RecordBand(eval.Session.Market, res)
	}
	log.Info().
		Float64("live", res.LivePrice).
		Float64("anchor", res.AnchorClose).
		Float64("buy", res.BuyTarget).
		Float64("sell", res.SellTarget).
		Str("classification", string(res.Classification)).
		Msg("band evaluated")
	return eval, nil
}

func (c *Collector) recordError(err error) {
	if c.Metrics != nil && err != nil {
		c.Metrics.RecordError(strategy.KindOf(err))
	}
}

// history returns the lookback series, reusing a cache entry fetched earlier
// the same day and only refreshing the most recent bars over it.
func (c *Collector) history(ctx context.Context, symbol string, log zerolog.Logger) (model.PriceHistory, error) {
	now := c.Clock.Now().In(c.Clock.Location)

	entry, err := c.Cache.Load(ctx, symbol)
	if err != nil {
		log.Warn().Err(err).Str("cache", c.Cache.Name()).Msg("history cache load failed, fetching full history")
		entry = nil
	}

	if entry != nil && sameDay(entry.FetchedAt, now, c.Clock.Location) && len(entry.Bars) >= strategy.MinBars {
		fresh, err := c.fetch(ctx, symbol, RefreshDays)
		if err != nil {
			return nil, err
		}
		merged := MergeHistory(entry.Bars, fresh, c.Clock.Location)
		if len(merged) > c.Lookback {
			merged = merged[len(merged)-c.Lookback:]
		}
		c.store(ctx, &cache.Entry{Symbol: symbol, Bars: merged, FetchedAt: entry.FetchedAt}, log)
		log.Debug().Int("cached", len(entry.Bars)).Int("fresh", len(fresh)).Msg("history refreshed from cache")
		return merged, nil
	}

	bars, err := c.fetch(ctx, symbol, c.Lookback)
	if err != nil {
		return nil, err
	}
	c.store(ctx, &cache.Entry{Symbol: symbol, Bars: bars, FetchedAt: now}, log)
	return bars, nil
}

func (c *Collector) fetch(ctx context.Context, symbol string, days int) (model.PriceHistory, error) {
	start := time.Now()
	bars, err := c.Fetcher.FetchDailyBars(ctx, symbol, days)
	if c.Metrics != nil {
		c.Metrics.RecordFetch(c.Fetcher.Name(), time.Since(start).Seconds())
	}
	return bars, err
}

func (c *Collector) store(ctx context.Context, entry *cache.Entry, log zerolog.Logger) {
	if len(entry.Bars) == 0 {
		return
	}
	if err := c.Cache.Store(ctx, entry); err != nil {
		log.Warn().Err(err).Str("cache", c.Cache.Name()).Msg("history cache store failed")
	}
}

func dayKey(t time.Time, loc *time.Location) string {
	return t.In(loc).Format("2006-01-02")
}

func sameDay(a, b time.Time, loc *time.Location) bool {
	return dayKey(a, loc) == dayKey(b, loc)
}

// MergeHistory overlays fresh bars on cached ones. Cached bars on or after the
// first fresh bar's calendar day are replaced.
func MergeHistory(cached, fresh model.PriceHistory, loc *time.Location) model.PriceHistory {
	if len(fresh) == 0 {
		return cached.Clone()
	}
	cut := dayKey(fresh[0].Time, loc)
	merged := make(model.PriceHistory, 0, len(cached)+len(fresh))
	for _, b := range cached {
		if dayKey(b.Time, loc) < cut {
			merged = append(merged, b)
		}
	}
	return append(merged, fresh...)
}
