// Package cache stores fetched daily history so repeated checks on the same
// day only need a short refresh from the provider.
package cache

import (
	"context"
	"time"

	"DipSentinel/internal/model"
)

// Entry is a cached history snapshot.
type Entry struct {
	Symbol    string
	Bars      model.PriceHistory
	FetchedAt time.Time
}

// HistoryCache persists fetched history per symbol. Load returns (nil, nil) on a miss.
type HistoryCache interface {
	Load(ctx context.Context, symbol string) (*Entry, error)
	Store(ctx context.Context, entry *Entry) error
	Name() string
	Close() error
}

// NoopCache never hits. Used when caching is disabled.
type NoopCache struct{}

func NewNoopCache() *NoopCache { return &NoopCache{} }

func (n *NoopCache) Load(_ context.Context, _ string) (*Entry, error) { return nil, nil }
func (n *NoopCache) Store(_ context.Context, _ *Entry) error          { return nil }
func (n *NoopCache) Name() string                                     { return "none" }
func (n *NoopCache) Close() error                                     { return nil }
