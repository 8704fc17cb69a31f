package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// RedisConfig holds connection parameters for the Redis backend.
type RedisConfig struct {
	Addr     string
	Password string
	DB       int
	TTL      time.Duration
}

// RedisCache stores each symbol's history as one JSON value at "history:{symbol}".
type RedisCache struct {
	rdb *redis.Client
	ttl time.Duration
}

// NewRedisCache connects and pings the server.
func NewRedisCache(ctx context.Context, cfg RedisConfig) (*RedisCache, error) {
	rdb := redis.NewClient(&redis.Options{
		Addr:     cfg.Addr,
		Password: cfg.Password,
		DB:       cfg.DB,
	})
	if err := rdb.Ping(ctx).Err(); err != nil {
		_ = rdb.Close()
		return nil, fmt.Errorf("redis: ping: %w", err)
	}
	return newRedisCache(rdb, cfg.TTL), nil
}

func newRedisCache(rdb *redis.Client, ttl time.Duration) *RedisCache {
	return &RedisCache{rdb: rdb, ttl: ttl}
}

func historyKey(symbol string) string {
	return "history:" + symbol
}

func (c *RedisCache) Name() string { return "redis" }

func (c *RedisCache) Load(ctx context.Context, symbol string) (*Entry, error) {
	raw, err := c.rdb.Get(ctx, historyKey(symbol)).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("redis: get history %s: %w", symbol, err)
	}
	var entry Entry
	if err := json.Unmarshal(raw, &entry); err != nil {
		return nil, fmt.Errorf("redis: decode history %s: %w", symbol, err)
	}
	return &entry, nil
}

func (c *RedisCache) Store(ctx context.Context, entry *Entry) error {
	raw, err := json.Marshal(entry)
	if err != nil {
		return fmt.Errorf("redis: encode history %s: %w", entry.Symbol, err)
	}
	if err := c.rdb.Set(ctx, historyKey(entry.Symbol), raw, c.ttl).Err(); err != nil {
		return fmt.Errorf("redis: set history %s: %w", entry.Symbol, err)
	}
	return nil
}

func (c *RedisCache) Close() error {
	return c.rdb.Close()
}
