package cache

import (
	"context"
	"database/sql"
	"fmt"
	"sync"
	"time"

	"DipSentinel/internal/model"

	"github.com/rs/zerolog"
	_ "modernc.org/sqlite"
)

// SQLiteCache keeps history in a local SQLite database.
type SQLiteCache struct {
	db  *sql.DB
	mu  sync.Mutex
	log zerolog.Logger
}

// NewSQLiteCache opens (or creates) the SQLite database and runs migrations.
func NewSQLiteCache(dbPath string, log zerolog.Logger) (*SQLiteCache, error) {
	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}

	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		db.Close()
		return nil, fmt.Errorf("set WAL mode: %w", err)
	}

	c := &SQLiteCache{db: db, log: log}
	if err := c.migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("migrate: %w", err)
	}

	log.Info().Str("path", dbPath).Msg("sqlite history cache opened")
	return c, nil
}

func (c *SQLiteCache) migrate() error {
	stmts := []string{
		`CREATE TABLE IF NOT EXISTS history_meta (
			symbol     TEXT PRIMARY KEY,
			fetched_at INTEGER NOT NULL
		)`,
		`CREATE TABLE IF NOT EXISTS history_bars (
			symbol    TEXT    NOT NULL,
			timestamp INTEGER NOT NULL,
			open      REAL,
			high      REAL,
			low       REAL,
			close     REAL NOT NULL,
			volume    REAL,
			PRIMARY KEY (symbol, timestamp)
		)`,
	}
	for _, s := range stmts {
		if _, err := c.db.Exec(s); err != nil {
			return fmt.Errorf("exec %q: %w", s[:40], err)
		}
	}
	return nil
}

func (c *SQLiteCache) Name() string { return "sqlite" }

func (c *SQLiteCache) Load(ctx context.Context, symbol string) (*Entry, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	var fetchedAt int64
	err := c.db.QueryRowContext(ctx,
		`SELECT fetched_at FROM history_meta WHERE symbol = ?`, symbol).Scan(&fetchedAt)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("load meta %s: %w", symbol, err)
	}

	rows, err := c.db.QueryContext(ctx, `SELECT timestamp, open, high, low, close, volume
		FROM history_bars WHERE symbol = ? ORDER BY timestamp ASC`, symbol)
	if err != nil {
		return nil, fmt.Errorf("load bars %s: %w", symbol, err)
	}
	defer rows.Close()

	var bars model.PriceHistory
	for rows.Next() {
		var ts int64
		var b model.OHLCV
		if err := rows.Scan(&ts, &b.Open, &b.High, &b.Low, &b.Close, &b.Volume); err != nil {
			return nil, fmt.Errorf("scan bar %s: %w", symbol, err)
		}
		b.Time = time.Unix(ts, 0)
		bars = append(bars, b)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate bars %s: %w", symbol, err)
	}

	return &Entry{Symbol: symbol, Bars: bars, FetchedAt: time.Unix(fetchedAt, 0)}, nil
}

// Store replaces everything cached for the symbol in one transaction.
func (c *SQLiteCache) Store(ctx context.Context, entry *Entry) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	tx, err := c.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, `DELETE FROM history_bars WHERE symbol = ?`, entry.Symbol); err != nil {
		return fmt.Errorf("clear bars %s: %w", entry.Symbol, err)
	}
	stmt, err := tx.PrepareContext(ctx, `INSERT INTO history_bars
		(symbol, timestamp, open, high, low, close, volume) VALUES (?,?,?,?,?,?,?)`)
	if err != nil {
		return fmt.Errorf("prepare insert: %w", err)
	}
	defer stmt.Close()
	for _, b := range entry.Bars {
		if _, err := stmt.ExecContext(ctx, entry.Symbol, b.Time.Unix(),
			b.Open, b.High, b.Low, b.Close, b.Volume); err != nil {
			return fmt.Errorf("insert bar %s: %w", entry.Symbol, err)
		}
	}
	if _, err := tx.ExecContext(ctx, `INSERT INTO history_meta (symbol, fetched_at) VALUES (?, ?)
		ON CONFLICT(symbol) DO UPDATE SET fetched_at = excluded.fetched_at`,
		entry.Symbol, entry.FetchedAt.Unix()); err != nil {
		return fmt.Errorf("upsert meta %s: %w", entry.Symbol, err)
	}
	return tx.Commit()
}

func (c *SQLiteCache) Close() error {
	c.log.Info().Msg("closing sqlite history cache")
	return c.db.Close()
}
