// Package sqlite is a file-backed cache driver. Rows outlive their TTL until
// read (ignored) or swept by PurgeExpired, which the housekeeping worker
// calls periodically.
package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	_ "modernc.org/sqlite"

	"github.com/aussiebroadwan/tollgate/internal/token/cache"
	"github.com/aussiebroadwan/tollgate/pkg/clock"
	"github.com/aussiebroadwan/tollgate/pkg/tokenx"
)

type Cache struct {
	db    *sql.DB
	clock clock.Clock
}

var (
	_ cache.Cache  = (*Cache)(nil)
	_ cache.Purger = (*Cache)(nil)
)

// Open opens (or creates) the database at dsn and applies migrations. Use
// "file::memory:?cache=shared" style DSNs for throwaway databases. A nil clk
// means the real clock.
func Open(dsn string, clk clock.Clock) (*Cache, error) {
	if clk == nil {
		clk = clock.Real()
	}

	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("sqlite: open: %w", err)
	}

	// sqlite allows a single writer.
	db.SetMaxOpenConns(1)

	if _, err := db.ExecContext(context.Background(), `PRAGMA journal_mode = WAL;`); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("sqlite: pragma: %w", err)
	}

	c := &Cache{db: db, clock: clk}
	if err := c.ApplyMigrations(); err != nil {
		_ = db.Close()
		return nil, err
	}
	return c, nil
}

func (c *Cache) Get(ctx context.Context, sub string, kind tokenx.Kind) (string, bool, error) {
	var wire string
	err := c.db.QueryRowContext(ctx,
		`SELECT value FROM token_cache WHERE key = ? AND expires_at > ?`,
		cache.Key(sub, kind), c.clock.Now().UnixMilli(),
	).Scan(&wire)

	switch {
	case errors.Is(err, sql.ErrNoRows):
		return "", false, nil
	case err != nil:
		return "", false, fmt.Errorf("sqlite: get: %w", err)
	}
	return wire, true, nil
}

func (c *Cache) Set(ctx context.Context, sub string, kind tokenx.Kind, wire string, ttl time.Duration) error {
	if ttl <= 0 {
		return nil
	}

	expiresAt := c.clock.Now().Add(ttl).UnixMilli()
	_, err := c.db.ExecContext(ctx, `
		INSERT INTO token_cache (key, value, expires_at) VALUES (?, ?, ?)
		ON CONFLICT (key) DO UPDATE SET value = excluded.value, expires_at = excluded.expires_at`,
		cache.Key(sub, kind), wire, expiresAt,
	)
	if err != nil {
		return fmt.Errorf("sqlite: set: %w", err)
	}
	return nil
}

func (c *Cache) Del(ctx context.Context, sub string, kind tokenx.Kind) error {
	if _, err := c.db.ExecContext(ctx, `DELETE FROM token_cache WHERE key = ?`, cache.Key(sub, kind)); err != nil {
		return fmt.Errorf("sqlite: del: %w", err)
	}
	return nil
}

// PurgeExpired deletes rows whose TTL has passed and reports how many went.
func (c *Cache) PurgeExpired(ctx context.Context) (int64, error) {
	res, err := c.db.ExecContext(ctx, `DELETE FROM token_cache WHERE expires_at <= ?`, c.clock.Now().UnixMilli())
	if err != nil {
		return 0, fmt.Errorf("sqlite: purge: %w", err)
	}
	return res.RowsAffected()
}

func (c *Cache) Ping(ctx context.Context) error {
	return c.db.PingContext(ctx)
}

func (c *Cache) Close() error { return c.db.Close() }
