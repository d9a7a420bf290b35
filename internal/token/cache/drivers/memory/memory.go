// Package memory is an in-process cache driver backed by ristretto. It is
// meant for a single token service instance and for tests.
package memory

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/dgraph-io/ristretto/v2"

	"github.com/aussiebroadwan/tollgate/internal/token/cache"
	"github.com/aussiebroadwan/tollgate/pkg/tokenx"
)

// Config sizes the underlying ristretto cache. Cost is measured in bytes of
// wire token.
type Config struct {
	NumCounters int64 // keys tracked for admission, ~10x the expected entries
	MaxCost     int64 // total bytes kept
}

// DefaultConfig fits roughly 100k token pairs.
func DefaultConfig() Config {
	return Config{
		NumCounters: 1_000_000,
		MaxCost:     64 << 20,
	}
}

type Cache struct {
	entries *ristretto.Cache[string, string]

	mu     sync.RWMutex
	closed bool
}

var _ cache.Cache = (*Cache)(nil)

func New(cfg Config) (*Cache, error) {
	def := DefaultConfig()
	if cfg.NumCounters <= 0 {
		cfg.NumCounters = def.NumCounters
	}
	if cfg.MaxCost <= 0 {
		cfg.MaxCost = def.MaxCost
	}

	entries, err := ristretto.NewCache(&ristretto.Config[string, string]{
		NumCounters:        cfg.NumCounters,
		MaxCost:            cfg.MaxCost,
		BufferItems:        64,
		IgnoreInternalCost: true,
	})
	if err != nil {
		return nil, fmt.Errorf("memory: init ristretto: %w", err)
	}
	return &Cache{entries: entries}, nil
}

func (c *Cache) Get(_ context.Context, sub string, kind tokenx.Kind) (string, bool, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if c.closed {
		return "", false, cache.ErrClosed
	}

	wire, ok := c.entries.Get(cache.Key(sub, kind))
	return wire, ok, nil
}

// Set blocks until the write buffer drains so a following Get observes it.
// ristretto may still refuse admission under memory pressure, in which case
// the entry is silently absent; that is a cache miss like any other.
func (c *Cache) Set(_ context.Context, sub string, kind tokenx.Kind, wire string, ttl time.Duration) error {
	if ttl <= 0 {
		return nil
	}

	c.mu.RLock()
	defer c.mu.RUnlock()
	if c.closed {
		return cache.ErrClosed
	}

	c.entries.SetWithTTL(cache.Key(sub, kind), wire, int64(len(wire)), ttl)
	c.entries.Wait()
	return nil
}

func (c *Cache) Del(_ context.Context, sub string, kind tokenx.Kind) error {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if c.closed {
		return cache.ErrClosed
	}

	c.entries.Del(cache.Key(sub, kind))
	c.entries.Wait()
	return nil
}

func (c *Cache) Ping(context.Context) error {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if c.closed {
		return cache.ErrClosed
	}
	return nil
}

func (c *Cache) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return nil
	}
	c.closed = true
	c.entries.Close()
	return nil
}
