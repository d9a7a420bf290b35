// Package redis is the shared cache driver used when several token service
// replicas sit behind discovery.
package redis

import (
	"context"
	"errors"
	"fmt"
	"time"

	goredis "github.com/redis/go-redis/v9"

	"github.com/aussiebroadwan/tollgate/internal/token/cache"
	"github.com/aussiebroadwan/tollgate/pkg/tokenx"
)

// DefaultURL is used when APP_REDIS is unset.
const DefaultURL = "redis://127.0.0.1:6379/0"

type Cache struct {
	client *goredis.Client
}

var _ cache.Cache = (*Cache)(nil)

// Open parses a redis:// or rediss:// URL and returns a driver. No
// connection is made until the first command; call Ping to fail fast.
func Open(url string) (*Cache, error) {
	if url == "" {
		url = DefaultURL
	}

	opts, err := goredis.ParseURL(url)
	if err != nil {
		return nil, fmt.Errorf("redis: parse url: %w", err)
	}
	return New(goredis.NewClient(opts)), nil
}

// New wraps an existing client. Close closes it.
func New(client *goredis.Client) *Cache {
	return &Cache{client: client}
}

func (c *Cache) Get(ctx context.Context, sub string, kind tokenx.Kind) (string, bool, error) {
	wire, err := c.client.Get(ctx, cache.Key(sub, kind)).Result()
	switch {
	case errors.Is(err, goredis.Nil):
		return "", false, nil
	case err != nil:
		return "", false, fmt.Errorf("redis: get: %w", err)
	}
	return wire, true, nil
}

func (c *Cache) Set(ctx context.Context, sub string, kind tokenx.Kind, wire string, ttl time.Duration) error {
	if ttl <= 0 {
		return nil
	}
	if err := c.client.Set(ctx, cache.Key(sub, kind), wire, ttl).Err(); err != nil {
		return fmt.Errorf("redis: set: %w", err)
	}
	return nil
}

func (c *Cache) Del(ctx context.Context, sub string, kind tokenx.Kind) error {
	if err := c.client.Del(ctx, cache.Key(sub, kind)).Err(); err != nil {
		return fmt.Errorf("redis: del: %w", err)
	}
	return nil
}

func (c *Cache) Ping(ctx context.Context) error {
	return c.client.Ping(ctx).Err()
}

func (c *Cache) Close() error {
	return c.client.Close()
}
