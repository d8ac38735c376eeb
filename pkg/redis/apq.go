package redis

import (
	"context"
	"log/slog"
	"time"

	"github.com/redis/go-redis/v9"
)

const apqPrefix = "apq:"

// QueryCache stores automatic persisted queries in Redis. It satisfies
// gqlgen's graphql.Cache[string].
type QueryCache struct {
	client redis.UniversalClient
	ttl    time.Duration
	logger *slog.Logger
}

// NewQueryCache creates a QueryCache whose entries expire after ttl.
func NewQueryCache(client redis.UniversalClient, ttl time.Duration, logger *slog.Logger) *QueryCache {
	if logger == nil {
		logger = slog.Default()
	}
	return &QueryCache{client: client, ttl: ttl, logger: logger}
}

// Get returns the query text stored under the persisted-query hash.
func (c *QueryCache) Get(ctx context.Context, key string) (string, bool) {
	s, err := c.client.Get(ctx, apqPrefix+key).Result()
	if err != nil {
		if err != redis.Nil {
			c.logger.Warn("persisted query lookup failed", "error", err)
		}
		return "", false
	}
	return s, true
}

// Add stores query text under its hash.
func (c *QueryCache) Add(ctx context.Context, key string, value string) {
	if err := c.client.Set(ctx, apqPrefix+key, value, c.ttl).Err(); err != nil {
		c.logger.Warn("persisted query store failed", "error", err)
	}
}
