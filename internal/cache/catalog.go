// Copyright (c) 2026 Madalin Gabriel Ignisca <hi@madalin.me>
// Copyright (c) 2026 Vlah Software House SRL <contact@vlah.sh>
// All rights reserved. See LICENSE for details.

// catalog.go caches encoded category responses in Valkey. The public tree
// is read far more often than the forest changes, so the JSON body is
// stored and served as-is until the next mutation clears it.
package cache

import (
	"context"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

const (
	// keyPrefix is the Valkey key prefix for every cached category response.
	keyPrefix = "categories:"

	// DefaultTTL is how long a cached response lives without a mutation.
	DefaultTTL = 10 * time.Minute
)

// CatalogCache stores encoded category responses in Valkey.
type CatalogCache struct {
	client *redis.Client
	ttl    time.Duration
}

// NewCatalogCache creates a cache backed by the given Valkey client.
func NewCatalogCache(client *redis.Client, ttl time.Duration) *CatalogCache {
	if ttl == 0 {
		ttl = DefaultTTL
	}
	return &CatalogCache{client: client, ttl: ttl}
}

// TreeKey is the key of the full public tree.
func TreeKey() string {
	return "tree"
}

// SchemaKey is the key of one category's field schema.
func SchemaKey(categoryID uuid.UUID) string {
	return "schema:" + categoryID.String()
}

// Get returns the cached body for key. Errors count as a miss.
func (c *CatalogCache) Get(ctx context.Context, key string) ([]byte, bool) {
	val, err := c.client.Get(ctx, keyPrefix+key).Bytes()
	if err == redis.Nil {
		return nil, false
	}
	if err != nil {
		slog.Warn("catalog cache get error", "key", key, "error", err)
		return nil, false
	}
	slog.Debug("catalog cache hit", "key", key)
	return val, true
}

// Set stores body under key with the configured TTL.
func (c *CatalogCache) Set(ctx context.Context, key string, body []byte) {
	if err := c.client.Set(ctx, keyPrefix+key, body, c.ttl).Err(); err != nil {
		slog.Warn("catalog cache set error", "key", key, "error", err)
	}
}

// InvalidateAll removes every cached category response.
func (c *CatalogCache) InvalidateAll(ctx context.Context) {
	var cursor uint64
	var deleted int
	for {
		keys, next, err := c.client.Scan(ctx, cursor, keyPrefix+"*", 100).Result()
		if err != nil {
			slog.Warn("catalog cache scan error", "error", err)
			return
		}
		if len(keys) > 0 {
			if err := c.client.Del(ctx, keys...).Err(); err != nil {
				slog.Warn("catalog cache bulk delete error", "error", err)
			}
			deleted += len(keys)
		}
		cursor = next
		if cursor == 0 {
			break
		}
	}
	if deleted > 0 {
		slog.Info("catalog cache cleared", "deleted", deleted)
	}
}

// Invalidator returns a change listener that clears the cache after every
// committed catalog mutation.
func (c *CatalogCache) Invalidator() func(ctx context.Context, op string) {
	return func(ctx context.Context, op string) {
		c.InvalidateAll(context.WithoutCancel(ctx))
		slog.Debug("catalog cache invalidated", "op", op)
	}
}
