// Package cache provides the Redis-backed fast cache used as the first read
// layer. The cache is best-effort: callers treat every error here as a miss
// and a write failure never fails the overall read.
package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/squadfinder/game-catalog-server/internal/config"
)

// SearchKeyPrefix namespaces cached search results so the synchronizer can
// invalidate them en masse.
const SearchKeyPrefix = "search:"

var (
	// ErrCacheMiss is returned when the key is absent.
	ErrCacheMiss = errors.New("cache miss")

	// ErrCacheDisabled is returned when no cache backend is configured.
	ErrCacheDisabled = errors.New("cache disabled")
)

// SearchCache caches search results as lists of upstream identifiers keyed
// by normalized query.
type SearchCache struct {
	client redis.UniversalClient
	ttl    time.Duration
}

// New creates a SearchCache from the given configuration. An empty address
// disables the cache. A failed initial ping is logged but does not fail
// startup: the cache may become reachable later, and the read path treats
// cache errors as misses either way.
func New(ctx context.Context, cfg config.RedisConfig) *SearchCache {
	if cfg.Addr == "" {
		slog.Info("Fast cache disabled, reads start at the durable store")
		return &SearchCache{ttl: cfg.SearchTTL()}
	}

	client := redis.NewClient(&redis.Options{
		Addr:        cfg.Addr,
		Password:    cfg.GetPassword(),
		DB:          cfg.DB,
		DialTimeout: cfg.GetDialTimeout(),
	})

	pingCtx, cancel := context.WithTimeout(ctx, cfg.GetDialTimeout())
	defer cancel()

	if err := client.Ping(pingCtx).Err(); err != nil {
		slog.Warn("Fast cache unreachable at startup, continuing without it",
			"addr", cfg.Addr, "error", err)
	} else {
		slog.Info("Fast cache connected", "addr", cfg.Addr, "ttl", cfg.SearchTTL())
	}

	return &SearchCache{client: client, ttl: cfg.SearchTTL()}
}

// SearchKey derives the cache key for a search term. The term must already
// be normalized by the caller.
func SearchKey(normalizedTerm string) string {
	return SearchKeyPrefix + normalizedTerm
}

// NormalizeTerm canonicalizes a free-text search term for cache keying.
func NormalizeTerm(term string) string {
	return strings.ToLower(strings.TrimSpace(term))
}

// GetIDs returns the cached identifier list for the key, or ErrCacheMiss.
func (c *SearchCache) GetIDs(ctx context.Context, key string) ([]int64, error) {
	if c.client == nil {
		return nil, ErrCacheDisabled
	}

	raw, err := c.client.Get(ctx, key).Result()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, ErrCacheMiss
		}
		return nil, fmt.Errorf("failed to read cache key %s: %w", key, err)
	}

	var ids []int64
	if err := json.Unmarshal([]byte(raw), &ids); err != nil {
		return nil, fmt.Errorf("failed to decode cache entry %s: %w", key, err)
	}
	return ids, nil
}

// SetIDs stores an identifier list under the key with the configured TTL.
// Empty lists are rejected: caching an empty result would suppress future
// discovery of newly added records.
func (c *SearchCache) SetIDs(ctx context.Context, key string, ids []int64) error {
	if c.client == nil {
		return ErrCacheDisabled
	}
	if len(ids) == 0 {
		return fmt.Errorf("refusing to cache empty result for key %s", key)
	}

	raw, err := json.Marshal(ids)
	if err != nil {
		return fmt.Errorf("failed to encode cache entry %s: %w", key, err)
	}

	if err := c.client.Set(ctx, key, raw, c.ttl).Err(); err != nil {
		return fmt.Errorf("failed to write cache key %s: %w", key, err)
	}
	return nil
}

// DeleteByPrefix removes all keys under the given prefix using SCAN so the
// server never blocks on a full keyspace listing.
func (c *SearchCache) DeleteByPrefix(ctx context.Context, prefix string) error {
	if c.client == nil {
		return ErrCacheDisabled
	}

	iter := c.client.Scan(ctx, 0, prefix+"*", 100).Iterator()
	deleted := 0
	for iter.Next(ctx) {
		if err := c.client.Del(ctx, iter.Val()).Err(); err != nil {
			return fmt.Errorf("failed to delete cache key %s: %w", iter.Val(), err)
		}
		deleted++
	}
	if err := iter.Err(); err != nil {
		return fmt.Errorf("failed to scan cache keys with prefix %s: %w", prefix, err)
	}

	slog.Debug("Invalidated cache entries", "prefix", prefix, "count", deleted)
	return nil
}
