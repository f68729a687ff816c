package cache

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/redis/go-redis/v9"
)

const keyPrefix = "civic:stats:"

// StatsCache stores public statistics that have already passed the aggregate
// guard. Raw facts are never cached.
type StatsCache struct {
	client *redis.Client
	ttl    time.Duration
}

// NewStatsCache builds a cache. A nil client disables caching.
func NewStatsCache(client *redis.Client, ttl time.Duration) *StatsCache {
	return &StatsCache{client: client, ttl: ttl}
}

// SummaryKey identifies a tenant summary.
func SummaryKey(tenantID string) string { return keyPrefix + "summary:" + tenantID }

// HeatmapKey identifies a tenant heatmap.
func HeatmapKey(tenantID string) string { return keyPrefix + "heatmap:" + tenantID }

// ComparisonKey identifies the cross-tenant comparison.
func ComparisonKey() string { return keyPrefix + "comparison" }

// SensitiveTotalKey identifies the system-wide sensitive total.
func SensitiveTotalKey() string { return keyPrefix + "sensitive-total" }

// Get decodes the cached value for key into dest. It reports false on a miss.
func (c *StatsCache) Get(ctx context.Context, key string, dest any) (bool, error) {
	if c == nil || c.client == nil {
		return false, nil
	}
	raw, err := c.client.Get(ctx, key).Bytes()
	if errors.Is(err, redis.Nil) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	if err := json.Unmarshal(raw, dest); err != nil {
		// a corrupt entry is a miss; drop it so the next write replaces it
		_ = c.client.Del(ctx, key).Err()
		return false, nil
	}
	return true, nil
}

// Set stores value under key with the configured TTL.
func (c *StatsCache) Set(ctx context.Context, key string, value any) error {
	if c == nil || c.client == nil {
		return nil
	}
	raw, err := json.Marshal(value)
	if err != nil {
		return err
	}
	return c.client.Set(ctx, key, raw, c.ttl).Err()
}

// InvalidateTenant drops every entry a new or changed report of tenantID affects.
func (c *StatsCache) InvalidateTenant(ctx context.Context, tenantID string) error {
	if c == nil || c.client == nil {
		return nil
	}
	return c.client.Del(ctx,
		SummaryKey(tenantID),
		HeatmapKey(tenantID),
		ComparisonKey(),
		SensitiveTotalKey(),
	).Err()
}

// InvalidateAll drops every cached statistic.
func (c *StatsCache) InvalidateAll(ctx context.Context) error {
	if c == nil || c.client == nil {
		return nil
	}
	iter := c.client.Scan(ctx, 0, keyPrefix+"*", 100).Iterator()
	var keys []string
	for iter.Next(ctx) {
		keys = append(keys, iter.Val())
	}
	if err := iter.Err(); err != nil {
		return err
	}
	if len(keys) == 0 {
		return nil
	}
	return c.client.Del(ctx, keys...).Err()
}
