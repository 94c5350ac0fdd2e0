package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	appconfig "stockflow/config"
	"stockflow/internal/models"
	"stockflow/logger"
)

// ErrMiss is returned when no report is cached.
var ErrMiss = errors.New("cache miss")

// kv is the subset of the redis client the cache uses.
type kv interface {
	Set(ctx context.Context, key string, value interface{}, expiration time.Duration) *redis.StatusCmd
	Get(ctx context.Context, key string) *redis.StringCmd
	Del(ctx context.Context, keys ...string) *redis.IntCmd
	Close() error
}

// InsightsCache keeps the latest insights report in Redis so readers do not
// have to go to object storage.
type InsightsCache struct {
	client kv
	prefix string
	ttl    time.Duration
	log    *logger.Log
}

// NewInsightsCache connects to Redis. It returns nil, nil when the cache is
// disabled.
func NewInsightsCache(ctx context.Context, cfg appconfig.RedisConfig) (*InsightsCache, error) {
	if !cfg.Enabled {
		return nil, nil
	}
	client := redis.NewClient(&redis.Options{
		Addr:     cfg.Addr,
		Password: cfg.Password,
		DB:       cfg.DB,
	})

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := client.Ping(pingCtx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("connect redis %s: %w", cfg.Addr, err)
	}

	log := logger.GetLogger()
	log.WithComponent("cache").WithFields(logger.Fields{"addr": cfg.Addr}).Info("connected to redis")
	return newInsightsCache(client, cfg.KeyPrefix, cfg.TTL, log), nil
}

func newInsightsCache(client kv, prefix string, ttl time.Duration, log *logger.Log) *InsightsCache {
	return &InsightsCache{client: client, prefix: prefix, ttl: ttl, log: log}
}

func (c *InsightsCache) key(name string) string {
	if c.prefix == "" {
		return name
	}
	return c.prefix + ":" + name
}

// LatestKey is the key holding the most recent report.
func (c *InsightsCache) LatestKey() string { return c.key("insights:latest") }

// DatedKey is the key holding the report for one as-of date.
func (c *InsightsCache) DatedKey(asOf string) string { return c.key("insights:" + asOf) }

// Put stores report as the latest report and under its as-of date.
func (c *InsightsCache) Put(ctx context.Context, report *models.Insights) error {
	data, err := json.Marshal(report)
	if err != nil {
		return fmt.Errorf("marshal insights: %w", err)
	}
	for _, key := range []string{c.LatestKey(), c.DatedKey(report.AsOf)} {
		if err := c.client.Set(ctx, key, data, c.ttl).Err(); err != nil {
			return fmt.Errorf("cache %s: %w", key, err)
		}
	}
	c.log.WithComponent("cache").WithFields(logger.Fields{"as_of": report.AsOf, "bytes": len(data)}).Debug("cached insights")
	return nil
}

// Latest returns the most recent cached report, or ErrMiss.
func (c *InsightsCache) Latest(ctx context.Context) (*models.Insights, error) {
	return c.get(ctx, c.LatestKey())
}

// ForDate returns the cached report for asOf, or ErrMiss.
func (c *InsightsCache) ForDate(ctx context.Context, asOf string) (*models.Insights, error) {
	return c.get(ctx, c.DatedKey(asOf))
}

func (c *InsightsCache) get(ctx context.Context, key string) (*models.Insights, error) {
	val, err := c.client.Get(ctx, key).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, ErrMiss
	}
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", key, err)
	}
	var report models.Insights
	if err := json.Unmarshal(val, &report); err != nil {
		return nil, fmt.Errorf("decode %s: %w", key, err)
	}
	return &report, nil
}

// Invalidate drops the latest report.
func (c *InsightsCache) Invalidate(ctx context.Context) error {
	return c.client.Del(ctx, c.LatestKey()).Err()
}

// Close closes the redis connection.
func (c *InsightsCache) Close() error {
	if c == nil || c.client == nil {
		return nil
	}
	return c.client.Close()
}
