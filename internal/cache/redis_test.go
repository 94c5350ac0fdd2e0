package cache

import (
	"context"
	"testing"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	appconfig "stockflow/config"
	"stockflow/internal/models"
	"stockflow/logger"
)

type fakeRedis struct {
	data map[string]string
	ttls map[string]time.Duration
}

func newFakeRedis() *fakeRedis {
	return &fakeRedis{data: map[string]string{}, ttls: map[string]time.Duration{}}
}

func (f *fakeRedis) Set(_ context.Context, key string, value interface{}, ttl time.Duration) *redis.StatusCmd {
	switch v := value.(type) {
	case []byte:
		f.data[key] = string(v)
	case string:
		f.data[key] = v
	}
	f.ttls[key] = ttl
	return redis.NewStatusResult("OK", nil)
}

func (f *fakeRedis) Get(_ context.Context, key string) *redis.StringCmd {
	v, ok := f.data[key]
	if !ok {
		return redis.NewStringResult("", redis.Nil)
	}
	return redis.NewStringResult(v, nil)
}

func (f *fakeRedis) Del(_ context.Context, keys ...string) *redis.IntCmd {
	var n int64
	for _, k := range keys {
		if _, ok := f.data[k]; ok {
			delete(f.data, k)
			n++
		}
	}
	return redis.NewIntResult(n, nil)
}

func (f *fakeRedis) Close() error { return nil }

func TestInsightsCachePutAndGet(t *testing.T) {
	ctx := context.Background()
	fake := newFakeRedis()
	c := newInsightsCache(fake, "stockflow", time.Hour, logger.GetLogger())

	report := &models.Insights{AsOf: "2024-01-05", TradingSignals: map[string]int64{"BUY": 2}}
	require.NoError(t, c.Put(ctx, report))

	assert.Equal(t, "stockflow:insights:latest", c.LatestKey())
	assert.Equal(t, time.Hour, fake.ttls["stockflow:insights:2024-01-05"])

	got, err := c.Latest(ctx)
	require.NoError(t, err)
	assert.Equal(t, report, got)

	got, err = c.ForDate(ctx, "2024-01-05")
	require.NoError(t, err)
	assert.Equal(t, int64(2), got.TradingSignals["BUY"])
}

func TestInsightsCacheMiss(t *testing.T) {
	ctx := context.Background()
	c := newInsightsCache(newFakeRedis(), "", 0, logger.GetLogger())

	_, err := c.Latest(ctx)
	assert.ErrorIs(t, err, ErrMiss)

	require.NoError(t, c.Put(ctx, &models.Insights{AsOf: "2024-01-05"}))
	require.NoError(t, c.Invalidate(ctx))
	_, err = c.Latest(ctx)
	assert.ErrorIs(t, err, ErrMiss)
	_, err = c.ForDate(ctx, "2024-01-05")
	assert.NoError(t, err, "dated entry survives invalidation")
}

func TestNewInsightsCacheDisabled(t *testing.T) {
	c, err := NewInsightsCache(context.Background(), appconfig.RedisConfig{Enabled: false})
	require.NoError(t, err)
	assert.Nil(t, c)
	assert.NoError(t, c.Close())
}
