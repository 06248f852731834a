package data

import (
	"context"
	"testing"
	"time"

	"ProxyLane/internal/conf"
	"ProxyLane/internal/model"

	"github.com/go-kratos/kratos/v2/log"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewData_WithRedis(t *testing.T) {
	cache, rdb, _ := setupTestCache(t)

	data, cleanup, err := NewData(&conf.Data{}, log.DefaultLogger, rdb, cache)
	require.NoError(t, err)
	defer cleanup()

	assert.Equal(t, rdb, data.GetRedisClient())
	assert.Equal(t, cache, data.GetCache())
}

func TestNewData_WithoutRedis(t *testing.T) {
	data, cleanup, err := NewData(&conf.Data{}, log.DefaultLogger, nil, nil)
	require.NoError(t, err)
	defer cleanup()

	assert.Nil(t, data.GetRedisClient())
	assert.Nil(t, data.GetCache())
}

func TestHealthResultStore(t *testing.T) {
	cache, rdb, mr := setupTestCache(t)
	data, cleanup, err := NewData(&conf.Data{}, log.DefaultLogger, rdb, cache)
	require.NoError(t, err)
	defer cleanup()

	store := NewHealthResultStore(data, log.DefaultLogger)
	ctx := context.Background()

	last, err := store.LastResult(ctx)
	require.NoError(t, err)
	assert.Nil(t, last, "no batch has run yet")

	finished := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	in := &model.HealthCheckResult{
		Total:           10,
		Healthy:         7,
		Unhealthy:       3,
		AvgLatencyMs:    230.45,
		DurationSeconds: 4.2,
		FinishedAt:      finished,
	}
	require.NoError(t, store.SaveLastResult(ctx, in))
	assert.True(t, mr.Exists(KeyLastHealthResult))
	assert.Equal(t, TTLHealthResult, mr.TTL(KeyLastHealthResult))

	last, err = store.LastResult(ctx)
	require.NoError(t, err)
	require.NotNil(t, last)
	assert.Equal(t, 7, last.Healthy)
	assert.Equal(t, 230.45, last.AvgLatencyMs)
	assert.True(t, finished.Equal(last.FinishedAt))
}

func TestHealthResultStore_RedisDown(t *testing.T) {
	cache, rdb, mr := setupTestCache(t)
	data, cleanup, err := NewData(&conf.Data{}, log.DefaultLogger, rdb, cache)
	require.NoError(t, err)
	defer cleanup()

	store := NewHealthResultStore(data, log.DefaultLogger)
	mr.Close()

	ctx := context.Background()
	assert.Error(t, store.SaveLastResult(ctx, &model.HealthCheckResult{Total: 1}))
	last, err := store.LastResult(ctx)
	assert.Error(t, err)
	assert.Nil(t, last)
}
