package data

import (
	"context"
	"sort"
	"strconv"
	"testing"
	"time"

	"ProxyLane/internal/conf"
	"ProxyLane/internal/model"

	"github.com/alicebob/miniredis/v2"
	"github.com/go-kratos/kratos/v2/log"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestCooldownStore(t *testing.T) (*CooldownStore, *miniredis.Miniredis) {
	t.Helper()
	cache, rdb, mr := setupTestCache(t)
	d, cleanup, err := NewData(&conf.Data{}, log.DefaultLogger, rdb, cache)
	require.NoError(t, err)
	t.Cleanup(cleanup)
	return NewCooldownStore(d, log.DefaultLogger), mr
}

func TestCooldownStore_MarkAndClear(t *testing.T) {
	store, mr := newTestCooldownStore(t)
	ctx := context.Background()

	id := model.Identity{Address: "10.0.0.1", Port: 8080}
	until := time.Now().Add(5 * time.Minute)
	require.NoError(t, store.MarkCooldown(ctx, &model.CooldownEvent{ID: id, ConsecutiveFailures: 3, CooldownUntil: until}))

	key := "cooldown:10.0.0.1:8080"
	assert.True(t, mr.Exists(key))
	val, err := mr.Get(key)
	require.NoError(t, err)
	assert.Equal(t, strconv.FormatInt(until.Unix(), 10), val)
	ttl := mr.TTL(key)
	assert.True(t, ttl > 4*time.Minute && ttl <= 5*time.Minute, "ttl %s", ttl)

	ids, err := store.CoolingDown(ctx)
	require.NoError(t, err)
	assert.Equal(t, []model.Identity{id}, ids)

	require.NoError(t, store.ClearCooldown(ctx, id))
	assert.False(t, mr.Exists(key))
}

func TestCooldownStore_Expiry(t *testing.T) {
	store, mr := newTestCooldownStore(t)
	ctx := context.Background()

	id := model.Identity{Address: "proxy.example.com", Port: 3128}
	require.NoError(t, store.MarkCooldown(ctx, &model.CooldownEvent{ID: id, CooldownUntil: time.Now().Add(time.Minute)}))

	mr.FastForward(2 * time.Minute)

	ids, err := store.CoolingDown(ctx)
	require.NoError(t, err)
	assert.Empty(t, ids)
}

func TestCooldownStore_PastDeadlineIsNoop(t *testing.T) {
	store, mr := newTestCooldownStore(t)

	id := model.Identity{Address: "10.0.0.2", Port: 80}
	err := store.MarkCooldown(context.Background(), &model.CooldownEvent{ID: id, CooldownUntil: time.Now().Add(-time.Second)})
	require.NoError(t, err)
	assert.Empty(t, mr.Keys())
}

func TestCooldownStore_CoolingDownSkipsOtherKeys(t *testing.T) {
	store, mr := newTestCooldownStore(t)
	ctx := context.Background()

	for _, id := range []model.Identity{{Address: "10.0.0.1", Port: 1}, {Address: "10.0.0.2", Port: 2}} {
		require.NoError(t, store.MarkCooldown(ctx, &model.CooldownEvent{ID: id, CooldownUntil: time.Now().Add(time.Minute)}))
	}
	require.NoError(t, mr.Set("health:last", "{}"))
	require.NoError(t, mr.Set("cooldown:garbage", "1"))

	ids, err := store.CoolingDown(ctx)
	require.NoError(t, err)
	sort.Slice(ids, func(i, j int) bool { return ids[i].Port < ids[j].Port })
	assert.Equal(t, []model.Identity{{Address: "10.0.0.1", Port: 1}, {Address: "10.0.0.2", Port: 2}}, ids)
}

func TestCooldownStore_Degraded(t *testing.T) {
	ctx := context.Background()
	id := model.Identity{Address: "10.0.0.1", Port: 8080}
	ev := &model.CooldownEvent{ID: id, CooldownUntil: time.Now().Add(time.Minute)}

	t.Run("nil client", func(t *testing.T) {
		d, cleanup, err := NewData(&conf.Data{}, log.DefaultLogger, nil, NewCacheClient(nil))
		require.NoError(t, err)
		defer cleanup()
		store := NewCooldownStore(d, log.DefaultLogger)
		assert.ErrorIs(t, store.MarkCooldown(ctx, ev), errRedisUnavailable)
		assert.ErrorIs(t, store.ClearCooldown(ctx, id), errRedisUnavailable)
		_, err = store.CoolingDown(ctx)
		assert.ErrorIs(t, err, errRedisUnavailable)
	})

	t.Run("server down", func(t *testing.T) {
		store, mr := newTestCooldownStore(t)
		mr.Close()

		assert.Error(t, store.MarkCooldown(ctx, ev))
		assert.Error(t, store.ClearCooldown(ctx, id))
		_, err := store.CoolingDown(ctx)
		assert.Error(t, err)
	})
}

func TestParseIdentity(t *testing.T) {
	id, err := parseIdentity("10.0.0.1:8080")
	require.NoError(t, err)
	assert.Equal(t, model.Identity{Address: "10.0.0.1", Port: 8080}, id)

	_, err = parseIdentity("no-port")
	assert.Error(t, err)
	_, err = parseIdentity("host:abc")
	assert.Error(t, err)
}
