package cache

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/magabrotheeeer/subscription-bot/internal/config"
	"github.com/magabrotheeeer/subscription-bot/internal/models"
)

func setupTestCache(t *testing.T) (*Cache, *miniredis.Miniredis) {
	mr, err := miniredis.Run()
	require.NoError(t, err)

	t.Cleanup(func() { mr.Close() })

	cfg := config.RedisConnection{
		AddressRedis: mr.Addr(),
	}

	cache, err := InitServer(context.Background(), cfg)
	require.NoError(t, err)
	t.Cleanup(func() { _ = cache.Close() })
	return cache, mr
}

func TestSetAndGetSubscriber(t *testing.T) {
	cache, _ := setupTestCache(t)
	ctx := context.Background()

	expected := models.Subscriber{
		ChatID:   42,
		Username: "alice",
		Tag:      models.DefaultTag,
		Annual:   models.ActiveUntil(time.Date(2025, time.January, 1, 0, 0, 0, 0, time.UTC)),
	}
	require.NoError(t, cache.Set(ctx, SubscriberKey(42), expected, time.Minute))

	var actual models.Subscriber
	found, err := cache.Get(ctx, SubscriberKey(42), &actual)
	require.NoError(t, err)
	require.True(t, found)
	assert.Equal(t, expected.Annual, actual.Annual)
	assert.Equal(t, expected.Username, actual.Username)
}

func TestGetNotFound(t *testing.T) {
	cache, _ := setupTestCache(t)

	var out models.Subscriber
	found, err := cache.Get(context.Background(), "no_such_key", &out)
	require.NoError(t, err)
	assert.False(t, found)
}

func TestInvalidate(t *testing.T) {
	cache, _ := setupTestCache(t)
	ctx := context.Background()

	require.NoError(t, cache.Set(ctx, "key", "value", time.Minute))
	require.NoError(t, cache.Invalidate(ctx, "key"))

	var out string
	found, err := cache.Get(ctx, "key", &out)
	require.NoError(t, err)
	assert.False(t, found)
}

func TestSetExpires(t *testing.T) {
	cache, mr := setupTestCache(t)
	ctx := context.Background()

	require.NoError(t, cache.Set(ctx, "key", "value", time.Minute))
	mr.FastForward(2 * time.Minute)

	var out string
	found, err := cache.Get(ctx, "key", &out)
	require.NoError(t, err)
	assert.False(t, found)
}

func TestGetInvalidJSON(t *testing.T) {
	cache, _ := setupTestCache(t)

	err := cache.Db.Set(context.Background(), "bad", []byte("not-json"), time.Minute).Err()
	require.NoError(t, err)

	var out models.Subscriber
	found, err := cache.Get(context.Background(), "bad", &out)
	assert.False(t, found)
	assert.Error(t, err)
}

func TestAcquireRelease(t *testing.T) {
	cache, mr := setupTestCache(t)
	ctx := context.Background()
	key := "42:monthly_soon:2024-01-29"

	ok, err := cache.Acquire(ctx, key, 48*time.Hour)
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = cache.Acquire(ctx, key, 48*time.Hour)
	require.NoError(t, err)
	assert.False(t, ok, "повторная метка в тот же день не ставится")

	require.NoError(t, cache.Release(ctx, key))
	ok, err = cache.Acquire(ctx, key, 48*time.Hour)
	require.NoError(t, err)
	assert.True(t, ok)

	mr.FastForward(49 * time.Hour)
	assert.False(t, mr.Exists(markPrefix+key))
}

func TestInitServerInvalidAddr(t *testing.T) {
	cfg := config.RedisConnection{
		AddressRedis: "127.0.0.1:9999",
		DialTimeout:  100 * time.Millisecond,
	}

	cache, err := InitServer(context.Background(), cfg)
	assert.Nil(t, cache)
	assert.Error(t, err)
}
