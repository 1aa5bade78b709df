package rediscache

import (
	"context"
	"testing"
	"time"

	"github.com/Popolzen/shortlink/internal/model"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	tcredis "github.com/testcontainers/testcontainers-go/modules/redis"
)

// setupRedis поднимает Redis в Docker и возвращает клиента
func setupRedis(t *testing.T) *redis.Client {
	t.Helper()
	if testing.Short() {
		t.Skip("интеграционный тест с Docker")
	}
	ctx := context.Background()

	container, err := tcredis.Run(ctx, "redis:7-alpine")
	require.NoError(t, err)
	t.Cleanup(func() {
		require.NoError(t, container.Terminate(ctx))
	})

	endpoint, err := container.Endpoint(ctx, "")
	require.NoError(t, err)

	client := NewClient(endpoint, "")
	require.NoError(t, client.Ping(ctx).Err())
	return client
}

func TestCache(t *testing.T) {
	client := setupRedis(t)
	c := New(client, time.Minute)
	ctx := context.Background()

	t.Run("промах", func(t *testing.T) {
		_, ok, err := c.Get(ctx, "missing")
		require.NoError(t, err)
		assert.False(t, ok)
	})

	t.Run("set и get", func(t *testing.T) {
		expires := time.Now().Add(time.Hour).UTC().Truncate(time.Second)
		require.NoError(t, c.Set(ctx, "abc", &model.CachedLink{URL: "https://example.com", ExpiresAt: &expires, Password: "p"}))

		link, ok, err := c.Get(ctx, "abc")
		require.NoError(t, err)
		require.True(t, ok)
		assert.Equal(t, "https://example.com", link.URL)
		assert.Equal(t, "p", link.Password)
		require.NotNil(t, link.ExpiresAt)
		assert.True(t, expires.Equal(*link.ExpiresAt))

		ttl, err := client.TTL(ctx, keyPrefix+"abc").Result()
		require.NoError(t, err)
		assert.Positive(t, ttl)
	})

	t.Run("инвалидация", func(t *testing.T) {
		require.NoError(t, c.Invalidate(ctx, "abc"))
		_, ok, err := c.Get(ctx, "abc")
		require.NoError(t, err)
		assert.False(t, ok)
	})

	t.Run("битая запись считается промахом", func(t *testing.T) {
		require.NoError(t, client.Set(ctx, keyPrefix+"bad", "not json", time.Minute).Err())

		_, ok, err := c.Get(ctx, "bad")
		require.NoError(t, err)
		assert.False(t, ok)

		exists, _ := client.Exists(ctx, keyPrefix+"bad").Result()
		assert.Zero(t, exists)
	})

	t.Run("ping", func(t *testing.T) {
		assert.NoError(t, c.Ping(ctx))
	})
}
