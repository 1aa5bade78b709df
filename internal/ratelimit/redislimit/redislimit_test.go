package redislimit

import (
	"context"
	"testing"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	tcredis "github.com/testcontainers/testcontainers-go/modules/redis"
)

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

	uri, err := container.ConnectionString(ctx)
	require.NoError(t, err)
	opts, err := redis.ParseURL(uri)
	require.NoError(t, err)

	return redis.NewClient(opts)
}

func TestCounter(t *testing.T) {
	client := setupRedis(t)
	c := New(client)
	ctx := context.Background()

	t.Run("счёт в окне", func(t *testing.T) {
		for want := int64(1); want <= 3; want++ {
			n, err := c.Hit(ctx, "user:/shorten", time.Minute)
			require.NoError(t, err)
			assert.Equal(t, want, n)
		}

		ttl, err := client.PTTL(ctx, keyPrefix+"user:/shorten").Result()
		require.NoError(t, err)
		assert.Positive(t, ttl)
		assert.LessOrEqual(t, ttl, time.Minute)
	})

	t.Run("окно сбрасывается", func(t *testing.T) {
		_, err := c.Hit(ctx, "short", 100*time.Millisecond)
		require.NoError(t, err)
		time.Sleep(200 * time.Millisecond)

		n, err := c.Hit(ctx, "short", 100*time.Millisecond)
		require.NoError(t, err)
		assert.Equal(t, int64(1), n)
	})
}
