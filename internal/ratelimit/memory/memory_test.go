package memory

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestHit_CountsWithinWindow(t *testing.T) {
	c := New()
	ctx := context.Background()

	for want := int64(1); want <= 3; want++ {
		n, err := c.Hit(ctx, "k", time.Minute)
		require.NoError(t, err)
		assert.Equal(t, want, n)
	}

	n, err := c.Hit(ctx, "other", time.Minute)
	require.NoError(t, err)
	assert.Equal(t, int64(1), n)
}

func TestHit_WindowResets(t *testing.T) {
	c := New()
	ctx := context.Background()

	c.Hit(ctx, "k", 50*time.Millisecond)
	c.Hit(ctx, "k", 50*time.Millisecond)
	time.Sleep(80 * time.Millisecond)

	n, err := c.Hit(ctx, "k", 50*time.Millisecond)
	require.NoError(t, err)
	assert.Equal(t, int64(1), n)
}

func TestHit_Concurrent(t *testing.T) {
	c := New()
	ctx := context.Background()

	var wg sync.WaitGroup
	for range 100 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			c.Hit(ctx, "k", time.Minute)
		}()
	}
	wg.Wait()

	n, err := c.Hit(ctx, "k", time.Minute)
	require.NoError(t, err)
	assert.Equal(t, int64(101), n)
}
