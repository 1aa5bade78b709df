// Package memory счётчики лимитов в памяти процесса
package memory

import (
	"context"
	"sync"
	"time"

	gocache "github.com/patrickmn/go-cache"
)

// Counter счётчик фиксированного окна на go-cache.
// Окно задаётся временем жизни ключа, истёкшие ключи чистит janitor.
type Counter struct {
	mu    sync.Mutex
	items *gocache.Cache
}

func New() *Counter {
	return &Counter{items: gocache.New(gocache.NoExpiration, time.Minute)}
}

func (c *Counter) Hit(_ context.Context, key string, window time.Duration) (int64, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if err := c.items.Add(key, int64(1), window); err == nil {
		return 1, nil
	}
	n, err := c.items.IncrementInt64(key, 1)
	if err != nil {
		// Ключ истёк между Add и Increment
		c.items.Set(key, int64(1), window)
		return 1, nil
	}
	return n, nil
}

func (c *Counter) Close() error {
	c.items.Flush()
	return nil
}
