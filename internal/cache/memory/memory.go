package memory

import (
	"context"
	"time"

	"github.com/Popolzen/shortlink/internal/cache"
	"github.com/Popolzen/shortlink/internal/model"
	gocache "github.com/patrickmn/go-cache"
)

// Cache кэш редиректов в памяти процесса
type Cache struct {
	items *gocache.Cache
}

// New создаёт кэш. ttl <= 0 означает cache.DefaultTTL.
func New(ttl time.Duration) *Cache {
	if ttl <= 0 {
		ttl = cache.DefaultTTL
	}
	// Просроченные записи вычищаются раз в час
	return &Cache{items: gocache.New(ttl, time.Hour)}
}

func (c *Cache) Get(_ context.Context, code string) (*model.CachedLink, bool, error) {
	v, ok := c.items.Get(code)
	if !ok {
		return nil, false, nil
	}
	link := *v.(*model.CachedLink)
	return &link, true, nil
}

func (c *Cache) Set(_ context.Context, code string, link *model.CachedLink) error {
	stored := *link
	c.items.SetDefault(code, &stored)
	return nil
}

func (c *Cache) Invalidate(_ context.Context, code string) error {
	c.items.Delete(code)
	return nil
}

// Len число записей, включая ещё не вычищенные просроченные
func (c *Cache) Len() int {
	return c.items.ItemCount()
}

func (c *Cache) Ping(context.Context) error {
	return nil
}

func (c *Cache) Close() error {
	c.items.Flush()
	return nil
}
