// Package rediscache кэш редиректов в Redis, общий для всех экземпляров сервиса.
//
// Значение: JSON-снимок model.CachedLink под ключом "link:<code>" с TTL.
package rediscache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/Popolzen/shortlink/internal/cache"
	"github.com/Popolzen/shortlink/internal/model"
	"github.com/redis/go-redis/v9"
)

const keyPrefix = "link:"

// Cache кэш в Redis
type Cache struct {
	client *redis.Client
	ttl    time.Duration
}

// New оборачивает клиента. ttl <= 0 означает cache.DefaultTTL.
func New(client *redis.Client, ttl time.Duration) *Cache {
	if ttl <= 0 {
		ttl = cache.DefaultTTL
	}
	return &Cache{client: client, ttl: ttl}
}

// NewClient клиент с таймаутами для пути редиректа
func NewClient(addr, password string) *redis.Client {
	return redis.NewClient(&redis.Options{
		Addr:         addr,
		Password:     password,
		DialTimeout:  5 * time.Second,
		ReadTimeout:  time.Second,
		WriteTimeout: time.Second,
		PoolSize:     20,
	})
}

func (c *Cache) Get(ctx context.Context, code string) (*model.CachedLink, bool, error) {
	data, err := c.client.Get(ctx, keyPrefix+code).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("redis get: %w", err)
	}

	var link model.CachedLink
	if err := json.Unmarshal(data, &link); err != nil {
		// Битую запись считаем промахом и убираем
		_ = c.client.Del(ctx, keyPrefix+code).Err()
		return nil, false, nil
	}
	return &link, true, nil
}

func (c *Cache) Set(ctx context.Context, code string, link *model.CachedLink) error {
	data, err := json.Marshal(link)
	if err != nil {
		return fmt.Errorf("marshal cached link: %w", err)
	}
	if err := c.client.Set(ctx, keyPrefix+code, data, c.ttl).Err(); err != nil {
		return fmt.Errorf("redis set: %w", err)
	}
	return nil
}

func (c *Cache) Invalidate(ctx context.Context, code string) error {
	if err := c.client.Del(ctx, keyPrefix+code).Err(); err != nil {
		return fmt.Errorf("redis del: %w", err)
	}
	return nil
}

func (c *Cache) Ping(ctx context.Context) error {
	return c.client.Ping(ctx).Err()
}

func (c *Cache) Close() error {
	return c.client.Close()
}
