// Package redislimit счётчики лимитов в Redis, общие для всех экземпляров сервиса
package redislimit

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

const keyPrefix = "ratelimit:"

// hitScript INCR и срок жизни окна при первом обращении одной операцией
var hitScript = redis.NewScript(`
local count = redis.call('INCR', KEYS[1])
if count == 1 then
	redis.call('PEXPIRE', KEYS[1], ARGV[1])
end
return count
`)

// Counter счётчик фиксированного окна в Redis
type Counter struct {
	client *redis.Client
}

func New(client *redis.Client) *Counter {
	return &Counter{client: client}
}

func (c *Counter) Hit(ctx context.Context, key string, window time.Duration) (int64, error) {
	n, err := hitScript.Run(ctx, c.client, []string{keyPrefix + key}, window.Milliseconds()).Int64()
	if err != nil {
		return 0, fmt.Errorf("redis rate limit script: %w", err)
	}
	return n, nil
}

func (c *Counter) Close() error {
	return c.client.Close()
}
