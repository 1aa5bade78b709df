// Package cache описывает кэш редиректов: короткий код -> проверенный снимок ссылки.
//
// Две взаимозаменяемые реализации:
//   - memory: в памяти процесса (github.com/patrickmn/go-cache)
//   - rediscache: общий для нескольких процессов Redis
package cache

//go:generate mockgen -source=cache.go -destination=mocks/mock_cache.go -package=mocks

import (
	"context"
	"time"

	"github.com/Popolzen/shortlink/internal/model"
)

// DefaultTTL время жизни записи кэша редиректов
const DefaultTTL = 7 * 24 * time.Hour

// Cache кэш редиректов. Реализации безопасны для конкурентного использования.
type Cache interface {
	// Get возвращает запись и признак попадания
	Get(ctx context.Context, code string) (*model.CachedLink, bool, error)
	Set(ctx context.Context, code string, link *model.CachedLink) error
	Invalidate(ctx context.Context, code string) error
	Ping(ctx context.Context) error
	Close() error
}
