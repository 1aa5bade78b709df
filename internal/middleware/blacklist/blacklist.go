// Package blacklist отклоняет запросы с заблокированными API-ключами.
package blacklist

import (
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"net/http"
	"os"

	"github.com/Popolzen/shortlink/internal/middleware/auth"
	"github.com/Popolzen/shortlink/internal/model"
	"github.com/gin-gonic/gin"
)

// List множество заблокированных ключей
type List struct {
	keys map[string]struct{}
}

type file struct {
	BlacklistedKeys []string `json:"blacklistedKeys"`
}

func New(keys ...string) *List {
	l := &List{keys: make(map[string]struct{}, len(keys))}
	for _, k := range keys {
		l.keys[k] = struct{}{}
	}
	return l
}

// Load читает {"blacklistedKeys": [...]}. Отсутствующий файл: пустой список.
func Load(path string) (*List, error) {
	if path == "" {
		return New(), nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return New(), nil
		}
		return nil, fmt.Errorf("чтение чёрного списка: %w", err)
	}

	var f file
	if err := json.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("разбор чёрного списка: %w", err)
	}
	return New(f.BlacklistedKeys...), nil
}

func (l *List) Contains(key string) bool {
	_, ok := l.keys[key]
	return ok
}

func (l *List) Len() int {
	return len(l.keys)
}

// Middleware 403 для заблокированного ключа. Ставится после auth.Middleware.
func Middleware(l *List) gin.HandlerFunc {
	return func(c *gin.Context) {
		if key := auth.CredentialFrom(c); key != "" && l.Contains(key) {
			c.AbortWithStatusJSON(http.StatusForbidden, model.ErrorResponse{Error: model.ErrBlacklisted.Error()})
			return
		}
		c.Next()
	}
}
