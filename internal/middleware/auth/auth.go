// Package auth достаёт API-ключ из запроса и определяет владельца.
//
// Ключ ищется по цепочке источников, побеждает первый непустой:
// Authorization: Bearer, заголовки api-key и x-api-key, поле apiKey в JSON-теле.
package auth

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"strings"

	"github.com/Popolzen/shortlink/internal/access"
	"github.com/Popolzen/shortlink/internal/model"
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

const (
	actorKey      = "actor"
	credentialKey = "api_key"

	// maxBodyPeek сколько тела читаем в поисках apiKey
	maxBodyPeek = 1 << 20
)

// Extractor один источник ключа. Пустая строка: ключа в этом источнике нет.
type Extractor func(c *gin.Context) string

// OwnerResolver находит владельца по ключу. Неизвестный ключ: nil без ошибки.
type OwnerResolver interface {
	ResolveOwner(ctx context.Context, apiKey string) (*model.Owner, error)
}

// DefaultExtractors порядок источников по умолчанию
func DefaultExtractors() []Extractor {
	return []Extractor{Bearer, Header("api-key"), Header("x-api-key"), BodyField("apiKey")}
}

// Bearer Authorization: Bearer <key>
func Bearer(c *gin.Context) string {
	value := c.GetHeader("Authorization")
	if len(value) > 7 && strings.EqualFold(value[:7], "bearer ") {
		return strings.TrimSpace(value[7:])
	}
	return ""
}

// Header ключ из произвольного заголовка
func Header(name string) Extractor {
	return func(c *gin.Context) string {
		return strings.TrimSpace(c.GetHeader(name))
	}
}

// BodyField ключ из поля JSON-тела. Тело после чтения восстанавливается.
func BodyField(field string) Extractor {
	return func(c *gin.Context) string {
		if c.Request.Body == nil || !strings.Contains(c.ContentType(), "json") {
			return ""
		}

		data, err := io.ReadAll(io.LimitReader(c.Request.Body, maxBodyPeek))
		c.Request.Body = io.NopCloser(io.MultiReader(bytes.NewReader(data), c.Request.Body))
		if err != nil || len(data) == 0 {
			return ""
		}

		var fields map[string]json.RawMessage
		if err := json.Unmarshal(data, &fields); err != nil {
			return ""
		}
		var key string
		if raw, ok := fields[field]; !ok || json.Unmarshal(raw, &key) != nil {
			return ""
		}
		return strings.TrimSpace(key)
	}
}

// Extract первый непустой ключ из цепочки
func Extract(c *gin.Context, chain []Extractor) string {
	for _, extract := range chain {
		if key := extract(c); key != "" {
			return key
		}
	}
	return ""
}

// Middleware определяет владельца один раз на запрос и кладёт access.Actor в контекст.
// Сам запрос не отклоняет: решения принимает сервис.
func Middleware(resolver OwnerResolver, log *zap.SugaredLogger, chain ...Extractor) gin.HandlerFunc {
	if len(chain) == 0 {
		chain = DefaultExtractors()
	}

	return func(c *gin.Context) {
		key := Extract(c, chain)
		actor := access.Actor{CredentialSupplied: key != ""}

		if key != "" {
			owner, err := resolver.ResolveOwner(c.Request.Context(), key)
			if err != nil {
				log.Errorw("ошибка поиска владельца ключа", "error", err)
				c.AbortWithStatusJSON(http.StatusInternalServerError, model.ErrorResponse{Error: err.Error()})
				return
			}
			actor.Owner = owner
		}

		c.Set(actorKey, actor)
		c.Set(credentialKey, key)
		c.Next()
	}
}

// ActorFrom Actor текущего запроса. Без middleware: анонимный.
func ActorFrom(c *gin.Context) access.Actor {
	if v, ok := c.Get(actorKey); ok {
		if actor, ok := v.(access.Actor); ok {
			return actor
		}
	}
	return access.Actor{}
}

// CredentialFrom ключ, найденный middleware
func CredentialFrom(c *gin.Context) string {
	return c.GetString(credentialKey)
}
