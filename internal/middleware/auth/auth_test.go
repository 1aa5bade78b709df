package auth

import (
	"context"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/Popolzen/shortlink/internal/access"
	"github.com/Popolzen/shortlink/internal/model"
	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

type staticResolver map[string]*model.Owner

func (r staticResolver) ResolveOwner(_ context.Context, key string) (*model.Owner, error) {
	if key == "boom" {
		return nil, errors.New("db down")
	}
	return r[key], nil
}

var alice = &model.Owner{ID: "alice", APIKey: "key-a", Tier: model.TierHobby}

func setupRouter(t *testing.T) (*gin.Engine, *access.Actor, *string) {
	t.Helper()
	gin.SetMode(gin.TestMode)

	var (
		gotActor access.Actor
		gotBody  string
	)
	router := gin.New()
	router.Use(Middleware(staticResolver{"key-a": alice}, zap.NewNop().Sugar()))
	router.Any("/probe", func(c *gin.Context) {
		gotActor = ActorFrom(c)
		body, _ := io.ReadAll(c.Request.Body)
		gotBody = string(body)
		c.Status(http.StatusOK)
	})
	return router, &gotActor, &gotBody
}

func TestMiddleware_Sources(t *testing.T) {
	tests := []struct {
		name    string
		headers map[string]string
		body    string
		want    access.Actor
	}{
		{"без ключа", nil, "", access.Actor{}},
		{"bearer", map[string]string{"Authorization": "Bearer key-a"}, "", access.Actor{Owner: alice, CredentialSupplied: true}},
		{"api-key", map[string]string{"api-key": "key-a"}, "", access.Actor{Owner: alice, CredentialSupplied: true}},
		{"x-api-key", map[string]string{"x-api-key": "key-a"}, "", access.Actor{Owner: alice, CredentialSupplied: true}},
		{"поле тела", nil, `{"apiKey":"key-a","original_url":"https://x.com"}`, access.Actor{Owner: alice, CredentialSupplied: true}},
		{"неизвестный ключ", map[string]string{"api-key": "nope"}, "", access.Actor{CredentialSupplied: true}},
		{"bearer важнее заголовка", map[string]string{"Authorization": "Bearer nope", "api-key": "key-a"}, "", access.Actor{CredentialSupplied: true}},
		{"тело-массив без ключа", nil, `["a","b"]`, access.Actor{}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			router, actor, body := setupRouter(t)

			req := httptest.NewRequest(http.MethodPost, "/probe", strings.NewReader(tt.body))
			req.Header.Set("Content-Type", "application/json")
			for k, v := range tt.headers {
				req.Header.Set(k, v)
			}
			w := httptest.NewRecorder()
			router.ServeHTTP(w, req)

			require.Equal(t, http.StatusOK, w.Code)
			assert.Equal(t, tt.want, *actor)
			// Тело доступно обработчику целиком
			assert.Equal(t, tt.body, *body)
		})
	}
}

func TestMiddleware_ResolverError(t *testing.T) {
	router, _, _ := setupRouter(t)

	req := httptest.NewRequest(http.MethodGet, "/probe", nil)
	req.Header.Set("api-key", "boom")
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	assert.Equal(t, http.StatusInternalServerError, w.Code)
	assert.Contains(t, w.Body.String(), "db down")
}

func TestBearer(t *testing.T) {
	gin.SetMode(gin.TestMode)
	c, _ := gin.CreateTestContext(httptest.NewRecorder())
	c.Request = httptest.NewRequest(http.MethodGet, "/", nil)

	c.Request.Header.Set("Authorization", "Basic abc")
	assert.Empty(t, Bearer(c))

	c.Request.Header.Set("Authorization", "bearer  key ")
	assert.Equal(t, "key", Bearer(c))
}

func TestActorFrom_WithoutMiddleware(t *testing.T) {
	c, _ := gin.CreateTestContext(httptest.NewRecorder())
	assert.Equal(t, access.Actor{}, ActorFrom(c))
	assert.Empty(t, CredentialFrom(c))
}
