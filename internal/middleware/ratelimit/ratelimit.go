package ratelimit

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/Popolzen/shortlink/internal/middleware/auth"
	"github.com/Popolzen/shortlink/internal/model"
	"github.com/Popolzen/shortlink/internal/ratelimit"
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

// Middleware применяет лимиты. Ставится после auth.Middleware.
//
// На эндпоинтах с лимитом по уровню счётчик ведётся по id владельца, анонимные
// запросы считаются по IP с уровнем anonymousTier (пустой: без лимита).
// Остальные маршруты ограничиваются общим лимитом по IP.
func Middleware(limiter *ratelimit.Limiter, anonymousTier model.Tier, log *zap.SugaredLogger) gin.HandlerFunc {
	return func(c *gin.Context) {
		endpoint := c.FullPath()
		if endpoint == "" {
			endpoint = c.Request.URL.Path
		}

		var (
			decision ratelimit.Decision
			err      error
		)
		switch actor := auth.ActorFrom(c); {
		case !limiter.Tiered(endpoint):
			decision, err = limiter.AllowIP(c.Request.Context(), c.ClientIP())
		case actor.Owner != nil:
			decision, err = limiter.Allow(c.Request.Context(), actor.Owner.ID, actor.Owner.Tier, endpoint)
		case anonymousTier != "":
			decision, err = limiter.Allow(c.Request.Context(), "ip:"+c.ClientIP(), anonymousTier, endpoint)
		}

		if decision.Limit > 0 {
			c.Header("X-RateLimit-Limit", strconv.FormatInt(decision.Limit, 10))
			c.Header("X-RateLimit-Remaining", strconv.FormatInt(decision.Remaining, 10))
		}

		if err != nil {
			if errors.Is(err, model.ErrRateLimited) {
				c.AbortWithStatusJSON(http.StatusTooManyRequests, model.ErrorResponse{Error: model.ErrRateLimited.Error()})
				return
			}
			log.Errorw("ошибка лимитера", "endpoint", endpoint, "error", err)
			c.AbortWithStatusJSON(http.StatusInternalServerError, model.ErrorResponse{Error: "Error in rate limiting middleware"})
			return
		}

		c.Next()
	}
}
