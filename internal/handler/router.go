package handler

import (
	"github.com/Popolzen/shortlink/internal/logger"
	"github.com/Popolzen/shortlink/internal/middleware/auth"
	"github.com/Popolzen/shortlink/internal/middleware/blacklist"
	"github.com/Popolzen/shortlink/internal/middleware/compressor"
	"github.com/Popolzen/shortlink/internal/middleware/ratelimit"
	"github.com/Popolzen/shortlink/internal/middleware/subnet"
	"github.com/Popolzen/shortlink/internal/model"
	limits "github.com/Popolzen/shortlink/internal/ratelimit"
	"github.com/Popolzen/shortlink/internal/service/shortener"
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

// RouterConfig зависимости роутера
type RouterConfig struct {
	Service   *shortener.URLService
	Limiter   *limits.Limiter
	Blacklist *blacklist.List
	Log       *zap.SugaredLogger

	// AnonymousTier уровень лимитов для запросов без ключа, пустой: без лимита
	AnonymousTier model.Tier
	TrustedSubnet string
}

// NewRouter настраивает middleware и маршруты.
// Порядок: лог запроса, gzip, определение владельца, чёрный список, лимиты.
func NewRouter(cfg RouterConfig) *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(logger.RequestLogger(cfg.Log))
	r.Use(compressor.Compresser())
	r.Use(auth.Middleware(cfg.Service, cfg.Log))
	if cfg.Blacklist != nil {
		r.Use(blacklist.Middleware(cfg.Blacklist))
	}
	if cfg.Limiter != nil {
		r.Use(ratelimit.Middleware(cfg.Limiter, cfg.AnonymousTier, cfg.Log))
	}

	svc := cfg.Service
	r.POST("/shorten", ShortenHandler(svc))
	r.GET("/redirect", RedirectHandler(svc))
	r.DELETE("/delete", DeleteHandler(svc))
	r.PUT("/update", UpdateHandler(svc))
	r.PUT("/edit/:short_code", EditHandler(svc))
	r.POST("/batch-shorten", BatchHandler(svc))
	r.GET("/urls", ListHandler(svc))
	r.DELETE("/urls", DeleteManyHandler(svc))
	r.POST("/domains", DomainHandler(svc))
	r.GET("/health", HealthHandler(svc))

	internal := r.Group("/api/internal")
	internal.Use(subnet.TrustedSubnetMiddleware(cfg.TrustedSubnet, cfg.Log))
	{
		internal.GET("/stats", StatsHandler(svc))
	}
	return r
}
