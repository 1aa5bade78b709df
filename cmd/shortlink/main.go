package main

import (
	"context"
	"fmt"
	"log"
	"net/http"
	_ "net/http/pprof"
	"os/signal"
	"syscall"
	"time"

	"github.com/Popolzen/shortlink/internal/audit"
	"github.com/Popolzen/shortlink/internal/cache"
	cachememory "github.com/Popolzen/shortlink/internal/cache/memory"
	"github.com/Popolzen/shortlink/internal/cache/rediscache"
	"github.com/Popolzen/shortlink/internal/config"
	"github.com/Popolzen/shortlink/internal/config/db"
	"github.com/Popolzen/shortlink/internal/handler"
	"github.com/Popolzen/shortlink/internal/logger"
	"github.com/Popolzen/shortlink/internal/middleware/blacklist"
	"github.com/Popolzen/shortlink/internal/model"
	"github.com/Popolzen/shortlink/internal/ratelimit"
	countermemory "github.com/Popolzen/shortlink/internal/ratelimit/memory"
	"github.com/Popolzen/shortlink/internal/ratelimit/redislimit"
	"github.com/Popolzen/shortlink/internal/repository"
	"github.com/Popolzen/shortlink/internal/repository/database"
	"github.com/Popolzen/shortlink/internal/repository/filestorage"
	"github.com/Popolzen/shortlink/internal/repository/memory"
	"github.com/Popolzen/shortlink/internal/service/shortener"
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

const shutdownTimeout = 10 * time.Second

var (
	buildVersion string
	buildDate    string
	buildCommit  string
)

func main() {
	printBuildInfo()

	cfg := config.NewConfig()

	// Инициализируем логгер
	zlog, err := logger.New(cfg.LogLevel, cfg.RequestLog)
	if err != nil {
		log.Fatal("Не удалось инициализировать логгер:", err)
	}
	defer zlog.Sync()

	if err := run(cfg, zlog); err != nil {
		zlog.Fatalw("сервис остановлен с ошибкой", "error", err)
	}
}

func run(cfg *config.Config, log *zap.SugaredLogger) error {
	gin.SetMode(gin.ReleaseMode)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// Запускаем pprof сервер на настраиваемом порту
	if cfg.PprofAddr != "" {
		go func() {
			log.Infof("pprof сервер запущен на http://%s/debug/pprof/", cfg.PprofAddr)
			if err := http.ListenAndServe(cfg.PprofAddr, nil); err != nil {
				log.Warnw("Ошибка запуска pprof сервера", "error", err)
			}
		}()
	}

	app, err := newApp(ctx, cfg, log)
	if err != nil {
		return err
	}

	errCh := make(chan error, 1)
	go func() { errCh <- app.Run() }()

	select {
	case err := <-errCh:
		app.Close()
		return err
	case <-ctx.Done():
		log.Info("Получен сигнал остановки, завершаем работу...")
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := app.Shutdown(shutdownCtx); err != nil {
		return err
	}
	log.Info("Сервис остановлен gracefully")
	return nil
}

// newApp собирает зависимости один раз и передаёт их явно
func newApp(ctx context.Context, cfg *config.Config, log *zap.SugaredLogger) (*App, error) {
	repo, err := initRepository(ctx, cfg, log)
	if err != nil {
		return nil, err
	}

	if err := seedOwners(ctx, repo, cfg.OwnersFile, log); err != nil {
		repo.Close()
		return nil, err
	}

	limits, err := ratelimit.LoadLimits(cfg.RateLimitsFile)
	if err != nil {
		repo.Close()
		return nil, err
	}

	bl, err := blacklist.Load(cfg.BlacklistFile)
	if err != nil {
		repo.Close()
		return nil, err
	}
	if bl.Len() > 0 {
		log.Infow("загружен чёрный список ключей", "keys", bl.Len())
	}

	c, counter := initCache(cfg, log)
	limiter := ratelimit.New(counter, limits)
	publisher := initAudit(cfg, log)

	service := shortener.NewURLService(repo, c, publisher, log, shortener.Options{
		Dedup:           shortener.DedupPolicy(cfg.DedupPolicy),
		MaxCodeAttempts: cfg.MaxCodeAttempts,
	})

	anonymousTier := model.Tier(cfg.AnonymousTier)
	if cfg.AnonymousTier == config.AnonymousUnlimited {
		anonymousTier = ""
	}

	router := handler.NewRouter(handler.RouterConfig{
		Service:       service,
		Limiter:       limiter,
		Blacklist:     bl,
		Log:           log,
		AnonymousTier: anonymousTier,
		TrustedSubnet: cfg.TrustedSubnet,
	})

	app := &App{
		server: &http.Server{
			Addr:              cfg.GetAddress(),
			Handler:           router,
			ReadHeaderTimeout: 5 * time.Second,
		},
		repo:      repo,
		cache:     c,
		limiter:   limiter,
		publisher: publisher,
		log:       log,
	}
	if cfg.EnableHTTPS {
		app.certFile, app.keyFile = cfg.CertFile, cfg.KeyFile
	}
	return app, nil
}

func printBuildInfo() {
	version := "N/A"
	date := "N/A"
	commit := "N/A"

	if buildVersion != "" {
		version = buildVersion
	}
	if buildDate != "" {
		date = buildDate
	}
	if buildCommit != "" {
		commit = buildCommit
	}

	fmt.Printf("Build version: %s\n", version)
	fmt.Printf("Build date: %s\n", date)
	fmt.Printf("Build commit: %s\n", commit)
}

// initRepository инициализирует репозиторий в зависимости от конфигурации
func initRepository(ctx context.Context, cfg *config.Config, log *zap.SugaredLogger) (repository.Repository, error) {
	switch {
	case cfg.DBurl != "":
		dbInstance, err := db.NewDataBase(ctx, db.NewDBConfig(*cfg))
		if err != nil {
			return nil, fmt.Errorf("ошибка подключения к БД: %w", err)
		}
		if err := dbInstance.Migrate(); err != nil {
			dbInstance.Close()
			return nil, fmt.Errorf("ошибка выполнения миграций: %w", err)
		}
		log.Info("Используется БД репозиторий")
		return database.NewURLRepository(dbInstance.DB), nil
	case cfg.GetFilePath() != "":
		log.Infow("Используется файл", "path", cfg.GetFilePath())
		repo, err := filestorage.NewURLRepository(cfg.GetFilePath())
		if err != nil {
			return nil, fmt.Errorf("ошибка загрузки файла хранилища: %w", err)
		}
		return repo, nil
	default:
		log.Info("Используется память")
		return memory.NewURLRepository(), nil
	}
}

// seedOwners заводит владельцев ключей из файла
func seedOwners(ctx context.Context, repo repository.Repository, path string, log *zap.SugaredLogger) error {
	owners, err := config.LoadOwners(path)
	if err != nil {
		return err
	}
	for _, o := range owners {
		if err := repo.SaveOwner(ctx, o); err != nil {
			return fmt.Errorf("владелец %s: %w", o.ID, err)
		}
	}
	if len(owners) > 0 {
		log.Infow("владельцы ключей загружены", "count", len(owners))
	}
	return nil
}

// initCache кэш редиректов и счётчик лимитов: Redis, если задан адрес, иначе в памяти процесса
func initCache(cfg *config.Config, log *zap.SugaredLogger) (cache.Cache, ratelimit.Counter) {
	if cfg.RedisAddr == "" {
		log.Info("Кэш и лимиты в памяти")
		return cachememory.New(cfg.CacheTTL), countermemory.New()
	}

	log.Infow("Кэш и лимиты в Redis", "addr", cfg.RedisAddr)
	return rediscache.New(rediscache.NewClient(cfg.RedisAddr, cfg.RedisPassword), cfg.CacheTTL),
		redislimit.New(rediscache.NewClient(cfg.RedisAddr, cfg.RedisPassword))
}

// initAudit - функция инициализации аудита:
func initAudit(cfg *config.Config, log *zap.SugaredLogger) *audit.Publisher {
	publisher := audit.NewPublisher()

	// Файловый observer
	if cfg.GetAuditFile() != "" {
		fileObs, err := audit.NewFileObserver(cfg.GetAuditFile(), log)
		if err != nil {
			log.Warnw("Не удалось создать file observer", "error", err)
		} else {
			publisher.Subscribe(fileObs)
			log.Infow("Аудит в файл", "path", cfg.GetAuditFile())
		}
	}

	// HTTP observer
	if cfg.GetAuditURL() != "" {
		publisher.Subscribe(audit.NewHTTPObserver(cfg.GetAuditURL(), log))
		log.Infow("Аудит на сервер", "url", cfg.GetAuditURL())
	}

	return publisher
}
