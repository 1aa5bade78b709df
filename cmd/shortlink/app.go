package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"

	"github.com/Popolzen/shortlink/internal/audit"
	"github.com/Popolzen/shortlink/internal/cache"
	"github.com/Popolzen/shortlink/internal/ratelimit"
	"github.com/Popolzen/shortlink/internal/repository"
	"go.uber.org/zap"
)

type App struct {
	server    *http.Server
	repo      repository.Repository
	cache     cache.Cache
	limiter   *ratelimit.Limiter
	publisher *audit.Publisher
	log       *zap.SugaredLogger

	certFile, keyFile string
}

// Run обслуживает запросы до остановки сервера
func (a *App) Run() error {
	var err error
	if a.certFile != "" {
		a.log.Infow("URL Shortener запущен", "addr", a.server.Addr, "https", true)
		err = a.server.ListenAndServeTLS(a.certFile, a.keyFile)
	} else {
		a.log.Infow("URL Shortener запущен", "addr", a.server.Addr)
		err = a.server.ListenAndServe()
	}
	if errors.Is(err, http.ErrServerClosed) {
		return nil
	}
	return err
}

// Close закрывает все ресурсы
func (a *App) Close() error {
	var errs []error

	a.log.Info("Закрываем репозиторий...")
	if err := a.repo.Close(); err != nil {
		errs = append(errs, fmt.Errorf("репозиторий: %w", err))
	}

	a.log.Info("Закрываем кэш...")
	if err := a.cache.Close(); err != nil {
		errs = append(errs, fmt.Errorf("кэш: %w", err))
	}

	if a.limiter != nil {
		if err := a.limiter.Close(); err != nil {
			errs = append(errs, fmt.Errorf("лимитер: %w", err))
		}
	}

	a.log.Info("Закрываем audit publisher...")
	if err := a.publisher.Close(); err != nil {
		errs = append(errs, fmt.Errorf("аудит: %w", err))
	}

	return errors.Join(errs...)
}

// Shutdown выполняет graceful shutdown с таймаутом
func (a *App) Shutdown(ctx context.Context) error {
	a.log.Info("Останавливаем HTTP сервер...")
	if err := a.server.Shutdown(ctx); err != nil {
		return fmt.Errorf("ошибка остановки сервера: %w", err)
	}
	return a.Close()
}
