package logger

import (
	"fmt"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// New собирает zap логгер. paths: дополнительные выходы к stderr (файлы, "stdout").
func New(level string, paths ...string) (*zap.SugaredLogger, error) {
	config := zap.NewProductionConfig()

	// Настройка формата времени
	config.EncoderConfig.TimeKey = "timestamp"
	config.EncoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder

	lvl := zap.InfoLevel
	if level != "" {
		if err := lvl.UnmarshalText([]byte(level)); err != nil {
			return nil, fmt.Errorf("уровень логирования %q: %w", level, err)
		}
	}
	config.Level = zap.NewAtomicLevelAt(lvl)

	for _, p := range paths {
		if p != "" {
			config.OutputPaths = append(config.OutputPaths, p)
		}
	}

	logger, err := config.Build()
	if err != nil {
		return nil, err
	}
	return logger.Sugar(), nil
}

// RequestLogger middleware-логер для входящих HTTP-запросов.
func RequestLogger(log *zap.SugaredLogger) gin.HandlerFunc {
	return func(c *gin.Context) {

		start := time.Now()
		uri := c.Request.RequestURI
		method := c.Request.Method

		c.Next() // Выполнение следующего handler

		fields := []any{
			"uri", uri,
			"method", method,
			"duration", time.Since(start),
			"status", c.Writer.Status(),
			"size", c.Writer.Size(),
			"ip", c.ClientIP(),
			"user_agent", c.Request.UserAgent(),
		}
		// Внутренние ошибки обработчиков попадают в c.Errors
		if len(c.Errors) > 0 {
			log.Errorw("request", append(fields, "errors", c.Errors.String())...)
			return
		}
		log.Infow("request", fields...)
	}
}
