package db

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/Popolzen/shortlink/internal/config"
	migration "github.com/Popolzen/shortlink/migrations"
	_ "github.com/jackc/pgx/v5/stdlib"
)

// DBConfig содержит конфигурацию для подключения к БД
type DBConfig struct {
	DBurl           string
	MaxOpenConns    int
	MaxIdleConns    int
	ConnMaxLifetime time.Duration
}

// DataBase представляет подключение к базе данных
type DataBase struct {
	*sql.DB
	config *DBConfig
}

// NewDBConfig создает новую конфигурацию БД
func NewDBConfig(c config.Config) DBConfig {
	return DBConfig{
		DBurl:           c.DBurl,
		MaxOpenConns:    25,
		MaxIdleConns:    5,
		ConnMaxLifetime: 30 * time.Minute,
	}
}

// NewDataBase открывает пул соединений и проверяет подключение
func NewDataBase(ctx context.Context, cfg DBConfig) (*DataBase, error) {
	db, err := sql.Open("pgx", cfg.DBurl)
	if err != nil {
		return nil, fmt.Errorf("не удалось открыть подключение: %w", err)
	}

	db.SetMaxOpenConns(cfg.MaxOpenConns)
	db.SetMaxIdleConns(cfg.MaxIdleConns)
	db.SetConnMaxLifetime(cfg.ConnMaxLifetime)

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := db.PingContext(pingCtx); err != nil {
		db.Close()
		return nil, fmt.Errorf("ошибка при подключении к БД: %w", err)
	}

	return &DataBase{
		DB:     db,
		config: &cfg,
	}, nil
}

func (d *DataBase) Migrate() error {
	return migration.MigrateUp(d.DB)
}
