package app

import (
	"database/sql"
	"fmt"

	"github.com/RezaEskandarii/tablequeue/types/config"
	_ "github.com/jackc/pgx/v5/stdlib"
	_ "github.com/lib/pq"
	"github.com/redis/go-redis/v9"
)

const (
	maxOpenConns = 25
	maxIdleConns = 5
)

func openDB(cfg *config.Config) (*sql.DB, error) {
	db, err := sql.Open(cfg.StorageDriver.SQLDriverName(), cfg.PostgresConfig.ConnectionUrl)
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", cfg.StorageDriver.SQLDriverName(), err)
	}
	db.SetMaxOpenConns(maxOpenConns)
	db.SetMaxIdleConns(maxIdleConns)
	return db, nil
}

func newRedisClient(cfg config.RedisConfig) *redis.Client {
	return redis.NewClient(&redis.Options{
		Addr:     cfg.Address,
		Password: cfg.Password,
		DB:       cfg.DB,
	})
}
