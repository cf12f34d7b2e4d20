package config

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"go.uber.org/zap"
)

// ConnectDB opens the postgres pool, retrying with exponential backoff so a
// freshly composed stack where the database is still booting does not kill
// the service.
func ConnectDB(log *zap.Logger) (*pgxpool.Pool, error) {
	dbURL := fmt.Sprintf("postgres://%s:%s@%s:%s/%s?sslmode=disable",
		os.Getenv("DB_USER"),
		os.Getenv("DB_PASSWORD"),
		os.Getenv("DB_HOST"),
		os.Getenv("DB_PORT"),
		os.Getenv("DB_NAME"),
	)

	poolCfg, err := pgxpool.ParseConfig(dbURL)
	if err != nil {
		return nil, fmt.Errorf("failed to parse db config: %w", err)
	}
	poolCfg.MaxConns = 50
	poolCfg.MinConns = 10
	poolCfg.MaxConnLifetime = time.Hour
	poolCfg.MaxConnIdleTime = 5 * time.Minute

	maxRetries := 5
	delay := 2 * time.Second

	var dbpool *pgxpool.Pool
	for i := 1; i <= maxRetries; i++ {
		log.Info("connecting to database", zap.Int("attempt", i), zap.Int("max", maxRetries))

		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		dbpool, err = pgxpool.NewWithConfig(ctx, poolCfg)
		if err == nil {
			if pingErr := dbpool.Ping(ctx); pingErr == nil {
				cancel()
				log.Info("database connected")
				return dbpool, nil
			} else {
				err = fmt.Errorf("ping failed: %w", pingErr)
				dbpool.Close()
			}
		}
		cancel()

		log.Warn("database connection failed", zap.Error(err))
		if i < maxRetries {
			time.Sleep(delay)
			delay *= 2
		}
	}

	return nil, fmt.Errorf("failed to connect to db after %d attempts: %w", maxRetries, err)
}
