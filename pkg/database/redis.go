package database

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/lookout-hq/lookout/pkg/config"
	"github.com/lookout-hq/lookout/pkg/retry"
)

// NewRedisClient connects to Redis, retrying the initial ping while the
// server starts. A nil client and nil error mean Redis is disabled.
func NewRedisClient(ctx context.Context, cfg *config.RedisConfig, logger *zap.Logger) (*redis.Client, error) {
	if cfg.Host == "" {
		return nil, nil
	}

	client := redis.NewClient(&redis.Options{
		Addr:         cfg.Addr(),
		Password:     cfg.Password,
		DB:           cfg.DB,
		DialTimeout:  5 * time.Second,
		ReadTimeout:  2 * time.Second,
		WriteTimeout: 2 * time.Second,
		PoolSize:     10,
	})

	attempt := 0
	err := retry.Do(ctx, retry.StartupConfig(), func() error {
		attempt++
		if err := client.Ping(ctx).Err(); err != nil {
			logger.Debug("Redis not ready",
				zap.String("addr", cfg.Addr()),
				zap.Int("attempt", attempt),
				zap.Error(err))
			return err
		}
		return nil
	})
	if err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("failed to connect to Redis at %s: %w", cfg.Addr(), err)
	}

	return client, nil
}
