package database

import (
	"context"
	"time"

	"github.com/ajbunielteam/SysGranTES/internal/logger"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/pkg/errors"
	"github.com/sethvargo/go-retry"
	"go.uber.org/zap"
)

const connectAttempts = 10

func NewPool(ctx context.Context, databaseURL string) (*pgxpool.Pool, error) {
	config, err := pgxpool.ParseConfig(databaseURL)
	if err != nil {
		return nil, errors.Wrap(err, "parse database url")
	}

	config.MaxConns = 20
	config.MinConns = 2
	config.MaxConnLifetime = 30 * time.Minute
	config.MaxConnIdleTime = 5 * time.Minute

	// Postgres may not be ready yet in Docker.
	var pool *pgxpool.Pool
	attempt := 0
	backoff := retry.WithMaxRetries(connectAttempts-1, retry.NewConstant(2*time.Second))
	err = retry.Do(ctx, backoff, func(ctx context.Context) error {
		attempt++
		p, err := pgxpool.NewWithConfig(ctx, config)
		if err != nil {
			logger.Warn("db connect failed", zap.Int("attempt", attempt), zap.Error(err))
			return retry.RetryableError(err)
		}
		if err := p.Ping(ctx); err != nil {
			p.Close()
			logger.Warn("db ping failed", zap.Int("attempt", attempt), zap.Error(err))
			return retry.RetryableError(err)
		}
		pool = p
		return nil
	})
	if err != nil {
		return nil, errors.Wrapf(err, "connect after %d attempts", attempt)
	}

	logger.Info("database connected", zap.Int("attempt", attempt))
	return pool, nil
}
