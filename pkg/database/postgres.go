package database

import (
	"context"
	"fmt"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/exaring/otelpgx"
	"github.com/jackc/pgx/v5/pgxpool"
	"go.uber.org/zap"
)

type PostgresConfig struct {
	URL             string
	MaxConns        int32
	ConnectAttempts int
	Tracing         bool
}

// Connect creates the shared pool and waits until the database answers a
// ping, retrying with exponential backoff.
func Connect(ctx context.Context, cfg PostgresConfig, logger *zap.Logger) (*pgxpool.Pool, error) {
	poolConfig, err := pgxpool.ParseConfig(cfg.URL)
	if err != nil {
		return nil, fmt.Errorf("parse database url: %w", err)
	}
	if cfg.MaxConns > 0 {
		poolConfig.MaxConns = cfg.MaxConns
	}
	if cfg.Tracing {
		poolConfig.ConnConfig.Tracer = otelpgx.NewTracer()
	}

	pool, err := pgxpool.NewWithConfig(ctx, poolConfig)
	if err != nil {
		return nil, fmt.Errorf("create pool: %w", err)
	}

	err = retry(ctx, cfg.ConnectAttempts, logger, func() error {
		return pool.Ping(ctx)
	})
	if err != nil {
		pool.Close()
		return nil, fmt.Errorf("unable to connect to database after %d attempts: %w", cfg.ConnectAttempts, err)
	}

	logger.Info("connected to postgres", zap.Int32("max_conns", poolConfig.MaxConns))
	return pool, nil
}

func retry(ctx context.Context, attempts int, logger *zap.Logger, op func() error) error {
	if attempts < 1 {
		attempts = 1
	}
	policy := backoff.NewExponentialBackOff()
	policy.InitialInterval = 500 * time.Millisecond
	policy.MaxInterval = 5 * time.Second

	b := backoff.WithContext(backoff.WithMaxRetries(policy, uint64(attempts-1)), ctx)
	return backoff.RetryNotify(op, b, func(err error, wait time.Duration) {
		logger.Warn("database not ready, retrying", zap.Error(err), zap.Duration("wait", wait))
	})
}
