package infra

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
)

// Pool sizing for the payment API. Each request holds at most one connection
// at a time and the row locks it takes (payment completion, refund parent)
// are short lived, so excess load queues in the pool, not in Postgres.
const (
	poolMaxConns        = 16
	poolMinConns        = 4
	poolConnLifetime    = time.Hour
	poolConnMaxIdle     = 10 * time.Minute
	poolHealthInterval  = time.Minute
	healthCheckDeadline = 3 * time.Second
)

// NewPostgresPool opens and pings a pgx pool for the configured database.
// The context bounds the initial connect; the pool itself lives until Close.
func NewPostgresPool(ctx context.Context, cfg *Config) (*pgxpool.Pool, error) {
	poolCfg, err := pgxpool.ParseConfig(cfg.DSN())
	if err != nil {
		return nil, fmt.Errorf("parse pool config: %w", err)
	}

	poolCfg.MaxConns = poolMaxConns
	poolCfg.MinConns = poolMinConns
	poolCfg.MaxConnLifetime = poolConnLifetime
	poolCfg.MaxConnIdleTime = poolConnMaxIdle
	poolCfg.HealthCheckPeriod = poolHealthInterval
	poolCfg.ConnConfig.RuntimeParams["application_name"] = "avatarly-payments"

	pool, err := pgxpool.NewWithConfig(ctx, poolCfg)
	if err != nil {
		return nil, fmt.Errorf("create pool: %w", err)
	}

	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}

	return pool, nil
}

// HealthCheck pings the database with its own short deadline so a stalled
// backend turns the health endpoint red instead of hanging it.
func HealthCheck(ctx context.Context, pool *pgxpool.Pool) error {
	ctx, cancel := context.WithTimeout(ctx, healthCheckDeadline)
	defer cancel()
	return pool.Ping(ctx)
}
