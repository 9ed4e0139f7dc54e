package database

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/veracity-data/veracity-engine/pkg/config"
	"github.com/veracity-data/veracity-engine/pkg/retry"
)

// Pool sizing defaults applied when the caller leaves limits unset.
const (
	defaultMaxConns     = 25
	defaultConnLifetime = time.Hour
	defaultConnIdleTime = 30 * time.Minute
)

// DB wraps a pgxpool connection pool.
type DB struct {
	*pgxpool.Pool
}

// Config holds database connection configuration. DSN accepts both URL and
// keyword/value forms.
type Config struct {
	DSN             string
	MaxConnections  int32
	MaxConnLifetime time.Duration
	MaxConnIdleTime time.Duration
}

// NewConnection creates a connection pool and verifies it with a ping.
// Transient failures (database still starting, brief network blips) are
// retried with backoff.
func NewConnection(ctx context.Context, cfg *Config) (*DB, error) {
	poolConfig, err := pgxpool.ParseConfig(cfg.DSN)
	if err != nil {
		return nil, fmt.Errorf("failed to parse database DSN: %w", err)
	}

	poolConfig.MaxConns = cfg.MaxConnections
	poolConfig.MaxConnLifetime = cfg.MaxConnLifetime
	poolConfig.MaxConnIdleTime = cfg.MaxConnIdleTime
	if poolConfig.MaxConns == 0 {
		poolConfig.MaxConns = defaultMaxConns
	}
	if poolConfig.MaxConnLifetime == 0 {
		poolConfig.MaxConnLifetime = defaultConnLifetime
	}
	if poolConfig.MaxConnIdleTime == 0 {
		poolConfig.MaxConnIdleTime = defaultConnIdleTime
	}

	pool, err := retry.DoWithResult(ctx, retry.DefaultConfig(), func() (*pgxpool.Pool, error) {
		return pgxpool.NewWithConfig(ctx, poolConfig)
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create connection pool: %w", err)
	}

	if err := retry.Do(ctx, retry.DefaultConfig(), func() error {
		return pool.Ping(ctx)
	}); err != nil {
		pool.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	return &DB{Pool: pool}, nil
}

// Connect builds a pool from the application database settings, resolving
// the host for Docker so a containerized engine can reach a PostgreSQL
// instance on the host machine. It shares the keyword/value DSN with the
// migration runner.
func Connect(ctx context.Context, cfg *config.DatabaseConfig) (*DB, error) {
	resolved := *cfg
	resolved.Host = config.ResolveHostForDocker(cfg.Host)

	return NewConnection(ctx, &Config{
		DSN:            resolved.ConnectionString(),
		MaxConnections: cfg.MaxConnections,
	})
}

// Close closes the connection pool.
func (db *DB) Close() {
	db.Pool.Close()
}
