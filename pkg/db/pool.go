// Package db provides Postgres pooling, migrations and maintenance via pgx.
package db

import (
	"context"
	"fmt"
	"log/slog"
	"net/url"
	"strings"

	"github.com/jackc/pgx/v5/pgxpool"
)

const logPrefix = "db:pool"

const (
	defaultMaxConns = 20
	defaultMinConns = 2
)

// ParsePoolConfig parses databaseURL and applies the pool size defaults.
// pool_max_conns and pool_min_conns given in the URL query, or as keywords in
// a key=value connection string, take precedence even when zero.
func ParsePoolConfig(databaseURL string) (*pgxpool.Config, error) {
	config, err := pgxpool.ParseConfig(databaseURL)
	if err != nil {
		return nil, fmt.Errorf("%s - failed to parse database URL: %w", logPrefix, err)
	}
	if !hasPoolSetting(databaseURL, "pool_max_conns") {
		config.MaxConns = defaultMaxConns
	}
	if !hasPoolSetting(databaseURL, "pool_min_conns") {
		config.MinConns = defaultMinConns
	}
	return config, nil
}

func hasPoolSetting(databaseURL, key string) bool {
	if strings.HasPrefix(databaseURL, "postgres://") || strings.HasPrefix(databaseURL, "postgresql://") {
		u, err := url.Parse(databaseURL)
		return err == nil && u.Query().Has(key)
	}
	for _, field := range strings.Fields(databaseURL) {
		if strings.HasPrefix(field, key+"=") {
			return true
		}
	}
	return false
}

// NewPool creates a pgx pool from databaseURL and pings it.
func NewPool(ctx context.Context, databaseURL string) (*pgxpool.Pool, error) {
	config, err := ParsePoolConfig(databaseURL)
	if err != nil {
		return nil, err
	}
	slog.Info(fmt.Sprintf("%s - Connecting to %s/%s", logPrefix, config.ConnConfig.Host, config.ConnConfig.Database))

	pool, err := pgxpool.NewWithConfig(ctx, config)
	if err != nil {
		return nil, fmt.Errorf("%s - failed to create pool: %w", logPrefix, err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("%s - failed to ping database: %w", logPrefix, err)
	}

	slog.Info(fmt.Sprintf("%s - Database connection established max_conns=%d min_conns=%d", logPrefix, config.MaxConns, config.MinConns))
	return pool, nil
}
