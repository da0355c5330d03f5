package database

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
)

// Connect opens a pgx connection pool using the provided DSN.
func Connect(ctx context.Context, dsn string) (*pgxpool.Pool, error) {
	cfg, err := pgxpool.ParseConfig(dsn)
	if err != nil {
		return nil, fmt.Errorf("parse dsn: %w", err)
	}
	cfg.MaxConns = 8
	cfg.MaxConnIdleTime = 5 * time.Minute
	return pgxpool.NewWithConfig(ctx, cfg)
}

// EnsureSchema creates the batches table if needed. Having the migration in
// code keeps the service self-contained so docker-compose can bootstrap
// everything.
func EnsureSchema(ctx context.Context, pool *pgxpool.Pool) error {
	const stmt = `
CREATE TABLE IF NOT EXISTS batches (
	batch_id TEXT PRIMARY KEY,
	farmer_name TEXT NOT NULL,
	crop_name TEXT NOT NULL,
	quantity DOUBLE PRECISION NOT NULL,
	location TEXT NOT NULL,
	harvest_date TIMESTAMPTZ NOT NULL,
	fingerprint TEXT NOT NULL,
	anchor_reference TEXT NOT NULL,
	anchor_fallback_used BOOLEAN NOT NULL,
	transport_status TEXT NOT NULL,
	created_at TIMESTAMPTZ NOT NULL,
	updated_at TIMESTAMPTZ NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_batches_transport_status ON batches(transport_status);`
	_, err := pool.Exec(ctx, stmt)
	if err != nil {
		return fmt.Errorf("ensure schema: %w", err)
	}
	return nil
}
