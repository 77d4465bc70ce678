package database

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"
)

// schema creates the observation archive. Statements are idempotent.
var schema = []string{
	`CREATE TABLE IF NOT EXISTS weather_observations (
		mac_address TEXT        NOT NULL,
		dateutc     BIGINT      NOT NULL,
		observed_at TIMESTAMPTZ NOT NULL,
		quantities  JSONB       NOT NULL DEFAULT '{}'::jsonb,
		extra       JSONB       NOT NULL DEFAULT '{}'::jsonb,
		created_at  TIMESTAMPTZ NOT NULL DEFAULT now(),
		PRIMARY KEY (mac_address, dateutc)
	)`,
	`CREATE INDEX IF NOT EXISTS weather_observations_mac_observed_at_idx
		ON weather_observations (mac_address, observed_at DESC)`,
}

// EnsureSchema creates the archive tables if they do not exist.
func EnsureSchema(ctx context.Context, pool *pgxpool.Pool) error {
	for i, stmt := range schema {
		if _, err := pool.Exec(ctx, stmt); err != nil {
			return fmt.Errorf("schema statement %d: %w", i, err)
		}
	}
	return nil
}
