package database

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"
)

const (
	// applicationName tags job-store sessions in pg_stat_activity.
	applicationName = "research-mcp-jobs"

	// One worker goroutine per running job plus the API handlers.
	jobPoolMaxConns = 10
	jobPoolMinConns = 1
)

// PostgresDB is the job and log store used by the HTTP server.
type PostgresDB struct {
	Pool *pgxpool.Pool
}

// NewPostgresDB connects the job store and verifies the connection.
func NewPostgresDB(ctx context.Context, databaseURL string) (*PostgresDB, error) {
	config, err := pgxpool.ParseConfig(databaseURL)
	if err != nil {
		return nil, fmt.Errorf("failed to parse database URL: %w", err)
	}

	config.MaxConns = jobPoolMaxConns
	config.MinConns = jobPoolMinConns
	if _, ok := config.ConnConfig.RuntimeParams["application_name"]; !ok {
		config.ConnConfig.RuntimeParams["application_name"] = applicationName
	}

	pool, err := pgxpool.NewWithConfig(ctx, config)
	if err != nil {
		return nil, fmt.Errorf("failed to create job store pool: %w", err)
	}

	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("failed to reach job store: %w", err)
	}

	return &PostgresDB{Pool: pool}, nil
}

func (db *PostgresDB) Close() {
	db.Pool.Close()
}
