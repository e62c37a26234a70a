// Package db provides the optional PostgreSQL run ledger: one row per pipeline
// run plus per-stage counters.
package db

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// DB wraps a PostgreSQL connection pool
type DB struct {
	pool *pgxpool.Pool
}

// Connect establishes a connection pool to the database
func Connect(ctx context.Context, databaseURL string) (*DB, error) {
	pool, err := pgxpool.New(ctx, databaseURL)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	// Verify connection
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	return &DB{pool: pool}, nil
}

// Close closes the connection pool
func (db *DB) Close() {
	if db.pool != nil {
		db.pool.Close()
	}
}

const schemaSQL = `
CREATE TABLE IF NOT EXISTS pipeline_runs (
	id           UUID PRIMARY KEY,
	stage        TEXT NOT NULL,
	targets      TEXT NOT NULL DEFAULT '',
	record_limit INTEGER NOT NULL DEFAULT 0,
	dry_run      BOOLEAN NOT NULL DEFAULT FALSE,
	status       TEXT NOT NULL,
	created_at   TIMESTAMPTZ NOT NULL DEFAULT NOW(),
	completed_at TIMESTAMPTZ
);

CREATE TABLE IF NOT EXISTS stage_stats (
	run_id       UUID NOT NULL REFERENCES pipeline_runs(id) ON DELETE CASCADE,
	stage        TEXT NOT NULL,
	processed    INTEGER NOT NULL DEFAULT 0,
	skipped      INTEGER NOT NULL DEFAULT 0,
	failed       INTEGER NOT NULL DEFAULT 0,
	not_targeted INTEGER NOT NULL DEFAULT 0,
	duration_ms  BIGINT NOT NULL DEFAULT 0,
	recorded_at  TIMESTAMPTZ NOT NULL DEFAULT NOW(),
	PRIMARY KEY (run_id, stage)
);`

// EnsureSchema creates the ledger tables if they do not exist
func (db *DB) EnsureSchema(ctx context.Context) error {
	if _, err := db.pool.Exec(ctx, schemaSQL); err != nil {
		return fmt.Errorf("failed to ensure schema: %w", err)
	}
	return nil
}

// CreateRun inserts a run record with status running
func (db *DB) CreateRun(ctx context.Context, runID uuid.UUID, input RunInput) error {
	_, err := db.pool.Exec(ctx,
		`INSERT INTO pipeline_runs (id, stage, targets, record_limit, dry_run, status)
		 VALUES ($1, $2, $3, $4, $5, $6)`,
		runID, input.Stage, input.Targets, input.RecordLimit, input.DryRun, RunStatusRunning,
	)
	if err != nil {
		return fmt.Errorf("failed to create run: %w", err)
	}
	return nil
}

// CompleteRun marks a pipeline run as finished with the given status
func (db *DB) CompleteRun(ctx context.Context, runID uuid.UUID, status string) error {
	_, err := db.pool.Exec(ctx,
		`UPDATE pipeline_runs SET status = $1, completed_at = NOW() WHERE id = $2`,
		status, runID,
	)
	if err != nil {
		return fmt.Errorf("failed to complete run: %w", err)
	}
	return nil
}

// GetRun retrieves a run by ID, or nil if it does not exist
func (db *DB) GetRun(ctx context.Context, runID uuid.UUID) (*Run, error) {
	var run Run
	err := db.pool.QueryRow(ctx,
		`SELECT id, stage, targets, record_limit, dry_run, status, created_at, completed_at
		 FROM pipeline_runs WHERE id = $1`,
		runID,
	).Scan(&run.ID, &run.Stage, &run.Targets, &run.RecordLimit, &run.DryRun,
		&run.Status, &run.CreatedAt, &run.CompletedAt)
	if err != nil {
		if err == pgx.ErrNoRows {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to get run: %w", err)
	}
	return &run, nil
}
