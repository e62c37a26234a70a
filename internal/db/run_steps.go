package db

import (
	"context"
	"fmt"

	"github.com/google/uuid"
)

// -----------------------------------------------------------------------------
// Stage Stats Methods
// -----------------------------------------------------------------------------

// RecordStage upserts the counters of one stage of a run
func (db *DB) RecordStage(ctx context.Context, stats StageStats) error {
	_, err := db.pool.Exec(ctx,
		`INSERT INTO stage_stats (run_id, stage, processed, skipped, failed, not_targeted, duration_ms)
		 VALUES ($1, $2, $3, $4, $5, $6, $7)
		 ON CONFLICT (run_id, stage) DO UPDATE SET
		   processed = $3, skipped = $4, failed = $5, not_targeted = $6,
		   duration_ms = $7, recorded_at = NOW()`,
		stats.RunID, stats.Stage, stats.Processed, stats.Skipped, stats.Failed,
		stats.NotTargeted, stats.DurationMs,
	)
	if err != nil {
		return fmt.Errorf("failed to record stage %s: %w", stats.Stage, err)
	}
	return nil
}

// ListStages retrieves all stage counters for a run in recording order
func (db *DB) ListStages(ctx context.Context, runID uuid.UUID) ([]StageStats, error) {
	rows, err := db.pool.Query(ctx,
		`SELECT run_id, stage, processed, skipped, failed, not_targeted, duration_ms, recorded_at
		 FROM stage_stats
		 WHERE run_id = $1
		 ORDER BY recorded_at ASC`,
		runID,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to list stages: %w", err)
	}
	defer rows.Close()

	var stages []StageStats
	for rows.Next() {
		var s StageStats
		if err := rows.Scan(&s.RunID, &s.Stage, &s.Processed, &s.Skipped, &s.Failed,
			&s.NotTargeted, &s.DurationMs, &s.RecordedAt); err != nil {
			return nil, fmt.Errorf("failed to scan stage: %w", err)
		}
		stages = append(stages, s)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate stages: %w", err)
	}
	return stages, nil
}
