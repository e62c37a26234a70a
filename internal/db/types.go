package db

import (
	"time"

	"github.com/google/uuid"
)

// Run represents a pipeline run record
type Run struct {
	ID          uuid.UUID  `json:"id"`
	Stage       string     `json:"stage"`
	Targets     string     `json:"targets"`
	RecordLimit int        `json:"record_limit"`
	DryRun      bool       `json:"dry_run"`
	Status      string     `json:"status"`
	CreatedAt   time.Time  `json:"created_at"`
	CompletedAt *time.Time `json:"completed_at,omitempty"`
}

// RunInput holds the parameters a run was started with
type RunInput struct {
	Stage       string
	Targets     string
	RecordLimit int
	DryRun      bool
}

// Run status constants
const (
	RunStatusRunning   = "running"
	RunStatusCompleted = "completed"
	RunStatusFailed    = "failed"
	RunStatusCancelled = "cancelled"
)

// StageStats is one stage's counters within a run
type StageStats struct {
	RunID       uuid.UUID `json:"run_id"`
	Stage       string    `json:"stage"`
	Processed   int       `json:"processed"`
	Skipped     int       `json:"skipped"`
	Failed      int       `json:"failed"`
	NotTargeted int       `json:"not_targeted"`
	DurationMs  int64     `json:"duration_ms"`
	RecordedAt  time.Time `json:"recorded_at"`
}
