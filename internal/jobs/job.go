package jobs

import (
	"context"
	"time"
)

// Job is a state machine that emits work units and reacts to their results.
// The scheduler calls Start once, then OnComplete for every finished unit.
// Jobs must tolerate per-unit failure: a failed page never fails the job.
type Job interface {
	// ID returns the job's record ID. Empty until SetRecordID is called.
	ID() string

	// SetRecordID assigns the persistent record ID before Start.
	SetRecordID(id string)

	// Type returns the job type identifier.
	Type() string

	// Start performs setup and returns the initial work units.
	// Must be idempotent: a resumed job checks existing state first.
	Start(ctx context.Context) ([]WorkUnit, error)

	// OnComplete handles one finished work unit and may return follow-up
	// units. Called from the scheduler's result loop, never concurrently
	// for the same job.
	OnComplete(ctx context.Context, result WorkResult) ([]WorkUnit, error)

	// Done reports whether the job has no more work to emit.
	Done() bool

	// Status returns progress as key-value pairs for the API.
	Status(ctx context.Context) (map[string]string, error)
}

// JobFactory recreates a job from its persisted record, for resume.
type JobFactory func(recordID string, metadata map[string]any) (Job, error)

// Status represents the lifecycle state of a job record.
type Status string

const (
	StatusQueued    Status = "queued"
	StatusRunning   Status = "running"
	StatusCompleted Status = "completed"
	StatusFailed    Status = "failed"
	StatusCancelled Status = "cancelled"
)

// Record is the persisted view of a job.
type Record struct {
	ID          string         `json:"id"`
	JobType     string         `json:"job_type"`
	Status      Status         `json:"status"`
	CreatedAt   time.Time      `json:"created_at"`
	StartedAt   *time.Time     `json:"started_at,omitempty"`
	CompletedAt *time.Time     `json:"completed_at,omitempty"`
	Error       string         `json:"error,omitempty"`
	Metadata    map[string]any `json:"metadata,omitempty"`
}
