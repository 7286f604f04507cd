package jobs

import (
	"context"

	"github.com/jackzampolin/docpond/internal/providers"
)

// PoolType indicates what kind of work a pool handles.
type PoolType string

const (
	PoolTypeOCR PoolType = "ocr"
	PoolTypeCPU PoolType = "cpu"
)

// WorkerPool manages workers for one workload type. Two implementations:
// ProviderWorkerPool for rate-limited OCR backends, CPUWorkerPool for local
// tasks.
type WorkerPool interface {
	// Name returns the pool name (e.g., "ollama", "cpu").
	Name() string

	// Type returns the pool type.
	Type() PoolType

	// Start begins the pool's processing. Blocks until ctx cancelled.
	Start(ctx context.Context)

	// Submit adds a work unit to the pool's queue.
	// Returns an error if the queue is full.
	Submit(unit *WorkUnit) error

	// Status returns current pool status.
	Status() PoolStatus

	// init sets the results channel. Called by the scheduler before Start.
	init(results chan<- workerResult)
}

// PoolStatus reports a pool's current state.
type PoolStatus struct {
	Name       string `json:"name"`
	Type       string `json:"type"`
	Workers    int    `json:"workers"`
	InFlight   int    `json:"in_flight"`
	QueueDepth int    `json:"queue_depth"`

	// Only for provider pools (nil for CPU).
	RateLimiter *providers.RateLimiterStatus `json:"rate_limiter,omitempty"`
}

// workerResult pairs a work result with its job ID for routing.
type workerResult struct {
	JobID  string
	Unit   *WorkUnit
	Result WorkResult
}

// CPUTaskHandler processes a CPU work request and returns a result.
// Implementations must be safe for concurrent use.
type CPUTaskHandler func(ctx context.Context, req *CPUWorkRequest) (*CPUWorkResult, error)
