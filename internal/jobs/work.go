package jobs

import (
	"errors"

	"github.com/jackzampolin/docpond/internal/providers"
)

// ErrWorkerQueueFull is returned when a pool's queue cannot accept more work.
var ErrWorkerQueueFull = errors.New("worker queue full")

// WorkUnitType indicates what kind of work a unit represents.
type WorkUnitType string

const (
	// WorkUnitTypeOCR units call a remote OCR backend and are rate limited.
	WorkUnitTypeOCR WorkUnitType = "ocr"
	// WorkUnitTypeCPU units run local tasks (page split, render, finalize).
	WorkUnitTypeCPU WorkUnitType = "cpu"
)

// WorkUnit is a single schedulable piece of work emitted by a job. Pages are
// independent units; the scheduler routes each to the matching pool.
type WorkUnit struct {
	ID       string
	JobID    string
	Type     WorkUnitType
	Provider string // OCR backend name; empty means any

	// Exactly one of these is set, matching Type.
	OCRRequest *OCRWorkRequest
	CPURequest *CPUWorkRequest
}

// OCRWorkRequest carries a rendered page image to an OCR pool.
type OCRWorkRequest struct {
	Image   []byte
	PageNum int
}

// CPUWorkRequest carries a named local task to the CPU pool.
type CPUWorkRequest struct {
	Task       string // Handler name registered on the CPU pool
	DocumentID string
	PageID     string
	PageNum    int
	Payload    map[string]any
}

// CPUWorkResult is the output of a CPU task handler.
type CPUWorkResult struct {
	Output map[string]any
}

// WorkResult is the outcome of one work unit, routed back to its job.
type WorkResult struct {
	WorkUnitID string
	Success    bool
	Error      error

	OCRResult *providers.OCRResult
	CPUResult *CPUWorkResult
}
