package jobs

import (
	"context"
	"fmt"
	"sync"
)

const MockJobType = "mock"

// MockJob is a simple job for testing the scheduler. It emits N work units
// and tracks their completion.
type MockJob struct {
	id       string
	units    int
	unitType WorkUnitType
	provider string

	// FollowUps, when > 0, emits one extra CPU unit per completed unit
	// until exhausted. Exercises the chained-unit path.
	FollowUps int

	mu        sync.Mutex
	started   bool
	completed int
	failed    int
	results   []WorkResult
}

// MockJobConfig configures a mock job.
type MockJobConfig struct {
	Units    int          // Number of work units to create (default 3)
	UnitType WorkUnitType // Default: CPU
	Provider string       // OCR provider name (empty = any)
}

// NewMockJob creates a new mock job.
func NewMockJob(cfg MockJobConfig) *MockJob {
	units := cfg.Units
	if units <= 0 {
		units = 3
	}
	unitType := cfg.UnitType
	if unitType == "" {
		unitType = WorkUnitTypeCPU
	}
	return &MockJob{
		units:    units,
		unitType: unitType,
		provider: cfg.Provider,
	}
}

func (j *MockJob) ID() string            { return j.id }
func (j *MockJob) SetRecordID(id string) { j.id = id }
func (j *MockJob) Type() string          { return MockJobType }

// Start creates the initial work units.
func (j *MockJob) Start(ctx context.Context) ([]WorkUnit, error) {
	j.mu.Lock()
	defer j.mu.Unlock()

	if j.started {
		return nil, fmt.Errorf("job already started")
	}
	j.started = true

	units := make([]WorkUnit, j.units)
	for i := 0; i < j.units; i++ {
		units[i] = WorkUnit{
			ID:       fmt.Sprintf("%s-unit-%d", j.id, i),
			Type:     j.unitType,
			Provider: j.provider,
		}
		if j.unitType == WorkUnitTypeOCR {
			units[i].OCRRequest = &OCRWorkRequest{
				Image:   []byte(fmt.Sprintf("mock-image-%d", i)),
				PageNum: i + 1,
			}
		} else {
			units[i].CPURequest = &CPUWorkRequest{
				Task:    "mock",
				PageNum: i + 1,
			}
		}
	}
	return units, nil
}

// OnComplete records the result and optionally emits a follow-up unit.
func (j *MockJob) OnComplete(ctx context.Context, result WorkResult) ([]WorkUnit, error) {
	j.mu.Lock()
	defer j.mu.Unlock()

	j.completed++
	if !result.Success {
		j.failed++
	}
	j.results = append(j.results, result)

	if j.FollowUps > 0 {
		j.FollowUps--
		j.units++
		return []WorkUnit{{
			ID:   fmt.Sprintf("%s-followup-%d", j.id, j.completed),
			Type: WorkUnitTypeCPU,
			CPURequest: &CPUWorkRequest{
				Task: "mock",
			},
		}}, nil
	}
	return nil, nil
}

// Done reports whether all emitted units completed.
func (j *MockJob) Done() bool {
	j.mu.Lock()
	defer j.mu.Unlock()
	return j.started && j.completed >= j.units
}

// Status reports completion counts.
func (j *MockJob) Status(ctx context.Context) (map[string]string, error) {
	j.mu.Lock()
	defer j.mu.Unlock()
	return map[string]string{
		"completed": fmt.Sprintf("%d", j.completed),
		"failed":    fmt.Sprintf("%d", j.failed),
		"total":     fmt.Sprintf("%d", j.units),
	}, nil
}

// Results returns a copy of all recorded results.
func (j *MockJob) Results() []WorkResult {
	j.mu.Lock()
	defer j.mu.Unlock()
	out := make([]WorkResult, len(j.results))
	copy(out, j.results)
	return out
}
