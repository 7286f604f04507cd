package jobs

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
)

// ErrRecordNotFound is returned when a job record does not exist.
var ErrRecordNotFound = errors.New("job record not found")

// ListFilter narrows Manager.List results.
type ListFilter struct {
	Status  Status
	JobType string
	Limit   int
}

// Manager tracks job records in memory so the API can report history and the
// scheduler can mark lifecycle transitions.
type Manager struct {
	mu      sync.RWMutex
	records map[string]*Record
}

// NewManager creates a new job record manager.
func NewManager() *Manager {
	return &Manager{
		records: make(map[string]*Record),
	}
}

// Create inserts a new queued record and returns its ID.
func (m *Manager) Create(ctx context.Context, jobType string, metadata map[string]any) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	id := uuid.New().String()
	m.records[id] = &Record{
		ID:        id,
		JobType:   jobType,
		Status:    StatusQueued,
		CreatedAt: time.Now().UTC(),
		Metadata:  metadata,
	}
	return id, nil
}

// Get returns a copy of a job record.
func (m *Manager) Get(ctx context.Context, id string) (*Record, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	record, ok := m.records[id]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrRecordNotFound, id)
	}
	clone := *record
	return &clone, nil
}

// List returns records matching the filter, newest first.
func (m *Manager) List(ctx context.Context, filter ListFilter) ([]*Record, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	var out []*Record
	for _, record := range m.records {
		if filter.Status != "" && record.Status != filter.Status {
			continue
		}
		if filter.JobType != "" && record.JobType != filter.JobType {
			continue
		}
		clone := *record
		out = append(out, &clone)
	}
	sort.Slice(out, func(i, j int) bool {
		return out[i].CreatedAt.After(out[j].CreatedAt)
	})
	if filter.Limit > 0 && len(out) > filter.Limit {
		out = out[:filter.Limit]
	}
	return out, nil
}

// UpdateStatus transitions a record's status, stamping start and completion times.
func (m *Manager) UpdateStatus(ctx context.Context, id string, status Status, errMsg string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	record, ok := m.records[id]
	if !ok {
		return fmt.Errorf("%w: %s", ErrRecordNotFound, id)
	}

	record.Status = status
	record.Error = errMsg

	now := time.Now().UTC()
	switch status {
	case StatusRunning:
		if record.StartedAt == nil {
			record.StartedAt = &now
		}
	case StatusCompleted, StatusFailed, StatusCancelled:
		record.CompletedAt = &now
	}
	return nil
}

// UpdateMetadata merges metadata into a record.
func (m *Manager) UpdateMetadata(ctx context.Context, id string, metadata map[string]any) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	record, ok := m.records[id]
	if !ok {
		return fmt.Errorf("%w: %s", ErrRecordNotFound, id)
	}
	if record.Metadata == nil {
		record.Metadata = make(map[string]any)
	}
	for k, v := range metadata {
		record.Metadata[k] = v
	}
	return nil
}
