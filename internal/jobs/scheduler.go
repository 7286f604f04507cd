package jobs

import (
	"context"
	"fmt"
	"log/slog"
	"runtime"
	"sync"

	"github.com/google/uuid"

	"github.com/jackzampolin/docpond/internal/providers"
)

// Scheduler routes work units between jobs and worker pools. Jobs emit
// units; pools execute them; results flow back through a single loop that
// calls each job's OnComplete, so one job never sees concurrent callbacks.
type Scheduler struct {
	mu        sync.RWMutex
	pools     map[string]WorkerPool
	cpuPool   *CPUWorkerPool
	jobs      map[string]Job
	pending   map[string]int
	factories map[string]JobFactory
	logger    *slog.Logger
	manager   *Manager

	results chan workerResult

	running bool
	ctx     context.Context
}

// SchedulerConfig configures a new scheduler.
type SchedulerConfig struct {
	Logger     *slog.Logger
	Manager    *Manager
	ResultSize int // Results channel buffer (default 1000)
}

// NewScheduler creates a new scheduler.
func NewScheduler(cfg SchedulerConfig) *Scheduler {
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	resultSize := cfg.ResultSize
	if resultSize <= 0 {
		resultSize = 1000
	}

	return &Scheduler{
		pools:     make(map[string]WorkerPool),
		jobs:      make(map[string]Job),
		pending:   make(map[string]int),
		factories: make(map[string]JobFactory),
		results:   make(chan workerResult, resultSize),
		logger:    logger,
		manager:   cfg.Manager,
	}
}

// Manager returns the job record manager, which may be nil.
func (s *Scheduler) Manager() *Manager {
	return s.manager
}

// RegisterFactory registers a job factory for a job type.
// Required for resuming jobs after restart.
func (s *Scheduler) RegisterFactory(jobType string, factory JobFactory) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.factories[jobType] = factory
	s.logger.Debug("job factory registered", "type", jobType)
}

// RegisterPool adds a worker pool to the scheduler. If the scheduler is
// already running, the pool is started immediately.
func (s *Scheduler) RegisterPool(p WorkerPool) {
	s.mu.Lock()
	p.init(s.results)
	s.pools[p.Name()] = p
	running := s.running
	ctx := s.ctx
	s.mu.Unlock()

	s.logger.Debug("pool registered", "name", p.Name(), "type", p.Type())

	if running {
		if ctx == nil {
			ctx = context.Background()
		}
		go p.Start(ctx)
	}
}

// InitFromRegistry creates one OCR pool per provider in the registry.
func (s *Scheduler) InitFromRegistry(registry *providers.Registry) error {
	for name, provider := range registry.OCRProviders() {
		pool, err := NewProviderWorkerPool(ProviderWorkerPoolConfig{
			Name:     name,
			Provider: provider,
			Logger:   s.logger,
		})
		if err != nil {
			return fmt.Errorf("failed to create OCR pool %s: %w", name, err)
		}
		s.RegisterPool(pool)
	}

	s.logger.Info("initialized pools from registry", "ocr_pools", len(registry.OCRProviders()))
	return nil
}

// InitCPUPool creates the CPU worker pool. If workerCount <= 0, uses
// runtime.NumCPU(). Returns the pool so callers can register task handlers.
func (s *Scheduler) InitCPUPool(workerCount int) *CPUWorkerPool {
	if workerCount <= 0 {
		workerCount = runtime.NumCPU()
	}

	s.mu.Lock()
	pool := NewCPUWorkerPool(CPUWorkerPoolConfig{
		Name:        "cpu",
		WorkerCount: workerCount,
		Logger:      s.logger,
	})
	pool.init(s.results)
	s.cpuPool = pool
	s.pools["cpu"] = pool
	running := s.running
	ctx := s.ctx
	s.mu.Unlock()

	s.logger.Debug("initialized CPU pool", "workers", workerCount)

	if running {
		if ctx == nil {
			ctx = context.Background()
		}
		go pool.Start(ctx)
	}
	return pool
}

// RegisterCPUHandler registers a task handler on the CPU pool.
func (s *Scheduler) RegisterCPUHandler(taskName string, handler CPUTaskHandler) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.cpuPool != nil {
		s.cpuPool.RegisterHandler(taskName, handler)
	}
}

// Start runs the scheduler: starts all pools and processes results until ctx
// is cancelled. Call in a goroutine.
func (s *Scheduler) Start(ctx context.Context) {
	s.mu.Lock()
	s.running = true
	s.ctx = ctx
	pools := make([]WorkerPool, 0, len(s.pools))
	for _, p := range s.pools {
		pools = append(pools, p)
	}
	s.mu.Unlock()

	for _, p := range pools {
		go p.Start(ctx)
	}

	s.logger.Info("scheduler started", "pools", len(pools))

	for {
		select {
		case <-ctx.Done():
			s.logger.Info("scheduler stopping")
			return
		case res := <-s.results:
			s.handleResult(ctx, res)
		}
	}
}

// Submit registers a job, persists its record, and enqueues its initial
// work units.
func (s *Scheduler) Submit(ctx context.Context, job Job) error {
	metadata, err := job.Status(ctx)
	if err != nil {
		s.logger.Warn("failed to get initial job status", "error", err)
	}
	metadataMap := make(map[string]any, len(metadata))
	for k, v := range metadata {
		metadataMap[k] = v
	}

	if s.manager != nil {
		recordID, err := s.manager.Create(ctx, job.Type(), metadataMap)
		if err != nil {
			return fmt.Errorf("failed to create job record: %w", err)
		}
		job.SetRecordID(recordID)
	} else {
		job.SetRecordID(uuid.New().String())
	}

	s.mu.Lock()
	s.jobs[job.ID()] = job
	s.pending[job.ID()] = 0
	s.mu.Unlock()

	if s.manager != nil {
		if err := s.manager.UpdateStatus(ctx, job.ID(), StatusRunning, ""); err != nil {
			s.logger.Warn("failed to update job status", "error", err)
		}
	}

	s.logger.Info("job submitted", "id", job.ID(), "type", job.Type())

	units, err := job.Start(ctx)
	if err != nil {
		jobID := job.ID()
		s.mu.Lock()
		delete(s.jobs, jobID)
		delete(s.pending, jobID)
		s.mu.Unlock()

		if s.manager != nil {
			_ = s.manager.UpdateStatus(ctx, jobID, StatusFailed, err.Error())
		}
		return fmt.Errorf("job start failed: %w", err)
	}

	s.enqueueUnits(job.ID(), units)

	// A job whose Start emitted nothing and that reports done completes
	// immediately.
	s.finishIfDone(ctx, job.ID())

	return nil
}

// enqueueUnits routes work units to the appropriate pool queues.
func (s *Scheduler) enqueueUnits(jobID string, units []WorkUnit) {
	if len(units) == 0 {
		return
	}

	s.mu.Lock()
	s.pending[jobID] += len(units)
	s.mu.Unlock()

	for i := range units {
		unit := &units[i]
		unit.JobID = jobID

		pool := s.findPool(unit)
		if pool == nil {
			s.logger.Error("no pool found for work unit",
				"unit_id", unit.ID,
				"type", unit.Type,
				"provider", unit.Provider,
			)
			s.results <- workerResult{
				JobID: jobID,
				Unit:  unit,
				Result: WorkResult{
					WorkUnitID: unit.ID,
					Success:    false,
					Error:      fmt.Errorf("no pool available for type %s provider %s", unit.Type, unit.Provider),
				},
			}
			continue
		}

		if err := pool.Submit(unit); err != nil {
			s.logger.Warn("failed to submit to pool", "pool", pool.Name(), "error", err)
			s.results <- workerResult{
				JobID: jobID,
				Unit:  unit,
				Result: WorkResult{
					WorkUnitID: unit.ID,
					Success:    false,
					Error:      err,
				},
			}
		}
	}

	s.logger.Debug("enqueued work units", "job_id", jobID, "count", len(units))
}

// findPool finds an appropriate pool for the work unit.
func (s *Scheduler) findPool(unit *WorkUnit) WorkerPool {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if unit.Type == WorkUnitTypeCPU {
		if s.cpuPool == nil {
			return nil
		}
		return s.cpuPool
	}

	if unit.Provider != "" {
		if p, ok := s.pools[unit.Provider]; ok && p.Type() == PoolTypeOCR {
			return p
		}
		return nil
	}

	for _, p := range s.pools {
		if p.Type() == PoolTypeOCR {
			return p
		}
	}
	return nil
}

// handleResult routes a work result back to its job.
func (s *Scheduler) handleResult(ctx context.Context, res workerResult) {
	s.mu.Lock()
	job, ok := s.jobs[res.JobID]
	if ok {
		s.pending[res.JobID]--
	}
	s.mu.Unlock()

	if !ok {
		s.logger.Warn("received result for unknown job", "job_id", res.JobID)
		return
	}

	newUnits, err := job.OnComplete(ctx, res.Result)
	if err != nil {
		s.logger.Error("job OnComplete failed", "job_id", res.JobID, "error", err)
	}

	if len(newUnits) > 0 {
		s.enqueueUnits(res.JobID, newUnits)
	}

	s.finishIfDone(ctx, res.JobID)
}

// finishIfDone removes a job once it reports done with no pending units.
func (s *Scheduler) finishIfDone(ctx context.Context, jobID string) {
	s.mu.Lock()
	job, ok := s.jobs[jobID]
	isDone := ok && job.Done() && s.pending[jobID] == 0
	if isDone {
		delete(s.jobs, jobID)
		delete(s.pending, jobID)
	}
	s.mu.Unlock()

	if !isDone {
		return
	}

	if s.manager != nil {
		if err := s.manager.UpdateStatus(ctx, jobID, StatusCompleted, ""); err != nil {
			s.logger.Warn("failed to mark job completed", "job_id", jobID, "error", err)
		}
	}
	s.logger.Info("job completed", "job_id", jobID, "type", job.Type())
}

// Resume restarts jobs that were interrupted (status: running).
// Requires job factories to be registered for each job type.
func (s *Scheduler) Resume(ctx context.Context) (int, error) {
	if s.manager == nil {
		return 0, fmt.Errorf("manager required for resume")
	}

	records, err := s.manager.List(ctx, ListFilter{Status: StatusRunning})
	if err != nil {
		return 0, fmt.Errorf("failed to list running jobs: %w", err)
	}

	resumed := 0
	for _, record := range records {
		s.mu.RLock()
		factory, ok := s.factories[record.JobType]
		s.mu.RUnlock()

		if !ok {
			s.logger.Warn("no factory for job type, cannot resume",
				"job_id", record.ID, "type", record.JobType)
			continue
		}

		job, err := factory(record.ID, record.Metadata)
		if err != nil {
			s.logger.Error("failed to recreate job", "job_id", record.ID, "error", err)
			continue
		}

		s.mu.Lock()
		s.jobs[job.ID()] = job
		s.pending[job.ID()] = 0
		s.mu.Unlock()

		units, err := job.Start(ctx)
		if err != nil {
			s.logger.Error("failed to resume job", "job_id", record.ID, "error", err)
			_ = s.manager.UpdateStatus(ctx, record.ID, StatusFailed, err.Error())
			continue
		}

		s.enqueueUnits(job.ID(), units)
		s.finishIfDone(ctx, job.ID())
		resumed++
		s.logger.Info("job resumed", "job_id", record.ID, "type", record.JobType)
	}

	return resumed, nil
}

// JobStatus returns the status of an active job.
func (s *Scheduler) JobStatus(ctx context.Context, jobID string) (map[string]string, error) {
	s.mu.RLock()
	job, ok := s.jobs[jobID]
	pending := s.pending[jobID]
	s.mu.RUnlock()

	if !ok {
		return nil, fmt.Errorf("job not found: %s", jobID)
	}

	status, err := job.Status(ctx)
	if err != nil {
		return nil, err
	}
	if status == nil {
		status = make(map[string]string)
	}
	status["pending_units"] = fmt.Sprintf("%d", pending)
	return status, nil
}

// PoolStatuses returns the status of every registered pool.
func (s *Scheduler) PoolStatuses() []PoolStatus {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]PoolStatus, 0, len(s.pools))
	for _, p := range s.pools {
		out = append(out, p.Status())
	}
	return out
}

// ActiveJobs returns the number of active jobs.
func (s *Scheduler) ActiveJobs() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.jobs)
}
