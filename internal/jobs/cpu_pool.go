package jobs

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
)

// CPUWorkerPool manages workers for local CPU-bound tasks: page splits,
// rendering, image extraction, finalize steps. All workers share one queue
// and there is no rate limiting.
type CPUWorkerPool struct {
	name        string
	logger      *slog.Logger
	workerCount int
	queueSize   int

	queue   chan *WorkUnit
	results chan<- workerResult

	handlers map[string]CPUTaskHandler
	mu       sync.RWMutex

	inFlight atomic.Int32
}

// CPUWorkerPoolConfig configures a new CPU worker pool.
type CPUWorkerPoolConfig struct {
	Name        string
	Logger      *slog.Logger
	WorkerCount int // Number of worker goroutines
	QueueSize   int // Queue size (default: 10000)
}

// NewCPUWorkerPool creates a new CPU worker pool.
func NewCPUWorkerPool(cfg CPUWorkerPoolConfig) *CPUWorkerPool {
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}

	name := cfg.Name
	if name == "" {
		name = "cpu"
	}

	queueSize := cfg.QueueSize
	if queueSize <= 0 {
		queueSize = 10000
	}

	workerCount := cfg.WorkerCount
	if workerCount <= 0 {
		workerCount = 1
	}

	return &CPUWorkerPool{
		name:        name,
		logger:      logger.With("pool", name, "type", PoolTypeCPU, "workers", workerCount),
		workerCount: workerCount,
		queueSize:   queueSize,
		handlers:    make(map[string]CPUTaskHandler),
	}
}

// RegisterHandler registers a handler for a task type.
func (p *CPUWorkerPool) RegisterHandler(taskName string, handler CPUTaskHandler) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.handlers[taskName] = handler
	p.logger.Debug("registered CPU task handler", "task", taskName)
}

// Name returns the pool name.
func (p *CPUWorkerPool) Name() string {
	return p.name
}

// Type returns PoolTypeCPU.
func (p *CPUWorkerPool) Type() PoolType {
	return PoolTypeCPU
}

// init initializes channels. Called by the scheduler before Start.
func (p *CPUWorkerPool) init(results chan<- workerResult) {
	p.queue = make(chan *WorkUnit, p.queueSize)
	p.results = results
}

// Start begins the pool's processing. Blocks until ctx cancelled.
func (p *CPUWorkerPool) Start(ctx context.Context) {
	p.logger.Debug("cpu pool started")

	for i := 0; i < p.workerCount; i++ {
		go p.worker(ctx, i)
	}

	<-ctx.Done()
	p.logger.Debug("cpu pool stopping")
}

// worker processes work units from the shared queue.
func (p *CPUWorkerPool) worker(ctx context.Context, id int) {
	for {
		select {
		case <-ctx.Done():
			return

		case unit := <-p.queue:
			p.inFlight.Add(1)
			result := p.process(ctx, unit)
			p.inFlight.Add(-1)
			p.results <- workerResult{
				JobID:  unit.JobID,
				Unit:   unit,
				Result: result,
			}
		}
	}
}

// Submit adds a work unit to the pool's queue.
func (p *CPUWorkerPool) Submit(unit *WorkUnit) error {
	select {
	case p.queue <- unit:
		return nil
	default:
		return fmt.Errorf("%w: %s", ErrWorkerQueueFull, p.name)
	}
}

// Status returns current pool status.
func (p *CPUWorkerPool) Status() PoolStatus {
	return PoolStatus{
		Name:       p.name,
		Type:       string(PoolTypeCPU),
		Workers:    p.workerCount,
		InFlight:   int(p.inFlight.Load()),
		QueueDepth: len(p.queue),
	}
}

// process executes a CPU work unit.
func (p *CPUWorkerPool) process(ctx context.Context, unit *WorkUnit) WorkResult {
	result := WorkResult{
		WorkUnitID: unit.ID,
	}

	if unit.Type != WorkUnitTypeCPU {
		result.Success = false
		result.Error = fmt.Errorf("work unit type %s does not match pool type cpu", unit.Type)
		return result
	}
	if unit.CPURequest == nil {
		result.Success = false
		result.Error = fmt.Errorf("CPU work unit missing CPURequest")
		return result
	}

	p.mu.RLock()
	handler, ok := p.handlers[unit.CPURequest.Task]
	p.mu.RUnlock()

	if !ok {
		result.Success = false
		result.Error = fmt.Errorf("no handler registered for CPU task: %s", unit.CPURequest.Task)
		return result
	}

	cpuResult, err := handler(ctx, unit.CPURequest)
	if err != nil {
		result.Success = false
		result.Error = err
		p.logger.Debug("CPU work unit failed", "unit_id", unit.ID, "task", unit.CPURequest.Task, "error", err)
		return result
	}

	result.Success = true
	result.CPUResult = cpuResult
	p.logger.Debug("CPU work unit completed", "unit_id", unit.ID, "task", unit.CPURequest.Task)

	return result
}

// Verify interface compliance
var _ WorkerPool = (*CPUWorkerPool)(nil)
