package jobs

import (
	"context"
	"fmt"
	"log/slog"
	"math/rand"
	"strings"
	"sync/atomic"
	"time"

	"github.com/jackzampolin/docpond/internal/providers"
)

// ProviderWorkerPool manages workers for a single OCR backend. A dispatcher
// goroutine owns the rate limiter and feeds N worker goroutines, so the
// backend's request budget is enforced in one place no matter how many pages
// a document split produced.
type ProviderWorkerPool struct {
	name     string
	provider providers.OCRProvider

	rateLimiter *providers.RateLimiter
	logger      *slog.Logger

	// Jobs submit here; dispatcher pulls.
	queue chan *WorkUnit

	// Internal work channel (dispatcher -> workers).
	work chan *WorkUnit

	// Results channel (workers -> scheduler).
	results chan<- workerResult

	workerCount int
	queueSize   int

	inFlight atomic.Int32
}

// ProviderWorkerPoolConfig configures a new provider worker pool.
type ProviderWorkerPoolConfig struct {
	Name     string
	Logger   *slog.Logger
	Provider providers.OCRProvider

	// Rate limiting (requests per second). If 0, uses the provider default.
	RPS float64

	// Number of worker goroutines (default 4).
	WorkerCount int

	// Queue size (default 1000).
	QueueSize int
}

// NewProviderWorkerPool creates a new provider worker pool.
func NewProviderWorkerPool(cfg ProviderWorkerPoolConfig) (*ProviderWorkerPool, error) {
	if cfg.Provider == nil {
		return nil, fmt.Errorf("provider is required")
	}

	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}

	name := cfg.Name
	if name == "" {
		name = cfg.Provider.Name()
	}

	rps := cfg.RPS
	if rps == 0 {
		rps = cfg.Provider.RequestsPerSecond()
		if rps == 0 {
			rps = 1.0
		}
	}

	workerCount := cfg.WorkerCount
	if workerCount <= 0 {
		workerCount = 4
	}

	queueSize := cfg.QueueSize
	if queueSize <= 0 {
		queueSize = 1000
	}

	return &ProviderWorkerPool{
		name:        name,
		provider:    cfg.Provider,
		rateLimiter: providers.NewRateLimiter(rps),
		logger:      logger.With("pool", name, "type", PoolTypeOCR, "workers", workerCount, "rps", rps),
		workerCount: workerCount,
		queueSize:   queueSize,
	}, nil
}

// Name returns the pool name.
func (p *ProviderWorkerPool) Name() string {
	return p.name
}

// Type returns PoolTypeOCR.
func (p *ProviderWorkerPool) Type() PoolType {
	return PoolTypeOCR
}

// init initializes channels. Called by the scheduler before Start.
func (p *ProviderWorkerPool) init(results chan<- workerResult) {
	p.queue = make(chan *WorkUnit, p.queueSize)
	p.work = make(chan *WorkUnit, p.workerCount)
	p.results = results
}

// Start begins the pool's processing. Blocks until ctx cancelled.
func (p *ProviderWorkerPool) Start(ctx context.Context) {
	p.logger.Debug("provider pool started")

	go p.dispatcher(ctx)
	for i := 0; i < p.workerCount; i++ {
		go p.worker(ctx, i)
	}

	<-ctx.Done()
	p.logger.Debug("provider pool stopping")
}

// dispatcher owns the rate limiter: pulls a unit, waits for a token, hands it
// to a worker.
func (p *ProviderWorkerPool) dispatcher(ctx context.Context) {
	for {
		var unit *WorkUnit
		select {
		case <-ctx.Done():
			return
		case unit = <-p.queue:
		}

		if err := p.rateLimiter.Wait(ctx); err != nil {
			p.results <- workerResult{
				JobID: unit.JobID,
				Unit:  unit,
				Result: WorkResult{
					WorkUnitID: unit.ID,
					Success:    false,
					Error:      fmt.Errorf("rate limit wait cancelled: %w", err),
				},
			}
			continue
		}

		p.inFlight.Add(1)
		select {
		case p.work <- unit:
		case <-ctx.Done():
			p.inFlight.Add(-1)
			return
		}
	}
}

// worker processes work units from the internal work channel.
func (p *ProviderWorkerPool) worker(ctx context.Context, id int) {
	for {
		select {
		case <-ctx.Done():
			return

		case unit, ok := <-p.work:
			if !ok || unit == nil {
				return
			}
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
func (p *ProviderWorkerPool) Submit(unit *WorkUnit) error {
	if p.queue == nil {
		return fmt.Errorf("pool not initialized: call init() before Submit()")
	}
	select {
	case p.queue <- unit:
		return nil
	default:
		return fmt.Errorf("%w: %s", ErrWorkerQueueFull, p.name)
	}
}

// Status returns current pool status.
func (p *ProviderWorkerPool) Status() PoolStatus {
	rlStatus := p.rateLimiter.Status()
	return PoolStatus{
		Name:        p.name,
		Type:        string(PoolTypeOCR),
		Workers:     p.workerCount,
		InFlight:    int(p.inFlight.Load()),
		QueueDepth:  len(p.queue),
		RateLimiter: &rlStatus,
	}
}

// process executes a work unit with retry logic. Rate limiting happened in
// the dispatcher; this only retries transient failures.
func (p *ProviderWorkerPool) process(ctx context.Context, unit *WorkUnit) WorkResult {
	result := WorkResult{
		WorkUnitID: unit.ID,
	}

	if unit.Type != WorkUnitTypeOCR {
		result.Success = false
		result.Error = fmt.Errorf("work unit type %s does not match pool type ocr", unit.Type)
		return result
	}
	if unit.OCRRequest == nil {
		result.Success = false
		result.Error = fmt.Errorf("OCR work unit missing OCRRequest")
		return result
	}

	maxRetries := p.provider.MaxRetries()
	var lastErr error

	for attempt := 0; attempt <= maxRetries; attempt++ {
		ocrResult, err := p.provider.ProcessImage(ctx, unit.OCRRequest.Image, unit.OCRRequest.PageNum)
		result.OCRResult = ocrResult
		if err != nil {
			lastErr = err
			if p.isRetriableError(err) && attempt < maxRetries {
				p.logger.Debug("OCR request failed, retrying",
					"unit_id", unit.ID,
					"attempt", attempt+1,
					"max_attempts", maxRetries+1,
					"error", err)
				p.sleepBeforeRetry(ctx, attempt)
				continue
			}
			result.Success = false
			result.Error = err
		} else {
			result.Success = ocrResult.Success
			if !ocrResult.Success {
				result.Error = fmt.Errorf("OCR failed: %s", ocrResult.ErrorMessage)
			}
		}
		break
	}

	if !result.Success && result.Error == nil && lastErr != nil {
		result.Error = fmt.Errorf("failed after %d attempts: %w", maxRetries+1, lastErr)
	}

	if result.Success {
		p.logger.Debug("work unit completed", "unit_id", unit.ID)
	} else {
		p.logger.Warn("work unit failed", "unit_id", unit.ID, "error", result.Error)
	}

	return result
}

func (p *ProviderWorkerPool) isRetriableError(err error) bool {
	if err == nil {
		return false
	}

	errStr := err.Error()
	if strings.Contains(errStr, "status 500") ||
		strings.Contains(errStr, "status 502") ||
		strings.Contains(errStr, "status 503") ||
		strings.Contains(errStr, "status 504") {
		return true
	}
	if strings.Contains(errStr, "status 429") ||
		strings.Contains(errStr, "rate limit") {
		p.rateLimiter.RecordThrottle(5 * time.Second)
		return true
	}
	if strings.Contains(errStr, "timeout") ||
		strings.Contains(errStr, "deadline exceeded") {
		return true
	}
	if strings.Contains(errStr, "connection refused") ||
		strings.Contains(errStr, "connection reset") ||
		strings.Contains(errStr, "EOF") {
		return true
	}
	return false
}

func (p *ProviderWorkerPool) sleepBeforeRetry(ctx context.Context, attempt int) {
	base := p.provider.RetryDelayBase()
	if base <= 0 {
		base = time.Second
	}
	delay := base * time.Duration(1<<uint(attempt))
	jitter := time.Duration(rand.Intn(1000)) * time.Millisecond
	delay += jitter
	if delay > 30*time.Second {
		delay = 30*time.Second + jitter
	}

	select {
	case <-time.After(delay):
	case <-ctx.Done():
	}
}

// Verify interface compliance
var _ WorkerPool = (*ProviderWorkerPool)(nil)
