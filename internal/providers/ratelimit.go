package providers

import (
	"context"
	"sync"
	"time"
)

// RateLimiter is a token bucket keyed to a requests-per-second budget. One
// limiter exists per provider worker; OCR calls acquire a token before
// dispatch so a slow backend never gets flooded by a large document split.
type RateLimiter struct {
	mu sync.Mutex

	requestsPerSecond float64
	burst             float64

	tokens     float64
	lastUpdate time.Time

	totalConsumed int64
	totalWaited   time.Duration
	lastThrottle  time.Time
}

// RateLimiterStatus reports current limiter state.
type RateLimiterStatus struct {
	TokensAvailable int           `json:"tokens_available"`
	TokensLimit     int           `json:"tokens_limit"`
	Utilization     float64       `json:"utilization"`
	TimeUntilToken  time.Duration `json:"time_until_token"`
	TotalConsumed   int64         `json:"total_consumed"`
	TotalWaited     time.Duration `json:"total_waited"`
	LastThrottle    time.Time     `json:"last_throttle,omitempty"`
}

// NewRateLimiter creates a limiter allowing rps requests per second with a
// burst of one second's worth of tokens.
func NewRateLimiter(rps float64) *RateLimiter {
	if rps <= 0 {
		rps = 2.0
	}
	burst := rps
	if burst < 1 {
		burst = 1
	}
	return &RateLimiter{
		requestsPerSecond: rps,
		burst:             burst,
		tokens:            burst,
		lastUpdate:        time.Now(),
	}
}

// Wait blocks until a token is available or the context is cancelled.
func (r *RateLimiter) Wait(ctx context.Context) error {
	for {
		r.mu.Lock()
		r.refill()

		if r.tokens >= 1.0 {
			r.tokens--
			r.totalConsumed++
			r.mu.Unlock()
			return nil
		}

		needed := 1.0 - r.tokens
		waitTime := time.Duration(needed / r.requestsPerSecond * float64(time.Second))
		r.mu.Unlock()

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(waitTime):
			r.mu.Lock()
			r.totalWaited += waitTime
			r.mu.Unlock()
		}
	}
}

// TryConsume attempts to consume a token without blocking.
func (r *RateLimiter) TryConsume() bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.refill()
	if r.tokens >= 1.0 {
		r.tokens--
		r.totalConsumed++
		return true
	}
	return false
}

// RecordThrottle drains the bucket after a backend signalled overload
// (HTTP 429 or an explicit retry-after).
func (r *RateLimiter) RecordThrottle(retryAfter time.Duration) {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.lastThrottle = time.Now()
	if retryAfter > 0 {
		r.tokens = 0
	}
}

// Status returns a snapshot of the limiter.
func (r *RateLimiter) Status() RateLimiterStatus {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.refill()

	utilization := 1.0 - (r.tokens / r.burst)
	if utilization < 0 {
		utilization = 0
	}

	var timeUntilToken time.Duration
	if r.tokens < 1.0 {
		needed := 1.0 - r.tokens
		timeUntilToken = time.Duration(needed / r.requestsPerSecond * float64(time.Second))
	}

	return RateLimiterStatus{
		TokensAvailable: int(r.tokens),
		TokensLimit:     int(r.burst),
		Utilization:     utilization,
		TimeUntilToken:  timeUntilToken,
		TotalConsumed:   r.totalConsumed,
		TotalWaited:     r.totalWaited,
		LastThrottle:    r.lastThrottle,
	}
}

// refill adds tokens based on elapsed time. Caller must hold the lock.
func (r *RateLimiter) refill() {
	now := time.Now()
	elapsed := now.Sub(r.lastUpdate).Seconds()
	r.lastUpdate = now

	r.tokens += elapsed * r.requestsPerSecond
	if r.tokens > r.burst {
		r.tokens = r.burst
	}
}
