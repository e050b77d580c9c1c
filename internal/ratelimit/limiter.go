// Package ratelimit implements the per-source token bucket throttle.
package ratelimit

import (
	"context"
	"fmt"
	"sync"
	"time"

	"golang.org/x/time/rate"

	"github.com/granthalaya/sanskritcrawl/internal/metrics"
)

// blockedThreshold is the minimum wait considered an actual block rather
// than scheduler noise.
const blockedThreshold = time.Millisecond

// Limiter is a token bucket allowing bursts up to its capacity while holding
// the long-run average rate. Safe for concurrent callers.
type Limiter struct {
	source  string
	limiter *rate.Limiter

	mu       sync.Mutex
	acquired uint64
	blocked  uint64
	waited   time.Duration
}

// Stats is a snapshot of limiter counters.
type Stats struct {
	Rate        float64       `json:"rate"`
	Burst       int           `json:"burst"`
	Acquired    uint64        `json:"acquired"`
	Blocked     uint64        `json:"blocked"`
	TotalWait   time.Duration `json:"total_wait_ns"`
	AverageWait time.Duration `json:"average_wait_ns"`
}

// New builds a Limiter emitting rps tokens per second with the given burst
// capacity. A non-positive burst is clamped to 1.
func New(source string, rps float64, burst int) (*Limiter, error) {
	if rps <= 0 {
		return nil, fmt.Errorf("rate limit must be > 0, got %v", rps)
	}
	if burst <= 0 {
		burst = 1
	}
	return &Limiter{
		source:  source,
		limiter: rate.NewLimiter(rate.Limit(rps), burst),
	}, nil
}

// Acquire blocks until a token is available or the context ends, then
// consumes one token.
func (l *Limiter) Acquire(ctx context.Context) error {
	start := time.Now()
	if err := l.limiter.Wait(ctx); err != nil {
		return fmt.Errorf("rate limit wait: %w", err)
	}
	waited := time.Since(start)

	l.mu.Lock()
	l.acquired++
	if waited > blockedThreshold {
		l.blocked++
		l.waited += waited
	}
	l.mu.Unlock()

	if waited > blockedThreshold {
		metrics.ObserveRateLimitDelay(l.source, waited)
	}
	return nil
}

// Stats returns a snapshot of the limiter counters.
func (l *Limiter) Stats() Stats {
	l.mu.Lock()
	defer l.mu.Unlock()
	s := Stats{
		Rate:      float64(l.limiter.Limit()),
		Burst:     l.limiter.Burst(),
		Acquired:  l.acquired,
		Blocked:   l.blocked,
		TotalWait: l.waited,
	}
	if l.blocked > 0 {
		s.AverageWait = l.waited / time.Duration(l.blocked)
	}
	return s
}
