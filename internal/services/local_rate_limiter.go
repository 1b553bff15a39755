package services

import (
	"context"
	"fmt"
	"sync"
	"time"

	"golang.org/x/time/rate"

	"github.com/carenest/therapy-booking/internal/config"
	"github.com/carenest/therapy-booking/pkg/metrics"
)

// LocalRateLimiter keeps one token bucket per scope and caller inside this process.
// It backs single-instance deployments that run without Redis.
type LocalRateLimiter struct {
	mu        sync.Mutex
	buckets   map[string]*localBucket
	limit     rate.Limit
	burst     int
	window    time.Duration
	lastSweep time.Time
	metrics   *metrics.Metrics
	now       func() time.Time
}

type localBucket struct {
	limiter  *rate.Limiter
	lastSeen time.Time
}

// NewLocalRateLimiter allows cfg.Requests per window, refilled continuously
func NewLocalRateLimiter(cfg config.RateLimitConfig, m *metrics.Metrics) *LocalRateLimiter {
	window := time.Duration(cfg.WindowSeconds) * time.Second
	return &LocalRateLimiter{
		buckets: make(map[string]*localBucket),
		limit:   rate.Every(window / time.Duration(cfg.Requests)),
		burst:   cfg.Requests,
		window:  window,
		metrics: m,
		now:     time.Now,
	}
}

// Check takes one token for identifier in scope or returns a *RateLimitError
func (l *LocalRateLimiter) Check(_ context.Context, scope, identifier string) error {
	now := l.now()
	key := scope + ":" + identifier

	l.mu.Lock()
	l.sweep(now)
	b, ok := l.buckets[key]
	if !ok {
		b = &localBucket{limiter: rate.NewLimiter(l.limit, l.burst)}
		l.buckets[key] = b
	}
	b.lastSeen = now
	r := b.limiter.ReserveN(now, 1)
	delay := r.DelayFrom(now)
	if delay > 0 {
		r.CancelAt(now)
	}
	l.mu.Unlock()

	if delay == 0 {
		return nil
	}

	l.metrics.Limited()
	retryAfter := now.Add(delay)
	return &RateLimitError{
		Message:    fmt.Sprintf("Too many requests. Please try again after %s", retryAfter.Format("15:04:05")),
		RetryAfter: retryAfter,
		Type:       scope,
	}
}

// sweep drops buckets idle for a full window; they would have refilled to burst anyway.
// Caller holds mu.
func (l *LocalRateLimiter) sweep(now time.Time) {
	if now.Sub(l.lastSweep) < l.window {
		return
	}
	for key, b := range l.buckets {
		if now.Sub(b.lastSeen) >= l.window {
			delete(l.buckets, key)
		}
	}
	l.lastSweep = now
}

func (l *LocalRateLimiter) size() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.buckets)
}
