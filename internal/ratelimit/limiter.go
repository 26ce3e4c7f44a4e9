package ratelimit

import (
	"context"
	"sync"
	"time"

	"golang.org/x/time/rate"
)

const (
	initialBackoff = 100 * time.Millisecond
	maxBackoff     = 2 * time.Minute
)

// Limiter wraps rate.Limiter with a cooldown for upstream 429 responses.
// The steady-state rate keeps polite spacing between requests; the cooldown
// kicks in only after the upstream has actually pushed back, doubling on
// every repeat offense up to a cap.
type Limiter struct {
	limiter *rate.Limiter
	name    string

	mu      sync.Mutex
	backoff time.Duration
	until   time.Time
}

// NewLimiter creates a new rate limiter.
// perMinute specifies the number of requests allowed per minute; zero or
// negative means unlimited.
func NewLimiter(name string, perMinute int) *Limiter {
	limit := rate.Inf
	burst := 1
	if perMinute > 0 {
		// Convert per-minute rate to per-second
		limit = rate.Limit(float64(perMinute) / 60.0)
		// Allow burst of up to 5 requests or 1/10th of per-minute limit
		burst = perMinute / 10
		if burst < 1 {
			burst = 1
		}
		if burst > 5 {
			burst = 5
		}
	}

	return &Limiter{
		limiter: rate.NewLimiter(limit, burst),
		name:    name,
		backoff: initialBackoff,
	}
}

// Wait blocks until a token is available and any active cooldown has passed,
// or the context is cancelled.
func (l *Limiter) Wait(ctx context.Context) error {
	l.mu.Lock()
	until := l.until
	l.mu.Unlock()

	if wait := time.Until(until); wait > 0 {
		timer := time.NewTimer(wait)
		defer timer.Stop()
		select {
		case <-timer.C:
		case <-ctx.Done():
			return ctx.Err()
		}
	}
	return l.limiter.Wait(ctx)
}

// Allow reports whether an event may happen now
func (l *Limiter) Allow() bool {
	l.mu.Lock()
	cooling := time.Now().Before(l.until)
	l.mu.Unlock()
	if cooling {
		return false
	}
	return l.limiter.Allow()
}

// SignalRateLimited should be called when a 429 response is received.
// It starts a cooldown and doubles it for the next offense.
func (l *Limiter) SignalRateLimited() {
	l.mu.Lock()
	defer l.mu.Unlock()

	l.until = time.Now().Add(l.backoff)
	l.backoff *= 2
	if l.backoff > maxBackoff {
		l.backoff = maxBackoff
	}
}

// ResetBackoff clears the cooldown after a successful request
func (l *Limiter) ResetBackoff() {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.backoff = initialBackoff
	l.until = time.Time{}
}

// GetBackoff returns the next cooldown duration
func (l *Limiter) GetBackoff() time.Duration {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.backoff
}

// Name returns the limiter name
func (l *Limiter) Name() string {
	return l.name
}
