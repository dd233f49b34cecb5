package ratelimit

import (
	"context"
	"sync"
	"time"
)

// Limiter is a token bucket refilled at a fixed rate. Take blocks
// until a token is available or the context is done, keeping each
// provider under its documented request budget.
type Limiter struct {
	mu       sync.Mutex
	tokens   float64
	capacity float64
	perSec   float64
	last     time.Time

	now func() time.Time
}

// New builds a limiter allowing requests requests per interval, with a
// burst of up to requests tokens.
func New(requests int, interval time.Duration) *Limiter {
	if requests <= 0 {
		requests = 1
	}
	if interval <= 0 {
		interval = time.Second
	}
	n := float64(requests)
	return &Limiter{
		tokens:   n,
		capacity: n,
		perSec:   n / interval.Seconds(),
		last:     time.Now(),
		now:      time.Now,
	}
}

func (l *Limiter) refillLocked() {
	now := l.now()
	elapsed := now.Sub(l.last).Seconds()
	if elapsed > 0 {
		l.tokens += elapsed * l.perSec
		if l.tokens > l.capacity {
			l.tokens = l.capacity
		}
		l.last = now
	}
}

// Take consumes one token, blocking until one accrues.
func (l *Limiter) Take(ctx context.Context) error {
	for {
		l.mu.Lock()
		l.refillLocked()
		if l.tokens >= 1 {
			l.tokens--
			l.mu.Unlock()
			return nil
		}
		wait := time.Duration((1 - l.tokens) / l.perSec * float64(time.Second))
		l.mu.Unlock()

		timer := time.NewTimer(wait)
		select {
		case <-ctx.Done():
			timer.Stop()
			return ctx.Err()
		case <-timer.C:
		}
	}
}

// Allow consumes a token without blocking, reporting whether one was
// available.
func (l *Limiter) Allow() bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.refillLocked()
	if l.tokens >= 1 {
		l.tokens--
		return true
	}
	return false
}
