package bench

import (
	"context"
	"sync"
	"time"
)

// Limiter is a token-bucket rate limiter with blocking acquisition. The
// bucket holds up to one second's worth of permits, so an idle limiter
// allows a short burst but the admission rate converges to the configured
// average over any longer window.
type Limiter struct {
	mu     sync.Mutex
	rate   float64 // permits per second
	burst  float64
	tokens float64 // may go negative: Wait borrows the next permit
	last   time.Time
}

// NewLimiter creates a limiter admitting rate permits per second. rate must
// be positive.
func NewLimiter(rate float64) *Limiter {
	if rate <= 0 {
		rate = 1
	}
	burst := rate
	if burst < 1 {
		burst = 1
	}
	return &Limiter{
		rate:   rate,
		burst:  burst,
		tokens: 1,
		last:   time.Now(),
	}
}

// Wait blocks until the limiter admits one permit or ctx is cancelled. It
// yields cooperatively via a timer, never busy-spins.
func (l *Limiter) Wait(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	l.mu.Lock()
	l.advance(time.Now())
	l.tokens--
	var wait time.Duration
	if l.tokens < 0 {
		wait = time.Duration(-l.tokens / l.rate * float64(time.Second))
	}
	l.mu.Unlock()

	if wait <= 0 {
		return nil
	}
	t := time.NewTimer(wait)
	defer t.Stop()
	select {
	case <-t.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// advance refills tokens for the elapsed time, capped at the burst size.
// Caller holds l.mu.
func (l *Limiter) advance(now time.Time) {
	elapsed := now.Sub(l.last).Seconds()
	if elapsed <= 0 {
		return
	}
	l.tokens += elapsed * l.rate
	if l.tokens > l.burst {
		l.tokens = l.burst
	}
	l.last = now
}
