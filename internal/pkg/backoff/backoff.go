// Package backoff computes capped exponential reconnect delays.
package backoff

import (
	"context"
	"time"
)

// Policy bounds a reconnect loop.
type Policy struct {
	Base        time.Duration
	Max         time.Duration
	MaxAttempts int
}

// Delay returns the wait before the given attempt (1-based):
// base * 2^(attempt-1), capped at Max.
func (p Policy) Delay(attempt int) time.Duration {
	if attempt < 1 {
		attempt = 1
	}
	shift := attempt - 1
	if shift > 30 {
		// avoid overflow
		shift = 30
	}
	delay := p.Base * time.Duration(int64(1)<<shift)
	if delay <= 0 || (p.Max > 0 && delay > p.Max) {
		delay = p.Max
	}
	return delay
}

// Schedule lists the delay before every attempt in the budget.
func (p Policy) Schedule() []time.Duration {
	out := make([]time.Duration, 0, p.MaxAttempts)
	for i := 1; i <= p.MaxAttempts; i++ {
		out = append(out, p.Delay(i))
	}
	return out
}

// Sleep waits for d or until ctx is done.
func Sleep(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
