package ratelimit

import (
	"context"
	"time"
)

// Limiter applies one policy to one target.
type Limiter struct {
	gate     *Gate
	target   *Target
	interval time.Duration
}

// Wait blocks until the target may pass.
func (l *Limiter) Wait(ctx context.Context) error {
	return l.gate.Await(ctx, l.target, l.interval)
}

// Allow passes without blocking if the interval has already elapsed and no
// other caller holds the target. It reports whether the pass happened.
func (l *Limiter) Allow() bool {
	return l.gate.tryPass(l.target, l.interval)
}

// Reset forgets the last pass so the next call goes through immediately.
func (l *Limiter) Reset() {
	l.gate.reset(l.target)
}

func (l *Limiter) Target() *Target {
	return l.target
}

func (l *Limiter) Interval() time.Duration {
	return l.interval
}
