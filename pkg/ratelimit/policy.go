package ratelimit

import (
	"context"
	"time"

	errs "callrate/pkg/errors"
)

// Policy is a validated interval bound to a gate. Obtain one from ByRPS,
// ByDelay or Default; the zero Policy is not usable.
type Policy struct {
	gate     *Gate
	interval time.Duration
}

// ByRPS returns a policy limiting each wrapped target to maxRPS calls per
// second.
func (g *Gate) ByRPS(maxRPS float64) (Policy, error) {
	interval, err := LimitByRPS(maxRPS)
	if err != nil {
		return Policy{}, err
	}
	return g.policy(interval)
}

// ByDelay returns a policy enforcing at least d between calls of each
// wrapped target.
func (g *Gate) ByDelay(d time.Duration) (Policy, error) {
	interval, err := LimitByDelay(d)
	if err != nil {
		return Policy{}, err
	}
	return g.policy(interval)
}

// Default returns a policy using the interval given to New. It fails when
// the gate was built without WithRPS or WithDelay.
func (g *Gate) Default() (Policy, error) {
	if g.interval <= 0 {
		return Policy{}, errs.NewConfigurationError("default", "no default rate limit set; use ByRPS or ByDelay")
	}
	return g.policy(g.interval)
}

func (g *Gate) policy(interval time.Duration) (Policy, error) {
	if err := g.checkInterval(interval); err != nil {
		return Policy{}, err
	}
	return Policy{gate: g, interval: interval}, nil
}

// Interval returns the policy's minimum spacing.
func (p Policy) Interval() time.Duration {
	return p.interval
}

// Gate returns the gate the policy belongs to.
func (p Policy) Gate() *Gate {
	return p.gate
}

// For binds the policy to an existing target. State for the target is
// created right away. A limiter for a nil target fails every Wait with a
// configuration error and never allows a pass.
func (p Policy) For(target *Target) *Limiter {
	if target != nil {
		p.gate.state(target)
	}
	return &Limiter{gate: p.gate, target: target, interval: p.interval}
}

// Wrap returns fn limited to the policy's interval. Each call of Wrap
// creates a new target, so two wraps of the same function are limited
// independently.
func (p Policy) Wrap(fn func()) func() {
	l := p.For(NewTarget(funcName(fn)))
	return func() {
		// cannot fail: the interval is validated and the context never ends
		_ = l.Wait(context.Background())
		fn()
	}
}

// WrapErr is Wrap for functions taking a context. A wait abandoned because
// ctx ended is returned without calling fn.
func (p Policy) WrapErr(fn func(context.Context) error) func(context.Context) error {
	l := p.For(NewTarget(funcName(fn)))
	return func(ctx context.Context) error {
		if err := l.Wait(ctx); err != nil {
			return err
		}
		return fn(ctx)
	}
}

// Wrap limits a single-argument function, passing its argument and result
// through unchanged.
func Wrap[A, R any](p Policy, fn func(A) R) func(A) R {
	l := p.For(NewTarget(funcName(fn)))
	return func(arg A) R {
		_ = l.Wait(context.Background())
		return fn(arg)
	}
}

// WrapContext limits a context-aware function. If the wait is abandoned the
// zero R and the canceled error are returned and fn is not called.
func WrapContext[A, R any](p Policy, fn func(context.Context, A) (R, error)) func(context.Context, A) (R, error) {
	l := p.For(NewTarget(funcName(fn)))
	return func(ctx context.Context, arg A) (R, error) {
		if err := l.Wait(ctx); err != nil {
			var zero R
			return zero, err
		}
		return fn(ctx, arg)
	}
}
