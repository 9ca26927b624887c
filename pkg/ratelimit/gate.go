package ratelimit

import (
	"context"
	"math"
	"time"

	"callrate/pkg/clock"
	errs "callrate/pkg/errors"
	"callrate/pkg/logger"
)

// Gate enforces a minimum interval between passes of each target it
// tracks. A Gate is safe for concurrent use; unrelated targets never
// serialize on each other.
type Gate struct {
	name     string
	interval time.Duration

	clock    clock.Clock
	logger   logger.Logger
	observer Observer
	registry *registry
	self     *Target

	retention time.Duration
	sweep     time.Duration

	// staged by options, resolved once in New
	rps   *float64
	delay *time.Duration
}

// Option configures a Gate.
type Option func(*Gate) error

// WithRPS sets the default interval to 1/rps.
func WithRPS(rps float64) Option {
	return func(g *Gate) error {
		g.rps = &rps
		return nil
	}
}

// WithDelay sets the default interval to d.
func WithDelay(d time.Duration) Option {
	return func(g *Gate) error {
		g.delay = &d
		return nil
	}
}

// WithClock replaces the system clock, mostly for tests.
func WithClock(c clock.Clock) Option {
	return func(g *Gate) error {
		if c == nil {
			return errs.NewConfigurationError("clock", "must not be nil")
		}
		g.clock = c
		return nil
	}
}

func WithLogger(l logger.Logger) Option {
	return func(g *Gate) error {
		if l == nil {
			return errs.NewConfigurationError("logger", "must not be nil")
		}
		g.logger = l
		return nil
	}
}

func WithObserver(o Observer) Option {
	return func(g *Gate) error {
		if o == nil {
			return errs.NewConfigurationError("observer", "must not be nil")
		}
		g.observer = o
		return nil
	}
}

// WithRetention drops the state of targets that have not passed for ttl.
// Expired entries are swept every sweep. Every interval used on the gate
// must then be shorter than ttl. Expiry runs on wall time, so retention
// cannot be combined with a clock other than the system clock.
func WithRetention(ttl, sweep time.Duration) Option {
	return func(g *Gate) error {
		if ttl <= 0 {
			return errs.NewConfigurationError("retention", "must be positive, got %s", ttl)
		}
		if sweep <= 0 {
			return errs.NewConfigurationError("sweep_interval", "must be positive, got %s", sweep)
		}
		g.retention, g.sweep = ttl, sweep
		return nil
	}
}

// WithName labels the gate in logs and names its own target.
func WithName(name string) Option {
	return func(g *Gate) error {
		if name == "" {
			return errs.NewConfigurationError("name", "must not be empty")
		}
		g.name = name
		return nil
	}
}

// New creates a Gate. Setting both WithRPS and WithDelay is an error,
// whatever their order. Without either the gate has no default interval.
func New(opts ...Option) (*Gate, error) {
	g := &Gate{
		name:     "gate",
		clock:    clock.NewSystem(),
		observer: NopObserver{},
	}

	for _, opt := range opts {
		if err := opt(g); err != nil {
			return nil, err
		}
	}

	interval, err := Configure(g.rps, g.delay)
	if err != nil {
		return nil, err
	}
	g.interval = interval
	g.rps, g.delay = nil, nil

	if g.retention > 0 && !isSystemClock(g.clock) {
		return nil, errs.NewConfigurationError("retention", "requires the system clock")
	}

	if g.logger == nil {
		g.logger = logger.GetLogger()
	}
	g.logger = g.logger.WithField("gate", g.name)

	g.registry = newRegistry(g.retention, g.sweep)
	if interval > 0 {
		if err := g.checkInterval(interval); err != nil {
			return nil, err
		}
	}
	g.self = NewTarget(g.name)

	return g, nil
}

// Configure resolves the optional rate forms into an interval. At most one
// may be given; none yields 0, meaning no interval.
func Configure(rps *float64, delay *time.Duration) (time.Duration, error) {
	switch {
	case rps != nil && delay != nil:
		return 0, errs.NewConfigurationError("rate", "cannot specify both rps and delay")
	case rps != nil:
		return intervalFromRPS("rps", *rps)
	case delay != nil:
		return intervalFromDelay("delay", *delay)
	default:
		return 0, nil
	}
}

// LimitByRPS converts a maximum request rate to an interval.
func LimitByRPS(maxRPS float64) (time.Duration, error) {
	return intervalFromRPS("max_rps", maxRPS)
}

// LimitByDelay validates a minimum delay between calls.
func LimitByDelay(d time.Duration) (time.Duration, error) {
	return intervalFromDelay("delay", d)
}

func intervalFromRPS(field string, rps float64) (time.Duration, error) {
	if !(rps > 0) {
		return 0, errs.NewConfigurationError(field, "must be a positive number, got %v", rps)
	}
	ns := float64(time.Second) / rps
	if ns > math.MaxInt64 {
		return 0, errs.NewConfigurationError(field, "%v requests per second is too slow to represent", rps)
	}
	interval := time.Duration(ns)
	if interval <= 0 {
		return 0, errs.NewConfigurationError(field, "%v requests per second is below clock resolution", rps)
	}
	return interval, nil
}

func intervalFromDelay(field string, d time.Duration) (time.Duration, error) {
	if d <= 0 {
		return 0, errs.NewConfigurationError(field, "must be positive, got %s", d)
	}
	return d, nil
}

// Name returns the gate's label.
func (g *Gate) Name() string {
	return g.name
}

// DefaultInterval returns the interval configured at construction and
// whether one was configured.
func (g *Gate) DefaultInterval() (time.Duration, bool) {
	return g.interval, g.interval > 0
}

// Self is the gate's own target, used by SleepByRPS and SleepByDelay.
func (g *Gate) Self() *Target {
	return g.self
}

// Targets returns the number of targets the gate holds state for. With
// retention the count includes expired targets until the next sweep
// removes them.
func (g *Gate) Targets() int {
	return g.registry.len()
}

// Await blocks until target may pass, then records the pass. The first call
// for a target returns immediately. When ctx ends first a canceled error is
// returned and no pass is recorded.
func (g *Gate) Await(ctx context.Context, target *Target, interval time.Duration) error {
	if target == nil {
		return errs.NewConfigurationError("target", "must not be nil")
	}
	if err := g.checkInterval(interval); err != nil {
		return err
	}
	if err := ctx.Err(); err != nil {
		return g.canceled(target, err)
	}

	s, err := g.lockState(ctx, target)
	if err != nil {
		return g.canceled(target, err)
	}
	defer s.unlock()

	var wait time.Duration
	if s.passes > 0 {
		wait = interval - g.clock.Now().Sub(s.last)
	}
	if wait > 0 {
		logger.LogThrottle(g.logger, target.String(), wait)
		if err := g.clock.Sleep(ctx, wait); err != nil {
			return g.canceled(target, err)
		}
	} else {
		wait = 0
	}

	g.stamp(target, s, wait)
	return nil
}

// Wait is Await without cancellation.
func (g *Gate) Wait(target *Target, interval time.Duration) error {
	return g.Await(context.Background(), target, interval)
}

// SleepByRPS throttles the gate's own target to rps passes per second.
func (g *Gate) SleepByRPS(ctx context.Context, rps float64) error {
	interval, err := LimitByRPS(rps)
	if err != nil {
		return err
	}
	return g.Await(ctx, g.self, interval)
}

// SleepByDelay throttles the gate's own target to one pass per d.
func (g *Gate) SleepByDelay(ctx context.Context, d time.Duration) error {
	interval, err := LimitByDelay(d)
	if err != nil {
		return err
	}
	return g.Await(ctx, g.self, interval)
}

// tryPass records a pass only if the target is idle and its interval has
// already elapsed.
func (g *Gate) tryPass(target *Target, interval time.Duration) bool {
	if target == nil || g.checkInterval(interval) != nil {
		return false
	}

	s := g.state(target)
	if !s.tryLock() {
		return false
	}
	defer s.unlock()
	if !g.registry.owns(target.id, s) {
		return false
	}

	if s.passes > 0 && g.clock.Now().Sub(s.last) < interval {
		return false
	}
	g.stamp(target, s, 0)
	return true
}

// reset forgets the target's last pass, waiting for any current holder.
func (g *Gate) reset(target *Target) {
	if target == nil {
		return
	}
	s, _ := g.lockState(context.Background(), target)
	defer s.unlock()

	s.last = time.Time{}
	s.passes = 0
	g.registry.touch(target.id, s)
	g.logger.DebugWithFields("Target reset", map[string]interface{}{
		"target": target.String(),
	})
}

func (g *Gate) stamp(target *Target, s *state, waited time.Duration) {
	s.last = g.clock.Now()
	s.passes++
	g.registry.touch(target.id, s)
	g.observer.OnPass(target, waited)
}

// lockState locks the target's current state. A state that expired while
// the caller was queued on it is replaced, and the caller queues again on
// the replacement.
func (g *Gate) lockState(ctx context.Context, target *Target) (*state, error) {
	for {
		s := g.state(target)
		if err := s.lock(ctx); err != nil {
			return nil, err
		}
		if g.registry.owns(target.id, s) {
			return s, nil
		}
		s.unlock()
	}
}

func (g *Gate) state(target *Target) *state {
	s, created := g.registry.acquire(target.id)
	if created {
		g.logger.DebugWithFields("Registered target", map[string]interface{}{
			"target": target.String(),
		})
	}
	return s
}

func (g *Gate) canceled(target *Target, cause error) error {
	g.observer.OnCancel(target, cause)
	g.logger.WarnWithFields("Wait abandoned", map[string]interface{}{
		"target": target.String(),
		"reason": cause.Error(),
	})
	return errs.NewCanceledError(target.String(), cause)
}

func isSystemClock(c clock.Clock) bool {
	switch c.(type) {
	case *clock.System, clock.System:
		return true
	}
	return false
}

func (g *Gate) checkInterval(interval time.Duration) error {
	if interval <= 0 {
		return errs.NewConfigurationError("interval", "must be positive, got %s", interval)
	}
	if g.retention > 0 && interval >= g.retention {
		return errs.NewConfigurationError("interval", "%s must be shorter than retention %s", interval, g.retention)
	}
	return nil
}
