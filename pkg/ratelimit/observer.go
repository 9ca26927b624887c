package ratelimit

import "time"

// Observer is notified about gate activity. OnPass runs while the target's
// lock is held, so it must be quick and must not call back into the gate for
// the same target.
type Observer interface {
	// OnPass is called when a call passes; waited is how long it slept.
	OnPass(target *Target, waited time.Duration)
	// OnCancel is called when a wait is abandoned because its context ended.
	OnCancel(target *Target, err error)
}

// NopObserver ignores every event.
type NopObserver struct{}

var _ Observer = NopObserver{}

func (NopObserver) OnPass(*Target, time.Duration) {}

func (NopObserver) OnCancel(*Target, error) {}
