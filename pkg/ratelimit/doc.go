// Package ratelimit enforces a minimum interval between successive calls of
// the same target.
//
// A Gate owns the per-target state. Each Target (a function wrapped through a
// Policy, or any identity created with NewTarget) has its own last-call
// timestamp and its own lock, so:
//
//   - for one target, consecutive passes are always at least the interval
//     apart, however many goroutines contend for it;
//   - distinct targets never wait on each other.
//
// Intervals are configured as requests per second (interval = 1/RPS) or as a
// plain delay. A gate may carry a default interval set at construction.
//
// Usage:
//
//	gate, err := ratelimit.New(ratelimit.WithRPS(5))
//	if err != nil {
//	    return err // ConfigurationError
//	}
//
//	// Wrap a function with the default interval (200ms)
//	policy, _ := gate.Default()
//	fetch := ratelimit.WrapContext(policy, client.Fetch)
//	body, err := fetch(ctx, url)
//
//	// Or limit a particular call site explicitly
//	slow, _ := gate.ByDelay(2 * time.Second)
//	notify := slow.Wrap(sendNotification)
//
//	// Or throttle the gate itself
//	_ = gate.SleepByRPS(ctx, 3)
//
// Waiting honours context cancellation both while queued behind another
// caller and while sleeping. A cancelled wait never counts as a pass.
//
// State lives for the lifetime of the gate. WithRetention lets a gate drop
// state of targets that have been idle longer than a retention period, in
// which case every interval used on that gate must be shorter than it.
//
// This package does not implement bursts, token buckets or queuing; it only
// spaces calls.
package ratelimit
