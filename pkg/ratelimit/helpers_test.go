package ratelimit

import (
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"callrate/pkg/clock"
	"callrate/pkg/logger"
)

var epoch = time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)

// recorder is an Observer that keeps every event.
type recorder struct {
	mu      sync.Mutex
	passes  []string
	waits   []time.Duration
	cancels []error
}

func (r *recorder) OnPass(t *Target, waited time.Duration) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.passes = append(r.passes, t.Name())
	r.waits = append(r.waits, waited)
}

func (r *recorder) OnCancel(t *Target, err error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.cancels = append(r.cancels, err)
}

func (r *recorder) passCount() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.passes)
}

func (r *recorder) cancelCount() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.cancels)
}

func newFakeGate(t *testing.T, opts ...Option) (*Gate, *clock.Fake) {
	t.Helper()
	clk := clock.NewFake(epoch)
	opts = append([]Option{WithClock(clk), WithLogger(logger.Nop())}, opts...)
	g, err := New(opts...)
	require.NoError(t, err)
	return g, clk
}

func newGate(t *testing.T, opts ...Option) *Gate {
	t.Helper()
	opts = append([]Option{WithLogger(logger.Nop())}, opts...)
	g, err := New(opts...)
	require.NoError(t, err)
	return g
}

// assertSpaced checks that consecutive stamps are at least min apart.
func assertSpaced(t *testing.T, stamps []time.Time, min time.Duration) {
	t.Helper()
	for i := 1; i < len(stamps); i++ {
		gap := stamps[i].Sub(stamps[i-1])
		require.GreaterOrEqual(t, gap, min, "gap %d was %s", i, gap)
	}
}

// tolerance is the slack allowed on real-clock spacing assertions.
func tolerance(d time.Duration) time.Duration {
	return time.Duration(float64(d) * 0.9)
}
