package ratelimit

import (
	"context"
	"sort"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	errs "callrate/pkg/errors"
)

func TestPolicies(t *testing.T) {
	g := newGate(t, WithRPS(5))

	p, err := g.Default()
	require.NoError(t, err)
	assert.Equal(t, 200*time.Millisecond, p.Interval())
	assert.Same(t, g, p.Gate())

	p, err = g.ByRPS(10)
	require.NoError(t, err)
	assert.Equal(t, 100*time.Millisecond, p.Interval())

	p, err = g.ByDelay(time.Second)
	require.NoError(t, err)
	assert.Equal(t, time.Second, p.Interval())

	_, err = g.ByRPS(-1)
	assert.True(t, errs.IsConfiguration(err))
	_, err = g.ByDelay(0)
	assert.True(t, errs.IsConfiguration(err))
}

func TestWrapRegistersEagerly(t *testing.T) {
	g, _ := newFakeGate(t)
	p, err := g.ByDelay(time.Second)
	require.NoError(t, err)

	p.Wrap(func() {})
	Wrap(p, strings.ToUpper)
	assert.Equal(t, 2, g.Targets())
}

func TestWrapPassesArgumentsAndResults(t *testing.T) {
	g, clk := newFakeGate(t)
	p, err := g.ByDelay(100 * time.Millisecond)
	require.NoError(t, err)

	upper := Wrap(p, strings.ToUpper)
	assert.Equal(t, "A", upper("a"))
	assert.Equal(t, "B", upper("b"))
	assert.Equal(t, []time.Duration{100 * time.Millisecond}, clk.Sleeps())

	lookup := WrapContext(p, func(ctx context.Context, key string) (int, error) {
		return len(key), nil
	})
	n, err := lookup(context.Background(), "four")
	require.NoError(t, err)
	assert.Equal(t, 4, n)
	assert.Len(t, clk.Sleeps(), 1, "new wrap, new target")
}

func TestWrapErrSkipsCallWhenCanceled(t *testing.T) {
	g, _ := newFakeGate(t)
	p, err := g.ByDelay(time.Second)
	require.NoError(t, err)

	calls := 0
	fn := p.WrapErr(func(ctx context.Context) error {
		calls++
		return nil
	})

	require.NoError(t, fn(context.Background()))

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	err = fn(ctx)
	assert.True(t, errs.IsCanceled(err))
	assert.Equal(t, 1, calls)

	get := WrapContext(p, func(ctx context.Context, id int) (string, error) {
		return "value", nil
	})
	v, err := get(ctx, 1)
	assert.True(t, errs.IsCanceled(err))
	assert.Empty(t, v)
}

func TestWrapNamesTargetAfterFunction(t *testing.T) {
	g, _ := newFakeGate(t)
	p, err := g.ByDelay(time.Second)
	require.NoError(t, err)

	l := p.For(NewTarget(funcName(strings.ToLower)))
	assert.Equal(t, "strings.ToLower", l.Target().Name())
	assert.Equal(t, "func", funcName(nil))
}

func TestWrapSequentialRealClock(t *testing.T) {
	g := newGate(t, WithRPS(10))
	p, err := g.Default()
	require.NoError(t, err)

	var stamps []time.Time
	call := p.Wrap(func() { stamps = append(stamps, time.Now()) })

	start := time.Now()
	call()
	assert.Less(t, time.Since(start), 50*time.Millisecond, "first call must not wait")

	call()
	call()
	call()
	assertSpaced(t, stamps, tolerance(p.Interval()))
}

func TestWrapConcurrentRealClock(t *testing.T) {
	g := newGate(t)
	p, err := g.ByDelay(50 * time.Millisecond)
	require.NoError(t, err)

	var mu sync.Mutex
	var stamps []time.Time
	call := Wrap(p, func(int) struct{} {
		mu.Lock()
		stamps = append(stamps, time.Now())
		mu.Unlock()
		return struct{}{}
	})

	var wg sync.WaitGroup
	for i := 0; i < 6; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			call(i)
		}(i)
	}
	wg.Wait()

	require.Len(t, stamps, 6)
	sort.Slice(stamps, func(i, j int) bool { return stamps[i].Before(stamps[j]) })
	assertSpaced(t, stamps, tolerance(p.Interval()))
}

func TestWrapDistinctTargetsDoNotWait(t *testing.T) {
	g := newGate(t)
	p, err := g.ByDelay(200 * time.Millisecond)
	require.NoError(t, err)

	var first, second time.Time
	a := p.Wrap(func() { first = time.Now() })
	b := p.Wrap(func() { second = time.Now() })

	a()
	b()
	assert.Less(t, second.Sub(first), p.Interval())
}

func TestLimitByDelayThreeCalls(t *testing.T) {
	interval, err := LimitByDelay(200 * time.Millisecond)
	require.NoError(t, err)

	g := newGate(t)
	p, err := g.ByDelay(interval)
	require.NoError(t, err)

	var stamps []time.Time
	call := p.Wrap(func() { stamps = append(stamps, time.Now()) })
	call()
	call()
	call()

	assertSpaced(t, stamps, 180*time.Millisecond)
}
