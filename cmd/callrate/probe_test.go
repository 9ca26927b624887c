package main

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"callrate/pkg/config"
	"callrate/pkg/logger"
	"callrate/pkg/ratelimit"
)

func TestProbeRespectsInterval(t *testing.T) {
	gate, err := ratelimit.New(ratelimit.WithDelay(20*time.Millisecond), ratelimit.WithLogger(logger.Nop()))
	require.NoError(t, err)
	policy, err := gate.Default()
	require.NoError(t, err)

	report, err := probe(context.Background(), policy, 4, 10)
	require.NoError(t, err)

	assert.Equal(t, 10, report.Calls)
	assert.Equal(t, 20*time.Millisecond, report.Interval)
	assert.True(t, report.OK(), "min gap %s", report.MinGap)
	assert.GreaterOrEqual(t, report.Elapsed, 9*18*time.Millisecond)
}

func TestProbeCanceled(t *testing.T) {
	gate, err := ratelimit.New(ratelimit.WithDelay(time.Hour), ratelimit.WithLogger(logger.Nop()))
	require.NoError(t, err)
	policy, err := gate.Default()
	require.NoError(t, err)

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Millisecond)
	defer cancel()
	_, err = probe(ctx, policy, 2, 4)
	assert.Error(t, err)
}

func TestProbeReportOK(t *testing.T) {
	assert.True(t, ProbeReport{Interval: time.Second, Calls: 1}.OK())
	assert.True(t, ProbeReport{Interval: time.Second, Calls: 3, MinGap: 950 * time.Millisecond}.OK())
	assert.False(t, ProbeReport{Interval: time.Second, Calls: 3, MinGap: 500 * time.Millisecond}.OK())
}

func TestGateOptions(t *testing.T) {
	rps := 4.0
	cfg := config.DefaultConfig()
	cfg.Gate.RPS = &rps
	cfg.Gate.Retention = time.Minute

	gate, stop, err := newGate(cfg, logger.Nop())
	require.NoError(t, err)
	defer stop()

	interval, ok := gate.DefaultInterval()
	assert.True(t, ok)
	assert.Equal(t, 250*time.Millisecond, interval)
	assert.Equal(t, "callrate", gate.Name())

	_, err = gate.ByDelay(time.Minute)
	assert.Error(t, err, "retention bounds every interval")
}

func TestDefaultPolicyRequiresRate(t *testing.T) {
	gate, stop, err := newGate(config.DefaultConfig(), logger.Nop())
	require.NoError(t, err)
	defer stop()

	_, err = defaultPolicy(gate)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "--rps or --delay")
}
