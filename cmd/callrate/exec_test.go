package main

import (
	"io"
	"net/http"
	"net/http/httptest"
	"os/exec"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/spf13/pflag"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"callrate/pkg/logger"
	"callrate/pkg/metrics"
	"callrate/pkg/ratelimit"
)

func runCLI(t *testing.T, args ...string) error {
	t.Helper()
	t.Setenv("HOME", t.TempDir())

	// flag values and Changed marks survive between Execute calls
	for _, fs := range []*pflag.FlagSet{rootCmd.PersistentFlags(), execCmd.Flags(), probeCmd.Flags()} {
		fs.VisitAll(func(f *pflag.Flag) {
			_ = f.Value.Set(f.DefValue)
			f.Changed = false
		})
	}

	rootCmd.SetArgs(args)
	return rootCmd.Execute()
}

func TestExecRunsCommandAtRate(t *testing.T) {
	sh, err := exec.LookPath("sh")
	if err != nil {
		t.Skip("sh not available")
	}

	start := time.Now()
	err = runCLI(t, "exec", "-q", "--log-level", "disabled",
		"--delay", "30ms", "--count", "4", "--workers", "2",
		"--", sh, "-c", "exit 0")
	require.NoError(t, err)
	assert.GreaterOrEqual(t, time.Since(start), 3*27*time.Millisecond)
}

func TestExecReportsFailedRuns(t *testing.T) {
	sh, err := exec.LookPath("sh")
	if err != nil {
		t.Skip("sh not available")
	}

	err = runCLI(t, "exec", "-q", "--log-level", "disabled",
		"--rps", "100", "--count", "2",
		"--", sh, "-c", "exit 1")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "2 of 2 runs failed")
}

func TestMetricsEndpoint(t *testing.T) {
	reg := prometheus.NewRegistry()
	rec, err := metrics.NewRecorder("callrate", reg)
	require.NoError(t, err)

	gate, err := ratelimit.New(ratelimit.WithObserver(rec), ratelimit.WithLogger(logger.Nop()))
	require.NoError(t, err)
	require.NoError(t, rec.TrackGate(gate))
	require.NoError(t, gate.Wait(ratelimit.NewTarget("job"), time.Millisecond))

	srv := httptest.NewServer(metricsHandler(reg))
	defer srv.Close()

	resp, err := http.Get(srv.URL + "/metrics")
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	assert.Contains(t, string(body), `callrate_passes_total{target="job"} 1`)
	assert.Contains(t, string(body), `callrate_targets{gate="gate"} 1`)
}
