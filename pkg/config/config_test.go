package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	errs "callrate/pkg/errors"
)

func float(v float64) *float64 { return &v }

func duration(d time.Duration) *time.Duration { return &d }

func TestDefaultConfig(t *testing.T) {
	cfg := DefaultConfig()

	assert.Nil(t, cfg.Gate.RPS)
	assert.Nil(t, cfg.Gate.Delay)
	assert.Equal(t, time.Duration(0), cfg.Gate.Retention)
	assert.Equal(t, 1, cfg.Exec.Workers)
	assert.Equal(t, 1, cfg.Exec.Count)
	assert.Equal(t, "callrate", cfg.Metrics.Namespace)
	assert.Equal(t, "info", cfg.Logging.Level)
	assert.NoError(t, cfg.Validate())
}

func TestLoadFromEnv(t *testing.T) {
	t.Setenv("CALLRATE_RPS", "2.5")
	t.Setenv("CALLRATE_RETENTION", "10m")
	t.Setenv("CALLRATE_WORKERS", "4")
	t.Setenv("CALLRATE_METRICS_ADDR", "127.0.0.1:9100")
	t.Setenv("CALLRATE_LOG_LEVEL", "debug")

	cfg := DefaultConfig()
	cfg.Gate.Delay = duration(time.Second)
	require.NoError(t, cfg.LoadFromEnv())

	require.NotNil(t, cfg.Gate.RPS)
	assert.Equal(t, 2.5, *cfg.Gate.RPS)
	assert.Nil(t, cfg.Gate.Delay, "env rate should replace the file's delay")
	assert.Equal(t, 10*time.Minute, cfg.Gate.Retention)
	assert.Equal(t, 4, cfg.Exec.Workers)
	assert.True(t, cfg.Metrics.Enabled)
	assert.Equal(t, "127.0.0.1:9100", cfg.Metrics.Address)
	assert.Equal(t, "debug", cfg.Logging.Level)
}

func TestLoadFromEnvInvalidValues(t *testing.T) {
	t.Setenv("CALLRATE_DELAY", "soon")
	t.Setenv("CALLRATE_WORKERS", "many")

	cfg := DefaultConfig()
	err := cfg.LoadFromEnv()
	require.Error(t, err)
	assert.True(t, errs.IsConfiguration(err))
	assert.Contains(t, err.Error(), "CALLRATE_DELAY")
	assert.Contains(t, err.Error(), "CALLRATE_WORKERS")
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(c *Config)
		wantErr string
	}{
		{"defaults", func(c *Config) {}, ""},
		{"rps only", func(c *Config) { c.Gate.RPS = float(5) }, ""},
		{"delay only", func(c *Config) { c.Gate.Delay = duration(200 * time.Millisecond) }, ""},
		{"both rate forms", func(c *Config) {
			c.Gate.RPS = float(5)
			c.Gate.Delay = duration(200 * time.Millisecond)
		}, "cannot specify both"},
		{"zero rps", func(c *Config) { c.Gate.RPS = float(0) }, "gate.rps"},
		{"negative rps", func(c *Config) { c.Gate.RPS = float(-1) }, "gate.rps"},
		{"zero delay", func(c *Config) { c.Gate.Delay = duration(0) }, "gate.delay"},
		{"retention without sweep", func(c *Config) {
			c.Gate.Retention = time.Minute
			c.Gate.SweepInterval = 0
		}, "gate.sweep_interval"},
		{"no workers", func(c *Config) { c.Exec.Workers = 0 }, "exec.workers"},
		{"negative retries", func(c *Config) { c.Exec.Retries = -1 }, "exec.retries"},
		{"metrics without address", func(c *Config) {
			c.Metrics.Enabled = true
			c.Metrics.Address = ""
		}, "metrics.address"},
		{"bad log level", func(c *Config) { c.Logging.Level = "loud" }, "logging.level"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := DefaultConfig()
			tt.mutate(cfg)

			err := cfg.Validate()
			if tt.wantErr == "" {
				assert.NoError(t, err)
				return
			}
			require.Error(t, err)
			assert.True(t, errs.IsConfiguration(err))
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}

func TestLoadFromFileAndSave(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "nested", "callrate.yaml")

	original := DefaultConfig()
	original.Gate.Delay = duration(250 * time.Millisecond)
	original.Gate.Retention = 5 * time.Minute
	original.Exec.Workers = 3
	require.NoError(t, original.Save(path))

	loaded := DefaultConfig()
	require.NoError(t, loaded.LoadFromFile(path))

	require.NotNil(t, loaded.Gate.Delay)
	assert.Equal(t, 250*time.Millisecond, *loaded.Gate.Delay)
	assert.Nil(t, loaded.Gate.RPS)
	assert.Equal(t, 5*time.Minute, loaded.Gate.Retention)
	assert.Equal(t, 3, loaded.Exec.Workers)
}

func TestLoadFromFileParsesYAML(t *testing.T) {
	path := filepath.Join(t.TempDir(), "callrate.yaml")
	content := `
gate:
  rps: 4
exec:
  count: 10
  retry_delay: 2s
logging:
  level: warn
`
	require.NoError(t, os.WriteFile(path, []byte(content), 0644))

	cfg := DefaultConfig()
	require.NoError(t, cfg.LoadFromFile(path))

	require.NotNil(t, cfg.Gate.RPS)
	assert.Equal(t, 4.0, *cfg.Gate.RPS)
	assert.Equal(t, 10, cfg.Exec.Count)
	assert.Equal(t, 2*time.Second, cfg.Exec.RetryDelay)
	assert.Equal(t, "warn", cfg.Logging.Level)
}

func TestLoadFromFileErrors(t *testing.T) {
	cfg := DefaultConfig()
	assert.Error(t, cfg.LoadFromFile(filepath.Join(t.TempDir(), "missing.yaml")))

	path := filepath.Join(t.TempDir(), "broken.yaml")
	require.NoError(t, os.WriteFile(path, []byte("gate: [unclosed"), 0644))
	assert.Error(t, cfg.LoadFromFile(path))
}

func TestMergeCommandLineFlags(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Gate.RPS = float(10)

	cfg.MergeCommandLineFlags(map[string]interface{}{
		"delay":        300 * time.Millisecond,
		"workers":      6,
		"count":        20,
		"metrics-addr": ":9200",
		"log-level":    "error",
	})

	assert.Nil(t, cfg.Gate.RPS)
	require.NotNil(t, cfg.Gate.Delay)
	assert.Equal(t, 300*time.Millisecond, *cfg.Gate.Delay)
	assert.Equal(t, 6, cfg.Exec.Workers)
	assert.Equal(t, 20, cfg.Exec.Count)
	assert.True(t, cfg.Metrics.Enabled)
	assert.Equal(t, ":9200", cfg.Metrics.Address)
	assert.Equal(t, "error", cfg.Logging.Level)
}

func TestLoadPrecedence(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "callrate.yaml")
	require.NoError(t, os.WriteFile(path, []byte("gate:\n  rps: 1\nexec:\n  workers: 2\n"), 0644))

	t.Setenv("HOME", dir)
	t.Setenv("CALLRATE_WORKERS", "3")

	cfg, err := Load(path, map[string]interface{}{"count": 7})
	require.NoError(t, err)

	require.NotNil(t, cfg.Gate.RPS)
	assert.Equal(t, 1.0, *cfg.Gate.RPS)
	assert.Equal(t, 3, cfg.Exec.Workers)
	assert.Equal(t, 7, cfg.Exec.Count)
}

func TestLoadRejectsInvalid(t *testing.T) {
	t.Setenv("HOME", t.TempDir())
	t.Setenv("CALLRATE_RPS", "-2")

	_, err := Load("", nil)
	require.Error(t, err)
	assert.True(t, errs.IsConfiguration(err))
}
