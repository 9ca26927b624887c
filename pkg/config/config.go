package config

import (
	"errors"
	"fmt"
	"math"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"

	errs "callrate/pkg/errors"
)

// EnvPrefix prefixes every environment variable read by LoadFromEnv.
const EnvPrefix = "CALLRATE_"

// Config holds all configuration options for callrate
type Config struct {
	Gate    GateConfig    `yaml:"gate" json:"gate"`
	Exec    ExecConfig    `yaml:"exec" json:"exec"`
	Metrics MetricsConfig `yaml:"metrics" json:"metrics"`
	Logging LoggingConfig `yaml:"logging" json:"logging"`
}

// GateConfig configures the default interval and target retention. At most
// one of RPS and Delay may be set; nil means not provided.
type GateConfig struct {
	RPS           *float64       `yaml:"rps,omitempty" json:"rps,omitempty"`
	Delay         *time.Duration `yaml:"delay,omitempty" json:"delay,omitempty"`
	Retention     time.Duration  `yaml:"retention" json:"retention"`
	SweepInterval time.Duration  `yaml:"sweep_interval" json:"sweep_interval"`
}

// ExecConfig holds settings for the exec command
type ExecConfig struct {
	Workers    int           `yaml:"workers" json:"workers"`
	Count      int           `yaml:"count" json:"count"`
	Retries    int           `yaml:"retries" json:"retries"`
	RetryDelay time.Duration `yaml:"retry_delay" json:"retry_delay"`
	Timeout    time.Duration `yaml:"timeout" json:"timeout"`
}

// MetricsConfig controls the Prometheus endpoint
type MetricsConfig struct {
	Enabled   bool   `yaml:"enabled" json:"enabled"`
	Address   string `yaml:"address" json:"address"`
	Namespace string `yaml:"namespace" json:"namespace"`
}

// LoggingConfig holds logging configuration
type LoggingConfig struct {
	Level   string `yaml:"level" json:"level"`
	File    string `yaml:"file" json:"file"`
	NoColor bool   `yaml:"no_color" json:"no_color"`
}

// DefaultConfig returns a Config instance with sensible defaults. No
// default interval is set; callers must supply a rate or a delay.
func DefaultConfig() *Config {
	return &Config{
		Gate: GateConfig{
			Retention:     0,
			SweepInterval: time.Minute,
		},
		Exec: ExecConfig{
			Workers:    1,
			Count:      1,
			Retries:    0,
			RetryDelay: time.Second,
			Timeout:    0,
		},
		Metrics: MetricsConfig{
			Enabled:   false,
			Address:   ":9090",
			Namespace: "callrate",
		},
		Logging: LoggingConfig{
			Level: "info",
		},
	}
}

// LoadFromEnv loads configuration from environment variables
func (c *Config) LoadFromEnv() error {
	var problems []error

	// A rate form set in the environment replaces the file's rate form;
	// setting both forms in the environment is left for Validate to reject.
	envRPS, envDelay := os.Getenv(EnvPrefix+"RPS"), os.Getenv(EnvPrefix+"DELAY")
	if envRPS != "" || envDelay != "" {
		c.Gate.RPS, c.Gate.Delay = nil, nil
	}
	if envRPS != "" {
		rps, err := strconv.ParseFloat(envRPS, 64)
		if err != nil {
			problems = append(problems, errs.NewConfigurationError(EnvPrefix+"RPS", "not a number: %q", envRPS))
		} else {
			c.Gate.RPS = &rps
		}
	}
	if envDelay != "" {
		delay, err := time.ParseDuration(envDelay)
		if err != nil {
			problems = append(problems, errs.NewConfigurationError(EnvPrefix+"DELAY", "not a duration: %q", envDelay))
		} else {
			c.Gate.Delay = &delay
		}
	}
	if v := os.Getenv(EnvPrefix + "RETENTION"); v != "" {
		retention, err := time.ParseDuration(v)
		if err != nil {
			problems = append(problems, errs.NewConfigurationError(EnvPrefix+"RETENTION", "not a duration: %q", v))
		} else {
			c.Gate.Retention = retention
		}
	}
	if v := os.Getenv(EnvPrefix + "WORKERS"); v != "" {
		workers, err := strconv.Atoi(v)
		if err != nil {
			problems = append(problems, errs.NewConfigurationError(EnvPrefix+"WORKERS", "not an integer: %q", v))
		} else {
			c.Exec.Workers = workers
		}
	}
	if v := os.Getenv(EnvPrefix + "METRICS_ADDR"); v != "" {
		c.Metrics.Address = v
		c.Metrics.Enabled = true
	}
	if v := os.Getenv(EnvPrefix + "LOG_LEVEL"); v != "" {
		c.Logging.Level = v
	}
	if v := os.Getenv(EnvPrefix + "LOG_FILE"); v != "" {
		c.Logging.File = v
	}
	if v := os.Getenv("NO_COLOR"); v != "" {
		c.Logging.NoColor = true
	}

	return errors.Join(problems...)
}

// LoadFromFile loads configuration from a YAML file. An empty path searches
// the default locations; finding nothing there is not an error.
func (c *Config) LoadFromFile(path string) error {
	if path == "" {
		path = FindConfigFile()
		if path == "" {
			return nil
		}
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("failed to read config file: %w", err)
	}

	if err := yaml.Unmarshal(data, c); err != nil {
		return fmt.Errorf("failed to parse config file: %w", err)
	}

	return nil
}

// FindConfigFile searches for a config file in standard locations
func FindConfigFile() string {
	home := os.Getenv("HOME")
	locations := []string{
		"callrate.yaml",
		".callrate.yaml",
		".callrate.yml",
		filepath.Join(home, ".config", "callrate", "config.yaml"),
		filepath.Join(home, ".callrate.yaml"),
	}

	for _, loc := range locations {
		if _, err := os.Stat(loc); err == nil {
			return loc
		}
	}

	return ""
}

// Validate checks if the configuration is valid. Every problem is reported
// as a ConfigurationError, joined together.
func (c *Config) Validate() error {
	var problems []error

	if c.Gate.RPS != nil && c.Gate.Delay != nil {
		problems = append(problems, errs.NewConfigurationError("gate", "cannot specify both rps and delay"))
	}
	if c.Gate.RPS != nil {
		if rps := *c.Gate.RPS; !(rps > 0) || math.IsInf(rps, 1) {
			problems = append(problems, errs.NewConfigurationError("gate.rps", "must be a positive number, got %v", rps))
		}
	}
	if c.Gate.Delay != nil && *c.Gate.Delay <= 0 {
		problems = append(problems, errs.NewConfigurationError("gate.delay", "must be positive, got %s", *c.Gate.Delay))
	}
	if c.Gate.Retention < 0 {
		problems = append(problems, errs.NewConfigurationError("gate.retention", "cannot be negative"))
	}
	if c.Gate.Retention > 0 && c.Gate.SweepInterval <= 0 {
		problems = append(problems, errs.NewConfigurationError("gate.sweep_interval", "must be positive when retention is set"))
	}

	if c.Exec.Workers <= 0 {
		problems = append(problems, errs.NewConfigurationError("exec.workers", "must be positive"))
	}
	if c.Exec.Count <= 0 {
		problems = append(problems, errs.NewConfigurationError("exec.count", "must be positive"))
	}
	if c.Exec.Retries < 0 {
		problems = append(problems, errs.NewConfigurationError("exec.retries", "cannot be negative"))
	}
	if c.Exec.Timeout < 0 {
		problems = append(problems, errs.NewConfigurationError("exec.timeout", "cannot be negative"))
	}

	if c.Metrics.Enabled && c.Metrics.Address == "" {
		problems = append(problems, errs.NewConfigurationError("metrics.address", "is required when metrics are enabled"))
	}

	validLogLevels := map[string]bool{
		"debug": true, "info": true, "warn": true, "error": true, "disabled": true,
	}
	if !validLogLevels[strings.ToLower(c.Logging.Level)] {
		problems = append(problems, errs.NewConfigurationError("logging.level", "invalid log level %q", c.Logging.Level))
	}

	return errors.Join(problems...)
}

// Save saves the configuration to a file
func (c *Config) Save(path string) error {
	data, err := yaml.Marshal(c)
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}

	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}

	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}

	return nil
}

// MergeCommandLineFlags applies flags that the user set explicitly.
// Setting a rate flag clears the other rate form so a flag overrides a
// file-provided value instead of conflicting with it.
func (c *Config) MergeCommandLineFlags(flags map[string]interface{}) {
	if rps, ok := flags["rps"].(float64); ok {
		c.Gate.RPS = &rps
		c.Gate.Delay = nil
	}
	if delay, ok := flags["delay"].(time.Duration); ok {
		c.Gate.Delay = &delay
		c.Gate.RPS = nil
	}
	if workers, ok := flags["workers"].(int); ok {
		c.Exec.Workers = workers
	}
	if count, ok := flags["count"].(int); ok {
		c.Exec.Count = count
	}
	if retries, ok := flags["retries"].(int); ok {
		c.Exec.Retries = retries
	}
	if timeout, ok := flags["timeout"].(time.Duration); ok {
		c.Exec.Timeout = timeout
	}
	if addr, ok := flags["metrics-addr"].(string); ok && addr != "" {
		c.Metrics.Address = addr
		c.Metrics.Enabled = true
	}
	if level, ok := flags["log-level"].(string); ok && level != "" {
		c.Logging.Level = level
	}
	if noColor, ok := flags["no-color"].(bool); ok && noColor {
		c.Logging.NoColor = true
	}
}

// Load loads configuration from all sources with proper precedence
// Precedence order: Command line flags > Environment variables > .env file > Config file > Defaults
func Load(configPath string, flags map[string]interface{}) (*Config, error) {
	_ = godotenv.Load(".env")
	_ = godotenv.Load(filepath.Join(os.Getenv("HOME"), ".callrate.env"))

	cfg := DefaultConfig()

	if err := cfg.LoadFromFile(configPath); err != nil {
		return nil, fmt.Errorf("failed to load config file: %w", err)
	}

	if err := cfg.LoadFromEnv(); err != nil {
		return nil, fmt.Errorf("failed to load environment variables: %w", err)
	}

	cfg.MergeCommandLineFlags(flags)

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("configuration validation failed: %w", err)
	}

	return cfg, nil
}
