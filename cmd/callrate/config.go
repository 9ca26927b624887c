package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"callrate/pkg/config"
	"callrate/pkg/logger"
	"callrate/pkg/ui"
)

// configCmd represents the config command
var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Manage configuration files",
	Long: `Manage callrate configuration files.

Configuration can be loaded from:
  - Command line flags (highest priority)
  - Environment variables (CALLRATE_*)
  - .env files
  - Configuration file
  - Default values (lowest priority)`,
}

var initCmd = &cobra.Command{
	Use:   "init",
	Short: "Create an example configuration file",
	Long: `Create an example configuration file with all available options.

The file is created as 'callrate.yaml' in the current directory unless a
different path is given with --config.`,
	Args: cobra.NoArgs,
	RunE: runConfigInit,
}

var showCmd = &cobra.Command{
	Use:   "show",
	Short: "Show the effective configuration",
	Args:  cobra.NoArgs,
	RunE:  runConfigShow,
}

var validateCmd = &cobra.Command{
	Use:   "validate",
	Short: "Validate the configuration",
	Long: `Load the configuration from every source and check it.

This command checks:
  - YAML syntax
  - that at most one of rps and delay is set, and that it is positive
  - that every interval is shorter than the retention period
  - worker, count, retry and logging settings`,
	Args: cobra.NoArgs,
	RunE: runConfigValidate,
}

func init() {
	rootCmd.AddCommand(configCmd)
	configCmd.AddCommand(initCmd)
	configCmd.AddCommand(showCmd)
	configCmd.AddCommand(validateCmd)
}

const exampleConfig = `# callrate configuration file
#
# Every option can also be set with an environment variable prefixed with
# CALLRATE_, for example CALLRATE_RPS or CALLRATE_DELAY.

gate:
  # Default limit. Set either rps or delay, not both.
  # rps: 5          # at most 5 calls per second (200ms apart)
  delay: 1s         # at least 1s between calls

  # Drop the state of targets idle for this long (0 keeps it forever).
  # Must be longer than any interval used.
  retention: 0s
  sweep_interval: 1m

exec:
  workers: 1
  count: 1
  # Retries per failed run; each retry waits for the limit again.
  retries: 0
  retry_delay: 1s
  # Timeout per attempt (0 for none)
  timeout: 0s

metrics:
  enabled: false
  address: ":9090"
  namespace: callrate

logging:
  # debug, info, warn, error, disabled
  level: info
  # Log file path (optional)
  file: ""
  no_color: false
`

func runConfigInit(cmd *cobra.Command, args []string) error {
	configPath := configFile
	if configPath == "" {
		configPath = "callrate.yaml"
	}

	if _, err := os.Stat(configPath); err == nil {
		return fmt.Errorf("configuration file already exists: %s", configPath)
	}

	if err := os.WriteFile(configPath, []byte(exampleConfig), 0644); err != nil {
		return fmt.Errorf("failed to create configuration file: %w", err)
	}

	ui.PrintSuccess("Configuration file created: " + configPath)
	ui.Println("\nNext steps:")
	ui.Println("1. Edit the rate under 'gate'")
	ui.Println("2. Run 'callrate config validate' to check the configuration")
	ui.Println("3. Run commands with 'callrate exec -- <command>'")
	return nil
}

func runConfigShow(cmd *cobra.Command, args []string) error {
	cfg, err := config.Load(configFile, changedFlags(cmd))
	if err != nil {
		return err
	}

	data, err := yaml.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("failed to format configuration: %w", err)
	}

	ui.PrintHighlight("Current Configuration")
	ui.Println("")
	ui.Println(string(data))

	source := configFile
	if source == "" {
		source = config.FindConfigFile()
	}
	if source == "" {
		source = "(none found)"
	}
	ui.PrintInfo("Configuration file", source)
	return nil
}

func runConfigValidate(cmd *cobra.Command, args []string) error {
	cfg, err := config.Load(configFile, changedFlags(cmd))
	if err != nil {
		return err
	}

	gate, _, err := newGate(noMetrics(cfg), logger.Nop())
	if err != nil {
		return err
	}

	ui.PrintSuccess("Configuration is valid")
	ui.Println("\nConfiguration summary:")
	if interval, ok := gate.DefaultInterval(); ok {
		ui.PrintInfo("  Interval", interval.String())
	} else {
		ui.PrintWarning("  No default rate set; exec and probe need --rps or --delay")
	}
	ui.PrintInfo("  Workers", fmt.Sprintf("%d", cfg.Exec.Workers))
	ui.PrintInfo("  Retries", fmt.Sprintf("%d", cfg.Exec.Retries))
	ui.PrintInfo("  Log level", cfg.Logging.Level)
	return nil
}

// noMetrics returns a copy of cfg that does not start a metrics server.
func noMetrics(cfg *config.Config) *config.Config {
	c := *cfg
	c.Metrics.Enabled = false
	return &c
}
