package main

import (
	"fmt"
	"os"
	"runtime"

	"github.com/spf13/cobra"

	"callrate/pkg/config"
	"callrate/pkg/logger"
	"callrate/pkg/ui"
)

var (
	// Version information
	version   = "1.0.0"
	gitCommit = "unknown"
	buildDate = "unknown"

	// Global flags
	configFile string
	logLevel   string
	noColor    bool
	quiet      bool
)

// rootCmd represents the base command when called without any subcommands
var rootCmd = &cobra.Command{
	Use:   "callrate",
	Short: "Run commands no faster than a configured rate",
	Long: `callrate spaces out calls so that consecutive runs of the same target are
at least a minimum interval apart.

The interval is given either as a maximum rate (--rps) or as a minimum
delay between calls (--delay). Runs that fail can be retried; every attempt
goes through the same limit.`,
	Version:       fmt.Sprintf("%s (commit: %s, built: %s)", version, gitCommit, buildDate),
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRun: func(cmd *cobra.Command, args []string) {
		if quiet {
			ui.SetQuietMode(true)
		}
		if noColor || os.Getenv("NO_COLOR") != "" {
			ui.SetNoColor(true)
		}
	},
}

// Execute adds all child commands to the root command and sets flags appropriately.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		ui.PrintError("Error", err)
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&configFile, "config", "c", "", "config file (default is ./callrate.yaml or $HOME/.config/callrate/config.yaml)")
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "", "log level (debug, info, warn, error, disabled)")
	rootCmd.PersistentFlags().BoolVar(&noColor, "no-color", false, "disable colored output")
	rootCmd.PersistentFlags().BoolVarP(&quiet, "quiet", "q", false, "suppress all output except errors")

	rootCmd.SetVersionTemplate(`callrate {{.Version}}
Go Version: ` + runtime.Version() + `
OS/Arch: ` + runtime.GOOS + `/` + runtime.GOARCH + `
`)

	rootCmd.CompletionOptions.DisableDefaultCmd = true
}

// loadConfig merges the config sources with the flags the user set on cmd
// and initializes the global logger from the result.
func loadConfig(cmd *cobra.Command) (*config.Config, logger.Logger, error) {
	cfg, err := config.Load(configFile, changedFlags(cmd))
	if err != nil {
		return nil, nil, err
	}

	if err := logger.Initialize(&cfg.Logging); err != nil {
		return nil, nil, fmt.Errorf("failed to initialize logger: %w", err)
	}
	return cfg, logger.GetLogger(), nil
}

// changedFlags collects the flags explicitly set on the command line, keyed
// the way config.MergeCommandLineFlags expects.
func changedFlags(cmd *cobra.Command) map[string]interface{} {
	flags := make(map[string]interface{})
	fs := cmd.Flags()

	if fs.Changed("rps") {
		if v, err := fs.GetFloat64("rps"); err == nil {
			flags["rps"] = v
		}
	}
	for _, name := range []string{"delay", "timeout"} {
		if fs.Changed(name) {
			if v, err := fs.GetDuration(name); err == nil {
				flags[name] = v
			}
		}
	}
	for _, name := range []string{"workers", "count", "retries"} {
		if fs.Changed(name) {
			if v, err := fs.GetInt(name); err == nil {
				flags[name] = v
			}
		}
	}
	if fs.Changed("metrics-addr") {
		if v, err := fs.GetString("metrics-addr"); err == nil {
			flags["metrics-addr"] = v
		}
	}
	if logLevel != "" {
		flags["log-level"] = logLevel
	}
	if noColor {
		flags["no-color"] = true
	}
	return flags
}

// addRateFlags registers the two mutually exclusive ways of giving a rate.
func addRateFlags(cmd *cobra.Command) {
	cmd.Flags().Float64("rps", 0, "maximum calls per second")
	cmd.Flags().Duration("delay", 0, "minimum delay between calls, e.g. 250ms")
	cmd.MarkFlagsMutuallyExclusive("rps", "delay")
}
