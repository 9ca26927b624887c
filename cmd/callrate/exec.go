package main

import (
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"

	"github.com/spf13/cobra"

	"callrate/internal/runner"
	"callrate/pkg/ratelimit"
	"callrate/pkg/retry"
	"callrate/pkg/ui"
)

var showOutput bool

// execCmd represents the exec command
var execCmd = &cobra.Command{
	Use:   "exec [flags] -- <command> [args...]",
	Short: "Run a command repeatedly, no faster than the configured rate",
	Long: `Run a command --count times across --workers workers.

All runs share one limit, so however many workers are used, two runs never
start closer together than the interval. A failed run is retried up to
--retries times and every retry waits its turn like any other run.

Each run gets its index in the CALLRATE_RUN environment variable.`,
	Example: `  # Ping an endpoint 10 times, at most twice per second
  callrate exec --rps 2 --count 10 -- curl -fsS https://example.com/health

  # Four workers, a run every 250ms, retry failures twice
  callrate exec --delay 250ms --workers 4 --count 40 --retries 2 -- ./job.sh

  # Expose Prometheus metrics while running
  callrate exec --rps 5 --count 100 --metrics-addr :9090 -- ./job.sh`,
	Args: cobra.MinimumNArgs(1),
	RunE: runExec,
}

func init() {
	rootCmd.AddCommand(execCmd)

	addRateFlags(execCmd)
	execCmd.Flags().IntP("count", "n", 1, "number of runs")
	execCmd.Flags().IntP("workers", "w", 1, "number of concurrent workers")
	execCmd.Flags().Int("retries", 0, "retries per failed run")
	execCmd.Flags().Duration("timeout", 0, "timeout per attempt (0 for none)")
	execCmd.Flags().String("metrics-addr", "", "serve Prometheus metrics on this address")
	execCmd.Flags().BoolVar(&showOutput, "show-output", false, "print the output of every run")

	// everything after the command belongs to the command
	execCmd.Flags().SetInterspersed(false)
}

func runExec(cmd *cobra.Command, args []string) error {
	cfg, log, err := loadConfig(cmd)
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	gate, stopMetrics, err := newGate(cfg, log)
	if err != nil {
		return err
	}
	defer stopMetrics()

	policy, err := defaultPolicy(gate)
	if err != nil {
		return err
	}

	name := filepath.Base(args[0])
	limiter := policy.For(ratelimit.NewTarget(name))
	executor := &runner.CommandExecutor{
		Path:    args[0],
		Args:    args[1:],
		Timeout: cfg.Exec.Timeout,
	}
	retryCfg := &retry.Config{
		MaxAttempts: cfg.Exec.Retries + 1,
		Backoff:     &retry.ConstantBackoff{Delay: cfg.Exec.RetryDelay},
		Logger:      log,
	}

	ui.PrintInfo("Command", strings.Join(args, " "))
	ui.PrintInfo("Interval", policy.Interval().String())
	ui.PrintInfo("Runs", fmt.Sprintf("%d on %d workers", cfg.Exec.Count, cfg.Exec.Workers))

	log.InfoWithFields("Starting runs", map[string]interface{}{
		"command":     name,
		"count":       cfg.Exec.Count,
		"workers":     cfg.Exec.Workers,
		"interval_ms": policy.Interval().Milliseconds(),
	})

	pool := runner.NewPool(ctx, cfg.Exec.Workers, executor, limiter, retryCfg, log)
	tracker := ui.NewRunTracker(cfg.Exec.Count)
	pool.Start()

	done := make(chan struct{})
	go func() {
		defer close(done)
		for result := range pool.Results() {
			tracker.Record(result.Attempts, result.Err)
			if showOutput && len(result.Output) > 0 {
				ui.Println(fmt.Sprintf("\n--- run %d ---\n%s", result.Job.Index, strings.TrimRight(string(result.Output), "\n")))
			}
			if result.Err != nil {
				ui.PrintError(fmt.Sprintf("\nRun %d failed", result.Job.Index), result.Err)
			}
			tracker.PrintProgress()
		}
	}()

	for i := 0; i < cfg.Exec.Count; i++ {
		if err := pool.Submit(runner.Job{Index: i}); err != nil {
			log.WithError(err).Warn("Stopped submitting runs")
			break
		}
	}
	pool.Stop()
	<-done

	tracker.PrintSummary()

	succeeded, failed, _ := tracker.Counts()
	if ctx.Err() != nil {
		return fmt.Errorf("interrupted after %d runs", succeeded+failed)
	}
	if failed > 0 {
		return fmt.Errorf("%d of %d runs failed", failed, cfg.Exec.Count)
	}
	ui.PrintSuccess("All runs completed")
	return nil
}
