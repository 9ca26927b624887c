package main

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"callrate/pkg/ratelimit"
	"callrate/pkg/ui"
)

var (
	probeWorkers int
	probeCalls   int
)

// probeCmd represents the probe command
var probeCmd = &cobra.Command{
	Use:   "probe",
	Short: "Check the limiter by hammering a no-op function",
	Long: `Call a no-op function from several goroutines at once through one limit and
report the smallest gap observed between two consecutive calls.`,
	Example: `  callrate probe --rps 20 --workers 8 --calls 40`,
	Args:    cobra.NoArgs,
	RunE:    runProbe,
}

func init() {
	rootCmd.AddCommand(probeCmd)

	addRateFlags(probeCmd)
	probeCmd.Flags().IntVarP(&probeWorkers, "workers", "w", 4, "number of concurrent callers")
	probeCmd.Flags().IntVar(&probeCalls, "calls", 20, "total number of calls")
}

// ProbeReport summarizes one probe run.
type ProbeReport struct {
	Interval time.Duration
	Calls    int
	MinGap   time.Duration
	Elapsed  time.Duration
}

// OK reports whether every gap respected the interval, allowing slack for
// the time between passing the gate and taking the stamp.
func (r ProbeReport) OK() bool {
	return r.Calls < 2 || r.MinGap >= r.Interval*9/10
}

// probe calls a wrapped no-op calls times from workers goroutines.
func probe(ctx context.Context, policy ratelimit.Policy, workers, calls int) (ProbeReport, error) {
	var (
		mu     sync.Mutex
		stamps []time.Time
	)
	call := policy.WrapErr(func(ctx context.Context) error {
		mu.Lock()
		stamps = append(stamps, time.Now())
		mu.Unlock()
		return nil
	})

	start := time.Now()
	g, gctx := errgroup.WithContext(ctx)
	for w := 0; w < workers; w++ {
		w := w
		g.Go(func() error {
			for i := w; i < calls; i += workers {
				if err := call(gctx); err != nil {
					return err
				}
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return ProbeReport{}, err
	}

	report := ProbeReport{
		Interval: policy.Interval(),
		Calls:    len(stamps),
		Elapsed:  time.Since(start),
	}
	sort.Slice(stamps, func(i, j int) bool { return stamps[i].Before(stamps[j]) })
	for i := 1; i < len(stamps); i++ {
		gap := stamps[i].Sub(stamps[i-1])
		if i == 1 || gap < report.MinGap {
			report.MinGap = gap
		}
	}
	return report, nil
}

func runProbe(cmd *cobra.Command, args []string) error {
	if probeWorkers <= 0 || probeCalls <= 0 {
		return fmt.Errorf("--workers and --calls must be positive")
	}

	cfg, log, err := loadConfig(cmd)
	if err != nil {
		return err
	}

	gate, stopMetrics, err := newGate(cfg, log)
	if err != nil {
		return err
	}
	defer stopMetrics()

	policy, err := defaultPolicy(gate)
	if err != nil {
		return err
	}

	report, err := probe(cmd.Context(), policy, probeWorkers, probeCalls)
	if err != nil {
		return err
	}

	ui.PrintInfo("Interval", report.Interval.String())
	ui.PrintInfo("Calls", fmt.Sprintf("%d from %d workers", report.Calls, probeWorkers))
	ui.PrintInfo("Smallest gap", report.MinGap.Round(time.Microsecond).String())
	ui.PrintInfo("Elapsed", report.Elapsed.Round(time.Millisecond).String())

	if !report.OK() {
		return fmt.Errorf("smallest gap %s is below the interval %s", report.MinGap, report.Interval)
	}
	ui.PrintSuccess("Every call respected the interval")
	return nil
}
