package ui

import (
	"fmt"
	"strings"
	"sync"
	"time"
)

const (
	ProgressBar   = "█"
	ProgressEmpty = "░"
)

// RunTracker keeps track of gated runs for the exec summary
type RunTracker struct {
	mu        sync.Mutex
	total     int
	succeeded int
	failed    int
	attempts  int
	startTime time.Time
}

func NewRunTracker(total int) *RunTracker {
	return &RunTracker{
		total:     total,
		startTime: time.Now(),
	}
}

// Record counts one finished run.
func (rt *RunTracker) Record(attempts int, err error) {
	rt.mu.Lock()
	defer rt.mu.Unlock()

	rt.attempts += attempts
	if err != nil {
		rt.failed++
	} else {
		rt.succeeded++
	}
}

func (rt *RunTracker) Counts() (succeeded, failed, attempts int) {
	rt.mu.Lock()
	defer rt.mu.Unlock()
	return rt.succeeded, rt.failed, rt.attempts
}

// Bar renders a progress bar of finished runs
func (rt *RunTracker) Bar(width int) string {
	rt.mu.Lock()
	done, total := rt.succeeded+rt.failed, rt.total
	rt.mu.Unlock()

	filled := 0
	if total > 0 {
		filled = done * width / total
	}
	if filled > width {
		filled = width
	}

	return fmt.Sprintf("[%s%s] %d/%d",
		strings.Repeat(ProgressBar, filled),
		strings.Repeat(ProgressEmpty, width-filled),
		done, total)
}

func (rt *RunTracker) Elapsed() time.Duration {
	return time.Since(rt.startTime)
}

// Rate returns attempts per second since tracking started
func (rt *RunTracker) Rate() float64 {
	elapsed := rt.Elapsed().Seconds()
	if elapsed == 0 {
		return 0
	}
	_, _, attempts := rt.Counts()
	return float64(attempts) / elapsed
}

// PrintProgress rewrites the current progress line
func (rt *RunTracker) PrintProgress() {
	printf(false, "\r%s %s", Green("[RUNNING]"), rt.Bar(20))
}

// PrintSummary prints totals once all runs finished
func (rt *RunTracker) PrintSummary() {
	succeeded, failed, attempts := rt.Counts()
	printf(false, "\n")
	PrintInfo("Runs", fmt.Sprintf("%d ok, %d failed", succeeded, failed))
	PrintInfo("Attempts", fmt.Sprintf("%d", attempts))
	PrintInfo("Elapsed", rt.Elapsed().Round(time.Millisecond).String())
	PrintInfo("Rate", fmt.Sprintf("%.2f attempts/s", rt.Rate()))
}
