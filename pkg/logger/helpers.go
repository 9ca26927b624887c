package logger

import "time"

// LogThrottle records a wait imposed on a target.
func LogThrottle(l Logger, target string, wait time.Duration) {
	l.DebugWithFields("Throttling call", map[string]interface{}{
		"target":  target,
		"wait_ms": wait.Milliseconds(),
	})
}

// LogRun logs the outcome of a single gated job.
func LogRun(l Logger, index int, attempts int, duration time.Duration, err error) {
	fields := map[string]interface{}{
		"run":         index,
		"attempts":    attempts,
		"duration_ms": duration.Milliseconds(),
	}

	if err != nil {
		l.WithError(err).ErrorWithFields("Run failed", fields)
		return
	}
	l.DebugWithFields("Run completed", fields)
}
