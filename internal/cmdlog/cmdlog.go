// Package cmdlog wraps CLI subcommands with logging and run counters.
package cmdlog

import (
	"time"

	"earnframe/internal/logging"
	"earnframe/internal/metrics"
)

// Run executes f as command cmd, logging the outcome and its duration.
func Run(cmd string, f func() error) error {
	metrics.IncCommandRun(cmd)
	start := time.Now()
	err := f()
	fields := map[string]any{"elapsed_ms": time.Since(start).Milliseconds()}
	if err != nil {
		metrics.IncCommandError(cmd)
		fields["error"] = err
		logging.Error(cmd+"_error", fields)
	} else {
		logging.Info(cmd+"_ok", fields)
	}
	return err
}
