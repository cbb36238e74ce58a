package daemon

import (
	"context"
	"log/slog"
	"time"
)

// Sweeper drops expired in-memory entries and reports how many were removed.
type Sweeper func() int

// SweepTask runs sweep on every tick until the context ends.
func SweepTask(logger *slog.Logger, interval time.Duration, sweep Sweeper) DaemonFunc {
	return func(ctx context.Context, name string) error {
		ticker := time.NewTicker(interval)
		defer ticker.Stop()

		for {
			select {
			case <-ctx.Done():
				logger.Info("sweep task shutting down", "task", name)
				return nil
			case <-ticker.C:
				if removed := sweep(); removed > 0 {
					logger.Debug("swept expired entries", "task", name, "removed", removed)
				}
			}
		}
	}
}
