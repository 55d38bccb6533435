// Package retention prunes watch records past the configured retention
// window on a schedule.
package retention

import (
	"context"
	"log/slog"
	"time"

	"github.com/watchtrail/watchtrail/store"
)

type Runner struct {
	store    *store.Store
	interval time.Duration
}

// NewRunner creates a retention runner. Pruning is cheap, so a long interval
// is plenty; retention windows are measured in months.
func NewRunner(st *store.Store) *Runner {
	return &Runner{
		store:    st,
		interval: 6 * time.Hour,
	}
}

// Run starts the background task.
func (r *Runner) Run(ctx context.Context) {
	// Prune once on startup
	r.RunOnce(ctx)

	ticker := time.NewTicker(r.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			r.RunOnce(ctx)
		case <-ctx.Done():
			slog.Info("retention runner stopped")
			return
		}
	}
}

// RunOnce applies the configured retention policy once.
func (r *Runner) RunOnce(ctx context.Context) {
	settings, err := r.store.GetSettings(ctx)
	if err != nil {
		slog.Error("failed to read settings for retention", "error", err)
		return
	}

	if _, err := r.store.ApplyRetention(ctx, settings); err != nil {
		slog.Error("failed to apply retention", "error", err, "policy", settings.DataRetention)
	}
}
