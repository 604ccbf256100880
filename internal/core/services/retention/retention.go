// Package retention implements component I: the periodic job that ages
// out old notifications and tracking rows and vacuums the schema,
// structured like summarizer.Summarizer and violation.Identifier.
package retention

import (
	"context"
	"log/slog"
	"time"
)

// retentionStore is the narrow view over ports.RetentionRepository this
// package needs.
type retentionStore interface {
	DeleteOldNotifications(ctx context.Context, olderThan time.Duration) (int64, error)
	DropTrackingChunks(ctx context.Context, olderThan time.Duration) error
	VacuumAll(ctx context.Context) map[string]error
}

// Config bundles the retention parameters sourced from spec §6.
type Config struct {
	RetentionAge time.Duration // retention_hours
}

// Retention runs the delete/drop/vacuum sequence on a fixed interval.
type Retention struct {
	store retentionStore
	cfg   Config
	log   *slog.Logger
}

// New constructs a Retention job.
func New(store retentionStore, cfg Config, log *slog.Logger) *Retention {
	return &Retention{store: store, cfg: cfg, log: log}
}

// Run executes one retention pass. Each operation is independent; one
// failing does not prevent the others from running.
func (r *Retention) Run(ctx context.Context) {
	if n, err := r.store.DeleteOldNotifications(ctx, r.cfg.RetentionAge); err != nil {
		r.log.Error("delete old notifications failed", "error", err.Error())
	} else {
		r.log.Debug("deleted old notifications", "count", n)
	}

	if err := r.store.DropTrackingChunks(ctx, r.cfg.RetentionAge); err != nil {
		r.log.Error("drop tracking chunks failed", "error", err.Error())
	}

	for table, err := range r.store.VacuumAll(ctx) {
		if err != nil {
			r.log.Warn("vacuum failed", "table", table, "error", err.Error())
		}
	}
}

// Start runs Run on interval until ctx is canceled.
func (r *Retention) Start(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	go func() {
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				r.Run(ctx)
			}
		}
	}()
}
