// Package summarizer implements component G: the periodic job that folds
// raw tracking_table rows into object_summary_table's best-known location
// per object, adapted from the teacher's ticker-driven
// PersistenceManager.Start loop (internal/core/services/persistence) to
// run the four-step G1-G4 sequence instead of batched device writes.
package summarizer

import (
	"context"
	"log/slog"
	"time"

	"github.com/beaconsentry/engine/internal/telemetry"
)

// summaryStore is the narrow view over ports.SummaryRepository this
// package depends on.
type summaryStore interface {
	ResetLocationUpdated(ctx context.Context) error
	ApplyStableTags(ctx context.Context, window time.Duration, tolerance int) (int64, error)
	ApplyMovingTags(ctx context.Context, window time.Duration) (int64, error)
	ApplyBaseCoordinates(ctx context.Context, window time.Duration, toleranceMM int) (int64, error)
}

// Config bundles the G1-G4 parameters sourced from spec §6.
type Config struct {
	PrefilterWindow    time.Duration
	RSSITolerance      int
	BaseLocationWindow time.Duration
	BaseLocationToleranceMM int
}

// Summarizer runs the G1-G4 sequence on a fixed interval.
type Summarizer struct {
	store  summaryStore
	cfg    Config
	log    *slog.Logger
}

// New constructs a Summarizer.
func New(store summaryStore, cfg Config, log *slog.Logger) *Summarizer {
	return &Summarizer{store: store, cfg: cfg, log: log}
}

// Run executes one G1-G4 pass. Each step runs even if a prior step
// failed, so that a single stalled query doesn't stall the others
// (matching §7's per-table continue-on-failure stance for periodic
// maintenance passes).
func (s *Summarizer) Run(ctx context.Context) {
	start := time.Now()
	defer func() {
		telemetry.SummarizerPassDuration.Observe(time.Since(start).Seconds())
	}()

	if err := s.store.ResetLocationUpdated(ctx); err != nil {
		s.log.Error("reset location-updated flags failed", "error", err.Error())
	}

	if n, err := s.store.ApplyStableTags(ctx, s.cfg.PrefilterWindow, s.cfg.RSSITolerance); err != nil {
		s.log.Error("apply stable tags failed", "error", err.Error())
	} else {
		s.log.Debug("applied stable tags", "updated", n)
	}

	if n, err := s.store.ApplyMovingTags(ctx, s.cfg.PrefilterWindow); err != nil {
		s.log.Error("apply moving tags failed", "error", err.Error())
	} else {
		s.log.Debug("applied moving tags", "updated", n)
	}

	if n, err := s.store.ApplyBaseCoordinates(ctx, s.cfg.BaseLocationWindow, s.cfg.BaseLocationToleranceMM); err != nil {
		s.log.Error("apply base coordinates failed", "error", err.Error())
	} else {
		s.log.Debug("applied base coordinates", "updated", n)
	}
}

// Start runs Run on interval until ctx is canceled, the way the teacher's
// PersistenceManager.Start drives its own ticker loop.
func (s *Summarizer) Start(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	go func() {
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				s.Run(ctx)
			}
		}
	}()
}
