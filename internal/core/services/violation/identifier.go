// Package violation implements component H: the periodic job that
// reloads rule activation state, evaluates the H2-H4 rule families
// against object_summary_table, and materializes notifications (H5).
// Structured the same way as summarizer.Summarizer, itself adapted from
// the teacher's ticker-driven PersistenceManager.Start loop.
package violation

import (
	"context"
	"log/slog"
	"time"

	"github.com/beaconsentry/engine/internal/domain"
	"github.com/beaconsentry/engine/internal/telemetry"
)

// ruleStore is the narrow view over ports.RuleRepository this package
// needs for H1.
type ruleStore interface {
	ReloadGeoFenceRules(ctx context.Context, localOffset time.Duration) error
	ReloadLocationNotStayRules(ctx context.Context, localOffset time.Duration) error
	ReloadLongStayRules(ctx context.Context, localOffset time.Duration) ([]domain.LocationLongStayInDangerConfig, error)
	ReloadMovementRules(ctx context.Context, localOffset time.Duration) ([]domain.MovementConfig, error)
}

// violationStore is the narrow view over ports.ViolationRepository this
// package needs for H2-H5.
type violationStore interface {
	StampWrongRoomViolations(ctx context.Context) (int64, error)
	StampLongStayViolations(ctx context.Context, cfgs []domain.LocationLongStayInDangerConfig) (int64, error)
	StampMovementViolations(ctx context.Context, cfgs []domain.MovementConfig) (int64, error)
	MaterializeNotifications(ctx context.Context, monitor domain.MonitorType, lookback, dedupWindow time.Duration) ([]domain.Notification, error)
}

// broadcaster is the narrow view over control.Hub this package needs to
// push component K's live feed: one call per notification H5 mints.
type broadcaster interface {
	Broadcast(n domain.Notification)
}

// fenceReloader is the narrow view over geofence.Evaluator this package
// needs to pick up geo_fence rules that activate on their time window
// without waiting for a process restart (§4.E/H1).
type fenceReloader interface {
	Reload(ctx context.Context) error
}

// monitorTypes lists every monitor family H5 materializes notifications
// for, in the fixed order the pass walks them.
var monitorTypes = []domain.MonitorType{
	domain.MonitorGeoFence,
	domain.MonitorPanic,
	domain.MonitorMovement,
	domain.MonitorLocation,
}

// Config bundles the H1-H5 parameters sourced from spec §6.
type Config struct {
	LocalOffset time.Duration // server_localtime_against_UTC_in_hour
	Lookback    time.Duration // how far back a violation stamp still counts as "new"
	DedupWindow time.Duration // granularity_for_continuous_violations_in_sec
}

// Identifier runs the H1-H5 sequence on a fixed interval.
type Identifier struct {
	rules  ruleStore
	vio    violationStore
	fences fenceReloader
	hub    broadcaster
	cfg    Config
	log    *slog.Logger
}

// New constructs an Identifier. fences is reloaded on every pass so a
// geo_fence rule activating on its time window reaches the in-memory
// evaluator without a restart; hub receives every notification H5 mints
// for component K's live feed.
func New(rules ruleStore, vio violationStore, fences fenceReloader, hub broadcaster, cfg Config, log *slog.Logger) *Identifier {
	return &Identifier{rules: rules, vio: vio, fences: fences, hub: hub, cfg: cfg, log: log}
}

// Run executes one H1-H5 pass. Every step runs regardless of whether an
// earlier step failed (§7: rule-table iteration continues on per-table
// failure).
func (id *Identifier) Run(ctx context.Context) {
	start := time.Now()
	defer func() {
		telemetry.ViolationPassDuration.Observe(time.Since(start).Seconds())
	}()

	if err := id.fences.Reload(ctx); err != nil {
		id.log.Error("reload geo-fence evaluator failed", "error", err.Error())
	}
	if err := id.rules.ReloadGeoFenceRules(ctx, id.cfg.LocalOffset); err != nil {
		id.log.Error("reload geo-fence rules failed", "error", err.Error())
	}
	if err := id.rules.ReloadLocationNotStayRules(ctx, id.cfg.LocalOffset); err != nil {
		id.log.Error("reload location-not-stay rules failed", "error", err.Error())
	}
	longStay, err := id.rules.ReloadLongStayRules(ctx, id.cfg.LocalOffset)
	if err != nil {
		id.log.Error("reload long-stay rules failed", "error", err.Error())
	}
	movement, err := id.rules.ReloadMovementRules(ctx, id.cfg.LocalOffset)
	if err != nil {
		id.log.Error("reload movement rules failed", "error", err.Error())
	}

	if _, err := id.vio.StampWrongRoomViolations(ctx); err != nil {
		id.log.Error("stamp wrong-room violations failed", "error", err.Error())
	}
	if _, err := id.vio.StampLongStayViolations(ctx, longStay); err != nil {
		id.log.Error("stamp long-stay violations failed", "error", err.Error())
	}
	if _, err := id.vio.StampMovementViolations(ctx, movement); err != nil {
		id.log.Error("stamp movement violations failed", "error", err.Error())
	}

	for _, monitor := range monitorTypes {
		notifications, err := id.vio.MaterializeNotifications(ctx, monitor, id.cfg.Lookback, id.cfg.DedupWindow)
		if err != nil {
			id.log.Error("materialize notifications failed", "monitor_type", monitor.String(), "error", err.Error())
			continue
		}
		if len(notifications) > 0 {
			telemetry.ViolationsEmitted.WithLabelValues(monitor.String()).Add(float64(len(notifications)))
		}
		for _, n := range notifications {
			id.hub.Broadcast(n)
		}
	}
}

// Start runs Run on interval until ctx is canceled.
func (id *Identifier) Start(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	go func() {
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				id.Run(ctx)
			}
		}
	}()
}
