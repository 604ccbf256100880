// Package ingest implements the ingestion persister of spec §4.F: it
// consumes a parsed envelope from the receiver (§4.C) and persists it
// along one of three paths (gateway, beacon, tracking).
package ingest

import (
	"context"
	"log/slog"
	"time"

	"github.com/beaconsentry/engine/internal/adapters/receiver"
	"github.com/beaconsentry/engine/internal/domain"
)

// gatewayStore, beaconStore, and trackingStore are narrow views over the
// corresponding ports.*Repository interfaces — only the operations this
// package calls, so tests can stub them directly.
type gatewayStore interface {
	UpsertGatewayRegistration(ctx context.Context, ip string) error
	UpdateGatewayHealth(ctx context.Context, ip string, health int) error
}

type beaconStore interface {
	UpsertBeaconRegistration(ctx context.Context, b domain.Beacon) error
	UpdateBeaconHealth(ctx context.Context, uuid string, health int, gatewayIP string) error
}

type trackingStore interface {
	BulkInsertTracking(ctx context.Context, rows []domain.Sighting) error
	StampPanicViolation(ctx context.Context, mac string) error
}

// fenceEvaluator is the narrow view of geofence.Evaluator this package
// needs: each tracking sub-record runs through the in-memory geo-fence
// filter before reaching the bulk tracking store, per §2's data flow
// "E (in-memory filter ...) -> F (bulk CSV + COPY)".
type fenceEvaluator interface {
	Evaluate(ctx context.Context, s domain.Sighting) error
}

// Persister implements component F.
type Persister struct {
	gateways     gatewayStore
	beacons      beaconStore
	tracking     trackingStore
	fences       fenceEvaluator
	panicEnabled bool
	log          *slog.Logger
}

// New constructs a Persister. panicEnabled mirrors the
// is_enabled_panic_monitoring configuration parameter (§6).
func New(gateways gatewayStore, beacons beaconStore, tracking trackingStore, fences fenceEvaluator, panicEnabled bool, log *slog.Logger) *Persister {
	return &Persister{
		gateways:     gateways,
		beacons:      beacons,
		tracking:     tracking,
		fences:       fences,
		panicEnabled: panicEnabled,
		log:          log,
	}
}

var _ receiver.Dispatcher = (*Persister)(nil)

// Dispatch routes one parsed envelope to its persistence path. Per §7,
// a failure on one path is logged at category debug and does not
// propagate — the UDP producer sees no NACK.
func (p *Persister) Dispatch(ctx context.Context, env receiver.Envelope) {
	switch {
	case env.Gateway != nil:
		p.dispatchGateway(ctx, env.Gateway)
	case env.Beacon != nil:
		p.dispatchBeacon(ctx, env.Beacon)
	case env.Tracking != nil:
		p.dispatchTracking(ctx, env.Tracking)
	}
}

func (p *Persister) dispatchGateway(ctx context.Context, g *receiver.GatewayReport) {
	var err error
	switch g.Kind {
	case receiver.ReportGatewayRegistration:
		err = p.gateways.UpsertGatewayRegistration(ctx, g.IP)
	case receiver.ReportGatewayHealth:
		err = p.gateways.UpdateGatewayHealth(ctx, g.IP, g.Health)
	}
	if err != nil {
		p.log.Debug("gateway persist failed", "error", err.Error(), "code", string(domain.ErrSQLExecute))
	}
}

func (p *Persister) dispatchBeacon(ctx context.Context, b *receiver.BeaconReport) {
	switch b.Kind {
	case receiver.ReportBeaconRegistration:
		x, y, err := domain.ParseUUIDCoordinates(b.UUID)
		if err != nil {
			p.log.Debug("beacon uuid coordinate parse failed", "error", err.Error(), "code", string(domain.ErrAPIProtocol))
			return
		}
		if err := p.beacons.UpsertBeaconRegistration(ctx, domain.Beacon{
			UUID:      b.UUID,
			IP:        b.IP,
			GatewayIP: b.GatewayIP,
			CoordX:    x,
			CoordY:    y,
		}); err != nil {
			p.log.Debug("beacon registration failed", "error", err.Error(), "code", string(domain.ErrSQLExecute))
		}
	case receiver.ReportBeaconHealth:
		if err := p.beacons.UpdateBeaconHealth(ctx, b.UUID, b.Health, b.GatewayIP); err != nil {
			p.log.Debug("beacon health update failed", "error", err.Error(), "code", string(domain.ErrSQLExecute))
		}
	}
}

// dispatchTracking implements §4.F's tracking-report path. The source's
// temp-file-plus-COPY sequence is represented here by a single bulk
// insert call whose adapter implementation issues the streaming COPY
// (Open Question: streaming COPY over temp-file COPY FROM); this package
// only owns the per-record transformation the source's loop performs.
func (p *Persister) dispatchTracking(ctx context.Context, t *receiver.TrackingReport) {
	now := time.Now().UTC()
	rows := make([]domain.Sighting, 0, len(t.Records))

	for _, rec := range t.Records {
		s := domain.Sighting{
			ObjectMAC:        rec.MAC,
			BeaconUUID:       t.BeaconUUID,
			RSSI:             rec.RSSI,
			InitialTS:        rec.InitialTS,
			FinalTS:          rec.FinalTS,
			PanicFlag:        rec.Panic,
			BatteryMV:        rec.BatteryMV,
			ServerTimeOffset: int(now.Sub(rec.FinalTS).Seconds()),
		}
		rows = append(rows, s)

		// Geo-fence evaluation failures never block ingestion persistence (§7).
		if err := p.fences.Evaluate(ctx, s); err != nil {
			p.log.Debug("geofence evaluation failed", "error", err.Error())
		}

		if p.panicEnabled && rec.Panic {
			if err := p.tracking.StampPanicViolation(ctx, rec.MAC); err != nil {
				p.log.Debug("panic stamp failed", "error", err.Error(), "code", string(domain.ErrSQLExecute))
			}
		}
	}

	if len(rows) == 0 {
		return
	}
	if err := p.tracking.BulkInsertTracking(ctx, rows); err != nil {
		p.log.Debug("tracking bulk insert failed", "error", err.Error(), "code", string(domain.ErrSQLExecute))
	}
}
