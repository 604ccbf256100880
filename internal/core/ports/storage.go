package ports

import (
	"context"
	"time"

	"github.com/beaconsentry/engine/internal/domain"
)

// GatewayRepository persists gateway registration and health reports.
type GatewayRepository interface {
	UpsertGatewayRegistration(ctx context.Context, ip string) error
	UpdateGatewayHealth(ctx context.Context, ip string, health int) error
}

// BeaconRepository persists beacon registration and health reports,
// including the coordinates decoded from the beacon UUID (§3).
type BeaconRepository interface {
	UpsertBeaconRegistration(ctx context.Context, b domain.Beacon) error
	UpdateBeaconHealth(ctx context.Context, uuid string, health int, gatewayIP string) error
	GetBeacon(ctx context.Context, uuid string) (*domain.Beacon, error)
}

// TrackingRepository bulk-persists sighting records and stamps the inline
// panic violation during the same ingestion pass (§4.F).
type TrackingRepository interface {
	BulkInsertTracking(ctx context.Context, rows []domain.Sighting) error
	StampPanicViolation(ctx context.Context, mac string) error
}

// SummaryRepository implements the G1-G4 summarization steps. Each method
// corresponds to exactly one lettered step and runs as its own statement;
// the steps of one pass do not share an acquired connection or a
// transaction.
type SummaryRepository interface {
	ResetLocationUpdated(ctx context.Context) error
	ApplyStableTags(ctx context.Context, window time.Duration, tolerance int) (updated int64, err error)
	ApplyMovingTags(ctx context.Context, window time.Duration) (updated int64, err error)
	ApplyBaseCoordinates(ctx context.Context, window time.Duration, toleranceMM int) (updated int64, err error)
}

// RuleRepository reloads and reports rule-table activation state (H1).
type RuleRepository interface {
	ReloadGeoFenceRules(ctx context.Context, localOffset time.Duration) error
	ReloadLocationNotStayRules(ctx context.Context, localOffset time.Duration) error
	ReloadLongStayRules(ctx context.Context, localOffset time.Duration) (active []domain.LocationLongStayInDangerConfig, err error)
	ReloadMovementRules(ctx context.Context, localOffset time.Duration) (active []domain.MovementConfig, err error)

	LoadGeoFenceConfig(ctx context.Context) (byUUID map[string]domain.GeoFenceConfig, monitoredByArea map[string][]string, err error)
}

// ViolationRepository implements H2-H5: rule evaluation against the
// object summary and notification materialization with dedup.
type ViolationRepository interface {
	StampWrongRoomViolations(ctx context.Context) (int64, error)
	StampLongStayViolations(ctx context.Context, cfgs []domain.LocationLongStayInDangerConfig) (int64, error)
	StampMovementViolations(ctx context.Context, cfgs []domain.MovementConfig) (int64, error)
	StampGeoFenceViolation(ctx context.Context, mac string) error

	MaterializeNotifications(ctx context.Context, monitor domain.MonitorType, lookback, dedupWindow time.Duration) ([]domain.Notification, error)
}

// NotificationRepository implements the outbound drain operation (§6).
type NotificationRepository interface {
	DrainNotifications(ctx context.Context, limit int) ([]domain.Notification, error)
	RecentNotifications(ctx context.Context, since time.Time) ([]domain.Notification, error)
}

// RetentionRepository implements component I.
type RetentionRepository interface {
	DeleteOldNotifications(ctx context.Context, olderThan time.Duration) (int64, error)
	DropTrackingChunks(ctx context.Context, olderThan time.Duration) error
	VacuumAll(ctx context.Context) map[string]error
}

// Storage is the full persistence surface the engine depends on,
// fulfilling Interface Segregation by embedding the specialized
// repositories above, the way the teacher composes NetworkService from
// NetworkScanner/AttackManager/IntelligenceService.
type Storage interface {
	GatewayRepository
	BeaconRepository
	TrackingRepository
	SummaryRepository
	RuleRepository
	ViolationRepository
	NotificationRepository
	RetentionRepository

	Close() error
}
