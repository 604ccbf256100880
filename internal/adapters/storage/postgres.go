// Package storage implements ports.Storage against PostgreSQL, adapted
// from the teacher's GORM+SQLite adapter (internal/adapters/storage) to
// the relational-engine Open Question's resolution: PostgreSQL, with an
// optional TimescaleDB hypertable on tracking_table.
//
// Schema/ORM concerns (models, migration, upsert) go through GORM, the
// teacher's library of choice; the two operations spec.md calls out as
// hot-path or transaction-sensitive — bulk tracking insert and VACUUM —
// go through a raw *pgx.Conn acquired from the hand-rolled pool (§4.A),
// since VACUUM cannot run inside GORM's implicit transactions and COPY
// has no GORM equivalent.
package storage

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/beaconsentry/engine/internal/adapters/dbpool"
	"github.com/beaconsentry/engine/internal/core/ports"
	"github.com/beaconsentry/engine/internal/domain"
	"github.com/jackc/pgx/v5"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
	gormlogger "gorm.io/gorm/logger"
	"gorm.io/plugin/opentelemetry/tracing"
)

// Adapter implements ports.Storage using GORM over PostgreSQL for
// schema/CRUD and a raw pgx connection pool for COPY/VACUUM.
type Adapter struct {
	db           *gorm.DB
	conns        *dbpool.Pool
	log          *slog.Logger
	hasTimescale bool
}

// Open migrates the schema and constructs an Adapter. dsn is shared
// between GORM's connection and the hand-rolled pool in conns.
func Open(ctx context.Context, dsn string, poolSize int, log *slog.Logger) (*Adapter, error) {
	gdb, err := gorm.Open(postgres.Open(dsn), &gorm.Config{
		Logger: gormlogger.Default.LogMode(gormlogger.Silent),
	})
	if err != nil {
		return nil, domain.Wrap(domain.ErrSQLOpen, err)
	}
	if err := gdb.Use(tracing.NewPlugin()); err != nil {
		return nil, domain.Wrap(domain.ErrSQLOpen, err)
	}

	if err := gdb.AutoMigrate(
		&GatewayModel{},
		&BeaconModel{},
		&ObjectModel{},
		&TrackingModel{},
		&ObjectSummaryModel{},
		&NotificationModel{},
		&GeoFenceConfigModel{},
		&LocationNotStayRoomConfigModel{},
		&LocationLongStayInDangerConfigModel{},
		&MovementConfigModel{},
		&RSSIWeightModel{},
	); err != nil {
		return nil, domain.Wrap(domain.ErrSQLExecute, err)
	}

	seedRSSIWeights(gdb, log)
	hasTimescale := ensureHypertable(gdb, log)

	conns, err := dbpool.Open(ctx, dsn, poolSize)
	if err != nil {
		return nil, err
	}

	return &Adapter{db: gdb, conns: conns, log: log, hasTimescale: hasTimescale}, nil
}

func seedRSSIWeights(db *gorm.DB, log *slog.Logger) {
	var count int64
	db.Model(&RSSIWeightModel{}).Count(&count)
	if count > 0 {
		return
	}
	buckets := []RSSIWeightModel{
		{RSSIBucketUpper: -50, Weight: 1.0},
		{RSSIBucketUpper: -60, Weight: 0.8},
		{RSSIBucketUpper: -70, Weight: 0.6},
		{RSSIBucketUpper: -80, Weight: 0.4},
		{RSSIBucketUpper: -90, Weight: 0.2},
		{RSSIBucketUpper: -100, Weight: 0.05},
	}
	if err := db.Create(&buckets).Error; err != nil {
		log.Warn("failed to seed rssi_weight_table", "error", err.Error())
	}
}

// ensureHypertable converts tracking_table into a TimescaleDB hypertable
// when the extension is available, giving retention (I) a real
// drop_chunks target. Returns false when the extension or conversion is
// unavailable, in which case retention falls back to a ranged DELETE.
func ensureHypertable(db *gorm.DB, log *slog.Logger) bool {
	if err := db.Exec("CREATE EXTENSION IF NOT EXISTS timescaledb").Error; err != nil {
		log.Info("timescaledb extension unavailable, retention will use ranged delete", "error", err.Error())
		return false
	}
	if err := db.Exec(`SELECT create_hypertable('tracking_table', 'final_timestamp', if_not_exists => true, migrate_data => true)`).Error; err != nil {
		log.Warn("create_hypertable failed, retention will use ranged delete", "error", err.Error())
		return false
	}
	return true
}

// --- Gateway ---

func (a *Adapter) UpsertGatewayRegistration(ctx context.Context, ip string) error {
	now := time.Now().UTC()
	err := a.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "ip_address"}},
		DoUpdates: clause.AssignmentColumns([]string{"last_report_timestamp"}),
	}).Create(&GatewayModel{
		IPAddress:    ip,
		HealthStatus: 0,
		RegisteredTS: now,
		LastReportTS: now,
	}).Error
	if err != nil {
		return domain.Wrap(domain.ErrSQLExecute, err)
	}
	return nil
}

func (a *Adapter) UpdateGatewayHealth(ctx context.Context, ip string, health int) error {
	err := a.db.WithContext(ctx).Model(&GatewayModel{}).Where("ip_address = ?", ip).
		Updates(map[string]any{"health_status": health, "last_report_timestamp": time.Now().UTC()}).Error
	if err != nil {
		return domain.Wrap(domain.ErrSQLExecute, err)
	}
	return nil
}

// --- Beacon ---

func (a *Adapter) UpsertBeaconRegistration(ctx context.Context, b domain.Beacon) error {
	now := time.Now().UTC()
	model := BeaconModel{
		UUID:         b.UUID,
		IPAddress:    b.IP,
		GatewayIP:    b.GatewayIP,
		CoordinateX:  b.CoordX,
		CoordinateY:  b.CoordY,
		Room:         b.Room,
		AreaID:       b.AreaID,
		HealthStatus: b.Health,
		RegisteredTS: now,
		LastReportTS: now,
	}
	err := a.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns: []clause.Column{{Name: "uuid"}},
		DoUpdates: clause.AssignmentColumns([]string{
			"ip_address", "gateway_ip_address", "coordinate_x", "coordinate_y", "last_report_timestamp",
		}),
	}).Create(&model).Error
	if err != nil {
		return domain.Wrap(domain.ErrSQLExecute, err)
	}
	return nil
}

func (a *Adapter) UpdateBeaconHealth(ctx context.Context, uuid string, health int, gatewayIP string) error {
	err := a.db.WithContext(ctx).Model(&BeaconModel{}).Where("uuid = ?", uuid).
		Updates(map[string]any{
			"health_status":      health,
			"gateway_ip_address": gatewayIP,
			"last_report_timestamp": time.Now().UTC(),
		}).Error
	if err != nil {
		return domain.Wrap(domain.ErrSQLExecute, err)
	}
	return nil
}

func (a *Adapter) GetBeacon(ctx context.Context, uuid string) (*domain.Beacon, error) {
	var m BeaconModel
	if err := a.db.WithContext(ctx).Where("uuid = ?", uuid).First(&m).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, domain.Wrap(domain.ErrSQLExecute, err)
	}
	return &domain.Beacon{
		UUID:         m.UUID,
		IP:           m.IPAddress,
		GatewayIP:    m.GatewayIP,
		CoordX:       m.CoordinateX,
		CoordY:       m.CoordinateY,
		Room:         m.Room,
		AreaID:       m.AreaID,
		Health:       m.HealthStatus,
		RegisteredTS: m.RegisteredTS,
		LastReportTS: m.LastReportTS,
	}, nil
}

// --- Tracking ---

// BulkInsertTracking streams rows into tracking_table via pgx's COPY
// protocol (Open Question: streaming COPY over temp-file COPY FROM).
func (a *Adapter) BulkInsertTracking(ctx context.Context, rows []domain.Sighting) error {
	if len(rows) == 0 {
		return nil
	}
	conn, serial, err := a.conns.Acquire(ctx)
	if err != nil {
		return err
	}
	defer a.conns.Release(serial)

	copyRows := make([][]any, len(rows))
	for i, r := range rows {
		copyRows[i] = []any{
			r.ObjectMAC, r.BeaconUUID, r.RSSI, r.InitialTS, r.FinalTS,
			r.PanicFlag, r.BatteryMV, r.ServerTimeOffset,
		}
	}

	_, err = conn.CopyFrom(ctx,
		pgx.Identifier{"tracking_table"},
		[]string{
			"object_mac_address", "beacon_uuid", "rssi", "initial_timestamp", "final_timestamp",
			"panic_flag", "battery_voltage", "server_time_offset",
		},
		pgx.CopyFromRows(copyRows),
	)
	if err != nil {
		return domain.Wrap(domain.ErrSQLExecute, err)
	}

	// Create the object_summary_table row lazily on an object's first
	// sighting; the summarizer fills in its location on the next pass.
	macs := make([]string, len(rows))
	for i, r := range rows {
		macs[i] = r.ObjectMAC
	}
	if _, err := conn.Exec(ctx, `
		INSERT INTO object_summary_table (mac_address, is_location_updated)
		SELECT DISTINCT m, false FROM unnest($1::text[]) AS m
		ON CONFLICT (mac_address) DO NOTHING`, macs); err != nil {
		return domain.Wrap(domain.ErrSQLExecute, err)
	}
	return nil
}

// StampPanicViolation implements the inline panic stamp of §4.F,
// qualified on the object's PANIC monitor bit directly in the WHERE
// clause rather than the source's unqualified self-join bug
// (Design Note 9).
func (a *Adapter) StampPanicViolation(ctx context.Context, mac string) error {
	tx := a.db.WithContext(ctx).Exec(`
		UPDATE object_summary_table
		SET panic_violation_timestamp = NOW()
		WHERE mac_address = ?
		  AND EXISTS (
		      SELECT 1 FROM object_table
		      WHERE object_table.mac_address = ?
		        AND (object_table.monitor_type & ?) != 0
		  )`, mac, mac, int(domain.MonitorPanic))
	if tx.Error != nil {
		return domain.Wrap(domain.ErrSQLExecute, tx.Error)
	}
	return nil
}

// --- Summarizer (G) ---

func (a *Adapter) ResetLocationUpdated(ctx context.Context) error {
	tx := a.db.WithContext(ctx).Exec(`UPDATE object_summary_table SET is_location_updated = false`)
	if tx.Error != nil {
		return domain.Wrap(domain.ErrSQLExecute, tx.Error)
	}
	return nil
}

// ApplyStableTags implements G2. "Gated also by server_time_offset" is
// resolved as: only sightings whose reported clock skew does not exceed
// the prefilter window itself are considered, consistent with the
// window already bounding staleness.
func (a *Adapter) ApplyStableTags(ctx context.Context, window time.Duration, tolerance int) (int64, error) {
	windowSec := int(window.Seconds())
	tx := a.db.WithContext(ctx).Exec(`
WITH recent AS (
    SELECT object_mac_address AS mac, beacon_uuid AS uuid,
           AVG(rssi) AS avg_rssi,
           MAX(final_timestamp) AS last_seen,
           MAX(battery_voltage) AS battery
    FROM tracking_table
    WHERE final_timestamp >= NOW() - (? * INTERVAL '1 second')
      AND ABS(server_time_offset) <= ?
    GROUP BY object_mac_address, beacon_uuid
    HAVING AVG(rssi) > -100
),
best AS (
    SELECT DISTINCT ON (mac) mac, uuid, avg_rssi, last_seen, battery
    FROM recent
    ORDER BY mac, avg_rssi DESC, uuid ASC
)
UPDATE object_summary_table s
SET rssi = best.avg_rssi::int,
    last_seen_timestamp = best.last_seen,
    battery_voltage = best.battery,
    is_location_updated = true
FROM best
WHERE s.mac_address = best.mac
  AND s.uuid = best.uuid
  AND ABS(s.rssi - best.avg_rssi::int) < ?`,
		windowSec, windowSec, tolerance)
	if tx.Error != nil {
		return 0, domain.Wrap(domain.ErrSQLExecute, tx.Error)
	}
	return tx.RowsAffected, nil
}

// ApplyMovingTags implements G3.
func (a *Adapter) ApplyMovingTags(ctx context.Context, window time.Duration) (int64, error) {
	windowSec := int(window.Seconds())
	tx := a.db.WithContext(ctx).Exec(`
WITH recent AS (
    SELECT object_mac_address AS mac, beacon_uuid AS uuid,
           AVG(rssi) AS avg_rssi,
           MAX(final_timestamp) AS last_seen,
           MIN(initial_timestamp) AS first_seen,
           MAX(battery_voltage) AS battery
    FROM tracking_table
    WHERE final_timestamp >= NOW() - (? * INTERVAL '1 second')
    GROUP BY object_mac_address, beacon_uuid
    HAVING AVG(rssi) > -100
),
best AS (
    SELECT DISTINCT ON (mac) mac, uuid, avg_rssi, last_seen, first_seen, battery
    FROM recent
    ORDER BY mac, avg_rssi DESC, uuid ASC
)
UPDATE object_summary_table s
SET uuid = best.uuid,
    rssi = best.avg_rssi::int,
    battery_voltage = best.battery,
    last_seen_timestamp = best.last_seen,
    first_seen_timestamp = CASE
        WHEN s.uuid IS DISTINCT FROM best.uuid OR s.first_seen_timestamp IS NULL
        THEN best.first_seen
        ELSE s.first_seen_timestamp
    END,
    is_location_updated = true
FROM best
WHERE s.mac_address = best.mac
  AND s.is_location_updated = false`,
		windowSec)
	if tx.Error != nil {
		return 0, domain.Wrap(domain.ErrSQLExecute, tx.Error)
	}
	return tx.RowsAffected, nil
}

// ApplyBaseCoordinates implements G4's weighted centroid with hysteresis.
func (a *Adapter) ApplyBaseCoordinates(ctx context.Context, window time.Duration, toleranceMM int) (int64, error) {
	windowSec := int(window.Seconds())
	tx := a.db.WithContext(ctx).Exec(`
WITH recent AS (
    SELECT t.object_mac_address AS mac, b.coordinate_x AS x, b.coordinate_y AS y,
           COALESCE((SELECT w.weight FROM rssi_weight_table w
                     WHERE w.rssi_bucket_upper = (
                         SELECT MIN(rssi_bucket_upper) FROM rssi_weight_table
                         WHERE rssi_bucket_upper >= t.rssi
                     )), 0.01) AS weight
    FROM tracking_table t
    JOIN lbeacon_table b ON b.uuid = t.beacon_uuid
    WHERE t.final_timestamp >= NOW() - (? * INTERVAL '1 second')
),
centroid AS (
    SELECT mac,
           (SUM(x * weight) / NULLIF(SUM(weight), 0))::int AS cx,
           (SUM(y * weight) / NULLIF(SUM(weight), 0))::int AS cy
    FROM recent
    GROUP BY mac
)
UPDATE object_summary_table s
SET base_x = centroid.cx, base_y = centroid.cy
FROM centroid
WHERE s.mac_address = centroid.mac
  AND (s.base_x IS NULL OR s.base_y IS NULL
       OR ABS(s.base_x - centroid.cx) >= ?
       OR ABS(s.base_y - centroid.cy) >= ?)`,
		windowSec, toleranceMM, toleranceMM)
	if tx.Error != nil {
		return 0, domain.Wrap(domain.ErrSQLExecute, tx.Error)
	}
	return tx.RowsAffected, nil
}

// --- Rules (H1) ---

func (a *Adapter) ReloadGeoFenceRules(ctx context.Context, localOffset time.Duration) error {
	var rows []GeoFenceConfigModel
	if err := a.db.WithContext(ctx).Find(&rows).Error; err != nil {
		return domain.Wrap(domain.ErrSQLExecute, err)
	}
	now := time.Now().UTC().Add(localOffset)
	err := a.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		for _, r := range rows {
			active := r.Enable && domain.WithinWindow(now, r.startTimeOfDay(), r.endTimeOfDay())
			if err := tx.Model(&GeoFenceConfigModel{}).Where("id = ?", r.ID).Update("is_active", active).Error; err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return domain.Wrap(domain.ErrSQLExecute, err)
	}
	return nil
}

func (a *Adapter) ReloadLocationNotStayRules(ctx context.Context, localOffset time.Duration) error {
	var rows []LocationNotStayRoomConfigModel
	if err := a.db.WithContext(ctx).Find(&rows).Error; err != nil {
		return domain.Wrap(domain.ErrSQLExecute, err)
	}
	now := time.Now().UTC().Add(localOffset)
	err := a.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		for _, r := range rows {
			active := r.Enable && domain.WithinWindow(now, r.startTimeOfDay(), r.endTimeOfDay())
			if err := tx.Model(&LocationNotStayRoomConfigModel{}).Where("id = ?", r.ID).Update("is_active", active).Error; err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return domain.Wrap(domain.ErrSQLExecute, err)
	}
	return nil
}

func (a *Adapter) ReloadLongStayRules(ctx context.Context, localOffset time.Duration) ([]domain.LocationLongStayInDangerConfig, error) {
	var rows []LocationLongStayInDangerConfigModel
	if err := a.db.WithContext(ctx).Find(&rows).Error; err != nil {
		return nil, domain.Wrap(domain.ErrSQLExecute, err)
	}
	now := time.Now().UTC().Add(localOffset)
	active := make([]domain.LocationLongStayInDangerConfig, 0, len(rows))
	err := a.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		for _, r := range rows {
			isActive := r.Enable && domain.WithinWindow(now, r.startTimeOfDay(), r.endTimeOfDay())
			if err := tx.Model(&LocationLongStayInDangerConfigModel{}).Where("id = ?", r.ID).Update("is_active", isActive).Error; err != nil {
				return err
			}
			if isActive {
				active = append(active, domain.LocationLongStayInDangerConfig{
					ID:           r.ID,
					AreaID:       r.AreaID,
					Enable:       r.Enable,
					IsActive:     true,
					StayDuration: time.Duration(r.StayDurationSec) * time.Second,
				})
			}
		}
		return nil
	})
	if err != nil {
		return nil, domain.Wrap(domain.ErrSQLExecute, err)
	}
	return active, nil
}

func (a *Adapter) ReloadMovementRules(ctx context.Context, localOffset time.Duration) ([]domain.MovementConfig, error) {
	var rows []MovementConfigModel
	if err := a.db.WithContext(ctx).Find(&rows).Error; err != nil {
		return nil, domain.Wrap(domain.ErrSQLExecute, err)
	}
	now := time.Now().UTC().Add(localOffset)
	active := make([]domain.MovementConfig, 0, len(rows))
	err := a.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		for _, r := range rows {
			isActive := r.Enable && domain.WithinWindow(now, r.startTimeOfDay(), r.endTimeOfDay())
			if err := tx.Model(&MovementConfigModel{}).Where("id = ?", r.ID).Update("is_active", isActive).Error; err != nil {
				return err
			}
			if isActive {
				active = append(active, domain.MovementConfig{
					ID:              r.ID,
					AreaID:          r.AreaID,
					Enable:          r.Enable,
					IsActive:        true,
					TimeIntervalMin: r.TimeIntervalMin,
					EachTimeSlotMin: r.EachTimeSlotMin,
					RSSIDelta:       r.RSSIDelta,
				})
			}
		}
		return nil
	})
	if err != nil {
		return nil, domain.Wrap(domain.ErrSQLExecute, err)
	}
	return active, nil
}

func (a *Adapter) LoadGeoFenceConfig(ctx context.Context) (map[string]domain.GeoFenceConfig, map[string][]string, error) {
	type fenceRow struct {
		UUID   string
		ID     int64
		AreaID string
		Name   string
	}
	var fenceRows []fenceRow
	if err := a.db.WithContext(ctx).Raw(`
		SELECT b.uuid AS uuid, g.id AS id, g.area_id AS area_id, g.name AS name
		FROM lbeacon_table b
		JOIN geo_fence_config g ON g.area_id = b.area_id AND g.is_active = true
	`).Scan(&fenceRows).Error; err != nil {
		return nil, nil, domain.Wrap(domain.ErrSQLExecute, err)
	}
	byUUID := make(map[string]domain.GeoFenceConfig, len(fenceRows))
	for _, r := range fenceRows {
		byUUID[r.UUID] = domain.GeoFenceConfig{ID: r.ID, AreaID: r.AreaID, Name: r.Name, IsActive: true}
	}

	type monitoredRow struct {
		AreaID string
		MAC    string `gorm:"column:mac_address"`
	}
	var monitoredRows []monitoredRow
	if err := a.db.WithContext(ctx).Raw(`
		SELECT area_id, mac_address FROM object_table WHERE (monitor_type & ?) != 0
	`, int(domain.MonitorGeoFence)).Scan(&monitoredRows).Error; err != nil {
		return nil, nil, domain.Wrap(domain.ErrSQLExecute, err)
	}
	monitoredByArea := make(map[string][]string)
	for _, r := range monitoredRows {
		monitoredByArea[r.AreaID] = append(monitoredByArea[r.AreaID], r.MAC)
	}
	return byUUID, monitoredByArea, nil
}

// --- Violations (H2-H5) ---

func (a *Adapter) StampWrongRoomViolations(ctx context.Context) (int64, error) {
	tx := a.db.WithContext(ctx).Exec(`
		UPDATE object_summary_table s
		SET location_violation_timestamp = NOW()
		FROM object_table o
		JOIN lbeacon_table b ON b.uuid = s.uuid
		JOIN location_not_stay_room_config c ON c.area_id = o.area_id AND c.is_active = true
		WHERE s.mac_address = o.mac_address
		  AND (o.monitor_type & ?) != 0
		  AND b.room <> o.room`, int(domain.MonitorLocation))
	if tx.Error != nil {
		return 0, domain.Wrap(domain.ErrSQLExecute, tx.Error)
	}
	return tx.RowsAffected, nil
}

func (a *Adapter) StampLongStayViolations(ctx context.Context, cfgs []domain.LocationLongStayInDangerConfig) (int64, error) {
	var total int64
	for _, cfg := range cfgs {
		if !cfg.IsActive {
			continue
		}
		tx := a.db.WithContext(ctx).Exec(`
			UPDATE object_summary_table s
			SET location_violation_timestamp = NOW()
			FROM object_table o
			JOIN lbeacon_table b ON b.uuid = s.uuid
			WHERE s.mac_address = o.mac_address
			  AND o.area_id = ?
			  AND b.area_id = o.area_id
			  AND (o.monitor_type & ?) != 0
			  AND o.danger_area_flag = true
			  AND (s.last_seen_timestamp - s.first_seen_timestamp) > (? * INTERVAL '1 second')`,
			cfg.AreaID, int(domain.MonitorLocation), int(cfg.StayDuration.Seconds()))
		if tx.Error != nil {
			return total, domain.Wrap(domain.ErrSQLExecute, tx.Error)
		}
		total += tx.RowsAffected
	}
	return total, nil
}

func (a *Adapter) StampMovementViolations(ctx context.Context, cfgs []domain.MovementConfig) (int64, error) {
	var total int64
	for _, cfg := range cfgs {
		if !cfg.IsActive || cfg.EachTimeSlotMin <= 0 {
			continue
		}
		numSlots := cfg.TimeIntervalMin / cfg.EachTimeSlotMin
		if numSlots < 1 {
			numSlots = 1
		}
		tx := a.db.WithContext(ctx).Exec(`
WITH buckets AS (
    SELECT o.mac_address AS mac,
           width_bucket(EXTRACT(EPOCH FROM (NOW() - t.final_timestamp)), 0, ? * 60, ?) AS slot,
           AVG(t.rssi) AS avg_rssi
    FROM tracking_table t
    JOIN object_table o ON o.mac_address = t.object_mac_address
    JOIN object_summary_table s ON s.mac_address = o.mac_address
    WHERE o.area_id = ?
      AND (o.monitor_type & ?) != 0
      AND t.beacon_uuid = s.uuid
      AND t.final_timestamp >= NOW() - (? * INTERVAL '1 minute')
    GROUP BY o.mac_address, slot
),
deltas AS (
    SELECT mac, ABS(avg_rssi - LAG(avg_rssi) OVER (PARTITION BY mac ORDER BY slot)) AS delta
    FROM buckets
)
UPDATE object_summary_table s
SET movement_violation_timestamp = NOW()
WHERE s.mac_address IN (
    SELECT mac FROM deltas GROUP BY mac HAVING COALESCE(MAX(delta), 0) <= ?
)`,
			cfg.TimeIntervalMin, numSlots, cfg.AreaID, int(domain.MonitorMovement), cfg.TimeIntervalMin, cfg.RSSIDelta)
		if tx.Error != nil {
			return total, domain.Wrap(domain.ErrSQLExecute, tx.Error)
		}
		total += tx.RowsAffected
	}
	return total, nil
}

// StampGeoFenceViolation is called by the geofence evaluator (§4.E)
// outside any SQL transaction it manages itself.
func (a *Adapter) StampGeoFenceViolation(ctx context.Context, mac string) error {
	tx := a.db.WithContext(ctx).Exec(`UPDATE object_summary_table SET geofence_violation_timestamp = NOW() WHERE mac_address = ?`, mac)
	if tx.Error != nil {
		return domain.Wrap(domain.ErrSQLExecute, tx.Error)
	}
	return nil
}

func violationColumn(m domain.MonitorType) (string, bool) {
	switch m {
	case domain.MonitorGeoFence:
		return "geofence_violation_timestamp", true
	case domain.MonitorPanic:
		return "panic_violation_timestamp", true
	case domain.MonitorMovement:
		return "movement_violation_timestamp", true
	case domain.MonitorLocation:
		return "location_violation_timestamp", true
	default:
		return "", false
	}
}

// MaterializeNotifications implements H5, qualifying both sides of the
// dedup anti-join by alias (s vs n) to fix the source's unqualified
// self-comparison (Design Note 9). It returns the rows it inserted, not
// just a count, so component K can broadcast each one as it is minted.
func (a *Adapter) MaterializeNotifications(ctx context.Context, monitor domain.MonitorType, lookback, dedupWindow time.Duration) ([]domain.Notification, error) {
	col, ok := violationColumn(monitor)
	if !ok {
		return nil, domain.Wrap(domain.ErrInputParameter, nil)
	}
	query := fmt.Sprintf(`
INSERT INTO notification_table (monitor_type, mac_address, uuid, violation_timestamp, processed)
SELECT ?, s.mac_address, s.uuid, s.%s, false
FROM object_summary_table s
WHERE s.%s IS NOT NULL
  AND s.%s >= NOW() - (? * INTERVAL '1 second')
  AND NOT EXISTS (
      SELECT 1 FROM notification_table n
      WHERE n.monitor_type = ?
        AND n.mac_address = s.mac_address
        AND n.uuid = s.uuid
        AND n.violation_timestamp >= NOW() - (? * INTERVAL '1 second')
  )
RETURNING id, monitor_type, mac_address, uuid, violation_timestamp, processed`, col, col, col)

	var models []NotificationModel
	if err := a.db.WithContext(ctx).Raw(query,
		int(monitor), int(lookback.Seconds()), int(monitor), int(dedupWindow.Seconds())).Scan(&models).Error; err != nil {
		return nil, domain.Wrap(domain.ErrSQLExecute, err)
	}

	out := make([]domain.Notification, len(models))
	for i, m := range models {
		out[i] = domain.Notification{
			ID: m.ID, MonitorType: domain.MonitorType(m.MonitorType),
			MAC: m.MAC, UUID: m.UUID, ViolationTS: m.ViolationTS, Processed: m.Processed,
		}
	}
	return out, nil
}

// --- Notifications (drain, §6) ---

func (a *Adapter) DrainNotifications(ctx context.Context, limit int) ([]domain.Notification, error) {
	var out []domain.Notification
	err := a.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var models []NotificationModel
		if err := tx.Where("processed = false").Order("id").Limit(limit).Find(&models).Error; err != nil {
			return err
		}
		if len(models) == 0 {
			return nil
		}
		ids := make([]int64, len(models))
		for i, m := range models {
			ids[i] = m.ID
		}
		if err := tx.Model(&NotificationModel{}).Where("id IN ?", ids).Update("processed", true).Error; err != nil {
			return err
		}
		out = make([]domain.Notification, len(models))
		for i, m := range models {
			out[i] = domain.Notification{
				ID: m.ID, MonitorType: domain.MonitorType(m.MonitorType),
				MAC: m.MAC, UUID: m.UUID, ViolationTS: m.ViolationTS, Processed: true,
			}
		}
		return nil
	})
	if err != nil {
		return nil, domain.Wrap(domain.ErrSQLExecute, err)
	}
	return out, nil
}

func (a *Adapter) RecentNotifications(ctx context.Context, since time.Time) ([]domain.Notification, error) {
	var models []NotificationModel
	if err := a.db.WithContext(ctx).Where("violation_timestamp >= ?", since).Order("id").Find(&models).Error; err != nil {
		return nil, domain.Wrap(domain.ErrSQLExecute, err)
	}
	out := make([]domain.Notification, len(models))
	for i, m := range models {
		out[i] = domain.Notification{
			ID: m.ID, MonitorType: domain.MonitorType(m.MonitorType),
			MAC: m.MAC, UUID: m.UUID, ViolationTS: m.ViolationTS, Processed: m.Processed,
		}
	}
	return out, nil
}

// --- Retention (I) ---

func (a *Adapter) DeleteOldNotifications(ctx context.Context, olderThan time.Duration) (int64, error) {
	cutoff := time.Now().UTC().Add(-olderThan)
	tx := a.db.WithContext(ctx).Where("violation_timestamp < ?", cutoff).Delete(&NotificationModel{})
	if tx.Error != nil {
		return 0, domain.Wrap(domain.ErrSQLExecute, tx.Error)
	}
	return tx.RowsAffected, nil
}

func (a *Adapter) DropTrackingChunks(ctx context.Context, olderThan time.Duration) error {
	cutoff := time.Now().UTC().Add(-olderThan)
	if a.hasTimescale {
		tx := a.db.WithContext(ctx).Exec(`SELECT drop_chunks('tracking_table', ?)`, cutoff)
		if tx.Error == nil {
			return nil
		}
		a.log.Warn("drop_chunks failed, falling back to ranged delete", "error", tx.Error.Error())
	}
	tx := a.db.WithContext(ctx).Exec(`DELETE FROM tracking_table WHERE final_timestamp < ?`, cutoff)
	if tx.Error != nil {
		return domain.Wrap(domain.ErrSQLExecute, tx.Error)
	}
	return nil
}

// VacuumAll runs VACUUM per table, each on its own pooled connection
// (VACUUM cannot run inside a transaction), independently reporting
// success per §4.I.
func (a *Adapter) VacuumAll(ctx context.Context) map[string]error {
	tables := []string{
		"gateway_table", "lbeacon_table", "object_table", "object_summary_table",
		"notification_table", "geo_fence_config", "location_not_stay_room_config",
		"location_long_stay_in_danger_config", "movement_config",
	}
	results := make(map[string]error, len(tables))
	for _, table := range tables {
		conn, serial, err := a.conns.Acquire(ctx)
		if err != nil {
			results[table] = err
			continue
		}
		_, execErr := conn.Exec(ctx, "VACUUM "+pgx.Identifier{table}.Sanitize())
		a.conns.Release(serial)
		if execErr != nil {
			results[table] = domain.Wrap(domain.ErrSQLExecute, execErr)
		} else {
			results[table] = nil
		}
	}
	return results
}

func (a *Adapter) Close() error {
	var first error
	if err := a.conns.Destroy(); err != nil {
		first = err
	}
	sqlDB, err := a.db.DB()
	if err != nil {
		if first == nil {
			first = err
		}
		return first
	}
	if cerr := sqlDB.Close(); cerr != nil && first == nil {
		first = cerr
	}
	return first
}

var _ ports.Storage = (*Adapter)(nil)
