package storage

import (
	"time"

	"github.com/beaconsentry/engine/internal/domain"
)

// GatewayModel is the gateway_table row, keyed by ip_address per the
// wire protocol's registration envelope (§4.C).
type GatewayModel struct {
	IPAddress    string `gorm:"column:ip_address;primaryKey"`
	HealthStatus int    `gorm:"column:health_status"`
	RegisteredTS time.Time `gorm:"column:registered_timestamp"`
	LastReportTS time.Time `gorm:"column:last_report_timestamp"`
}

func (GatewayModel) TableName() string { return "gateway_table" }

// BeaconModel is the lbeacon_table row.
type BeaconModel struct {
	UUID         string `gorm:"column:uuid;primaryKey"`
	IPAddress    string `gorm:"column:ip_address"`
	GatewayIP    string `gorm:"column:gateway_ip_address"`
	CoordinateX  int    `gorm:"column:coordinate_x"`
	CoordinateY  int    `gorm:"column:coordinate_y"`
	Room         string `gorm:"column:room"`
	AreaID       string `gorm:"column:area_id"`
	HealthStatus int    `gorm:"column:health_status"`
	RegisteredTS time.Time `gorm:"column:registered_timestamp"`
	LastReportTS time.Time `gorm:"column:last_report_timestamp"`
}

func (BeaconModel) TableName() string { return "lbeacon_table" }

// ObjectModel is the object_table row: the monitoring configuration for
// one tracked MAC (§4.D/H).
type ObjectModel struct {
	MAC         string `gorm:"column:mac_address;primaryKey"`
	AreaID      string `gorm:"column:area_id"`
	Room        string `gorm:"column:room"`
	MonitorType int    `gorm:"column:monitor_type"`
	DangerArea  bool   `gorm:"column:danger_area_flag"`
}

func (ObjectModel) TableName() string { return "object_table" }

// TrackingModel is one tracking_table row: a single sighting record as
// ingested by the persister. Rows are append-only and never updated; the
// summarizer reads them, retention deletes them (§4.I).
type TrackingModel struct {
	ID               int64 `gorm:"column:id;primaryKey;autoIncrement"`
	ObjectMAC        string `gorm:"column:object_mac_address"`
	BeaconUUID       string `gorm:"column:beacon_uuid"`
	RSSI             int    `gorm:"column:rssi"`
	InitialTS        time.Time `gorm:"column:initial_timestamp"`
	FinalTS          time.Time `gorm:"column:final_timestamp"`
	PanicFlag        bool   `gorm:"column:panic_flag"`
	BatteryVoltage   int    `gorm:"column:battery_voltage"`
	ServerTimeOffset int    `gorm:"column:server_time_offset"`
}

func (TrackingModel) TableName() string { return "tracking_table" }

// ObjectSummaryModel is the object_summary_table row: the current
// best-known location/violation state for one MAC, maintained by the
// summarizer (G) and stamped by the violation identifier (H).
type ObjectSummaryModel struct {
	MAC                      string     `gorm:"column:mac_address;primaryKey"`
	UUID                     string     `gorm:"column:uuid"`
	RSSI                     int        `gorm:"column:rssi"`
	FirstSeenTS              time.Time  `gorm:"column:first_seen_timestamp"`
	LastSeenTS               time.Time  `gorm:"column:last_seen_timestamp"`
	BaseX                    *int       `gorm:"column:base_x"`
	BaseY                    *int       `gorm:"column:base_y"`
	BatteryVoltage           int        `gorm:"column:battery_voltage"`
	IsLocationUpdated        bool       `gorm:"column:is_location_updated"`
	GeoFenceViolationTS      *time.Time `gorm:"column:geofence_violation_timestamp"`
	PanicViolationTS         *time.Time `gorm:"column:panic_violation_timestamp"`
	MovementViolationTS      *time.Time `gorm:"column:movement_violation_timestamp"`
	LocationViolationTS      *time.Time `gorm:"column:location_violation_timestamp"`
}

func (ObjectSummaryModel) TableName() string { return "object_summary_table" }

// NotificationModel is the notification_table row: one materialized
// violation event (H5), drained outbound by the control API (§6).
type NotificationModel struct {
	ID          int64     `gorm:"column:id;primaryKey;autoIncrement"`
	MonitorType int       `gorm:"column:monitor_type"`
	MAC         string    `gorm:"column:mac_address"`
	UUID        string    `gorm:"column:uuid"`
	ViolationTS time.Time `gorm:"column:violation_timestamp"`
	Processed   bool      `gorm:"column:processed"`
}

func (NotificationModel) TableName() string { return "notification_table" }

// windowFields is embedded by every rule-config model: each rule carries
// an enable flag, a wall-clock activation window, and a server-computed
// is_active bit refreshed by H1's reload pass.
type windowFields struct {
	ID          int64  `gorm:"column:id;primaryKey;autoIncrement"`
	AreaID      string `gorm:"column:area_id"`
	Enable      bool   `gorm:"column:enable"`
	StartHour   int    `gorm:"column:start_hour"`
	StartMinute int    `gorm:"column:start_minute"`
	StartSecond int    `gorm:"column:start_second"`
	EndHour     int    `gorm:"column:end_hour"`
	EndMinute   int    `gorm:"column:end_minute"`
	EndSecond   int    `gorm:"column:end_second"`
	IsActive    bool   `gorm:"column:is_active"`
}

func (w windowFields) startTimeOfDay() domain.TimeOfDay {
	return domain.TimeOfDay{Hour: w.StartHour, Minute: w.StartMinute, Second: w.StartSecond}
}

func (w windowFields) endTimeOfDay() domain.TimeOfDay {
	return domain.TimeOfDay{Hour: w.EndHour, Minute: w.EndMinute, Second: w.EndSecond}
}

// GeoFenceConfigModel is the geo_fence_config row (§4.E).
type GeoFenceConfigModel struct {
	windowFields
	Name string `gorm:"column:name"`
}

func (GeoFenceConfigModel) TableName() string { return "geo_fence_config" }

// LocationNotStayRoomConfigModel is the location_not_stay_room_config row (H2).
type LocationNotStayRoomConfigModel struct {
	windowFields
}

func (LocationNotStayRoomConfigModel) TableName() string { return "location_not_stay_room_config" }

// LocationLongStayInDangerConfigModel is the
// location_long_stay_in_danger_config row (H3).
type LocationLongStayInDangerConfigModel struct {
	windowFields
	StayDurationSec int `gorm:"column:stay_duration_seconds"`
}

func (LocationLongStayInDangerConfigModel) TableName() string {
	return "location_long_stay_in_danger_config"
}

// MovementConfigModel is the movement_config row (H4).
type MovementConfigModel struct {
	windowFields
	TimeIntervalMin int `gorm:"column:time_interval_min"`
	EachTimeSlotMin int `gorm:"column:each_time_slot_min"`
	RSSIDelta       int `gorm:"column:rssi_delta"`
}

func (MovementConfigModel) TableName() string { return "movement_config" }

// RSSIWeightModel is the rssi_weight_table row used by G4's weighted
// centroid calculation.
type RSSIWeightModel struct {
	RSSIBucketUpper int     `gorm:"column:rssi_bucket_upper;primaryKey"`
	Weight          float64 `gorm:"column:weight"`
}

func (RSSIWeightModel) TableName() string { return "rssi_weight_table" }
