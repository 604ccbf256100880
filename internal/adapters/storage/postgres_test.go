package storage

import (
	"testing"

	"github.com/beaconsentry/engine/internal/domain"
	"github.com/stretchr/testify/assert"
)

// These tests cover the adapter's pure-Go helper logic: violation column
// mapping, window-field translation, and table naming. The adapter's SQL
// bodies require a live PostgreSQL connection and are not covered by the
// repository's tests.

func TestViolationColumn_KnownMonitorTypes(t *testing.T) {
	cases := []struct {
		monitor domain.MonitorType
		want    string
	}{
		{domain.MonitorGeoFence, "geofence_violation_timestamp"},
		{domain.MonitorPanic, "panic_violation_timestamp"},
		{domain.MonitorMovement, "movement_violation_timestamp"},
		{domain.MonitorLocation, "location_violation_timestamp"},
	}
	for _, c := range cases {
		col, ok := violationColumn(c.monitor)
		assert.True(t, ok)
		assert.Equal(t, c.want, col)
	}
}

func TestViolationColumn_UnknownMonitorType_NotOK(t *testing.T) {
	_, ok := violationColumn(domain.MonitorType(0))
	assert.False(t, ok)

	_, ok = violationColumn(domain.MonitorGeoFence | domain.MonitorPanic)
	assert.False(t, ok)
}

func TestWindowFields_TimeOfDayTranslation(t *testing.T) {
	m := GeoFenceConfigModel{
		windowFields: windowFields{
			StartHour: 22, StartMinute: 30, StartSecond: 0,
			EndHour: 6, EndMinute: 0, EndSecond: 0,
		},
	}
	start := m.startTimeOfDay()
	end := m.endTimeOfDay()
	assert.Equal(t, domain.TimeOfDay{Hour: 22, Minute: 30, Second: 0}, start)
	assert.Equal(t, domain.TimeOfDay{Hour: 6, Minute: 0, Second: 0}, end)
}

func TestTableNames_MatchSchemaConvention(t *testing.T) {
	assert.Equal(t, "gateway_table", GatewayModel{}.TableName())
	assert.Equal(t, "lbeacon_table", BeaconModel{}.TableName())
	assert.Equal(t, "object_table", ObjectModel{}.TableName())
	assert.Equal(t, "tracking_table", TrackingModel{}.TableName())
	assert.Equal(t, "object_summary_table", ObjectSummaryModel{}.TableName())
	assert.Equal(t, "notification_table", NotificationModel{}.TableName())
	assert.Equal(t, "geo_fence_config", GeoFenceConfigModel{}.TableName())
	assert.Equal(t, "location_not_stay_room_config", LocationNotStayRoomConfigModel{}.TableName())
	assert.Equal(t, "location_long_stay_in_danger_config", LocationLongStayInDangerConfigModel{}.TableName())
	assert.Equal(t, "movement_config", MovementConfigModel{}.TableName())
	assert.Equal(t, "rssi_weight_table", RSSIWeightModel{}.TableName())
}
