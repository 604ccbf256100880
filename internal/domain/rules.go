package domain

import "time"

// TimeOfDay is a wall-clock time of day (no date component), used by rule
// config windows that may wrap past midnight.
type TimeOfDay struct {
	Hour, Minute, Second int
}

func (t TimeOfDay) secondsOfDay() int {
	return t.Hour*3600 + t.Minute*60 + t.Second
}

// WithinWindow reports whether `now` (already adjusted for
// server_localtime_against_UTC_in_hour) falls within [start,end]. When
// start > end the window wraps midnight and is evaluated as
// [start,23:59:59] ∪ [00:00:00,end].
func WithinWindow(now time.Time, start, end TimeOfDay) bool {
	nowSec := now.Hour()*3600 + now.Minute()*60 + now.Second()
	startSec, endSec := start.secondsOfDay(), end.secondsOfDay()

	if startSec <= endSec {
		return nowSec >= startSec && nowSec <= endSec
	}
	// Wrapped window.
	return nowSec >= startSec || nowSec <= endSec
}

// GeoFenceConfig is one row of geo_fence_config.
type GeoFenceConfig struct {
	ID        int64
	AreaID    string
	Name      string
	Enable    bool
	StartTime TimeOfDay
	EndTime   TimeOfDay
	IsActive  bool
}

// LocationNotStayRoomConfig is one row of location_not_stay_room_config (H2).
type LocationNotStayRoomConfig struct {
	ID        int64
	AreaID    string
	Enable    bool
	StartTime TimeOfDay
	EndTime   TimeOfDay
	IsActive  bool
}

// LocationLongStayInDangerConfig is one row of
// location_long_stay_in_danger_config (H3).
type LocationLongStayInDangerConfig struct {
	ID           int64
	AreaID       string
	Enable       bool
	StartTime    TimeOfDay
	EndTime      TimeOfDay
	IsActive     bool
	StayDuration time.Duration
}

// MovementConfig is one row of movement_config (H4).
type MovementConfig struct {
	ID              int64
	AreaID          string
	Enable          bool
	StartTime       TimeOfDay
	EndTime         TimeOfDay
	IsActive        bool
	TimeIntervalMin int
	EachTimeSlotMin int
	RSSIDelta       int
}

// RSSIWeightBucket maps an RSSI upper bound to the weight used by the
// weighted centroid in G4.
type RSSIWeightBucket struct {
	RSSIBucketUpper int
	Weight          float64
}
