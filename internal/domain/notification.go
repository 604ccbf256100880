package domain

import "time"

// Notification is an append-only violation event. Its Processed bit is
// monotonic (false -> true, flipped only by the drain operation in §6).
type Notification struct {
	ID          int64
	MonitorType MonitorType
	MAC         string
	UUID        string
	ViolationTS time.Time
	Processed   bool
}

// String renders a single monitor bit for notification payloads.
// MonitorType values passed here are expected to carry exactly one bit,
// since H5 materializes one notification per monitor type per event.
func (m MonitorType) String() string {
	switch m {
	case MonitorGeoFence:
		return "GEO_FENCE"
	case MonitorPanic:
		return "PANIC"
	case MonitorMovement:
		return "MOVEMENT"
	case MonitorLocation:
		return "LOCATION"
	default:
		return "UNKNOWN"
	}
}
