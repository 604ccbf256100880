package domain

import "time"

// ObjectSummary is the per-object "current location" row. It is created
// lazily on first sighting and never deleted. IsLocationUpdated is a
// transient, per-pass control flag private to the summarizer (G) — it is
// reset at the start of every pass and never read outside one pass.
type ObjectSummary struct {
	MAC                 string // key
	UUID                string // current beacon
	RSSI                int
	FirstSeenTS         time.Time
	LastSeenTS          time.Time
	BaseX               *int // nil = not yet established
	BaseY               *int
	BatteryMV           int
	IsLocationUpdated   bool
	GeofenceViolationTS *time.Time
	PanicViolationTS    *time.Time
	MovementViolationTS *time.Time
	LocationViolationTS *time.Time
}
