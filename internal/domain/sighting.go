package domain

import "time"

// ObjectType distinguishes the radio technology a sighting record came in
// under, per the envelope's object_type field.
type ObjectType int

const (
	ObjectTypeBREDR ObjectType = iota
	ObjectTypeBLE
)

// Sighting is one observation of an object at a beacon. Sightings are
// created by the ingestion persister, never mutated, and destroyed by
// retention after retention_hours.
type Sighting struct {
	ObjectMAC        string // canonical form, see CanonicalMAC
	BeaconUUID       string
	RSSI             int // dBm, typically -100..0
	InitialTS        time.Time
	FinalTS          time.Time
	PanicFlag        bool
	BatteryMV        int
	ServerTimeOffset int // seconds: server receipt time - lbeacon timestamp
}
