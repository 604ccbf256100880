package domain

import "time"

// Gateway is a relay that aggregates LBeacon reports and forwards
// datagrams to the engine.
type Gateway struct {
	IP           string
	Health       int
	RegisteredTS time.Time
	LastReportTS time.Time
}
