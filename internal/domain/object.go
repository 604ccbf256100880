package domain

import "strings"

// MonitorType is a bitmask selecting which rule families apply to an object.
// Bits are independent; any subset may be set.
type MonitorType int

const (
	MonitorGeoFence MonitorType = 1 << iota
	MonitorPanic
	MonitorMovement
	MonitorLocation
)

func (m MonitorType) Has(bit MonitorType) bool { return m&bit != 0 }

// Object is a tracked, monitorable entity identified by its MAC address.
type Object struct {
	MAC         string // canonical: lowercase, colon-free
	AreaID      string
	Room        string
	MonitorType MonitorType
	DangerArea  bool
}

// CanonicalMAC lowercases a MAC address and strips colons/dashes, matching
// the canonical form object_table.mac is stored in.
func CanonicalMAC(mac string) string {
	mac = strings.ToLower(mac)
	mac = strings.ReplaceAll(mac, ":", "")
	mac = strings.ReplaceAll(mac, "-", "")
	return mac
}
