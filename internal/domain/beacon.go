package domain

import (
	"fmt"
	"strconv"
	"time"
)

// Beacon coordinate byte offsets within the fixed-width UUID string.
// Each field is an 8-digit decimal millimeter integer.
const (
	uuidCoordLen = 8
	uuidXOffset  = 12
	uuidYOffset  = 24
)

// Beacon is a location beacon with fixed coordinates encoded in its UUID.
type Beacon struct {
	UUID         string // 36 chars, deterministic format with embedded coordinates
	IP           string
	GatewayIP    string
	CoordX       int // millimeters, parsed from UUID[12:20)
	CoordY       int // millimeters, parsed from UUID[24:32)
	Room         string
	AreaID       string
	Health       int
	RegisteredTS time.Time
	LastReportTS time.Time
}

// ParseUUIDCoordinates extracts the x/y millimeter coordinates embedded in a
// beacon UUID at the fixed byte offsets defined by the wire format:
// chars [12,20) encode x, chars [24,32) encode y, each an 8-digit decimal.
func ParseUUIDCoordinates(uuid string) (x, y int, err error) {
	if len(uuid) < uuidYOffset+uuidCoordLen {
		return 0, 0, fmt.Errorf("uuid %q too short to contain coordinates", uuid)
	}
	xStr := uuid[uuidXOffset : uuidXOffset+uuidCoordLen]
	yStr := uuid[uuidYOffset : uuidYOffset+uuidCoordLen]

	x, err = strconv.Atoi(xStr)
	if err != nil {
		return 0, 0, fmt.Errorf("parse x coordinate %q: %w", xStr, err)
	}
	y, err = strconv.Atoi(yStr)
	if err != nil {
		return 0, 0, fmt.Errorf("parse y coordinate %q: %w", yStr, err)
	}
	return x, y, nil
}

// FormatCoordinate renders a millimeter coordinate as the 8-digit decimal
// string the UUID wire format expects, for the round-trip law in §8.
func FormatCoordinate(v int) string {
	return fmt.Sprintf("%08d", v)
}
