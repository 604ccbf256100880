// Package receiver implements the UDP packet receiver of spec §4.C and
// the semicolon-delimited envelope parser of §4.F.
//
// The wire format distinguishes registration/health envelopes from
// tracking envelopes by a leading numeric report-kind field, grounded on
// the literal scenario example in spec.md §8 ("Send 1;192.168.1.10;"):
// kind 1 is a gateway registration whose second field is the gateway IP.
// spec.md does not give registration/health their own envelope grammar
// beyond that example, so the remaining kinds below are this package's
// resolution of that gap; the tracking envelope (kind 5) reproduces
// §4.C's format verbatim.
package receiver

import (
	"strconv"
	"strings"
	"time"

	"github.com/beaconsentry/engine/internal/domain"
)

// ReportKind discriminates the envelope variants carried over the UDP
// API port.
type ReportKind int

const (
	ReportGatewayRegistration ReportKind = iota + 1
	ReportGatewayHealth
	ReportBeaconRegistration
	ReportBeaconHealth
	ReportTracking
)

// String renders a report kind for metric labels and log fields.
func (k ReportKind) String() string {
	switch k {
	case ReportGatewayRegistration:
		return "gateway_registration"
	case ReportGatewayHealth:
		return "gateway_health"
	case ReportBeaconRegistration:
		return "beacon_registration"
	case ReportBeaconHealth:
		return "beacon_health"
	case ReportTracking:
		return "tracking"
	default:
		return "unknown"
	}
}

// GatewayReport carries a gateway registration or health envelope.
type GatewayReport struct {
	Kind   ReportKind
	IP     string
	Health int // only set for ReportGatewayHealth
}

// BeaconReport carries a beacon registration or health envelope.
type BeaconReport struct {
	Kind      ReportKind
	UUID      string
	IP        string
	GatewayIP string
	Health    int // only set for ReportBeaconHealth
}

// TrackingRecord is one object sub-record within a tracking envelope.
type TrackingRecord struct {
	MAC       string
	InitialTS time.Time
	FinalTS   time.Time
	RSSI      int
	Panic     bool
	BatteryMV int
}

// TrackingReport is a parsed tracking envelope: one beacon's observations
// of zero or more objects, possibly spanning multiple object_type blocks
// concatenated per §4.C ("records for multiple object_type blocks ...
// are concatenated").
type TrackingReport struct {
	BeaconUUID string
	GatewayIP  string
	Records    []TrackingRecord
}

// Envelope is the union of every parsed report variant; exactly one of
// Gateway, Beacon, Tracking is non-nil.
type Envelope struct {
	Gateway  *GatewayReport
	Beacon   *BeaconReport
	Tracking *TrackingReport
}

// Kind reports which variant this envelope carries, for metrics/logging.
func (e Envelope) Kind() ReportKind {
	switch {
	case e.Gateway != nil:
		return e.Gateway.Kind
	case e.Beacon != nil:
		return e.Beacon.Kind
	case e.Tracking != nil:
		return ReportTracking
	default:
		return 0
	}
}

const fieldDelimiter = ";"

// ParseEnvelope decodes one UDP datagram payload into an Envelope. Any
// malformation — wrong field count, non-numeric field where a number is
// expected — returns domain.ErrAPIProtocol, matching §4.F's "on any
// parser failure the function returns E_API_PROTOCOL_FORMAT and emits
// nothing."
func ParseEnvelope(payload string) (Envelope, error) {
	fields := strings.Split(strings.TrimRight(payload, fieldDelimiter), fieldDelimiter)
	if len(fields) == 0 || fields[0] == "" {
		return Envelope{}, domain.Wrap(domain.ErrAPIProtocol, nil)
	}

	kindNum, err := strconv.Atoi(fields[0])
	if err != nil {
		return Envelope{}, domain.Wrap(domain.ErrAPIProtocol, err)
	}

	switch ReportKind(kindNum) {
	case ReportGatewayRegistration:
		return parseGatewayRegistration(fields)
	case ReportGatewayHealth:
		return parseGatewayHealth(fields)
	case ReportBeaconRegistration:
		return parseBeaconRegistration(fields)
	case ReportBeaconHealth:
		return parseBeaconHealth(fields)
	case ReportTracking:
		return parseTracking(fields)
	default:
		return Envelope{}, domain.Wrap(domain.ErrAPIProtocol, nil)
	}
}

func parseGatewayRegistration(fields []string) (Envelope, error) {
	if len(fields) < 2 || fields[1] == "" {
		return Envelope{}, domain.Wrap(domain.ErrAPIProtocol, nil)
	}
	return Envelope{Gateway: &GatewayReport{Kind: ReportGatewayRegistration, IP: fields[1]}}, nil
}

func parseGatewayHealth(fields []string) (Envelope, error) {
	if len(fields) < 3 {
		return Envelope{}, domain.Wrap(domain.ErrAPIProtocol, nil)
	}
	health, err := strconv.Atoi(fields[2])
	if err != nil {
		return Envelope{}, domain.Wrap(domain.ErrAPIProtocol, err)
	}
	return Envelope{Gateway: &GatewayReport{Kind: ReportGatewayHealth, IP: fields[1], Health: health}}, nil
}

func parseBeaconRegistration(fields []string) (Envelope, error) {
	if len(fields) < 4 {
		return Envelope{}, domain.Wrap(domain.ErrAPIProtocol, nil)
	}
	return Envelope{Beacon: &BeaconReport{
		Kind:      ReportBeaconRegistration,
		UUID:      fields[1],
		IP:        fields[2],
		GatewayIP: fields[3],
	}}, nil
}

func parseBeaconHealth(fields []string) (Envelope, error) {
	if len(fields) < 4 {
		return Envelope{}, domain.Wrap(domain.ErrAPIProtocol, nil)
	}
	health, err := strconv.Atoi(fields[2])
	if err != nil {
		return Envelope{}, domain.Wrap(domain.ErrAPIProtocol, err)
	}
	return Envelope{Beacon: &BeaconReport{
		Kind:      ReportBeaconHealth,
		UUID:      fields[1],
		Health:    health,
		GatewayIP: fields[3],
	}}, nil
}

// recordFieldCount is the number of fields in one tracking sub-record:
// mac;init_ts;final_ts;rssi;panic;battery_mV.
const recordFieldCount = 6

// trackingHeaderFields is beacon_uuid;gateway_ip;object_type;n_objects.
const trackingHeaderFields = 4

func parseTracking(fields []string) (Envelope, error) {
	rest := fields[1:]
	report := &TrackingReport{}

	for len(rest) > 0 {
		if len(rest) < trackingHeaderFields {
			return Envelope{}, domain.Wrap(domain.ErrAPIProtocol, nil)
		}
		beaconUUID, gatewayIP := rest[0], rest[1]
		// object_type (rest[2]) distinguishes BR_EDR/BLE blocks but every
		// record shares the same shape, so it is validated, not branched on.
		if _, err := strconv.Atoi(rest[2]); err != nil {
			return Envelope{}, domain.Wrap(domain.ErrAPIProtocol, err)
		}
		nObjects, err := strconv.Atoi(rest[3])
		if err != nil {
			return Envelope{}, domain.Wrap(domain.ErrAPIProtocol, err)
		}
		rest = rest[trackingHeaderFields:]

		if report.BeaconUUID == "" {
			report.BeaconUUID = beaconUUID
			report.GatewayIP = gatewayIP
		}

		for i := 0; i < nObjects; i++ {
			if len(rest) < recordFieldCount {
				return Envelope{}, domain.Wrap(domain.ErrAPIProtocol, nil)
			}
			rec, err := parseTrackingRecord(rest[:recordFieldCount])
			if err != nil {
				return Envelope{}, err
			}
			report.Records = append(report.Records, rec)
			rest = rest[recordFieldCount:]
		}
	}

	if report.BeaconUUID == "" {
		return Envelope{}, domain.Wrap(domain.ErrAPIProtocol, nil)
	}
	return Envelope{Tracking: report}, nil
}

func parseTrackingRecord(f []string) (TrackingRecord, error) {
	initEpoch, err := strconv.ParseInt(f[1], 10, 64)
	if err != nil {
		return TrackingRecord{}, domain.Wrap(domain.ErrAPIProtocol, err)
	}
	finalEpoch, err := strconv.ParseInt(f[2], 10, 64)
	if err != nil {
		return TrackingRecord{}, domain.Wrap(domain.ErrAPIProtocol, err)
	}
	rssi, err := strconv.Atoi(f[3])
	if err != nil {
		return TrackingRecord{}, domain.Wrap(domain.ErrAPIProtocol, err)
	}
	panicFlag, err := strconv.Atoi(f[4])
	if err != nil {
		return TrackingRecord{}, domain.Wrap(domain.ErrAPIProtocol, err)
	}
	battery, err := strconv.Atoi(f[5])
	if err != nil {
		return TrackingRecord{}, domain.Wrap(domain.ErrAPIProtocol, err)
	}

	return TrackingRecord{
		MAC:       domain.CanonicalMAC(f[0]),
		InitialTS: time.Unix(initEpoch, 0).UTC(),
		FinalTS:   time.Unix(finalEpoch, 0).UTC(),
		RSSI:      rssi,
		Panic:     panicFlag != 0,
		BatteryMV: battery,
	}, nil
}
