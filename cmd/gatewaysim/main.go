// Command gatewaysim is a standalone UDP traffic generator that emits
// synthetic registration, health, and tracking envelopes in the wire
// format internal/adapters/receiver.ParseEnvelope understands, for
// exercising the ingestion pipeline without real gateway hardware. It
// is grounded on the teacher's internal/mock.DataGenerator: a
// precomputed population whose telemetry is random-walked tick over
// tick instead of reinvented each send.
package main

import (
	"flag"
	"fmt"
	"log"
	"net"
	"strconv"
	"strings"
	"time"
)

const objectTypeBLE = 1

func main() {
	addr := flag.String("addr", "127.0.0.1:9000", "engine UDP ingestion address")
	gatewayIP := flag.String("gateway-ip", "10.0.0.50", "synthetic gateway IP reported in envelopes")
	numBeacons := flag.Int("beacons", 4, "number of simulated lbeacons")
	objectsPerBeacon := flag.Int("objects", 5, "number of tracked objects per beacon")
	interval := flag.Duration("interval", 2*time.Second, "tick interval between tracking reports")
	seed := flag.Int64("seed", time.Now().UnixNano(), "random seed")
	flag.Parse()

	conn, err := net.Dial("udp", *addr)
	if err != nil {
		log.Fatalf("dial %s: %v", *addr, err)
	}
	defer conn.Close()

	gen := newGenerator(*seed, *numBeacons, *objectsPerBeacon)

	send(conn, fmt.Sprintf("1;%s;", *gatewayIP))
	for _, beacon := range gen.beacons {
		send(conn, fmt.Sprintf("3;%s;%s;%s;", beacon.uuid, beaconIP(beacon.uuid), *gatewayIP))
	}

	ticker := time.NewTicker(*interval)
	defer ticker.Stop()

	log.Printf("gatewaysim: emitting %d beacons x %d objects to %s every %s",
		*numBeacons, *objectsPerBeacon, *addr, *interval)

	for range ticker.C {
		gen.tick()

		send(conn, fmt.Sprintf("2;%s;%d;", *gatewayIP, 100))
		for _, beacon := range gen.beacons {
			send(conn, fmt.Sprintf("4;%s;%d;%s;", beacon.uuid, 100, *gatewayIP))
			send(conn, trackingEnvelope(beacon, *gatewayIP))
		}
	}
}

// beaconIP derives a stable synthetic IP from a beacon UUID so repeated
// registrations are idempotent on the engine side.
func beaconIP(uuid string) string {
	sum := 0
	for _, c := range uuid {
		sum += int(c)
	}
	return fmt.Sprintf("10.0.1.%d", sum%254+1)
}

func trackingEnvelope(beacon *simBeacon, gatewayIP string) string {
	var b strings.Builder
	b.WriteString("5;")
	b.WriteString(beacon.uuid)
	b.WriteString(";")
	b.WriteString(gatewayIP)
	b.WriteString(";")
	b.WriteString(strconv.Itoa(objectTypeBLE))
	b.WriteString(";")
	b.WriteString(strconv.Itoa(len(beacon.objects)))
	b.WriteString(";")

	now := time.Now().Unix()
	for _, obj := range beacon.objects {
		panicBit := 0
		if obj.panicFlag {
			panicBit = 1
		}
		fmt.Fprintf(&b, "%s;%d;%d;%d;%d;%d;", obj.mac, now-1, now, obj.rssi, panicBit, obj.battery)
	}
	return b.String()
}

func send(conn net.Conn, payload string) {
	if _, err := conn.Write([]byte(payload)); err != nil {
		log.Printf("send error: %v", err)
	}
}
