package main

import (
	"fmt"
	"math/rand"
)

// simObject is one tracked tag the simulator emits tracking records for,
// styled after the teacher's mock.DataGenerator tracked-device records
// but carrying RSSI, battery and panic state instead of WiFi frame counters.
type simObject struct {
	mac       string
	rssi      int
	battery   int
	panicFlag bool
}

// simBeacon is one simulated lbeacon gateway connects to, tracking a
// pool of objects whose RSSI the simulator random-walks each tick.
type simBeacon struct {
	uuid    string
	objects []*simObject
}

// generator produces randomized gateway/beacon/object identities and
// random-walks their tracking telemetry, mirroring the teacher's
// mock.DataGenerator approach of precomputing a device population once
// and mutating it tick over tick rather than inventing fresh identities
// every call.
type generator struct {
	rnd     *rand.Rand
	beacons []*simBeacon
}

func newGenerator(seed int64, numBeacons, objectsPerBeacon int) *generator {
	g := &generator{rnd: rand.New(rand.NewSource(seed))}
	for b := 0; b < numBeacons; b++ {
		beacon := &simBeacon{uuid: g.randomUUID()}
		for o := 0; o < objectsPerBeacon; o++ {
			beacon.objects = append(beacon.objects, &simObject{
				mac:     g.randomMAC(),
				rssi:    -50 - g.rnd.Intn(40),
				battery: 2800 + g.rnd.Intn(600),
			})
		}
		g.beacons = append(g.beacons, beacon)
	}
	return g
}

func (g *generator) randomMAC() string {
	return fmt.Sprintf("%02X%02X%02X%02X%02X%02X",
		g.rnd.Intn(256), g.rnd.Intn(256), g.rnd.Intn(256),
		g.rnd.Intn(256), g.rnd.Intn(256), g.rnd.Intn(256))
}

// randomUUID builds a 36-character beacon UUID whose chars [12,20) and
// [24,32) hold random 8-digit decimal x/y coordinates, the layout
// domain.ParseUUIDCoordinates decodes.
func (g *generator) randomUUID() string {
	return fmt.Sprintf("%012d%08d%04d%08d%04d",
		g.rnd.Int63n(1e12), g.rnd.Intn(1e8), g.rnd.Intn(1e4),
		g.rnd.Intn(1e8), g.rnd.Intn(1e4))
}

// tick random-walks every object's RSSI by a small delta, occasionally
// drains its battery level, and redraws the panic flag (true with a
// small probability), simulating one interval of real beacon telemetry.
func (g *generator) tick() {
	for _, beacon := range g.beacons {
		for _, obj := range beacon.objects {
			obj.rssi += g.rnd.Intn(7) - 3
			if obj.rssi > -30 {
				obj.rssi = -30
			}
			if obj.rssi < -100 {
				obj.rssi = -100
			}
			if g.rnd.Float32() < 0.01 {
				obj.battery -= 1 + g.rnd.Intn(3)
			}
			obj.panicFlag = g.rnd.Float32() < 0.005
		}
	}
}
