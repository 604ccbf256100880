// Package geofence implements the in-memory geo-fence RSSI evaluator of
// spec §4.E. The source's process_geo_fence_routine ships with empty
// filtering/state-update branches (Design Note 9); this package codifies
// the intended per-(MAC,UUID) RSSI windowing, threshold check, and
// violation-stamp invocation as the contract.
package geofence

import (
	"context"
	"encoding/csv"
	"os"
	"sync"
	"time"

	"github.com/beaconsentry/engine/internal/domain"
)

// ruleLoader and violationStamper are narrow views over ports.RuleRepository
// and ports.ViolationRepository — the only two operations this package
// needs — so tests can stub them without implementing the full storage
// surface.
type ruleLoader interface {
	LoadGeoFenceConfig(ctx context.Context) (byUUID map[string]domain.GeoFenceConfig, monitoredByArea map[string][]string, err error)
}

type violationStamper interface {
	StampGeoFenceViolation(ctx context.Context, mac string) error
}

// FenceDef is one beacon's geo-fence definition, keyed by beacon UUID.
// Perimeters/Fences are not filled in by Reload and are not consulted by
// this engine's RSSI-threshold evaluation, which only needs AreaID for
// the monitored-MAC lookup.
type FenceDef struct {
	AreaID     string
	ID         int64
	Name       string
	Perimeters []byte
	Fences     []byte
}

const defaultRollingWindow = 8

// uuidWindow is the per-(MAC,UUID) rolling RSSI state.
type uuidWindow struct {
	samples    []int
	dwellStart time.Time // zero until the first qualifying sighting of the current dwell window
}

type macState struct {
	perUUID map[string]*uuidWindow
}

// Evaluator maintains fences_by_uuid and monitored_by_area, refreshed on
// Reload, plus per-MAC rolling RSSI state.
type Evaluator struct {
	mu sync.RWMutex

	fencesByUUID    map[string]FenceDef
	monitoredByArea map[string]map[string]struct{} // areaID -> set of object MAC

	macStates map[string]*macState

	decisionThreshold int           // dBm; sighting qualifies when RSSI >= this
	dwellWindow       time.Duration // first qualifying sighting per dwell window triggers the stamp
	rollingWindow     int           // samples retained per (mac,uuid)

	rules ruleLoader
	vio   violationStamper
}

// New constructs an evaluator. decisionThreshold and dwellWindow come
// from engine configuration (§6: decision_threshold,
// granularity_for_continuous_violations_in_sec used as the dwell window;
// there is no separate dwell parameter).
func New(rules ruleLoader, vio violationStamper, decisionThreshold int, dwellWindow time.Duration) *Evaluator {
	return &Evaluator{
		fencesByUUID:      make(map[string]FenceDef),
		monitoredByArea:   make(map[string]map[string]struct{}),
		macStates:         make(map[string]*macState),
		decisionThreshold: decisionThreshold,
		dwellWindow:       dwellWindow,
		rollingWindow:     defaultRollingWindow,
		rules:             rules,
		vio:               vio,
	}
}

// Reload rebuilds fences_by_uuid and monitored_by_area from the rule
// repository and GC's per-MAC state for MACs no longer monitored.
func (e *Evaluator) Reload(ctx context.Context) error {
	byUUID, monitoredByArea, err := e.rules.LoadGeoFenceConfig(ctx)
	if err != nil {
		return err
	}

	fences := make(map[string]FenceDef, len(byUUID))
	for uuid, cfg := range byUUID {
		fences[uuid] = FenceDef{AreaID: cfg.AreaID, ID: cfg.ID, Name: cfg.Name}
	}

	monitored := make(map[string]map[string]struct{}, len(monitoredByArea))
	allMonitored := make(map[string]struct{})
	for area, macs := range monitoredByArea {
		set := make(map[string]struct{}, len(macs))
		for _, mac := range macs {
			set[mac] = struct{}{}
			allMonitored[mac] = struct{}{}
		}
		monitored[area] = set
	}

	e.mu.Lock()
	defer e.mu.Unlock()
	e.fencesByUUID = fences
	e.monitoredByArea = monitored
	for mac := range e.macStates {
		if _, ok := allMonitored[mac]; !ok {
			delete(e.macStates, mac)
		}
	}
	return nil
}

// Evaluate runs one sighting through the geo-fence filter. It is the
// contract spelled out in Design Note 9 for the source's incomplete
// process_geo_fence_routine:
//  1. not a fence beacon -> return
//  2. MAC not monitored for GEO_FENCE in this area -> return
//  3. maintain the rolling RSSI window
//  4. qualifying sighting (RSSI >= decision_threshold) that is the first
//     in its dwell window -> stamp the violation
func (e *Evaluator) Evaluate(ctx context.Context, s domain.Sighting) error {
	e.mu.Lock()
	fence, isFenceBeacon := e.fencesByUUID[s.BeaconUUID]
	if !isFenceBeacon {
		e.mu.Unlock()
		return nil
	}
	monitored := e.monitoredByArea[fence.AreaID]
	if _, ok := monitored[s.ObjectMAC]; !ok {
		e.mu.Unlock()
		return nil
	}

	ms, ok := e.macStates[s.ObjectMAC]
	if !ok {
		ms = &macState{perUUID: make(map[string]*uuidWindow)}
		e.macStates[s.ObjectMAC] = ms
	}
	uw, ok := ms.perUUID[s.BeaconUUID]
	if !ok {
		uw = &uuidWindow{}
		ms.perUUID[s.BeaconUUID] = uw
	}

	uw.samples = append(uw.samples, s.RSSI)
	if len(uw.samples) > e.rollingWindow {
		uw.samples = uw.samples[len(uw.samples)-e.rollingWindow:]
	}

	qualifies := s.RSSI >= e.decisionThreshold
	var shouldStamp bool
	if qualifies {
		now := s.FinalTS
		if uw.dwellStart.IsZero() || now.Sub(uw.dwellStart) > e.dwellWindow {
			uw.dwellStart = now
			shouldStamp = true
		}
	}
	e.mu.Unlock()

	if !shouldStamp {
		return nil
	}
	return e.vio.StampGeoFenceViolation(ctx, s.ObjectMAC)
}

// DumpFences writes the current fence-by-UUID map as a ';'-delimited CSV
// to path, for external consumers per §6.
func (e *Evaluator) DumpFences(path string) error {
	e.mu.RLock()
	defer e.mu.RUnlock()

	f, err := os.Create(path)
	if err != nil {
		return err
	}
	defer f.Close()

	w := csv.NewWriter(f)
	w.Comma = ';'
	defer w.Flush()

	for uuid, fence := range e.fencesByUUID {
		if err := w.Write([]string{uuid, fence.AreaID, fence.Name}); err != nil {
			return err
		}
	}
	return w.Error()
}

// DumpMonitoredMACs writes the area -> monitored-MAC set as a
// ';'-delimited CSV to path, for external consumers per §6.
func (e *Evaluator) DumpMonitoredMACs(path string) error {
	e.mu.RLock()
	defer e.mu.RUnlock()

	f, err := os.Create(path)
	if err != nil {
		return err
	}
	defer f.Close()

	w := csv.NewWriter(f)
	w.Comma = ';'
	defer w.Flush()

	for area, macs := range e.monitoredByArea {
		for mac := range macs {
			if err := w.Write([]string{area, mac}); err != nil {
				return err
			}
		}
	}
	return w.Error()
}
