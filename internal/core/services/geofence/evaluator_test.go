package geofence

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/beaconsentry/engine/internal/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeRules struct {
	byUUID          map[string]domain.GeoFenceConfig
	monitoredByArea map[string][]string
}

func (f *fakeRules) LoadGeoFenceConfig(ctx context.Context) (map[string]domain.GeoFenceConfig, map[string][]string, error) {
	return f.byUUID, f.monitoredByArea, nil
}

type fakeViolations struct {
	mu     sync.Mutex
	stamps []string
}

func (f *fakeViolations) StampGeoFenceViolation(ctx context.Context, mac string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.stamps = append(f.stamps, mac)
	return nil
}

func (f *fakeViolations) count() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.stamps)
}

func newTestEvaluator(t *testing.T, threshold int, dwell time.Duration) (*Evaluator, *fakeViolations) {
	t.Helper()
	rules := &fakeRules{
		byUUID: map[string]domain.GeoFenceConfig{
			"fence-uuid-1": {AreaID: "area-1", ID: 1, Name: "Lobby"},
		},
		monitoredByArea: map[string][]string{
			"area-1": {"aabbccddeeff"},
		},
	}
	vio := &fakeViolations{}
	e := New(rules, vio, threshold, dwell)
	require.NoError(t, e.Reload(context.Background()))
	return e, vio
}

func sighting(uuid, mac string, rssi int, ts time.Time) domain.Sighting {
	return domain.Sighting{BeaconUUID: uuid, ObjectMAC: mac, RSSI: rssi, FinalTS: ts}
}

func TestEvaluate_NotAFenceBeacon_NoOp(t *testing.T) {
	e, vio := newTestEvaluator(t, -70, time.Minute)
	err := e.Evaluate(context.Background(), sighting("not-a-fence", "aabbccddeeff", -50, time.Now()))
	assert.NoError(t, err)
	assert.Equal(t, 0, vio.count())
}

func TestEvaluate_MACNotMonitored_NoOp(t *testing.T) {
	e, vio := newTestEvaluator(t, -70, time.Minute)
	err := e.Evaluate(context.Background(), sighting("fence-uuid-1", "000000000000", -50, time.Now()))
	assert.NoError(t, err)
	assert.Equal(t, 0, vio.count())
}

func TestEvaluate_BelowThreshold_NoOp(t *testing.T) {
	e, vio := newTestEvaluator(t, -70, time.Minute)
	err := e.Evaluate(context.Background(), sighting("fence-uuid-1", "aabbccddeeff", -90, time.Now()))
	assert.NoError(t, err)
	assert.Equal(t, 0, vio.count())
}

func TestEvaluate_FirstQualifyingSighting_Stamps(t *testing.T) {
	e, vio := newTestEvaluator(t, -70, time.Minute)
	now := time.Now()
	err := e.Evaluate(context.Background(), sighting("fence-uuid-1", "aabbccddeeff", -60, now))
	assert.NoError(t, err)
	assert.Equal(t, 1, vio.count())
}

func TestEvaluate_SubsequentWithinDwellWindow_DoesNotRestamp(t *testing.T) {
	e, vio := newTestEvaluator(t, -70, time.Minute)
	now := time.Now()
	require.NoError(t, e.Evaluate(context.Background(), sighting("fence-uuid-1", "aabbccddeeff", -60, now)))
	require.NoError(t, e.Evaluate(context.Background(), sighting("fence-uuid-1", "aabbccddeeff", -55, now.Add(10*time.Second))))
	assert.Equal(t, 1, vio.count())
}

func TestEvaluate_NewDwellWindow_StampsAgain(t *testing.T) {
	e, vio := newTestEvaluator(t, -70, 30*time.Second)
	now := time.Now()
	require.NoError(t, e.Evaluate(context.Background(), sighting("fence-uuid-1", "aabbccddeeff", -60, now)))
	require.NoError(t, e.Evaluate(context.Background(), sighting("fence-uuid-1", "aabbccddeeff", -55, now.Add(time.Minute))))
	assert.Equal(t, 2, vio.count())
}

func TestReload_GCsStateForUnmonitoredMACs(t *testing.T) {
	e, _ := newTestEvaluator(t, -70, time.Minute)
	now := time.Now()
	require.NoError(t, e.Evaluate(context.Background(), sighting("fence-uuid-1", "aabbccddeeff", -60, now)))
	assert.Len(t, e.macStates, 1)

	e.rules = &fakeRules{
		byUUID:          map[string]domain.GeoFenceConfig{"fence-uuid-1": {AreaID: "area-1"}},
		monitoredByArea: map[string][]string{"area-1": {}},
	}
	require.NoError(t, e.Reload(context.Background()))
	assert.Len(t, e.macStates, 0)
}
