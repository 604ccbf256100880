package violation

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/beaconsentry/engine/internal/domain"
	"github.com/stretchr/testify/assert"
)

type fakeRules struct {
	mu sync.Mutex

	geoFenceCalled bool
	notStayCalled  bool
	longStayCalled bool
	movementCalled bool

	longStayCfgs []domain.LocationLongStayInDangerConfig
	movementCfgs []domain.MovementConfig

	geoFenceErr error
}

func (f *fakeRules) ReloadGeoFenceRules(ctx context.Context, localOffset time.Duration) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.geoFenceCalled = true
	return f.geoFenceErr
}

func (f *fakeRules) ReloadLocationNotStayRules(ctx context.Context, localOffset time.Duration) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.notStayCalled = true
	return nil
}

func (f *fakeRules) ReloadLongStayRules(ctx context.Context, localOffset time.Duration) ([]domain.LocationLongStayInDangerConfig, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.longStayCalled = true
	return f.longStayCfgs, nil
}

func (f *fakeRules) ReloadMovementRules(ctx context.Context, localOffset time.Duration) ([]domain.MovementConfig, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.movementCalled = true
	return f.movementCfgs, nil
}

type fakeViolations struct {
	mu sync.Mutex

	wrongRoomCalled bool
	longStayInput   []domain.LocationLongStayInDangerConfig
	movementInput   []domain.MovementConfig
	materialized    map[domain.MonitorType]int
	notifications   map[domain.MonitorType][]domain.Notification
}

func (f *fakeViolations) StampWrongRoomViolations(ctx context.Context) (int64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.wrongRoomCalled = true
	return 1, nil
}

func (f *fakeViolations) StampLongStayViolations(ctx context.Context, cfgs []domain.LocationLongStayInDangerConfig) (int64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.longStayInput = cfgs
	return 1, nil
}

func (f *fakeViolations) StampMovementViolations(ctx context.Context, cfgs []domain.MovementConfig) (int64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.movementInput = cfgs
	return 1, nil
}

func (f *fakeViolations) MaterializeNotifications(ctx context.Context, monitor domain.MonitorType, lookback, dedupWindow time.Duration) ([]domain.Notification, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.materialized[monitor]++
	rows := f.notifications[monitor]
	if rows == nil {
		rows = []domain.Notification{{MonitorType: monitor, MAC: "aabbccddeeff"}}
	}
	return rows, nil
}

type fakeFences struct {
	mu       sync.Mutex
	called   bool
	reloaded int
	err      error
}

func (f *fakeFences) Reload(ctx context.Context) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.called = true
	f.reloaded++
	return f.err
}

type fakeBroadcaster struct {
	mu            sync.Mutex
	notifications []domain.Notification
}

func (f *fakeBroadcaster) Broadcast(n domain.Notification) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.notifications = append(f.notifications, n)
}

func newTestIdentifier() (*Identifier, *fakeRules, *fakeViolations, *fakeFences, *fakeBroadcaster) {
	rules := &fakeRules{
		longStayCfgs: []domain.LocationLongStayInDangerConfig{{ID: 1, IsActive: true}},
		movementCfgs: []domain.MovementConfig{{ID: 2, IsActive: true}},
	}
	vio := &fakeViolations{materialized: make(map[domain.MonitorType]int)}
	fences := &fakeFences{}
	hub := &fakeBroadcaster{}
	cfg := Config{LocalOffset: 0, Lookback: time.Minute, DedupWindow: 30 * time.Second}
	log := slog.New(slog.NewTextHandler(io.Discard, nil))
	return New(rules, vio, fences, hub, cfg, log), rules, vio, fences, hub
}

func TestRun_ReloadsAllFourRuleTablesAndStampsAll(t *testing.T) {
	id, rules, vio, _, _ := newTestIdentifier()
	id.Run(context.Background())

	assert.True(t, rules.geoFenceCalled)
	assert.True(t, rules.notStayCalled)
	assert.True(t, rules.longStayCalled)
	assert.True(t, rules.movementCalled)
	assert.True(t, vio.wrongRoomCalled)
	assert.Equal(t, rules.longStayCfgs, vio.longStayInput)
	assert.Equal(t, rules.movementCfgs, vio.movementInput)
}

func TestRun_MaterializesNotificationsForAllFourMonitorTypes(t *testing.T) {
	id, _, vio, _, _ := newTestIdentifier()
	id.Run(context.Background())

	assert.Equal(t, 1, vio.materialized[domain.MonitorGeoFence])
	assert.Equal(t, 1, vio.materialized[domain.MonitorPanic])
	assert.Equal(t, 1, vio.materialized[domain.MonitorMovement])
	assert.Equal(t, 1, vio.materialized[domain.MonitorLocation])
}

func TestRun_BroadcastsEachMaterializedNotification(t *testing.T) {
	id, _, _, _, hub := newTestIdentifier()
	id.Run(context.Background())

	// One monitor_type's worth of rows is broadcast per the four monitor
	// types walked each pass.
	assert.Len(t, hub.notifications, 4)
}

func TestRun_ReloadsGeoFenceEvaluatorEveryPass(t *testing.T) {
	id, _, _, fences, _ := newTestIdentifier()
	id.Run(context.Background())
	id.Run(context.Background())

	assert.True(t, fences.called)
	assert.Equal(t, 2, fences.reloaded)
}

func TestRun_ContinuesPastRuleReloadFailure(t *testing.T) {
	id, rules, vio, _, _ := newTestIdentifier()
	rules.geoFenceErr = errors.New("db unavailable")

	id.Run(context.Background())

	assert.True(t, rules.notStayCalled, "a failed geo-fence reload must not block the other rule reloads")
	assert.True(t, vio.wrongRoomCalled)
}

func TestRun_ContinuesPastFenceReloadFailure(t *testing.T) {
	id, rules, vio, fences, _ := newTestIdentifier()
	fences.err = errors.New("db unavailable")

	id.Run(context.Background())

	assert.True(t, rules.geoFenceCalled, "a failed evaluator reload must not block the rule-table reloads")
	assert.True(t, vio.wrongRoomCalled)
}

func TestStart_StopsOnContextCancel(t *testing.T) {
	id, rules, _, _, _ := newTestIdentifier()
	ctx, cancel := context.WithCancel(context.Background())

	id.Start(ctx, 5*time.Millisecond)
	assert.Eventually(t, func() bool {
		rules.mu.Lock()
		defer rules.mu.Unlock()
		return rules.geoFenceCalled
	}, time.Second, time.Millisecond)

	cancel()
	time.Sleep(20 * time.Millisecond)
}
