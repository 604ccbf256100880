package retention

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

type fakeStore struct {
	mu sync.Mutex

	deleteCalled bool
	deleteErr    error
	deleteWindow time.Duration

	dropCalled bool
	dropErr    error

	vacuumCalled bool
	vacuumResult map[string]error
}

func (f *fakeStore) DeleteOldNotifications(ctx context.Context, olderThan time.Duration) (int64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.deleteCalled = true
	f.deleteWindow = olderThan
	return 5, f.deleteErr
}

func (f *fakeStore) DropTrackingChunks(ctx context.Context, olderThan time.Duration) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.dropCalled = true
	return f.dropErr
}

func (f *fakeStore) VacuumAll(ctx context.Context) map[string]error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.vacuumCalled = true
	return f.vacuumResult
}

func newTestRetention() (*Retention, *fakeStore) {
	store := &fakeStore{vacuumResult: map[string]error{"gateway_table": nil}}
	cfg := Config{RetentionAge: 72 * time.Hour}
	log := slog.New(slog.NewTextHandler(io.Discard, nil))
	return New(store, cfg, log), store
}

func TestRun_CallsAllThreeOperations(t *testing.T) {
	r, store := newTestRetention()
	r.Run(context.Background())

	assert.True(t, store.deleteCalled)
	assert.True(t, store.dropCalled)
	assert.True(t, store.vacuumCalled)
	assert.Equal(t, 72*time.Hour, store.deleteWindow)
}

func TestRun_VacuumFailureForOneTableDoesNotAbortOthers(t *testing.T) {
	r, store := newTestRetention()
	store.vacuumResult = map[string]error{
		"gateway_table": errors.New("lock timeout"),
		"object_table":  nil,
	}
	assert.NotPanics(t, func() { r.Run(context.Background()) })
}

func TestRun_DeleteFailureDoesNotPreventDropOrVacuum(t *testing.T) {
	r, store := newTestRetention()
	store.deleteErr = errors.New("db unavailable")

	r.Run(context.Background())

	assert.True(t, store.dropCalled)
	assert.True(t, store.vacuumCalled)
}

func TestStart_StopsOnContextCancel(t *testing.T) {
	r, store := newTestRetention()
	ctx, cancel := context.WithCancel(context.Background())

	r.Start(ctx, 5*time.Millisecond)
	assert.Eventually(t, func() bool {
		store.mu.Lock()
		defer store.mu.Unlock()
		return store.deleteCalled
	}, time.Second, time.Millisecond)

	cancel()
	time.Sleep(20 * time.Millisecond)
}
