package summarizer

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

	resetCalled bool
	resetErr    error

	stableCalled bool
	stableErr    error
	stableWindow time.Duration

	movingCalled bool
	movingErr    error

	baseCalled bool
	baseErr    error
}

func (f *fakeStore) ResetLocationUpdated(ctx context.Context) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.resetCalled = true
	return f.resetErr
}

func (f *fakeStore) ApplyStableTags(ctx context.Context, window time.Duration, tolerance int) (int64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.stableCalled = true
	f.stableWindow = window
	return 3, f.stableErr
}

func (f *fakeStore) ApplyMovingTags(ctx context.Context, window time.Duration) (int64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.movingCalled = true
	return 2, f.movingErr
}

func (f *fakeStore) ApplyBaseCoordinates(ctx context.Context, window time.Duration, toleranceMM int) (int64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.baseCalled = true
	return 1, f.baseErr
}

func newTestSummarizer() (*Summarizer, *fakeStore) {
	store := &fakeStore{}
	cfg := Config{
		PrefilterWindow:         30 * time.Second,
		RSSITolerance:           5,
		BaseLocationWindow:      60 * time.Second,
		BaseLocationToleranceMM: 500,
	}
	log := slog.New(slog.NewTextHandler(io.Discard, nil))
	return New(store, cfg, log), store
}

func TestRun_CallsAllFourStepsInOrder(t *testing.T) {
	s, store := newTestSummarizer()
	s.Run(context.Background())

	assert.True(t, store.resetCalled)
	assert.True(t, store.stableCalled)
	assert.True(t, store.movingCalled)
	assert.True(t, store.baseCalled)
	assert.Equal(t, 30*time.Second, store.stableWindow)
}

func TestRun_ContinuesAfterStepFailure(t *testing.T) {
	s, store := newTestSummarizer()
	store.stableErr = errors.New("db unavailable")

	s.Run(context.Background())

	assert.True(t, store.stableCalled)
	assert.True(t, store.movingCalled, "a failed ApplyStableTags must not prevent ApplyMovingTags from running")
	assert.True(t, store.baseCalled)
}

func TestStart_StopsOnContextCancel(t *testing.T) {
	s, store := newTestSummarizer()
	ctx, cancel := context.WithCancel(context.Background())

	s.Start(ctx, 5*time.Millisecond)
	assert.Eventually(t, func() bool {
		store.mu.Lock()
		defer store.mu.Unlock()
		return store.resetCalled
	}, time.Second, time.Millisecond)

	cancel()
	time.Sleep(20 * time.Millisecond)
}
