package dbpool

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/beaconsentry/engine/internal/domain"
	"github.com/stretchr/testify/assert"
)

// newTestPool builds a pool over placeholder slots without dialing a real
// database, mirroring the way the corpus swaps out hardware/network
// dependencies in unit tests (e.g. a mocked channel setter) rather than
// exercising a real driver.
func newTestPool(n int) *Pool {
	p := &Pool{retries: 3, backoff: time.Millisecond}
	for i := 0; i < n; i++ {
		p.slots = append(p.slots, &slot{serial: i})
	}
	return p
}

func TestPool_AcquireRelease_Invariant(t *testing.T) {
	p := newTestPool(3)

	_, s0, err := p.Acquire(context.Background())
	assert.NoError(t, err)
	_, s1, err := p.Acquire(context.Background())
	assert.NoError(t, err)

	inUse, free, size := p.Stats()
	assert.Equal(t, 2, inUse)
	assert.Equal(t, 1, free)
	assert.Equal(t, 3, size)
	assert.Equal(t, size, inUse+free)

	p.Release(s0)
	p.Release(s1)

	inUse, free, size = p.Stats()
	assert.Equal(t, 0, inUse)
	assert.Equal(t, 3, free)
	assert.Equal(t, size, inUse+free)
}

func TestPool_Acquire_ExhaustedReturnsNoConnection(t *testing.T) {
	p := newTestPool(1)

	_, _, err := p.Acquire(context.Background())
	assert.NoError(t, err)

	_, _, err = p.Acquire(context.Background())
	assert.Error(t, err)
	assert.True(t, domain.Is(err, domain.ErrNoConnection))
}

func TestPool_Acquire_RetriesUntilReleased(t *testing.T) {
	p := newTestPool(1)
	_, serial, err := p.Acquire(context.Background())
	assert.NoError(t, err)

	go func() {
		time.Sleep(5 * time.Millisecond)
		p.Release(serial)
	}()

	p.retries = 50
	_, _, err = p.Acquire(context.Background())
	assert.NoError(t, err)
}

func TestPool_ConcurrentAcquireRelease_NeverDoubleAssigns(t *testing.T) {
	p := newTestPool(4)
	p.retries = 200

	var wg sync.WaitGroup
	var held sync.Map
	var doubled atomic.Bool
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, serial, err := p.Acquire(context.Background())
			if err != nil {
				return
			}
			if _, loaded := held.LoadOrStore(serial, struct{}{}); loaded {
				doubled.Store(true)
			}
			time.Sleep(time.Millisecond)
			held.Delete(serial)
			p.Release(serial)
		}()
	}
	wg.Wait()

	assert.False(t, doubled.Load(), "a serial was held by two goroutines at once")
	inUse, free, size := p.Stats()
	assert.Equal(t, 0, inUse)
	assert.Equal(t, size, free)
}
