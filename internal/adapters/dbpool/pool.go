// Package dbpool implements the fixed-size database connection pool of
// spec §4.A as an ordinary mutex-guarded slice rather than the source's
// intrusive linked list (Design Note 9). Each slot carries a serial id
// and an in-use flag; acquire() scans the slice under one pool-wide
// mutex and retries with backoff up to a bounded count before failing.
//
// The pool deliberately does not reconnect on failure: a connection
// lost mid-use surfaces as a SQL error to its holder on next use, and
// is returned to the pool as-is on Release. Reconnection is out of
// scope for this layer.
package dbpool

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/beaconsentry/engine/internal/domain"
	"github.com/beaconsentry/engine/internal/telemetry"
	"github.com/jackc/pgx/v5"
)

const (
	defaultAcquireRetries = 20
	defaultAcquireBackoff = 10 * time.Millisecond
)

type slot struct {
	conn   *pgx.Conn
	inUse  bool
	serial int
}

// Pool is a fixed-size pool of live *pgx.Conn sessions.
type Pool struct {
	mu    sync.Mutex
	slots []*slot

	retries int
	backoff time.Duration
}

// Open dials size connections to dsn and returns a pool over them. If any
// dial fails, already-opened connections are closed before returning the
// error.
func Open(ctx context.Context, dsn string, size int) (*Pool, error) {
	if size <= 0 {
		return nil, domain.Wrap(domain.ErrInputParameter, fmt.Errorf("pool size must be positive, got %d", size))
	}

	p := &Pool{
		retries: defaultAcquireRetries,
		backoff: defaultAcquireBackoff,
	}
	for i := 0; i < size; i++ {
		conn, err := pgx.Connect(ctx, dsn)
		if err != nil {
			p.closeAll()
			return nil, domain.Wrap(domain.ErrSQLOpen, err)
		}
		p.slots = append(p.slots, &slot{conn: conn, serial: i})
	}
	return p, nil
}

// Acquire scans for a free slot under the pool mutex. On contention it
// releases the mutex and retries after a short backoff, up to a bounded
// retry count, before giving up with domain.ErrNoConnection.
func (p *Pool) Acquire(ctx context.Context) (*pgx.Conn, int, error) {
	for attempt := 0; attempt <= p.retries; attempt++ {
		p.mu.Lock()
		for _, s := range p.slots {
			if !s.inUse {
				s.inUse = true
				p.mu.Unlock()
				telemetry.DBPoolInUse.Inc()
				return s.conn, s.serial, nil
			}
		}
		p.mu.Unlock()

		if attempt == p.retries {
			break
		}
		select {
		case <-ctx.Done():
			return nil, -1, ctx.Err()
		case <-time.After(p.backoff):
		}
	}
	return nil, -1, domain.Wrap(domain.ErrNoConnection, fmt.Errorf("no free connection after %d attempts", p.retries+1))
}

// Release clears the in-use flag for serialID. Releasing an id that is
// not currently in use, or that doesn't exist, is a no-op.
func (p *Pool) Release(serialID int) {
	p.mu.Lock()
	defer p.mu.Unlock()
	for _, s := range p.slots {
		if s.serial == serialID {
			if s.inUse {
				telemetry.DBPoolInUse.Dec()
			}
			s.inUse = false
			return
		}
	}
}

// Stats reports the quiescent invariant InUse + Free == Size.
func (p *Pool) Stats() (inUse, free, size int) {
	p.mu.Lock()
	defer p.mu.Unlock()
	size = len(p.slots)
	for _, s := range p.slots {
		if s.inUse {
			inUse++
		}
	}
	free = size - inUse
	return inUse, free, size
}

// Destroy closes every connection and frees the pool. Not safe to call
// concurrently with Acquire/Release.
func (p *Pool) Destroy() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.closeAll()
}

func (p *Pool) closeAll() error {
	var firstErr error
	for _, s := range p.slots {
		if s.conn == nil {
			continue
		}
		if err := s.conn.Close(context.Background()); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	p.slots = nil
	return firstErr
}
