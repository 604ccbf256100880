package ports

import "context"

// ConnPool is a fixed-size pool of long-lived database sessions. It does
// not reconnect on failure: connection loss surfaces as a SQL error on
// next use (per spec §4.A). Implementations must serialize acquire/release
// bookkeeping on a single mutex and must never hand out the same slot to
// two callers concurrently.
type ConnPool[T any] interface {
	// Acquire scans for a free slot under the pool's mutex, retrying with
	// backoff up to a bounded count. Returns domain.ErrNoConnection if no
	// slot became free in time.
	Acquire(ctx context.Context) (conn T, serialID int, err error)

	// Release clears the in-use flag for serialID, making the slot
	// available to the next Acquire.
	Release(serialID int)

	// Stats reports the pool's quiescent invariant: InUse + Free == Size.
	Stats() (inUse, free, size int)

	// Destroy walks the pool, closes every handle, and frees it. Destroy
	// is not safe to call concurrently with Acquire/Release.
	Destroy() error
}

// SlabPool is a bounded, thread-safe slab allocator for one fixed-size
// record type (component B). It exists to keep a hot path free of
// general-purpose allocator pressure: Alloc never grows the pool and
// never triggers a GC-visible allocation on the steady-state path.
type SlabPool[T any] interface {
	// Alloc returns a zeroed slot, or ok=false if the pool is exhausted.
	Alloc() (slot *T, ok bool)
	// Free returns a previously allocated slot to the pool.
	Free(slot *T)
	// Len reports the number of currently allocated (in-use) slots.
	Len() int
	// Cap reports the pool's fixed capacity (SLOTS_IN_MEM_POOL).
	Cap() int
}
