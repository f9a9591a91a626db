package mining

import (
	"sync/atomic"
)

// NonceAllocator hands out disjoint, monotonically increasing nonce batches
// to concurrent workers via a single fetch-and-add counter. It is the only
// point of contention on the mining hot path and is lock-free.
//
// The counter wraps at the uint64 maximum. At realistic hash rates the wrap
// is unreachable within a job's lifetime, so overlapping batches after a
// wrap are accepted.
type NonceAllocator struct {
	next atomic.Uint64
}

// NewNonceAllocator creates an allocator starting at nonce zero.
func NewNonceAllocator() *NonceAllocator {
	return &NonceAllocator{}
}

// Claim atomically reserves a contiguous batch of size nonces and returns
// its start. The caller owns [start, start+size).
func (a *NonceAllocator) Claim(size uint64) uint64 {
	return a.next.Add(size) - size
}

// Reset returns the counter to zero. Called on every job replacement so the
// full nonce space becomes available for the new job epoch.
func (a *NonceAllocator) Reset() {
	a.next.Store(0)
}

// Position returns the next unclaimed nonce. Diagnostic only; by the time
// the caller looks at it another worker may have claimed past it.
func (a *NonceAllocator) Position() uint64 {
	return a.next.Load()
}
