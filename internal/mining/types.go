// Package mining implements the job-scheduling and worker-coordination core:
// an atomically replaceable current-job slot, a lock-free nonce allocator,
// and a pool of long-lived hashing workers feeding a share channel.
package mining

import (
	"github.com/bardlex/gomc/internal/algo"
)

// Job is a unit of work received from the pool or node. It is immutable once
// constructed; a new job fully replaces, never mutates, the previous one.
type Job struct {
	// ID is the opaque coordinator-assigned identifier correlating shares to jobs.
	ID string
	// Blob holds the raw header bytes to hash, excluding the nonce.
	Blob []byte
	// Target is compared against digests as an unsigned big-endian integer;
	// smaller means harder.
	Target []byte
	// Algorithm selects the proof-of-work algorithm for this job.
	Algorithm algo.Kind
}

// Share is a nonce whose digest satisfies a job's target.
type Share struct {
	// JobID is copied from the producing job. It may reference a job already
	// superseded by the time the share is submitted; the coordinator rejects
	// stale shares.
	JobID string
	// Nonce is the value that produced a passing digest.
	Nonce uint64
	// Result is the 32-byte digest.
	Result [32]byte
}

// ShareResult is the coordinator's verdict on a submitted share.
// Informational only; it never feeds back into scheduling.
type ShareResult int

const (
	// ShareAccepted means the coordinator accepted the share.
	ShareAccepted ShareResult = iota
	// ShareRejected means the coordinator rejected the share.
	ShareRejected
)

// String returns a human-readable verdict.
func (r ShareResult) String() string {
	if r == ShareAccepted {
		return "accepted"
	}
	return "rejected"
}
