package mining

import (
	"sync/atomic"
	"time"

	"github.com/bardlex/gomc/internal/algo"
	"github.com/bardlex/gomc/pkg/errors"
	"github.com/bardlex/gomc/pkg/log"
)

// defaultIdleDelay bounds how long a worker sleeps when no job is installed.
const defaultIdleDelay = 100 * time.Millisecond

// NonceSource supplies nonce ranges to a worker. The two implementations
// cover the two invocation modes: self-service claims against the shared
// allocator, and a single externally assigned interval.
type NonceSource interface {
	// Next returns the next [start, end) range to hash, or ok=false when the
	// source is exhausted.
	Next() (start, end uint64, ok bool)
}

// AllocatorSource draws fixed-size batches from a shared NonceAllocator.
// It never exhausts.
type AllocatorSource struct {
	alloc *NonceAllocator
	batch uint64
}

// NewAllocatorSource creates a self-service source claiming batch nonces at a time.
func NewAllocatorSource(alloc *NonceAllocator, batch uint64) *AllocatorSource {
	return &AllocatorSource{alloc: alloc, batch: batch}
}

// Next claims the next batch. Batches are strictly disjoint and
// monotonically increasing across all workers sharing the allocator.
func (s *AllocatorSource) Next() (uint64, uint64, bool) {
	start := s.alloc.Claim(s.batch)
	return start, start + s.batch, true
}

// RangeSource yields one externally assigned [start, end) interval, then
// exhausts.
type RangeSource struct {
	start, end uint64
	done       bool
}

// NewRangeSource creates a one-shot source for the interval [start, end).
func NewRangeSource(start, end uint64) *RangeSource {
	return &RangeSource{start: start, end: end}
}

// Next returns the interval on the first call and exhausts afterwards.
func (r *RangeSource) Next() (uint64, uint64, bool) {
	if r.done {
		return 0, 0, false
	}
	r.done = true
	return r.start, r.end, true
}

// Worker hashes nonce ranges against the current job and emits passing
// digests as shares. The same worker serves both continuous self-service
// mining and one-shot externally partitioned ranges; only the NonceSource
// differs.
type Worker struct {
	algorithm algo.Algorithm
	shares    chan<- Share
	logger    *log.Logger
	idleDelay time.Duration
	onHashes  func(n uint64)
	done      <-chan struct{}
}

// NewWorker creates a worker emitting shares into the given channel.
func NewWorker(algorithm algo.Algorithm, shares chan<- Share, logger *log.Logger) *Worker {
	return &Worker{
		algorithm: algorithm,
		shares:    shares,
		logger:    logger,
		idleDelay: defaultIdleDelay,
	}
}

// SetHashReporter installs a callback invoked with the number of nonces
// hashed after each completed range. Used by the stats reporter.
func (w *Worker) SetHashReporter(fn func(n uint64)) {
	w.onHashes = fn
}

// SetStopChannel installs a channel whose close unblocks a share emission in
// progress. Without it a full share channel with no consumer would pin the
// worker inside a range, beyond the reach of the cooperative stop flag.
func (w *Worker) SetStopChannel(done <-chan struct{}) {
	w.done = done
}

// Mine runs the continuous loop: snapshot the job slot, draw the next range
// from src, hash it, repeat. With no job installed the worker idles with a
// bounded sleep instead of terminating. The loop ends when active is cleared
// or src exhausts; a range in flight is always finished first.
func (w *Worker) Mine(slot *JobSlot, src NonceSource, active *atomic.Bool) {
	for active.Load() {
		job := slot.Load()
		if job == nil {
			time.Sleep(w.idleDelay)
			continue
		}

		start, end, ok := src.Next()
		if !ok {
			return
		}

		w.HashRange(job, start, end)
	}
}

// MineRange hashes the explicit interval [start, end) of job once and
// returns. Used for manually partitioned work.
func (w *Worker) MineRange(job *Job, start, end uint64) {
	src := NewRangeSource(start, end)
	for {
		s, e, ok := src.Next()
		if !ok {
			return
		}
		w.HashRange(job, s, e)
	}
}

// HashRange hashes every nonce in [start, end) against job's blob and emits
// a Share for each digest below the target. A hashing failure on one nonce
// is logged and skipped; it aborts neither the range nor the worker. The
// range is abandoned only when the stop channel closes while a share is
// waiting for a consumer.
func (w *Worker) HashRange(job *Job, start, end uint64) {
	for nonce := start; nonce < end; nonce++ {
		digest, err := w.algorithm.Hash(job.Blob, nonce)
		if err != nil {
			w.logger.WithError(err).Error("hashing failed", "job_id", job.ID, "nonce", nonce)
			continue
		}

		if algo.BelowTarget(digest, job.Target) {
			w.logger.LogShareFound(job.ID, nonce)
			if !w.emit(Share{JobID: job.ID, Nonce: nonce, Result: digest}) {
				if w.onHashes != nil {
					w.onHashes(nonce - start)
				}
				return
			}
		}
	}

	if w.onHashes != nil {
		w.onHashes(end - start)
	}
}

// emit delivers a share, or reports false when the stop channel closes while
// the share channel is full. With no stop channel installed the send blocks
// until a consumer takes the share.
func (w *Worker) emit(share Share) bool {
	select {
	case w.shares <- share:
		return true
	case <-w.done:
		err := errors.New(errors.ErrorTypeChannel, "emit_share",
			"share consumer gone, dropping share")
		w.logger.WithError(err).Warn("abandoning range",
			"job_id", share.JobID, "nonce", share.Nonce)
		return false
	}
}
