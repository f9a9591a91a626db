package mining

import (
	"sync"
	"sync/atomic"

	"github.com/bardlex/gomc/internal/algo"
	"github.com/bardlex/gomc/pkg/errors"
	"github.com/bardlex/gomc/pkg/log"
)

// Scheduler coordinates mining across worker goroutines. It owns the job
// slot and the nonce allocator; the session layer installs jobs through
// UpdateJob and workers drain both without locks on the hot path.
type Scheduler struct {
	slot      *JobSlot
	alloc     *NonceAllocator
	shares    chan<- Share
	batchSize uint64

	active   atomic.Bool
	done     chan struct{}
	stopOnce sync.Once
	wg       sync.WaitGroup
	logger   *log.Logger
	onHashes func(n uint64)
}

// NewScheduler creates a scheduler emitting shares into shares. A zero
// batch size is rejected: claiming would live-lock on zero-width batches.
func NewScheduler(shares chan<- Share, batchSize uint64, logger *log.Logger) (*Scheduler, error) {
	if batchSize == 0 {
		return nil, errors.New(errors.ErrorTypeConfig, "new_scheduler",
			"batch size must be positive")
	}

	return &Scheduler{
		slot:      NewJobSlot(),
		alloc:     NewNonceAllocator(),
		shares:    shares,
		batchSize: batchSize,
		done:      make(chan struct{}),
		logger:    logger.WithComponent("scheduler"),
	}, nil
}

// UpdateJob atomically replaces the current job and resets the nonce counter
// to zero, making the full nonce space available for the new job epoch.
// Workers observe the replacement on their next poll; a worker mid-batch on
// the old job finishes that batch first, and its shares (if any) still carry
// the old job ID.
func (s *Scheduler) UpdateJob(job Job) {
	s.slot.Store(&job)
	s.alloc.Reset()
	s.logger.LogJobReceived(job.ID, job.Algorithm.String(), len(job.Blob))
}

// CurrentJob returns the current job snapshot, or nil if none is installed.
func (s *Scheduler) CurrentJob() *Job {
	return s.slot.Load()
}

// SetHashReporter installs a callback receiving the number of nonces hashed
// per completed batch, for hashrate accounting. Must be called before
// StartMining.
func (s *Scheduler) SetHashReporter(fn func(n uint64)) {
	s.onHashes = fn
}

// StartMining spawns workerCount goroutines that self-claim batches from
// the shared allocator until Stop is called. Workers never terminate on job
// absence; they idle-poll.
func (s *Scheduler) StartMining(algorithm algo.Algorithm, workerCount int) error {
	if workerCount <= 0 {
		return errors.New(errors.ErrorTypeConfig, "start_mining",
			"worker count must be positive").WithContext("workers", workerCount)
	}

	s.active.Store(true)
	s.logger.Info("starting workers",
		"workers", workerCount,
		"batch_size", s.batchSize,
		"algorithm", algorithm.Kind().String(),
	)

	for i := 0; i < workerCount; i++ {
		worker := NewWorker(algorithm, s.shares, s.logger.WithWorker(i))
		worker.SetStopChannel(s.done)
		if s.onHashes != nil {
			worker.SetHashReporter(s.onHashes)
		}
		src := NewAllocatorSource(s.alloc, s.batchSize)

		s.wg.Add(1)
		go func() {
			defer s.wg.Done()
			worker.Mine(s.slot, src, &s.active)
		}()
	}

	return nil
}

// Stop signals workers to exit. Cooperative: each worker finishes its
// current batch, so shutdown latency scales with the batch size. Closing the
// done channel additionally frees any worker blocked delivering a share to a
// full channel. Safe to call more than once.
func (s *Scheduler) Stop() {
	s.active.Store(false)
	s.stopOnce.Do(func() { close(s.done) })
}

// Wait blocks until all workers have exited.
func (s *Scheduler) Wait() {
	s.wg.Wait()
}
