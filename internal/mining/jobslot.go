package mining

import (
	"sync/atomic"
)

// JobSlot holds the current job, or none. One writer (the session layer)
// replaces it atomically; many readers (workers) snapshot it without
// blocking and never observe a partially written job.
type JobSlot struct {
	current atomic.Pointer[Job]
}

// NewJobSlot creates an empty slot.
func NewJobSlot() *JobSlot {
	return &JobSlot{}
}

// Store atomically installs job as the current job. Jobs are immutable, so
// readers holding the previous snapshot keep hashing it untouched until
// their next poll.
func (s *JobSlot) Store(job *Job) {
	s.current.Store(job)
}

// Load returns the current job snapshot, or nil if no job is installed.
func (s *JobSlot) Load() *Job {
	return s.current.Load()
}
