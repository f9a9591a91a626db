// Package stats tracks miner runtime statistics: hash throughput, share
// outcomes, and host telemetry, with optional export sinks.
package stats

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"github.com/bardlex/gomc/pkg/log"
)

// Snapshot is one point-in-time view of miner statistics
type Snapshot struct {
	Timestamp      time.Time `json:"timestamp"`
	WorkerID       string    `json:"worker_id"`
	Hashrate       float64   `json:"hashrate"`
	TotalHashes    uint64    `json:"total_hashes"`
	SharesAccepted uint64    `json:"shares_accepted"`
	SharesRejected uint64    `json:"shares_rejected"`
	Uptime         float64   `json:"uptime_seconds"`
	Hardware       Hardware  `json:"hardware"`
}

// Sink receives periodic snapshots
type Sink interface {
	WriteSnapshot(ctx context.Context, snap Snapshot) error
	Close()
}

// Reporter accumulates counters from the mining and session layers and
// periodically logs and exports a snapshot. Counter methods are safe for
// concurrent use.
type Reporter struct {
	workerID string
	logger   *log.Logger
	interval time.Duration

	hashes   atomic.Uint64
	accepted atomic.Uint64
	rejected atomic.Uint64

	started    time.Time
	hardware   *HardwareMonitor
	sinks      []Sink
	sinksMu    sync.Mutex
	lastHashes uint64
	lastTick   time.Time
}

// NewReporter creates a reporter that emits every interval
func NewReporter(workerID string, interval time.Duration, logger *log.Logger) *Reporter {
	if interval <= 0 {
		interval = 30 * time.Second
	}
	now := time.Now()
	return &Reporter{
		workerID: workerID,
		logger:   logger.WithComponent("stats"),
		interval: interval,
		started:  now,
		lastTick: now,
	}
}

// AddSink registers an export sink
func (r *Reporter) AddSink(sink Sink) {
	r.sinksMu.Lock()
	r.sinks = append(r.sinks, sink)
	r.sinksMu.Unlock()
}

// SetHardwareMonitor enables host telemetry collection
func (r *Reporter) SetHardwareMonitor(hw *HardwareMonitor) {
	r.hardware = hw
}

// AddHashes records completed hash attempts
func (r *Reporter) AddHashes(n uint64) {
	r.hashes.Add(n)
}

// ShareAccepted records an accepted share
func (r *Reporter) ShareAccepted() {
	r.accepted.Add(1)
}

// ShareRejected records a rejected share
func (r *Reporter) ShareRejected() {
	r.rejected.Add(1)
}

// TotalHashes returns the total hash count so far
func (r *Reporter) TotalHashes() uint64 {
	return r.hashes.Load()
}

// snapshot computes the current snapshot; hashrate covers the window since
// the previous snapshot.
func (r *Reporter) snapshot(now time.Time) Snapshot {
	total := r.hashes.Load()

	elapsed := now.Sub(r.lastTick).Seconds()
	var rate float64
	if elapsed > 0 {
		rate = float64(total-r.lastHashes) / elapsed
	}
	r.lastHashes = total
	r.lastTick = now

	snap := Snapshot{
		Timestamp:      now,
		WorkerID:       r.workerID,
		Hashrate:       rate,
		TotalHashes:    total,
		SharesAccepted: r.accepted.Load(),
		SharesRejected: r.rejected.Load(),
		Uptime:         now.Sub(r.started).Seconds(),
	}
	if r.hardware != nil {
		snap.Hardware = r.hardware.Collect()
	}
	return snap
}

// Run emits snapshots until the context ends, then closes the sinks
func (r *Reporter) Run(ctx context.Context) {
	ticker := time.NewTicker(r.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			r.closeSinks()
			return
		case now := <-ticker.C:
			r.emit(ctx, r.snapshot(now))
		}
	}
}

func (r *Reporter) emit(ctx context.Context, snap Snapshot) {
	r.logger.LogHashrate(snap.Hashrate, snap.SharesAccepted, snap.SharesRejected)

	r.sinksMu.Lock()
	sinks := make([]Sink, len(r.sinks))
	copy(sinks, r.sinks)
	r.sinksMu.Unlock()

	for _, sink := range sinks {
		if err := sink.WriteSnapshot(ctx, snap); err != nil {
			r.logger.WithError(err).Warn("stats sink write failed")
		}
	}
}

func (r *Reporter) closeSinks() {
	r.sinksMu.Lock()
	defer r.sinksMu.Unlock()
	for _, sink := range r.sinks {
		sink.Close()
	}
}
