// Package metrics exposes miner telemetry as Prometheus metrics.
package metrics

import (
	"context"
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/bardlex/gomc/internal/stats"
)

var (
	Hashrate = prometheus.NewGauge(prometheus.GaugeOpts{
		Namespace: "gomc",
		Name:      "hashrate",
		Help:      "Current miner hashrate in H/s.",
	})

	HashesTotal = prometheus.NewGauge(prometheus.GaugeOpts{
		Namespace: "gomc",
		Name:      "hashes_total",
		Help:      "Total hash attempts since start.",
	})

	SharesAccepted = prometheus.NewGauge(prometheus.GaugeOpts{
		Namespace: "gomc",
		Name:      "shares_accepted_total",
		Help:      "Total shares accepted by the upstream.",
	})

	SharesRejected = prometheus.NewGauge(prometheus.GaugeOpts{
		Namespace: "gomc",
		Name:      "shares_rejected_total",
		Help:      "Total shares rejected by the upstream.",
	})

	WorkersActive = prometheus.NewGauge(prometheus.GaugeOpts{
		Namespace: "gomc",
		Name:      "workers_active",
		Help:      "Number of running mining workers.",
	})

	CPUPercent = prometheus.NewGauge(prometheus.GaugeOpts{
		Namespace: "gomc",
		Name:      "cpu_percent",
		Help:      "Host CPU utilization percentage.",
	})

	CPUTemperature = prometheus.NewGauge(prometheus.GaugeOpts{
		Namespace: "gomc",
		Name:      "cpu_temperature_celsius",
		Help:      "Host CPU temperature in degrees Celsius.",
	})

	UptimeSeconds = prometheus.NewGauge(prometheus.GaugeOpts{
		Namespace: "gomc",
		Name:      "uptime_seconds",
		Help:      "Miner uptime in seconds.",
	})
)

func init() {
	prometheus.MustRegister(
		Hashrate,
		HashesTotal,
		SharesAccepted,
		SharesRejected,
		WorkersActive,
		CPUPercent,
		CPUTemperature,
		UptimeSeconds,
	)
}

// Handler returns an HTTP handler for the /metrics endpoint.
func Handler() http.Handler {
	return promhttp.Handler()
}

// Sink adapts the metrics registry to the stats export interface so
// snapshots keep the gauges current.
type Sink struct{}

// NewSink creates a Prometheus stats sink
func NewSink() *Sink {
	return &Sink{}
}

// WriteSnapshot updates the gauges from a snapshot
func (s *Sink) WriteSnapshot(_ context.Context, snap stats.Snapshot) error {
	Hashrate.Set(snap.Hashrate)
	HashesTotal.Set(float64(snap.TotalHashes))
	SharesAccepted.Set(float64(snap.SharesAccepted))
	SharesRejected.Set(float64(snap.SharesRejected))
	CPUPercent.Set(snap.Hardware.CPUPercent)
	CPUTemperature.Set(snap.Hardware.CPUTemperature)
	UptimeSeconds.Set(snap.Uptime)
	return nil
}

// Close is a no-op; the registry lives for the process lifetime
func (s *Sink) Close() {}
