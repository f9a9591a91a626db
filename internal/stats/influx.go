package stats

import (
	"context"
	"time"

	influxdb2 "github.com/influxdata/influxdb-client-go/v2"
	"github.com/influxdata/influxdb-client-go/v2/api"
	"github.com/influxdata/influxdb-client-go/v2/api/write"

	"github.com/bardlex/gomc/pkg/errors"
)

// InfluxConfig holds InfluxDB sink configuration
type InfluxConfig struct {
	URL    string
	Token  string
	Org    string
	Bucket string
}

// InfluxSink exports snapshots as time-series points
type InfluxSink struct {
	client   influxdb2.Client
	writeAPI api.WriteAPI
}

// NewInfluxSink creates an InfluxDB sink and verifies connectivity
func NewInfluxSink(cfg InfluxConfig) (*InfluxSink, error) {
	client := influxdb2.NewClient(cfg.URL, cfg.Token)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	health, err := client.Health(ctx)
	if err != nil {
		return nil, errors.Wrap(err, errors.ErrorTypeConnection, "influx_sink",
			"failed to check InfluxDB health")
	}
	if health.Status != "pass" {
		msg := ""
		if health.Message != nil {
			msg = *health.Message
		}
		return nil, errors.New(errors.ErrorTypeConnection, "influx_sink",
			"InfluxDB health check failed").WithContext("status_message", msg)
	}

	return &InfluxSink{
		client:   client,
		writeAPI: client.WriteAPI(cfg.Org, cfg.Bucket),
	}, nil
}

// WriteSnapshot writes one miner_stats point. Writes are buffered and
// flushed asynchronously by the client.
func (s *InfluxSink) WriteSnapshot(_ context.Context, snap Snapshot) error {
	tags := map[string]string{
		"worker_id": snap.WorkerID,
	}
	fields := map[string]interface{}{
		"hashrate":        snap.Hashrate,
		"total_hashes":    int64(snap.TotalHashes),
		"shares_accepted": int64(snap.SharesAccepted),
		"shares_rejected": int64(snap.SharesRejected),
		"uptime_seconds":  snap.Uptime,
		"cpu_percent":     snap.Hardware.CPUPercent,
		"memory_used_mb":  int64(snap.Hardware.MemoryUsedMB),
		"cpu_temperature": snap.Hardware.CPUTemperature,
	}

	point := write.NewPoint("miner_stats", tags, fields, snap.Timestamp)
	s.writeAPI.WritePoint(point)
	return nil
}

// Close flushes buffered points and shuts the client down
func (s *InfluxSink) Close() {
	s.writeAPI.Flush()
	s.client.Close()
}
