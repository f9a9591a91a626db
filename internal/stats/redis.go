package stats

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/bardlex/gomc/pkg/errors"
)

// RedisConfig holds Redis sink configuration
type RedisConfig struct {
	Addr     string
	Password string
	DB       int
	// TTL on the status key; a stale key means the miner stopped reporting
	TTL time.Duration
}

// RedisSink publishes the latest snapshot as a JSON status key so fleet
// dashboards can read live miner state.
type RedisSink struct {
	rdb *redis.Client
	ttl time.Duration
}

// NewRedisSink creates a Redis sink and verifies connectivity
func NewRedisSink(cfg RedisConfig) (*RedisSink, error) {
	rdb := redis.NewClient(&redis.Options{
		Addr:     cfg.Addr,
		Password: cfg.Password,
		DB:       cfg.DB,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := rdb.Ping(ctx).Err(); err != nil {
		return nil, errors.Wrap(err, errors.ErrorTypeConnection, "redis_sink",
			"failed to ping Redis").WithContext("addr", cfg.Addr)
	}

	ttl := cfg.TTL
	if ttl <= 0 {
		ttl = 2 * time.Minute
	}

	return &RedisSink{rdb: rdb, ttl: ttl}, nil
}

func statusKey(workerID string) string {
	return fmt.Sprintf("miner:status:%s", workerID)
}

// WriteSnapshot stores the snapshot under the miner's status key
func (s *RedisSink) WriteSnapshot(ctx context.Context, snap Snapshot) error {
	payload, err := json.Marshal(snap)
	if err != nil {
		return errors.Wrap(err, errors.ErrorTypeInternal, "redis_sink",
			"failed to marshal snapshot")
	}

	if err := s.rdb.Set(ctx, statusKey(snap.WorkerID), payload, s.ttl).Err(); err != nil {
		return errors.Wrap(err, errors.ErrorTypeConnection, "redis_sink",
			"failed to write status key")
	}
	return nil
}

// ReadStatus fetches another miner's last snapshot, if present
func (s *RedisSink) ReadStatus(ctx context.Context, workerID string) (*Snapshot, error) {
	data, err := s.rdb.Get(ctx, statusKey(workerID)).Result()
	if err != nil {
		if err == redis.Nil {
			return nil, nil
		}
		return nil, errors.Wrap(err, errors.ErrorTypeConnection, "redis_sink",
			"failed to read status key")
	}

	var snap Snapshot
	if err := json.Unmarshal([]byte(data), &snap); err != nil {
		return nil, errors.Wrap(err, errors.ErrorTypeInternal, "redis_sink",
			"undecodable status payload")
	}
	return &snap, nil
}

// Close releases the Redis connection
func (s *RedisSink) Close() {
	_ = s.rdb.Close()
}
