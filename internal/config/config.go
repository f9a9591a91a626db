// Package config provides configuration management for the miner. Settings
// come from a TOML config file, from environment variables, or both; the
// environment wins.
package config

import (
	"fmt"
	"os"
	"runtime"
	"strconv"
	"time"

	"github.com/pelletier/go-toml"

	"github.com/bardlex/gomc/internal/algo"
	"github.com/bardlex/gomc/pkg/errors"
)

// PoolConfig configures pool mining mode
type PoolConfig struct {
	URL              string `toml:"url"`
	User             string `toml:"user"`
	Password         string `toml:"password"`
	WorkerID         string `toml:"worker_id"`
	KeepaliveSeconds int    `toml:"keepalive_seconds"`
}

// NodeConfig configures direct node mining mode
type NodeConfig struct {
	RPCURL           string `toml:"rpc_url"`
	RPCUser          string `toml:"rpc_user"`
	RPCPassword      string `toml:"rpc_password"`
	WalletAddress    string `toml:"wallet_address"`
	ZMQEndpoint      string `toml:"zmq_endpoint"`
	ChainPollSeconds int    `toml:"chain_poll_seconds"`
}

// ModeConfig selects pool or node mining; exactly one must be set
type ModeConfig struct {
	Pool *PoolConfig `toml:"pool"`
	Node *NodeConfig `toml:"node"`
}

// InfluxConfig configures the optional InfluxDB stats sink
type InfluxConfig struct {
	URL    string `toml:"url"`
	Token  string `toml:"token"`
	Org    string `toml:"org"`
	Bucket string `toml:"bucket"`
}

// RedisConfig configures the optional Redis status sink
type RedisConfig struct {
	Addr     string `toml:"addr"`
	Password string `toml:"password"`
	DB       int    `toml:"db"`
}

// StatsConfig configures statistics reporting
type StatsConfig struct {
	IntervalSeconds int           `toml:"interval_seconds"`
	Influx          *InfluxConfig `toml:"influx"`
	Redis           *RedisConfig  `toml:"redis"`
}

// MetricsConfig configures the Prometheus endpoint
type MetricsConfig struct {
	Enabled    bool   `toml:"enabled"`
	ListenAddr string `toml:"listen_addr"`
}

// Config holds the full miner configuration
type Config struct {
	ServiceName string `toml:"-"`
	Version     string `toml:"-"`

	Algorithm     string `toml:"algorithm"`
	WorkerThreads int    `toml:"worker_threads"`
	BatchSize     uint64 `toml:"batch_size"`

	Mode    ModeConfig    `toml:"mode"`
	Stats   StatsConfig   `toml:"stats"`
	Metrics MetricsConfig `toml:"metrics"`

	LogLevel  string `toml:"log_level"`
	LogFormat string `toml:"log_format"`
}

// defaults returns a config with every optional setting filled in
func defaults() *Config {
	return &Config{
		ServiceName:   "gomc",
		Version:       "dev",
		Algorithm:     "randomx",
		WorkerThreads: 0, // auto-detect
		BatchSize:     1000,
		Stats: StatsConfig{
			IntervalSeconds: 30,
		},
		Metrics: MetricsConfig{
			ListenAddr: "127.0.0.1:9090",
		},
		LogLevel:  "info",
		LogFormat: "json",
	}
}

// Load builds configuration from environment variables alone
func Load() (*Config, error) {
	cfg := defaults()
	cfg.applyEnv()

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// LoadFile builds configuration from a TOML file, then applies environment
// overrides on top.
func LoadFile(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, errors.Wrap(err, errors.ErrorTypeConfig, "load_config",
			"failed to read config file").WithContext("path", path)
	}

	cfg := defaults()
	if err := toml.Unmarshal(data, cfg); err != nil {
		return nil, errors.Wrap(err, errors.ErrorTypeConfig, "load_config",
			"invalid config format").WithContext("path", path)
	}
	cfg.applyEnv()

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// applyEnv overlays environment variables onto the config
func (c *Config) applyEnv() {
	c.ServiceName = getEnv("SERVICE_NAME", c.ServiceName)
	c.Version = getEnv("VERSION", c.Version)
	c.Algorithm = getEnv("GOMC_ALGORITHM", c.Algorithm)
	c.WorkerThreads = getEnvInt("GOMC_WORKER_THREADS", c.WorkerThreads)
	c.BatchSize = getEnvUint64("GOMC_BATCH_SIZE", c.BatchSize)
	c.LogLevel = getEnv("LOG_LEVEL", c.LogLevel)
	c.LogFormat = getEnv("LOG_FORMAT", c.LogFormat)

	if url := os.Getenv("GOMC_POOL_URL"); url != "" {
		if c.Mode.Pool == nil {
			c.Mode.Pool = &PoolConfig{}
		}
		c.Mode.Pool.URL = url
	}
	if c.Mode.Pool != nil {
		c.Mode.Pool.User = getEnv("GOMC_POOL_USER", c.Mode.Pool.User)
		c.Mode.Pool.Password = getEnv("GOMC_POOL_PASSWORD", c.Mode.Pool.Password)
		c.Mode.Pool.WorkerID = getEnv("GOMC_POOL_WORKER_ID", c.Mode.Pool.WorkerID)
	}

	if url := os.Getenv("GOMC_NODE_RPC_URL"); url != "" {
		if c.Mode.Node == nil {
			c.Mode.Node = &NodeConfig{}
		}
		c.Mode.Node.RPCURL = url
	}
	if c.Mode.Node != nil {
		c.Mode.Node.RPCUser = getEnv("GOMC_NODE_RPC_USER", c.Mode.Node.RPCUser)
		c.Mode.Node.RPCPassword = getEnv("GOMC_NODE_RPC_PASSWORD", c.Mode.Node.RPCPassword)
		c.Mode.Node.WalletAddress = getEnv("GOMC_NODE_WALLET", c.Mode.Node.WalletAddress)
		c.Mode.Node.ZMQEndpoint = getEnv("GOMC_NODE_ZMQ", c.Mode.Node.ZMQEndpoint)
	}
}

// Validate checks the configuration for fatal mistakes
func (c *Config) Validate() error {
	if _, err := algo.ParseKind(c.Algorithm); err != nil {
		return errors.Wrap(err, errors.ErrorTypeConfig, "validate_config",
			"unsupported algorithm").WithContext("algorithm", c.Algorithm)
	}

	if c.BatchSize == 0 {
		return errors.New(errors.ErrorTypeConfig, "validate_config",
			"batch_size must be positive")
	}
	if c.WorkerThreads < 0 {
		return errors.New(errors.ErrorTypeConfig, "validate_config",
			"worker_threads cannot be negative")
	}

	if c.Mode.Pool == nil && c.Mode.Node == nil {
		return errors.New(errors.ErrorTypeConfig, "validate_config",
			"either pool or node mode must be configured")
	}
	if c.Mode.Pool != nil && c.Mode.Node != nil {
		return errors.New(errors.ErrorTypeConfig, "validate_config",
			"pool and node modes are mutually exclusive")
	}

	if c.Mode.Pool != nil {
		if c.Mode.Pool.URL == "" {
			return errors.New(errors.ErrorTypeConfig, "validate_config",
				"pool url is required")
		}
		if c.Mode.Pool.User == "" {
			return errors.New(errors.ErrorTypeConfig, "validate_config",
				"pool user is required")
		}
	}

	if c.Mode.Node != nil {
		if c.Mode.Node.RPCURL == "" {
			return errors.New(errors.ErrorTypeConfig, "validate_config",
				"node rpc_url is required")
		}
		if c.Mode.Node.WalletAddress == "" {
			return errors.New(errors.ErrorTypeConfig, "validate_config",
				"node wallet_address is required")
		}
	}

	if c.Stats.IntervalSeconds <= 0 {
		return errors.New(errors.ErrorTypeConfig, "validate_config",
			"stats interval_seconds must be positive")
	}

	return nil
}

// Workers resolves the worker count; zero means one per CPU
func (c *Config) Workers() int {
	if c.WorkerThreads > 0 {
		return c.WorkerThreads
	}
	return runtime.NumCPU()
}

// AlgorithmKind returns the parsed algorithm selection
func (c *Config) AlgorithmKind() algo.Kind {
	kind, _ := algo.ParseKind(c.Algorithm)
	return kind
}

// StatsInterval returns the reporting period
func (c *Config) StatsInterval() time.Duration {
	return time.Duration(c.Stats.IntervalSeconds) * time.Second
}

// KeepaliveInterval returns the pool keepalive period, or zero for default
func (p *PoolConfig) KeepaliveInterval() time.Duration {
	return time.Duration(p.KeepaliveSeconds) * time.Second
}

// ChainPollInterval returns the node poll period, or zero for default
func (n *NodeConfig) ChainPollInterval() time.Duration {
	return time.Duration(n.ChainPollSeconds) * time.Second
}

// Template renders a commented example configuration
func Template() string {
	return `# GOMC miner configuration

# Supported algorithms: randomx, cryptonight-v7 (cnv7), cryptonight-r (cnr)
algorithm = "randomx"
# Number of worker threads (0 = one per CPU)
worker_threads = 0
# Nonce batch size per worker
batch_size = 1000

log_level = "info"
log_format = "json"

# Exactly one of [mode.pool] or [mode.node] must be present.

[mode.pool]
url = "wss://pool.example.com:3333"
user = "your_wallet_address"
password = "x"
worker_id = "worker01"

#[mode.node]
#rpc_url = "http://localhost:18081"
#rpc_user = "monero"
#rpc_password = "password"
#wallet_address = "your_wallet_address"
#zmq_endpoint = "tcp://localhost:18083"

[stats]
interval_seconds = 30

#[stats.influx]
#url = "http://localhost:8086"
#token = ""
#org = "gomc"
#bucket = "mining"

#[stats.redis]
#addr = "localhost:6379"

[metrics]
enabled = false
listen_addr = "127.0.0.1:9090"
`
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if parsed, err := strconv.Atoi(value); err == nil {
			return parsed
		}
	}
	return defaultValue
}

func getEnvUint64(key string, defaultValue uint64) uint64 {
	if value := os.Getenv(key); value != "" {
		if parsed, err := strconv.ParseUint(value, 10, 64); err == nil {
			return parsed
		}
	}
	return defaultValue
}

// String renders the effective config for startup logging, without secrets
func (c *Config) String() string {
	mode := "node"
	if c.Mode.Pool != nil {
		mode = "pool"
	}
	return fmt.Sprintf("algorithm=%s workers=%d batch_size=%d mode=%s",
		c.Algorithm, c.Workers(), c.BatchSize, mode)
}
