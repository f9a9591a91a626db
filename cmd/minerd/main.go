// Package main implements minerd, the mining daemon. It wires the worker
// scheduler to a pool or node session, reports statistics, and optionally
// serves Prometheus metrics.
package main

import (
	"context"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/bardlex/gomc/internal/algo"
	"github.com/bardlex/gomc/internal/config"
	"github.com/bardlex/gomc/internal/metrics"
	"github.com/bardlex/gomc/internal/mining"
	"github.com/bardlex/gomc/internal/node"
	"github.com/bardlex/gomc/internal/pool"
	"github.com/bardlex/gomc/internal/stats"
	"github.com/bardlex/gomc/pkg/log"
)

const shareBuffer = 256

func main() {
	configPath := flag.String("config", "", "path to TOML config file (default: environment only)")
	printTemplate := flag.Bool("print-template", false, "print an example config file and exit")
	flag.Parse()

	if *printTemplate {
		fmt.Print(config.Template())
		return
	}

	var cfg *config.Config
	var err error
	if *configPath != "" {
		cfg, err = config.LoadFile(*configPath)
	} else {
		cfg, err = config.Load()
	}
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load config: %v\n", err)
		os.Exit(1)
	}

	logger := log.New(cfg.ServiceName, cfg.Version, cfg.LogLevel, cfg.LogFormat)
	logger.Info("starting minerd",
		"version", cfg.Version,
		"settings", cfg.String(),
	)

	if err := run(cfg, logger); err != nil {
		logger.WithError(err).Error("minerd failed")
		os.Exit(1)
	}
	logger.Info("minerd stopped")
}

func run(cfg *config.Config, logger *log.Logger) error {
	algo.RegisterDevBackends()
	algorithm, err := algo.New(cfg.AlgorithmKind(), algo.Options{})
	if err != nil {
		return err
	}

	shares := make(chan mining.Share, shareBuffer)
	scheduler, err := mining.NewScheduler(shares, cfg.BatchSize, logger)
	if err != nil {
		return err
	}

	reporter := stats.NewReporter(workerID(cfg), cfg.StatsInterval(), logger)
	reporter.SetHardwareMonitor(stats.NewHardwareMonitor(logger))
	scheduler.SetHashReporter(reporter.AddHashes)
	if err := addSinks(cfg, reporter, logger); err != nil {
		return err
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

	go reporter.Run(ctx)

	if cfg.Metrics.Enabled {
		startMetricsServer(ctx, cfg.Metrics.ListenAddr, logger)
		metrics.WorkersActive.Set(float64(cfg.Workers()))
	}

	if err := scheduler.StartMining(algorithm, cfg.Workers()); err != nil {
		return err
	}

	sessionErr := make(chan error, 1)
	go func() { sessionErr <- runSession(ctx, cfg, scheduler, reporter, shares, logger) }()

	var fatal error
	select {
	case <-sigChan:
		logger.Info("shutdown signal received")
	case err := <-sessionErr:
		if err != nil {
			fatal = err
		} else {
			logger.Info("session ended")
		}
	}

	cancel()
	scheduler.Stop()

	done := make(chan struct{})
	go func() {
		scheduler.Wait()
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(30 * time.Second):
		logger.Warn("workers did not stop within grace period")
	}
	return fatal
}

// runSession connects the configured upstream and blocks until it ends
func runSession(ctx context.Context, cfg *config.Config, scheduler *mining.Scheduler,
	reporter *stats.Reporter, shares <-chan mining.Share, logger *log.Logger) error {

	if cfg.Mode.Pool != nil {
		p := cfg.Mode.Pool
		session, err := pool.NewSession(pool.Config{
			URL:               p.URL,
			User:              p.User,
			Pass:              p.Password,
			WorkerID:          p.WorkerID,
			Agent:             cfg.ServiceName + "/" + cfg.Version,
			KeepaliveInterval: p.KeepaliveInterval(),
		}, scheduler, logger)
		if err != nil {
			return err
		}
		session.SetResultSink(reporter)
		return session.Run(ctx, shares)
	}

	n := cfg.Mode.Node
	session, err := node.NewSession(node.Config{
		URL:               n.RPCURL,
		Username:          n.RPCUser,
		Password:          n.RPCPassword,
		WalletAddress:     n.WalletAddress,
		ChainPollInterval: n.ChainPollInterval(),
	}, scheduler, logger)
	if err != nil {
		return err
	}

	if n.ZMQEndpoint != "" {
		listener, err := node.NewChainListener(n.ZMQEndpoint, logger)
		if err != nil {
			return err
		}
		listener.SetBlockHandler(session.NotifyHeight)
		if err := listener.Connect(); err != nil {
			return err
		}
		defer listener.Close()
		go listener.Listen(ctx)
	}

	return session.Run(ctx, shares)
}

// addSinks attaches the configured stats exporters
func addSinks(cfg *config.Config, reporter *stats.Reporter, logger *log.Logger) error {
	if cfg.Metrics.Enabled {
		reporter.AddSink(metrics.NewSink())
	}

	if influxCfg := cfg.Stats.Influx; influxCfg != nil {
		sink, err := stats.NewInfluxSink(stats.InfluxConfig{
			URL:    influxCfg.URL,
			Token:  influxCfg.Token,
			Org:    influxCfg.Org,
			Bucket: influxCfg.Bucket,
		})
		if err != nil {
			return err
		}
		reporter.AddSink(sink)
		logger.Info("influx stats sink enabled", "url", influxCfg.URL)
	}

	if redisCfg := cfg.Stats.Redis; redisCfg != nil {
		sink, err := stats.NewRedisSink(stats.RedisConfig{
			Addr:     redisCfg.Addr,
			Password: redisCfg.Password,
			DB:       redisCfg.DB,
			TTL:      2 * cfg.StatsInterval(),
		})
		if err != nil {
			return err
		}
		reporter.AddSink(sink)
		logger.Info("redis stats sink enabled", "addr", redisCfg.Addr)
	}

	return nil
}

func startMetricsServer(ctx context.Context, addr string, logger *log.Logger) {
	mux := http.NewServeMux()
	mux.Handle("/metrics", metrics.Handler())
	server := &http.Server{Addr: addr, Handler: mux}

	go func() {
		logger.Info("metrics endpoint listening", "addr", addr)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.WithError(err).Error("metrics server failed")
		}
	}()
	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = server.Shutdown(shutdownCtx)
	}()
}

// workerID picks the identity reported to the upstream and in statistics
func workerID(cfg *config.Config) string {
	if cfg.Mode.Pool != nil && cfg.Mode.Pool.WorkerID != "" {
		return cfg.Mode.Pool.WorkerID
	}
	if host, err := os.Hostname(); err == nil {
		return host
	}
	return "gomc"
}
