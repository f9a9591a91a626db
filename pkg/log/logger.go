// Package log provides structured logging utilities for the GOMC miner.
// It wraps the standard library's slog package with additional convenience methods.
package log

import (
	"log/slog"
	"os"
	"strings"
)

// Logger wraps slog.Logger with additional context and convenience methods
type Logger struct {
	*slog.Logger
	service string
	version string
}

// New creates a new logger with the specified configuration
func New(service, version, level, format string) *Logger {
	var handler slog.Handler

	// Parse log level
	var logLevel slog.Level
	switch strings.ToLower(level) {
	case "debug":
		logLevel = slog.LevelDebug
	case "info":
		logLevel = slog.LevelInfo
	case "warn", "warning":
		logLevel = slog.LevelWarn
	case "error":
		logLevel = slog.LevelError
	default:
		logLevel = slog.LevelInfo
	}

	opts := &slog.HandlerOptions{
		Level:     logLevel,
		AddSource: logLevel == slog.LevelDebug,
	}

	switch strings.ToLower(format) {
	case "json":
		handler = slog.NewJSONHandler(os.Stdout, opts)
	case "text":
		handler = slog.NewTextHandler(os.Stdout, opts)
	default:
		handler = slog.NewTextHandler(os.Stdout, opts)
	}

	baseLogger := slog.New(handler).With(
		"service", service,
		"version", version,
	)

	return &Logger{
		Logger:  baseLogger,
		service: service,
		version: version,
	}
}

// WithFields returns a logger with additional fields
func (l *Logger) WithFields(fields ...any) *Logger {
	return &Logger{
		Logger:  l.With(fields...),
		service: l.service,
		version: l.version,
	}
}

// WithComponent returns a logger with a component field
func (l *Logger) WithComponent(component string) *Logger {
	return l.WithFields("component", component)
}

// WithWorker returns a logger with worker-specific fields
func (l *Logger) WithWorker(workerIndex int) *Logger {
	return l.WithFields("worker", workerIndex)
}

// WithJob returns a logger with job-specific fields
func (l *Logger) WithJob(jobID string, algorithm string) *Logger {
	return l.WithFields("job_id", jobID, "algorithm", algorithm)
}

// WithError returns a logger with error context
func (l *Logger) WithError(err error) *Logger {
	if err == nil {
		return l
	}
	return l.WithFields("error", err.Error())
}

// Connection logging helpers

// LogConnection logs connection events
func (l *Logger) LogConnection(event, remoteAddr string) {
	l.Info("connection event",
		"event", event,
		"remote_addr", remoteAddr,
	)
}

// LogPoolMessage logs pool protocol messages (debug level)
func (l *Logger) LogPoolMessage(direction, message string) {
	l.Debug("pool message",
		"direction", direction,
		"message", message,
	)
}

// Mining-specific logging helpers

// LogShareFound logs a share discovered by a worker
func (l *Logger) LogShareFound(jobID string, nonce uint64) {
	l.Info("share found",
		"job_id", jobID,
		"nonce", nonce,
	)
}

// LogShareSubmitted logs a share submission to the coordinator
func (l *Logger) LogShareSubmitted(jobID string, nonce uint64) {
	l.Info("share submitted",
		"job_id", jobID,
		"nonce", nonce,
	)
}

// LogJobReceived logs receipt of a new mining job
func (l *Logger) LogJobReceived(jobID string, algorithm string, blobSize int) {
	l.Info("job received",
		"job_id", jobID,
		"algorithm", algorithm,
		"blob_size", blobSize,
	)
}

// LogHashrate logs a periodic hashrate report
func (l *Logger) LogHashrate(hashrate float64, accepted, rejected uint64) {
	l.Info("hashrate report",
		"hashrate_hs", hashrate,
		"shares_accepted", accepted,
		"shares_rejected", rejected,
	)
}
