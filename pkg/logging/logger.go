// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

// Package logging provides structured logging for Foundry components.
//
// The defaults follow Unix CLI conventions: human-readable text on
// stderr. Long-running services enable an additional JSON file sink so
// repair sessions leave a machine-parseable trail next to the audit
// store.
//
// # Basic Usage
//
//	logger := logging.Default()
//	logger.Info("starting repair session", "session_id", id)
//
// # File Logging
//
//	logger, err := logging.New(logging.Config{
//	    Level:   logging.LevelInfo,
//	    LogDir:  "~/.foundry/logs",
//	    Service: "foundry",
//	})
//	defer logger.Close() // flushes and closes the file sink
//
// This creates log files named {service}_{date}.log in JSON format.
//
// # Security Considerations
//
// This package does NOT automatically redact sensitive data. Callers
// must ensure API keys and generated source content are not logged
// wholesale; log metadata (lengths, hashes, counts) instead.
package logging

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"
)

// =============================================================================
// LEVELS
// =============================================================================

// Level represents log severity, ordered Debug < Info < Warn < Error.
type Level int

const (
	// LevelDebug is for development troubleshooting.
	LevelDebug Level = iota

	// LevelInfo is for normal operational messages.
	LevelInfo

	// LevelWarn is for recoverable issues (retries, degraded mode).
	LevelWarn

	// LevelError is for operation failures the system survives.
	LevelError
)

// String returns the level name.
func (l Level) String() string {
	switch l {
	case LevelDebug:
		return "DEBUG"
	case LevelInfo:
		return "INFO"
	case LevelWarn:
		return "WARN"
	case LevelError:
		return "ERROR"
	default:
		return "UNKNOWN"
	}
}

// ParseLevel converts a config string to a Level. Unknown values
// default to LevelInfo.
func ParseLevel(s string) Level {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "debug":
		return LevelDebug
	case "warn", "warning":
		return LevelWarn
	case "error":
		return LevelError
	default:
		return LevelInfo
	}
}

func (l Level) toSlogLevel() slog.Level {
	switch l {
	case LevelDebug:
		return slog.LevelDebug
	case LevelWarn:
		return slog.LevelWarn
	case LevelError:
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

// =============================================================================
// CONFIGURATION
// =============================================================================

// Config configures the Logger. The zero value writes Info+ text to
// stderr with no file sink.
type Config struct {
	// Level sets the minimum log level. Default: LevelInfo.
	Level Level

	// LogDir enables JSON file logging in the given directory.
	// Supports a leading "~" for the user home. The directory is
	// created if missing. Empty disables the file sink.
	LogDir string

	// Service names the file sink: {service}_{date}.log.
	// Default: "foundry".
	Service string

	// JSON switches the stderr sink to JSON format as well.
	JSON bool

	// Output overrides the primary sink. Used by tests; defaults to
	// os.Stderr.
	Output io.Writer
}

// =============================================================================
// LOGGER
// =============================================================================

// Logger is a slog.Logger with an optional file sink and a Close that
// flushes it.
//
// Thread Safety: Safe for concurrent use.
type Logger struct {
	*slog.Logger

	mu   sync.Mutex
	file *os.File
}

// New creates a Logger from the configuration.
//
// Description:
//
//	The primary sink is text or JSON on the configured output. When
//	LogDir is set, a JSON file sink is added alongside it; a failure to
//	open the file degrades to primary-only logging with a warning
//	rather than failing the caller.
//
// Inputs:
//
//	cfg - Logger configuration.
//
// Outputs:
//
//	*Logger - The configured logger, never nil. Call Close when a file
//	sink is in use.
func New(cfg Config) *Logger {
	out := cfg.Output
	if out == nil {
		out = os.Stderr
	}
	service := cfg.Service
	if service == "" {
		service = "foundry"
	}

	logger := &Logger{}
	writers := []io.Writer{out}

	if cfg.LogDir != "" {
		file, err := openLogFile(cfg.LogDir, service)
		if err != nil {
			fmt.Fprintf(os.Stderr, "logging: file sink disabled: %v\n", err)
		} else {
			logger.file = file
			writers = append(writers, file)
		}
	}

	opts := &slog.HandlerOptions{Level: cfg.Level.toSlogLevel()}
	var handler slog.Handler
	switch {
	case cfg.JSON:
		handler = slog.NewJSONHandler(io.MultiWriter(writers...), opts)
	case logger.file != nil:
		// Mixed sinks: text for the terminal, JSON for the file.
		handler = splitHandler{
			slog.NewTextHandler(out, opts),
			slog.NewJSONHandler(logger.file, opts),
		}
	default:
		handler = slog.NewTextHandler(out, opts)
	}

	logger.Logger = slog.New(handler).With(slog.String("service", service))
	return logger
}

// Default returns a stderr text logger at Info level.
func Default() *Logger {
	return New(Config{})
}

// Close flushes and closes the file sink, if any. Safe to call
// multiple times and on loggers without a file sink.
func (l *Logger) Close() error {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.file == nil {
		return nil
	}
	file := l.file
	l.file = nil
	if err := file.Sync(); err != nil {
		file.Close()
		return fmt.Errorf("flushing log file: %w", err)
	}
	return file.Close()
}

// splitHandler fans one record out to every wrapped handler.
type splitHandler []slog.Handler

func (h splitHandler) Enabled(ctx context.Context, level slog.Level) bool {
	for _, inner := range h {
		if inner.Enabled(ctx, level) {
			return true
		}
	}
	return false
}

func (h splitHandler) Handle(ctx context.Context, record slog.Record) error {
	var firstErr error
	for _, inner := range h {
		if !inner.Enabled(ctx, record.Level) {
			continue
		}
		if err := inner.Handle(ctx, record.Clone()); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}

func (h splitHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	out := make(splitHandler, len(h))
	for i, inner := range h {
		out[i] = inner.WithAttrs(attrs)
	}
	return out
}

func (h splitHandler) WithGroup(name string) slog.Handler {
	out := make(splitHandler, len(h))
	for i, inner := range h {
		out[i] = inner.WithGroup(name)
	}
	return out
}

// openLogFile creates the log directory and opens the dated file.
func openLogFile(dir, service string) (*os.File, error) {
	if strings.HasPrefix(dir, "~") {
		home, err := os.UserHomeDir()
		if err != nil {
			return nil, fmt.Errorf("expanding log directory: %w", err)
		}
		dir = filepath.Join(home, strings.TrimPrefix(dir, "~"))
	}
	if err := os.MkdirAll(dir, 0750); err != nil {
		return nil, fmt.Errorf("creating log directory %s: %w", dir, err)
	}

	name := fmt.Sprintf("%s_%s.log", service, time.Now().Format("2006-01-02"))
	file, err := os.OpenFile(filepath.Join(dir, name), os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0640)
	if err != nil {
		return nil, fmt.Errorf("opening log file: %w", err)
	}
	return file, nil
}
