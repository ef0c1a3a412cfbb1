// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package session

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"strconv"
	"sync"
	"time"

	"github.com/dgraph-io/badger/v4"

	"github.com/AleutianAI/FoundryFOSS/services/foundry/component"
	"github.com/AleutianAI/FoundryFOSS/services/foundry/engine"
)

// Config holds configuration for the session store.
type Config struct {
	// Path is the directory for BadgerDB files.
	// Required unless InMemory is true.
	Path string

	// InMemory enables in-memory mode (no disk persistence).
	// Useful for testing.
	InMemory bool

	// SyncWrites enables synchronous writes for durability.
	SyncWrites bool

	// GCInterval is how often to run value log garbage collection.
	// Zero disables GC; in-memory stores never run it.
	GCInterval time.Duration

	// GCDiscardRatio is the minimum ratio of discardable data before GC.
	GCDiscardRatio float64

	// Logger receives store and BadgerDB log output.
	// If nil, BadgerDB's internal logging is disabled.
	Logger *slog.Logger
}

// DefaultConfig returns production defaults: durable writes and periodic GC.
func DefaultConfig(path string) Config {
	return Config{
		Path:           path,
		SyncWrites:     true,
		GCInterval:     5 * time.Minute,
		GCDiscardRatio: 0.5,
	}
}

// InMemoryConfig returns a configuration for tests: no disk I/O, no GC.
func InMemoryConfig() Config {
	return Config{InMemory: true}
}

// badgerLogger adapts slog.Logger to BadgerDB's Logger interface.
type badgerLogger struct {
	logger *slog.Logger
}

func (l *badgerLogger) Errorf(format string, args ...interface{}) {
	l.logger.Error(fmt.Sprintf(format, args...))
}

func (l *badgerLogger) Warningf(format string, args ...interface{}) {
	l.logger.Warn(fmt.Sprintf(format, args...))
}

func (l *badgerLogger) Infof(format string, args ...interface{}) {
	l.logger.Info(fmt.Sprintf(format, args...))
}

func (l *badgerLogger) Debugf(format string, args ...interface{}) {
	l.logger.Debug(fmt.Sprintf(format, args...))
}

// Store is the append-only audit store for repair sessions.
//
// Description:
//
//	Records are keyed session/<id>/attempt/<seq> and
//	session/<id>/fix/<seq> with zero-padded sequence numbers, so an
//	ordered key scan reproduces insertion order. The final report lives
//	at session/<id>/report. Nothing is ever overwritten except the
//	report, and nothing is deleted by this subsystem.
//
//	Store satisfies engine.Recorder.
//
// Thread Safety: Safe for concurrent use.
type Store struct {
	db     *badger.DB
	logger *slog.Logger

	mu   sync.Mutex
	seqs map[string]uint64

	gcStop chan struct{}
	gcDone chan struct{}
}

// Open opens the session store with the given configuration.
//
// Inputs:
//
//	cfg - Store configuration. Path is required unless InMemory is true.
//
// Outputs:
//
//	*Store - The opened store. Caller must call Close() when done.
//	error - Non-nil if the path is invalid or the database cannot open.
func Open(cfg Config) (*Store, error) {
	if !cfg.InMemory && cfg.Path == "" {
		return nil, fmt.Errorf("%w: path is required for a persistent store", ErrInvalidInput)
	}

	var opts badger.Options
	if cfg.InMemory {
		opts = badger.DefaultOptions("").WithInMemory(true)
	} else {
		if err := os.MkdirAll(cfg.Path, 0750); err != nil {
			return nil, fmt.Errorf("create store directory %s: %w", cfg.Path, err)
		}
		opts = badger.DefaultOptions(cfg.Path)
	}
	opts = opts.WithSyncWrites(cfg.SyncWrites).WithNumVersionsToKeep(1)

	if cfg.Logger != nil {
		opts = opts.WithLogger(&badgerLogger{logger: cfg.Logger})
	} else {
		opts = opts.WithLogger(nil)
	}

	db, err := badger.Open(opts)
	if err != nil {
		return nil, fmt.Errorf("open session store: %w", err)
	}

	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	s := &Store{
		db:     db,
		logger: logger,
		seqs:   make(map[string]uint64),
	}

	if cfg.GCInterval > 0 && !cfg.InMemory {
		s.gcStop = make(chan struct{})
		s.gcDone = make(chan struct{})
		go s.runGC(cfg.GCInterval, cfg.GCDiscardRatio)
	}
	return s, nil
}

// Close stops garbage collection and closes the database.
func (s *Store) Close() error {
	if s.gcStop != nil {
		close(s.gcStop)
		<-s.gcDone
		s.gcStop = nil
	}
	return s.db.Close()
}

// RecordAttempt appends one build attempt to a session's audit trail.
// Satisfies engine.Recorder.
func (s *Store) RecordAttempt(ctx context.Context, sessionID string, attempt component.BuildAttempt) error {
	return s.append(ctx, sessionID, "attempt", attempt)
}

// RecordFix appends one fix record to a session's audit trail.
// Satisfies engine.Recorder.
func (s *Store) RecordFix(ctx context.Context, sessionID string, fix component.FixHistoryEntry) error {
	return s.append(ctx, sessionID, "fix", fix)
}

// SaveReport stores the session's final report, replacing any prior one.
func (s *Store) SaveReport(ctx context.Context, sessionID string, report *engine.RecursiveBuildFixResult) error {
	if sessionID == "" || report == nil {
		return fmt.Errorf("%w: session ID and report are required", ErrInvalidInput)
	}
	if err := ctx.Err(); err != nil {
		return err
	}

	value, err := json.Marshal(report)
	if err != nil {
		return fmt.Errorf("encoding report: %w", err)
	}
	return s.db.Update(func(txn *badger.Txn) error {
		return txn.Set(reportKey(sessionID), value)
	})
}

// Report loads a session's final report.
func (s *Store) Report(ctx context.Context, sessionID string) (*engine.RecursiveBuildFixResult, error) {
	if sessionID == "" {
		return nil, fmt.Errorf("%w: session ID is required", ErrInvalidInput)
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	var report engine.RecursiveBuildFixResult
	err := s.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get(reportKey(sessionID))
		if err != nil {
			if err == badger.ErrKeyNotFound {
				return fmt.Errorf("%w: %s", ErrNotFound, sessionID)
			}
			return err
		}
		return item.Value(func(val []byte) error {
			return json.Unmarshal(val, &report)
		})
	})
	if err != nil {
		return nil, err
	}
	return &report, nil
}

// Attempts returns a session's build attempts in insertion order.
func (s *Store) Attempts(ctx context.Context, sessionID string) ([]component.BuildAttempt, error) {
	var attempts []component.BuildAttempt
	err := s.scan(ctx, sessionID, "attempt", func(val []byte) error {
		var a component.BuildAttempt
		if err := json.Unmarshal(val, &a); err != nil {
			return err
		}
		attempts = append(attempts, a)
		return nil
	})
	return attempts, err
}

// Fixes returns a session's fix records in insertion order.
func (s *Store) Fixes(ctx context.Context, sessionID string) ([]component.FixHistoryEntry, error) {
	var fixes []component.FixHistoryEntry
	err := s.scan(ctx, sessionID, "fix", func(val []byte) error {
		var f component.FixHistoryEntry
		if err := json.Unmarshal(val, &f); err != nil {
			return err
		}
		fixes = append(fixes, f)
		return nil
	})
	return fixes, err
}

// append writes one record under the next sequence number.
func (s *Store) append(ctx context.Context, sessionID, kind string, record any) error {
	if sessionID == "" {
		return fmt.Errorf("%w: session ID is required", ErrInvalidInput)
	}
	if err := ctx.Err(); err != nil {
		return err
	}

	value, err := json.Marshal(record)
	if err != nil {
		return fmt.Errorf("encoding %s record: %w", kind, err)
	}

	seqKey := sessionID + "/" + kind
	s.mu.Lock()
	seq, seeded := s.seqs[seqKey]
	if !seeded {
		// A reopened store must continue numbering after existing
		// records, not restart at 1 and overwrite them.
		last, err := s.lastSeq(sessionID, kind)
		if err != nil {
			s.mu.Unlock()
			return fmt.Errorf("seeding %s sequence: %w", kind, err)
		}
		seq = last
	}
	seq++
	s.seqs[seqKey] = seq
	s.mu.Unlock()

	key := fmt.Sprintf("session/%s/%s/%012d", sessionID, kind, seq)
	return s.db.Update(func(txn *badger.Txn) error {
		return txn.Set([]byte(key), value)
	})
}

// lastSeq finds the highest persisted sequence number for one record
// kind, zero when none exist.
func (s *Store) lastSeq(sessionID, kind string) (uint64, error) {
	prefix := []byte(fmt.Sprintf("session/%s/%s/", sessionID, kind))
	var last uint64
	err := s.db.View(func(txn *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.Reverse = true
		opts.PrefetchValues = false
		it := txn.NewIterator(opts)
		defer it.Close()

		seekKey := append(append([]byte{}, prefix...), 0xff)
		it.Seek(seekKey)
		if !it.ValidForPrefix(prefix) {
			return nil
		}
		key := it.Item().Key()
		n, err := strconv.ParseUint(string(key[len(prefix):]), 10, 64)
		if err != nil {
			return fmt.Errorf("malformed sequence key %q: %w", key, err)
		}
		last = n
		return nil
	})
	return last, err
}

// scan iterates a session's records of one kind in key order.
func (s *Store) scan(ctx context.Context, sessionID, kind string, fn func(val []byte) error) error {
	if sessionID == "" {
		return fmt.Errorf("%w: session ID is required", ErrInvalidInput)
	}
	if err := ctx.Err(); err != nil {
		return err
	}

	prefix := []byte(fmt.Sprintf("session/%s/%s/", sessionID, kind))
	return s.db.View(func(txn *badger.Txn) error {
		it := txn.NewIterator(badger.DefaultIteratorOptions)
		defer it.Close()
		for it.Seek(prefix); it.ValidForPrefix(prefix); it.Next() {
			if err := it.Item().Value(fn); err != nil {
				return err
			}
		}
		return nil
	})
}

func reportKey(sessionID string) []byte {
	return []byte("session/" + sessionID + "/report")
}

func (s *Store) runGC(interval time.Duration, ratio float64) {
	defer close(s.gcDone)

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-s.gcStop:
			return
		case <-ticker.C:
			// ErrNoRewrite means no GC was needed, not an error.
			if err := s.db.RunValueLogGC(ratio); err != nil && err != badger.ErrNoRewrite {
				s.logger.Warn("Session store value log GC error",
					slog.String("error", err.Error()))
			}
		}
	}
}
