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
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/AleutianAI/FoundryFOSS/services/foundry/component"
	"github.com/AleutianAI/FoundryFOSS/services/foundry/engine"
)

func openTestStore(t *testing.T) *Store {
	t.Helper()
	s, err := Open(InMemoryConfig())
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })
	return s
}

// TestRecordAndReadAttempts verifies insertion order and session isolation.
func TestRecordAndReadAttempts(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	for i := 1; i <= 3; i++ {
		err := s.RecordAttempt(ctx, "sess-1", component.BuildAttempt{
			AttemptNumber:    i,
			DiagnosticsFound: i * 10,
		})
		require.NoError(t, err)
	}
	// Records for another session must not leak into the scan.
	require.NoError(t, s.RecordAttempt(ctx, "sess-2", component.BuildAttempt{AttemptNumber: 99}))

	attempts, err := s.Attempts(ctx, "sess-1")
	require.NoError(t, err)
	require.Len(t, attempts, 3)
	for i, a := range attempts {
		assert.Equal(t, i+1, a.AttemptNumber, "insertion order not preserved")
	}
}

// TestReopenedStoreContinuesSequence verifies the append-only contract
// survives a process restart: numbering resumes after existing records
// instead of restarting at 1 and overwriting them.
func TestReopenedStoreContinuesSequence(t *testing.T) {
	cfg := DefaultConfig(t.TempDir())
	cfg.GCInterval = 0
	ctx := context.Background()

	s, err := Open(cfg)
	require.NoError(t, err)
	require.NoError(t, s.RecordAttempt(ctx, "sess-1", component.BuildAttempt{AttemptNumber: 1}))
	require.NoError(t, s.RecordAttempt(ctx, "sess-1", component.BuildAttempt{AttemptNumber: 2}))
	require.NoError(t, s.Close())

	s, err = Open(cfg)
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })
	require.NoError(t, s.RecordAttempt(ctx, "sess-1", component.BuildAttempt{AttemptNumber: 3}))

	attempts, err := s.Attempts(ctx, "sess-1")
	require.NoError(t, err)
	require.Len(t, attempts, 3)
	for i, a := range attempts {
		assert.Equal(t, i+1, a.AttemptNumber, "record %d overwritten or out of order", i)
	}
}

func TestRecordAndReadFixes(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	entry := component.FixHistoryEntry{
		Component:    "CartSummary",
		Depth:        2,
		ErrorsFixed:  1,
		TotalErrors:  1,
		Timestamp:    time.Now().UTC().Truncate(time.Second),
		FallbackUsed: true,
	}
	require.NoError(t, s.RecordFix(ctx, "sess-1", entry))

	fixes, err := s.Fixes(ctx, "sess-1")
	require.NoError(t, err)
	require.Len(t, fixes, 1)
	assert.Equal(t, entry, fixes[0])
}

func TestSaveAndLoadReport(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	report := &engine.RecursiveBuildFixResult{
		SessionID:       "sess-1",
		Success:         true,
		AttemptsUsed:    2,
		TotalErrors:     2,
		TotalFixed:      2,
		ComponentsFixed: []string{"A", "E"},
	}
	require.NoError(t, s.SaveReport(ctx, "sess-1", report))

	loaded, err := s.Report(ctx, "sess-1")
	require.NoError(t, err)
	assert.Equal(t, "sess-1", loaded.SessionID)
	assert.True(t, loaded.Success)
	assert.Equal(t, 2, loaded.TotalFixed)
	assert.Equal(t, []string{"A", "E"}, loaded.ComponentsFixed)
}

func TestReportNotFound(t *testing.T) {
	s := openTestStore(t)
	_, err := s.Report(context.Background(), "missing")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestEmptySessionIDRejected(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	assert.ErrorIs(t, s.RecordAttempt(ctx, "", component.BuildAttempt{}), ErrInvalidInput)
	assert.ErrorIs(t, s.SaveReport(ctx, "", &engine.RecursiveBuildFixResult{}), ErrInvalidInput)
	_, err := s.Report(ctx, "")
	assert.ErrorIs(t, err, ErrInvalidInput)
}

func TestPersistentStoreRequiresPath(t *testing.T) {
	_, err := Open(Config{})
	assert.ErrorIs(t, err, ErrInvalidInput)
}
