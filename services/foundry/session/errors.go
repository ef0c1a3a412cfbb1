// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package session persists repair-session audit records in BadgerDB.
//
// BadgerDB gives local embedded storage with low-latency appends, which
// fits the write pattern here: many small append-only records per session
// (build attempts, fix history) plus one final report, retrievable after
// process restart for operator inspection.
//
// License: BadgerDB is Apache 2.0 licensed (github.com/dgraph-io/badger).
package session

import "errors"

// Sentinel errors for session storage.
var (
	// ErrInvalidInput is returned for empty session IDs or nil records.
	ErrInvalidInput = errors.New("invalid input")

	// ErrNotFound is returned when a session has no stored report.
	ErrNotFound = errors.New("session not found")
)
