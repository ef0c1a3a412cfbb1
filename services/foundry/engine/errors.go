// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package engine ties the repair subsystem together: a graph-aware
// orchestrator that visits components leaves-first, and a recursive
// build-fix controller that loops project-wide validation and targeted
// repair until the tree is clean or a budget runs out.
//
// The controller owns all session-scoped mutable state (attempt counters,
// build history); nothing here is an ambient global, so independent repair
// sessions can run side by side in one process.
package engine

import "errors"

// Sentinel errors for orchestration operations.
var (
	// ErrInvalidInput is returned for nil contexts or missing collaborators.
	ErrInvalidInput = errors.New("invalid input")

	// ErrToolUnavailable is returned when a project validator cannot be
	// executed. Callers degrade to zero findings; it never aborts a session.
	ErrToolUnavailable = errors.New("tool unavailable")
)
