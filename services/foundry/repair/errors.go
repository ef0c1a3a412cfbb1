// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package repair asks an external code-repair oracle for corrected file
// content and verifies the result, falling back to a deterministic stub
// when repair cannot converge.
//
// The engine memoizes error fingerprints per component for the lifetime
// of a session: submitting the same diagnostic set twice cannot trigger a
// second oracle call, because repeating an unproductive repair wastes
// oracle budget and cannot converge. Writes are always full-file
// replacements, never partial patches, so the tree is never left in an
// inconsistent intermediate state.
package repair

import "errors"

// Sentinel errors for repair operations.
var (
	// ErrInvalidInput is returned for nil contexts or empty metadata.
	ErrInvalidInput = errors.New("invalid input")

	// ErrOracleFailed is returned when the repair oracle is unreachable,
	// times out, or returns unusable content. Callers log it and count
	// the attempt; it never aborts a session.
	ErrOracleFailed = errors.New("repair oracle failed")
)
