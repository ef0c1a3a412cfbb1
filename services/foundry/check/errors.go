// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package check runs independent, file-scoped validators against a single
// generated component and returns a normalized diagnostic list.
//
// Three validators ship by default: a tree-sitter structural validator, a
// style linter driven by an external tool with a pluggable output parser,
// and a static import resolver. The checker never mutates files; it is
// read-only and side-effect-free aside from logging. A validator that
// fails to run contributes zero diagnostics and a warning — a broken tool
// must never block the pipeline.
package check

import "errors"

// Sentinel errors for check operations.
var (
	// ErrInvalidInput is returned for nil contexts or empty metadata.
	ErrInvalidInput = errors.New("invalid input")

	// ErrUnsupportedLanguage is returned when no validator understands
	// the component's file type.
	ErrUnsupportedLanguage = errors.New("unsupported language")

	// ErrToolUnavailable is returned by a validator whose underlying
	// tool is missing or timed out. The checker degrades to zero
	// findings for that validator.
	ErrToolUnavailable = errors.New("validator tool unavailable")
)
