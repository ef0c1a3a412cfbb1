// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package component defines the shared data model for the build-and-repair
// engine: generated-unit metadata, normalized diagnostics, error
// fingerprints, and the audit records produced by a repair session.
//
// Metadata is produced once per generated unit by the code-generation
// pipeline and is read-only to this subsystem. Diagnostics are produced
// fresh on every validation pass and never persisted outside audit records.
package component

import (
	"fmt"
	"strings"
	"time"
)

// =============================================================================
// CATEGORY
// =============================================================================

// Category classifies a generated component for priority weighting.
type Category string

const (
	// CategoryUnit is a reusable UI unit (widget-level building block).
	CategoryUnit Category = "unit"

	// CategoryPage is a top-level page assembled from units and services.
	CategoryPage Category = "page"

	// CategoryService is client/service glue (API access, state).
	CategoryService Category = "service"

	// CategoryUtility is shared helper code most other units lean on.
	CategoryUtility Category = "utility"
)

// Valid reports whether the category is one of the known values.
func (c Category) Valid() bool {
	switch c {
	case CategoryUnit, CategoryPage, CategoryService, CategoryUtility:
		return true
	default:
		return false
	}
}

// =============================================================================
// METADATA
// =============================================================================

// Export describes one public symbol a component is expected to expose.
//
// The shape is intentionally loose: it carries just enough for fallback
// synthesis to keep dependents resolving when a component cannot be repaired.
type Export struct {
	// Name is the exported symbol name.
	Name string `yaml:"name" json:"name"`

	// Kind is the symbol kind ("function", "component", "constant", "class").
	Kind string `yaml:"kind" json:"kind"`

	// Signature is an optional human-readable signature hint,
	// e.g. "(items: Item[]) => number".
	Signature string `yaml:"signature,omitempty" json:"signature,omitempty"`
}

// InterfaceDescriptor captures the expected public shape of a component.
//
// Thread Safety: Treat as immutable after creation.
type InterfaceDescriptor struct {
	// Description is a one-line summary of what the component provides.
	Description string `yaml:"description,omitempty" json:"description,omitempty"`

	// Exports are the symbols dependents import from this component.
	Exports []Export `yaml:"exports,omitempty" json:"exports,omitempty"`
}

// Metadata describes one generated source unit and its declared dependencies.
//
// Description:
//
//	Metadata is created by the code-generation collaborator, one record per
//	generated file. Name is unique within a session. Dependencies reference
//	other components by name; names outside the known set are ignored by the
//	graph builder with a warning.
//
// Thread Safety: Read-only to this subsystem. Treat as immutable.
type Metadata struct {
	// Name is the unique component name, e.g. "CartSummary".
	Name string `yaml:"name" json:"name"`

	// FilePath is the component's file, relative to the project root.
	FilePath string `yaml:"file_path" json:"file_path"`

	// Dependencies are the names of components this one imports.
	Dependencies []string `yaml:"dependencies,omitempty" json:"dependencies,omitempty"`

	// Interface is the expected public shape, used to synthesize fallbacks.
	Interface InterfaceDescriptor `yaml:"interface,omitempty" json:"interface,omitempty"`

	// Category weights repair priority (utility > service > unit > page).
	Category Category `yaml:"category" json:"category"`

	// Complexity is a generator-supplied hint ("low", "medium", "high").
	Complexity string `yaml:"complexity,omitempty" json:"complexity,omitempty"`
}

// =============================================================================
// DIAGNOSTICS
// =============================================================================

// Kind identifies the class of problem a diagnostic reports.
type Kind int

const (
	// KindTypeError is a structural or type problem in a single file.
	KindTypeError Kind = iota

	// KindStyleError is a style/convention violation.
	KindStyleError

	// KindImportResolution is an import that does not resolve to a file.
	KindImportResolution

	// KindMissingFile means the component's file does not exist on disk.
	KindMissingFile

	// KindBuildError is a problem reported by the project-wide build.
	KindBuildError
)

// String returns the wire name of the kind.
func (k Kind) String() string {
	switch k {
	case KindTypeError:
		return "type-error"
	case KindStyleError:
		return "style-error"
	case KindImportResolution:
		return "import-resolution"
	case KindMissingFile:
		return "missing-file"
	case KindBuildError:
		return "build-error"
	default:
		return "unknown"
	}
}

// Severity represents how serious a diagnostic is.
type Severity int

const (
	// SeverityWarning notes an issue that does not block the component.
	SeverityWarning Severity = iota

	// SeverityError blocks a component from being considered clean.
	SeverityError
)

// String returns the string representation of the severity.
func (s Severity) String() string {
	switch s {
	case SeverityWarning:
		return "warning"
	case SeverityError:
		return "error"
	default:
		return "unknown"
	}
}

// SeverityFromString parses severity strings from different tools.
//
// Unknown values default to SeverityWarning so a misbehaving tool can
// never block the pipeline on its own.
func SeverityFromString(s string) Severity {
	switch s {
	case "error", "err", "fatal", "critical":
		return SeverityError
	default:
		return SeverityWarning
	}
}

// Location is an optional line/column position inside a file.
type Location struct {
	Line   int `json:"line"`
	Column int `json:"column"`
}

// Diagnostic is a single normalized problem reported by a validator.
//
// Thread Safety: Immutable after creation by a validator.
type Diagnostic struct {
	// Kind classifies the problem.
	Kind Kind `json:"kind"`

	// Code is a tool-specific rule or error code, e.g. "TS2304".
	Code string `json:"code,omitempty"`

	// Message is the human-readable description.
	Message string `json:"message"`

	// Location is the position in the file, when known.
	Location *Location `json:"location,omitempty"`

	// Severity is error or warning.
	Severity Severity `json:"severity"`
}

// Render returns a single-line human-readable form, suitable for
// inclusion in oracle prompts and logs.
func (d Diagnostic) Render() string {
	var sb strings.Builder
	sb.WriteString("[" + d.Kind.String() + "]")
	if d.Code != "" {
		sb.WriteString(" [" + d.Code + "]")
	}
	if d.Location != nil {
		fmt.Fprintf(&sb, " at %d:%d", d.Location.Line, d.Location.Column)
	}
	sb.WriteString(" " + d.Message)
	return sb.String()
}

// CountErrors returns the number of diagnostics with SeverityError.
func CountErrors(diags []Diagnostic) int {
	n := 0
	for _, d := range diags {
		if d.Severity == SeverityError {
			n++
		}
	}
	return n
}

// =============================================================================
// AUDIT RECORDS
// =============================================================================

// FixHistoryEntry records one repair of one component during an
// orchestration pass. Append-only; never mutated after creation.
type FixHistoryEntry struct {
	// Component is the repaired component's name.
	Component string `json:"component"`

	// Depth is the component's dependency depth at fix time.
	Depth int `json:"depth"`

	// ErrorsFixed is how many errors the fix eliminated.
	ErrorsFixed int `json:"errors_fixed"`

	// TotalErrors is how many errors the component had before the fix.
	TotalErrors int `json:"total_errors"`

	// Timestamp is when the fix completed.
	Timestamp time.Time `json:"timestamp"`

	// FallbackUsed is true when a stub replaced the oracle's output.
	FallbackUsed bool `json:"fallback_used"`
}

// BuildAttempt records one iteration of the top-level build-fix loop.
// The ordered sequence of attempts is the session's audit trail.
type BuildAttempt struct {
	// AttemptNumber counts from 1.
	AttemptNumber int `json:"attempt_number"`

	// BuildDurationMs is how long project-wide validation took.
	BuildDurationMs int64 `json:"build_duration_ms"`

	// DiagnosticsFound is the number of diagnostics this attempt saw.
	DiagnosticsFound int `json:"diagnostics_found"`

	// ErrorsFixedThisAttempt is how many errors the fixing phase removed.
	ErrorsFixedThisAttempt int `json:"errors_fixed_this_attempt"`
}
