// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package check

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/AleutianAI/FoundryFOSS/services/foundry/component"
)

var tracer = otel.Tracer("foundry.check")

// Validator is one independent, file-scoped validation pass.
//
// Implementations must be read-only: they receive the file content and
// must never write to the project tree.
type Validator interface {
	// Name identifies the validator in logs and reports.
	Name() string

	// Validate returns normalized diagnostics for one component's file.
	// A non-nil error means the validator itself failed to run (missing
	// tool, timeout); the checker logs it and counts zero findings.
	Validate(ctx context.Context, meta component.Metadata, content []byte) ([]component.Diagnostic, error)
}

// Result is the outcome of checking one component.
//
// Thread Safety: Immutable after creation.
type Result struct {
	// Success is true when no error-severity diagnostics were found.
	Success bool `json:"success"`

	// Errors are diagnostics with SeverityError.
	Errors []component.Diagnostic `json:"errors"`

	// Warnings are diagnostics with SeverityWarning.
	Warnings []component.Diagnostic `json:"warnings"`

	// Duration is how long the full check took.
	Duration time.Duration `json:"duration"`
}

// All returns errors and warnings combined.
func (r *Result) All() []component.Diagnostic {
	out := make([]component.Diagnostic, 0, len(r.Errors)+len(r.Warnings))
	out = append(out, r.Errors...)
	out = append(out, r.Warnings...)
	return out
}

// Checker runs a set of validators against single components in isolation.
//
// Thread Safety: Safe for concurrent use.
type Checker struct {
	root       string
	validators []Validator
	timeout    time.Duration
	logger     *slog.Logger
}

// Option configures the Checker.
type Option func(*Checker)

// WithValidators replaces the default validator set.
func WithValidators(validators ...Validator) Option {
	return func(c *Checker) { c.validators = validators }
}

// WithLogger sets the logger.
func WithLogger(logger *slog.Logger) Option {
	return func(c *Checker) { c.logger = logger }
}

// WithTimeout caps the time a single validator may take.
func WithTimeout(d time.Duration) Option {
	return func(c *Checker) { c.timeout = d }
}

// DefaultTimeout bounds each validator run.
const DefaultTimeout = 30 * time.Second

// New creates a Checker rooted at the project directory.
//
// Description:
//
//	Without WithValidators, the checker runs the default set: structural
//	(tree-sitter), style (external linter, if installed), and import
//	resolution against the project root with the given alias mapping.
//
// Inputs:
//
//	root - Absolute path to the generated project root.
//	aliasRoots - Import alias prefixes mapped to directories relative to
//	root, e.g. {"@/": "src"}. May be nil.
//	opts - Optional configuration.
//
// Outputs:
//
//	*Checker - The configured checker, never nil.
func New(root string, aliasRoots map[string]string, opts ...Option) *Checker {
	c := &Checker{
		root:    root,
		timeout: DefaultTimeout,
	}
	for _, opt := range opts {
		opt(c)
	}
	if c.logger == nil {
		c.logger = slog.Default()
	}
	if c.validators == nil {
		c.validators = []Validator{
			NewSyntaxValidator(),
			NewStyleValidator(DefaultStyleConfig(), c.logger),
			NewImportValidator(root, aliasRoots),
		}
	}
	return c
}

// Check runs every validator against the component's file.
//
// Description:
//
//	Reads the component's file once and hands the content to each
//	validator in turn. Findings are unioned into one result. A missing
//	file short-circuits to a single missing-file error. A validator
//	that fails to run (tool missing, timeout) contributes nothing and
//	logs a warning; it never blocks the pipeline.
//
//	This operation never mutates files.
//
// Inputs:
//
//	ctx - Context for cancellation.
//	meta - The component to check.
//
// Outputs:
//
//	*Result - Unioned findings. Success is true iff zero errors.
//	error - Non-nil only for invalid input; tool failures degrade.
//
// Thread Safety: Safe for concurrent use.
func (c *Checker) Check(ctx context.Context, meta component.Metadata) (*Result, error) {
	if ctx == nil {
		return nil, fmt.Errorf("%w: ctx must not be nil", ErrInvalidInput)
	}
	if meta.Name == "" || meta.FilePath == "" {
		return nil, fmt.Errorf("%w: component needs name and file path", ErrInvalidInput)
	}

	ctx, span := tracer.Start(ctx, "Checker.Check",
		trace.WithAttributes(
			attribute.String("check.component", meta.Name),
			attribute.String("check.file", meta.FilePath),
		),
	)
	defer span.End()
	start := time.Now()

	absPath := filepath.Join(c.root, meta.FilePath)
	content, err := os.ReadFile(absPath)
	if err != nil {
		span.SetAttributes(attribute.Bool("check.missing_file", true))
		return &Result{
			Success: false,
			Errors: []component.Diagnostic{{
				Kind:     component.KindMissingFile,
				Message:  fmt.Sprintf("component file %s does not exist", meta.FilePath),
				Severity: component.SeverityError,
			}},
			Duration: time.Since(start),
		}, nil
	}

	var errDiags, warnDiags []component.Diagnostic
	for _, v := range c.validators {
		vctx, cancel := context.WithTimeout(ctx, c.timeout)
		diags, verr := v.Validate(vctx, meta, content)
		cancel()

		if verr != nil {
			// A broken validator must never block the pipeline.
			c.logger.Warn("Validator failed to run, counting zero findings",
				slog.String("validator", v.Name()),
				slog.String("component", meta.Name),
				slog.String("error", verr.Error()),
			)
			continue
		}
		for _, d := range diags {
			if d.Severity == component.SeverityError {
				errDiags = append(errDiags, d)
			} else {
				warnDiags = append(warnDiags, d)
			}
		}
	}

	result := &Result{
		Success:  len(errDiags) == 0,
		Errors:   errDiags,
		Warnings: warnDiags,
		Duration: time.Since(start),
	}

	span.SetAttributes(
		attribute.Int("check.errors", len(errDiags)),
		attribute.Int("check.warnings", len(warnDiags)),
	)
	c.logger.Debug("Component check completed",
		slog.String("component", meta.Name),
		slog.Int("errors", len(errDiags)),
		slog.Int("warnings", len(warnDiags)),
		slog.Duration("duration", result.Duration),
	)
	return result, nil
}
