// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package repair

import (
	"bytes"
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/AleutianAI/FoundryFOSS/services/foundry/check"
	"github.com/AleutianAI/FoundryFOSS/services/foundry/component"
)

var tracer = otel.Tracer("foundry.repair")

// Checker re-validates a component after its file has been rewritten.
// *check.Checker satisfies it; tests substitute fakes.
type Checker interface {
	Check(ctx context.Context, meta component.Metadata) (*check.Result, error)
}

// Outcome reports what one Fix call did to one component.
//
// Thread Safety: Immutable after creation.
type Outcome struct {
	// Component is the component's name.
	Component string `json:"component"`

	// Fingerprint identifies the diagnostic set this fix addressed.
	Fingerprint string `json:"fingerprint"`

	// CodeChanged is true when the file on disk was rewritten.
	CodeChanged bool `json:"code_changed"`

	// Progress is true when the post-fix error count is strictly lower
	// than the pre-fix count.
	Progress bool `json:"progress"`

	// FallbackUsed is true when a synthesized stub replaced the file.
	FallbackUsed bool `json:"fallback_used"`

	// ErrorsBefore is the error count going into the fix.
	ErrorsBefore int `json:"errors_before"`

	// ErrorsAfter is the error count after re-validation.
	ErrorsAfter int `json:"errors_after"`

	// Duration covers the whole fix, oracle round trip included.
	Duration time.Duration `json:"duration"`
}

// DefaultMaxAttempts is the per-component repair budget within a session.
const DefaultMaxAttempts = 3

// Engine drives oracle-backed repair of single components.
//
// Description:
//
//	For each component the engine keeps two pieces of session state: the
//	set of diagnostic fingerprints already sent to the oracle, and a
//	count of repair attempts. A fingerprint seen a second time skips the
//	oracle entirely, and a component over its attempt budget is replaced
//	with a deterministic stub. Both guards exist to stop the loop from
//	burning oracle calls on inputs that have already failed to converge.
//
//	Every write is a full-file replacement followed by re-validation, so
//	an Outcome always reflects the actual on-disk state.
//
// Thread Safety: Safe for concurrent use. State is guarded by a mutex;
// concurrent fixes of different components proceed independently.
type Engine struct {
	root    string
	oracle  Oracle
	checker Checker
	logger  *slog.Logger

	maxAttempts int

	mu        sync.Mutex
	attempted map[string]map[string]struct{}
	attempts  map[string]int
}

// EngineOption configures the Engine.
type EngineOption func(*Engine)

// WithMaxAttempts sets the per-component repair budget.
func WithMaxAttempts(n int) EngineOption {
	return func(e *Engine) { e.maxAttempts = n }
}

// WithEngineLogger sets the logger.
func WithEngineLogger(logger *slog.Logger) EngineOption {
	return func(e *Engine) { e.logger = logger }
}

// NewEngine creates a repair engine rooted at the project directory.
//
// Inputs:
//
//	root - Absolute path to the generated project root.
//	oracle - The repair oracle. Must not be nil.
//	checker - Re-validates components after writes. Must not be nil.
//	opts - Optional configuration.
//
// Outputs:
//
//	*Engine - The configured engine, never nil.
func NewEngine(root string, oracle Oracle, checker Checker, opts ...EngineOption) *Engine {
	e := &Engine{
		root:        root,
		oracle:      oracle,
		checker:     checker,
		maxAttempts: DefaultMaxAttempts,
		attempted:   make(map[string]map[string]struct{}),
		attempts:    make(map[string]int),
	}
	for _, opt := range opts {
		opt(e)
	}
	if e.logger == nil {
		e.logger = slog.Default()
	}
	return e
}

// Fix repairs one component's diagnostics.
//
// Description:
//
//	Computes the fingerprint of the diagnostic set and consults the
//	session memo. A repeated fingerprint, or a component over its
//	attempt budget, goes straight to fallback synthesis without an
//	oracle call. Otherwise the oracle proposes a full replacement; a
//	proposal identical to the current content also degrades to the
//	fallback, since resubmitting it could only repeat the failure.
//
//	After any write the component is re-checked and Progress is set iff
//	the error count strictly decreased. An oracle failure is logged and
//	counted against the budget but returns a no-change outcome rather
//	than an error; repair degradation must never abort a session.
//
// Inputs:
//
//	ctx - Context for cancellation.
//	meta - The component to repair.
//	diags - The diagnostics to address. Must be non-empty.
//
// Outputs:
//
//	*Outcome - What happened, never nil on success.
//	error - Non-nil only for invalid input or unreadable/unwritable files.
//
// Thread Safety: Safe for concurrent use.
func (e *Engine) Fix(ctx context.Context, meta component.Metadata, diags []component.Diagnostic) (*Outcome, error) {
	if ctx == nil {
		return nil, fmt.Errorf("%w: ctx must not be nil", ErrInvalidInput)
	}
	if meta.Name == "" || meta.FilePath == "" {
		return nil, fmt.Errorf("%w: component needs name and file path", ErrInvalidInput)
	}
	if len(diags) == 0 {
		return nil, fmt.Errorf("%w: nothing to fix for %s", ErrInvalidInput, meta.Name)
	}

	fp := component.Fingerprint(diags)
	ctx, span := tracer.Start(ctx, "Engine.Fix",
		trace.WithAttributes(
			attribute.String("repair.component", meta.Name),
			attribute.String("repair.fingerprint", fp),
		),
	)
	defer span.End()
	start := time.Now()

	errorsBefore := component.CountErrors(diags)

	repeated, overBudget := e.recordAttempt(meta.Name, fp)
	if repeated || overBudget {
		if repeated {
			e.logger.Info("Fingerprint already attempted, skipping oracle",
				slog.String("component", meta.Name),
				slog.String("fingerprint", fp),
			)
			if initMetrics() == nil {
				memoHits.Add(ctx, 1)
			}
		} else {
			e.logger.Info("Repair budget exhausted, synthesizing fallback",
				slog.String("component", meta.Name),
				slog.Int("max_attempts", e.maxAttempts),
			)
		}
		return e.applyFallback(ctx, meta, fp, errorsBefore, start)
	}

	absPath := filepath.Join(e.root, meta.FilePath)
	current, err := os.ReadFile(absPath)
	if err != nil {
		return nil, fmt.Errorf("reading %s: %w", meta.FilePath, err)
	}

	if initMetrics() == nil {
		oracleCalls.Add(ctx, 1)
	}
	corrected, err := e.oracle.Repair(ctx, Request{
		Metadata:    meta,
		Content:     string(current),
		Diagnostics: diags,
	})
	if err != nil {
		// Degrade, never abort: the attempt is already counted, so a
		// flaky oracle eventually lands on the fallback path.
		span.SetAttributes(attribute.Bool("repair.oracle_failed", true))
		e.logger.Warn("Oracle call failed, no change applied",
			slog.String("component", meta.Name),
			slog.String("error", err.Error()),
		)
		return &Outcome{
			Component:    meta.Name,
			Fingerprint:  fp,
			ErrorsBefore: errorsBefore,
			ErrorsAfter:  errorsBefore,
			Duration:     time.Since(start),
		}, nil
	}

	if bytes.Equal([]byte(corrected), current) {
		e.logger.Info("Oracle returned unchanged content, synthesizing fallback",
			slog.String("component", meta.Name),
		)
		return e.applyFallback(ctx, meta, fp, errorsBefore, start)
	}

	errorsAfter, err := e.writeAndRecheck(ctx, meta, corrected)
	if err != nil {
		return nil, err
	}

	outcome := &Outcome{
		Component:    meta.Name,
		Fingerprint:  fp,
		CodeChanged:  true,
		Progress:     errorsAfter < errorsBefore,
		ErrorsBefore: errorsBefore,
		ErrorsAfter:  errorsAfter,
		Duration:     time.Since(start),
	}
	e.observe(ctx, outcome)
	return outcome, nil
}

// applyFallback writes a synthesized stub and re-validates it.
func (e *Engine) applyFallback(ctx context.Context, meta component.Metadata, fp string, errorsBefore int, start time.Time) (*Outcome, error) {
	stub := SynthesizeFallback(meta)
	errorsAfter, err := e.writeAndRecheck(ctx, meta, stub)
	if err != nil {
		return nil, err
	}
	if initMetrics() == nil {
		fallbacksUsed.Add(ctx, 1)
	}
	outcome := &Outcome{
		Component:    meta.Name,
		Fingerprint:  fp,
		CodeChanged:  true,
		Progress:     errorsAfter < errorsBefore,
		FallbackUsed: true,
		ErrorsBefore: errorsBefore,
		ErrorsAfter:  errorsAfter,
		Duration:     time.Since(start),
	}
	e.observe(ctx, outcome)
	return outcome, nil
}

// writeAndRecheck replaces the component's file and returns the new
// error count. The write is always the full file.
func (e *Engine) writeAndRecheck(ctx context.Context, meta component.Metadata, content string) (int, error) {
	absPath := filepath.Join(e.root, meta.FilePath)
	if err := os.WriteFile(absPath, []byte(content), 0o644); err != nil {
		return 0, fmt.Errorf("writing %s: %w", meta.FilePath, err)
	}
	result, err := e.checker.Check(ctx, meta)
	if err != nil {
		return 0, fmt.Errorf("re-checking %s: %w", meta.Name, err)
	}
	return len(result.Errors), nil
}

// recordAttempt updates session state for one fix and reports whether the
// fingerprint was already tried or the component is over budget. A repeated
// fingerprint does not consume budget; it was already paid for.
func (e *Engine) recordAttempt(name, fp string) (repeated, overBudget bool) {
	e.mu.Lock()
	defer e.mu.Unlock()

	seen := e.attempted[name]
	if seen == nil {
		seen = make(map[string]struct{})
		e.attempted[name] = seen
	}
	if _, ok := seen[fp]; ok {
		return true, false
	}
	seen[fp] = struct{}{}

	e.attempts[name]++
	return false, e.attempts[name] > e.maxAttempts
}

// Attempts returns how many repair attempts a component has consumed.
func (e *Engine) Attempts(name string) int {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.attempts[name]
}

func (e *Engine) observe(ctx context.Context, o *Outcome) {
	if initMetrics() != nil {
		return
	}
	repairLatency.Record(ctx, o.Duration.Seconds(),
		metricAttr(attribute.Bool("fallback", o.FallbackUsed)),
	)
	e.logger.Info("Component fix completed",
		slog.String("component", o.Component),
		slog.Bool("progress", o.Progress),
		slog.Bool("fallback", o.FallbackUsed),
		slog.Int("errors_before", o.ErrorsBefore),
		slog.Int("errors_after", o.ErrorsAfter),
		slog.Duration("duration", o.Duration),
	)
}
