// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package engine

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"sync"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"golang.org/x/sync/errgroup"

	"github.com/AleutianAI/FoundryFOSS/services/foundry/check"
	"github.com/AleutianAI/FoundryFOSS/services/foundry/component"
	"github.com/AleutianAI/FoundryFOSS/services/foundry/graph"
	"github.com/AleutianAI/FoundryFOSS/services/foundry/repair"
)

var tracer = otel.Tracer("foundry.engine")

// ComponentChecker validates one component in isolation.
// *check.Checker satisfies it.
type ComponentChecker interface {
	Check(ctx context.Context, meta component.Metadata) (*check.Result, error)
}

// ComponentFixer repairs one component's diagnostics.
// *repair.Engine satisfies it.
type ComponentFixer interface {
	Fix(ctx context.Context, meta component.Metadata, diags []component.Diagnostic) (*repair.Outcome, error)
}

// RunResult aggregates one orchestration pass.
//
// Thread Safety: Immutable after creation.
type RunResult struct {
	// Success is true when the pass left zero known errors, or at least
	// one fix made progress.
	Success bool `json:"success"`

	// TotalErrors is the number of error diagnostics found this pass.
	TotalErrors int `json:"total_errors"`

	// TotalFixed is the number of errors eliminated this pass.
	TotalFixed int `json:"total_fixed"`

	// FixedComponents lists components whose fix made progress, sorted.
	FixedComponents []string `json:"fixed_components"`

	// FixHistory is the append-only log of every fix performed.
	FixHistory []component.FixHistoryEntry `json:"fix_history"`

	// Graph summarizes the dependency graph the pass walked.
	Graph graph.Summary `json:"graph"`
}

// DefaultConcurrency bounds same-depth parallel checks and fixes.
const DefaultConcurrency = 4

// Orchestrator walks the dependency graph leaves-first, checking and
// repairing each component.
//
// Description:
//
//	Components are grouped by dependency depth and visited in ascending
//	depth order; no component is visited before every one of its
//	dependencies has been visited in the same pass. Repairing a leaf
//	before its consumers means consumer errors caused by the broken leaf
//	are gone by the time the consumer is checked, instead of being
//	patched twice.
//
//	Components at the same depth share no dependency edges and each owns
//	exactly one file, so same-depth visits run concurrently under a
//	bounded limit that respects oracle rate limits.
//
// Thread Safety: Safe for concurrent use within one session.
type Orchestrator struct {
	graph   *graph.Graph
	meta    map[string]component.Metadata
	checker ComponentChecker
	fixer   ComponentFixer
	logger  *slog.Logger

	concurrency int

	mu   sync.Mutex
	seen map[string]map[string]struct{}
}

// OrchestratorOption configures the Orchestrator.
type OrchestratorOption func(*Orchestrator)

// WithConcurrency bounds same-depth parallel visits.
func WithConcurrency(n int) OrchestratorOption {
	return func(o *Orchestrator) {
		if n > 0 {
			o.concurrency = n
		}
	}
}

// WithOrchestratorLogger sets the logger.
func WithOrchestratorLogger(logger *slog.Logger) OrchestratorOption {
	return func(o *Orchestrator) { o.logger = logger }
}

// NewOrchestrator creates an orchestrator over one session's components.
//
// Inputs:
//
//	g - The session dependency graph. Must not be nil.
//	components - Metadata for every graph node.
//	checker - Isolation checker. Must not be nil.
//	fixer - Repair engine. Must not be nil.
//	opts - Optional configuration.
//
// Outputs:
//
//	*Orchestrator - The configured orchestrator.
//	error - ErrInvalidInput when a collaborator is missing.
func NewOrchestrator(g *graph.Graph, components []component.Metadata, checker ComponentChecker, fixer ComponentFixer, opts ...OrchestratorOption) (*Orchestrator, error) {
	if g == nil || checker == nil || fixer == nil {
		return nil, fmt.Errorf("%w: graph, checker and fixer are required", ErrInvalidInput)
	}

	meta := make(map[string]component.Metadata, len(components))
	for _, c := range components {
		meta[c.Name] = c
	}

	o := &Orchestrator{
		graph:       g,
		meta:        meta,
		checker:     checker,
		fixer:       fixer,
		concurrency: DefaultConcurrency,
		seen:        make(map[string]map[string]struct{}),
	}
	for _, opt := range opts {
		opt(o)
	}
	if o.logger == nil {
		o.logger = slog.Default()
	}
	return o, nil
}

// Run executes one check-and-repair pass over the graph.
//
// Description:
//
//	Obtains the topological order (aborting the session if the graph is
//	unresolvably cyclic), groups components by depth, and visits each
//	depth level in ascending order. Per component: check; on failure,
//	fix if the diagnostic fingerprint is new, otherwise skip with a
//	logged no-op. Components at one depth are visited concurrently.
//
//	Fingerprints seen here persist across passes within the session, so
//	a later pass cannot re-fix a diagnostic set an earlier pass already
//	handled.
//
// Inputs:
//
//	ctx - Context for cancellation.
//	restrict - When non-empty, only the named components are visited.
//	Graph order is still honored among them.
//
// Outputs:
//
//	*RunResult - The aggregated pass report.
//	error - graph.ErrUnresolvableCycle, context errors, or checker
//	failures. Oracle failures degrade inside the fixer and do not
//	surface here.
func (o *Orchestrator) Run(ctx context.Context, restrict []string) (*RunResult, error) {
	if ctx == nil {
		return nil, fmt.Errorf("%w: ctx must not be nil", ErrInvalidInput)
	}

	ctx, span := tracer.Start(ctx, "Orchestrator.Run",
		trace.WithAttributes(attribute.Int("engine.restricted_to", len(restrict))),
	)
	defer span.End()

	levels, err := o.depthLevels(restrict)
	if err != nil {
		return nil, err
	}
	summary, err := o.graph.Summarize()
	if err != nil {
		return nil, err
	}

	result := &RunResult{Graph: summary}
	var resultMu sync.Mutex

	for depth, names := range levels {
		if len(names) == 0 {
			continue
		}
		eg, egCtx := errgroup.WithContext(ctx)
		eg.SetLimit(o.concurrency)
		for _, name := range names {
			eg.Go(func() error {
				return o.visit(egCtx, name, depth, result, &resultMu)
			})
		}
		// A level must fully stabilize before its dependents are judged.
		if err := eg.Wait(); err != nil {
			return nil, err
		}
	}

	sort.Strings(result.FixedComponents)
	result.Success = result.TotalErrors-result.TotalFixed <= 0 || len(result.FixedComponents) > 0

	o.logger.Info("Orchestration pass completed",
		slog.Bool("success", result.Success),
		slog.Int("total_errors", result.TotalErrors),
		slog.Int("total_fixed", result.TotalFixed),
		slog.Int("fixed_components", len(result.FixedComponents)),
	)
	return result, nil
}

// visit checks one component and repairs it when needed.
func (o *Orchestrator) visit(ctx context.Context, name string, depth int, result *RunResult, mu *sync.Mutex) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	meta, ok := o.meta[name]
	if !ok {
		o.logger.Warn("Component in graph has no metadata, skipping",
			slog.String("component", name))
		return nil
	}

	checkResult, err := o.checker.Check(ctx, meta)
	if err != nil {
		return fmt.Errorf("checking %s: %w", name, err)
	}
	if checkResult.Success {
		return nil
	}

	diags := checkResult.Errors
	errorsBefore := len(diags)
	fp := component.Fingerprint(diags)

	mu.Lock()
	result.TotalErrors += errorsBefore
	mu.Unlock()

	if o.alreadySeen(name, fp) {
		o.logger.Info("Diagnostic fingerprint already handled this session, skipping",
			slog.String("component", name),
			slog.String("fingerprint", fp),
		)
		return nil
	}

	outcome, err := o.fixer.Fix(ctx, meta, diags)
	if err != nil {
		// Repair degradation never aborts the pass; the component simply
		// stays broken for the next attempt.
		o.logger.Warn("Fix failed, component left as-is",
			slog.String("component", name),
			slog.String("error", err.Error()),
		)
		return nil
	}

	fixed := outcome.ErrorsBefore - outcome.ErrorsAfter
	if fixed < 0 {
		fixed = 0
	}

	mu.Lock()
	defer mu.Unlock()
	result.FixHistory = append(result.FixHistory, component.FixHistoryEntry{
		Component:    name,
		Depth:        depth,
		ErrorsFixed:  fixed,
		TotalErrors:  outcome.ErrorsBefore,
		Timestamp:    time.Now().UTC(),
		FallbackUsed: outcome.FallbackUsed,
	})
	if outcome.Progress {
		result.TotalFixed += fixed
		result.FixedComponents = append(result.FixedComponents, name)
	}
	return nil
}

// depthLevels groups the topological order into ascending depth buckets,
// optionally restricted to a component subset.
func (o *Orchestrator) depthLevels(restrict []string) ([][]string, error) {
	order, err := o.graph.TopologicalOrder()
	if err != nil {
		return nil, fmt.Errorf("ordering components: %w", err)
	}

	var restrictSet map[string]struct{}
	if len(restrict) > 0 {
		restrictSet = make(map[string]struct{}, len(restrict))
		for _, name := range restrict {
			restrictSet[name] = struct{}{}
		}
	}

	var levels [][]string
	for _, name := range order {
		if restrictSet != nil {
			if _, ok := restrictSet[name]; !ok {
				continue
			}
		}
		depth, err := o.graph.DepthOf(name)
		if err != nil {
			return nil, err
		}
		for len(levels) <= depth {
			levels = append(levels, nil)
		}
		levels[depth] = append(levels[depth], name)
	}
	return levels, nil
}

// alreadySeen records the fingerprint and reports whether it was new.
func (o *Orchestrator) alreadySeen(name, fp string) bool {
	o.mu.Lock()
	defer o.mu.Unlock()
	seen := o.seen[name]
	if seen == nil {
		seen = make(map[string]struct{})
		o.seen[name] = seen
	}
	if _, ok := seen[fp]; ok {
		return true
	}
	seen[fp] = struct{}{}
	return false
}
