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
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/AleutianAI/FoundryFOSS/services/foundry/component"
	"github.com/AleutianAI/FoundryFOSS/services/foundry/graph"
)

// =============================================================================
// STATES
// =============================================================================

// State is one phase of the recursive build-fix loop.
type State int

const (
	// StateBuilding runs the project-wide validators.
	StateBuilding State = iota

	// StateDiagnosing attributes raw findings to owning components.
	StateDiagnosing

	// StatePrioritizing scores and orders the attributed errors.
	StatePrioritizing

	// StateFixing delegates grouped errors to the orchestrator.
	StateFixing

	// StateSucceeded is terminal: the project validated clean.
	StateSucceeded

	// StateFailed is terminal: a budget ran out or repair stalled.
	StateFailed
)

// String returns the state name.
func (s State) String() string {
	switch s {
	case StateBuilding:
		return "building"
	case StateDiagnosing:
		return "diagnosing"
	case StatePrioritizing:
		return "prioritizing"
	case StateFixing:
		return "fixing"
	case StateSucceeded:
		return "succeeded"
	case StateFailed:
		return "failed"
	default:
		return "unknown"
	}
}

// Terminal failure reasons surfaced in the final report.
const (
	// FailureMaxAttempts means the global attempt cap was reached.
	FailureMaxAttempts = "max-attempts"

	// FailureNoProgress means an attempt after the first fixed nothing.
	FailureNoProgress = "no-progress"

	// FailureCancelled means the caller aborted the session.
	FailureCancelled = "cancelled"

	// FailureUnresolvableCycle means the graph could not be made acyclic.
	FailureUnresolvableCycle = "unresolvable-cycle"
)

// GlobalComponent owns findings whose file path matches no known
// component. They are recorded, never dropped, but cannot be repaired.
const GlobalComponent = "<global>"

// =============================================================================
// CONFIGURATION
// =============================================================================

// DefaultMaxBuildAttempts caps iterations of the build-fix loop.
const DefaultMaxBuildAttempts = 5

// PriorityWeights tune error triage scoring.
//
// A higher score repairs earlier. Depth rewards components close to the
// leaves, kind rewards structural problems over style ones, and category
// rewards shared code over top-level pages.
type PriorityWeights struct {
	Depth    float64 `yaml:"depth" json:"depth"`
	Kind     float64 `yaml:"kind" json:"kind"`
	Category float64 `yaml:"category" json:"category"`
}

// DefaultPriorityWeights returns the standard triage weighting.
func DefaultPriorityWeights() PriorityWeights {
	return PriorityWeights{Depth: 10, Kind: 5, Category: 2}
}

// Recorder persists session audit records. Implementations must tolerate
// being called concurrently per session.
type Recorder interface {
	RecordAttempt(ctx context.Context, sessionID string, attempt component.BuildAttempt) error
	RecordFix(ctx context.Context, sessionID string, fix component.FixHistoryEntry) error
}

// RecursiveBuildFixResult is the final session report.
//
// Thread Safety: Immutable after creation.
type RecursiveBuildFixResult struct {
	// SessionID identifies this repair session.
	SessionID string `json:"session_id"`

	// Success is true when a build attempt found zero errors.
	Success bool `json:"success"`

	// AttemptsUsed counts build attempts, including the clean one.
	AttemptsUsed int `json:"attempts_used"`

	// TotalErrors is the cumulative error count across attempts: an
	// error that persists is counted again on every attempt that sees it.
	TotalErrors int `json:"total_errors"`

	// TotalFixed is the cumulative fixed-error count across attempts.
	TotalFixed int `json:"total_fixed"`

	// BuildHistory is the ordered audit trail, one entry per attempt.
	BuildHistory []component.BuildAttempt `json:"build_history"`

	// ComponentsFixed lists every component repaired with progress, sorted.
	ComponentsFixed []string `json:"components_fixed"`

	// FailureReason is set on failure: max-attempts, no-progress,
	// cancelled, or unresolvable-cycle.
	FailureReason string `json:"failure_reason,omitempty"`
}

// =============================================================================
// CONTROLLER
// =============================================================================

// Controller runs the recursive build-fix loop for one session.
//
// Description:
//
//	Building -> Diagnosing -> Prioritizing -> Fixing, looping back to
//	Building until a validation pass comes back clean or a budget runs
//	out. All mutable session state lives on the instance; independent
//	sessions never share counters or memos.
//
//	Cancellation is checked between states, never mid-write: an
//	in-progress file replacement always completes before the signal is
//	honored, so the tree is never left half-written.
//
// Thread Safety: One session per Controller; RunRecursiveBuildFix must
// not be called concurrently on the same instance.
type Controller struct {
	graph      *graph.Graph
	meta       map[string]component.Metadata
	byPath     map[string]string
	validators []ProjectValidator
	orch       *Orchestrator
	recorder   Recorder
	logger     *slog.Logger

	maxAttempts int
	weights     PriorityWeights
	sessionID   string
	maxDepth    int
}

// ControllerOption configures the Controller.
type ControllerOption func(*Controller)

// WithMaxBuildAttempts caps the build-fix loop.
func WithMaxBuildAttempts(n int) ControllerOption {
	return func(c *Controller) {
		if n > 0 {
			c.maxAttempts = n
		}
	}
}

// WithPriorityWeights overrides triage weighting.
func WithPriorityWeights(w PriorityWeights) ControllerOption {
	return func(c *Controller) { c.weights = w }
}

// WithRecorder attaches an audit record sink.
func WithRecorder(r Recorder) ControllerOption {
	return func(c *Controller) { c.recorder = r }
}

// WithControllerLogger sets the logger.
func WithControllerLogger(logger *slog.Logger) ControllerOption {
	return func(c *Controller) { c.logger = logger }
}

// WithSessionID overrides the generated session ID.
func WithSessionID(id string) ControllerOption {
	return func(c *Controller) { c.sessionID = id }
}

// NewController creates the controller for one repair session.
//
// Inputs:
//
//	g - The session dependency graph. Must not be nil.
//	components - Metadata for every graph node.
//	validators - Project-wide validators run during Building.
//	orch - The graph-aware orchestrator. Must not be nil.
//	opts - Optional configuration.
//
// Outputs:
//
//	*Controller - The configured controller.
//	error - ErrInvalidInput when a collaborator is missing.
func NewController(g *graph.Graph, components []component.Metadata, validators []ProjectValidator, orch *Orchestrator, opts ...ControllerOption) (*Controller, error) {
	if g == nil || orch == nil {
		return nil, fmt.Errorf("%w: graph and orchestrator are required", ErrInvalidInput)
	}

	meta := make(map[string]component.Metadata, len(components))
	byPath := make(map[string]string, len(components))
	for _, comp := range components {
		meta[comp.Name] = comp
		byPath[filepath.Clean(comp.FilePath)] = comp.Name
	}

	c := &Controller{
		graph:       g,
		meta:        meta,
		byPath:      byPath,
		validators:  validators,
		orch:        orch,
		maxAttempts: DefaultMaxBuildAttempts,
		weights:     DefaultPriorityWeights(),
		sessionID:   uuid.NewString(),
	}
	for _, opt := range opts {
		opt(c)
	}
	if c.logger == nil {
		c.logger = slog.Default()
	}

	summary, err := g.Summarize()
	if err != nil {
		return nil, fmt.Errorf("summarizing graph: %w", err)
	}
	c.maxDepth = summary.MaxDepth
	return c, nil
}

// SessionID returns this session's identifier.
func (c *Controller) SessionID() string { return c.sessionID }

// RunRecursiveBuildFix executes the full build-fix loop.
//
// Description:
//
//	Each iteration runs the project validators; zero errors transitions
//	straight to Succeeded without invoking the orchestrator. Otherwise
//	findings are attributed to owning components (unattributable ones go
//	to the global pseudo-component), prioritized, and handed to the
//	orchestrator restricted to the affected components.
//
//	Termination is deterministic: a clean build, the attempt cap, or an
//	attempt after the first that fixes nothing.
//
// Inputs:
//
//	ctx - Context for cancellation, checked between states.
//
// Outputs:
//
//	*RecursiveBuildFixResult - The session report, never nil. On failure
//	it still carries the full build history.
//	error - Context errors on cancellation, or
//	graph.ErrUnresolvableCycle; nil for budget/no-progress failures,
//	which are terminal states rather than exceptions.
func (c *Controller) RunRecursiveBuildFix(ctx context.Context) (*RecursiveBuildFixResult, error) {
	if ctx == nil {
		return nil, fmt.Errorf("%w: ctx must not be nil", ErrInvalidInput)
	}

	ctx, span := tracer.Start(ctx, "Controller.RunRecursiveBuildFix",
		trace.WithAttributes(attribute.String("engine.session_id", c.sessionID)),
	)
	defer span.End()
	sessionStart := time.Now()

	result := &RecursiveBuildFixResult{SessionID: c.sessionID}
	fixedSet := make(map[string]struct{})

	for attempt := 1; attempt <= c.maxAttempts; attempt++ {
		if err := ctx.Err(); err != nil {
			result.FailureReason = FailureCancelled
			return result, err
		}

		c.logState(StateBuilding, attempt)
		findings, buildDuration := c.runValidators(ctx)
		result.AttemptsUsed = attempt

		if countBuildErrors(findings) == 0 {
			record := component.BuildAttempt{
				AttemptNumber:   attempt,
				BuildDurationMs: buildDuration.Milliseconds(),
			}
			result.BuildHistory = append(result.BuildHistory, record)
			c.record(ctx, record, nil)
			result.Success = true
			result.ComponentsFixed = sortedSet(fixedSet)
			c.logState(StateSucceeded, attempt)
			c.observeSession(ctx, result, time.Since(sessionStart))
			return result, nil
		}

		c.logState(StateDiagnosing, attempt)
		grouped := c.attribute(findings)
		result.TotalErrors += countBuildErrors(findings)

		c.logState(StatePrioritizing, attempt)
		targets := c.prioritize(grouped)

		if err := ctx.Err(); err != nil {
			result.FailureReason = FailureCancelled
			return result, err
		}

		c.logState(StateFixing, attempt)
		var fixedThisAttempt int
		var fixHistory []component.FixHistoryEntry
		if len(targets) == 0 {
			// Every error this attempt was global. Nothing is repairable,
			// and an unrestricted orchestrator pass would spend checks and
			// oracle calls on components that own no error. Record the
			// attempt as fixing nothing and let termination take over.
			c.logger.Warn("No repairable component owns this attempt's errors, skipping repair",
				slog.String("session_id", c.sessionID),
				slog.Int("attempt", attempt),
				slog.Int("findings", len(findings)),
			)
		} else {
			runResult, err := c.orch.Run(ctx, targets)
			if err != nil {
				result.FailureReason = FailureUnresolvableCycle
				c.logState(StateFailed, attempt)
				return result, err
			}
			fixedThisAttempt = runResult.TotalFixed
			fixHistory = runResult.FixHistory
			for _, name := range runResult.FixedComponents {
				fixedSet[name] = struct{}{}
			}
		}

		record := component.BuildAttempt{
			AttemptNumber:          attempt,
			BuildDurationMs:        buildDuration.Milliseconds(),
			DiagnosticsFound:       len(findings),
			ErrorsFixedThisAttempt: fixedThisAttempt,
		}
		result.BuildHistory = append(result.BuildHistory, record)
		c.record(ctx, record, fixHistory)

		result.TotalFixed += fixedThisAttempt

		if fixedThisAttempt == 0 && attempt > 1 {
			result.FailureReason = FailureNoProgress
			result.ComponentsFixed = sortedSet(fixedSet)
			c.logState(StateFailed, attempt)
			c.observeSession(ctx, result, time.Since(sessionStart))
			return result, nil
		}
	}

	result.FailureReason = FailureMaxAttempts
	result.ComponentsFixed = sortedSet(fixedSet)
	c.logState(StateFailed, result.AttemptsUsed)
	c.observeSession(ctx, result, time.Since(sessionStart))
	return result, nil
}

// runValidators executes every project validator, degrading broken ones
// to zero findings.
func (c *Controller) runValidators(ctx context.Context) ([]BuildError, time.Duration) {
	start := time.Now()
	var findings []BuildError
	for _, v := range c.validators {
		found, err := v.Validate(ctx)
		if err != nil {
			c.logger.Warn("Project validator failed to run, counting zero findings",
				slog.String("validator", v.Name()),
				slog.String("error", err.Error()),
			)
			continue
		}
		findings = append(findings, found...)
	}
	return findings, time.Since(start)
}

// attribute groups findings by owning component, matching tool-reported
// file paths against known component paths. Tools print absolute or
// root-relative paths; both are matched by suffix.
func (c *Controller) attribute(findings []BuildError) map[string][]component.Diagnostic {
	grouped := make(map[string][]component.Diagnostic)
	for _, f := range findings {
		name := c.ownerOf(f.FilePath)
		if name == GlobalComponent {
			c.logger.Warn("Finding matches no known component, recording as global",
				slog.String("file", f.FilePath),
				slog.String("message", f.Diagnostic.Message),
			)
		}
		grouped[name] = append(grouped[name], f.Diagnostic)
	}
	return grouped
}

// ownerOf resolves a tool-reported path to a component name.
func (c *Controller) ownerOf(path string) string {
	clean := filepath.ToSlash(filepath.Clean(path))
	if name, ok := c.byPath[clean]; ok {
		return name
	}
	for compPath, name := range c.byPath {
		if strings.HasSuffix(clean, "/"+filepath.ToSlash(compPath)) {
			return name
		}
	}
	return GlobalComponent
}

// prioritize orders affected components by their highest-scoring error.
// The orchestrator re-imposes graph order within the set; this ordering
// decides what the set contains first when logs and reports truncate.
func (c *Controller) prioritize(grouped map[string][]component.Diagnostic) []string {
	type scored struct {
		name  string
		score float64
	}
	var ranked []scored
	for name, diags := range grouped {
		if name == GlobalComponent {
			continue
		}
		best := 0.0
		for _, d := range diags {
			if s := c.priorityOf(name, d); s > best {
				best = s
			}
		}
		ranked = append(ranked, scored{name: name, score: best})
	}

	sort.Slice(ranked, func(i, j int) bool {
		if ranked[i].score != ranked[j].score {
			return ranked[i].score > ranked[j].score
		}
		return ranked[i].name < ranked[j].name
	})

	targets := make([]string, len(ranked))
	for i, r := range ranked {
		targets[i] = r.name
	}
	return targets
}

// priorityOf scores one error: components near the leaves, structural
// problems, and shared code all repair earlier.
func (c *Controller) priorityOf(name string, d component.Diagnostic) float64 {
	depth := 0
	if dep, err := c.graph.DepthOf(name); err == nil {
		depth = dep
	}
	score := c.weights.Depth * float64(c.maxDepth-depth+1)
	score += c.weights.Kind * kindRank(d.Kind)
	if meta, ok := c.meta[name]; ok {
		score += c.weights.Category * categoryRank(meta.Category)
	}
	return score
}

func kindRank(k component.Kind) float64 {
	switch k {
	case component.KindStyleError:
		return 1
	default: // structural, import, missing-file, build
		return 3
	}
}

func categoryRank(cat component.Category) float64 {
	switch cat {
	case component.CategoryUtility:
		return 3
	case component.CategoryService:
		return 2
	case component.CategoryUnit:
		return 1
	default:
		return 0
	}
}

// record persists audit entries, logging and continuing on sink failure.
func (c *Controller) record(ctx context.Context, attempt component.BuildAttempt, fixes []component.FixHistoryEntry) {
	if c.recorder == nil {
		return
	}
	if err := c.recorder.RecordAttempt(ctx, c.sessionID, attempt); err != nil {
		c.logger.Warn("Failed to persist build attempt",
			slog.String("session_id", c.sessionID),
			slog.String("error", err.Error()),
		)
	}
	for _, fix := range fixes {
		if err := c.recorder.RecordFix(ctx, c.sessionID, fix); err != nil {
			c.logger.Warn("Failed to persist fix record",
				slog.String("session_id", c.sessionID),
				slog.String("error", err.Error()),
			)
		}
	}
}

func (c *Controller) logState(s State, attempt int) {
	c.logger.Info("Controller state transition",
		slog.String("session_id", c.sessionID),
		slog.String("state", s.String()),
		slog.Int("attempt", attempt),
	)
}

func (c *Controller) observeSession(ctx context.Context, result *RecursiveBuildFixResult, elapsed time.Duration) {
	recordSessionMetrics(ctx, result, elapsed)
}

func countBuildErrors(findings []BuildError) int {
	n := 0
	for _, f := range findings {
		if f.Diagnostic.Severity == component.SeverityError {
			n++
		}
	}
	return n
}

func sortedSet(set map[string]struct{}) []string {
	out := make([]string, 0, len(set))
	for name := range set {
		out = append(out, name)
	}
	sort.Strings(out)
	return out
}
