// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package graph

import (
	"fmt"
	"log/slog"
	"sort"
	"sync"
	"time"

	"go.opentelemetry.io/otel/attribute"

	"github.com/AleutianAI/FoundryFOSS/services/foundry/component"
)

// Options configures graph construction.
type Options struct {
	// Logger receives warnings about ignored dependencies and broken
	// edges. If nil, slog.Default() is used.
	Logger *slog.Logger

	// EdgeRemovalBudget caps how many back-edges cycle breaking may
	// remove. Zero means "use the initial edge count", which is the
	// theoretical maximum and guarantees termination.
	EdgeRemovalBudget int
}

// Option is a functional option for configuring graph construction.
type Option func(*Options)

// WithLogger sets the logger.
func WithLogger(logger *slog.Logger) Option {
	return func(o *Options) { o.Logger = logger }
}

// WithEdgeRemovalBudget overrides the cycle-breaking budget.
func WithEdgeRemovalBudget(n int) Option {
	return func(o *Options) { o.EdgeRemovalBudget = n }
}

// RemovedEdge records one edge dropped during cycle breaking.
// From depends on To; the From -> To edge closed a cycle.
type RemovedEdge struct {
	From string `json:"from"`
	To   string `json:"to"`
}

// Summary is the aggregate view surfaced in orchestration reports.
type Summary struct {
	// LeafComponents have no dependencies (depth 0).
	LeafComponents []string `json:"leaf_components"`

	// RootComponents have no dependents.
	RootComponents []string `json:"root_components"`

	// MaxDepth is the largest depth of any component.
	MaxDepth int `json:"max_depth"`

	// HasCycles is true if any edges were removed during cycle breaking.
	HasCycles bool `json:"has_cycles"`
}

// Graph is the dependency graph over one session's component set.
//
// Description:
//
//	Forward adjacency maps a component to the set of components it
//	depends on; reverse adjacency maps a component to its dependents.
//	Both are populated once by Build from declared metadata and then
//	only mutated by cycle breaking, which runs at most once.
//
// Thread Safety: Safe for concurrent reads after Build returns.
type Graph struct {
	forward map[string]map[string]struct{}
	reverse map[string]map[string]struct{}

	order   []string
	depths  map[string]int
	removed []RemovedEdge

	sortOnce sync.Once
	sortErr  error

	budget int
	logger *slog.Logger
}

// Build constructs the dependency graph from declared component metadata.
//
// Description:
//
//	Registers every component as a node and adds an edge for each
//	declared dependency. Dependencies naming components outside the
//	known set are ignored with a warning, not an error: the generator
//	routinely declares dependencies on framework packages this
//	subsystem does not manage.
//
// Inputs:
//
//	components - All metadata records for the session. Must be non-empty.
//	opts - Optional configuration.
//
// Outputs:
//
//	*Graph - The populated graph. Cycle breaking is deferred to the
//	first ordering query.
//	error - Non-nil if the component set is empty.
func Build(components []component.Metadata, opts ...Option) (*Graph, error) {
	if len(components) == 0 {
		return nil, fmt.Errorf("%w: no components", ErrInvalidInput)
	}

	options := Options{}
	for _, opt := range opts {
		opt(&options)
	}
	if options.Logger == nil {
		options.Logger = slog.Default()
	}

	start := time.Now()

	g := &Graph{
		forward: make(map[string]map[string]struct{}, len(components)),
		reverse: make(map[string]map[string]struct{}, len(components)),
		depths:  make(map[string]int, len(components)),
		logger:  options.Logger,
	}

	for _, c := range components {
		if _, ok := g.forward[c.Name]; !ok {
			g.forward[c.Name] = make(map[string]struct{})
			g.reverse[c.Name] = make(map[string]struct{})
		}
	}

	edges := 0
	for _, c := range components {
		for _, dep := range c.Dependencies {
			if dep == c.Name {
				g.logger.Warn("Ignoring self-dependency",
					slog.String("component", c.Name))
				continue
			}
			if _, known := g.forward[dep]; !known {
				g.logger.Warn("Ignoring dependency on unknown component",
					slog.String("component", c.Name),
					slog.String("dependency", dep))
				continue
			}
			if _, dup := g.forward[c.Name][dep]; dup {
				continue
			}
			g.forward[c.Name][dep] = struct{}{}
			g.reverse[dep][c.Name] = struct{}{}
			edges++
		}
	}

	g.budget = options.EdgeRemovalBudget
	if g.budget == 0 {
		g.budget = edges
	}

	recordBuildMetrics(len(components), edges, time.Since(start))
	g.logger.Debug("Dependency graph built",
		slog.Int("components", len(components)),
		slog.Int("edges", edges),
	)
	return g, nil
}

// TopologicalOrder returns all components in leaves-to-roots order.
//
// Description:
//
//	Depth-first traversal producing an order in which every component
//	appears strictly after all of its dependencies. On detecting a
//	back-edge the edge closing the cycle is removed from both adjacency
//	maps and the sort restarts. Each removal strictly reduces the edge
//	count, so the process terminates in at most |E| restarts. If the
//	budget is exhausted while cycles remain, the graph is declared
//	unresolvable and the session must abort.
//
// Outputs:
//
//	[]string - Component names, leaves first. A copy; callers may mutate.
//	error - ErrUnresolvableCycle if the budget was exhausted.
//
// Thread Safety: Safe for concurrent use; the sort runs once.
func (g *Graph) TopologicalOrder() ([]string, error) {
	g.sortOnce.Do(g.sort)
	if g.sortErr != nil {
		return nil, g.sortErr
	}
	out := make([]string, len(g.order))
	copy(out, g.order)
	return out, nil
}

// sort runs cycle breaking and computes the cached order and depths.
func (g *Graph) sort() {
	names := g.sortedNames()

	for removals := 0; ; {
		order, backEdge := g.tryTopoSort(names)
		if backEdge == nil {
			g.order = order
			g.computeDepths(order)
			if len(g.removed) > 0 {
				recordCyclesBroken(len(g.removed))
			}
			return
		}

		if removals >= g.budget {
			g.sortErr = fmt.Errorf("%w: %d edges removed without reaching an acyclic graph",
				ErrUnresolvableCycle, removals)
			return
		}
		removals++

		delete(g.forward[backEdge.From], backEdge.To)
		delete(g.reverse[backEdge.To], backEdge.From)
		g.removed = append(g.removed, *backEdge)
		g.logger.Warn("Breaking dependency cycle",
			slog.String("from", backEdge.From),
			slog.String("to", backEdge.To),
			slog.Int("removals", removals),
		)
	}
}

// tryTopoSort attempts one DFS pass. It returns either a complete
// leaves-to-roots order, or the first back-edge encountered.
func (g *Graph) tryTopoSort(names []string) ([]string, *RemovedEdge) {
	const (
		white = 0 // unvisited
		gray  = 1 // on stack
		black = 2 // done
	)
	color := make(map[string]int, len(names))
	order := make([]string, 0, len(names))

	var backEdge *RemovedEdge
	var visit func(name string) bool
	visit = func(name string) bool {
		color[name] = gray
		for _, dep := range sortedKeys(g.forward[name]) {
			switch color[dep] {
			case gray:
				backEdge = &RemovedEdge{From: name, To: dep}
				return false
			case white:
				if !visit(dep) {
					return false
				}
			}
		}
		color[name] = black
		order = append(order, name)
		return true
	}

	for _, name := range names {
		if color[name] == white {
			if !visit(name) {
				return nil, backEdge
			}
		}
	}
	return order, nil
}

// computeDepths fills the depth memo. Walking in topological order
// guarantees every dependency's depth is known before its dependents'.
func (g *Graph) computeDepths(order []string) {
	for _, name := range order {
		depth := 0
		for dep := range g.forward[name] {
			if d := g.depths[dep] + 1; d > depth {
				depth = d
			}
		}
		g.depths[name] = depth
	}
}

// DepthOf returns the longest-path-to-leaf depth of a component.
//
// Leaves (no dependencies) have depth 0. Depths are memoized during the
// first ordering query.
func (g *Graph) DepthOf(name string) (int, error) {
	if _, ok := g.forward[name]; !ok {
		return 0, fmt.Errorf("%w: %s", ErrUnknownComponent, name)
	}
	if _, err := g.TopologicalOrder(); err != nil {
		return 0, err
	}
	return g.depths[name], nil
}

// AffectedBy returns the transitive closure over the reverse graph: every
// component that would need re-validation if the named component's public
// shape changed. The result is sorted and excludes the component itself.
func (g *Graph) AffectedBy(name string) ([]string, error) {
	if _, ok := g.reverse[name]; !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnknownComponent, name)
	}
	if _, err := g.TopologicalOrder(); err != nil {
		return nil, err
	}

	seen := map[string]struct{}{name: {}}
	queue := []string{name}
	var affected []string
	for len(queue) > 0 {
		cur := queue[0]
		queue = queue[1:]
		for dependent := range g.reverse[cur] {
			if _, ok := seen[dependent]; ok {
				continue
			}
			seen[dependent] = struct{}{}
			affected = append(affected, dependent)
			queue = append(queue, dependent)
		}
	}
	sort.Strings(affected)
	return affected, nil
}

// Dependencies returns the direct dependencies of a component, sorted.
func (g *Graph) Dependencies(name string) []string {
	return sortedKeys(g.forward[name])
}

// Dependents returns the direct dependents of a component, sorted.
func (g *Graph) Dependents(name string) []string {
	return sortedKeys(g.reverse[name])
}

// Components returns all registered component names, sorted.
func (g *Graph) Components() []string {
	return g.sortedNames()
}

// RemovedEdges returns the edges dropped by cycle breaking, in removal
// order. Empty for acyclic input.
func (g *Graph) RemovedEdges() []RemovedEdge {
	out := make([]RemovedEdge, len(g.removed))
	copy(out, g.removed)
	return out
}

// Summarize returns the aggregate graph view for reports.
func (g *Graph) Summarize() (Summary, error) {
	if _, err := g.TopologicalOrder(); err != nil {
		return Summary{}, err
	}

	s := Summary{HasCycles: len(g.removed) > 0}
	for _, name := range g.sortedNames() {
		if len(g.forward[name]) == 0 {
			s.LeafComponents = append(s.LeafComponents, name)
		}
		if len(g.reverse[name]) == 0 {
			s.RootComponents = append(s.RootComponents, name)
		}
		if d := g.depths[name]; d > s.MaxDepth {
			s.MaxDepth = d
		}
	}
	return s, nil
}

// sortedNames returns all node names sorted for deterministic traversal.
func (g *Graph) sortedNames() []string {
	return sortedKeys(g.forward)
}

func sortedKeys[V any](m map[string]V) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

func recordBuildMetrics(nodes, edges int, duration time.Duration) {
	if err := initMetrics(); err != nil {
		return
	}
	buildLatency.Record(metricsCtx(), duration.Seconds(),
		metricAttrs(attribute.Int("graph.nodes", nodes), attribute.Int("graph.edges", edges)))
}

func recordCyclesBroken(n int) {
	if err := initMetrics(); err != nil {
		return
	}
	cyclesBroken.Add(metricsCtx(), int64(n))
}
