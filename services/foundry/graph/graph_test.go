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
	"errors"
	"fmt"
	"math/rand"
	"testing"

	"github.com/AleutianAI/FoundryFOSS/services/foundry/component"
)

func comp(name string, deps ...string) component.Metadata {
	return component.Metadata{
		Name:         name,
		FilePath:     "src/" + name + ".ts",
		Dependencies: deps,
		Category:     component.CategoryUnit,
	}
}

// assertTopoValid fails unless every component appears strictly after all
// of its dependencies.
func assertTopoValid(t *testing.T, g *Graph, order []string) {
	t.Helper()
	pos := make(map[string]int, len(order))
	for i, name := range order {
		pos[name] = i
	}
	for _, name := range order {
		for _, dep := range g.Dependencies(name) {
			if pos[dep] >= pos[name] {
				t.Fatalf("order violation: %s (pos %d) before its dependency %s (pos %d)",
					name, pos[name], dep, pos[dep])
			}
		}
	}
}

func TestBuild_EmptyInput(t *testing.T) {
	if _, err := Build(nil); !errors.Is(err, ErrInvalidInput) {
		t.Fatalf("got %v, want ErrInvalidInput", err)
	}
}

func TestBuild_IgnoresUnknownDependencies(t *testing.T) {
	g, err := Build([]component.Metadata{
		comp("A"),
		comp("B", "A", "react", "lodash"),
	})
	if err != nil {
		t.Fatal(err)
	}
	if deps := g.Dependencies("B"); len(deps) != 1 || deps[0] != "A" {
		t.Fatalf("Dependencies(B) = %v, want [A]", deps)
	}
}

func TestTopologicalOrder_Acyclic(t *testing.T) {
	g, err := Build([]component.Metadata{
		comp("A"),
		comp("B", "A"),
		comp("C", "A"),
		comp("D", "B"),
		comp("E", "D", "C"),
	})
	if err != nil {
		t.Fatal(err)
	}

	order, err := g.TopologicalOrder()
	if err != nil {
		t.Fatal(err)
	}
	if len(order) != 5 {
		t.Fatalf("order has %d entries, want 5", len(order))
	}
	assertTopoValid(t, g, order)

	sum, err := g.Summarize()
	if err != nil {
		t.Fatal(err)
	}
	if sum.HasCycles {
		t.Error("acyclic graph reported cycles")
	}
}

func TestTopologicalOrder_BreaksCycle(t *testing.T) {
	g, err := Build([]component.Metadata{
		comp("A", "C"),
		comp("B", "A"),
		comp("C", "B"),
	})
	if err != nil {
		t.Fatal(err)
	}

	order, err := g.TopologicalOrder()
	if err != nil {
		t.Fatal(err)
	}
	assertTopoValid(t, g, order)

	if removed := g.RemovedEdges(); len(removed) == 0 {
		t.Error("cycle breaking removed no edges")
	}
	sum, err := g.Summarize()
	if err != nil {
		t.Fatal(err)
	}
	if !sum.HasCycles {
		t.Error("cyclic graph did not report HasCycles")
	}
}

func TestTopologicalOrder_BudgetExhausted(t *testing.T) {
	// A two-node cycle with no removal allowance cannot be resolved.
	g, err := Build([]component.Metadata{
		comp("A", "B"),
		comp("B", "A"),
	}, WithEdgeRemovalBudget(-1))
	if err != nil {
		t.Fatal(err)
	}

	if _, err := g.TopologicalOrder(); !errors.Is(err, ErrUnresolvableCycle) {
		t.Fatalf("got %v, want ErrUnresolvableCycle", err)
	}
	// Subsequent queries must keep failing loudly, not loop.
	if _, err := g.DepthOf("A"); !errors.Is(err, ErrUnresolvableCycle) {
		t.Fatalf("DepthOf after failed sort: got %v", err)
	}
}

func TestTopologicalOrder_RandomGraphsWithBackEdges(t *testing.T) {
	rng := rand.New(rand.NewSource(1337))

	for trial := 0; trial < 50; trial++ {
		n := 5 + rng.Intn(20)
		components := make([]component.Metadata, n)

		// Forward edges only from higher to lower index: a guaranteed DAG.
		for i := 0; i < n; i++ {
			name := fmt.Sprintf("C%02d", i)
			var deps []string
			for j := 0; j < i; j++ {
				if rng.Float64() < 0.25 {
					deps = append(deps, fmt.Sprintf("C%02d", j))
				}
			}
			components[i] = comp(name, deps...)
		}

		// Inject back-edges to create cycles.
		injected := 0
		for i := 0; i < n-1 && injected < 4; i++ {
			if rng.Float64() < 0.3 {
				j := i + 1 + rng.Intn(n-i-1)
				components[i].Dependencies = append(components[i].Dependencies,
					fmt.Sprintf("C%02d", j))
				injected++
			}
		}

		g, err := Build(components)
		if err != nil {
			t.Fatal(err)
		}
		order, err := g.TopologicalOrder()
		if err != nil {
			t.Fatalf("trial %d: %v", trial, err)
		}
		if len(order) != n {
			t.Fatalf("trial %d: order has %d entries, want %d", trial, len(order), n)
		}
		assertTopoValid(t, g, order)
	}
}

func TestDepthOf(t *testing.T) {
	g, err := Build([]component.Metadata{
		comp("A"),
		comp("B", "A"),
		comp("C", "B"),
		comp("D", "A"),
		comp("E", "C", "D"),
	})
	if err != nil {
		t.Fatal(err)
	}

	tests := []struct {
		name  string
		depth int
	}{
		{"A", 0},
		{"B", 1},
		{"C", 2},
		{"D", 1},
		{"E", 3}, // longest path E->C->B->A
	}
	for _, tt := range tests {
		got, err := g.DepthOf(tt.name)
		if err != nil {
			t.Fatalf("DepthOf(%s): %v", tt.name, err)
		}
		if got != tt.depth {
			t.Errorf("DepthOf(%s) = %d, want %d", tt.name, got, tt.depth)
		}
	}

	if _, err := g.DepthOf("nope"); !errors.Is(err, ErrUnknownComponent) {
		t.Errorf("DepthOf(unknown) = %v, want ErrUnknownComponent", err)
	}
}

func TestAffectedBy(t *testing.T) {
	g, err := Build([]component.Metadata{
		comp("A"),
		comp("C", "A"),
		comp("B"),
		comp("D", "B"),
		comp("E", "D", "C"),
	})
	if err != nil {
		t.Fatal(err)
	}

	affected, err := g.AffectedBy("A")
	if err != nil {
		t.Fatal(err)
	}
	want := []string{"C", "E"}
	if len(affected) != len(want) {
		t.Fatalf("AffectedBy(A) = %v, want %v", affected, want)
	}
	for i := range want {
		if affected[i] != want[i] {
			t.Fatalf("AffectedBy(A) = %v, want %v", affected, want)
		}
	}

	rootAffected, err := g.AffectedBy("E")
	if err != nil {
		t.Fatal(err)
	}
	if len(rootAffected) != 0 {
		t.Errorf("AffectedBy(E) = %v, want empty", rootAffected)
	}
}

func TestSummarize(t *testing.T) {
	g, err := Build([]component.Metadata{
		comp("A"),
		comp("B"),
		comp("C", "A", "B"),
		comp("D", "C"),
	})
	if err != nil {
		t.Fatal(err)
	}

	sum, err := g.Summarize()
	if err != nil {
		t.Fatal(err)
	}
	if len(sum.LeafComponents) != 2 {
		t.Errorf("leaves = %v, want [A B]", sum.LeafComponents)
	}
	if len(sum.RootComponents) != 1 || sum.RootComponents[0] != "D" {
		t.Errorf("roots = %v, want [D]", sum.RootComponents)
	}
	if sum.MaxDepth != 2 {
		t.Errorf("MaxDepth = %d, want 2", sum.MaxDepth)
	}
}
