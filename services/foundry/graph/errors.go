// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package graph builds and queries the component dependency graph that
// schedules the repair pipeline.
//
// The graph is an arena of adjacency sets keyed by opaque component names:
// a forward map (component -> dependencies) and a reverse map
// (component -> dependents). Depth is the longest path from a component to
// a leaf; leaves have depth 0. Depth ordering is the scheduling backbone of
// the whole subsystem: repairing a leaf before its consumers means consumer
// errors caused by a broken leaf are reduced or gone by the time the
// consumer is checked.
//
// Cycles in declared metadata are broken by deterministic edge removal (the
// edge closing the cycle is dropped and the sort restarts). Each removal
// strictly reduces the edge count, so breaking terminates within the
// edge-removal budget; a graph still cyclic past the budget aborts the
// session with ErrUnresolvableCycle.
//
// # Thread Safety
//
// Build is single-writer. After Build returns, all query methods are safe
// for concurrent use.
package graph

import "errors"

// Sentinel errors for graph operations.
var (
	// ErrInvalidInput is returned for nil or empty component sets.
	ErrInvalidInput = errors.New("invalid input")

	// ErrUnresolvableCycle is returned when the graph cannot be made
	// acyclic within the edge-removal budget. This indicates malformed
	// metadata from the generator, not a repairable code defect, so the
	// session aborts rather than degrading.
	ErrUnresolvableCycle = errors.New("unresolvable dependency cycle")

	// ErrUnknownComponent is returned when a query names a component
	// that was never registered.
	ErrUnknownComponent = errors.New("unknown component")
)
