// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package runner assembles one complete repair session from configuration:
// manifest, dependency graph, isolation checker, oracle, repair engine,
// orchestrator, and controller. Both the CLI and the HTTP service run
// sessions through it.
package runner

import (
	"context"
	"fmt"
	"log/slog"
	"os"

	"github.com/AleutianAI/FoundryFOSS/services/foundry/check"
	"github.com/AleutianAI/FoundryFOSS/services/foundry/component"
	"github.com/AleutianAI/FoundryFOSS/services/foundry/engine"
	"github.com/AleutianAI/FoundryFOSS/services/foundry/graph"
	"github.com/AleutianAI/FoundryFOSS/services/foundry/repair"
	"github.com/AleutianAI/FoundryFOSS/services/foundry/session"
	"github.com/AleutianAI/FoundryFOSS/services/llm"
)

// Params configures one repair session.
type Params struct {
	// Root is the generated project root. Required.
	Root string

	// ManifestPath locates the component manifest. Either it or
	// Components must be set.
	ManifestPath string

	// Components overrides manifest loading when already in hand.
	Components []component.Metadata

	// AliasRoots maps import alias prefixes to directories relative to
	// Root, e.g. {"@/": "src"}.
	AliasRoots map[string]string

	// OracleProvider selects the repair oracle backend: openai or
	// ollama. Ignored when Oracle is set.
	OracleProvider string

	// Oracle overrides provider construction. Used by tests and
	// embedders that bring their own oracle.
	Oracle repair.Oracle

	// BuildCommand optionally names a project-wide build command run
	// during the Building state, e.g. "tsc". Empty disables it.
	BuildCommand string

	// BuildArgs are passed to BuildCommand.
	BuildArgs []string

	// BuildParser selects output parsing: "tsc" or "unix".
	BuildParser string

	// MaxComponentAttempts caps repair attempts per component.
	MaxComponentAttempts int

	// MaxBuildAttempts caps iterations of the build-fix loop.
	MaxBuildAttempts int

	// Concurrency bounds same-depth parallel checks and fixes.
	Concurrency int

	// Weights tunes component priority scoring. The zero value keeps
	// the defaults.
	Weights engine.PriorityWeights

	// OracleRPS and OracleBurst tune the shared oracle rate limit.
	// Zero values keep the defaults.
	OracleRPS   float64
	OracleBurst int

	// Store optionally persists audit records and the final report.
	Store *session.Store

	// SessionID overrides the generated session identifier.
	SessionID string

	// Logger is used throughout the session. Defaults to slog.Default().
	Logger *slog.Logger
}

// Run executes one full repair session.
//
// Description:
//
//	Loads the component set, builds the dependency graph, assembles the
//	checker, oracle, repair engine, and orchestrator, then drives the
//	recursive build-fix controller to completion. When a store is
//	configured, audit records stream into it during the run and the
//	final report is saved before returning.
//
// Inputs:
//
//	ctx - Context for cancellation, honored between controller states.
//	p - Session parameters. Root plus a manifest or component list are
//	required.
//
// Outputs:
//
//	*engine.RecursiveBuildFixResult - The session report.
//	error - Non-nil for invalid parameters, an unbuildable graph, or an
//	unreachable oracle provider.
func Run(ctx context.Context, p Params) (*engine.RecursiveBuildFixResult, error) {
	logger := p.Logger
	if logger == nil {
		logger = slog.Default()
	}

	if p.Root == "" {
		return nil, fmt.Errorf("project root is required")
	}
	if info, err := os.Stat(p.Root); err != nil || !info.IsDir() {
		return nil, fmt.Errorf("project root %s is not a directory", p.Root)
	}

	components := p.Components
	if len(components) == 0 {
		if p.ManifestPath == "" {
			return nil, fmt.Errorf("either a manifest path or a component list is required")
		}
		manifest, err := component.LoadManifest(p.ManifestPath)
		if err != nil {
			return nil, err
		}
		components = manifest.Components
	}

	g, err := graph.Build(components, graph.WithLogger(logger))
	if err != nil {
		return nil, fmt.Errorf("building dependency graph: %w", err)
	}

	checker := check.New(p.Root, p.AliasRoots, check.WithLogger(logger))

	oracle := p.Oracle
	if oracle == nil {
		client, err := llm.NewClient(p.OracleProvider)
		if err != nil {
			return nil, fmt.Errorf("initializing oracle provider %q: %w", p.OracleProvider, err)
		}
		var oracleOpts []repair.OracleOption
		if p.OracleRPS > 0 {
			burst := p.OracleBurst
			if burst <= 0 {
				burst = 1
			}
			oracleOpts = append(oracleOpts, repair.WithRateLimit(p.OracleRPS, burst))
		}
		oracleOpts = append(oracleOpts, repair.WithOracleLogger(logger))
		oracle = repair.NewLLMOracle(client, oracleOpts...)
	}

	var engineOpts []repair.EngineOption
	if p.MaxComponentAttempts > 0 {
		engineOpts = append(engineOpts, repair.WithMaxAttempts(p.MaxComponentAttempts))
	}
	engineOpts = append(engineOpts, repair.WithEngineLogger(logger))
	fixer := repair.NewEngine(p.Root, oracle, checker, engineOpts...)

	var orchOpts []engine.OrchestratorOption
	if p.Concurrency > 0 {
		orchOpts = append(orchOpts, engine.WithConcurrency(p.Concurrency))
	}
	orchOpts = append(orchOpts, engine.WithOrchestratorLogger(logger))
	orch, err := engine.NewOrchestrator(g, components, checker, fixer, orchOpts...)
	if err != nil {
		return nil, err
	}

	var validators []engine.ProjectValidator
	if p.BuildCommand != "" {
		parser := engine.ParseUnixBuild
		if p.BuildParser == "tsc" {
			parser = engine.ParseTypeScriptBuild
		}
		validators = append(validators,
			engine.NewCommandValidator("build", p.BuildCommand, p.BuildArgs, p.Root, parser, logger))
	}

	ctrlOpts := []engine.ControllerOption{engine.WithControllerLogger(logger)}
	if p.MaxBuildAttempts > 0 {
		ctrlOpts = append(ctrlOpts, engine.WithMaxBuildAttempts(p.MaxBuildAttempts))
	}
	if p.SessionID != "" {
		ctrlOpts = append(ctrlOpts, engine.WithSessionID(p.SessionID))
	}
	if p.Store != nil {
		ctrlOpts = append(ctrlOpts, engine.WithRecorder(p.Store))
	}
	if p.Weights != (engine.PriorityWeights{}) {
		ctrlOpts = append(ctrlOpts, engine.WithPriorityWeights(p.Weights))
	}
	ctrl, err := engine.NewController(g, components, validators, orch, ctrlOpts...)
	if err != nil {
		return nil, err
	}

	logger.Info("Starting repair session",
		slog.String("session_id", ctrl.SessionID()),
		slog.String("root", p.Root),
		slog.Int("components", len(components)),
	)

	result, runErr := ctrl.RunRecursiveBuildFix(ctx)
	if result != nil && p.Store != nil {
		if err := p.Store.SaveReport(context.WithoutCancel(ctx), result.SessionID, result); err != nil {
			logger.Warn("Failed to persist session report",
				slog.String("session_id", result.SessionID),
				slog.String("error", err.Error()),
			)
		}
	}
	return result, runErr
}
