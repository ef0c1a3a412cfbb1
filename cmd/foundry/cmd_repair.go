// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package main

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/AleutianAI/FoundryFOSS/services/foundry/engine"
	"github.com/AleutianAI/FoundryFOSS/services/foundry/runner"
	"github.com/AleutianAI/FoundryFOSS/services/foundry/session"
)

// sessionParams merges the loaded config with repair command flags.
// Flags win where both are set.
func sessionParams() runner.Params {
	p := runner.Params{
		Root:                 projectRoot,
		OracleProvider:       config.Oracle.Provider,
		OracleRPS:            config.Oracle.RPS,
		OracleBurst:          config.Oracle.Burst,
		AliasRoots:           config.Repair.AliasRoots,
		BuildCommand:         config.Build.Command,
		BuildArgs:            config.Build.Args,
		BuildParser:          config.Build.Parser,
		MaxComponentAttempts: config.Repair.MaxComponentAttempts,
		MaxBuildAttempts:     config.Repair.MaxBuildAttempts,
		Concurrency:          config.Repair.Concurrency,
		Weights:              priorityWeights(config.Repair.PriorityWeights),
		SessionID:            sessionID,
		Logger:               logger.Logger,
	}
	if oracleProvider != "" {
		p.OracleProvider = oracleProvider
	}
	if buildCommand != "" {
		p.BuildCommand = buildCommand
		p.BuildArgs = buildArgs
		p.BuildParser = buildParser
	}
	if maxBuildAttempts > 0 {
		p.MaxBuildAttempts = maxBuildAttempts
	}
	if maxCompAttempts > 0 {
		p.MaxComponentAttempts = maxCompAttempts
	}
	if concurrency > 0 {
		p.Concurrency = concurrency
	}

	p.ManifestPath = manifestPath
	if !filepath.IsAbs(p.ManifestPath) {
		p.ManifestPath = filepath.Join(p.Root, p.ManifestPath)
	}
	return p
}

func priorityWeights(w WeightsConfig) engine.PriorityWeights {
	return engine.PriorityWeights{Depth: w.Depth, Kind: w.Kind, Category: w.Category}
}

// runRepair executes one repair session and prints the final report as
// JSON on stdout. The process exits non-zero unless the session ends in
// the Succeeded state.
func runRepair(cmd *cobra.Command, args []string) {
	params := sessionParams()

	if config.Store.Path != "" && !noStore {
		store, err := session.Open(session.DefaultConfig(config.Store.Path))
		if err != nil {
			log.Fatalf("Error opening session store: %v", err)
		}
		defer store.Close()
		params.Store = store
	}

	// Ctrl-C lands the session in the Failed(cancelled) state instead of
	// killing the process mid-write.
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	result, err := runner.Run(ctx, params)
	if result != nil {
		out, marshalErr := json.MarshalIndent(result, "", "  ")
		if marshalErr != nil {
			log.Fatalf("Error encoding session report: %v", marshalErr)
		}
		fmt.Println(string(out))
	}
	if err != nil {
		logger.Error("Repair session aborted", slog.String("error", err.Error()))
		os.Exit(1)
	}
	if !result.Success {
		logger.Error("Repair session failed",
			slog.String("session_id", result.SessionID),
			slog.String("reason", result.FailureReason),
		)
		os.Exit(1)
	}
}
