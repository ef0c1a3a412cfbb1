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
	"log"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/gin-gonic/gin"
	"github.com/spf13/cobra"
	"go.opentelemetry.io/contrib/instrumentation/github.com/gin-gonic/gin/otelgin"

	"github.com/AleutianAI/FoundryFOSS/services/foundry/runner"
	"github.com/AleutianAI/FoundryFOSS/services/foundry/server"
	"github.com/AleutianAI/FoundryFOSS/services/foundry/session"
)

// runServe starts the HTTP service. Sessions run synchronously inside
// request handlers; the job layer is expected to call with generous
// timeouts.
func runServe(cmd *cobra.Command, args []string) {
	path := storePath
	if path == "" {
		path = config.Store.Path
	}
	if path == "" {
		home, err := os.UserHomeDir()
		if err != nil {
			log.Fatalf("Error resolving home directory: %v", err)
		}
		path = filepath.Join(home, ".foundry", "sessions")
	}

	cfg := session.DefaultConfig(path)
	cfg.Logger = logger.Logger
	store, err := session.Open(cfg)
	if err != nil {
		log.Fatalf("Error opening session store at %s: %v", path, err)
	}
	defer store.Close()

	defaults := runner.Params{
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
	}

	gin.SetMode(gin.ReleaseMode)
	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(otelgin.Middleware("foundry-service"))
	server.SetupRoutes(router, server.New(store, defaults, server.WithLogger(logger.Logger)))

	addr := listenAddr
	if addr == "" {
		addr = config.Server.Addr
	}
	logger.Info("Starting foundry service",
		slog.String("addr", addr),
		slog.String("store", path),
	)
	if err := router.Run(addr); err != nil {
		log.Fatalf("Error running HTTP server: %v", err)
	}
}
