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
	"github.com/spf13/cobra"
)

// --- Global Command Variables ---
var (
	configPath       string
	projectRoot      string
	manifestPath     string
	oracleProvider   string
	buildCommand     string
	buildArgs        []string
	buildParser      string
	maxBuildAttempts int
	maxCompAttempts  int
	concurrency      int
	sessionID        string
	storePath        string
	noStore          bool
	listenAddr       string

	rootCmd = &cobra.Command{
		Use:   "foundry",
		Short: "A cli to repair generated application scaffolds until they build",
		Long: `Foundry checks every generated component in dependency order,
				asks an LLM oracle to repair the ones that fail, and loops the
				project build until it is green or the budget runs out.`,
	}

	// --- Repair ---
	repairCmd = &cobra.Command{
		Use:   "repair",
		Short: "Run one repair session against a generated project",
		Run:   runRepair, // Defined in cmd_repair.go
	}

	// --- Serve ---
	serveCmd = &cobra.Command{
		Use:   "serve",
		Short: "Expose repair sessions over HTTP for the job layer",
		Run:   runServe, // Defined in cmd_serve.go
	}
)

func init() {
	rootCmd.PersistentFlags().StringVar(&configPath, "config", "foundry.yaml",
		"Path to the foundry config file")

	repairCmd.Flags().StringVar(&projectRoot, "root", ".",
		"Generated project root")
	repairCmd.Flags().StringVar(&manifestPath, "manifest", "components.yaml",
		"Component manifest path, relative paths resolve against --root")
	repairCmd.Flags().StringVar(&oracleProvider, "oracle", "",
		"Oracle backend (openai or ollama), overrides the config")
	repairCmd.Flags().StringVar(&buildCommand, "build-cmd", "",
		"Project-wide build command, overrides the config")
	repairCmd.Flags().StringArrayVar(&buildArgs, "build-arg", nil,
		"Argument for --build-cmd, repeatable")
	repairCmd.Flags().StringVar(&buildParser, "build-parser", "",
		"Build output parser (tsc or unix)")
	repairCmd.Flags().IntVar(&maxBuildAttempts, "max-build-attempts", 0,
		"Cap on build-fix loop iterations, 0 keeps the default")
	repairCmd.Flags().IntVar(&maxCompAttempts, "max-component-attempts", 0,
		"Cap on repair attempts per component, 0 keeps the default")
	repairCmd.Flags().IntVar(&concurrency, "concurrency", 0,
		"Same-depth parallelism, 0 keeps the default")
	repairCmd.Flags().StringVar(&sessionID, "session-id", "",
		"Session identifier, generated when empty")
	repairCmd.Flags().BoolVar(&noStore, "no-store", false,
		"Skip persisting audit records and the session report")

	serveCmd.Flags().StringVar(&listenAddr, "addr", "",
		"Listen address, overrides the config")
	serveCmd.Flags().StringVar(&storePath, "store", "",
		"Session store directory, overrides the config")

	rootCmd.AddCommand(repairCmd)
	rootCmd.AddCommand(serveCmd)
}
