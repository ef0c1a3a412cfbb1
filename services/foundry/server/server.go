// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package server exposes the repair subsystem to the platform's job layer
// over HTTP: one endpoint to run a session, one to fetch a persisted
// report, plus health and metrics.
package server

import (
	"context"
	"errors"
	"log/slog"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/AleutianAI/FoundryFOSS/services/foundry/engine"
	"github.com/AleutianAI/FoundryFOSS/services/foundry/runner"
	"github.com/AleutianAI/FoundryFOSS/services/foundry/session"
)

// RepairRequest is the POST /v1/repair body.
type RepairRequest struct {
	// Root is the generated project root on this host.
	Root string `json:"root" binding:"required"`

	// ManifestPath locates the component manifest.
	ManifestPath string `json:"manifest_path" binding:"required"`

	// AliasRoots maps import alias prefixes to directories under Root.
	AliasRoots map[string]string `json:"alias_roots,omitempty"`

	// BuildCommand optionally enables a project-wide build pass.
	BuildCommand string   `json:"build_command,omitempty"`
	BuildArgs    []string `json:"build_args,omitempty"`
	BuildParser  string   `json:"build_parser,omitempty"`

	// MaxBuildAttempts overrides the session's build-fix loop cap.
	MaxBuildAttempts int `json:"max_build_attempts,omitempty"`

	// Concurrency overrides same-depth fan-out.
	Concurrency int `json:"concurrency,omitempty"`
}

// runFunc runs one session; swapped out in tests.
type runFunc func(ctx context.Context, p runner.Params) (*engine.RecursiveBuildFixResult, error)

// Server holds the HTTP surface's collaborators.
type Server struct {
	store    *session.Store
	defaults runner.Params
	logger   *slog.Logger
	run      runFunc
}

// Option configures the Server.
type Option func(*Server)

// WithLogger sets the logger.
func WithLogger(logger *slog.Logger) Option {
	return func(s *Server) { s.logger = logger }
}

// withRunFunc overrides session execution. Test hook.
func withRunFunc(fn runFunc) Option {
	return func(s *Server) { s.run = fn }
}

// New creates the server.
//
// Inputs:
//
//	store - Session audit store, used for report retrieval and session
//	persistence. May be nil; reports are then unavailable.
//	defaults - Baseline session parameters (oracle provider, budgets);
//	per-request fields override them.
//	opts - Optional configuration.
func New(store *session.Store, defaults runner.Params, opts ...Option) *Server {
	s := &Server{
		store:    store,
		defaults: defaults,
		run:      runner.Run,
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.logger == nil {
		s.logger = slog.Default()
	}
	return s
}

// SetupRoutes registers all endpoints on the router.
func SetupRoutes(router *gin.Engine, s *Server) {
	router.GET("/health", HealthCheck)
	router.GET("/metrics", gin.WrapH(promhttp.Handler()))

	v1 := router.Group("/v1")
	{
		v1.POST("/repair", s.HandleRepair())
		v1.GET("/sessions/:sessionId/report", s.HandleSessionReport())
	}
}

// HealthCheck reports service liveness.
func HealthCheck(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

// HandleRepair runs one repair session synchronously and returns the
// final report. Long sessions are expected; the job layer calls this
// with generous client timeouts.
func (s *Server) HandleRepair() gin.HandlerFunc {
	return func(c *gin.Context) {
		var req RepairRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}

		params := s.defaults
		params.Root = req.Root
		params.ManifestPath = req.ManifestPath
		params.Store = s.store
		params.Logger = s.logger
		if req.AliasRoots != nil {
			params.AliasRoots = req.AliasRoots
		}
		if req.BuildCommand != "" {
			params.BuildCommand = req.BuildCommand
			params.BuildArgs = req.BuildArgs
			params.BuildParser = req.BuildParser
		}
		if req.MaxBuildAttempts > 0 {
			params.MaxBuildAttempts = req.MaxBuildAttempts
		}
		if req.Concurrency > 0 {
			params.Concurrency = req.Concurrency
		}

		result, err := s.run(c.Request.Context(), params)
		if err != nil {
			if result != nil {
				// Session aborted (cancellation, unresolvable cycle): the
				// partial report still matters to the caller.
				s.logger.Warn("Repair session aborted",
					slog.String("session_id", result.SessionID),
					slog.String("error", err.Error()),
				)
				c.JSON(http.StatusConflict, gin.H{"error": err.Error(), "report": result})
				return
			}
			c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
			return
		}
		c.JSON(http.StatusOK, result)
	}
}

// HandleSessionReport fetches a persisted session report.
func (s *Server) HandleSessionReport() gin.HandlerFunc {
	return func(c *gin.Context) {
		if s.store == nil {
			c.JSON(http.StatusNotImplemented, gin.H{"error": "session store not configured"})
			return
		}
		report, err := s.store.Report(c.Request.Context(), c.Param("sessionId"))
		if err != nil {
			if errors.Is(err, session.ErrNotFound) {
				c.JSON(http.StatusNotFound, gin.H{"error": err.Error()})
				return
			}
			c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
			return
		}
		c.JSON(http.StatusOK, report)
	}
}
