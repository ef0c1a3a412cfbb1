// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package server

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gin-gonic/gin"

	"github.com/AleutianAI/FoundryFOSS/services/foundry/engine"
	"github.com/AleutianAI/FoundryFOSS/services/foundry/runner"
	"github.com/AleutianAI/FoundryFOSS/services/foundry/session"
)

func newTestRouter(t *testing.T, s *Server) *gin.Engine {
	t.Helper()
	gin.SetMode(gin.TestMode)
	router := gin.New()
	SetupRoutes(router, s)
	return router
}

func openTestStore(t *testing.T) *session.Store {
	t.Helper()
	store, err := session.Open(session.InMemoryConfig())
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { store.Close() })
	return store
}

func TestHealthCheck(t *testing.T) {
	router := newTestRouter(t, New(nil, runner.Params{}))

	w := httptest.NewRecorder()
	req, _ := http.NewRequest(http.MethodGet, "/health", nil)
	router.ServeHTTP(w, req)

	if w.Code != http.StatusOK {
		t.Errorf("status = %d, want 200", w.Code)
	}
}

func TestHandleRepairValidatesBody(t *testing.T) {
	router := newTestRouter(t, New(nil, runner.Params{}))

	w := httptest.NewRecorder()
	req, _ := http.NewRequest(http.MethodPost, "/v1/repair",
		strings.NewReader(`{"root": ""}`))
	req.Header.Set("Content-Type", "application/json")
	router.ServeHTTP(w, req)

	if w.Code != http.StatusBadRequest {
		t.Errorf("status = %d, want 400 for missing required fields", w.Code)
	}
}

func TestHandleRepairReturnsReport(t *testing.T) {
	var captured runner.Params
	srv := New(nil, runner.Params{OracleProvider: "ollama", MaxBuildAttempts: 4},
		withRunFunc(func(_ context.Context, p runner.Params) (*engine.RecursiveBuildFixResult, error) {
			captured = p
			return &engine.RecursiveBuildFixResult{
				SessionID:    "sess-http",
				Success:      true,
				AttemptsUsed: 2,
				TotalFixed:   3,
			}, nil
		}))
	router := newTestRouter(t, srv)

	body := `{"root": "/tmp/project", "manifest_path": "/tmp/project/components.yaml", "concurrency": 2}`
	w := httptest.NewRecorder()
	req, _ := http.NewRequest(http.MethodPost, "/v1/repair", strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	router.ServeHTTP(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, body %s", w.Code, w.Body.String())
	}

	var report engine.RecursiveBuildFixResult
	if err := json.Unmarshal(w.Body.Bytes(), &report); err != nil {
		t.Fatalf("decoding response: %v", err)
	}
	if report.SessionID != "sess-http" || !report.Success || report.TotalFixed != 3 {
		t.Errorf("report = %+v", report)
	}

	// Request fields override defaults; untouched defaults survive.
	if captured.Root != "/tmp/project" || captured.Concurrency != 2 {
		t.Errorf("params = %+v", captured)
	}
	if captured.OracleProvider != "ollama" || captured.MaxBuildAttempts != 4 {
		t.Errorf("defaults lost: %+v", captured)
	}
}

func TestHandleSessionReport(t *testing.T) {
	store := openTestStore(t)
	report := &engine.RecursiveBuildFixResult{SessionID: "sess-9", Success: true}
	if err := store.SaveReport(context.Background(), "sess-9", report); err != nil {
		t.Fatal(err)
	}
	router := newTestRouter(t, New(store, runner.Params{}))

	w := httptest.NewRecorder()
	req, _ := http.NewRequest(http.MethodGet, "/v1/sessions/sess-9/report", nil)
	router.ServeHTTP(w, req)
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, body %s", w.Code, w.Body.String())
	}

	var loaded engine.RecursiveBuildFixResult
	if err := json.Unmarshal(w.Body.Bytes(), &loaded); err != nil {
		t.Fatal(err)
	}
	if loaded.SessionID != "sess-9" {
		t.Errorf("loaded = %+v", loaded)
	}

	w = httptest.NewRecorder()
	req, _ = http.NewRequest(http.MethodGet, "/v1/sessions/missing/report", nil)
	router.ServeHTTP(w, req)
	if w.Code != http.StatusNotFound {
		t.Errorf("status = %d, want 404", w.Code)
	}
}
