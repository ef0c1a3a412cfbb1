// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package logging

import (
	"bytes"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestParseLevel(t *testing.T) {
	tests := []struct {
		in   string
		want Level
	}{
		{"debug", LevelDebug},
		{"INFO", LevelInfo},
		{"warn", LevelWarn},
		{"warning", LevelWarn},
		{"error", LevelError},
		{"", LevelInfo},
		{"nonsense", LevelInfo},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			if got := ParseLevel(tt.in); got != tt.want {
				t.Errorf("ParseLevel(%q) = %v, want %v", tt.in, got, tt.want)
			}
		})
	}
}

func TestLevelFiltering(t *testing.T) {
	var buf bytes.Buffer
	logger := New(Config{Level: LevelWarn, Output: &buf})

	logger.Debug("dropped debug")
	logger.Info("dropped info")
	logger.Warn("kept warn")
	logger.Error("kept error")

	out := buf.String()
	if strings.Contains(out, "dropped") {
		t.Errorf("messages below the level leaked:\n%s", out)
	}
	if !strings.Contains(out, "kept warn") || !strings.Contains(out, "kept error") {
		t.Errorf("messages at or above the level missing:\n%s", out)
	}
}

func TestServiceAttribute(t *testing.T) {
	var buf bytes.Buffer
	logger := New(Config{Output: &buf, Service: "repair-worker"})
	logger.Info("hello")

	if !strings.Contains(buf.String(), "repair-worker") {
		t.Errorf("service attribute missing:\n%s", buf.String())
	}
}

func TestJSONOutput(t *testing.T) {
	var buf bytes.Buffer
	logger := New(Config{Output: &buf, JSON: true})
	logger.Info("structured", "session_id", "s-1")

	var record map[string]any
	if err := json.Unmarshal(buf.Bytes(), &record); err != nil {
		t.Fatalf("output is not JSON: %v\n%s", err, buf.String())
	}
	if record["msg"] != "structured" || record["session_id"] != "s-1" {
		t.Errorf("record = %v", record)
	}
}

func TestFileSink(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "logs")
	var buf bytes.Buffer
	logger := New(Config{Output: &buf, LogDir: dir, Service: "foundry"})

	logger.Info("to both sinks", "key", "value")
	if err := logger.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}

	entries, err := os.ReadDir(dir)
	if err != nil {
		t.Fatalf("log directory not created: %v", err)
	}
	if len(entries) != 1 {
		t.Fatalf("log files = %d, want 1", len(entries))
	}
	if !strings.HasPrefix(entries[0].Name(), "foundry_") {
		t.Errorf("file name = %q, want foundry_{date}.log", entries[0].Name())
	}

	data, err := os.ReadFile(filepath.Join(dir, entries[0].Name()))
	if err != nil {
		t.Fatal(err)
	}
	var record map[string]any
	if err := json.Unmarshal(bytes.TrimSpace(data), &record); err != nil {
		t.Fatalf("file sink is not JSON: %v\n%s", err, data)
	}
	if record["key"] != "value" {
		t.Errorf("record = %v", record)
	}

	// The terminal sink stays human-readable.
	if !strings.Contains(buf.String(), "to both sinks") {
		t.Errorf("stderr sink missing message:\n%s", buf.String())
	}
}

func TestCloseWithoutFileSink(t *testing.T) {
	logger := New(Config{Output: &bytes.Buffer{}})
	if err := logger.Close(); err != nil {
		t.Errorf("Close on sinkless logger: %v", err)
	}
	if err := logger.Close(); err != nil {
		t.Errorf("double Close: %v", err)
	}
}
