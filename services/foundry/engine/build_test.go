// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package engine

import (
	"context"
	"testing"

	"github.com/AleutianAI/FoundryFOSS/services/foundry/component"
)

func TestParseTypeScriptBuild(t *testing.T) {
	output := []byte(`src/App.tsx(3,7): error TS2304: Cannot find name 'cart'.
src/lib/math.ts(12,1): warning TS6133: 'unused' is declared but never read.
Found 2 errors.
`)
	findings := ParseTypeScriptBuild(output)
	if len(findings) != 2 {
		t.Fatalf("findings = %d, want 2", len(findings))
	}

	first := findings[0]
	if first.FilePath != "src/App.tsx" {
		t.Errorf("file = %q, want src/App.tsx", first.FilePath)
	}
	if first.Diagnostic.Code != "TS2304" {
		t.Errorf("code = %q, want TS2304", first.Diagnostic.Code)
	}
	if first.Diagnostic.Severity != component.SeverityError {
		t.Errorf("severity = %v, want error", first.Diagnostic.Severity)
	}
	if first.Diagnostic.Location == nil || first.Diagnostic.Location.Line != 3 || first.Diagnostic.Location.Column != 7 {
		t.Errorf("location = %+v, want 3:7", first.Diagnostic.Location)
	}
	if findings[1].Diagnostic.Severity != component.SeverityWarning {
		t.Errorf("second severity = %v, want warning", findings[1].Diagnostic.Severity)
	}
}

func TestParseUnixBuild(t *testing.T) {
	output := []byte(`src/app.py:10:5: error: undefined name 'cart'
src/app.py:22:1: warning: line too long
compiling 4 files
`)
	findings := ParseUnixBuild(output)
	if len(findings) != 2 {
		t.Fatalf("findings = %d, want 2", len(findings))
	}
	if findings[0].Diagnostic.Severity != component.SeverityError {
		t.Errorf("first severity = %v, want error", findings[0].Diagnostic.Severity)
	}
	if findings[1].Diagnostic.Severity != component.SeverityWarning {
		t.Errorf("second severity = %v, want warning", findings[1].Diagnostic.Severity)
	}
	if findings[0].Diagnostic.Kind != component.KindBuildError {
		t.Errorf("kind = %v, want build-error", findings[0].Diagnostic.Kind)
	}
}

func TestCommandValidatorUnavailable(t *testing.T) {
	v := NewCommandValidator("build", "definitely-not-a-real-tool-xyz", nil, t.TempDir(), ParseUnixBuild, nil)
	if v.Available() {
		t.Fatal("nonexistent command reported available")
	}
	findings, err := v.Validate(context.Background())
	if err != nil {
		t.Fatalf("unavailable validator must degrade, got error %v", err)
	}
	if findings != nil {
		t.Errorf("findings = %v, want none", findings)
	}
}

func TestCommandValidatorParsesFailingBuild(t *testing.T) {
	// A non-zero exit with parseable output is a failing build, not a
	// broken tool.
	v := NewCommandValidator("build", "sh",
		[]string{"-c", `printf 'src/a.ts:1:2: error: boom\n'; exit 1`},
		t.TempDir(), ParseUnixBuild, nil)
	if !v.Available() {
		t.Skip("sh not available")
	}

	findings, err := v.Validate(context.Background())
	if err != nil {
		t.Fatalf("Validate failed: %v", err)
	}
	if len(findings) != 1 {
		t.Fatalf("findings = %d, want 1", len(findings))
	}
	if findings[0].FilePath != "src/a.ts" || findings[0].Diagnostic.Message != "boom" {
		t.Errorf("finding = %+v", findings[0])
	}
}
