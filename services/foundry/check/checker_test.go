// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package check

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/AleutianAI/FoundryFOSS/services/foundry/component"
)

// stubValidator returns canned diagnostics or a canned failure.
type stubValidator struct {
	name  string
	diags []component.Diagnostic
	err   error
	calls int
}

func (s *stubValidator) Name() string { return s.name }

func (s *stubValidator) Validate(ctx context.Context, meta component.Metadata, content []byte) ([]component.Diagnostic, error) {
	s.calls++
	return s.diags, s.err
}

func writeComponent(t *testing.T, root, rel, content string) component.Metadata {
	t.Helper()
	path := filepath.Join(root, rel)
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}
	return component.Metadata{Name: "Comp", FilePath: rel, Category: component.CategoryUnit}
}

func TestCheck_MissingFile(t *testing.T) {
	c := New(t.TempDir(), nil)

	result, err := c.Check(context.Background(), component.Metadata{
		Name:     "Ghost",
		FilePath: "src/Ghost.tsx",
	})
	if err != nil {
		t.Fatal(err)
	}
	if result.Success {
		t.Error("missing file reported success")
	}
	if len(result.Errors) != 1 || result.Errors[0].Kind != component.KindMissingFile {
		t.Fatalf("got %+v, want one missing-file error", result.Errors)
	}
}

func TestCheck_UnionsValidatorFindings(t *testing.T) {
	root := t.TempDir()
	meta := writeComponent(t, root, "src/Comp.ts", "export const x = 1\n")

	a := &stubValidator{name: "a", diags: []component.Diagnostic{
		{Kind: component.KindTypeError, Message: "bad type", Severity: component.SeverityError},
	}}
	b := &stubValidator{name: "b", diags: []component.Diagnostic{
		{Kind: component.KindStyleError, Message: "long line", Severity: component.SeverityWarning},
	}}

	c := New(root, nil, WithValidators(a, b))
	result, err := c.Check(context.Background(), meta)
	if err != nil {
		t.Fatal(err)
	}
	if result.Success {
		t.Error("result with errors reported success")
	}
	if len(result.Errors) != 1 || len(result.Warnings) != 1 {
		t.Fatalf("errors=%d warnings=%d, want 1/1", len(result.Errors), len(result.Warnings))
	}
	if len(result.All()) != 2 {
		t.Errorf("All() = %d entries, want 2", len(result.All()))
	}
}

func TestCheck_BrokenValidatorNeverBlocks(t *testing.T) {
	root := t.TempDir()
	meta := writeComponent(t, root, "src/Comp.ts", "export const x = 1\n")

	broken := &stubValidator{name: "broken", err: errors.New("tool exploded")}
	clean := &stubValidator{name: "clean"}

	c := New(root, nil, WithValidators(broken, clean))
	result, err := c.Check(context.Background(), meta)
	if err != nil {
		t.Fatal(err)
	}
	if !result.Success {
		t.Errorf("broken validator blocked the pipeline: %+v", result)
	}
	if broken.calls != 1 || clean.calls != 1 {
		t.Errorf("validators not all invoked: broken=%d clean=%d", broken.calls, clean.calls)
	}
}

func TestCheck_InvalidInput(t *testing.T) {
	c := New(t.TempDir(), nil)
	if _, err := c.Check(context.Background(), component.Metadata{}); !errors.Is(err, ErrInvalidInput) {
		t.Fatalf("got %v, want ErrInvalidInput", err)
	}
}
