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
	"os"
	"path/filepath"
	"regexp"
	"strings"

	"github.com/AleutianAI/FoundryFOSS/services/foundry/component"
)

// Import statement patterns for the generated JS/TS dialects. Bare module
// specifiers (no leading "." and no alias prefix) refer to third-party
// packages and are not this subsystem's problem.
var importSpecRes = []*regexp.Regexp{
	regexp.MustCompile(`(?m)^\s*import\s+[^'"]*?from\s+['"]([^'"]+)['"]`),
	regexp.MustCompile(`(?m)^\s*import\s+['"]([^'"]+)['"]`),
	regexp.MustCompile(`(?m)^\s*export\s+[^'"]*?from\s+['"]([^'"]+)['"]`),
	regexp.MustCompile(`require\(\s*['"]([^'"]+)['"]\s*\)`),
}

// resolvableExtensions are tried, in order, when an import omits one.
var resolvableExtensions = []string{
	"", ".ts", ".tsx", ".js", ".jsx", ".mjs", ".json", ".css",
}

// ImportValidator statically resolves a file's import statements.
//
// Description:
//
//	Scans import/export/require statements and verifies each specifier
//	resolves to an existing file under the project root. Relative paths
//	resolve against the file's directory; aliased paths resolve against
//	the configured root mapping (e.g. "@/" -> "src"). Unresolved imports
//	are errors; bare package specifiers are skipped.
//
// Thread Safety: Safe for concurrent use.
type ImportValidator struct {
	root       string
	aliasRoots map[string]string
}

// NewImportValidator creates the import validator.
//
// Inputs:
//
//	root - Absolute path to the project root.
//	aliasRoots - Alias prefix to directory (relative to root). May be nil.
func NewImportValidator(root string, aliasRoots map[string]string) *ImportValidator {
	return &ImportValidator{root: root, aliasRoots: aliasRoots}
}

// Name returns the validator name.
func (v *ImportValidator) Name() string { return "imports" }

// Validate scans and resolves every import specifier in the content.
func (v *ImportValidator) Validate(ctx context.Context, meta component.Metadata, content []byte) ([]component.Diagnostic, error) {
	src := string(content)
	fileDir := filepath.Dir(filepath.Join(v.root, meta.FilePath))

	var diags []component.Diagnostic
	seen := make(map[string]struct{})
	for _, re := range importSpecRes {
		for _, m := range re.FindAllStringSubmatchIndex(src, -1) {
			spec := src[m[2]:m[3]]
			if _, dup := seen[spec]; dup {
				continue
			}
			seen[spec] = struct{}{}

			target, managed := v.resolveBase(spec, fileDir)
			if !managed {
				continue
			}
			if !resolvesToFile(target) {
				line := 1 + strings.Count(src[:m[0]], "\n")
				diags = append(diags, component.Diagnostic{
					Kind:     component.KindImportResolution,
					Code:     "unresolved-import",
					Message:  "import '" + spec + "' does not resolve to a file",
					Location: &component.Location{Line: line, Column: 1},
					Severity: component.SeverityError,
				})
			}
		}
	}
	return diags, nil
}

// resolveBase maps a specifier to an absolute base path. The second
// return is false for bare specifiers this subsystem does not manage.
func (v *ImportValidator) resolveBase(spec, fileDir string) (string, bool) {
	if strings.HasPrefix(spec, ".") {
		return filepath.Join(fileDir, spec), true
	}
	for prefix, dir := range v.aliasRoots {
		if strings.HasPrefix(spec, prefix) {
			rest := strings.TrimPrefix(spec, prefix)
			return filepath.Join(v.root, dir, rest), true
		}
	}
	return "", false
}

// resolvesToFile tries extension and index-file candidates for a base path.
func resolvesToFile(base string) bool {
	for _, ext := range resolvableExtensions {
		if isFile(base + ext) {
			return true
		}
	}
	for _, ext := range resolvableExtensions[1:] {
		if isFile(filepath.Join(base, "index"+ext)) {
			return true
		}
	}
	return false
}

func isFile(path string) bool {
	info, err := os.Stat(path)
	return err == nil && !info.IsDir()
}
