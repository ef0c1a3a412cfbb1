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
	"fmt"
	"path/filepath"
	"strconv"
	"strings"

	sitter "github.com/smacker/go-tree-sitter"
	"github.com/smacker/go-tree-sitter/golang"
	"github.com/smacker/go-tree-sitter/javascript"
	"github.com/smacker/go-tree-sitter/python"
	"github.com/smacker/go-tree-sitter/typescript/tsx"
	"github.com/smacker/go-tree-sitter/typescript/typescript"

	"github.com/AleutianAI/FoundryFOSS/services/foundry/component"
)

// maxSyntaxErrors caps how many parse errors a single file reports.
// A badly broken file produces hundreds of ERROR nodes; past a handful
// they add nothing to the repair prompt.
const maxSyntaxErrors = 10

// SyntaxValidator checks structural validity with tree-sitter.
//
// Description:
//
//	Parses the file with the grammar matching its extension and reports
//	every ERROR or MISSING node as a type-error diagnostic with line and
//	column. Supports JavaScript, TypeScript, TSX, Python, and Go.
//
// Thread Safety: Safe for concurrent use; a parser is created per call.
type SyntaxValidator struct{}

// NewSyntaxValidator creates the structural validator.
func NewSyntaxValidator() *SyntaxValidator {
	return &SyntaxValidator{}
}

// Name returns the validator name.
func (v *SyntaxValidator) Name() string { return "syntax" }

// Validate parses the content and reports structural errors.
func (v *SyntaxValidator) Validate(ctx context.Context, meta component.Metadata, content []byte) ([]component.Diagnostic, error) {
	lang := treeSitterLanguage(meta.FilePath)
	if lang == nil {
		return nil, fmt.Errorf("%w: %s", ErrUnsupportedLanguage, filepath.Ext(meta.FilePath))
	}

	parser := sitter.NewParser()
	parser.SetLanguage(lang)

	tree, err := parser.ParseCtx(ctx, nil, content)
	if err != nil {
		return nil, fmt.Errorf("%w: parsing failed: %v", ErrToolUnavailable, err)
	}
	defer tree.Close()

	return collectSyntaxErrors(tree.RootNode(), content), nil
}

// treeSitterLanguage maps a file extension to its grammar.
func treeSitterLanguage(path string) *sitter.Language {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".js", ".jsx", ".mjs", ".cjs":
		return javascript.GetLanguage()
	case ".ts":
		return typescript.GetLanguage()
	case ".tsx":
		return tsx.GetLanguage()
	case ".py":
		return python.GetLanguage()
	case ".go":
		return golang.GetLanguage()
	default:
		return nil
	}
}

// collectSyntaxErrors walks the parse tree collecting ERROR and MISSING
// nodes as diagnostics, capped at maxSyntaxErrors.
func collectSyntaxErrors(root *sitter.Node, src []byte) []component.Diagnostic {
	var diags []component.Diagnostic

	var walk func(n *sitter.Node)
	walk = func(n *sitter.Node) {
		if len(diags) >= maxSyntaxErrors {
			return
		}
		switch {
		case n.IsError():
			pt := n.StartPoint()
			diags = append(diags, component.Diagnostic{
				Kind:     component.KindTypeError,
				Code:     "syntax-error",
				Message:  "unexpected " + errorSnippet(n, src),
				Location: &component.Location{Line: int(pt.Row) + 1, Column: int(pt.Column) + 1},
				Severity: component.SeverityError,
			})
			// ERROR subtrees are noise; the first position is enough.
			return
		case n.IsMissing():
			pt := n.StartPoint()
			diags = append(diags, component.Diagnostic{
				Kind:     component.KindTypeError,
				Code:     "syntax-missing",
				Message:  fmt.Sprintf("missing %s", n.Type()),
				Location: &component.Location{Line: int(pt.Row) + 1, Column: int(pt.Column) + 1},
				Severity: component.SeverityError,
			})
			return
		}
		for i := 0; i < int(n.ChildCount()); i++ {
			walk(n.Child(i))
		}
	}
	walk(root)
	return diags
}

// errorSnippet renders a short excerpt of the offending source region.
func errorSnippet(n *sitter.Node, src []byte) string {
	start, end := n.StartByte(), n.EndByte()
	if end > uint32(len(src)) {
		end = uint32(len(src))
	}
	snippet := string(src[start:end])
	snippet = strings.TrimSpace(snippet)
	if idx := strings.IndexByte(snippet, '\n'); idx >= 0 {
		snippet = snippet[:idx]
	}
	if len(snippet) > 40 {
		snippet = snippet[:40] + "..."
	}
	if snippet == "" {
		return "token"
	}
	return "token " + strconv.Quote(snippet)
}
