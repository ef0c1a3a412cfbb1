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
	"testing"

	"github.com/AleutianAI/FoundryFOSS/services/foundry/component"
)

func importTestTree(t *testing.T) string {
	t.Helper()
	root := t.TempDir()
	files := []string{
		"src/utils/formatPrice.ts",
		"src/components/Button.tsx",
		"src/api/index.ts",
		"src/styles/cart.css",
	}
	for _, f := range files {
		path := filepath.Join(root, f)
		if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
			t.Fatal(err)
		}
		if err := os.WriteFile(path, []byte("export {}\n"), 0o644); err != nil {
			t.Fatal(err)
		}
	}
	return root
}

func TestImportValidator(t *testing.T) {
	root := importTestTree(t)
	v := NewImportValidator(root, map[string]string{"@/": "src"})
	meta := component.Metadata{Name: "Cart", FilePath: "src/components/Cart.tsx"}

	tests := []struct {
		name       string
		content    string
		wantErrors int
	}{
		{
			name: "all resolvable",
			content: `import { formatPrice } from '../utils/formatPrice';
import Button from './Button';
import { api } from '@/api';
import '../styles/cart.css';
import React from 'react';
`,
			wantErrors: 0,
		},
		{
			name:       "unresolved relative import",
			content:    "import { gone } from './DoesNotExist';\n",
			wantErrors: 1,
		},
		{
			name:       "unresolved alias import",
			content:    "import { gone } from '@/missing/place';\n",
			wantErrors: 1,
		},
		{
			name:       "bare specifiers skipped",
			content:    "import React from 'react';\nconst _ = require('lodash');\n",
			wantErrors: 0,
		},
		{
			name:       "export from and require",
			content:    "export { formatPrice } from '../utils/formatPrice';\nconst api = require('@/api');\n",
			wantErrors: 0,
		},
		{
			name:       "duplicate specifier reported once",
			content:    "import { a } from './Nope';\nimport { b } from './Nope';\n",
			wantErrors: 1,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			diags, err := v.Validate(context.Background(), meta, []byte(tt.content))
			if err != nil {
				t.Fatal(err)
			}
			if len(diags) != tt.wantErrors {
				t.Fatalf("got %d diagnostics (%+v), want %d", len(diags), diags, tt.wantErrors)
			}
			for _, d := range diags {
				if d.Kind != component.KindImportResolution {
					t.Errorf("kind = %v, want import-resolution", d.Kind)
				}
				if d.Severity != component.SeverityError {
					t.Errorf("severity = %v, want error", d.Severity)
				}
			}
		})
	}
}

func TestImportValidator_ReportsLineNumbers(t *testing.T) {
	root := importTestTree(t)
	v := NewImportValidator(root, nil)
	meta := component.Metadata{Name: "Cart", FilePath: "src/components/Cart.tsx"}

	content := "import Button from './Button';\nimport { gone } from './Missing';\n"
	diags, err := v.Validate(context.Background(), meta, []byte(content))
	if err != nil {
		t.Fatal(err)
	}
	if len(diags) != 1 {
		t.Fatalf("got %d diagnostics, want 1", len(diags))
	}
	if diags[0].Location == nil || diags[0].Location.Line != 2 {
		t.Errorf("location = %+v, want line 2", diags[0].Location)
	}
}
