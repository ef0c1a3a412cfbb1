// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package repair

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/AleutianAI/FoundryFOSS/services/foundry/component"
	"github.com/AleutianAI/FoundryFOSS/services/llm"
)

type stubLLM struct {
	response string
	err      error
	prompt   string
}

func (s *stubLLM) Generate(_ context.Context, prompt string, _ llm.GenerationParams) (string, error) {
	s.prompt = prompt
	return s.response, s.err
}

func TestStripCodeFence(t *testing.T) {
	tests := []struct {
		name string
		in   string
		want string
	}{
		{"no fence", "const a = 1;\n", "const a = 1;\n"},
		{"plain fence", "```\nconst a = 1;\n```", "const a = 1;\n"},
		{"language tag", "```typescript\nconst a = 1;\n```", "const a = 1;\n"},
		{"surrounding whitespace", "\n```js\nconst a = 1;\n```\n\n", "const a = 1;\n"},
		{"fence only", "```", "```"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := stripCodeFence(tt.in); got != tt.want {
				t.Errorf("stripCodeFence(%q) = %q, want %q", tt.in, got, tt.want)
			}
		})
	}
}

func TestLLMOracleRepair(t *testing.T) {
	client := &stubLLM{response: "```tsx\nexport function CartSummary() { return null; }\n```"}
	oracle := NewLLMOracle(client, WithRateLimit(100, 100))

	got, err := oracle.Repair(context.Background(), Request{
		Metadata: component.Metadata{
			Name:         "CartSummary",
			FilePath:     "src/CartSummary.tsx",
			Category:     component.CategoryUnit,
			Dependencies: []string{"cartMath"},
			Interface: component.InterfaceDescriptor{
				Exports: []component.Export{{Name: "CartSummary", Kind: "component"}},
			},
		},
		Content: "broken {{{",
		Diagnostics: []component.Diagnostic{{
			Kind:     component.KindTypeError,
			Code:     "syntax-error",
			Message:  "unexpected token",
			Location: &component.Location{Line: 1, Column: 8},
			Severity: component.SeverityError,
		}},
	})
	if err != nil {
		t.Fatalf("Repair failed: %v", err)
	}
	if got != "export function CartSummary() { return null; }\n" {
		t.Errorf("Repair = %q, fence not stripped", got)
	}

	// The prompt must carry everything the model needs to honor the
	// component contract.
	for _, want := range []string{
		"Component: CartSummary",
		"Depends on: cartMath",
		"component CartSummary",
		"[type-error] [syntax-error] at 1:8 unexpected token",
		"broken {{{",
	} {
		if !strings.Contains(client.prompt, want) {
			t.Errorf("prompt missing %q", want)
		}
	}
}

func TestLLMOracleRepairFailures(t *testing.T) {
	tests := []struct {
		name     string
		response string
		err      error
	}{
		{"backend error", "", errors.New("connection refused")},
		{"empty response", "   \n", nil},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			oracle := NewLLMOracle(&stubLLM{response: tt.response, err: tt.err}, WithRateLimit(100, 100))
			_, err := oracle.Repair(context.Background(), Request{})
			if !errors.Is(err, ErrOracleFailed) {
				t.Errorf("err = %v, want ErrOracleFailed", err)
			}
		})
	}
}
