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
	"fmt"
	"log/slog"
	"strings"
	"time"

	"golang.org/x/time/rate"

	"github.com/AleutianAI/FoundryFOSS/services/foundry/component"
	"github.com/AleutianAI/FoundryFOSS/services/llm"
)

// Request carries everything the oracle needs to propose a corrected file.
type Request struct {
	// Metadata is the component being repaired.
	Metadata component.Metadata

	// Content is the current full file content.
	Content string

	// Diagnostics are the problems the correction must address.
	Diagnostics []component.Diagnostic
}

// Oracle is the external code-repair capability: given source plus
// diagnostics, return a corrected full-file replacement.
type Oracle interface {
	Repair(ctx context.Context, req Request) (string, error)
}

// LLMOracle adapts an LLM backend into the Oracle contract.
//
// Description:
//
//	Renders the repair prompt, rate-limits and bounds every call, and
//	strips markdown code fences from the response. Provider rate limits
//	are respected with a token bucket shared across concurrent fixes.
//
// Thread Safety: Safe for concurrent use.
type LLMOracle struct {
	client  llm.LLMClient
	limiter *rate.Limiter
	timeout time.Duration
	params  llm.GenerationParams
	logger  *slog.Logger
}

// OracleOption configures the LLMOracle.
type OracleOption func(*LLMOracle)

// WithRateLimit sets the sustained request rate and burst for oracle calls.
func WithRateLimit(rps float64, burst int) OracleOption {
	return func(o *LLMOracle) { o.limiter = rate.NewLimiter(rate.Limit(rps), burst) }
}

// WithCallTimeout bounds a single oracle call.
func WithCallTimeout(d time.Duration) OracleOption {
	return func(o *LLMOracle) { o.timeout = d }
}

// WithOracleLogger sets the logger.
func WithOracleLogger(logger *slog.Logger) OracleOption {
	return func(o *LLMOracle) { o.logger = logger }
}

// DefaultCallTimeout bounds one oracle round trip.
const DefaultCallTimeout = 2 * time.Minute

// NewLLMOracle wraps an LLM client as a repair oracle.
func NewLLMOracle(client llm.LLMClient, opts ...OracleOption) *LLMOracle {
	temp := float32(0.1)
	o := &LLMOracle{
		client:  client,
		limiter: rate.NewLimiter(rate.Limit(1), 2),
		timeout: DefaultCallTimeout,
		params:  llm.GenerationParams{Temperature: &temp},
	}
	for _, opt := range opts {
		opt(o)
	}
	if o.logger == nil {
		o.logger = slog.Default()
	}
	return o
}

// Repair implements Oracle.
func (o *LLMOracle) Repair(ctx context.Context, req Request) (string, error) {
	if err := o.limiter.Wait(ctx); err != nil {
		return "", fmt.Errorf("%w: rate limit wait: %v", ErrOracleFailed, err)
	}

	ctx, cancel := context.WithTimeout(ctx, o.timeout)
	defer cancel()

	raw, err := o.client.Generate(ctx, renderPrompt(req), o.params)
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrOracleFailed, err)
	}

	corrected := stripCodeFence(raw)
	if strings.TrimSpace(corrected) == "" {
		return "", fmt.Errorf("%w: empty response", ErrOracleFailed)
	}
	return corrected, nil
}

// renderPrompt builds the repair request text: current content, component
// metadata, and a human-readable rendering of each diagnostic.
func renderPrompt(req Request) string {
	var sb strings.Builder

	fmt.Fprintf(&sb, "Fix the following %s component file.\n\n", req.Metadata.Category)
	fmt.Fprintf(&sb, "Component: %s\nFile: %s\n", req.Metadata.Name, req.Metadata.FilePath)
	if len(req.Metadata.Dependencies) > 0 {
		fmt.Fprintf(&sb, "Depends on: %s\n", strings.Join(req.Metadata.Dependencies, ", "))
	}
	if desc := req.Metadata.Interface.Description; desc != "" {
		fmt.Fprintf(&sb, "Purpose: %s\n", desc)
	}
	if len(req.Metadata.Interface.Exports) > 0 {
		sb.WriteString("Required exports:\n")
		for _, e := range req.Metadata.Interface.Exports {
			fmt.Fprintf(&sb, "  - %s %s", e.Kind, e.Name)
			if e.Signature != "" {
				fmt.Fprintf(&sb, " %s", e.Signature)
			}
			sb.WriteString("\n")
		}
	}

	sb.WriteString("\nProblems to fix:\n")
	for _, d := range req.Diagnostics {
		fmt.Fprintf(&sb, "  - %s\n", d.Render())
	}

	sb.WriteString("\nCurrent file content:\n```\n")
	sb.WriteString(req.Content)
	if !strings.HasSuffix(req.Content, "\n") {
		sb.WriteString("\n")
	}
	sb.WriteString("```\n\n")
	sb.WriteString("Return the complete corrected file content and nothing else. " +
		"Keep all exports listed above. Do not add explanations.\n")
	return sb.String()
}

// stripCodeFence removes a surrounding markdown code fence, if present.
// Models routinely wrap file content despite instructions not to.
func stripCodeFence(s string) string {
	trimmed := strings.TrimSpace(s)
	if !strings.HasPrefix(trimmed, "```") {
		return s
	}
	lines := strings.Split(trimmed, "\n")
	if len(lines) < 2 {
		return s
	}
	// Drop the opening fence (with optional language tag).
	lines = lines[1:]
	// Drop the closing fence.
	if strings.TrimSpace(lines[len(lines)-1]) == "```" {
		lines = lines[:len(lines)-1]
	}
	return strings.Join(lines, "\n") + "\n"
}
