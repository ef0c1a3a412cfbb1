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
	"bytes"
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/exec"
	"path/filepath"
	"regexp"
	"strconv"
	"strings"

	"github.com/AleutianAI/FoundryFOSS/services/foundry/component"
)

// ParserFunc converts raw linter output into normalized diagnostics.
//
// Parsing linter output is the one inherently format-fragile part of the
// checker, so it is isolated behind this type: each linter gets its own
// parser and nothing else knows about output formats.
type ParserFunc func(output []byte) []component.Diagnostic

// StyleConfig configures the external style linter.
//
// Thread Safety: Treat as immutable after creation.
type StyleConfig struct {
	// Command is the linter executable name, e.g. "eslint".
	Command string

	// Args are passed before the file path. Should select a
	// machine-parseable output format.
	Args []string

	// Parser converts the linter's output into diagnostics.
	Parser ParserFunc

	// Strict elevates style warnings to errors.
	Strict bool
}

// DefaultStyleConfig returns an eslint configuration with the compact
// formatter, which the default parser understands.
func DefaultStyleConfig() StyleConfig {
	return StyleConfig{
		Command: "eslint",
		Args:    []string{"--format", "compact", "--no-color"},
		Parser:  ParseESLintCompact,
	}
}

// StyleValidator runs a configured external linter against one file.
//
// Description:
//
//	Probes the system PATH for the linter once at construction. When the
//	linter is not installed, Validate reports zero findings — convention
//	checks are advisory and an absent tool never blocks repair.
//
// Thread Safety: Safe for concurrent use.
type StyleValidator struct {
	config    StyleConfig
	available bool
	logger    *slog.Logger
}

// NewStyleValidator creates the style validator and probes availability.
func NewStyleValidator(config StyleConfig, logger *slog.Logger) *StyleValidator {
	if logger == nil {
		logger = slog.Default()
	}
	_, err := exec.LookPath(config.Command)
	available := err == nil
	if !available {
		logger.Warn("Style linter not installed, style checks disabled",
			slog.String("command", config.Command))
	}
	return &StyleValidator{config: config, available: available, logger: logger}
}

// Name returns the validator name.
func (v *StyleValidator) Name() string { return "style" }

// Available reports whether the linter binary was found in PATH.
func (v *StyleValidator) Available() bool { return v.available }

// Validate runs the linter on the component's content via a temp file.
func (v *StyleValidator) Validate(ctx context.Context, meta component.Metadata, content []byte) ([]component.Diagnostic, error) {
	if !v.available {
		return nil, nil
	}

	// Lint a temp copy so the validator stays read-only with respect to
	// the project tree even if the linter is misconfigured with --fix.
	tmp, err := os.CreateTemp("", "foundry-style-*"+filepath.Ext(meta.FilePath))
	if err != nil {
		return nil, fmt.Errorf("%w: creating temp file: %v", ErrToolUnavailable, err)
	}
	tmpPath := tmp.Name()
	defer os.Remove(tmpPath)

	if _, err := tmp.Write(content); err != nil {
		tmp.Close()
		return nil, fmt.Errorf("%w: writing temp file: %v", ErrToolUnavailable, err)
	}
	tmp.Close()

	args := append(append([]string{}, v.config.Args...), tmpPath)
	cmd := exec.CommandContext(ctx, v.config.Command, args...)
	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	if err := cmd.Run(); err != nil {
		// Linters exit non-zero when they find issues; only a failure
		// to execute (or a timeout) counts as a tool failure.
		if _, isExit := err.(*exec.ExitError); !isExit || ctx.Err() != nil {
			return nil, fmt.Errorf("%w: %s: %v", ErrToolUnavailable, v.config.Command, err)
		}
	}

	diags := v.config.Parser(stdout.Bytes())
	for i := range diags {
		diags[i].Kind = component.KindStyleError
		if v.config.Strict {
			diags[i].Severity = component.SeverityError
		}
	}
	return diags, nil
}

// eslintCompactRe matches eslint's compact formatter:
//
//	/path/file.ts: line 3, col 7, Error - 'x' is not defined. (no-undef)
var eslintCompactRe = regexp.MustCompile(
	`^(.*): line (\d+), col (\d+), (\w+) - (.*?)(?: \(([\w@/-]+)\))?$`)

// ParseESLintCompact parses eslint --format compact output.
func ParseESLintCompact(output []byte) []component.Diagnostic {
	var diags []component.Diagnostic
	for _, line := range strings.Split(string(output), "\n") {
		m := eslintCompactRe.FindStringSubmatch(strings.TrimRight(line, "\r"))
		if m == nil {
			continue
		}
		lineNo, _ := strconv.Atoi(m[2])
		colNo, _ := strconv.Atoi(m[3])
		diags = append(diags, component.Diagnostic{
			Kind:     component.KindStyleError,
			Code:     m[6],
			Message:  m[5],
			Location: &component.Location{Line: lineNo, Column: colNo},
			Severity: component.SeverityFromString(strings.ToLower(m[4])),
		})
	}
	return diags
}

// unixFormatRe matches the common "file:line:col: message" tool format.
var unixFormatRe = regexp.MustCompile(`^(.+?):(\d+):(\d+):\s*(.*)$`)

// ParseUnixFormat parses file:line:col: message lines, treating every
// finding as a warning. Useful for linters without a compact mode.
func ParseUnixFormat(output []byte) []component.Diagnostic {
	var diags []component.Diagnostic
	for _, line := range strings.Split(string(output), "\n") {
		m := unixFormatRe.FindStringSubmatch(strings.TrimRight(line, "\r"))
		if m == nil {
			continue
		}
		lineNo, _ := strconv.Atoi(m[2])
		colNo, _ := strconv.Atoi(m[3])
		diags = append(diags, component.Diagnostic{
			Kind:     component.KindStyleError,
			Message:  m[4],
			Location: &component.Location{Line: lineNo, Column: colNo},
			Severity: component.SeverityWarning,
		})
	}
	return diags
}
