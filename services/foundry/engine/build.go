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
	"bytes"
	"context"
	"fmt"
	"log/slog"
	"os/exec"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/AleutianAI/FoundryFOSS/services/foundry/component"
)

// BuildError is one project-wide finding attributed to a file.
type BuildError struct {
	// FilePath is the file the tool reported, as printed by the tool.
	FilePath string `json:"file_path"`

	// Diagnostic is the normalized finding.
	Diagnostic component.Diagnostic `json:"diagnostic"`
}

// BuildParser converts raw build/test/lint tool output into findings.
//
// Parsing tool output is the one inherently format-fragile part of the
// controller, so it is isolated behind this type: each tool gets its own
// parser and nothing else knows about output formats.
type BuildParser func(output []byte) []BuildError

// ProjectValidator is one project-wide validation pass (build, test, lint).
type ProjectValidator interface {
	// Name identifies the validator in logs and reports.
	Name() string

	// Validate runs the pass and returns its findings. A non-nil error
	// means the validator itself failed to run; the controller logs it
	// and counts zero findings.
	Validate(ctx context.Context) ([]BuildError, error)
}

// DefaultBuildTimeout bounds one project validator run.
const DefaultBuildTimeout = 5 * time.Minute

// CommandValidator runs an external command and parses its output.
//
// Description:
//
//	Probes the system PATH for the command once at construction. When
//	the command is not installed, Validate reports zero findings and the
//	pipeline proceeds on the remaining validators.
//
//	A non-zero exit is the normal shape of a failing build and is not a
//	tool failure; only failure to execute, or a timeout, is.
//
// Thread Safety: Safe for concurrent use.
type CommandValidator struct {
	name      string
	command   string
	args      []string
	dir       string
	parser    BuildParser
	timeout   time.Duration
	available bool
	logger    *slog.Logger
}

// NewCommandValidator creates a validator that runs command with args in
// dir and parses output with parser.
func NewCommandValidator(name, command string, args []string, dir string, parser BuildParser, logger *slog.Logger) *CommandValidator {
	if logger == nil {
		logger = slog.Default()
	}
	_, err := exec.LookPath(command)
	available := err == nil
	if !available {
		logger.Warn("Project validator command not installed, pass disabled",
			slog.String("validator", name),
			slog.String("command", command),
		)
	}
	return &CommandValidator{
		name:      name,
		command:   command,
		args:      args,
		dir:       dir,
		parser:    parser,
		timeout:   DefaultBuildTimeout,
		available: available,
		logger:    logger,
	}
}

// Name returns the validator name.
func (v *CommandValidator) Name() string { return v.name }

// Available reports whether the command was found in PATH.
func (v *CommandValidator) Available() bool { return v.available }

// Validate runs the command and parses stdout and stderr.
func (v *CommandValidator) Validate(ctx context.Context) ([]BuildError, error) {
	if !v.available {
		return nil, nil
	}

	ctx, cancel := context.WithTimeout(ctx, v.timeout)
	defer cancel()

	cmd := exec.CommandContext(ctx, v.command, v.args...)
	cmd.Dir = v.dir
	var out bytes.Buffer
	cmd.Stdout = &out
	cmd.Stderr = &out

	if err := cmd.Run(); err != nil {
		if _, isExit := err.(*exec.ExitError); !isExit || ctx.Err() != nil {
			return nil, fmt.Errorf("%w: %s: %v", ErrToolUnavailable, v.command, err)
		}
	}
	return v.parser(out.Bytes()), nil
}

// tscRe matches the TypeScript compiler's default output:
//
//	src/App.tsx(3,7): error TS2304: Cannot find name 'cart'.
var tscRe = regexp.MustCompile(`^(.+?)\((\d+),(\d+)\): (error|warning) (\w+): (.*)$`)

// ParseTypeScriptBuild parses tsc output into build findings.
func ParseTypeScriptBuild(output []byte) []BuildError {
	var findings []BuildError
	for _, line := range strings.Split(string(output), "\n") {
		m := tscRe.FindStringSubmatch(strings.TrimRight(line, "\r"))
		if m == nil {
			continue
		}
		lineNo, _ := strconv.Atoi(m[2])
		colNo, _ := strconv.Atoi(m[3])
		findings = append(findings, BuildError{
			FilePath: m[1],
			Diagnostic: component.Diagnostic{
				Kind:     component.KindBuildError,
				Code:     m[5],
				Message:  m[6],
				Location: &component.Location{Line: lineNo, Column: colNo},
				Severity: component.SeverityFromString(m[4]),
			},
		})
	}
	return findings
}

// unixBuildRe matches the common "file:line:col: message" tool format.
var unixBuildRe = regexp.MustCompile(`^(.+?):(\d+):(\d+):\s*(?:(error|warning):?\s*)?(.*)$`)

// ParseUnixBuild parses file:line:col: message lines. Findings without an
// explicit severity are treated as errors; build output is not advisory.
func ParseUnixBuild(output []byte) []BuildError {
	var findings []BuildError
	for _, line := range strings.Split(string(output), "\n") {
		m := unixBuildRe.FindStringSubmatch(strings.TrimRight(line, "\r"))
		if m == nil || m[5] == "" {
			continue
		}
		lineNo, _ := strconv.Atoi(m[2])
		colNo, _ := strconv.Atoi(m[3])
		severity := component.SeverityError
		if m[4] == "warning" {
			severity = component.SeverityWarning
		}
		findings = append(findings, BuildError{
			FilePath: m[1],
			Diagnostic: component.Diagnostic{
				Kind:     component.KindBuildError,
				Message:  m[5],
				Location: &component.Location{Line: lineNo, Column: colNo},
				Severity: severity,
			},
		})
	}
	return findings
}
