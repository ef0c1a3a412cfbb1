// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package main

import (
	"fmt"
	"os"

	"github.com/go-playground/validator/v10"
	"gopkg.in/yaml.v3"
)

var configValidate = validator.New()

// Config is the foundry.yaml file layout. Every field has a working
// default so a missing config file is not an error.
type Config struct {
	Log    LogConfig    `yaml:"log"`
	Oracle OracleConfig `yaml:"oracle"`
	Repair RepairConfig `yaml:"repair"`
	Build  BuildConfig  `yaml:"build"`
	Store  StoreConfig  `yaml:"store"`
	Server ServerConfig `yaml:"server"`
}

type LogConfig struct {
	// Level is one of debug, info, warn, error.
	Level string `yaml:"level" validate:"omitempty,oneof=debug info warn warning error"`

	// Dir enables a JSON file sink alongside stderr. Supports "~".
	Dir string `yaml:"dir"`

	// JSON switches the stderr sink to JSON as well.
	JSON bool `yaml:"json"`
}

type OracleConfig struct {
	// Provider selects the repair oracle backend.
	Provider string `yaml:"provider" validate:"required,oneof=openai ollama"`

	// RPS and Burst tune the shared oracle rate limit. Zero keeps the
	// provider defaults.
	RPS   float64 `yaml:"rps" validate:"gte=0"`
	Burst int     `yaml:"burst" validate:"gte=0"`
}

type RepairConfig struct {
	// MaxComponentAttempts caps oracle repair attempts per component.
	MaxComponentAttempts int `yaml:"max_component_attempts" validate:"gte=0,lte=25"`

	// MaxBuildAttempts caps iterations of the build-fix loop.
	MaxBuildAttempts int `yaml:"max_build_attempts" validate:"gte=0,lte=50"`

	// Concurrency bounds same-depth parallel checks and fixes.
	Concurrency int `yaml:"concurrency" validate:"gte=0,lte=64"`

	// AliasRoots maps import alias prefixes to directories relative to
	// the project root, e.g. {"@/": "src"}.
	AliasRoots map[string]string `yaml:"alias_roots"`

	// PriorityWeights tunes error triage scoring. All zero keeps the
	// engine defaults (depth 10, kind 5, category 2).
	PriorityWeights WeightsConfig `yaml:"priority_weights"`
}

type WeightsConfig struct {
	Depth    float64 `yaml:"depth" validate:"gte=0"`
	Kind     float64 `yaml:"kind" validate:"gte=0"`
	Category float64 `yaml:"category" validate:"gte=0"`
}

type BuildConfig struct {
	// Command optionally enables a project-wide build pass, e.g. "tsc".
	Command string   `yaml:"command"`
	Args    []string `yaml:"args"`

	// Parser selects build output parsing.
	Parser string `yaml:"parser" validate:"omitempty,oneof=tsc unix"`
}

type StoreConfig struct {
	// Path locates the badger session store. Empty disables persistence
	// for the repair command; serve falls back to ~/.foundry/sessions.
	Path string `yaml:"path"`
}

type ServerConfig struct {
	// Addr is the listen address for serve, e.g. ":8085".
	Addr string `yaml:"addr" validate:"omitempty,hostname_port"`
}

// EnsureDefaults populates unset fields. The FOUNDRY_ORACLE environment
// variable overrides the provider when the config leaves it empty.
func (c *Config) EnsureDefaults() {
	if c.Oracle.Provider == "" {
		c.Oracle.Provider = os.Getenv("FOUNDRY_ORACLE")
	}
	if c.Oracle.Provider == "" {
		c.Oracle.Provider = "ollama"
	}
	if c.Log.Level == "" {
		c.Log.Level = "info"
	}
	if c.Server.Addr == "" {
		c.Server.Addr = ":8085"
	}
}

// Validate checks the config against its field constraints.
func (c *Config) Validate() error {
	if err := configValidate.Struct(c); err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}
	return nil
}

// LoadConfig reads and validates the YAML config at path. A missing
// file yields the defaults; a malformed or invalid file is an error.
func LoadConfig(path string) (Config, error) {
	var cfg Config
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			cfg.EnsureDefaults()
			return cfg, cfg.Validate()
		}
		return cfg, fmt.Errorf("reading config %s: %w", path, err)
	}
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return cfg, fmt.Errorf("parsing config %s: %w", path, err)
	}
	cfg.EnsureDefaults()
	return cfg, cfg.Validate()
}
