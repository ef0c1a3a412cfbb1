// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package component

import (
	"fmt"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"
)

// Manifest is the code generator's description of a generated tree.
type Manifest struct {
	// Version is the manifest schema version.
	Version int `yaml:"version"`

	// Components lists every generated unit.
	Components []Metadata `yaml:"components"`
}

// LoadManifest reads and validates a component manifest.
//
// Description:
//
//	Parses the YAML manifest the generation pipeline writes next to the
//	generated tree. Component names must be unique and file paths must be
//	relative (they are resolved against the project root at session time).
//	Dependencies on unknown names are NOT an error here; the graph builder
//	ignores them with a warning.
//
// Inputs:
//
//	path - Path to the manifest file.
//
// Outputs:
//
//	*Manifest - The parsed manifest.
//	error - Non-nil on read, parse, or validation failure.
func LoadManifest(path string) (*Manifest, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("%w: reading manifest: %v", ErrInvalidManifest, err)
	}

	var m Manifest
	if err := yaml.Unmarshal(data, &m); err != nil {
		return nil, fmt.Errorf("%w: parsing manifest: %v", ErrInvalidManifest, err)
	}

	if err := m.Validate(); err != nil {
		return nil, err
	}
	return &m, nil
}

// Validate checks manifest-level invariants.
func (m *Manifest) Validate() error {
	if len(m.Components) == 0 {
		return fmt.Errorf("%w: no components declared", ErrInvalidManifest)
	}

	seen := make(map[string]struct{}, len(m.Components))
	for i := range m.Components {
		c := &m.Components[i]
		if c.Name == "" {
			return fmt.Errorf("%w: component %d has no name", ErrInvalidManifest, i)
		}
		if _, dup := seen[c.Name]; dup {
			return fmt.Errorf("%w: duplicate component name %q", ErrInvalidManifest, c.Name)
		}
		seen[c.Name] = struct{}{}

		if c.FilePath == "" {
			return fmt.Errorf("%w: component %q has no file path", ErrInvalidManifest, c.Name)
		}
		if filepath.IsAbs(c.FilePath) {
			return fmt.Errorf("%w: component %q file path must be relative", ErrInvalidManifest, c.Name)
		}
		if c.Category == "" {
			c.Category = CategoryUnit
		}
		if !c.Category.Valid() {
			return fmt.Errorf("%w: component %q has unknown category %q", ErrInvalidManifest, c.Name, c.Category)
		}
	}
	return nil
}
