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
	"fmt"
	"path/filepath"
	"strings"

	"github.com/AleutianAI/FoundryFOSS/services/foundry/component"
)

// SynthesizeFallback produces a minimal placeholder implementation that
// satisfies only the component's declared interface shape.
//
// Description:
//
//	The stub keeps dependents resolving when repair cannot converge,
//	trading functional completeness for structural consistency. Every
//	declared export is emitted; a component-category unit or page also
//	gets a default export so JSX consumers keep rendering.
//
//	The output must parse cleanly under the structural validator for
//	its language, so a fallback always ends a session checker-clean.
//
// Inputs:
//
//	meta - The component to stub out.
//
// Outputs:
//
//	string - Full file content for the stub.
func SynthesizeFallback(meta component.Metadata) string {
	switch strings.ToLower(filepath.Ext(meta.FilePath)) {
	case ".py":
		return pythonFallback(meta)
	default:
		return scriptFallback(meta)
	}
}

// scriptFallback covers the JS/TS family, which is what the generator
// emits for units, pages, and services.
func scriptFallback(meta component.Metadata) string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "// Placeholder implementation for %s.\n", meta.Name)
	sb.WriteString("// The original implementation could not be repaired; this stub keeps\n")
	sb.WriteString("// dependent components resolving until the next generation pass.\n\n")

	exports := meta.Interface.Exports
	if len(exports) == 0 {
		exports = []component.Export{{Name: meta.Name, Kind: defaultExportKind(meta)}}
	}

	var defaultName string
	for _, e := range exports {
		switch e.Kind {
		case "component":
			fmt.Fprintf(&sb, "export function %s() {\n  return null;\n}\n\n", e.Name)
			if defaultName == "" {
				defaultName = e.Name
			}
		case "class":
			fmt.Fprintf(&sb, "export class %s {}\n\n", e.Name)
		case "constant":
			fmt.Fprintf(&sb, "export const %s = undefined;\n\n", e.Name)
		default: // function and anything unrecognized
			fmt.Fprintf(&sb, "export function %s() {\n  return undefined;\n}\n\n", e.Name)
			if defaultName == "" {
				defaultName = e.Name
			}
		}
	}

	if needsDefaultExport(meta) && defaultName != "" {
		fmt.Fprintf(&sb, "export default %s;\n", defaultName)
	}
	return sb.String()
}

func pythonFallback(meta component.Metadata) string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "# Placeholder implementation for %s.\n", meta.Name)
	sb.WriteString("# The original implementation could not be repaired.\n\n")

	exports := meta.Interface.Exports
	if len(exports) == 0 {
		exports = []component.Export{{Name: strings.ToLower(meta.Name), Kind: "function"}}
	}
	for _, e := range exports {
		switch e.Kind {
		case "class":
			fmt.Fprintf(&sb, "class %s:\n    pass\n\n\n", e.Name)
		case "constant":
			fmt.Fprintf(&sb, "%s = None\n\n", e.Name)
		default:
			fmt.Fprintf(&sb, "def %s(*args, **kwargs):\n    return None\n\n\n", e.Name)
		}
	}
	return strings.TrimRight(sb.String(), "\n") + "\n"
}

// defaultExportKind guesses the export kind when the descriptor is empty.
func defaultExportKind(meta component.Metadata) string {
	if meta.Category == component.CategoryUnit || meta.Category == component.CategoryPage {
		return "component"
	}
	return "function"
}

// needsDefaultExport reports whether JSX consumers expect a default.
func needsDefaultExport(meta component.Metadata) bool {
	switch strings.ToLower(filepath.Ext(meta.FilePath)) {
	case ".tsx", ".jsx":
		return true
	default:
		return meta.Category == component.CategoryPage
	}
}
