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
	"crypto/sha256"
	"encoding/hex"
	"sort"
	"strings"
)

// Fingerprint computes a stable hash over a diagnostic set.
//
// Description:
//
//	The hash covers the sorted set of (kind, code, message) triples, so
//	identical diagnostic sets always hash identically regardless of
//	ordering. Location and severity are deliberately excluded: a repair
//	that only shifts line numbers has not changed the problem.
//
//	Fingerprints are the memo keys that stop repeated, unproductive
//	repair attempts within a session.
//
// Inputs:
//
//	diags - The diagnostic set. May be empty.
//
// Outputs:
//
//	string - Hex-encoded sha256 digest. Empty input yields the digest of
//	the empty string, which is itself stable.
func Fingerprint(diags []Diagnostic) string {
	triples := make([]string, 0, len(diags))
	for _, d := range diags {
		triples = append(triples, d.Kind.String()+"\x1f"+d.Code+"\x1f"+d.Message)
	}
	sort.Strings(triples)

	h := sha256.New()
	h.Write([]byte(strings.Join(triples, "\x1e")))
	return hex.EncodeToString(h.Sum(nil))
}
