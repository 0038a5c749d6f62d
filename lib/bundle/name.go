// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package bundle

import (
	"path/filepath"
	"strings"
)

// NormalizeName returns the archive-relative form of name: separators
// are forward slashes and only ordinary path components survive.
// Returns "" when no component remains.
func NormalizeName(name string) string {
	name = strings.ReplaceAll(name, `\`, "/")
	var kept []string
	for _, component := range strings.Split(name, "/") {
		switch component {
		case "", ".", "..":
			continue
		}
		// A drive-letter prefix ("C:") is a root marker, not a name.
		if len(kept) == 0 && len(component) == 2 && component[1] == ':' {
			continue
		}
		kept = append(kept, component)
	}
	return strings.Join(kept, "/")
}

// SafeJoin joins the normalized form of name onto root. The result is
// always root itself or a path beneath it.
func SafeJoin(root, name string) string {
	normalized := NormalizeName(name)
	if normalized == "" {
		return filepath.Clean(root)
	}
	return filepath.Join(root, filepath.FromSlash(normalized))
}
