// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// Package config provides configuration loading for examvault.
//
// Configuration is loaded from a single file specified by either the
// EXAMVAULT_CONFIG environment variable (via [Load]) or a --config
// flag (via [LoadFile]). There is no discovery and no file search.
//
// Files are YAML. Files named *.json or *.jsonc are JSON with
// comments and trailing commas allowed; they are normalized with
// tidwall/jsonc before parsing.
//
// The file may contain development and production sections that
// override base values when [Config].Environment matches.
//
// Variable expansion is performed on path fields after loading:
// ${HOME}, ${EXAMVAULT_ROOT}, and ${VAR:-default} patterns are
// expanded. No other environment variables override config values.
package config
