// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// Package cli provides the command tree used by the examvault binary.
//
// A [Command] either dispatches to named subcommands or parses its own
// pflag flag set and runs. Unknown commands and flags get an edit
// distance suggestion. [NewLogger] builds the command-line logger.
package cli
