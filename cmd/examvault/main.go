// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// examvault administers a per-tenant encrypted exam content store:
// creating tenants, storing entities, and exporting and importing
// bundles.
package main

import (
	"fmt"
	"os"

	"github.com/bureau-foundation/examvault/cmd/examvault/commands"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	return commands.Root().Execute(os.Args[1:])
}
