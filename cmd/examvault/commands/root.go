// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package commands

import (
	"fmt"
	"io"
	"os"

	"github.com/bureau-foundation/examvault/cmd/examvault/cli"
	"github.com/bureau-foundation/examvault/lib/version"
)

// stdout receives command results. Logs go to stderr.
var stdout io.Writer = os.Stdout

// Root returns the examvault command tree.
func Root() *cli.Command {
	root := &cli.Command{
		Name: "examvault",
		Description: `examvault keeps per-tenant encrypted exam content (workspaces, quizzes,
surveys and their records) and moves it between installations as
bundles.

Configuration comes from the file named by --config or $EXAMVAULT_CONFIG.`,
		Subcommands: []*cli.Command{
			keygenCommand(),
			initCommand(),
			listCommand(),
			putCommand(),
			removeCommand(),
			removeTenantCommand(),
			exportWorkspaceCommand(),
			exportCommand(),
			importCommand(),
			schemaCommand(),
		},
	}
	root.Run = func(args []string) error {
		if len(args) > 0 && args[0] == "--version" {
			fmt.Fprintf(stdout, "examvault %s\n", version.Info())
			return nil
		}
		root.PrintHelp(os.Stderr)
		if len(args) == 0 {
			return fmt.Errorf("subcommand required")
		}
		return root.Usagef("unknown flag %q", args[0])
	}
	return root
}
