// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package commands

import (
	"context"
	"fmt"
	"strings"

	"github.com/spf13/pflag"

	"github.com/bureau-foundation/examvault/cmd/examvault/cli"
	"github.com/bureau-foundation/examvault/lib/exchange"
)

func exportWorkspaceCommand() *cli.Command {
	var flags globalFlags
	var passphrase passphraseFlags
	command := &cli.Command{
		Name:    "export-workspace",
		Summary: "Export a tenant's workspace, quizzes and surveys",
		Description: `Write the tenant's workspace, quizzes and surveys, with their assets,
to a bundle. The workspace's last update time becomes the bundle
version.`,
		Usage: "examvault export-workspace <tenant> <bundle> [flags]",
		Examples: []cli.Example{
			{Description: "Export acme", Command: "examvault export-workspace acme acme" + exchange.BundleExt},
		},
		Flags: func() *pflag.FlagSet {
			flagSet := pflag.NewFlagSet("export-workspace", pflag.ContinueOnError)
			flags.add(flagSet)
			passphrase.add(flagSet, "seal the bundle")
			return flagSet
		},
	}
	command.Run = func(args []string) error {
		if len(args) != 2 {
			return command.Usagef("export-workspace takes a tenant and a bundle path")
		}
		phrase, err := passphrase.read(true)
		if err != nil {
			return err
		}
		return withVault(flags, func(ctx context.Context, v *vault) error {
			count, err := v.exchange.ExportWorkspace(ctx, args[0], args[1], exchange.ExportOptions{Passphrase: phrase})
			if err != nil {
				return err
			}
			fmt.Fprintf(stdout, "exported %d entities of %s to %s\n", count, args[0], args[1])
			return nil
		})
	}
	return command
}

func exportCommand() *cli.Command {
	var flags globalFlags
	var passphrase passphraseFlags
	command := &cli.Command{
		Name:    "export",
		Summary: "Export selected quiz records, survey records and documents",
		Usage:   "examvault export <tenant> <bundle> <id>... [flags]",
		Examples: []cli.Example{
			{Description: "Export two survey records", Command: "examvault export acme results" + exchange.BundleExt + " sr1 sr2"},
		},
		Flags: func() *pflag.FlagSet {
			flagSet := pflag.NewFlagSet("export", pflag.ContinueOnError)
			flags.add(flagSet)
			passphrase.add(flagSet, "seal the bundle")
			return flagSet
		},
	}
	command.Run = func(args []string) error {
		if len(args) < 3 {
			return command.Usagef("export takes a tenant, a bundle path and at least one record id")
		}
		phrase, err := passphrase.read(true)
		if err != nil {
			return err
		}
		return withVault(flags, func(ctx context.Context, v *vault) error {
			count, err := v.exchange.Export(ctx, args[0], args[2:], args[1], exchange.ExportOptions{Passphrase: phrase})
			if err != nil {
				return err
			}
			fmt.Fprintf(stdout, "exported %d records of %s to %s\n", count, args[0], args[1])
			return nil
		})
	}
	return command
}

func importCommand() *cli.Command {
	var flags globalFlags
	var passphrase passphraseFlags
	command := &cli.Command{
		Name:    "import",
		Summary: "Merge a bundle into its tenant",
		Description: `Merge a bundle into the tenant it names, creating the tenant if it
does not exist. The import is refused when the local tenant is not
older than the bundle. Per entity, the newer update wins.`,
		Usage: "examvault import <bundle> [flags]",
		Flags: func() *pflag.FlagSet {
			flagSet := pflag.NewFlagSet("import", pflag.ContinueOnError)
			flags.add(flagSet)
			passphrase.add(flagSet, "open a sealed bundle")
			return flagSet
		},
	}
	command.Run = func(args []string) error {
		if len(args) != 1 {
			return command.Usagef("import takes exactly one bundle path")
		}
		phrase, err := passphrase.read(false)
		if err != nil {
			return err
		}
		return withVault(flags, func(ctx context.Context, v *vault) error {
			result, err := v.exchange.Import(ctx, args[0], exchange.ImportOptions{Passphrase: phrase})
			if err != nil {
				return err
			}
			action := "updated"
			if result.Created {
				action = "created"
			}
			fmt.Fprintf(stdout, "%s tenant %s at version %d\n", action, result.Tenant, result.Version)
			if len(result.Updated) > 0 {
				fmt.Fprintf(stdout, "merged: %s\n", strings.Join(result.Updated, " "))
			}
			return nil
		})
	}
	return command
}
