// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package commands

import (
	"fmt"

	"github.com/spf13/pflag"

	"github.com/bureau-foundation/examvault/cmd/examvault/cli"
	"github.com/bureau-foundation/examvault/lib/secret"
	"github.com/bureau-foundation/examvault/lib/tenantkey"
)

func keygenCommand() *cli.Command {
	var flags globalFlags
	var output string
	command := &cli.Command{
		Name:    "keygen",
		Summary: "Generate a master key file",
		Description: `Generate a random master key and write it, hex encoded, to the
configured keys.master_key_file (or --output). An existing file is
never replaced. Installations that exchange bundles must share the
same master key; compare the printed key id.`,
		Usage: "examvault keygen [flags]",
		Flags: func() *pflag.FlagSet {
			flagSet := pflag.NewFlagSet("keygen", pflag.ContinueOnError)
			flags.add(flagSet)
			flagSet.StringVarP(&output, "output", "o", "", "key file path (default: keys.master_key_file)")
			return flagSet
		},
	}
	command.Run = func(args []string) error {
		if len(args) != 0 {
			return command.Usagef("keygen takes no arguments")
		}
		path := output
		if path == "" {
			cfg, _, err := loadConfig(flags)
			if err != nil {
				return err
			}
			path = cfg.Keys.MasterKeyFile
		}

		key, err := secret.Generate(tenantkey.KeySize)
		if err != nil {
			return err
		}
		if err := secret.WriteKeyFile(path, key); err != nil {
			key.Close()
			return err
		}
		ring, err := tenantkey.NewRing(key)
		if err != nil {
			key.Close()
			return err
		}
		defer ring.Close()
		fmt.Fprintf(stdout, "wrote %s (key id %s)\n", path, ring.KeyID())
		return nil
	}
	return command
}
