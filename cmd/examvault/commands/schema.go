// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package commands

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/spf13/pflag"

	"github.com/bureau-foundation/examvault/cmd/examvault/cli"
	"github.com/bureau-foundation/examvault/lib/entity"
)

func schemaCommand() *cli.Command {
	command := &cli.Command{
		Name:    "schema",
		Summary: "Print the JSON Schema of an entity kind",
		Description: `Print the JSON Schema of the document accepted by "examvault put" for
the given kind. The "tenant" member is filled in by put and may be
omitted from input files.`,
		Usage: "examvault schema <kind>",
		Examples: []cli.Example{
			{Description: "Schema for quiz documents", Command: "examvault schema quiz"},
		},
		Flags: func() *pflag.FlagSet {
			return pflag.NewFlagSet("schema", pflag.ContinueOnError)
		},
	}
	command.Run = func(args []string) error {
		if len(args) != 1 {
			return command.Usagef("schema takes one kind (%s)", kindList())
		}
		kind := entity.Kind(args[0])
		if _, ok := putters[kind]; !ok {
			return command.Usagef("unknown kind %q (%s)", kind, kindList())
		}
		schema, err := entity.Schema(kind)
		if err != nil {
			return err
		}
		data, err := json.MarshalIndent(schema, "", "  ")
		if err != nil {
			return err
		}
		_, err = fmt.Fprintf(stdout, "%s\n", data)
		return err
	}
	return command
}

func kindList() string {
	kinds := entity.DocumentKinds()
	names := make([]string, len(kinds))
	for i, kind := range kinds {
		names[i] = string(kind)
	}
	return strings.Join(names, ", ")
}
