// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package commands

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"text/tabwriter"

	"github.com/spf13/pflag"

	"github.com/bureau-foundation/examvault/cmd/examvault/cli"
	"github.com/bureau-foundation/examvault/lib/entity"
	"github.com/bureau-foundation/examvault/lib/objstore"
	"github.com/bureau-foundation/examvault/lib/vaulterr"
)

func defaultActor() string {
	if user := os.Getenv("USER"); user != "" {
		return user
	}
	return "examvault"
}

func initCommand() *cli.Command {
	var flags globalFlags
	var name, actor string
	command := &cli.Command{
		Name:    "init",
		Summary: "Create a tenant and its workspace",
		Description: `Create a tenant: its empty entity index, student roster and task
list, its metadata file, and the workspace entity whose id equals the
tenant id.`,
		Usage: "examvault init <tenant> [flags]",
		Examples: []cli.Example{
			{Description: "Create tenant acme", Command: "examvault init acme --name 'Acme Academy'"},
		},
		Flags: func() *pflag.FlagSet {
			flagSet := pflag.NewFlagSet("init", pflag.ContinueOnError)
			flags.add(flagSet)
			flagSet.StringVar(&name, "name", "", "display name (default: the tenant id)")
			flagSet.StringVar(&actor, "actor", defaultActor(), "recorded as creator")
			return flagSet
		},
	}
	command.Run = func(args []string) error {
		if len(args) != 1 {
			return command.Usagef("init takes exactly one tenant id")
		}
		tenant := args[0]
		if name == "" {
			name = tenant
		}
		return withVault(flags, func(ctx context.Context, v *vault) error {
			if err := v.catalog.InitTenant(ctx, entity.TenantMeta{ID: tenant, Name: name}); err != nil {
				return err
			}
			workspace := entity.Workspace{ID: tenant, Tenant: tenant, Name: name}
			if _, err := entity.Put(ctx, v.catalog, workspace, name, "", "", actor); err != nil {
				return err
			}
			fmt.Fprintf(stdout, "created tenant %s\n", tenant)
			return nil
		})
	}
	return command
}

func listCommand() *cli.Command {
	var flags globalFlags
	var kinds []string
	var node string
	command := &cli.Command{
		Name:    "list",
		Summary: "List tenants, or the entities of one tenant",
		Usage:   "examvault list [tenant] [flags]",
		Examples: []cli.Example{
			{Description: "List tenants", Command: "examvault list"},
			{Description: "List quizzes of acme", Command: "examvault list acme --kind quiz"},
		},
		Flags: func() *pflag.FlagSet {
			flagSet := pflag.NewFlagSet("list", pflag.ContinueOnError)
			flags.add(flagSet)
			flagSet.StringSliceVar(&kinds, "kind", nil, "only entities of these kinds")
			flagSet.StringVar(&node, "node", "", "only entities owned by this node")
			return flagSet
		},
	}
	command.Run = func(args []string) error {
		if len(args) > 1 {
			return command.Usagef("list takes at most one tenant id")
		}
		return withVault(flags, func(ctx context.Context, v *vault) error {
			if len(args) == 0 {
				return listTenants(v)
			}
			filter := entity.Filter{Node: node}
			for _, kind := range kinds {
				filter.Kinds = append(filter.Kinds, entity.Kind(kind))
			}
			return listEntities(ctx, v, args[0], filter)
		})
	}
	return command
}

func listTenants(v *vault) error {
	tenants, err := v.store.ListTenants()
	if err != nil {
		return err
	}
	tw := tabwriter.NewWriter(stdout, 2, 0, 3, ' ', 0)
	fmt.Fprintf(tw, "TENANT\tNAME\tVERSION\n")
	for _, tenant := range tenants {
		meta, err := entity.ReadTenantMeta(v.store.Root(), tenant)
		if errors.Is(err, vaulterr.ErrNotFound) {
			// A directory without metadata is a half-removed tenant.
			continue
		}
		if err != nil {
			return err
		}
		fmt.Fprintf(tw, "%s\t%s\t%d\n", meta.ID, meta.Name, meta.UpdatedAt)
	}
	return tw.Flush()
}

func listEntities(ctx context.Context, v *vault, tenant string, filter entity.Filter) error {
	records, err := v.catalog.ListByFilter(ctx, tenant, filter)
	if err != nil {
		return err
	}
	tw := tabwriter.NewWriter(stdout, 2, 0, 3, ' ', 0)
	fmt.Fprintf(tw, "ID\tKIND\tNAME\tUPDATED\n")
	for _, record := range records {
		fmt.Fprintf(tw, "%s\t%s\t%s\t%d\n", record.ID, record.Kind, record.Name, record.Metadata.UpdatedAt)
	}
	return tw.Flush()
}

func putCommand() *cli.Command {
	var flags globalFlags
	var name, node, actor string
	command := &cli.Command{
		Name:    "put",
		Summary: "Store an entity from a JSON file",
		Description: `Store an entity read from a JSON file and record it in the tenant's
entity index. The file's "tenant" field is set to the given tenant.

Kinds: workspace, quiz, survey, quiz_record, survey_record, json.`,
		Usage: "examvault put <tenant> <kind> <file> [flags]",
		Examples: []cli.Example{
			{Description: "Store a quiz", Command: "examvault put acme quiz midterm.json --name Midterm"},
		},
		Flags: func() *pflag.FlagSet {
			flagSet := pflag.NewFlagSet("put", pflag.ContinueOnError)
			flags.add(flagSet)
			flagSet.StringVar(&name, "name", "", "display name in the index (default: the entity id)")
			flagSet.StringVar(&node, "node", "", "owning node id")
			flagSet.StringVar(&actor, "actor", defaultActor(), "recorded as author")
			return flagSet
		},
	}
	command.Run = func(args []string) error {
		if len(args) != 3 {
			return command.Usagef("put takes a tenant, a kind and a file")
		}
		tenant, kind, path := args[0], entity.Kind(args[1]), args[2]
		put, ok := putters[kind]
		if !ok {
			return command.Usagef("unknown kind %q", kind)
		}
		data, err := os.ReadFile(path)
		if err != nil {
			return err
		}
		data, err = withTenant(data, tenant)
		if err != nil {
			return err
		}
		return withVault(flags, func(ctx context.Context, v *vault) error {
			if _, err := entity.ReadTenantMeta(v.store.Root(), tenant); err != nil {
				return err
			}
			record, err := put(ctx, v.catalog, data, name, node, actor)
			if err != nil {
				return err
			}
			fmt.Fprintf(stdout, "stored %s %s\n", record.Kind, record.ID)
			return nil
		})
	}
	return command
}

type putter func(ctx context.Context, catalog *entity.Catalog, data []byte, name, node, actor string) (entity.IndexRecord, error)

var putters = map[entity.Kind]putter{
	entity.KindWorkspace:    putJSON[entity.Workspace],
	entity.KindQuiz:         putJSON[entity.Quiz],
	entity.KindSurvey:       putJSON[entity.Survey],
	entity.KindQuizRecord:   putJSON[entity.QuizRecord],
	entity.KindSurveyRecord: putJSON[entity.SurveyRecord],
	entity.KindJSON:         putJSON[entity.Document],
}

func putJSON[T objstore.Cachable](ctx context.Context, catalog *entity.Catalog, data []byte, name, node, actor string) (entity.IndexRecord, error) {
	var value T
	if err := json.Unmarshal(data, &value); err != nil {
		return entity.IndexRecord{}, vaulterr.Wrap(vaulterr.ErrSerialization, err, "decoding %s", value.Kind())
	}
	if name == "" {
		name = value.ObjectID()
	}
	return entity.Put(ctx, catalog, value, name, node, "", actor)
}

// withTenant sets the "tenant" member of a JSON object.
func withTenant(data []byte, tenant string) ([]byte, error) {
	var object map[string]json.RawMessage
	if err := json.Unmarshal(data, &object); err != nil {
		return nil, fmt.Errorf("entity file must hold a JSON object: %w", err)
	}
	encoded, err := json.Marshal(tenant)
	if err != nil {
		return nil, err
	}
	object["tenant"] = encoded
	return json.Marshal(object)
}

func removeCommand() *cli.Command {
	var flags globalFlags
	command := &cli.Command{
		Name:    "remove",
		Summary: "Remove entities and their assets from a tenant",
		Usage:   "examvault remove <tenant> <id>... [flags]",
		Flags: func() *pflag.FlagSet {
			flagSet := pflag.NewFlagSet("remove", pflag.ContinueOnError)
			flags.add(flagSet)
			return flagSet
		},
	}
	command.Run = func(args []string) error {
		if len(args) < 2 {
			return command.Usagef("remove takes a tenant and at least one entity id")
		}
		return withVault(flags, func(ctx context.Context, v *vault) error {
			if err := v.catalog.BatchRemove(ctx, args[0], args[1:]); err != nil {
				return err
			}
			fmt.Fprintf(stdout, "removed %d entities from %s\n", len(args)-1, args[0])
			return nil
		})
	}
	return command
}

func removeTenantCommand() *cli.Command {
	var flags globalFlags
	command := &cli.Command{
		Name:    "remove-tenant",
		Summary: "Delete a tenant and everything it holds",
		Usage:   "examvault remove-tenant <tenant> [flags]",
		Flags: func() *pflag.FlagSet {
			flagSet := pflag.NewFlagSet("remove-tenant", pflag.ContinueOnError)
			flags.add(flagSet)
			return flagSet
		},
	}
	command.Run = func(args []string) error {
		if len(args) != 1 {
			return command.Usagef("remove-tenant takes exactly one tenant id")
		}
		return withVault(flags, func(ctx context.Context, v *vault) error {
			if _, err := entity.ReadTenantMeta(v.store.Root(), args[0]); err != nil {
				return err
			}
			if err := v.store.RemoveTenant(args[0]); err != nil {
				return err
			}
			// Removal is detached; report its failure before claiming success.
			if err := v.store.Flush(); err != nil {
				return err
			}
			fmt.Fprintf(stdout, "removed tenant %s\n", args[0])
			return nil
		})
	}
	return command
}
