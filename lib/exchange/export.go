// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package exchange

import (
	"context"
	"encoding/json"
	"errors"
	"io/fs"
	"os"
	"path/filepath"

	"golang.org/x/sync/errgroup"

	"github.com/bureau-foundation/examvault/lib/atomicfile"
	"github.com/bureau-foundation/examvault/lib/bundle"
	"github.com/bureau-foundation/examvault/lib/entity"
	"github.com/bureau-foundation/examvault/lib/tenantkey"
	"github.com/bureau-foundation/examvault/lib/vaulterr"
)

type ExportOptions struct {
	// Passphrase, when set, wraps the bundle in an age scrypt
	// envelope.
	Passphrase string
}

// ExportWorkspace writes a bundle of tenant's workspace, quizzes and
// surveys to dest. The tenant must have exactly one workspace record.
// The tenant's current version becomes the bundle version. Returns the
// number of exported entities.
func (s *Service) ExportWorkspace(ctx context.Context, tenant, dest string, options ExportOptions) (count int, err error) {
	defer func() { err = classify(err, "export of %s", tenant) }()
	meta, err := entity.ReadTenantMeta(s.store.Root(), tenant)
	if err != nil {
		return 0, err
	}
	records, err := s.catalog.ListByFilter(ctx, tenant, entity.Filter{Kinds: entity.WorkspaceKinds})
	if err != nil {
		return 0, err
	}
	var workspaces []entity.IndexRecord
	for _, record := range records {
		if record.Kind == entity.KindWorkspace {
			workspaces = append(workspaces, record)
		}
	}
	if len(workspaces) != 1 {
		return 0, vaulterr.New(vaulterr.ErrNotFound, "tenant %s has %d workspace records, want exactly one", tenant, len(workspaces))
	}
	manifest := Manifest{
		ID:      tenant,
		Name:    workspaces[0].Name,
		Version: meta.UpdatedAt,
	}
	if err := s.export(ctx, tenant, records, manifest, dest, options); err != nil {
		return 0, err
	}
	return len(records), nil
}

// Export writes a bundle of the quiz records, survey records and JSON
// documents of tenant named by ids to dest. Ids naming other kinds are
// skipped. The tenant's current version becomes the bundle version.
// Returns the number of exported records.
func (s *Service) Export(ctx context.Context, tenant string, ids []string, dest string, options ExportOptions) (count int, err error) {
	defer func() { err = classify(err, "export of %s", tenant) }()
	if len(ids) == 0 {
		return 0, vaulterr.New(vaulterr.ErrInvalid, "no record ids to export")
	}
	meta, err := entity.ReadTenantMeta(s.store.Root(), tenant)
	if err != nil {
		return 0, err
	}
	records, err := s.catalog.ListByFilter(ctx, tenant, entity.Filter{Kinds: entity.RecordKinds, IDs: ids})
	if err != nil {
		return 0, err
	}
	if len(records) == 0 {
		return 0, vaulterr.New(vaulterr.ErrNotFound, "none of the %d requested records exist in %s", len(ids), tenant)
	}
	manifest := Manifest{ID: tenant, Name: meta.Name, Version: meta.UpdatedAt}
	if err := s.export(ctx, tenant, records, manifest, dest, options); err != nil {
		return 0, err
	}
	return len(records), nil
}

func (s *Service) export(ctx context.Context, tenant string, records []entity.IndexRecord, manifest Manifest, dest string, options ExportOptions) error {
	staging, err := s.newStaging(OperationExport)
	if err != nil {
		return err
	}
	defer s.discardStaging(staging)

	group, groupCtx := errgroup.WithContext(ctx)
	group.SetLimit(s.limit)
	for _, record := range records {
		group.Go(func() error {
			if err := groupCtx.Err(); err != nil {
				return err
			}
			return s.stageEntity(groupCtx, tenant, record.ID, staging)
		})
	}
	if err := group.Wait(); err != nil {
		return err
	}

	entities, err := s.codec.Encode(tenantkey.MasterTenant, records)
	if err != nil {
		return err
	}
	if err := atomicfile.Write(filepath.Join(staging, EntitiesName), entities, 0o600); err != nil {
		return err
	}
	manifest.KeyID = s.keyID
	manifest.Digest = digest(entities)
	manifestData, err := json.MarshalIndent(manifest, "", "  ")
	if err != nil {
		return vaulterr.Wrap(vaulterr.ErrSerialization, err, "encoding %s", ManifestName)
	}
	if err := atomicfile.Write(filepath.Join(staging, ManifestName), manifestData, 0o600); err != nil {
		return err
	}

	entries := []bundle.Entry{
		{Source: filepath.Join(staging, ManifestName), Name: ManifestName},
		{Source: filepath.Join(staging, EntitiesName), Name: EntitiesName},
		{Source: filepath.Join(staging, EntitiesDir), Name: EntitiesDir},
	}
	if exists(filepath.Join(staging, AssetsDir)) {
		entries = append(entries, bundle.Entry{Source: filepath.Join(staging, AssetsDir), Name: AssetsDir})
	}

	if options.Passphrase == "" {
		if err := bundle.Pack(ctx, dest, entries); err != nil {
			return err
		}
	} else {
		archive := filepath.Join(staging, "bundle.zip")
		if err := bundle.Pack(ctx, archive, entries); err != nil {
			return err
		}
		if err := bundle.Seal(archive, dest, options.Passphrase, s.workFactor); err != nil {
			return err
		}
	}
	s.logger.Info("bundle exported", "tenant", tenant, "entities", len(records),
		"version", manifest.Version, "sealed", options.Passphrase != "")
	return nil
}

// stageEntity copies the payload file and asset directory of id into
// the staging tree. The snapshot is taken from disk, so a write of id
// still pending in the store is made to land first.
func (s *Service) stageEntity(ctx context.Context, tenant, id, staging string) error {
	if err := s.store.Persist(ctx, tenant, id); err != nil {
		return err
	}
	payload := s.store.ObjectPath(tenant, id)
	target := filepath.Join(staging, EntitiesDir, id+".bin")
	if err := linkOrCopy(payload, target); err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return vaulterr.New(vaulterr.ErrNotFound, "payload of indexed entity %s/%s", tenant, id)
		}
		return vaulterr.Wrap(vaulterr.ErrIO, err, "staging %s/%s", tenant, id)
	}

	assets := s.store.AssetDir(tenant, id)
	if !exists(assets) {
		return nil
	}
	if err := copyTree(assets, filepath.Join(staging, AssetsDir, id)); err != nil {
		return vaulterr.Wrap(vaulterr.ErrIO, err, "staging assets of %s/%s", tenant, id)
	}
	return nil
}

// linkOrCopy snapshots a payload file. The store replaces payload
// files by rename and never writes them in place, so a hard link is a
// stable snapshot.
func linkOrCopy(source, target string) error {
	if err := os.MkdirAll(filepath.Dir(target), 0o700); err != nil {
		return err
	}
	if err := os.Link(source, target); err == nil {
		return nil
	} else if errors.Is(err, fs.ErrNotExist) {
		return err
	}
	return copyFile(source, target)
}

func copyFile(source, target string) error {
	data, err := os.ReadFile(source)
	if err != nil {
		return err
	}
	return os.WriteFile(target, data, 0o600)
}

func copyTree(source, target string) error {
	return filepath.WalkDir(source, func(current string, entry fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		relative, err := filepath.Rel(source, current)
		if err != nil {
			return err
		}
		destination := filepath.Join(target, relative)
		if entry.IsDir() {
			return os.MkdirAll(destination, 0o700)
		}
		if !entry.Type().IsRegular() {
			return nil
		}
		return copyFile(current, destination)
	})
}
