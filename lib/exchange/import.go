// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package exchange

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"golang.org/x/sync/errgroup"

	"github.com/bureau-foundation/examvault/lib/atomicfile"
	"github.com/bureau-foundation/examvault/lib/bundle"
	"github.com/bureau-foundation/examvault/lib/entity"
	"github.com/bureau-foundation/examvault/lib/objstore"
	"github.com/bureau-foundation/examvault/lib/tenantkey"
	"github.com/bureau-foundation/examvault/lib/vaulterr"
)

type ImportOptions struct {
	// Passphrase opens passphrase-sealed bundles.
	Passphrase string
}

// ImportResult describes a completed import.
type ImportResult struct {
	Tenant string

	// Created reports that the tenant did not exist locally.
	Created bool

	// Updated lists the ids whose incoming records won the merge, in
	// bundle order.
	Updated []string

	// Version is the tenant version after the import.
	Version int64
}

// staged is an opened bundle extracted into a staging directory.
type staged struct {
	directory string
	content   string
	manifest  Manifest
	records   []entity.IndexRecord
}

// Import merges the bundle at src into the store. It fails with
// ErrConflict, changing nothing, when the local tenant's version is
// not older than the bundle's. Any other failure after the first file
// moved is rolled back, so the import can be retried.
func (s *Service) Import(ctx context.Context, src string, options ImportOptions) (result ImportResult, err error) {
	defer func() { err = classify(err, "import of %s", filepath.Base(src)) }()
	staging, err := s.newStaging(OperationImport)
	if err != nil {
		return ImportResult{}, err
	}
	defer s.discardStaging(staging)

	opened, err := s.open(ctx, src, staging, options)
	if err != nil {
		return ImportResult{}, err
	}
	result.Tenant = opened.manifest.ID

	s.importMu.Lock()
	defer s.importMu.Unlock()

	tenant := opened.manifest.ID
	local := entity.NewEntityIndex(tenant)
	var metaFile []byte
	meta, err := entity.ReadTenantMeta(s.store.Root(), tenant)
	switch {
	case errors.Is(err, vaulterr.ErrNotFound):
		result.Created = true
	case err != nil:
		return result, err
	case meta.UpdatedAt >= opened.manifest.Version:
		return result, vaulterr.New(vaulterr.ErrConflict,
			"bundle version %d of %s is not newer than local version %d",
			opened.manifest.Version, tenant, meta.UpdatedAt)
	default:
		local, err = s.catalog.Index(ctx, tenant)
		if err != nil {
			return result, err
		}
		path := entity.TenantMetaPath(s.store.Root(), tenant)
		if metaFile, err = os.ReadFile(path); err != nil {
			return result, vaulterr.Wrap(vaulterr.ErrIO, err, "reading %s", path)
		}
	}

	var winners []entity.IndexRecord
	plan := journal{Tenant: tenant, Created: result.Created, Meta: metaFile}
	for _, incoming := range opened.records {
		current, found := local.Get(incoming.ID)
		if found && !incoming.NewerThan(current) {
			continue
		}
		winners = append(winners, incoming)
		result.Updated = append(result.Updated, incoming.ID)
		if found {
			plan.Previous = append(plan.Previous, current)
		} else {
			plan.Added = append(plan.Added, incoming.ID)
		}
	}

	plan.Moves = s.plan(tenant, winners, opened)
	if err := writeJournal(staging, plan); err != nil {
		return result, err
	}
	err = s.relocate(ctx, plan)
	if err == nil {
		err = s.commit(ctx, plan, opened.manifest, winners)
	}
	if err != nil {
		s.rollback(plan)
		if retireErr := retireJournal(staging); retireErr != nil {
			s.logger.Error("retiring journal after rollback failed", "path", staging, "error", retireErr)
		}
		return result, err
	}
	if err := retireJournal(staging); err != nil {
		return result, err
	}

	result.Version = opened.manifest.Version
	s.logger.Info("bundle imported", "tenant", tenant, "created", result.Created,
		"incoming", len(opened.records), "updated", len(result.Updated), "version", result.Version)
	return result, nil
}

// open extracts src into staging and authenticates its manifest and
// entity list.
func (s *Service) open(ctx context.Context, src, staging string, options ImportOptions) (staged, error) {
	opened := staged{directory: staging, content: filepath.Join(staging, "content")}

	archive := src
	sealed, err := bundle.IsSealedFile(src)
	if err != nil {
		return opened, err
	}
	if sealed {
		if options.Passphrase == "" {
			return opened, vaulterr.New(vaulterr.ErrCrypto, "bundle is passphrase-sealed and no passphrase was given")
		}
		archive = filepath.Join(staging, "bundle.zip")
		if err := bundle.Open(src, archive, options.Passphrase); err != nil {
			return opened, err
		}
	}
	if err := bundle.Unpack(ctx, archive, opened.content, bundle.UnpackOptions{Concurrency: s.limit}); err != nil {
		return opened, err
	}

	manifest, err := readManifest(filepath.Join(opened.content, ManifestName))
	if err != nil {
		return opened, err
	}
	if err := objstore.ValidateID(manifest.ID); err != nil {
		return opened, err
	}
	if manifest.KeyID != "" && s.keyID != "" && manifest.KeyID != s.keyID {
		return opened, vaulterr.New(vaulterr.ErrCrypto, "bundle was sealed under master key %s, local key is %s", manifest.KeyID, s.keyID)
	}
	opened.manifest = manifest

	entitiesPath := filepath.Join(opened.content, EntitiesName)
	data, err := os.ReadFile(entitiesPath)
	if err != nil {
		if os.IsNotExist(err) {
			return opened, vaulterr.New(vaulterr.ErrSerialization, "bundle has no %s", EntitiesName)
		}
		return opened, vaulterr.Wrap(vaulterr.ErrIO, err, "reading %s", EntitiesName)
	}
	if manifest.Digest != "" && digest(data) != manifest.Digest {
		return opened, vaulterr.New(vaulterr.ErrCrypto, "%s does not match the manifest digest", EntitiesName)
	}
	if err := s.codec.Decode(tenantkey.MasterTenant, data, &opened.records); err != nil {
		return opened, err
	}

	seen := make(map[string]bool, len(opened.records))
	for _, record := range opened.records {
		if err := objstore.ValidateID(record.ID); err != nil {
			return opened, err
		}
		if seen[record.ID] {
			return opened, vaulterr.New(vaulterr.ErrSerialization, "bundle lists entity %s twice", record.ID)
		}
		seen[record.ID] = true
		if !exists(opened.payload(record.ID)) {
			return opened, vaulterr.New(vaulterr.ErrSerialization, "bundle lacks the payload of entity %s", record.ID)
		}
	}
	return opened, nil
}

func (o staged) payload(id string) string {
	return filepath.Join(o.content, EntitiesDir, id+".bin")
}

func (o staged) assets(id string) string {
	return filepath.Join(o.content, AssetsDir, id)
}

// plan lists the moves relocating the winners' payloads and asset
// directories into the live tree.
func (s *Service) plan(tenant string, winners []entity.IndexRecord, opened staged) []move {
	var moves []move
	backup := filepath.Join(opened.directory, "backup")
	for _, record := range winners {
		payload := move{
			ID:      record.ID,
			Payload: true,
			Source:  opened.payload(record.ID),
			Target:  s.store.ObjectPath(tenant, record.ID),
		}
		if exists(payload.Target) {
			payload.Backup = filepath.Join(backup, EntitiesDir, record.ID+".bin")
		}
		moves = append(moves, payload)

		if source := opened.assets(record.ID); exists(source) {
			assets := move{ID: record.ID, Source: source, Target: s.store.AssetDir(tenant, record.ID)}
			if exists(assets.Target) {
				assets.Backup = filepath.Join(backup, AssetsDir, record.ID)
			}
			moves = append(moves, assets)
		}
	}
	return moves
}

// relocate executes every move of plan. On error some moves may have
// completed; the caller rolls back.
func (s *Service) relocate(ctx context.Context, plan journal) error {
	group, groupCtx := errgroup.WithContext(ctx)
	group.SetLimit(s.limit)
	for index, planned := range plan.Moves {
		group.Go(func() error {
			if err := groupCtx.Err(); err != nil {
				return err
			}
			if s.relocateHook != nil {
				if err := s.relocateHook(index, planned); err != nil {
					return err
				}
			}
			return s.apply(plan.Tenant, planned)
		})
	}
	if err := group.Wait(); err != nil {
		if vaulterr.Kind(err) == nil {
			return vaulterr.Wrap(vaulterr.ErrIO, err, "relocating entities of %s", plan.Tenant)
		}
		return err
	}
	return nil
}

func (s *Service) apply(tenant string, planned move) error {
	swap := func(target string) error {
		if err := os.MkdirAll(filepath.Dir(target), 0o755); err != nil {
			return vaulterr.Wrap(vaulterr.ErrIO, err, "creating parent of %s", target)
		}
		if planned.Backup != "" {
			if err := os.MkdirAll(filepath.Dir(planned.Backup), 0o700); err != nil {
				return vaulterr.Wrap(vaulterr.ErrIO, err, "creating backup directory")
			}
			if err := os.Rename(target, planned.Backup); err != nil {
				return vaulterr.Wrap(vaulterr.ErrIO, err, "moving aside %s", target)
			}
		}
		if err := os.Rename(planned.Source, target); err != nil {
			return vaulterr.Wrap(vaulterr.ErrIO, err, "moving %s into place", planned.ID)
		}
		return nil
	}
	if planned.Payload {
		return s.store.Replace(tenant, planned.ID, swap)
	}
	return swap(planned.Target)
}

// rollback undoes plan: file moves in reverse order, then the index
// merge and the tenant metadata. Each step inspects the live state, so
// rolling back steps that never ran, or rolling back twice, is
// harmless. A created tenant is removed outright.
func (s *Service) rollback(plan journal) {
	var failures []error
	for index := len(plan.Moves) - 1; index >= 0; index-- {
		planned := plan.Moves[index]
		restore := func(target string) error {
			if planned.Backup != "" {
				if !exists(planned.Backup) {
					// Never moved aside: target is still the live original.
					return nil
				}
				if err := os.RemoveAll(target); err != nil {
					return err
				}
				return os.Rename(planned.Backup, target)
			}
			return os.RemoveAll(target)
		}
		var err error
		if planned.Payload {
			err = s.store.Replace(plan.Tenant, planned.ID, restore)
		} else {
			err = restore(planned.Target)
		}
		if err != nil {
			failures = append(failures, fmt.Errorf("restoring %s: %w", planned.ID, err))
		}
	}

	if plan.Created {
		if err := s.store.DeleteTenant(plan.Tenant); err != nil {
			failures = append(failures, err)
		}
	} else {
		failures = append(failures, s.restoreIndex(plan)...)
		if len(plan.Meta) > 0 {
			path := entity.TenantMetaPath(s.store.Root(), plan.Tenant)
			if err := atomicfile.Write(path, plan.Meta, 0o644); err != nil {
				failures = append(failures, fmt.Errorf("restoring tenant metadata: %w", err))
			}
		}
	}

	for _, err := range failures {
		s.logger.Error("import rollback incomplete", "tenant", plan.Tenant, "error", err)
	}
	if len(failures) == 0 {
		s.logger.Warn("import rolled back", "tenant", plan.Tenant, "moves", len(plan.Moves))
	}
}

// restoreIndex puts the displaced index records back and writes the
// index through to disk. It runs on rollback, after the caller's
// context may have been cancelled.
func (s *Service) restoreIndex(plan journal) []error {
	if len(plan.Previous) == 0 && len(plan.Added) == 0 {
		return nil
	}
	ctx := context.Background()
	if err := s.catalog.Restore(ctx, plan.Tenant, plan.Previous, plan.Added); err != nil {
		return []error{fmt.Errorf("restoring index: %w", err)}
	}
	if err := s.store.Persist(ctx, plan.Tenant, entity.IndexObjectID); err != nil {
		return []error{fmt.Errorf("persisting restored index: %w", err)}
	}
	return nil
}

// commit records the merge once payloads are in place. The merged
// index is written through to disk before tenant metadata, so the
// tenant version only advances over a complete merge.
func (s *Service) commit(ctx context.Context, plan journal, manifest Manifest, winners []entity.IndexRecord) error {
	tenant := plan.Tenant
	persisted := []string{entity.IndexObjectID}
	if plan.Created {
		// The skeleton's own metadata is overwritten below with the
		// bundle version; a failure before then removes the tenant.
		err := s.catalog.InitTenant(ctx, entity.TenantMeta{ID: tenant, Name: manifest.Name})
		if err != nil {
			return err
		}
		persisted = append(persisted, entity.RosterObjectID, entity.TasksObjectID)
	}
	if len(winners) > 0 {
		if err := s.catalog.Upsert(ctx, tenant, winners...); err != nil {
			return err
		}
	}
	for _, id := range persisted {
		if err := s.store.Persist(ctx, tenant, id); err != nil {
			return err
		}
	}
	return s.catalog.UpdateTenantMeta(tenant, func(meta *entity.TenantMeta) {
		meta.Name = manifest.Name
		meta.UpdatedAt = manifest.Version
	})
}

// Recover rolls back relocations left by imports that did not finish
// and removes stale staging directories. New calls it; it is safe to
// call again while no import is running.
func (s *Service) Recover(ctx context.Context) error {
	s.importMu.Lock()
	defer s.importMu.Unlock()

	entries, err := os.ReadDir(s.staging)
	if err != nil {
		return vaulterr.Wrap(vaulterr.ErrIO, err, "listing %s", s.staging)
	}
	for _, entry := range entries {
		if err := ctx.Err(); err != nil {
			return err
		}
		if !entry.IsDir() {
			continue
		}
		directory := filepath.Join(s.staging, entry.Name())
		plan, ok, err := readJournal(directory)
		if err != nil {
			s.logger.Error("unreadable relocation journal left in place", "path", directory, "error", err)
			continue
		}
		if ok {
			s.logger.Warn("rolling back interrupted import", "tenant", plan.Tenant, "moves", len(plan.Moves))
			s.rollback(plan)
			if err := retireJournal(directory); err != nil {
				return err
			}
		}
		s.discardStaging(directory)
	}
	return nil
}
