// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package entity

import (
	"context"
	"errors"
	"log/slog"
	"os"
	"slices"
	"sync"

	"github.com/bureau-foundation/examvault/lib/clock"
	"github.com/bureau-foundation/examvault/lib/objstore"
	"github.com/bureau-foundation/examvault/lib/vaulterr"
)

// Filter selects index records. Zero-valued fields match everything.
type Filter struct {
	Kinds []Kind
	IDs   []string
	Node  string
}

func (f Filter) matches(record IndexRecord) bool {
	if len(f.Kinds) > 0 && !record.Kind.In(f.Kinds) {
		return false
	}
	if len(f.IDs) > 0 && !slices.Contains(f.IDs, record.ID) {
		return false
	}
	if f.Node != "" && record.Node != f.Node {
		return false
	}
	return true
}

// Catalog maintains the entity index of every tenant in a store.
// Safe for concurrent use.
type Catalog struct {
	store  *objstore.Store
	clock  clock.Clock
	logger *slog.Logger

	// metaMu serializes read-modify-write cycles of tenant.json files.
	metaMu sync.Mutex
}

// NewCatalog returns a Catalog over store. A nil clock uses the real
// clock and a nil logger uses slog.Default().
func NewCatalog(store *objstore.Store, clk clock.Clock, logger *slog.Logger) *Catalog {
	if clk == nil {
		clk = clock.Real()
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Catalog{store: store, clock: clk, logger: logger}
}

// Store returns the underlying object store.
func (c *Catalog) Store() *objstore.Store { return c.store }

// Now returns the current time as index metadata stamps it.
func (c *Catalog) Now() int64 { return c.clock.Now().Unix() }

// Index returns a snapshot of tenant's entity index. The snapshot is
// private to the caller.
func (c *Catalog) Index(ctx context.Context, tenant string) (EntityIndex, error) {
	handle, err := objstore.Find[EntityIndex](ctx, c.store, tenant, IndexObjectID)
	if err != nil {
		return EntityIndex{}, err
	}
	var snapshot EntityIndex
	handle.View(func(index EntityIndex) { snapshot = index.Clone() })
	return snapshot, nil
}

// ListByFilter returns the records of tenant matching filter, in index
// order.
func (c *Catalog) ListByFilter(ctx context.Context, tenant string, filter Filter) ([]IndexRecord, error) {
	handle, err := objstore.Find[EntityIndex](ctx, c.store, tenant, IndexObjectID)
	if err != nil {
		return nil, err
	}
	var records []IndexRecord
	handle.View(func(index EntityIndex) {
		for _, id := range index.order {
			if record := index.records[id]; filter.matches(record) {
				records = append(records, record)
			}
		}
	})
	return records, nil
}

// Get returns the index record of id in tenant.
func (c *Catalog) Get(ctx context.Context, tenant, id string) (IndexRecord, error) {
	handle, err := objstore.Find[EntityIndex](ctx, c.store, tenant, IndexObjectID)
	if err != nil {
		return IndexRecord{}, err
	}
	var (
		record IndexRecord
		found  bool
	)
	handle.View(func(index EntityIndex) { record, found = index.Get(id) })
	if !found {
		return IndexRecord{}, vaulterr.New(vaulterr.ErrNotFound, "index record %s/%s", tenant, id)
	}
	return record, nil
}

// Upsert inserts or replaces records in tenant's index verbatim.
func (c *Catalog) Upsert(ctx context.Context, tenant string, records ...IndexRecord) error {
	for _, record := range records {
		if err := objstore.ValidateID(record.ID); err != nil {
			return err
		}
	}
	return c.modify(ctx, tenant, func(index *EntityIndex) bool {
		for _, record := range records {
			index.Put(record)
		}
		return len(records) > 0
	})
}

// Restore puts previous back into tenant's index verbatim and drops
// the ids in added, leaving payload files alone. It undoes an Upsert
// whose displaced records were previous and whose new ids were added.
func (c *Catalog) Restore(ctx context.Context, tenant string, previous []IndexRecord, added []string) error {
	return c.modify(ctx, tenant, func(index *EntityIndex) bool {
		changed := false
		for _, record := range previous {
			if current, ok := index.Get(record.ID); !ok || current != record {
				index.Put(record)
				changed = true
			}
		}
		for _, id := range added {
			if index.Remove(id) {
				changed = true
			}
		}
		return changed
	})
}

// Delete removes id from tenant's index and deletes its payload file
// and asset directory. Deleting an unknown id is not an error.
func (c *Catalog) Delete(ctx context.Context, tenant, id string) error {
	if err := objstore.ValidateID(id); err != nil {
		return err
	}
	err := c.modify(ctx, tenant, func(index *EntityIndex) bool {
		return index.Remove(id)
	})
	if err != nil {
		return err
	}
	if err := c.store.Delete(ctx, tenant, id); err != nil {
		return err
	}
	directory := c.store.AssetDir(tenant, id)
	if err := os.RemoveAll(directory); err != nil {
		return vaulterr.Wrap(vaulterr.ErrIO, err, "removing %s", directory)
	}
	return nil
}

// BatchRemove removes ids from tenant's index, then deletes their
// payload files and asset directories in the background. Failures of
// the background deletes are reported by the store's Flush.
func (c *Catalog) BatchRemove(ctx context.Context, tenant string, ids []string) error {
	for _, id := range ids {
		if err := objstore.ValidateID(id); err != nil {
			return err
		}
	}
	err := c.modify(ctx, tenant, func(index *EntityIndex) bool {
		changed := false
		for _, id := range ids {
			if index.Remove(id) {
				changed = true
			}
		}
		return changed
	})
	if err != nil {
		return err
	}
	c.store.BatchRemove(tenant, ids)
	c.store.BatchRemoveAssets(tenant, ids)
	return nil
}

// modify applies fn to a private copy of tenant's index and stores the
// copy when fn reports a change.
func (c *Catalog) modify(ctx context.Context, tenant string, fn func(index *EntityIndex) bool) error {
	err := objstore.Modify(ctx, c.store, tenant, IndexObjectID, func(index *EntityIndex) error {
		next := index.Clone()
		if !fn(&next) {
			return errUnchanged
		}
		*index = next
		return nil
	})
	if errors.Is(err, errUnchanged) {
		return nil
	}
	return err
}

var errUnchanged = errors.New("index unchanged")

// Put stores value and records it in its tenant's index under name and
// node, stamping metadata with actor and the current time. An existing
// record keeps its creation stamp. The tenant's version in tenant.json
// advances to the stamp; storing the tenant's workspace also renames
// the tenant.
func Put[T objstore.Cachable](ctx context.Context, c *Catalog, value T, name, node, path, actor string) (IndexRecord, error) {
	tenant, id := value.TenantID(), value.ObjectID()
	now := c.Now()
	record := IndexRecord{
		ID:   id,
		Name: name,
		Kind: Kind(value.Kind()),
		Node: node,
		Path: path,
		Metadata: Metadata{
			CreatedBy: actor,
			CreatedAt: now,
			UpdatedBy: actor,
			UpdatedAt: now,
		},
	}
	if existing, err := c.Get(ctx, tenant, id); err == nil {
		record.Metadata.CreatedBy = existing.Metadata.CreatedBy
		record.Metadata.CreatedAt = existing.Metadata.CreatedAt
	} else if !errors.Is(err, vaulterr.ErrNotFound) {
		return IndexRecord{}, err
	}

	if err := objstore.Upsert(ctx, c.store, value); err != nil {
		return IndexRecord{}, err
	}
	if err := c.Upsert(ctx, tenant, record); err != nil {
		return IndexRecord{}, err
	}

	err := c.UpdateTenantMeta(tenant, func(meta *TenantMeta) {
		if record.Kind == KindWorkspace && id == tenant {
			meta.Name = name
		}
		meta.UpdatedAt = max(meta.UpdatedAt, now)
	})
	if err != nil {
		return IndexRecord{}, err
	}
	return record, nil
}

// UpdateTenantMeta applies fn to tenant's metadata and writes the
// result. Concurrent updates through the same Catalog serialize.
func (c *Catalog) UpdateTenantMeta(tenant string, fn func(meta *TenantMeta)) error {
	c.metaMu.Lock()
	defer c.metaMu.Unlock()
	meta, err := ReadTenantMeta(c.store.Root(), tenant)
	if err != nil {
		return err
	}
	fn(&meta)
	meta.ID = tenant
	return WriteTenantMeta(c.store.Root(), meta)
}

// InitTenant creates the empty skeleton of a new tenant (entity index,
// student roster, task list) and writes its metadata file. It fails
// with ErrConflict if the tenant already has metadata.
func (c *Catalog) InitTenant(ctx context.Context, meta TenantMeta) error {
	if err := objstore.ValidateID(meta.ID); err != nil {
		return err
	}
	c.metaMu.Lock()
	defer c.metaMu.Unlock()
	if _, err := ReadTenantMeta(c.store.Root(), meta.ID); err == nil {
		return vaulterr.New(vaulterr.ErrConflict, "tenant %s already exists", meta.ID)
	} else if !errors.Is(err, vaulterr.ErrNotFound) {
		return err
	}
	if meta.CreatedAt == 0 {
		meta.CreatedAt = c.Now()
	}
	if meta.UpdatedAt == 0 {
		meta.UpdatedAt = meta.CreatedAt
	}

	if err := objstore.Upsert(ctx, c.store, NewEntityIndex(meta.ID)); err != nil {
		return err
	}
	if err := objstore.Upsert(ctx, c.store, StudentRoster{ID: RosterObjectID, Tenant: meta.ID, Students: []Student{}}); err != nil {
		return err
	}
	if err := objstore.Upsert(ctx, c.store, TaskList{ID: TasksObjectID, Tenant: meta.ID, Tasks: []Task{}}); err != nil {
		return err
	}
	if err := WriteTenantMeta(c.store.Root(), meta); err != nil {
		return err
	}
	c.logger.Info("tenant initialized", "tenant", meta.ID, "name", meta.Name)
	return nil
}
