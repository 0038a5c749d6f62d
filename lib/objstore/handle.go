// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package objstore

import (
	"context"
	"encoding/json"
	"errors"
	"io/fs"
	"os"
	"sync"

	"github.com/bureau-foundation/examvault/lib/objcache"
	"github.com/bureau-foundation/examvault/lib/objcodec"
	"github.com/bureau-foundation/examvault/lib/vaulterr"
)

// Handle is the shared in-memory instance of one stored object. All
// callers of Find for the same object receive the same Handle while it
// stays cached. The value is guarded by the handle's own lock.
type Handle[T Cachable] struct {
	lock  sync.RWMutex
	value T
}

// Get returns a copy of the current value, taken under the read lock.
// Reference-typed fields (maps, slices) still share storage with the
// cached value and must not be mutated by the caller.
func (h *Handle[T]) Get() T {
	h.lock.RLock()
	defer h.lock.RUnlock()
	return h.value
}

// View calls fn with the current value while holding the read lock.
// fn must not retain or mutate the value.
func (h *Handle[T]) View(fn func(value T)) {
	h.lock.RLock()
	defer h.lock.RUnlock()
	fn(h.value)
}

// Find returns the shared handle of (tenant, id), loading and
// decoding the payload file on a cache miss. Concurrent misses for the
// same object read the file once.
func Find[T Cachable](ctx context.Context, store *Store, tenant, id string) (*Handle[T], error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if err := validatePair(tenant, id); err != nil {
		return nil, err
	}
	return objcache.GetOrLoad(store.cache, cacheKey(tenant, id), func() (*Handle[T], error) {
		value, err := load[T](store, tenant, id)
		if err != nil {
			return nil, err
		}
		return &Handle[T]{value: value}, nil
	})
}

// Load reads and decodes the payload file of (tenant, id), bypassing
// the cache.
func Load[T Cachable](store *Store, tenant, id string) (T, error) {
	if err := validatePair(tenant, id); err != nil {
		var zero T
		return zero, err
	}
	return load[T](store, tenant, id)
}

func load[T Cachable](store *Store, tenant, id string) (T, error) {
	var value T
	// An object evicted from the cache before its detached write
	// landed is newer in memory than on disk.
	if plaintext, ok := store.pendingPlaintext(cacheKey(tenant, id)); ok {
		if err := json.Unmarshal(plaintext, &value); err != nil {
			return value, vaulterr.Wrap(vaulterr.ErrSerialization, err, "decoding pending %s/%s", tenant, id)
		}
		return value, nil
	}

	path := store.ObjectPath(tenant, id)
	data, err := os.ReadFile(path)
	if errors.Is(err, fs.ErrNotExist) {
		return value, vaulterr.New(vaulterr.ErrNotFound, "object %s/%s", tenant, id)
	}
	if err != nil {
		return value, vaulterr.Wrap(vaulterr.ErrIO, err, "reading %s", path)
	}
	if err := store.codec.Decode(tenant, data, &value); err != nil {
		return value, err
	}
	return value, nil
}

// Upsert makes value the current state of its object. The cache is
// updated before Upsert returns, so a subsequent Find observes value;
// the payload file is written by detached work that may not have
// started when Upsert returns.
func Upsert[T Cachable](ctx context.Context, store *Store, value T) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	tenant, id := value.TenantID(), value.ObjectID()
	if err := validatePair(tenant, id); err != nil {
		return err
	}
	plaintext, err := objcodec.Marshal(value)
	if err != nil {
		return err
	}

	fresh := &Handle[T]{}
	fresh.lock.Lock()
	handle, inserted, err := objcache.InsertIfAbsent(store.cache, cacheKey(tenant, id), fresh)
	if err != nil {
		fresh.lock.Unlock()
		return err
	}
	if !inserted {
		fresh.lock.Unlock()
		handle.lock.Lock()
	}
	defer handle.lock.Unlock()

	handle.value = value
	store.schedulePersist(tenant, id, plaintext)
	return nil
}

// Modify applies fn to the current state of (tenant, id) under the
// handle's write lock and schedules the result for persistence. If fn
// returns an error nothing is persisted; fn must not have mutated
// shared reference-typed fields in that case. fn may not change the
// object's tenant or id.
func Modify[T Cachable](ctx context.Context, store *Store, tenant, id string, fn func(value *T) error) error {
	handle, err := Find[T](ctx, store, tenant, id)
	if err != nil {
		return err
	}

	handle.lock.Lock()
	defer handle.lock.Unlock()

	next := handle.value
	if err := fn(&next); err != nil {
		return err
	}
	if next.TenantID() != tenant || next.ObjectID() != id {
		return vaulterr.New(vaulterr.ErrInvalid, "modify of %s/%s changed identity to %s/%s",
			tenant, id, next.TenantID(), next.ObjectID())
	}
	plaintext, err := objcodec.Marshal(next)
	if err != nil {
		return err
	}
	handle.value = next
	store.schedulePersist(tenant, id, plaintext)
	return nil
}
