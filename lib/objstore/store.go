// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package objstore

import (
	"context"
	"errors"
	"fmt"
	"hash/maphash"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"

	"golang.org/x/sync/errgroup"
	"golang.org/x/sync/semaphore"

	"github.com/bureau-foundation/examvault/lib/atomicfile"
	"github.com/bureau-foundation/examvault/lib/objcache"
	"github.com/bureau-foundation/examvault/lib/objcodec"
	"github.com/bureau-foundation/examvault/lib/vaulterr"
)

// ObjectExt is the file extension of object payload files.
const ObjectExt = ".bin"

// DefaultIOConcurrency bounds detached disk work when no limit is
// configured.
const DefaultIOConcurrency = 8

// maxRetainedErrors caps how many detached failures are kept between
// flushes. Later failures are still logged.
const maxRetainedErrors = 64

const stripeCount = 64

// Cachable is implemented by every stored type.
type Cachable interface {
	// Kind is a stable tag naming the object type.
	Kind() string
	// ObjectID is the object's id, unique within its tenant.
	ObjectID() string
	// TenantID is the id of the owning tenant.
	TenantID() string
}

// Config configures a Store.
type Config struct {
	// Root is the directory holding one subdirectory per tenant.
	Root string

	// Codec seals and opens payloads. Required.
	Codec *objcodec.Codec

	// Cache is the object cache. If nil, a cache of CacheCapacity
	// entries is created.
	Cache         *objcache.Cache
	CacheCapacity int

	// IOConcurrency bounds concurrent detached disk operations.
	IOConcurrency int

	Logger *slog.Logger
}

// pendingWrite is the only scheduled write of a key allowed to land.
type pendingWrite struct {
	sequence  uint64
	plaintext []byte
}

// Store persists Cachable objects per tenant. Safe for concurrent use.
type Store struct {
	root          string
	codec         *objcodec.Codec
	cache         *objcache.Cache
	logger        *slog.Logger
	ioLimit       int
	io            *semaphore.Weighted
	stripeSeed    maphash.Seed
	stripes       [stripeCount]sync.Mutex
	mu            sync.Mutex
	idle          *sync.Cond
	sequence      uint64
	pending       map[string]pendingWrite
	inflight      int
	detachedError []error
}

// New creates the root directory if needed and returns a Store.
func New(config Config) (*Store, error) {
	if config.Root == "" {
		return nil, fmt.Errorf("store root is required")
	}
	if config.Codec == nil {
		return nil, fmt.Errorf("store codec is required")
	}
	if err := os.MkdirAll(config.Root, 0o755); err != nil {
		return nil, vaulterr.Wrap(vaulterr.ErrIO, err, "creating store root %s", config.Root)
	}
	cache := config.Cache
	if cache == nil {
		var err error
		cache, err = objcache.New(config.CacheCapacity)
		if err != nil {
			return nil, err
		}
	}
	ioLimit := config.IOConcurrency
	if ioLimit <= 0 {
		ioLimit = DefaultIOConcurrency
	}
	logger := config.Logger
	if logger == nil {
		logger = slog.Default()
	}

	store := &Store{
		root:       config.Root,
		codec:      config.Codec,
		cache:      cache,
		logger:     logger,
		ioLimit:    ioLimit,
		io:         semaphore.NewWeighted(int64(ioLimit)),
		stripeSeed: maphash.MakeSeed(),
		pending:    make(map[string]pendingWrite),
	}
	store.idle = sync.NewCond(&store.mu)
	return store, nil
}

// Root returns the store's root directory.
func (s *Store) Root() string { return s.root }

// Codec returns the codec used for payload files.
func (s *Store) Codec() *objcodec.Codec { return s.codec }

// Cache returns the object cache.
func (s *Store) Cache() *objcache.Cache { return s.cache }

// IOConcurrency returns the configured bound on concurrent disk work.
func (s *Store) IOConcurrency() int { return s.ioLimit }

// TenantDir returns the directory holding tenant's objects.
func (s *Store) TenantDir(tenant string) string {
	return filepath.Join(s.root, tenant)
}

// ObjectPath returns the payload file path of (tenant, id).
func (s *Store) ObjectPath(tenant, id string) string {
	return filepath.Join(s.root, tenant, id+ObjectExt)
}

// AssetDir returns the asset directory of (tenant, id).
func (s *Store) AssetDir(tenant, id string) string {
	return filepath.Join(s.root, tenant, "assets", id)
}

// ValidateID reports whether id can name a tenant or an object. Ids
// must be non-empty, must not start with a dot, and must not contain
// path separators.
func ValidateID(id string) error {
	switch {
	case id == "":
		return vaulterr.New(vaulterr.ErrInvalid, "empty id")
	case strings.HasPrefix(id, "."):
		return vaulterr.New(vaulterr.ErrInvalid, "id %q starts with a dot", id)
	case strings.ContainsAny(id, `/\`+"\x00"):
		return vaulterr.New(vaulterr.ErrInvalid, "id %q contains a path separator", id)
	}
	return nil
}

func validatePair(tenant, id string) error {
	if err := ValidateID(tenant); err != nil {
		return err
	}
	return ValidateID(id)
}

func cacheKey(tenant, id string) string {
	return tenant + "/" + id
}

func tenantPrefix(tenant string) string {
	return tenant + "/"
}

// ListTenants returns the ids of all tenant directories, sorted.
func (s *Store) ListTenants() ([]string, error) {
	entries, err := os.ReadDir(s.root)
	if err != nil {
		return nil, vaulterr.Wrap(vaulterr.ErrIO, err, "listing %s", s.root)
	}
	var tenants []string
	for _, entry := range entries {
		if entry.IsDir() && ValidateID(entry.Name()) == nil {
			tenants = append(tenants, entry.Name())
		}
	}
	sort.Strings(tenants)
	return tenants, nil
}

// Exists reports whether a payload file exists for (tenant, id),
// ignoring the cache.
func (s *Store) Exists(tenant, id string) bool {
	if validatePair(tenant, id) != nil {
		return false
	}
	_, err := os.Stat(s.ObjectPath(tenant, id))
	return err == nil
}

// Invalidate drops (tenant, id) from the cache so the next Find reads
// the payload file. Used after a payload file is replaced outside the
// store.
func (s *Store) Invalidate(tenant, id string) {
	s.cache.Invalidate(cacheKey(tenant, id))
}

// Delete removes the payload file of (tenant, id), tolerating a file
// that is already gone, and drops the cache entry. Pending writes of
// the object are cancelled.
func (s *Store) Delete(ctx context.Context, tenant, id string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if err := validatePair(tenant, id); err != nil {
		return err
	}
	key := cacheKey(tenant, id)

	stripe := s.stripe(key)
	stripe.Lock()
	defer stripe.Unlock()

	s.mu.Lock()
	delete(s.pending, key)
	s.mu.Unlock()

	s.cache.Invalidate(key)
	path := s.ObjectPath(tenant, id)
	if err := os.Remove(path); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return vaulterr.Wrap(vaulterr.ErrIO, err, "removing %s", path)
	}
	return nil
}

// Replace runs swap with the payload path of (tenant, id) while no
// detached write of the object can run, cancelling any pending write,
// and drops the cache entry afterwards. Used to move payload files
// into place from outside the store.
func (s *Store) Replace(tenant, id string, swap func(path string) error) error {
	if err := validatePair(tenant, id); err != nil {
		return err
	}
	key := cacheKey(tenant, id)

	stripe := s.stripe(key)
	stripe.Lock()
	defer stripe.Unlock()

	s.mu.Lock()
	delete(s.pending, key)
	s.mu.Unlock()

	defer s.cache.Invalidate(key)
	return swap(s.ObjectPath(tenant, id))
}

// BatchRemove deletes every id of tenant in the background. Failures
// are logged and reported by Flush, not returned.
func (s *Store) BatchRemove(tenant string, ids []string) {
	ids = append([]string(nil), ids...)
	s.detach(func() {
		group := new(errgroup.Group)
		group.SetLimit(s.ioLimit)
		for _, id := range ids {
			group.Go(func() error {
				if err := s.Delete(context.Background(), tenant, id); err != nil {
					s.recordFailure("batch remove", err, "tenant", tenant, "id", id)
				}
				return nil
			})
		}
		group.Wait()
	})
}

// BatchRemoveAssets deletes the asset directory of every id of tenant
// in the background. Failures are logged and reported by Flush.
func (s *Store) BatchRemoveAssets(tenant string, ids []string) {
	ids = append([]string(nil), ids...)
	s.detach(func() {
		group := new(errgroup.Group)
		group.SetLimit(s.ioLimit)
		for _, id := range ids {
			group.Go(func() error {
				if validatePair(tenant, id) != nil {
					return nil
				}
				directory := s.AssetDir(tenant, id)
				if err := os.RemoveAll(directory); err != nil {
					s.recordFailure("batch remove assets", vaulterr.Wrap(vaulterr.ErrIO, err, "removing %s", directory),
						"tenant", tenant, "id", id)
				}
				return nil
			})
		}
		group.Wait()
	})
}

// RemoveTenant wipes tenant's directory and every cached object of
// the tenant in the background. Pending writes for the tenant are
// cancelled. Failures are logged and reported by Flush.
func (s *Store) RemoveTenant(tenant string) error {
	if err := ValidateID(tenant); err != nil {
		return err
	}
	s.detach(func() {
		if err := s.removeTenant(tenant); err != nil {
			s.recordFailure("remove tenant", err, "tenant", tenant)
		}
	})
	return nil
}

// DeleteTenant is RemoveTenant run to completion before returning.
func (s *Store) DeleteTenant(tenant string) error {
	if err := ValidateID(tenant); err != nil {
		return err
	}
	return s.removeTenant(tenant)
}

func (s *Store) removeTenant(tenant string) error {
	for index := range s.stripes {
		s.stripes[index].Lock()
	}
	defer func() {
		for index := range s.stripes {
			s.stripes[index].Unlock()
		}
	}()

	prefix := tenantPrefix(tenant)
	s.mu.Lock()
	for key := range s.pending {
		if strings.HasPrefix(key, prefix) {
			delete(s.pending, key)
		}
	}
	s.mu.Unlock()

	removed := s.cache.InvalidatePrefix(prefix)
	directory := s.TenantDir(tenant)
	if err := os.RemoveAll(directory); err != nil {
		return vaulterr.Wrap(vaulterr.ErrIO, err, "removing %s", directory)
	}
	s.logger.Info("tenant removed", "tenant", tenant, "cached_entries", removed)
	return nil
}

// Persist writes the latest unwritten state of (tenant, id) before
// returning and reports that write's failure. It returns nil at once
// when the object has no pending write. The detached write of the
// same state is skipped afterwards.
func (s *Store) Persist(ctx context.Context, tenant, id string) error {
	if err := ctx.Err(); err != nil {
		return vaulterr.Wrap(vaulterr.ErrIO, err, "persisting %s/%s", tenant, id)
	}
	if err := validatePair(tenant, id); err != nil {
		return err
	}
	key := cacheKey(tenant, id)

	stripe := s.stripe(key)
	stripe.Lock()
	defer stripe.Unlock()

	s.mu.Lock()
	write, ok := s.pending[key]
	s.mu.Unlock()
	if !ok {
		return nil
	}
	sealed, err := s.codec.Seal(tenant, write.plaintext)
	if err != nil {
		return err
	}
	if err := atomicfile.Write(s.ObjectPath(tenant, id), sealed, 0o600); err != nil {
		return err
	}
	s.settle(key, write.sequence)
	return nil
}

// Flush blocks until all detached work started before the call has
// finished, then returns the failures collected since the previous
// Flush.
func (s *Store) Flush() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for s.inflight > 0 {
		s.idle.Wait()
	}
	failures := s.detachedError
	s.detachedError = nil
	return errors.Join(failures...)
}

func (s *Store) stripe(key string) *sync.Mutex {
	return &s.stripes[maphash.String(s.stripeSeed, key)%stripeCount]
}

func (s *Store) detach(work func()) {
	s.mu.Lock()
	s.inflight++
	s.mu.Unlock()
	go func() {
		defer s.finish()
		work()
	}()
}

func (s *Store) finish() {
	s.mu.Lock()
	s.inflight--
	if s.inflight == 0 {
		s.idle.Broadcast()
	}
	s.mu.Unlock()
}

func (s *Store) recordFailure(operation string, err error, attrs ...any) {
	s.logger.Error("detached store operation failed",
		append([]any{"operation", operation, "error", err}, attrs...)...)
	s.mu.Lock()
	if len(s.detachedError) < maxRetainedErrors {
		s.detachedError = append(s.detachedError, fmt.Errorf("%s: %w", operation, err))
	}
	s.mu.Unlock()
}

// schedulePersist records plaintext as the latest state of (tenant,
// id) and writes it in the background. Callers hold the object's
// handle lock, so sequence order matches cache mutation order.
func (s *Store) schedulePersist(tenant, id string, plaintext []byte) {
	key := cacheKey(tenant, id)

	s.mu.Lock()
	s.sequence++
	sequence := s.sequence
	s.pending[key] = pendingWrite{sequence: sequence, plaintext: plaintext}
	s.inflight++
	s.mu.Unlock()

	go func() {
		defer s.finish()
		s.persist(key, tenant, id, sequence, plaintext)
	}()
}

func (s *Store) persist(key, tenant, id string, sequence uint64, plaintext []byte) {
	s.io.Acquire(context.Background(), 1)
	defer s.io.Release(1)

	if !s.isLatest(key, sequence) {
		return
	}

	sealed, err := s.codec.Seal(tenant, plaintext)
	if err != nil {
		s.recordFailure("persist", err, "tenant", tenant, "id", id)
		return
	}

	stripe := s.stripe(key)
	stripe.Lock()
	defer stripe.Unlock()

	if !s.isLatest(key, sequence) {
		return
	}
	path := s.ObjectPath(tenant, id)
	if err := atomicfile.Write(path, sealed, 0o600); err != nil {
		s.recordFailure("persist", err, "tenant", tenant, "id", id)
		return
	}
	s.settle(key, sequence)
}

// settle forgets key's pending sequence if no later write replaced it.
// A failed write is never settled: its plaintext stays readable and
// the next Persist of the key retries it.
func (s *Store) settle(key string, sequence uint64) {
	s.mu.Lock()
	if s.pending[key].sequence == sequence {
		delete(s.pending, key)
	}
	s.mu.Unlock()
}

func (s *Store) isLatest(key string, sequence uint64) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.pending[key].sequence == sequence
}

func (s *Store) pendingPlaintext(key string) ([]byte, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	write, ok := s.pending[key]
	return write.plaintext, ok
}
