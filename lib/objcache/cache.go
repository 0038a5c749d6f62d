// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package objcache

import (
	"fmt"
	"reflect"
	"strings"
	"sync/atomic"

	lru "github.com/hashicorp/golang-lru/v2"
	"golang.org/x/sync/singleflight"

	"github.com/bureau-foundation/examvault/lib/vaulterr"
)

// DefaultCapacity is the entry count used when none is configured.
const DefaultCapacity = 1000

type entry struct {
	tag   reflect.Type
	value any
}

// Stats counts cache activity since creation.
type Stats struct {
	Hits   uint64
	Misses uint64
	Loads  uint64
}

// Cache maps string keys to type-tagged values. Safe for concurrent
// use.
type Cache struct {
	entries *lru.Cache[string, entry]
	flight  singleflight.Group
	epoch   atomic.Uint64

	hits   atomic.Uint64
	misses atomic.Uint64
	loads  atomic.Uint64
}

// New creates a cache holding at most capacity entries. A
// non-positive capacity selects DefaultCapacity.
func New(capacity int) (*Cache, error) {
	if capacity <= 0 {
		capacity = DefaultCapacity
	}
	entries, err := lru.New[string, entry](capacity)
	if err != nil {
		return nil, fmt.Errorf("creating lru cache: %w", err)
	}
	return &Cache{entries: entries}, nil
}

// Len returns the number of cached entries.
func (c *Cache) Len() int {
	return c.entries.Len()
}

// Stats returns a snapshot of the activity counters.
func (c *Cache) Stats() Stats {
	return Stats{
		Hits:   c.hits.Load(),
		Misses: c.misses.Load(),
		Loads:  c.loads.Load(),
	}
}

// Invalidate drops key from the cache.
func (c *Cache) Invalidate(key string) {
	c.epoch.Add(1)
	c.entries.Remove(key)
	c.flight.Forget(key)
}

// InvalidatePrefix drops every key starting with prefix and returns
// how many entries were removed.
func (c *Cache) InvalidatePrefix(prefix string) int {
	c.epoch.Add(1)
	removed := 0
	for _, key := range c.entries.Keys() {
		if strings.HasPrefix(key, prefix) {
			if c.entries.Remove(key) {
				removed++
			}
			c.flight.Forget(key)
		}
	}
	return removed
}

func tagOf[T any]() reflect.Type {
	return reflect.TypeFor[T]()
}

func unwrap[T any](key string, stored entry) (T, error) {
	var zero T
	if stored.tag != tagOf[T]() {
		return zero, vaulterr.New(vaulterr.ErrTypeMismatch, "cache key %q holds %v, requested %v",
			key, stored.tag, tagOf[T]())
	}
	return stored.value.(T), nil
}

// Get returns the value cached under key. The boolean is false on a
// miss.
func Get[T any](c *Cache, key string) (T, bool, error) {
	stored, ok := c.entries.Get(key)
	if !ok {
		c.misses.Add(1)
		var zero T
		return zero, false, nil
	}
	c.hits.Add(1)
	value, err := unwrap[T](key, stored)
	return value, err == nil, err
}

// Insert stores value under key, replacing any previous entry.
func Insert[T any](c *Cache, key string, value T) {
	c.entries.Add(key, entry{tag: tagOf[T](), value: value})
}

// InsertIfAbsent stores value under key unless an entry already
// exists. It returns the entry now cached and whether value was the
// one inserted.
func InsertIfAbsent[T any](c *Cache, key string, value T) (T, bool, error) {
	candidate := entry{tag: tagOf[T](), value: value}
	for {
		present, _ := c.entries.ContainsOrAdd(key, candidate)
		if !present {
			return value, true, nil
		}
		stored, ok := c.entries.Get(key)
		if !ok {
			// Evicted between the two calls; try again.
			continue
		}
		existing, err := unwrap[T](key, stored)
		return existing, false, err
	}
}

// GetOrLoad returns the value cached under key, calling load on a
// miss. Concurrent misses for the same key share one load call and
// receive the same value. A failed load is not cached.
func GetOrLoad[T any](c *Cache, key string, load func() (T, error)) (T, error) {
	if value, ok, err := Get[T](c, key); ok || err != nil {
		return value, err
	}

	result, err, _ := c.flight.Do(key, func() (any, error) {
		// A flight that finished just before this one started will
		// have populated the cache.
		if stored, ok := c.entries.Get(key); ok {
			return stored, nil
		}

		epoch := c.epoch.Load()
		c.loads.Add(1)
		value, err := load()
		if err != nil {
			return nil, err
		}
		loaded := entry{tag: tagOf[T](), value: value}
		if c.epoch.Load() == epoch {
			if present, _ := c.entries.ContainsOrAdd(key, loaded); present {
				if stored, ok := c.entries.Get(key); ok {
					return stored, nil
				}
			}
		}
		return loaded, nil
	})
	if err != nil {
		var zero T
		return zero, err
	}
	return unwrap[T](key, result.(entry))
}
