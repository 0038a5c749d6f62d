// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// Package objcache is the bounded in-memory cache in front of the
// object store.
//
// One [Cache] holds values of many types. Each entry records the
// runtime type it was inserted with, and the generic accessors
// ([Get], [GetOrLoad], [InsertIfAbsent]) compare that tag with the
// requested type, failing with vaulterr.ErrTypeMismatch rather than
// asserting blindly. A mismatch means two object kinds share a key,
// which is a bug in key construction.
//
// [GetOrLoad] collapses concurrent misses for a key into one loader
// call (golang.org/x/sync/singleflight); every caller receives the
// same value. Eviction is least-recently-used over a fixed capacity
// (hashicorp/golang-lru) and is independent of in-flight loads.
//
// Invalidation advances a cache-wide epoch. A load that started
// before an invalidation still returns its value to the callers that
// waited on it but does not insert it, so a load racing a delete can
// never resurrect the deleted object in the cache.
package objcache
