// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// Package objstore is the per-tenant encrypted object store behind
// every examvault entity.
//
// Any type implementing [Cachable] can be stored. Each object lives in
// one file, sealed under its tenant's key by lib/objcodec:
//
//	<root>/<tenant>/<id>.bin
//
// Reads go through a shared lib/objcache instance. [Find] returns a
// [Handle] shared by every caller that asks for the same object; the
// handle guards its value with its own reader/writer lock, so distinct
// objects never contend.
//
// Writes are write-back. [Upsert] and [Modify] update the cached handle
// before returning and schedule sealing and the atomic file
// replacement as detached work. A crash before that work completes
// loses the update; the file on disk still holds the previous complete
// version because lib/atomicfile never exposes a partial file. Each
// scheduled write carries a store-wide sequence number, and a write
// that has been superseded by a later write or by a delete of the same
// object is skipped, so the disk converges on the last cached state.
// Until its write lands, the latest plaintext of an object stays in the
// pending table, and a load of an object evicted from the cache is
// served from there instead of the stale file.
//
// [Store.Replace] swaps an object's file from outside the store (an
// import moving a staged payload into place). It cancels the pending
// write of the object and invalidates its cache entry.
//
// [Store.Persist] writes one object's pending state synchronously and
// returns that write's own error; callers that must know an object is
// on disk use it instead of Flush. A failed detached write keeps its
// plaintext pending so Persist retries it.
//
// [Store.Flush] waits for all detached work started so far and reports
// the failures it collected. Detached failures are also logged.
package objstore
