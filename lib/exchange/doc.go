// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// Package exchange exports tenant data into portable bundles and
// merges bundles back into a store.
//
// A bundle is a zip archive (optionally wrapped in an age passphrase
// envelope) laid out as:
//
//	workspace.json     plaintext {id, name, version, key_id, digest}
//	entities.bin       sealed JSON array of entity-index records (master key)
//	entities/<id>.bin  sealed payload files, copied verbatim from the store
//	assets/<id>/...    per-entity asset directories
//
// [Service.ExportWorkspace] snapshots a tenant's workspace, quizzes
// and surveys; [Service.Export] snapshots an explicit set of records.
// [Service.Import] rejects bundles whose version is not newer than the
// local tenant, merges index records last-writer-wins by
// metadata.updated_at (ties keep the local record), relocates the
// payloads and assets of the winning records, and only then commits
// the merged index and tenant metadata.
//
// Relocation is journaled: before anything live is touched, a CBOR
// journal of the planned moves is written to the operation's staging
// directory. Displaced live content is moved aside into the same
// staging directory. A failed relocation is rolled back in reverse
// order; [Service.Recover] rolls back relocations interrupted by a
// crash. Staging lives beneath the store root so every move is a
// rename within one filesystem.
//
// The Start* methods run the same pipelines detached and report
// completion as [Event] values on channels returned by
// [Service.Subscribe].
package exchange
