// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// Package entity defines the stored domain types of a tenant and the
// per-tenant entity index that lists them.
//
// Every payload type (Workspace, Quiz, Survey, QuizRecord,
// SurveyRecord, Document, StudentRoster, TaskList, EntityIndex)
// implements [objstore.Cachable] and is persisted as one encrypted
// file per (tenant, id).
//
// The [Catalog] maintains the aggregate [EntityIndex] object of each
// tenant: a lightweight, insertion-ordered projection of every live
// entity used for listing and filtering without loading payloads. The
// index is updated through [objstore.Modify], so concurrent edits of
// the same tenant's index serialize on the index handle's lock.
//
// Each tenant directory also holds a plaintext tenant.json
// ([TenantMeta]) readable without the tenant's key. Import uses it to
// decide whether a tenant exists and which version it is at.
//
// [Schema] reflects the JSON Schema of the document kinds a caller may
// store directly.
package entity
