// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// Package tenantkey resolves the symmetric key for a tenant from the
// process-wide master key.
//
// Per-tenant keys are derived on demand with HKDF-SHA256:
//
//	key(tenant) = HKDF-SHA256(IKM = master, salt = tenant, info = "examvault.tenant.v1")
//
// so no per-tenant key material is ever persisted. The empty tenant id
// selects the master key itself; bundle metadata that must be readable
// before the importing side knows the target tenant is sealed under it.
//
// [Ring.KeyID] fingerprints the master key with BLAKE3 in derive-key
// mode. The fingerprint is safe to publish and lets an importer detect
// a bundle sealed under a different master key before attempting any
// decryption.
package tenantkey
