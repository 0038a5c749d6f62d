// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// Package vaulterr defines the error taxonomy shared by the examvault
// storage and exchange packages.
//
// Every error returned from a core package wraps exactly one of the
// sentinels below, so callers classify failures with [errors.Is]:
//
//   - [ErrNotFound] -- missing object, tenant, or path
//   - [ErrConflict] -- import version check failed
//   - [ErrCrypto] -- AEAD authentication failure or corrupted bytes
//   - [ErrSerialization] -- malformed JSON or CBOR payload
//   - [ErrIO] -- filesystem failure
//   - [ErrTypeMismatch] -- cache contract violation (programmer error)
//   - [ErrInvalid] -- a tenant or object id that cannot name a file
//
// Internal failures carry paths and low-level detail for the server
// log. [Public] strips them down to [ErrInternal] before they reach a
// user-facing surface; [ErrNotFound], [ErrConflict], and [ErrInvalid] pass through
// because the caller can act on them.
//
// This package depends on no other examvault packages.
package vaulterr
