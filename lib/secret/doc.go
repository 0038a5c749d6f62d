// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// Package secret holds the examvault master key in memory that the Go
// runtime never sees.
//
// [Buffer] allocates an anonymous mmap region, locks it into RAM
// (mlock) and excludes it from core dumps (MADV_DONTDUMP). Close zeroes,
// unlocks, and unmaps it. Access after Close panics.
//
// [Generate] fills a new Buffer from crypto/rand. [ReadKeyFile] loads a
// fixed-size key from disk in either raw or hex form and moves it
// straight into a Buffer; [WriteKeyFile] stores one as hex, never
// replacing an existing file.
package secret
