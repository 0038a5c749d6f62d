// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// Package bundle packs directory trees into zip archives and unpacks
// them again without letting any entry escape the destination.
//
// Every name written by [Pack] is normalized with [NormalizeName]:
// backslashes become slashes and empty, "." and ".." segments are
// dropped, so archives produced here never contain traversal
// sequences. [Unpack] applies the same normalization to names read
// from untrusted archives and joins only the surviving components onto
// the destination root. Entries are always extracted as regular files
// or directories; symlink entries are written as plain files.
//
// [Seal] and [Open] wrap an archive in an age scrypt envelope for
// passphrase-protected transport. [IsSealed] sniffs the envelope
// header.
package bundle
