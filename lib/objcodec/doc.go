// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// Package objcodec converts typed values to the encrypted byte form
// stored on disk and back.
//
// The on-disk format of every object file and of every encrypted
// bundle member is:
//
//	tag (1 byte) || compress[tag]( nonce (12 bytes) || ChaCha20-Poly1305( JSON(value) ) )
//
// The nonce is drawn from crypto/rand for every Seal call; a nonce is
// never reused under the same key. The tag names the compressor that
// Seal used, so a store may change its compression setting and still
// open older files, and bundles move between stores configured
// differently:
//
//   - [CompressionNone] (0) -- sealed bytes stored as-is
//   - [CompressionLZ4] (1) -- LZ4 frame with the content size recorded
//     in the frame header (default)
//   - [CompressionZstd] (2) -- zstd frame, which carries its own
//     content size
//
// Decoding failures are classified as vaulterr.ErrCrypto when the
// bytes are corrupted, tampered with, or sealed under another key
// (including failures inside the decompressor, which only ever sees
// corrupted input), and vaulterr.ErrSerialization when authenticated
// plaintext is not valid JSON for the target type.
package objcodec
