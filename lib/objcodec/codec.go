// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package objcodec

import (
	"crypto/cipher"
	"crypto/rand"
	"encoding/json"
	"fmt"
	"io"

	"github.com/bureau-foundation/examvault/lib/vaulterr"
)

// KeySource resolves the AEAD for a tenant. *tenantkey.Ring satisfies
// it.
type KeySource interface {
	AEAD(tenant string) (cipher.AEAD, error)
}

// Codec seals and opens object payloads. Safe for concurrent use.
type Codec struct {
	keys        KeySource
	compression Compression
}

// New returns a Codec that resolves keys from keys and compresses
// sealed bytes with compression.
func New(keys KeySource, compression Compression) *Codec {
	return &Codec{keys: keys, compression: compression}
}

// Compression reports the compression applied by Seal. Open accepts
// blobs written under any compression.
func (c *Codec) Compression() Compression {
	return c.compression
}

// Encode serializes value to JSON and seals it for tenant.
func (c *Codec) Encode(tenant string, value any) ([]byte, error) {
	plaintext, err := Marshal(value)
	if err != nil {
		return nil, err
	}
	return c.Seal(tenant, plaintext)
}

// Decode opens data for tenant and deserializes the JSON plaintext
// into target, which must be a pointer.
func (c *Codec) Decode(tenant string, data []byte, target any) error {
	plaintext, err := c.Open(tenant, data)
	if err != nil {
		return err
	}
	if err := json.Unmarshal(plaintext, target); err != nil {
		return vaulterr.Wrap(vaulterr.ErrSerialization, err, "decoding %T", target)
	}
	return nil
}

// Marshal is the canonical serialization used before sealing.
func Marshal(value any) ([]byte, error) {
	plaintext, err := json.Marshal(value)
	if err != nil {
		return nil, vaulterr.Wrap(vaulterr.ErrSerialization, err, "encoding %T", value)
	}
	return plaintext, nil
}

// Seal encrypts plaintext under tenant's key with a fresh random
// nonce, prepends the nonce, compresses the result, and prefixes the
// compression tag.
func (c *Codec) Seal(tenant string, plaintext []byte) ([]byte, error) {
	aead, err := c.keys.AEAD(tenant)
	if err != nil {
		return nil, err
	}

	nonceSize := aead.NonceSize()
	sealed := make([]byte, nonceSize, nonceSize+len(plaintext)+aead.Overhead())
	if _, err := io.ReadFull(rand.Reader, sealed); err != nil {
		return nil, vaulterr.Wrap(vaulterr.ErrCrypto, err, "generating nonce")
	}
	sealed = aead.Seal(sealed, sealed[:nonceSize], plaintext, nil)

	compressed, err := compress(sealed, c.compression)
	if err != nil {
		return nil, vaulterr.Wrap(vaulterr.ErrIO, err, "compressing sealed payload")
	}
	blob := make([]byte, 1, 1+len(compressed))
	blob[0] = byte(c.compression)
	return append(blob, compressed...), nil
}

// Open reverses Seal. Any corruption, tampering, or key mismatch is
// reported as vaulterr.ErrCrypto.
func (c *Codec) Open(tenant string, data []byte) ([]byte, error) {
	if len(data) == 0 {
		return nil, vaulterr.New(vaulterr.ErrCrypto, "payload is empty")
	}
	sealed, err := decompress(data[1:], Compression(data[0]))
	if err != nil {
		return nil, vaulterr.Wrap(vaulterr.ErrCrypto, err, "payload is corrupted")
	}

	aead, err := c.keys.AEAD(tenant)
	if err != nil {
		return nil, err
	}
	nonceSize := aead.NonceSize()
	if len(sealed) < nonceSize+aead.Overhead() {
		return nil, vaulterr.New(vaulterr.ErrCrypto, "sealed payload is %d bytes, minimum is %d",
			len(sealed), nonceSize+aead.Overhead())
	}

	plaintext, err := aead.Open(nil, sealed[:nonceSize], sealed[nonceSize:], nil)
	if err != nil {
		return nil, vaulterr.Wrap(vaulterr.ErrCrypto, err, "authenticating payload (wrong key or tampered data)")
	}
	return plaintext, nil
}

// String describes the codec without revealing key material.
func (c *Codec) String() string {
	return fmt.Sprintf("objcodec(chacha20poly1305, %s)", c.compression)
}
