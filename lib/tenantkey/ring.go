// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package tenantkey

import (
	"crypto/cipher"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"io"

	"github.com/zeebo/blake3"
	"golang.org/x/crypto/chacha20poly1305"
	"golang.org/x/crypto/hkdf"

	"github.com/bureau-foundation/examvault/lib/secret"
	"github.com/bureau-foundation/examvault/lib/vaulterr"
)

// KeySize is the size in bytes of the master key and every derived key.
const KeySize = chacha20poly1305.KeySize

// MasterTenant is the tenant id that selects the master key directly.
const MasterTenant = ""

// hkdfInfoTenant domain-separates tenant keys from any other use of
// the master key. Changing it invalidates every stored object.
var hkdfInfoTenant = []byte("examvault.tenant.v1")

// keyIDContext is the BLAKE3 derive-key context for KeyID.
const keyIDContext = "examvault 2026-01 master key fingerprint"

// Ring derives per-tenant AEADs from a master key. Safe for concurrent
// use.
type Ring struct {
	master *secret.Buffer
	keyID  string
}

// NewRing takes ownership of master, which must be KeySize bytes. The
// buffer is released by Close.
func NewRing(master *secret.Buffer) (*Ring, error) {
	if master.Len() != KeySize {
		return nil, fmt.Errorf("master key must be %d bytes, got %d", KeySize, master.Len())
	}
	var fingerprint [16]byte
	blake3.DeriveKey(keyIDContext, master.Bytes(), fingerprint[:])
	return &Ring{
		master: master,
		keyID:  hex.EncodeToString(fingerprint[:]),
	}, nil
}

// KeyID returns a public fingerprint of the master key.
func (r *Ring) KeyID() string {
	return r.keyID
}

// AEAD returns a ChaCha20-Poly1305 instance keyed for tenant. The
// derived key bytes are zeroed once the cipher has been constructed.
func (r *Ring) AEAD(tenant string) (cipher.AEAD, error) {
	if tenant == MasterTenant {
		aead, err := chacha20poly1305.New(r.master.Bytes())
		if err != nil {
			return nil, vaulterr.Wrap(vaulterr.ErrCrypto, err, "creating master cipher")
		}
		return aead, nil
	}

	derived, err := r.derive(tenant)
	if err != nil {
		return nil, err
	}
	defer secret.Zero(derived)

	aead, err := chacha20poly1305.New(derived)
	if err != nil {
		return nil, vaulterr.Wrap(vaulterr.ErrCrypto, err, "creating cipher for tenant %q", tenant)
	}
	return aead, nil
}

// Close releases the master key. The Ring must not be used afterwards.
func (r *Ring) Close() error {
	return r.master.Close()
}

func (r *Ring) derive(tenant string) ([]byte, error) {
	reader := hkdf.New(sha256.New, r.master.Bytes(), []byte(tenant), hkdfInfoTenant)
	derived := make([]byte, KeySize)
	if _, err := io.ReadFull(reader, derived); err != nil {
		secret.Zero(derived)
		return nil, vaulterr.Wrap(vaulterr.ErrCrypto, err, "deriving key for tenant %q", tenant)
	}
	return derived, nil
}
