// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package tenantkey

import (
	"bytes"
	"testing"

	"github.com/bureau-foundation/examvault/lib/secret"
)

func newTestRing(t *testing.T, fill byte) *Ring {
	t.Helper()
	master, err := secret.NewFromBytes(bytes.Repeat([]byte{fill}, KeySize))
	if err != nil {
		t.Fatalf("allocating master key: %v", err)
	}
	ring, err := NewRing(master)
	if err != nil {
		master.Close()
		t.Fatalf("NewRing: %v", err)
	}
	t.Cleanup(func() { ring.Close() })
	return ring
}

func seal(t *testing.T, ring *Ring, tenant string, plaintext []byte) []byte {
	t.Helper()
	aead, err := ring.AEAD(tenant)
	if err != nil {
		t.Fatalf("AEAD(%q): %v", tenant, err)
	}
	nonce := make([]byte, aead.NonceSize())
	return aead.Seal(nil, nonce, plaintext, nil)
}

func open(ring *Ring, tenant string, ciphertext []byte) ([]byte, error) {
	aead, err := ring.AEAD(tenant)
	if err != nil {
		return nil, err
	}
	nonce := make([]byte, aead.NonceSize())
	return aead.Open(nil, nonce, ciphertext, nil)
}

func TestNewRingRejectsWrongSize(t *testing.T) {
	master, err := secret.NewFromBytes(make([]byte, 16))
	if err != nil {
		t.Fatal(err)
	}
	defer master.Close()
	if _, err := NewRing(master); err == nil {
		t.Fatal("NewRing accepted a 16-byte key")
	}
}

func TestDerivationIsDeterministic(t *testing.T) {
	first := newTestRing(t, 0x11)
	second := newTestRing(t, 0x11)

	ciphertext := seal(t, first, "tenant-a", []byte("payload"))
	plaintext, err := open(second, "tenant-a", ciphertext)
	if err != nil {
		t.Fatalf("same master and tenant failed to open: %v", err)
	}
	if string(plaintext) != "payload" {
		t.Errorf("plaintext = %q", plaintext)
	}
}

func TestTenantsAreIsolated(t *testing.T) {
	ring := newTestRing(t, 0x22)

	ciphertext := seal(t, ring, "tenant-a", []byte("payload"))
	for _, other := range []string{"tenant-b", MasterTenant, "tenant-a "} {
		if _, err := open(ring, other, ciphertext); err == nil {
			t.Errorf("tenant %q opened ciphertext sealed for tenant-a", other)
		}
	}
}

func TestMasterTenantUsesMasterKey(t *testing.T) {
	ring := newTestRing(t, 0x33)
	other := newTestRing(t, 0x34)

	ciphertext := seal(t, ring, MasterTenant, []byte("index"))
	if _, err := open(ring, MasterTenant, ciphertext); err != nil {
		t.Fatalf("master tenant round trip: %v", err)
	}
	if _, err := open(other, MasterTenant, ciphertext); err == nil {
		t.Fatal("different master key opened master-sealed ciphertext")
	}
}

func TestKeyID(t *testing.T) {
	a := newTestRing(t, 0x44)
	b := newTestRing(t, 0x44)
	c := newTestRing(t, 0x45)

	if a.KeyID() != b.KeyID() {
		t.Errorf("equal masters gave different key ids: %s vs %s", a.KeyID(), b.KeyID())
	}
	if a.KeyID() == c.KeyID() {
		t.Error("different masters gave the same key id")
	}
	if len(a.KeyID()) != 32 {
		t.Errorf("KeyID length = %d, want 32 hex characters", len(a.KeyID()))
	}
}
