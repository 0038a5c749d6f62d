// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package testutil

import (
	"bytes"
	"testing"

	"github.com/bureau-foundation/examvault/lib/secret"
	"github.com/bureau-foundation/examvault/lib/tenantkey"
)

// Ring returns a key ring whose master key is tenantkey.KeySize copies
// of fill. Rings built with the same fill derive the same keys. The
// ring is closed when the test ends.
func Ring(t testing.TB, fill byte) *tenantkey.Ring {
	t.Helper()
	master, err := secret.NewFromBytes(bytes.Repeat([]byte{fill}, tenantkey.KeySize))
	if err != nil {
		t.Fatalf("allocating master key: %v", err)
	}
	ring, err := tenantkey.NewRing(master)
	if err != nil {
		master.Close()
		t.Fatalf("creating key ring: %v", err)
	}
	t.Cleanup(func() { ring.Close() })
	return ring
}
