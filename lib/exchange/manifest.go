// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package exchange

import (
	"encoding/hex"
	"encoding/json"
	"errors"
	"io/fs"
	"os"

	"github.com/zeebo/blake3"

	"github.com/bureau-foundation/examvault/lib/vaulterr"
)

// Bundle member names.
const (
	ManifestName = "workspace.json"
	EntitiesName = "entities.bin"
	EntitiesDir  = "entities"
	AssetsDir    = "assets"
)

// BundleExt is the conventional extension of bundle files.
const BundleExt = ".maes"

// Manifest is the plaintext workspace.json of a bundle.
type Manifest struct {
	ID   string `json:"id"`
	Name string `json:"name"`

	// Version is the exporting tenant's updated_at. Imports require
	// it to be strictly greater than the local tenant's.
	Version int64 `json:"version"`

	// KeyID fingerprints the master key that sealed the bundle.
	KeyID string `json:"key_id,omitempty"`

	// Digest is the hex BLAKE3-256 of entities.bin.
	Digest string `json:"digest,omitempty"`
}

func digest(data []byte) string {
	sum := blake3.Sum256(data)
	return hex.EncodeToString(sum[:])
}

func readManifest(path string) (Manifest, error) {
	var manifest Manifest
	data, err := os.ReadFile(path)
	if errors.Is(err, fs.ErrNotExist) {
		return manifest, vaulterr.New(vaulterr.ErrSerialization, "bundle has no %s", ManifestName)
	}
	if err != nil {
		return manifest, vaulterr.Wrap(vaulterr.ErrIO, err, "reading %s", path)
	}
	if err := json.Unmarshal(data, &manifest); err != nil {
		return manifest, vaulterr.Wrap(vaulterr.ErrSerialization, err, "parsing %s", ManifestName)
	}
	return manifest, nil
}
