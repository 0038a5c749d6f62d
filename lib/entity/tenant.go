// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package entity

import (
	"encoding/json"
	"errors"
	"io/fs"
	"os"
	"path/filepath"

	"github.com/bureau-foundation/examvault/lib/atomicfile"
	"github.com/bureau-foundation/examvault/lib/objstore"
	"github.com/bureau-foundation/examvault/lib/vaulterr"
)

// TenantMetaFile is the name of the plaintext tenant metadata file
// inside each tenant directory.
const TenantMetaFile = "tenant.json"

// TenantMeta is the plaintext description of a tenant. UpdatedAt is
// the tenant's version: imports are accepted only from bundles with a
// strictly greater version.
type TenantMeta struct {
	ID        string `json:"id"`
	Name      string `json:"name"`
	CreatedAt int64  `json:"created_at"`
	UpdatedAt int64  `json:"updated_at"`
}

// TenantMetaPath returns the path of tenant's metadata file.
func TenantMetaPath(root, tenant string) string {
	return filepath.Join(root, tenant, TenantMetaFile)
}

// ReadTenantMeta reads tenant's metadata file. A missing file is
// ErrNotFound: the tenant does not exist.
func ReadTenantMeta(root, tenant string) (TenantMeta, error) {
	var meta TenantMeta
	if err := objstore.ValidateID(tenant); err != nil {
		return meta, err
	}
	path := TenantMetaPath(root, tenant)
	data, err := os.ReadFile(path)
	if errors.Is(err, fs.ErrNotExist) {
		return meta, vaulterr.New(vaulterr.ErrNotFound, "tenant %s", tenant)
	}
	if err != nil {
		return meta, vaulterr.Wrap(vaulterr.ErrIO, err, "reading %s", path)
	}
	if err := json.Unmarshal(data, &meta); err != nil {
		return meta, vaulterr.Wrap(vaulterr.ErrSerialization, err, "parsing %s", path)
	}
	return meta, nil
}

// WriteTenantMeta atomically replaces the metadata file of meta.ID.
func WriteTenantMeta(root string, meta TenantMeta) error {
	if err := objstore.ValidateID(meta.ID); err != nil {
		return err
	}
	data, err := json.MarshalIndent(meta, "", "  ")
	if err != nil {
		return vaulterr.Wrap(vaulterr.ErrSerialization, err, "encoding tenant %s metadata", meta.ID)
	}
	return atomicfile.Write(TenantMetaPath(root, meta.ID), append(data, '\n'), 0o644)
}
