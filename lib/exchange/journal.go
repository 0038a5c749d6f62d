// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package exchange

import (
	"errors"
	"io/fs"
	"os"
	"path/filepath"

	"github.com/fxamacker/cbor/v2"

	"github.com/bureau-foundation/examvault/lib/atomicfile"
	"github.com/bureau-foundation/examvault/lib/entity"
	"github.com/bureau-foundation/examvault/lib/vaulterr"
)

// journalName is the relocation journal inside an import's staging
// directory. Its presence means live content may be displaced.
const journalName = "journal.cbor"

// move relocates one staged payload file or asset directory into the
// live tree.
type move struct {
	// ID is the entity the move belongs to. Payload moves go through
	// the store so pending writes and cache entries are dropped.
	ID      string `cbor:"id"`
	Payload bool   `cbor:"payload"`

	Source string `cbor:"source"`
	Target string `cbor:"target"`

	// Backup receives the displaced live content. Empty when nothing
	// was live at Target when the move was planned.
	Backup string `cbor:"backup,omitempty"`
}

type journal struct {
	Tenant string `cbor:"tenant"`

	// Created records that the tenant did not exist before the
	// import; rolling back removes it.
	Created bool   `cbor:"created"`
	Moves   []move `cbor:"moves"`

	// Meta is the tenant's tenant.json as it was before the import.
	// Empty when Created.
	Meta []byte `cbor:"meta,omitempty"`

	// Previous holds the local index records the winners displace and
	// Added the winners new to the index. Rolling back restores the
	// index from them.
	Previous []entity.IndexRecord `cbor:"previous,omitempty"`
	Added    []string             `cbor:"added,omitempty"`
}

var journalEncoding cbor.EncMode

func init() {
	var err error
	journalEncoding, err = cbor.CoreDetEncOptions().EncMode()
	if err != nil {
		panic("exchange: CBOR encoder initialization failed: " + err.Error())
	}
}

func writeJournal(staging string, entry journal) error {
	data, err := journalEncoding.Marshal(entry)
	if err != nil {
		return vaulterr.Wrap(vaulterr.ErrSerialization, err, "encoding relocation journal")
	}
	return atomicfile.Write(filepath.Join(staging, journalName), data, 0o600)
}

// readJournal returns the journal of a staging directory. ok is false
// when the directory has none.
func readJournal(staging string) (entry journal, ok bool, err error) {
	path := filepath.Join(staging, journalName)
	data, err := os.ReadFile(path)
	if errors.Is(err, fs.ErrNotExist) {
		return entry, false, nil
	}
	if err != nil {
		return entry, false, vaulterr.Wrap(vaulterr.ErrIO, err, "reading %s", path)
	}
	if err := cbor.Unmarshal(data, &entry); err != nil {
		return entry, false, vaulterr.Wrap(vaulterr.ErrSerialization, err, "decoding %s", path)
	}
	return entry, true, nil
}

// retireJournal removes the journal, making the relocation final.
func retireJournal(staging string) error {
	path := filepath.Join(staging, journalName)
	if err := os.Remove(path); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return vaulterr.Wrap(vaulterr.ErrIO, err, "removing %s", path)
	}
	atomicfile.SyncDir(staging)
	return nil
}

func exists(path string) bool {
	_, err := os.Lstat(path)
	return err == nil
}
