// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// Package atomicfile replaces files so that readers only ever observe
// the complete old content or the complete new content.
//
// [Write] creates the parent directory, writes a sibling temporary
// file, fsyncs it, renames it over the destination, and then fsyncs
// the containing directory on a best-effort basis. The temporary file
// lives in the destination's directory so the rename never crosses a
// filesystem.
package atomicfile

import (
	"errors"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"runtime"

	"github.com/bureau-foundation/examvault/lib/vaulterr"
)

// tempPattern names temporary files. Directory scans skip names with
// this prefix.
const tempPattern = ".tmp-*"

// IsTemp reports whether name is a temporary file left by Write.
func IsTemp(name string) bool {
	matched, _ := filepath.Match(tempPattern, name)
	return matched
}

// Write atomically replaces path with data. On failure the destination
// is untouched and the temporary file is removed. Errors wrap
// vaulterr.ErrIO.
func Write(path string, data []byte, perm fs.FileMode) error {
	return WriteFunc(path, perm, func(w io.Writer) error {
		_, err := w.Write(data)
		return err
	})
}

// WriteFunc atomically replaces path with whatever fill writes. If fill
// fails the destination is untouched and fill's error is returned as
// is when it already carries a vaulterr kind.
func WriteFunc(path string, perm fs.FileMode, fill func(w io.Writer) error) error {
	directory := filepath.Dir(path)
	if err := os.MkdirAll(directory, 0o755); err != nil {
		return vaulterr.Wrap(vaulterr.ErrIO, err, "creating directory %s", directory)
	}

	tmpFile, err := os.CreateTemp(directory, tempPattern)
	if err != nil {
		return vaulterr.Wrap(vaulterr.ErrIO, err, "creating temporary file in %s", directory)
	}
	tmpPath := tmpFile.Name()

	success := false
	defer func() {
		if !success {
			os.Remove(tmpPath)
		}
	}()

	if err := fill(tmpFile); err != nil {
		tmpFile.Close()
		if vaulterr.Kind(err) != nil {
			return err
		}
		return vaulterr.Wrap(vaulterr.ErrIO, err, "writing %s", tmpPath)
	}
	if err := tmpFile.Chmod(perm); err != nil {
		tmpFile.Close()
		return vaulterr.Wrap(vaulterr.ErrIO, err, "setting mode on %s", tmpPath)
	}
	if err := tmpFile.Sync(); err != nil {
		tmpFile.Close()
		return vaulterr.Wrap(vaulterr.ErrIO, err, "syncing %s", tmpPath)
	}
	if err := tmpFile.Close(); err != nil {
		return vaulterr.Wrap(vaulterr.ErrIO, err, "closing %s", tmpPath)
	}

	if err := replace(tmpPath, path); err != nil {
		return vaulterr.Wrap(vaulterr.ErrIO, err, "renaming into %s", path)
	}
	success = true

	SyncDir(directory)
	return nil
}

// replace renames from over to. Where rename cannot replace an existing
// file, the destination is removed first; a crash between the two
// steps leaves no destination but a complete temporary file.
func replace(from, to string) error {
	err := os.Rename(from, to)
	if err == nil || runtime.GOOS != "windows" {
		return err
	}
	if removeErr := os.Remove(to); removeErr != nil && !errors.Is(removeErr, fs.ErrNotExist) {
		return err
	}
	return os.Rename(from, to)
}

// SyncDir fsyncs a directory so a completed rename survives a crash.
// Failures are ignored: not every platform or filesystem supports
// syncing directories.
func SyncDir(directory string) {
	handle, err := os.Open(directory)
	if err != nil {
		return
	}
	handle.Sync()
	handle.Close()
}
