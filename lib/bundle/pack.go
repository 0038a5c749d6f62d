// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package bundle

import (
	"context"
	"errors"
	"io"
	"io/fs"
	"os"
	"path"
	"path/filepath"
	"strings"

	"github.com/klauspost/compress/zip"

	"github.com/bureau-foundation/examvault/lib/atomicfile"
	"github.com/bureau-foundation/examvault/lib/vaulterr"
)

// Entry names one source to pack. Source may be a file or a
// directory; directories are walked recursively and their contents
// stored under Name.
type Entry struct {
	Source string
	Name   string
}

// storedExt lists extensions whose content is already compressed or
// encrypted and is stored without deflate.
var storedExt = map[string]bool{
	".bin": true,
	".png": true,
	".jpg": true,
	".zip": true,
}

// Pack writes a zip archive of entries to dest. The archive appears at
// dest only once it is complete; a failed Pack leaves any previous
// file at dest untouched.
func Pack(ctx context.Context, dest string, entries []Entry) error {
	return atomicfile.WriteFunc(dest, 0o644, func(w io.Writer) error {
		writer := zip.NewWriter(w)
		for _, entry := range entries {
			if err := ctx.Err(); err != nil {
				return vaulterr.Wrap(vaulterr.ErrIO, err, "packing %s", dest)
			}
			if err := addEntry(writer, entry); err != nil {
				return err
			}
		}
		if err := writer.Close(); err != nil {
			return vaulterr.Wrap(vaulterr.ErrIO, err, "finishing archive %s", dest)
		}
		return nil
	})
}

func addEntry(writer *zip.Writer, entry Entry) error {
	base := NormalizeName(entry.Name)
	info, err := os.Stat(entry.Source)
	if err != nil {
		return vaulterr.Wrap(vaulterr.ErrIO, err, "packing %s", entry.Source)
	}
	if !info.IsDir() {
		if base == "" {
			return vaulterr.New(vaulterr.ErrInvalid, "archive name %q of %s is empty", entry.Name, entry.Source)
		}
		return addFile(writer, entry.Source, base, info)
	}

	return filepath.WalkDir(entry.Source, func(current string, dirEntry fs.DirEntry, err error) error {
		if err != nil {
			return vaulterr.Wrap(vaulterr.ErrIO, err, "walking %s", current)
		}
		relative, err := filepath.Rel(entry.Source, current)
		if err != nil {
			return vaulterr.Wrap(vaulterr.ErrIO, err, "walking %s", current)
		}
		name := NormalizeName(path.Join(base, filepath.ToSlash(relative)))
		if name == "" {
			return nil
		}
		info, err := dirEntry.Info()
		if err != nil {
			return vaulterr.Wrap(vaulterr.ErrIO, err, "stat %s", current)
		}
		if dirEntry.IsDir() {
			header := &zip.FileHeader{Name: name + "/", Modified: info.ModTime()}
			header.SetMode(info.Mode())
			if _, err := writer.CreateHeader(header); err != nil {
				return vaulterr.Wrap(vaulterr.ErrIO, err, "adding %s", name)
			}
			return nil
		}
		if !info.Mode().IsRegular() {
			// Sockets, devices, and symlinks never belong in an
			// asset tree.
			return nil
		}
		return addFile(writer, current, name, info)
	})
}

func addFile(writer *zip.Writer, source, name string, info fs.FileInfo) error {
	header, err := zip.FileInfoHeader(info)
	if err != nil {
		return vaulterr.Wrap(vaulterr.ErrIO, err, "header for %s", source)
	}
	header.Name = name
	header.Method = zip.Deflate
	if storedExt[strings.ToLower(path.Ext(name))] {
		header.Method = zip.Store
	}
	destination, err := writer.CreateHeader(header)
	if err != nil {
		return vaulterr.Wrap(vaulterr.ErrIO, err, "adding %s", name)
	}
	file, err := os.Open(source)
	if err != nil {
		return vaulterr.Wrap(vaulterr.ErrIO, err, "opening %s", source)
	}
	defer file.Close()
	if _, err := io.Copy(destination, file); err != nil {
		return vaulterr.Wrap(vaulterr.ErrIO, err, "copying %s", source)
	}
	return nil
}

// Names returns the raw names of every entry in the archive at
// archivePath, in archive order.
func Names(archivePath string) ([]string, error) {
	reader, err := zip.OpenReader(archivePath)
	if reader == nil {
		return nil, archiveError(err, archivePath)
	}
	defer reader.Close()
	names := make([]string, 0, len(reader.File))
	for _, file := range reader.File {
		names = append(names, file.Name)
	}
	return names, nil
}

func archiveError(err error, archivePath string) error {
	if errors.Is(err, zip.ErrFormat) || errors.Is(err, zip.ErrChecksum) || errors.Is(err, zip.ErrAlgorithm) {
		return vaulterr.Wrap(vaulterr.ErrIO, err, "%s is not a valid bundle archive", archivePath)
	}
	return vaulterr.Wrap(vaulterr.ErrIO, err, "reading archive %s", archivePath)
}
