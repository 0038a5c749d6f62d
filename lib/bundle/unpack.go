// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package bundle

import (
	"context"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/klauspost/compress/zip"
	"golang.org/x/sync/errgroup"

	"github.com/bureau-foundation/examvault/lib/vaulterr"
)

// DefaultConcurrency bounds concurrent file extraction when
// UnpackOptions.Concurrency is unset.
const DefaultConcurrency = 8

// DefaultMaxBytes bounds the total uncompressed size of an archive
// when UnpackOptions.MaxBytes is unset.
const DefaultMaxBytes = 8 << 30

type UnpackOptions struct {
	// Concurrency bounds how many entries are extracted at once.
	Concurrency int

	// MaxBytes bounds the total declared uncompressed size of all
	// entries. Archives declaring more are rejected before anything
	// is written.
	MaxBytes int64
}

// Unpack extracts the zip archive at archivePath beneath dest. Entry
// names are reduced to their ordinary components, so no entry can be
// written outside dest. Entries whose name reduces to nothing are
// skipped. Errors wrap vaulterr.ErrIO; on error dest may hold a
// partial extraction and the caller is expected to discard it.
func Unpack(ctx context.Context, archivePath, dest string, options UnpackOptions) error {
	if options.Concurrency <= 0 {
		options.Concurrency = DefaultConcurrency
	}
	if options.MaxBytes <= 0 {
		options.MaxBytes = DefaultMaxBytes
	}

	// OpenReader returns a usable reader alongside an insecure-path
	// error; SafeJoin contains those names.
	reader, err := zip.OpenReader(archivePath)
	if reader == nil {
		return archiveError(err, archivePath)
	}
	defer reader.Close()

	var total uint64
	for _, file := range reader.File {
		total += file.UncompressedSize64
		if total > uint64(options.MaxBytes) {
			return vaulterr.New(vaulterr.ErrIO, "archive %s expands beyond %d bytes", archivePath, options.MaxBytes)
		}
	}

	if err := os.MkdirAll(dest, 0o755); err != nil {
		return vaulterr.Wrap(vaulterr.ErrIO, err, "creating %s", dest)
	}

	// Directories first so concurrent file extraction never races on
	// creating the same parent.
	var files []*zip.File
	for _, file := range reader.File {
		if NormalizeName(file.Name) == "" {
			continue
		}
		if isDirectory(file) {
			target := SafeJoin(dest, file.Name)
			if err := os.MkdirAll(target, 0o755); err != nil {
				return vaulterr.Wrap(vaulterr.ErrIO, err, "creating %s", target)
			}
			continue
		}
		files = append(files, file)
	}

	group, groupCtx := errgroup.WithContext(ctx)
	group.SetLimit(options.Concurrency)
	for _, file := range files {
		group.Go(func() error {
			if err := groupCtx.Err(); err != nil {
				return err
			}
			return extract(file, SafeJoin(dest, file.Name))
		})
	}
	if err := group.Wait(); err != nil {
		if vaulterr.Kind(err) == nil {
			return vaulterr.Wrap(vaulterr.ErrIO, err, "unpacking %s", archivePath)
		}
		return err
	}
	return nil
}

func isDirectory(file *zip.File) bool {
	return strings.HasSuffix(file.Name, "/") || strings.HasSuffix(file.Name, `\`) || file.FileInfo().IsDir()
}

func extract(file *zip.File, target string) error {
	if err := os.MkdirAll(filepath.Dir(target), 0o755); err != nil {
		return vaulterr.Wrap(vaulterr.ErrIO, err, "creating parent of %s", target)
	}
	source, err := file.Open()
	if err != nil {
		return vaulterr.Wrap(vaulterr.ErrIO, err, "opening entry %s", file.Name)
	}
	defer source.Close()

	output, err := os.OpenFile(target, os.O_WRONLY|os.O_CREATE|os.O_TRUNC, 0o644)
	if err != nil {
		return vaulterr.Wrap(vaulterr.ErrIO, err, "creating %s", target)
	}
	// The reader enforces the declared size and CRC; the limit guards
	// against a lying header on a stored entry.
	if _, err := io.Copy(output, io.LimitReader(source, int64(file.UncompressedSize64)+1)); err != nil {
		output.Close()
		return vaulterr.Wrap(vaulterr.ErrIO, err, "extracting %s", file.Name)
	}
	if err := output.Close(); err != nil {
		return vaulterr.Wrap(vaulterr.ErrIO, err, "closing %s", target)
	}
	return nil
}
