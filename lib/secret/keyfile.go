// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package secret

import (
	"bytes"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"

	"github.com/bureau-foundation/examvault/lib/atomicfile"
)

// ReadKeyFile reads a key of exactly size bytes from path. The file
// holds either the raw key bytes or their hex encoding (2*size hex
// characters, surrounding whitespace ignored). Heap copies are zeroed
// before returning.
func ReadKeyFile(path string, size int) (*Buffer, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading key file: %w", err)
	}
	defer Zero(data)

	if len(data) == size {
		return NewFromBytes(data)
	}

	trimmed := bytes.TrimSpace(data)
	if len(trimmed) != 2*size {
		return nil, fmt.Errorf("key file %s holds %d bytes, want %d raw bytes or %d hex characters",
			path, len(data), size, 2*size)
	}
	decoded := make([]byte, size)
	if _, err := hex.Decode(decoded, trimmed); err != nil {
		Zero(decoded)
		return nil, fmt.Errorf("key file %s is not valid hex", path)
	}
	return NewFromBytes(decoded)
}

// WriteKeyFile writes key to path as hex followed by a newline, with
// mode 0600. It refuses to replace an existing file: losing a master
// key makes every object sealed under it unreadable.
func WriteKeyFile(path string, key *Buffer) error {
	if _, err := os.Lstat(path); err == nil {
		return fmt.Errorf("key file %s: %w", path, fs.ErrExist)
	} else if !errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("checking key file: %w", err)
	}

	encoded := make([]byte, hex.EncodedLen(key.Len())+1)
	defer Zero(encoded)
	hex.Encode(encoded, key.Bytes())
	encoded[len(encoded)-1] = '\n'
	return atomicfile.WriteFunc(path, 0o600, func(w io.Writer) error {
		_, err := w.Write(encoded)
		return err
	})
}
