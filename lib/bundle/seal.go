// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package bundle

import (
	"bufio"
	"errors"
	"io"
	"os"

	"filippo.io/age"

	"github.com/bureau-foundation/examvault/lib/atomicfile"
	"github.com/bureau-foundation/examvault/lib/vaulterr"
)

// ageHeader is the first line of every age file.
const ageHeader = "age-encryption.org/"

// DefaultWorkFactor is the scrypt work factor (log2 N) used when
// sealing with a zero work factor.
const DefaultWorkFactor = 18

// IsSealed reports whether header, the first bytes of a bundle file,
// starts an age envelope.
func IsSealed(header []byte) bool {
	if len(header) < len(ageHeader) {
		return false
	}
	return string(header[:len(ageHeader)]) == ageHeader
}

// IsSealedFile reports whether the file at path is an age envelope.
func IsSealedFile(path string) (bool, error) {
	file, err := os.Open(path)
	if err != nil {
		return false, vaulterr.Wrap(vaulterr.ErrIO, err, "opening %s", path)
	}
	defer file.Close()
	header := make([]byte, len(ageHeader))
	n, err := io.ReadFull(file, header)
	if err != nil && !errors.Is(err, io.ErrUnexpectedEOF) && !errors.Is(err, io.EOF) {
		return false, vaulterr.Wrap(vaulterr.ErrIO, err, "reading %s", path)
	}
	return IsSealed(header[:n]), nil
}

// Seal encrypts the file at source to dest under passphrase. dest
// appears only once complete.
func Seal(source, dest, passphrase string, workFactor int) error {
	if passphrase == "" {
		return vaulterr.New(vaulterr.ErrInvalid, "empty passphrase")
	}
	recipient, err := age.NewScryptRecipient(passphrase)
	if err != nil {
		return vaulterr.Wrap(vaulterr.ErrCrypto, err, "creating scrypt recipient")
	}
	if workFactor <= 0 {
		workFactor = DefaultWorkFactor
	}
	recipient.SetWorkFactor(workFactor)

	input, err := os.Open(source)
	if err != nil {
		return vaulterr.Wrap(vaulterr.ErrIO, err, "opening %s", source)
	}
	defer input.Close()

	return atomicfile.WriteFunc(dest, 0o644, func(w io.Writer) error {
		buffered := bufio.NewWriter(w)
		writer, err := age.Encrypt(buffered, recipient)
		if err != nil {
			return vaulterr.Wrap(vaulterr.ErrCrypto, err, "creating age encryptor")
		}
		if _, err := io.Copy(writer, input); err != nil {
			return vaulterr.Wrap(vaulterr.ErrIO, err, "sealing %s", source)
		}
		if err := writer.Close(); err != nil {
			return vaulterr.Wrap(vaulterr.ErrCrypto, err, "finalizing age encryption")
		}
		return buffered.Flush()
	})
}

// Open decrypts the age envelope at source into dest. A wrong
// passphrase is ErrCrypto.
func Open(source, dest, passphrase string) error {
	identity, err := age.NewScryptIdentity(passphrase)
	if err != nil {
		return vaulterr.Wrap(vaulterr.ErrCrypto, err, "creating scrypt identity")
	}

	input, err := os.Open(source)
	if err != nil {
		return vaulterr.Wrap(vaulterr.ErrIO, err, "opening %s", source)
	}
	defer input.Close()

	reader, err := age.Decrypt(bufio.NewReader(input), identity)
	if err != nil {
		return vaulterr.Wrap(vaulterr.ErrCrypto, err, "decrypting %s", source)
	}
	return atomicfile.WriteFunc(dest, 0o600, func(w io.Writer) error {
		if _, err := io.Copy(w, reader); err != nil {
			// age authenticates each chunk as it is read.
			return vaulterr.Wrap(vaulterr.ErrCrypto, err, "decrypting %s", source)
		}
		return nil
	})
}
