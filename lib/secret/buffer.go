// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package secret

import (
	"crypto/rand"
	"errors"
	"fmt"
	"sync"

	"golang.org/x/sys/unix"
)

// Buffer is a fixed-size secret held in an anonymous mapping that is
// locked into RAM and excluded from core dumps. A Buffer must not be
// copied after creation.
type Buffer struct {
	mu     sync.RWMutex
	region []byte // nil after Close
	size   int
}

// New allocates a zero-filled buffer of size bytes. The caller must
// Close it.
func New(size int) (*Buffer, error) {
	if size <= 0 {
		return nil, fmt.Errorf("secret: buffer size must be positive, got %d", size)
	}
	region, err := lockedRegion(size)
	if err != nil {
		return nil, err
	}
	return &Buffer{region: region, size: size}, nil
}

// lockedRegion maps size bytes outside the Go heap, locks them against
// swapping and marks them non-dumpable.
func lockedRegion(size int) ([]byte, error) {
	region, err := unix.Mmap(-1, 0, size, unix.PROT_READ|unix.PROT_WRITE, unix.MAP_PRIVATE|unix.MAP_ANONYMOUS)
	if err != nil {
		return nil, fmt.Errorf("secret: mapping %d bytes: %w", size, err)
	}
	protections := []struct {
		name  string
		apply func([]byte) error
	}{
		{"mlock", unix.Mlock},
		{"madvise(MADV_DONTDUMP)", func(b []byte) error { return unix.Madvise(b, unix.MADV_DONTDUMP) }},
	}
	for _, protection := range protections {
		if err := protection.apply(region); err != nil {
			unix.Munlock(region)
			unix.Munmap(region)
			return nil, fmt.Errorf("secret: %s: %w", protection.name, err)
		}
	}
	return region, nil
}

// Generate returns a buffer of size bytes read from crypto/rand.
func Generate(size int) (*Buffer, error) {
	buffer, err := New(size)
	if err != nil {
		return nil, err
	}
	if _, err := rand.Read(buffer.region); err != nil {
		buffer.Close()
		return nil, fmt.Errorf("secret: reading random bytes: %w", err)
	}
	return buffer, nil
}

// NewFromBytes moves source into a new Buffer: the bytes are copied
// into the locked region and source is zeroed, also on failure.
func NewFromBytes(source []byte) (*Buffer, error) {
	defer Zero(source)
	if len(source) == 0 {
		return nil, fmt.Errorf("secret: cannot create buffer from empty source")
	}
	buffer, err := New(len(source))
	if err != nil {
		return nil, err
	}
	copy(buffer.region, source)
	return buffer, nil
}

// Bytes returns the secret. The slice aliases the locked region and
// must not be retained past Close. Panics after Close.
func (b *Buffer) Bytes() []byte {
	b.mu.RLock()
	defer b.mu.RUnlock()
	if b.region == nil {
		panic("secret: read from closed buffer")
	}
	return b.region
}

// Len returns the size of the secret in bytes, also after Close.
func (b *Buffer) Len() int {
	return b.size
}

// Close zeroes, unlocks and unmaps the region. Idempotent.
func (b *Buffer) Close() error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.region == nil {
		return nil
	}
	region := b.region
	b.region = nil
	Zero(region)

	var errs []error
	if err := unix.Munlock(region); err != nil {
		errs = append(errs, fmt.Errorf("secret: munlock: %w", err))
	}
	if err := unix.Munmap(region); err != nil {
		errs = append(errs, fmt.Errorf("secret: munmap: %w", err))
	}
	return errors.Join(errs...)
}

// Zero overwrites data with zeros.
func Zero(data []byte) {
	clear(data)
}
