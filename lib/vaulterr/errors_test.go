// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package vaulterr

import (
	"context"
	"errors"
	"io/fs"
	"testing"
)

func TestWrapMatchesKindAndCause(t *testing.T) {
	err := Wrap(ErrIO, fs.ErrPermission, "writing %s", "/tmp/x")
	if !errors.Is(err, ErrIO) {
		t.Error("wrapped error does not match ErrIO")
	}
	if !errors.Is(err, fs.ErrPermission) {
		t.Error("wrapped error does not match its cause")
	}
	if errors.Is(err, ErrCrypto) {
		t.Error("wrapped error unexpectedly matches ErrCrypto")
	}
	if got, want := err.Error(), "writing /tmp/x: permission denied"; got != want {
		t.Errorf("Error() = %q, want %q", got, want)
	}
}

func TestWrapNil(t *testing.T) {
	if err := Wrap(ErrIO, nil, "nothing"); err != nil {
		t.Errorf("Wrap(nil) = %v, want nil", err)
	}
}

func TestPublic(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want error
	}{
		{"nil", nil, nil},
		{"not found passes through", New(ErrNotFound, "quiz q1"), ErrNotFound},
		{"conflict passes through", New(ErrConflict, "version 100"), ErrConflict},
		{"crypto is hidden", Wrap(ErrCrypto, errors.New("message authentication failed"), "opening"), ErrInternal},
		{"io is hidden", Wrap(ErrIO, fs.ErrPermission, "writing /secret/path"), ErrInternal},
	}
	for _, test := range tests {
		t.Run(test.name, func(t *testing.T) {
			got := Public(test.err)
			if test.want == nil {
				if got != nil {
					t.Fatalf("Public() = %v, want nil", got)
				}
				return
			}
			if !errors.Is(got, test.want) {
				t.Errorf("Public() = %v, want %v", got, test.want)
			}
			if test.want == ErrInternal && got != ErrInternal {
				t.Errorf("Public() leaked detail: %v", got)
			}
		})
	}
}

func TestReason(t *testing.T) {
	tests := []struct {
		err  error
		want string
	}{
		{nil, "import.finished"},
		{New(ErrNotFound, "x"), "import.not_found"},
		{New(ErrConflict, "x"), "import.conflict"},
		{New(ErrCrypto, "x"), "import.crypto"},
		{New(ErrInvalid, "x"), "import.invalid"},
		{New(ErrIO, "x"), "import.internal"},
		{errors.New("plain"), "import.internal"},
		{Wrap(ErrIO, context.Canceled, "import of a.zip cancelled"), "import.cancelled"},
		{context.DeadlineExceeded, "import.cancelled"},
	}
	for _, test := range tests {
		if got := Reason("import", test.err); got != test.want {
			t.Errorf("Reason(%v) = %q, want %q", test.err, got, test.want)
		}
	}
}

func TestKind(t *testing.T) {
	if Kind(nil) != nil {
		t.Error("Kind(nil) != nil")
	}
	if Kind(fs.ErrNotExist) != nil {
		t.Error("untagged error reported a kind")
	}
	if got := Kind(Wrap(ErrCrypto, errors.New("bad tag"), "opening")); got != ErrCrypto {
		t.Errorf("Kind = %v, want ErrCrypto", got)
	}
	if got := Kind(New(ErrConflict, "tenant %s", "a")); got != ErrConflict {
		t.Errorf("Kind = %v, want ErrConflict", got)
	}
}
