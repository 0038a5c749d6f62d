// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package vaulterr

import (
	"context"
	"errors"
	"fmt"
)

var (
	ErrNotFound      = errors.New("not found")
	ErrConflict      = errors.New("conflict")
	ErrCrypto        = errors.New("cryptographic failure")
	ErrSerialization = errors.New("serialization failure")
	ErrIO            = errors.New("i/o failure")
	ErrTypeMismatch  = errors.New("type mismatch")
	ErrInvalid       = errors.New("invalid identifier")

	// ErrInternal is the only error a non-actionable failure is
	// reported as outside the server process.
	ErrInternal = errors.New("internal error")
)

// Wrap annotates err with a message and tags it with kind. The result
// matches both kind and err under errors.Is. Returns nil if err is nil.
func Wrap(kind error, err error, format string, args ...any) error {
	if err == nil {
		return nil
	}
	return &tagged{
		kind:  kind,
		cause: err,
		msg:   fmt.Sprintf(format, args...),
	}
}

// New returns an error of the given kind with no further cause.
func New(kind error, format string, args ...any) error {
	return fmt.Errorf("%s: %w", fmt.Sprintf(format, args...), kind)
}

type tagged struct {
	kind  error
	cause error
	msg   string
}

func (e *tagged) Error() string {
	return e.msg + ": " + e.cause.Error()
}

func (e *tagged) Unwrap() []error {
	return []error{e.kind, e.cause}
}

var kinds = []error{
	ErrNotFound, ErrConflict, ErrCrypto, ErrSerialization, ErrIO, ErrTypeMismatch, ErrInvalid, ErrInternal,
}

// Kind returns the taxonomy sentinel err matches, or nil if it
// matches none.
func Kind(err error) error {
	if err == nil {
		return nil
	}
	for _, kind := range kinds {
		if errors.Is(err, kind) {
			return kind
		}
	}
	return nil
}

// Public maps err to what may be shown outside the process. Not-found,
// conflict, and invalid-identifier errors are returned unchanged;
// everything else becomes ErrInternal.
func Public(err error) error {
	switch {
	case err == nil:
		return nil
	case errors.Is(err, ErrNotFound), errors.Is(err, ErrConflict), errors.Is(err, ErrInvalid):
		return err
	default:
		return ErrInternal
	}
}

// Reason returns a short machine-readable key for err, prefixed with
// the operation name ("import.conflict", "export.cancelled"). The UI
// translates these keys; they never contain paths or key material.
func Reason(operation string, err error) string {
	switch {
	case err == nil:
		return operation + ".finished"
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		return operation + ".cancelled"
	case errors.Is(err, ErrNotFound):
		return operation + ".not_found"
	case errors.Is(err, ErrConflict):
		return operation + ".conflict"
	case errors.Is(err, ErrInvalid):
		return operation + ".invalid"
	case errors.Is(err, ErrCrypto):
		// Wrong master key or wrong passphrase is the common cause and
		// is actionable for an operator.
		return operation + ".crypto"
	default:
		return operation + ".internal"
	}
}
