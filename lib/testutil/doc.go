// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// Package testutil provides shared test helpers for examvault
// packages.
//
// [RequireReceive] wraps the select-with-timeout pattern so tests never
// hang on a channel that is never written. [WriteFile], [ReadFile] and
// [Snapshot] build and compare store and bundle directory trees. [Ring]
// builds a tenant key ring over a deterministic master key so that two
// stores created in one test can read each other's files.
//
// All helpers call t.Fatalf on failure; setup failures are not
// recoverable.
package testutil
