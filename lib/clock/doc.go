// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// Package clock provides an injectable wall-clock source.
//
// Entity metadata is stamped in whole Unix seconds and those stamps
// decide last-writer-wins merges during import, so code that stamps
// metadata takes a [Clock] instead of calling time.Now. Production
// wiring uses [Real]; tests use [Fake] and move time explicitly.
package clock
