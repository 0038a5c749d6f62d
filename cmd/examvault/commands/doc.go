// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// Package commands assembles the examvault command tree.
//
// Every subcommand loads the configuration, reads the master key,
// builds the store, catalog and exchange service, runs, and then
// waits for detached exchange work, flushes pending store writes and
// releases the master key before returning.
package commands
