// Copyright 2026 The Warbler Authors
// SPDX-License-Identifier: Apache-2.0

// Package sqlitepool opens SQLite connection pools with the pragmas
// every warbler store expects: WAL journaling, a busy timeout, and
// foreign keys on. Stores layer their schema on top through the
// OnConnect hook.
package sqlitepool
