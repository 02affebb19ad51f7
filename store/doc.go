// Copyright 2026 The Warbler Authors
// SPDX-License-Identifier: Apache-2.0

// Package store persists the bot's contact/admin registry and the
// append-only message history in a single SQLite database. The
// session engine consults it through its Registry and HistorySink
// contracts; identities are normalized to bare form on every write
// and lookup.
package store
