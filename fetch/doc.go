// Copyright 2026 The Warbler Authors
// SPDX-License-Identifier: Apache-2.0

// Package fetch downloads message attachments referenced by URL into
// a local directory, with a hard size ceiling and sanitized local
// names.
package fetch
