// Copyright 2026 The Warbler Authors
// SPDX-License-Identifier: Apache-2.0

// Package secret provides a memory-safe buffer for the account
// password. The buffer is mmap-backed (outside the Go heap), locked
// against swap, excluded from core dumps where the kernel supports it,
// and zeroed on Close. The password is converted to a heap string only
// at the SASL serialization boundary.
package secret
