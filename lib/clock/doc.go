// Copyright 2026 The Warbler Authors
// SPDX-License-Identifier: Apache-2.0

// Package clock abstracts wall-clock reads and timer waits so that
// time-dependent logic (command rate limiting, bounded IQ waits) is
// deterministic under test. Production code uses Real(); tests use
// Fake() and drive it with Advance.
package clock
