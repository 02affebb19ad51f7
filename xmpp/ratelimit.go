// Copyright 2026 The Warbler Authors
// SPDX-License-Identifier: Apache-2.0

package xmpp

import (
	"time"

	"github.com/warbler-im/warbler/lib/clock"
)

const (
	rateLimitWindow = 60 * time.Second
	rateLimitMax    = 10
)

// rateLimiter admits at most rateLimitMax commands per identity per
// window. Entries are created lazily and live for the process
// lifetime; the dispatch goroutine is the only caller, so no locking.
type rateLimiter struct {
	clock   clock.Clock
	windows map[string]*rateWindow
}

type rateWindow struct {
	count int
	start time.Time
}

func newRateLimiter(timeSource clock.Clock) *rateLimiter {
	return &rateLimiter{
		clock:   timeSource,
		windows: make(map[string]*rateWindow),
	}
}

// allow admits or rejects one command from the identity. Callers pass
// the normalized key: the bare address in direct chat, the occupant
// address in a room. The window resets once its full length has
// elapsed.
func (l *rateLimiter) allow(key string) bool {
	now := l.clock.Now()

	window, ok := l.windows[key]
	if !ok || now.Sub(window.start) >= rateLimitWindow {
		l.windows[key] = &rateWindow{count: 1, start: now}
		return true
	}
	if window.count >= rateLimitMax {
		return false
	}
	window.count++
	return true
}
