// Copyright 2026 The Warbler Authors
// SPDX-License-Identifier: Apache-2.0

// Package jid provides a validated XMPP address value type.
//
// All code that handles addresses parses raw strings into [JID] at the
// boundary (stanza decode, configuration load) and passes the value
// type from there on. The bare/full distinction is explicit: [JID.Bare]
// strips the resource, which is the form used for every identity
// lookup, while the full form is kept only where the resource matters
// (room nicknames, reply routing decisions).
package jid
