// Copyright 2026 The Warbler Authors
// SPDX-License-Identifier: Apache-2.0

// Package xmpp is the session engine: one authenticated connection to
// the chat server, driven by a single dispatch goroutine that routes
// every inbound stanza to the room-membership tracker, the in-band
// transfer manager, the profile synchronizer, or the command router.
//
// The host application consumes the Session's public surface (send
// chat, join rooms, send files with automatic fallback) and drains
// Messages and Events. The engine holds all protocol state; the host
// supplies the contact registry, history sink, and file fetcher as
// narrow interfaces.
package xmpp
