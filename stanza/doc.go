// Copyright 2026 The Warbler Authors
// SPDX-License-Identifier: Apache-2.0

// Package stanza defines the typed model for every protocol unit the
// session engine exchanges, and the codec between those types and raw
// XML frames.
//
// [Decode] classifies each inbound frame into a closed set of kinds —
// [*Presence], [*Message], [*IQ], the stream-negotiation frames
// ([*StreamOpen], [*StreamClose], [*StreamFeatures], SASL results),
// or [*Unknown] — before any business logic runs. Handlers therefore
// operate on typed values and never re-inspect raw XML. Extension
// payloads (MUC user status, stream initiation, in-band bytestreams,
// HTTP upload slots, vCard) are selected by their XML namespace during
// decode and surface as optional fields on the owning stanza type.
//
// Top-level stanza names are matched namespace-leniently (local name
// only): frames arrive from the server already scoped to the content
// namespace, and the extension elements that actually discriminate
// behavior are matched on their full namespace.
//
// Decode failures return errors; malformed input never panics.
package stanza
