// Copyright 2026 The Warbler Authors
// SPDX-License-Identifier: Apache-2.0

package xmpp

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/warbler-im/warbler/lib/clock"
	"github.com/warbler-im/warbler/lib/jid"
	"github.com/warbler-im/warbler/observe"
	"github.com/warbler-im/warbler/stanza"
)

// Registry is the contact/admin lookup the engine consults. Every JID
// passed in is already normalized to its bare form. Implementations
// must be safe for concurrent use (lookups happen on the dispatch
// goroutine, mutations on command goroutines).
type Registry interface {
	// Exists reports whether the identity is a known contact.
	Exists(identity jid.JID) bool

	// IsAdmin reports whether the identity is an administrator.
	IsAdmin(identity jid.JID) bool

	// Add records the identity as a contact. Adding an existing
	// contact is a no-op.
	Add(identity jid.JID) error

	// Remove deletes the identity. Removing an unknown identity is a
	// no-op.
	Remove(identity jid.JID) error

	// ListContacts returns all known contact identities.
	ListContacts() ([]jid.JID, error)

	// ListAdmins returns all administrator identities.
	ListAdmins() ([]jid.JID, error)
}

// HistorySink receives an append-only record of exchanged messages.
// Append is fire-and-forget from the engine's point of view: errors
// are logged by the implementation, never surfaced to dispatch.
type HistorySink interface {
	Append(entry HistoryEntry)
}

// HistoryEntry is one recorded message exchange.
type HistoryEntry struct {
	Identity  jid.JID   // bare peer or room
	Direction string    // "in" or "out"
	Body      string
	At        time.Time
}

// Fetcher retrieves an out-of-band URL to a bounded-size local file.
// Failures must not block message delivery — the dispatcher forwards
// the message with the URL as metadata when Download fails.
type Fetcher interface {
	Download(ctx context.Context, rawURL string) (localPath string, err error)
}

// IncomingMessage is what the engine forwards to the host application
// for ordinary (non-command) text and for commands delegated to the
// host. Delivery is fire-and-forget over a bounded queue.
type IncomingMessage struct {
	// Sender is the full sender address: the peer's full JID in
	// direct chat, room/nick in group chat.
	Sender jid.JID

	// Text is the message body.
	Text string

	// Groupchat marks group context; Room and Nick are set iff true.
	Groupchat bool
	Room      jid.JID
	Nick      string

	// AttachmentURL is the out-of-band URL attached to the message,
	// if any. AttachmentPath is the retrieved local copy; empty when
	// retrieval failed or was not attempted.
	AttachmentURL  string
	AttachmentPath string

	// Image carries the image-generation sub-protocol request parsed
	// from an /image command, nil otherwise.
	Image *ImageRequest
}

// ImageRequest is the image-generation/sharing sub-protocol payload.
// Generation itself is the host's concern; the engine only parses the
// request and routes the result address.
type ImageRequest struct {
	// Prompt is the free-text generation request.
	Prompt string

	// Share requests that the result be posted back where the command
	// was issued: ReplyTo is the room in group context, the requester
	// otherwise.
	Share   bool
	ReplyTo jid.JID
}

// EventKind classifies session lifecycle events.
type EventKind int

const (
	// EventOnline fires once authentication and resource binding
	// complete and the availability announcement has been sent.
	EventOnline EventKind = iota
	// EventOffline fires when the connection ends, cleanly or not.
	EventOffline
	// EventError fires for connection-level failures. The session is
	// not retried automatically; reconnecting is the host's decision.
	EventError
)

func (k EventKind) String() string {
	switch k {
	case EventOnline:
		return "online"
	case EventOffline:
		return "offline"
	case EventError:
		return "error"
	default:
		return "unknown"
	}
}

// Event is one lifecycle transition. Err is set for EventError and for
// an EventOffline caused by a transport failure.
type Event struct {
	Kind EventKind
	Err  error
}

// RoomInfo describes one joined room.
type RoomInfo struct {
	Room jid.JID
	Nick string
}

// Config holds the session engine's collaborators and tuning. Address
// and Registry are required; everything else has defaults.
type Config struct {
	// Address is the bot account's bare JID.
	Address jid.JID

	// Nick is the default room nickname. Defaults to the address
	// localpart.
	Nick string

	// ConferenceDomain resolves bare room names (e.g. "lobby") to
	// full room addresses. Defaults to "conference." + account domain.
	ConferenceDomain string

	// UploadService is the HTTP-upload component address. Defaults to
	// "upload." + account domain.
	UploadService jid.JID

	// DownloadDir receives finalized file transfers and fetched
	// attachments. Defaults to the OS temp directory.
	DownloadDir string

	// Profile is the locally-held profile record published on login.
	Profile stanza.VCard

	// Registry is the contact/admin registry. Required.
	Registry Registry

	// History receives exchanged messages. Nil disables recording.
	History HistorySink

	// Fetcher retrieves out-of-band URLs. Nil disables retrieval (the
	// URL still travels as metadata).
	Fetcher Fetcher

	// Logger is used for structured logging. Nil means slog.Default().
	Logger *slog.Logger

	// Clock drives rate limiting and IQ deadlines. Nil means Real().
	Clock clock.Clock

	// Metrics receives flow counters. Nil disables instrumentation.
	Metrics *observe.Metrics

	// HTTPClient performs slot uploads. Nil means http.DefaultClient.
	HTTPClient *http.Client

	// IQTimeout bounds correlated query waits. Defaults to 10s.
	IQTimeout time.Duration

	// MessageBuffer is the host queue capacity. Defaults to 64.
	MessageBuffer int
}
