// Copyright 2026 The Warbler Authors
// SPDX-License-Identifier: Apache-2.0

package xmpp

import (
	"regexp"
	"strings"

	"github.com/warbler-im/warbler/lib/jid"
	"github.com/warbler-im/warbler/stanza"
)

// readLoop is the dispatch goroutine: it reads inbound frames until
// the transport fails or the session closes, and routes each decoded
// stanza. A failure handling one stanza is logged and never takes the
// loop down.
func (s *Session) readLoop() {
	for {
		frame, err := s.transport.ReadFrame(s.ctx)
		if err != nil {
			select {
			case <-s.done:
				return
			default:
			}
			s.logger.Error("transport read failed", "error", err)
			s.emit(Event{Kind: EventError, Err: err})
			s.Close()
			return
		}

		decoded, err := stanza.Decode(frame)
		if err != nil {
			s.metrics.CountHandlerError()
			s.logger.Warn("dropping malformed frame", "error", err)
			continue
		}
		s.dispatch(decoded)
	}
}

func (s *Session) dispatch(decoded stanza.Stanza) {
	defer func() {
		if recovered := recover(); recovered != nil {
			s.metrics.CountHandlerError()
			s.logger.Error("stanza handler panicked", "panic", recovered)
		}
	}()

	switch value := decoded.(type) {
	case *stanza.Presence:
		s.metrics.CountStanza("presence")
		s.handlePresence(value)
	case *stanza.Message:
		s.metrics.CountStanza("message")
		s.handleMessage(value)
	case *stanza.IQ:
		s.metrics.CountStanza("iq")
		s.handleIQ(value)
	case *stanza.StreamClose:
		s.logger.Info("server closed the stream")
		s.Close()
	default:
		s.metrics.CountStanza("other")
	}
}

// handlePresence routes subscription traffic and room status codes.
func (s *Session) handlePresence(presence *stanza.Presence) {
	switch presence.Type {
	case stanza.PresenceSubscribe:
		// Subscription approval is an administrative decision; the
		// request is recorded, never auto-answered.
		s.logger.Info("subscription requested, awaiting admin approval",
			"from", presence.From.Bare().String(),
		)
		return
	case stanza.PresenceSubscribed:
		sender := presence.From.Bare()
		if !s.registry.Exists(sender) {
			if err := s.registry.Add(sender); err != nil {
				s.logger.Error("adding confirmed contact failed",
					"identity", sender.String(), "error", err)
			}
		}
		return
	case stanza.PresenceProbe:
		if err := s.send(&stanza.Presence{To: presence.From}); err != nil {
			s.logger.Warn("probe reply failed", "error", err)
		}
		return
	case stanza.PresenceError:
		s.handlePresenceError(presence)
		return
	}

	if presence.MUCUser != nil {
		s.handleRoomPresence(presence)
	}
}

// handleMessage detects invitations, attachments, and commands, and
// forwards ordinary text to the host.
func (s *Session) handleMessage(message *stanza.Message) {
	if room, ok := s.detectInvite(message); ok {
		s.logger.Info("accepting room invitation",
			"room", room.String(), "from", message.From.Bare().String())
		if err := s.JoinRoom(room.String(), ""); err != nil {
			s.logger.Error("joining invited room failed",
				"room", room.String(), "error", err)
		}
		return
	}

	if message.Body == "" && message.OOB == nil {
		return
	}

	groupchat := message.Type == stanza.MessageGroupchat
	if groupchat {
		// Backlog replay is requested off at join, but servers may
		// still deliver delayed traffic; never reprocess it.
		if message.Delay != nil {
			return
		}
		room := message.From.Bare()
		if s.ownNick(room) == message.From.Resource() {
			return
		}
	}

	if strings.HasPrefix(message.Body, commandMarker) {
		s.handleCommand(message, groupchat)
		return
	}

	incoming := IncomingMessage{
		Sender:    message.From,
		Text:      message.Body,
		Groupchat: groupchat,
	}
	if groupchat {
		incoming.Room = message.From.Bare()
		incoming.Nick = message.From.Resource()
	} else if !s.registry.Exists(message.From.Bare()) {
		// Direct chat from strangers is not forwarded.
		return
	}

	if message.OOB != nil && message.OOB.URL != "" {
		incoming.AttachmentURL = message.OOB.URL
		s.record(message.From.Bare(), "in", message.Body)
		// Retrieval is best effort: the text is forwarded either way,
		// with the URL as metadata, and must not stall dispatch.
		go s.fetchAttachment(incoming)
		return
	}

	s.record(message.From.Bare(), "in", message.Body)
	s.forward(incoming)
}

// fetchAttachment downloads an out-of-band reference and forwards the
// message with the local path attached, or without it on failure.
func (s *Session) fetchAttachment(incoming IncomingMessage) {
	if s.fetcher != nil {
		localPath, err := s.fetcher.Download(s.ctx, incoming.AttachmentURL)
		if err != nil {
			s.logger.Warn("attachment retrieval failed",
				"url", incoming.AttachmentURL, "error", err)
		} else {
			incoming.AttachmentPath = localPath
		}
	}
	s.forward(incoming)
}

// handleIQ routes request IQs by embedded extension and hands
// responses to their waiting requests.
func (s *Session) handleIQ(iq *stanza.IQ) {
	switch iq.Type {
	case stanza.IQResult, stanza.IQError:
		if s.claimConfigForm(iq) {
			return
		}
		if !s.deliverResponse(iq) {
			s.logger.Debug("dropping unclaimed response", "id", iq.ID)
		}
		return
	}

	switch {
	case iq.SI != nil:
		s.handleTransferOffer(iq)
	case iq.IBBOpen != nil:
		s.handleTransferOpen(iq)
	case iq.IBBData != nil:
		s.handleTransferData(iq)
	case iq.IBBClose != nil:
		s.handleTransferClose(iq)
	case iq.VCard != nil && iq.Type == stanza.IQGet:
		s.handleProfileQuery(iq)
	case iq.DiscoInfo != nil && iq.Type == stanza.IQGet:
		s.handleDiscoInfo(iq)
	default:
		// Unrecognized request IQs are ignored.
		s.logger.Debug("ignoring unrecognized query",
			"type", iq.Type, "from", iq.From.String())
	}
}

// handleDiscoInfo answers service-discovery queries with the bot's
// identity and supported features.
func (s *Session) handleDiscoInfo(iq *stanza.IQ) {
	reply := iq.Result()
	reply.DiscoInfo = &stanza.DiscoInfo{
		Identities: []stanza.DiscoIdentity{
			{Category: "client", Type: "bot", Name: s.nick},
		},
		Features: []stanza.DiscoFeature{
			{Var: "http://jabber.org/protocol/disco#info"},
			{Var: "http://jabber.org/protocol/muc"},
			{Var: "http://jabber.org/protocol/si"},
			{Var: "http://jabber.org/protocol/si/profile/file-transfer"},
			{Var: stanza.NamespaceIBB},
			{Var: "vcard-temp"},
		},
	}
	if err := s.send(reply); err != nil {
		s.logger.Warn("discovery reply failed", "error", err)
	}
}

// legacyInvitePattern matches the historical invitation form where
// conference markup is embedded verbatim in a message body. Best
// effort only: the structured forms are authoritative.
var legacyInvitePattern = regexp.MustCompile(`<x xmlns=['"]jabber:x:conference['"] jid=['"]([^'"]+)['"]`)

// detectInvite recognizes the three invitation shapes: the
// membership-extension mediated invite, the direct conference invite,
// and the legacy literal-markup form.
func (s *Session) detectInvite(message *stanza.Message) (jid.JID, bool) {
	if message.MUCUser != nil && len(message.MUCUser.Invites) > 0 {
		// Mediated invites arrive from the room itself.
		return message.From.Bare(), true
	}
	if message.Conference != nil && !message.Conference.JID.IsZero() {
		return message.Conference.JID.Bare(), true
	}
	if match := legacyInvitePattern.FindStringSubmatch(message.Body); match != nil {
		room, err := jid.Parse(match[1])
		if err != nil {
			return jid.JID{}, false
		}
		return room.Bare(), true
	}
	return jid.JID{}, false
}
