// Copyright 2026 The Warbler Authors
// SPDX-License-Identifier: Apache-2.0

package xmpp

import (
	"fmt"
	"strings"

	"github.com/google/uuid"

	"github.com/warbler-im/warbler/lib/jid"
	"github.com/warbler-im/warbler/stanza"
)

// roomState names the membership state machine's positions. Status
// codes in room presence drive the transitions.
type roomState int

const (
	roomUnjoined roomState = iota
	roomJoining
	roomJoined
	roomPendingConfiguration
)

func (st roomState) String() string {
	switch st {
	case roomUnjoined:
		return "unjoined"
	case roomJoining:
		return "joining"
	case roomJoined:
		return "joined"
	case roomPendingConfiguration:
		return "pending-configuration"
	default:
		return fmt.Sprintf("roomState(%d)", int(st))
	}
}

type roomMembership struct {
	room  jid.JID
	nick  string
	state roomState
}

// resolveRoom qualifies a bare room name against the conference
// domain. Already-qualified addresses pass through unchanged, so
// resolution is idempotent.
func (s *Session) resolveRoom(room string) (jid.JID, error) {
	if room == "" {
		return jid.JID{}, fmt.Errorf("xmpp: room name is empty")
	}
	if !strings.Contains(room, "@") {
		room = room + "@" + s.conferenceDomain
	}
	parsed, err := jid.Parse(room)
	if err != nil {
		return jid.JID{}, fmt.Errorf("xmpp: resolving room %q: %w", room, err)
	}
	return parsed.Bare(), nil
}

// JoinRoom joins a room under the given nickname (the bot's default
// nickname when empty). Zero history is requested so backlog is never
// replayed as fresh traffic. Membership is confirmed asynchronously by
// the self-presence status code; until then the room is joining.
func (s *Session) JoinRoom(room, nick string) error {
	roomJID, err := s.resolveRoom(room)
	if err != nil {
		return err
	}
	if nick == "" {
		nick = s.nick
	}

	s.stateMu.Lock()
	if membership, ok := s.rooms[roomJID.String()]; ok && membership.state != roomUnjoined {
		s.stateMu.Unlock()
		return nil
	}
	s.rooms[roomJID.String()] = &roomMembership{room: roomJID, nick: nick, state: roomJoining}
	s.stateMu.Unlock()

	join := &stanza.Presence{
		To: roomJID.WithResource(nick),
		MUCJoin: &stanza.MUCJoin{
			History: &stanza.MUCHistory{MaxStanzas: 0},
		},
	}
	if err := s.send(join); err != nil {
		s.stateMu.Lock()
		delete(s.rooms, roomJID.String())
		s.stateMu.Unlock()
		return fmt.Errorf("xmpp: joining %s: %w", roomJID, err)
	}
	return nil
}

// LeaveRoom leaves a room. Best effort: local membership is cleared
// even when sending the unavailable presence fails.
func (s *Session) LeaveRoom(room string) error {
	roomJID, err := s.resolveRoom(room)
	if err != nil {
		return err
	}

	s.stateMu.Lock()
	membership, ok := s.rooms[roomJID.String()]
	if ok {
		delete(s.rooms, roomJID.String())
	}
	s.stateMu.Unlock()
	if !ok {
		return fmt.Errorf("xmpp: not in room %s", roomJID)
	}

	leave := &stanza.Presence{
		To:   roomJID.WithResource(membership.nick),
		Type: stanza.PresenceUnavailable,
	}
	if err := s.send(leave); err != nil {
		s.logger.Warn("leave presence failed, membership cleared anyway",
			"room", roomJID.String(), "error", err)
	}
	return nil
}

// JoinedRooms lists rooms whose membership has been confirmed.
func (s *Session) JoinedRooms() []RoomInfo {
	s.stateMu.Lock()
	defer s.stateMu.Unlock()
	rooms := make([]RoomInfo, 0, len(s.rooms))
	for _, membership := range s.rooms {
		if membership.state == roomJoined || membership.state == roomPendingConfiguration {
			rooms = append(rooms, RoomInfo{Room: membership.room, Nick: membership.nick})
		}
	}
	return rooms
}

// InRoom reports whether membership in the room is confirmed.
func (s *Session) InRoom(room string) bool {
	roomJID, err := s.resolveRoom(room)
	if err != nil {
		return false
	}
	s.stateMu.Lock()
	defer s.stateMu.Unlock()
	membership, ok := s.rooms[roomJID.String()]
	return ok && (membership.state == roomJoined || membership.state == roomPendingConfiguration)
}

// ownNick returns our nickname in the room, or "" if not a member.
func (s *Session) ownNick(room jid.JID) string {
	s.stateMu.Lock()
	defer s.stateMu.Unlock()
	if membership, ok := s.rooms[room.Bare().String()]; ok {
		return membership.nick
	}
	return ""
}

// handlePresenceError clears a pending join refused by the room
// (nickname conflict, registration required, ban). The entry must not
// stay in the joining state or every later attempt would be treated
// as already in progress and skipped.
func (s *Session) handlePresenceError(presence *stanza.Presence) {
	key := presence.From.Bare().String()

	s.stateMu.Lock()
	membership, ok := s.rooms[key]
	if !ok || membership.state != roomJoining {
		s.stateMu.Unlock()
		return
	}
	delete(s.rooms, key)
	s.stateMu.Unlock()

	condition := stanza.Condition("")
	if presence.Error != nil {
		condition = presence.Error.Condition
	}
	s.logger.Warn("room refused join",
		"room", key, "nick", membership.nick, "condition", string(condition))
}

// handleRoomPresence advances the room state machine on status codes
// carried in the room's presence about us.
func (s *Session) handleRoomPresence(presence *stanza.Presence) {
	if !presence.MUCUser.HasStatus(stanza.MUCStatusSelfPresence) {
		return
	}
	roomJID := presence.From.Bare()
	key := roomJID.String()

	s.stateMu.Lock()
	membership, ok := s.rooms[key]
	if !ok {
		// Self-presence for a room we never asked to join: the server
		// considers us a member, so track it.
		membership = &roomMembership{room: roomJID, nick: presence.From.Resource(), state: roomJoining}
		s.rooms[key] = membership
	}

	if presence.Type == stanza.PresenceUnavailable {
		delete(s.rooms, key)
		s.stateMu.Unlock()
		s.logger.Info("removed from room", "room", key)
		return
	}

	needsConfig := presence.MUCUser.HasStatus(stanza.MUCStatusRoomCreated) ||
		presence.MUCUser.HasStatus(stanza.MUCStatusNeedsConfiguration)
	if needsConfig {
		membership.state = roomPendingConfiguration
	} else {
		membership.state = roomJoined
	}
	if nick := presence.From.Resource(); nick != "" {
		membership.nick = nick
	}
	state := membership.state.String()
	s.stateMu.Unlock()

	s.logger.Info("room membership confirmed", "room", key, "state", state)
	if needsConfig {
		s.requestRoomConfig(roomJID)
	}
}

// requestRoomConfig asks the room for its configuration form. The
// response is claimed by ID in claimConfigForm rather than awaited, so
// dispatch never blocks on the room's answer.
func (s *Session) requestRoomConfig(room jid.JID) {
	request := &stanza.IQ{
		Type:     stanza.IQGet,
		ID:       uuid.NewString(),
		To:       room,
		MUCOwner: &stanza.MUCOwnerQuery{},
	}

	s.stateMu.Lock()
	s.pendingConfig[request.ID] = room.String()
	s.stateMu.Unlock()

	if err := s.send(request); err != nil {
		s.stateMu.Lock()
		delete(s.pendingConfig, request.ID)
		s.stateMu.Unlock()
		s.logger.Error("requesting room configuration failed",
			"room", room.String(), "error", err)
	}
}

// claimConfigForm handles configuration-form responses: it submits an
// empty default-accepting form and clears the pending flag. Reports
// whether the IQ belonged to a configuration request.
func (s *Session) claimConfigForm(iq *stanza.IQ) bool {
	s.stateMu.Lock()
	key, ok := s.pendingConfig[iq.ID]
	if ok {
		delete(s.pendingConfig, iq.ID)
	}
	s.stateMu.Unlock()
	if !ok {
		return false
	}

	if iq.Type == stanza.IQError {
		s.logger.Error("room configuration form unavailable",
			"room", key, "error", iq.Error)
		return true
	}

	room, err := jid.Parse(key)
	if err != nil {
		return true
	}
	submit := &stanza.IQ{
		Type: stanza.IQSet,
		ID:   uuid.NewString(),
		To:   room,
		MUCOwner: &stanza.MUCOwnerQuery{
			Form: &stanza.Form{Type: "submit"},
		},
	}
	if err := s.send(submit); err != nil {
		s.logger.Error("submitting room configuration failed",
			"room", key, "error", err)
		return true
	}

	s.stateMu.Lock()
	if membership, ok := s.rooms[key]; ok && membership.state == roomPendingConfiguration {
		membership.state = roomJoined
	}
	s.stateMu.Unlock()
	s.logger.Info("room configured with defaults", "room", key)
	return true
}
