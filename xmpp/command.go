// Copyright 2026 The Warbler Authors
// SPDX-License-Identifier: Apache-2.0

package xmpp

import (
	"context"
	"fmt"
	"sort"
	"strings"

	"github.com/warbler-im/warbler/lib/jid"
	"github.com/warbler-im/warbler/stanza"
)

// commandMarker prefixes command-bearing message text.
const commandMarker = "/"

const (
	replyThrottled      = "Too many commands. Slow down and try again in a minute."
	replyGroupForbidden = "That command is not available in groupchat."
	replyNotAdmin       = "You are not an administrator."
	replyFailure        = "Something went wrong executing that command."
)

// commandContext is one parsed invocation: routing metadata plus a
// reply sink addressed to the room (group) or the bare sender
// (direct), never the resource-qualified address.
type commandContext struct {
	name      string
	args      []string
	sender    jid.JID
	groupchat bool
	room      jid.JID
	nick      string
	reply     func(string)
}

// adminCommands are honored in direct chat only, after an admin
// lookup, and uniformly rejected in groupchat regardless of sender.
var adminCommands = map[string]bool{
	"contacts": true,
	"admins":   true,
	"join":     true,
	"leave":    true,
	"rooms":    true,
}

// groupAllowed is the only commands that run in groupchat. whoami is
// included so its room-context answer (occupant nickname and room) is
// reachable.
var groupAllowed = map[string]bool{
	"status": true,
	"whoami": true,
	"image":  true,
	"help":   true,
}

// handleCommand admits, authorizes, and dispatches one command
// message. Admission and policy run inline on the dispatch goroutine;
// the handler itself runs in its own goroutine so command-driven
// round trips never stall dispatch.
func (s *Session) handleCommand(message *stanza.Message, groupchat bool) {
	sender := message.From.Bare()
	limitKey := sender.String()
	cmd := commandContext{
		sender:    message.From,
		groupchat: groupchat,
	}
	if groupchat {
		cmd.room = message.From.Bare()
		cmd.nick = message.From.Resource()
		// The bare address in a room is the room itself; throttle per
		// occupant instead.
		limitKey = message.From.String()
		cmd.reply = func(text string) {
			if err := s.SendGroupchat(cmd.room.String(), text); err != nil {
				s.logger.Warn("command reply failed", "room", cmd.room.String(), "error", err)
			}
		}
	} else {
		cmd.reply = func(text string) {
			if err := s.SendChat(sender, text); err != nil {
				s.logger.Warn("command reply failed", "to", sender.String(), "error", err)
			}
		}
	}

	fields := strings.Fields(strings.TrimPrefix(message.Body, commandMarker))
	if len(fields) == 0 {
		return
	}
	cmd.name = strings.ToLower(fields[0])
	cmd.args = fields[1:]

	if !s.limiter.allow(limitKey) {
		s.metrics.CountCommandRejected("throttled")
		s.logger.Warn("command throttled", "from", limitKey, "command", cmd.name)
		cmd.reply(replyThrottled)
		return
	}

	if groupchat {
		if adminCommands[cmd.name] {
			s.metrics.CountCommandRejected("admin-in-group")
			cmd.reply(replyGroupForbidden)
			return
		}
		if !groupAllowed[cmd.name] {
			// Unlisted commands in groupchat are ignored, not answered,
			// to avoid noise in shared rooms.
			return
		}
	} else if adminCommands[cmd.name] && !s.registry.IsAdmin(message.From.Bare()) {
		s.metrics.CountCommandRejected("not-admin")
		s.logger.Warn("administrative command refused",
			"from", message.From.Bare().String(), "command", cmd.name)
		cmd.reply(replyNotAdmin)
		return
	}

	s.metrics.CountCommand(cmd.name)
	go s.runCommand(cmd)
}

// runCommand dispatches to the fixed command set. Handler errors and
// panics become a generic failure reply; they never reach the
// dispatch loop.
func (s *Session) runCommand(cmd commandContext) {
	defer func() {
		if recovered := recover(); recovered != nil {
			s.metrics.CountHandlerError()
			s.logger.Error("command handler panicked",
				"command", cmd.name, "panic", recovered)
			cmd.reply(replyFailure)
		}
	}()

	var err error
	switch cmd.name {
	case "help":
		s.cmdHelp(cmd)
	case "status":
		s.cmdStatus(cmd)
	case "whoami":
		s.cmdWhoami(cmd)
	case "contacts":
		err = s.cmdContacts(cmd)
	case "admins":
		err = s.cmdAdmins(cmd)
	case "join":
		err = s.cmdJoin(cmd)
	case "leave":
		err = s.cmdLeave(cmd)
	case "rooms":
		s.cmdRooms(cmd)
	case "invite":
		err = s.cmdInvite(cmd)
	case "profile":
		err = s.cmdProfile(cmd)
	case "image":
		s.cmdImage(cmd)
	default:
		s.cmdUnknown(cmd)
	}
	if err != nil {
		s.metrics.CountHandlerError()
		s.logger.Error("command failed", "command", cmd.name, "error", err)
		cmd.reply(replyFailure)
	}
}

func (s *Session) cmdHelp(cmd commandContext) {
	if cmd.groupchat {
		cmd.reply("Commands here: /status, /whoami, /image <prompt>, /help. More in direct chat.")
		return
	}
	cmd.reply(strings.Join([]string{
		"Commands:",
		"/status — connection and profile summary",
		"/whoami — who you are to me",
		"/profile get|set <field> [value]",
		"/invite <identity> <room> [reason]",
		"/image <prompt> — request an image",
		"/contacts list|add|remove, /admins, /join, /leave, /rooms — admin only",
		"/help — this text",
	}, "\n"))
}

func (s *Session) cmdStatus(cmd commandContext) {
	profile := s.Profile()
	name := profile.FullName
	if name == "" {
		name = s.nick
	}
	cmd.reply(fmt.Sprintf("%s online as %s, %d room(s) joined.",
		name, s.boundJID.String(), len(s.JoinedRooms())))
}

func (s *Session) cmdWhoami(cmd commandContext) {
	if cmd.groupchat {
		cmd.reply(fmt.Sprintf("You are %s in %s.", cmd.nick, cmd.room.String()))
		return
	}
	sender := cmd.sender.Bare()
	switch {
	case s.registry.IsAdmin(sender):
		cmd.reply(fmt.Sprintf("%s — known contact, administrator.", sender.String()))
	case s.registry.Exists(sender):
		cmd.reply(fmt.Sprintf("%s — known contact.", sender.String()))
	default:
		cmd.reply(fmt.Sprintf("%s — not in my contacts.", sender.String()))
	}
}

func (s *Session) cmdContacts(cmd commandContext) error {
	if len(cmd.args) == 0 {
		cmd.reply("Usage: /contacts list|add <identity>|remove <identity>")
		return nil
	}
	switch cmd.args[0] {
	case "add", "remove":
		if len(cmd.args) < 2 {
			cmd.reply("Usage: /contacts " + cmd.args[0] + " <identity>")
			return nil
		}
		identity, err := jid.Parse(cmd.args[1])
		if err != nil {
			cmd.reply("That does not look like a valid identity.")
			return nil
		}
		if cmd.args[0] == "add" {
			if err := s.registry.Add(identity.Bare()); err != nil {
				return fmt.Errorf("adding contact: %w", err)
			}
			cmd.reply("Added " + identity.Bare().String() + ".")
		} else {
			if err := s.registry.Remove(identity.Bare()); err != nil {
				return fmt.Errorf("removing contact: %w", err)
			}
			cmd.reply("Removed " + identity.Bare().String() + ".")
		}
		return nil
	case "list":
		contacts, err := s.registry.ListContacts()
		if err != nil {
			return fmt.Errorf("listing contacts: %w", err)
		}
		if len(contacts) == 0 {
			cmd.reply("No contacts registered.")
			return nil
		}
		names := make([]string, 0, len(contacts))
		for _, contact := range contacts {
			names = append(names, contact.String())
		}
		sort.Strings(names)
		cmd.reply("Contacts: " + strings.Join(names, ", "))
		return nil
	default:
		cmd.reply("Usage: /contacts list|add <identity>|remove <identity>")
		return nil
	}
}

func (s *Session) cmdAdmins(cmd commandContext) error {
	admins, err := s.registry.ListAdmins()
	if err != nil {
		return fmt.Errorf("listing administrators: %w", err)
	}
	if len(admins) == 0 {
		cmd.reply("No administrators registered.")
		return nil
	}
	names := make([]string, 0, len(admins))
	for _, admin := range admins {
		names = append(names, admin.String())
	}
	sort.Strings(names)
	cmd.reply("Administrators: " + strings.Join(names, ", "))
	return nil
}

func (s *Session) cmdJoin(cmd commandContext) error {
	if len(cmd.args) == 0 {
		cmd.reply("Usage: /join <room> [nickname]")
		return nil
	}
	nick := ""
	if len(cmd.args) > 1 {
		nick = cmd.args[1]
	}
	if err := s.JoinRoom(cmd.args[0], nick); err != nil {
		return err
	}
	cmd.reply("Joining " + cmd.args[0] + ".")
	return nil
}

func (s *Session) cmdLeave(cmd commandContext) error {
	if len(cmd.args) == 0 {
		cmd.reply("Usage: /leave <room>")
		return nil
	}
	if err := s.LeaveRoom(cmd.args[0]); err != nil {
		cmd.reply("I am not in that room.")
		return nil
	}
	cmd.reply("Left " + cmd.args[0] + ".")
	return nil
}

func (s *Session) cmdRooms(cmd commandContext) {
	rooms := s.JoinedRooms()
	if len(rooms) == 0 {
		cmd.reply("Not in any rooms.")
		return
	}
	lines := make([]string, 0, len(rooms))
	for _, room := range rooms {
		lines = append(lines, room.Room.String()+" (as "+room.Nick+")")
	}
	sort.Strings(lines)
	cmd.reply("Rooms: " + strings.Join(lines, ", "))
}

func (s *Session) cmdInvite(cmd commandContext) error {
	if len(cmd.args) < 2 {
		cmd.reply("Usage: /invite <identity> <room> [reason]")
		return nil
	}
	target, err := jid.Parse(cmd.args[0])
	if err != nil {
		cmd.reply("That does not look like a valid identity.")
		return nil
	}
	reason := strings.Join(cmd.args[2:], " ")
	if err := s.Invite(cmd.args[1], target.Bare(), reason, ""); err != nil {
		return err
	}
	cmd.reply("Invited " + target.Bare().String() + " to " + cmd.args[1] + ".")
	return nil
}

func (s *Session) cmdProfile(cmd commandContext) error {
	if len(cmd.args) == 0 {
		cmd.reply("Usage: /profile get|set <field> [value]")
		return nil
	}
	switch cmd.args[0] {
	case "get":
		profile := s.Profile()
		cmd.reply(fmt.Sprintf("name: %s\nnickname: %s\nurl: %s\ndescription: %s",
			profile.FullName, profile.Nickname, profile.URL, profile.Description))
		return nil
	case "set":
		if len(cmd.args) < 3 {
			cmd.reply("Usage: /profile set <name|nickname|url|description> <value>")
			return nil
		}
		field := strings.ToLower(cmd.args[1])
		value := strings.Join(cmd.args[2:], " ")
		ctx, cancel := context.WithTimeout(s.ctx, s.iqTimeout)
		defer cancel()
		err := s.UpdateProfile(ctx, func(record *stanza.VCard) {
			switch field {
			case "name":
				record.FullName = value
			case "nickname":
				record.Nickname = value
			case "url":
				record.URL = value
			case "description":
				record.Description = value
			}
		})
		if err != nil {
			return err
		}
		cmd.reply("Profile updated.")
		return nil
	default:
		cmd.reply("Usage: /profile get|set <field> [value]")
		return nil
	}
}

// cmdImage forwards an image request to the host; generation happens
// outside the engine.
func (s *Session) cmdImage(cmd commandContext) {
	if len(cmd.args) == 0 {
		cmd.reply("Usage: /image <prompt>")
		return
	}
	share := false
	args := cmd.args
	if args[0] == "share" {
		share = true
		args = args[1:]
	}
	incoming := IncomingMessage{
		Sender:    cmd.sender,
		Groupchat: cmd.groupchat,
		Room:      cmd.room,
		Nick:      cmd.nick,
		Image: &ImageRequest{
			Prompt:  strings.Join(args, " "),
			Share:   share,
			ReplyTo: cmd.sender,
		},
	}
	s.forward(incoming)
}

// cmdUnknown handles direct-chat commands outside the fixed set:
// known contacts get them forwarded to the host, strangers get a
// rejection.
func (s *Session) cmdUnknown(cmd commandContext) {
	if s.registry.Exists(cmd.sender.Bare()) {
		s.forward(IncomingMessage{
			Sender: cmd.sender,
			Text:   commandMarker + cmd.name + " " + strings.Join(cmd.args, " "),
		})
		return
	}
	cmd.reply("Unknown command. Try /help.")
}
