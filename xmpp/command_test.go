// Copyright 2026 The Warbler Authors
// SPDX-License-Identifier: Apache-2.0

package xmpp

import (
	"strconv"
	"testing"
	"time"

	"github.com/warbler-im/warbler/lib/clock"
	"github.com/warbler-im/warbler/lib/jid"
)

func directCommand(from, body string) string {
	return `<message type="chat" from="` + from + `"><body>` + body + `</body></message>`
}

func groupCommand(occupant, body string) string {
	return `<message type="groupchat" from="` + occupant + `"><body>` + body + `</body></message>`
}

func TestAdminCommandsRejectedInGroupchat(t *testing.T) {
	ts := newTestSession(t)
	// Even an admin is refused in a room.
	ts.registry.makeAdmin(jid.MustParse("alice@example.org"))
	if err := ts.session.JoinRoom("lobby", "warbler"); err != nil {
		t.Fatalf("JoinRoom: %v", err)
	}
	ts.transport.deliver(t, `<presence from="lobby@conference.example.org/warbler">`+
		`<x xmlns="http://jabber.org/protocol/muc#user"><status code="110"/></x></presence>`)
	waitFor(t, func() bool { return ts.session.InRoom("lobby") })

	for i, command := range []string{"/join den", "/contacts list", "/rooms"} {
		ts.transport.deliver(t, groupCommand("lobby@conference.example.org/alice", command))
		ts.transport.awaitFrameCount(t, i+1,
			frameContains("lobby@conference.example.org", "not available in groupchat"))
	}
}

func TestGroupchatUnlistedCommandsIgnored(t *testing.T) {
	ts := newTestSession(t)
	if err := ts.session.JoinRoom("lobby", "warbler"); err != nil {
		t.Fatalf("JoinRoom: %v", err)
	}
	ts.transport.deliver(t, `<presence from="lobby@conference.example.org/warbler">`+
		`<x xmlns="http://jabber.org/protocol/muc#user"><status code="110"/></x></presence>`)
	waitFor(t, func() bool { return ts.session.InRoom("lobby") })

	ts.transport.deliver(t, groupCommand("lobby@conference.example.org/alice", "/profile get"))
	// A help command afterwards proves dispatch is still alive and
	// establishes ordering: if profile had answered, its frame would
	// precede this one.
	ts.transport.deliver(t, groupCommand("lobby@conference.example.org/alice", "/help"))
	frame := ts.transport.awaitFrame(t, frameContains("lobby@conference.example.org", "Commands here"))
	if frameContains("nickname:")(frame) {
		t.Error("profile answered in groupchat")
	}
}

func TestAdminCommandRequiresAdminInDirectChat(t *testing.T) {
	ts := newTestSession(t)
	ts.registry.Add(jid.MustParse("bob@example.org"))

	ts.transport.deliver(t, directCommand("bob@example.org/pc", "/rooms"))
	ts.transport.awaitFrame(t, frameContains(`to="bob@example.org"`, "not an administrator"))
}

func TestAdminManagesContacts(t *testing.T) {
	ts := newTestSession(t)
	ts.registry.makeAdmin(jid.MustParse("alice@example.org"))

	ts.transport.deliver(t, directCommand("alice@example.org/pc", "/contacts add bob@example.org"))
	ts.transport.awaitFrame(t, frameContains("Added bob@example.org"))
	waitFor(t, func() bool { return ts.registry.Exists(jid.MustParse("bob@example.org")) })

	ts.transport.deliver(t, directCommand("alice@example.org/pc", "/contacts remove bob@example.org"))
	ts.transport.awaitFrame(t, frameContains("Removed bob@example.org"))
	waitFor(t, func() bool { return !ts.registry.Exists(jid.MustParse("bob@example.org")) })
}

func TestEleventhCommandThrottled(t *testing.T) {
	ts := newTestSession(t)

	for i := 0; i < 10; i++ {
		ts.transport.deliver(t, directCommand("alice@example.org/pc", "/help"))
	}
	// All ten admitted replies eventually arrive.
	ts.transport.awaitFrameCount(t, 10, frameContains("Commands:"))

	ts.transport.deliver(t, directCommand("alice@example.org/pc", "/help"))
	ts.transport.awaitFrame(t, frameContains("Too many commands"))
}

func TestWhoamiReflectsContext(t *testing.T) {
	ts := newTestSession(t)
	ts.registry.makeAdmin(jid.MustParse("alice@example.org"))

	ts.transport.deliver(t, directCommand("alice@example.org/pc", "/whoami"))
	ts.transport.awaitFrame(t, frameContains("alice@example.org", "administrator"))

	if err := ts.session.JoinRoom("lobby", "warbler"); err != nil {
		t.Fatalf("JoinRoom: %v", err)
	}
	ts.transport.deliver(t, `<presence from="lobby@conference.example.org/warbler">`+
		`<x xmlns="http://jabber.org/protocol/muc#user"><status code="110"/></x></presence>`)
	waitFor(t, func() bool { return ts.session.InRoom("lobby") })

	ts.transport.deliver(t, groupCommand("lobby@conference.example.org/alice", "/whoami"))
	ts.transport.awaitFrame(t,
		frameContains(`to="lobby@conference.example.org"`, "You are alice in lobby@conference.example.org"))
}

func TestUnknownCommandRouting(t *testing.T) {
	ts := newTestSession(t)
	ts.registry.Add(jid.MustParse("alice@example.org"))

	// Strangers get a rejection.
	ts.transport.deliver(t, directCommand("mallory@example.org/pc", "/frobnicate"))
	ts.transport.awaitFrame(t, frameContains(`to="mallory@example.org"`, "Unknown command"))

	// Known contacts have it forwarded to the host instead.
	ts.transport.deliver(t, directCommand("alice@example.org/pc", "/frobnicate now"))
	select {
	case msg := <-ts.session.Messages():
		if msg.Text != "/frobnicate now" {
			t.Errorf("forwarded %q, want /frobnicate now", msg.Text)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("contact's unknown command not forwarded")
	}
}

func TestImageCommandForwardsRequest(t *testing.T) {
	ts := newTestSession(t)

	ts.transport.deliver(t, directCommand("alice@example.org/pc", "/image a heron at dawn"))
	select {
	case msg := <-ts.session.Messages():
		if msg.Image == nil || msg.Image.Prompt != "a heron at dawn" || msg.Image.Share {
			t.Errorf("image request = %+v", msg.Image)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("image request not forwarded")
	}

	ts.transport.deliver(t, directCommand("alice@example.org/pc", "/image share a heron at dawn"))
	select {
	case msg := <-ts.session.Messages():
		if msg.Image == nil || !msg.Image.Share {
			t.Errorf("share request = %+v", msg.Image)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("share request not forwarded")
	}
}

func TestRateLimiterWindowResets(t *testing.T) {
	fakeTime := clock.Fake(time.Date(2026, 8, 1, 12, 0, 0, 0, time.UTC))
	limiter := newRateLimiter(fakeTime)

	for i := 0; i < rateLimitMax; i++ {
		if !limiter.allow("alice@example.org") {
			t.Fatalf("command %d refused inside the window", i+1)
		}
	}
	if limiter.allow("alice@example.org") {
		t.Fatal("command admitted past the window maximum")
	}
	// Other identities have independent windows.
	if !limiter.allow("bob@example.org") {
		t.Fatal("unrelated identity throttled")
	}

	fakeTime.Advance(rateLimitWindow)
	if !limiter.allow("alice@example.org") {
		t.Fatal("window did not reset after its full length")
	}
}

func TestRateLimiterPartialElapseKeepsWindow(t *testing.T) {
	fakeTime := clock.Fake(time.Date(2026, 8, 1, 12, 0, 0, 0, time.UTC))
	limiter := newRateLimiter(fakeTime)

	for i := 0; i < rateLimitMax; i++ {
		limiter.allow("alice@example.org")
		fakeTime.Advance(time.Second)
	}
	if limiter.allow("alice@example.org") {
		t.Fatal("admitted " + strconv.Itoa(rateLimitMax+1) + "th command before the window elapsed")
	}
}
