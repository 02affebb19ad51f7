// Copyright 2026 The Warbler Authors
// SPDX-License-Identifier: Apache-2.0

package xmpp

import (
	"encoding/base64"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"testing"
	"time"
)

const offerTemplate = `<iq type="set" id="%OFFER%" from="alice@example.org/pc">` +
	`<si xmlns="http://jabber.org/protocol/si" id="%SID%" profile="http://jabber.org/protocol/si/profile/file-transfer">` +
	`<file xmlns="http://jabber.org/protocol/si/profile/file-transfer" name="%NAME%" size="%SIZE%"/>` +
	`<feature xmlns="http://jabber.org/protocol/feature-neg">` +
	`<x xmlns="jabber:x:data" type="form">` +
	`<field var="stream-method" type="list-single">` +
	`<option><value>http://jabber.org/protocol/bytestreams</value></option>` +
	`<option><value>http://jabber.org/protocol/ibb</value></option>` +
	`</field></x></feature></si></iq>`

func offerFrame(offerID, sid, name, size string) string {
	return strings.NewReplacer(
		"%OFFER%", offerID, "%SID%", sid, "%NAME%", name, "%SIZE%", size,
	).Replace(offerTemplate)
}

func dataFrame(iqID, sid string, seq int, chunk []byte) string {
	return `<iq type="set" id="` + iqID + `" from="alice@example.org/pc">` +
		`<data xmlns="http://jabber.org/protocol/ibb" sid="` + sid + `" seq="` +
		strconv.Itoa(seq) + `">` + base64.StdEncoding.EncodeToString(chunk) + `</data></iq>`
}

func TestInBandTransferWritesExactBytes(t *testing.T) {
	ts := newTestSession(t)

	ts.transport.deliver(t, offerFrame("offer1", "sid-1", "notes.txt", "11"))
	accept := ts.transport.awaitFrame(t, frameContains(`id="offer1"`, "http://jabber.org/protocol/ibb"))
	if !frameContains(`type="result"`)(accept) {
		t.Fatalf("offer not accepted: %s", accept)
	}

	ts.transport.deliver(t, `<iq type="set" id="open1" from="alice@example.org/pc">`+
		`<open xmlns="http://jabber.org/protocol/ibb" sid="sid-1" block-size="4096"/></iq>`)
	ts.transport.awaitFrame(t, frameContains(`id="open1"`, `type="result"`))

	ts.transport.deliver(t, dataFrame("d1", "sid-1", 0, []byte("hello ")))
	ts.transport.awaitFrame(t, frameContains(`id="d1"`, `type="result"`))
	ts.transport.deliver(t, dataFrame("d2", "sid-1", 1, []byte("world")))
	ts.transport.awaitFrame(t, frameContains(`id="d2"`, `type="result"`))

	path := filepath.Join(ts.session.downloadDir, "notes.txt")
	waitFor(t, func() bool {
		content, err := os.ReadFile(path)
		return err == nil && string(content) == "hello world"
	})

	// The session is gone: further data for it is unknown.
	ts.transport.deliver(t, dataFrame("d3", "sid-1", 2, []byte("extra")))
	ts.transport.awaitFrame(t, frameContains(`id="d3"`, "item-not-found"))

	select {
	case msg := <-ts.session.Messages():
		if msg.AttachmentPath != path {
			t.Errorf("delivery path = %q, want %q", msg.AttachmentPath, path)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("completed transfer not delivered to host")
	}
}

func TestInBandTransferCloseFinalizesPartial(t *testing.T) {
	ts := newTestSession(t)

	ts.transport.deliver(t, offerFrame("offer2", "sid-2", "partial.bin", "100"))
	ts.transport.awaitFrame(t, frameContains(`id="offer2"`, `type="result"`))

	ts.transport.deliver(t, dataFrame("d1", "sid-2", 0, []byte("start")))
	ts.transport.awaitFrame(t, frameContains(`id="d1"`, `type="result"`))

	ts.transport.deliver(t, `<iq type="set" id="c1" from="alice@example.org/pc">`+
		`<close xmlns="http://jabber.org/protocol/ibb" sid="sid-2"/></iq>`)
	ts.transport.awaitFrame(t, frameContains(`id="c1"`, `type="result"`))

	waitFor(t, func() bool {
		content, err := os.ReadFile(filepath.Join(ts.session.downloadDir, "partial.bin"))
		return err == nil && string(content) == "start"
	})
}

func TestTransferOfferRejections(t *testing.T) {
	ts := newTestSession(t)

	tests := []struct {
		name      string
		frame     string
		condition string
	}{
		{
			name:      "oversized",
			frame:     offerFrame("big", "sid-big", "huge.bin", "20971520"),
			condition: "not-acceptable",
		},
		{
			name: "no in-band method",
			frame: `<iq type="set" id="nomethod" from="alice@example.org/pc">` +
				`<si xmlns="http://jabber.org/protocol/si" id="sid-x" profile="http://jabber.org/protocol/si/profile/file-transfer">` +
				`<file xmlns="http://jabber.org/protocol/si/profile/file-transfer" name="a.txt" size="5"/>` +
				`<feature xmlns="http://jabber.org/protocol/feature-neg"><x xmlns="jabber:x:data" type="form">` +
				`<field var="stream-method"><option><value>http://jabber.org/protocol/bytestreams</value></option></field>` +
				`</x></feature></si></iq>`,
			condition: "feature-not-implemented",
		},
		{
			name:      "missing stream id",
			frame:     offerFrame("noid", "", "a.txt", "5"),
			condition: "bad-request",
		},
		{
			name: "open for unknown session",
			frame: `<iq type="set" id="badopen" from="alice@example.org/pc">` +
				`<open xmlns="http://jabber.org/protocol/ibb" sid="nope"/></iq>`,
			condition: "item-not-found",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ts.transport.deliver(t, tt.frame)
			ts.transport.awaitFrame(t, frameContains(`type="error"`, tt.condition))
		})
	}
}

func TestTransferBadChunkLeavesSessionOpen(t *testing.T) {
	ts := newTestSession(t)

	ts.transport.deliver(t, offerFrame("offer3", "sid-3", "retry.txt", "5"))
	ts.transport.awaitFrame(t, frameContains(`id="offer3"`, `type="result"`))

	ts.transport.deliver(t, `<iq type="set" id="bad" from="alice@example.org/pc">`+
		`<data xmlns="http://jabber.org/protocol/ibb" sid="sid-3" seq="0">!!!not-base64!!!</data></iq>`)
	ts.transport.awaitFrame(t, frameContains(`id="bad"`, "bad-request"))

	// A good retry still completes the transfer.
	ts.transport.deliver(t, dataFrame("good", "sid-3", 0, []byte("hello")))
	ts.transport.awaitFrame(t, frameContains(`id="good"`, `type="result"`))
	waitFor(t, func() bool {
		content, err := os.ReadFile(filepath.Join(ts.session.downloadDir, "retry.txt"))
		return err == nil && string(content) == "hello"
	})
}
