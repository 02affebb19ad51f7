// Copyright 2026 The Warbler Authors
// SPDX-License-Identifier: Apache-2.0

package stanza

import (
	"encoding/xml"

	"github.com/warbler-im/warbler/lib/jid"
)

// Stanza is the closed set of decoded protocol units. Implementations:
// *Presence, *Message, *IQ, *StreamOpen, *StreamClose, *StreamFeatures,
// *SASLSuccess, *SASLFailure, *Unknown.
type Stanza interface {
	stanza()
}

func (*Presence) stanza()       {}
func (*Message) stanza()        {}
func (*IQ) stanza()             {}
func (*StreamOpen) stanza()     {}
func (*StreamClose) stanza()    {}
func (*StreamFeatures) stanza() {}
func (*SASLSuccess) stanza()    {}
func (*SASLFailure) stanza()    {}
func (*Unknown) stanza()        {}

// Presence types.
const (
	PresenceAvailable    = "" // no type attribute
	PresenceUnavailable  = "unavailable"
	PresenceSubscribe    = "subscribe"
	PresenceSubscribed   = "subscribed"
	PresenceUnsubscribe  = "unsubscribe"
	PresenceUnsubscribed = "unsubscribed"
	PresenceProbe        = "probe"
	PresenceError        = "error"
)

// Presence is a presence stanza, including MUC room status updates.
type Presence struct {
	XMLName xml.Name `xml:"presence"`
	From    jid.JID  `xml:"from,attr,omitempty"`
	To      jid.JID  `xml:"to,attr,omitempty"`
	ID      string   `xml:"id,attr,omitempty"`
	Type    string   `xml:"type,attr,omitempty"`
	Show    string   `xml:"show,omitempty"`
	Status  string   `xml:"status,omitempty"`

	// MUCUser carries room status codes, occupant items, and mediated
	// invites (http://jabber.org/protocol/muc#user).
	MUCUser *MUCUser `xml:"http://jabber.org/protocol/muc#user x,omitempty"`

	// MUCJoin is the outbound join extension
	// (http://jabber.org/protocol/muc). Set on join presence to
	// request zero history.
	MUCJoin *MUCJoin `xml:"http://jabber.org/protocol/muc x,omitempty"`

	Error *Error `xml:"error,omitempty"`
}

// Message types.
const (
	MessageChat      = "chat"
	MessageGroupchat = "groupchat"
	MessageNormal    = "normal"
	MessageError     = "error"
)

// Message is a chat, group-chat, or normal message stanza.
type Message struct {
	XMLName xml.Name `xml:"message"`
	From    jid.JID  `xml:"from,attr,omitempty"`
	To      jid.JID  `xml:"to,attr,omitempty"`
	ID      string   `xml:"id,attr,omitempty"`
	Type    string   `xml:"type,attr,omitempty"`
	Subject string   `xml:"subject,omitempty"`
	Body    string   `xml:"body,omitempty"`

	// MUCUser carries a mediated room invite.
	MUCUser *MUCUser `xml:"http://jabber.org/protocol/muc#user x,omitempty"`

	// Conference is a direct room invite (jabber:x:conference).
	Conference *ConferenceInvite `xml:"jabber:x:conference x,omitempty"`

	// OOB references an out-of-band URL attached to the message
	// (jabber:x:oob), the delivery half of the HTTP upload flow.
	OOB *OOB `xml:"jabber:x:oob x,omitempty"`

	// Delay marks a message replayed from history (urn:xmpp:delay).
	Delay *Delay `xml:"urn:xmpp:delay delay,omitempty"`

	Error *Error `xml:"error,omitempty"`
}

// IQ types.
const (
	IQGet    = "get"
	IQSet    = "set"
	IQResult = "result"
	IQError  = "error"
)

// IQ is a request/response stanza. At most one payload field is set;
// the namespace of the payload element selects the field during decode.
type IQ struct {
	XMLName xml.Name `xml:"iq"`
	From    jid.JID  `xml:"from,attr,omitempty"`
	To      jid.JID  `xml:"to,attr,omitempty"`
	ID      string   `xml:"id,attr,omitempty"`
	Type    string   `xml:"type,attr"`

	VCard         *VCard         `xml:"vcard-temp vCard,omitempty"`
	SI            *SI            `xml:"http://jabber.org/protocol/si si,omitempty"`
	IBBOpen       *IBBOpen       `xml:"http://jabber.org/protocol/ibb open,omitempty"`
	IBBData       *IBBData       `xml:"http://jabber.org/protocol/ibb data,omitempty"`
	IBBClose      *IBBClose      `xml:"http://jabber.org/protocol/ibb close,omitempty"`
	UploadRequest *UploadRequest `xml:"urn:xmpp:http:upload:0 request,omitempty"`
	UploadSlot    *UploadSlot    `xml:"urn:xmpp:http:upload:0 slot,omitempty"`
	Bind          *Bind          `xml:"urn:ietf:params:xml:ns:xmpp-bind bind,omitempty"`
	MUCOwner      *MUCOwnerQuery `xml:"http://jabber.org/protocol/muc#owner query,omitempty"`
	DiscoInfo     *DiscoInfo     `xml:"http://jabber.org/protocol/disco#info query,omitempty"`

	Error *Error `xml:"error,omitempty"`
}

// Result returns an empty result IQ answering this one: type result,
// same ID, addresses swapped.
func (iq *IQ) Result() *IQ {
	return &IQ{Type: IQResult, ID: iq.ID, To: iq.From, From: iq.To}
}

// ErrorReply returns an error IQ answering this one with the given
// condition: type error, same ID, addresses swapped, condition element
// in the stanzas namespace.
func (iq *IQ) ErrorReply(errorType string, condition Condition) *IQ {
	return &IQ{
		Type:  IQError,
		ID:    iq.ID,
		To:    iq.From,
		From:  iq.To,
		Error: &Error{Type: errorType, Condition: condition},
	}
}

// Unknown is a frame whose top-level element is outside the closed set.
// The dispatcher logs and ignores these.
type Unknown struct {
	Name xml.Name
}
