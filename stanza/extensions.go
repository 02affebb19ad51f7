// Copyright 2026 The Warbler Authors
// SPDX-License-Identifier: Apache-2.0

package stanza

import (
	"encoding/xml"

	"github.com/warbler-im/warbler/lib/jid"
)

// MUC presence status codes the room tracker reacts to.
const (
	// MUCStatusSelfPresence marks the occupant's own room presence —
	// seeing it on a join confirms membership.
	MUCStatusSelfPresence = 110
	// MUCStatusRoomCreated marks a freshly created room awaiting
	// configuration.
	MUCStatusRoomCreated = 201
	// MUCStatusNeedsConfiguration marks a room that requires a
	// configuration submit before it becomes usable.
	MUCStatusNeedsConfiguration = 210
)

// MUCUser is the http://jabber.org/protocol/muc#user extension carried
// on room presence (status codes, occupant items) and on mediated
// invite messages.
type MUCUser struct {
	XMLName  xml.Name    `xml:"http://jabber.org/protocol/muc#user x"`
	Items    []MUCItem   `xml:"item,omitempty"`
	Statuses []MUCStatus `xml:"status,omitempty"`
	Invites  []MUCInvite `xml:"invite,omitempty"`
	Password string      `xml:"password,omitempty"`
}

// HasStatus reports whether any of the given status codes is present.
func (m *MUCUser) HasStatus(codes ...int) bool {
	for _, status := range m.Statuses {
		for _, code := range codes {
			if status.Code == code {
				return true
			}
		}
	}
	return false
}

// MUCStatus is a numeric room status code.
type MUCStatus struct {
	Code int `xml:"code,attr"`
}

// MUCItem describes an occupant's affiliation and role.
type MUCItem struct {
	JID         jid.JID `xml:"jid,attr,omitempty"`
	Affiliation string  `xml:"affiliation,attr,omitempty"`
	Role        string  `xml:"role,attr,omitempty"`
	Nick        string  `xml:"nick,attr,omitempty"`
}

// MUCInvite is a mediated invite inside a MUCUser extension. On an
// inbound invite message the room is the message's From and the
// inviter is this element's From.
type MUCInvite struct {
	From   jid.JID `xml:"from,attr,omitempty"`
	To     jid.JID `xml:"to,attr,omitempty"`
	Reason string  `xml:"reason,omitempty"`
}

// MUCJoin is the http://jabber.org/protocol/muc extension attached to
// a join presence.
type MUCJoin struct {
	XMLName  xml.Name    `xml:"http://jabber.org/protocol/muc x"`
	History  *MUCHistory `xml:"history,omitempty"`
	Password string      `xml:"password,omitempty"`
}

// MUCHistory limits backlog replay on join. MaxStanzas is always
// serialized: joining with maxstanzas=0 requests zero history so old
// messages are never reprocessed as new commands.
type MUCHistory struct {
	MaxStanzas int `xml:"maxstanzas,attr"`
}

// ConferenceInvite is a direct invite (jabber:x:conference).
type ConferenceInvite struct {
	XMLName  xml.Name `xml:"jabber:x:conference x"`
	JID      jid.JID  `xml:"jid,attr"`
	Reason   string   `xml:"reason,attr,omitempty"`
	Password string   `xml:"password,attr,omitempty"`
}

// OOB is an out-of-band URL reference (jabber:x:oob).
type OOB struct {
	XMLName xml.Name `xml:"jabber:x:oob x"`
	URL     string   `xml:"url"`
	Desc    string   `xml:"desc,omitempty"`
}

// Delay marks a stanza replayed from server-side history
// (urn:xmpp:delay).
type Delay struct {
	XMLName xml.Name `xml:"urn:xmpp:delay delay"`
	From    string   `xml:"from,attr,omitempty"`
	Stamp   string   `xml:"stamp,attr,omitempty"`
}

// NamespaceIBB identifies the in-band bytestream transfer method in
// stream-initiation feature negotiation.
const NamespaceIBB = "http://jabber.org/protocol/ibb"

// SI is a stream-initiation offer or accept
// (http://jabber.org/protocol/si with the file-transfer profile).
type SI struct {
	XMLName  xml.Name `xml:"http://jabber.org/protocol/si si"`
	ID       string   `xml:"id,attr,omitempty"`
	Profile  string   `xml:"profile,attr,omitempty"`
	MimeType string   `xml:"mime-type,attr,omitempty"`

	File    *SIFile     `xml:"http://jabber.org/protocol/si/profile/file-transfer file,omitempty"`
	Feature *FeatureNeg `xml:"http://jabber.org/protocol/feature-neg feature,omitempty"`
}

// OfferedStreamMethods returns the stream-method values listed in the
// offer's feature-negotiation form, in offer order.
func (si *SI) OfferedStreamMethods() []string {
	if si.Feature == nil || si.Feature.Form == nil {
		return nil
	}
	var methods []string
	for _, field := range si.Feature.Form.Fields {
		if field.Var != "stream-method" {
			continue
		}
		for _, option := range field.Options {
			methods = append(methods, option.Value)
		}
		methods = append(methods, field.Values...)
	}
	return methods
}

// SIFile describes the offered file (name and declared size).
type SIFile struct {
	Name string `xml:"name,attr"`
	Size int64  `xml:"size,attr"`
	Desc string `xml:"desc,omitempty"`
}

// FeatureNeg is the feature-negotiation wrapper
// (http://jabber.org/protocol/feature-neg) holding a data form.
type FeatureNeg struct {
	XMLName xml.Name `xml:"http://jabber.org/protocol/feature-neg feature"`
	Form    *Form    `xml:"jabber:x:data x,omitempty"`
}

// Form is a jabber:x:data form. An empty submit form (type "submit",
// no fields) accepts a room's default configuration.
type Form struct {
	XMLName xml.Name    `xml:"jabber:x:data x"`
	Type    string      `xml:"type,attr,omitempty"`
	Title   string      `xml:"title,omitempty"`
	Fields  []FormField `xml:"field,omitempty"`
}

// FormField is one form field with zero or more values and options.
type FormField struct {
	Var     string       `xml:"var,attr,omitempty"`
	Type    string       `xml:"type,attr,omitempty"`
	Values  []string     `xml:"value,omitempty"`
	Options []FormOption `xml:"option,omitempty"`
}

// FormOption is one selectable option of a list field.
type FormOption struct {
	Label string `xml:"label,attr,omitempty"`
	Value string `xml:"value"`
}

// IBBOpen opens an in-band bytestream session.
type IBBOpen struct {
	XMLName   xml.Name `xml:"http://jabber.org/protocol/ibb open"`
	SID       string   `xml:"sid,attr"`
	BlockSize int      `xml:"block-size,attr,omitempty"`
	Stanza    string   `xml:"stanza,attr,omitempty"`
}

// IBBData carries one base64 chunk of an in-band bytestream.
type IBBData struct {
	XMLName xml.Name `xml:"http://jabber.org/protocol/ibb data"`
	SID     string   `xml:"sid,attr"`
	Seq     uint16   `xml:"seq,attr"`
	Payload string   `xml:",chardata"`
}

// IBBClose closes an in-band bytestream session.
type IBBClose struct {
	XMLName xml.Name `xml:"http://jabber.org/protocol/ibb close"`
	SID     string   `xml:"sid,attr"`
}

// UploadRequest asks the upload service for a slot
// (urn:xmpp:http:upload:0).
type UploadRequest struct {
	XMLName     xml.Name `xml:"urn:xmpp:http:upload:0 request"`
	Filename    string   `xml:"filename,attr"`
	Size        int64    `xml:"size,attr"`
	ContentType string   `xml:"content-type,attr,omitempty"`
}

// UploadSlot is the service's answer: a write URL (with any mandated
// headers) and a read URL. Both URLs must be present for the slot to
// be usable.
type UploadSlot struct {
	XMLName xml.Name   `xml:"urn:xmpp:http:upload:0 slot"`
	Put     *UploadPut `xml:"put,omitempty"`
	Get     *UploadGet `xml:"get,omitempty"`
}

// UploadPut is the slot's write half.
type UploadPut struct {
	URL     string         `xml:"url,attr"`
	Headers []UploadHeader `xml:"header,omitempty"`
}

// UploadHeader is a header the service requires on the PUT request.
type UploadHeader struct {
	Name  string `xml:"name,attr"`
	Value string `xml:",chardata"`
}

// UploadGet is the slot's read half.
type UploadGet struct {
	URL string `xml:"url,attr"`
}

// VCard is the bot's profile record (vcard-temp).
type VCard struct {
	XMLName     xml.Name    `xml:"vcard-temp vCard"`
	FullName    string      `xml:"FN,omitempty"`
	Nickname    string      `xml:"NICKNAME,omitempty"`
	URL         string      `xml:"URL,omitempty"`
	Description string      `xml:"DESC,omitempty"`
	Photo       *VCardPhoto `xml:"PHOTO,omitempty"`
}

// VCardPhoto is the avatar: either an external URL (EXTVAL) or inline
// base64 data (BINVAL) with its MIME type.
type VCardPhoto struct {
	Type   string `xml:"TYPE,omitempty"`
	BinVal string `xml:"BINVAL,omitempty"`
	ExtVal string `xml:"EXTVAL,omitempty"`
}

// Bind is the resource-binding payload
// (urn:ietf:params:xml:ns:xmpp-bind).
type Bind struct {
	XMLName  xml.Name `xml:"urn:ietf:params:xml:ns:xmpp-bind bind"`
	Resource string   `xml:"resource,omitempty"`
	JID      string   `xml:"jid,omitempty"`
}

// MUCOwnerQuery is the room-configuration payload
// (http://jabber.org/protocol/muc#owner): a get fetches the form, a
// set submits it.
type MUCOwnerQuery struct {
	XMLName xml.Name `xml:"http://jabber.org/protocol/muc#owner query"`
	Form    *Form    `xml:"jabber:x:data x,omitempty"`
}

// DiscoInfo is a service-discovery info payload
// (http://jabber.org/protocol/disco#info).
type DiscoInfo struct {
	XMLName    xml.Name        `xml:"http://jabber.org/protocol/disco#info query"`
	Node       string          `xml:"node,attr,omitempty"`
	Identities []DiscoIdentity `xml:"identity,omitempty"`
	Features   []DiscoFeature  `xml:"feature,omitempty"`
}

// DiscoIdentity identifies what kind of entity answered.
type DiscoIdentity struct {
	Category string `xml:"category,attr"`
	Type     string `xml:"type,attr"`
	Name     string `xml:"name,attr,omitempty"`
}

// DiscoFeature advertises one supported feature namespace.
type DiscoFeature struct {
	Var string `xml:"var,attr"`
}
