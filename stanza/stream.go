// Copyright 2026 The Warbler Authors
// SPDX-License-Identifier: Apache-2.0

package stanza

import "encoding/xml"

// Stream negotiation namespaces.
const (
	NamespaceFraming = "urn:ietf:params:xml:ns:xmpp-framing"
	NamespaceSASL    = "urn:ietf:params:xml:ns:xmpp-sasl"
	NamespaceBind    = "urn:ietf:params:xml:ns:xmpp-bind"
)

// StreamOpen is a framed stream header (RFC 7395). The client sends
// one to start or restart the stream; the server answers with its own.
type StreamOpen struct {
	XMLName xml.Name `xml:"urn:ietf:params:xml:ns:xmpp-framing open"`
	To      string   `xml:"to,attr,omitempty"`
	From    string   `xml:"from,attr,omitempty"`
	ID      string   `xml:"id,attr,omitempty"`
	Version string   `xml:"version,attr,omitempty"`
}

// StreamClose is a framed stream trailer. Either side may send one to
// end the stream cleanly.
type StreamClose struct {
	XMLName xml.Name `xml:"urn:ietf:params:xml:ns:xmpp-framing close"`
}

// StreamFeatures advertises what the server offers at the current
// negotiation stage: SASL mechanisms before authentication, resource
// binding after.
type StreamFeatures struct {
	XMLName    xml.Name        `xml:"features"`
	Mechanisms *SASLMechanisms `xml:"urn:ietf:params:xml:ns:xmpp-sasl mechanisms,omitempty"`
	Bind       *Bind           `xml:"urn:ietf:params:xml:ns:xmpp-bind bind,omitempty"`
}

// OffersMechanism reports whether the named SASL mechanism is offered.
func (f *StreamFeatures) OffersMechanism(name string) bool {
	if f.Mechanisms == nil {
		return false
	}
	for _, mechanism := range f.Mechanisms.Mechanism {
		if mechanism == name {
			return true
		}
	}
	return false
}

// SASLMechanisms lists the server's SASL mechanisms.
type SASLMechanisms struct {
	Mechanism []string `xml:"mechanism"`
}

// SASLAuth is the client's authentication request. Payload is the
// base64-encoded initial response (for PLAIN: NUL user NUL password).
type SASLAuth struct {
	XMLName   xml.Name `xml:"urn:ietf:params:xml:ns:xmpp-sasl auth"`
	Mechanism string   `xml:"mechanism,attr"`
	Payload   string   `xml:",chardata"`
}

// SASLSuccess reports successful authentication.
type SASLSuccess struct {
	XMLName xml.Name `xml:"urn:ietf:params:xml:ns:xmpp-sasl success"`
}

// SASLFailure reports failed authentication. Reason is the local name
// of the failure condition child (e.g. "not-authorized").
type SASLFailure struct {
	Reason string
}

// UnmarshalXML captures the first child element's local name as the
// failure reason.
func (f *SASLFailure) UnmarshalXML(decoder *xml.Decoder, start xml.StartElement) error {
	for {
		token, err := decoder.Token()
		if err != nil {
			return err
		}
		switch element := token.(type) {
		case xml.StartElement:
			if f.Reason == "" && element.Name.Local != "text" {
				f.Reason = element.Name.Local
			}
			if err := decoder.Skip(); err != nil {
				return err
			}
		case xml.EndElement:
			return nil
		}
	}
}
