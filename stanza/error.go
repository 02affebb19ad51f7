// Copyright 2026 The Warbler Authors
// SPDX-License-Identifier: Apache-2.0

package stanza

import (
	"encoding/xml"
	"errors"
	"fmt"
)

// namespaceStanzas qualifies error condition elements.
const namespaceStanzas = "urn:ietf:params:xml:ns:xmpp-stanzas"

// Condition is a defined stanza error condition.
type Condition string

// Conditions the engine sends or distinguishes.
const (
	CondBadRequest            Condition = "bad-request"
	CondFeatureNotImplemented Condition = "feature-not-implemented"
	CondItemNotFound          Condition = "item-not-found"
	CondNotAcceptable         Condition = "not-acceptable"
	CondNotAllowed            Condition = "not-allowed"
	CondResourceConstraint    Condition = "resource-constraint"
	CondServiceUnavailable    Condition = "service-unavailable"
	CondConflict              Condition = "conflict"
	CondForbidden             Condition = "forbidden"
)

// Error types per core stanza semantics.
const (
	ErrorTypeCancel = "cancel"
	ErrorTypeModify = "modify"
	ErrorTypeWait   = "wait"
	ErrorTypeAuth   = "auth"
)

// Error is a structured stanza error: an error type, a defined
// condition element in the stanzas namespace, and optional
// human-readable text.
type Error struct {
	Type      string
	Condition Condition
	Text      string
}

// Error implements the error interface so a stanza error can travel
// through ordinary error returns. Callers use [IsCondition] to test
// for a specific condition.
func (e *Error) Error() string {
	if e.Text != "" {
		return fmt.Sprintf("stanza error: %s (%s): %s", e.Condition, e.Type, e.Text)
	}
	return fmt.Sprintf("stanza error: %s (%s)", e.Condition, e.Type)
}

// MarshalXML writes <error type="..."><condition xmlns="...stanzas"/>
// [<text>...</text>]</error>.
func (e *Error) MarshalXML(encoder *xml.Encoder, start xml.StartElement) error {
	start.Name = xml.Name{Local: "error"}
	start.Attr = nil
	if e.Type != "" {
		start.Attr = append(start.Attr, xml.Attr{Name: xml.Name{Local: "type"}, Value: e.Type})
	}
	if err := encoder.EncodeToken(start); err != nil {
		return err
	}

	if e.Condition != "" {
		condition := xml.StartElement{
			Name: xml.Name{Space: namespaceStanzas, Local: string(e.Condition)},
		}
		if err := encoder.EncodeToken(condition); err != nil {
			return err
		}
		if err := encoder.EncodeToken(condition.End()); err != nil {
			return err
		}
	}

	if e.Text != "" {
		text := xml.StartElement{
			Name: xml.Name{Space: namespaceStanzas, Local: "text"},
		}
		if err := encoder.EncodeToken(text); err != nil {
			return err
		}
		if err := encoder.EncodeToken(xml.CharData(e.Text)); err != nil {
			return err
		}
		if err := encoder.EncodeToken(text.End()); err != nil {
			return err
		}
	}

	return encoder.EncodeToken(start.End())
}

// UnmarshalXML reads the error type attribute and scans child elements
// for the condition and optional text. Unrecognized children are
// skipped, so extensions and application-specific conditions do not
// break decoding.
func (e *Error) UnmarshalXML(decoder *xml.Decoder, start xml.StartElement) error {
	for _, attr := range start.Attr {
		if attr.Name.Local == "type" {
			e.Type = attr.Value
		}
	}

	for {
		token, err := decoder.Token()
		if err != nil {
			return err
		}
		switch element := token.(type) {
		case xml.StartElement:
			if element.Name.Local == "text" {
				var text string
				if err := decoder.DecodeElement(&text, &element); err != nil {
					return err
				}
				e.Text = text
				continue
			}
			if element.Name.Space == namespaceStanzas && e.Condition == "" {
				e.Condition = Condition(element.Name.Local)
			}
			if err := decoder.Skip(); err != nil {
				return err
			}
		case xml.EndElement:
			return nil
		}
	}
}

// IsCondition reports whether err is (or wraps) a stanza *Error with
// the given condition.
func IsCondition(err error, condition Condition) bool {
	var stanzaErr *Error
	if !errors.As(err, &stanzaErr) {
		return false
	}
	return stanzaErr.Condition == condition
}
