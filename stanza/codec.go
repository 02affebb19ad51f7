// Copyright 2026 The Warbler Authors
// SPDX-License-Identifier: Apache-2.0

package stanza

import (
	"bytes"
	"encoding/xml"
	"fmt"
	"io"
)

// Decode classifies a raw XML frame into one of the closed stanza
// kinds. Exactly one top-level element is expected per frame (the
// framing transport guarantees this). Frames whose top-level element
// is outside the closed set decode to *Unknown rather than an error,
// so new server-side extensions never break the dispatch loop.
func Decode(frame []byte) (Stanza, error) {
	decoder := xml.NewDecoder(bytes.NewReader(frame))

	start, err := firstStartElement(decoder)
	if err != nil {
		return nil, fmt.Errorf("stanza: no element in frame: %w", err)
	}

	switch start.Name.Local {
	case "presence":
		var presence Presence
		if err := decoder.DecodeElement(&presence, start); err != nil {
			return nil, fmt.Errorf("stanza: decoding presence: %w", err)
		}
		return &presence, nil
	case "message":
		var message Message
		if err := decoder.DecodeElement(&message, start); err != nil {
			return nil, fmt.Errorf("stanza: decoding message: %w", err)
		}
		return &message, nil
	case "iq":
		var iq IQ
		if err := decoder.DecodeElement(&iq, start); err != nil {
			return nil, fmt.Errorf("stanza: decoding iq: %w", err)
		}
		return &iq, nil
	case "open":
		var open StreamOpen
		if err := decoder.DecodeElement(&open, start); err != nil {
			return nil, fmt.Errorf("stanza: decoding stream open: %w", err)
		}
		return &open, nil
	case "close":
		return &StreamClose{}, nil
	case "features":
		var features StreamFeatures
		if err := decoder.DecodeElement(&features, start); err != nil {
			return nil, fmt.Errorf("stanza: decoding stream features: %w", err)
		}
		return &features, nil
	case "success":
		return &SASLSuccess{}, nil
	case "failure":
		var failure SASLFailure
		if err := decoder.DecodeElement(&failure, start); err != nil {
			return nil, fmt.Errorf("stanza: decoding SASL failure: %w", err)
		}
		return &failure, nil
	default:
		return &Unknown{Name: start.Name}, nil
	}
}

// Encode serializes a stanza value to a single XML frame.
func Encode(value any) ([]byte, error) {
	data, err := xml.Marshal(value)
	if err != nil {
		return nil, fmt.Errorf("stanza: encoding %T: %w", value, err)
	}
	return data, nil
}

// firstStartElement advances the decoder to the first start element,
// skipping character data, comments, and processing instructions.
func firstStartElement(decoder *xml.Decoder) (*xml.StartElement, error) {
	for {
		token, err := decoder.Token()
		if err != nil {
			if err == io.EOF {
				return nil, fmt.Errorf("empty frame")
			}
			return nil, err
		}
		if start, ok := token.(xml.StartElement); ok {
			return &start, nil
		}
	}
}
