// Copyright 2026 The Warbler Authors
// SPDX-License-Identifier: Apache-2.0

package jid

import (
	"encoding/xml"
	"fmt"
	"strings"
)

// JID is a validated XMPP address (e.g., "alice@chat.example" or
// "room@muc.chat.example/nick").
//
// A JID has a domain, an optional localpart before '@', and an
// optional resource after '/'. The bare form omits the resource;
// contact-registry and rate-limit lookups always use the bare form.
// In group-chat context the resource carries the room nickname, so
// reply addressing must strip it (replies go to the room, never to a
// participant's full address).
//
// JID is an immutable value type. The zero value is not valid; use
// IsZero to check.
type JID struct {
	local    string
	domain   string
	resource string
}

// Parse validates and splits a raw JID string. Returns an error if the
// string is empty, has an empty domain, an empty localpart before '@',
// or an empty resource after '/'.
func Parse(raw string) (JID, error) {
	if raw == "" {
		return JID{}, fmt.Errorf("empty JID")
	}

	rest := raw
	var resource string
	if slash := strings.IndexByte(rest, '/'); slash >= 0 {
		resource = rest[slash+1:]
		rest = rest[:slash]
		if resource == "" {
			return JID{}, fmt.Errorf("JID has empty resource: %q", raw)
		}
	}

	var local string
	if at := strings.IndexByte(rest, '@'); at >= 0 {
		local = rest[:at]
		rest = rest[at+1:]
		if local == "" {
			return JID{}, fmt.Errorf("JID has empty localpart: %q", raw)
		}
	}

	if rest == "" {
		return JID{}, fmt.Errorf("JID has empty domain: %q", raw)
	}

	return JID{local: local, domain: rest, resource: resource}, nil
}

// MustParse is Parse that panics on error. For tests and compile-time
// constants only.
func MustParse(raw string) JID {
	parsed, err := Parse(raw)
	if err != nil {
		panic(err)
	}
	return parsed
}

// New assembles a JID from its parts. local and resource may be empty.
func New(local, domain, resource string) (JID, error) {
	var builder strings.Builder
	if local != "" {
		builder.WriteString(local)
		builder.WriteByte('@')
	}
	builder.WriteString(domain)
	if resource != "" {
		builder.WriteByte('/')
		builder.WriteString(resource)
	}
	return Parse(builder.String())
}

// String returns the full JID string.
func (j JID) String() string {
	var builder strings.Builder
	if j.local != "" {
		builder.WriteString(j.local)
		builder.WriteByte('@')
	}
	builder.WriteString(j.domain)
	if j.resource != "" {
		builder.WriteByte('/')
		builder.WriteString(j.resource)
	}
	return builder.String()
}

// IsZero reports whether the JID is the zero value (uninitialized).
func (j JID) IsZero() bool { return j.domain == "" }

// Bare returns the JID with the resource stripped. Identity lookups
// (contacts, admins, rate limits) key on this form.
func (j JID) Bare() JID {
	return JID{local: j.local, domain: j.domain}
}

// Localpart returns the part before '@', or "" for domain-only JIDs.
func (j JID) Localpart() string { return j.local }

// Domain returns the domain part.
func (j JID) Domain() string { return j.domain }

// Resource returns the part after '/', or "" for bare JIDs. For a
// group-chat participant this is the room nickname.
func (j JID) Resource() string { return j.resource }

// WithResource returns a copy of the bare JID with the given resource.
func (j JID) WithResource(resource string) JID {
	return JID{local: j.local, domain: j.domain, resource: resource}
}

// Equal reports whether two JIDs are identical including resource.
func (j JID) Equal(other JID) bool { return j == other }

// EqualBare reports whether two JIDs have the same bare form.
func (j JID) EqualBare(other JID) bool { return j.Bare() == other.Bare() }

// MarshalText implements encoding.TextMarshaler for XML attributes and
// other text-based serialization.
func (j JID) MarshalText() ([]byte, error) {
	if j.IsZero() {
		return []byte{}, nil
	}
	return []byte(j.String()), nil
}

// MarshalXMLAttr implements xml.MarshalerAttr. A zero JID produces no
// attribute at all, so optional from/to attributes are omitted rather
// than serialized empty (omitempty does not apply to struct types).
func (j JID) MarshalXMLAttr(name xml.Name) (xml.Attr, error) {
	if j.IsZero() {
		return xml.Attr{}, nil
	}
	return xml.Attr{Name: name, Value: j.String()}, nil
}

// UnmarshalText implements encoding.TextUnmarshaler. An empty input
// produces the zero value (unset JID), matching absent stanza
// attributes.
func (j *JID) UnmarshalText(data []byte) error {
	if len(data) == 0 {
		*j = JID{}
		return nil
	}
	parsed, err := Parse(string(data))
	if err != nil {
		return err
	}
	*j = parsed
	return nil
}
