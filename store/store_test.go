// Copyright 2026 The Warbler Authors
// SPDX-License-Identifier: Apache-2.0

package store

import (
	"path/filepath"
	"testing"
	"time"

	"github.com/warbler-im/warbler/lib/clock"
	"github.com/warbler-im/warbler/lib/jid"
)

func openTestStore(t *testing.T) *Store {
	t.Helper()
	s, err := Open(Config{
		Path:  filepath.Join(t.TempDir(), "warbler.db"),
		Clock: clock.Fake(time.Date(2026, 8, 1, 12, 0, 0, 0, time.UTC)),
	})
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

func TestContactLifecycle(t *testing.T) {
	s := openTestStore(t)
	alice := jid.MustParse("alice@example.org")

	if s.Exists(alice) {
		t.Fatal("contact exists before add")
	}
	if err := s.Add(alice); err != nil {
		t.Fatalf("Add: %v", err)
	}
	if !s.Exists(alice) {
		t.Fatal("contact missing after add")
	}
	if s.IsAdmin(alice) {
		t.Fatal("plain contact reported as admin")
	}

	// Adding again is a no-op.
	if err := s.Add(alice); err != nil {
		t.Fatalf("second Add: %v", err)
	}

	if err := s.Remove(alice); err != nil {
		t.Fatalf("Remove: %v", err)
	}
	if s.Exists(alice) {
		t.Fatal("contact still present after remove")
	}
	// Removing an unknown identity is a no-op.
	if err := s.Remove(alice); err != nil {
		t.Fatalf("Remove of absent contact: %v", err)
	}
}

func TestLookupsNormalizeToBareForm(t *testing.T) {
	s := openTestStore(t)

	if err := s.Add(jid.MustParse("alice@example.org/laptop")); err != nil {
		t.Fatalf("Add: %v", err)
	}
	if !s.Exists(jid.MustParse("alice@example.org/phone")) {
		t.Error("lookup by a different resource missed the contact")
	}
	if !s.Exists(jid.MustParse("alice@example.org")) {
		t.Error("lookup by bare form missed the contact")
	}
}

func TestAdminFlag(t *testing.T) {
	s := openTestStore(t)
	alice := jid.MustParse("alice@example.org")
	bob := jid.MustParse("bob@example.org")

	if err := s.SetAdmin(alice, true); err != nil {
		t.Fatalf("SetAdmin: %v", err)
	}
	if err := s.Add(bob); err != nil {
		t.Fatalf("Add: %v", err)
	}

	if !s.IsAdmin(alice) {
		t.Error("granted admin not reported")
	}
	if s.IsAdmin(bob) {
		t.Error("plain contact reported as admin")
	}

	admins, err := s.ListAdmins()
	if err != nil {
		t.Fatalf("ListAdmins: %v", err)
	}
	if len(admins) != 1 || !admins[0].Equal(alice) {
		t.Errorf("ListAdmins = %v, want [alice@example.org]", admins)
	}

	contacts, err := s.ListContacts()
	if err != nil {
		t.Fatalf("ListContacts: %v", err)
	}
	if len(contacts) != 2 {
		t.Errorf("ListContacts = %v, want 2 entries", contacts)
	}

	if err := s.SetAdmin(alice, false); err != nil {
		t.Fatalf("revoking admin: %v", err)
	}
	if s.IsAdmin(alice) {
		t.Error("revoked admin still reported")
	}
	if !s.Exists(alice) {
		t.Error("revoking admin removed the contact")
	}
}

func TestHistoryAppendAndRead(t *testing.T) {
	s := openTestStore(t)
	alice := jid.MustParse("alice@example.org")

	base := time.Date(2026, 8, 1, 12, 0, 0, 0, time.UTC)
	for i, body := range []string{"first", "second", "third"} {
		err := s.AppendHistory(HistoryEntry{
			Identity:  alice,
			Direction: "in",
			Body:      body,
			At:        base.Add(time.Duration(i) * time.Minute),
		})
		if err != nil {
			t.Fatalf("AppendHistory: %v", err)
		}
	}

	entries, err := s.History(alice, 2)
	if err != nil {
		t.Fatalf("History: %v", err)
	}
	if len(entries) != 2 {
		t.Fatalf("History returned %d entries, want 2", len(entries))
	}
	if entries[0].Body != "third" || entries[1].Body != "second" {
		t.Errorf("History order = %q then %q, want newest first", entries[0].Body, entries[1].Body)
	}
	if !entries[0].At.Equal(base.Add(2 * time.Minute)) {
		t.Errorf("timestamp = %v, want %v", entries[0].At, base.Add(2*time.Minute))
	}

	other, err := s.History(jid.MustParse("bob@example.org"), 10)
	if err != nil {
		t.Fatalf("History for unknown identity: %v", err)
	}
	if len(other) != 0 {
		t.Errorf("unrelated identity has %d entries", len(other))
	}
}
