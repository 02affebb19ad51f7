// Copyright 2026 The Warbler Authors
// SPDX-License-Identifier: Apache-2.0

package xmpp

import (
	"context"
	"fmt"

	"github.com/warbler-im/warbler/stanza"
)

// Profile returns a copy of the locally cached profile record.
func (s *Session) Profile() stanza.VCard {
	s.profileMu.Lock()
	defer s.profileMu.Unlock()
	return s.profile
}

// publishProfile sends the cached record to the server.
func (s *Session) publishProfile(ctx context.Context) error {
	s.profileMu.Lock()
	record := s.profile
	s.profileMu.Unlock()

	_, err := s.sendIQ(ctx, &stanza.IQ{
		Type:  stanza.IQSet,
		VCard: &record,
	})
	if err != nil {
		return fmt.Errorf("xmpp: publishing profile: %w", err)
	}
	return nil
}

// SyncProfile queries the server's copy of the record, merges it over
// the local cache (the server's populated fields win, locally held
// values survive where the server is silent), and returns the merged
// record. The wait is bounded; a missing response is an error, not a
// hang.
func (s *Session) SyncProfile(ctx context.Context) (stanza.VCard, error) {
	response, err := s.sendIQ(ctx, &stanza.IQ{
		Type:  stanza.IQGet,
		VCard: &stanza.VCard{},
	})
	if err != nil {
		return stanza.VCard{}, fmt.Errorf("xmpp: querying profile: %w", err)
	}
	if response.VCard == nil {
		return stanza.VCard{}, fmt.Errorf("xmpp: profile query returned no record")
	}

	s.profileMu.Lock()
	s.profile = mergeProfile(s.profile, *response.VCard)
	merged := s.profile
	s.profileMu.Unlock()
	return merged, nil
}

// UpdateProfile applies an edit to the cached record and republishes
// it. The cache is updated only after the server accepts, so a
// rejected publish leaves the previous record in force.
func (s *Session) UpdateProfile(ctx context.Context, edit func(*stanza.VCard)) error {
	s.profileMu.Lock()
	updated := s.profile
	s.profileMu.Unlock()
	edit(&updated)

	_, err := s.sendIQ(ctx, &stanza.IQ{
		Type:  stanza.IQSet,
		VCard: &updated,
	})
	if err != nil {
		return fmt.Errorf("xmpp: publishing profile update: %w", err)
	}

	s.profileMu.Lock()
	s.profile = updated
	s.profileMu.Unlock()
	return nil
}

// handleProfileQuery answers a third-party query for our record with
// the cached copy.
func (s *Session) handleProfileQuery(iq *stanza.IQ) {
	s.profileMu.Lock()
	record := s.profile
	s.profileMu.Unlock()

	reply := iq.Result()
	reply.VCard = &record
	if err := s.send(reply); err != nil {
		s.logger.Warn("profile query reply failed",
			"to", iq.From.String(), "error", err)
	}
}

// mergeProfile lays the server record over the local one field by
// field. Empty server fields keep the local value.
func mergeProfile(local, server stanza.VCard) stanza.VCard {
	merged := local
	if server.FullName != "" {
		merged.FullName = server.FullName
	}
	if server.Nickname != "" {
		merged.Nickname = server.Nickname
	}
	if server.URL != "" {
		merged.URL = server.URL
	}
	if server.Description != "" {
		merged.Description = server.Description
	}
	if server.Photo != nil {
		merged.Photo = server.Photo
	}
	return merged
}
