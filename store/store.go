// Copyright 2026 The Warbler Authors
// SPDX-License-Identifier: Apache-2.0

package store

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"time"

	"zombiezen.com/go/sqlite"
	"zombiezen.com/go/sqlite/sqlitex"

	"github.com/warbler-im/warbler/lib/clock"
	"github.com/warbler-im/warbler/lib/jid"
	"github.com/warbler-im/warbler/lib/sqlitepool"
)

const schema = `
CREATE TABLE IF NOT EXISTS contacts (
	identity TEXT PRIMARY KEY,
	is_admin INTEGER NOT NULL DEFAULT 0,
	added_at INTEGER NOT NULL
);

CREATE TABLE IF NOT EXISTS history (
	id        INTEGER PRIMARY KEY,
	identity  TEXT NOT NULL,
	direction TEXT NOT NULL CHECK (direction IN ('in', 'out')),
	body      TEXT NOT NULL,
	at        INTEGER NOT NULL
);

CREATE INDEX IF NOT EXISTS history_identity_at ON history (identity, at);
`

// Store persists the contact/admin registry and the message history.
// It satisfies the session engine's Registry and HistorySink
// contracts; identities are stored in bare form.
type Store struct {
	pool   *sqlitepool.Pool
	logger *slog.Logger
	clock  clock.Clock
}

// Config holds the parameters for opening a store.
type Config struct {
	// Path is the database file. Required.
	Path string

	// Logger receives operational messages. Nil discards them.
	Logger *slog.Logger

	// Clock stamps history rows and contact additions. Nil means the
	// system clock.
	Clock clock.Clock
}

// Open opens (creating if needed) the store's database.
func Open(cfg Config) (*Store, error) {
	logger := cfg.Logger
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	timeSource := cfg.Clock
	if timeSource == nil {
		timeSource = clock.Real()
	}

	pool, err := sqlitepool.Open(sqlitepool.Config{
		Path:   cfg.Path,
		Logger: logger,
		OnConnect: func(conn *sqlite.Conn) error {
			return sqlitex.ExecuteScript(conn, schema, nil)
		},
	})
	if err != nil {
		return nil, fmt.Errorf("store: %w", err)
	}
	return &Store{pool: pool, logger: logger, clock: timeSource}, nil
}

// Close releases the underlying pool.
func (s *Store) Close() error {
	return s.pool.Close()
}

// Exists reports whether the identity is a known contact. Lookup
// failures are logged and read as absent.
func (s *Store) Exists(identity jid.JID) bool {
	found, _, err := s.lookup(identity)
	if err != nil {
		s.logger.Error("contact lookup failed",
			"identity", identity.String(), "error", err)
		return false
	}
	return found
}

// IsAdmin reports whether the identity is an administrator.
func (s *Store) IsAdmin(identity jid.JID) bool {
	found, admin, err := s.lookup(identity)
	if err != nil {
		s.logger.Error("admin lookup failed",
			"identity", identity.String(), "error", err)
		return false
	}
	return found && admin
}

func (s *Store) lookup(identity jid.JID) (found, admin bool, err error) {
	conn, err := s.pool.Take(context.Background())
	if err != nil {
		return false, false, err
	}
	defer s.pool.Put(conn)

	err = sqlitex.Execute(conn,
		"SELECT is_admin FROM contacts WHERE identity = ?",
		&sqlitex.ExecOptions{
			Args: []any{identity.Bare().String()},
			ResultFunc: func(stmt *sqlite.Stmt) error {
				found = true
				admin = stmt.ColumnInt(0) != 0
				return nil
			},
		})
	return found, admin, err
}

// Add records the identity as a contact. Adding an existing contact
// is a no-op that preserves its admin flag.
func (s *Store) Add(identity jid.JID) error {
	conn, err := s.pool.Take(context.Background())
	if err != nil {
		return fmt.Errorf("store: adding contact: %w", err)
	}
	defer s.pool.Put(conn)

	err = sqlitex.Execute(conn,
		"INSERT INTO contacts (identity, added_at) VALUES (?, ?) ON CONFLICT (identity) DO NOTHING",
		&sqlitex.ExecOptions{
			Args: []any{identity.Bare().String(), s.clock.Now().Unix()},
		})
	if err != nil {
		return fmt.Errorf("store: adding contact %s: %w", identity.Bare(), err)
	}
	return nil
}

// Remove deletes the identity. Removing an unknown identity is a
// no-op.
func (s *Store) Remove(identity jid.JID) error {
	conn, err := s.pool.Take(context.Background())
	if err != nil {
		return fmt.Errorf("store: removing contact: %w", err)
	}
	defer s.pool.Put(conn)

	err = sqlitex.Execute(conn,
		"DELETE FROM contacts WHERE identity = ?",
		&sqlitex.ExecOptions{
			Args: []any{identity.Bare().String()},
		})
	if err != nil {
		return fmt.Errorf("store: removing contact %s: %w", identity.Bare(), err)
	}
	return nil
}

// SetAdmin grants or revokes administrator status, adding the contact
// if absent.
func (s *Store) SetAdmin(identity jid.JID, admin bool) error {
	conn, err := s.pool.Take(context.Background())
	if err != nil {
		return fmt.Errorf("store: setting admin: %w", err)
	}
	defer s.pool.Put(conn)

	flag := 0
	if admin {
		flag = 1
	}
	err = sqlitex.Execute(conn,
		`INSERT INTO contacts (identity, is_admin, added_at) VALUES (?, ?, ?)
		 ON CONFLICT (identity) DO UPDATE SET is_admin = excluded.is_admin`,
		&sqlitex.ExecOptions{
			Args: []any{identity.Bare().String(), flag, s.clock.Now().Unix()},
		})
	if err != nil {
		return fmt.Errorf("store: setting admin %s: %w", identity.Bare(), err)
	}
	return nil
}

// ListContacts returns all contact identities.
func (s *Store) ListContacts() ([]jid.JID, error) {
	return s.list("SELECT identity FROM contacts ORDER BY identity")
}

// ListAdmins returns all administrator identities.
func (s *Store) ListAdmins() ([]jid.JID, error) {
	return s.list("SELECT identity FROM contacts WHERE is_admin = 1 ORDER BY identity")
}

func (s *Store) list(query string) ([]jid.JID, error) {
	conn, err := s.pool.Take(context.Background())
	if err != nil {
		return nil, fmt.Errorf("store: listing contacts: %w", err)
	}
	defer s.pool.Put(conn)

	var identities []jid.JID
	err = sqlitex.Execute(conn, query, &sqlitex.ExecOptions{
		ResultFunc: func(stmt *sqlite.Stmt) error {
			identity, err := jid.Parse(stmt.ColumnText(0))
			if err != nil {
				return fmt.Errorf("stored identity %q: %w", stmt.ColumnText(0), err)
			}
			identities = append(identities, identity)
			return nil
		},
	})
	if err != nil {
		return nil, fmt.Errorf("store: listing contacts: %w", err)
	}
	return identities, nil
}

// HistoryEntry is one recorded message.
type HistoryEntry struct {
	Identity  jid.JID
	Direction string
	Body      string
	At        time.Time
}

// AppendHistory records one exchanged message.
func (s *Store) AppendHistory(entry HistoryEntry) error {
	conn, err := s.pool.Take(context.Background())
	if err != nil {
		return fmt.Errorf("store: appending history: %w", err)
	}
	defer s.pool.Put(conn)

	err = sqlitex.Execute(conn,
		"INSERT INTO history (identity, direction, body, at) VALUES (?, ?, ?, ?)",
		&sqlitex.ExecOptions{
			Args: []any{
				entry.Identity.Bare().String(),
				entry.Direction,
				entry.Body,
				entry.At.Unix(),
			},
		})
	if err != nil {
		return fmt.Errorf("store: appending history: %w", err)
	}
	return nil
}

// History returns the most recent entries for the identity, newest
// first, up to limit.
func (s *Store) History(identity jid.JID, limit int) ([]HistoryEntry, error) {
	conn, err := s.pool.Take(context.Background())
	if err != nil {
		return nil, fmt.Errorf("store: reading history: %w", err)
	}
	defer s.pool.Put(conn)

	var entries []HistoryEntry
	err = sqlitex.Execute(conn,
		"SELECT identity, direction, body, at FROM history WHERE identity = ? ORDER BY at DESC, id DESC LIMIT ?",
		&sqlitex.ExecOptions{
			Args: []any{identity.Bare().String(), limit},
			ResultFunc: func(stmt *sqlite.Stmt) error {
				stored, err := jid.Parse(stmt.ColumnText(0))
				if err != nil {
					return fmt.Errorf("stored identity %q: %w", stmt.ColumnText(0), err)
				}
				entries = append(entries, HistoryEntry{
					Identity:  stored,
					Direction: stmt.ColumnText(1),
					Body:      stmt.ColumnText(2),
					At:        time.Unix(stmt.ColumnInt64(3), 0).UTC(),
				})
				return nil
			},
		})
	if err != nil {
		return nil, fmt.Errorf("store: reading history for %s: %w", identity.Bare(), err)
	}
	return entries, nil
}
