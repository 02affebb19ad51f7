// Copyright 2026 The Warbler Authors
// SPDX-License-Identifier: Apache-2.0

// Command warbler-admin manages the contact/admin registry directly
// in the daemon's database. It exists to bootstrap the first
// administrator, since administrative chat commands require one.
package main

import (
	"flag"
	"fmt"
	"os"

	"github.com/warbler-im/warbler/lib/config"
	"github.com/warbler-im/warbler/lib/jid"
	"github.com/warbler-im/warbler/lib/process"
	"github.com/warbler-im/warbler/store"
)

const usage = `usage: warbler-admin [-config path] <command> [arguments]

Commands:
  grant <identity>    make the identity an administrator
  revoke <identity>   remove administrator status
  add <identity>      add a contact
  remove <identity>   remove a contact
  list                list contacts, marking administrators
`

func main() {
	if err := run(); err != nil {
		process.Fatal(err)
	}
}

func run() error {
	var configPath string
	flag.StringVar(&configPath, "config", "", "path to warbler.yaml (overrides WARBLER_CONFIG)")
	flag.Usage = func() { fmt.Fprint(os.Stderr, usage) }
	flag.Parse()

	if flag.NArg() == 0 {
		flag.Usage()
		return fmt.Errorf("warbler-admin: a command is required")
	}

	var cfg *config.Config
	var err error
	if configPath != "" {
		cfg, err = config.LoadFile(configPath)
	} else {
		cfg, err = config.Load()
	}
	if err != nil {
		return err
	}

	contacts, err := store.Open(store.Config{Path: cfg.DatabasePath()})
	if err != nil {
		return err
	}
	defer contacts.Close()

	command := flag.Arg(0)
	switch command {
	case "list":
		return list(contacts)
	case "grant", "revoke", "add", "remove":
		if flag.NArg() < 2 {
			return fmt.Errorf("warbler-admin: %s requires an identity", command)
		}
		identity, err := jid.Parse(flag.Arg(1))
		if err != nil {
			return fmt.Errorf("warbler-admin: %w", err)
		}
		return mutate(contacts, command, identity.Bare())
	default:
		flag.Usage()
		return fmt.Errorf("warbler-admin: unknown command %q", command)
	}
}

func mutate(contacts *store.Store, command string, identity jid.JID) error {
	switch command {
	case "grant":
		if err := contacts.SetAdmin(identity, true); err != nil {
			return err
		}
		fmt.Printf("%s is now an administrator\n", identity)
	case "revoke":
		if err := contacts.SetAdmin(identity, false); err != nil {
			return err
		}
		fmt.Printf("%s is no longer an administrator\n", identity)
	case "add":
		if err := contacts.Add(identity); err != nil {
			return err
		}
		fmt.Printf("added %s\n", identity)
	case "remove":
		if err := contacts.Remove(identity); err != nil {
			return err
		}
		fmt.Printf("removed %s\n", identity)
	}
	return nil
}

func list(contacts *store.Store) error {
	all, err := contacts.ListContacts()
	if err != nil {
		return err
	}
	if len(all) == 0 {
		fmt.Println("no contacts")
		return nil
	}
	for _, identity := range all {
		marker := ""
		if contacts.IsAdmin(identity) {
			marker = " (admin)"
		}
		fmt.Printf("%s%s\n", identity, marker)
	}
	return nil
}
