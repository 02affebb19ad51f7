// Copyright 2026 The Warbler Authors
// SPDX-License-Identifier: Apache-2.0

package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "warbler.yaml")
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("writing config: %v", err)
	}
	return path
}

const minimalConfig = `
server:
  url: wss://example.org/xmpp-websocket
  address: warbler@example.org
  password_file: /etc/warbler/password
`

func TestLoadFileAppliesDefaults(t *testing.T) {
	cfg, err := LoadFile(writeConfig(t, minimalConfig))
	if err != nil {
		t.Fatalf("LoadFile: %v", err)
	}
	if cfg.Server.Resource != "warbler" {
		t.Errorf("default resource = %q", cfg.Server.Resource)
	}
	if cfg.Reconnect.MinBackoff != 2*time.Second || cfg.Reconnect.MaxBackoff != 5*time.Minute {
		t.Errorf("default backoff = %s/%s", cfg.Reconnect.MinBackoff, cfg.Reconnect.MaxBackoff)
	}
	if cfg.Paths.Downloads == "" {
		t.Error("default downloads path empty")
	}
	if got := cfg.DatabasePath(); filepath.Base(got) != "warbler.db" {
		t.Errorf("DatabasePath = %q", got)
	}
}

func TestLoadFileOverridesDefaults(t *testing.T) {
	cfg, err := LoadFile(writeConfig(t, minimalConfig+`
  resource: nest
rooms:
  - lobby
  - ops@conference.example.org
reconnect:
  min_backoff: 1s
  max_backoff: 30s
`))
	if err != nil {
		t.Fatalf("LoadFile: %v", err)
	}
	if cfg.Server.Resource != "nest" {
		t.Errorf("resource = %q, want nest", cfg.Server.Resource)
	}
	if len(cfg.Rooms) != 2 {
		t.Errorf("rooms = %v", cfg.Rooms)
	}
	if cfg.Reconnect.MaxBackoff != 30*time.Second {
		t.Errorf("max backoff = %s", cfg.Reconnect.MaxBackoff)
	}
}

func TestLoadFileRejectsUnknownFields(t *testing.T) {
	_, err := LoadFile(writeConfig(t, minimalConfig+"\nmystery: true\n"))
	if err == nil {
		t.Fatal("unknown field accepted")
	}
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr string
	}{
		{
			name:    "missing url",
			mutate:  func(c *Config) { c.Server.URL = "" },
			wantErr: "server.url",
		},
		{
			name:    "http url",
			mutate:  func(c *Config) { c.Server.URL = "https://example.org" },
			wantErr: "ws://",
		},
		{
			name:    "bad address",
			mutate:  func(c *Config) { c.Server.Address = "example.org" },
			wantErr: "server.address",
		},
		{
			name:    "missing password file",
			mutate:  func(c *Config) { c.Server.PasswordFile = "" },
			wantErr: "password_file",
		},
		{
			name: "inverted backoff",
			mutate: func(c *Config) {
				c.Reconnect.MinBackoff = time.Minute
				c.Reconnect.MaxBackoff = time.Second
			},
			wantErr: "backoff",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := Default()
			cfg.Server.URL = "wss://example.org/ws"
			cfg.Server.Address = "warbler@example.org"
			cfg.Server.PasswordFile = "/etc/warbler/password"
			tt.mutate(cfg)
			err := cfg.Validate()
			if err == nil || !strings.Contains(err.Error(), tt.wantErr) {
				t.Errorf("Validate() = %v, want mention of %q", err, tt.wantErr)
			}
		})
	}
}

func TestLoadRequiresEnvironmentVariable(t *testing.T) {
	t.Setenv("WARBLER_CONFIG", "")
	if _, err := Load(); err == nil {
		t.Fatal("Load without WARBLER_CONFIG succeeded")
	}

	t.Setenv("WARBLER_CONFIG", writeConfig(t, minimalConfig))
	if _, err := Load(); err != nil {
		t.Fatalf("Load: %v", err)
	}
}
