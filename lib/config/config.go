// Copyright 2026 The Warbler Authors
// SPDX-License-Identifier: Apache-2.0

package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Config is the daemon configuration. The file is the single source
// of truth: environment variables never override loaded values, so a
// deployment is fully described by its config file.
type Config struct {
	// Server configures the connection and account.
	Server ServerConfig `yaml:"server"`

	// Paths configures data locations.
	Paths PathsConfig `yaml:"paths"`

	// Rooms are joined at startup. Bare names are resolved against
	// the conference domain.
	Rooms []string `yaml:"rooms"`

	// Profile seeds the published profile record.
	Profile ProfileConfig `yaml:"profile"`

	// Metrics configures the observability endpoint.
	Metrics MetricsConfig `yaml:"metrics"`

	// Reconnect configures the backoff between connection attempts.
	Reconnect ReconnectConfig `yaml:"reconnect"`
}

// ServerConfig identifies the server and account.
type ServerConfig struct {
	// URL is the server's WebSocket endpoint (wss://...). Required.
	URL string `yaml:"url"`

	// Address is the account's bare address. Required.
	Address string `yaml:"address"`

	// Resource is requested at binding. Default: warbler.
	Resource string `yaml:"resource"`

	// PasswordFile holds the account password. Required. The file,
	// not the config, carries the secret so the config can be world
	// readable.
	PasswordFile string `yaml:"password_file"`

	// ConferenceDomain is the rooms' well-known subdomain. Default:
	// conference.<account domain>.
	ConferenceDomain string `yaml:"conference_domain"`

	// UploadService is the HTTP-upload service address. Default:
	// upload.<account domain>.
	UploadService string `yaml:"upload_service"`

	// Nick is the default room nickname. Default: the account's
	// local part.
	Nick string `yaml:"nick"`
}

// PathsConfig configures where the daemon keeps its data.
type PathsConfig struct {
	// Data is the base directory; the database lives here. Default:
	// ~/.local/share/warbler.
	Data string `yaml:"data"`

	// Downloads is where received files land. Default:
	// <data>/downloads.
	Downloads string `yaml:"downloads"`
}

// ProfileConfig seeds the profile record published at login.
type ProfileConfig struct {
	Name        string `yaml:"name"`
	Nickname    string `yaml:"nickname"`
	URL         string `yaml:"url"`
	Description string `yaml:"description"`
}

// MetricsConfig configures the metrics listener.
type MetricsConfig struct {
	// Listen is the address for the metrics endpoint. Empty disables
	// it.
	Listen string `yaml:"listen"`
}

// ReconnectConfig bounds the backoff between connection attempts.
type ReconnectConfig struct {
	// MinBackoff is the first retry delay. Default: 2s.
	MinBackoff time.Duration `yaml:"min_backoff"`

	// MaxBackoff caps the doubling. Default: 5m.
	MaxBackoff time.Duration `yaml:"max_backoff"`
}

// Default returns the base configuration the file is layered over.
func Default() *Config {
	homeDir, _ := os.UserHomeDir()
	dataDir := filepath.Join(homeDir, ".local", "share", "warbler")
	return &Config{
		Server: ServerConfig{
			Resource: "warbler",
		},
		Paths: PathsConfig{
			Data:      dataDir,
			Downloads: filepath.Join(dataDir, "downloads"),
		},
		Reconnect: ReconnectConfig{
			MinBackoff: 2 * time.Second,
			MaxBackoff: 5 * time.Minute,
		},
	}
}

// Load reads the file named by WARBLER_CONFIG. There is no fallback
// discovery: an unset variable is an error.
func Load() (*Config, error) {
	path := os.Getenv("WARBLER_CONFIG")
	if path == "" {
		return nil, fmt.Errorf("config: WARBLER_CONFIG is not set; " +
			"set it to the path of warbler.yaml, or pass -config")
	}
	return LoadFile(path)
}

// LoadFile reads and validates the named config file.
func LoadFile(path string) (*Config, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("config: reading %s: %w", path, err)
	}

	cfg := Default()
	decoder := yaml.NewDecoder(strings.NewReader(string(raw)))
	decoder.KnownFields(true)
	if err := decoder.Decode(cfg); err != nil {
		return nil, fmt.Errorf("config: parsing %s: %w", path, err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("config: %s: %w", path, err)
	}
	return cfg, nil
}

// Validate checks required fields and value sanity.
func (c *Config) Validate() error {
	if c.Server.URL == "" {
		return fmt.Errorf("server.url is required")
	}
	if !strings.HasPrefix(c.Server.URL, "ws://") && !strings.HasPrefix(c.Server.URL, "wss://") {
		return fmt.Errorf("server.url must be a ws:// or wss:// endpoint, got %q", c.Server.URL)
	}
	if c.Server.Address == "" {
		return fmt.Errorf("server.address is required")
	}
	if !strings.Contains(c.Server.Address, "@") {
		return fmt.Errorf("server.address %q is not a bare account address", c.Server.Address)
	}
	if c.Server.PasswordFile == "" {
		return fmt.Errorf("server.password_file is required")
	}
	if c.Paths.Data == "" {
		return fmt.Errorf("paths.data is required")
	}
	if c.Reconnect.MinBackoff <= 0 || c.Reconnect.MaxBackoff < c.Reconnect.MinBackoff {
		return fmt.Errorf("reconnect backoff bounds are inverted: min %s, max %s",
			c.Reconnect.MinBackoff, c.Reconnect.MaxBackoff)
	}
	return nil
}

// DatabasePath is where the contact/history database lives.
func (c *Config) DatabasePath() string {
	return filepath.Join(c.Paths.Data, "warbler.db")
}
