// Copyright 2026 The Warbler Authors
// SPDX-License-Identifier: Apache-2.0

// Package config loads the daemon's configuration from a single YAML
// file named by the WARBLER_CONFIG environment variable or a -config
// flag. There is no fallback discovery and no environment-variable
// overrides: the file is the whole story, which keeps deployments
// auditable.
package config
