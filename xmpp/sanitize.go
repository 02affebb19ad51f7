// Copyright 2026 The Warbler Authors
// SPDX-License-Identifier: Apache-2.0

package xmpp

import (
	"fmt"
	"path/filepath"
	"strconv"
	"strings"
)

// sanitizeFilename reduces a sender-chosen filename to a single safe
// path element: path separators and traversal sequences are stripped,
// characters outside a conservative set are replaced, and leading
// dots are removed so the result can never leave the download
// directory or hide as a dotfile.
func sanitizeFilename(name string) string {
	// Senders on other platforms may use backslash separators.
	name = strings.ReplaceAll(name, "\\", "/")
	name = filepath.Base(name)

	var b strings.Builder
	for _, r := range name {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9':
			b.WriteRune(r)
		case r == '.', r == '-', r == '_':
			b.WriteRune(r)
		default:
			b.WriteRune('_')
		}
	}
	cleaned := strings.TrimLeft(b.String(), ".")
	return cleaned
}

// downloadPath returns a safe absolute path inside the download
// directory for a received filename. A name that sanitizes away
// entirely, or that still resolves outside the directory, gets a
// timestamp-derived disambiguator instead.
func (s *Session) downloadPath(filename string) (string, error) {
	cleaned := sanitizeFilename(filename)
	if cleaned == "" {
		cleaned = "transfer-" + strconv.FormatInt(s.clock.Now().UnixNano(), 10)
	}

	path := filepath.Join(s.downloadDir, cleaned)
	rel, err := filepath.Rel(s.downloadDir, path)
	if err != nil || rel != cleaned || strings.HasPrefix(rel, "..") {
		cleaned = "transfer-" + strconv.FormatInt(s.clock.Now().UnixNano(), 10) + "-" + cleaned
		path = filepath.Join(s.downloadDir, filepath.Base(cleaned))
	}

	rel, err = filepath.Rel(s.downloadDir, path)
	if err != nil || strings.HasPrefix(rel, "..") || filepath.IsAbs(rel) {
		return "", fmt.Errorf("xmpp: filename %q escapes the download directory", filename)
	}
	return path, nil
}
