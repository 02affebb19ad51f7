// Copyright 2026 The Warbler Authors
// SPDX-License-Identifier: Apache-2.0

package xmpp

import (
	"path/filepath"
	"strings"
	"testing"
)

func TestSanitizeFilename(t *testing.T) {
	tests := []struct {
		in, want string
	}{
		{"notes.txt", "notes.txt"},
		{"../../etc/passwd", "passwd"},
		{`..\..\boot.ini`, "boot.ini"},
		{"/etc/shadow", "shadow"},
		{".hidden", "hidden"},
		{"....", ""},
		{"weird name!.txt", "weird_name_.txt"},
		{"résumé.pdf", "r_sum_.pdf"},
		{"", ""},
	}
	for _, tt := range tests {
		if got := sanitizeFilename(tt.in); got != tt.want {
			t.Errorf("sanitizeFilename(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}

func TestDownloadPathNeverEscapesDirectory(t *testing.T) {
	ts := newTestSession(t)
	dir := ts.session.downloadDir

	inputs := []string{
		"../../etc/passwd",
		"../../../root/.ssh/authorized_keys",
		`..\..\windows\system32\config`,
		"normal.txt",
		"....",
		"",
	}
	for _, input := range inputs {
		path, err := ts.session.downloadPath(input)
		if err != nil {
			t.Errorf("downloadPath(%q): %v", input, err)
			continue
		}
		rel, err := filepath.Rel(dir, path)
		if err != nil || strings.HasPrefix(rel, "..") || filepath.IsAbs(rel) {
			t.Errorf("downloadPath(%q) = %q escapes %q", input, path, dir)
		}
		if strings.ContainsRune(rel, filepath.Separator) {
			t.Errorf("downloadPath(%q) = %q is not a single path element", input, path)
		}
	}
}
