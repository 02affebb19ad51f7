// Copyright 2026 The Warbler Authors
// SPDX-License-Identifier: Apache-2.0

package netutil

import (
	"bytes"
	"strings"
	"testing"
)

func TestReadResponse(t *testing.T) {
	data, err := ReadResponse(strings.NewReader("hello"))
	if err != nil {
		t.Fatalf("ReadResponse: %v", err)
	}
	if string(data) != "hello" {
		t.Errorf("ReadResponse = %q", data)
	}
}

func TestCopyBounded(t *testing.T) {
	t.Run("under limit", func(t *testing.T) {
		var buffer bytes.Buffer
		written, err := CopyBounded(&buffer, strings.NewReader("abcde"), 10)
		if err != nil {
			t.Fatalf("CopyBounded: %v", err)
		}
		if written != 5 || buffer.String() != "abcde" {
			t.Errorf("wrote %d bytes, content %q", written, buffer.String())
		}
	})

	t.Run("exactly at limit", func(t *testing.T) {
		var buffer bytes.Buffer
		if _, err := CopyBounded(&buffer, strings.NewReader("abcde"), 5); err != nil {
			t.Fatalf("CopyBounded at limit: %v", err)
		}
	})

	t.Run("over limit", func(t *testing.T) {
		var buffer bytes.Buffer
		if _, err := CopyBounded(&buffer, strings.NewReader("abcdef"), 5); err == nil {
			t.Fatal("CopyBounded over limit should fail")
		}
	})
}

func TestErrorBody(t *testing.T) {
	if got := ErrorBody(strings.NewReader("denied")); got != "denied" {
		t.Errorf("ErrorBody = %q", got)
	}
}
