// Copyright 2026 The Warbler Authors
// SPDX-License-Identifier: Apache-2.0

// Package netutil provides bounded HTTP I/O helpers.
//
// Every HTTP response body the bot reads (upload-slot PUT responses,
// out-of-band file downloads) goes through a bounded reader so that a
// misbehaving or malicious server cannot exhaust memory. Large binary
// downloads additionally enforce their own, much smaller, policy limit
// (see the fetch package) — the bound here is a safety net, not a
// policy.
package netutil

import (
	"fmt"
	"io"
)

// MaxResponseSize bounds response body reads at 64 MB. Legitimate
// responses on the paths that use this helper are orders of magnitude
// smaller; the limit only exists so a pathological response cannot
// exhaust memory.
const MaxResponseSize int64 = 64 << 20

// ReadResponse reads a response body up to MaxResponseSize bytes.
// Use instead of io.ReadAll when reading HTTP response bodies.
func ReadResponse(body io.Reader) ([]byte, error) {
	data, err := io.ReadAll(io.LimitReader(body, MaxResponseSize))
	if err != nil {
		return nil, fmt.Errorf("reading response body: %w", err)
	}
	return data, nil
}

// ErrorBody reads an HTTP error response body for inclusion in a
// diagnostic error message. Read errors are ignored — a partial or
// empty body is still useful in an error message.
func ErrorBody(body io.Reader) string {
	data, _ := io.ReadAll(io.LimitReader(body, MaxResponseSize))
	return string(data)
}

// CopyBounded copies from reader to writer, failing if more than limit
// bytes are available. It reads up to limit+1 bytes to distinguish
// "exactly limit" from "over limit".
func CopyBounded(writer io.Writer, reader io.Reader, limit int64) (int64, error) {
	written, err := io.Copy(writer, io.LimitReader(reader, limit+1))
	if err != nil {
		return written, err
	}
	if written > limit {
		return written, fmt.Errorf("response exceeds %d byte limit", limit)
	}
	return written, nil
}
