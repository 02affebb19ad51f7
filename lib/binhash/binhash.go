// Copyright 2026 The Warbler Authors
// SPDX-License-Identifier: Apache-2.0

// Package binhash computes content digests for received files. Every
// finalized file transfer is logged with its SHA256 digest so that
// operators can correlate what was written to the download directory
// with what a sender claims to have sent.
package binhash

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"io"
	"os"
)

// Sum computes the SHA256 digest of in-memory data. Used for in-band
// transfers, whose payload is accumulated in memory before write-out.
func Sum(data []byte) [32]byte {
	return sha256.Sum256(data)
}

// SumFile computes the SHA256 digest of the file at path, streaming in
// chunks to keep memory usage constant regardless of file size.
func SumFile(path string) ([32]byte, error) {
	file, err := os.Open(path)
	if err != nil {
		return [32]byte{}, fmt.Errorf("opening %s for hashing: %w", path, err)
	}
	defer file.Close()

	hasher := sha256.New()
	if _, err := io.Copy(hasher, file); err != nil {
		return [32]byte{}, fmt.Errorf("hashing %s: %w", path, err)
	}

	var digest [32]byte
	copy(digest[:], hasher.Sum(nil))
	return digest, nil
}

// Format returns the hex encoding of a digest, the canonical form used
// in log output.
func Format(digest [32]byte) string {
	return hex.EncodeToString(digest[:])
}
