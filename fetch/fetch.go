// Copyright 2026 The Warbler Authors
// SPDX-License-Identifier: Apache-2.0

package fetch

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"os"
	"path"
	"path/filepath"
	"strings"

	"github.com/google/uuid"

	"github.com/warbler-im/warbler/lib/netutil"
)

// DefaultMaxSize caps downloaded attachments.
const DefaultMaxSize = 10 << 20 // 10 MiB

// Fetcher downloads message attachments into a local directory,
// rejecting invalid URLs and bodies over the size ceiling. It backs
// the session engine's file-retrieval contract.
type Fetcher struct {
	client  *http.Client
	dir     string
	maxSize int64
	logger  *slog.Logger
}

// Config holds the parameters for a Fetcher.
type Config struct {
	// Dir is the directory downloads land in. Required.
	Dir string

	// Client is the HTTP client. Nil means http.DefaultClient.
	Client *http.Client

	// MaxSize caps the downloaded body. Zero means DefaultMaxSize.
	MaxSize int64

	// Logger receives download outcomes. Nil discards them.
	Logger *slog.Logger
}

// New builds a Fetcher.
func New(cfg Config) (*Fetcher, error) {
	if cfg.Dir == "" {
		return nil, fmt.Errorf("fetch: Dir is required")
	}
	client := cfg.Client
	if client == nil {
		client = http.DefaultClient
	}
	maxSize := cfg.MaxSize
	if maxSize <= 0 {
		maxSize = DefaultMaxSize
	}
	logger := cfg.Logger
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	return &Fetcher{client: client, dir: cfg.Dir, maxSize: maxSize, logger: logger}, nil
}

// Download retrieves the URL into the download directory and returns
// the local path. The URL must be http or https; bodies over the size
// ceiling fail partway and leave nothing behind.
func (f *Fetcher) Download(ctx context.Context, rawURL string) (string, error) {
	parsed, err := url.Parse(rawURL)
	if err != nil {
		return "", fmt.Errorf("fetch: invalid URL %q: %w", rawURL, err)
	}
	if parsed.Scheme != "http" && parsed.Scheme != "https" {
		return "", fmt.Errorf("fetch: unsupported scheme %q", parsed.Scheme)
	}

	request, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return "", fmt.Errorf("fetch: building request: %w", err)
	}
	response, err := f.client.Do(request)
	if err != nil {
		return "", fmt.Errorf("fetch: retrieving %s: %w", rawURL, err)
	}
	defer response.Body.Close()
	if response.StatusCode != http.StatusOK {
		return "", fmt.Errorf("fetch: retrieving %s: %s: %s",
			rawURL, response.Status, netutil.ErrorBody(response.Body))
	}
	if response.ContentLength > f.maxSize {
		return "", fmt.Errorf("fetch: %s declares %d bytes, limit %d",
			rawURL, response.ContentLength, f.maxSize)
	}

	localPath := filepath.Join(f.dir, localName(parsed))
	file, err := os.OpenFile(localPath, os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0o600)
	if err != nil {
		return "", fmt.Errorf("fetch: creating %s: %w", localPath, err)
	}

	written, err := netutil.CopyBounded(file, response.Body, f.maxSize)
	closeErr := file.Close()
	if err != nil {
		os.Remove(localPath)
		return "", fmt.Errorf("fetch: downloading %s: %w", rawURL, err)
	}
	if closeErr != nil {
		os.Remove(localPath)
		return "", fmt.Errorf("fetch: closing %s: %w", localPath, closeErr)
	}

	f.logger.Info("attachment downloaded",
		"url", rawURL, "path", localPath, "bytes", written)
	return localPath, nil
}

// localName derives a collision-free single path element from the
// URL: a short random prefix plus whatever survives sanitizing the
// URL's base name.
func localName(parsed *url.URL) string {
	base := path.Base(parsed.Path)
	var b strings.Builder
	for _, r := range base {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9':
			b.WriteRune(r)
		case r == '.', r == '-', r == '_':
			b.WriteRune(r)
		}
	}
	cleaned := strings.TrimLeft(b.String(), ".")
	prefix := uuid.NewString()[:8]
	if cleaned == "" {
		return prefix
	}
	return prefix + "-" + cleaned
}
