// Copyright 2025 Author(s) of MCP Any
// SPDX-License-Identifier: Apache-2.0

package spec

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/mcpany/openapi-bridge/pkg/client"
	"github.com/mcpany/openapi-bridge/pkg/logging"
	"github.com/spf13/afero"
)

// maxDocumentSize bounds how much of a remote document is read.
const maxDocumentSize = 32 << 20

// Loader reads documents from a filesystem or over HTTP.
type Loader struct {
	FS         afero.Fs
	HTTPClient client.HttpClient
	Options    []Option
}

// NewLoader returns a Loader reading local paths from fs.
func NewLoader(fs afero.Fs, opts ...Option) *Loader {
	return &Loader{FS: fs, HTTPClient: client.NewHTTPClient(), Options: opts}
}

// Load reads and parses the document at location, which is either an http(s)
// URL or a path on the loader's filesystem.
func (l *Loader) Load(ctx context.Context, location string) (*Document, error) {
	data, err := l.read(ctx, location)
	if err != nil {
		return nil, err
	}
	doc, err := Parse(ctx, data, l.Options...)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", location, err)
	}
	logging.GetLogger().Info("Loaded OpenAPI document", "location", location, "operations", len(doc.Operations))
	return doc, nil
}

func (l *Loader) read(ctx context.Context, location string) ([]byte, error) {
	if strings.HasPrefix(location, "http://") || strings.HasPrefix(location, "https://") {
		return l.fetch(ctx, location)
	}
	data, err := afero.ReadFile(l.FS, location)
	if err != nil {
		return nil, fmt.Errorf("failed to read document: %w", err)
	}
	return data, nil
}

func (l *Loader) fetch(ctx context.Context, location string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, location, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	resp, err := l.HTTPClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch document: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, fmt.Errorf("failed to fetch document: unexpected status %s", resp.Status)
	}
	data, err := io.ReadAll(io.LimitReader(resp.Body, maxDocumentSize))
	if err != nil {
		return nil, fmt.Errorf("failed to read document body: %w", err)
	}
	return data, nil
}
