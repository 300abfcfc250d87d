// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package fetch retrieves raw listing content from proceedings sites.
// Static listings are paged by URL; lazy-loaded listings are enumerated
// by driving a ScrollSource until no new items appear.
package fetch

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"

	"github.com/pdiddy/confpapers/internal/httputil"
	"github.com/pdiddy/confpapers/pkg/types"
)

// maxPageBytes bounds a single listing or detail page.
const maxPageBytes = 32 << 20

// Chunk is one unit of raw listing content.
type Chunk struct {
	// URL is the page the content came from; adapters resolve relative
	// links against it.
	URL string

	// HTML is the raw markup. For scroll-loaded listings it holds only
	// the items that were new at this step.
	HTML string

	// Step is the 1-based page number or scroll step.
	Step int
}

// Fetcher yields successive chunks of a venue/year listing. Next returns
// io.EOF once the listing is exhausted.
type Fetcher interface {
	Next(ctx context.Context) (Chunk, error)

	// Report tells the fetcher how many entries the last chunk parsed
	// into. Paged fetchers stop after an empty page.
	Report(entries int)

	Close() error
}

// StatusError reports a non-200 response.
type StatusError struct {
	URL  string
	Code int
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("HTTP %d from %s", e.Code, e.URL)
}

// IsNotFound reports whether err is a 404 or 410 StatusError.
func IsNotFound(err error) bool {
	var se *StatusError
	if errors.As(err, &se) {
		return se.Code == http.StatusNotFound || se.Code == http.StatusGone
	}
	return false
}

// Getter fetches a single HTML page.
type Getter interface {
	Get(ctx context.Context, url string) (string, error)
}

// HTTPGetter fetches pages over HTTP with bounded retries on transient
// failures (transport errors, 429, 5xx). Each attempt is bounded by the
// Client's timeout; see NewHTTPGetter.
type HTTPGetter struct {
	Client *http.Client
	Config types.FetchConfig
}

// NewHTTPGetter returns a getter whose requests time out after
// cfg.Timeout. It shares client's transport; a zero cfg.Timeout keeps
// client's own timeout.
func NewHTTPGetter(client *http.Client, cfg types.FetchConfig) *HTTPGetter {
	if client == nil {
		client = &http.Client{}
	}
	if cfg.Timeout > 0 && cfg.Timeout != client.Timeout {
		c := *client
		c.Timeout = cfg.Timeout
		client = &c
	}
	return &HTTPGetter{Client: client, Config: cfg}
}

// Get returns the body of url. Transient failures that survive retries
// are wrapped with types.ErrTransientFetch; other non-200 responses are
// returned as *StatusError.
func (g *HTTPGetter) Get(ctx context.Context, url string) (string, error) {
	req, err := httputil.NewRequest(ctx, url, g.Config.HTTPConfig, "text/html,application/xhtml+xml")
	if err != nil {
		return "", err
	}

	resp, err := httputil.DoWithRetry(ctx, g.Client, req, g.Config.MaxRetries)
	if err != nil {
		if ctx.Err() != nil {
			return "", ctx.Err()
		}
		return "", fmt.Errorf("fetching %s: %v: %w", url, err, types.ErrTransientFetch)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		se := &StatusError{URL: url, Code: resp.StatusCode}
		if httputil.Retryable(resp.StatusCode) {
			return "", fmt.Errorf("%v: %w", se, types.ErrTransientFetch)
		}
		return "", se
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxPageBytes))
	if err != nil {
		return "", fmt.Errorf("reading %s: %v: %w", url, err, types.ErrTransientFetch)
	}
	return string(body), nil
}
