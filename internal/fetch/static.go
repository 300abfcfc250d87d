// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package fetch

import (
	"context"
	"io"

	"github.com/cespare/xxhash/v2"
	"go.uber.org/zap"
)

const defaultMaxPages = 50

// PageURLFunc returns the URL of the given 1-based page, or ok=false when
// the listing has no such page.
type PageURLFunc func(page int) (url string, ok bool)

// StaticFetcher pages through a server-rendered listing, one request per
// page. It stops when the page URL function runs out of pages, when a
// page parses to zero entries, when a page repeats the previous page
// byte for byte, or at MaxPages.
type StaticFetcher struct {
	getter   Getter
	pageURL  PageURLFunc
	maxPages int
	logger   *zap.Logger

	page     int
	done     bool
	lastHash uint64
}

// NewStaticFetcher creates a paged fetcher. maxPages <= 0 uses the default (50).
func NewStaticFetcher(getter Getter, pageURL PageURLFunc, maxPages int, logger *zap.Logger) *StaticFetcher {
	if logger == nil {
		logger = zap.NewNop()
	}
	if maxPages <= 0 {
		maxPages = defaultMaxPages
	}
	return &StaticFetcher{
		getter:   getter,
		pageURL:  pageURL,
		maxPages: maxPages,
		logger:   logger,
	}
}

// Next fetches the next page. A 404 past the first page ends the listing.
func (f *StaticFetcher) Next(ctx context.Context) (Chunk, error) {
	if f.done || f.page >= f.maxPages {
		f.done = true
		return Chunk{}, io.EOF
	}

	url, ok := f.pageURL(f.page + 1)
	if !ok {
		f.done = true
		return Chunk{}, io.EOF
	}
	f.page++

	f.logger.Debug("fetching listing page", zap.Int("page", f.page), zap.String("url", url))
	body, err := f.getter.Get(ctx, url)
	if err != nil {
		if f.page > 1 && IsNotFound(err) {
			f.done = true
			return Chunk{}, io.EOF
		}
		// Keep the page counter so a caller that retries later resumes here.
		f.page--
		return Chunk{}, err
	}

	h := xxhash.Sum64String(body)
	if f.page > 1 && h == f.lastHash {
		f.logger.Debug("listing page repeats previous page", zap.Int("page", f.page))
		f.done = true
		return Chunk{}, io.EOF
	}
	f.lastHash = h

	return Chunk{URL: url, HTML: body, Step: f.page}, nil
}

// Report ends the listing after a page with no entries.
func (f *StaticFetcher) Report(entries int) {
	if entries == 0 {
		f.done = true
	}
}

// Close is a no-op; it satisfies Fetcher.
func (f *StaticFetcher) Close() error { return nil }

// SinglePage returns a PageURLFunc for a listing that has exactly one page.
func SinglePage(url string) PageURLFunc {
	return func(page int) (string, bool) {
		return url, page == 1
	}
}
