// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package venue turns raw proceedings listings into candidate paper
// entries. Each supported conference is one Adapter; venue quirks live in
// the adapter and nowhere else.
package venue

import (
	"context"
	"fmt"
	"net/url"
	"sort"
	"strings"

	"github.com/pdiddy/confpapers/internal/fetch"
	"github.com/pdiddy/confpapers/pkg/types"
)

// Entry is a candidate paper in venue-native form. Only Title is
// guaranteed; the normalizer fills placeholders for the rest.
type Entry struct {
	Title        string
	Authors      string
	Abstract     string
	PDFURL       string
	PaperPageURL string
	Type         string
}

// ParseContext carries the listing parameters an adapter may need.
type ParseContext struct {
	Year      int
	EventType string
}

// Adapter parses one venue's listing pages.
type Adapter interface {
	// Tag is the lowercase download-method tag, e.g. "cvpr".
	Tag() string

	// Venue is the conference tag written to records, e.g. "CVPR".
	Venue() string

	// DefaultBaseURL is the site root used when no override is given.
	DefaultBaseURL() string

	// ListingURL returns the URL of the given 1-based listing page, or
	// ok=false if the listing has no such page.
	ListingURL(baseURL string, year int, eventType string, page int) (string, bool)

	// LazyLoaded reports whether the listing needs scroll-driven loading.
	LazyLoaded() bool

	// ItemSelector is the CSS selector matching one listing item.
	ItemSelector() string

	// Parse extracts entries from a chunk. malformed counts items that
	// had no extractable title and were dropped.
	Parse(chunk fetch.Chunk, pctx ParseContext) (entries []Entry, malformed int, err error)
}

// AffordanceResolver is implemented by adapters whose PDF link lives on a
// per-paper detail page rather than in the listing.
type AffordanceResolver interface {
	// ResolveAffordance fills e.PDFURL (and backfills e.Abstract) from the
	// detail page. An unusable or missing affordance is not an error; e
	// is left without a PDF URL.
	ResolveAffordance(ctx context.Context, getter fetch.Getter, e *Entry) error
}

// PDFGuesser is implemented by adapters that can construct a best-effort
// PDF URL from a record's metadata.
type PDFGuesser interface {
	GuessPDFURL(rec *types.PaperRecord) string
}

// EventAware adapters produce different listings per event type. Adapters
// that do not implement it are fetched once per target.
type EventAware interface {
	UsesEventTypes(year int) bool
}

var registry = map[string]Adapter{}

func register(a Adapter) {
	registry[a.Tag()] = a
}

func init() {
	register(NewNeurIPS())
	register(NewICLR())
	register(NewICML())
	register(NewCVPR())
}

// Lookup returns the adapter for a venue name, case-insensitively.
func Lookup(name string) (Adapter, error) {
	if a, ok := registry[strings.ToLower(strings.TrimSpace(name))]; ok {
		return a, nil
	}
	return nil, fmt.Errorf("%q (known: %s): %w", name, strings.Join(Names(), ", "), types.ErrUnknownVenue)
}

// Names returns the registered venue tags in sorted order.
func Names() []string {
	names := make([]string, 0, len(registry))
	for k := range registry {
		names = append(names, k)
	}
	sort.Strings(names)
	return names
}

// hostVenues maps site hosts to venue tags for base-URL input.
var hostVenues = map[string]string{
	"neurips.cc":            "neurips",
	"nips.cc":               "neurips",
	"iclr.cc":               "iclr",
	"icml.cc":               "icml",
	"papers.cool":           "cvpr",
	"openaccess.thecvf.com": "cvpr",
	"cvpr.thecvf.com":       "cvpr",
}

// Resolve interprets a -c argument: a short name ("icml"), a base URL
// ("https://icml.cc"), or a phrase whose first word is a short name
// ("neurips 2024"). It returns the adapter and the base URL override, if
// the input was a URL.
func Resolve(input string) (Adapter, string, error) {
	input = strings.TrimSpace(input)
	if strings.HasPrefix(input, "http://") || strings.HasPrefix(input, "https://") {
		u, err := url.Parse(input)
		if err != nil {
			return nil, "", fmt.Errorf("parsing %q: %v: %w", input, err, types.ErrUnknownVenue)
		}
		host := strings.TrimPrefix(strings.ToLower(u.Hostname()), "www.")
		tag, ok := hostVenues[host]
		if !ok {
			return nil, "", fmt.Errorf("no venue for host %q: %w", host, types.ErrUnknownVenue)
		}
		a, err := Lookup(tag)
		if err != nil {
			return nil, "", err
		}
		return a, strings.TrimRight(u.Scheme+"://"+u.Host, "/"), nil
	}

	if a, err := Lookup(input); err == nil {
		return a, "", nil
	}
	if fields := strings.Fields(input); len(fields) > 1 {
		if a, err := Lookup(fields[0]); err == nil {
			return a, "", nil
		}
	}
	return nil, "", fmt.Errorf("%q: %w", input, types.ErrUnknownVenue)
}

// defaultYears is the venue/year matrix processed when no target is given.
var defaultYears = map[string][]int{
	"cvpr":    {2024, 2025},
	"iclr":    {2024},
	"icml":    {2025},
	"neurips": {2023, 2024},
}

// DefaultYears returns the default years for a venue tag.
func DefaultYears(tag string) []int {
	return append([]int(nil), defaultYears[strings.ToLower(tag)]...)
}

// DefaultTargets returns the full default venue/year matrix.
func DefaultTargets() []types.Target {
	var targets []types.Target
	for _, tag := range Names() {
		for _, y := range defaultYears[tag] {
			targets = append(targets, types.Target{Venue: registry[tag].Venue(), Year: y})
		}
	}
	return targets
}

// resolveRef resolves a possibly relative href against the chunk URL.
func resolveRef(base, href string) string {
	href = strings.TrimSpace(href)
	if href == "" {
		return ""
	}
	ref, err := url.Parse(href)
	if err != nil {
		return ""
	}
	if ref.IsAbs() {
		return ref.String()
	}
	b, err := url.Parse(base)
	if err != nil || !b.IsAbs() {
		return ""
	}
	return b.ResolveReference(ref).String()
}

// cleanText collapses runs of whitespace.
func cleanText(s string) string {
	return strings.Join(strings.Fields(s), " ")
}

// titleCase upper-cases the first letter of an event type ("oral" → "Oral").
func titleCase(s string) string {
	s = strings.TrimSpace(s)
	if s == "" {
		return ""
	}
	return strings.ToUpper(s[:1]) + strings.ToLower(s[1:])
}
