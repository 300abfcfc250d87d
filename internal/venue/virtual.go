// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package venue

import (
	"context"
	"fmt"
	"net/url"
	"strings"

	"github.com/PuerkitoBio/goquery"
	readability "github.com/go-shiori/go-readability"

	"github.com/pdiddy/confpapers/internal/fetch"
	"github.com/pdiddy/confpapers/pkg/types"
)

// virtualSite parses the "/virtual/<year>/events/<event>" card listings
// shared by the NeurIPS, ICLR and ICML sites. The venue variants embed it
// and set their own tag, base URL and author separator handling.
type virtualSite struct {
	tag     string
	venue   string
	baseURL string

	// typeFromCard reads the event designation from the card's
	// type_display_name div instead of the requested event type.
	typeFromCard bool
}

func (v *virtualSite) Tag() string            { return v.tag }
func (v *virtualSite) Venue() string          { return v.venue }
func (v *virtualSite) DefaultBaseURL() string { return v.baseURL }
func (v *virtualSite) LazyLoaded() bool       { return false }
func (v *virtualSite) ItemSelector() string   { return "div.virtual-card" }

// UsesEventTypes is always true: each event type has its own listing.
func (v *virtualSite) UsesEventTypes(int) bool { return true }

// ListingURL returns the single listing page for the event type.
func (v *virtualSite) ListingURL(baseURL string, year int, eventType string, page int) (string, bool) {
	if page != 1 {
		return "", false
	}
	if baseURL == "" {
		baseURL = v.baseURL
	}
	if eventType == "" {
		eventType = "oral"
	}
	return fmt.Sprintf("%s/virtual/%d/events/%s", strings.TrimRight(baseURL, "/"), year, url.PathEscape(strings.ToLower(eventType))), true
}

// Parse extracts one entry per virtual card. Author and abstract blocks
// sit either inside the card or in the siblings that follow it, depending
// on the year's template.
func (v *virtualSite) Parse(chunk fetch.Chunk, pctx ParseContext) ([]Entry, int, error) {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(chunk.HTML))
	if err != nil {
		return nil, 0, fmt.Errorf("parsing %s: %v: %w", chunk.URL, err, types.ErrStructuralParse)
	}

	var entries []Entry
	malformed := 0
	doc.Find(v.ItemSelector()).Each(func(_ int, card *goquery.Selection) {
		link := card.Find("a.small-title").First()
		title := cleanText(link.Text())
		if title == "" {
			malformed++
			return
		}

		trailing := card.NextUntil(v.ItemSelector())
		pick := func(selector string) *goquery.Selection {
			if s := card.Find(selector).First(); s.Length() > 0 {
				return s
			}
			return trailing.Filter(selector).First()
		}

		e := Entry{
			Title:    title,
			Authors:  joinAuthors(pick("div.author-str").Text()),
			Abstract: cleanText(pick("details").Find("div.text-start").First().Text()),
			Type:     titleCase(pctx.EventType),
		}
		if href, ok := link.Attr("href"); ok {
			e.PaperPageURL = resolveRef(chunk.URL, href)
		}
		if v.typeFromCard {
			if t := cleanText(pick("div.type_display_name_virtual_card").Text()); t != "" {
				e.Type = t
			}
		}
		entries = append(entries, e)
	})
	return entries, malformed, nil
}

// ResolveAffordance fetches the detail page and extracts its OpenReview
// or PDF button. The virtual sites show an OpenReview button on some
// years, a dead one on others, and none at all on the rest; every
// unusable variant leaves e.PDFURL empty.
func (v *virtualSite) ResolveAffordance(ctx context.Context, getter fetch.Getter, e *Entry) error {
	if e.PaperPageURL == "" {
		return nil
	}
	page, err := getter.Get(ctx, e.PaperPageURL)
	if err != nil {
		if fetch.IsNotFound(err) {
			return nil
		}
		return fmt.Errorf("detail page for %q: %w", e.Title, err)
	}

	doc, err := goquery.NewDocumentFromReader(strings.NewReader(page))
	if err != nil {
		return fmt.Errorf("parsing detail page for %q: %v: %w", e.Title, err, types.ErrStructuralParse)
	}

	e.PDFURL = findPDFLink(doc, e.PaperPageURL)
	if e.Abstract == "" {
		e.Abstract = detailAbstract(doc, page, e.PaperPageURL)
	}
	return nil
}

// findPDFLink tries, in order: the button titled "OpenReview", links whose
// text mentions OpenReview, any openreview.net forum link, and a button
// titled or labelled "PDF". The first usable link wins.
func findPDFLink(doc *goquery.Document, pageURL string) string {
	var candidates []string
	doc.Find(`a[title="OpenReview"]`).Each(func(_ int, s *goquery.Selection) {
		candidates = append(candidates, s.AttrOr("href", ""))
	})
	doc.Find("a[href]").Each(func(_ int, s *goquery.Selection) {
		if strings.Contains(s.Text(), "OpenReview") {
			candidates = append(candidates, s.AttrOr("href", ""))
		}
	})
	doc.Find(`a[href*="openreview.net/forum"]`).Each(func(_ int, s *goquery.Selection) {
		candidates = append(candidates, s.AttrOr("href", ""))
	})
	doc.Find("a[href]").Each(func(_ int, s *goquery.Selection) {
		if s.AttrOr("title", "") == "PDF" || strings.EqualFold(cleanText(s.Text()), "pdf") {
			candidates = append(candidates, s.AttrOr("href", ""))
		}
	})

	for _, href := range candidates {
		if u := UsableLink(pageURL, href); u != "" {
			return u
		}
	}
	return ""
}

// detailAbstract reads the abstract block of a detail page, falling back
// to the readability excerpt of the page.
func detailAbstract(doc *goquery.Document, page, pageURL string) string {
	for _, sel := range []string{"#abstractExample", "div.abstract", "section.abstract"} {
		if t := cleanText(doc.Find(sel).First().Text()); t != "" {
			return strings.TrimSpace(strings.TrimPrefix(t, "Abstract:"))
		}
	}

	u, err := url.Parse(pageURL)
	if err != nil {
		return ""
	}
	article, err := readability.FromReader(strings.NewReader(page), u)
	if err != nil {
		return ""
	}
	return cleanText(article.Excerpt)
}

// joinAuthors normalizes the middle-dot separated author strings of the
// virtual sites to a comma-joined list.
func joinAuthors(s string) string {
	s = strings.NewReplacer("·", ",", "&middot;", ",", ";", ",").Replace(s)
	var names []string
	for _, part := range strings.Split(s, ",") {
		if name := cleanText(part); name != "" {
			names = append(names, name)
		}
	}
	return strings.Join(names, ", ")
}
