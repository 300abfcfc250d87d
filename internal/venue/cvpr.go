// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package venue

import (
	"fmt"
	"strings"
	"unicode"

	"github.com/PuerkitoBio/goquery"

	"github.com/pdiddy/confpapers/internal/fetch"
	"github.com/pdiddy/confpapers/pkg/types"
)

// cvfOpenAccessBase roots relative CVPR PDF links and guessed paths.
var cvfOpenAccessBase = "https://openaccess.thecvf.com/"

// firstOralYear is the first CVPR year whose listing exposes an oral group.
const firstOralYear = 2024

const noAbstract = "No abstract available."

// CVPR parses papers.cool CVPR listings. The listing is lazy-loaded, so
// it is fetched with a ScrollFetcher; PDF links sit directly on each
// item and point at the CVF open-access archive.
type CVPR struct {
	baseURL string
}

// NewCVPR returns the CVPR adapter.
func NewCVPR() *CVPR {
	return &CVPR{baseURL: "https://papers.cool"}
}

func (c *CVPR) Tag() string            { return "cvpr" }
func (c *CVPR) Venue() string          { return types.VenueCVPR }
func (c *CVPR) DefaultBaseURL() string { return c.baseURL }
func (c *CVPR) LazyLoaded() bool       { return true }
func (c *CVPR) ItemSelector() string   { return "div.panel.paper" }

// UsesEventTypes reports whether the year's listing is grouped by event.
// Earlier years have no discoverable oral designation.
func (c *CVPR) UsesEventTypes(year int) bool { return year >= firstOralYear }

// ListingURL returns the venue page; grouping by event type only exists
// from 2024 on.
func (c *CVPR) ListingURL(baseURL string, year int, eventType string, page int) (string, bool) {
	if page != 1 {
		return "", false
	}
	if baseURL == "" {
		baseURL = c.baseURL
	}
	u := fmt.Sprintf("%s/venue/CVPR.%d", strings.TrimRight(baseURL, "/"), year)
	if c.UsesEventTypes(year) {
		if eventType == "" {
			eventType = "oral"
		}
		u += "?group=" + titleCase(eventType)
	}
	return u, true
}

// Parse extracts one entry per paper panel.
func (c *CVPR) Parse(chunk fetch.Chunk, pctx ParseContext) ([]Entry, int, error) {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(chunk.HTML))
	if err != nil {
		return nil, 0, fmt.Errorf("parsing %s: %v: %w", chunk.URL, err, types.ErrStructuralParse)
	}

	var entries []Entry
	malformed := 0
	doc.Find(c.ItemSelector()).Each(func(_ int, s *goquery.Selection) {
		h := s.Find("h2.title").First()
		title := cleanText(h.Find("a.title-link").First().Text())
		if title == "" {
			title = cleanText(h.Text())
		}
		if title == "" {
			malformed++
			return
		}

		e := Entry{
			Title:    title,
			Authors:  cvprAuthors(s),
			Abstract: cleanText(s.Find("p.summary").First().Text()),
		}
		if e.Abstract == noAbstract {
			e.Abstract = ""
		}
		if c.UsesEventTypes(pctx.Year) {
			e.Type = titleCase(pctx.EventType)
		}

		if pdf := s.Find("a.title-pdf").First(); pdf.Length() > 0 {
			href := pdf.AttrOr("href", "")
			if strings.TrimSpace(href) == "" || href == "#" {
				href = pdf.AttrOr("data", "")
			}
			e.PDFURL = c.pdfLink(href)
		}
		if link, ok := h.Find("a.title-link").First().Attr("href"); ok {
			e.PaperPageURL = resolveRef(chunk.URL, link)
		}
		entries = append(entries, e)
	})
	return entries, malformed, nil
}

// pdfLink roots relative links at the CVF archive and drops placeholders.
func (c *CVPR) pdfLink(href string) string {
	href = strings.TrimSpace(href)
	if href == "" || href == "#" || strings.HasPrefix(strings.ToLower(href), "javascript:") {
		return ""
	}
	if !strings.HasPrefix(href, "http://") && !strings.HasPrefix(href, "https://") {
		href = cvfOpenAccessBase + strings.TrimLeft(href, "/")
	}
	return PDFURL(Classify(href))
}

// GuessPDFURL builds the CVF open-access path for a paper:
// content/CVPR<year>/papers/<Surname>_<Title_Words>_CVPR_<year>_paper.pdf.
func (c *CVPR) GuessPDFURL(rec *types.PaperRecord) string {
	surname := firstAuthorSurname(rec.Authors)
	words := cvfTitleWords(rec.Title)
	if surname == "" || words == "" {
		return ""
	}
	return fmt.Sprintf("%scontent/CVPR%d/papers/%s_%s_CVPR_%d_paper.pdf",
		cvfOpenAccessBase, rec.Year, surname, words, rec.Year)
}

func cvprAuthors(s *goquery.Selection) string {
	meta := s.Find("p.metainfo.authors").First()
	if meta.Length() == 0 {
		return ""
	}
	var names []string
	meta.Find("a.author").Each(func(_ int, a *goquery.Selection) {
		if n := cleanText(a.Text()); n != "" {
			names = append(names, n)
		}
	})
	if len(names) > 0 {
		return strings.Join(names, ", ")
	}
	return cleanText(strings.TrimPrefix(cleanText(meta.Text()), "Authors:"))
}

func firstAuthorSurname(authors string) string {
	first := strings.TrimSpace(strings.Split(authors, ",")[0])
	if first == "" || first == "Unknown" {
		return ""
	}
	fields := strings.Fields(first)
	return cvfTitleWords(fields[len(fields)-1])
}

// cvfTitleWords keeps letters, digits and hyphens and joins words with
// underscores, the way CVF names its files.
func cvfTitleWords(s string) string {
	var words []string
	for _, w := range strings.Fields(s) {
		var b strings.Builder
		for _, r := range w {
			if unicode.IsLetter(r) || unicode.IsDigit(r) || r == '-' {
				b.WriteRune(r)
			}
		}
		if b.Len() > 0 {
			words = append(words, b.String())
		}
	}
	return strings.Join(words, "_")
}
