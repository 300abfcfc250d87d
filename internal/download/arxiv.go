// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package download

import (
	"context"
	"encoding/xml"
	"fmt"
	"net/http"
	"net/url"
	"regexp"
	"strings"

	"golang.org/x/time/rate"

	"github.com/pdiddy/confpapers/internal/httputil"
	"github.com/pdiddy/confpapers/internal/normalize"
	"github.com/pdiddy/confpapers/pkg/types"
)

// arxivAPIBase is the arXiv search endpoint. Declared as a var so tests
// can substitute an httptest server.
var arxivAPIBase = "https://export.arxiv.org/api/query"

const (
	matchThreshold = 0.4
	titleWeight    = 0.7
	authorWeight   = 0.3
	arxivResults   = 5
)

// ArxivSearch finds a paper's PDF on arXiv by title, scoring candidates on
// title and author overlap.
type ArxivSearch struct {
	Client *http.Client
	Config types.HTTPConfig

	// Limiter paces API calls; arXiv asks for one request every 3 seconds.
	Limiter *rate.Limiter
}

// Find returns the PDF URL of the best-scoring arXiv entry above the
// match threshold, or "" when nothing matches.
func (a *ArxivSearch) Find(ctx context.Context, title, authors string) (string, error) {
	clean := normalize.CleanTitle(title)
	if clean == "" {
		return "", nil
	}

	queries := []string{`ti:"` + clean + `"`, `all:"` + clean + `"`}
	if words := strings.Fields(clean); len(words) > 5 {
		if kw := importantWords(clean); len(kw) > 0 {
			queries = append(queries, `all:"`+strings.Join(kw, " ")+`"`)
		}
	}

	var lastErr error
	for _, q := range queries {
		entries, err := a.query(ctx, q)
		if err != nil {
			if ctx.Err() != nil {
				return "", ctx.Err()
			}
			lastErr = err
			continue
		}
		if u := bestMatch(clean, authors, entries); u != "" {
			return u, nil
		}
	}
	return "", lastErr
}

func (a *ArxivSearch) query(ctx context.Context, q string) ([]arxivEntry, error) {
	if a.Limiter != nil {
		if err := a.Limiter.Wait(ctx); err != nil {
			return nil, err
		}
	}
	u := fmt.Sprintf("%s?search_query=%s&start=0&max_results=%d", arxivAPIBase, url.QueryEscape(q), arxivResults)
	req, err := httputil.NewRequest(ctx, u, a.Config, "application/atom+xml")
	if err != nil {
		return nil, err
	}
	client := a.Client
	if client == nil {
		client = http.DefaultClient
	}
	resp, err := client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("arXiv API request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("arXiv API returned HTTP %d", resp.StatusCode)
	}
	if strings.Contains(strings.ToLower(resp.Header.Get("Content-Type")), "html") {
		return nil, fmt.Errorf("arXiv API returned an HTML page")
	}

	var feed arxivFeed
	if err := xml.NewDecoder(resp.Body).Decode(&feed); err != nil {
		return nil, fmt.Errorf("parsing arXiv response: %w", err)
	}
	return feed.Entries, nil
}

// arXiv Atom feed XML structures.
type arxivFeed struct {
	Entries []arxivEntry `xml:"entry"`
}

type arxivEntry struct {
	Title   string        `xml:"title"`
	Authors []arxivAuthor `xml:"author"`
	Links   []arxivLink   `xml:"link"`
}

type arxivAuthor struct {
	Name string `xml:"name"`
}

type arxivLink struct {
	Href  string `xml:"href,attr"`
	Title string `xml:"title,attr"`
}

func (e arxivEntry) pdfLink() string {
	for _, l := range e.Links {
		if l.Title == "pdf" && l.Href != "" {
			return l.Href
		}
	}
	return ""
}

func bestMatch(title, authors string, entries []arxivEntry) string {
	var best string
	bestScore := 0.0
	for _, e := range entries {
		names := make([]string, 0, len(e.Authors))
		for _, au := range e.Authors {
			names = append(names, strings.TrimSpace(au.Name))
		}
		score := titleWeight*titleSimilarity(title, e.Title) + authorWeight*authorSimilarity(authors, strings.Join(names, " "))
		if score > matchThreshold && score > bestScore {
			if link := e.pdfLink(); link != "" {
				best, bestScore = link, score
			}
		}
	}
	return best
}

var stopWords = map[string]bool{
	"the": true, "a": true, "an": true, "and": true, "or": true, "but": true,
	"in": true, "on": true, "at": true, "to": true, "for": true, "of": true,
	"with": true, "by": true, "is": true, "are": true, "was": true, "were": true,
	"be": true, "been": true, "being": true,
}

// importantWords keeps the first four non-stop words longer than three
// characters.
func importantWords(s string) []string {
	var out []string
	for _, w := range strings.Fields(strings.ToLower(s)) {
		if stopWords[w] || len(w) <= 3 {
			continue
		}
		out = append(out, w)
		if len(out) == 4 {
			break
		}
	}
	return out
}

var punct = regexp.MustCompile(`[^\p{L}\p{N}_\s]+`)

func titleWords(s string) []string {
	return strings.Fields(punct.ReplaceAllString(strings.ToLower(s), " "))
}

// titleSimilarity blends word-set Jaccard (0.6) with the longest common
// word subsequence ratio (0.4).
func titleSimilarity(a, b string) float64 {
	wa, wb := titleWords(a), titleWords(b)
	if len(wa) == 0 || len(wb) == 0 {
		return 0
	}
	return 0.6*jaccard(wa, wb) + 0.4*float64(lcs(wa, wb))/float64(max(len(wa), len(wb)))
}

var surname = regexp.MustCompile(`\b[A-Z][a-z]+\b`)

// authorSimilarity is the Jaccard overlap of capitalized name tokens.
func authorSimilarity(a, b string) float64 {
	na, nb := surname.FindAllString(a, -1), surname.FindAllString(b, -1)
	if len(na) == 0 || len(nb) == 0 {
		return 0
	}
	for i := range na {
		na[i] = strings.ToLower(na[i])
	}
	for i := range nb {
		nb[i] = strings.ToLower(nb[i])
	}
	return jaccard(na, nb)
}

func jaccard(a, b []string) float64 {
	set := make(map[string]int, len(a)+len(b))
	for _, w := range a {
		set[w] |= 1
	}
	for _, w := range b {
		set[w] |= 2
	}
	inter := 0
	for _, v := range set {
		if v == 3 {
			inter++
		}
	}
	return float64(inter) / float64(len(set))
}

func lcs(a, b []string) int {
	prev := make([]int, len(b)+1)
	cur := make([]int, len(b)+1)
	for i := 1; i <= len(a); i++ {
		for j := 1; j <= len(b); j++ {
			if a[i-1] == b[j-1] {
				cur[j] = prev[j-1] + 1
			} else {
				cur[j] = max(prev[j], cur[j-1])
			}
		}
		prev, cur = cur, prev
	}
	return prev[len(b)]
}
