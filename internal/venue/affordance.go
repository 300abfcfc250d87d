// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package venue

import (
	"net/url"
	"regexp"
	"strings"
)

// LinkType classifies a PDF-ish affordance found on a page.
type LinkType int

const (
	LinkNone LinkType = iota
	LinkOpenReview
	LinkArxiv
	LinkPDF
)

func (t LinkType) String() string {
	switch t {
	case LinkOpenReview:
		return "openreview"
	case LinkArxiv:
		return "arxiv"
	case LinkPDF:
		return "pdf"
	default:
		return "none"
	}
}

// Base URLs for affordance conversion. Declared as vars so tests can
// substitute httptest servers.
var (
	openReviewPDFBase = "https://openreview.net/pdf?id="
	arxivPDFBase      = "https://arxiv.org/pdf/"
)

// arxivAbsPattern matches arXiv abstract or PDF links and captures the id.
var arxivAbsPattern = regexp.MustCompile(`arxiv\.org/(?:abs|pdf)/(\d{4}\.\d{4,5}(?:v\d+)?)`)

// placeholderIDs are values sites put in OpenReview links for papers that
// have no forum yet.
var placeholderIDs = map[string]bool{
	"":          true,
	"null":      true,
	"undefined": true,
	"none":      true,
	"tbd":       true,
}

// Classify determines what a link points to and returns its normalized
// form: the OpenReview paper id, the arXiv id, or the absolute PDF URL.
// Placeholders ("#", "javascript:...", an OpenReview link with no paper
// id) classify as LinkNone.
func Classify(href string) (LinkType, string) {
	href = strings.TrimSpace(href)
	if href == "" || strings.HasPrefix(href, "#") || strings.HasPrefix(strings.ToLower(href), "javascript:") {
		return LinkNone, ""
	}

	u, err := url.Parse(href)
	if err != nil || !u.IsAbs() || (u.Scheme != "http" && u.Scheme != "https") {
		return LinkNone, ""
	}
	host := strings.TrimPrefix(strings.ToLower(u.Hostname()), "www.")

	if host == "openreview.net" {
		id := strings.TrimSpace(u.Query().Get("id"))
		if placeholderIDs[strings.ToLower(id)] {
			return LinkNone, ""
		}
		switch u.Path {
		case "/forum", "/pdf":
			return LinkOpenReview, id
		}
		return LinkNone, ""
	}

	if m := arxivAbsPattern.FindStringSubmatch(href); m != nil {
		return LinkArxiv, m[1]
	}

	if strings.HasSuffix(strings.ToLower(u.Path), ".pdf") {
		return LinkPDF, u.String()
	}
	return LinkNone, ""
}

// PDFURL returns the download URL for a classified link.
func PDFURL(t LinkType, normalized string) string {
	switch t {
	case LinkOpenReview:
		return openReviewPDFBase + url.QueryEscape(normalized)
	case LinkArxiv:
		return arxivPDFBase + normalized
	case LinkPDF:
		return normalized
	default:
		return ""
	}
}

// UsableLink resolves href against base and returns a PDF URL, or "" when
// the affordance is missing or a placeholder.
func UsableLink(base, href string) string {
	abs := resolveRef(base, href)
	if abs == "" {
		return ""
	}
	return PDFURL(Classify(abs))
}
