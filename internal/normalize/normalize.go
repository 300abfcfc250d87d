// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package normalize maps venue-native entries to canonical paper records.
// Everything here is pure: no I/O, no clock, no randomness.
package normalize

import (
	"regexp"
	"strconv"
	"strings"
	"unicode"
	"unicode/utf16"

	"github.com/pdiddy/confpapers/internal/venue"
	"github.com/pdiddy/confpapers/pkg/types"
)

// maxFilenameRunes bounds the sanitized title used in PDF file names.
const maxFilenameRunes = 150

const unknownAuthors = "Unknown"

// Context carries the per-target values stamped onto every record.
type Context struct {
	// Venue is the conference tag, e.g. "ICML".
	Venue string
	Year  int

	// Method is the adapter tag written to download_method.
	Method string
}

// Record converts an entry into a pending PaperRecord. The entry's title
// must be non-empty; adapters drop title-less items before this point.
func Record(e venue.Entry, ctx Context) types.PaperRecord {
	title := strings.TrimSpace(e.Title)
	authors := strings.TrimSpace(e.Authors)
	if authors == "" {
		authors = unknownAuthors
	}
	return types.PaperRecord{
		ID:             TitleID(title),
		Title:          title,
		Authors:        authors,
		Abstract:       strings.TrimSpace(e.Abstract),
		Conference:     ctx.Venue,
		Year:           ctx.Year,
		PDFURL:         strings.TrimSpace(e.PDFURL),
		DownloadStatus: types.StatusPending,
		DownloadMethod: ctx.Method,
		SearchQueries:  SearchQueries(title),
		PaperPageURL:   e.PaperPageURL,
		Type:           e.Type,
	}
}

// TitleID returns the record id for a title: the 32-bit string hash
// h = h*31 + c over UTF-16 code units with int32 wrap-around, rendered as
// the absolute value in base 36. The browsing UI computes the same value
// with (h << 5) - h + c | 0, so the two must stay in lockstep.
func TitleID(title string) string {
	var h int32
	for _, c := range utf16.Encode([]rune(strings.TrimSpace(title))) {
		h = h*31 + int32(c)
	}
	v := int64(h)
	if v < 0 {
		v = -v
	}
	return strconv.FormatInt(v, 36)
}

// SanitizeTitle makes a title safe for use in a file name: letters,
// digits, space, '.', '_' and '-' are kept, anything else becomes '_'.
// The result is trimmed and truncated to 150 runes.
func SanitizeTitle(title string) string {
	var b strings.Builder
	for _, r := range title {
		switch {
		case unicode.IsLetter(r), unicode.IsDigit(r), r == ' ', r == '.', r == '_', r == '-':
			b.WriteRune(r)
		default:
			b.WriteRune('_')
		}
	}
	out := []rune(strings.TrimSpace(b.String()))
	if len(out) > maxFilenameRunes {
		out = out[:maxFilenameRunes]
	}
	return strings.TrimRight(string(out), " ")
}

var (
	nonWord   = regexp.MustCompile(`[^\p{L}\p{N}_\s]+`)
	venueWord = regexp.MustCompile(`(?i)\b(neurips|icml|iclr|cvpr|eccv|aaai|ijcai|acl|emnlp|naacl|conference|proceedings|workshop)\b`)
)

// CleanTitle strips punctuation and conference names from a title, leaving
// the words an arXiv search should match on.
func CleanTitle(title string) string {
	s := nonWord.ReplaceAllString(title, " ")
	s = venueWord.ReplaceAllString(s, "")
	return strings.Join(strings.Fields(s), " ")
}

// SearchQueries builds the fallback queries a reader can use when no PDF
// link is known. The google and arxiv keys are always present.
func SearchQueries(title string) map[string]string {
	title = strings.TrimSpace(title)
	return map[string]string{
		types.QueryGoogle:  `"` + title + `" filetype:pdf`,
		types.QueryArxiv:   CleanTitle(title),
		types.QueryScholar: title,
	}
}
