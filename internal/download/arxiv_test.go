// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package download

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pdiddy/confpapers/pkg/types"
)

func arxivFeedXML(pdfBase string) string {
	return `<?xml version="1.0" encoding="UTF-8"?>
<feed xmlns="http://www.w3.org/2005/Atom">
  <entry>
    <title>Cooking Recipes for Robots</title>
    <author><name>Julia Child</name></author>
    <link title="pdf" href="` + pdfBase + `/pdf/9999.00001v1" rel="related" type="application/pdf"/>
  </entry>
  <entry>
    <title>Fast Thing: A Study</title>
    <author><name>Wei Li</name></author>
    <author><name>Ana Ruiz</name></author>
    <link href="` + pdfBase + `/abs/2401.00002v1" rel="alternate" type="text/html"/>
    <link title="pdf" href="` + pdfBase + `/pdf/2401.00002v1" rel="related" type="application/pdf"/>
  </entry>
</feed>`
}

func withArxivBase(t *testing.T, base string) {
	t.Helper()
	orig := arxivAPIBase
	arxivAPIBase = base
	t.Cleanup(func() { arxivAPIBase = orig })
}

func TestArxivSearch_Find(t *testing.T) {
	var srv *httptest.Server
	srv = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Contains(t, r.URL.Query().Get("search_query"), "Fast Thing A Study")
		w.Header().Set("Content-Type", "application/atom+xml")
		fmt.Fprint(w, arxivFeedXML(srv.URL))
	}))
	defer srv.Close()
	withArxivBase(t, srv.URL+"/api/query")

	a := &ArxivSearch{Client: srv.Client()}
	got, err := a.Find(context.Background(), "Fast Thing: A Study", "Wei Li, Ana Ruiz")
	require.NoError(t, err)
	assert.Equal(t, srv.URL+"/pdf/2401.00002v1", got)
}

func TestArxivSearch_NoMatch(t *testing.T) {
	var srv *httptest.Server
	srv = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/atom+xml")
		fmt.Fprint(w, arxivFeedXML(srv.URL))
	}))
	defer srv.Close()
	withArxivBase(t, srv.URL+"/api/query")

	a := &ArxivSearch{Client: srv.Client()}
	got, err := a.Find(context.Background(), "Quantum Gravity Unified", "Ada Lovelace")
	require.NoError(t, err)
	assert.Empty(t, got)
}

func TestArxivSearch_BlockedHTML(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/html")
		fmt.Fprint(w, "<html>blocked</html>")
	}))
	defer srv.Close()
	withArxivBase(t, srv.URL+"/api/query")

	a := &ArxivSearch{Client: srv.Client()}
	got, err := a.Find(context.Background(), "Fast Thing", "")
	assert.Error(t, err)
	assert.Empty(t, got)
}

func TestDownload_ArxivFallback(t *testing.T) {
	var srv *httptest.Server
	srv = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch {
		case r.URL.Path == "/api/query":
			w.Header().Set("Content-Type", "application/atom+xml")
			fmt.Fprint(w, arxivFeedXML(srv.URL))
		case strings.HasPrefix(r.URL.Path, "/pdf/2401.00002"):
			fmt.Fprint(w, fakePDF)
		default:
			http.NotFound(w, r)
		}
	}))
	defer srv.Close()
	withArxivBase(t, srv.URL+"/api/query")

	d := newDownloader(t, srv.Client())
	d.Arxiv = &ArxivSearch{Client: srv.Client()}
	rec := newRecord(srv.URL + "/dead.pdf")
	rec.Authors = "Wei Li, Ana Ruiz"

	out := d.Download(context.Background(), rec, nil)
	require.Equal(t, types.StatusSuccess, out.Status, out.Reason)
	assert.Equal(t, SourceArxiv, out.Source)
	assert.Equal(t, "arxiv", rec.DownloadMethod)
	assert.Equal(t, srv.URL+"/pdf/2401.00002v1", rec.PDFURL)
}

func TestTitleSimilarity(t *testing.T) {
	assert.InDelta(t, 1.0, titleSimilarity("Fast Thing: A Study", "fast thing a study"), 1e-9)
	assert.Equal(t, 0.0, titleSimilarity("", "x"))
	assert.Equal(t, 0.0, titleSimilarity("alpha beta", "gamma delta"))

	// {a b c} vs {a b d}: jaccard 2/4, lcs 2/3.
	assert.InDelta(t, 0.6*0.5+0.4*(2.0/3.0), titleSimilarity("a b c", "a b d"), 1e-9)
}

func TestAuthorSimilarity(t *testing.T) {
	assert.InDelta(t, 1.0, authorSimilarity("Wei Li, Ana Ruiz", "Ana Ruiz Wei Li"), 1e-9)
	assert.Equal(t, 0.0, authorSimilarity("Unknown", ""))
	assert.InDelta(t, 2.0/3.0, authorSimilarity("Ana Ruiz", "Ana Lopez Ruiz"), 1e-9)
}

func TestImportantWords(t *testing.T) {
	assert.Equal(t,
		[]string{"scaling", "laws", "neural", "language"},
		importantWords("Scaling Laws for Neural Language Models and More"))
}
