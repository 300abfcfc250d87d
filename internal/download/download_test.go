// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package download

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pdiddy/confpapers/pkg/types"
)

var fakePDF = "%PDF-1.4\n" + strings.Repeat("x", 2048)

func noSleep(context.Context, time.Duration) error { return nil }

func newDownloader(t *testing.T, client *http.Client) *Downloader {
	t.Helper()
	return &Downloader{
		Client: client,
		OutDir: t.TempDir(),
		sleep:  noSleep,
	}
}

func newRecord(pdfURL string) *types.PaperRecord {
	return &types.PaperRecord{
		ID:             "abc123",
		Title:          "Fast Thing: A Study",
		Authors:        "Wei Li",
		Conference:     types.VenueICML,
		Year:           2025,
		PDFURL:         pdfURL,
		DownloadStatus: types.StatusPending,
		DownloadMethod: "icml",
		SearchQueries:  map[string]string{types.QueryGoogle: `"Fast Thing: A Study" filetype:pdf`},
	}
}

// counting wraps a handler and counts requests.
func counting(h http.HandlerFunc) (http.HandlerFunc, *atomic.Int32) {
	var n atomic.Int32
	return func(w http.ResponseWriter, r *http.Request) {
		n.Add(1)
		h(w, r)
	}, &n
}

func TestLocalPath(t *testing.T) {
	rec := newRecord("")
	assert.Equal(t, filepath.Join("out", "icml_2025_papers", "pdfs", "abc123_Fast Thing_ A Study.pdf"), LocalPath("out", rec))
}

func TestDownload_FromPDFURL(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.NotEmpty(t, r.Header.Get("User-Agent"))
		fmt.Fprint(w, fakePDF)
	}))
	defer srv.Close()

	d := newDownloader(t, srv.Client())
	rec := newRecord(srv.URL + "/p.pdf")
	out := d.Download(context.Background(), rec, nil)

	require.Equal(t, types.StatusSuccess, out.Status, out.Reason)
	assert.Equal(t, SourcePDFURL, out.Source)
	assert.Equal(t, int64(len(fakePDF)), out.Bytes)
	assert.Equal(t, types.StatusSuccess, rec.DownloadStatus)
	assert.Equal(t, "icml", rec.DownloadMethod)
	assert.Equal(t, LocalPath(d.OutDir, rec), rec.LocalPDFPath)
	assert.True(t, rec.Succeeded())

	data, err := os.ReadFile(rec.LocalPDFPath)
	require.NoError(t, err)
	assert.Equal(t, fakePDF, string(data))

	// No temp files left behind.
	entries, err := os.ReadDir(filepath.Dir(rec.LocalPDFPath))
	require.NoError(t, err)
	assert.Len(t, entries, 1)
}

func TestDownload_ExistingFileSkipsNetwork(t *testing.T) {
	h, hits := counting(func(w http.ResponseWriter, r *http.Request) { fmt.Fprint(w, fakePDF) })
	srv := httptest.NewServer(h)
	defer srv.Close()

	d := newDownloader(t, srv.Client())
	rec := newRecord(srv.URL + "/p.pdf")
	path := LocalPath(d.OutDir, rec)
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
	require.NoError(t, os.WriteFile(path, []byte(fakePDF), 0o644))

	out := d.Download(context.Background(), rec, nil)
	assert.Equal(t, types.StatusSuccess, out.Status)
	assert.True(t, out.Skipped())
	assert.Equal(t, path, rec.LocalPDFPath)
	assert.Equal(t, int32(0), hits.Load())
}

func TestDownload_EmptyExistingFileIsRefetched(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) { fmt.Fprint(w, fakePDF) }))
	defer srv.Close()

	d := newDownloader(t, srv.Client())
	rec := newRecord(srv.URL + "/p.pdf")
	path := LocalPath(d.OutDir, rec)
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
	require.NoError(t, os.WriteFile(path, nil, 0o644))

	out := d.Download(context.Background(), rec, nil)
	assert.Equal(t, SourcePDFURL, out.Source)
	assert.Equal(t, types.StatusSuccess, rec.DownloadStatus)
}

func TestDownload_PermanentFailures(t *testing.T) {
	tests := []struct {
		name       string
		handler    http.HandlerFunc
		wantReason string
	}{
		{
			name:       "not found",
			handler:    func(w http.ResponseWriter, r *http.Request) { http.NotFound(w, r) },
			wantReason: "HTTP 404",
		},
		{
			name: "html page",
			handler: func(w http.ResponseWriter, r *http.Request) {
				w.Header().Set("Content-Type", "text/html; charset=utf-8")
				fmt.Fprint(w, "<html>captcha</html>")
			},
			wantReason: "non-PDF content",
		},
		{
			name: "binary that is not a pdf",
			handler: func(w http.ResponseWriter, r *http.Request) {
				w.Header().Set("Content-Type", "application/octet-stream")
				fmt.Fprint(w, "GIF89a"+strings.Repeat("x", 4096))
			},
			wantReason: "not a PDF",
		},
		{
			name:       "too small",
			handler:    func(w http.ResponseWriter, r *http.Request) { fmt.Fprint(w, "%PDF-1.4 tiny") },
			wantReason: "too small",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h, hits := counting(tt.handler)
			srv := httptest.NewServer(h)
			defer srv.Close()

			d := newDownloader(t, srv.Client())
			rec := newRecord(srv.URL + "/p.pdf")
			out := d.Download(context.Background(), rec, nil)

			assert.Equal(t, types.StatusFailed, out.Status)
			assert.Contains(t, out.Reason, tt.wantReason)
			assert.Equal(t, int32(1), hits.Load(), "permanent failures are not retried")
			assert.Equal(t, types.StatusFailed, rec.DownloadStatus)
			assert.Equal(t, srv.URL+"/p.pdf", rec.PDFURL, "record keeps its URL")
			assert.Empty(t, rec.LocalPDFPath)
			assert.NoFileExists(t, LocalPath(d.OutDir, rec))
		})
	}
}

func TestDownload_RetriesTransient(t *testing.T) {
	var n atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if n.Add(1) == 1 {
			w.WriteHeader(http.StatusServiceUnavailable)
			return
		}
		fmt.Fprint(w, fakePDF)
	}))
	defer srv.Close()

	d := newDownloader(t, srv.Client())
	rec := newRecord(srv.URL + "/p.pdf")
	out := d.Download(context.Background(), rec, nil)
	assert.Equal(t, types.StatusSuccess, out.Status, out.Reason)
	assert.Equal(t, int32(2), n.Load())
}

func TestDownload_ExhaustsAttempts(t *testing.T) {
	h, hits := counting(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	})
	srv := httptest.NewServer(h)
	defer srv.Close()

	d := newDownloader(t, srv.Client())
	out := d.Download(context.Background(), newRecord(srv.URL+"/p.pdf"), nil)
	assert.Equal(t, types.StatusFailed, out.Status)
	assert.Contains(t, out.Reason, "after 3 attempts")
	assert.Equal(t, int32(3), hits.Load())
}

type fixedGuess string

func (g fixedGuess) GuessPDFURL(*types.PaperRecord) string { return string(g) }

func TestDownload_UsesGuessWhenNoURL(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/guessed.pdf" {
			http.NotFound(w, r)
			return
		}
		fmt.Fprint(w, fakePDF)
	}))
	defer srv.Close()

	d := newDownloader(t, srv.Client())
	rec := newRecord("")
	out := d.Download(context.Background(), rec, fixedGuess(srv.URL+"/guessed.pdf"))
	assert.Equal(t, SourceGuess, out.Source)
	assert.Equal(t, srv.URL+"/guessed.pdf", rec.PDFURL)
	assert.Equal(t, types.StatusSuccess, rec.DownloadStatus)
}

func TestDownload_FailedGuessLeavesURLUnset(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	defer srv.Close()

	d := newDownloader(t, srv.Client())
	rec := newRecord("")
	out := d.Download(context.Background(), rec, fixedGuess(srv.URL+"/guessed.pdf"))
	assert.Equal(t, types.StatusFailed, out.Status)
	assert.Empty(t, rec.PDFURL)
}

func TestDownload_Unresolved(t *testing.T) {
	d := newDownloader(t, nil)
	rec := newRecord("")
	out := d.Download(context.Background(), rec, nil)
	assert.Equal(t, types.StatusFailed, out.Status)
	assert.Equal(t, "no PDF source", out.Reason)
	assert.Equal(t, types.StatusFailed, rec.DownloadStatus)
	assert.NotEmpty(t, rec.SearchQueries[types.QueryGoogle])
}

func TestDownload_CancelledContext(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusServiceUnavailable)
	}))
	defer srv.Close()

	d := newDownloader(t, srv.Client())
	d.sleep = nil
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	out := d.Download(ctx, newRecord(srv.URL+"/p.pdf"), nil)
	assert.Equal(t, types.StatusFailed, out.Status)
}

func TestNewLimiter(t *testing.T) {
	assert.True(t, NewLimiter(0).Allow())
	l := NewLimiter(1)
	assert.True(t, l.Allow())
	assert.False(t, l.Allow())
}
