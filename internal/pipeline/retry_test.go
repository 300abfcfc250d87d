// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package pipeline

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pdiddy/confpapers/internal/download"
	"github.com/pdiddy/confpapers/internal/manifest"
	"github.com/pdiddy/confpapers/internal/normalize"
	"github.com/pdiddy/confpapers/pkg/types"
)

func retryRecord(title string, status types.DownloadStatus, pdfURL string) types.PaperRecord {
	return types.PaperRecord{
		ID:             normalize.TitleID(title),
		Title:          title,
		Authors:        "Unknown",
		Conference:     "ICML",
		Year:           2025,
		PDFURL:         pdfURL,
		DownloadStatus: status,
		DownloadMethod: "icml",
		SearchQueries:  normalize.SearchQueries(title),
	}
}

func TestRetry_OnlyTouchesMissingPDFs(t *testing.T) {
	var mu sync.Mutex
	hits := map[string]int{}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		mu.Lock()
		hits[r.URL.Path]++
		mu.Unlock()
		fmt.Fprint(w, fakePDF)
	}))
	defer srv.Close()

	out := t.TempDir()
	kept := retryRecord("Kept Paper", types.StatusSuccess, srv.URL+"/kept.pdf")
	kept.LocalPDFPath = download.LocalPath(out, &kept)
	require.NoError(t, os.MkdirAll(filepath.Dir(kept.LocalPDFPath), 0o755))
	require.NoError(t, os.WriteFile(kept.LocalPDFPath, []byte(fakePDF), 0o644))

	vanished := retryRecord("Vanished Paper", types.StatusSuccess, srv.URL+"/vanished.pdf")
	vanished.LocalPDFPath = download.LocalPath(out, &vanished)

	recovered := retryRecord("Recovered Paper", types.StatusFailed, srv.URL+"/recovered.pdf")
	hopeless := retryRecord("Hopeless Paper", types.StatusFailed, "")

	path := manifest.Path(out, "ICML", 2025)
	require.NoError(t, manifest.Write(path, []types.PaperRecord{kept, vanished, recovered, hopeless}))

	c, buf := newTestController(t, testConfig(out), srv.Client())
	stats := c.Retry(context.Background(), []types.Target{{Venue: "icml", Year: 2025}})

	require.Len(t, stats.Targets, 1)
	ts := stats.Targets[0]
	require.NoError(t, ts.Err)
	assert.Equal(t, 1, stats.Processed())
	assert.Equal(t, 1, ts.Existing)
	assert.Equal(t, 2, ts.Downloaded)
	assert.Equal(t, 1, ts.Failed)
	assert.Equal(t, 0, hits["/kept.pdf"])
	assert.Equal(t, 1, hits["/vanished.pdf"])
	assert.Equal(t, 1, hits["/recovered.pdf"])
	assert.Contains(t, buf.String(), "retrying: ICML 2025")

	recs := readManifest(t, out, "ICML", 2025)
	require.Len(t, recs, 4)
	assert.Equal(t, kept, recs[0])
	for _, r := range recs[1:3] {
		assert.Equal(t, types.StatusSuccess, r.DownloadStatus, r.Title)
		assert.FileExists(t, r.LocalPDFPath)
	}
	assert.Equal(t, types.StatusFailed, recs[3].DownloadStatus)
	assert.Empty(t, recs[3].LocalPDFPath)
	assert.FileExists(t, filepath.Join(out, "icml_2025_papers", summaryFileName))
}

func TestRetry_MissingManifestSkipsTarget(t *testing.T) {
	out := t.TempDir()
	c, buf := newTestController(t, testConfig(out), nil)

	stats := c.Retry(context.Background(), []types.Target{{Venue: "neurips", Year: 2024}})
	require.Len(t, stats.Targets, 1)
	assert.ErrorIs(t, stats.Targets[0].Err, os.ErrNotExist)
	assert.Equal(t, 0, stats.Processed())
	assert.Contains(t, buf.String(), "skipped: NeurIPS 2024")
	assert.NoFileExists(t, manifest.Path(out, "NeurIPS", 2024))
}

func TestRetry_CancelledLeavesRecordsFailed(t *testing.T) {
	out := t.TempDir()
	vanished := retryRecord("Vanished Paper", types.StatusSuccess, "http://127.0.0.1:1/never.pdf")
	vanished.LocalPDFPath = download.LocalPath(out, &vanished)
	require.NoError(t, manifest.Write(manifest.Path(out, "ICML", 2025), []types.PaperRecord{vanished}))

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	c, _ := newTestController(t, testConfig(out), nil)
	stats := c.Retry(ctx, []types.Target{{Venue: "icml", Year: 2025}})

	ts := stats.Targets[0]
	assert.ErrorIs(t, ts.Err, context.Canceled)
	assert.Equal(t, 1, ts.Failed)
	recs := readManifest(t, out, "ICML", 2025)
	require.Len(t, recs, 1)
	assert.Equal(t, types.StatusFailed, recs[0].DownloadStatus)
	assert.Empty(t, recs[0].LocalPDFPath)
}
