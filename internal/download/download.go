// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package download materializes paper PDFs on disk. It resolves a source
// URL for each record, fetches it with bounded retries, validates that the
// body is a PDF, and writes it atomically under the target's pdfs/ dir.
package download

import (
	"bufio"
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"math"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"time"

	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/pdiddy/confpapers/internal/httputil"
	"github.com/pdiddy/confpapers/internal/normalize"
	"github.com/pdiddy/confpapers/pkg/types"
)

const (
	pdfsDir            = "pdfs"
	pdfMagic           = "%PDF"
	defaultMaxAttempts = 3
	defaultMinPDFBytes = 1024
)

// Source tags recorded in an Outcome.
const (
	SourceExisting = "existing"
	SourcePDFURL   = "pdf_url"
	SourceGuess    = "guess"
	SourceArxiv    = "arxiv"
)

// Guesser constructs a best-effort PDF URL from record metadata. Venue
// adapters that know their archive's naming scheme implement it.
type Guesser interface {
	GuessPDFURL(rec *types.PaperRecord) string
}

// Outcome describes what happened to one record.
type Outcome struct {
	Status types.DownloadStatus

	// Source is where the PDF came from: existing, pdf_url, guess or arxiv.
	Source string

	URL   string
	Path  string
	Bytes int64

	// Reason explains a failure; empty on success.
	Reason string
}

// Skipped reports whether the PDF was already on disk.
func (o Outcome) Skipped() bool { return o.Source == SourceExisting }

// Downloader fetches PDFs for paper records. A zero Limiter means no
// pacing; a nil Arxiv disables the arXiv fallback.
type Downloader struct {
	Client  *http.Client
	Config  types.DownloadConfig
	OutDir  string
	Limiter *rate.Limiter
	Arxiv   *ArxivSearch
	Logger  *zap.Logger

	sleep func(context.Context, time.Duration) error
}

// NewLimiter returns a token bucket allowing perSecond requests with a
// burst of one. A non-positive rate disables pacing.
func NewLimiter(perSecond float64) *rate.Limiter {
	if perSecond <= 0 {
		return rate.NewLimiter(rate.Inf, 1)
	}
	return rate.NewLimiter(rate.Limit(perSecond), 1)
}

// LocalPath returns where a record's PDF lives:
// <out>/<venue>_<year>_papers/pdfs/<id>_<sanitized title>.pdf.
func LocalPath(outDir string, rec *types.PaperRecord) string {
	dir := types.Target{Venue: rec.Conference, Year: rec.Year}.Dir(outDir)
	return filepath.Join(dir, pdfsDir, rec.ID+"_"+normalize.SanitizeTitle(rec.Title)+".pdf")
}

// Download resolves and fetches the record's PDF, updating rec in place.
// The guesser may be nil. Failures are recorded on rec and in the outcome;
// Download never returns an error and never drops the record.
func (d *Downloader) Download(ctx context.Context, rec *types.PaperRecord, guesser Guesser) Outcome {
	path := LocalPath(d.OutDir, rec)
	log := d.logger().With(zap.String("id", rec.ID))

	if info, err := os.Stat(path); err == nil && info.Size() > 0 {
		rec.LocalPDFPath = path
		rec.DownloadStatus = types.StatusSuccess
		log.Debug("pdf already on disk", zap.String("path", path))
		return Outcome{Status: types.StatusSuccess, Source: SourceExisting, URL: rec.PDFURL, Path: path, Bytes: info.Size()}
	}

	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return d.fail(rec, fmt.Sprintf("creating directory: %v", err))
	}

	var reasons []string
	try := func(source, url string) (Outcome, bool) {
		n, err := d.fetch(ctx, url, path)
		if err != nil {
			log.Info("pdf fetch failed", zap.String("source", source), zap.String("url", url), zap.Error(err))
			reasons = append(reasons, fmt.Sprintf("%s: %v", source, err))
			return Outcome{}, false
		}
		rec.PDFURL = url
		rec.LocalPDFPath = path
		rec.DownloadStatus = types.StatusSuccess
		if source == SourceArxiv {
			rec.DownloadMethod = SourceArxiv
		}
		return Outcome{Status: types.StatusSuccess, Source: source, URL: url, Path: path, Bytes: n}, true
	}

	if u := strings.TrimSpace(rec.PDFURL); u != "" {
		if out, ok := try(SourcePDFURL, u); ok {
			return out
		}
	} else if guesser != nil {
		if u := guesser.GuessPDFURL(rec); u != "" {
			if out, ok := try(SourceGuess, u); ok {
				return out
			}
		}
	}

	if ctx.Err() == nil && d.Arxiv != nil {
		u, err := d.Arxiv.Find(ctx, rec.Title, rec.Authors)
		switch {
		case err != nil:
			reasons = append(reasons, fmt.Sprintf("arxiv search: %v", err))
		case u != "":
			if out, ok := try(SourceArxiv, u); ok {
				return out
			}
		}
	}

	if len(reasons) == 0 {
		return d.fail(rec, "no PDF source")
	}
	return d.fail(rec, strings.Join(reasons, "; "))
}

func (d *Downloader) fail(rec *types.PaperRecord, reason string) Outcome {
	rec.DownloadStatus = types.StatusFailed
	rec.LocalPDFPath = ""
	return Outcome{Status: types.StatusFailed, URL: rec.PDFURL, Reason: reason}
}

// permanentError marks a response that retrying cannot fix.
type permanentError struct{ msg string }

func (e *permanentError) Error() string { return e.msg }

func permanent(format string, args ...any) error {
	return fmt.Errorf("%w: %w", &permanentError{msg: fmt.Sprintf(format, args...)}, types.ErrDownload)
}

// fetch downloads url to dest with up to MaxAttempts tries. 404 and
// non-PDF responses fail immediately.
func (d *Downloader) fetch(ctx context.Context, url, dest string) (int64, error) {
	attempts := d.Config.MaxAttempts
	if attempts <= 0 {
		attempts = defaultMaxAttempts
	}
	var err error
	for attempt := 0; attempt < attempts; attempt++ {
		if attempt > 0 {
			backoff := time.Duration(math.Pow(2, float64(attempt-1))) * httputil.RetryBaseDelay
			if serr := d.wait(ctx, backoff); serr != nil {
				return 0, serr
			}
		}
		var n int64
		n, err = d.fetchOnce(ctx, url, dest)
		if err == nil {
			return n, nil
		}
		var perm *permanentError
		if errors.As(err, &perm) || ctx.Err() != nil {
			return 0, err
		}
	}
	return 0, fmt.Errorf("after %d attempts: %w", attempts, err)
}

func (d *Downloader) fetchOnce(ctx context.Context, url, dest string) (int64, error) {
	if d.Limiter != nil {
		if err := d.Limiter.Wait(ctx); err != nil {
			return 0, err
		}
	}
	req, err := httputil.NewRequest(ctx, url, d.Config.HTTPConfig, "application/pdf,*/*;q=0.8")
	if err != nil {
		return 0, err
	}
	resp, err := d.client().Do(req)
	if err != nil {
		return 0, fmt.Errorf("HTTP request: %v: %w", err, types.ErrDownload)
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusOK:
	case httputil.Retryable(resp.StatusCode):
		return 0, fmt.Errorf("HTTP %d: %w", resp.StatusCode, types.ErrDownload)
	default:
		return 0, permanent("HTTP %d", resp.StatusCode)
	}

	if ct := strings.ToLower(resp.Header.Get("Content-Type")); strings.Contains(ct, "text/html") {
		return 0, permanent("non-PDF content (%s)", ct)
	}

	body := bufio.NewReader(resp.Body)
	head, _ := body.Peek(len(pdfMagic))
	if !bytes.Equal(head, []byte(pdfMagic)) {
		return 0, permanent("body is not a PDF")
	}

	tmp, err := os.CreateTemp(filepath.Dir(dest), ".download-*.tmp")
	if err != nil {
		return 0, fmt.Errorf("creating temp file: %w", err)
	}
	tmpPath := tmp.Name()

	n, copyErr := io.Copy(tmp, body)
	closeErr := tmp.Close()
	if copyErr != nil {
		os.Remove(tmpPath)
		return 0, fmt.Errorf("writing download: %v: %w", copyErr, types.ErrDownload)
	}
	if closeErr != nil {
		os.Remove(tmpPath)
		return 0, fmt.Errorf("closing temp file: %w", closeErr)
	}

	minBytes := d.Config.MinPDFBytes
	if minBytes <= 0 {
		minBytes = defaultMinPDFBytes
	}
	if n < minBytes {
		os.Remove(tmpPath)
		return 0, permanent("file too small (%d bytes)", n)
	}

	if err := os.Rename(tmpPath, dest); err != nil {
		os.Remove(tmpPath)
		return 0, fmt.Errorf("renaming temp file: %w", err)
	}
	return n, nil
}

func (d *Downloader) client() *http.Client {
	if d.Client != nil {
		return d.Client
	}
	return http.DefaultClient
}

func (d *Downloader) logger() *zap.Logger {
	if d.Logger != nil {
		return d.Logger
	}
	return zap.NewNop()
}

func (d *Downloader) wait(ctx context.Context, dur time.Duration) error {
	if d.sleep != nil {
		return d.sleep(ctx, dur)
	}
	t := time.NewTimer(dur)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
