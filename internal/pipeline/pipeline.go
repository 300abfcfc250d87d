// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package pipeline drives venue/year targets through fetch, parse,
// normalize, download and manifest, collecting per-target statistics.
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
	"golang.org/x/time/rate"

	"github.com/pdiddy/confpapers/internal/download"
	"github.com/pdiddy/confpapers/internal/fetch"
	"github.com/pdiddy/confpapers/internal/logging"
	"github.com/pdiddy/confpapers/internal/manifest"
	"github.com/pdiddy/confpapers/internal/normalize"
	"github.com/pdiddy/confpapers/internal/venue"
	"github.com/pdiddy/confpapers/pkg/types"
)

const logFileName = "download_log.txt"

// arxivInterval is the pause arXiv asks API clients to keep between calls.
var arxivInterval = 3 * time.Second

// SourceFactory starts a ScrollSource for a lazy-loaded listing.
type SourceFactory func(ctx context.Context) (fetch.ScrollSource, error)

// Controller runs targets. Fields may be replaced after New, before Run.
type Controller struct {
	Config types.PipelineConfig

	// Getter fetches listing and detail pages.
	Getter fetch.Getter

	// Downloader materializes PDFs; shared so its limiter paces every target.
	Downloader *download.Downloader

	// NewSource starts a scroll source. Nil means lazy-loaded listings
	// are fetched as a single static page.
	NewSource SourceFactory

	Logger *zap.Logger

	// Out receives progress lines and the batch summary.
	Out io.Writer

	// LogFiles tees each target's log into <target dir>/download_log.txt.
	LogFiles bool

	mu sync.Mutex
}

// New builds a Controller with HTTP fetching, a rate-limited downloader
// and, when cfg.Fetch.UseBrowser is set, a headless-browser scroll source.
func New(cfg types.PipelineConfig, client *http.Client, logger *zap.Logger, w io.Writer) *Controller {
	if logger == nil {
		logger = zap.NewNop()
	}
	if w == nil {
		w = io.Discard
	}
	if client == nil {
		client = &http.Client{Timeout: cfg.Download.Timeout}
	}

	d := &download.Downloader{
		Client:  client,
		Config:  cfg.Download,
		OutDir:  cfg.OutDir,
		Limiter: download.NewLimiter(cfg.Download.RatePerSecond),
		Logger:  logger,
	}
	if cfg.Download.ArxivFallback {
		d.Arxiv = &download.ArxivSearch{
			Client:  client,
			Config:  cfg.Download.HTTPConfig,
			Limiter: rate.NewLimiter(rate.Every(arxivInterval), 1),
		}
	}

	c := &Controller{
		Config:     cfg,
		Getter:     fetch.NewHTTPGetter(client, cfg.Fetch),
		Downloader: d,
		Logger:     logger,
		Out:        w,
		LogFiles:   true,
	}
	if cfg.Fetch.UseBrowser {
		c.NewSource = func(context.Context) (fetch.ScrollSource, error) {
			return fetch.NewBrowserSource(cfg.Fetch, logger)
		}
	}
	return c
}

// Run processes targets, up to Config.Parallel at a time, and returns
// their statistics. A failing target never stops the others. A target
// that stops before collecting any record keeps its previous manifest and
// does not count as processed.
func (c *Controller) Run(ctx context.Context, targets []types.Target) *RunStats {
	return c.each(ctx, targets, func(ctx context.Context, a venue.Adapter, t types.Target, ts *TargetStats, log *zap.Logger) ([]types.PaperRecord, bool) {
		c.printf("processing: %s\n", t)
		records := c.collect(ctx, a, t, ts, log)
		if ts.Err == nil {
			return records, true
		}
		if len(records) == 0 {
			log.Warn("nothing collected, existing manifest left untouched", zap.Error(ts.Err))
			return nil, false
		}
		return c.mergeExisting(t, records, log), true
	})
}

// mergeExisting folds a partial result into the target's existing
// manifest: records are matched by id, collected ones win, and existing
// records the aborted run never reached are kept in place.
func (c *Controller) mergeExisting(t types.Target, records []types.PaperRecord, log *zap.Logger) []types.PaperRecord {
	path := manifest.Path(c.Config.OutDir, t.Venue, t.Year)
	existing, err := manifest.Read(path)
	if err != nil {
		if !errors.Is(err, os.ErrNotExist) {
			log.Warn("existing manifest unreadable, writing partial result", zap.Error(err))
		}
		return records
	}

	fresh := make(map[string]int, len(records))
	for i, r := range records {
		fresh[r.ID] = i
	}
	used := make(map[string]bool, len(records))
	merged := make([]types.PaperRecord, 0, len(existing)+len(records))
	for _, old := range existing {
		if i, ok := fresh[old.ID]; ok {
			merged = append(merged, records[i])
			used[old.ID] = true
			continue
		}
		merged = append(merged, old)
	}
	for _, r := range records {
		if !used[r.ID] {
			merged = append(merged, r)
		}
	}
	log.Info("partial result merged into existing manifest",
		zap.Int("collected", len(records)), zap.Int("existing", len(existing)), zap.Int("written", len(merged)))
	return merged
}

// targetFunc produces the records of one target. ok=false means nothing
// should be written.
type targetFunc func(ctx context.Context, a venue.Adapter, t types.Target, ts *TargetStats, log *zap.Logger) (records []types.PaperRecord, ok bool)

// each runs fn for every target with bounded parallelism, then writes the
// manifest and summary of each target fn accepted.
func (c *Controller) each(ctx context.Context, targets []types.Target, fn targetFunc) *RunStats {
	stats := &RunStats{
		RunID:   uuid.NewString(),
		Started: time.Now(),
		Targets: make([]*TargetStats, len(targets)),
	}
	logger := c.logger().With(zap.String("run_id", stats.RunID))

	parallel := c.Config.Parallel
	if parallel <= 0 {
		parallel = 1
	}
	var g errgroup.Group
	g.SetLimit(parallel)
	for i, t := range targets {
		g.Go(func() error {
			stats.Targets[i] = c.runTarget(ctx, t, stats.RunID, logger, fn)
			return nil
		})
	}
	_ = g.Wait()
	return stats
}

func (c *Controller) runTarget(ctx context.Context, t types.Target, runID string, logger *zap.Logger, fn targetFunc) *TargetStats {
	ts := newTargetStats(t)
	defer func() { ts.Duration = time.Since(ts.Started) }()

	adapter, err := venue.Lookup(t.Venue)
	if err != nil {
		ts.Err = err
		logger.Error("skipping target", zap.Stringer("target", t), zap.Error(err))
		c.printf("skipped: %s (%v)\n", t, err)
		return ts
	}
	t.Venue = adapter.Venue()
	ts.Target = t

	dir := t.Dir(c.Config.OutDir)
	log := logger.With(zap.Stringer("target", t))
	if c.LogFiles {
		if teed, closeFn, err := logging.WithFile(log, filepath.Join(dir, logFileName)); err == nil {
			log = teed
			defer closeFn()
		} else {
			log.Warn("target log file unavailable", zap.Error(err))
		}
	}
	log.Info("target started", zap.String("base_url", baseURL(adapter, t)))

	records, ok := fn(ctx, adapter, t, ts, log)
	if ok {
		c.finish(t, ts, records, runID, log)
	}
	return ts
}

// collect fetches, parses, normalizes and downloads every entry of the
// target. It returns the records gathered before any abort.
func (c *Controller) collect(ctx context.Context, adapter venue.Adapter, t types.Target, ts *TargetStats, log *zap.Logger) []types.PaperRecord {
	var guesser download.Guesser
	if g, ok := adapter.(venue.PDFGuesser); ok {
		guesser = g
	}
	resolver, _ := adapter.(venue.AffordanceResolver)
	nctx := normalize.Context{Venue: adapter.Venue(), Year: t.Year, Method: adapter.Tag()}

	var records []types.PaperRecord
	titles := map[string]string{}

	for _, event := range c.eventTypes(adapter, t.Year) {
		f := c.openFetcher(ctx, adapter, t, event, log)
		pctx := venue.ParseContext{Year: t.Year, EventType: event}
		aborted := false

		for !aborted {
			if ctx.Err() != nil {
				ts.Err = ctx.Err()
				aborted = true
				break
			}
			chunk, err := f.Next(ctx)
			if errors.Is(err, io.EOF) {
				break
			}
			if err != nil {
				ts.Err = err
				log.Error("listing fetch aborted", zap.String("event", event), zap.Error(err))
				aborted = true
				break
			}

			entries, malformed, err := adapter.Parse(chunk, pctx)
			if err != nil {
				log.Warn("unparseable chunk", zap.String("url", chunk.URL), zap.Int("step", chunk.Step), zap.Error(err))
				ts.Malformed++
				f.Report(0)
				continue
			}
			f.Report(len(entries) + malformed)
			ts.Fetched += len(entries) + malformed
			ts.Malformed += malformed
			log.Info("listing chunk parsed", zap.String("url", chunk.URL), zap.Int("step", chunk.Step),
				zap.Int("entries", len(entries)), zap.Int("malformed", malformed))

			for _, e := range entries {
				if ctx.Err() != nil {
					ts.Err = ctx.Err()
					aborted = true
					break
				}
				rec := normalize.Record(e, nctx)
				if !assignID(&rec, titles) {
					ts.Duplicates++
					log.Debug("duplicate entry skipped", zap.String("id", rec.ID), zap.String("title", rec.Title))
					continue
				}
				ts.Normalized++

				if resolver != nil && rec.PDFURL == "" && e.PaperPageURL != "" {
					if err := resolver.ResolveAffordance(ctx, c.Getter, &e); err != nil {
						log.Warn("detail page unavailable", zap.String("title", e.Title), zap.Error(err))
					}
					rec.PDFURL = strings.TrimSpace(e.PDFURL)
					if rec.Abstract == "" {
						rec.Abstract = strings.TrimSpace(e.Abstract)
					}
				}

				out := c.Downloader.Download(ctx, &rec, guesser)
				ts.count(&rec, out)
				if out.Status == types.StatusSuccess {
					log.Info("pdf ready", zap.String("id", rec.ID), zap.String("source", out.Source), zap.String("path", out.Path))
				} else {
					log.Warn("pdf unavailable", zap.String("id", rec.ID), zap.String("title", rec.Title), zap.String("reason", out.Reason))
				}
				records = append(records, rec)
			}
		}
		if err := f.Close(); err != nil {
			log.Debug("closing fetcher", zap.Error(err))
		}
		if aborted {
			break
		}
	}
	return records
}

// finish writes the manifest and the summary report.
func (c *Controller) finish(t types.Target, ts *TargetStats, records []types.PaperRecord, runID string, log *zap.Logger) {
	path := manifest.Path(c.Config.OutDir, t.Venue, t.Year)
	if err := manifest.Write(path, records); err != nil {
		ts.Err = errors.Join(ts.Err, err)
		log.Error("manifest not written", zap.Error(err))
		return
	}
	ts.ManifestPath = path
	ts.Duration = time.Since(ts.Started)
	if err := WriteSummary(t.Dir(c.Config.OutDir), runID, ts); err != nil {
		log.Warn("summary not written", zap.Error(err))
	}
	log.Info("target finished",
		zap.Int("records", len(records)), zap.Int("downloaded", ts.Downloaded),
		zap.Int("existing", ts.Existing), zap.Int("failed", ts.Failed), zap.String("manifest", path))
}

// assignID records rec's id in titles. It returns false when the same
// title was already seen. A different title hashing to a taken id gets a
// numeric suffix.
func assignID(rec *types.PaperRecord, titles map[string]string) bool {
	base := rec.ID
	for n := 2; ; n++ {
		prev, taken := titles[rec.ID]
		if !taken {
			titles[rec.ID] = rec.Title
			return true
		}
		if prev == rec.Title {
			return false
		}
		rec.ID = base + "-" + strconv.Itoa(n)
	}
}

func (c *Controller) eventTypes(a venue.Adapter, year int) []string {
	if ea, ok := a.(venue.EventAware); ok && !ea.UsesEventTypes(year) {
		return []string{""}
	}
	var events []string
	seen := map[string]bool{}
	for _, e := range c.Config.EventTypes {
		e = strings.ToLower(strings.TrimSpace(e))
		if e != "" && !seen[e] {
			seen[e] = true
			events = append(events, e)
		}
	}
	if len(events) == 0 {
		events = []string{"oral"}
	}
	return events
}

// openFetcher picks a scroll fetcher for lazy-loaded listings when a
// source can be started, and a static fetcher otherwise.
func (c *Controller) openFetcher(ctx context.Context, a venue.Adapter, t types.Target, event string, log *zap.Logger) fetch.Fetcher {
	if a.LazyLoaded() && c.NewSource != nil {
		if url, ok := a.ListingURL(t.BaseURL, t.Year, event, 1); ok {
			src, err := c.NewSource(ctx)
			if err == nil {
				return fetch.NewScrollFetcher(src, url, a.ItemSelector(), c.Config.Fetch, log)
			}
			log.Warn("headless browser unavailable, falling back to static fetch", zap.Error(err))
		}
	}
	pageURL := func(page int) (string, bool) {
		return a.ListingURL(t.BaseURL, t.Year, event, page)
	}
	return fetch.NewStaticFetcher(c.Getter, pageURL, c.Config.Fetch.MaxPages, log)
}

func baseURL(a venue.Adapter, t types.Target) string {
	if t.BaseURL != "" {
		return t.BaseURL
	}
	return a.DefaultBaseURL()
}

func (c *Controller) logger() *zap.Logger {
	if c.Logger != nil {
		return c.Logger
	}
	return zap.NewNop()
}

// printf writes a progress line; targets running in parallel share Out.
func (c *Controller) printf(format string, args ...any) {
	if c.Out == nil {
		return
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	fmt.Fprintf(c.Out, format, args...)
}
