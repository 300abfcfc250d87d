// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package pipeline

import (
	"context"
	"fmt"
	"os"

	"go.uber.org/zap"

	"github.com/pdiddy/confpapers/internal/download"
	"github.com/pdiddy/confpapers/internal/manifest"
	"github.com/pdiddy/confpapers/internal/venue"
	"github.com/pdiddy/confpapers/pkg/types"
)

// Retry re-reads each target's manifest and re-attempts the records that
// have no PDF on disk, without fetching the listing again. Records whose
// PDF is present are kept unchanged. Targets without a manifest are
// skipped.
func (c *Controller) Retry(ctx context.Context, targets []types.Target) *RunStats {
	return c.each(ctx, targets, c.retryTarget)
}

func (c *Controller) retryTarget(ctx context.Context, a venue.Adapter, t types.Target, ts *TargetStats, log *zap.Logger) ([]types.PaperRecord, bool) {
	path := manifest.Path(c.Config.OutDir, t.Venue, t.Year)
	records, err := manifest.Read(path)
	if err != nil {
		ts.Err = fmt.Errorf("retry %s: %w", t, err)
		log.Error("manifest unavailable", zap.String("manifest", path), zap.Error(err))
		c.printf("skipped: %s (%v)\n", t, err)
		return nil, false
	}
	c.printf("retrying: %s\n", t)

	var guesser download.Guesser
	if g, ok := a.(venue.PDFGuesser); ok {
		guesser = g
	}

	ts.Fetched = len(records)
	ts.Normalized = len(records)
	for i := range records {
		rec := &records[i]
		if onDisk(rec) {
			ts.Existing++
			ts.Methods[rec.DownloadMethod]++
			continue
		}
		if ctx.Err() != nil {
			ts.Err = ctx.Err()
			if rec.DownloadStatus == types.StatusSuccess {
				rec.DownloadStatus = types.StatusFailed
			}
			rec.LocalPDFPath = ""
			ts.Failed++
			ts.Failures = append(ts.Failures, Failure{ID: rec.ID, Title: rec.Title, URL: rec.PDFURL, Reason: "not retried: " + ctx.Err().Error()})
			continue
		}
		rec.LocalPDFPath = ""
		out := c.Downloader.Download(ctx, rec, guesser)
		ts.count(rec, out)
		if out.Status == types.StatusSuccess {
			log.Info("pdf recovered", zap.String("id", rec.ID), zap.String("source", out.Source))
		} else {
			log.Warn("pdf still unavailable", zap.String("id", rec.ID), zap.String("reason", out.Reason))
		}
	}
	return records, true
}

// onDisk reports whether a successful record's PDF still exists.
func onDisk(rec *types.PaperRecord) bool {
	if !rec.Succeeded() {
		return false
	}
	info, err := os.Stat(rec.LocalPDFPath)
	return err == nil && info.Size() > 0
}
