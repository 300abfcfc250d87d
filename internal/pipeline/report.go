// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package pipeline

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"github.com/natefinch/atomic"
	"github.com/prometheus/client_golang/prometheus"
	"go.yaml.in/yaml/v3"
)

const summaryFileName = "download_summary.yaml"

// targetReport is the on-disk form of a target's statistics.
type targetReport struct {
	RunID               string         `yaml:"run_id"`
	Conference          string         `yaml:"conference"`
	Year                int            `yaml:"year"`
	StartedAt           time.Time      `yaml:"started_at"`
	DurationSeconds     float64        `yaml:"duration_seconds"`
	TotalPapers         int            `yaml:"total_papers"`
	SuccessfulDownloads int            `yaml:"successful_downloads"`
	ExistingFiles       int            `yaml:"existing_files"`
	FailedDownloads     int            `yaml:"failed_downloads"`
	SkippedMalformed    int            `yaml:"skipped_malformed"`
	Duplicates          int            `yaml:"duplicates"`
	SuccessRate         float64        `yaml:"success_rate"`
	DownloadMethods     map[string]int `yaml:"download_methods"`
	Failures            []Failure      `yaml:"failures,omitempty"`
	Error               string         `yaml:"error,omitempty"`
}

// WriteSummary writes <dir>/download_summary.yaml for one target.
func WriteSummary(dir, runID string, ts *TargetStats) error {
	r := targetReport{
		RunID:               runID,
		Conference:          ts.Target.Venue,
		Year:                ts.Target.Year,
		StartedAt:           ts.Started.UTC().Truncate(time.Second),
		DurationSeconds:     ts.Duration.Round(time.Millisecond).Seconds(),
		TotalPapers:         ts.Normalized,
		SuccessfulDownloads: ts.Downloaded,
		ExistingFiles:       ts.Existing,
		FailedDownloads:     ts.Failed,
		SkippedMalformed:    ts.Malformed,
		Duplicates:          ts.Duplicates,
		SuccessRate:         float64(int(ts.SuccessRate()*10+0.5)) / 10,
		DownloadMethods:     ts.Methods,
		Failures:            ts.Failures,
	}
	if ts.Err != nil {
		r.Error = ts.Err.Error()
	}

	data, err := yaml.Marshal(&r)
	if err != nil {
		return fmt.Errorf("marshaling summary: %w", err)
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("creating directory %s: %w", dir, err)
	}
	path := filepath.Join(dir, summaryFileName)
	if err := atomic.WriteFile(path, bytes.NewReader(data)); err != nil {
		return fmt.Errorf("writing summary %s: %w", path, err)
	}
	return os.Chmod(path, 0o644)
}

// WriteMetrics writes the run's counters in the Prometheus text format,
// for a node_exporter textfile collector.
func WriteMetrics(path string, stats *RunStats) error {
	papers := prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "confpapers_papers",
			Help: "Papers per target by outcome in the last run.",
		},
		[]string{"venue", "year", "outcome"},
	)
	duration := prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "confpapers_target_duration_seconds",
			Help: "Wall time spent on each target in the last run.",
		},
		[]string{"venue", "year"},
	)
	targetErrors := prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "confpapers_target_error",
			Help: "1 when the target stopped early or was skipped.",
		},
		[]string{"venue", "year"},
	)
	lastRun := prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "confpapers_last_run_timestamp_seconds",
		Help: "Start time of the last run.",
	})

	reg := prometheus.NewRegistry()
	reg.MustRegister(papers, duration, targetErrors, lastRun)

	lastRun.Set(float64(stats.Started.Unix()))
	for _, t := range stats.Targets {
		if t == nil {
			continue
		}
		venue, year := t.Target.Venue, strconv.Itoa(t.Target.Year)
		for outcome, n := range map[string]int{
			"fetched":    t.Fetched,
			"downloaded": t.Downloaded,
			"existing":   t.Existing,
			"failed":     t.Failed,
			"malformed":  t.Malformed,
			"duplicate":  t.Duplicates,
		} {
			papers.WithLabelValues(venue, year, outcome).Set(float64(n))
		}
		duration.WithLabelValues(venue, year).Set(t.Duration.Seconds())
		if t.Err != nil {
			targetErrors.WithLabelValues(venue, year).Set(1)
		} else {
			targetErrors.WithLabelValues(venue, year).Set(0)
		}
	}

	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("creating directory for %s: %w", path, err)
	}
	if err := prometheus.WriteToTextfile(path, reg); err != nil {
		return fmt.Errorf("writing metrics %s: %w", path, err)
	}
	return nil
}
