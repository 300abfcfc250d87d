// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package pipeline

import (
	"fmt"
	"io"
	"sort"
	"strings"
	"time"

	"github.com/pdiddy/confpapers/internal/download"
	"github.com/pdiddy/confpapers/pkg/types"
)

// Failure is one record that ended without a PDF.
type Failure struct {
	ID     string `yaml:"id"`
	Title  string `yaml:"title"`
	URL    string `yaml:"url,omitempty"`
	Reason string `yaml:"reason"`
}

// TargetStats holds the counters of one venue/year. Each target writes
// only its own TargetStats.
type TargetStats struct {
	Target types.Target

	Fetched    int
	Normalized int
	Downloaded int
	Existing   int
	Failed     int
	Malformed  int
	Duplicates int

	// Methods counts successful records by download_method.
	Methods  map[string]int
	Failures []Failure

	// Err is the reason the target stopped early, if it did.
	Err error

	// ManifestPath is set once the manifest has been written.
	ManifestPath string

	Started  time.Time
	Duration time.Duration
}

func newTargetStats(t types.Target) *TargetStats {
	return &TargetStats{Target: t, Methods: map[string]int{}, Started: time.Now()}
}

// Processed reports whether the target produced a manifest.
func (s *TargetStats) Processed() bool { return s.ManifestPath != "" }

// Succeeded returns the number of records with a PDF on disk.
func (s *TargetStats) Succeeded() int { return s.Downloaded + s.Existing }

// SuccessRate is the percentage of normalized records with a PDF.
func (s *TargetStats) SuccessRate() float64 {
	total := s.Succeeded() + s.Failed
	if total == 0 {
		return 0
	}
	return float64(s.Succeeded()) / float64(total) * 100
}

func (s *TargetStats) count(rec *types.PaperRecord, out download.Outcome) {
	switch {
	case out.Status != types.StatusSuccess:
		s.Failed++
		s.Failures = append(s.Failures, Failure{ID: rec.ID, Title: rec.Title, URL: out.URL, Reason: out.Reason})
		return
	case out.Skipped():
		s.Existing++
	default:
		s.Downloaded++
	}
	s.Methods[rec.DownloadMethod]++
}

// RunStats aggregates one invocation across targets. Targets is index
// aligned with the targets passed to Run.
type RunStats struct {
	RunID   string
	Started time.Time
	Targets []*TargetStats
}

// Processed returns the number of targets that produced a manifest.
func (r *RunStats) Processed() int {
	n := 0
	for _, t := range r.Targets {
		if t != nil && t.Processed() {
			n++
		}
	}
	return n
}

// Totals sums the per-target counters.
func (r *RunStats) Totals() TargetStats {
	total := TargetStats{Methods: map[string]int{}}
	for _, t := range r.Targets {
		if t == nil {
			continue
		}
		total.Fetched += t.Fetched
		total.Normalized += t.Normalized
		total.Downloaded += t.Downloaded
		total.Existing += t.Existing
		total.Failed += t.Failed
		total.Malformed += t.Malformed
		total.Duplicates += t.Duplicates
		for m, n := range t.Methods {
			total.Methods[m] += n
		}
	}
	return total
}

// PrintSummary writes the per-target and overall batch summary.
func (r *RunStats) PrintSummary(w io.Writer) {
	fmt.Fprintf(w, "\nRun %s\n", r.RunID)
	for _, t := range r.Targets {
		if t == nil {
			continue
		}
		fmt.Fprintf(w, "%-13s %d fetched, %d downloaded, %d existing, %d failed, %d malformed, %d duplicates",
			t.Target.String()+":", t.Fetched, t.Downloaded, t.Existing, t.Failed, t.Malformed, t.Duplicates)
		if len(t.Methods) > 0 {
			fmt.Fprintf(w, " [%s]", formatMethods(t.Methods))
		}
		fmt.Fprintln(w)
		if t.Err != nil {
			fmt.Fprintf(w, "  error: %v\n", t.Err)
		}
		for _, f := range t.Failures {
			fmt.Fprintf(w, "  failed: %s %q (%s)\n", f.ID, f.Title, f.Reason)
		}
	}
	tot := r.Totals()
	fmt.Fprintf(w, "\nBatch summary: %d downloaded, %d existing, %d failed, %d malformed, %d duplicates (targets: %d/%d processed)\n",
		tot.Downloaded, tot.Existing, tot.Failed, tot.Malformed, tot.Duplicates, r.Processed(), len(r.Targets))
}

func formatMethods(m map[string]int) string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	parts := make([]string, 0, len(keys))
	for _, k := range keys {
		parts = append(parts, fmt.Sprintf("%s=%d", k, m[k]))
	}
	return strings.Join(parts, " ")
}
