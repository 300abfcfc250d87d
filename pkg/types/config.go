package types

import (
	"fmt"
	"path/filepath"
	"strings"
	"time"
)

// HTTPConfig holds shared HTTP settings used by stages that make network requests.
type HTTPConfig struct {
	// Timeout is the HTTP request timeout.
	Timeout time.Duration `json:"timeout" yaml:"timeout"`

	// UserAgent is the User-Agent header sent with HTTP requests.
	UserAgent string `json:"user_agent" yaml:"user_agent"`
}

// FetchConfig holds settings for listing retrieval.
type FetchConfig struct {
	HTTPConfig `yaml:",inline"`

	// MaxRetries bounds retries of a single page or scroll step (default 3).
	MaxRetries int `json:"max_retries" yaml:"max_retries"`

	// MaxPages caps static pagination (default 50).
	MaxPages int `json:"max_pages" yaml:"max_pages"`

	// UseBrowser enables the headless browser for lazy-loaded listings.
	UseBrowser bool `json:"use_browser" yaml:"use_browser"`

	// ScrollWait is how long to wait for new items after a scroll step (default 2s).
	ScrollWait time.Duration `json:"scroll_wait" yaml:"scroll_wait"`

	// MaxIdleScrolls is the number of consecutive scroll steps without new
	// items after which the listing is considered complete (default 3).
	MaxIdleScrolls int `json:"max_idle_scrolls" yaml:"max_idle_scrolls"`

	// MaxScrolls is an absolute cap on scroll steps (default 50).
	MaxScrolls int `json:"max_scrolls" yaml:"max_scrolls"`
}

// DownloadConfig holds settings for the PDF download stage.
type DownloadConfig struct {
	HTTPConfig `yaml:",inline"`

	// MaxAttempts bounds attempts per candidate URL (default 3).
	MaxAttempts int `json:"max_attempts" yaml:"max_attempts"`

	// RatePerSecond paces PDF requests (default 1).
	RatePerSecond float64 `json:"rate_per_second" yaml:"rate_per_second"`

	// MinPDFBytes rejects responses smaller than this as error pages (default 1024).
	MinPDFBytes int64 `json:"min_pdf_bytes" yaml:"min_pdf_bytes"`

	// ArxivFallback enables the arXiv title search when no PDF URL resolves.
	ArxivFallback bool `json:"arxiv_fallback" yaml:"arxiv_fallback"`
}

// Target is one venue/year pair to process.
type Target struct {
	Venue string `json:"venue" yaml:"venue"`
	Year  int    `json:"year" yaml:"year"`

	// BaseURL overrides the venue's default site, e.g. a mirror.
	BaseURL string `json:"base_url,omitempty" yaml:"base_url,omitempty"`
}

func (t Target) String() string {
	return fmt.Sprintf("%s %d", t.Venue, t.Year)
}

// Key returns the lowercase directory stem for the target, e.g. "icml_2025".
func (t Target) Key() string {
	return fmt.Sprintf("%s_%d", strings.ToLower(t.Venue), t.Year)
}

// Dir returns the target's output directory under out,
// e.g. "out/icml_2025_papers".
func (t Target) Dir(out string) string {
	return filepath.Join(out, t.Key()+"_papers")
}

// PipelineConfig groups all stage configurations for a run.
type PipelineConfig struct {
	Fetch    FetchConfig    `json:"fetch" yaml:"fetch"`
	Download DownloadConfig `json:"download" yaml:"download"`

	// OutDir is the parent of every <venue>_<year>_papers directory.
	OutDir string `json:"out_dir" yaml:"out_dir"`

	// EventTypes selects listing groups on venues that have them (default ["oral"]).
	EventTypes []string `json:"event_types" yaml:"event_types"`

	// Parallel is the number of venue/year targets processed concurrently (default 1).
	Parallel int `json:"parallel" yaml:"parallel"`
}
