// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package main

import (
	"fmt"
	"time"

	"github.com/spf13/viper"

	"github.com/pdiddy/confpapers/internal/httputil"
	"github.com/pdiddy/confpapers/internal/venue"
	"github.com/pdiddy/confpapers/pkg/types"
)

// setDefaults registers the settings that have no flag. They are read from
// confpapers.yaml or CONFPAPERS_* variables, e.g. CONFPAPERS_FETCH_MAX_RETRIES.
func setDefaults(v *viper.Viper) {
	v.SetDefault("user_agent", httputil.DefaultUserAgent)
	v.SetDefault("fetch.timeout", 30*time.Second)
	v.SetDefault("fetch.max_retries", 3)
	v.SetDefault("fetch.max_pages", 50)
	v.SetDefault("fetch.scroll_wait", 2*time.Second)
	v.SetDefault("fetch.max_idle_scrolls", 3)
	v.SetDefault("fetch.max_scrolls", 50)
	v.SetDefault("download.timeout", 60*time.Second)
	v.SetDefault("download.max_attempts", 3)
	v.SetDefault("download.rate_per_second", 1.0)
	v.SetDefault("download.min_pdf_bytes", 1024)
}

// pipelineConfig assembles the run configuration from v. userAgent
// overrides the configured User-Agent when non-empty.
func pipelineConfig(v *viper.Viper, userAgent string) types.PipelineConfig {
	if userAgent == "" {
		userAgent = v.GetString("user_agent")
	}
	return types.PipelineConfig{
		OutDir:     v.GetString("out"),
		EventTypes: v.GetStringSlice("event-types"),
		Parallel:   v.GetInt("parallel"),
		Fetch: types.FetchConfig{
			HTTPConfig:     types.HTTPConfig{Timeout: v.GetDuration("fetch.timeout"), UserAgent: userAgent},
			MaxRetries:     v.GetInt("fetch.max_retries"),
			MaxPages:       v.GetInt("fetch.max_pages"),
			UseBrowser:     !v.GetBool("no-browser"),
			ScrollWait:     v.GetDuration("fetch.scroll_wait"),
			MaxIdleScrolls: v.GetInt("fetch.max_idle_scrolls"),
			MaxScrolls:     v.GetInt("fetch.max_scrolls"),
		},
		Download: types.DownloadConfig{
			HTTPConfig:    types.HTTPConfig{Timeout: v.GetDuration("download.timeout"), UserAgent: userAgent},
			MaxAttempts:   v.GetInt("download.max_attempts"),
			RatePerSecond: v.GetFloat64("download.rate_per_second"),
			MinPDFBytes:   v.GetInt64("download.min_pdf_bytes"),
			ArxivFallback: v.GetBool("arxiv-fallback"),
		},
	}
}

// selectTargets expands the -c/-y selection into venue/year targets.
// An empty conference and a zero year select the default matrix.
func selectTargets(conference string, year int) ([]types.Target, error) {
	if conference == "" {
		if year == 0 {
			return venue.DefaultTargets(), nil
		}
		var targets []types.Target
		for _, name := range venue.Names() {
			a, err := venue.Lookup(name)
			if err != nil {
				return nil, err
			}
			targets = append(targets, types.Target{Venue: a.Venue(), Year: year})
		}
		return targets, nil
	}

	a, base, err := venue.Resolve(conference)
	if err != nil {
		return nil, err
	}
	years := []int{year}
	if year == 0 {
		years = venue.DefaultYears(a.Tag())
		if len(years) == 0 {
			return nil, fmt.Errorf("no default years for %s, pass -y", a.Venue())
		}
	}
	targets := make([]types.Target, 0, len(years))
	for _, y := range years {
		targets = append(targets, types.Target{Venue: a.Venue(), Year: y, BaseURL: base})
	}
	return targets, nil
}
