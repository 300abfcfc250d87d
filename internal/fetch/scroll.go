// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package fetch

import (
	"context"
	"fmt"
	"io"
	"math"
	"strconv"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"
	"github.com/cespare/xxhash/v2"
	"go.uber.org/zap"

	"github.com/pdiddy/confpapers/internal/httputil"
	"github.com/pdiddy/confpapers/pkg/types"
)

const (
	defaultScrollWait     = 2 * time.Second
	defaultMaxIdleScrolls = 3
	defaultMaxScrolls     = 50
	defaultStepRetries    = 3
	defaultStepTimeout    = 30 * time.Second
)

// ScrollSource is a listing that reveals more items as it is scrolled.
// BrowserSource implements it with a headless Chrome.
type ScrollSource interface {
	// Open loads the listing page.
	Open(ctx context.Context, url string) error

	// Scroll triggers one round of lazy loading.
	Scroll(ctx context.Context) error

	// HTML returns the current document markup.
	HTML(ctx context.Context) (string, error)

	Close() error
}

// ScrollState is the state of a ScrollFetcher.
type ScrollState int

const (
	// StateMorePending means the last step produced new items.
	StateMorePending ScrollState = iota
	// StateQuiescent means the last step produced nothing new, but the
	// idle limit has not been reached.
	StateQuiescent
	// StateDone means the listing is exhausted.
	StateDone
)

func (s ScrollState) String() string {
	switch s {
	case StateMorePending:
		return "more-pending"
	case StateQuiescent:
		return "quiescent"
	case StateDone:
		return "done"
	default:
		return "unknown"
	}
}

// ScrollFetcher enumerates a lazy-loaded listing. Each Next call scrolls
// until a step reveals items not emitted before and returns just those
// items, so no item is ever emitted twice. After MaxIdleScrolls
// consecutive steps without new items, or MaxScrolls steps in total, the
// fetcher is done.
type ScrollFetcher struct {
	source   ScrollSource
	url      string
	selector string
	logger   *zap.Logger

	wait       time.Duration
	maxIdle    int
	maxScrolls int
	retries    int

	// timeout bounds each Open, Scroll and HTML call.
	timeout time.Duration

	// sleep waits between a scroll and the following snapshot. Tests
	// replace it to avoid real delays.
	sleep func(ctx context.Context, d time.Duration) error

	state  ScrollState
	opened bool
	seen   map[string]struct{}
	idle   int
	steps  int
}

// NewScrollFetcher creates a fetcher that splits snapshots into items
// with the CSS selector itemSelector.
func NewScrollFetcher(source ScrollSource, url, itemSelector string, cfg types.FetchConfig, logger *zap.Logger) *ScrollFetcher {
	if logger == nil {
		logger = zap.NewNop()
	}
	f := &ScrollFetcher{
		source:     source,
		url:        url,
		selector:   itemSelector,
		logger:     logger,
		wait:       cfg.ScrollWait,
		maxIdle:    cfg.MaxIdleScrolls,
		maxScrolls: cfg.MaxScrolls,
		retries:    cfg.MaxRetries,
		timeout:    cfg.Timeout,
		sleep:      sleepCtx,
		state:      StateMorePending,
		seen:       make(map[string]struct{}),
	}
	if f.wait <= 0 {
		f.wait = defaultScrollWait
	}
	if f.maxIdle <= 0 {
		f.maxIdle = defaultMaxIdleScrolls
	}
	if f.maxScrolls <= 0 {
		f.maxScrolls = defaultMaxScrolls
	}
	if f.retries <= 0 {
		f.retries = defaultStepRetries
	}
	if f.timeout <= 0 {
		f.timeout = defaultStepTimeout
	}
	return f
}

// State returns the current state.
func (f *ScrollFetcher) State() ScrollState { return f.state }

// Seen returns the number of distinct items emitted so far.
func (f *ScrollFetcher) Seen() int { return len(f.seen) }

// Next returns the items that appeared since the previous call.
func (f *ScrollFetcher) Next(ctx context.Context) (Chunk, error) {
	for {
		if f.state == StateDone {
			return Chunk{}, io.EOF
		}
		if err := ctx.Err(); err != nil {
			return Chunk{}, err
		}

		if !f.opened {
			if err := f.retry(ctx, "open", func(ctx context.Context) error {
				return f.source.Open(ctx, f.url)
			}); err != nil {
				return Chunk{}, err
			}
			f.opened = true
		} else {
			if f.steps >= f.maxScrolls {
				f.logger.Warn("scroll limit reached", zap.Int("steps", f.steps), zap.Int("items", len(f.seen)))
				f.state = StateDone
				return Chunk{}, io.EOF
			}
			if err := f.retry(ctx, "scroll", f.source.Scroll); err != nil {
				return Chunk{}, err
			}
			f.steps++
		}

		if err := f.sleep(ctx, f.wait); err != nil {
			return Chunk{}, err
		}

		var html string
		if err := f.retry(ctx, "snapshot", func(ctx context.Context) error {
			var err error
			html, err = f.source.HTML(ctx)
			return err
		}); err != nil {
			return Chunk{}, err
		}

		fresh, err := f.newItems(html)
		if err != nil {
			return Chunk{}, fmt.Errorf("splitting listing items: %v: %w", err, types.ErrStructuralParse)
		}

		if len(fresh) > 0 {
			f.state = StateMorePending
			f.idle = 0
			f.logger.Debug("scroll step revealed items",
				zap.Int("step", f.steps), zap.Int("new", len(fresh)), zap.Int("total", len(f.seen)))
			return Chunk{
				URL:  f.url,
				HTML: "<html><body>" + strings.Join(fresh, "\n") + "</body></html>",
				Step: f.steps + 1,
			}, nil
		}

		f.idle++
		f.state = StateQuiescent
		f.logger.Debug("no new content loaded",
			zap.Int("attempt", f.idle), zap.Int("max", f.maxIdle))
		if f.idle >= f.maxIdle {
			f.state = StateDone
		}
	}
}

// Report is a no-op: a scroll step only returns when it has new items.
func (f *ScrollFetcher) Report(int) {}

// Close releases the scroll source.
func (f *ScrollFetcher) Close() error {
	return f.source.Close()
}

// newItems returns the outer HTML of every item in html that has not been
// emitted before and marks them seen.
func (f *ScrollFetcher) newItems(html string) ([]string, error) {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	if err != nil {
		return nil, err
	}

	var fresh []string
	doc.Find(f.selector).Each(func(_ int, s *goquery.Selection) {
		outer, err := goquery.OuterHtml(s)
		if err != nil {
			return
		}
		key := itemKey(s, outer)
		if _, ok := f.seen[key]; ok {
			return
		}
		f.seen[key] = struct{}{}
		fresh = append(fresh, outer)
	})
	return fresh, nil
}

// itemKey identifies an item by its id attribute, falling back to a hash
// of its markup.
func itemKey(s *goquery.Selection, outer string) string {
	if id, ok := s.Attr("id"); ok && strings.TrimSpace(id) != "" {
		return "id:" + strings.TrimSpace(id)
	}
	return "h:" + strconv.FormatUint(xxhash.Sum64String(outer), 16)
}

// retry runs fn up to f.retries+1 times with exponential backoff. An
// attempt that hits its own deadline is retried like any other failure.
func (f *ScrollFetcher) retry(ctx context.Context, op string, fn func(context.Context) error) error {
	var err error
	for attempt := 0; attempt <= f.retries; attempt++ {
		if attempt > 0 {
			backoff := time.Duration(math.Pow(2, float64(attempt-1))) * httputil.RetryBaseDelay
			f.logger.Warn("scroll step failed, retrying",
				zap.String("op", op), zap.Int("attempt", attempt), zap.Error(err))
			if serr := f.sleep(ctx, backoff); serr != nil {
				return serr
			}
		}
		if err = f.attempt(ctx, fn); err == nil {
			return nil
		}
		if httputil.IsContextErr(err) && ctx.Err() != nil {
			return err
		}
	}
	return fmt.Errorf("%s %s: %v: %w", op, f.url, err, types.ErrTransientFetch)
}

// attempt runs fn under the per-call deadline.
func (f *ScrollFetcher) attempt(ctx context.Context, fn func(context.Context) error) error {
	actx, cancel := context.WithTimeout(ctx, f.timeout)
	defer cancel()
	return fn(actx)
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
