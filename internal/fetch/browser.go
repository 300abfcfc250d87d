// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package fetch

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/chromedp/chromedp"
	"go.uber.org/zap"

	"github.com/pdiddy/confpapers/internal/httputil"
	"github.com/pdiddy/confpapers/pkg/types"
)

// clickLoadMoreJS clicks every visible "Load More" / "Show More" control
// and returns how many were clicked.
const clickLoadMoreJS = `(() => {
  let n = 0;
  document.querySelectorAll('button, a').forEach(el => {
    const t = (el.innerText || '').trim();
    if (/^(load|show) more/i.test(t) && el.offsetParent !== null) { el.click(); n++; }
  });
  return n;
})()`

const scrollToBottomJS = `window.scrollTo(0, document.body.scrollHeight); document.body.scrollHeight`

// BrowserSource is a ScrollSource backed by a headless Chrome via chromedp.
type BrowserSource struct {
	allocCancel context.CancelFunc
	ctx         context.Context
	cancel      context.CancelFunc
	timeout     time.Duration
	logger      *zap.Logger
	mu          sync.Mutex
}

// NewBrowserSource starts a headless browser. It fails when no Chrome or
// Chromium binary is available.
func NewBrowserSource(cfg types.FetchConfig, logger *zap.Logger) (*BrowserSource, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	ua := cfg.UserAgent
	if ua == "" {
		ua = httputil.DefaultUserAgent
	}

	opts := append(chromedp.DefaultExecAllocatorOptions[:],
		chromedp.Flag("headless", true),
		chromedp.Flag("disable-gpu", true),
		chromedp.Flag("no-sandbox", true),
		chromedp.Flag("disable-dev-shm-usage", true),
		chromedp.Flag("disable-blink-features", "AutomationControlled"),
		chromedp.UserAgent(ua),
	)

	allocCtx, allocCancel := chromedp.NewExecAllocator(context.Background(), opts...)
	ctx, cancel := chromedp.NewContext(allocCtx,
		chromedp.WithLogf(func(format string, args ...any) {
			logger.Debug(fmt.Sprintf(format, args...))
		}),
	)

	if err := chromedp.Run(ctx); err != nil {
		cancel()
		allocCancel()
		return nil, fmt.Errorf("starting browser: %w", err)
	}
	logger.Info("headless browser started")

	return &BrowserSource{
		allocCancel: allocCancel,
		ctx:         ctx,
		cancel:      cancel,
		timeout:     cfg.Timeout,
		logger:      logger.With(zap.String("component", "browser")),
	}, nil
}

// Open navigates to url.
func (b *BrowserSource) Open(ctx context.Context, url string) error {
	b.logger.Debug("navigating", zap.String("url", url))
	return b.run(ctx, chromedp.Navigate(url))
}

// Scroll scrolls to the bottom of the page and clicks any visible
// load-more controls.
func (b *BrowserSource) Scroll(ctx context.Context) error {
	var height int64
	var clicked int64
	if err := b.run(ctx,
		chromedp.Evaluate(scrollToBottomJS, &height),
		chromedp.Evaluate(clickLoadMoreJS, &clicked),
	); err != nil {
		return err
	}
	if clicked > 0 {
		b.logger.Debug("clicked load-more", zap.Int64("buttons", clicked))
	}
	b.logger.Debug("scrolled", zap.Int64("page_height", height))
	return nil
}

// HTML returns the rendered document.
func (b *BrowserSource) HTML(ctx context.Context) (string, error) {
	var html string
	if err := b.run(ctx, chromedp.OuterHTML("html", &html, chromedp.ByQuery)); err != nil {
		return "", err
	}
	return html, nil
}

// Close shuts the browser down.
func (b *BrowserSource) Close() error {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.logger.Debug("closing browser")
	b.cancel()
	b.allocCancel()
	return nil
}

// run executes actions in the browser tab, aborting when ctx is cancelled
// or the configured timeout elapses.
func (b *BrowserSource) run(ctx context.Context, actions ...chromedp.Action) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	runCtx, cancel := context.WithCancel(b.ctx)
	defer cancel()
	if b.timeout > 0 {
		var tcancel context.CancelFunc
		runCtx, tcancel = context.WithTimeout(runCtx, b.timeout)
		defer tcancel()
	}
	stop := context.AfterFunc(ctx, cancel)
	defer stop()

	return chromedp.Run(runCtx, actions...)
}
