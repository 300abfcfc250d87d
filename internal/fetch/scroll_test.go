// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package fetch

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"
	"testing"
	"time"

	"github.com/PuerkitoBio/goquery"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pdiddy/confpapers/pkg/types"
)

// fakeScroll simulates a lazy-loaded listing: every Scroll reveals the
// next batch of items, and the DOM keeps all earlier items.
type fakeScroll struct {
	batches  [][]string
	revealed int
	scrolls  int
	failures int // Scroll calls that fail before succeeding
	closed   bool
}

func (s *fakeScroll) Open(context.Context, string) error {
	s.revealed = 1
	return nil
}

func (s *fakeScroll) Scroll(context.Context) error {
	s.scrolls++
	if s.failures > 0 {
		s.failures--
		return errors.New("target closed")
	}
	if s.revealed < len(s.batches) {
		s.revealed++
	}
	return nil
}

func (s *fakeScroll) HTML(context.Context) (string, error) {
	var b strings.Builder
	b.WriteString("<html><body><div id=\"list\">")
	for _, batch := range s.batches[:min(s.revealed, len(s.batches))] {
		for _, item := range batch {
			b.WriteString(item)
		}
	}
	b.WriteString("</div></body></html>")
	return b.String(), nil
}

func (s *fakeScroll) Close() error {
	s.closed = true
	return nil
}

func paperDiv(id, title string) string {
	if id == "" {
		return fmt.Sprintf(`<div class="panel paper"><h2 class="title">%s</h2></div>`, title)
	}
	return fmt.Sprintf(`<div class="panel paper" id="%s"><h2 class="title">%s</h2></div>`, id, title)
}

func newTestScrollFetcher(src ScrollSource, cfg types.FetchConfig) *ScrollFetcher {
	f := NewScrollFetcher(src, "https://papers.example/venue", "div.panel.paper", cfg, nil)
	f.sleep = func(ctx context.Context, _ time.Duration) error { return ctx.Err() }
	return f
}

func drain(t *testing.T, f *ScrollFetcher) []string {
	t.Helper()
	var titles []string
	for {
		c, err := f.Next(context.Background())
		if errors.Is(err, io.EOF) {
			return titles
		}
		require.NoError(t, err)
		doc, err := goquery.NewDocumentFromReader(strings.NewReader(c.HTML))
		require.NoError(t, err)
		doc.Find("div.panel.paper h2.title").Each(func(_ int, s *goquery.Selection) {
			titles = append(titles, s.Text())
		})
	}
}

func TestScrollFetcher_EmitsEachItemOnce(t *testing.T) {
	src := &fakeScroll{batches: [][]string{
		{paperDiv("p1", "A"), paperDiv("p2", "B")},
		{paperDiv("p3", "C")},
		{},
		{paperDiv("", "D"), paperDiv("", "E")},
	}}
	f := newTestScrollFetcher(src, types.FetchConfig{MaxIdleScrolls: 3})

	titles := drain(t, f)
	assert.Equal(t, []string{"A", "B", "C", "D", "E"}, titles)
	assert.Equal(t, 5, f.Seen())
	assert.Equal(t, StateDone, f.State())

	// Once done, further calls keep reporting end-of-listing.
	_, err := f.Next(context.Background())
	assert.ErrorIs(t, err, io.EOF)
}

func TestScrollFetcher_TerminatesAfterIdleSteps(t *testing.T) {
	src := &fakeScroll{batches: [][]string{{paperDiv("p1", "A")}}}
	f := newTestScrollFetcher(src, types.FetchConfig{MaxIdleScrolls: 3})

	c, err := f.Next(context.Background())
	require.NoError(t, err)
	assert.Contains(t, c.HTML, "A")
	assert.Equal(t, StateMorePending, f.State())

	_, err = f.Next(context.Background())
	assert.ErrorIs(t, err, io.EOF)
	assert.Equal(t, 3, src.scrolls)
}

func TestScrollFetcher_IdleCounterResetsOnNewItems(t *testing.T) {
	// Two quiet steps, then new content, then quiet until done.
	src := &fakeScroll{batches: [][]string{
		{paperDiv("p1", "A")},
		{},
		{},
		{paperDiv("p2", "B")},
	}}
	f := newTestScrollFetcher(src, types.FetchConfig{MaxIdleScrolls: 3})

	titles := drain(t, f)
	assert.Equal(t, []string{"A", "B"}, titles)
	// 3 scrolls to reveal B, then 3 idle scrolls.
	assert.Equal(t, 6, src.scrolls)
}

func TestScrollFetcher_MaxScrollsCap(t *testing.T) {
	var batches [][]string
	for i := 0; i < 20; i++ {
		batches = append(batches, []string{paperDiv(fmt.Sprintf("p%d", i), fmt.Sprintf("T%d", i))})
	}
	src := &fakeScroll{batches: batches}
	f := newTestScrollFetcher(src, types.FetchConfig{MaxScrolls: 4})

	titles := drain(t, f)
	assert.Len(t, titles, 5) // initial snapshot + 4 scrolls
	assert.Equal(t, StateDone, f.State())
}

func TestScrollFetcher_RetriesTransientStep(t *testing.T) {
	src := &fakeScroll{
		batches:  [][]string{{paperDiv("p1", "A")}, {paperDiv("p2", "B")}},
		failures: 2,
	}
	f := newTestScrollFetcher(src, types.FetchConfig{MaxRetries: 3, MaxIdleScrolls: 1})

	titles := drain(t, f)
	assert.Equal(t, []string{"A", "B"}, titles)
}

func TestScrollFetcher_ExhaustedRetriesIsTransient(t *testing.T) {
	src := &fakeScroll{
		batches:  [][]string{{paperDiv("p1", "A")}, {paperDiv("p2", "B")}},
		failures: 10,
	}
	f := newTestScrollFetcher(src, types.FetchConfig{MaxRetries: 2})

	_, err := f.Next(context.Background())
	require.NoError(t, err)

	_, err = f.Next(context.Background())
	assert.ErrorIs(t, err, types.ErrTransientFetch)
}

func TestScrollFetcher_CloseClosesSource(t *testing.T) {
	src := &fakeScroll{batches: [][]string{{}}}
	f := newTestScrollFetcher(src, types.FetchConfig{})
	require.NoError(t, f.Close())
	assert.True(t, src.closed)
}

func TestScrollState_String(t *testing.T) {
	assert.Equal(t, "more-pending", StateMorePending.String())
	assert.Equal(t, "quiescent", StateQuiescent.String())
	assert.Equal(t, "done", StateDone.String())
}

// hangingSource never finishes loading: Open blocks until its context ends.
type hangingSource struct {
	fakeScroll
	opens int
}

func (s *hangingSource) Open(ctx context.Context, _ string) error {
	s.opens++
	<-ctx.Done()
	return ctx.Err()
}

func TestScrollFetcher_HangingOpenTimesOut(t *testing.T) {
	src := &hangingSource{}
	f := newTestScrollFetcher(src, types.FetchConfig{
		HTTPConfig: types.HTTPConfig{Timeout: 10 * time.Millisecond},
		MaxRetries: 1,
	})

	done := make(chan error, 1)
	go func() {
		_, err := f.Next(context.Background())
		done <- err
	}()

	select {
	case err := <-done:
		assert.ErrorIs(t, err, types.ErrTransientFetch)
		assert.Equal(t, 2, src.opens)
	case <-time.After(5 * time.Second):
		t.Fatal("Next did not return after the step timeout")
	}
}

func TestScrollFetcher_StepsAreOneBased(t *testing.T) {
	src := &fakeScroll{batches: [][]string{{paperDiv("p1", "A")}, {paperDiv("p2", "B")}}}
	f := newTestScrollFetcher(src, types.FetchConfig{MaxIdleScrolls: 1})

	first, err := f.Next(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, first.Step)

	second, err := f.Next(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 2, second.Step)
}
