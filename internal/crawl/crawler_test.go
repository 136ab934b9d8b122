package crawl

import (
	"context"
	"net/http"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/sitesnap/sitesnap/internal/fetch"
	"github.com/sitesnap/sitesnap/internal/rewrite"
)

// fakeFetcher serves canned responses keyed by URL and records the fetch
// order. Unknown URLs fail with a 404 status error.
type fakeFetcher struct {
	pages    map[string]string
	binaries map[string]string
	statuses map[string]int
	calls    []string
}

func (f *fakeFetcher) Fetch(_ context.Context, url string) (fetch.Result, error) {
	f.calls = append(f.calls, url)
	if status, ok := f.statuses[url]; ok {
		return fetch.Result{}, &fetch.StatusError{URL: url, StatusCode: status}
	}
	if contentType, ok := f.binaries[url]; ok {
		header := http.Header{}
		header.Set("Content-Type", contentType)
		return fetch.Result{
			URL:         url,
			StatusCode:  http.StatusOK,
			ContentType: contentType,
			Header:      header,
			Body:        []byte("binary-bytes"),
			Kind:        fetch.KindBinary,
		}, nil
	}
	if html, ok := f.pages[url]; ok {
		return fetch.Result{
			URL:         url,
			StatusCode:  http.StatusOK,
			ContentType: "text/html",
			Body:        []byte(html),
			Kind:        fetch.KindPage,
		}, nil
	}
	return fetch.Result{}, &fetch.StatusError{URL: url, StatusCode: http.StatusNotFound}
}

// stubClock advances one second per Now call so durations come out
// positive without real sleeping.
type stubClock struct {
	now time.Time
}

func (c *stubClock) Now() time.Time {
	c.now = c.now.Add(time.Second)
	return c.now
}

func (c *stubClock) Sleep(ctx context.Context, _ time.Duration) error {
	return ctx.Err()
}

func newTestCrawler(cfg Config, fetcher Fetcher) *Crawler {
	if cfg.RootURL == "" {
		cfg.RootURL = "https://example.org/"
	}
	if cfg.MaxPages == 0 {
		cfg.MaxPages = 50
	}
	clk := &stubClock{now: time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)}
	return New(cfg, fetcher, rewrite.New("example.org"), clk, zap.NewNop())
}

func TestCrawlVisitsEachURLOnce(t *testing.T) {
	t.Parallel()

	fetcher := &fakeFetcher{pages: map[string]string{
		"https://example.org/":      `<a href="/about">about</a>`,
		"https://example.org/about": `<a href="/">home</a><a href="/about">self</a>`,
	}}
	crawler := newTestCrawler(Config{}, fetcher)

	result, err := crawler.Run(context.Background())
	require.NoError(t, err)

	require.Equal(t, []string{"https://example.org/", "https://example.org/about"}, fetcher.calls)
	require.Equal(t, 2, result.Stats.PagesCrawled)
	require.Empty(t, result.Failures)
}

func TestCrawlHonorsDepthLimit(t *testing.T) {
	t.Parallel()

	fetcher := &fakeFetcher{pages: map[string]string{
		"https://example.org/":      `<a href="/one">one</a>`,
		"https://example.org/one":   `<a href="/two">two</a>`,
		"https://example.org/two":   `<a href="/three">three</a>`,
		"https://example.org/three": ``,
	}}
	crawler := newTestCrawler(Config{MaxDepth: 1}, fetcher)

	result, err := crawler.Run(context.Background())
	require.NoError(t, err)

	require.Equal(t, []string{"https://example.org/", "https://example.org/one"}, fetcher.calls)
	require.Equal(t, 2, result.Stats.PagesCrawled)
	require.Equal(t, 0, result.Pages[0].Depth)
	require.Equal(t, 1, result.Pages[1].Depth)
}

func TestCrawlHonorsPageCap(t *testing.T) {
	t.Parallel()

	fetcher := &fakeFetcher{pages: map[string]string{
		"https://example.org/":  `<a href="/a">a</a><a href="/b">b</a><a href="/c">c</a>`,
		"https://example.org/a": ``,
		"https://example.org/b": ``,
		"https://example.org/c": ``,
	}}
	crawler := newTestCrawler(Config{MaxPages: 2}, fetcher)

	result, err := crawler.Run(context.Background())
	require.NoError(t, err)

	require.Equal(t, []string{"https://example.org/", "https://example.org/a"}, fetcher.calls)
	require.Equal(t, 2, result.Stats.PagesCrawled)
}

func TestCrawlRecordsFailuresAndContinues(t *testing.T) {
	t.Parallel()

	fetcher := &fakeFetcher{
		pages: map[string]string{
			"https://example.org/":      `<a href="/missing">gone</a><a href="/about">about</a>`,
			"https://example.org/about": ``,
		},
		statuses: map[string]int{
			"https://example.org/missing": http.StatusInternalServerError,
		},
	}
	crawler := newTestCrawler(Config{}, fetcher)

	result, err := crawler.Run(context.Background())
	require.NoError(t, err)

	require.Equal(t, 2, result.Stats.PagesCrawled)
	require.Len(t, result.Failures, 1)
	require.Equal(t, "https://example.org/missing", result.Failures[0].URL)
	require.Equal(t, http.StatusInternalServerError, result.Failures[0].StatusCode)
	require.NotEmpty(t, result.Failures[0].Reason)
}

func TestCrawlRoutesBinaryTargetsToAssets(t *testing.T) {
	t.Parallel()

	// The brochure link has no telltale extension; only the fetched
	// Content-Type reveals it is a download.
	fetcher := &fakeFetcher{
		pages: map[string]string{
			"https://example.org/": `<a href="/brochure">brochure</a>`,
		},
		binaries: map[string]string{
			"https://example.org/brochure": "application/pdf",
		},
	}
	crawler := newTestCrawler(Config{}, fetcher)

	result, err := crawler.Run(context.Background())
	require.NoError(t, err)

	require.Equal(t, []string{"https://example.org/", "https://example.org/brochure"}, fetcher.calls)
	require.Equal(t, 1, result.Stats.PagesCrawled)
	require.Equal(t, []string{"https://example.org/brochure"}, result.AssetURLs)
}

func TestCrawlCollectsAssetsWithoutFetchingThem(t *testing.T) {
	t.Parallel()

	fetcher := &fakeFetcher{pages: map[string]string{
		"https://example.org/":      `<img src="/files/logo.png"><a href="/about">about</a>`,
		"https://example.org/about": `<img src="/files/logo.png">`,
	}}
	crawler := newTestCrawler(Config{}, fetcher)

	result, err := crawler.Run(context.Background())
	require.NoError(t, err)

	require.Equal(t, []string{"https://example.org/", "https://example.org/about"}, fetcher.calls)
	require.Equal(t, []string{"https://example.org/files/logo.png"}, result.AssetURLs,
		"asset referenced twice must be collected once and never fetched by the crawl loop")
}

func TestCrawlStopsOnCanceledContext(t *testing.T) {
	t.Parallel()

	fetcher := &fakeFetcher{pages: map[string]string{
		"https://example.org/": ``,
	}}
	crawler := newTestCrawler(Config{}, fetcher)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := crawler.Run(ctx)
	require.ErrorIs(t, err, context.Canceled)
	require.Empty(t, fetcher.calls)
}

func TestCrawlRejectsEmptyRoot(t *testing.T) {
	t.Parallel()

	crawler := New(Config{MaxPages: 1}, &fakeFetcher{}, rewrite.New("example.org"), &stubClock{}, zap.NewNop())
	_, err := crawler.Run(context.Background())
	require.Error(t, err)
	require.Contains(t, err.Error(), "invalid root url")
}
