// Package crawl walks a site breadth-first from its root page, one fetch
// at a time, collecting page bodies and asset references for export.
package crawl

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/sitesnap/sitesnap/internal/clock"
	"github.com/sitesnap/sitesnap/internal/fetch"
	"github.com/sitesnap/sitesnap/internal/rewrite"
)

// Fetcher retrieves one URL and classifies the response as page or
// binary asset.
type Fetcher interface {
	Fetch(ctx context.Context, url string) (fetch.Result, error)
}

// Config bounds a single crawl.
type Config struct {
	// RootURL seeds the frontier at depth zero.
	RootURL string
	// MaxDepth caps link-following distance from the root. Zero means
	// unlimited.
	MaxDepth int
	// MaxPages caps the number of URLs processed, counting failures.
	MaxPages int
	// Delay spaces consecutive fetches.
	Delay time.Duration
}

// Page is one successfully fetched HTML document.
type Page struct {
	URL       string
	Depth     int
	HTML      []byte
	FetchedAt time.Time
}

// Failure records a URL that stayed unfetchable after retries. Transport
// errors carry a zero status code.
type Failure struct {
	URL        string
	StatusCode int
	Reason     string
}

// Stats summarizes a finished crawl.
type Stats struct {
	PagesCrawled     int
	AssetsDiscovered int
	Failures         int
	Duration         time.Duration
}

// Result aggregates everything the traversal produced, in discovery
// order.
type Result struct {
	Pages     []Page
	AssetURLs []string
	Failures  []Failure
	Stats     Stats
}

// Crawler walks one site breadth-first with a single in-flight fetch.
// Serial fetching keeps the visit order deterministic and the origin
// load bounded by the pacer alone.
type Crawler struct {
	cfg       Config
	fetcher   Fetcher
	extractor *extractor
	pacer     *Pacer
	clock     clock.Clock
	logger    *zap.Logger
}

// New assembles a crawler that shares the rewriter's same-domain rules
// with the rest of the pipeline.
func New(cfg Config, fetcher Fetcher, rw *rewrite.Rewriter, clk clock.Clock, logger *zap.Logger) *Crawler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Crawler{
		cfg:       cfg,
		fetcher:   fetcher,
		extractor: newExtractor(rw),
		pacer:     NewPacer(cfg.Delay),
		clock:     clk,
		logger:    logger,
	}
}

// Run drives the traversal until the frontier drains or the page cap is
// reached. Fetch failures are recorded and skipped; only context
// cancellation aborts the crawl.
func (c *Crawler) Run(ctx context.Context) (Result, error) {
	started := c.clock.Now()

	frontier := NewFrontier()
	if !frontier.Push(c.cfg.RootURL, 0) {
		return Result{}, fmt.Errorf("seed crawl: invalid root url %q", c.cfg.RootURL)
	}

	var result Result
	assetSeen := make(map[string]struct{})
	addAsset := func(rawURL string) {
		if _, ok := assetSeen[rawURL]; ok {
			return
		}
		assetSeen[rawURL] = struct{}{}
		result.AssetURLs = append(result.AssetURLs, rawURL)
	}

	processed := 0
	for frontier.Len() > 0 && processed < c.cfg.MaxPages {
		target, _ := frontier.Pop()
		if c.cfg.MaxDepth > 0 && target.Depth > c.cfg.MaxDepth {
			c.logger.Debug("discarding over-depth target",
				zap.String("url", target.URL),
				zap.Int("depth", target.Depth),
			)
			continue
		}
		if frontier.Visited(target.URL) {
			continue
		}
		frontier.MarkVisited(target.URL)
		processed++

		if err := c.pacer.Wait(ctx); err != nil {
			return Result{}, err
		}

		fetched, err := c.fetcher.Fetch(ctx, target.URL)
		if err != nil {
			if ctx.Err() != nil {
				return Result{}, ctx.Err()
			}
			result.Failures = append(result.Failures, FailureFromError(target.URL, err))
			c.logger.Warn("fetch failed",
				zap.String("url", target.URL),
				zap.Error(err),
			)
			continue
		}

		if fetched.Kind == fetch.KindBinary {
			// A link queued as a page turned out to be a download.
			addAsset(target.URL)
			c.logger.Debug("page target is a binary asset", zap.String("url", target.URL))
			continue
		}

		result.Pages = append(result.Pages, Page{
			URL:       target.URL,
			Depth:     target.Depth,
			HTML:      fetched.Body,
			FetchedAt: c.clock.Now(),
		})
		c.logger.Info("crawled page",
			zap.String("url", target.URL),
			zap.Int("depth", target.Depth),
		)

		extracted, err := c.extractor.extract(target.URL, fetched.Body)
		if err != nil {
			c.logger.Warn("link extraction failed",
				zap.String("url", target.URL),
				zap.Error(err),
			)
			continue
		}
		for _, link := range extracted.links {
			frontier.Push(link, target.Depth+1)
		}
		for _, asset := range extracted.assets {
			addAsset(asset)
		}
	}

	result.Stats = Stats{
		PagesCrawled:     len(result.Pages),
		AssetsDiscovered: len(result.AssetURLs),
		Failures:         len(result.Failures),
		Duration:         c.clock.Now().Sub(started),
	}
	c.logger.Info("crawl finished",
		zap.Int("pages", result.Stats.PagesCrawled),
		zap.Int("assets", result.Stats.AssetsDiscovered),
		zap.Int("failures", result.Stats.Failures),
		zap.Duration("duration", result.Stats.Duration),
	)
	return result, nil
}

// FailureFromError distills a fetch error into a Failure record. Status
// errors keep their HTTP code.
func FailureFromError(url string, err error) Failure {
	var statusErr *fetch.StatusError
	if errors.As(err, &statusErr) {
		return Failure{URL: url, StatusCode: statusErr.StatusCode, Reason: statusErr.Error()}
	}
	return Failure{URL: url, Reason: err.Error()}
}
