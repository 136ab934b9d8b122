// Package pipeline drives a complete export run: crawl the site,
// transform and save every page, download and store every asset, then
// record the run metadata.
package pipeline

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/sitesnap/sitesnap/internal/clock"
	"github.com/sitesnap/sitesnap/internal/config"
	"github.com/sitesnap/sitesnap/internal/crawl"
	"github.com/sitesnap/sitesnap/internal/fetch"
	"github.com/sitesnap/sitesnap/internal/hash/sha256"
	"github.com/sitesnap/sitesnap/internal/id/uuid"
	"github.com/sitesnap/sitesnap/internal/rewrite"
	"github.com/sitesnap/sitesnap/internal/snapshot"
	"github.com/sitesnap/sitesnap/internal/transform"
)

// IDGenerator mints the run identifier recorded in snapshot metadata.
type IDGenerator interface {
	NewID() (string, error)
}

// Summary reports the outcome of one export run.
type Summary struct {
	SnapshotRoot  string
	RunID         string
	PagesSaved    int
	AssetsStored  int
	AssetsDeduped int
	AssetsSkipped int
	Failures      int
	Duration      time.Duration
}

// Pipeline wires the crawl, transform, and snapshot stages together for
// one site. Build one per run.
type Pipeline struct {
	cfg         config.Config
	fetcher     crawl.Fetcher
	rewriter    *rewrite.Rewriter
	transformer *transform.Transformer
	pacer       *crawl.Pacer
	clock       clock.Clock
	hasher      snapshot.Hasher
	ids         IDGenerator
	logger      *zap.Logger
}

// New builds a pipeline whose fetcher dials the configured origin.
func New(cfg config.Config, clk clock.Clock, logger *zap.Logger) *Pipeline {
	fetcher := fetch.New(fetch.Config{
		Hostname:       cfg.Site.Hostname,
		OriginIP:       cfg.Site.OriginIP,
		ConnectTimeout: cfg.ConnectTimeout(),
		ReadTimeout:    cfg.ReadTimeout(),
		MaxRetries:     cfg.Crawl.MaxRetries,
		UserAgents:     cfg.HTTP.UserAgents,
	}, clk, logger)
	return NewWithFetcher(cfg, fetcher, clk, logger)
}

// NewWithFetcher builds a pipeline over a caller-supplied fetcher. Tests
// inject fixture-backed clients through it.
func NewWithFetcher(cfg config.Config, fetcher crawl.Fetcher, clk clock.Clock, logger *zap.Logger) *Pipeline {
	if logger == nil {
		logger = zap.NewNop()
	}
	rw := rewrite.New(cfg.Site.Hostname)
	return &Pipeline{
		cfg:      cfg,
		fetcher:  fetcher,
		rewriter: rw,
		transformer: transform.New(rw, transform.Config{
			MarkerToken: cfg.Crawl.MarkerToken,
			ContactURL:  cfg.Site.ContactURL,
		}),
		pacer:  crawl.NewPacer(cfg.Delay()),
		clock:  clk,
		hasher: sha256.New(),
		ids:    uuid.NewGenerator(),
		logger: logger,
	}
}

// Run executes one complete export. A run-level error removes the
// snapshot when it holds nothing of value; per-URL problems are recorded
// and never abort the run.
func (p *Pipeline) Run(ctx context.Context) (Summary, error) {
	started := p.clock.Now()

	manager, err := snapshot.Create(p.cfg.Output.Root, p.clock, p.hasher, p.logger)
	if err != nil {
		return Summary{}, fmt.Errorf("create snapshot: %w", err)
	}

	summary, err := p.export(ctx, manager)
	if err != nil {
		removed, cleanupErr := manager.CleanupIfEmpty()
		if cleanupErr != nil {
			p.logger.Warn("cleanup after failed run", zap.Error(cleanupErr))
		} else if removed {
			p.logger.Info("removed snapshot of failed run", zap.String("root", manager.Root()))
		}
		return Summary{}, err
	}

	summary.Duration = p.clock.Now().Sub(started)
	p.logger.Info("export complete",
		zap.String("snapshot", summary.SnapshotRoot),
		zap.String("run_id", summary.RunID),
		zap.Int("pages", summary.PagesSaved),
		zap.Int("assets", summary.AssetsStored),
		zap.Int("failures", summary.Failures),
		zap.Duration("duration", summary.Duration),
	)
	return summary, nil
}

func (p *Pipeline) export(ctx context.Context, manager *snapshot.Manager) (Summary, error) {
	crawler := crawl.New(crawl.Config{
		RootURL:  "https://" + p.cfg.Site.Hostname + "/",
		MaxDepth: p.cfg.Crawl.MaxDepth,
		MaxPages: p.cfg.Crawl.MaxPages,
		Delay:    p.cfg.Delay(),
	}, p.fetcher, p.rewriter, p.clock, p.logger)

	crawled, err := crawler.Run(ctx)
	if err != nil {
		return Summary{}, fmt.Errorf("crawl site: %w", err)
	}

	for _, page := range crawled.Pages {
		markup, err := p.transformer.Apply(page.HTML)
		if err != nil {
			p.logger.Warn("transform failed; saving page as fetched",
				zap.String("url", page.URL),
				zap.Error(err),
			)
			markup = page.HTML
		}
		if _, err := manager.SavePage(page.URL, markup); err != nil {
			return Summary{}, fmt.Errorf("save page: %w", err)
		}
	}

	failures := crawled.Failures
	deduped, skipped := 0, 0
	for _, assetURL := range crawled.AssetURLs {
		if err := p.pacer.Wait(ctx); err != nil {
			return Summary{}, err
		}
		result, err := p.fetcher.Fetch(ctx, assetURL)
		if err != nil {
			if ctx.Err() != nil {
				return Summary{}, ctx.Err()
			}
			failures = append(failures, crawl.FailureFromError(assetURL, err))
			p.logger.Warn("asset fetch failed",
				zap.String("url", assetURL),
				zap.Error(err),
			)
			continue
		}

		_, status, err := p.saveAsset(manager.Assets(), result)
		if err != nil {
			return Summary{}, fmt.Errorf("store asset: %w", err)
		}
		switch status {
		case snapshot.Deduplicated:
			deduped++
		case snapshot.Skipped:
			skipped++
			p.logger.Warn("asset path rejected; skipped", zap.String("url", assetURL))
		}
	}

	runID, err := p.ids.NewID()
	if err != nil {
		return Summary{}, fmt.Errorf("generate run id: %w", err)
	}

	if err := manager.SaveMetadata(snapshot.RunStats{
		SiteHost:         p.rewriter.Host(),
		CrawledPages:     crawled.Stats.PagesCrawled,
		DownloadedAssets: manager.Assets().StoredCount(),
		FailedURLs:       toFailedURLs(failures),
		CrawlDuration:    crawled.Stats.Duration.String(),
		RunID:            runID,
	}); err != nil {
		return Summary{}, fmt.Errorf("save metadata: %w", err)
	}

	return Summary{
		SnapshotRoot:  manager.Root(),
		RunID:         runID,
		PagesSaved:    manager.PageCount(),
		AssetsStored:  manager.Assets().StoredCount(),
		AssetsDeduped: deduped,
		AssetsSkipped: skipped,
		Failures:      len(failures),
	}, nil
}

// saveAsset stores one fetched asset: at the path the markup already
// references when the URL yields one, otherwise classified into a bucket.
func (p *Pipeline) saveAsset(store *snapshot.AssetStore, result fetch.Result) (snapshot.AssetRecord, snapshot.SaveStatus, error) {
	if savePath, ok := p.rewriter.SavePath(result.URL); ok {
		return store.SaveAt(savePath, result.Body)
	}
	return store.SaveClassified(result.URL, result.ContentType, result.Body)
}

func toFailedURLs(failures []crawl.Failure) []snapshot.FailedURL {
	out := make([]snapshot.FailedURL, 0, len(failures))
	for _, f := range failures {
		out = append(out, snapshot.FailedURL{
			URL:        f.URL,
			StatusCode: f.StatusCode,
			Reason:     f.Reason,
		})
	}
	return out
}
