// Package snapshot owns the on-disk layout of one exported site: a
// timestamped root directory, the page tree, the classified asset
// buckets, and the metadata record describing the run.
package snapshot

import (
	"encoding/json"
	"fmt"
	"net/url"
	"os"
	"path"
	"path/filepath"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/sitesnap/sitesnap/internal/clock"
)

// snapshotTimeLayout names snapshot roots at second resolution.
const snapshotTimeLayout = "2006-01-02_15-04-05"

// metadataFile is the snapshot's run record, written on success.
const metadataFile = ".metadata.json"

// bucketDirs are the fixed asset subdirectories of every snapshot.
var bucketDirs = []string{"files", "css", "js", "images"}

// RunStats is the caller-supplied portion of the metadata record.
type RunStats struct {
	SiteHost         string      `json:"siteHost"`
	CrawledPages     int         `json:"crawledPages"`
	DownloadedAssets int         `json:"downloadedAssets"`
	FailedURLs       []FailedURL `json:"failedUrls"`
	CrawlDuration    string      `json:"crawlDuration"`
	RunID            string      `json:"runId"`
}

// FailedURL records one URL that never produced a usable response.
type FailedURL struct {
	URL        string `json:"url"`
	StatusCode int    `json:"statusCode,omitempty"`
	Reason     string `json:"reason"`
}

// metadataRecord is the document written to .metadata.json: a fixed
// envelope merged flat with the caller statistics.
type metadataRecord struct {
	Timestamp   string `json:"timestamp"`
	PagesCount  int    `json:"pagesCount"`
	AssetsCount int    `json:"assetsCount"`
	RunStats
}

// Manager owns one snapshot directory for the lifetime of a run. It is
// not safe for concurrent use.
type Manager struct {
	root      string
	clock     clock.Clock
	hasher    Hasher
	logger    *zap.Logger
	assets    *AssetStore
	pageCount int
}

// Create makes the timestamped snapshot root under outputRoot together
// with the fixed asset buckets and returns a manager bound to it.
func Create(outputRoot string, clk clock.Clock, hasher Hasher, logger *zap.Logger) (*Manager, error) {
	if strings.TrimSpace(outputRoot) == "" {
		return nil, fmt.Errorf("output root is required")
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	root := filepath.Join(outputRoot, clk.Now().Format(snapshotTimeLayout))
	for _, dir := range bucketDirs {
		if err := os.MkdirAll(filepath.Join(root, dir), 0o750); err != nil {
			return nil, fmt.Errorf("create snapshot tree: %w", err)
		}
	}
	logger.Info("created snapshot", zap.String("root", root))

	return &Manager{
		root:   root,
		clock:  clk,
		hasher: hasher,
		logger: logger,
		assets: NewAssetStore(root, hasher, logger),
	}, nil
}

// Root returns the absolute snapshot directory.
func (m *Manager) Root() string {
	return m.root
}

// Assets returns the store that writes into this snapshot.
func (m *Manager) Assets() *AssetStore {
	return m.assets
}

// PageCount reports how many pages have been saved.
func (m *Manager) PageCount() int {
	return m.pageCount
}

// SavePage maps url to its deterministic location and writes the markup
// there: the root path becomes index.html, an extensionless path gains a
// trailing /index.html, and a path with an extension is used verbatim.
// URLs that cannot be parsed, or whose mapped path would leave the
// snapshot, fall back to a hash-named file under the pages bucket.
func (m *Manager) SavePage(rawURL string, markup []byte) (string, error) {
	rel, ok := pagePath(rawURL)
	var fullPath string
	if ok {
		fullPath, ok = resolveWithin(m.root, rel)
	}
	if !ok {
		var err error
		rel, err = m.hashedPagePath(rawURL)
		if err != nil {
			return "", err
		}
		fullPath = filepath.Join(m.root, filepath.FromSlash(rel))
	}

	if err := writeFileAt(fullPath, markup); err != nil {
		return "", fmt.Errorf("save page %s: %w", rawURL, err)
	}
	m.pageCount++
	m.logger.Debug("saved page", zap.String("url", rawURL), zap.String("path", rel))
	return rel, nil
}

// pagePath maps a parseable URL to its relative location; ok is false
// when the URL does not parse.
func pagePath(rawURL string) (string, bool) {
	u, err := url.Parse(rawURL)
	if err != nil {
		return "", false
	}
	trimmed := strings.Trim(u.Path, "/")
	if trimmed == "" {
		return "index.html", true
	}
	if path.Ext(trimmed) == "" {
		return path.Join(trimmed, "index.html"), true
	}
	return trimmed, true
}

func (m *Manager) hashedPagePath(rawURL string) (string, error) {
	hash, err := m.hasher.Hash([]byte(rawURL))
	if err != nil {
		return "", fmt.Errorf("hash page url: %w", err)
	}
	return path.Join("pages", hash[:16]+".html"), nil
}

// SaveMetadata writes the run record: the fixed envelope (timestamp and
// the manager's own counters) merged with the caller's crawl statistics.
func (m *Manager) SaveMetadata(stats RunStats) error {
	record := metadataRecord{
		Timestamp:   m.clock.Now().UTC().Format(time.RFC3339),
		PagesCount:  m.pageCount,
		AssetsCount: m.assets.StoredCount(),
		RunStats:    stats,
	}
	data, err := json.MarshalIndent(record, "", "  ")
	if err != nil {
		return fmt.Errorf("encode metadata: %w", err)
	}
	if err := os.WriteFile(filepath.Join(m.root, metadataFile), data, 0o600); err != nil {
		return fmt.Errorf("write metadata: %w", err)
	}
	return nil
}

// CleanupIfEmpty removes the snapshot tree when it holds fewer than two
// meaningful entries. The bucket directories are created eagerly, so the
// ones still empty do not count toward the threshold.
func (m *Manager) CleanupIfEmpty() (bool, error) {
	entries, err := os.ReadDir(m.root)
	if err != nil {
		return false, fmt.Errorf("read snapshot root: %w", err)
	}

	meaningful := 0
	for _, entry := range entries {
		if entry.IsDir() {
			children, err := os.ReadDir(filepath.Join(m.root, entry.Name()))
			if err == nil && len(children) == 0 {
				continue
			}
		}
		meaningful++
	}
	if meaningful >= 2 {
		return false, nil
	}

	if err := os.RemoveAll(m.root); err != nil {
		return false, fmt.Errorf("remove snapshot root: %w", err)
	}
	m.logger.Info("removed near-empty snapshot", zap.String("root", m.root))
	return true, nil
}
