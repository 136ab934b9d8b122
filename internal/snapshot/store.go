package snapshot

import (
	"fmt"
	"net/url"
	"os"
	"path"
	"path/filepath"
	"strings"

	"github.com/kennygrant/sanitize"
	"go.uber.org/zap"
)

// Hasher produces the content address used for asset deduplication.
type Hasher interface {
	Hash(data []byte) (string, error)
}

// SaveStatus tells the caller what a save did with the bytes.
type SaveStatus int

const (
	// Stored means a new file was written.
	Stored SaveStatus = iota
	// Deduplicated means byte-identical content was already on disk; the
	// returned record points at the existing file.
	Deduplicated
	// Skipped means the target path was rejected and nothing was written.
	Skipped
)

// AssetRecord tracks one unique byte sequence within a snapshot.
// StoredPath is relative to the snapshot root.
type AssetRecord struct {
	ContentHash string
	StoredPath  string
}

// AssetStore writes asset files under one snapshot root with content-hash
// deduplication. The hash→record map is the single source of truth for
// dedup and lives exactly as long as the run; nothing is shared across
// snapshots. The store is not safe for concurrent use.
type AssetStore struct {
	root    string
	hasher  Hasher
	logger  *zap.Logger
	records map[string]AssetRecord
}

// NewAssetStore builds a store rooted at the snapshot directory.
func NewAssetStore(root string, hasher Hasher, logger *zap.Logger) *AssetStore {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &AssetStore{
		root:    root,
		hasher:  hasher,
		logger:  logger,
		records: make(map[string]AssetRecord),
	}
}

// StoredCount reports how many unique files the store has written.
func (s *AssetStore) StoredCount() int {
	return len(s.records)
}

// SaveAt writes data under the given snapshot-relative path. A path that
// resolves outside the snapshot root is rejected with Skipped; rejection
// is a signal for the caller to log and move on, not an error. Byte
// content already recorded under any path is not written again.
func (s *AssetStore) SaveAt(logicalPath string, data []byte) (AssetRecord, SaveStatus, error) {
	rel, ok := normalizeRelPath(logicalPath)
	if !ok {
		return AssetRecord{}, Skipped, nil
	}
	fullPath, ok := resolveWithin(s.root, rel)
	if !ok {
		return AssetRecord{}, Skipped, nil
	}

	hash, err := s.hasher.Hash(data)
	if err != nil {
		return AssetRecord{}, Skipped, fmt.Errorf("hash content: %w", err)
	}
	if record, known := s.records[hash]; known {
		return record, Deduplicated, nil
	}

	if err := writeFileAt(fullPath, data); err != nil {
		return AssetRecord{}, Skipped, fmt.Errorf("store asset %s: %w", rel, err)
	}

	record := AssetRecord{ContentHash: hash, StoredPath: rel}
	s.records[hash] = record
	s.logger.Debug("stored asset", zap.String("path", rel))
	return record, Stored, nil
}

// SaveClassified stores data without a caller-chosen location: the bucket
// comes from the declared content type or the URL's extension, the
// filename from the URL's final path segment. An unusable segment falls
// back to a name derived from the content hash.
func (s *AssetStore) SaveClassified(rawURL, contentType string, data []byte) (AssetRecord, SaveStatus, error) {
	name := segmentName(rawURL)
	if name == "" {
		hash, err := s.hasher.Hash(data)
		if err != nil {
			return AssetRecord{}, Skipped, fmt.Errorf("hash content: %w", err)
		}
		name = hash[:12]
	}
	bucket := bucketFor(contentType, name)
	return s.SaveAt(path.Join(bucket, name), data)
}

// segmentName derives a safe filename from the URL's last path segment.
// The extension is sanitized separately so its dot survives.
func segmentName(rawURL string) string {
	u, err := url.Parse(rawURL)
	if err != nil {
		return ""
	}
	segment := path.Base(u.Path)
	if segment == "." || segment == "/" {
		return ""
	}
	ext := path.Ext(segment)
	base := sanitize.BaseName(strings.TrimSuffix(segment, ext))
	if base == "" {
		return ""
	}
	cleanExt := strings.TrimPrefix(sanitize.BaseName(ext), "-")
	if cleanExt == "" {
		return base
	}
	return base + "." + cleanExt
}

// bucketFor picks the storage subdirectory from the declared MIME type,
// falling back to the filename extension.
func bucketFor(contentType, name string) string {
	mediaType := strings.ToLower(contentType)
	switch {
	case strings.HasPrefix(mediaType, "image/"):
		return "images"
	case strings.Contains(mediaType, "css"):
		return "css"
	case strings.Contains(mediaType, "javascript"):
		return "js"
	}
	switch strings.ToLower(path.Ext(name)) {
	case ".png", ".jpg", ".jpeg", ".gif", ".webp", ".svg", ".ico", ".bmp":
		return "images"
	case ".css":
		return "css"
	case ".js", ".mjs":
		return "js"
	}
	return "files"
}

// normalizeRelPath cleans a snapshot-relative path and rejects anything
// empty, absolute, or climbing out of the tree.
func normalizeRelPath(logicalPath string) (string, bool) {
	rel := path.Clean(strings.TrimPrefix(logicalPath, "/"))
	if rel == "" || rel == "." || strings.HasPrefix(rel, "..") || path.IsAbs(rel) {
		return "", false
	}
	return rel, true
}

// resolveWithin joins rel onto root and verifies the result stays
// strictly inside it.
func resolveWithin(root, rel string) (string, bool) {
	fullPath := filepath.Join(root, filepath.FromSlash(rel))
	cleanRoot := filepath.Clean(root)
	cleanFull := filepath.Clean(fullPath)
	if !strings.HasPrefix(cleanFull, cleanRoot+string(filepath.Separator)) {
		return "", false
	}
	return cleanFull, true
}

// writeFileAt creates parent directories and writes the file.
func writeFileAt(fullPath string, data []byte) error {
	if err := os.MkdirAll(filepath.Dir(fullPath), 0o750); err != nil {
		return fmt.Errorf("create parent directories: %w", err)
	}
	if err := os.WriteFile(fullPath, data, 0o600); err != nil {
		return fmt.Errorf("write file: %w", err)
	}
	return nil
}
