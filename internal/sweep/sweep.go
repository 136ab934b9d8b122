// Package sweep removes temp-file droppings from an output tree by base
// name pattern. It never touches crawl or snapshot state.
package sweep

import (
	"fmt"
	"io/fs"
	"os"
	"path/filepath"

	"go.uber.org/zap"
)

// DefaultPatterns match the scratch files editors and interrupted runs
// leave behind.
var DefaultPatterns = []string{"*.tmp", "*.partial", "*~"}

// Result reports what a sweep removed, or would remove under dry-run.
type Result struct {
	FilesRemoved int
	BytesFreed   int64
	// Files lists the matched paths relative to the swept root.
	Files []string
}

// Run walks root and deletes every file whose base name matches one of
// the glob patterns. Under dryRun nothing is deleted and the result
// reports what would go. Problems with individual files are logged and
// skipped.
func Run(root string, patterns []string, dryRun bool, logger *zap.Logger) (Result, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	if len(patterns) == 0 {
		patterns = DefaultPatterns
	}
	for _, pattern := range patterns {
		if _, err := filepath.Match(pattern, "probe"); err != nil {
			return Result{}, fmt.Errorf("bad pattern %q: %w", pattern, err)
		}
	}

	var result Result
	walkErr := filepath.WalkDir(root, func(fullPath string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() || !matchesAny(patterns, d.Name()) {
			return nil
		}

		info, err := d.Info()
		if err != nil {
			logger.Warn("skipping unstatable file",
				zap.String("path", fullPath),
				zap.Error(err),
			)
			return nil
		}
		if !dryRun {
			if err := os.Remove(fullPath); err != nil {
				logger.Warn("failed to remove file",
					zap.String("path", fullPath),
					zap.Error(err),
				)
				return nil
			}
		}

		rel, err := filepath.Rel(root, fullPath)
		if err != nil {
			rel = fullPath
		}
		result.FilesRemoved++
		result.BytesFreed += info.Size()
		result.Files = append(result.Files, filepath.ToSlash(rel))
		return nil
	})
	if walkErr != nil {
		return Result{}, fmt.Errorf("sweep %s: %w", root, walkErr)
	}
	return result, nil
}

func matchesAny(patterns []string, name string) bool {
	for _, pattern := range patterns {
		// Patterns were validated up front; Match cannot fail here.
		if ok, _ := filepath.Match(pattern, name); ok {
			return true
		}
	}
	return false
}
