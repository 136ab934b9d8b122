package snapshot

import (
	"encoding/json"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"regexp"
	"sort"
	"time"

	"golang.org/x/sync/errgroup"
)

// sizeWorkers bounds the parallel directory walks during listing.
const sizeWorkers = 4

var snapshotNamePattern = regexp.MustCompile(`^\d{4}-\d{2}-\d{2}_\d{2}-\d{2}-\d{2}$`)

// Info describes one snapshot directory for the listing command.
type Info struct {
	Name        string
	Path        string
	CreatedAt   time.Time
	SizeBytes   int64
	PagesCount  int
	AssetsCount int
	HasMetadata bool
}

// List enumerates the snapshots under outputRoot, newest first, each
// annotated with its recursive size and, when readable, the metadata
// counts.
func List(outputRoot string) ([]Info, error) {
	entries, err := os.ReadDir(outputRoot)
	if err != nil {
		return nil, fmt.Errorf("read output root: %w", err)
	}

	var infos []Info
	for _, entry := range entries {
		if !entry.IsDir() || !snapshotNamePattern.MatchString(entry.Name()) {
			continue
		}
		createdAt, err := time.Parse(snapshotTimeLayout, entry.Name())
		if err != nil {
			continue
		}
		infos = append(infos, Info{
			Name:      entry.Name(),
			Path:      filepath.Join(outputRoot, entry.Name()),
			CreatedAt: createdAt,
		})
	}
	sort.Slice(infos, func(i, j int) bool {
		return infos[i].CreatedAt.After(infos[j].CreatedAt)
	})

	g := new(errgroup.Group)
	g.SetLimit(sizeWorkers)
	for i := range infos {
		i := i // per-iteration copy: this module builds with go <1.22 loop semantics
		g.Go(func() error {
			size, err := dirSize(infos[i].Path)
			if err != nil {
				return fmt.Errorf("size %s: %w", infos[i].Name, err)
			}
			infos[i].SizeBytes = size
			if record, ok := readMetadata(infos[i].Path); ok {
				infos[i].PagesCount = record.PagesCount
				infos[i].AssetsCount = record.AssetsCount
				infos[i].HasMetadata = true
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return infos, nil
}

func dirSize(root string) (int64, error) {
	var total int64
	err := filepath.WalkDir(root, func(_ string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			return nil
		}
		info, err := d.Info()
		if err != nil {
			return err
		}
		total += info.Size()
		return nil
	})
	return total, err
}

func readMetadata(root string) (metadataRecord, bool) {
	data, err := os.ReadFile(filepath.Join(root, metadataFile))
	if err != nil {
		return metadataRecord{}, false
	}
	var record metadataRecord
	if err := json.Unmarshal(data, &record); err != nil {
		return metadataRecord{}, false
	}
	return record, true
}
