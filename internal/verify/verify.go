// Package verify checks a saved snapshot for broken local references:
// every href, src, and srcset candidate in every saved page must resolve
// to a file inside the same snapshot.
package verify

import (
	"fmt"
	"io/fs"
	"net/url"
	"os"
	"path"
	"path/filepath"
	"slices"
	"strings"

	"github.com/PuerkitoBio/goquery"
	"go.uber.org/zap"

	"github.com/sitesnap/sitesnap/internal/rewrite"
	"github.com/sitesnap/sitesnap/internal/snapshot"
)

// DefaultMaxIssues caps the reported issue groups for readability.
const DefaultMaxIssues = 25

// Issue is one missing target together with the pages referencing it.
type Issue struct {
	// Target is the snapshot-relative path that does not exist.
	Target string
	// Pages lists the snapshot-relative pages that reference it.
	Pages []string
	// Refs counts raw references, including repeats within one page.
	Refs int
}

// Report summarizes one verification pass.
type Report struct {
	SnapshotRoot    string
	PagesScanned    int
	RefsChecked     int
	Issues          []Issue
	TruncatedIssues int
}

// Clean reports whether every checked reference resolved.
func (r Report) Clean() bool {
	return len(r.Issues) == 0
}

// Options tunes a verification pass.
type Options struct {
	// MaxIssues caps the issue groups; zero means DefaultMaxIssues.
	MaxIssues int
}

// Latest returns the newest snapshot directory under outputRoot.
func Latest(outputRoot string) (string, error) {
	infos, err := snapshot.List(outputRoot)
	if err != nil {
		return "", fmt.Errorf("list snapshots: %w", err)
	}
	if len(infos) == 0 {
		return "", fmt.Errorf("no snapshot found under %s", outputRoot)
	}
	return infos[0].Path, nil
}

// Run scans every saved page under snapshotRoot and reports the local
// references that do not resolve, grouped by missing target in
// first-seen order.
func Run(snapshotRoot string, opts Options, logger *zap.Logger) (Report, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	maxIssues := opts.MaxIssues
	if maxIssues <= 0 {
		maxIssues = DefaultMaxIssues
	}

	info, err := os.Stat(snapshotRoot)
	if err != nil || !info.IsDir() {
		return Report{}, fmt.Errorf("no snapshot found at %s", snapshotRoot)
	}

	report := Report{SnapshotRoot: snapshotRoot}
	missing := make(map[string]*Issue)
	var order []string

	walkErr := filepath.WalkDir(snapshotRoot, func(fullPath string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() || !strings.EqualFold(filepath.Ext(d.Name()), ".html") {
			return nil
		}
		relPage, err := filepath.Rel(snapshotRoot, fullPath)
		if err != nil {
			return err
		}
		relPage = filepath.ToSlash(relPage)

		refs, err := pageRefs(fullPath)
		if err != nil {
			logger.Warn("skipping unreadable page",
				zap.String("page", relPage),
				zap.Error(err),
			)
			return nil
		}
		report.PagesScanned++

		for _, ref := range refs {
			target, ok := resolveRef(relPage, ref)
			if !ok {
				continue
			}
			report.RefsChecked++
			if targetExists(snapshotRoot, target) {
				continue
			}
			issue, seen := missing[target]
			if !seen {
				issue = &Issue{Target: target}
				missing[target] = issue
				order = append(order, target)
			}
			issue.Refs++
			if !slices.Contains(issue.Pages, relPage) {
				issue.Pages = append(issue.Pages, relPage)
			}
		}
		return nil
	})
	if walkErr != nil {
		return Report{}, fmt.Errorf("walk snapshot: %w", walkErr)
	}

	for _, target := range order {
		if len(report.Issues) == maxIssues {
			report.TruncatedIssues = len(order) - maxIssues
			break
		}
		report.Issues = append(report.Issues, *missing[target])
	}
	return report, nil
}

// pageRefs collects every href, src, and srcset candidate in one page.
func pageRefs(fullPath string) ([]string, error) {
	file, err := os.Open(fullPath)
	if err != nil {
		return nil, fmt.Errorf("open page: %w", err)
	}
	defer func() {
		_ = file.Close()
	}()

	doc, err := goquery.NewDocumentFromReader(file)
	if err != nil {
		return nil, fmt.Errorf("parse page: %w", err)
	}

	var refs []string
	doc.Find("[href]").Each(func(_ int, sel *goquery.Selection) {
		href, _ := sel.Attr("href")
		refs = append(refs, href)
	})
	doc.Find("[src]").Each(func(_ int, sel *goquery.Selection) {
		src, _ := sel.Attr("src")
		refs = append(refs, src)
	})
	doc.Find("[srcset]").Each(func(_ int, sel *goquery.Selection) {
		srcset, _ := sel.Attr("srcset")
		refs = append(refs, rewrite.SrcsetURLs(srcset)...)
	})
	return refs, nil
}

// resolveRef maps a reference to its snapshot-relative target. Special
// schemes, externals, and fragment-only refs are not local targets;
// query and fragment are stripped the same way asset save paths strip
// them.
func resolveRef(relPage, ref string) (string, bool) {
	ref = strings.TrimSpace(ref)
	if ref == "" || rewrite.IsSpecialRef(ref) {
		return "", false
	}
	u, err := url.Parse(ref)
	if err != nil {
		return "", false
	}
	if u.Scheme != "" || u.Host != "" {
		return "", false
	}
	if u.Path == "" {
		return "", false
	}
	if u.Path == "/" {
		return "index.html", true
	}

	var target string
	if strings.HasPrefix(u.Path, "/") {
		target = path.Clean(strings.TrimPrefix(u.Path, "/"))
	} else {
		target = path.Join(path.Dir(relPage), u.Path)
	}
	if target == "" || target == "." {
		return "", false
	}
	return target, true
}

// targetExists accepts a target when the file is present, or when an
// extensionless target is a directory holding an index.html.
func targetExists(root, target string) bool {
	if strings.HasPrefix(target, "..") {
		return false
	}
	fullPath := filepath.Join(root, filepath.FromSlash(target))
	if fileExists(fullPath) {
		return true
	}
	if path.Ext(target) == "" && fileExists(filepath.Join(fullPath, "index.html")) {
		return true
	}
	return false
}

func fileExists(p string) bool {
	info, err := os.Stat(p)
	return err == nil && !info.IsDir()
}
