package crawl

import (
	"bytes"
	"fmt"
	"net/url"
	"path"
	"strings"

	"github.com/PuerkitoBio/goquery"

	"github.com/sitesnap/sitesnap/internal/rewrite"
)

// defaultBinaryExtensions lists anchor targets treated as downloadable
// assets rather than candidate pages: documents, archives, media, fonts.
var defaultBinaryExtensions = []string{
	".7z", ".avi", ".bmp", ".bz2", ".csv", ".doc", ".docx", ".eot", ".flv",
	".gif", ".gz", ".ico", ".jpeg", ".jpg", ".mov", ".mp3", ".mp4", ".odp",
	".ods", ".odt", ".ogg", ".otf", ".pdf", ".png", ".ppt", ".pptx", ".rar",
	".rtf", ".svg", ".tar", ".tgz", ".ttf", ".wav", ".webm", ".webp", ".wmv",
	".woff", ".woff2", ".xls", ".xlsx", ".zip",
}

// extraction holds what one page contributed to the crawl: same-domain
// absolute URLs, split into candidate pages and asset downloads.
type extraction struct {
	links  []string
	assets []string
}

// extractor pulls same-domain references out of fetched HTML. Foreign
// domains, special schemes, and fragment-only links are dropped here so
// the frontier only ever sees crawlable URLs.
type extractor struct {
	rewriter   *rewrite.Rewriter
	binaryExts map[string]struct{}
}

func newExtractor(rw *rewrite.Rewriter) *extractor {
	exts := make(map[string]struct{}, len(defaultBinaryExtensions))
	for _, ext := range defaultBinaryExtensions {
		exts[ext] = struct{}{}
	}
	return &extractor{rewriter: rw, binaryExts: exts}
}

func (e *extractor) extract(pageURL string, body []byte) (extraction, error) {
	base, err := url.Parse(pageURL)
	if err != nil {
		return extraction{}, fmt.Errorf("parse page url: %w", err)
	}
	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(body))
	if err != nil {
		return extraction{}, fmt.Errorf("parse html: %w", err)
	}

	var out extraction

	doc.Find("a[href]").Each(func(_ int, sel *goquery.Selection) {
		href, _ := sel.Attr("href")
		resolved, ok := e.resolve(base, href)
		if !ok {
			return
		}
		if e.isBinaryPath(resolved) {
			out.assets = append(out.assets, resolved)
			return
		}
		out.links = append(out.links, resolved)
	})

	doc.Find("form[action]").Each(func(_ int, sel *goquery.Selection) {
		action, _ := sel.Attr("action")
		if resolved, ok := e.resolve(base, action); ok {
			out.links = append(out.links, resolved)
		}
	})

	doc.Find("img[src], script[src]").Each(func(_ int, sel *goquery.Selection) {
		src, _ := sel.Attr("src")
		if resolved, ok := e.resolve(base, src); ok {
			out.assets = append(out.assets, resolved)
		}
	})

	doc.Find("img[srcset], source[srcset]").Each(func(_ int, sel *goquery.Selection) {
		srcset, _ := sel.Attr("srcset")
		for _, candidate := range rewrite.SrcsetURLs(srcset) {
			if resolved, ok := e.resolve(base, candidate); ok {
				out.assets = append(out.assets, resolved)
			}
		}
	})

	doc.Find("link[href]").Each(func(_ int, sel *goquery.Selection) {
		if rel, _ := sel.Attr("rel"); !relContainsStylesheet(rel) {
			return
		}
		href, _ := sel.Attr("href")
		if resolved, ok := e.resolve(base, href); ok {
			out.assets = append(out.assets, resolved)
		}
	})

	return out, nil
}

// resolve turns a raw attribute value into an absolute same-domain URL,
// or reports that the reference is not crawlable.
func (e *extractor) resolve(base *url.URL, ref string) (string, bool) {
	resolved, ok := rewrite.Resolve(base, ref)
	if !ok {
		return "", false
	}
	if !e.rewriter.SameDomain(resolved) {
		return "", false
	}
	return resolved, true
}

func (e *extractor) isBinaryPath(rawURL string) bool {
	u, err := url.Parse(rawURL)
	if err != nil {
		return false
	}
	_, ok := e.binaryExts[strings.ToLower(path.Ext(u.Path))]
	return ok
}

func relContainsStylesheet(rel string) bool {
	for _, token := range strings.Fields(rel) {
		if strings.EqualFold(token, "stylesheet") {
			return true
		}
	}
	return false
}
