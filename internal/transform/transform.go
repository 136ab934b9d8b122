// Package transform rewrites crawled markup into a form that works under
// static hosting: scripts and CMS chrome are stripped, references are
// made domain-relative, and interactive embeds are replaced with a
// pointer to the contact page.
package transform

import (
	"bytes"
	"fmt"
	"net/url"
	"strings"

	"github.com/PuerkitoBio/goquery"
	"golang.org/x/net/html"

	"github.com/sitesnap/sitesnap/internal/rewrite"
)

// defaultAdminSelectors name CMS editing chrome removed wholesale from
// every page.
var defaultAdminSelectors = []string{
	"#admin-menu",
	"#toolbar",
	"#toolbar-administration",
	".contextual-links-wrapper",
	"ul.contextual-links",
	".tabs.primary",
	"ul.primary.tabs",
	".messages--status",
	"#edit-actions",
}

// adminPathPrefixes and adminPathSuffixes flag anchors that point at CMS
// management pages. Matching runs after reference rewriting, so
// same-domain absolute links are already domain-relative here.
var (
	adminPathPrefixes = []string{"/admin", "/user/logout", "/user/login"}
	adminPathSuffixes = []string{"/edit", "/delete", "/revisions"}
)

// inlineHandlers are event attributes stripped from every element.
var inlineHandlers = []string{"onclick", "onerror", "onload"}

// presentationAttrs are legacy layout attributes dropped during cleanup.
var presentationAttrs = []string{"align", "valign", "bgcolor"}

// flaggedNotice replaces marker-flagged iframes, forms, and anchors. The
// verb placeholder carries the contact link.
const flaggedNotice = `<div class="archived-feature"><p>This interactive feature is not included in the static archive. Please use the <a href="%s">contact page</a> instead.</p></div>`

// Config tunes the per-site behavior of the transformer.
type Config struct {
	// MarkerToken flags elements for replacement by case-insensitive
	// substring match. Empty disables the replacement step.
	MarkerToken string
	// ContactURL is linked from the replacement notice.
	ContactURL string
	// AdminSelectors overrides the default chrome-removal table when
	// non-empty.
	AdminSelectors []string
}

// Transformer applies the fixed markup step sequence to one page at a
// time. It keeps no cross-page state.
type Transformer struct {
	rewriter       *rewrite.Rewriter
	marker         string
	contactURL     string
	adminSelectors []string
}

// New builds a transformer bound to the shared rewriter.
func New(rw *rewrite.Rewriter, cfg Config) *Transformer {
	contact := cfg.ContactURL
	if contact == "" {
		contact = "/contact"
	}
	selectors := cfg.AdminSelectors
	if len(selectors) == 0 {
		selectors = defaultAdminSelectors
	}
	return &Transformer{
		rewriter:       rw,
		marker:         strings.ToLower(cfg.MarkerToken),
		contactURL:     contact,
		adminSelectors: selectors,
	}
}

// Apply runs the step sequence over one page's markup and returns the
// serialized result. The input is never mutated.
func (t *Transformer) Apply(markup []byte) ([]byte, error) {
	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(markup))
	if err != nil {
		return nil, fmt.Errorf("parse markup: %w", err)
	}

	t.sanitizeScripts(doc)
	t.rewriteRefs(doc)
	t.replaceFlagged(doc)
	t.removeAdminChrome(doc)
	t.cleanup(doc)

	out, err := doc.Html()
	if err != nil {
		return nil, fmt.Errorf("serialize markup: %w", err)
	}
	return []byte(out), nil
}

// sanitizeScripts drops executable scripts and inline event handlers.
// A script without a type attribute defaults to JavaScript, so only
// non-JavaScript types (JSON-LD, templates) survive.
func (t *Transformer) sanitizeScripts(doc *goquery.Document) {
	doc.Find("script").Each(func(_ int, sel *goquery.Selection) {
		if _, hasSrc := sel.Attr("src"); hasSrc {
			sel.Remove()
			return
		}
		if isJavaScriptType(sel.AttrOr("type", "")) {
			sel.Remove()
		}
	})
	for _, handler := range inlineHandlers {
		doc.Find("[" + handler + "]").RemoveAttr(handler)
	}
}

func isJavaScriptType(scriptType string) bool {
	scriptType = strings.ToLower(strings.TrimSpace(scriptType))
	if scriptType == "" || scriptType == "module" {
		return true
	}
	return strings.Contains(scriptType, "javascript")
}

// rewriteRefs maps every href, src, and srcset through the rewriter.
// Special schemes and fragment-only values pass through untouched.
func (t *Transformer) rewriteRefs(doc *goquery.Document) {
	doc.Find("[href]").Each(func(_ int, sel *goquery.Selection) {
		href, _ := sel.Attr("href")
		if rewrite.IsSpecialRef(href) {
			return
		}
		sel.SetAttr("href", t.rewriter.Rewrite(href))
	})
	doc.Find("[src]").Each(func(_ int, sel *goquery.Selection) {
		src, _ := sel.Attr("src")
		if rewrite.IsSpecialRef(src) {
			return
		}
		sel.SetAttr("src", t.rewriter.Rewrite(src))
	})
	doc.Find("[srcset]").Each(func(_ int, sel *goquery.Selection) {
		srcset, _ := sel.Attr("srcset")
		sel.SetAttr("srcset", t.rewriter.RewriteSrcset(srcset))
	})
}

// replaceFlagged swaps marker-flagged interactive elements for the notice
// block. An empty marker disables the step.
func (t *Transformer) replaceFlagged(doc *goquery.Document) {
	if t.marker == "" {
		return
	}
	notice := fmt.Sprintf(flaggedNotice, t.contactURL)

	doc.Find("iframe").Each(func(_ int, sel *goquery.Selection) {
		if t.attrFlagged(sel, "src") || t.attrFlagged(sel, "class") {
			sel.ReplaceWithHtml(notice)
		}
	})
	doc.Find("form").Each(func(_ int, sel *goquery.Selection) {
		if t.attrFlagged(sel, "action") || t.attrFlagged(sel, "class") {
			sel.ReplaceWithHtml(notice)
		}
	})
	doc.Find("a").Each(func(_ int, sel *goquery.Selection) {
		if t.attrFlagged(sel, "href") || strings.Contains(strings.ToLower(sel.Text()), t.marker) {
			sel.ReplaceWithHtml(notice)
		}
	})
}

func (t *Transformer) attrFlagged(sel *goquery.Selection, name string) bool {
	value, ok := sel.Attr(name)
	if !ok {
		return false
	}
	return strings.Contains(strings.ToLower(value), t.marker)
}

// removeAdminChrome strips the selector table plus anchors that point at
// management paths. An anchor sitting directly inside a list item takes
// the whole item with it.
func (t *Transformer) removeAdminChrome(doc *goquery.Document) {
	for _, selector := range t.adminSelectors {
		doc.Find(selector).Remove()
	}
	doc.Find("a[href]").Each(func(_ int, sel *goquery.Selection) {
		href, _ := sel.Attr("href")
		if !isAdminHref(href) {
			return
		}
		if parent := sel.Parent(); goquery.NodeName(parent) == "li" {
			parent.Remove()
			return
		}
		sel.Remove()
	})
}

func isAdminHref(href string) bool {
	u, err := url.Parse(href)
	if err != nil {
		return false
	}
	for _, prefix := range adminPathPrefixes {
		if strings.HasPrefix(u.Path, prefix) {
			return true
		}
	}
	for _, suffix := range adminPathSuffixes {
		if strings.HasSuffix(u.Path, suffix) {
			return true
		}
	}
	return false
}

// cleanup removes elements emptied by the earlier steps, comment nodes,
// and legacy presentation attributes. Empty-element removal repeats until
// stable because removing a child can empty its parent.
func (t *Transformer) cleanup(doc *goquery.Document) {
	for {
		removed := false
		doc.Find("p, div").Each(func(_ int, sel *goquery.Selection) {
			if sel.Children().Length() == 0 && strings.TrimSpace(sel.Text()) == "" {
				sel.Remove()
				removed = true
			}
		})
		if !removed {
			break
		}
	}

	for _, node := range doc.Nodes {
		removeComments(node)
	}

	for _, attr := range presentationAttrs {
		doc.Find("[" + attr + "]").RemoveAttr(attr)
	}
}

func removeComments(n *html.Node) {
	for child := n.FirstChild; child != nil; {
		next := child.NextSibling
		if child.Type == html.CommentNode {
			n.RemoveChild(child)
		} else {
			removeComments(child)
		}
		child = next
	}
}
