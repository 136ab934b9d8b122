// Package rewrite maps live-site URLs onto their static-hosting form.
//
// One function family produces both the references written into exported
// markup and the relative paths assets are saved under, so a rewritten
// href always points at the file the exporter later writes.
package rewrite

import (
	"net/url"
	"strings"
)

// The CMS keeps uploads under a nested managed path; the snapshot flattens
// it into the top-level files bucket.
const (
	cmsFilesPath = "/sites/default/files/"
	filesPath    = "/files/"
)

var specialSchemes = []string{"data:", "javascript:", "mailto:", "tel:", "sms:"}

// Rewriter rewrites URLs and references for one configured site.
type Rewriter struct {
	host string
}

// New builds a Rewriter for the declared site hostname. The host is held
// in the same canonical form SameDomain uses for candidates: lowercase,
// no port, no leading www.
func New(hostname string) *Rewriter {
	return &Rewriter{host: canonicalHost(hostname)}
}

// Host returns the canonical site host the rewriter compares against.
func (r *Rewriter) Host() string {
	return r.host
}

func canonicalHost(host string) string {
	host = strings.ToLower(strings.TrimSpace(host))
	if i := strings.IndexByte(host, ':'); i != -1 {
		host = host[:i]
	}
	return strings.TrimPrefix(host, "www.")
}

// IsSpecialRef reports whether the reference is fragment-only or uses a
// scheme (data, javascript, mailto, tel, sms) that is never fetched or
// rewritten.
func IsSpecialRef(ref string) bool {
	trimmed := strings.TrimSpace(ref)
	if trimmed == "" || strings.HasPrefix(trimmed, "#") {
		return true
	}
	lower := strings.ToLower(trimmed)
	for _, scheme := range specialSchemes {
		if strings.HasPrefix(lower, scheme) {
			return true
		}
	}
	return false
}

// SameDomain reports whether raw names a host on the configured site.
// A leading www. is stripped from both sides and ports are ignored.
func (r *Rewriter) SameDomain(raw string) bool {
	u, err := url.Parse(strings.TrimSpace(raw))
	if err != nil {
		return false
	}
	return r.sameHost(u)
}

func (r *Rewriter) sameHost(u *url.URL) bool {
	host := strings.TrimPrefix(strings.ToLower(u.Hostname()), "www.")
	return host != "" && host == r.host
}

// Rewrite maps one URL-bearing attribute value to its static-hosting form:
// the CMS upload prefix collapses into /files/ and absolute same-domain
// URLs reduce to domain-relative references. Other-domain absolute URLs
// and already-relative values pass through apart from the prefix remap.
// Query and fragment are preserved verbatim.
func (r *Rewriter) Rewrite(ref string) string {
	trimmed := strings.TrimSpace(ref)
	if trimmed == "" || IsSpecialRef(trimmed) {
		return ref
	}
	u, err := url.Parse(trimmed)
	if err != nil {
		return ref
	}
	u.Path = strings.Replace(u.Path, cmsFilesPath, filesPath, 1)
	u.RawPath = ""
	if u.Host != "" && r.sameHost(u) {
		return relativeForm(u)
	}
	return u.String()
}

func relativeForm(u *url.URL) string {
	rel := url.URL{Path: u.Path, RawQuery: u.RawQuery, Fragment: u.Fragment}
	if rel.Path == "" {
		rel.Path = "/"
	}
	return rel.String()
}

// SavePath derives the on-disk relative path an asset is stored under from
// its source URL: the path component of Rewrite with query and fragment
// stripped and the leading slash trimmed. Static hosts resolve references
// by path, so this keeps the saved file exactly where the rewritten markup
// points. The second return is false when no local path can be derived
// (unparseable input, other-domain URL, empty path).
func (r *Rewriter) SavePath(rawURL string) (string, bool) {
	ref := strings.TrimSpace(rawURL)
	if ref == "" || IsSpecialRef(ref) {
		return "", false
	}
	u, err := url.Parse(r.Rewrite(ref))
	if err != nil || u.Host != "" {
		return "", false
	}
	p := strings.TrimPrefix(u.Path, "/")
	if p == "" || strings.HasSuffix(p, "/") {
		return "", false
	}
	return p, true
}

// RewriteSrcset rewrites each candidate URL in a srcset value, preserving
// resolution descriptors, and rejoins the candidates with ", ".
func (r *Rewriter) RewriteSrcset(value string) string {
	entries := strings.Split(value, ",")
	rewritten := make([]string, 0, len(entries))
	for _, entry := range entries {
		entry = strings.TrimSpace(entry)
		if entry == "" {
			continue
		}
		parts := strings.Fields(entry)
		parts[0] = r.Rewrite(parts[0])
		rewritten = append(rewritten, strings.Join(parts, " "))
	}
	return strings.Join(rewritten, ", ")
}

// SrcsetURLs returns the candidate URLs of a srcset value, descriptors
// dropped, using the same splitting rules as RewriteSrcset.
func SrcsetURLs(value string) []string {
	var urls []string
	for _, entry := range strings.Split(value, ",") {
		entry = strings.TrimSpace(entry)
		if entry == "" {
			continue
		}
		urls = append(urls, strings.Fields(entry)[0])
	}
	return urls
}

// Resolve resolves ref against the page URL and returns an absolute
// http(s) URL with the fragment removed and an empty path canonicalized
// to "/". Fragment-only references and special schemes are dropped.
func Resolve(base *url.URL, ref string) (string, bool) {
	trimmed := strings.TrimSpace(ref)
	if trimmed == "" || IsSpecialRef(trimmed) {
		return "", false
	}
	parsed, err := url.Parse(trimmed)
	if err != nil {
		return "", false
	}
	resolved := parsed
	if parsed.Scheme == "" {
		resolved = base.ResolveReference(parsed)
	}
	if resolved.Scheme != "http" && resolved.Scheme != "https" {
		return "", false
	}
	resolved.Fragment = ""
	if resolved.Path == "" {
		resolved.Path = "/"
	}
	return resolved.String(), true
}
