package fetch

import (
	"mime"
	"net/http"
	"strings"
)

// Kind classifies a successful response.
type Kind int

// Classification outcomes for 200 responses.
const (
	// KindPage marks HTML eligible for parsing and link extraction.
	KindPage Kind = iota
	// KindBinary marks content stored byte for byte, never parsed.
	KindBinary
)

// htmlMediaTypes are the media types treated as parseable pages.
var htmlMediaTypes = map[string]struct{}{
	"text/html":             {},
	"application/xhtml+xml": {},
}

// Classify decides whether a 200 response is a page or a binary asset.
// A page carries an HTML media type or none at all, and is not flagged
// as an attachment; everything else is binary.
func Classify(header http.Header) Kind {
	if isAttachment(header.Get("Content-Disposition")) {
		return KindBinary
	}
	ct := strings.TrimSpace(header.Get("Content-Type"))
	if ct == "" {
		return KindPage
	}
	mediaType, _, err := mime.ParseMediaType(ct)
	if err != nil {
		mediaType = strings.ToLower(strings.TrimSpace(strings.SplitN(ct, ";", 2)[0]))
	}
	if _, ok := htmlMediaTypes[mediaType]; ok {
		return KindPage
	}
	return KindBinary
}

func isAttachment(disposition string) bool {
	if disposition == "" {
		return false
	}
	if kind, _, err := mime.ParseMediaType(disposition); err == nil {
		return strings.EqualFold(kind, "attachment")
	}
	return strings.Contains(strings.ToLower(disposition), "attachment")
}
