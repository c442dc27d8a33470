// Package contenttype maps servable files to media types, checks them
// against a client's Accept header and resolves configured response headers.
package contenttype

import (
	"errors"
	"net/http"
	"path"
	"strings"
)

// ErrNotAcceptable is returned when no Accept range matches.
var ErrNotAcceptable = errors.New("no acceptable content-type for client")

// ContentType identifies the media type of a servable file.
type ContentType int

const (
	Unknown ContentType = iota
	Javascript
	JSON
	CSS
	HTML
	PlainText
	ImageJPG
	ImagePNG
	ImageSVG
	ImageICO
	// Global is the pseudo type holding headers shared by all types.
	Global
)

var mimeTypes = map[ContentType]string{
	Unknown:    "application/octet-stream",
	Javascript: "application/javascript",
	JSON:       "application/json",
	CSS:        "text/css",
	HTML:       "text/html",
	PlainText:  "text/plain",
	ImageJPG:   "image/jpg",
	ImagePNG:   "image/png",
	ImageSVG:   "image/svg+xml",
	ImageICO:   "image/x-icon",
}

var extensions = map[string]ContentType{
	".js":   Javascript,
	".mjs":  Javascript,
	".json": JSON,
	".css":  CSS,
	".html": HTML,
	".htm":  HTML,
	".txt":  PlainText,
	".jpg":  ImageJPG,
	".jpeg": ImageJPG,
	".png":  ImagePNG,
	".apng": ImagePNG,
	".svg":  ImageSVG,
	".ico":  ImageICO,
}

// FromExtension derives the content type from a file name.
func FromExtension(name string) ContentType {
	if ct, ok := extensions[strings.ToLower(path.Ext(name))]; ok {
		return ct
	}
	return Unknown
}

// FromMIME parses a MIME string or the "Global" key. The second result is
// false when s names no known type.
func FromMIME(s string) (ContentType, bool) {
	if s == "Global" {
		return Global, true
	}
	for ct, mime := range mimeTypes {
		if mime == s {
			return ct, true
		}
	}
	return Unknown, false
}

// MIME returns the full MIME string. Global has none.
func (c ContentType) MIME() string {
	return mimeTypes[c]
}

// MediaType returns the top-level type, e.g. "text" for text/css.
func (c ContentType) MediaType() string {
	top, _, _ := strings.Cut(c.MIME(), "/")
	return top
}

func (c ContentType) String() string {
	if c == Global {
		return "Global"
	}
	return c.MIME()
}

// Accepts reports whether the request's Accept header admits c. An absent
// header admits everything. Quality values are ignored.
func (c ContentType) Accepts(h http.Header) bool {
	values, present := h[http.CanonicalHeaderKey("Accept")]
	if !present {
		return true
	}
	return c.AcceptsValue(strings.Join(values, ","))
}

// AcceptsValue matches c against a raw Accept header value.
func (c ContentType) AcceptsValue(accept string) bool {
	if c == Global {
		return false
	}
	target := c.MIME()
	media := c.MediaType()

	for _, part := range strings.Split(accept, ",") {
		rng, _, _ := strings.Cut(part, ";")
		rng = strings.TrimSpace(rng)

		if strings.HasPrefix(rng, "*/*") || rng == target {
			return true
		}
		if top, sub, ok := strings.Cut(rng, "/"); ok && sub == "*" && top == media {
			return true
		}
	}
	return false
}

// Negotiate returns ErrNotAcceptable when c is not admitted by h.
func Negotiate(c ContentType, h http.Header) error {
	if !c.Accepts(h) {
		return ErrNotAcceptable
	}
	return nil
}
