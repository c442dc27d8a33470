package contenttype

import (
	"net/http"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFromExtension(t *testing.T) {
	t.Parallel()

	cases := map[string]ContentType{
		"app.js":          Javascript,
		"mod.mjs":         Javascript,
		"data.json":       JSON,
		"style.css":       CSS,
		"index.html":      HTML,
		"old.htm":         HTML,
		"notes.txt":       PlainText,
		"photo.jpg":       ImageJPG,
		"photo.JPEG":      ImageJPG,
		"icon.png":        ImagePNG,
		"anim.apng":       ImagePNG,
		"logo.svg":        ImageSVG,
		"favicon.ico":     ImageICO,
		"archive.tar.gz":  Unknown,
		"README":          Unknown,
		"dir.v1/noext":    Unknown,
		"/nested/a/b.css": CSS,
	}
	for name, want := range cases {
		assert.Equal(t, want, FromExtension(name), name)
	}

	assert.Equal(t, "image/jpg", ImageJPG.MIME())
	assert.Equal(t, "application/octet-stream", Unknown.MIME())
	assert.Equal(t, "image", ImageSVG.MediaType())
}

func TestFromMIME(t *testing.T) {
	t.Parallel()

	ct, ok := FromMIME("text/css")
	assert.True(t, ok)
	assert.Equal(t, CSS, ct)

	ct, ok = FromMIME("Global")
	assert.True(t, ok)
	assert.Equal(t, Global, ct)

	_, ok = FromMIME("video/mp4")
	assert.False(t, ok)
}

func TestAccepts(t *testing.T) {
	t.Parallel()

	cases := []struct {
		name   string
		ct     ContentType
		accept []string
		want   bool
	}{
		{"absent header", CSS, nil, true},
		{"subtype wildcard", CSS, []string{"text/*"}, true},
		{"other type", CSS, []string{"application/json"}, false},
		{"any", ImagePNG, []string{"*/*"}, true},
		{"any with params", ImagePNG, []string{"*/*;q=0.8"}, true},
		{"exact in list", JSON, []string{"text/html, application/json;q=0.9"}, true},
		{"wrong top level", JSON, []string{"text/*"}, false},
		{"browser default", HTML, []string{"text/html,application/xhtml+xml,application/xml;q=0.9,*/*;q=0.8"}, true},
		{"empty header", HTML, []string{""}, false},
		{"multiple header lines", CSS, []string{"image/png", "text/css"}, true},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			h := http.Header{}
			if tc.accept != nil {
				h["Accept"] = tc.accept
			}
			assert.Equal(t, tc.want, tc.ct.Accepts(h))
			if tc.want {
				assert.NoError(t, Negotiate(tc.ct, h))
			} else {
				assert.ErrorIs(t, Negotiate(tc.ct, h), ErrNotAcceptable)
			}
		})
	}
}

func TestParseHeaderValue(t *testing.T) {
	t.Parallel()

	assert.Equal(t, HeaderValue{Kind: Computed}, ParseHeaderValue("<auto>"))
	assert.Equal(t, HeaderValue{Kind: ByRequest, Value: "Origin"}, ParseHeaderValue("@Origin"))
	assert.Equal(t, HeaderValue{Kind: Literal, Value: "no-cache"}, ParseHeaderValue("no-cache"))
	assert.Equal(t, HeaderValue{Kind: Literal, Value: "@"}, ParseHeaderValue("@"))
}

func newTestTable() *HeaderTable {
	raw := map[string]map[string]string{
		"Global": {
			"Cache-Control":               "no-cache",
			"Access-Control-Allow-Origin": "@Origin",
			"X-Frame-Options":             "DENY",
		},
		"text/css": {
			"Cache-Control": "max-age=3600",
			"Date":          "<auto>",
			"X-Unknown":     "<auto>",
		},
		"video/mp4": {
			"X-Ignored": "1",
		},
	}
	clock := func() time.Time { return time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC) }
	return NewHeaderTable(raw, []string{"http://localhost:3000"}, nil, WithClock(clock))
}

func TestHeaderTableMerge(t *testing.T) {
	t.Parallel()

	table := newTestTable()

	css := table.Resolve(CSS, http.Header{"Origin": {"http://localhost:3000"}})
	assert.Equal(t, "max-age=3600", css.Get("Cache-Control"))
	assert.Equal(t, "DENY", css.Get("X-Frame-Options"))
	assert.Equal(t, "http://localhost:3000", css.Get("Access-Control-Allow-Origin"))
	assert.Equal(t, "Wed, 01 May 2024 12:00:00 GMT", css.Get("Date"))
	assert.Empty(t, css.Values("X-Unknown"))

	// no specific table: Global only
	png := table.Resolve(ImagePNG, http.Header{"Origin": {"http://evil.example"}})
	assert.Equal(t, "no-cache", png.Get("Cache-Control"))
	assert.Empty(t, png.Get("Access-Control-Allow-Origin"))
	assert.Empty(t, png.Get("Date"))

	names := make([]string, 0)
	for _, rule := range table.Rules(CSS) {
		names = append(names, rule.Name)
	}
	assert.Equal(t, []string{"Access-Control-Allow-Origin", "Cache-Control", "Date", "X-Frame-Options", "X-Unknown"}, names)
}

func TestHeaderTableApply(t *testing.T) {
	t.Parallel()

	table := newTestTable()

	dst := http.Header{}
	require.NoError(t, table.Apply(dst, CSS, http.Header{"Accept": {"text/*"}}))
	assert.Equal(t, "text/css", dst.Get("Content-Type"))
	assert.Equal(t, "max-age=3600", dst.Get("Cache-Control"))

	dst = http.Header{}
	err := table.Apply(dst, CSS, http.Header{"Accept": {"application/json"}})
	assert.ErrorIs(t, err, ErrNotAcceptable)
	assert.Empty(t, dst)
}

func TestEmptyHeaderTable(t *testing.T) {
	t.Parallel()

	table := NewHeaderTable(nil, nil, nil)
	assert.Empty(t, table.Rules(JSON))
	assert.Empty(t, table.Resolve(JSON, http.Header{}))
}
