package gateway

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type testServer struct {
	srv  *Server
	root string
}

func newTestServer(t *testing.T, extra string) *testServer {
	t.Helper()

	up := newUpstream(t, func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/broken" {
			http.NotFound(w, r)
			return
		}
		_, _ = io.WriteString(w, "remote")
	})

	root := t.TempDir()
	files := map[string]string{
		"index.html":   "<h1>hi</h1>",
		"css/main.css": "body{}",
		"data.json":    `{"a":1}`,
		"secret.txt":   "hidden",
	}
	for name, content := range files {
		path := filepath.Join(root, filepath.FromSlash(name))
		require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
		require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	}

	cfg := testConfig(t, fmt.Sprintf(`
port: 50242
server_root: %q
resources: [index.html, css/, data.json, gone.html]
writable_resources: [save.txt]
allow_origins: ["http://localhost:3000"]
response_headers:
  Global:
    Cache-Control: no-cache
  text/css:
    X-Style: "yes"
    Date: <auto>
  text/html:
    Access-Control-Allow-Origin: "@Origin"
remote_resources:
  thing:
    url: %q
    model: text
  broken:
    url: %q
apis:
  thing:
    command: thing
    method: get
  broken:
    command: broken
    method: get
  hello:
    method: post
    response:
      value: '{"hello":true}'
      code: 201
  guarded:
    method: get
    response:
      value: ok
      type: text/plain
    require_headers:
      X-Token: abc
%s`, root, up.URL+"/thing", up.URL+"/broken", extra))

	settings, err := NewSettings(cfg, nil)
	require.NoError(t, err)
	require.NoError(t, settings.Report)

	srv, err := NewServer(settings, nil, WithAddr("127.0.0.1:0"))
	require.NoError(t, err)
	t.Cleanup(srv.Close)

	return &testServer{srv: srv, root: root}
}

func (ts *testServer) do(method, target string, body []byte, header http.Header) *httptest.ResponseRecorder {
	var reader io.Reader
	if body != nil {
		reader = bytes.NewReader(body)
	}
	req := httptest.NewRequest(method, target, reader)
	for name, values := range header {
		req.Header[name] = values
	}
	rec := httptest.NewRecorder()
	ts.srv.Handler().ServeHTTP(rec, req)
	return rec
}

func TestServerFiles(t *testing.T) {
	t.Parallel()

	ts := newTestServer(t, "")

	cases := []struct {
		name        string
		path        string
		accept      string
		code        int
		body        string
		contentType string
	}{
		{name: "index", path: "/", code: http.StatusOK, body: "<h1>hi</h1>", contentType: "text/html"},
		{name: "css", path: "/css/main.css", code: http.StatusOK, body: "body{}", contentType: "text/css"},
		{name: "json", path: "/data.json", accept: "application/json", code: http.StatusOK, body: `{"a":1}`, contentType: "application/json"},
		{name: "wildcard accept", path: "/index.html", accept: "text/*", code: http.StatusOK, body: "<h1>hi</h1>"},
		{name: "not acceptable", path: "/index.html", accept: "application/json", code: http.StatusNotAcceptable},
		{name: "not allowed", path: "/secret.txt", code: http.StatusNotFound, body: "Not Found"},
		{name: "allowed but missing", path: "/gone.html", code: http.StatusNotFound, body: "Not Found"},
		{name: "directory", path: "/css/", code: http.StatusNotFound, body: "Not Found"},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()

			h := http.Header{}
			if tc.accept != "" {
				h.Set("Accept", tc.accept)
			}
			rec := ts.do(http.MethodGet, tc.path, nil, h)

			assert.Equal(t, tc.code, rec.Code)
			if tc.code == http.StatusNotAcceptable {
				assert.Empty(t, rec.Body.String())
				return
			}
			assert.Equal(t, tc.body, rec.Body.String())
			if tc.contentType != "" {
				assert.Equal(t, tc.contentType, rec.Header().Get("Content-Type"))
			}
		})
	}
}

func TestServerResponseHeaders(t *testing.T) {
	t.Parallel()

	ts := newTestServer(t, "")

	rec := ts.do(http.MethodGet, "/css/main.css", nil, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "yes", rec.Header().Get("X-Style"))
	assert.Equal(t, "no-cache", rec.Header().Get("Cache-Control"))
	_, err := http.ParseTime(rec.Header().Get("Date"))
	assert.NoError(t, err)

	rec = ts.do(http.MethodGet, "/", nil, http.Header{"Origin": {"http://localhost:3000"}})
	assert.Equal(t, "http://localhost:3000", rec.Header().Get("Access-Control-Allow-Origin"))
	assert.Equal(t, "no-cache", rec.Header().Get("Cache-Control"))

	rec = ts.do(http.MethodGet, "/", nil, http.Header{"Origin": {"http://evil.example"}})
	assert.Empty(t, rec.Header().Get("Access-Control-Allow-Origin"))
}

func TestServerCommands(t *testing.T) {
	t.Parallel()

	ts := newTestServer(t, "")

	rec := ts.do(http.MethodGet, "/api/thing", nil, nil)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "remote", rec.Body.String())
	assert.Equal(t, "text/plain; charset=utf-8", rec.Header().Get("Content-Type"))

	rec = ts.do(http.MethodGet, "/api/broken", nil, nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.Equal(t, "Not Found", rec.Body.String())

	rec = ts.do(http.MethodGet, "/api/unknown", nil, nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.Equal(t, "Not Found", rec.Body.String())

	rec = ts.do(http.MethodGet, "/api/guarded", nil, nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = ts.do(http.MethodGet, "/api/guarded", nil, http.Header{"X-Token": {"abc"}})
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "ok", rec.Body.String())
	assert.Equal(t, "text/plain", rec.Header().Get("Content-Type"))

	rec = ts.do(http.MethodPost, "/api/hello", nil, nil)
	assert.Equal(t, http.StatusCreated, rec.Code)
	assert.Equal(t, `{"hello":true}`, rec.Body.String())
	assert.Equal(t, "application/json", rec.Header().Get("Content-Type"))

	rec = ts.do(http.MethodPost, "/api/thing", nil, nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = ts.do(http.MethodGet, "/api/hello", nil, nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestServerBuiltinPosts(t *testing.T) {
	t.Parallel()

	ts := newTestServer(t, "")

	rec := ts.do(http.MethodPost, "/api/test", nil, nil)
	assert.Equal(t, http.StatusAccepted, rec.Code)
	assert.JSONEq(t, testResponse, rec.Body.String())

	rec = ts.do(http.MethodPost, "/api/post", []byte(`{"data":"{\"echo\":1}","target":"x"}`), nil)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, `{"echo":1}`, rec.Body.String())

	rec = ts.do(http.MethodPost, "/api/post", []byte(`{"data":"only"}`), nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = ts.do(http.MethodPost, "/api/post", bytes.Repeat([]byte("x"), maxPostBody+1), nil)
	assert.Equal(t, http.StatusRequestEntityTooLarge, rec.Code)
	assert.Equal(t, "Content Too Large", rec.Body.String())
}

func TestServerSave(t *testing.T) {
	t.Parallel()

	ts := newTestServer(t, "")

	rec := ts.do(http.MethodPost, "/api/save?save.txt", []byte("saved content"), nil)
	assert.Equal(t, http.StatusCreated, rec.Code)
	written, err := os.ReadFile(filepath.Join(ts.root, "save.txt"))
	require.NoError(t, err)
	assert.Equal(t, "saved content", string(written))

	rec = ts.do(http.MethodPost, "/api/save?index.html", []byte("overwrite"), nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.Empty(t, rec.Body.String())

	rec = ts.do(http.MethodPost, "/api/save", []byte("nameless"), nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = ts.do(http.MethodPost, "/api/save?save.txt", bytes.Repeat([]byte("x"), maxSaveBody+1), nil)
	assert.Equal(t, http.StatusRequestEntityTooLarge, rec.Code)

	index, err := os.ReadFile(filepath.Join(ts.root, "index.html"))
	require.NoError(t, err)
	assert.Equal(t, "<h1>hi</h1>", string(index))
}

func TestServerRequiredAPIHeaders(t *testing.T) {
	t.Parallel()

	ts := newTestServer(t, "api_required_headers:\n  X-Api-Key: secret\n")

	for _, path := range []string{"/api/test", "/api/post", "/api/save?save.txt", "/api/hello", "/api/nope"} {
		rec := ts.do(http.MethodPost, path, []byte("{}"), nil)
		assert.Equal(t, http.StatusBadRequest, rec.Code, path)
	}

	rec := ts.do(http.MethodPost, "/api/test", nil, http.Header{"X-Api-Key": {"secret"}})
	assert.Equal(t, http.StatusAccepted, rec.Code)

	rec = ts.do(http.MethodPost, "/api/test", nil, http.Header{"X-Api-Key": {"wrong"}})
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	// Endpoint headers include the global ones for GET routes too.
	rec = ts.do(http.MethodGet, "/api/thing", nil, nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = ts.do(http.MethodGet, "/api/thing", nil, http.Header{"X-Api-Key": {"secret"}})
	assert.Equal(t, http.StatusOK, rec.Code)

	// Static files are never gated.
	rec = ts.do(http.MethodGet, "/", nil, nil)
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestServerMethods(t *testing.T) {
	t.Parallel()

	ts := newTestServer(t, "")

	rec := ts.do(http.MethodPut, "/index.html", []byte("x"), nil)
	assert.Equal(t, http.StatusMethodNotAllowed, rec.Code)
	assert.Equal(t, "Method not allowed", rec.Body.String())

	rec = ts.do(http.MethodDelete, "/api/thing", nil, nil)
	assert.Equal(t, http.StatusMethodNotAllowed, rec.Code)

	rec = ts.do(http.MethodHead, "/index.html", nil, nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)

	rec = ts.do(http.MethodHead, "/api/thing", nil, nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestServerShutdownRoute(t *testing.T) {
	t.Parallel()

	ts := newTestServer(t, "")

	rec := ts.do(http.MethodHead, "/api/shutdown", nil, nil)
	assert.Equal(t, http.StatusAccepted, rec.Code)
	assert.True(t, ts.srv.Stopping())

	rec = ts.do(http.MethodGet, "/", nil, nil)
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
	assert.Equal(t, "Service unavailable", rec.Body.String())
}

func TestServerStart(t *testing.T) {
	t.Parallel()

	ts := newTestServer(t, "")
	require.NoError(t, ts.srv.Start(context.Background()))

	base := "http://" + ts.srv.Addr()
	assert.False(t, strings.HasSuffix(base, ":0"))

	resp, err := http.Get(base + "/")
	require.NoError(t, err)
	body, _ := io.ReadAll(resp.Body)
	resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "<h1>hi</h1>", string(body))

	req, err := http.NewRequest(http.MethodHead, base+"/api/shutdown", nil)
	require.NoError(t, err)
	resp, err = http.DefaultClient.Do(req)
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusAccepted, resp.StatusCode)

	done := make(chan struct{})
	go func() {
		ts.srv.Wait()
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(10 * time.Second):
		t.Fatal("server did not stop after shutdown request")
	}
}

func TestServerStartStopsWithContext(t *testing.T) {
	t.Parallel()

	ts := newTestServer(t, "")
	ctx, cancel := context.WithCancel(context.Background())
	require.NoError(t, ts.srv.Start(ctx))

	cancel()
	assert.Eventually(t, ts.srv.Stopping, 5*time.Second, 10*time.Millisecond)
	ts.srv.Wait()
}
