package gateway

import (
	"compress/gzip"
	"compress/zlib"
	"context"
	"fmt"
	"io"
	"mime"
	"net"
	"net/http"
	"strings"
	"time"

	"github.com/andybalholm/brotli"
	"golang.org/x/net/html/charset"
	"golang.org/x/text/transform"
)

type ClientConfig struct {
	Timeout         time.Duration
	MaxIdleConns    int
	MaxConnsPerHost int
}

func DefaultClientConfig() *ClientConfig {
	return &ClientConfig{
		Timeout:         defaultRequestTimeout,
		MaxIdleConns:    100,
		MaxConnsPerHost: 10,
	}
}

// HTTPClient sends single-attempt outbound requests and returns fully read,
// decompressed bodies.
type HTTPClient struct {
	client *http.Client
	config *ClientConfig
}

func NewHTTPClient(config *ClientConfig) *HTTPClient {
	if config == nil {
		config = DefaultClientConfig()
	}

	transport := &http.Transport{
		Proxy: http.ProxyFromEnvironment,
		DialContext: (&net.Dialer{
			Timeout:   30 * time.Second,
			KeepAlive: 30 * time.Second,
		}).DialContext,
		ForceAttemptHTTP2:     true,
		MaxIdleConns:          config.MaxIdleConns,
		MaxIdleConnsPerHost:   config.MaxConnsPerHost,
		IdleConnTimeout:       90 * time.Second,
		TLSHandshakeTimeout:   10 * time.Second,
		ExpectContinueTimeout: 1 * time.Second,
	}

	return &HTTPClient{
		client: &http.Client{
			Timeout:   config.Timeout,
			Transport: transport,
		},
		config: config,
	}
}

// Response is an upstream response with its body already read.
type Response struct {
	StatusCode int
	Header     http.Header
	Body       []byte
}

// OK reports a 2xx status.
func (r *Response) OK() bool {
	return r.StatusCode >= 200 && r.StatusCode < 300
}

// Do sends req once. When transcode is set, a body declared in a non-UTF-8
// charset is converted to UTF-8.
func (c *HTTPClient) Do(ctx context.Context, req *http.Request, transcode bool) (*Response, error) {
	req = req.WithContext(ctx)
	if req.Header.Get("Accept-Encoding") == "" {
		req.Header.Set("Accept-Encoding", "gzip, deflate, br")
	}

	resp, err := c.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	var body io.Reader = resp.Body

	if encoding := resp.Header.Get("Content-Encoding"); encoding != "" {
		body, err = decompressedBody(encoding, body)
		if err != nil {
			return nil, err
		}
	}

	if transcode {
		body = utf8Body(resp.Header.Get("Content-Type"), body)
	}

	data, err := io.ReadAll(body)
	if err != nil {
		return nil, fmt.Errorf("failed to read response body: %w", err)
	}

	return &Response{StatusCode: resp.StatusCode, Header: resp.Header, Body: data}, nil
}

func (c *HTTPClient) Close() error {
	c.client.CloseIdleConnections()
	return nil
}

// decompressedBody undoes the listed content encodings, last applied first.
func decompressedBody(encoding string, reader io.Reader) (io.Reader, error) {
	encodings := strings.Split(encoding, ",")
	for i := len(encodings) - 1; i >= 0; i-- {
		var err error
		switch strings.TrimSpace(strings.ToLower(encodings[i])) {
		case "identity", "":
		case "deflate":
			reader, err = zlib.NewReader(reader)
		case "gzip", "x-gzip":
			reader, err = gzip.NewReader(reader)
		case "br":
			reader = brotli.NewReader(reader)
		default:
			err = fmt.Errorf("unsupported compression type %s", encodings[i])
		}
		if err != nil {
			return nil, err
		}
	}
	return reader, nil
}

// utf8Body wraps r in a decoder for the charset named in contentType.
// Unknown or UTF-8 charsets leave r untouched.
func utf8Body(contentType string, r io.Reader) io.Reader {
	_, params, err := mime.ParseMediaType(contentType)
	if err != nil {
		return r
	}
	name := strings.ToLower(params["charset"])
	if name == "" || name == "utf-8" || name == "utf8" {
		return r
	}
	enc, _ := charset.Lookup(name)
	if enc == nil {
		return r
	}
	return transform.NewReader(r, enc.NewDecoder())
}
