package gateway

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"os"
	"sort"
	"sync"
)

// GatewayOption configures a Gateway.
type GatewayOption func(*Gateway)

// WithHTTPClient sets the outbound client.
func WithHTTPClient(c *HTTPClient) GatewayOption {
	return func(g *Gateway) {
		g.client = c
	}
}

// WithUserAgent sets the User-Agent of outbound requests.
func WithUserAgent(ua string) GatewayOption {
	return func(g *Gateway) {
		g.userAgent = ua
	}
}

// WithCredentialKey sets the key encoded credentials are decoded with.
func WithCredentialKey(key string) GatewayOption {
	return func(g *Gateway) {
		g.key = key
	}
}

// WithRecorder registers a recorder for successful fetches.
func WithRecorder(r Recorder) GatewayOption {
	return func(g *Gateway) {
		g.recorder = r
	}
}

// WithGatewayLogger sets the gateway logger.
func WithGatewayLogger(logger *slog.Logger) GatewayOption {
	return func(g *Gateway) {
		g.logger = logger
	}
}

// Gateway fetches remote resources, caching and persisting the results.
type Gateway struct {
	resources map[string]*RemoteResource
	client    *HTTPClient
	userAgent string
	key       string
	recorder  Recorder
	logger    *slog.Logger

	// background persistence
	wg sync.WaitGroup
}

// NewGateway creates a gateway over resources.
func NewGateway(resources map[string]*RemoteResource, opts ...GatewayOption) *Gateway {
	g := &Gateway{
		resources: resources,
		userAgent: defaultUserAgent,
		key:       DefaultKey,
		logger:    slog.Default(),
	}

	for _, opt := range opts {
		opt(g)
	}

	if g.client == nil {
		g.client = NewHTTPClient(nil)
	}
	if g.resources == nil {
		g.resources = make(map[string]*RemoteResource)
	}

	return g
}

// Resource returns the resource registered under name.
func (g *Gateway) Resource(name string) (*RemoteResource, bool) {
	r, ok := g.resources[name]
	return r, ok
}

// Names lists the registered resources in sorted order.
func (g *Gateway) Names() []string {
	names := make([]string, 0, len(g.resources))
	for name := range g.resources {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Fetch returns the resource's cached result or fetches it once from
// upstream. query is filtered through the resource's forward_queries and
// body is sent for POST resources. Failures are *FetchError.
func (g *Gateway) Fetch(ctx context.Context, res *RemoteResource, query url.Values, body []byte) (*CachedResult, error) {
	if cached, ok := res.Cached(); ok {
		g.logger.Debug("Serving cached resource", "resource", res.name)
		return cached, nil
	}

	req, err := g.newRequest(ctx, res, query, body)
	if err != nil {
		return nil, err
	}

	g.logger.Debug("Fetching remote resource", "resource", res.name, "method", req.Method, "url", req.URL.Redacted())

	resp, err := g.client.Do(ctx, req, res.model == ModelText)
	if err != nil {
		return nil, newFetchError(FetchNotFound, res.name, err)
	}
	if !resp.OK() {
		return nil, newFetchError(FetchNotFound, res.name, fmt.Errorf("upstream status %d", resp.StatusCode))
	}

	out, kind, err := res.model.render(resp.Body, res.validator)
	if err != nil {
		return nil, newFetchError(kind, res.name, err)
	}

	result := &CachedResult{Model: res.model, Data: out}
	g.persist(res, out)

	if res.noCache {
		return result, nil
	}

	stored, err := res.store(result)
	if errors.Is(err, ErrCacheFilled) {
		g.logger.Debug("Cache already filled by a concurrent fetch", "resource", res.name)
	}
	return stored, nil
}

// FetchNamed looks up name and fetches it. An unknown name is ErrInternal.
func (g *Gateway) FetchNamed(ctx context.Context, name string, query url.Values, body []byte) (*CachedResult, error) {
	res, ok := g.Resource(name)
	if !ok {
		return nil, fmt.Errorf("resource %q: %w", name, ErrInternal)
	}
	return g.Fetch(ctx, res, query, body)
}

func (g *Gateway) newRequest(ctx context.Context, res *RemoteResource, query url.Values, body []byte) (*http.Request, error) {
	var credential string
	inject := res.credentials.Available()
	if inject {
		value, err := res.credentials.Derive(g.key)
		if err != nil {
			return nil, newFetchError(FetchDecode, res.name, err)
		}
		credential = value
	}

	var reader io.Reader
	if res.method == http.MethodPost && len(body) > 0 {
		reader = bytes.NewReader(body)
	}

	req, err := http.NewRequestWithContext(ctx, res.method, res.uri.Compose(query, res.forwardQueries), reader)
	if err != nil {
		return nil, newFetchError(FetchRequest, res.name, err)
	}

	for name, value := range res.headers {
		req.Header.Set(name, value)
	}
	req.Header.Set("User-Agent", g.userAgent)
	if inject {
		req.Header.Set(res.credentials.Header(), credential)
	}

	return req, nil
}

// persist writes the write target and records a snapshot in the background.
// Failures are logged only.
func (g *Gateway) persist(res *RemoteResource, data []byte) {
	if res.writeTarget == "" && g.recorder == nil {
		return
	}

	g.wg.Add(1)
	go func() {
		defer g.wg.Done()

		if res.writeTarget != "" {
			if err := os.WriteFile(res.writeTarget, data, 0o644); err != nil {
				g.logger.Error("Failed to write resource target", "resource", res.name, "target", res.writeTarget, "error", err)
			} else {
				g.logger.Info("Resource written", "resource", res.name, "target", res.writeTarget, "bytes", len(data))
			}
		}

		if g.recorder != nil {
			if err := g.recorder.Record(res.name, res.model, data); err != nil {
				g.logger.Warn("Failed to record snapshot", "resource", res.name, "error", err)
			}
		}
	}()
}

// Wait blocks until background persistence has finished.
func (g *Gateway) Wait() {
	g.wg.Wait()
}

func (g *Gateway) Close() error {
	g.wg.Wait()
	return g.client.Close()
}
