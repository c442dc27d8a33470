package gateway

import (
	"context"
	"fmt"
	"maps"
	"net/http"
	"net/url"
	"sort"

	"github.com/spf13/cast"
)

// APIKind tells a command endpoint from a canned one.
type APIKind int

const (
	// APICommand endpoints fetch a remote resource.
	APICommand APIKind = iota
	// APIData endpoints answer with a configured response.
	APIData
)

// ServerAPI is one endpoint under /api/.
type ServerAPI struct {
	Name   string
	Method string
	Kind   APIKind

	// Command is the resource fetched by APICommand endpoints.
	Command string

	// Canned response of APIData endpoints.
	Code        int
	ContentType string
	Body        []byte

	// RequiredHeaders must all be present with exactly these values.
	RequiredHeaders map[string]string
}

// NewServerAPI builds an endpoint from its apis entry. global holds the
// api_required_headers; the entry's own require_headers win on conflict.
// hasResource reports whether a command target exists.
func NewServerAPI(name string, cfg *APIConfig, global map[string]string, hasResource func(string) bool) (*ServerAPI, error) {
	if cfg == nil {
		return nil, ErrMissingKey
	}

	api := &ServerAPI{Name: name}

	switch cfg.Method {
	case "":
		return nil, fmt.Errorf("method: %w", ErrMissingKey)
	case "get", "GET":
		api.Method = http.MethodGet
	case "post", "POST":
		api.Method = http.MethodPost
	default:
		return nil, fmt.Errorf("method %q: %w", cfg.Method, ErrInvalidValue)
	}

	switch {
	case cfg.Command != "":
		if hasResource == nil || !hasResource(cfg.Command) {
			return nil, fmt.Errorf("command %q: %w", cfg.Command, ErrNotAvailable)
		}
		api.Kind = APICommand
		api.Command = cfg.Command

	case cfg.Response != nil:
		code := http.StatusOK
		if cfg.Response.Code != nil {
			c, err := cast.ToIntE(cfg.Response.Code)
			if err != nil || c < 100 || c > 599 {
				return nil, fmt.Errorf("response code %v: %w", cfg.Response.Code, ErrInvalidValue)
			}
			code = c
		}
		contentType := cfg.Response.Type
		if contentType == "" {
			contentType = "application/json"
		}
		api.Kind = APIData
		api.Code = code
		api.ContentType = contentType
		api.Body = []byte(cfg.Response.Value)

	default:
		return nil, fmt.Errorf("command or response: %w", ErrMissingKey)
	}

	api.RequiredHeaders = make(map[string]string, len(global)+len(cfg.RequireHeaders))
	maps.Copy(api.RequiredHeaders, global)
	maps.Copy(api.RequiredHeaders, cfg.RequireHeaders)

	return api, nil
}

// HasRequiredHeaders reports whether every required header is present with
// the exact configured value. A missing header fails.
func (a *ServerAPI) HasRequiredHeaders(h http.Header) bool {
	return hasHeaders(a.RequiredHeaders, h)
}

func hasHeaders(required map[string]string, h http.Header) bool {
	for name, want := range required {
		values, ok := h[http.CanonicalHeaderKey(name)]
		if !ok || len(values) != 1 || values[0] != want {
			return false
		}
	}
	return true
}

// IsData reports whether a answers with a canned response.
func (a *ServerAPI) IsData() bool {
	return a.Kind == APIData
}

// ResolveAsData returns the canned response. ok is false for commands.
func (a *ServerAPI) ResolveAsData() (code int, contentType string, body []byte, ok bool) {
	if !a.IsData() {
		return 0, "", nil, false
	}
	return a.Code, a.ContentType, a.Body, true
}

// Router resolves /api/ names to endpoints. GET and POST are separate
// namespaces. It is read-only after construction.
type Router struct {
	get     map[string]*ServerAPI
	post    map[string]*ServerAPI
	gateway *Gateway
}

// NewRouter indexes apis by method and name.
func NewRouter(apis []*ServerAPI, gw *Gateway) *Router {
	r := &Router{
		get:     make(map[string]*ServerAPI),
		post:    make(map[string]*ServerAPI),
		gateway: gw,
	}
	for _, api := range apis {
		switch api.Method {
		case http.MethodGet:
			r.get[api.Name] = api
		case http.MethodPost:
			r.post[api.Name] = api
		}
	}
	return r
}

// Resolve finds the endpoint for name under method.
func (r *Router) Resolve(name, method string) (*ServerAPI, bool) {
	var api *ServerAPI
	switch method {
	case http.MethodGet:
		api = r.get[name]
	case http.MethodPost:
		api = r.post[name]
	}
	return api, api != nil
}

// APIs lists endpoints of method ordered by name.
func (r *Router) APIs(method string) []*ServerAPI {
	src := r.get
	if method == http.MethodPost {
		src = r.post
	}
	out := make([]*ServerAPI, 0, len(src))
	for _, api := range src {
		out = append(out, api)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out
}

// Run executes a command endpoint. A command whose resource has disappeared
// is ErrInternal.
func (r *Router) Run(ctx context.Context, api *ServerAPI, query url.Values, body []byte) (*CachedResult, error) {
	if api.IsData() {
		return nil, fmt.Errorf("api %q is not a command: %w", api.Name, ErrInternal)
	}
	return r.gateway.FetchNamed(ctx, api.Command, query, body)
}
