package gateway

import (
	"fmt"
	"maps"
	"net/http"
	"slices"
	"strings"
	"sync/atomic"

	"github.com/paulgrammer/local-gateway/schema"
)

// CachedResult is an immutable fetched body tagged with its model.
type CachedResult struct {
	Model DataModel
	Data  []byte
}

// RemoteResource is an upstream endpoint described in remote_resources.
// Apart from the cache cell it is read-only after construction.
type RemoteResource struct {
	name           string
	uri            QualifiedURI
	method         string
	credentials    *Credentials
	writeTarget    string
	model          DataModel
	schemaName     string
	validator      *schema.Validator
	noCache        bool
	forwardQueries []string
	headers        map[string]string

	cache atomic.Pointer[CachedResult]
}

// NewRemoteResource builds a resource from its configuration entry.
//
// When the credentials table is incomplete the resource is still returned
// together with an error wrapping ErrNotAvailable; callers keep it and warn.
// Any other error means the entry is unusable. ErrSelfReference must abort
// startup.
func NewRemoteResource(name string, cfg *ResourceConfig, selfPort int, schemas *schema.Tree) (*RemoteResource, error) {
	if cfg == nil {
		return nil, ErrMissingKey
	}
	if cfg.URL == "" {
		return nil, fmt.Errorf("url: %w", ErrMissingKey)
	}

	uri, err := ParseQualifiedURI(cfg.URL, selfPort)
	if err != nil {
		return nil, err
	}

	method, err := parseRequestMethod(cfg.RequestMethod)
	if err != nil {
		return nil, err
	}

	model, err := ParseDataModel(cfg.Model)
	if err != nil {
		return nil, err
	}

	noCache := false
	if cfg.NoCache != nil {
		b, ok := cfg.NoCache.(bool)
		if !ok {
			return nil, fmt.Errorf("no_cache %v: %w", cfg.NoCache, ErrInvalidValue)
		}
		noCache = b
	}

	res := &RemoteResource{
		name:           name,
		uri:            uri,
		method:         method,
		writeTarget:    cfg.FileTarget,
		model:          model,
		noCache:        noCache,
		forwardQueries: slices.Clone(cfg.ForwardQueries),
		headers:        maps.Clone(cfg.Headers),
	}

	if cfg.Schema != "" {
		if !model.SupportsSchema() {
			return nil, fmt.Errorf("schema %q on model %s: %w", cfg.Schema, model, ErrUnsupportedSchema)
		}
		v, ok := schemas.Get(cfg.Schema)
		if !ok {
			return nil, fmt.Errorf("schema %q is not loaded: %w", cfg.Schema, ErrUnsupportedSchema)
		}
		res.schemaName = cfg.Schema
		res.validator = v
	}

	creds, err := parseCredentials(cfg.Credentials)
	if creds == nil && err != nil {
		return nil, fmt.Errorf("%w: %w", ErrMissingKey, err)
	}
	res.credentials = creds

	return res, err
}

func parseRequestMethod(s string) (string, error) {
	switch strings.ToUpper(s) {
	case "", http.MethodGet:
		return http.MethodGet, nil
	case http.MethodPost:
		return http.MethodPost, nil
	default:
		return "", fmt.Errorf("request_method %q: %w", s, ErrInvalidValue)
	}
}

func (r *RemoteResource) Name() string { return r.name }
func (r *RemoteResource) URI() QualifiedURI { return r.uri }
func (r *RemoteResource) Method() string { return r.method }
func (r *RemoteResource) Model() DataModel { return r.model }
func (r *RemoteResource) SchemaName() string { return r.schemaName }
func (r *RemoteResource) NoCache() bool { return r.noCache }
func (r *RemoteResource) WriteTarget() string { return r.writeTarget }
func (r *RemoteResource) Credentials() *Credentials { return r.credentials }

// DeriveKey returns the credential header value decoded with key.
func (r *RemoteResource) DeriveKey(key string) (string, error) {
	if r.credentials == nil {
		return "", ErrNotAvailable
	}
	return r.credentials.Derive(key)
}

// Cached returns the stored result, if any.
func (r *RemoteResource) Cached() (*CachedResult, bool) {
	c := r.cache.Load()
	return c, c != nil
}

// store fills the cache cell once. A losing caller gets the stored result
// and ErrCacheFilled.
func (r *RemoteResource) store(result *CachedResult) (*CachedResult, error) {
	if r.cache.CompareAndSwap(nil, result) {
		return result, nil
	}
	return r.cache.Load(), ErrCacheFilled
}
