package gateway

import (
	"context"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func hasOnly(names ...string) func(string) bool {
	return func(name string) bool {
		for _, n := range names {
			if n == name {
				return true
			}
		}
		return false
	}
}

func TestNewServerAPI(t *testing.T) {
	t.Parallel()

	api, err := NewServerAPI("thing", &APIConfig{Command: "thing", Method: "get"}, nil, hasOnly("thing"))
	require.NoError(t, err)
	assert.Equal(t, http.MethodGet, api.Method)
	assert.Equal(t, APICommand, api.Kind)
	assert.False(t, api.IsData())
	_, _, _, ok := api.ResolveAsData()
	assert.False(t, ok)

	data, err := NewServerAPI("hello", &APIConfig{Method: "POST", Response: &ResponseConfig{Value: "hi"}}, nil, nil)
	require.NoError(t, err)
	code, contentType, body, ok := data.ResolveAsData()
	require.True(t, ok)
	assert.Equal(t, http.StatusOK, code)
	assert.Equal(t, "application/json", contentType)
	assert.Equal(t, "hi", string(body))

	custom, err := NewServerAPI("teapot", &APIConfig{Method: "get", Response: &ResponseConfig{Value: "short", Type: "text/plain", Code: "418"}}, nil, nil)
	require.NoError(t, err)
	code, contentType, _, _ = custom.ResolveAsData()
	assert.Equal(t, http.StatusTeapot, code)
	assert.Equal(t, "text/plain", contentType)
}

func TestNewServerAPIErrors(t *testing.T) {
	t.Parallel()

	cases := []struct {
		name   string
		cfg    *APIConfig
		target error
	}{
		{"nil entry", nil, ErrMissingKey},
		{"missing method", &APIConfig{Command: "thing"}, ErrMissingKey},
		{"mixed case method", &APIConfig{Command: "thing", Method: "Get"}, ErrInvalidValue},
		{"put", &APIConfig{Command: "thing", Method: "put"}, ErrInvalidValue},
		{"unknown command", &APIConfig{Command: "ghost", Method: "get"}, ErrNotAvailable},
		{"nothing to serve", &APIConfig{Method: "get"}, ErrMissingKey},
		{"bad code", &APIConfig{Method: "get", Response: &ResponseConfig{Code: 1000}}, ErrInvalidValue},
		{"code not a number", &APIConfig{Method: "get", Response: &ResponseConfig{Code: "ok"}}, ErrInvalidValue},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()

			_, err := NewServerAPI("api", tc.cfg, nil, hasOnly("thing"))
			assert.ErrorIs(t, err, tc.target)
		})
	}
}

func TestServerAPIRequiredHeaders(t *testing.T) {
	t.Parallel()

	api, err := NewServerAPI("guarded", &APIConfig{
		Method:         "get",
		Response:       &ResponseConfig{Value: "{}"},
		RequireHeaders: map[string]string{"x-token": "abc", "X-Env": "local"},
	}, map[string]string{"X-Env": "prod", "X-Client": "desk"}, nil)
	require.NoError(t, err)

	assert.Equal(t, map[string]string{"x-token": "abc", "X-Env": "local", "X-Client": "desk"}, api.RequiredHeaders)

	h := http.Header{}
	assert.False(t, api.HasRequiredHeaders(h))

	h.Set("X-Token", "abc")
	h.Set("X-Env", "local")
	h.Set("X-Client", "desk")
	assert.True(t, api.HasRequiredHeaders(h))

	h.Add("X-Token", "abc")
	assert.False(t, api.HasRequiredHeaders(h), "duplicate header values fail")

	h.Set("X-Token", "ABC")
	assert.False(t, api.HasRequiredHeaders(h), "values are compared exactly")
}

func TestRouter(t *testing.T) {
	t.Parallel()

	up := newUpstream(t, staticBody("remote"))
	res := mustResource(t, "thing", &ResourceConfig{URL: up.URL, Model: "text"})
	gw := newTestGateway(res)

	get, err := NewServerAPI("thing", &APIConfig{Command: "thing", Method: "get"}, nil, hasOnly("thing"))
	require.NoError(t, err)
	post, err := NewServerAPI("thing", &APIConfig{Method: "post", Response: &ResponseConfig{Value: "{}"}}, nil, nil)
	require.NoError(t, err)
	other, err := NewServerAPI("another", &APIConfig{Method: "get", Response: &ResponseConfig{Value: "{}"}}, nil, nil)
	require.NoError(t, err)

	r := NewRouter([]*ServerAPI{get, post, other}, gw)

	found, ok := r.Resolve("thing", http.MethodGet)
	require.True(t, ok)
	assert.Same(t, get, found)

	found, ok = r.Resolve("thing", http.MethodPost)
	require.True(t, ok)
	assert.Same(t, post, found)

	_, ok = r.Resolve("another", http.MethodPost)
	assert.False(t, ok)
	_, ok = r.Resolve("thing", http.MethodPut)
	assert.False(t, ok)

	names := []string{}
	for _, api := range r.APIs(http.MethodGet) {
		names = append(names, api.Name)
	}
	assert.Equal(t, []string{"another", "thing"}, names)

	result, err := r.Run(context.Background(), get, nil, nil)
	require.NoError(t, err)
	assert.Equal(t, "remote", string(result.Data))

	_, err = r.Run(context.Background(), post, nil, nil)
	assert.ErrorIs(t, err, ErrInternal)

	orphan := &ServerAPI{Name: "orphan", Method: http.MethodGet, Kind: APICommand, Command: "gone"}
	_, err = r.Run(context.Background(), orphan, nil, nil)
	assert.ErrorIs(t, err, ErrInternal)
}
