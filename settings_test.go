package gateway

import (
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testConfig(t *testing.T, data string) *Config {
	t.Helper()
	cfg, err := ParseConfigFromBytes([]byte(data), FormatYAML)
	require.NoError(t, err)
	return cfg
}

func TestNewSettings(t *testing.T) {
	t.Parallel()

	cfg := testConfig(t, `
port: 50242
server_root: app
request_timeout: 2s
schema_source: test
mcp:
  server_name: test-gateway
  version: 9.9.9
remote_resources:
  thing:
    url: http://example.com/thing
    credentials:
      value: eVz3/UsDq0w2nTXr89lDG20fd4bEWHiQAPIoSogQIqBhLtfX
      header: custom-header
  missing:
    url: http://example.com/missing
    credentials:
      value: eVz3/UsDq0w2nTXr89lDG20fd4bEWHiQAPIoSogQIqBhLtfX
  bad:
    url: ":example.com"
  checked:
    url: http://example.com/checked
    model: json
    schema: test
  unchecked:
    url: http://example.com/unchecked
    schema: test
apis:
  thing:
    command: thing
    method: get
  ghost:
    command: bad
    method: get
  hello:
    method: post
    response:
      value: "{}"
  nomethod:
    command: thing
`)

	s, err := NewSettings(cfg, nil)
	require.NoError(t, err)

	assert.Equal(t, 50242, s.Port)
	assert.Equal(t, 2*time.Second, s.RequestTimeout)
	assert.Equal(t, "test-gateway", s.ServerName)
	assert.Equal(t, "9.9.9", s.ServerVersion)
	assert.Equal(t, []string{"test"}, s.Schemas.Names())

	assert.Contains(t, s.Resources, "thing")
	assert.Contains(t, s.Resources, "missing")
	assert.Contains(t, s.Resources, "checked")
	assert.NotContains(t, s.Resources, "bad")
	assert.NotContains(t, s.Resources, "unchecked")
	assert.False(t, s.Resources["missing"].Credentials().Available())

	value, err := s.Resources["thing"].DeriveKey(DefaultKey)
	require.NoError(t, err)
	assert.Equal(t, thingPlain, value)

	names := map[string]string{}
	for _, api := range s.APIs {
		names[api.Name] = api.Method
	}
	assert.Equal(t, map[string]string{"thing": "GET", "hello": "POST"}, names)

	require.Error(t, s.Report)
	assert.ErrorIs(t, s.Report, ErrInvalidURI)
	assert.ErrorIs(t, s.Report, ErrNotAvailable)
	assert.ErrorIs(t, s.Report, ErrUnsupportedSchema)
	assert.ErrorIs(t, s.Report, ErrMissingKey)

	var entry *EntryError
	require.True(t, errors.As(s.Report, &entry))
	assert.NotEmpty(t, entry.Section)
}

func TestNewSettingsClean(t *testing.T) {
	t.Parallel()

	s, err := NewSettings(testConfig(t, "port: 8081"), nil)
	require.NoError(t, err)
	assert.NoError(t, s.Report)
	assert.Equal(t, defaultServerName, s.ServerName)
	assert.Nil(t, s.Schemas)
	assert.Empty(t, s.Resources)
	assert.Empty(t, s.APIs)
	assert.NotNil(t, s.Headers)
	assert.True(t, s.Paths.CanRead("/anything.html"))
}

func TestNewSettingsSelfReferenceAborts(t *testing.T) {
	t.Parallel()

	cfg := testConfig(t, `
port: 50242
remote_resources:
  disallowed:
    url: http://localhost:50242
`)
	_, err := NewSettings(cfg, nil)
	assert.ErrorIs(t, err, ErrSelfReference)

	var entry *EntryError
	require.ErrorAs(t, err, &entry)
	assert.Equal(t, "disallowed", entry.Name)
}

func TestNewSettingsRootPathAborts(t *testing.T) {
	t.Parallel()

	cfg := testConfig(t, "port: 8081")
	cfg.ServerRoot = "./api"

	_, err := NewSettings(cfg, nil)
	assert.ErrorIs(t, err, ErrRootPath)
}

func TestNewSettingsSchemaSource(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()

	s, err := NewSettings(testConfig(t, "schema_source: "+filepath.Join(dir, "missing.json")), nil)
	require.NoError(t, err)
	assert.ErrorIs(t, s.Report, ErrNoSchemaSource)
	assert.Nil(t, s.Schemas)

	broken := filepath.Join(dir, "broken.json")
	require.NoError(t, os.WriteFile(broken, []byte(`{"nope":{}}`), 0o600))
	s, err = NewSettings(testConfig(t, "schema_source: "+broken), nil)
	require.NoError(t, err)
	assert.ErrorIs(t, s.Report, ErrInvalidSchema)

	valid := filepath.Join(dir, "schemas.json")
	require.NoError(t, os.WriteFile(valid, []byte(`{"schemas":{"item":{"type":"object","properties":{"id":{"type":"int"}}}}}`), 0o600))
	s, err = NewSettings(testConfig(t, "schema_source: "+valid), nil)
	require.NoError(t, err)
	assert.NoError(t, s.Report)
	assert.True(t, s.Schemas.Has("item"))
}
