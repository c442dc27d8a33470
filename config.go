package gateway

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/BurntSushi/toml"
	"github.com/spf13/cast"
	"gopkg.in/yaml.v3"
)

// Config is the on-disk gateway configuration. It is turned into Settings
// before use.
type Config struct {
	// MCP identification for the /sse surface
	MCP *MCPConfig `json:"mcp" yaml:"mcp" toml:"mcp"`

	Port       int    `json:"port" yaml:"port" toml:"port"`
	ServerRoot string `json:"server_root" yaml:"server_root" toml:"server_root"`
	StartIn    string `json:"start_in,omitempty" yaml:"start_in,omitempty" toml:"start_in"`
	RunMode    string `json:"run_mode,omitempty" yaml:"run_mode,omitempty" toml:"run_mode"`

	// Resources lists readable files and "dir/" prefixes under ServerRoot.
	// nil means everything is readable.
	Resources []string `json:"resources,omitempty" yaml:"resources,omitempty" toml:"resources"`

	// WritableResources uses the same matching; nil means nothing is writable.
	WritableResources []string `json:"writable_resources,omitempty" yaml:"writable_resources,omitempty" toml:"writable_resources"`

	UserAgent          string            `json:"user_agent" yaml:"user_agent" toml:"user_agent"`
	AllowOrigins       []string          `json:"allow_origins,omitempty" yaml:"allow_origins,omitempty" toml:"allow_origins"`
	APIRequiredHeaders map[string]string `json:"api_required_headers,omitempty" yaml:"api_required_headers,omitempty" toml:"api_required_headers"`
	SchemaSource       string            `json:"schema_source,omitempty" yaml:"schema_source,omitempty" toml:"schema_source"`
	RequestTimeout     Duration          `json:"request_timeout" yaml:"request_timeout" toml:"request_timeout"`
	SnapshotPath       string            `json:"snapshot_path,omitempty" yaml:"snapshot_path,omitempty" toml:"snapshot_path"`

	// ResponseHeaders maps a MIME string (or "Global") to header rules.
	ResponseHeaders map[string]map[string]string `json:"response_headers,omitempty" yaml:"response_headers,omitempty" toml:"response_headers"`

	RemoteResources map[string]*ResourceConfig `json:"remote_resources,omitempty" yaml:"remote_resources,omitempty" toml:"remote_resources"`
	APIs            map[string]*APIConfig      `json:"apis,omitempty" yaml:"apis,omitempty" toml:"apis"`
}

// MCPConfig defines MCP-specific settings
type MCPConfig struct {
	ServerName string `json:"server_name" yaml:"server_name" toml:"server_name"`
	Version    string `json:"version" yaml:"version" toml:"version"`
}

// ResourceConfig describes one remote_resources entry.
type ResourceConfig struct {
	URL           string `json:"url" yaml:"url" toml:"url"`
	RequestMethod string `json:"request_method,omitempty" yaml:"request_method,omitempty" toml:"request_method"`
	Model         string `json:"model,omitempty" yaml:"model,omitempty" toml:"model"`
	Schema        string `json:"schema,omitempty" yaml:"schema,omitempty" toml:"schema"`
	FileTarget    string `json:"file_target,omitempty" yaml:"file_target,omitempty" toml:"file_target"`

	// NoCache must be a boolean when present.
	NoCache any `json:"no_cache,omitempty" yaml:"no_cache,omitempty" toml:"no_cache"`

	ForwardQueries []string           `json:"forward_queries,omitempty" yaml:"forward_queries,omitempty" toml:"forward_queries"`
	Headers        map[string]string  `json:"headers,omitempty" yaml:"headers,omitempty" toml:"headers"`
	Credentials    *CredentialsConfig `json:"credentials,omitempty" yaml:"credentials,omitempty" toml:"credentials"`
}

// CredentialsConfig is the credentials table of a resource.
type CredentialsConfig struct {
	Value  string `json:"value,omitempty" yaml:"value,omitempty" toml:"value"`
	Header string `json:"header,omitempty" yaml:"header,omitempty" toml:"header"`
	Mode   string `json:"mode,omitempty" yaml:"mode,omitempty" toml:"mode"`
}

// APIConfig describes one apis entry.
type APIConfig struct {
	Command        string            `json:"command,omitempty" yaml:"command,omitempty" toml:"command"`
	Response       *ResponseConfig   `json:"response,omitempty" yaml:"response,omitempty" toml:"response"`
	Method         string            `json:"method" yaml:"method" toml:"method"`
	RequireHeaders map[string]string `json:"require_headers,omitempty" yaml:"require_headers,omitempty" toml:"require_headers"`
}

// ResponseConfig is a canned API response.
type ResponseConfig struct {
	Value string `json:"value" yaml:"value" toml:"value"`
	Type  string `json:"type,omitempty" yaml:"type,omitempty" toml:"type"`
	Code  any    `json:"code,omitempty" yaml:"code,omitempty" toml:"code"`
}

// Format selects the configuration decoder.
type Format string

const (
	FormatYAML Format = "yaml"
	FormatTOML Format = "toml"
)

// FormatFromPath picks TOML for .toml files and YAML otherwise.
func FormatFromPath(filename string) Format {
	if strings.EqualFold(filepath.Ext(filename), ".toml") {
		return FormatTOML
	}
	return FormatYAML
}

const (
	defaultPort           = 8080
	defaultServerRoot     = "server_root"
	defaultUserAgent      = "curl/7.54.1"
	defaultRequestTimeout = 30 * time.Second
	defaultServerName     = "local-gateway"

	envPrefix = "APP_"
)

// ParseConfig reads and parses a configuration file.
func ParseConfig(filename string) (*Config, error) {
	expandedPath := expandPath(filename)

	data, err := os.ReadFile(expandedPath)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file '%s': %w", expandedPath, err)
	}

	return ParseConfigFromBytes(data, FormatFromPath(expandedPath))
}

// ParseConfigFromBytes parses configuration from byte data
func ParseConfigFromBytes(data []byte, format Format) (*Config, error) {
	var cfg Config
	switch format {
	case FormatTOML:
		if _, err := toml.Decode(string(data), &cfg); err != nil {
			return nil, fmt.Errorf("failed to parse TOML config: %w", err)
		}
	default:
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return nil, fmt.Errorf("failed to parse YAML config: %w", err)
		}
	}

	return finishConfig(&cfg)
}

// FastConfig is the configuration used by "start --fast": serve every file
// of the working directory on port 9000 with no remote resources.
func FastConfig() (*Config, error) {
	return finishConfig(&Config{
		Port:       9000,
		ServerRoot: "./",
		Resources:  []string{"*"},
	})
}

func finishConfig(cfg *Config) (*Config, error) {
	if err := applyEnvOverrides(cfg); err != nil {
		return nil, fmt.Errorf("failed to apply environment overrides: %w", err)
	}

	if err := setConfigDefaults(cfg); err != nil {
		return nil, fmt.Errorf("failed to set config defaults: %w", err)
	}

	if err := validateParsedConfig(cfg); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}

	if err := postProcessParsedConfig(cfg); err != nil {
		return nil, fmt.Errorf("failed to post-process config: %w", err)
	}

	return cfg, nil
}

// applyEnvOverrides replaces top-level scalars from APP_* variables.
func applyEnvOverrides(cfg *Config) error {
	if v, ok := os.LookupEnv(envPrefix + "PORT"); ok {
		port, err := cast.ToIntE(v)
		if err != nil {
			return fmt.Errorf("%sPORT: %w", envPrefix, ErrInvalidValue)
		}
		cfg.Port = port
	}

	strs := map[string]*string{
		"SERVER_ROOT":   &cfg.ServerRoot,
		"USER_AGENT":    &cfg.UserAgent,
		"SCHEMA_SOURCE": &cfg.SchemaSource,
		"START_IN":      &cfg.StartIn,
		"RUN_MODE":      &cfg.RunMode,
		"SNAPSHOT_PATH": &cfg.SnapshotPath,
	}
	for name, dst := range strs {
		if v, ok := os.LookupEnv(envPrefix + name); ok {
			*dst = v
		}
	}

	if v, ok := os.LookupEnv(envPrefix + "REQUEST_TIMEOUT"); ok {
		if err := cfg.RequestTimeout.parseValue(v); err != nil {
			return fmt.Errorf("%sREQUEST_TIMEOUT: %w", envPrefix, err)
		}
	}

	return nil
}

// setConfigDefaults sets default values for the configuration
func setConfigDefaults(cfg *Config) error {
	if cfg.MCP == nil {
		cfg.MCP = &MCPConfig{}
	}
	if cfg.MCP.ServerName == "" {
		cfg.MCP.ServerName = defaultServerName
	}
	if cfg.MCP.Version == "" {
		cfg.MCP.Version = Version
	}

	if cfg.Port == 0 {
		cfg.Port = defaultPort
	}
	if cfg.ServerRoot == "" {
		cfg.ServerRoot = defaultServerRoot
	}
	if cfg.UserAgent == "" {
		cfg.UserAgent = defaultUserAgent
	}
	if cfg.RequestTimeout == 0 {
		cfg.RequestTimeout = Duration(defaultRequestTimeout)
	}

	return nil
}

// validateParsedConfig checks the settings that abort startup. Problems with
// single resources or apis are reported later and only drop that entry.
func validateParsedConfig(cfg *Config) error {
	if cfg.Port < 1 || cfg.Port > 65535 {
		return fmt.Errorf("port %d: %w", cfg.Port, ErrInvalidValue)
	}

	if err := checkServerRoot(cfg.ServerRoot); err != nil {
		return err
	}

	if cfg.RequestTimeout < 0 {
		return fmt.Errorf("request_timeout %s: %w", cfg.RequestTimeout, ErrInvalidValue)
	}

	return nil
}

// checkServerRoot rejects roots that would shadow the /api routes.
func checkServerRoot(root string) error {
	trimmed := strings.TrimPrefix(root, "./")
	if trimmed == "api" || strings.HasPrefix(trimmed, "api/") {
		return fmt.Errorf("server_root %q: %w", root, ErrRootPath)
	}
	return nil
}

// postProcessParsedConfig performs post-processing on the parsed configuration
func postProcessParsedConfig(cfg *Config) error {
	cfg.ServerRoot = expandPath(cfg.ServerRoot)
	cfg.StartIn = expandPath(cfg.StartIn)
	cfg.SnapshotPath = expandPath(cfg.SnapshotPath)
	if cfg.SchemaSource != "" {
		cfg.SchemaSource = expandPath(cfg.SchemaSource)
	}

	for _, res := range cfg.RemoteResources {
		if res != nil {
			processResourceEnvironmentVars(res)
		}
	}

	for name, value := range cfg.APIRequiredHeaders {
		cfg.APIRequiredHeaders[name] = os.ExpandEnv(value)
	}

	return nil
}

// processResourceEnvironmentVars expands $VARS in values that commonly carry
// secrets or deployment specific hosts.
func processResourceEnvironmentVars(res *ResourceConfig) {
	res.URL = os.ExpandEnv(res.URL)
	res.FileTarget = expandPath(res.FileTarget)

	for name, value := range res.Headers {
		res.Headers[name] = os.ExpandEnv(value)
	}

	if res.Credentials != nil {
		res.Credentials.Value = os.ExpandEnv(res.Credentials.Value)
	}
}

// expandPath expands environment variables and home directory in paths
func expandPath(path string) string {
	expanded := os.ExpandEnv(path)

	if strings.HasPrefix(expanded, "~/") {
		home, err := os.UserHomeDir()
		if err == nil {
			expanded = filepath.Join(home, expanded[2:])
		}
	}

	return expanded
}
