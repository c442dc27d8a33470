package gateway

import (
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"sort"
	"time"

	"github.com/paulgrammer/local-gateway/contenttype"
	"github.com/paulgrammer/local-gateway/schema"
)

// Settings is the validated, immutable form of a Config. It is built once
// at startup and passed to the server explicitly.
type Settings struct {
	Port           int
	ServerRoot     string
	UserAgent      string
	StartIn        string
	RunMode        string
	RequestTimeout time.Duration
	SnapshotPath   string

	ServerName    string
	ServerVersion string

	// APIRequiredHeaders gate every POST route.
	APIRequiredHeaders map[string]string

	Paths     *PathProvider
	Headers   *contenttype.HeaderTable
	Schemas   *schema.Tree
	Resources map[string]*RemoteResource
	APIs      []*ServerAPI

	// Report joins every dropped or degraded entry. nil when the whole
	// configuration was usable.
	Report error
}

// NewSettings validates cfg. Invalid resources and apis are dropped and
// logged; a self-referencing resource URI or an api server root aborts.
func NewSettings(cfg *Config, logger *slog.Logger) (*Settings, error) {
	if logger == nil {
		logger = slog.Default()
	}
	if err := validateParsedConfig(cfg); err != nil {
		return nil, err
	}

	s := &Settings{
		Port:               cfg.Port,
		ServerRoot:         cfg.ServerRoot,
		UserAgent:          cfg.UserAgent,
		StartIn:            cfg.StartIn,
		RunMode:            cfg.RunMode,
		RequestTimeout:     cfg.RequestTimeout.Std(),
		SnapshotPath:       cfg.SnapshotPath,
		ServerName:         defaultServerName,
		ServerVersion:      Version,
		APIRequiredHeaders: cfg.APIRequiredHeaders,
		Paths:              NewPathProvider(cfg.ServerRoot, cfg.Resources, cfg.WritableResources),
		Resources:          make(map[string]*RemoteResource),
	}
	if cfg.MCP != nil {
		if cfg.MCP.ServerName != "" {
			s.ServerName = cfg.MCP.ServerName
		}
		if cfg.MCP.Version != "" {
			s.ServerVersion = cfg.MCP.Version
		}
	}
	if s.UserAgent == "" {
		s.UserAgent = defaultUserAgent
	}

	s.Headers = contenttype.NewHeaderTable(cfg.ResponseHeaders, cfg.AllowOrigins, logger,
		contenttype.WithServerName(fmt.Sprintf("%s/%s", defaultServerName, Version)))

	var report []error

	if cfg.SchemaSource != "" {
		tree, err := schema.Load(cfg.SchemaSource, logger)
		if err != nil {
			class := ErrInvalidSchema
			var pathErr *fs.PathError
			if errors.As(err, &pathErr) {
				class = ErrNoSchemaSource
			}
			err = &EntryError{Section: "schema_source", Name: cfg.SchemaSource, Err: fmt.Errorf("%w: %w", class, err)}
			logger.Warn("Schema source could not be used", "source", cfg.SchemaSource, "error", err)
			report = append(report, err)
		} else {
			s.Schemas = tree
			logger.Debug("Schemas loaded", "source", cfg.SchemaSource, "schemas", tree.Names())
		}
	}

	for _, name := range sortedKeys(cfg.RemoteResources) {
		res, err := NewRemoteResource(name, cfg.RemoteResources[name], cfg.Port, s.Schemas)
		if errors.Is(err, ErrSelfReference) {
			return nil, &EntryError{Section: "remote_resources", Name: name, Err: err}
		}
		if err != nil {
			entryErr := &EntryError{Section: "remote_resources", Name: name, Err: err}
			report = append(report, entryErr)
			if res == nil {
				logger.Warn("Dropping remote resource", "resource", name, "error", err)
				continue
			}
			logger.Warn("Remote resource credentials are not available", "resource", name, "error", err)
		}
		s.Resources[name] = res
	}

	hasResource := func(name string) bool {
		_, ok := s.Resources[name]
		return ok
	}
	for _, name := range sortedKeys(cfg.APIs) {
		api, err := NewServerAPI(name, cfg.APIs[name], cfg.APIRequiredHeaders, hasResource)
		if err != nil {
			logger.Warn("Dropping api", "api", name, "error", err)
			report = append(report, &EntryError{Section: "apis", Name: name, Err: err})
			continue
		}
		s.APIs = append(s.APIs, api)
	}

	s.Report = errors.Join(report...)

	logger.Info("Settings loaded",
		"port", s.Port,
		"server_root", s.ServerRoot,
		"resources", len(s.Resources),
		"apis", len(s.APIs),
		"dropped", len(report),
	)

	return s, nil
}

func sortedKeys[V any](m map[string]V) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
