package contenttype

import (
	"log/slog"
	"net/http"
	"slices"
	"sort"
	"strings"
	"time"
)

// ValueKind tags how a header value is produced.
type ValueKind int

const (
	// Literal values are sent as configured.
	Literal ValueKind = iota
	// Computed values ("<auto>") are derived per response.
	Computed
	// ByRequest values ("@name") mirror a request header whose value is in
	// the allowed origins.
	ByRequest
)

const autoValue = "<auto>"

// HeaderValue is one configured response header value.
type HeaderValue struct {
	Kind ValueKind
	// Value is the literal text, or the request header name for ByRequest.
	Value string
}

// ParseHeaderValue classifies a configured value.
func ParseHeaderValue(s string) HeaderValue {
	switch {
	case s == autoValue:
		return HeaderValue{Kind: Computed}
	case strings.HasPrefix(s, "@") && len(s) > 1:
		return HeaderValue{Kind: ByRequest, Value: s[1:]}
	default:
		return HeaderValue{Kind: Literal, Value: s}
	}
}

// Rule binds a response header name to a value.
type Rule struct {
	Name  string
	Value HeaderValue
}

// HeaderTable maps content types to response header rules. It is read-only
// after construction.
type HeaderTable struct {
	tables       map[ContentType][]Rule
	allowOrigins []string
	serverName   string
	now          func() time.Time
}

// TableOption configures a HeaderTable.
type TableOption func(*HeaderTable)

// WithServerName sets the value computed for the Server header.
func WithServerName(name string) TableOption {
	return func(t *HeaderTable) {
		t.serverName = name
	}
}

// WithClock sets the time source for the Date header.
func WithClock(now func() time.Time) TableOption {
	return func(t *HeaderTable) {
		t.now = now
	}
}

// NewHeaderTable builds a table from the response_headers configuration:
// MIME string (or "Global") to header name to value. Global rules are merged
// into every specific table, the specific rule winning on conflict.
func NewHeaderTable(raw map[string]map[string]string, allowOrigins []string, logger *slog.Logger, opts ...TableOption) *HeaderTable {
	if logger == nil {
		logger = slog.Default()
	}

	t := &HeaderTable{
		tables:       make(map[ContentType][]Rule),
		allowOrigins: slices.Clone(allowOrigins),
		serverName:   "local-gateway",
		now:          time.Now,
	}
	for _, opt := range opts {
		opt(t)
	}

	parsed := make(map[ContentType]map[string]HeaderValue)
	for key, headers := range raw {
		ct, ok := FromMIME(key)
		if !ok {
			logger.Warn("Unknown content type in response headers, skipping", "content_type", key)
			continue
		}
		set := make(map[string]HeaderValue, len(headers))
		for name, value := range headers {
			set[http.CanonicalHeaderKey(name)] = ParseHeaderValue(value)
		}
		parsed[ct] = set
	}

	global := parsed[Global]
	for ct, set := range parsed {
		if ct != Global {
			for name, value := range global {
				if _, ok := set[name]; !ok {
					set[name] = value
				}
			}
		}
		t.tables[ct] = toRules(set)
	}

	return t
}

func toRules(set map[string]HeaderValue) []Rule {
	names := make([]string, 0, len(set))
	for name := range set {
		names = append(names, name)
	}
	sort.Strings(names)

	rules := make([]Rule, 0, len(names))
	for _, name := range names {
		rules = append(rules, Rule{Name: name, Value: set[name]})
	}
	return rules
}

// Rules returns the rules for ct, falling back to Global.
func (t *HeaderTable) Rules(ct ContentType) []Rule {
	if rules, ok := t.tables[ct]; ok {
		return rules
	}
	return t.tables[Global]
}

// AllowsOrigin reports whether value is in the allowed origins.
func (t *HeaderTable) AllowsOrigin(value string) bool {
	return slices.Contains(t.allowOrigins, value)
}

// Resolve computes the response headers for ct given the request headers.
// ByRequest headers whose request value is not allowed are omitted.
func (t *HeaderTable) Resolve(ct ContentType, req http.Header) http.Header {
	out := make(http.Header)
	for _, rule := range t.Rules(ct) {
		switch rule.Value.Kind {
		case Literal:
			out.Set(rule.Name, rule.Value.Value)
		case Computed:
			if v, ok := t.compute(rule.Name, ct); ok {
				out.Set(rule.Name, v)
			}
		case ByRequest:
			if v := req.Get(rule.Value.Value); v != "" && t.AllowsOrigin(v) {
				out.Set(rule.Name, v)
			}
		}
	}
	return out
}

// Apply negotiates ct against the request and writes the resolved headers
// plus Content-Type into dst.
func (t *HeaderTable) Apply(dst http.Header, ct ContentType, req http.Header) error {
	if err := Negotiate(ct, req); err != nil {
		return err
	}
	dst.Set("Content-Type", ct.MIME())
	for name, values := range t.Resolve(ct, req) {
		dst[name] = values
	}
	return nil
}

func (t *HeaderTable) compute(name string, ct ContentType) (string, bool) {
	switch name {
	case "Date":
		return t.now().UTC().Format(http.TimeFormat), true
	case "Content-Type":
		return ct.MIME(), ct != Global
	case "Server":
		return t.serverName, true
	default:
		return "", false
	}
}
