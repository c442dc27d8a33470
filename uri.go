package gateway

import (
	"fmt"
	"net/url"
	"strconv"
	"strings"
)

// QualifiedURI is an absolute http(s) URI that does not point back at the
// gateway's own listener.
type QualifiedURI struct {
	u *url.URL
}

// ParseQualifiedURI validates raw. selfPort is the port the gateway listens
// on; a loopback URI on that port yields ErrSelfReference.
func ParseQualifiedURI(raw string, selfPort int) (QualifiedURI, error) {
	u, err := url.Parse(raw)
	if err != nil {
		return QualifiedURI{}, fmt.Errorf("%w: %v", ErrInvalidURI, err)
	}

	scheme := strings.ToLower(u.Scheme)
	if scheme != "http" && scheme != "https" {
		return QualifiedURI{}, fmt.Errorf("%w: unsupported scheme %q", ErrInvalidURI, u.Scheme)
	}
	if u.Host == "" {
		return QualifiedURI{}, fmt.Errorf("%w: missing host in %q", ErrInvalidURI, raw)
	}

	port := u.Port()
	if port == "" {
		port = "80"
		if scheme == "https" {
			port = "443"
		}
	}
	host := u.Hostname()
	if (host == "localhost" || host == "127.0.0.1") && port == strconv.Itoa(selfPort) {
		return QualifiedURI{}, fmt.Errorf("%w: %s", ErrSelfReference, raw)
	}

	return QualifiedURI{u: u}, nil
}

func (q QualifiedURI) String() string {
	if q.u == nil {
		return ""
	}
	return q.u.String()
}

// Compose adds the allow-listed parameters of incoming to the base URI.
// Parameters already present on the base URI are kept as configured.
func (q QualifiedURI) Compose(incoming url.Values, allow []string) string {
	if len(allow) == 0 || len(incoming) == 0 {
		return q.String()
	}

	query := q.u.Query()
	added := false
	for _, name := range allow {
		values, ok := incoming[name]
		if !ok || query.Has(name) {
			continue
		}
		query[name] = values
		added = true
	}
	if !added {
		return q.String()
	}

	u := *q.u
	u.RawQuery = query.Encode()
	return u.String()
}
