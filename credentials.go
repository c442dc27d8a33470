package gateway

import (
	"fmt"
	"strings"
	"unicode/utf8"

	"github.com/paulgrammer/local-gateway/cryptea"
)

// DefaultKey decodes encoded credential values. XXTEA keys are cut to 16
// bytes, so longer spellings of the same constant decode identically.
const DefaultKey = "2.71828182845904"

// CredentialsMode selects how the configured value becomes a header value.
type CredentialsMode int

const (
	// ModeEncoded values are base64 XXTEA ciphertext.
	ModeEncoded CredentialsMode = iota
	// ModePlain values are sent as configured. No secrecy is implied.
	ModePlain
)

func (m CredentialsMode) String() string {
	if m == ModePlain {
		return "plain"
	}
	return "encoded"
}

// Credentials is a header injected into outbound requests.
type Credentials struct {
	value     []byte
	header    string
	mode      CredentialsMode
	available bool
}

// parseCredentials interprets a credentials table. A partial table yields
// unavailable credentials together with ErrNotAvailable so the caller can
// keep the resource and warn. An unusable header name is ErrInvalidValue.
func parseCredentials(cfg *CredentialsConfig) (*Credentials, error) {
	if cfg == nil {
		return nil, nil
	}

	c := &Credentials{value: []byte(cfg.Value), header: cfg.Header}
	if strings.EqualFold(cfg.Mode, "plain") {
		c.mode = ModePlain
	}

	if cfg.Value == "" {
		return c, fmt.Errorf("credentials value: %w", ErrNotAvailable)
	}
	if cfg.Header == "" {
		return c, fmt.Errorf("credentials header: %w", ErrNotAvailable)
	}
	if n := len(cfg.Header); n <= 4 || n >= 50 {
		return nil, fmt.Errorf("credentials header %q: %w", cfg.Header, ErrInvalidValue)
	}

	c.available = true
	return c, nil
}

// Header is the request header the value is sent in.
func (c *Credentials) Header() string {
	return c.header
}

func (c *Credentials) Mode() CredentialsMode {
	return c.mode
}

// Available reports whether both value and header are configured.
func (c *Credentials) Available() bool {
	return c != nil && c.available
}

// Derive returns the header value, decoding it with key in encoded mode.
func (c *Credentials) Derive(key string) (string, error) {
	if !c.Available() {
		return "", ErrNotAvailable
	}

	if c.mode == ModePlain {
		if !utf8.Valid(c.value) {
			return "", fmt.Errorf("%w: plain value is not UTF-8", ErrDecode)
		}
		return string(c.value), nil
	}

	plain, err := cryptea.Decode(string(c.value), key)
	if err != nil {
		return "", fmt.Errorf("%w: %w", ErrDecode, err)
	}
	return plain, nil
}
