package gateway

import (
	"errors"
	"fmt"
)

// Configuration error classes. Entry level failures wrap one of these.
var (
	ErrInvalidValue      = errors.New("value could not be parsed")
	ErrMissingKey        = errors.New("required key is missing")
	ErrNotAvailable      = errors.New("value is not available")
	ErrInvalidURI        = errors.New("uri is not valid to use")
	ErrSelfReference     = errors.New("uri points back at the gateway")
	ErrUnsupportedSchema = errors.New("schema is not supported for this resource")
	ErrInvalidSchema     = errors.New("schema source is not valid")
	ErrNoSchemaSource    = errors.New("schema source could not be loaded")
	ErrRootPath          = errors.New("server root must not be the api directory")
	ErrInternal          = errors.New("internal error")
	ErrDecode            = errors.New("credentials could not be decoded")
	ErrCacheFilled       = errors.New("cache cell already filled")
)

// FetchKind classifies a failed fetch.
type FetchKind int

const (
	FetchRequest FetchKind = iota
	FetchNotFound
	FetchDecode
	FetchInvalidJSON
	FetchInvalidUTF8
	FetchSchema
)

func (k FetchKind) String() string {
	switch k {
	case FetchRequest:
		return "request"
	case FetchNotFound:
		return "not found"
	case FetchDecode:
		return "decode"
	case FetchInvalidJSON:
		return "invalid JSON"
	case FetchInvalidUTF8:
		return "invalid UTF-8"
	case FetchSchema:
		return "schema"
	default:
		return fmt.Sprintf("FetchKind(%d)", int(k))
	}
}

// FetchError is returned by Gateway.Fetch.
type FetchError struct {
	Kind     FetchKind
	Resource string
	Err      error
}

func newFetchError(kind FetchKind, resource string, err error) *FetchError {
	return &FetchError{Kind: kind, Resource: resource, Err: err}
}

func (e *FetchError) Error() string {
	if e.Err == nil {
		return fmt.Sprintf("fetch %q: %s", e.Resource, e.Kind)
	}
	return fmt.Sprintf("fetch %q: %s: %v", e.Resource, e.Kind, e.Err)
}

func (e *FetchError) Unwrap() error {
	return e.Err
}

// Is matches another *FetchError of the same kind.
func (e *FetchError) Is(target error) bool {
	t, ok := target.(*FetchError)
	if !ok {
		return false
	}
	return t.Kind == e.Kind && (t.Resource == "" || t.Resource == e.Resource)
}

// EntryError reports a configuration entry that was dropped.
type EntryError struct {
	Section string
	Name    string
	Err     error
}

func (e *EntryError) Error() string {
	return fmt.Sprintf("%s.%s: %v", e.Section, e.Name, e.Err)
}

func (e *EntryError) Unwrap() error {
	return e.Err
}
