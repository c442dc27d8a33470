package schema

import (
	"fmt"
	"strconv"
)

// ErrorKind classifies validation failures.
type ErrorKind int

const (
	Invalid ErrorKind = iota
	NotBoolean
	NotString
	NotInt
	NotFloat
	NotArray
	NotObject
	NotNumber
	OutOfRange
	MissingRequired
	UnexpectedProperty
	PatternMatchFailed
)

var errorKindText = map[ErrorKind]string{
	Invalid:            "json does not match schema",
	NotBoolean:         "expected boolean",
	NotString:          "expected string",
	NotInt:             "expected integer",
	NotFloat:           "expected float",
	NotArray:           "expected array",
	NotObject:          "expected object",
	NotNumber:          "expected number",
	OutOfRange:         "value out of range",
	MissingRequired:    "missing required property",
	UnexpectedProperty: "unexpected property",
	PatternMatchFailed: "string does not match pattern",
}

func (k ErrorKind) String() string {
	if s, ok := errorKindText[k]; ok {
		return s
	}
	return "unknown validation error"
}

// ValidationError reports why a value was rejected and where.
type ValidationError struct {
	Kind ErrorKind
	// Path locates the offending value, "$" being the document root.
	Path string
}

func newValidationError(kind ErrorKind, path string) *ValidationError {
	return &ValidationError{Kind: kind, Path: path}
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("%s at %s", e.Kind, e.Path)
}

// Is reports whether target is a ValidationError of the same kind.
func (e *ValidationError) Is(target error) bool {
	t, ok := target.(*ValidationError)
	return ok && t.Kind == e.Kind && (t.Path == "" || t.Path == e.Path)
}

// SchemaErrorKind classifies structural problems in a schema document.
type SchemaErrorKind int

const (
	SchemaInvalid SchemaErrorKind = iota
	SchemaMissingType
	SchemaInvalidType
	SchemaMissingProperties
	SchemaInvalidProperties
	SchemaMissingItems
	SchemaInvalidItems
	SchemaInvalidProperty
	SchemaMissingRequired
	SchemaInvalidRequirements
	SchemaInvalidPattern
)

var schemaErrorText = map[SchemaErrorKind]string{
	SchemaInvalid:             "schema could not be parsed",
	SchemaMissingType:         "expected property 'type' is missing",
	SchemaInvalidType:         "value for property 'type' is not valid",
	SchemaMissingProperties:   "expected property 'properties' is missing",
	SchemaInvalidProperties:   "value for property 'properties' is not valid",
	SchemaMissingItems:        "expected property 'items' is missing",
	SchemaInvalidItems:        "value for property 'items' is not valid",
	SchemaInvalidProperty:     "property has invalid value",
	SchemaMissingRequired:     "missing required property definition",
	SchemaInvalidRequirements: "invalid property requirements",
	SchemaInvalidPattern:      "pattern is not a valid regular expression",
}

func (k SchemaErrorKind) String() string {
	if s, ok := schemaErrorText[k]; ok {
		return s
	}
	return "unknown schema error"
}

// SchemaError is returned while compiling a schema document.
type SchemaError struct {
	Kind SchemaErrorKind
	Path string
	Err  error
}

func (e *SchemaError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s at %s: %v", e.Kind, e.Path, e.Err)
	}
	return fmt.Sprintf("%s at %s", e.Kind, e.Path)
}

func (e *SchemaError) Unwrap() error {
	return e.Err
}

// Is reports whether target is a SchemaError of the same kind.
func (e *SchemaError) Is(target error) bool {
	t, ok := target.(*SchemaError)
	return ok && t.Kind == e.Kind
}

func joinPath(path, key string) string {
	return path + "." + key
}

func indexPath(path string, i int) string {
	return path + "[" + strconv.Itoa(i) + "]"
}
