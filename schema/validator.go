// Package schema compiles a small declarative JSON schema dialect into a
// node tree and validates decoded JSON values against it.
//
// Supported types are object, array, string, boolean, number, int and
// float. Values are expected in the shape produced by ojg or encoding/json:
// map[string]any, []any, string, bool, int64 and float64.
package schema

import (
	"fmt"

	"github.com/dlclark/regexp2"
	"github.com/ohler55/ojg/oj"
	"github.com/spf13/cast"
)

// Validator checks values against a compiled object schema. It is safe for
// concurrent use.
type Validator struct {
	root     *ObjectNode
	allowAll bool
}

// AllowAll returns a validator that accepts every value.
func AllowAll() *Validator {
	return &Validator{
		root:     &ObjectNode{AllowAdditional: true},
		allowAll: true,
	}
}

// New compiles a schema document. The top-level node must be an object.
func New(doc any) (*Validator, error) {
	node, err := compile("$", doc)
	if err != nil {
		return nil, err
	}
	obj, ok := node.(*ObjectNode)
	if !ok {
		return nil, &SchemaError{Kind: SchemaInvalid, Path: "$", Err: fmt.Errorf("top-level type must be object")}
	}
	return &Validator{root: obj}, nil
}

// Parse compiles a schema document given as JSON text.
func Parse(data []byte) (*Validator, error) {
	doc, err := oj.Parse(data)
	if err != nil {
		return nil, &SchemaError{Kind: SchemaInvalid, Path: "$", Err: err}
	}
	return New(doc)
}

// AllowsAll reports whether v skips validation entirely.
func (v *Validator) AllowsAll() bool {
	return v.allowAll
}

// Root returns the compiled top-level node.
func (v *Validator) Root() *ObjectNode {
	return v.root
}

// Validate checks value against the schema. A non-nil error is a
// *ValidationError.
func (v *Validator) Validate(value any) error {
	if v.allowAll {
		return nil
	}
	if err := v.root.match("$", value); err != nil {
		return err
	}
	return nil
}

func compile(path string, doc any) (Node, error) {
	m, ok := doc.(map[string]any)
	if !ok {
		return nil, &SchemaError{Kind: SchemaInvalid, Path: path}
	}

	rawType, ok := m["type"]
	if !ok {
		return nil, &SchemaError{Kind: SchemaMissingType, Path: path}
	}
	typ, ok := rawType.(string)
	if !ok {
		return nil, &SchemaError{Kind: SchemaInvalidType, Path: path}
	}

	switch typ {
	case "object":
		return compileObject(path, m)
	case "array":
		return compileArray(path, m)
	case "string":
		return compileString(path, m)
	case "boolean":
		return &BoolNode{}, nil
	case "number":
		return compileNumber(path, m, Number)
	case "int":
		return compileNumber(path, m, Int)
	case "float":
		return compileNumber(path, m, Float)
	default:
		return nil, &SchemaError{Kind: SchemaInvalidType, Path: path, Err: fmt.Errorf("unknown type %q", typ)}
	}
}

func compileObject(path string, m map[string]any) (Node, error) {
	var required []string
	if raw, ok := m["required"]; ok {
		list, ok := raw.([]any)
		if !ok {
			return nil, &SchemaError{Kind: SchemaInvalidRequirements, Path: path}
		}
		for _, item := range list {
			name, ok := item.(string)
			if !ok {
				return nil, &SchemaError{Kind: SchemaInvalidRequirements, Path: path}
			}
			required = append(required, name)
		}
	}

	rawProps, ok := m["properties"]
	if !ok {
		return nil, &SchemaError{Kind: SchemaMissingProperties, Path: path}
	}
	props, ok := rawProps.(map[string]any)
	if !ok {
		return nil, &SchemaError{Kind: SchemaInvalidProperties, Path: path}
	}

	for _, name := range required {
		if _, ok := props[name]; !ok {
			return nil, &SchemaError{Kind: SchemaMissingRequired, Path: joinPath(path, name)}
		}
	}

	node := &ObjectNode{
		Properties: make(map[string]Node, len(props)),
		Required:   required,
	}
	for name, raw := range props {
		child, err := compile(joinPath(path, name), raw)
		if err != nil {
			return nil, err
		}
		node.Properties[name] = child
	}

	if raw, ok := m["additionalProperties"]; ok {
		allow, _ := raw.(bool)
		node.AllowAdditional = allow
	}

	return node, nil
}

func compileArray(path string, m map[string]any) (Node, error) {
	rawItems, ok := m["items"]
	if !ok {
		return nil, &SchemaError{Kind: SchemaMissingItems, Path: path}
	}
	if _, ok := rawItems.(map[string]any); !ok {
		return nil, &SchemaError{Kind: SchemaInvalidItems, Path: path}
	}

	items, err := compile(path+"[]", rawItems)
	if err != nil {
		return nil, &SchemaError{Kind: SchemaInvalidItems, Path: path, Err: err}
	}

	node := &ArrayNode{Items: items}
	if raw, ok := m["length"]; ok {
		length, err := toLength(raw)
		if err != nil {
			return nil, &SchemaError{Kind: SchemaInvalidProperty, Path: joinPath(path, "length"), Err: err}
		}
		node.Length = length
		node.HasLength = true
	}

	return node, nil
}

func compileString(path string, m map[string]any) (Node, error) {
	raw, ok := m["pattern"]
	if !ok {
		return &StringNode{}, nil
	}
	pattern, ok := raw.(string)
	if !ok {
		return nil, &SchemaError{Kind: SchemaInvalidProperty, Path: joinPath(path, "pattern")}
	}

	re, err := regexp2.Compile(pattern, regexp2.ECMAScript)
	if err != nil {
		return nil, &SchemaError{Kind: SchemaInvalidPattern, Path: joinPath(path, "pattern"), Err: err}
	}
	re.MatchTimeout = patternTimeout

	return &StringNode{Pattern: re}, nil
}

func compileNumber(path string, m map[string]any, kind NumericKind) (Node, error) {
	node := &NumberNode{Kind: kind}

	for _, bound := range []struct {
		key    string
		dst    **float64
		intDst **int64
	}{{"min", &node.Min, &node.IntMin}, {"max", &node.Max, &node.IntMax}} {
		raw, ok := m[bound.key]
		if !ok {
			continue
		}
		if _, isBool := raw.(bool); isBool {
			return nil, &SchemaError{Kind: SchemaInvalidProperty, Path: joinPath(path, bound.key)}
		}
		f, err := cast.ToFloat64E(raw)
		if err != nil {
			return nil, &SchemaError{Kind: SchemaInvalidProperty, Path: joinPath(path, bound.key), Err: err}
		}
		*bound.dst = &f
		if i, ok := asInt(raw); ok && kind == Int {
			*bound.intDst = &i
		}
	}

	return node, nil
}

func toLength(raw any) (uint16, error) {
	n, ok := asInt(raw)
	if !ok {
		return 0, fmt.Errorf("length must be an integer, got %T", raw)
	}
	if n < 0 || n > 0xFFFF {
		return 0, fmt.Errorf("length %d out of range", n)
	}
	return uint16(n), nil
}
