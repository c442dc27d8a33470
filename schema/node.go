package schema

import (
	"maps"
	"slices"
	"time"

	"github.com/dlclark/regexp2"
)

// patternTimeout bounds a single pattern match.
const patternTimeout = time.Second

// Node is one compiled schema node. The set of implementations is closed:
// ObjectNode, ArrayNode, StringNode, NumberNode and BoolNode.
type Node interface {
	match(path string, value any) error
}

// ObjectNode matches a JSON object.
type ObjectNode struct {
	Properties      map[string]Node
	Required        []string
	AllowAdditional bool
}

// ArrayNode matches a JSON array whose elements all match Items.
type ArrayNode struct {
	Items Node
	// Length is the exact element count when HasLength is set.
	Length    uint16
	HasLength bool
}

// StringNode matches a JSON string, optionally against a pattern.
type StringNode struct {
	Pattern *regexp2.Regexp
}

// NumericKind separates the three numeric schema types.
type NumericKind int

const (
	Number NumericKind = iota
	Int
	Float
)

func (k NumericKind) String() string {
	switch k {
	case Int:
		return "int"
	case Float:
		return "float"
	default:
		return "number"
	}
}

// NumberNode matches numbers of the given kind within optional bounds.
type NumberNode struct {
	Kind NumericKind
	Min  *float64
	Max  *float64
	// IntMin and IntMax hold integer bounds of an Int node exactly.
	IntMin *int64
	IntMax *int64
}

// BoolNode matches a JSON boolean.
type BoolNode struct{}

func (n *ObjectNode) match(path string, value any) error {
	obj, ok := value.(map[string]any)
	if !ok {
		return newValidationError(NotObject, path)
	}

	for _, name := range n.Required {
		if _, ok := obj[name]; !ok {
			return newValidationError(MissingRequired, joinPath(path, name))
		}
	}

	for _, key := range slices.Sorted(maps.Keys(obj)) {
		val := obj[key]
		prop, declared := n.Properties[key]
		if !declared {
			if n.AllowAdditional {
				continue
			}
			return newValidationError(UnexpectedProperty, joinPath(path, key))
		}
		if err := prop.match(joinPath(path, key), val); err != nil {
			return err
		}
	}

	return nil
}

func (n *ArrayNode) match(path string, value any) error {
	arr, ok := value.([]any)
	if !ok {
		return newValidationError(NotArray, path)
	}
	if n.HasLength && len(arr) != int(n.Length) {
		return newValidationError(OutOfRange, path)
	}
	for i, item := range arr {
		if err := n.Items.match(indexPath(path, i), item); err != nil {
			return err
		}
	}
	return nil
}

func (n *StringNode) match(path string, value any) error {
	s, ok := value.(string)
	if !ok {
		return newValidationError(NotString, path)
	}
	if n.Pattern == nil {
		return nil
	}
	matched, err := n.Pattern.MatchString(s)
	if err != nil || !matched {
		return newValidationError(PatternMatchFailed, path)
	}
	return nil
}

func (n *NumberNode) match(path string, value any) error {
	var f float64

	switch n.Kind {
	case Int:
		i, ok := asInt(value)
		if !ok {
			return newValidationError(NotInt, path)
		}
		if (n.IntMin != nil && i < *n.IntMin) || (n.IntMax != nil && i > *n.IntMax) {
			return newValidationError(OutOfRange, path)
		}
		f = float64(i)
	case Float:
		v, ok := asFloat(value)
		if !ok {
			return newValidationError(NotFloat, path)
		}
		f = v
	default:
		v, ok := asFloat(value)
		if !ok {
			return newValidationError(NotNumber, path)
		}
		f = v
	}

	if n.Min != nil && n.IntMin == nil && f < *n.Min {
		return newValidationError(OutOfRange, path)
	}
	if n.Max != nil && n.IntMax == nil && f > *n.Max {
		return newValidationError(OutOfRange, path)
	}
	return nil
}

func (n *BoolNode) match(path string, value any) error {
	if _, ok := value.(bool); !ok {
		return newValidationError(NotBoolean, path)
	}
	return nil
}

func asInt(value any) (int64, bool) {
	switch v := value.(type) {
	case int64:
		return v, true
	case int:
		return int64(v), true
	case int32:
		return int64(v), true
	default:
		return 0, false
	}
}

func asFloat(value any) (float64, bool) {
	switch v := value.(type) {
	case float64:
		return v, true
	case float32:
		return float64(v), true
	default:
		if i, ok := asInt(value); ok {
			return float64(i), true
		}
		return 0, false
	}
}
