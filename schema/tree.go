package schema

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"sort"

	"github.com/ohler55/ojg/oj"
)

// TestSource selects the built-in test schemas instead of a file.
const TestSource = "test"

// ErrNoSchemas is returned when a document has no "schemas" object.
var ErrNoSchemas = errors.New("schema document has no 'schemas' object")

// Tree holds named validators loaded from a {"schemas": {...}} document.
type Tree struct {
	schemas map[string]*Validator
}

// Load builds a tree from source: either TestSource or a JSON file path.
func Load(source string, logger *slog.Logger) (*Tree, error) {
	if source == TestSource {
		return BuiltinTest(logger)
	}

	data, err := os.ReadFile(source)
	if err != nil {
		return nil, fmt.Errorf("failed to read schema file '%s': %w", source, err)
	}
	return ParseTree(data, logger)
}

// ParseTree builds a tree from JSON text. Entries that fail to compile are
// skipped with a warning.
func ParseTree(data []byte, logger *slog.Logger) (*Tree, error) {
	if logger == nil {
		logger = slog.Default()
	}

	doc, err := oj.Parse(data)
	if err != nil {
		return nil, fmt.Errorf("failed to parse schema document: %w", err)
	}
	root, ok := doc.(map[string]any)
	if !ok {
		return nil, ErrNoSchemas
	}
	entries, ok := root["schemas"].(map[string]any)
	if !ok {
		return nil, ErrNoSchemas
	}

	tree := &Tree{schemas: make(map[string]*Validator, len(entries))}
	for name, raw := range entries {
		v, err := New(raw)
		if err != nil {
			logger.Warn("Schema is not valid, skipping", "schema", name, "error", err)
			continue
		}
		tree.schemas[name] = v
	}

	return tree, nil
}

// Get returns the validator registered under name.
func (t *Tree) Get(name string) (*Validator, bool) {
	if t == nil {
		return nil, false
	}
	v, ok := t.schemas[name]
	return v, ok
}

// Has reports whether name is registered.
func (t *Tree) Has(name string) bool {
	_, ok := t.Get(name)
	return ok
}

// Names lists registered schemas in sorted order.
func (t *Tree) Names() []string {
	if t == nil {
		return nil
	}
	names := make([]string, 0, len(t.schemas))
	for name := range t.schemas {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

const builtinTest = `{
  "schemas": {
    "test": {
      "type": "object",
      "required": ["RequiredTest"],
      "properties": {
        "RequiredTest": {
          "type": "array",
          "length": 2,
          "items": {
            "type": "object",
            "properties": {
              "test_code": {"type": "string", "pattern": "^h...o$"},
              "test_float": {"type": "float", "min": 2.5, "max": 5},
              "test_int": {"type": "int", "min": 0},
              "test_number": {"type": "number"}
            },
            "required": ["test_code", "test_float", "test_int"],
            "additionalProperties": true
          }
        }
      }
    }
  }
}`

// BuiltinTest returns the tree used by schema_source = "test".
func BuiltinTest(logger *slog.Logger) (*Tree, error) {
	return ParseTree([]byte(builtinTest), logger)
}
