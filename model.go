package gateway

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"unicode/utf8"

	"github.com/ohler55/ojg"
	"github.com/ohler55/ojg/oj"

	"github.com/paulgrammer/local-gateway/schema"
)

// DataModel is the shape a fetched body is decoded into.
type DataModel int

const (
	ModelBytes DataModel = iota
	ModelText
	ModelJSON
	ModelUntyped
	ModelConditions
	ModelProductList
	ModelProxyData
)

var modelNames = map[DataModel]string{
	ModelBytes:       "bytes",
	ModelText:        "text",
	ModelJSON:        "json",
	ModelUntyped:     "untyped",
	ModelConditions:  "conditions",
	ModelProductList: "productlist",
	ModelProxyData:   "proxydata",
}

// ParseDataModel parses a model name. An empty name is ModelBytes.
func ParseDataModel(s string) (DataModel, error) {
	if s == "" {
		return ModelBytes, nil
	}
	name := strings.ToLower(s)
	for m, n := range modelNames {
		if n == name {
			return m, nil
		}
	}
	return ModelBytes, fmt.Errorf("model %q: %w", s, ErrInvalidValue)
}

func (m DataModel) String() string {
	if n, ok := modelNames[m]; ok {
		return n
	}
	return fmt.Sprintf("DataModel(%d)", int(m))
}

// SupportsSchema reports whether a schema may be attached to m.
func (m DataModel) SupportsSchema() bool {
	return m == ModelJSON
}

// MIME is the Content-Type used when the model's output is served.
func (m DataModel) MIME() string {
	switch m {
	case ModelBytes:
		return "application/octet-stream"
	case ModelText:
		return "text/plain; charset=utf-8"
	default:
		return "application/json"
	}
}

// IsText reports whether the body must be UTF-8 text.
func (m DataModel) IsText() bool {
	return m != ModelBytes
}

var errMissingField = errors.New("missing field")

// Item is one entry of a conditions document.
type Item struct {
	Condition string   `json:"condition"`
	Effects   []string `json:"effects"`
	Data      []string `json:"data"`
}

func (i *Item) UnmarshalJSON(data []byte) error {
	var raw struct {
		Condition *string   `json:"condition"`
		Effects   *[]string `json:"effects"`
		Data      []string  `json:"data"`
	}
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	if raw.Condition == nil || raw.Effects == nil {
		return fmt.Errorf("item: %w", errMissingField)
	}
	*i = Item{Condition: *raw.Condition, Effects: *raw.Effects, Data: raw.Data}
	return nil
}

// ItemsList is the conditions model. Only Items is served.
type ItemsList struct {
	Items []Item `json:"items"`
}

func (l *ItemsList) UnmarshalJSON(data []byte) error {
	var raw struct {
		Items *[]Item `json:"items"`
	}
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	if raw.Items == nil {
		return fmt.Errorf("items: %w", errMissingField)
	}
	l.Items = *raw.Items
	return nil
}

// Product is one ProductList entry.
type Product struct {
	MaterialCode string `json:"material_code"`
	MaterialName string `json:"material_name"`
	EAN          string `json:"EAN"`
}

func (p *Product) UnmarshalJSON(data []byte) error {
	var raw struct {
		MaterialCode *string `json:"material_code"`
		MaterialName *string `json:"material_name"`
		EAN          *string `json:"EAN"`
	}
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	if raw.MaterialCode == nil || raw.MaterialName == nil || raw.EAN == nil {
		return fmt.Errorf("product: %w", errMissingField)
	}
	*p = Product{MaterialCode: *raw.MaterialCode, MaterialName: *raw.MaterialName, EAN: *raw.EAN}
	return nil
}

// ProductList is the productlist model.
type ProductList struct {
	Products []Product `json:"ProductList"`
}

func (l *ProductList) UnmarshalJSON(data []byte) error {
	var raw struct {
		Products *[]Product `json:"ProductList"`
	}
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	if raw.Products == nil {
		return fmt.Errorf("ProductList: %w", errMissingField)
	}
	l.Products = *raw.Products
	return nil
}

// ProxyData is a {data, target} envelope. Only Data is served.
type ProxyData struct {
	Data   string `json:"data"`
	Target string `json:"target"`
}

func (p *ProxyData) UnmarshalJSON(data []byte) error {
	var raw struct {
		Data   *string `json:"data"`
		Target *string `json:"target"`
	}
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	if raw.Data == nil || raw.Target == nil {
		return fmt.Errorf("proxy data: %w", errMissingField)
	}
	*p = ProxyData{Data: *raw.Data, Target: *raw.Target}
	return nil
}

// ParseProxyData decodes a ProxyData document.
func ParseProxyData(body []byte) (*ProxyData, error) {
	var pd ProxyData
	if err := json.Unmarshal(body, &pd); err != nil {
		return nil, err
	}
	return &pd, nil
}

// render decodes body as m, validates it when v is set and returns the
// canonical output. On failure the returned kind classifies the error.
func (m DataModel) render(body []byte, v *schema.Validator) ([]byte, FetchKind, error) {
	if m == ModelBytes {
		return body, 0, nil
	}
	if !utf8.Valid(body) {
		return nil, FetchInvalidUTF8, errors.New("body is not valid UTF-8")
	}

	switch m {
	case ModelText:
		return body, 0, nil

	case ModelUntyped:
		if _, err := oj.Parse(body); err != nil {
			return nil, FetchInvalidJSON, err
		}
		return body, 0, nil

	case ModelJSON:
		value, err := oj.Parse(body)
		if err != nil {
			return nil, FetchInvalidJSON, err
		}
		if v != nil {
			if err := v.Validate(value); err != nil {
				return nil, FetchSchema, err
			}
		}
		return []byte(oj.JSON(value, &ojg.Options{Indent: 2, Sort: true})), 0, nil

	case ModelConditions:
		var list ItemsList
		if err := json.Unmarshal(body, &list); err != nil {
			return nil, FetchInvalidJSON, err
		}
		out, err := prettyJSON(list.Items)
		return out, FetchInvalidJSON, err

	case ModelProductList:
		var list ProductList
		if err := json.Unmarshal(body, &list); err != nil {
			return nil, FetchInvalidJSON, err
		}
		out, err := prettyJSON(list)
		return out, FetchInvalidJSON, err

	case ModelProxyData:
		pd, err := ParseProxyData(body)
		if err != nil {
			return nil, FetchInvalidJSON, err
		}
		return []byte(pd.Data), 0, nil

	default:
		return nil, FetchDecode, fmt.Errorf("unknown model %s", m)
	}
}

// prettyJSON encodes v with two-space indentation and without HTML escaping.
func prettyJSON(v any) ([]byte, error) {
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	enc.SetIndent("", "  ")
	if err := enc.Encode(v); err != nil {
		return nil, err
	}
	return bytes.TrimRight(buf.Bytes(), "\n"), nil
}
