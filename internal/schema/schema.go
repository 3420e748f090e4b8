// Package schema holds the target schema every ledger export is normalized into.
package schema

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"
)

// DataType is the declared type of a target attribute.
type DataType string

const (
	// TypeString attributes are copied without coercion.
	TypeString DataType = "string"
	// TypeDecimal attributes are coerced to exact decimal numbers.
	TypeDecimal DataType = "decimal"
	// TypeDateTime attributes are coerced to date/time values.
	TypeDateTime DataType = "datetime"
)

// Format selects the encoding of a schema definition document.
type Format string

const (
	FormatJSON Format = "json"
	FormatYAML Format = "yaml"
)

var (
	// ErrEmptyName is returned when an attribute has no name.
	ErrEmptyName = errors.New("attribute name is empty")
	// ErrDuplicateAttribute is returned when two attributes share a name.
	ErrDuplicateAttribute = errors.New("duplicate attribute name")
	// ErrNoAttributes is returned for a definition without attributes.
	ErrNoAttributes = errors.New("schema has no attributes")
)

// Attribute is one named, typed column of the target schema.
type Attribute struct {
	Name     string   `json:"name" yaml:"name"`
	DataType DataType `json:"dataType" yaml:"dataType"`
}

// TargetSchema is an ordered, read-only list of attributes. The order defines
// the column order of every normalized table.
type TargetSchema struct {
	attributes []Attribute
	index      map[string]int
}

// definition mirrors the static document: {"attributes": [...]}.
type definition struct {
	Attributes []Attribute `json:"attributes" yaml:"attributes"`
}

// New builds a schema from attrs, rejecting empty and duplicate names.
func New(attrs []Attribute) (*TargetSchema, error) {
	if len(attrs) == 0 {
		return nil, ErrNoAttributes
	}

	s := &TargetSchema{
		attributes: make([]Attribute, len(attrs)),
		index:      make(map[string]int, len(attrs)),
	}
	for i, a := range attrs {
		if strings.TrimSpace(a.Name) == "" {
			return nil, fmt.Errorf("attribute %d: %w", i, ErrEmptyName)
		}
		if _, dup := s.index[a.Name]; dup {
			return nil, fmt.Errorf("attribute %q: %w", a.Name, ErrDuplicateAttribute)
		}
		s.index[a.Name] = i
		s.attributes[i] = a
	}
	return s, nil
}

// Load reads a schema definition from path. Files ending in .yaml or .yml are
// decoded as YAML, everything else as JSON.
func Load(path string) (*TargetSchema, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("Load: read %q: %w", path, err)
	}

	format := FormatJSON
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		format = FormatYAML
	}

	s, err := Parse(data, format)
	if err != nil {
		return nil, fmt.Errorf("Load: %q: %w", path, err)
	}
	return s, nil
}

// Parse decodes a schema definition document.
func Parse(data []byte, format Format) (*TargetSchema, error) {
	var def definition
	switch format {
	case FormatYAML:
		if err := yaml.Unmarshal(data, &def); err != nil {
			return nil, fmt.Errorf("Parse: decode yaml: %w", err)
		}
	case FormatJSON:
		if err := json.Unmarshal(data, &def); err != nil {
			return nil, fmt.Errorf("Parse: decode json: %w", err)
		}
	default:
		return nil, fmt.Errorf("Parse: unsupported format %q", format)
	}
	return New(def.Attributes)
}

// Attributes returns a copy of the attributes in schema order.
func (s *TargetSchema) Attributes() []Attribute {
	out := make([]Attribute, len(s.attributes))
	copy(out, s.attributes)
	return out
}

// Names returns the attribute names in schema order.
func (s *TargetSchema) Names() []string {
	names := make([]string, len(s.attributes))
	for i, a := range s.attributes {
		names[i] = a.Name
	}
	return names
}

// Len returns the number of attributes.
func (s *TargetSchema) Len() int {
	return len(s.attributes)
}

// Lookup returns the attribute with the given name.
func (s *TargetSchema) Lookup(name string) (Attribute, bool) {
	i, ok := s.index[name]
	if !ok {
		return Attribute{}, false
	}
	return s.attributes[i], true
}

// Has reports whether name is a declared attribute.
func (s *TargetSchema) Has(name string) bool {
	_, ok := s.index[name]
	return ok
}

// MarshalJSON renders the schema as its definition document.
func (s *TargetSchema) MarshalJSON() ([]byte, error) {
	return json.Marshal(definition{Attributes: s.attributes})
}
