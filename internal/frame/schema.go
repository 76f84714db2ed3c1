package frame

import (
	"fmt"
	"slices"
	"strings"
)

// Kind is the semantic type expected for the cells of a field.
type Kind int

const (
	// Any accepts every value.
	Any Kind = iota
	// Integer accepts whole numbers.
	Integer
	// Float accepts any number.
	Float
	// String accepts strings.
	String
	// Bool accepts booleans.
	Bool
	// Categorical accepts strings from a fixed domain.
	Categorical
)

var kindNames = map[Kind]string{
	Any:         "any",
	Integer:     "integer",
	Float:       "float",
	String:      "string",
	Bool:        "bool",
	Categorical: "categorical",
}

func (k Kind) String() string {
	if s, ok := kindNames[k]; ok {
		return s
	}
	return fmt.Sprintf("Kind(%d)", int(k))
}

// ParseKind maps a type keyword to its Kind. "number" is accepted as an alias
// of "float".
func ParseKind(s string) (Kind, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "any":
		return Any, nil
	case "integer", "int":
		return Integer, nil
	case "float", "number":
		return Float, nil
	case "string":
		return String, nil
	case "bool":
		return Bool, nil
	case "categorical":
		return Categorical, nil
	}
	return Any, fmt.Errorf("unknown field type %q", s)
}

// Field declares one column of a schema.
type Field struct {
	Name string
	Kind Kind
	// Categories is the allowed domain of a Categorical field. An empty
	// domain accepts any string.
	Categories []string
	// Index requires the column to be an index level.
	Index bool
	// Nullable allows null cells.
	Nullable bool
}

// Schema is an ordered list of field declarations. A strict schema rejects
// columns it does not declare.
type Schema struct {
	Fields []Field
	Strict bool
}

// NewSchema returns a non-strict schema with the given fields.
func NewSchema(fields ...Field) *Schema {
	return &Schema{Fields: fields}
}

// Field returns the declaration of the named field.
func (s *Schema) Field(name string) (Field, bool) {
	for _, f := range s.Fields {
		if f.Name == name {
			return f, true
		}
	}
	return Field{}, false
}

// Names returns the declared field names in order.
func (s *Schema) Names() []string {
	names := make([]string, len(s.Fields))
	for i, f := range s.Fields {
		names[i] = f.Name
	}
	return names
}

// IndexNames returns the names of the fields declared as index levels.
func (s *Schema) IndexNames() []string {
	var names []string
	for _, f := range s.Fields {
		if f.Index {
			names = append(names, f.Name)
		}
	}
	return names
}

// check verifies the declarations themselves.
func (s *Schema) check() error {
	seen := make(map[string]bool, len(s.Fields))
	for i, f := range s.Fields {
		if f.Name == "" {
			return fmt.Errorf("schema field %d has an empty name", i)
		}
		if seen[f.Name] {
			return fmt.Errorf("schema declares field %q twice", f.Name)
		}
		seen[f.Name] = true
		if f.Kind != Categorical && len(f.Categories) > 0 {
			return fmt.Errorf("schema field %q declares categories but is %s", f.Name, f.Kind)
		}
	}
	return nil
}

func (f Field) allows(category string) bool {
	return len(f.Categories) == 0 || slices.Contains(f.Categories, category)
}
