package frame

import (
	"errors"
	"fmt"
	"slices"

	"github.com/zclconf/go-cty/cty"
	"github.com/zclconf/go-cty/cty/convert"
)

// Validate checks a frame against a schema. It never stops at the first
// problem: the returned *SchemaMismatchError lists every offending field,
// with at most one violation of each kind per field. A nil schema accepts
// every frame. On success the frame is returned unchanged.
func Validate(f *Frame, s *Schema) (*Frame, error) {
	if s == nil {
		return f, nil
	}
	if err := s.check(); err != nil {
		return nil, err
	}

	var violations []Violation
	for _, field := range s.Fields {
		values, ok := f.column(field.Name)
		if !ok {
			violations = append(violations, Violation{Field: field.Name, Kind: MissingField, Row: -1})
			continue
		}
		if field.Index && !f.IsIndex(field.Name) {
			violations = append(violations, Violation{Field: field.Name, Kind: NotIndex, Row: -1})
		}
		violations = append(violations, checkCells(field, values)...)
	}
	if s.Strict {
		for _, name := range f.Columns() {
			if _, ok := s.Field(name); !ok {
				violations = append(violations, Violation{Field: name, Kind: UnexpectedField, Row: -1})
			}
		}
	}

	if len(violations) > 0 {
		return nil, &SchemaMismatchError{Violations: violations}
	}
	return f, nil
}

func checkCells(field Field, values []cty.Value) []Violation {
	var out []Violation
	reported := map[ViolationKind]bool{}
	for row, v := range values {
		kind, detail, bad := checkValue(field, v)
		if !bad || reported[kind] {
			continue
		}
		reported[kind] = true
		out = append(out, Violation{Field: field.Name, Kind: kind, Row: row, Detail: detail})
	}
	return out
}

func checkValue(field Field, v cty.Value) (ViolationKind, string, bool) {
	if !v.IsKnown() {
		return WrongType, "value is unknown", true
	}
	if v.IsNull() {
		if field.Nullable {
			return 0, "", false
		}
		return NullValue, "", true
	}

	ty := v.Type()
	wrong := func() (ViolationKind, string, bool) {
		return WrongType, fmt.Sprintf("expected %s, got %s", field.Kind, ty.FriendlyName()), true
	}
	switch field.Kind {
	case Integer:
		if ty != cty.Number {
			return wrong()
		}
		if !v.AsBigFloat().IsInt() {
			return WrongType, fmt.Sprintf("expected integer, got %s", FormatValue(v)), true
		}
	case Float:
		if ty != cty.Number {
			return wrong()
		}
	case String:
		if ty != cty.String {
			return wrong()
		}
	case Bool:
		if ty != cty.Bool {
			return wrong()
		}
	case Categorical:
		if ty != cty.String {
			return wrong()
		}
		if !field.allows(v.AsString()) {
			return OutOfDomain, fmt.Sprintf("%s not in %q", FormatValue(v), field.Categories), true
		}
	}
	return 0, "", false
}

// Coerce converts the declared columns of a frame to their schema kinds
// without losing information, marks the declared index levels and then
// validates the result. Strings holding numbers or booleans, and numbers
// used as strings, are converted; a number with a fractional part is never
// turned into an integer. The first lossy cell aborts with a *CoercionError.
func Coerce(f *Frame, s *Schema) (*Frame, error) {
	if s == nil {
		return f, nil
	}
	if err := s.check(); err != nil {
		return nil, err
	}

	out := f
	for _, field := range s.Fields {
		values, ok := f.column(field.Name)
		if !ok || field.Kind == Any {
			continue
		}
		converted := make([]cty.Value, len(values))
		for row, v := range values {
			cv, err := coerceValue(field.Kind, v)
			if err != nil {
				return nil, &CoercionError{Field: field.Name, Row: row, Value: v, Target: field.Kind, Err: err}
			}
			converted[row] = cv
		}
		var err error
		out, err = out.WithColumn(Column{Name: field.Name, Values: converted})
		if err != nil {
			return nil, err
		}
	}

	if declared := s.IndexNames(); len(declared) > 0 {
		var levels []string
		for _, name := range declared {
			if out.HasColumn(name) {
				levels = append(levels, name)
			}
		}
		for _, name := range out.index {
			if !slices.Contains(levels, name) {
				levels = append(levels, name)
			}
		}
		var err error
		if out, err = out.WithIndex(levels...); err != nil {
			return nil, err
		}
	}

	return Validate(out, s)
}

func coerceValue(kind Kind, v cty.Value) (cty.Value, error) {
	if !v.IsKnown() {
		return v, nil
	}
	var target cty.Type
	switch kind {
	case Integer, Float:
		target = cty.Number
	case String, Categorical:
		target = cty.String
	case Bool:
		target = cty.Bool
	default:
		return v, nil
	}
	if v.IsNull() {
		return cty.NullVal(target), nil
	}
	cv, err := convert.Convert(v, target)
	if err != nil {
		return cty.NilVal, err
	}
	if kind == Integer && !cv.AsBigFloat().IsInt() {
		return cty.NilVal, errors.New("value has a fractional part")
	}
	return cv, nil
}
