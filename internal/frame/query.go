package frame

import (
	"errors"
	"fmt"
	"reflect"
	"regexp"

	"github.com/zclconf/go-cty/cty"
)

// Filter maps column or index level names to conditions. A condition is
// either a scalar (equality), a list (membership) or a map of operators to
// operands, which are AND-ed together.
type Filter map[string]any

// Supported comparison operators.
const (
	OpEq    = "eq"
	OpNe    = "ne"
	OpLe    = "le"
	OpLt    = "lt"
	OpGe    = "ge"
	OpGt    = "gt"
	OpIsIn  = "isin"
	OpRegex = "regex"
)

type comparison func(values []cty.Value, operand any) ([]bool, error)

var comparisonOperators = map[string]comparison{
	OpEq:    compareEq,
	OpNe:    compareNe,
	OpLe:    ordered(func(c int) bool { return c <= 0 }),
	OpLt:    ordered(func(c int) bool { return c < 0 }),
	OpGe:    ordered(func(c int) bool { return c >= 0 }),
	OpGt:    ordered(func(c int) bool { return c > 0 }),
	OpIsIn:  compareIsIn,
	OpRegex: compareRegex,
}

// Compare evaluates a condition against a column.
//
//   - a scalar selects the equal cells,
//   - a list selects the cells contained in it,
//   - a map of operators selects the cells satisfying all of them.
func Compare(values []cty.Value, condition any) ([]bool, error) {
	if ops, ok := asOperatorMap(condition); ok {
		if len(ops) == 0 {
			return nil, errors.New("empty filter")
		}
		var unsupported []string
		for _, op := range sortedKeys(ops) {
			if _, ok := comparisonOperators[op]; !ok {
				unsupported = append(unsupported, op)
			}
		}
		if len(unsupported) > 0 {
			return nil, fmt.Errorf("unsupported operator(s): %q", unsupported)
		}
		var masks [][]bool
		for _, op := range sortedKeys(ops) {
			mask, err := comparisonOperators[op](values, ops[op])
			if err != nil {
				return nil, fmt.Errorf("operator %s: %w", op, err)
			}
			masks = append(masks, mask)
		}
		return allOf(masks, len(values)), nil
	}
	if isListLike(condition) {
		return compareIsIn(values, condition)
	}
	return compareEq(values, condition)
}

// Query returns the rows matching any of the filters, where a filter matches
// a row when all of its conditions do. Empty filters are ignored; when no
// filter remains the frame is returned unchanged.
func Query(f *Frame, filters ...Filter) (*Frame, error) {
	mask, err := queryMask(f, filters)
	if err != nil {
		return nil, err
	}
	if mask == nil {
		return f, nil
	}
	return f.Filter(mask)
}

func queryMask(f *Frame, filters []Filter) ([]bool, error) {
	var orMasks [][]bool
	for _, filter := range filters {
		if len(filter) == 0 {
			continue
		}
		andMasks := make([][]bool, 0, len(filter))
		for _, key := range sortedKeys(filter) {
			values, ok := f.column(key)
			if !ok {
				return nil, fmt.Errorf("unknown key %q", key)
			}
			mask, err := Compare(values, filter[key])
			if err != nil {
				return nil, fmt.Errorf("key %q: %w", key, err)
			}
			andMasks = append(andMasks, mask)
		}
		orMasks = append(orMasks, allOf(andMasks, f.Len()))
	}
	if len(orMasks) == 0 {
		return nil, nil
	}
	return anyOf(orMasks, f.Len()), nil
}

func allOf(masks [][]bool, n int) []bool {
	if len(masks) == 1 {
		return masks[0]
	}
	out := make([]bool, n)
	for i := range out {
		out[i] = true
		for _, m := range masks {
			if !m[i] {
				out[i] = false
				break
			}
		}
	}
	return out
}

func anyOf(masks [][]bool, n int) []bool {
	if len(masks) == 1 {
		return masks[0]
	}
	out := make([]bool, n)
	for i := range out {
		for _, m := range masks {
			if m[i] {
				out[i] = true
				break
			}
		}
	}
	return out
}

func compareEq(values []cty.Value, operand any) ([]bool, error) {
	want, err := ValueOf(operand)
	if err != nil {
		return nil, err
	}
	out := make([]bool, len(values))
	for i, v := range values {
		out[i] = !v.IsNull() && valuesEqual(v, want)
	}
	return out, nil
}

func compareNe(values []cty.Value, operand any) ([]bool, error) {
	eq, err := compareEq(values, operand)
	if err != nil {
		return nil, err
	}
	for i := range eq {
		eq[i] = !eq[i]
	}
	return eq, nil
}

func ordered(accept func(int) bool) comparison {
	return func(values []cty.Value, operand any) ([]bool, error) {
		bound, err := ValueOf(operand)
		if err != nil {
			return nil, err
		}
		out := make([]bool, len(values))
		for i, v := range values {
			if v.IsNull() {
				continue
			}
			c, err := compareValues(v, bound)
			if err != nil {
				return nil, fmt.Errorf("row %d: %w", i, err)
			}
			out[i] = accept(c)
		}
		return out, nil
	}
}

func compareIsIn(values []cty.Value, operand any) ([]bool, error) {
	set, err := listOperand(operand)
	if err != nil {
		return nil, err
	}
	out := make([]bool, len(values))
	for i, v := range values {
		if v.IsNull() {
			continue
		}
		for _, candidate := range set {
			if valuesEqual(v, candidate) {
				out[i] = true
				break
			}
		}
	}
	return out, nil
}

func compareRegex(values []cty.Value, operand any) ([]bool, error) {
	v, err := ValueOf(operand)
	if err != nil {
		return nil, err
	}
	if !v.IsKnown() || v.IsNull() || v.Type() != cty.String {
		return nil, fmt.Errorf("regex operand must be a string, got %s", FormatValue(v))
	}
	re, err := regexp.Compile(v.AsString())
	if err != nil {
		return nil, err
	}
	out := make([]bool, len(values))
	for i, v := range values {
		if v.IsKnown() && !v.IsNull() && v.Type() == cty.String {
			out[i] = re.MatchString(v.AsString())
		}
	}
	return out, nil
}

// listOperand converts a list-like operand into its elements; a scalar
// becomes a single-element list.
func listOperand(operand any) ([]cty.Value, error) {
	v, err := ValueOf(operand)
	if err != nil {
		return nil, err
	}
	if elems, ok := elementsOf(v); ok {
		return elems, nil
	}
	return []cty.Value{v}, nil
}

func asOperatorMap(condition any) (map[string]any, bool) {
	switch c := condition.(type) {
	case map[string]any:
		return c, true
	case Filter:
		return c, true
	}
	return nil, false
}

func isListLike(v any) bool {
	if cv, ok := v.(cty.Value); ok {
		_, isList := elementsOf(cv)
		return isList
	}
	if v == nil {
		return false
	}
	switch reflect.TypeOf(v).Kind() {
	case reflect.Slice, reflect.Array:
		return true
	}
	return false
}

// FiltersFromCty converts a filter object, or a list of them, into filters.
// Object or map conditions become operator maps; other conditions are kept
// as cty values.
func FiltersFromCty(v cty.Value) ([]Filter, error) {
	if v.IsNull() {
		return nil, nil
	}
	if !v.IsWhollyKnown() {
		return nil, errors.New("filters are not wholly known")
	}
	if isObjectLike(v.Type()) {
		f, err := filterFromCty(v)
		if err != nil {
			return nil, err
		}
		return []Filter{f}, nil
	}
	elems, ok := elementsOf(v)
	if !ok {
		return nil, fmt.Errorf("filters must be an object or a list of objects, got %s", v.Type().FriendlyName())
	}
	filters := make([]Filter, 0, len(elems))
	for i, elem := range elems {
		if !isObjectLike(elem.Type()) {
			return nil, fmt.Errorf("filter %d must be an object, got %s", i, elem.Type().FriendlyName())
		}
		f, err := filterFromCty(elem)
		if err != nil {
			return nil, fmt.Errorf("filter %d: %w", i, err)
		}
		filters = append(filters, f)
	}
	return filters, nil
}

func filterFromCty(v cty.Value) (Filter, error) {
	f := Filter{}
	if v.IsNull() {
		return f, nil
	}
	for it := v.ElementIterator(); it.Next(); {
		k, cond := it.Element()
		if !isObjectLike(cond.Type()) || cond.IsNull() {
			f[k.AsString()] = cond
			continue
		}
		ops := map[string]any{}
		for opIt := cond.ElementIterator(); opIt.Next(); {
			op, operand := opIt.Element()
			ops[op.AsString()] = operand
		}
		f[k.AsString()] = ops
	}
	return f, nil
}

func isObjectLike(t cty.Type) bool {
	return t.IsObjectType() || t.IsMapType()
}
