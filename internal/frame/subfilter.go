package frame

import (
	"fmt"
	"log/slog"
	"sort"

	"github.com/zclconf/go-cty/cty"
)

// normalizedCondition is a condition rewritten as a map of operators, where
// equality has been folded into membership.
type normalizedCondition map[string]cty.Value

// IsSubfilter reports whether left selects a subset of what right selects.
//
// When strict is false, left is a subfilter of right if it is equal or more
// specific. When strict is true, left must be more specific. Both filters use
// the same condition syntax as Query.
func IsSubfilter(left, right Filter, strict bool) (bool, error) {
	difference := make(map[string]bool, len(left))
	for key := range left {
		difference[key] = true
	}
	for _, key := range sortedKeys(right) {
		lv, ok := left[key]
		if !ok {
			return false, nil
		}
		dl, err := normalizeCondition(lv)
		if err != nil {
			return false, fmt.Errorf("left %q: %w", key, err)
		}
		dr, err := normalizeCondition(right[key])
		if err != nil {
			return false, fmt.Errorf("right %q: %w", key, err)
		}
		if strict && dl.equal(dr) {
			delete(difference, key)
			continue
		}
		sub, err := isSubCondition(dl, dr)
		if err != nil {
			return false, fmt.Errorf("key %q: %w", key, err)
		}
		if !sub {
			return false, nil
		}
	}
	return !strict || len(difference) > 0, nil
}

func normalizeCondition(condition any) (normalizedCondition, error) {
	if ops, ok := asOperatorMap(condition); ok {
		out := make(normalizedCondition, len(ops))
		for op, operand := range ops {
			v, err := ValueOf(operand)
			if err != nil {
				return nil, err
			}
			out[op] = v
		}
		if eq, ok := out[OpEq]; ok {
			delete(out, OpEq)
			isin, hasIsIn := out[OpIsIn]
			switch {
			case !hasIsIn:
				out[OpIsIn] = cty.TupleVal([]cty.Value{eq})
			case containsValue(isin, eq):
				out[OpIsIn] = cty.TupleVal([]cty.Value{eq})
			default:
				out[OpIsIn] = cty.EmptyTupleVal
			}
		}
		if isin, ok := out[OpIsIn]; ok {
			if _, isList := elementsOf(isin); !isList {
				out[OpIsIn] = cty.TupleVal([]cty.Value{isin})
			}
		}
		return out, nil
	}
	if isListLike(condition) {
		v, err := ValueOf(condition)
		if err != nil {
			return nil, err
		}
		return normalizedCondition{OpIsIn: v}, nil
	}
	v, err := ValueOf(condition)
	if err != nil {
		return nil, err
	}
	return normalizedCondition{OpIsIn: cty.TupleVal([]cty.Value{v})}, nil
}

func (c normalizedCondition) equal(o normalizedCondition) bool {
	if len(c) != len(o) {
		return false
	}
	for op, v := range c {
		ov, ok := o[op]
		if !ok {
			return false
		}
		if op == OpIsIn {
			a, _ := elementsOf(v)
			b, _ := elementsOf(ov)
			if len(a) != len(b) {
				return false
			}
			for i := range a {
				if !valuesEqual(a[i], b[i]) {
					return false
				}
			}
			continue
		}
		if !valuesEqual(v, ov) {
			return false
		}
	}
	return true
}

// subConditionRules maps each operator to the relation that must hold between
// the left and right operands for left to be at least as specific as right.
var subConditionRules = map[string]func(l, r cty.Value) (bool, error){
	OpNe: func(l, r cty.Value) (bool, error) { return valuesEqual(l, r), nil },
	OpLe: orderedRule(func(c int) bool { return c <= 0 }),
	OpLt: orderedRule(func(c int) bool { return c <= 0 }),
	OpGe: orderedRule(func(c int) bool { return c >= 0 }),
	OpGt: orderedRule(func(c int) bool { return c >= 0 }),
	OpIsIn: func(l, r cty.Value) (bool, error) {
		elems, _ := elementsOf(l)
		for _, e := range elems {
			if !containsValue(r, e) {
				return false, nil
			}
		}
		return true, nil
	},
}

func orderedRule(accept func(int) bool) func(l, r cty.Value) (bool, error) {
	return func(l, r cty.Value) (bool, error) {
		c, err := compareValues(l, r)
		if err != nil {
			return false, err
		}
		return accept(c), nil
	}
}

func isSubCondition(left, right normalizedCondition) (bool, error) {
	for _, d := range []normalizedCondition{left, right} {
		for op := range d {
			if _, ok := subConditionRules[op]; !ok {
				return false, fmt.Errorf("invalid operator %q", op)
			}
		}
	}
	var unmatched []string
	for op, rule := range subConditionRules {
		rv, inRight := right[op]
		if !inRight {
			continue
		}
		lv, inLeft := left[op]
		if !inLeft {
			unmatched = append(unmatched, op)
			continue
		}
		ok, err := rule(lv, rv)
		if err != nil {
			return false, err
		}
		if !ok {
			unmatched = append(unmatched, op)
		}
	}
	sort.Strings(unmatched)
	slog.Debug("Compared sub-conditions.", "unmatched", unmatched)
	return len(unmatched) == 0, nil
}

func containsValue(list, v cty.Value) bool {
	elems, ok := elementsOf(list)
	if !ok {
		return valuesEqual(list, v)
	}
	for _, e := range elems {
		if valuesEqual(e, v) {
			return true
		}
	}
	return false
}
