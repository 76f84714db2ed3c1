package frame

import (
	"fmt"
	"slices"

	"github.com/zclconf/go-cty/cty"
)

// Concat stacks frames vertically. Columns and index levels are aligned by
// name, so frames whose levels are declared in a different order still
// concatenate correctly; the first frame decides the resulting order. Empty
// frames are skipped unless all of them are empty.
func Concat(frames ...*Frame) (*Frame, error) {
	if len(frames) == 0 {
		return Empty(), nil
	}
	parts := nonEmpty(frames)
	first := parts[0]
	names := first.Columns()
	total := 0
	for i, f := range parts {
		if err := sameShape(first, f); err != nil {
			return nil, fmt.Errorf("frame %d: %w", i, err)
		}
		total += f.rows
	}

	cols := make([]Column, len(names))
	for i, name := range names {
		values := make([]cty.Value, 0, total)
		for _, f := range parts {
			part, _ := f.column(name)
			values = append(values, part...)
		}
		cols[i] = Column{Name: name, Values: values}
	}
	out, err := New(cols...)
	if err != nil {
		return nil, err
	}
	return out.WithIndex(first.index...)
}

// ConcatKeyed concatenates frames like Concat and prepends a new outermost
// index level named level, holding keys[i] for the rows of frames[i].
func ConcatKeyed(level string, keys []cty.Value, frames []*Frame) (*Frame, error) {
	if len(keys) != len(frames) {
		return nil, fmt.Errorf("got %d keys for %d frames", len(keys), len(frames))
	}
	keyed := make([]*Frame, len(frames))
	for i, f := range frames {
		if f.HasColumn(level) {
			return nil, fmt.Errorf("frame %d already has a column %q", i, level)
		}
		values := make([]cty.Value, f.rows)
		for j := range values {
			values[j] = keys[i]
		}
		cols := append([]Column{{Name: level, Values: values}}, f.columns...)
		nf, err := New(cols...)
		if err != nil {
			return nil, err
		}
		if keyed[i], err = nf.WithIndex(append([]string{level}, f.index...)...); err != nil {
			return nil, err
		}
	}
	return Concat(keyed...)
}

// ConcatTuples builds a frame from (value, conditions) pairs: every pair
// becomes one row whose index levels are the condition keys, in the order
// given by levels, and whose valueColumn holds the value.
func ConcatTuples(valueColumn string, levels []string, tuples []Tuple) (*Frame, error) {
	cols := make([]Column, 0, len(levels)+1)
	for _, level := range levels {
		values := make([]cty.Value, len(tuples))
		for i, t := range tuples {
			if len(t.Conditions) != len(levels) {
				return nil, fmt.Errorf("tuple %d has %d conditions, expected %d", i, len(t.Conditions), len(levels))
			}
			raw, ok := t.Conditions[level]
			if !ok {
				return nil, fmt.Errorf("tuple %d has no condition %q", i, level)
			}
			v, err := ValueOf(raw)
			if err != nil {
				return nil, fmt.Errorf("tuple %d, condition %q: %w", i, level, err)
			}
			values[i] = v
		}
		cols = append(cols, Column{Name: level, Values: values})
	}
	values := make([]cty.Value, len(tuples))
	for i, t := range tuples {
		v, err := ValueOf(t.Value)
		if err != nil {
			return nil, fmt.Errorf("tuple %d: %w", i, err)
		}
		values[i] = v
	}
	cols = append(cols, Column{Name: valueColumn, Values: values})
	f, err := New(cols...)
	if err != nil {
		return nil, err
	}
	return f.WithIndex(levels...)
}

// Tuple is a single value with the conditions that identify it.
type Tuple struct {
	Value      any
	Conditions map[string]any
}

func nonEmpty(frames []*Frame) []*Frame {
	var out []*Frame
	for _, f := range frames {
		if !f.IsEmpty() {
			out = append(out, f)
		}
	}
	if len(out) == 0 {
		return frames
	}
	return out
}

func sameShape(want, got *Frame) error {
	wc, gc := want.Columns(), got.Columns()
	slices.Sort(wc)
	slices.Sort(gc)
	if !slices.Equal(wc, gc) {
		return fmt.Errorf("columns %v do not match %v", got.Columns(), want.Columns())
	}
	wi, gi := want.IndexNames(), got.IndexNames()
	slices.Sort(wi)
	slices.Sort(gi)
	if !slices.Equal(wi, gi) {
		return fmt.Errorf("index levels %v do not match %v", got.IndexNames(), want.IndexNames())
	}
	return nil
}
