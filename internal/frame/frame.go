package frame

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"slices"
	"sort"

	"github.com/zclconf/go-cty/cty"
	ctyjson "github.com/zclconf/go-cty/cty/json"
)

// Column is a named sequence of cells.
type Column struct {
	Name   string
	Values []cty.Value
}

// Frame is an immutable table of equally sized columns. Some columns may be
// flagged as index levels; they still behave as regular columns for lookups.
type Frame struct {
	columns []Column
	pos     map[string]int
	index   []string
	rows    int
}

// New builds a frame from the given columns. Column names must be unique and
// non-empty and every column must have the same length. The values are
// copied, so the caller may reuse the slices afterwards.
func New(cols ...Column) (*Frame, error) {
	f := &Frame{
		columns: make([]Column, 0, len(cols)),
		pos:     make(map[string]int, len(cols)),
	}
	for i, c := range cols {
		if c.Name == "" {
			return nil, fmt.Errorf("column %d has an empty name", i)
		}
		if _, dup := f.pos[c.Name]; dup {
			return nil, fmt.Errorf("duplicate column %q", c.Name)
		}
		if i == 0 {
			f.rows = len(c.Values)
		} else if len(c.Values) != f.rows {
			return nil, fmt.Errorf("column %q has %d rows, expected %d", c.Name, len(c.Values), f.rows)
		}
		values := make([]cty.Value, len(c.Values))
		for j, v := range c.Values {
			if v.Type() == cty.NilType {
				v = cty.NullVal(cty.DynamicPseudoType)
			}
			values[j] = v
		}
		f.pos[c.Name] = len(f.columns)
		f.columns = append(f.columns, Column{Name: c.Name, Values: values})
	}
	return f, nil
}

// MustNew is like New but panics on error. It is meant for tests and static
// fixtures.
func MustNew(cols ...Column) *Frame {
	f, err := New(cols...)
	if err != nil {
		panic(err)
	}
	return f
}

// Empty returns a frame without columns or rows.
func Empty() *Frame {
	return &Frame{pos: map[string]int{}}
}

// Len returns the number of rows.
func (f *Frame) Len() int { return f.rows }

// Width returns the number of columns.
func (f *Frame) Width() int { return len(f.columns) }

// IsEmpty reports whether the frame has no rows.
func (f *Frame) IsEmpty() bool { return f.rows == 0 }

// Columns returns the column names in order.
func (f *Frame) Columns() []string {
	names := make([]string, len(f.columns))
	for i, c := range f.columns {
		names[i] = c.Name
	}
	return names
}

// IndexNames returns the names of the index levels in order.
func (f *Frame) IndexNames() []string {
	return slices.Clone(f.index)
}

// HasColumn reports whether a column exists.
func (f *Frame) HasColumn(name string) bool {
	_, ok := f.pos[name]
	return ok
}

// IsIndex reports whether the column is an index level.
func (f *Frame) IsIndex(name string) bool {
	return slices.Contains(f.index, name)
}

// Column returns a copy of the values of the named column.
func (f *Frame) Column(name string) ([]cty.Value, bool) {
	i, ok := f.pos[name]
	if !ok {
		return nil, false
	}
	return slices.Clone(f.columns[i].Values), true
}

// column returns the shared values slice; callers must not modify it.
func (f *Frame) column(name string) ([]cty.Value, bool) {
	i, ok := f.pos[name]
	if !ok {
		return nil, false
	}
	return f.columns[i].Values, true
}

// Row returns the cells of row i keyed by column name.
func (f *Frame) Row(i int) map[string]cty.Value {
	row := make(map[string]cty.Value, len(f.columns))
	for _, c := range f.columns {
		row[c.Name] = c.Values[i]
	}
	return row
}

// WithIndex returns a copy of the frame whose index levels are the given
// columns, in the given order.
func (f *Frame) WithIndex(names ...string) (*Frame, error) {
	seen := make(map[string]bool, len(names))
	for _, n := range names {
		if !f.HasColumn(n) {
			return nil, fmt.Errorf("index level %q is not a column", n)
		}
		if seen[n] {
			return nil, fmt.Errorf("duplicate index level %q", n)
		}
		seen[n] = true
	}
	out := f.shallowCopy()
	out.index = slices.Clone(names)
	return out, nil
}

// Select returns a frame with only the named columns, in the given order.
func (f *Frame) Select(names ...string) (*Frame, error) {
	cols := make([]Column, 0, len(names))
	for _, n := range names {
		values, ok := f.column(n)
		if !ok {
			return nil, fmt.Errorf("unknown column %q", n)
		}
		cols = append(cols, Column{Name: n, Values: values})
	}
	out, err := New(cols...)
	if err != nil {
		return nil, err
	}
	if len(cols) == 0 {
		out.rows = f.rows
	}
	for _, idx := range f.index {
		if out.HasColumn(idx) {
			out.index = append(out.index, idx)
		}
	}
	return out, nil
}

// Drop returns a frame without the named columns.
func (f *Frame) Drop(names ...string) (*Frame, error) {
	for _, n := range names {
		if !f.HasColumn(n) {
			return nil, fmt.Errorf("unknown column %q", n)
		}
	}
	keep := make([]string, 0, len(f.columns))
	for _, c := range f.columns {
		if !slices.Contains(names, c.Name) {
			keep = append(keep, c.Name)
		}
	}
	return f.Select(keep...)
}

// Rename returns a frame with columns renamed according to mapping.
func (f *Frame) Rename(mapping map[string]string) (*Frame, error) {
	for from := range mapping {
		if !f.HasColumn(from) {
			return nil, fmt.Errorf("unknown column %q", from)
		}
	}
	rename := func(n string) string {
		if to, ok := mapping[n]; ok {
			return to
		}
		return n
	}
	cols := make([]Column, len(f.columns))
	for i, c := range f.columns {
		cols[i] = Column{Name: rename(c.Name), Values: c.Values}
	}
	out, err := New(cols...)
	if err != nil {
		return nil, err
	}
	out.rows = f.rows
	for _, idx := range f.index {
		out.index = append(out.index, rename(idx))
	}
	return out, nil
}

// WithColumn returns a frame with the column added, or replaced when a column
// with the same name exists.
func (f *Frame) WithColumn(c Column) (*Frame, error) {
	if len(f.columns) > 0 && len(c.Values) != f.rows {
		return nil, fmt.Errorf("column %q has %d rows, expected %d", c.Name, len(c.Values), f.rows)
	}
	cols := slices.Clone(f.columns)
	if i, ok := f.pos[c.Name]; ok {
		cols[i] = c
	} else {
		cols = append(cols, c)
	}
	out, err := New(cols...)
	if err != nil {
		return nil, err
	}
	out.index = slices.Clone(f.index)
	return out, nil
}

// Take returns the rows at the given positions, in the given order.
func (f *Frame) Take(rows []int) *Frame {
	out := f.shallowCopy()
	out.columns = make([]Column, len(f.columns))
	for i, c := range f.columns {
		values := make([]cty.Value, len(rows))
		for j, r := range rows {
			values[j] = c.Values[r]
		}
		out.columns[i] = Column{Name: c.Name, Values: values}
	}
	out.rows = len(rows)
	return out
}

// Filter returns the rows whose mask entry is true.
func (f *Frame) Filter(mask []bool) (*Frame, error) {
	if len(mask) != f.rows {
		return nil, fmt.Errorf("mask has %d entries, frame has %d rows", len(mask), f.rows)
	}
	rows := make([]int, 0, len(mask))
	for i, keep := range mask {
		if keep {
			rows = append(rows, i)
		}
	}
	return f.Take(rows), nil
}

// SortBy returns the frame stably sorted by the given columns in ascending
// order. Nulls sort last.
func (f *Frame) SortBy(names ...string) (*Frame, error) {
	keys := make([][]cty.Value, len(names))
	for i, n := range names {
		values, ok := f.column(n)
		if !ok {
			return nil, fmt.Errorf("unknown column %q", n)
		}
		keys[i] = values
	}
	order := make([]int, f.rows)
	for i := range order {
		order[i] = i
	}
	var sortErr error
	sort.SliceStable(order, func(a, b int) bool {
		for _, col := range keys {
			va, vb := col[order[a]], col[order[b]]
			switch {
			case va.IsNull() && vb.IsNull():
				continue
			case va.IsNull():
				return false
			case vb.IsNull():
				return true
			}
			c, err := compareValues(va, vb)
			if err != nil {
				if sortErr == nil {
					sortErr = err
				}
				return false
			}
			if c != 0 {
				return c < 0
			}
		}
		return false
	})
	if sortErr != nil {
		return nil, sortErr
	}
	return f.Take(order), nil
}

// Equal reports whether two frames have the same columns, index levels and
// cells.
func (f *Frame) Equal(o *Frame) bool {
	if f == nil || o == nil {
		return f == o
	}
	if f.rows != o.rows || len(f.columns) != len(o.columns) || !slices.Equal(f.index, o.index) {
		return false
	}
	for i, c := range f.columns {
		oc := o.columns[i]
		if c.Name != oc.Name {
			return false
		}
		for j := range c.Values {
			if !valuesEqual(c.Values[j], oc.Values[j]) {
				return false
			}
		}
	}
	return true
}

// ToCty returns the frame as an object mapping column names to tuples.
func (f *Frame) ToCty() cty.Value {
	if len(f.columns) == 0 {
		return cty.EmptyObjectVal
	}
	attrs := make(map[string]cty.Value, len(f.columns))
	for _, c := range f.columns {
		attrs[c.Name] = tupleOf(c.Values)
	}
	return cty.ObjectVal(attrs)
}

// Records returns the rows as a slice of maps.
func (f *Frame) Records() []map[string]cty.Value {
	out := make([]map[string]cty.Value, f.rows)
	for i := range out {
		out[i] = f.Row(i)
	}
	return out
}

// FromCty builds a frame from an object or map whose attributes are lists,
// tuples or sets of equal length, as produced by an HCL expression such as
// { gid = [1, 2], window = ["w1", "w2"] }. Columns are ordered by name.
func FromCty(v cty.Value) (*Frame, error) {
	if v.IsNull() {
		return Empty(), nil
	}
	if !v.IsWhollyKnown() {
		return nil, errors.New("frame data must be wholly known")
	}
	ty := v.Type()
	if !ty.IsObjectType() && !ty.IsMapType() {
		return nil, fmt.Errorf("frame data must be an object of columns, got %s", ty.FriendlyName())
	}
	attrs := v.AsValueMap()
	cols := make([]Column, 0, len(attrs))
	for _, name := range sortedKeys(attrs) {
		values, ok := elementsOf(attrs[name])
		if !ok {
			return nil, fmt.Errorf("column %q must be a list, got %s", name, attrs[name].Type().FriendlyName())
		}
		cols = append(cols, Column{Name: name, Values: values})
	}
	return New(cols...)
}

// FromRecords builds a frame from row maps. Columns follow the given order;
// when no order is given, they are sorted by name. Missing cells are null.
func FromRecords(records []map[string]any, columns ...string) (*Frame, error) {
	if len(columns) == 0 {
		seen := map[string]bool{}
		for _, r := range records {
			for k := range r {
				seen[k] = true
			}
		}
		columns = sortedKeys(seen)
	}
	cols := make([]Column, len(columns))
	for i, name := range columns {
		values := make([]cty.Value, len(records))
		for j, r := range records {
			v, err := ValueOf(r[name])
			if err != nil {
				return nil, fmt.Errorf("row %d, column %q: %w", j, name, err)
			}
			values[j] = v
		}
		cols[i] = Column{Name: name, Values: values}
	}
	return New(cols...)
}

// WriteFingerprint writes a canonical encoding of the frame content. Two
// frames with equal columns, index levels and cells write identical bytes.
func (f *Frame) WriteFingerprint(w io.Writer) error {
	header, err := json.Marshal(struct {
		Columns []string `json:"columns"`
		Index   []string `json:"index"`
		Rows    int      `json:"rows"`
	}{f.Columns(), f.IndexNames(), f.rows})
	if err != nil {
		return err
	}
	if _, err := w.Write(header); err != nil {
		return err
	}
	for _, c := range f.columns {
		data, err := ctyjson.Marshal(tupleOf(c.Values), cty.DynamicPseudoType)
		if err != nil {
			return fmt.Errorf("column %q: %w", c.Name, err)
		}
		if _, err := w.Write(data); err != nil {
			return err
		}
	}
	return nil
}

// String renders a short description, mainly for logs.
func (f *Frame) String() string {
	return fmt.Sprintf("Frame(rows=%d, columns=%v, index=%v)", f.rows, f.Columns(), f.index)
}

func (f *Frame) shallowCopy() *Frame {
	return &Frame{
		columns: f.columns,
		pos:     f.pos,
		index:   slices.Clone(f.index),
		rows:    f.rows,
	}
}
