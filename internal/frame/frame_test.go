package frame

import (
	"bytes"
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/zclconf/go-cty/cty"
)

func ints(vs ...int) []cty.Value {
	out := make([]cty.Value, len(vs))
	for i, v := range vs {
		out[i] = cty.NumberIntVal(int64(v))
	}
	return out
}

func strs(vs ...string) []cty.Value {
	out := make([]cty.Value, len(vs))
	for i, v := range vs {
		out[i] = cty.StringVal(v)
	}
	return out
}

func assertCells(t *testing.T, want, got []cty.Value) {
	t.Helper()
	require.Len(t, got, len(want))
	for i := range want {
		assert.True(t, valuesEqual(want[i], got[i]), "cell %d: want %s, got %s", i, FormatValue(want[i]), FormatValue(got[i]))
	}
}

// sample returns a frame indexed by gid with a window and a value column.
func sample(t *testing.T) *Frame {
	t.Helper()
	f, err := New(
		Column{Name: "gid", Values: ints(0, 1, 2, 3)},
		Column{Name: "window", Values: strs("w1", "w1", "w2", "w2")},
		Column{Name: "value", Values: ints(10, 11, 12, 13)},
	)
	require.NoError(t, err)
	f, err = f.WithIndex("gid")
	require.NoError(t, err)
	return f
}

func TestNew(t *testing.T) {
	t.Run("valid columns", func(t *testing.T) {
		f := sample(t)
		assert.Equal(t, 4, f.Len())
		assert.Equal(t, 3, f.Width())
		assert.Equal(t, []string{"gid", "window", "value"}, f.Columns())
		assert.Equal(t, []string{"gid"}, f.IndexNames())
		assert.True(t, f.IsIndex("gid"))
		assert.False(t, f.IsIndex("window"))
	})

	t.Run("error cases", func(t *testing.T) {
		_, err := New(Column{Name: "", Values: ints(1)})
		assert.ErrorContains(t, err, "empty name")

		_, err = New(Column{Name: "a", Values: ints(1)}, Column{Name: "a", Values: ints(1)})
		assert.ErrorContains(t, err, "duplicate column")

		_, err = New(Column{Name: "a", Values: ints(1, 2)}, Column{Name: "b", Values: ints(1)})
		assert.ErrorContains(t, err, "has 1 rows, expected 2")
	})

	t.Run("values are copied", func(t *testing.T) {
		values := ints(1, 2)
		f := MustNew(Column{Name: "a", Values: values})
		values[0] = cty.NumberIntVal(99)
		got, _ := f.Column("a")
		assert.True(t, got[0].RawEquals(cty.NumberIntVal(1)))
	})

	t.Run("nil values become null", func(t *testing.T) {
		f := MustNew(Column{Name: "a", Values: []cty.Value{cty.NilVal}})
		got, _ := f.Column("a")
		assert.True(t, got[0].IsNull())
	})
}

func TestValueOf(t *testing.T) {
	v, err := ValueOf(math.NaN())
	require.NoError(t, err)
	assert.True(t, v.IsNull())
	assert.Equal(t, cty.Number, v.Type())

	v, err = ValueOf([]any{1, "a"})
	require.NoError(t, err)
	assert.True(t, v.Type().IsTupleType())

	v, err = ValueOf(map[string]int{"a": 1})
	require.NoError(t, err)
	assert.True(t, v.Type().IsObjectType())

	_, err = ValueOf(map[int]int{1: 1})
	assert.ErrorContains(t, err, "unsupported map key type")

	_, err = ValueOf(func() {})
	assert.ErrorContains(t, err, "unsupported value")
}

func TestTransformations(t *testing.T) {
	f := sample(t)

	t.Run("select keeps index levels that survive", func(t *testing.T) {
		s, err := f.Select("value", "gid")
		require.NoError(t, err)
		assert.Equal(t, []string{"value", "gid"}, s.Columns())
		assert.Equal(t, []string{"gid"}, s.IndexNames())

		s, err = f.Select("value")
		require.NoError(t, err)
		assert.Empty(t, s.IndexNames())

		_, err = f.Select("missing")
		assert.ErrorContains(t, err, "unknown column")
	})

	t.Run("drop", func(t *testing.T) {
		d, err := f.Drop("window")
		require.NoError(t, err)
		assert.Equal(t, []string{"gid", "value"}, d.Columns())
	})

	t.Run("rename follows index levels", func(t *testing.T) {
		r, err := f.Rename(map[string]string{"gid": "id"})
		require.NoError(t, err)
		assert.Equal(t, []string{"id", "window", "value"}, r.Columns())
		assert.Equal(t, []string{"id"}, r.IndexNames())

		_, err = f.Rename(map[string]string{"window": "value"})
		assert.ErrorContains(t, err, "duplicate column")
	})

	t.Run("filter and take", func(t *testing.T) {
		got, err := f.Filter([]bool{false, true, false, true})
		require.NoError(t, err)
		values, _ := got.Column("value")
		assertCells(t, ints(11, 13), values)

		_, err = f.Filter([]bool{true})
		assert.ErrorContains(t, err, "mask has 1 entries")

		taken := f.Take([]int{3, 0})
		values, _ = taken.Column("gid")
		assertCells(t, ints(3, 0), values)
	})

	t.Run("sort is stable and puts nulls last", func(t *testing.T) {
		g := MustNew(
			Column{Name: "k", Values: []cty.Value{cty.NumberIntVal(2), cty.NullVal(cty.Number), cty.NumberIntVal(1), cty.NumberIntVal(2)}},
			Column{Name: "v", Values: strs("a", "b", "c", "d")},
		)
		sorted, err := g.SortBy("k")
		require.NoError(t, err)
		values, _ := sorted.Column("v")
		assertCells(t, strs("c", "a", "d", "b"), values)

		_, err = g.SortBy("missing")
		assert.ErrorContains(t, err, "unknown column")
	})

	t.Run("with column replaces in place", func(t *testing.T) {
		w, err := f.WithColumn(Column{Name: "value", Values: ints(0, 0, 0, 0)})
		require.NoError(t, err)
		assert.Equal(t, f.Columns(), w.Columns())
		assert.Equal(t, []string{"gid"}, w.IndexNames())

		_, err = f.WithColumn(Column{Name: "x", Values: ints(0)})
		assert.ErrorContains(t, err, "expected 4")
	})
}

func TestEqual(t *testing.T) {
	a := sample(t)
	b := sample(t)
	assert.True(t, a.Equal(b))

	c, err := b.WithIndex()
	require.NoError(t, err)
	assert.False(t, a.Equal(c))

	d := MustNew(Column{Name: "x", Values: []cty.Value{cty.NumberFloatVal(1)}})
	e := MustNew(Column{Name: "x", Values: []cty.Value{cty.NumberIntVal(1)}})
	assert.True(t, d.Equal(e))
}

func TestFromCtyAndRecords(t *testing.T) {
	v := cty.ObjectVal(map[string]cty.Value{
		"window": cty.TupleVal(strs("w1", "w2")),
		"gid":    cty.ListVal(ints(0, 1)),
	})
	f, err := FromCty(v)
	require.NoError(t, err)
	assert.Equal(t, []string{"gid", "window"}, f.Columns())
	assert.Equal(t, 2, f.Len())

	_, err = FromCty(cty.StringVal("x"))
	assert.ErrorContains(t, err, "must be an object")

	r, err := FromRecords([]map[string]any{
		{"gid": 0, "window": "w1"},
		{"gid": 1},
	}, "gid", "window")
	require.NoError(t, err)
	windows, _ := r.Column("window")
	assert.True(t, windows[1].IsNull())

	back, err := FromCty(sample(t).ToCty())
	require.NoError(t, err)
	want, err := sample(t).Select("gid", "value", "window")
	require.NoError(t, err)
	want, err = want.WithIndex()
	require.NoError(t, err)
	assert.True(t, want.Equal(back))
}

func TestWriteFingerprint(t *testing.T) {
	var a, b bytes.Buffer
	require.NoError(t, sample(t).WriteFingerprint(&a))
	require.NoError(t, sample(t).WriteFingerprint(&b))
	assert.Equal(t, a.Bytes(), b.Bytes())

	other, err := sample(t).WithColumn(Column{Name: "value", Values: ints(10, 11, 12, 14)})
	require.NoError(t, err)
	var c bytes.Buffer
	require.NoError(t, other.WriteFingerprint(&c))
	assert.NotEqual(t, a.Bytes(), c.Bytes())

	unindexed, err := sample(t).WithIndex()
	require.NoError(t, err)
	var d bytes.Buffer
	require.NoError(t, unindexed.WriteFingerprint(&d))
	assert.NotEqual(t, a.Bytes(), d.Bytes())
}

func TestGroupBy(t *testing.T) {
	f := sample(t)
	groups, err := GroupBy(f, "window")
	require.NoError(t, err)
	require.Len(t, groups, 2)
	assert.True(t, groups[0].Key[0].RawEquals(cty.StringVal("w1")))
	assert.Equal(t, 2, groups[0].Frame.Len())
	assert.Equal(t, []string{"gid"}, groups[0].Frame.IndexNames())
	values, _ := groups[1].Frame.Column("value")
	assertCells(t, ints(12, 13), values)

	_, err = GroupBy(f, "missing")
	assert.ErrorContains(t, err, "unknown key")

	all, err := GroupBy(f)
	require.NoError(t, err)
	require.Len(t, all, 1)
	assert.Same(t, f, all[0].Frame)
}

func TestGroupByKeyEquality(t *testing.T) {
	t.Run("equal cells share a group", func(t *testing.T) {
		f := MustNew(
			Column{Name: "k", Values: []cty.Value{
				cty.NumberIntVal(1),
				cty.NullVal(cty.String),
				cty.NumberFloatVal(1.0),
				cty.NumberIntVal(0),
				cty.NullVal(cty.Number),
				cty.NumberFloatVal(math.Copysign(0, -1)),
				cty.StringVal("1"),
				cty.True,
			}},
			Column{Name: "row", Values: ints(0, 1, 2, 3, 4, 5, 6, 7)},
		)
		groups, err := GroupBy(f, "k")
		require.NoError(t, err)
		require.Len(t, groups, 5)
		want := [][]cty.Value{ints(0, 2), ints(1, 4), ints(3, 5), ints(6), ints(7)}
		for g, rows := range want {
			values, _ := groups[g].Frame.Column("row")
			assertCells(t, rows, values)
		}
	})

	t.Run("multiple keys in order of first appearance", func(t *testing.T) {
		const n = 5000
		a := make([]cty.Value, n)
		b := make([]cty.Value, n)
		for i := range a {
			a[i] = cty.NumberIntVal(int64((n - i) % 100))
			b[i] = cty.StringVal(string(rune('a' + i%3)))
		}
		f := MustNew(Column{Name: "a", Values: a}, Column{Name: "b", Values: b})
		groups, err := GroupBy(f, "a", "b")
		require.NoError(t, err)
		require.Len(t, groups, 300)
		total := 0
		for g, group := range groups {
			assert.True(t, group.Key[0].RawEquals(a[g]), "group %d", g)
			assert.True(t, group.Key[1].RawEquals(b[g]), "group %d", g)
			total += group.Frame.Len()
		}
		assert.Equal(t, n, total)
	})
}
