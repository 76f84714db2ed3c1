package frame

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/zclconf/go-cty/cty"
)

func expectedMask(n int, trueIndices ...int) []bool {
	mask := make([]bool, n)
	for _, i := range trueIndices {
		mask[i] = true
	}
	return mask
}

func TestCompareInt(t *testing.T) {
	values := ints(0, 10, 11, 12, 20, 21, 10, 2)
	testCases := []struct {
		name      string
		condition any
		want      []int
	}{
		{"scalar", 10, []int{1, 6}},
		{"scalar no match", -1, nil},
		{"list", []int{11, 20}, []int{2, 4}},
		{"eq", map[string]any{"eq": 10}, []int{1, 6}},
		{"ne", map[string]any{"ne": 10}, []int{0, 2, 3, 4, 5, 7}},
		{"le", map[string]any{"le": 10}, []int{0, 1, 6, 7}},
		{"lt", map[string]any{"lt": 10}, []int{0, 7}},
		{"ge", map[string]any{"ge": 10}, []int{1, 2, 3, 4, 5, 6}},
		{"gt", map[string]any{"gt": 10}, []int{2, 3, 4, 5}},
		{"range", map[string]any{"ge": 10, "lt": 12}, []int{1, 2, 6}},
		{"isin", map[string]any{"isin": []int{11, 20}}, []int{2, 4}},
	}
	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			got, err := Compare(values, tc.condition)
			require.NoError(t, err)
			assert.Equal(t, expectedMask(len(values), tc.want...), got)
		})
	}
}

func TestCompareString(t *testing.T) {
	values := strs("s0", "s10", "s11", "s12", "s20", "s21", "s10", "s2")
	testCases := []struct {
		name      string
		condition any
		want      []int
	}{
		{"scalar", "s10", []int{1, 6}},
		{"scalar no match", "s-1", nil},
		{"list", []string{"s11", "s20"}, []int{2, 4}},
		{"eq", map[string]any{"eq": "s10"}, []int{1, 6}},
		{"ne", map[string]any{"ne": "s10"}, []int{0, 2, 3, 4, 5, 7}},
		{"le", map[string]any{"le": "s10"}, []int{0, 1, 6}},
		{"lt", map[string]any{"lt": "s10"}, []int{0}},
		{"ge", map[string]any{"ge": "s10"}, []int{1, 2, 3, 4, 5, 6, 7}},
		{"gt", map[string]any{"gt": "s10"}, []int{2, 3, 4, 5, 7}},
		{"range", map[string]any{"ge": "s10", "lt": "s12"}, []int{1, 2, 6}},
		{"isin", map[string]any{"isin": []string{"s11", "s20"}}, []int{2, 4}},
		{"regex", map[string]any{"regex": "10"}, []int{1, 6}},
		{"regex anchored no match", map[string]any{"regex": "^10"}, nil},
		{"regex prefix", map[string]any{"regex": "s2"}, []int{4, 5, 7}},
		{"regex anchored", map[string]any{"regex": "^s2"}, []int{4, 5, 7}},
	}
	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			got, err := Compare(values, tc.condition)
			require.NoError(t, err)
			assert.Equal(t, expectedMask(len(values), tc.want...), got)
		})
	}
}

func TestCompareErrors(t *testing.T) {
	values := ints(0, 10, 11)

	_, err := Compare(values, map[string]any{"unknown": 10})
	assert.ErrorContains(t, err, "unsupported operator(s)")
	assert.ErrorContains(t, err, "unknown")

	_, err = Compare(values, map[string]any{})
	assert.ErrorContains(t, err, "empty filter")

	_, err = Compare(values, map[string]any{"lt": "a"})
	assert.ErrorContains(t, err, "cannot compare")

	_, err = Compare(values, map[string]any{"regex": 1})
	assert.ErrorContains(t, err, "must be a string")
}

func TestCompareSkipsNulls(t *testing.T) {
	values := []cty.Value{cty.NullVal(cty.Number), cty.NumberIntVal(1)}

	got, err := Compare(values, map[string]any{"ge": 0})
	require.NoError(t, err)
	assert.Equal(t, []bool{false, true}, got)

	got, err = Compare(values, map[string]any{"ne": 1})
	require.NoError(t, err)
	assert.Equal(t, []bool{true, false}, got)
}

func TestQuery(t *testing.T) {
	f := MustNew(
		Column{Name: "col1", Values: ints(0, 10, 11, 20, 21)},
		Column{Name: "col2", Values: ints(100, 110, 111, 111, 111)},
	)

	t.Run("or of and", func(t *testing.T) {
		got, err := Query(f,
			Filter{"col1": 10},
			Filter{"col1": 11, "col2": 111},
			Filter{"col1": 99, "col2": 100},
		)
		require.NoError(t, err)
		values, _ := got.Column("col1")
		assertCells(t, ints(10, 11), values)
	})

	t.Run("no filters returns the frame", func(t *testing.T) {
		got, err := Query(f)
		require.NoError(t, err)
		assert.Same(t, f, got)

		got, err = Query(f, Filter{})
		require.NoError(t, err)
		assert.Same(t, f, got)
	})

	t.Run("index levels are queryable", func(t *testing.T) {
		got, err := Query(sample(t), Filter{"gid": map[string]any{"ge": 2}, "window": "w2"})
		require.NoError(t, err)
		assert.Equal(t, 2, got.Len())
		assert.Equal(t, []string{"gid"}, got.IndexNames())
	})

	t.Run("unknown key", func(t *testing.T) {
		_, err := Query(f, Filter{"nope": 1})
		assert.ErrorContains(t, err, "unknown key \"nope\"")
	})
}

func TestFiltersFromCty(t *testing.T) {
	t.Run("list of filters", func(t *testing.T) {
		v := cty.TupleVal([]cty.Value{
			cty.ObjectVal(map[string]cty.Value{
				"window": cty.StringVal("w1"),
				"gid":    cty.ObjectVal(map[string]cty.Value{"ge": cty.NumberIntVal(1)}),
			}),
			cty.ObjectVal(map[string]cty.Value{
				"value": cty.TupleVal([]cty.Value{cty.NumberIntVal(12), cty.NumberIntVal(13)}),
			}),
		})
		filters, err := FiltersFromCty(v)
		require.NoError(t, err)
		require.Len(t, filters, 2)
		assert.IsType(t, map[string]any{}, filters[0]["gid"])

		got, err := Query(sample(t), filters...)
		require.NoError(t, err)
		values, _ := got.Column("gid")
		assertCells(t, ints(1, 2, 3), values)
	})

	t.Run("single object", func(t *testing.T) {
		filters, err := FiltersFromCty(cty.ObjectVal(map[string]cty.Value{"window": cty.StringVal("w2")}))
		require.NoError(t, err)
		got, err := Query(sample(t), filters...)
		require.NoError(t, err)
		assert.Equal(t, 2, got.Len())
	})

	t.Run("regex operator", func(t *testing.T) {
		filters, err := FiltersFromCty(cty.ObjectVal(map[string]cty.Value{
			"window": cty.ObjectVal(map[string]cty.Value{"regex": cty.StringVal("2$")}),
		}))
		require.NoError(t, err)
		got, err := Query(sample(t), filters...)
		require.NoError(t, err)
		values, _ := got.Column("gid")
		assertCells(t, ints(2, 3), values)

		filters, err = FiltersFromCty(cty.ObjectVal(map[string]cty.Value{
			"window": cty.ObjectVal(map[string]cty.Value{"regex": cty.NumberIntVal(2)}),
		}))
		require.NoError(t, err)
		_, err = Query(sample(t), filters...)
		assert.ErrorContains(t, err, "regex operand must be a string")
	})

	t.Run("null", func(t *testing.T) {
		filters, err := FiltersFromCty(cty.NullVal(cty.DynamicPseudoType))
		require.NoError(t, err)
		assert.Empty(t, filters)
	})

	t.Run("invalid", func(t *testing.T) {
		_, err := FiltersFromCty(cty.StringVal("window"))
		assert.ErrorContains(t, err, "filters must be an object or a list of objects")

		_, err = FiltersFromCty(cty.TupleVal([]cty.Value{cty.NumberIntVal(1)}))
		assert.ErrorContains(t, err, "filter 0 must be an object")
	})
}
