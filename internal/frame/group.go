package frame

import (
	"fmt"
	"strings"

	"github.com/zclconf/go-cty/cty"
	ctyjson "github.com/zclconf/go-cty/cty/json"
)

// Group is the subset of rows sharing the same key values.
type Group struct {
	Key   []cty.Value
	Frame *Frame
}

// GroupBy splits a frame by the values of the key columns. Groups are
// returned in order of first appearance; rows keep their relative order.
// Rows with a null key form their own group.
func GroupBy(f *Frame, keys ...string) ([]Group, error) {
	if len(keys) == 0 {
		return []Group{{Frame: f}}, nil
	}
	cols := make([][]cty.Value, len(keys))
	for i, k := range keys {
		values, ok := f.column(k)
		if !ok {
			return nil, fmt.Errorf("unknown key %q", k)
		}
		cols[i] = values
	}

	var (
		order [][]cty.Value
		rows  [][]int
	)
	index := make(map[string]int)
	for r := 0; r < f.rows; r++ {
		key := make([]cty.Value, len(cols))
		for i, col := range cols {
			key[i] = col[r]
		}
		encoded, err := groupKey(key, r)
		if err != nil {
			return nil, err
		}
		found, ok := index[encoded]
		if !ok {
			order = append(order, key)
			rows = append(rows, nil)
			found = len(order) - 1
			index[encoded] = found
		}
		rows[found] = append(rows[found], r)
	}

	groups := make([]Group, len(order))
	for g, key := range order {
		groups[g] = Group{Key: key, Frame: f.Take(rows[g])}
	}
	return groups, nil
}

// groupKey encodes a key tuple so that two tuples share an encoding exactly
// when valuesEqual holds cell by cell. Unknown cells equal nothing, so they
// are made unique by row.
func groupKey(key []cty.Value, row int) (string, error) {
	var b strings.Builder
	for i, v := range key {
		switch {
		case !v.IsKnown():
			fmt.Fprintf(&b, "?%d", row)
		case v.IsNull():
			b.WriteString("~")
		case v.Type() == cty.Number:
			n := v.AsBigFloat()
			if n.Sign() == 0 {
				b.WriteString("n0")
			} else {
				// 'p' prints the exact binary value, independent of precision.
				b.WriteString("n" + n.Text('p', 0))
			}
		default:
			data, err := ctyjson.Marshal(v, cty.DynamicPseudoType)
			if err != nil {
				return "", fmt.Errorf("key %d at row %d: %w", i, row, err)
			}
			b.WriteString("j")
			b.Write(data)
		}
		b.WriteByte(0)
	}
	return b.String(), nil
}
