package columns

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/zclconf/go-cty/cty"

	"github.com/vk/blueetlcore/internal/frame"
	"github.com/vk/blueetlcore/internal/registry"
)

func neurons(t *testing.T) *frame.Frame {
	t.Helper()
	f, err := frame.FromRecords([]map[string]any{
		{"gid": 3, "mtype": "L5_TPC"},
		{"gid": 1, "mtype": "L2_IPC"},
		{"gid": 2, "mtype": "L5_TPC"},
	}, "gid", "mtype")
	require.NoError(t, err)
	return f
}

func run(t *testing.T, op string, args map[string]cty.Value) (*frame.Frame, error) {
	t.Helper()
	r := registry.New(&Module{})
	require.NoError(t, r.ValidateRegistry(context.Background()))
	decoded, err := r.DecodeArgs(op, cty.ObjectVal(args))
	require.NoError(t, err)
	operation, _ := r.Lookup(op)
	return operation.Fn(context.Background(), neurons(t), decoded)
}

func names(vs ...string) cty.Value {
	elems := make([]cty.Value, len(vs))
	for i, v := range vs {
		elems[i] = cty.StringVal(v)
	}
	return cty.TupleVal(elems)
}

func TestOperations(t *testing.T) {
	t.Run("select", func(t *testing.T) {
		out, err := run(t, "select", map[string]cty.Value{"columns": names("mtype")})
		require.NoError(t, err)
		assert.Equal(t, []string{"mtype"}, out.Columns())
	})

	t.Run("drop", func(t *testing.T) {
		out, err := run(t, "drop", map[string]cty.Value{"columns": names("mtype")})
		require.NoError(t, err)
		assert.Equal(t, []string{"gid"}, out.Columns())
	})

	t.Run("rename", func(t *testing.T) {
		out, err := run(t, "rename", map[string]cty.Value{
			"mapping": cty.ObjectVal(map[string]cty.Value{"mtype": cty.StringVal("neuron_class")}),
		})
		require.NoError(t, err)
		assert.Equal(t, []string{"gid", "neuron_class"}, out.Columns())
	})

	t.Run("set_index", func(t *testing.T) {
		out, err := run(t, "set_index", map[string]cty.Value{"columns": names("gid")})
		require.NoError(t, err)
		assert.Equal(t, []string{"gid"}, out.IndexNames())
	})

	t.Run("sort", func(t *testing.T) {
		out, err := run(t, "sort", map[string]cty.Value{"columns": names("gid")})
		require.NoError(t, err)
		gids, _ := out.Column("gid")
		for i, want := range []int64{1, 2, 3} {
			assert.True(t, gids[i].RawEquals(cty.NumberIntVal(want)))
		}
	})

	t.Run("assign", func(t *testing.T) {
		out, err := run(t, "assign", map[string]cty.Value{
			"column": cty.StringVal("circuit_id"),
			"value":  cty.NumberIntVal(0),
		})
		require.NoError(t, err)
		values, ok := out.Column("circuit_id")
		require.True(t, ok)
		assert.Len(t, values, 3)
		assert.True(t, values[2].RawEquals(cty.NumberIntVal(0)))
	})

	t.Run("unknown column", func(t *testing.T) {
		_, err := run(t, "select", map[string]cty.Value{"columns": names("missing")})
		assert.ErrorContains(t, err, `unknown column "missing"`)
	})
}
