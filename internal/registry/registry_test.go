package registry

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/zclconf/go-cty/cty"

	"github.com/vk/blueetlcore/internal/frame"
)

type sampleArgs struct {
	Columns []string          `cty:"columns"`
	Limit   int               `cty:"limit"`
	Labels  map[string]string `cty:"labels"`
	Filters cty.Value         `cty:"filters"`
	ignored string
}

type sampleModule struct{}

func (sampleModule) Register(r *Registry) {
	r.Register("sample", &Operation{
		NewArgs: func() any { return &sampleArgs{Limit: 10} },
		Fn: func(ctx context.Context, in *frame.Frame, args any) (*frame.Frame, error) {
			return in, nil
		},
	})
	r.Register("noargs", &Operation{
		Fn: func(ctx context.Context, in *frame.Frame, args any) (*frame.Frame, error) {
			return in, nil
		},
	})
}

func TestRegister(t *testing.T) {
	r := New(sampleModule{})
	assert.Equal(t, []string{"noargs", "sample"}, r.Names())
	_, ok := r.Lookup("sample")
	assert.True(t, ok)
	_, ok = r.Lookup("missing")
	assert.False(t, ok)

	assert.Panics(t, func() { sampleModule{}.Register(r) })
	require.NoError(t, r.ValidateRegistry(context.Background()))
}

func TestDecodeArgs(t *testing.T) {
	r := New(sampleModule{})

	t.Run("all arguments", func(t *testing.T) {
		filters := cty.TupleVal([]cty.Value{cty.ObjectVal(map[string]cty.Value{"a": cty.NumberIntVal(1)})})
		got, err := r.DecodeArgs("sample", cty.ObjectVal(map[string]cty.Value{
			"columns": cty.TupleVal([]cty.Value{cty.StringVal("a"), cty.StringVal("b")}),
			"limit":   cty.NumberIntVal(3),
			"labels":  cty.ObjectVal(map[string]cty.Value{"a": cty.StringVal("x")}),
			"filters": filters,
		}))
		require.NoError(t, err)
		args := got.(*sampleArgs)
		assert.Equal(t, []string{"a", "b"}, args.Columns)
		assert.Equal(t, 3, args.Limit)
		assert.Equal(t, map[string]string{"a": "x"}, args.Labels)
		assert.True(t, args.Filters.RawEquals(filters))
	})

	t.Run("defaults are kept", func(t *testing.T) {
		got, err := r.DecodeArgs("sample", cty.ObjectVal(map[string]cty.Value{
			"limit": cty.NullVal(cty.Number),
		}))
		require.NoError(t, err)
		assert.Equal(t, 10, got.(*sampleArgs).Limit)

		got, err = r.DecodeArgs("sample", cty.NullVal(cty.DynamicPseudoType))
		require.NoError(t, err)
		assert.Equal(t, 10, got.(*sampleArgs).Limit)
	})

	t.Run("errors", func(t *testing.T) {
		_, err := r.DecodeArgs("missing", cty.EmptyObjectVal)
		assert.ErrorContains(t, err, "unknown operation 'missing'")

		_, err = r.DecodeArgs("sample", cty.ObjectVal(map[string]cty.Value{
			"limit":   cty.StringVal("many"),
			"ignored": cty.StringVal("x"),
		}))
		require.Error(t, err)
		assert.Contains(t, err.Error(), "argument 'limit'")
		assert.Contains(t, err.Error(), "unsupported argument 'ignored'")

		_, err = r.DecodeArgs("sample", cty.StringVal("x"))
		assert.ErrorContains(t, err, "must be an object")

		_, err = r.DecodeArgs("noargs", cty.ObjectVal(map[string]cty.Value{"a": cty.True}))
		assert.ErrorContains(t, err, "takes no arguments")
	})

	t.Run("no arguments", func(t *testing.T) {
		got, err := r.DecodeArgs("noargs", cty.EmptyObjectVal)
		require.NoError(t, err)
		assert.Nil(t, got)
	})
}

func TestValidateRegistry(t *testing.T) {
	r := New()
	r.Register("no_fn", &Operation{})
	r.Register("bad_args", &Operation{
		NewArgs: func() any { return sampleArgs{} },
		Fn: func(ctx context.Context, in *frame.Frame, args any) (*frame.Frame, error) {
			return in, nil
		},
	})
	r.Register("untagged", &Operation{
		NewArgs: func() any { return &struct{ Value int }{} },
		Fn: func(ctx context.Context, in *frame.Frame, args any) (*frame.Frame, error) {
			return in, nil
		},
	})
	r.Register("unsupported", &Operation{
		NewArgs: func() any {
			return &struct {
				Fn func() `cty:"fn"`
			}{}
		},
		Fn: func(ctx context.Context, in *frame.Frame, args any) (*frame.Frame, error) {
			return in, nil
		},
	})

	err := r.ValidateRegistry(context.Background())
	require.Error(t, err)
	msg := err.Error()
	assert.Contains(t, msg, "operation 'no_fn': no Go function")
	assert.Contains(t, msg, "operation 'bad_args': NewArgs must return a pointer to a struct")
	assert.Contains(t, msg, "operation 'untagged': argument struct")
	assert.Contains(t, msg, "operation 'unsupported', argument 'fn'")
}
