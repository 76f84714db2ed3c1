package aggregate

import (
	"context"
	"errors"
	"fmt"

	"github.com/zclconf/go-cty/cty"

	"github.com/vk/blueetlcore/internal/frame"
	"github.com/vk/blueetlcore/internal/pipeline"
	"github.com/vk/blueetlcore/internal/registry"
)

// Module implements the registry.Module interface for this package. Groups
// are aggregated with at most Jobs groups in flight, following the
// dispatcher job count convention.
type Module struct {
	Jobs int
}

// CountArgs defines the arguments of the count operation.
type CountArgs struct {
	By []string `cty:"by"`
	As string   `cty:"as"`
}

// SumArgs defines the arguments of the sum operation.
type SumArgs struct {
	By     []string `cty:"by"`
	Column string   `cty:"column"`
	As     string   `cty:"as"`
}

// Count returns one row per group with the number of rows of the group.
func (m *Module) Count(ctx context.Context, in *frame.Frame, args any) (*frame.Frame, error) {
	a := args.(*CountArgs)
	return m.aggregate(ctx, in, a.By, func(g *frame.Frame) (frame.Column, error) {
		return frame.Column{Name: a.As, Values: []cty.Value{cty.NumberIntVal(int64(g.Len()))}}, nil
	})
}

// Sum returns one row per group with the sum of a numeric column. Null cells
// are skipped.
func (m *Module) Sum(ctx context.Context, in *frame.Frame, args any) (*frame.Frame, error) {
	a := args.(*SumArgs)
	name := a.As
	if name == "" {
		name = a.Column
	}
	return m.aggregate(ctx, in, a.By, func(g *frame.Frame) (frame.Column, error) {
		values, ok := g.Column(a.Column)
		if !ok {
			return frame.Column{}, fmt.Errorf("unknown column %q", a.Column)
		}
		total := cty.Zero
		for row, v := range values {
			if v.IsNull() {
				continue
			}
			if v.Type() != cty.Number {
				return frame.Column{}, fmt.Errorf("column %q at row %d is %s, not a number", a.Column, row, v.Type().FriendlyName())
			}
			total = total.Add(v)
		}
		return frame.Column{Name: name, Values: []cty.Value{total}}, nil
	})
}

// aggregate reduces every group to a single row made of its key columns and
// the column returned by reduce. The result is indexed by the keys.
func (m *Module) aggregate(ctx context.Context, in *frame.Frame, by []string, reduce func(*frame.Frame) (frame.Column, error)) (*frame.Frame, error) {
	if len(by) == 0 {
		return nil, errors.New("at least one grouping column is required")
	}
	perGroup := func(ctx context.Context, g *frame.Frame, _ ...any) (*frame.Frame, error) {
		col, err := reduce(g)
		if err != nil {
			return nil, err
		}
		keys, err := g.Take([]int{0}).Select(by...)
		if err != nil {
			return nil, err
		}
		return keys.WithColumn(col)
	}
	out, err := pipeline.GroupApply(by, m.Jobs, perGroup)(ctx, in)
	if err != nil {
		return nil, err
	}
	if out == in {
		// No groups: keep the shape of an aggregate.
		empty := make([]frame.Column, 0, len(by))
		for _, k := range by {
			empty = append(empty, frame.Column{Name: k})
		}
		if out, err = frame.New(empty...); err != nil {
			return nil, err
		}
	}
	return out.WithIndex(by...)
}

// Register registers the operations with the engine.
func (m *Module) Register(r *registry.Registry) {
	r.Register("count", &registry.Operation{
		Description: "Count the rows of each group.",
		NewArgs:     func() any { return &CountArgs{As: "count"} },
		Fn:          m.Count,
	})
	r.Register("sum", &registry.Operation{
		Description: "Sum a numeric column within each group.",
		NewArgs:     func() any { return new(SumArgs) },
		Fn:          m.Sum,
	})
}
