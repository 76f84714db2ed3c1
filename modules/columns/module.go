package columns

import (
	"context"

	"github.com/zclconf/go-cty/cty"

	"github.com/vk/blueetlcore/internal/frame"
	"github.com/vk/blueetlcore/internal/registry"
)

// Module implements the registry.Module interface for this package.
type Module struct{}

// ColumnsArgs lists column names.
type ColumnsArgs struct {
	Columns []string `cty:"columns"`
}

// RenameArgs maps old names to new names.
type RenameArgs struct {
	Mapping map[string]string `cty:"mapping"`
}

// AssignArgs sets a column to a constant.
type AssignArgs struct {
	Column string    `cty:"column"`
	Value  cty.Value `cty:"value"`
}

// Select keeps the listed columns, in the listed order.
func Select(ctx context.Context, in *frame.Frame, args any) (*frame.Frame, error) {
	return in.Select(args.(*ColumnsArgs).Columns...)
}

// Drop removes the listed columns.
func Drop(ctx context.Context, in *frame.Frame, args any) (*frame.Frame, error) {
	return in.Drop(args.(*ColumnsArgs).Columns...)
}

// Rename renames columns and index levels.
func Rename(ctx context.Context, in *frame.Frame, args any) (*frame.Frame, error) {
	return in.Rename(args.(*RenameArgs).Mapping)
}

// SetIndex makes the listed columns the index levels.
func SetIndex(ctx context.Context, in *frame.Frame, args any) (*frame.Frame, error) {
	return in.WithIndex(args.(*ColumnsArgs).Columns...)
}

// Sort orders the rows by the listed columns.
func Sort(ctx context.Context, in *frame.Frame, args any) (*frame.Frame, error) {
	return in.SortBy(args.(*ColumnsArgs).Columns...)
}

// Assign adds or replaces a column filled with a constant.
func Assign(ctx context.Context, in *frame.Frame, args any) (*frame.Frame, error) {
	a := args.(*AssignArgs)
	values := make([]cty.Value, in.Len())
	for i := range values {
		values[i] = a.Value
	}
	return in.WithColumn(frame.Column{Name: a.Column, Values: values})
}

// Register registers the operations with the engine.
func (m *Module) Register(r *registry.Registry) {
	newColumns := func() any { return new(ColumnsArgs) }
	r.Register("select", &registry.Operation{Description: "Keep the listed columns.", NewArgs: newColumns, Fn: Select})
	r.Register("drop", &registry.Operation{Description: "Remove the listed columns.", NewArgs: newColumns, Fn: Drop})
	r.Register("set_index", &registry.Operation{Description: "Set the index levels.", NewArgs: newColumns, Fn: SetIndex})
	r.Register("sort", &registry.Operation{Description: "Sort the rows.", NewArgs: newColumns, Fn: Sort})
	r.Register("rename", &registry.Operation{
		Description: "Rename columns.",
		NewArgs:     func() any { return new(RenameArgs) },
		Fn:          Rename,
	})
	r.Register("assign", &registry.Operation{
		Description: "Set a column to a constant value.",
		NewArgs:     func() any { return &AssignArgs{Value: cty.NullVal(cty.DynamicPseudoType)} },
		Fn:          Assign,
	})
}
