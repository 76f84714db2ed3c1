package print

import (
	"context"
	"fmt"
	"strings"

	"github.com/vk/blueetlcore/internal/ctxlog"
	"github.com/vk/blueetlcore/internal/frame"
	"github.com/vk/blueetlcore/internal/registry"
)

// Module implements the registry.Module interface for this package.
type Module struct{}

// Args defines the arguments of the print operation.
type Args struct {
	Message string `cty:"message"`
	// Rows is the number of leading rows logged. Negative logs every row.
	Rows int `cty:"rows"`
}

// Print logs the head of the frame and passes it through unchanged.
func Print(ctx context.Context, in *frame.Frame, args any) (*frame.Frame, error) {
	a := args.(*Args)
	n := a.Rows
	if n < 0 || n > in.Len() {
		n = in.Len()
	}
	rows := make([]int, n)
	for i := range rows {
		rows[i] = i
	}

	var b strings.Builder
	for i, row := range in.Take(rows).Records() {
		cells := make([]string, 0, len(row))
		for _, name := range in.Columns() {
			cells = append(cells, fmt.Sprintf("%s=%s", name, frame.FormatValue(row[name])))
		}
		fmt.Fprintf(&b, "\n      [%d] %s", i, strings.Join(cells, " "))
	}

	ctxlog.FromContext(ctx).Info("Printing frame",
		"message", a.Message,
		"rows", in.Len(),
		"columns", in.Columns(),
		"index", in.IndexNames(),
		"head", b.String(),
	)
	return in, nil
}

// Register registers the operation with the engine.
func (m *Module) Register(r *registry.Registry) {
	r.Register("print", &registry.Operation{
		Description: "Log the first rows of the frame and pass it through.",
		NewArgs:     func() any { return &Args{Rows: 5} },
		Fn:          Print,
	})
}
