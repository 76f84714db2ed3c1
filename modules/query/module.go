package query

import (
	"context"

	"github.com/zclconf/go-cty/cty"

	"github.com/vk/blueetlcore/internal/ctxlog"
	"github.com/vk/blueetlcore/internal/frame"
	"github.com/vk/blueetlcore/internal/registry"
)

// Module implements the registry.Module interface for this package.
type Module struct{}

// Args defines the arguments of the query operation.
type Args struct {
	// Filters is a filter object or a list of them; the rows matching any
	// filter are kept.
	Filters cty.Value `cty:"filters"`
}

// Query keeps the rows selected by the filters.
func Query(ctx context.Context, in *frame.Frame, args any) (*frame.Frame, error) {
	filters, err := frame.FiltersFromCty(args.(*Args).Filters)
	if err != nil {
		return nil, err
	}
	kept := pruneFilters(filters)
	out, err := frame.Query(in, kept...)
	if err != nil {
		return nil, err
	}
	ctxlog.FromContext(ctx).Debug("Frame queried.", "filters", len(filters), "pruned", len(filters)-len(kept), "rows_in", in.Len(), "rows_out", out.Len())
	return out, nil
}

// pruneFilters drops the filters selecting a subset of what another filter
// selects, which leaves their union unchanged. Of two equivalent filters the
// first is kept. Filters that cannot be compared are always kept.
func pruneFilters(filters []frame.Filter) []frame.Filter {
	if len(filters) < 2 {
		return filters
	}
	covered := func(left, right frame.Filter) bool {
		sub, err := frame.IsSubfilter(left, right, false)
		return err == nil && sub
	}
	kept := make([]frame.Filter, 0, len(filters))
	for i, f := range filters {
		redundant := false
		for j, other := range filters {
			if i == j || !covered(f, other) {
				continue
			}
			if j < i || !covered(other, f) {
				redundant = true
				break
			}
		}
		if !redundant {
			kept = append(kept, f)
		}
	}
	return kept
}

// Register registers the operation with the engine.
func (m *Module) Register(r *registry.Registry) {
	r.Register("query", &registry.Operation{
		Description: "Keep the rows matching any of the filters.",
		NewArgs:     func() any { return &Args{Filters: cty.NullVal(cty.DynamicPseudoType)} },
		Fn:          Query,
	})
	r.Register("split", &registry.Operation{
		Description: "Concatenate the rows of each selection under a new index level.",
		NewArgs:     func() any { return newSelectionArgs("selection") },
		Fn:          Split,
	})
	r.Register("count_selections", &registry.Operation{
		Description: "Count the rows of each selection.",
		NewArgs:     func() any { return newSelectionArgs("count") },
		Fn:          CountSelections,
	})
}
