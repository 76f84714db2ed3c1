package query

import (
	"context"
	"fmt"
	"sort"

	"github.com/zclconf/go-cty/cty"

	"github.com/vk/blueetlcore/internal/ctxlog"
	"github.com/vk/blueetlcore/internal/frame"
)

// SelectionArgs defines the arguments of the split and count_selections operations.
type SelectionArgs struct {
	// Selections is a list of filter objects, each applied on its own.
	Selections cty.Value `cty:"selections"`
	// Name is the new index level for split and the value column for count.
	Name string `cty:"name"`
	// IgnoreUnknownKeys drops conditions on keys missing from the frame.
	IgnoreUnknownKeys bool `cty:"ignore_unknown_keys"`
}

func newSelectionArgs(name string) *SelectionArgs {
	return &SelectionArgs{Selections: cty.NullVal(cty.DynamicPseudoType), Name: name}
}

// Split applies every selection and concatenates the results under a new
// outermost index level holding the position of the selection.
func Split(ctx context.Context, in *frame.Frame, args any) (*frame.Frame, error) {
	a := args.(*SelectionArgs)
	_, frames, err := applySelections(ctx, in, a)
	if err != nil {
		return nil, err
	}
	keys := make([]cty.Value, len(frames))
	for i := range keys {
		keys[i] = cty.NumberIntVal(int64(i))
	}
	return frame.ConcatKeyed(a.Name, keys, frames)
}

// CountSelections returns one row per selection, indexed by the selection keys, with
// the number of rows it selects. Every selection must set the same keys to
// plain values.
func CountSelections(ctx context.Context, in *frame.Frame, args any) (*frame.Frame, error) {
	a := args.(*SelectionArgs)
	filters, frames, err := applySelections(ctx, in, a)
	if err != nil {
		return nil, err
	}
	if len(filters) == 0 {
		return frame.Empty(), nil
	}
	levels := sortedFilterKeys(filters[0])
	tuples := make([]frame.Tuple, len(filters))
	for i, f := range filters {
		for key, cond := range f {
			if _, ok := cond.(cty.Value); !ok {
				return nil, fmt.Errorf("selection %d: condition on %q must be a plain value", i, key)
			}
		}
		tuples[i] = frame.Tuple{Value: frames[i].Len(), Conditions: f}
	}
	return frame.ConcatTuples(a.Name, levels, tuples)
}

// applySelections runs the selections through a single cached frame, so
// that consecutive selections sharing their first conditions reuse the
// intermediate results.
func applySelections(ctx context.Context, in *frame.Frame, a *SelectionArgs) ([]frame.Filter, []*frame.Frame, error) {
	filters, err := frame.FiltersFromCty(a.Selections)
	if err != nil {
		return nil, nil, err
	}
	cached := frame.NewCachedFrame(in)
	frames := make([]*frame.Frame, len(filters))
	reused := 0
	for i, f := range filters {
		keys := sortedFilterKeys(f)
		conds := make([]frame.Condition, len(keys))
		for j, key := range keys {
			conds[j] = frame.Condition{Key: key, Value: f[key]}
		}
		if frames[i], err = cached.Query(conds, a.IgnoreUnknownKeys); err != nil {
			return nil, nil, fmt.Errorf("selection %d: %w", i, err)
		}
		reused += cached.Matched()
	}
	ctxlog.FromContext(ctx).Debug("Selections applied.", "selections", len(filters), "reused_conditions", reused)
	return filters, frames, nil
}

func sortedFilterKeys(f frame.Filter) []string {
	keys := make([]string, 0, len(f))
	for k := range f {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
