package pipeline

import (
	"context"
	"fmt"
	"strings"

	"github.com/zclconf/go-cty/cty"

	"github.com/vk/blueetlcore/internal/dispatcher"
	"github.com/vk/blueetlcore/internal/frame"
)

// GroupApply returns a StepFunc that splits its input by the key columns,
// applies fn to every group with at most jobs groups in flight and
// concatenates the results in group order. jobs follows the dispatcher
// convention: -1 for every CPU, 0 for half of them.
func GroupApply(keys []string, jobs int, fn StepFunc) StepFunc {
	workers := dispatcher.Config{JobCount: jobs}.Workers()
	return func(ctx context.Context, in *frame.Frame, args ...any) (*frame.Frame, error) {
		groups, err := frame.GroupBy(in, keys...)
		if err != nil {
			return nil, err
		}
		parts, err := dispatcher.Map(ctx, workers, groups, func(ctx context.Context, g frame.Group) (*frame.Frame, error) {
			out, err := fn(ctx, g.Frame, args...)
			if err != nil {
				return nil, fmt.Errorf("group %s: %w", formatKey(g.Key), err)
			}
			return out, nil
		})
		if err != nil {
			return nil, err
		}
		if len(parts) == 0 {
			return in, nil
		}
		return frame.Concat(parts...)
	}
}

func formatKey(key []cty.Value) string {
	parts := make([]string, len(key))
	for i, v := range key {
		parts[i] = frame.FormatValue(v)
	}
	return "(" + strings.Join(parts, ", ") + ")"
}
