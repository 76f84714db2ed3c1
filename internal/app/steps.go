package app

import (
	"context"
	"errors"
	"fmt"

	"github.com/vk/blueetlcore/internal/config"
	"github.com/vk/blueetlcore/internal/dispatcher"
	"github.com/vk/blueetlcore/internal/frame"
	"github.com/vk/blueetlcore/internal/pipeline"
)

// buildSteps binds every configured step to its registered operation and
// decodes its arguments. All binding errors are reported together.
func (a *App) buildSteps(p *config.Pipeline) ([]pipeline.Step, error) {
	steps := make([]pipeline.Step, 0, len(p.Steps))
	var errs []error
	for _, s := range p.Steps {
		op, ok := a.registry.Lookup(s.Operation)
		if !ok {
			errs = append(errs, fmt.Errorf("step '%s': unknown operation '%s'", s.Name, s.Operation))
			continue
		}
		args, err := a.registry.DecodeArgs(s.Operation, s.Args)
		if err != nil {
			errs = append(errs, fmt.Errorf("step '%s': %w", s.Name, err))
			continue
		}

		fn := op.Fn
		steps = append(steps, pipeline.Step{
			Name:      s.Name,
			Operation: s.Operation,
			Args:      []any{args},
			Fn: func(ctx context.Context, in *frame.Frame, args ...any) (*frame.Frame, error) {
				return fn(ctx, in, args[0])
			},
			Input:   s.Input,
			Output:  s.Output,
			Coerce:  s.Coerce,
			Retries: s.Retries,
			Backoff: dispatcher.Backoff(s.Backoff),
		})
	}
	if err := errors.Join(errs...); err != nil {
		return nil, err
	}
	return steps, nil
}
