package dispatcher

import (
	"context"

	"golang.org/x/sync/errgroup"
)

// Map applies fn to every item with at most workers calls in flight and
// returns the results in item order. The first error cancels the remaining
// calls and is returned.
//
// Map does not go through the job queue, so it is safe to call from inside a
// running job.
func Map[T, R any](ctx context.Context, workers int, items []T, fn func(context.Context, T) (R, error)) ([]R, error) {
	out := make([]R, len(items))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(max(1, workers))
	for i, item := range items {
		i, item := i, item
		g.Go(func() error {
			r, err := fn(gctx, item)
			if err != nil {
				return err
			}
			out[i] = r
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return out, nil
}
