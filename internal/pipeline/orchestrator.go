package pipeline

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/vk/blueetlcore/internal/cache"
	"github.com/vk/blueetlcore/internal/ctxlog"
	"github.com/vk/blueetlcore/internal/dispatcher"
	"github.com/vk/blueetlcore/internal/fingerprint"
	"github.com/vk/blueetlcore/internal/frame"
)

var errNoFrame = errors.New("step returned no frame")

// Option configures an Orchestrator.
type Option func(*Orchestrator)

// WithLogger sets the fallback logger used when the run context carries
// none.
func WithLogger(logger *slog.Logger) Option {
	return func(o *Orchestrator) { o.logger = logger }
}

// Orchestrator runs pipelines through a shared cache and dispatcher.
type Orchestrator struct {
	cache      *cache.Cache
	dispatcher *dispatcher.Dispatcher
	logger     *slog.Logger
}

// New creates an Orchestrator. The cache must compute its misses through d.
func New(c *cache.Cache, d *dispatcher.Dispatcher, opts ...Option) *Orchestrator {
	o := &Orchestrator{cache: c, dispatcher: d}
	for _, opt := range opts {
		opt(o)
	}
	if o.logger == nil {
		o.logger = slog.Default()
	}
	return o
}

// Run executes steps in order, feeding each one the output of the previous
// one. It never returns nil; failures are reported on the Result.
func (o *Orchestrator) Run(ctx context.Context, input *frame.Frame, steps []Step) *Result {
	res := &Result{RunID: uuid.New(), Status: NotStarted, Steps: make([]StepResult, len(steps))}
	for i, step := range steps {
		res.Steps[i] = StepResult{Index: i, Name: step.Name, Status: StepPending}
	}

	logger := o.runLogger(ctx).With("run", res.RunID.String())
	ctx = ctxlog.WithLogger(ctx, logger)
	logger.Info("▶️ Starting pipeline", "steps", len(steps))
	start := time.Now()

	res.Status = Running
	current := input
	for i, step := range steps {
		sr := &res.Steps[i]
		if err := ctx.Err(); err != nil {
			o.fail(ctx, res, i, err)
			break
		}

		sr.Status = StepRunning
		stepStart := time.Now()
		out, err := o.runStep(ctx, sr, step, current)
		sr.Duration = time.Since(stepStart)
		if err != nil {
			o.fail(ctx, res, i, err)
			break
		}
		sr.Status = StepDone
		sr.Output = out
		current = out
	}

	if res.Failure == nil {
		res.Status = Done
		logger.Info("✅ Finished pipeline", "duration", time.Since(start))
	}
	return res
}

func (o *Orchestrator) runStep(ctx context.Context, sr *StepResult, step Step, in *frame.Frame) (*frame.Frame, error) {
	logger := ctxlog.FromContext(ctx).With("step", step.Name, "index", sr.Index)
	ctx = ctxlog.WithLogger(ctx, logger)
	logger.Info("▶️ Starting step")

	if step.Fn == nil {
		return nil, fmt.Errorf("step %q has no function", step.Name)
	}
	if in == nil {
		return nil, errNoFrame
	}
	in, err := step.conform(in, step.Input)
	if err != nil {
		return nil, fmt.Errorf("input: %w", err)
	}

	fp, err := fingerprint.Compute(step.operation(), in, step.Args, step.Output, step.Coerce)
	if err != nil {
		return nil, err
	}
	sr.Fingerprint = fp
	logger.Debug("Step fingerprinted.", "fingerprint", fp.Short())

	job := dispatcher.Job{
		Name:    step.Name,
		Retries: step.Retries,
		Backoff: step.Backoff,
		Run: func(ctx context.Context) (any, error) {
			out, err := step.Fn(ctx, in, step.Args...)
			if err != nil {
				return nil, err
			}
			if out == nil {
				return nil, dispatcher.Permanent(errNoFrame)
			}
			out, err = step.conform(out, step.Output)
			if err != nil {
				return nil, dispatcher.Permanent(fmt.Errorf("output: %w", err))
			}
			return out, nil
		},
	}

	outcome, err := o.cache.Get(ctx, fp, job)
	if err != nil {
		return nil, err
	}
	sr.FromCache = outcome.Source != cache.Computed
	logger.Info("✅ Finished step", "cached", sr.FromCache)
	return outcome.Value.(*frame.Frame), nil
}

func (o *Orchestrator) fail(ctx context.Context, res *Result, index int, err error) {
	res.Status = Failed
	res.Steps[index].Status = StepFailed
	res.Failure = &StepFailure{Index: index, Step: res.Steps[index].Name, Err: err}
	for i := index + 1; i < len(res.Steps); i++ {
		res.Steps[i].Status = StepSkipped
	}
	ctxlog.FromContext(ctx).Error("❌ Pipeline failed",
		"step", res.Failure.Step, "index", index, "kind", res.Failure.Kind(), "error", err)
}

func (o *Orchestrator) runLogger(ctx context.Context) *slog.Logger {
	if logger, ok := ctxlog.Lookup(ctx); ok {
		return logger
	}
	return o.logger
}

// GroupApply is GroupApply with the orchestrator's degree of parallelism.
func (o *Orchestrator) GroupApply(keys []string, fn StepFunc) StepFunc {
	return GroupApply(keys, o.dispatcher.Workers(), fn)
}
