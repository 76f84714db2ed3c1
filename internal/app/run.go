package app

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/vk/blueetlcore/internal/ctxlog"
	"github.com/vk/blueetlcore/internal/pipeline"
)

// ErrPipelineFailed is returned by Run when a step failed. The report is
// still written.
var ErrPipelineFailed = errors.New("pipeline failed")

// Run loads the pipeline, executes it and writes the JSON report to the
// output writer. Successive runs share the cache, so unchanged steps are
// served from it.
func (a *App) Run(ctx context.Context) (*pipeline.Result, error) {
	ctx = ctxlog.WithLogger(ctx, a.logger)
	a.logger.Debug("App.Run method started.")

	if a.config.HealthcheckPort > 0 && a.httpServer == nil {
		if err := a.startHealthcheckServer(a.config.HealthcheckPort); err != nil {
			return nil, err
		}
	}

	a.logger.Debug("Loading pipeline definition...", "path", a.config.PipelinePath)
	p, err := a.loader.Load(ctx, a.config.PipelinePath)
	if err != nil {
		return nil, fmt.Errorf("failed to load pipeline: %w", err)
	}
	input, err := p.Input.Frame()
	if err != nil {
		return nil, fmt.Errorf("failed to build input frame: %w", err)
	}
	steps, err := a.buildSteps(p)
	if err != nil {
		return nil, fmt.Errorf("failed to bind steps: %w", err)
	}
	a.logger.Info("Operations registered:", "count", len(a.registry.Operations), "names", a.registry.Names())

	a.logger.Info("🚀 Starting execution...", "steps", len(steps), "workers", a.dispatcher.Workers(), "rows", input.Len())
	res := a.orchestrator.Run(ctx, input, steps)
	a.logger.Info("🏁 Execution finished.", "status", res.Status)

	if err := a.writeReport(res); err != nil {
		return res, err
	}
	if res.Failure != nil {
		return res, fmt.Errorf("%w: %w", ErrPipelineFailed, res.Failure)
	}
	a.logger.Debug("App.Run method finished.")
	return res, nil
}

func (a *App) writeReport(res *pipeline.Result) error {
	report, err := a.newReport(res)
	if err != nil {
		return err
	}
	enc := json.NewEncoder(a.outW)
	enc.SetIndent("", "  ")
	if err := enc.Encode(report); err != nil {
		return fmt.Errorf("failed to write report: %w", err)
	}
	return nil
}
