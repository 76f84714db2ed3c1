package dispatcher

import (
	"context"
	"errors"
	"fmt"
	"runtime/debug"
	"time"

	"github.com/vk/blueetlcore/internal/ctxlog"
)

// worker is the processing loop of a single pool goroutine.
func (d *Dispatcher) worker(workerID int) {
	defer d.wg.Done()
	d.logger.Debug("Worker started.", "workerID", workerID)

	for f := range d.queue {
		d.run(f, workerID)
	}
	d.logger.Debug("Worker finished.", "workerID", workerID)
}

// run executes a future's job with its retries and resolves the future.
func (d *Dispatcher) run(f *Future, workerID int) {
	if !f.start() {
		d.cancelled.Add(1)
		return
	}
	ctx := f.ctx
	if err := ctx.Err(); err != nil {
		d.cancelled.Add(1)
		f.resolve(nil, err)
		return
	}

	logger := d.jobLogger(ctx).With("job", f.job.Name, "workerID", workerID)
	ctx = ctxlog.WithLogger(ctx, logger)
	logger.Log(ctx, d.progressLevel(), "Job started.")

	started := time.Now()
	value, err := d.attempt(ctx, f.job)
	if err != nil {
		d.failed.Add(1)
		logger.Error("Job failed.", "error", err, "duration", time.Since(started))
		f.resolve(nil, err)
		return
	}
	d.completed.Add(1)
	logger.Log(ctx, d.progressLevel(), "Job finished.", "duration", time.Since(started))
	f.resolve(value, nil)
}

// attempt runs a job until it succeeds, its retries are exhausted or ctx
// ends, waiting for the backoff delay between attempts.
func (d *Dispatcher) attempt(ctx context.Context, job Job) (any, error) {
	logger := ctxlog.FromContext(ctx)
	attempts := 0
	for {
		attempts++
		value, err := safeRun(ctx, job)
		if err == nil {
			return value, nil
		}
		if ctxErr := ctx.Err(); ctxErr != nil {
			return nil, &WorkerExecutionError{Job: job.Name, Attempts: attempts, Err: fmt.Errorf("%w: last attempt: %v", ctxErr, err)}
		}
		var permanent *permanentError
		if errors.As(err, &permanent) {
			return nil, &WorkerExecutionError{Job: job.Name, Attempts: attempts, Err: permanent.err}
		}
		if attempts > job.Retries {
			return nil, &WorkerExecutionError{Job: job.Name, Attempts: attempts, Err: err}
		}

		delay := job.Backoff.Delay(attempts)
		d.retries.Add(1)
		logger.Warn("Job attempt failed, retrying.", "attempt", attempts, "delay", delay, "error", err)
		if delay <= 0 {
			continue
		}
		timer := time.NewTimer(delay)
		select {
		case <-timer.C:
		case <-ctx.Done():
			timer.Stop()
			return nil, &WorkerExecutionError{Job: job.Name, Attempts: attempts, Err: ctx.Err()}
		}
	}
}

// safeRun calls the job function, turning a panic into an error.
func safeRun(ctx context.Context, job Job) (value any, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("%w: %v\n%s", ErrPanic, r, debug.Stack())
		}
	}()
	if job.Run == nil {
		return nil, fmt.Errorf("job %q has no function", job.Name)
	}
	return job.Run(ctx)
}
