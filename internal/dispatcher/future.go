package dispatcher

import (
	"context"
	"sync"
)

// State is the lifecycle stage of a submitted job.
type State int

const (
	Queued State = iota
	Running
	Succeeded
	Failed
	Cancelled
)

func (s State) String() string {
	switch s {
	case Queued:
		return "queued"
	case Running:
		return "running"
	case Succeeded:
		return "succeeded"
	case Failed:
		return "failed"
	case Cancelled:
		return "cancelled"
	}
	return "unknown"
}

// Future is the handle of a submitted job. It resolves exactly once.
type Future struct {
	job  Job
	ctx  context.Context
	done chan struct{}

	mu    sync.Mutex
	state State
	value any
	err   error
}

func newFuture(ctx context.Context, job Job) *Future {
	return &Future{job: job, ctx: ctx, done: make(chan struct{})}
}

// Name returns the job name.
func (f *Future) Name() string { return f.job.Name }

// Done is closed once the job has resolved.
func (f *Future) Done() <-chan struct{} { return f.done }

// Wait blocks until the job resolves and returns its outcome. If ctx ends
// first, Wait returns ctx.Err(); the job itself keeps running.
func (f *Future) Wait(ctx context.Context) (any, error) {
	select {
	case <-f.done:
		f.mu.Lock()
		defer f.mu.Unlock()
		return f.value, f.err
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

// Err returns the failure of a resolved job, or nil while it is unresolved
// or when it succeeded.
func (f *Future) Err() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.err
}

// State returns the current lifecycle stage.
func (f *Future) State() State {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.state
}

// Cancel prevents a queued job from starting. It reports false when the job
// has already started or resolved.
func (f *Future) Cancel() bool {
	f.mu.Lock()
	if f.state != Queued {
		f.mu.Unlock()
		return false
	}
	f.state = Cancelled
	f.err = ErrCancelled
	f.mu.Unlock()
	close(f.done)
	return true
}

// start moves a queued job to running. It reports false when the job was
// cancelled in the meantime.
func (f *Future) start() bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.state != Queued {
		return false
	}
	f.state = Running
	return true
}

func (f *Future) resolve(value any, err error) {
	f.mu.Lock()
	if f.state == Succeeded || f.state == Failed || f.state == Cancelled {
		f.mu.Unlock()
		return
	}
	f.value, f.err = value, err
	if err != nil {
		f.state = Failed
	} else {
		f.state = Succeeded
	}
	f.mu.Unlock()
	close(f.done)
}
