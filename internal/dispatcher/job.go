package dispatcher

import (
	"context"
	"errors"
	"fmt"
	"math"
	"time"
)

var (
	// ErrWorkerExecution is matched by every *WorkerExecutionError.
	ErrWorkerExecution = errors.New("worker execution failed")
	// ErrPanic marks a failure caused by a panicking job.
	ErrPanic = errors.New("job panicked")
	// ErrCancelled is the result of a job cancelled before it started.
	ErrCancelled = errors.New("job cancelled before start")
	// ErrClosed is returned for jobs submitted after Close.
	ErrClosed = errors.New("dispatcher is closed")
)

// Job is a unit of work. It is immutable once submitted.
type Job struct {
	Name string
	Run  func(ctx context.Context) (any, error)
	// Retries is the number of additional attempts after a failure.
	Retries int
	Backoff Backoff
}

// Backoff is an exponential delay between attempts. The zero value retries
// immediately.
type Backoff struct {
	Initial time.Duration
	Factor  float64
	Max     time.Duration
}

// Delay returns the wait before the given retry, starting at 1.
func (b Backoff) Delay(retry int) time.Duration {
	if b.Initial <= 0 || retry < 1 {
		return 0
	}
	factor := b.Factor
	if factor < 1 {
		factor = 1
	}
	d := float64(b.Initial) * math.Pow(factor, float64(retry-1))
	if b.Max > 0 && d > float64(b.Max) {
		return b.Max
	}
	if d > math.MaxInt64 {
		return time.Duration(math.MaxInt64)
	}
	return time.Duration(d)
}

// WorkerExecutionError is the terminal failure of a job, after all its
// attempts.
type WorkerExecutionError struct {
	Job      string
	Attempts int
	Err      error
}

func (e *WorkerExecutionError) Error() string {
	return fmt.Sprintf("job %q failed after %d attempt(s): %v", e.Job, e.Attempts, e.Err)
}

// Is makes errors.Is(err, ErrWorkerExecution) succeed.
func (e *WorkerExecutionError) Is(target error) bool {
	return target == ErrWorkerExecution
}

func (e *WorkerExecutionError) Unwrap() error { return e.Err }

// Permanent marks err as not worth retrying; the job fails immediately with
// the wrapped error.
func Permanent(err error) error {
	if err == nil {
		return nil
	}
	return &permanentError{err: err}
}

type permanentError struct{ err error }

func (e *permanentError) Error() string { return e.err.Error() }
func (e *permanentError) Unwrap() error { return e.err }

// IsCancellation reports whether err comes from a cancelled context or a job
// cancelled before it started.
func IsCancellation(err error) bool {
	return errors.Is(err, context.Canceled) ||
		errors.Is(err, context.DeadlineExceeded) ||
		errors.Is(err, ErrCancelled)
}
