package pipeline

import (
	"errors"
	"fmt"

	"github.com/vk/blueetlcore/internal/dispatcher"
	"github.com/vk/blueetlcore/internal/fingerprint"
	"github.com/vk/blueetlcore/internal/frame"
)

// ErrStepFailure is matched by every *StepFailure.
var ErrStepFailure = errors.New("pipeline step failed")

// ErrorKind classifies the cause of a step failure.
type ErrorKind string

const (
	KindSchemaMismatch  ErrorKind = "schema_mismatch"
	KindCoercion        ErrorKind = "coercion"
	KindUnhashableInput ErrorKind = "unhashable_input"
	KindCancelled       ErrorKind = "cancelled"
	KindWorkerExecution ErrorKind = "worker_execution"
	KindInvalidStep     ErrorKind = "invalid_step"
)

// StepFailure wraps the error that stopped a pipeline with the index of the
// failing step.
type StepFailure struct {
	Index int
	Step  string
	Err   error
}

func (e *StepFailure) Error() string {
	return fmt.Sprintf("step %d (%s) failed: %v", e.Index, e.Step, e.Err)
}

// Is makes errors.Is(err, ErrStepFailure) succeed.
func (e *StepFailure) Is(target error) bool {
	return target == ErrStepFailure
}

func (e *StepFailure) Unwrap() error { return e.Err }

// Kind returns the most specific classification of the cause. Schema and
// coercion errors win over the worker error wrapping them.
func (e *StepFailure) Kind() ErrorKind {
	switch {
	case errors.Is(e.Err, frame.ErrSchemaMismatch):
		return KindSchemaMismatch
	case errors.Is(e.Err, frame.ErrCoercion):
		return KindCoercion
	case errors.Is(e.Err, fingerprint.ErrUnhashableInput):
		return KindUnhashableInput
	case dispatcher.IsCancellation(e.Err):
		return KindCancelled
	case errors.Is(e.Err, dispatcher.ErrWorkerExecution):
		return KindWorkerExecution
	}
	return KindInvalidStep
}

// MarshalText renders the failure message.
func (e *StepFailure) MarshalText() ([]byte, error) { return []byte(e.Error()), nil }
