package pipeline

import (
	"context"

	"github.com/vk/blueetlcore/internal/dispatcher"
	"github.com/vk/blueetlcore/internal/frame"
)

// StepFunc transforms the input frame of a step. It must not modify in and
// should honour ctx.
type StepFunc func(ctx context.Context, in *frame.Frame, args ...any) (*frame.Frame, error)

// Step is one stage of a pipeline.
type Step struct {
	// Name identifies the step in logs and results.
	Name string
	// Operation is the cache identity of Fn. Two steps sharing an Operation
	// must compute the same thing. Defaults to Name.
	Operation string
	Fn        StepFunc
	// Args are passed to Fn and are part of the fingerprint, so they must be
	// hashable.
	Args []any
	// Input and Output are optional schemas checked before and after Fn.
	Input  *frame.Schema
	Output *frame.Schema
	// Coerce converts cells to the declared kinds instead of only checking
	// them.
	Coerce  bool
	Retries int
	Backoff dispatcher.Backoff
}

func (s Step) operation() string {
	if s.Operation != "" {
		return s.Operation
	}
	return s.Name
}

func (s Step) conform(f *frame.Frame, schema *frame.Schema) (*frame.Frame, error) {
	if s.Coerce {
		return frame.Coerce(f, schema)
	}
	return frame.Validate(f, schema)
}
