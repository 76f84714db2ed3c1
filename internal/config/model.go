package config

import (
	"time"

	"github.com/zclconf/go-cty/cty"

	"github.com/vk/blueetlcore/internal/frame"
)

// Pipeline is the unified, format-agnostic representation of a pipeline
// file.
type Pipeline struct {
	Input *Input
	Steps []*Step
}

// Input is the initial frame of a pipeline.
type Input struct {
	// Columns is an object of equally long lists or tuples.
	Columns cty.Value
	Index   []string
	Schema  *frame.Schema
}

// Frame builds the input frame, indexes it and checks it against Schema.
func (in *Input) Frame() (*frame.Frame, error) {
	if in == nil {
		return frame.Empty(), nil
	}
	f, err := frame.FromCty(in.Columns)
	if err != nil {
		return nil, err
	}
	if len(in.Index) > 0 {
		if f, err = f.WithIndex(in.Index...); err != nil {
			return nil, err
		}
	}
	return frame.Validate(f, in.Schema)
}

// Step is the format-agnostic representation of a `step` block.
type Step struct {
	// Operation names a registered operation.
	Operation string
	Name      string
	// Args is an object, or null when the block sets no arguments.
	Args    cty.Value
	Input   *frame.Schema
	Output  *frame.Schema
	Coerce  bool
	Retries int
	Backoff Backoff
}

// Backoff mirrors dispatcher.Backoff without importing it.
type Backoff struct {
	Initial time.Duration
	Factor  float64
	Max     time.Duration
}
