package registry

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/vk/blueetlcore/internal/frame"
)

// OperationFunc transforms a frame. args is the value returned by the
// operation's NewArgs after decoding, or nil.
type OperationFunc func(ctx context.Context, in *frame.Frame, args any) (*frame.Frame, error)

// Operation holds the compiled Go parts of an operation.
type Operation struct {
	Description string
	// NewArgs returns a pointer to a struct whose `cty`-tagged fields receive
	// the step arguments. Fields keep their initial value when the argument
	// is omitted. Nil means the operation takes no arguments.
	NewArgs func() any
	Fn      OperationFunc
}

// Register registers an operation under name.
func (r *Registry) Register(name string, op *Operation) {
	if _, exists := r.Operations[name]; exists {
		panic(fmt.Sprintf("operation with name '%s' already registered", name))
	}
	slog.Debug("Registering operation.", "name", name)
	r.Operations[name] = op
}
