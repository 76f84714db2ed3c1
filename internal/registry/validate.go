package registry

import (
	"context"
	"fmt"
	"reflect"
	"strings"

	"github.com/zclconf/go-cty/cty/gocty"

	"github.com/vk/blueetlcore/internal/ctxlog"
)

// ValidateRegistry checks that every operation has a function and that its
// argument struct can be decoded from configuration.
func (r *Registry) ValidateRegistry(ctx context.Context) error {
	var errs []string
	logger := ctxlog.FromContext(ctx)

	for _, name := range r.Names() {
		op := r.Operations[name]
		if op.Fn == nil {
			errs = append(errs, fmt.Sprintf("operation '%s': no Go function", name))
		}
		if op.NewArgs == nil {
			continue
		}

		args := reflect.ValueOf(op.NewArgs())
		if args.Kind() != reflect.Pointer || args.Elem().Kind() != reflect.Struct {
			errs = append(errs, fmt.Sprintf("operation '%s': NewArgs must return a pointer to a struct, got %s", name, args.Type()))
			continue
		}

		argsType := args.Elem().Type()
		fields := argFields(argsType)
		if len(fields) == 0 {
			errs = append(errs, fmt.Sprintf("operation '%s': argument struct %s has no `cty` tagged fields", name, argsType))
		}
		for argName, i := range fields {
			field := argsType.Field(i)
			if field.Type == ctyValueType {
				logger.Debug("Operation argument accepts any value, type checking is left to the operation.", "operation", name, "argument", argName)
				continue
			}
			if _, err := gocty.ImpliedType(reflect.Zero(field.Type).Interface()); err != nil {
				errs = append(errs, fmt.Sprintf("operation '%s', argument '%s': could not imply cty type from Go field type %s: %v", name, argName, field.Type, err))
			}
		}
	}

	if len(errs) > 0 {
		return fmt.Errorf("registry validation failed:\n- %s", strings.Join(errs, "\n- "))
	}
	return nil
}
