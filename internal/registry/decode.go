package registry

import (
	"errors"
	"fmt"
	"reflect"
	"strings"

	"github.com/zclconf/go-cty/cty"
	"github.com/zclconf/go-cty/cty/convert"
	"github.com/zclconf/go-cty/cty/gocty"
)

var ctyValueType = reflect.TypeOf(cty.Value{})

// DecodeArgs decodes the step arguments of operation name into a fresh
// argument struct. Omitted or null arguments keep their default.
func (r *Registry) DecodeArgs(name string, args cty.Value) (any, error) {
	op, ok := r.Lookup(name)
	if !ok {
		return nil, fmt.Errorf("unknown operation '%s'", name)
	}
	empty := args.IsNull() || ((args.Type().IsObjectType() || args.Type().IsMapType()) && args.LengthInt() == 0)
	if op.NewArgs == nil {
		if !empty {
			return nil, fmt.Errorf("operation '%s' takes no arguments", name)
		}
		return nil, nil
	}

	target := op.NewArgs()
	if args.IsNull() {
		return target, nil
	}
	if !args.Type().IsObjectType() && !args.Type().IsMapType() {
		return nil, fmt.Errorf("arguments of operation '%s' must be an object, got %s", name, args.Type().FriendlyName())
	}
	if !args.IsWhollyKnown() {
		return nil, fmt.Errorf("arguments of operation '%s' are not wholly known", name)
	}

	rv := reflect.ValueOf(target).Elem()
	fields := argFields(rv.Type())
	var errs []error
	for it := args.ElementIterator(); it.Next(); {
		k, v := it.Element()
		argName := k.AsString()
		i, ok := fields[argName]
		if !ok {
			errs = append(errs, fmt.Errorf("unsupported argument '%s'", argName))
			continue
		}
		if v.IsNull() {
			continue
		}
		if err := decodeField(rv.Field(i), v); err != nil {
			errs = append(errs, fmt.Errorf("argument '%s': %w", argName, err))
		}
	}
	if err := errors.Join(errs...); err != nil {
		return nil, fmt.Errorf("failed to decode arguments of operation '%s': %w", name, err)
	}
	return target, nil
}

func decodeField(field reflect.Value, v cty.Value) error {
	if field.Type() == ctyValueType {
		field.Set(reflect.ValueOf(v))
		return nil
	}
	ty, err := gocty.ImpliedType(field.Addr().Interface())
	if err != nil {
		return err
	}
	converted, err := convert.Convert(v, ty)
	if err != nil {
		return err
	}
	return gocty.FromCtyValue(converted, field.Addr().Interface())
}

// argFields maps the `cty` tag of every exported field to its index.
func argFields(t reflect.Type) map[string]int {
	fields := make(map[string]int)
	for i := 0; i < t.NumField(); i++ {
		field := t.Field(i)
		if !field.IsExported() {
			continue
		}
		tag := strings.Split(field.Tag.Get("cty"), ",")[0]
		if tag != "" && tag != "-" {
			fields[tag] = i
		}
	}
	return fields
}
