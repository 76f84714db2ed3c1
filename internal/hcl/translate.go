// This file contains the logic for translating the decoded HCL blocks into
// the format-agnostic pipeline model defined in the config package.

package hcl

import (
	"context"
	"fmt"
	"time"

	"github.com/hashicorp/hcl/v2"
	"github.com/zclconf/go-cty/cty"

	"github.com/vk/blueetlcore/internal/config"
	"github.com/vk/blueetlcore/internal/frame"
)

// translateInput converts the `input` block into the agnostic model.
func (l *Loader) translateInput(ctx context.Context, in *inputBlock) (*config.Input, error) {
	columns, err := l.evaluate(in.Columns)
	if err != nil {
		return nil, fmt.Errorf("input columns: %w", err)
	}
	if !columns.Type().IsObjectType() && !columns.Type().IsMapType() {
		return nil, fmt.Errorf("input columns must be an object of lists, got %s", columns.Type().FriendlyName())
	}
	schema, err := translateSchema(ctx, in.Schema)
	if err != nil {
		return nil, fmt.Errorf("input schema: %w", err)
	}
	return &config.Input{Columns: columns, Index: in.Index, Schema: schema}, nil
}

// translateStep converts a `step` block into the agnostic model.
func (l *Loader) translateStep(ctx context.Context, s *stepBlock) (*config.Step, error) {
	args, err := l.evaluate(s.Args)
	if err != nil {
		return nil, fmt.Errorf("step '%s' args: %w", s.Name, err)
	}
	if s.Retries < 0 {
		return nil, fmt.Errorf("step '%s': retries must not be negative", s.Name)
	}

	step := &config.Step{
		Operation: s.Operation,
		Name:      s.Name,
		Args:      args,
		Coerce:    s.Coerce,
		Retries:   s.Retries,
	}
	if step.Input, err = translateSchema(ctx, s.Input); err != nil {
		return nil, fmt.Errorf("step '%s' input: %w", s.Name, err)
	}
	if step.Output, err = translateSchema(ctx, s.Output); err != nil {
		return nil, fmt.Errorf("step '%s' output: %w", s.Name, err)
	}
	if s.Backoff != nil {
		if step.Backoff, err = translateBackoff(s.Backoff); err != nil {
			return nil, fmt.Errorf("step '%s' backoff: %w", s.Name, err)
		}
	}
	return step, nil
}

// translateSchema converts a schema block into a frame schema. A nil block
// yields a nil schema, which accepts any frame.
func translateSchema(ctx context.Context, s *schemaBlock) (*frame.Schema, error) {
	if s == nil {
		return nil, nil
	}
	schema := &frame.Schema{Strict: s.Strict}
	seen := make(map[string]struct{}, len(s.Fields))
	for _, f := range s.Fields {
		if _, dup := seen[f.Name]; dup {
			return nil, fmt.Errorf("duplicate field '%s'", f.Name)
		}
		seen[f.Name] = struct{}{}

		kind, categories, err := typeExprToKind(ctx, f.Type)
		if err != nil {
			return nil, fmt.Errorf("field '%s': %w", f.Name, err)
		}
		schema.Fields = append(schema.Fields, frame.Field{
			Name:       f.Name,
			Kind:       kind,
			Categories: categories,
			Index:      f.Index,
			Nullable:   f.Nullable,
		})
	}
	return schema, nil
}

func translateBackoff(b *backoffBlock) (config.Backoff, error) {
	var out config.Backoff
	var err error
	if b.Initial != "" {
		if out.Initial, err = time.ParseDuration(b.Initial); err != nil {
			return out, fmt.Errorf("initial: %w", err)
		}
	}
	if b.Max != "" {
		if out.Max, err = time.ParseDuration(b.Max); err != nil {
			return out, fmt.Errorf("max: %w", err)
		}
	}
	out.Factor = b.Factor
	return out, nil
}

// evaluate computes expr in the loader's evaluation context. A nil
// expression is null.
func (l *Loader) evaluate(expr hcl.Expression) (cty.Value, error) {
	if expr == nil {
		return cty.NullVal(cty.DynamicPseudoType), nil
	}
	val, diags := expr.Value(l.evalCtx)
	if diags.HasErrors() {
		return cty.NilVal, diags
	}
	if !val.IsWhollyKnown() {
		return cty.NilVal, fmt.Errorf("value is not wholly known")
	}
	return val, nil
}
