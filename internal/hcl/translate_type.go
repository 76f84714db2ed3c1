// This file contains the logic for parsing HCL field type expressions (e.g.,
// `integer`, `categorical(["w1", "w2"])`) into frame kinds.

package hcl

import (
	"context"
	"fmt"

	"github.com/hashicorp/hcl/v2"
	"github.com/hashicorp/hcl/v2/hclsyntax"
	"github.com/zclconf/go-cty/cty"
	"github.com/zclconf/go-cty/cty/convert"

	"github.com/vk/blueetlcore/internal/ctxlog"
	"github.com/vk/blueetlcore/internal/frame"
)

// typeExprToKind converts an HCL type expression into a frame kind and, for
// categorical fields, its domain.
func typeExprToKind(ctx context.Context, expr hcl.Expression) (frame.Kind, []string, error) {
	logger := ctxlog.FromContext(ctx)

	switch v := expr.(type) {
	case nil:
		logger.Debug("Type expression is nil, defaulting to any.")
		return frame.Any, nil, nil

	case *hclsyntax.FunctionCallExpr:
		logger.Debug("Parsing type expression as a function call.", "call", v.Name)
		if v.Name != "categorical" {
			return frame.Any, nil, fmt.Errorf("unknown type constructor function %q", v.Name)
		}
		switch len(v.Args) {
		case 0:
			return frame.Categorical, nil, nil
		case 1:
		default:
			return frame.Any, nil, fmt.Errorf("categorical takes at most one argument, got %d", len(v.Args))
		}
		categories, err := stringList(v.Args[0])
		if err != nil {
			return frame.Any, nil, fmt.Errorf("categorical domain: %w", err)
		}
		return frame.Categorical, categories, nil

	case *hclsyntax.ScopeTraversalExpr:
		// Type keywords like `integer` or `string`.
		if len(v.Traversal) != 1 {
			return frame.Any, nil, fmt.Errorf("invalid type keyword: traversal path is not a single identifier")
		}
		rootName := v.Traversal.RootName()
		logger.Debug("Parsing type expression as a keyword.", "keyword", rootName)
		kind, err := frame.ParseKind(rootName)
		if err != nil {
			return frame.Any, nil, err
		}
		return kind, nil, nil
	}

	// An omitted optional attribute decodes to a static null expression.
	if val, diags := expr.Value(nil); !diags.HasErrors() && val.IsNull() {
		return frame.Any, nil, nil
	}
	return frame.Any, nil, fmt.Errorf("unsupported expression for type definition: %T", expr)
}

// stringList evaluates expr, without variables, into a list of strings.
func stringList(expr hcl.Expression) ([]string, error) {
	val, diags := expr.Value(nil)
	if diags.HasErrors() {
		return nil, diags
	}
	list, err := convert.Convert(val, cty.List(cty.String))
	if err != nil {
		return nil, err
	}
	if list.IsNull() {
		return nil, nil
	}
	out := make([]string, 0, list.LengthInt())
	for it := list.ElementIterator(); it.Next(); {
		_, elem := it.Element()
		if elem.IsNull() {
			return nil, fmt.Errorf("null category")
		}
		out = append(out, elem.AsString())
	}
	return out, nil
}
