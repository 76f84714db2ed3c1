package hcl

import (
	"github.com/hashicorp/hcl/v2"
	"github.com/zclconf/go-cty/cty/function"
	"github.com/zclconf/go-cty/cty/function/stdlib"
)

// newEvalContext returns the context in which argument and column
// expressions are evaluated. It exposes a few collection and string
// functions and no variables.
func newEvalContext() *hcl.EvalContext {
	return &hcl.EvalContext{
		Functions: map[string]function.Function{
			"concat":   stdlib.ConcatFunc,
			"contains": stdlib.ContainsFunc,
			"distinct": stdlib.DistinctFunc,
			"flatten":  stdlib.FlattenFunc,
			"format":   stdlib.FormatFunc,
			"length":   stdlib.LengthFunc,
			"lower":    stdlib.LowerFunc,
			"range":    stdlib.RangeFunc,
			"reverse":  stdlib.ReverseListFunc,
			"sort":     stdlib.SortFunc,
			"upper":    stdlib.UpperFunc,
		},
	}
}
