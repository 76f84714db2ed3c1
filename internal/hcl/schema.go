package hcl

import (
	"github.com/hashicorp/hcl/v2"
)

// fileRoot decodes the top-level blocks of a pipeline file.
type fileRoot struct {
	Input *inputBlock  `hcl:"input,block"`
	Steps []*stepBlock `hcl:"step,block"`
}

// inputBlock represents the `input` block holding the initial frame.
type inputBlock struct {
	Columns hcl.Expression `hcl:"columns"`
	Index   []string       `hcl:"index,optional"`
	Schema  *schemaBlock   `hcl:"schema,block"`
}

// stepBlock represents a `step "<operation>" "<name>"` block.
type stepBlock struct {
	Operation string         `hcl:"operation,label"`
	Name      string         `hcl:"name,label"`
	Args      hcl.Expression `hcl:"args,optional"`
	Input     *schemaBlock   `hcl:"input,block"`
	Output    *schemaBlock   `hcl:"output,block"`
	Coerce    bool           `hcl:"coerce,optional"`
	Retries   int            `hcl:"retries,optional"`
	Backoff   *backoffBlock  `hcl:"backoff,block"`
}

// schemaBlock represents an `input` or `output` schema of a step.
type schemaBlock struct {
	Strict bool          `hcl:"strict,optional"`
	Fields []*fieldBlock `hcl:"field,block"`
}

// fieldBlock represents a `field "<name>"` declaration.
type fieldBlock struct {
	Name     string         `hcl:"name,label"`
	Type     hcl.Expression `hcl:"type,optional"`
	Index    bool           `hcl:"index,optional"`
	Nullable bool           `hcl:"nullable,optional"`
}

// backoffBlock represents the retry delays of a step.
type backoffBlock struct {
	Initial string  `hcl:"initial,optional"`
	Factor  float64 `hcl:"factor,optional"`
	Max     string  `hcl:"max,optional"`
}
