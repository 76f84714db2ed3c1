package hcl

import (
	"context"
	"fmt"

	"github.com/hashicorp/hcl/v2"
	"github.com/hashicorp/hcl/v2/gohcl"
	"github.com/hashicorp/hcl/v2/hclparse"

	"github.com/vk/blueetlcore/internal/config"
	"github.com/vk/blueetlcore/internal/ctxlog"
	"github.com/vk/blueetlcore/internal/fsutil"
)

// Loader is the HCL-specific implementation of the config.Loader interface.
type Loader struct {
	evalCtx *hcl.EvalContext
}

var _ config.Loader = (*Loader)(nil)

// NewLoader creates a new HCL pipeline loader.
func NewLoader() *Loader {
	return &Loader{evalCtx: newEvalContext()}
}

// Load parses the pipeline at path, a single .hcl file or a directory whose
// .hcl files are read in lexical order. Steps keep their file order; at most
// one input block may be declared overall.
func (l *Loader) Load(ctx context.Context, path string) (*config.Pipeline, error) {
	logger := ctxlog.FromContext(ctx)
	logger.Debug("HCL loader started.", "path", path)

	files, err := fsutil.FindFilesByExtension(path, ".hcl")
	if err != nil {
		return nil, fmt.Errorf("failed to find pipeline files: %w", err)
	}
	if len(files) == 0 {
		return nil, fmt.Errorf("no .hcl files found in %s", path)
	}
	logger.Debug("Discovered HCL files.", "count", len(files))

	parser := hclparse.NewParser()
	p := &config.Pipeline{}
	names := make(map[string]string)

	for _, file := range files {
		hclFile, diags := parser.ParseHCLFile(file)
		if diags.HasErrors() {
			return nil, fmt.Errorf("failed to parse HCL file %s: %w", file, diags)
		}
		if err := l.decode(ctx, hclFile.Body, file, p, names); err != nil {
			return nil, err
		}
	}

	logger.Debug("HCL loading complete.", "steps", len(p.Steps), "has_input", p.Input != nil)
	return p, nil
}

// LoadBytes parses a single pipeline file held in memory. filename is used
// in diagnostics.
func (l *Loader) LoadBytes(ctx context.Context, src []byte, filename string) (*config.Pipeline, error) {
	hclFile, diags := hclparse.NewParser().ParseHCL(src, filename)
	if diags.HasErrors() {
		return nil, fmt.Errorf("failed to parse HCL file %s: %w", filename, diags)
	}
	p := &config.Pipeline{}
	if err := l.decode(ctx, hclFile.Body, filename, p, make(map[string]string)); err != nil {
		return nil, err
	}
	return p, nil
}

func (l *Loader) decode(ctx context.Context, body hcl.Body, file string, p *config.Pipeline, names map[string]string) error {
	var root fileRoot
	if diags := gohcl.DecodeBody(body, nil, &root); diags.HasErrors() {
		return fmt.Errorf("failed to decode HCL file %s: %w", file, diags)
	}
	if root.Input != nil {
		if p.Input != nil {
			return fmt.Errorf("%s: only one input block may be declared", file)
		}
		in, err := l.translateInput(ctx, root.Input)
		if err != nil {
			return fmt.Errorf("%s: %w", file, err)
		}
		p.Input = in
	}

	for _, s := range root.Steps {
		if prev, dup := names[s.Name]; dup {
			return fmt.Errorf("%s: step '%s' already declared in %s", file, s.Name, prev)
		}
		names[s.Name] = file
		step, err := l.translateStep(ctx, s)
		if err != nil {
			return fmt.Errorf("%s: %w", file, err)
		}
		p.Steps = append(p.Steps, step)
	}
	return nil
}
