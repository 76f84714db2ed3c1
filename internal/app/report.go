package app

import (
	"encoding/json"
	"fmt"

	"github.com/zclconf/go-cty/cty"
	ctyjson "github.com/zclconf/go-cty/cty/json"

	"github.com/vk/blueetlcore/internal/cache"
	"github.com/vk/blueetlcore/internal/dispatcher"
	"github.com/vk/blueetlcore/internal/frame"
	"github.com/vk/blueetlcore/internal/pipeline"
)

// Report is the JSON document printed after a run.
type Report struct {
	RunID      string           `json:"run_id"`
	Status     pipeline.Status  `json:"status"`
	Steps      []StepReport     `json:"steps"`
	Failure    *FailureReport   `json:"failure,omitempty"`
	Output     *FrameReport     `json:"output,omitempty"`
	Cache      cache.Stats      `json:"cache"`
	Dispatcher dispatcher.Stats `json:"dispatcher"`
}

// StepReport summarises one step.
type StepReport struct {
	Index       int                 `json:"index"`
	Name        string              `json:"name"`
	Status      pipeline.StepStatus `json:"status"`
	Fingerprint string              `json:"fingerprint,omitempty"`
	FromCache   bool                `json:"from_cache"`
	DurationMS  float64             `json:"duration_ms"`
	Rows        *int                `json:"rows,omitempty"`
}

// FailureReport describes the step that stopped the pipeline.
type FailureReport struct {
	Index int                `json:"index"`
	Step  string             `json:"step"`
	Kind  pipeline.ErrorKind `json:"kind"`
	Error string             `json:"error"`
}

// FrameReport is a frame as rows of plain JSON values.
type FrameReport struct {
	Columns []string        `json:"columns"`
	Index   []string        `json:"index"`
	Records json.RawMessage `json:"records"`
}

func (a *App) newReport(res *pipeline.Result) (*Report, error) {
	r := &Report{
		RunID:      res.RunID.String(),
		Status:     res.Status,
		Steps:      make([]StepReport, len(res.Steps)),
		Cache:      a.cache.Stats(),
		Dispatcher: a.dispatcher.Stats(),
	}
	for i, sr := range res.Steps {
		step := StepReport{
			Index:       sr.Index,
			Name:        sr.Name,
			Status:      sr.Status,
			Fingerprint: sr.Fingerprint.String(),
			FromCache:   sr.FromCache,
			DurationMS:  float64(sr.Duration.Microseconds()) / 1000,
		}
		if sr.Output != nil {
			rows := sr.Output.Len()
			step.Rows = &rows
		}
		r.Steps[i] = step
	}
	if f := res.Failure; f != nil {
		r.Failure = &FailureReport{Index: f.Index, Step: f.Step, Kind: f.Kind(), Error: f.Err.Error()}
	}
	if out := res.Output(); out != nil {
		fr, err := newFrameReport(out)
		if err != nil {
			return nil, err
		}
		r.Output = fr
	}
	return r, nil
}

func newFrameReport(f *frame.Frame) (*FrameReport, error) {
	rows := f.Records()
	records := cty.EmptyTupleVal
	if len(rows) > 0 {
		vals := make([]cty.Value, len(rows))
		for i, row := range rows {
			vals[i] = cty.ObjectVal(row)
		}
		records = cty.TupleVal(vals)
	}
	data, err := ctyjson.Marshal(records, records.Type())
	if err != nil {
		return nil, fmt.Errorf("failed to encode output frame: %w", err)
	}
	return &FrameReport{Columns: f.Columns(), Index: f.IndexNames(), Records: data}, nil
}
