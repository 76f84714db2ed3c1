package pipeline

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/zclconf/go-cty/cty"

	"github.com/vk/blueetlcore/internal/cache"
	"github.com/vk/blueetlcore/internal/dispatcher"
	"github.com/vk/blueetlcore/internal/frame"
	"github.com/vk/blueetlcore/internal/testutil"
)

func setup(t *testing.T, jobs int) (*Orchestrator, *dispatcher.Dispatcher) {
	t.Helper()
	logger, _ := testutil.NewLogger(t)
	d := dispatcher.New(dispatcher.Config{JobCount: jobs}, dispatcher.WithLogger(logger))
	t.Cleanup(d.Close)
	c := cache.New(d, cache.WithLogger(logger))
	return New(c, d, WithLogger(logger)), d
}

func input(t *testing.T) *frame.Frame {
	t.Helper()
	f, err := frame.FromRecords([]map[string]any{
		{"gid": 0, "window": "w1", "value": 1.5},
		{"gid": 1, "window": "w1", "value": 2.5},
		{"gid": 2, "window": "w2", "value": 3.5},
	}, "gid", "window", "value")
	require.NoError(t, err)
	f, err = f.WithIndex("gid")
	require.NoError(t, err)
	return f
}

// withConstant returns a step adding a column filled with v.
func withConstant(name string, v cty.Value, calls *atomic.Int32) Step {
	return Step{
		Name: "add_" + name,
		Args: []any{name, v},
		Fn: func(ctx context.Context, in *frame.Frame, args ...any) (*frame.Frame, error) {
			if calls != nil {
				calls.Add(1)
			}
			values := make([]cty.Value, in.Len())
			for i := range values {
				values[i] = args[1].(cty.Value)
			}
			return in.WithColumn(frame.Column{Name: args[0].(string), Values: values})
		},
	}
}

func failing(err error, calls *atomic.Int32) Step {
	return Step{
		Name: "broken",
		Fn: func(ctx context.Context, in *frame.Frame, args ...any) (*frame.Frame, error) {
			calls.Add(1)
			return nil, err
		},
	}
}

func TestRunChainsSteps(t *testing.T) {
	for _, jobs := range []int{1, 4} {
		o, _ := setup(t, jobs)
		res := o.Run(context.Background(), input(t), []Step{
			withConstant("a", cty.NumberIntVal(1), nil),
			withConstant("b", cty.StringVal("x"), nil),
		})

		require.NoError(t, res.Err())
		assert.Equal(t, Done, res.Status)
		assert.NotEqual(t, uuid.Nil, res.RunID)
		require.Len(t, res.Steps, 2)
		for i, sr := range res.Steps {
			assert.Equal(t, i, sr.Index)
			assert.Equal(t, StepDone, sr.Status)
			assert.False(t, sr.FromCache)
			assert.NotEmpty(t, sr.Fingerprint)
		}
		assert.Equal(t, []string{"gid", "window", "value", "a"}, res.Steps[0].Output.Columns())
		assert.Equal(t, []string{"gid", "window", "value", "a", "b"}, res.Output().Columns())
		assert.Equal(t, []string{"gid"}, res.Output().IndexNames())
	}
}

func TestFailureSkipsRemainingSteps(t *testing.T) {
	o, _ := setup(t, 3)
	boom := errors.New("boom")
	var brokenCalls, lastCalls atomic.Int32

	res := o.Run(context.Background(), input(t), []Step{
		withConstant("a", cty.NumberIntVal(1), nil),
		withConstant("b", cty.NumberIntVal(2), nil),
		failing(boom, &brokenCalls),
		withConstant("c", cty.NumberIntVal(3), &lastCalls),
	})

	assert.Equal(t, Failed, res.Status)
	require.NotNil(t, res.Failure)
	assert.Equal(t, 2, res.Failure.Index)
	assert.Equal(t, "broken", res.Failure.Step)
	assert.Equal(t, KindWorkerExecution, res.Failure.Kind())

	err := res.Err()
	assert.ErrorIs(t, err, ErrStepFailure)
	assert.ErrorIs(t, err, dispatcher.ErrWorkerExecution)
	assert.ErrorIs(t, err, boom)

	assert.Equal(t, StepDone, res.Steps[0].Status)
	assert.Equal(t, StepDone, res.Steps[1].Status)
	assert.NotNil(t, res.Steps[0].Output)
	assert.NotNil(t, res.Steps[1].Output)
	assert.Equal(t, StepFailed, res.Steps[2].Status)
	assert.Equal(t, StepSkipped, res.Steps[3].Status)
	assert.Nil(t, res.Steps[3].Output)

	assert.Equal(t, int32(1), brokenCalls.Load())
	assert.Zero(t, lastCalls.Load())
	assert.Same(t, res.Steps[1].Output, res.Output())
}

func TestWarmCacheRerun(t *testing.T) {
	o, d := setup(t, 2)
	var calls atomic.Int32
	steps := []Step{
		withConstant("a", cty.NumberIntVal(1), &calls),
		withConstant("b", cty.NumberIntVal(2), &calls),
	}

	first := o.Run(context.Background(), input(t), steps)
	require.NoError(t, first.Err())
	submitted := d.Stats().Submitted
	assert.Equal(t, int64(2), submitted)

	second := o.Run(context.Background(), input(t), steps)
	require.NoError(t, second.Err())
	assert.Equal(t, submitted, d.Stats().Submitted, "a warm rerun dispatches nothing")
	assert.Equal(t, int32(2), calls.Load())
	assert.NotEqual(t, first.RunID, second.RunID)

	for i := range steps {
		assert.True(t, second.Steps[i].FromCache)
		assert.Equal(t, first.Steps[i].Fingerprint, second.Steps[i].Fingerprint)
	}
	assert.True(t, first.Output().Equal(second.Output()))
}

func TestArgumentsChangeFingerprint(t *testing.T) {
	o, d := setup(t, 1)
	one := o.Run(context.Background(), input(t), []Step{withConstant("a", cty.NumberIntVal(1), nil)})
	two := o.Run(context.Background(), input(t), []Step{withConstant("a", cty.NumberIntVal(2), nil)})
	require.NoError(t, one.Err())
	require.NoError(t, two.Err())
	assert.NotEqual(t, one.Steps[0].Fingerprint, two.Steps[0].Fingerprint)
	assert.Equal(t, int64(2), d.Stats().Submitted)
}

func TestInputSchemaMismatchReportsEveryField(t *testing.T) {
	o, d := setup(t, 2)
	var calls atomic.Int32
	step := withConstant("a", cty.NumberIntVal(1), &calls)
	step.Input = frame.NewSchema(
		frame.Field{Name: "gid", Kind: frame.Integer, Index: true},
		frame.Field{Name: "circuit_id", Kind: frame.Integer},
		frame.Field{Name: "neuron_class", Kind: frame.String},
	)

	res := o.Run(context.Background(), input(t), []Step{step})
	require.NotNil(t, res.Failure)
	assert.Equal(t, KindSchemaMismatch, res.Failure.Kind())

	var mismatch *frame.SchemaMismatchError
	require.ErrorAs(t, res.Err(), &mismatch)
	assert.Equal(t, []string{"circuit_id", "neuron_class"}, mismatch.Fields())
	assert.Zero(t, calls.Load())
	assert.Zero(t, d.Stats().Submitted)
}

func TestOutputSchemaViolationIsNotRetried(t *testing.T) {
	o, _ := setup(t, 2)
	var calls atomic.Int32
	step := withConstant("a", cty.StringVal("not a number"), &calls)
	step.Retries = 3
	step.Output = frame.NewSchema(frame.Field{Name: "a", Kind: frame.Float})

	res := o.Run(context.Background(), input(t), []Step{step})
	require.NotNil(t, res.Failure)
	assert.Equal(t, KindSchemaMismatch, res.Failure.Kind())
	assert.Equal(t, int32(1), calls.Load())
}

func TestCoerceInput(t *testing.T) {
	o, _ := setup(t, 1)
	var seen *frame.Frame
	step := Step{
		Name:   "capture",
		Coerce: true,
		Input:  frame.NewSchema(frame.Field{Name: "value", Kind: frame.String}),
		Fn: func(ctx context.Context, in *frame.Frame, args ...any) (*frame.Frame, error) {
			seen = in
			return in, nil
		},
	}

	res := o.Run(context.Background(), input(t), []Step{step})
	require.NoError(t, res.Err())
	values, ok := seen.Column("value")
	require.True(t, ok)
	assert.Equal(t, cty.String, values[0].Type())
}

func TestCancelledRunStopsAtBoundary(t *testing.T) {
	o, d := setup(t, 2)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	var calls atomic.Int32

	res := o.Run(ctx, input(t), []Step{
		withConstant("a", cty.NumberIntVal(1), &calls),
		withConstant("b", cty.NumberIntVal(2), &calls),
	})
	require.NotNil(t, res.Failure)
	assert.Equal(t, 0, res.Failure.Index)
	assert.Equal(t, KindCancelled, res.Failure.Kind())
	assert.ErrorIs(t, res.Err(), context.Canceled)
	assert.Equal(t, StepFailed, res.Steps[0].Status)
	assert.Equal(t, StepSkipped, res.Steps[1].Status)
	assert.Zero(t, calls.Load())
	assert.Zero(t, d.Stats().Submitted)
}

func TestUnhashableArguments(t *testing.T) {
	o, _ := setup(t, 1)
	step := withConstant("a", cty.NumberIntVal(1), nil)
	step.Args = append(step.Args, func() {})

	res := o.Run(context.Background(), input(t), []Step{step})
	require.NotNil(t, res.Failure)
	assert.Equal(t, KindUnhashableInput, res.Failure.Kind())
}

func TestInvalidSteps(t *testing.T) {
	o, _ := setup(t, 1)

	res := o.Run(context.Background(), input(t), []Step{{Name: "empty"}})
	require.NotNil(t, res.Failure)
	assert.Equal(t, KindInvalidStep, res.Failure.Kind())

	nilOutput := Step{Name: "nil", Fn: func(ctx context.Context, in *frame.Frame, args ...any) (*frame.Frame, error) {
		return nil, nil
	}}
	res = o.Run(context.Background(), input(t), []Step{nilOutput})
	require.NotNil(t, res.Failure)
	assert.ErrorIs(t, res.Err(), errNoFrame)
}

func TestEmptyPipeline(t *testing.T) {
	o, _ := setup(t, 1)
	res := o.Run(context.Background(), input(t), nil)
	assert.Equal(t, Done, res.Status)
	assert.Nil(t, res.Output())
	assert.NoError(t, res.Err())
}

func TestGroupApply(t *testing.T) {
	o, _ := setup(t, 4)
	var groups atomic.Int32
	count := func(ctx context.Context, in *frame.Frame, args ...any) (*frame.Frame, error) {
		groups.Add(1)
		values := make([]cty.Value, in.Len())
		for i := range values {
			values[i] = cty.NumberIntVal(int64(in.Len()))
		}
		return in.WithColumn(frame.Column{Name: "size", Values: values})
	}

	res := o.Run(context.Background(), input(t), []Step{{
		Name:      "sizes",
		Operation: "group_size",
		Fn:        o.GroupApply([]string{"window"}, count),
	}})
	require.NoError(t, res.Err())
	assert.Equal(t, int32(2), groups.Load())

	out := res.Output()
	require.Equal(t, 3, out.Len())
	sizes, _ := out.Column("size")
	windows, _ := out.Column("window")
	assert.Equal(t, cty.StringVal("w1"), windows[0])
	assert.Equal(t, cty.StringVal("w2"), windows[2])
	assert.True(t, sizes[0].RawEquals(cty.NumberIntVal(2)))
	assert.True(t, sizes[2].RawEquals(cty.NumberIntVal(1)))
}

func TestGroupApplyPropagatesErrors(t *testing.T) {
	boom := errors.New("boom")
	fn := GroupApply([]string{"window"}, 2, func(ctx context.Context, in *frame.Frame, args ...any) (*frame.Frame, error) {
		return nil, boom
	})
	_, err := fn(context.Background(), input(t))
	assert.ErrorIs(t, err, boom)

	_, err = GroupApply([]string{"missing"}, 2, fn)(context.Background(), input(t))
	assert.Error(t, err)
}
