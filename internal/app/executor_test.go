package app

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jsamuelsen/go-reqctx/internal/app/payload"
	"github.com/jsamuelsen/go-reqctx/internal/app/reqctx"
)

type stepTrace struct {
	steps     []ExecutionStep
	requestID []string
}

func (s *stepTrace) record(ctx context.Context) {
	if info, ok := CurrentStep(ctx); ok {
		s.steps = append(s.steps, info.Step)
	}

	s.requestID = append(s.requestID, payload.RequestIDOf(reqctx.Get(ctx)))
}

func tracedSteps(trace *stepTrace, names ...ExecutionStep) []Step {
	steps := make([]Step, len(names))
	for i, name := range names {
		steps[i] = Step{Name: name, Run: func(ctx context.Context) error {
			trace.record(ctx)
			return nil
		}}
	}

	return steps
}

var allSteps = []ExecutionStep{StepValidate, StepPerform, StepVerify, StepArchive, StepRespond}

func TestExecutor_RunsEachStepInShallowCopy(t *testing.T) {
	ctx, slot := requestFlow(t, "req-1")
	before := slot.Get()

	trace := &stepTrace{}
	err := NewExecutor(nil).Run(ctx, "double", tracedSteps(trace, allSteps...)...)

	require.NoError(t, err)
	assert.Equal(t, allSteps, trace.steps)
	assert.Equal(t, []string{"req-1", "req-1", "req-1", "req-1", "req-1"}, trace.requestID)

	assert.Same(t, before, slot.Get())
	assert.False(t, slot.Get().HasContextData(KeyExecutionStep))
}

func TestExecutor_StepsShareResults(t *testing.T) {
	var performed, verified int

	err := NewExecutor(nil).Run(context.Background(), "double",
		Step{Name: StepPerform, Run: func(context.Context) error {
			performed = 21 * 2
			return nil
		}},
		Step{Name: StepVerify, Run: func(context.Context) error {
			if performed != 42 {
				return errors.New("mismatch")
			}

			verified = performed

			return nil
		}},
	)

	require.NoError(t, err)
	assert.Equal(t, 42, verified)
}

func TestExecutor_StepNamesOperation(t *testing.T) {
	ctx, _ := requestFlow(t, "req-1")

	var got *StepInfo

	err := NewExecutor(nil).Run(ctx, "inspect", Step{Name: StepPerform, Run: func(ctx context.Context) error {
		got, _ = CurrentStep(ctx)
		return nil
	}})

	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, "inspect", got.Operation)
	assert.Equal(t, StepPerform, got.Step)
}

func TestExecutor_DefaultStoreStaysClean(t *testing.T) {
	ctx, slot := reqctx.NewFlow(context.Background())

	trace := &stepTrace{}
	require.NoError(t, NewExecutor(nil).Run(ctx, "bare", tracedSteps(trace, StepPerform)...))
	assert.Equal(t, []ExecutionStep{StepPerform}, trace.steps)
	assert.False(t, slot.Get().HasContextData(KeyExecutionStep))
}

func TestExecutor_SkipsNilSteps(t *testing.T) {
	trace := &stepTrace{}
	steps := append([]Step{{Name: StepValidate}}, tracedSteps(trace, StepPerform)...)

	require.NoError(t, NewExecutor(nil).Run(context.Background(), "sparse", steps...))
	assert.Equal(t, []ExecutionStep{StepPerform}, trace.steps)
}

func TestExecutor_StepErrors(t *testing.T) {
	errBoom := errors.New("boom")

	for _, failing := range []ExecutionStep{StepValidate, StepPerform, StepVerify, StepArchive, "reconcile"} {
		t.Run(string(failing), func(t *testing.T) {
			ctx, slot := requestFlow(t, "req-1")
			before := slot.Get()

			trace := &stepTrace{}
			steps := []Step{{Name: failing, Run: func(context.Context) error { return errBoom }}}
			steps = append(steps, tracedSteps(trace, StepRespond)...)

			err := NewExecutor(nil).Run(ctx, "op", steps...)
			require.ErrorIs(t, err, errBoom)
			assert.Empty(t, trace.steps, "later steps do not run")

			step, ok := GetExecutionStep(err)
			require.True(t, ok)
			assert.Equal(t, failing, step)
			assert.Same(t, before, slot.Get(), "caller store restored after failure")
		})
	}
}

func TestExecutor_RespondErrorIsNotWrapped(t *testing.T) {
	errBoom := errors.New("boom")

	err := NewExecutor(nil).Run(context.Background(), "op",
		Step{Name: StepRespond, Run: func(context.Context) error { return errBoom }})

	assert.Same(t, errBoom, err)

	_, ok := GetExecutionStep(err)
	assert.False(t, ok)
}

func TestExecutionError_Message(t *testing.T) {
	assert.Equal(t, "batch.task: perform failed: boom",
		(&ExecutionError{Operation: "batch.task", Step: StepPerform, Cause: errors.New("boom")}).Error())
	assert.Equal(t, "verify failed: mismatch",
		(&ExecutionError{Step: StepVerify, Cause: errors.New("mismatch")}).Error())

	_, ok := GetExecutionStep(errors.New("plain"))
	assert.False(t, ok)
}
