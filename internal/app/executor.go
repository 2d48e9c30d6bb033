package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/jsamuelsen/go-reqctx/internal/app/reqctx"
)

// Operations run as an ordered list of named steps, conventionally
// validate, perform, verify, archive and respond. A step only runs once
// every step before it has succeeded, so nothing is archived that was not
// first verified.
//
// Each step runs inside a shallow copy of the caller's request context in
// which KeyExecutionStep names the running step. Everything else in the
// request context stays shared, and the caller's context is back in place
// once the step returns.

// ExecutionStep names a step of an operation.
type ExecutionStep string

const (
	StepValidate ExecutionStep = "validate"
	StepPerform  ExecutionStep = "perform"
	StepVerify   ExecutionStep = "verify"
	StepArchive  ExecutionStep = "archive"
	StepRespond  ExecutionStep = "respond"
)

// KeyExecutionStep is the request context key under which the running step
// is stored.
const KeyExecutionStep = "execution.step"

// stepPolicy says how a failing step is logged and reported.
type stepPolicy struct {
	level slog.Level
	// passthrough steps return their error as is.
	passthrough bool
}

var stepPolicies = map[ExecutionStep]stepPolicy{
	StepValidate: {level: slog.LevelWarn},
	StepPerform:  {level: slog.LevelError},
	StepVerify:   {level: slog.LevelError},
	StepArchive:  {level: slog.LevelError},
	StepRespond:  {level: slog.LevelWarn, passthrough: true},
}

func policyFor(step ExecutionStep) stepPolicy {
	if p, ok := stepPolicies[step]; ok {
		return p
	}

	return stepPolicy{level: slog.LevelError}
}

// Step is one stage of an operation. Steps share results through the
// variables their Run closures capture.
type Step struct {
	Name ExecutionStep
	Run  func(ctx context.Context) error
}

// StepInfo names the operation and step currently running.
type StepInfo struct {
	reqctx.Base

	Operation string
	Step      ExecutionStep
}

// CurrentStep returns the step running on ctx's flow, if any.
func CurrentStep(ctx context.Context) (*StepInfo, bool) {
	return reqctx.Lookup[*StepInfo](reqctx.Get(ctx), KeyExecutionStep)
}

// ExecutionError reports the operation step an error came from.
type ExecutionError struct {
	Operation string
	Step      ExecutionStep
	Cause     error
}

func (e *ExecutionError) Error() string {
	if e.Operation == "" {
		return fmt.Sprintf("%s failed: %v", e.Step, e.Cause)
	}

	return fmt.Sprintf("%s: %s failed: %v", e.Operation, e.Step, e.Cause)
}

func (e *ExecutionError) Unwrap() error {
	return e.Cause
}

// GetExecutionStep extracts the step from an execution error.
func GetExecutionStep(err error) (ExecutionStep, bool) {
	var execErr *ExecutionError
	if errors.As(err, &execErr) {
		return execErr.Step, true
	}

	return "", false
}

// Executor runs operations step by step and logs their progress.
type Executor struct {
	logger *slog.Logger
}

// NewExecutor creates a new executor with the given logger.
func NewExecutor(logger *slog.Logger) *Executor {
	if logger == nil {
		logger = slog.Default()
	}

	return &Executor{logger: logger}
}

// Run executes steps in order and stops at the first failure. Errors are
// wrapped in an ExecutionError naming operation and step, except for
// StepRespond whose errors are returned as is. Steps with a nil Run are
// skipped.
func (e *Executor) Run(ctx context.Context, operation string, steps ...Step) error {
	logger := e.logger.With(slog.String("operation", operation))
	start := time.Now()

	for _, step := range steps {
		if step.Run == nil {
			continue
		}

		if err := e.runStep(ctx, logger, operation, step); err != nil {
			return err
		}
	}

	logger.InfoContext(ctx, "operation completed", slog.Duration("duration", time.Since(start)))

	return nil
}

func (e *Executor) runStep(ctx context.Context, logger *slog.Logger, operation string, step Step) error {
	g := reqctx.NewShallowCopyScopeGuardWith(
		reqctx.SlotFromContext(ctx),
		KeyExecutionStep,
		&StepInfo{Operation: operation, Step: step.Name},
	)
	defer g.Close()

	logger = logger.With(slog.String("step", string(step.Name)))
	logger.DebugContext(ctx, "step started")

	err := step.Run(ctx)
	if err == nil {
		logger.DebugContext(ctx, "step done")
		return nil
	}

	p := policyFor(step.Name)
	logger.Log(ctx, p.level, "step failed", slog.Any("error", err))

	if p.passthrough {
		return err
	}

	return &ExecutionError{Operation: operation, Step: step.Name, Cause: err}
}
