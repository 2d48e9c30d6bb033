package app

import (
	"context"
	"fmt"
	"sync"

	"golang.org/x/sync/errgroup"

	"github.com/jsamuelsen/go-reqctx/internal/app/reqctx"
)

// Request contexts do not follow goroutines on their own. Every helper in
// this file captures the caller's request context before starting a
// goroutine and installs it on a fresh flow inside that goroutine, restoring
// the flow when the goroutine's work is done. Functions passed in receive a
// context.Context whose slot already holds the caller's request context:
//
//	ids, err := ParallelLimit(ctx, 4,
//	    func(ctx context.Context) (string, error) {
//	        return payload.RequestIDOf(reqctx.Get(ctx)), nil
//	    },
//	)

// handOff saves the request context current on ctx and returns a runner that
// calls fn on a new flow with that context installed. The saved context is
// held from the moment of the call, so it outlives the caller's scope until
// the runner is done with it.
func handOff(ctx context.Context) func(fn func(context.Context)) {
	saved := reqctx.SaveContext(ctx)
	release := saved.Hold()

	return func(fn func(context.Context)) {
		defer release()

		flowCtx, slot := reqctx.NewFlow(ctx)

		g := reqctx.InstallScopeGuard(slot, saved)
		defer g.Close()

		fn(flowCtx)
	}
}

// Go runs fn on its own goroutine with the caller's request context and
// returns a function that waits for fn and returns its error. The wait
// function may be called any number of times.
func Go(ctx context.Context, fn func(context.Context) error) func() error {
	run := handOff(ctx)
	done := make(chan error, 1)

	go func() {
		var err error

		defer func() { done <- err }()

		run(func(ctx context.Context) { err = fn(ctx) })
	}()

	return sync.OnceValue(func() error { return <-done })
}

// ParallelLimit executes functions with bounded concurrency and returns on
// the first error, canceling the rest. At most 'limit' goroutines run
// simultaneously; a negative limit means no bound.
//
// Example:
//
//	results, err := ParallelLimit(ctx, 5, taskFuncs...)
func ParallelLimit[T any](
	ctx context.Context,
	limit int,
	fns ...func(context.Context) (T, error),
) ([]T, error) {
	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(limit)

	results := make([]T, len(fns))

	for i, fn := range fns {
		run := handOff(ctx)

		g.Go(func() error {
			var err error

			run(func(ctx context.Context) {
				var result T

				result, err = fn(ctx)
				if err == nil {
					results[i] = result
				}
			})

			return err
		})
	}

	err := g.Wait()
	if err != nil {
		return nil, fmt.Errorf("parallel execution failed: %w", err)
	}

	return results, nil
}

// PartialResult holds a result or an error for partial success patterns.
type PartialResult[T any] struct {
	Value T
	Err   error
}

// ParallelPartial executes functions and collects all results, even on partial failure.
// Unlike ParallelLimit, this does not cancel on first error.
func ParallelPartial[T any](
	ctx context.Context,
	fns ...func(context.Context) (T, error),
) []PartialResult[T] {
	return ParallelPartialLimit(ctx, len(fns), fns...)
}

// ParallelPartialLimit executes functions with bounded concurrency, collecting all results.
func ParallelPartialLimit[T any](
	ctx context.Context,
	limit int,
	fns ...func(context.Context) (T, error),
) []PartialResult[T] {
	results := make([]PartialResult[T], len(fns))
	sem := make(chan struct{}, max(limit, 1))

	var wg sync.WaitGroup

	for i, fn := range fns {
		run := handOff(ctx)

		wg.Go(func() {
			sem <- struct{}{}

			defer func() { <-sem }()

			run(func(ctx context.Context) {
				value, err := fn(ctx)
				results[i] = PartialResult[T]{Value: value, Err: err}
			})
		})
	}

	wg.Wait()

	return results
}
