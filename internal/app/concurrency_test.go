package app

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jsamuelsen/go-reqctx/internal/app/payload"
	"github.com/jsamuelsen/go-reqctx/internal/app/reqctx"
)

// requestFlow returns a context whose flow has a fresh store holding a
// request id.
func requestFlow(t *testing.T, id string) (context.Context, *reqctx.Slot) {
	t.Helper()

	ctx, slot := reqctx.NewFlow(context.Background())
	slot.Create()
	slot.Get().SetContextData(payload.KeyRequestID, payload.NewRequestID(id))

	return ctx, slot
}

func seenRequestID(ctx context.Context) (string, error) {
	return payload.RequestIDOf(reqctx.Get(ctx)), nil
}

func TestGo_PropagatesRequestContext(t *testing.T) {
	ctx, slot := requestFlow(t, "req-1")

	var (
		seen       string
		sameSlot   bool
		workerSlot *reqctx.Slot
	)

	wait := Go(ctx, func(ctx context.Context) error {
		workerSlot = reqctx.SlotFromContext(ctx)
		sameSlot = workerSlot == slot
		seen = payload.RequestIDOf(reqctx.Get(ctx))

		return nil
	})

	require.NoError(t, wait())
	require.NoError(t, wait(), "wait may be called again")

	assert.Equal(t, "req-1", seen)
	assert.False(t, sameSlot, "task runs on its own flow")
	assert.Empty(t, payload.RequestIDOf(workerSlot.Get()), "worker flow restored after the task")
}

func TestGo_ReturnsError(t *testing.T) {
	errBoom := errors.New("boom")

	wait := Go(context.Background(), func(context.Context) error { return errBoom })
	assert.ErrorIs(t, wait(), errBoom)
}

func TestGo_CapturesAtCallTime(t *testing.T) {
	ctx, slot := requestFlow(t, "req-1")

	release := make(chan struct{})
	wait := Go(ctx, func(ctx context.Context) error {
		<-release
		return nil
	})

	saved := slot.SaveContext()

	var seen string

	wait2 := Go(ctx, func(ctx context.Context) error {
		seen = payload.RequestIDOf(reqctx.Get(ctx))
		return nil
	})

	slot.SetContext(reqctx.New())
	close(release)

	require.NoError(t, wait())
	require.NoError(t, wait2())
	assert.Equal(t, "req-1", seen)
	assert.Equal(t, "req-1", payload.RequestIDOf(saved))
}

func TestGo_HoldsScopedContextPastCallerScope(t *testing.T) {
	ctx, slot := reqctx.NewFlow(context.Background())

	g := reqctx.NewScopeGuard(slot)
	slot.Get().SetContextData(payload.KeyRequestID, payload.NewRequestID("req-7"))

	start := make(chan struct{})

	var seen string

	wait := Go(ctx, func(ctx context.Context) error {
		<-start
		seen = payload.RequestIDOf(reqctx.Get(ctx))

		return nil
	})

	g.Close()
	close(start)

	require.NoError(t, wait())
	assert.Equal(t, "req-7", seen)
}

func TestParallelLimit_PropagatesRequestContext(t *testing.T) {
	ctx, _ := requestFlow(t, "req-1")

	results, err := ParallelLimit(ctx, -1, seenRequestID, seenRequestID, seenRequestID)
	require.NoError(t, err)
	assert.Equal(t, []string{"req-1", "req-1", "req-1"}, results)
}

func TestParallelLimit_FirstErrorCancels(t *testing.T) {
	errBoom := errors.New("boom")

	_, err := ParallelLimit(context.Background(), -1,
		func(context.Context) (int, error) { return 0, errBoom },
		func(ctx context.Context) (int, error) {
			<-ctx.Done()
			return 0, ctx.Err()
		},
	)

	require.ErrorIs(t, err, errBoom)
	assert.Contains(t, err.Error(), "parallel execution failed")
}

func TestParallelLimit_BoundsConcurrency(t *testing.T) {
	ctx, _ := requestFlow(t, "req-3")

	var (
		running atomic.Int32
		peak    atomic.Int32
	)

	fns := make([]func(context.Context) (string, error), 10)
	for i := range fns {
		fns[i] = func(ctx context.Context) (string, error) {
			n := running.Add(1)
			defer running.Add(-1)

			for {
				p := peak.Load()
				if n <= p || peak.CompareAndSwap(p, n) {
					break
				}
			}

			return seenRequestID(ctx)
		}
	}

	results, err := ParallelLimit(ctx, 2, fns...)
	require.NoError(t, err)
	assert.LessOrEqual(t, peak.Load(), int32(2))

	for _, r := range results {
		assert.Equal(t, "req-3", r)
	}
}

func TestParallelPartial_CollectsErrors(t *testing.T) {
	ctx, _ := requestFlow(t, "req-4")
	errBoom := errors.New("boom")

	results := ParallelPartial(ctx,
		seenRequestID,
		func(context.Context) (string, error) { return "", errBoom },
	)

	require.Len(t, results, 2)
	assert.Equal(t, "req-4", results[0].Value)
	require.NoError(t, results[0].Err)
	assert.ErrorIs(t, results[1].Err, errBoom)

	limited := ParallelPartialLimit(ctx, 1, seenRequestID, seenRequestID)
	assert.Equal(t, "req-4", limited[1].Value)
}

func TestHelpers_DoNotDisturbCallerFlow(t *testing.T) {
	ctx, slot := requestFlow(t, "req-6")
	before := slot.Get()

	_, err := ParallelLimit(ctx, 1, func(ctx context.Context) (int, error) {
		reqctx.SetContext(ctx, reqctx.New())
		return 0, nil
	})

	require.NoError(t, err)
	assert.Same(t, before, slot.Get())
}
