package app

import (
	"context"
	"errors"

	"github.com/jsamuelsen/go-reqctx/internal/app/payload"
	"github.com/jsamuelsen/go-reqctx/internal/app/reqctx"
)

// ContextCheck is a ports.HealthChecker that exercises request context
// hand-off: it installs a fresh store on a new flow, reads it back from
// several goroutines started with ParallelPartial, and verifies the flow's
// previous store is restored afterwards.
type ContextCheck struct {
	// Readers is the number of goroutines that read the store back.
	// Values below one mean one.
	Readers int
}

// Name implements ports.HealthChecker.
func (ContextCheck) Name() string {
	return "reqctx"
}

// Check implements ports.HealthChecker.
func (c ContextCheck) Check(ctx context.Context) error {
	flowCtx, slot := reqctx.NewFlow(ctx)
	before := slot.Get()
	marker := payload.NewRequestID("")

	readers := make([]func(context.Context) (string, error), max(c.Readers, 1))
	for i := range readers {
		readers[i] = func(ctx context.Context) (string, error) {
			if err := ctx.Err(); err != nil {
				return "", err
			}

			return payload.RequestIDOf(reqctx.Get(ctx)), nil
		}
	}

	results := func() []PartialResult[string] {
		g := reqctx.NewScopeGuard(slot)
		defer g.Close()

		slot.Get().SetContextData(payload.KeyRequestID, marker)

		return ParallelPartial(flowCtx, readers...)
	}()

	var errs []error

	for _, r := range results {
		switch {
		case r.Err != nil:
			errs = append(errs, r.Err)
		case r.Value != marker.String():
			errs = append(errs, errors.New("request context was not handed off"))
		}
	}

	if err := errors.Join(errs...); err != nil {
		return err
	}

	if slot.Get() != before {
		return errors.New("request context was not restored")
	}

	return ctx.Err()
}
