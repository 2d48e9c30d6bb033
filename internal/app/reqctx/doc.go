// Package reqctx provides request-scoped side data that follows a logical
// request across goroutines and queues.
//
// # Request Contexts
//
// A RequestContext is a thread-safe store of named Data values: tracing
// spans, deadlines, per-request counters. Values embed Base, which carries a
// reference count shared by every context that holds the value:
//
//	rc := reqctx.Get(ctx)
//	rc.SetContextDataIfAbsent("tenant", &Tenant{ID: "acme"})
//
//	if t, ok := reqctx.Lookup[*Tenant](rc, "tenant"); ok {
//	    // ...
//	}
//
// SetContextData on a key that is already set clears the key and drops the
// new value instead of overwriting, and logs a warning the first time it
// happens for that key. Use SetContextDataIfAbsent when a value may already
// be present.
//
// # Flows and Slots
//
// Each execution flow has a Slot holding its current RequestContext. Slots
// travel in context.Context; a context.Context without one uses the
// process-wide DefaultSlot. Hand-offs are always explicit:
//
//	saved := reqctx.SaveContext(ctx)
//	go func() {
//	    ctx, slot := reqctx.NewFlow(ctx)
//	    g := reqctx.InstallScopeGuard(slot, saved)
//	    defer g.Close()
//
//	    work(ctx)
//	}()
//
// # Scope Guards
//
// NewScopeGuard installs a fresh context, NewShallowCopyScopeGuard installs a
// copy that shares every value with the current one. Both restore the
// previous context on Close:
//
//	g := reqctx.NewShallowCopyScopeGuardWith(slot, "deadline", tighter)
//	defer g.Close()
//
// Values shared between the outer and inner context do not see OnSet or
// OnUnset when the guard opens or closes; only replaced values do.
//
// # Lifetimes
//
// The context a guard creates belongs to that guard's scope. When the guard
// closes, the context's values are released, and a value no other context
// holds is destroyed right away. A flow that installs the context with
// InstallScopeGuard keeps it alive until its own guard closes; work that
// starts later, such as a queued job, takes a Hold first:
//
//	saved := reqctx.SaveContext(ctx)
//	release := saved.Hold()
//	queue.Push(func() {
//	    defer release()
//	    // install saved and run
//	})
//
// Contexts created with New or Create are not scoped. Their values are
// released when the context is garbage collected.
package reqctx
