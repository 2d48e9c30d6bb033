package reqctx

import (
	"fmt"
	"sync/atomic"
)

// Data is one named piece of request data held by a RequestContext.
//
// Implementations embed Base, which supplies the reference count and no-op
// callbacks, and override what they need:
//
//	type Tenant struct {
//	    reqctx.Base
//	    ID string
//	}
//
// OnSet and OnUnset only run when HasCallback returns true, and HasCallback
// must give the same answer for the lifetime of the value.
//
// OnSet and OnUnset must not call SetContextData, SetContextDataIfAbsent or
// ClearContextData on the context that is transitioning. Reading it is fine.
//
// Contexts track values by their Base, so a Data need not be comparable.
type Data interface {
	// HasCallback reports whether OnSet and OnUnset should be invoked.
	HasCallback() bool

	// OnSet runs when the value becomes active in a context.
	OnSet()

	// OnUnset runs when the value stops being active in a context.
	OnUnset()

	base() *Base
}

// Destroyer is implemented by Data that must release resources once no
// context references it anymore. Destroy runs exactly once, on the goroutine
// that released the last handle: usually the one closing a scope guard, or a
// background goroutine for contexts that were garbage collected.
type Destroyer interface {
	Destroy()
}

// Base carries the intrusive reference count shared by every context that
// holds the same Data value. Embed it by value and use the outer type by
// pointer.
type Base struct {
	_ noCopy

	refs      atomic.Int32
	finalized atomic.Bool
}

// HasCallback returns false. Override it to receive OnSet and OnUnset.
func (b *Base) HasCallback() bool { return false }

// OnSet does nothing by default.
func (b *Base) OnSet() {}

// OnUnset does nothing by default.
func (b *Base) OnUnset() {}

// Refs returns the number of owning handles currently held by contexts.
func (b *Base) Refs() int32 {
	return b.refs.Load()
}

// Finalized reports whether the value has been released by its last holder.
func (b *Base) Finalized() bool {
	return b.finalized.Load()
}

func (b *Base) base() *Base { return b }

// retain creates a new owning handle to d.
func retain(d Data) {
	d.base().refs.Add(1)
}

// release drops one owning handle to d and finalizes it when it was the last.
func release(d Data) {
	n := d.base().refs.Add(-1)
	if n < 0 {
		panic(fmt.Sprintf("reqctx: %T released more times than retained", d))
	}

	if n == 0 {
		finalize(d)
	}
}

// discard finalizes a value the caller handed over but no context kept.
func discard(d Data) {
	if d == nil || d.base().refs.Load() != 0 {
		return
	}

	finalize(d)
}

func finalize(d Data) {
	if !d.base().finalized.CompareAndSwap(false, true) {
		return
	}

	if destroyer, ok := d.(Destroyer); ok {
		destroyer.Destroy()
	}
}

// noCopy may be embedded into structs which must not be copied after first
// use. See https://golang.org/issues/8005#issuecomment-190753527.
type noCopy struct{}

// Lock is a no-op used by the go vet copylocks checker.
func (*noCopy) Lock() {}

// Unlock is a no-op used by the go vet copylocks checker.
func (*noCopy) Unlock() {}
