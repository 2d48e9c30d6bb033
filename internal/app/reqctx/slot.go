package reqctx

import (
	"context"
	"sync"
	"sync/atomic"
)

// defaultContext is returned by a Slot that never had a context installed.
// It is shared by the whole process and never shallow copied.
var defaultContext = sync.OnceValue(func() *RequestContext {
	return New()
})

// defaultSlot serves contexts that carry no Slot of their own.
var defaultSlot = sync.OnceValue(func() *Slot {
	return NewSlot()
})

// Slot holds the current RequestContext of one execution flow.
//
// A flow is whatever the scheduler treats as one line of work: an HTTP
// request, a worker goroutine, a queued task. Contexts never move between
// slots on their own; the scheduler captures one with SaveContext and
// installs it elsewhere with SetContext or InstallScopeGuard.
type Slot struct {
	cur  atomic.Pointer[RequestContext]
	opts *options
}

// NewSlot creates a slot with nothing installed. Options apply to every
// context the slot creates.
func NewSlot(opts ...Option) *Slot {
	return &Slot{opts: newOptions(opts...)}
}

// DefaultSlot returns the process-wide slot used when a context.Context
// carries none.
func DefaultSlot() *Slot {
	return defaultSlot()
}

// Create installs a new empty RequestContext.
func (s *Slot) Create() {
	s.SetContext(newRequestContextFrom(s.opts))
}

// Get returns the installed context, or the process-wide default context if
// none was ever installed.
func (s *Slot) Get() *RequestContext {
	if rc := s.cur.Load(); rc != nil {
		return rc
	}

	return defaultContext()
}

// SaveContext returns the installed context so it can be handed to another
// flow.
func (s *Slot) SaveContext() *RequestContext {
	return s.Get()
}

// SetContext installs rc and returns the previously installed context.
// A nil rc installs the default context.
//
// Callback-bearing values only in the outgoing context get OnUnset, values
// only in rc get OnSet. Values both share are left alone.
func (s *Slot) SetContext(rc *RequestContext) *RequestContext {
	if rc == nil {
		rc = defaultContext()
	}

	prev := s.cur.Swap(rc)
	if prev == nil {
		prev = defaultContext()
	}

	switchContexts(prev, rc)

	return prev
}

// SetShallowCopyContext installs a shallow copy of the current context and
// returns the previous one so it can be restored later.
func (s *Slot) SetShallowCopyContext() *RequestContext {
	return s.SetContext(s.shallowCopy())
}

// shallowCopy copies the installed context. The default context is never
// copied; an empty context stands in for it.
func (s *Slot) shallowCopy() *RequestContext {
	parent := s.Get()
	if parent == defaultContext() {
		return newRequestContextFrom(s.opts)
	}

	return parent.shallowCopy()
}

func newRequestContextFrom(opts *options) *RequestContext {
	return newRequestContext(opts, newState(0))
}

type slotKey struct{}

// WithSlot returns a copy of ctx carrying s.
func WithSlot(ctx context.Context, s *Slot) context.Context {
	return context.WithValue(ctx, slotKey{}, s)
}

// SlotFromContext returns the Slot carried by ctx, or DefaultSlot.
func SlotFromContext(ctx context.Context) *Slot {
	if ctx != nil {
		if s, ok := ctx.Value(slotKey{}).(*Slot); ok {
			return s
		}
	}

	return DefaultSlot()
}

// NewFlow starts a new execution flow derived from ctx. The returned context
// carries a fresh Slot with nothing installed; it inherits the options of
// the parent flow's slot.
func NewFlow(ctx context.Context) (context.Context, *Slot) {
	s := &Slot{opts: SlotFromContext(ctx).opts}

	return WithSlot(ctx, s), s
}

// Create installs a new empty RequestContext in the flow of ctx.
func Create(ctx context.Context) {
	SlotFromContext(ctx).Create()
}

// Get returns the RequestContext installed in the flow of ctx.
func Get(ctx context.Context) *RequestContext {
	return SlotFromContext(ctx).Get()
}

// SaveContext captures the RequestContext of the flow of ctx.
func SaveContext(ctx context.Context) *RequestContext {
	return SlotFromContext(ctx).SaveContext()
}

// SetContext installs rc in the flow of ctx and returns the previous context.
func SetContext(ctx context.Context, rc *RequestContext) *RequestContext {
	return SlotFromContext(ctx).SetContext(rc)
}
