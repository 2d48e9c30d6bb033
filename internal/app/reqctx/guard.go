package reqctx

import "sync/atomic"

// Guard states. A guard becomes active when it is constructed and restored
// on its first Close; it never goes back.
const (
	guardActive int32 = iota
	guardRestored
)

// ScopeGuard installs a context in a Slot and puts the previous one back on
// Close. Use it with defer so the previous context comes back on every exit
// path, panics included:
//
//	g := reqctx.NewScopeGuard(slot)
//	defer g.Close()
//
// Note that a fresh guard hides every value of the outer context for the
// duration of the scope. ShallowCopyScopeGuard keeps them.
//
// The context a guard creates is scoped to it: Close releases its values
// unless another flow still has it installed through InstallScopeGuard or
// holds it with Hold.
type ScopeGuard struct {
	_ noCopy

	slot  *Slot
	prev  *RequestContext
	held  *RequestContext
	state atomic.Int32
}

// NewScopeGuard installs a new empty RequestContext in s.
func NewScopeGuard(s *Slot) *ScopeGuard {
	rc := newRequestContextFrom(s.opts).own()

	return &ScopeGuard{slot: s, prev: s.SetContext(rc), held: rc}
}

// InstallScopeGuard installs rc, typically captured on another flow with
// SaveContext, in s. A scoped rc keeps its values until this guard closes.
func InstallScopeGuard(s *Slot, rc *RequestContext) *ScopeGuard {
	if rc != nil {
		rc.hold()
	}

	return &ScopeGuard{slot: s, prev: s.SetContext(rc), held: rc}
}

// Close restores the context that was installed before the guard. Calls
// after the first do nothing.
func (g *ScopeGuard) Close() {
	if !g.state.CompareAndSwap(guardActive, guardRestored) {
		return
	}

	g.slot.SetContext(g.prev)
	g.prev = nil

	if g.held != nil {
		g.held.drop()
		g.held = nil
	}
}

// ShallowCopyScopeGuard installs a shallow copy of the current context, so
// every value of the outer context stays visible while individual keys can be
// replaced for the scope. Only replaced values fire OnSet and OnUnset.
//
// The copy is scoped to the guard the same way a ScopeGuard's context is.
type ShallowCopyScopeGuard struct {
	_ noCopy

	slot  *Slot
	prev  *RequestContext
	child *RequestContext
	state atomic.Int32
}

// NewShallowCopyScopeGuard installs a shallow copy of the context in s.
func NewShallowCopyScopeGuard(s *Slot) *ShallowCopyScopeGuard {
	child := s.shallowCopy().own()

	return &ShallowCopyScopeGuard{slot: s, prev: s.SetContext(child), child: child}
}

// NewShallowCopyScopeGuardWith installs a shallow copy of the context in s
// and replaces the value under key with d. It is cheaper than clearing and
// setting the key after NewShallowCopyScopeGuard: the old value gets one
// OnUnset and d one OnSet.
func NewShallowCopyScopeGuardWith(s *Slot, key string, d Data) *ShallowCopyScopeGuard {
	g := NewShallowCopyScopeGuard(s)
	g.child.overwriteContextData(key, d)

	return g
}

// Close restores the context that was installed before the guard and
// releases the copy's values unless it is still held elsewhere. Calls after
// the first do nothing.
func (g *ShallowCopyScopeGuard) Close() {
	if !g.state.CompareAndSwap(guardActive, guardRestored) {
		return
	}

	g.slot.SetContext(g.prev)
	g.prev = nil

	g.child.drop()
	g.child = nil
}
