package reqctx

import (
	"fmt"
	"runtime"
	"slices"
	"sync"
	"sync/atomic"
)

// RequestContext is a thread-safe keyed store of request Data.
//
// Lookups share a read lock. Mutations hold the write lock only while the
// map is edited; OnSet, OnUnset and Destroy always run after it is released.
//
// A context created by a scope guard is scoped: its values are released as
// soon as the guard closes and no Hold or InstallScopeGuard keeps it. Other
// contexts release their values once they are garbage collected.
type RequestContext struct {
	mu   sync.RWMutex
	st   *state
	opts *options

	scoped  bool
	holders atomic.Int32
}

// state is allocated apart from its RequestContext so the cleanup that
// releases its handles does not keep the context reachable.
type state struct {
	data map[string]Data

	// callbacks holds every value of data whose HasCallback is true, keyed by
	// its Base so Data of any dynamic type can be a member.
	callbacks map[*Base]Data
}

func newState(size int) *state {
	return &state{
		data:      make(map[string]Data, size),
		callbacks: make(map[*Base]Data),
	}
}

// New creates an empty RequestContext.
func New(opts ...Option) *RequestContext {
	return newRequestContextFrom(newOptions(opts...))
}

func newRequestContext(opts *options, st *state) *RequestContext {
	rc := &RequestContext{st: st, opts: opts}

	// Backstop for contexts nobody ends explicitly.
	runtime.AddCleanup(rc, (*state).releaseLater, st)

	return rc
}

// Hold keeps the values of a scoped rc alive past the close of the guard
// that created it, until the returned function is called. Use it when a
// context saved with SaveContext is handed to work that may start after the
// saving scope is gone, such as a queued job. The returned function may be
// called more than once. Hold on a context that is not scoped does nothing.
//
// Holding a context whose values were already released does not bring them
// back.
func (rc *RequestContext) Hold() (release func()) {
	rc.hold()

	return sync.OnceFunc(rc.drop)
}

// own marks rc as scoped with its creator as the only holder. It must be
// called before rc is published.
func (rc *RequestContext) own() *RequestContext {
	rc.scoped = true
	rc.holders.Store(1)

	return rc
}

func (rc *RequestContext) hold() {
	if rc.scoped {
		rc.holders.Add(1)
	}
}

func (rc *RequestContext) drop() {
	if !rc.scoped {
		return
	}

	n := rc.holders.Add(-1)
	if n < 0 {
		panic(fmt.Sprintf("reqctx: context dropped more times than held (%d)", n))
	}

	if n == 0 {
		rc.end()
	}
}

// end empties rc and releases the handles it held. No callbacks fire: a
// scoped context ends only after it was switched out.
func (rc *RequestContext) end() {
	rc.mu.Lock()
	data := rc.st.data
	rc.st.data = make(map[string]Data)
	rc.st.callbacks = make(map[*Base]Data)
	rc.mu.Unlock()

	for _, d := range data {
		release(d)
	}
}

// SetContextData adds d under key.
//
// If key is already present the existing value is removed (OnUnset fires and
// its handle is released), d is discarded, and a warning is logged the first
// time that key collides. The key is absent afterwards.
//
// The context takes ownership of d: a discarded d held by no other context is
// finalized.
func (rc *RequestContext) SetContextData(key string, d Data) {
	rc.mu.Lock()

	if old, ok := rc.st.data[key]; ok {
		rc.st.remove(key, old)
		rc.mu.Unlock()

		rc.opts.collision(key)
		unset(old)
		release(old)
		discard(d)

		return
	}

	if d == nil {
		rc.mu.Unlock()
		return
	}

	rc.st.insert(key, d)
	rc.mu.Unlock()

	set(d)
}

// SetContextDataIfAbsent adds d under key and returns true if key is absent.
// Otherwise it returns false and leaves the context untouched.
func (rc *RequestContext) SetContextDataIfAbsent(key string, d Data) bool {
	rc.mu.Lock()

	if _, ok := rc.st.data[key]; ok || d == nil {
		rc.mu.Unlock()
		discard(d)

		return false
	}

	rc.st.insert(key, d)
	rc.mu.Unlock()

	set(d)

	return true
}

// ClearContextData removes the value stored under key, if any.
func (rc *RequestContext) ClearContextData(key string) {
	rc.mu.Lock()

	old, ok := rc.st.data[key]
	if !ok {
		rc.mu.Unlock()
		return
	}

	rc.st.remove(key, old)
	rc.mu.Unlock()

	unset(old)
	release(old)
}

// HasContextData reports whether a value is stored under key.
func (rc *RequestContext) HasContextData(key string) bool {
	rc.mu.RLock()
	defer rc.mu.RUnlock()

	_, ok := rc.st.data[key]

	return ok
}

// GetContextData returns the value stored under key, or nil.
func (rc *RequestContext) GetContextData(key string) Data {
	rc.mu.RLock()
	defer rc.mu.RUnlock()

	return rc.st.data[key]
}

// Lookup returns the value stored under key as a T.
// It reports false if the key is absent or holds another type.
func Lookup[T Data](rc *RequestContext, key string) (T, bool) {
	v, ok := rc.GetContextData(key).(T)

	return v, ok
}

// Len returns the number of stored values.
func (rc *RequestContext) Len() int {
	rc.mu.RLock()
	defer rc.mu.RUnlock()

	return len(rc.st.data)
}

// Keys returns the stored keys in sorted order.
func (rc *RequestContext) Keys() []string {
	rc.mu.RLock()
	keys := make([]string, 0, len(rc.st.data))

	for key := range rc.st.data {
		keys = append(keys, key)
	}
	rc.mu.RUnlock()

	slices.Sort(keys)

	return keys
}

// OnSet invokes OnSet on every callback-bearing value.
func (rc *RequestContext) OnSet() {
	for _, d := range rc.callbackSnapshot() {
		d.OnSet()
	}
}

// OnUnset invokes OnUnset on every callback-bearing value.
func (rc *RequestContext) OnUnset() {
	for _, d := range rc.callbackSnapshot() {
		d.OnUnset()
	}
}

// overwriteContextData replaces whatever is stored under key with d, firing
// OnUnset on the old value before OnSet on the new one. A nil d clears key.
func (rc *RequestContext) overwriteContextData(key string, d Data) {
	if d == nil {
		rc.ClearContextData(key)
		return
	}

	rc.mu.Lock()

	old, hadOld := rc.st.data[key]
	if hadOld {
		rc.st.remove(key, old)
	}

	rc.st.insert(key, d)
	rc.mu.Unlock()

	if hadOld {
		unset(old)
	}

	set(d)

	if hadOld {
		release(old)
	}
}

// shallowCopy returns a context sharing every value of rc. Each shared value
// gains one handle; no callbacks fire.
func (rc *RequestContext) shallowCopy() *RequestContext {
	rc.mu.RLock()

	st := newState(len(rc.st.data))

	for key, d := range rc.st.data {
		retain(d)
		st.data[key] = d
	}

	for b, d := range rc.st.callbacks {
		st.callbacks[b] = d
	}
	rc.mu.RUnlock()

	return newRequestContext(rc.opts, st)
}

// callbackSnapshot copies the callback set under the lock so callbacks can
// run without it.
func (rc *RequestContext) callbackSnapshot() []Data {
	rc.mu.Lock()
	defer rc.mu.Unlock()

	snapshot := make([]Data, 0, len(rc.st.callbacks))
	for _, d := range rc.st.callbacks {
		snapshot = append(snapshot, d)
	}

	return snapshot
}

// callbackSet copies the callback set for diffing against another context.
func (rc *RequestContext) callbackSet() map[*Base]Data {
	rc.mu.RLock()
	defer rc.mu.RUnlock()

	members := make(map[*Base]Data, len(rc.st.callbacks))
	for b, d := range rc.st.callbacks {
		members[b] = d
	}

	return members
}

// switchContexts fires the callbacks for moving from prev to next. Values
// present in both, such as those shared by a shallow copy, do not fire.
func switchContexts(prev, next *RequestContext) {
	if prev == next {
		return
	}

	before := prev.callbackSet()
	after := next.callbackSet()

	for b, d := range before {
		if _, kept := after[b]; !kept {
			d.OnUnset()
		}
	}

	for b, d := range after {
		if _, kept := before[b]; !kept {
			d.OnSet()
		}
	}
}

// insert must be called with the write lock held.
func (s *state) insert(key string, d Data) {
	retain(d)
	s.data[key] = d

	if d.HasCallback() {
		s.callbacks[d.base()] = d
	}
}

// remove must be called with the write lock held. The caller releases old
// once the lock is dropped.
func (s *state) remove(key string, old Data) {
	delete(s.data, key)

	if old.HasCallback() {
		// The same value may still be stored under another key.
		if !s.holds(old) {
			delete(s.callbacks, old.base())
		}
	}
}

func (s *state) holds(d Data) bool {
	for _, v := range s.data {
		if v.base() == d.base() {
			return true
		}
	}

	return false
}

// releaseLater runs on the runtime's cleanup goroutine, which must not wait
// on Destroy, so the handles are released on a goroutine of their own.
func (s *state) releaseLater() {
	if len(s.data) == 0 {
		return
	}

	go s.releaseAll()
}

// releaseAll drops every handle of a context nobody references anymore.
func (s *state) releaseAll() {
	for key, d := range s.data {
		delete(s.data, key)
		release(d)
	}
}

func set(d Data) {
	if d.HasCallback() {
		d.OnSet()
	}
}

func unset(d Data) {
	if d.HasCallback() {
		d.OnUnset()
	}
}
