package reqctx

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestScopeGuard_InstallsFreshAndRestores(t *testing.T) {
	s := NewSlot()
	s.Create()
	outer := s.Get()
	outer.SetContextData("k", newTracked(nil, "p", false))

	func() {
		g := NewScopeGuard(s)
		defer g.Close()

		inner := s.Get()
		assert.NotSame(t, outer, inner)
		assert.False(t, inner.HasContextData("k"))
	}()

	assert.Same(t, outer, s.Get())
	assert.True(t, s.Get().HasContextData("k"))
}

func TestInstallScopeGuard_InstallsSavedContext(t *testing.T) {
	s := NewSlot()
	s.Create()
	outer := s.Get()
	saved := New()

	func() {
		g := InstallScopeGuard(s, saved)
		defer g.Close()

		assert.Same(t, saved, s.Get())
	}()

	assert.Same(t, outer, s.Get())
}

func TestScopeGuard_CloseIsIdempotent(t *testing.T) {
	s := NewSlot()
	s.Create()
	outer := s.Get()

	g := NewScopeGuard(s)
	g.Close()

	other := New()
	s.SetContext(other)

	g.Close()
	assert.Same(t, other, s.Get())
	assert.NotSame(t, outer, s.Get())
}

func TestScopeGuard_RestoresOnPanic(t *testing.T) {
	s := NewSlot()
	s.Create()
	outer := s.Get()

	errBoom := errors.New("boom")

	recovered := func() (r any) {
		defer func() { r = recover() }()

		g := NewScopeGuard(s)
		defer g.Close()

		sg := NewShallowCopyScopeGuard(s)
		defer sg.Close()

		panic(errBoom)
	}()

	assert.Equal(t, errBoom, recovered)
	assert.Same(t, outer, s.Get())
}

func TestScopeGuards_NestInReverseOrder(t *testing.T) {
	s := NewSlot()
	s.Create()
	level0 := s.Get()

	g1 := NewScopeGuard(s)
	level1 := s.Get()

	g2 := NewShallowCopyScopeGuard(s)
	level2 := s.Get()

	g3 := InstallScopeGuard(s, New())

	g3.Close()
	assert.Same(t, level2, s.Get())

	g2.Close()
	assert.Same(t, level1, s.Get())

	g1.Close()
	assert.Same(t, level0, s.Get())
}

func TestShallowCopyScopeGuard_NoCallbacksWithoutOverwrite(t *testing.T) {
	rec := &recorder{}
	s := NewSlot()
	s.Create()
	parent := s.Get()
	a := newTracked(rec, "a", true)
	parent.SetContextData("a", a)
	rec.take()

	func() {
		g := NewShallowCopyScopeGuard(s)
		defer g.Close()

		assert.NotSame(t, parent, s.Get())
		assert.Same(t, a, s.Get().GetContextData("a"))
	}()

	assert.Empty(t, rec.take())
	assert.Same(t, parent, s.Get())
}

func TestShallowCopyScopeGuardWith_OverwritesOneKey(t *testing.T) {
	rec := &recorder{}
	s := NewSlot()
	s.Create()
	parent := s.Get()

	a := newTracked(rec, "a", true)
	b := newTracked(rec, "b", true)
	parent.SetContextData("a", a)
	parent.SetContextData("b", b)
	rec.take()

	a2 := newTracked(rec, "a2", true)
	g := NewShallowCopyScopeGuardWith(s, "a", a2)

	assert.Equal(t, []string{"unset:a", "set:a2"}, rec.take())
	assert.Same(t, a2, s.Get().GetContextData("a"))
	assert.Same(t, b, s.Get().GetContextData("b"))

	g.Close()

	events := rec.take()
	assert.NotContains(t, events, "set:b")
	assert.NotContains(t, events, "unset:b")
	assert.ElementsMatch(t, []string{"unset:a2", "set:a"}, events)

	require.Same(t, parent, s.Get())
	assert.Same(t, a, s.Get().GetContextData("a"))
	assert.Zero(t, a.destroyed.Load())
}

func TestShallowCopyScopeGuardWith_EquivalentToClearThenSet(t *testing.T) {
	s := NewSlot()
	s.Create()
	s.Get().SetContextData("k", newTracked(nil, "old", false))

	replacement := newTracked(nil, "new", false)

	func() {
		g := NewShallowCopyScopeGuard(s)
		defer g.Close()

		s.Get().ClearContextData("k")
		s.Get().SetContextData("k", replacement)

		assert.Same(t, replacement, s.Get().GetContextData("k"))
	}()

	viaGuard := newTracked(nil, "new", false)

	func() {
		g := NewShallowCopyScopeGuardWith(s, "k", viaGuard)
		defer g.Close()

		assert.Same(t, viaGuard, s.Get().GetContextData("k"))
	}()
}

func TestScopeGuard_CloseReleasesValues(t *testing.T) {
	s := NewSlot()
	p := newTracked(nil, "p", false)

	g := NewScopeGuard(s)
	s.Get().SetContextData("k", p)

	g.Close()

	assert.Equal(t, int32(1), p.destroyed.Load())
	assert.Zero(t, p.Refs())
}

func TestShallowCopyScopeGuard_CloseReleasesReplacedValue(t *testing.T) {
	s := NewSlot()
	outer := NewScopeGuard(s)
	defer outer.Close()

	a := newTracked(nil, "a", false)
	s.Get().SetContextData("a", a)

	a2 := newTracked(nil, "a2", false)
	g := NewShallowCopyScopeGuardWith(s, "a", a2)
	assert.Equal(t, int32(1), a.Refs())
	assert.Equal(t, int32(1), a2.Refs())

	g.Close()

	assert.Equal(t, int32(1), a2.destroyed.Load())
	assert.Zero(t, a.destroyed.Load())
	assert.Equal(t, int32(1), a.Refs())
}

func TestInstallScopeGuard_KeepsScopedContextUntilLastClose(t *testing.T) {
	producer := NewSlot()
	consumer := NewSlot()
	p := newTracked(nil, "p", false)

	g := NewScopeGuard(producer)
	producer.Get().SetContextData("k", p)
	saved := producer.SaveContext()

	installed := InstallScopeGuard(consumer, saved)

	g.Close()
	assert.Zero(t, p.destroyed.Load())
	assert.Same(t, p, consumer.Get().GetContextData("k"))

	installed.Close()
	assert.Equal(t, int32(1), p.destroyed.Load())
	assert.Zero(t, saved.Len())
}

func TestHold_KeepsValuesPastScope(t *testing.T) {
	s := NewSlot()
	p := newTracked(nil, "p", false)

	g := NewScopeGuard(s)
	s.Get().SetContextData("k", p)

	saved := s.SaveContext()
	release := saved.Hold()

	g.Close()
	assert.Zero(t, p.destroyed.Load())
	assert.Same(t, p, saved.GetContextData("k"))

	release()
	assert.Equal(t, int32(1), p.destroyed.Load())

	assert.NotPanics(t, release)
	assert.Equal(t, int32(1), p.destroyed.Load())
}

func TestHold_UnscopedContextIsUnaffected(t *testing.T) {
	rc := New()
	p := newTracked(nil, "p", false)
	rc.SetContextData("k", p)

	rc.Hold()()

	assert.Same(t, p, rc.GetContextData("k"))
	assert.Zero(t, p.destroyed.Load())
}
