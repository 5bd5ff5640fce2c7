package di

import (
	"errors"
	"reflect"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type funcBean struct {
	beanBase
	create  func() (any, error)
	destroy func(any) error
}

func newFuncBean(name string, create func() (any, error), destroy func(any) error) *funcBean {
	return &funcBean{
		beanBase: beanBase{kind: valueBean, types: []reflect.Type{reflect.TypeFor[string]()}, name: name, scope: Singleton},
		create:   create,
		destroy:  destroy,
	}
}

func (b *funcBean) Create(*InitializationContext) (any, error) { return b.create() }

func (b *funcBean) Destroy(instance any, ctx *InitializationContext) error {
	err := ctx.Close()
	if b.destroy != nil {
		err = errors.Join(b.destroy(instance), err)
	}
	return err
}

func TestScopeContext_ComputesOncePerBean(t *testing.T) {
	t.Parallel()

	var calls atomic.Int32
	b := newFuncBean("slow", func() (any, error) {
		calls.Add(1)
		time.Sleep(10 * time.Millisecond)
		return "value", nil
	}, nil)
	sc := NewScopeContext(Singleton)

	var wg sync.WaitGroup
	for range 20 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			v, err := sc.GetOrCreate(b, &InitializationContext{bean: b})
			assert.NoError(t, err)
			assert.Equal(t, "value", v)
		}()
	}
	wg.Wait()
	assert.Equal(t, int32(1), calls.Load())

	v, ok := sc.GetIfExists(b)
	assert.True(t, ok)
	assert.Equal(t, "value", v)
}

func TestScopeContext_FailedCreationIsNotCached(t *testing.T) {
	t.Parallel()

	var calls atomic.Int32
	b := newFuncBean("flaky", func() (any, error) {
		if calls.Add(1) == 1 {
			return nil, errors.New("not yet")
		}
		return "ok", nil
	}, nil)
	sc := NewScopeContext(Singleton)

	_, err := sc.GetOrCreate(b, &InitializationContext{})
	require.Error(t, err)
	_, ok := sc.GetIfExists(b)
	assert.False(t, ok)

	v, err := sc.GetOrCreate(b, &InitializationContext{})
	require.NoError(t, err)
	assert.Equal(t, "ok", v)
}

func TestScopeContext_PanickingCreationReleasesWaiters(t *testing.T) {
	t.Parallel()

	b := newFuncBean("panics", func() (any, error) { panic("boom") }, nil)
	sc := NewScopeContext(Singleton)

	assert.Panics(t, func() { _, _ = sc.GetOrCreate(b, &InitializationContext{}) })
	_, ok := sc.GetIfExists(b)
	assert.False(t, ok)
}

func TestScopeContext_CloseDestroysInReverseOrder(t *testing.T) {
	t.Parallel()

	var (
		mu        sync.Mutex
		destroyed []string
	)
	record := func(v any) error {
		mu.Lock()
		defer mu.Unlock()
		destroyed = append(destroyed, v.(string))
		if v == "b" {
			return errors.New("b failed")
		}
		return nil
	}
	sc := NewScopeContext(Singleton)
	for _, name := range []string{"a", "b", "c"} {
		b := newFuncBean(name, func() (any, error) { return name, nil }, record)
		_, err := sc.GetOrCreate(b, &InitializationContext{})
		require.NoError(t, err)
	}

	err := sc.Close()
	require.EqualError(t, err, "b failed")
	assert.Equal(t, []string{"c", "b", "a"}, destroyed)

	require.NoError(t, sc.Close())
	_, err = sc.GetOrCreate(newFuncBean("late", func() (any, error) { return "late", nil }, nil), &InitializationContext{})
	assert.ErrorIs(t, err, ErrClosed)
}

func TestScopeContext_DestroyOne(t *testing.T) {
	t.Parallel()

	var destroyed atomic.Int32
	b := newFuncBean("one", func() (any, error) { return "one", nil }, func(any) error {
		destroyed.Add(1)
		return nil
	})
	sc := NewScopeContext(Singleton)
	_, err := sc.GetOrCreate(b, &InitializationContext{})
	require.NoError(t, err)

	require.NoError(t, sc.Destroy(b))
	require.NoError(t, sc.Destroy(b))
	assert.Equal(t, int32(1), destroyed.Load())
	require.NoError(t, sc.Close())
	assert.Equal(t, int32(1), destroyed.Load())
}

func TestInitializationContext_CloseReleasesDependentsOnce(t *testing.T) {
	t.Parallel()

	var order []string
	dep := func(name string) *funcBean {
		return newFuncBean(name, nil, func(v any) error {
			order = append(order, v.(string))
			return nil
		})
	}

	ctx := &InitializationContext{}
	require.NoError(t, ctx.addDependent(dep("first"), "first", &InitializationContext{}))
	require.NoError(t, ctx.addDependent(dep("second"), "second", &InitializationContext{}))

	require.NoError(t, ctx.Close())
	require.NoError(t, ctx.Close())
	assert.Equal(t, []string{"second", "first"}, order)

	err := ctx.addDependent(dep("late"), "late", &InitializationContext{})
	require.ErrorIs(t, err, ErrClosed)
	assert.Equal(t, []string{"second", "first", "late"}, order, "a late dependent is destroyed at once")
}

func TestInitializationContext_Creating(t *testing.T) {
	t.Parallel()

	a := newFuncBean("a", nil, nil)
	b := newFuncBean("b", nil, nil)
	root := &InitializationContext{}
	ca := root.child(a, root)
	cb := ca.child(b, ca)

	chain, ok := cb.creating(a)
	require.True(t, ok)
	assert.Equal(t, []Bean{a, b, a}, chain)

	ca.created.Store(true)
	_, ok = cb.creating(a)
	assert.False(t, ok, "finished instances are not part of the creation chain")
}

func TestInitializationContext_WaitCycle(t *testing.T) {
	t.Parallel()

	a := newFuncBean("a", nil, nil)
	b := newFuncBean("b", nil, nil)
	rootA, rootB := &InitializationContext{}, &InitializationContext{}
	ca := rootA.child(a, rootA)
	cb := rootB.child(b, rootB)
	ea := &scopeEntry{ready: make(chan struct{}), bean: a, ctx: ca}
	eb := &scopeEntry{ready: make(chan struct{}), bean: b, ctx: cb}

	// b asks for a while a is still being created elsewhere.
	wantA := cb.child(a, cb)
	_, ok := wantA.waitCycle(ea)
	assert.False(t, ok, "a is not waiting on anything yet")

	ca.child(b, ca).markWaiting(eb)
	chain, ok := wantA.waitCycle(ea)
	require.True(t, ok)
	assert.Equal(t, []Bean{a, b, a}, chain)

	ca.child(b, ca).markWaiting(nil)
	_, ok = wantA.waitCycle(ea)
	assert.False(t, ok)
}

func TestInjectionPoint_Accepts(t *testing.T) {
	t.Parallel()

	b := newFuncBean("Console", nil, nil)
	b.aliases = []string{"stdout"}

	assert.True(t, (&InjectionPoint{}).accepts(b))
	assert.True(t, (&InjectionPoint{Name: "console"}).accepts(b))
	assert.True(t, (&InjectionPoint{Name: "STDOUT"}).accepts(b))
	assert.True(t, (&InjectionPoint{Name: "out", Aliases: []string{"Console"}}).accepts(b))
	assert.False(t, (&InjectionPoint{Name: "file"}).accepts(b))
}

func TestProvidedType(t *testing.T) {
	t.Parallel()

	elem, ok := providedType(reflect.TypeFor[Provider[*Manager]]())
	require.True(t, ok)
	assert.Equal(t, reflect.TypeFor[*Manager](), elem)

	_, ok = providedType(reflect.TypeFor[func() (*Manager, error)]())
	assert.False(t, ok)
}
