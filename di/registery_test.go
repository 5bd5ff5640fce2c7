package di

import (
	"fmt"
	"io"
	"reflect"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func typedBean(name string, t reflect.Type) *funcBean {
	b := newFuncBean(name, func() (any, error) { return nil, nil }, nil)
	b.types = []reflect.Type{t}
	return b
}

//
// -----------------------------------------------------------------------------
// add / contains
// -----------------------------------------------------------------------------

// TestBeanRegistry_AddAssignsIDs verifies add numbers beans in registration order.
func TestBeanRegistry_AddAssignsIDs(t *testing.T) {
	t.Parallel()

	r := newBeanRegistry()
	a := newFuncBean("a", nil, nil)
	b := newFuncBean("b", nil, nil)

	got, added := r.add(a)
	require.True(t, added)
	require.Same(t, a, got)
	_, added = r.add(b)
	require.True(t, added)

	assert.Equal(t, 1, a.id)
	assert.Equal(t, 2, b.id)
	assert.True(t, r.contains(a))
	assert.Equal(t, []Bean{a, b}, r.all())
}

// TestBeanRegistry_AddSameIdentityReturnsRegistered verifies a bean with the
// identity of a registered one is not added.
func TestBeanRegistry_AddSameIdentityReturnsRegistered(t *testing.T) {
	t.Parallel()

	r := newBeanRegistry()
	first := newFuncBean("x", nil, nil)
	twin := newFuncBean("x", nil, nil)

	r.add(first)
	got, added := r.add(twin)
	assert.False(t, added)
	assert.Same(t, first, got)
	assert.False(t, r.contains(twin))
	assert.Len(t, r.all(), 1)
}

// TestBeanRegistry_ConcurrentAdd verifies concurrent adds of distinct beans keep every bean.
func TestBeanRegistry_ConcurrentAdd(t *testing.T) {
	t.Parallel()

	r := newBeanRegistry()
	var wg sync.WaitGroup
	for i := range 50 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			r.add(newFuncBean(fmt.Sprint(i), nil, nil))
		}()
	}
	wg.Wait()

	seen := map[int]bool{}
	for _, b := range r.all() {
		seen[b.base().id] = true
	}
	assert.Len(t, seen, 50)
}

//
// -----------------------------------------------------------------------------
// remove
// -----------------------------------------------------------------------------

// TestBeanRegistry_Remove verifies remove drops beans and keeps the order of the rest.
func TestBeanRegistry_Remove(t *testing.T) {
	t.Parallel()

	r := newBeanRegistry()
	a, b, c := newFuncBean("a", nil, nil), newFuncBean("b", nil, nil), newFuncBean("c", nil, nil)
	r.add(a)
	r.add(b)
	r.add(c)

	snapshot := r.all()
	r.remove(b, newFuncBean("unknown", nil, nil))
	r.remove()

	assert.Equal(t, []Bean{a, c}, r.all())
	assert.False(t, r.contains(b))
	assert.Len(t, snapshot, 3, "earlier snapshots are not affected")

	_, added := r.add(newFuncBean("b", nil, nil))
	assert.True(t, added, "a removed identity can be registered again")
}

//
// -----------------------------------------------------------------------------
// matching / find
// -----------------------------------------------------------------------------

// TestBeanRegistry_Matching verifies matching filters by type, interfaces included, then by accept.
func TestBeanRegistry_Matching(t *testing.T) {
	t.Parallel()

	r := newBeanRegistry()
	pipe := typedBean("pipe", reflect.TypeFor[*io.PipeWriter]())
	sect := typedBean("sect", reflect.TypeFor[*io.SectionReader]())
	other := typedBean("other", reflect.TypeFor[int]())
	r.add(pipe)
	r.add(sect)
	r.add(other)

	assert.Equal(t, []Bean{pipe}, r.matching(reflect.TypeFor[io.Writer](), nil))
	assert.Equal(t, []Bean{sect}, r.matching(reflect.TypeFor[io.Reader](), nil))
	assert.Equal(t, []Bean{other}, r.matching(reflect.TypeFor[int](), nil))
	assert.Empty(t, r.matching(reflect.TypeFor[io.Seeker](), func(b Bean) bool { return b.Name() != "sect" }))
}

// TestBeanRegistry_Find verifies find returns the first match in registration order.
func TestBeanRegistry_Find(t *testing.T) {
	t.Parallel()

	r := newBeanRegistry()
	a := newFuncBean("a", nil, nil)
	b := newFuncBean("b", nil, nil)
	r.add(a)
	r.add(b)

	got, ok := r.find(func(Bean) bool { return true })
	require.True(t, ok)
	assert.Same(t, a, got)

	_, ok = r.find(func(Bean) bool { return false })
	assert.False(t, ok)
}
