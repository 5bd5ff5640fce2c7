package plugin_test

import (
	"errors"
	"reflect"
	"sync"
	"sync/atomic"
	"testing"

	"github.com/sghaida/plugdi/plugin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func prioritized(name, class string, p *int32) *plugin.Type {
	e := plugin.NewEntry("Appender", name, class)
	if p != nil {
		e.Priority = plugin.WithPriority(*p)
	}
	return plugin.NewType(e, nil)
}

func ptr(v int32) *int32 { return &v }

func TestPriority_Compare(t *testing.T) {
	t.Parallel()

	none := plugin.Priority{}
	assert.Negative(t, plugin.WithPriority(1).Compare(plugin.WithPriority(2)))
	assert.Positive(t, plugin.WithPriority(3).Compare(plugin.WithPriority(-3)))
	assert.Zero(t, plugin.WithPriority(5).Compare(plugin.WithPriority(5)))
	assert.Negative(t, plugin.WithPriority(1000).Compare(none))
	assert.Positive(t, none.Compare(plugin.WithPriority(-1000)))
	assert.Zero(t, none.Compare(none))
	assert.Equal(t, "none", none.String())
}

func TestNamespace_MergeKeepsLowerPriorityInAnyOrder(t *testing.T) {
	t.Parallel()

	low := prioritized("foo", "example.com/a.Low", ptr(1))
	high := prioritized("foo", "example.com/a.High", ptr(10))
	absent := prioritized("foo", "example.com/a.Absent", nil)

	orders := [][]*plugin.Type{
		{low, high, absent},
		{low, absent, high},
		{high, low, absent},
		{high, absent, low},
		{absent, low, high},
		{absent, high, low},
	}
	for _, order := range orders {
		ns := plugin.NewNamespace("Appender")
		for _, pt := range order {
			ns.Merge("foo", pt)
		}
		got, ok := ns.Get("foo")
		require.True(t, ok)
		assert.Same(t, low, got)
	}
}

func TestNamespace_TieKeepsExisting(t *testing.T) {
	t.Parallel()

	first := prioritized("foo", "example.com/a.First", nil)
	second := prioritized("foo", "example.com/a.Second", nil)

	ns := plugin.NewNamespace("Appender")
	assert.True(t, ns.Merge("foo", first))
	assert.False(t, ns.Merge("FOO", second))

	got, _ := ns.Get("Foo")
	assert.Same(t, first, got)
	assert.Equal(t, 1, ns.Len())
}

func TestNamespace_MergeAllKeepsOrder(t *testing.T) {
	t.Parallel()

	a := plugin.NewNamespace("Appender")
	a.Merge("console", prioritized("console", "x.C", nil))
	a.Merge("file", prioritized("file", "x.F", nil))

	b := plugin.NewNamespace("Appender")
	b.Merge("nosql", prioritized("nosql", "x.N", nil))
	b.MergeAll(a)
	b.MergeAll(nil)

	assert.Equal(t, []string{"nosql", "console", "file"}, b.Keys())
	assert.Len(t, b.Types(), 3)
}

type countingLoader struct {
	calls atomic.Int32
	types map[string]reflect.Type
}

func (l *countingLoader) LoadType(name string) (reflect.Type, error) {
	l.calls.Add(1)
	if t, ok := l.types[name]; ok {
		return t, nil
	}
	return nil, errors.New("no such type")
}

func TestType_ResolveOnce(t *testing.T) {
	t.Parallel()

	l := &countingLoader{types: map[string]reflect.Type{"x.Console": reflect.TypeFor[consoleAppender]()}}
	pt := plugin.NewType(plugin.NewEntry("Appender", "Console", "x.Console"), l)

	var wg sync.WaitGroup
	for range 10 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			got, err := pt.Resolve()
			assert.NoError(t, err)
			assert.Equal(t, reflect.TypeFor[consoleAppender](), got)
		}()
	}
	wg.Wait()

	assert.EqualValues(t, 1, l.calls.Load())
}

func TestType_ResolveFailureNamesEntryAndClass(t *testing.T) {
	t.Parallel()

	l := &countingLoader{}
	ns := plugin.NewNamespace("Appender")
	broken := plugin.NewType(plugin.NewEntry("Appender", "Broken", "x.Missing"), l)
	ok := plugin.ResolvedType(plugin.NewEntry("Appender", "Console", "x.Console"), reflect.TypeFor[consoleAppender]())
	ns.Merge(broken.Key(), broken)
	ns.Merge(ok.Key(), ok)

	_, err := broken.Resolve()
	var re plugin.ResolveError
	require.ErrorAs(t, err, &re)
	assert.Equal(t, "x.Missing", re.Entry.ClassName)
	assert.Contains(t, err.Error(), `"x.Missing"`)
	assert.Contains(t, err.Error(), `"Appender:broken"`)

	_, err = broken.Resolve()
	require.Error(t, err)
	assert.EqualValues(t, 1, l.calls.Load())

	got, err := ok.Resolve()
	require.NoError(t, err)
	assert.Equal(t, reflect.TypeFor[consoleAppender](), got)
}

func TestType_WithoutLoader(t *testing.T) {
	t.Parallel()

	_, err := plugin.NewType(plugin.NewEntry("Appender", "Console", "x.Console"), nil).Resolve()
	assert.ErrorAs(t, err, new(plugin.ResolveError))
}
