package di_test

import (
	"reflect"
	"testing"

	"github.com/sghaida/plugdi/di"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type service struct {
	via   string
	clock *clock
}

func zeroService() *service                   { return &service{via: "zero"} }
func clockService(c *clock) *service          { return &service{via: "clock", clock: c} }
func pairService(c *clock, s *store) *service { return &service{via: "pair", clock: c} }

func newClockManager(t *testing.T) *di.Manager {
	t.Helper()
	m := di.NewManager()
	_, err := m.AddValue(&clock{zone: "utc"}, di.Named("utc"))
	require.NoError(t, err)
	return m
}

// Constructor selection
func TestConstructor_Selection(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		opts []di.Option
		via  string
	}{
		{
			name: "inject marked wins",
			opts: []di.Option{di.Constructor(zeroService), di.Constructor(clockService, di.Inject())},
			via:  "clock",
		},
		{
			name: "qualified parameter",
			opts: []di.Option{
				di.Constructor(zeroService),
				di.Constructor(clockService, di.Params(di.Param{Name: "utc"})),
				di.Constructor(pairService),
			},
			via: "clock",
		},
		{
			name: "zero argument",
			opts: []di.Option{di.Constructor(clockService), di.Constructor(zeroService)},
			via:  "zero",
		},
		{
			name: "lone constructor",
			opts: []di.Option{di.Constructor(clockService)},
			via:  "clock",
		},
		{
			name: "no constructor",
			via:  "",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			m := newClockManager(t)
			_, err := m.LoadClasses(di.ClassOf[service](tt.opts...))
			require.NoError(t, err)

			s, err := di.Resolve[*service](m)
			require.NoError(t, err)
			assert.Equal(t, tt.via, s.via)
		})
	}
}

func TestConstructor_DefinitionErrors(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name   string
		opts   []di.Option
		reason string
	}{
		{
			name:   "two inject marked",
			opts:   []di.Option{di.Constructor(zeroService, di.Inject()), di.Constructor(clockService, di.Inject())},
			reason: "multiple injectable constructors",
		},
		{
			name: "two qualified",
			opts: []di.Option{
				di.Constructor(clockService, di.Params(di.Param{Name: "utc"})),
				di.Constructor(pairService, di.Params(di.Param{Name: "utc"})),
			},
			reason: "multiple constructors with qualified parameters",
		},
		{
			name:   "nothing selectable",
			opts:   []di.Option{di.Constructor(clockService), di.Constructor(pairService)},
			reason: "no constructor is marked injectable",
		},
		{
			name:   "wrong result",
			opts:   []di.Option{di.Constructor(func() *clock { return nil })},
			reason: "returns *di_test.clock",
		},
		{
			name:   "not a function",
			opts:   []di.Option{di.Constructor("service")},
			reason: "constructor is not a function",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			m := newClockManager(t)
			beans, err := m.LoadClasses(di.ClassOf[service](tt.opts...))

			var derr di.DefinitionError
			require.ErrorAs(t, err, &derr)
			assert.Contains(t, derr.Reason, tt.reason)
			assert.Empty(t, beans)
		})
	}
}

func TestConstructor_ErrorAndPanicBecomeLifecycleErrors(t *testing.T) {
	t.Parallel()

	boom := assert.AnError
	m := di.NewManager()
	_, err := m.LoadClasses(
		di.ClassOf[service](di.Constructor(func() (*service, error) { return nil, boom })),
		di.ClassOf[store](di.Constructor(func() *store { panic("kaput") })),
	)
	require.NoError(t, err)

	_, err = di.Resolve[*service](m)
	require.ErrorIs(t, err, boom)
	var lerr di.LifecycleError
	require.ErrorAs(t, err, &lerr)
	assert.Equal(t, "constructor", lerr.Phase)
	assert.Equal(t, reflect.TypeFor[*service](), lerr.Type)

	_, err = di.Resolve[*store](m)
	require.ErrorAs(t, err, &lerr)
	assert.Contains(t, err.Error(), "panic: kaput")
}

// Injection order
type Base struct {
	First *firstPart `inject:""`
}

func (b *Base) SetupBase(r *recorder) { r.add("base method") }

func (b *Base) Setup(r *recorder) { r.add("base setup") }

type firstPart struct{}

type secondPart struct{}

type machine struct {
	Base
	Second *secondPart `inject:""`
	Rec    *recorder   `inject:""`
}

func (m *machine) Setup(r *recorder) { r.add("setup") }

func (m *machine) Ready() { m.Rec.add("init") }

func (m *machine) Started() { m.Rec.add("post-construct") }

func (m *machine) Stopping() { m.Rec.add("pre-destroy") }

func TestInjectionOrder(t *testing.T) {
	t.Parallel()

	rec := &recorder{}
	m := di.NewManager(di.WithClasses(di.ClassOf[Base](di.Method("SetupBase"), di.Method("Setup"))))
	_, err := m.AddValue(rec)
	require.NoError(t, err)

	_, err = m.LoadClasses(
		di.ClassOf[firstPart](di.Constructor(func(r *recorder) *firstPart { r.add("first field"); return &firstPart{} })),
		di.ClassOf[secondPart](di.Constructor(func(r *recorder) *secondPart { r.add("second field"); return &secondPart{} })),
		di.ClassOf[machine](
			di.InScope(di.Singleton),
			di.PostConstruct("Started"),
			di.InitMethod("Ready"),
			di.Method("Setup"),
			di.PreDestroy("Stopping"),
		),
	)
	require.NoError(t, err)

	mc, err := di.Resolve[*machine](m)
	require.NoError(t, err)
	assert.NotNil(t, mc.First)
	assert.NotNil(t, mc.Second)

	require.NoError(t, m.Close())
	assert.Equal(t, []string{
		"first field",
		"second field",
		"base method",
		"setup",
		"init",
		"post-construct",
		"pre-destroy",
	}, rec.list())
}

func TestClass_MemberDefinitionErrors(t *testing.T) {
	t.Parallel()

	type hidden struct {
		Clock *clock `inject:""`
	}
	type outer struct {
		hidden
	}
	type private struct {
		clock *clock `inject:""`
	}

	tests := []struct {
		name  string
		class *di.Class
	}{
		{"unexported embedded injection", di.ClassOf[outer]()},
		{"unexported field", di.ClassOf[private]()},
		{"missing method", di.ClassOf[machine](di.Method("Missing"))},
		{"init method with parameters", di.ClassOf[machine](di.InitMethod("Setup"))},
		{"not a struct", di.NewClass(reflect.TypeFor[string]())},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			_, err := di.NewManager().LoadClasses(tt.class)
			assert.ErrorAs(t, err, new(di.DefinitionError))
		})
	}
}

func TestRegisterClass_UsedForPlainTypes(t *testing.T) {
	t.Parallel()

	type registered struct{ via string }
	di.RegisterClass(di.ClassOf[registered](
		di.Named("reg"),
		di.InScope(di.Singleton),
		di.Constructor(func() *registered { return &registered{via: "class"} }),
	))

	m := di.NewManager()
	beans, err := m.LoadTypes(reflect.TypeFor[registered]())
	require.NoError(t, err)
	require.Len(t, beans, 1)
	assert.Equal(t, "reg", beans[0].Name())
	assert.Equal(t, di.Singleton, beans[0].Scope())

	r, err := di.Resolve[*registered](m, "reg")
	require.NoError(t, err)
	assert.Equal(t, "class", r.via)
}
