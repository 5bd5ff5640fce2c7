package di

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"reflect"
	"slices"
	"strings"
	"sync"
	"sync/atomic"

	"github.com/sghaida/plugdi/plugin"
	"github.com/sghaida/plugdi/scan"
)

// BeanDirective is the directive marking a type as a bean for LoadPackage.
// Its attributes are name, aliases (comma separated) and scope.
const BeanDirective = "bean"

// ManagerOption configures a Manager.
type ManagerOption func(*Manager)

// WithLogger sets the logger used for load and lifecycle events.
func WithLogger(l *slog.Logger) ManagerOption {
	return func(m *Manager) { m.log = l }
}

// WithClasses makes class descriptors known to the manager without loading
// them as beans. They take precedence over RegisterClass.
func WithClasses(classes ...*Class) ManagerOption {
	return func(m *Manager) {
		for _, c := range classes {
			m.classes[c.typ] = c
		}
	}
}

// Manager builds beans, validates the graph between them and hands out
// instances from scope contexts.
type Manager struct {
	log     *slog.Logger
	beans   *beanRegistry
	classes map[reflect.Type]*Class

	mu     sync.RWMutex
	scopes map[Scope]ScopeContext
	order  []Scope

	// root owns the dependent instances handed out by Value and Resolve.
	root   *InitializationContext
	closed atomic.Bool
}

// NewManager returns a Manager with the Singleton and Dependent scopes.
func NewManager(opts ...ManagerOption) *Manager {
	m := &Manager{
		log:     slog.Default(),
		beans:   newBeanRegistry(),
		classes: map[reflect.Type]*Class{},
		scopes:  map[Scope]ScopeContext{},
		root:    &InitializationContext{},
	}
	for _, opt := range opts {
		opt(m)
	}
	m.scopes[Dependent] = dependentContext{}
	m.scopes[Singleton] = NewScopeContext(Singleton)
	m.order = []Scope{Dependent, Singleton}
	return m
}

// RegisterScope adds a scope context. Scopes are closed in reverse
// registration order.
func (m *Manager) RegisterScope(sc ScopeContext) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.scopes[sc.Scope()]; ok {
		return fmt.Errorf("di: scope %q already registered", sc.Scope())
	}
	m.scopes[sc.Scope()] = sc
	m.order = append(m.order, sc.Scope())
	return nil
}

// ScopeContext returns the context of scope s.
func (m *Manager) ScopeContext(s Scope) (ScopeContext, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	sc, ok := m.scopes[s]
	if !ok {
		return nil, fmt.Errorf("%w for scope %q", ErrNoScope, s)
	}
	return sc, nil
}

func (m *Manager) classFor(t reflect.Type) (*Class, bool) {
	for t != nil && t.Kind() == reflect.Pointer {
		t = t.Elem()
	}
	if c, ok := m.classes[t]; ok {
		return c, true
	}
	return registeredClass(t)
}

// LoadClasses builds the beans of each class, its producers included, then
// validates them. Beans failing validation are dropped together with every
// bean depending on them; the others stay loaded.
func (m *Manager) LoadClasses(classes ...*Class) ([]Bean, error) {
	var (
		beans []Bean
		errs  []error
	)
	for _, c := range classes {
		bs, err := m.classBeans(c)
		if err != nil {
			m.log.Warn("invalid bean class", slog.String("type", typeString(c.Type())), slog.Any("error", err))
			errs = append(errs, err)
			continue
		}
		beans = append(beans, bs...)
	}
	loaded, err := m.LoadBeans(beans...)
	return loaded, errors.Join(append(errs, err)...)
}

// LoadTypes loads struct types through their registered class, or through an
// implicit class using zero-value construction and tag injection.
func (m *Manager) LoadTypes(types ...reflect.Type) ([]Bean, error) {
	classes := make([]*Class, 0, len(types))
	for _, t := range types {
		classes = append(classes, m.classOrImplicit(t))
	}
	return m.LoadClasses(classes...)
}

func (m *Manager) classOrImplicit(t reflect.Type) *Class {
	if c, ok := m.classFor(t); ok {
		return c
	}
	return NewClass(t)
}

// LoadPlugins loads the type of each plugin as a bean. A bean without a name
// of its own takes the plugin name; the element name becomes an alias.
func (m *Manager) LoadPlugins(types ...*plugin.Type) ([]Bean, error) {
	var (
		classes []*Class
		errs    []error
	)
	for _, pt := range types {
		t, err := pt.Resolve()
		if err != nil {
			m.log.Warn("skipping unresolvable plugin", slog.String("plugin", pt.String()), slog.Any("error", err))
			errs = append(errs, err)
			continue
		}
		c := m.classOrImplicit(t)
		if c.Name() == "" {
			c = c.withName(pt.Name())
			if el := pt.ElementName(); !strings.EqualFold(el, pt.Name()) {
				c.decl.aliases = append(slices.Clone(c.decl.aliases), el)
			}
		}
		classes = append(classes, c)
	}
	loaded, err := m.LoadClasses(classes...)
	return loaded, errors.Join(append(errs, err)...)
}

// LoadPackage scans packages through loader for types carrying a plugin or
// bean directive and loads them. A bean directive may set name, aliases and
// scope.
func (m *Manager) LoadPackage(ctx context.Context, loader *scan.Loader, packages ...string) ([]Bean, error) {
	test := scan.AnyOf(scan.AnnotatedWith(plugin.Directive), scan.AnnotatedWith(BeanDirective))
	found := scan.NewScanner(loader).Find(ctx, test, packages...).Candidates()

	classes := make([]*Class, 0, len(found))
	for _, cand := range found {
		t, err := cand.Type()
		if err != nil {
			continue
		}
		c := m.classOrImplicit(t)
		if d, ok := cand.Directive(BeanDirective); ok {
			cp := *c
			if name := d.Attr("name"); name != "" {
				cp.decl.name = name
			}
			if aliases := d.Attr("aliases"); aliases != "" {
				cp.decl.aliases = append(slices.Clone(cp.decl.aliases), splitList(aliases)...)
			}
			if scope := d.Attr("scope"); scope != "" {
				cp.decl.scope = Scope(scope)
			}
			c = &cp
		} else if d, ok := cand.Directive(plugin.Directive); ok && c.Name() == "" {
			c = c.withName(d.Attr("name"))
		}
		classes = append(classes, c)
	}
	return m.LoadClasses(classes...)
}

// AddValue registers an existing instance as a bean. The instance is never
// destroyed by the manager.
func (m *Manager) AddValue(v any, opts ...Option) (Bean, error) {
	if v == nil {
		return nil, DefinitionError{Reason: "nil value"}
	}
	var d decl
	for _, opt := range opts {
		opt(&d)
	}
	t := reflect.TypeOf(v)
	b := &valueBeanOf{
		beanBase: beanBase{
			kind:      valueBean,
			types:     typesOf(t, d.as),
			name:      d.name,
			aliases:   d.aliases,
			scope:     Singleton,
			declaring: t,
		},
		value: v,
	}
	if d.scope != "" {
		b.scope = d.scope
	}
	loaded, err := m.LoadBeans(b)
	if len(loaded) == 0 {
		return nil, err
	}
	return loaded[0], err
}

// LoadBeans registers beans and validates them with the rest of the graph.
// It returns the beans that are loaded and valid.
func (m *Manager) LoadBeans(beans ...Bean) ([]Bean, error) {
	if m.closed.Load() {
		return nil, ErrClosed
	}
	added := make([]Bean, 0, len(beans))
	for _, b := range beans {
		reg, _ := m.beans.add(b)
		added = append(added, reg)
	}
	err := m.validate()

	loaded := added[:0]
	for _, b := range added {
		if m.beans.contains(b) && !slices.Contains(loaded, b) {
			loaded = append(loaded, b)
		}
	}
	for _, b := range loaded {
		m.log.Debug("loaded bean", slog.String("bean", b.String()), slog.String("scope", string(b.Scope())))
	}
	return loaded, err
}

// Beans returns every valid bean in registration order.
func (m *Manager) Beans() []Bean { return m.beans.all() }

// Bean returns the single bean of type t answering to name or one of the
// aliases. An empty name matches any bean.
func (m *Manager) Bean(t reflect.Type, name string, aliases ...string) (Bean, error) {
	return m.lookup(&InjectionPoint{Type: t, Name: name, Aliases: aliases})
}

// Value returns an instance of b. Dependent instances live until Close.
func (m *Manager) Value(b Bean) (any, error) {
	if m.closed.Load() {
		return nil, ErrClosed
	}
	return m.valueFor(b, m.root)
}

// Resolve returns an instance of the single bean of type t named name.
func (m *Manager) Resolve(t reflect.Type, name string) (any, error) {
	b, err := m.Bean(t, name)
	if err != nil {
		return nil, err
	}
	return m.Value(b)
}

// Resolve returns an instance of the single bean of type T. The optional name
// qualifies the lookup; only the first one given is used.
func Resolve[T any](m *Manager, name ...string) (T, error) {
	var zero T
	t := reflect.TypeFor[T]()
	var qualifier string
	if len(name) > 0 {
		qualifier = name[0]
	}
	v, err := m.Resolve(t, qualifier)
	if err != nil {
		return zero, err
	}
	out, err := valueOf(v, t)
	if err != nil {
		return zero, err
	}
	typed, _ := out.Interface().(T)
	return typed, nil
}

// Initialize validates the graph and creates every bean that is not dependent,
// dependencies first.
func (m *Manager) Initialize(ctx context.Context) error {
	if m.closed.Load() {
		return ErrClosed
	}
	if err := m.validate(); err != nil {
		return err
	}
	g, err := m.graph(m.beans.all())
	if err != nil {
		return err
	}
	order, err := g.order()
	if err != nil {
		return err
	}
	var errs []error
	for _, b := range order {
		if b.Scope() == Dependent {
			continue
		}
		if _, err := m.valueFor(b, m.root); err != nil {
			m.log.ErrorContext(ctx, "bean initialization failed", slog.String("bean", b.String()), slog.Any("error", err))
			errs = append(errs, err)
			continue
		}
		m.log.DebugContext(ctx, "initialized bean", slog.String("bean", b.String()))
	}
	return errors.Join(errs...)
}

// Close destroys the dependents handed out by Value, then the instances of
// every scope, latest registered scope first. Failures are joined; none stops
// the remaining destructions.
func (m *Manager) Close() error {
	if !m.closed.CompareAndSwap(false, true) {
		return nil
	}
	m.mu.RLock()
	order := slices.Clone(m.order)
	m.mu.RUnlock()

	errs := []error{m.root.Close()}
	for i := len(order) - 1; i >= 0; i-- {
		sc, err := m.ScopeContext(order[i])
		if err != nil {
			continue
		}
		errs = append(errs, sc.Close())
	}
	return errors.Join(errs...)
}

// valueFor returns the instance of b on behalf of ctx.
func (m *Manager) valueFor(b Bean, ctx *InitializationContext) (any, error) {
	sc, err := m.ScopeContext(b.Scope())
	if err != nil {
		return nil, err
	}
	if v, ok := sc.GetIfExists(b); ok {
		return v, nil
	}
	if chain, ok := ctx.creating(b); ok {
		return nil, cycleError(chain)
	}
	child := ctx.child(b, ctx)
	v, err := sc.GetOrCreate(b, child)
	child.created.Store(true)
	return v, err
}

// injectableValue resolves p and returns the instance for it.
func (m *Manager) injectableValue(p *InjectionPoint, ctx *InitializationContext) (any, error) {
	b, err := m.lookup(p)
	if err != nil {
		return nil, err
	}
	return m.valueFor(b, ctx)
}

// lookup finds the single bean for p. A Provider[T] point with no bean of its
// own gets a provider bean over the bean of T; a T point with no bean of its
// own is served by a bean of type Provider[T].
func (m *Manager) lookup(p *InjectionPoint) (Bean, error) {
	if p.Type == nil {
		return nil, UnsatisfiedDependencyError{Point: p}
	}
	candidates := m.beans.matching(p.Type, p.accepts)
	switch len(candidates) {
	case 1:
		return candidates[0], nil
	case 0:
	default:
		if b, ok := preferred(p, candidates); ok {
			return b, nil
		}
		return nil, AmbiguousDependencyError{Point: p, Beans: candidates}
	}

	if elem, ok := providedType(p.Type); ok {
		target, err := m.lookup(&InjectionPoint{Type: elem, Name: p.Name, Aliases: p.Aliases, Bean: p.Bean, Member: p.Member, Element: p.Element})
		if err != nil {
			return nil, err
		}
		b, _ := m.beans.add(newProviderBean(m, p.Type, target))
		return b, nil
	}

	source, ok := m.beans.find(func(b Bean) bool {
		if b.base().kind == providerBean || !p.accepts(b) {
			return false
		}
		for _, t := range b.Types() {
			if elem, ok := providedType(t); ok && elem == p.Type {
				return true
			}
		}
		return false
	})
	if ok {
		b, _ := m.beans.add(newProvidedBean(m, p.Type, source))
		return b, nil
	}
	return nil, UnsatisfiedDependencyError{Point: p}
}

// preferred picks the single unnamed candidate for an unnamed point.
func preferred(p *InjectionPoint, candidates []Bean) (Bean, bool) {
	if p.Name != "" {
		return nil, false
	}
	var found Bean
	for _, b := range candidates {
		if b.Name() != "" {
			continue
		}
		if found != nil {
			return nil, false
		}
		found = b
	}
	return found, found != nil
}

func cycleError(chain []Bean) CycleError {
	names := make([]string, len(chain))
	for i, b := range chain {
		names[len(chain)-1-i] = b.String()
	}
	return CycleError{Chain: names}
}

// classBeans builds the target bean of c and its producer beans.
func (m *Manager) classBeans(c *Class) ([]Bean, error) {
	t, err := newInjectionTarget(m, c)
	if err != nil {
		return nil, err
	}
	owner := newTargetBean(c, t)
	producers, err := m.producerBeans(c, owner)
	if err != nil {
		return nil, err
	}
	return append([]Bean{owner}, producers...), nil
}
