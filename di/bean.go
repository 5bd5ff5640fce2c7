package di

import (
	"errors"
	"reflect"
	"slices"
	"strconv"
	"strings"
)

// Bean describes how instances of one type are created and destroyed.
type Bean interface {
	// Types returns the declared types of the bean. Interfaces implemented
	// by these types match too; see HasMatchingType.
	Types() []reflect.Type
	HasMatchingType(t reflect.Type) bool
	Name() string
	Aliases() []string
	Scope() Scope
	// DeclaringType is the class that declares the bean.
	DeclaringType() reflect.Type
	InjectionPoints() []*InjectionPoint
	Create(ctx *InitializationContext) (any, error)
	Destroy(instance any, ctx *InitializationContext) error
	String() string

	base() *beanBase
}

type beanKind int

const (
	classBean beanKind = iota + 1
	producedBean
	valueBean
	providerBean
	providedBean
)

// beanKey is the identity of a bean. Adding a bean whose key is already
// registered returns the registered one.
type beanKey struct {
	kind   beanKind
	typ    reflect.Type
	name   string
	member string
}

type beanBase struct {
	kind      beanKind
	types     []reflect.Type
	name      string
	aliases   []string
	scope     Scope
	declaring reflect.Type
	member    string
	points    []*InjectionPoint

	// id is assigned by the registry.
	id int
}

func (b *beanBase) Types() []reflect.Type              { return slices.Clone(b.types) }
func (b *beanBase) Name() string                       { return b.name }
func (b *beanBase) Aliases() []string                  { return slices.Clone(b.aliases) }
func (b *beanBase) Scope() Scope                       { return b.scope }
func (b *beanBase) DeclaringType() reflect.Type        { return b.declaring }
func (b *beanBase) InjectionPoints() []*InjectionPoint { return slices.Clone(b.points) }
func (b *beanBase) base() *beanBase                    { return b }

func (b *beanBase) HasMatchingType(t reflect.Type) bool {
	for _, bt := range b.types {
		if bt == t || t.Kind() == reflect.Interface && bt.Implements(t) {
			return true
		}
	}
	return false
}

func (b *beanBase) key() beanKey {
	var t reflect.Type
	if len(b.types) > 0 {
		t = b.types[0]
	}
	return beanKey{kind: b.kind, typ: t, name: b.name, member: b.member}
}

func (b *beanBase) String() string {
	var sb strings.Builder
	switch b.kind {
	case producedBean:
		sb.WriteString("producer ")
	case providerBean:
		sb.WriteString("provider ")
	case providedBean:
		sb.WriteString("provided ")
	case valueBean:
		sb.WriteString("value ")
	}
	if len(b.types) > 0 {
		sb.WriteString(b.types[0].String())
	}
	if b.name != "" {
		sb.WriteString(" " + strconv.Quote(b.name))
	}
	if b.member != "" {
		sb.WriteString(" from " + b.member)
	}
	return sb.String()
}

// own points the injection points at their bean.
func (b *beanBase) own(bean Bean) {
	for _, p := range b.points {
		p.Bean = bean
	}
}

func typesOf(primary reflect.Type, extra []reflect.Type) []reflect.Type {
	types := []reflect.Type{primary}
	for _, t := range extra {
		if t != nil && !slices.Contains(types, t) {
			types = append(types, t)
		}
	}
	return types
}

// targetBean is built by an InjectionTarget.
type targetBean struct {
	beanBase
	target InjectionTarget
}

func newTargetBean(c *Class, t *injectionTarget) *targetBean {
	b := &targetBean{
		beanBase: beanBase{
			kind:      classBean,
			types:     typesOf(c.Type(), c.decl.as),
			name:      c.decl.name,
			aliases:   c.decl.aliases,
			scope:     c.scope(),
			declaring: c.Type(),
			points:    t.InjectionPoints(),
		},
		target: t,
	}
	b.own(b)
	return b
}

// Create runs construction, injection and post-construct. On failure every
// dependent already created for the instance is destroyed.
func (b *targetBean) Create(ctx *InitializationContext) (any, error) {
	inst, err := b.target.Produce(ctx)
	if err == nil {
		err = b.target.Inject(inst, ctx)
	}
	if err == nil {
		err = b.target.PostConstruct(inst)
	}
	if err != nil {
		return nil, errors.Join(err, ctx.Close())
	}
	return inst, nil
}

func (b *targetBean) Destroy(instance any, ctx *InitializationContext) error {
	return errors.Join(b.target.PreDestroy(instance), ctx.Close())
}

// producerBean is built by a producer method, field or function.
type producerBean struct {
	beanBase
	producer Producer
}

func (b *producerBean) Create(ctx *InitializationContext) (any, error) {
	inst, err := b.producer.Produce(ctx)
	if err != nil {
		return nil, errors.Join(err, ctx.Close())
	}
	return inst, nil
}

// Destroy disposes of the instance, then releases the dependents of its
// context, owner instance included.
func (b *producerBean) Destroy(instance any, ctx *InitializationContext) error {
	return errors.Join(b.producer.Dispose(instance), ctx.Close())
}

// providerBeanOf wraps target as a Provider. Providers are dependent: every
// injection gets its own provider, and what the provider creates belongs to
// the injecting instance.
type providerBeanOf struct {
	beanBase
	m      *Manager
	target Bean
}

func newProviderBean(m *Manager, pt reflect.Type, target Bean) *providerBeanOf {
	return &providerBeanOf{
		beanBase: beanBase{
			kind:      providerBean,
			types:     []reflect.Type{pt},
			name:      target.Name(),
			aliases:   target.Aliases(),
			scope:     Dependent,
			declaring: target.DeclaringType(),
			member:    target.String(),
		},
		m:      m,
		target: target,
	}
}

func (b *providerBeanOf) Create(ctx *InitializationContext) (any, error) {
	return makeProvider(b.types[0], func() (any, error) {
		return b.m.valueFor(b.target, ctx)
	}), nil
}

func (b *providerBeanOf) Destroy(_ any, ctx *InitializationContext) error { return ctx.Close() }

// providedBeanOf adapts a bean of type Provider[T] into a bean of type T.
type providedBeanOf struct {
	beanBase
	m      *Manager
	source Bean
}

func newProvidedBean(m *Manager, t reflect.Type, source Bean) *providedBeanOf {
	return &providedBeanOf{
		beanBase: beanBase{
			kind:      providedBean,
			types:     []reflect.Type{t},
			name:      source.Name(),
			aliases:   source.Aliases(),
			scope:     Dependent,
			declaring: source.DeclaringType(),
			member:    source.String(),
		},
		m:      m,
		source: source,
	}
}

func (b *providedBeanOf) Create(ctx *InitializationContext) (any, error) {
	pv, err := b.m.valueFor(b.source, ctx)
	if err != nil {
		return nil, err
	}
	out, err := call(reflect.ValueOf(pv), nil)
	if err != nil {
		return nil, err
	}
	return out.Interface(), nil
}

func (b *providedBeanOf) Destroy(_ any, ctx *InitializationContext) error { return ctx.Close() }

// valueBeanOf hands out an instance supplied by the caller. Nothing is
// destroyed.
type valueBeanOf struct {
	beanBase
	value any
}

func (b *valueBeanOf) Create(*InitializationContext) (any, error) { return b.value, nil }
func (b *valueBeanOf) Destroy(any, *InitializationContext) error  { return nil }
