package di

import (
	"reflect"
	"sync"
)

// Param qualifies one parameter of a constructor, method, producer or
// disposer.
type Param struct {
	Name    string
	Aliases []string
}

// Option configures a Class or one of its members. Options that make no sense
// where they are applied are ignored.
type Option func(*decl)

type memberKind int

const (
	ctorMember memberKind = iota
	methodMember
	initMember
	postConstructMember
	preDestroyMember
	producesMember
	producesFieldMember
	producesFuncMember
	disposesMember
	disposesFuncMember
)

type member struct {
	kind memberKind
	name string
	fn   reflect.Value
	decl decl
}

type decl struct {
	name    string
	aliases []string
	scope   Scope
	inject  bool
	params  []Param
	as      []reflect.Type
	members []member
}

func newMember(kind memberKind, name string, fn any, opts []Option) Option {
	return func(d *decl) {
		m := member{kind: kind, name: name, fn: reflect.ValueOf(fn)}
		for _, opt := range opts {
			opt(&m.decl)
		}
		d.members = append(d.members, m)
	}
}

// Class describes how to build, inject and destroy instances of a struct type.
// Instances are always pointers to the struct.
type Class struct {
	typ  reflect.Type
	decl decl
}

// NewClass describes t, which must be a struct type or a pointer to one.
func NewClass(t reflect.Type, opts ...Option) *Class {
	for t != nil && t.Kind() == reflect.Pointer {
		t = t.Elem()
	}
	c := &Class{typ: t}
	for _, opt := range opts {
		opt(&c.decl)
	}
	return c
}

// ClassOf describes T.
func ClassOf[T any](opts ...Option) *Class {
	return NewClass(reflect.TypeFor[T](), opts...)
}

// Type returns the pointer type of the instances.
func (c *Class) Type() reflect.Type {
	if c.typ == nil {
		return nil
	}
	return reflect.PointerTo(c.typ)
}

// Name returns the bean name given with Named.
func (c *Class) Name() string { return c.decl.name }

func (c *Class) withName(name string) *Class {
	cp := *c
	cp.decl.name = name
	return &cp
}

func (c *Class) scope() Scope {
	if c.decl.scope == "" {
		return Dependent
	}
	return c.decl.scope
}

func (c *Class) membersOf(kinds ...memberKind) []member {
	var out []member
	for _, m := range c.decl.members {
		for _, k := range kinds {
			if m.kind == k {
				out = append(out, m)
				break
			}
		}
	}
	return out
}

// Named sets the bean name of a class or producer, or the qualifier of the
// instance a disposer accepts.
func Named(name string) Option { return func(d *decl) { d.name = name } }

// Aliases adds names a bean also answers to.
func Aliases(names ...string) Option {
	return func(d *decl) { d.aliases = append(d.aliases, names...) }
}

// InScope sets the scope of a class or producer. The default is Dependent.
func InScope(s Scope) Option { return func(d *decl) { d.scope = s } }

// As adds interface types to the bean's type closure.
func As(types ...reflect.Type) Option {
	return func(d *decl) { d.as = append(d.as, types...) }
}

// Inject marks a constructor as the one to use.
func Inject() Option { return func(d *decl) { d.inject = true } }

// Params qualifies parameters by position.
func Params(params ...Param) Option {
	return func(d *decl) { d.params = append(d.params, params...) }
}

// Constructor declares a constructor: a func returning *T, optionally followed
// by an error. Its parameters are injection points.
func Constructor(fn any, opts ...Option) Option { return newMember(ctorMember, "", fn, opts) }

// Method declares an injection method on *T. It runs once after field
// injection, with its parameters resolved.
func Method(name string, opts ...Option) Option { return newMember(methodMember, name, nil, opts) }

// InitMethod declares a method without parameters that runs after every
// injection method.
func InitMethod(name string) Option { return newMember(initMember, name, nil, nil) }

// PostConstruct declares a callback run once the instance is fully injected.
func PostConstruct(name string) Option { return newMember(postConstructMember, name, nil, nil) }

// PreDestroy declares a callback run before the instance is dropped.
func PreDestroy(name string) Option { return newMember(preDestroyMember, name, nil, nil) }

// Produces declares a producer method on *T. The method's first result is
// the produced value; its parameters are injection points.
func Produces(method string, opts ...Option) Option {
	return newMember(producesMember, method, nil, opts)
}

// ProducesField declares an exported field of T whose value is produced.
func ProducesField(field string, opts ...Option) Option {
	return newMember(producesFieldMember, field, nil, opts)
}

// ProducesFunc declares a producer function that needs no instance of T.
func ProducesFunc(fn any, opts ...Option) Option {
	return newMember(producesFuncMember, "", fn, opts)
}

// Disposes declares a disposer method on *T. Its first parameter receives the
// produced instance; Params qualify the parameters after it.
func Disposes(method string, opts ...Option) Option {
	return newMember(disposesMember, method, nil, opts)
}

// DisposesFunc declares a disposer function that needs no instance of T.
func DisposesFunc(fn any, opts ...Option) Option {
	return newMember(disposesFuncMember, "", fn, opts)
}

var classes struct {
	mu     sync.RWMutex
	byType map[reflect.Type]*Class
}

// RegisterClass makes c the process-wide description of its type. Packages
// call it from init next to scan.Register.
func RegisterClass(c *Class) {
	classes.mu.Lock()
	defer classes.mu.Unlock()
	if classes.byType == nil {
		classes.byType = make(map[reflect.Type]*Class)
	}
	classes.byType[c.typ] = c
}

func registeredClass(t reflect.Type) (*Class, bool) {
	classes.mu.RLock()
	defer classes.mu.RUnlock()
	c, ok := classes.byType[t]
	return c, ok
}
