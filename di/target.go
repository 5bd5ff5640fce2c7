package di

import (
	"errors"
	"fmt"
	"reflect"
	"slices"
	"strings"
)

// Producer creates the instances of a bean and disposes of them.
type Producer interface {
	Produce(ctx *InitializationContext) (any, error)
	Dispose(instance any) error
	InjectionPoints() []*InjectionPoint
}

// InjectionTarget is the Producer of a class bean. Besides constructing it
// injects fields and methods and runs lifecycle callbacks.
type InjectionTarget interface {
	Producer
	Inject(instance any, ctx *InitializationContext) error
	PostConstruct(instance any) error
	PreDestroy(instance any) error
}

type fieldPoint struct {
	index []int
	point *InjectionPoint
}

type methodCall struct {
	name   string
	points []*InjectionPoint
}

type injectionTarget struct {
	m     *Manager
	class *Class

	ctor       reflect.Value // invalid: allocate with reflect.New
	ctorPoints []*InjectionPoint
	fields     []fieldPoint
	methods    []methodCall
	inits      []string
	post       []string
	pre        []string
}

func newInjectionTarget(m *Manager, c *Class) (*injectionTarget, error) {
	if c.typ == nil || c.typ.Kind() != reflect.Struct {
		return nil, DefinitionError{Type: c.typ, Reason: "classes must describe struct types"}
	}
	t := &injectionTarget{m: m, class: c}
	if err := t.selectConstructor(); err != nil {
		return nil, err
	}
	if err := t.collectFields(c.typ, nil, true); err != nil {
		return nil, err
	}
	if err := t.collectMethods(c, map[string]bool{}, map[reflect.Type]bool{}); err != nil {
		return nil, err
	}
	return t, nil
}

// selectConstructor picks, in order: the single Inject-marked constructor, the
// single constructor with a qualified parameter, the single constructor
// without parameters. A lone constructor is always used, and a class without
// constructors is allocated directly.
func (t *injectionTarget) selectConstructor() error {
	ctors := t.class.membersOf(ctorMember)
	if len(ctors) == 0 {
		return nil
	}
	for _, c := range ctors {
		if err := t.checkConstructor(c); err != nil {
			return err
		}
	}
	if len(ctors) == 1 {
		return t.useConstructor(ctors[0])
	}

	pick := func(filter func(member) bool, reason string) (member, bool, error) {
		var found []member
		for _, c := range ctors {
			if filter(c) {
				found = append(found, c)
			}
		}
		switch len(found) {
		case 0:
			return member{}, false, nil
		case 1:
			return found[0], true, nil
		}
		return member{}, false, DefinitionError{Type: t.class.Type(), Member: "constructor", Reason: reason}
	}

	chosen, ok, err := pick(func(c member) bool { return c.decl.inject }, "multiple injectable constructors")
	if err == nil && !ok {
		chosen, ok, err = pick(func(c member) bool {
			return slices.ContainsFunc(c.decl.params, func(p Param) bool { return p.Name != "" })
		}, "multiple constructors with qualified parameters")
	}
	if err == nil && !ok {
		chosen, ok, err = pick(func(c member) bool { return c.fn.Type().NumIn() == 0 }, "multiple constructors without parameters")
	}
	if err != nil {
		return err
	}
	if !ok {
		return DefinitionError{Type: t.class.Type(), Member: "constructor", Reason: "no constructor is marked injectable, has qualified parameters or takes no parameters"}
	}

	return t.useConstructor(chosen)
}

func (t *injectionTarget) useConstructor(c member) error {
	t.ctor = c.fn
	m := Member{Kind: ConstructorMember, Owner: t.class.Type(), Name: funcName(c.fn)}
	t.ctorPoints = pointsFor(c.fn.Type(), 0, m, c.decl.params)
	return nil
}

func (t *injectionTarget) checkConstructor(c member) error {
	if !c.fn.IsValid() || c.fn.Kind() != reflect.Func {
		return DefinitionError{Type: t.class.Type(), Member: "constructor", Reason: "constructor is not a function"}
	}
	ft := c.fn.Type()
	if err := checkResults(ft); err != nil {
		return DefinitionError{Type: t.class.Type(), Member: funcName(c.fn), Reason: err.Error()}
	}
	if !ft.Out(0).AssignableTo(t.class.Type()) {
		return DefinitionError{Type: t.class.Type(), Member: funcName(c.fn), Reason: "returns " + ft.Out(0).String()}
	}
	if len(c.decl.params) > ft.NumIn() {
		return DefinitionError{Type: t.class.Type(), Member: funcName(c.fn), Reason: "more params than parameters"}
	}
	return nil
}

// collectFields walks st, embedded structs before the fields of st itself.
// Fields reached through an unexported embedded struct cannot be set.
func (t *injectionTarget) collectFields(st reflect.Type, prefix []int, settable bool) error {
	var own []fieldPoint
	for i := range st.NumField() {
		f := st.Field(i)
		index := append(slices.Clone(prefix), i)
		if f.Anonymous && f.Type.Kind() == reflect.Struct {
			if err := t.collectFields(f.Type, index, settable && f.IsExported()); err != nil {
				return err
			}
			continue
		}
		name, ok := f.Tag.Lookup("inject")
		if !ok {
			continue
		}
		if !settable || !f.IsExported() {
			return DefinitionError{Type: t.class.Type(), Member: f.Name, Reason: "injected fields must be exported"}
		}
		own = append(own, fieldPoint{index: index, point: &InjectionPoint{
			Type:    f.Type,
			Name:    name,
			Aliases: splitList(f.Tag.Get("aliases")),
			Member:  Member{Kind: FieldMember, Owner: t.class.Type(), Name: f.Name},
			Element: "field " + f.Name,
		}})
	}
	t.fields = append(t.fields, own...)
	return nil
}

// collectMethods gathers the methods of the classes of embedded structs, then
// those of c. A method name is only taken once.
func (t *injectionTarget) collectMethods(c *Class, seen map[string]bool, visited map[reflect.Type]bool) error {
	if visited[c.typ] {
		return nil
	}
	visited[c.typ] = true
	for i := range c.typ.NumField() {
		f := c.typ.Field(i)
		if !f.Anonymous || f.Type.Kind() != reflect.Struct || !f.IsExported() {
			continue
		}
		if ec, ok := t.m.classFor(f.Type); ok {
			if err := t.collectMethods(ec, seen, visited); err != nil {
				return err
			}
		}
	}

	pt := t.class.Type()
	for _, mem := range c.decl.members {
		switch mem.kind {
		case methodMember, initMember, postConstructMember, preDestroyMember:
		default:
			continue
		}
		meth, ok := pt.MethodByName(mem.name)
		if !ok {
			return DefinitionError{Type: pt, Member: mem.name, Reason: "no such method"}
		}
		if err := checkCallback(meth.Type); err != nil {
			return DefinitionError{Type: pt, Member: mem.name, Reason: err.Error()}
		}
		key := fmt.Sprint(mem.kind) + ":" + mem.name
		if seen[key] {
			continue
		}
		seen[key] = true

		switch mem.kind {
		case methodMember:
			member := Member{Kind: MethodMember, Owner: pt, Name: mem.name}
			t.methods = append(t.methods, methodCall{name: mem.name, points: pointsFor(meth.Type, 1, member, mem.decl.params)})
		case initMember:
			if meth.Type.NumIn() != 1 {
				return DefinitionError{Type: pt, Member: mem.name, Reason: "init methods take no parameters"}
			}
			t.inits = append(t.inits, mem.name)
		case postConstructMember, preDestroyMember:
			if meth.Type.NumIn() != 1 {
				return DefinitionError{Type: pt, Member: mem.name, Reason: "lifecycle callbacks take no parameters"}
			}
			if mem.kind == postConstructMember {
				t.post = append(t.post, mem.name)
			} else {
				t.pre = append(t.pre, mem.name)
			}
		}
	}
	return nil
}

func (t *injectionTarget) InjectionPoints() []*InjectionPoint {
	out := slices.Clone(t.ctorPoints)
	for _, f := range t.fields {
		out = append(out, f.point)
	}
	for _, mc := range t.methods {
		out = append(out, mc.points...)
	}
	return out
}

func (t *injectionTarget) Produce(ctx *InitializationContext) (any, error) {
	if !t.ctor.IsValid() {
		return reflect.New(t.class.typ).Interface(), nil
	}
	args, err := t.m.resolveArgs(t.ctorPoints, ctx)
	if err != nil {
		return nil, err
	}
	out, err := call(t.ctor, args)
	if err != nil {
		return nil, LifecycleError{Phase: "constructor", Type: t.class.Type(), Method: funcName(t.ctor), Err: err}
	}
	if out.IsNil() {
		return nil, LifecycleError{Phase: "constructor", Type: t.class.Type(), Method: funcName(t.ctor), Err: errors.New("returned nil")}
	}
	return out.Interface(), nil
}

func (t *injectionTarget) Inject(instance any, ctx *InitializationContext) error {
	rv := reflect.ValueOf(instance)
	elem := rv.Elem()
	for _, f := range t.fields {
		v, err := t.m.injectableValue(f.point, ctx)
		if err != nil {
			return err
		}
		fv, err := valueOf(v, f.point.Type)
		if err != nil {
			return err
		}
		elem.FieldByIndex(f.index).Set(fv)
	}
	for _, mc := range t.methods {
		args, err := t.m.resolveArgs(mc.points, ctx)
		if err != nil {
			return err
		}
		if _, err := call(rv.MethodByName(mc.name), args); err != nil {
			return LifecycleError{Phase: "method injection", Type: t.class.Type(), Method: mc.name, Err: err}
		}
	}
	for _, name := range t.inits {
		if _, err := call(rv.MethodByName(name), nil); err != nil {
			return LifecycleError{Phase: "init", Type: t.class.Type(), Method: name, Err: err}
		}
	}
	return nil
}

func (t *injectionTarget) PostConstruct(instance any) error {
	rv := reflect.ValueOf(instance)
	for _, name := range t.post {
		if _, err := call(rv.MethodByName(name), nil); err != nil {
			return LifecycleError{Phase: "post-construct", Type: t.class.Type(), Method: name, Err: err}
		}
	}
	return nil
}

// PreDestroy runs every callback even when some fail.
func (t *injectionTarget) PreDestroy(instance any) error {
	rv := reflect.ValueOf(instance)
	var errs []error
	for _, name := range t.pre {
		if _, err := call(rv.MethodByName(name), nil); err != nil {
			errs = append(errs, LifecycleError{Phase: "pre-destroy", Type: t.class.Type(), Method: name, Err: err})
		}
	}
	return errors.Join(errs...)
}

func (t *injectionTarget) Dispose(any) error { return nil }

func splitList(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
