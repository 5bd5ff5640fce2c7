package di

import (
	"errors"
	"reflect"
	"strings"
)

// disposer releases the instances of one producer.
type disposer struct {
	m      *Manager
	owner  Bean // nil for functions
	fn     reflect.Value
	name   string
	label  string
	typ    reflect.Type
	points []*InjectionPoint
}

func (d *disposer) matches(t reflect.Type, name string) bool {
	return d.typ == t && strings.EqualFold(d.name, name)
}

// dispose calls the disposer with instance. Dependencies resolved for the
// call are released afterwards.
func (d *disposer) dispose(instance any) error {
	ctx := &InitializationContext{}
	args, err := d.args(instance, ctx)
	if err == nil {
		if _, err = call(d.fn, args); err != nil {
			err = LifecycleError{Phase: "disposer", Type: d.declaring(), Method: d.label, Err: err}
		}
	}
	return errors.Join(err, ctx.Close())
}

func (d *disposer) args(instance any, ctx *InitializationContext) ([]reflect.Value, error) {
	var args []reflect.Value
	if d.owner != nil {
		ov, err := d.m.valueFor(d.owner, ctx)
		if err != nil {
			return nil, err
		}
		args = append(args, reflect.ValueOf(ov))
	}
	iv, err := valueOf(instance, d.typ)
	if err != nil {
		return nil, err
	}
	rest, err := d.m.resolveArgs(d.points, ctx)
	if err != nil {
		return nil, err
	}
	return append(append(args, iv), rest...), nil
}

func (d *disposer) declaring() reflect.Type {
	if d.owner != nil {
		return d.owner.DeclaringType()
	}
	return nil
}

// memberProducer produces from a method, field or function of a class.
type memberProducer struct {
	m        *Manager
	class    *Class
	owner    Bean // nil for functions
	label    string
	produce  func(owner reflect.Value, args []reflect.Value) (reflect.Value, error)
	points   []*InjectionPoint
	disposer *disposer
}

func (p *memberProducer) InjectionPoints() []*InjectionPoint {
	points := append([]*InjectionPoint(nil), p.points...)
	if p.disposer != nil {
		points = append(points, p.disposer.points...)
	}
	return points
}

// Produce obtains the owner instance through its bean, so a dependent owner
// belongs to the produced instance and is destroyed with it.
func (p *memberProducer) Produce(ctx *InitializationContext) (any, error) {
	var owner reflect.Value
	if p.owner != nil {
		ov, err := p.m.valueFor(p.owner, ctx)
		if err != nil {
			return nil, err
		}
		owner = reflect.ValueOf(ov)
	}
	args, err := p.m.resolveArgs(p.points, ctx)
	if err != nil {
		return nil, err
	}
	out, err := p.produce(owner, args)
	if err != nil {
		return nil, LifecycleError{Phase: "producer", Type: p.class.Type(), Method: p.label, Err: err}
	}
	if !out.IsValid() {
		return nil, nil
	}
	return out.Interface(), nil
}

func (p *memberProducer) Dispose(instance any) error {
	if p.disposer == nil {
		return nil
	}
	return p.disposer.dispose(instance)
}

// producerBeans builds the producer beans declared by c, owned by owner, and
// pairs each with its disposer.
func (m *Manager) producerBeans(c *Class, owner Bean) ([]Bean, error) {
	disposers, err := m.disposersOf(c, owner)
	if err != nil {
		return nil, err
	}
	used := make(map[*disposer]bool)

	var beans []Bean
	for _, mem := range c.membersOf(producesMember, producesFieldMember, producesFuncMember) {
		p, typ, err := m.newMemberProducer(c, owner, mem)
		if err != nil {
			return nil, err
		}
		for _, d := range disposers {
			if !d.matches(typ, mem.decl.name) {
				continue
			}
			if p.disposer != nil {
				return nil, DefinitionError{Type: c.Type(), Member: d.label, Reason: "more than one disposer for producer " + p.label}
			}
			p.disposer = d
			used[d] = true
		}

		scope := mem.decl.scope
		if scope == "" {
			scope = Dependent
		}
		b := &producerBean{
			beanBase: beanBase{
				kind:      producedBean,
				types:     typesOf(typ, mem.decl.as),
				name:      mem.decl.name,
				aliases:   mem.decl.aliases,
				scope:     scope,
				declaring: c.Type(),
				member:    c.Type().String() + "." + p.label,
				points:    p.InjectionPoints(),
			},
			producer: p,
		}
		b.own(b)
		beans = append(beans, b)
	}

	for _, d := range disposers {
		if !used[d] {
			return nil, DefinitionError{Type: c.Type(), Member: d.label, Reason: "no producer of " + d.typ.String() + " named " + quoteName(d.name)}
		}
	}
	return beans, nil
}

func (m *Manager) newMemberProducer(c *Class, owner Bean, mem member) (*memberProducer, reflect.Type, error) {
	pt := c.Type()
	p := &memberProducer{m: m, class: c, owner: owner, label: mem.name}
	switch mem.kind {
	case producesMember:
		meth, ok := pt.MethodByName(mem.name)
		if !ok {
			return nil, nil, DefinitionError{Type: pt, Member: mem.name, Reason: "no such method"}
		}
		if err := checkResults(meth.Type); err != nil {
			return nil, nil, DefinitionError{Type: pt, Member: mem.name, Reason: err.Error()}
		}
		member := Member{Kind: ProducerMember, Owner: pt, Name: mem.name}
		p.points = pointsFor(meth.Type, 1, member, mem.decl.params)
		p.produce = func(owner reflect.Value, args []reflect.Value) (reflect.Value, error) {
			return call(meth.Func, append([]reflect.Value{owner}, args...))
		}
		return p, meth.Type.Out(0), nil

	case producesFieldMember:
		f, ok := c.typ.FieldByName(mem.name)
		if !ok || !f.IsExported() {
			return nil, nil, DefinitionError{Type: pt, Member: mem.name, Reason: "no such exported field"}
		}
		p.produce = func(owner reflect.Value, _ []reflect.Value) (reflect.Value, error) {
			return owner.Elem().FieldByIndex(f.Index), nil
		}
		return p, f.Type, nil

	case producesFuncMember:
		if !mem.fn.IsValid() || mem.fn.Kind() != reflect.Func {
			return nil, nil, DefinitionError{Type: pt, Member: "producer", Reason: "producer is not a function"}
		}
		ft := mem.fn.Type()
		p.label, p.owner = funcName(mem.fn), nil
		if err := checkResults(ft); err != nil {
			return nil, nil, DefinitionError{Type: pt, Member: p.label, Reason: err.Error()}
		}
		member := Member{Kind: ProducerMember, Owner: pt, Name: p.label}
		p.points = pointsFor(ft, 0, member, mem.decl.params)
		p.produce = func(_ reflect.Value, args []reflect.Value) (reflect.Value, error) {
			return call(mem.fn, args)
		}
		return p, ft.Out(0), nil
	}
	return nil, nil, DefinitionError{Type: pt, Member: mem.name, Reason: "not a producer"}
}

func (m *Manager) disposersOf(c *Class, owner Bean) ([]*disposer, error) {
	pt := c.Type()
	var out []*disposer
	for _, mem := range c.membersOf(disposesMember, disposesFuncMember) {
		d := &disposer{m: m, name: mem.decl.name}
		var ft reflect.Type
		first := 0
		if mem.kind == disposesMember {
			meth, ok := pt.MethodByName(mem.name)
			if !ok {
				return nil, DefinitionError{Type: pt, Member: mem.name, Reason: "no such method"}
			}
			d.owner, d.fn, d.label, ft, first = owner, meth.Func, mem.name, meth.Type, 1
		} else {
			if !mem.fn.IsValid() || mem.fn.Kind() != reflect.Func {
				return nil, DefinitionError{Type: pt, Member: "disposer", Reason: "disposer is not a function"}
			}
			d.fn, d.label, ft = mem.fn, funcName(mem.fn), mem.fn.Type()
		}
		if ft.NumIn() <= first {
			return nil, DefinitionError{Type: pt, Member: d.label, Reason: "disposers take the disposed instance as first parameter"}
		}
		if err := checkCallback(ft); err != nil {
			return nil, DefinitionError{Type: pt, Member: d.label, Reason: err.Error()}
		}
		d.typ = ft.In(first)
		member := Member{Kind: DisposerMember, Owner: pt, Name: d.label}
		d.points = pointsFor(ft, first+1, member, mem.decl.params)
		out = append(out, d)
	}
	return out, nil
}

func quoteName(name string) string {
	if name == "" {
		return "(unnamed)"
	}
	return `"` + name + `"`
}
