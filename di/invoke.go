package di

import (
	"fmt"
	"reflect"
	"runtime"
	"strings"
)

// call invokes fn, recovering panics. A trailing error result is split off;
// the first other result, if any, is returned as out.
func call(fn reflect.Value, args []reflect.Value) (out reflect.Value, err error) {
	defer func() {
		if rec := recover(); rec != nil {
			out, err = reflect.Value{}, fmt.Errorf("panic: %v", rec)
		}
	}()

	res := fn.Call(args)
	if n := len(res); n > 0 && fn.Type().Out(n-1) == errorType {
		if e := res[n-1]; !e.IsNil() {
			err = e.Interface().(error)
		}
		res = res[:n-1]
	}
	if len(res) > 0 {
		out = res[0]
	}
	return out, err
}

// valueOf converts an instance to a value assignable to t.
func valueOf(v any, t reflect.Type) (reflect.Value, error) {
	if v == nil {
		return reflect.Zero(t), nil
	}
	rv := reflect.ValueOf(v)
	switch {
	case rv.Type().AssignableTo(t):
		if rv.Type() == t {
			return rv, nil
		}
		out := reflect.New(t).Elem()
		out.Set(rv)
		return out, nil
	case rv.Type().ConvertibleTo(t):
		return rv.Convert(t), nil
	}
	return reflect.Value{}, fmt.Errorf("di: %s is not assignable to %s", rv.Type(), t)
}

// checkResults validates a factory signature: one result, optionally followed
// by an error.
func checkResults(ft reflect.Type) error {
	switch {
	case ft.NumOut() == 1 && ft.Out(0) != errorType:
		return nil
	case ft.NumOut() == 2 && ft.Out(1) == errorType:
		return nil
	}
	return fmt.Errorf("must return a value, optionally followed by an error")
}

// checkCallback validates a lifecycle callback signature: no results or a
// single error.
func checkCallback(ft reflect.Type) error {
	if ft.NumOut() == 0 || ft.NumOut() == 1 && ft.Out(0) == errorType {
		return nil
	}
	return fmt.Errorf("must return nothing or an error")
}

// resolveArgs resolves one value per point.
func (m *Manager) resolveArgs(points []*InjectionPoint, ctx *InitializationContext) ([]reflect.Value, error) {
	args := make([]reflect.Value, len(points))
	for i, p := range points {
		v, err := m.injectableValue(p, ctx)
		if err != nil {
			return nil, err
		}
		if args[i], err = valueOf(v, p.Type); err != nil {
			return nil, err
		}
	}
	return args, nil
}

// pointsFor builds the points of a function's parameters, starting at first.
func pointsFor(ft reflect.Type, first int, member Member, params []Param) []*InjectionPoint {
	var out []*InjectionPoint
	for i := first; i < ft.NumIn(); i++ {
		p := &InjectionPoint{Type: ft.In(i), Member: member, Element: paramElement(i - first)}
		if q := i - first; q < len(params) {
			p.Name, p.Aliases = params[q].Name, params[q].Aliases
		}
		out = append(out, p)
	}
	return out
}

// funcName returns the short name of the function held by fn.
func funcName(fn reflect.Value) string {
	if !fn.IsValid() || fn.Kind() != reflect.Func {
		return "<invalid>"
	}
	f := runtime.FuncForPC(fn.Pointer())
	if f == nil {
		return fn.Type().String()
	}
	name := f.Name()
	if i := strings.LastIndex(name, "/"); i >= 0 {
		name = name[i+1:]
	}
	return name
}
