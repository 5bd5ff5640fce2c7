package di

import (
	"reflect"
	"strings"
)

// Provider defers the resolution of a dependency until it is called. Injecting
// a Provider instead of the value breaks dependency cycles.
type Provider[T any] func() (T, error)

// Get calls the provider.
func (p Provider[T]) Get() (T, error) { return p() }

var (
	errorType    = reflect.TypeFor[error]()
	providerPkg  = reflect.TypeFor[Provider[int]]().PkgPath()
	providerName = "Provider["
)

// providedType returns T when t is a Provider[T].
func providedType(t reflect.Type) (reflect.Type, bool) {
	if t == nil || t.Kind() != reflect.Func || t.PkgPath() != providerPkg || !strings.HasPrefix(t.Name(), providerName) {
		return nil, false
	}
	if t.NumIn() != 0 || t.NumOut() != 2 || t.Out(1) != errorType {
		return nil, false
	}
	return t.Out(0), true
}

// makeProvider builds a Provider value of type pt around get.
func makeProvider(pt reflect.Type, get func() (any, error)) any {
	elem := pt.Out(0)
	fn := reflect.MakeFunc(pt, func([]reflect.Value) []reflect.Value {
		v, err := get()
		out, cerr := valueOf(v, elem)
		if err == nil {
			err = cerr
		}
		if err != nil {
			return []reflect.Value{reflect.Zero(elem), errorValue(err)}
		}
		return []reflect.Value{out, reflect.Zero(errorType)}
	})
	return fn.Interface()
}

func errorValue(err error) reflect.Value {
	v := reflect.New(errorType).Elem()
	v.Set(reflect.ValueOf(err))
	return v
}
