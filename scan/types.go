package scan

import (
	"reflect"
	"sort"
	"sync"
)

// typeTable maps fully-qualified type names to types.
type typeTable struct {
	mu    sync.RWMutex
	types map[string]reflect.Type
}

func newTypeTable() *typeTable {
	return &typeTable{types: make(map[string]reflect.Type)}
}

func (tt *typeTable) define(t reflect.Type) string {
	t = baseType(t)
	name := TypeName(t)
	tt.mu.Lock()
	tt.types[name] = t
	tt.mu.Unlock()
	return name
}

func (tt *typeTable) lookup(name string) (reflect.Type, bool) {
	tt.mu.RLock()
	defer tt.mu.RUnlock()
	t, ok := tt.types[name]
	return t, ok
}

func (tt *typeTable) names() []string {
	tt.mu.RLock()
	defer tt.mu.RUnlock()
	out := make([]string, 0, len(tt.types))
	for n := range tt.types {
		out = append(out, n)
	}
	sort.Strings(out)
	return out
}

// registered is the process type table. It is written from init functions and
// read afterwards.
var registered = newTypeTable()

// Register adds T to the process type table.
func Register[T any]() string {
	return RegisterType(reflect.TypeFor[T]())
}

// RegisterType adds t (or the type t points to) to the process type table and
// returns the name it was registered under.
func RegisterType(t reflect.Type) string {
	return registered.define(t)
}

// RegisteredTypes lists the names in the process type table.
func RegisteredTypes() []string {
	return registered.names()
}

// TypeName returns the fully-qualified name of t, dereferencing pointers.
func TypeName(t reflect.Type) string {
	t = baseType(t)
	if t.PkgPath() == "" {
		return t.String()
	}
	return t.PkgPath() + "." + t.Name()
}

func baseType(t reflect.Type) reflect.Type {
	for t.Kind() == reflect.Pointer {
		t = t.Elem()
	}
	return t
}
