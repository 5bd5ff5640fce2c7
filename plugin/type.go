package plugin

import (
	"reflect"
	"sync"
)

// TypeLoader resolves fully-qualified type names. *scan.Loader implements it.
type TypeLoader interface {
	LoadType(name string) (reflect.Type, error)
}

// Type is an Entry plus its lazily resolved type. The type is loaded at most
// once; a failure is kept and returned on every later call.
type Type struct {
	entry  Entry
	loader TypeLoader

	once sync.Once
	typ  reflect.Type
	err  error
}

func NewType(e Entry, loader TypeLoader) *Type {
	return &Type{entry: e, loader: loader}
}

// ResolvedType wraps a type that is already known.
func ResolvedType(e Entry, t reflect.Type) *Type {
	pt := &Type{entry: e}
	pt.once.Do(func() { pt.typ = t })
	return pt
}

func (t *Type) Entry() Entry          { return t.entry }
func (t *Type) Key() string           { return t.entry.Key }
func (t *Type) Name() string          { return t.entry.Name }
func (t *Type) ElementName() string   { return t.entry.ElementName() }
func (t *Type) Namespace() string     { return t.entry.Namespace }
func (t *Type) ClassName() string     { return t.entry.ClassName }
func (t *Type) IsPrintable() bool     { return t.entry.Printable }
func (t *Type) IsDeferChildren() bool { return t.entry.DeferChildren }
func (t *Type) Priority() Priority    { return t.entry.Priority }

// Resolve loads the plugin's type.
func (t *Type) Resolve() (reflect.Type, error) {
	t.once.Do(func() {
		if t.loader == nil {
			t.err = ResolveError{Entry: t.entry, Err: errNoLoader}
			return
		}
		typ, err := t.loader.LoadType(t.entry.ClassName)
		if err != nil {
			t.err = ResolveError{Entry: t.entry, Err: err}
			return
		}
		t.typ = typ
	})
	return t.typ, t.err
}

func (t *Type) String() string {
	return "plugin " + t.entry.String() + " priority=" + t.entry.Priority.String()
}

// ComparePriority orders two types sharing a key: negative when a wins.
func ComparePriority(a, b *Type) int {
	return a.entry.Priority.Compare(b.entry.Priority)
}
