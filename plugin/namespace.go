package plugin

import (
	"sync"

	orderedmap "github.com/wk8/go-ordered-map/v2"
)

// Namespace maps keys to plugin types. Keys are case-insensitive and keep
// their first insertion order.
type Namespace struct {
	name string

	mu    sync.RWMutex
	types *orderedmap.OrderedMap[string, *Type]
}

func NewNamespace(name string) *Namespace {
	return &Namespace{name: name, types: orderedmap.New[string, *Type]()}
}

func (n *Namespace) Name() string { return n.name }

// Get looks a key up case-insensitively.
func (n *Namespace) Get(key string) (*Type, bool) {
	n.mu.RLock()
	defer n.mu.RUnlock()
	return n.types.Get(NormalizeKey(key))
}

// Merge stores t under key unless the type already stored there wins by
// priority. Ties keep the existing type. It reports whether t was stored.
func (n *Namespace) Merge(key string, t *Type) bool {
	key = NormalizeKey(key)
	n.mu.Lock()
	defer n.mu.Unlock()
	if cur, ok := n.types.Get(key); ok && ComparePriority(t, cur) >= 0 {
		return false
	}
	n.types.Set(key, t)
	return true
}

// MergeAll merges every type of other in its order.
func (n *Namespace) MergeAll(other *Namespace) {
	if other == nil || other == n {
		return
	}
	for _, p := range other.pairs() {
		n.Merge(p.key, p.typ)
	}
}

// Keys returns the keys in insertion order.
func (n *Namespace) Keys() []string {
	ps := n.pairs()
	out := make([]string, len(ps))
	for i, p := range ps {
		out[i] = p.key
	}
	return out
}

// Types returns the types in key insertion order.
func (n *Namespace) Types() []*Type {
	ps := n.pairs()
	out := make([]*Type, len(ps))
	for i, p := range ps {
		out[i] = p.typ
	}
	return out
}

func (n *Namespace) Len() int {
	n.mu.RLock()
	defer n.mu.RUnlock()
	return n.types.Len()
}

type keyedType struct {
	key string
	typ *Type
}

func (n *Namespace) pairs() []keyedType {
	n.mu.RLock()
	defer n.mu.RUnlock()
	out := make([]keyedType, 0, n.types.Len())
	for p := n.types.Oldest(); p != nil; p = p.Next() {
		out = append(out, keyedType{key: p.Key, typ: p.Value})
	}
	return out
}

// Index groups namespaces by normalized name. Once published by the Registry
// an Index and its namespaces are never written again.
type Index map[string]*Namespace

func (idx Index) add(t *Type) {
	key := NormalizeKey(t.Namespace())
	ns, ok := idx[key]
	if !ok {
		ns = NewNamespace(t.Namespace())
		idx[key] = ns
	}
	ns.Merge(t.Key(), t)
}

func (idx Index) size() int {
	n := 0
	for _, ns := range idx {
		n += ns.Len()
	}
	return n
}

// Get returns the namespace called name, if any.
func (idx Index) Get(name string) (*Namespace, bool) {
	ns, ok := idx[NormalizeKey(name)]
	return ns, ok
}
