package di

import (
	"reflect"
	"sync"
)

// beanRegistry holds the beans known to a Manager.
//
// It is intentionally:
// - append-mostly: beans are only removed when they fail validation
// - identity-keyed: re-adding a bean returns the registered one
// - ordered: iteration follows registration order
type beanRegistry struct {
	mu    sync.RWMutex
	seq   int
	beans []Bean
	byKey map[beanKey]Bean
}

func newBeanRegistry() *beanRegistry {
	return &beanRegistry{byKey: map[beanKey]Bean{}}
}

// add registers b and returns it, or returns the bean already registered
// under the same identity with added set to false.
func (r *beanRegistry) add(b Bean) (registered Bean, added bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	k := b.base().key()
	if existing, ok := r.byKey[k]; ok {
		return existing, false
	}
	r.seq++
	b.base().id = r.seq
	r.byKey[k] = b
	r.beans = append(r.beans, b)
	return b, true
}

// remove drops beans. Unknown beans are ignored.
func (r *beanRegistry) remove(beans ...Bean) {
	if len(beans) == 0 {
		return
	}
	drop := make(map[Bean]bool, len(beans))
	for _, b := range beans {
		drop[b] = true
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	kept := r.beans[:0:0]
	for _, b := range r.beans {
		if drop[b] {
			delete(r.byKey, b.base().key())
			continue
		}
		kept = append(kept, b)
	}
	r.beans = kept
}

func (r *beanRegistry) contains(b Bean) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.byKey[b.base().key()] == b
}

// all returns a snapshot of the registered beans.
func (r *beanRegistry) all() []Bean {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return append([]Bean(nil), r.beans...)
}

// matching returns the beans with a type matching t that accept reports true
// for, in registration order.
func (r *beanRegistry) matching(t reflect.Type, accept func(Bean) bool) []Bean {
	r.mu.RLock()
	defer r.mu.RUnlock()
	var out []Bean
	for _, b := range r.beans {
		if b.HasMatchingType(t) && (accept == nil || accept(b)) {
			out = append(out, b)
		}
	}
	return out
}

// find returns the first bean for which pred reports true.
func (r *beanRegistry) find(pred func(Bean) bool) (Bean, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	for _, b := range r.beans {
		if pred(b) {
			return b, true
		}
	}
	return nil, false
}
