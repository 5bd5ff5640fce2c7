package di

import (
	"errors"
	"maps"
	"sync"
)

// Scope names a lifecycle policy.
type Scope string

const (
	// Dependent instances are never shared; each belongs to whoever asked for it.
	Dependent Scope = "dependent"
	// Singleton instances live until the Manager closes.
	Singleton Scope = "singleton"
)

// ScopeContext stores the instances of one scope.
type ScopeContext interface {
	Scope() Scope
	// GetOrCreate returns the bean's instance, creating it with ctx on first
	// use. Concurrent callers for one bean share a single creation.
	GetOrCreate(bean Bean, ctx *InitializationContext) (any, error)
	GetIfExists(bean Bean) (any, bool)
	// Destroy destroys one bean's instance, if any.
	Destroy(bean Bean) error
	// Close destroys every instance, latest created first.
	Close() error
}

type scopeEntry struct {
	ready chan struct{}
	bean  Bean
	// ctx is the context the instance is created with, set before the entry
	// is published.
	ctx      *InitializationContext
	instance any
	err      error
}

type scopeContext struct {
	scope Scope

	mu      sync.Mutex
	entries map[Bean]*scopeEntry
	order   []Bean
	closed  bool
}

// NewScopeContext returns a caching ScopeContext for scope.
func NewScopeContext(scope Scope) ScopeContext {
	return &scopeContext{scope: scope, entries: make(map[Bean]*scopeEntry)}
}

func (s *scopeContext) Scope() Scope { return s.scope }

func (s *scopeContext) GetOrCreate(bean Bean, ctx *InitializationContext) (any, error) {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return nil, ErrClosed
	}
	if e, ok := s.entries[bean]; ok {
		s.mu.Unlock()
		if err := wait(e, ctx); err != nil {
			return nil, err
		}
		return e.instance, e.err
	}
	e := &scopeEntry{ready: make(chan struct{}), bean: bean, ctx: ctx}
	s.entries[bean] = e
	s.mu.Unlock()

	e.err = errCreatePanicked
	defer func() {
		s.mu.Lock()
		if e.err != nil {
			// Failed creations are not cached; the next caller retries.
			delete(s.entries, bean)
		} else {
			s.order = append(s.order, bean)
		}
		s.mu.Unlock()
		close(e.ready)
	}()

	inst, err := bean.Create(ctx)
	e.instance, e.err = inst, err
	if err != nil {
		e.instance = nil
	}
	return e.instance, err
}

var errCreatePanicked = errors.New("di: bean creation panicked")

// wait blocks until e is ready. It fails with a CycleError instead when the
// creation of e waits, directly or through other creations, on ctx.
func wait(e *scopeEntry, ctx *InitializationContext) error {
	select {
	case <-e.ready:
		return nil
	default:
	}
	// Publish the wait before looking for a cycle: when two goroutines close
	// a cycle, at least one of them sees the other.
	ctx.markWaiting(e)
	defer ctx.markWaiting(nil)
	if chain, ok := ctx.waitCycle(e); ok {
		return cycleError(chain)
	}
	<-e.ready
	return nil
}

func (s *scopeContext) GetIfExists(bean Bean) (any, bool) {
	s.mu.Lock()
	e, ok := s.entries[bean]
	s.mu.Unlock()
	if !ok {
		return nil, false
	}
	select {
	case <-e.ready:
		return e.instance, e.err == nil
	default:
		return nil, false
	}
}

func (s *scopeContext) Destroy(bean Bean) error {
	s.mu.Lock()
	e, ok := s.entries[bean]
	if ok {
		select {
		case <-e.ready:
		default:
			// Still being created; leave it to Close.
			ok = false
		}
	}
	if ok {
		delete(s.entries, bean)
		for i, b := range s.order {
			if b == bean {
				s.order = append(s.order[:i], s.order[i+1:]...)
				break
			}
		}
	}
	s.mu.Unlock()
	if !ok || e.err != nil {
		return nil
	}
	return bean.Destroy(e.instance, e.ctx)
}

func (s *scopeContext) Close() error {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return nil
	}
	s.closed = true
	order := s.order
	entries := maps.Clone(s.entries)
	s.mu.Unlock()

	// Instances stay visible to GetIfExists while the later ones are
	// destroyed, since disposers may need them.
	var errs []error
	for i := len(order) - 1; i >= 0; i-- {
		e := entries[order[i]]
		errs = append(errs, order[i].Destroy(e.instance, e.ctx))
	}

	s.mu.Lock()
	s.order, s.entries = nil, make(map[Bean]*scopeEntry)
	s.mu.Unlock()
	return errors.Join(errs...)
}

// dependentContext never caches. The instance is handed to the owner of ctx,
// which destroys it when it is destroyed itself.
type dependentContext struct{}

func (dependentContext) Scope() Scope { return Dependent }

func (dependentContext) GetOrCreate(bean Bean, ctx *InitializationContext) (any, error) {
	inst, err := bean.Create(ctx)
	if err != nil {
		return nil, err
	}
	if ctx.owner != nil {
		if err := ctx.owner.addDependent(bean, inst, ctx); err != nil {
			return nil, err
		}
	}
	return inst, nil
}

func (dependentContext) GetIfExists(Bean) (any, bool) { return nil, false }
func (dependentContext) Destroy(Bean) error           { return nil }
func (dependentContext) Close() error                 { return nil }
