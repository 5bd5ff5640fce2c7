package di

import (
	"errors"
	"sync"
	"sync/atomic"
)

// InitializationContext follows the creation of one bean instance. It links
// to the context that requested the instance, which is how creation cycles are
// caught at runtime, and it owns the dependent instances created for it,
// destroying them in reverse order on Close.
type InitializationContext struct {
	bean   Bean
	parent *InitializationContext
	// owner receives this context's instance when the bean is dependent.
	owner *InitializationContext
	// created is set once the bean's instance is complete.
	created atomic.Bool
	// waiting is the scope entry this creation is blocked on, if any.
	waiting atomic.Pointer[scopeEntry]

	mu         sync.Mutex
	dependents []dependentInstance
	closed     bool
}

type dependentInstance struct {
	bean     Bean
	instance any
	ctx      *InitializationContext
}

// Bean returns the bean being created, nil for a root context.
func (c *InitializationContext) Bean() Bean { return c.bean }

// child returns the context for creating bean on behalf of c.
func (c *InitializationContext) child(bean Bean, owner *InitializationContext) *InitializationContext {
	ctx := &InitializationContext{bean: bean, parent: c}
	if bean.Scope() == Dependent {
		ctx.owner = owner
	}
	return ctx
}

// addDependent hands instance to c. A closed c destroys it at once and
// returns ErrClosed.
func (c *InitializationContext) addDependent(bean Bean, instance any, ctx *InitializationContext) error {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return errors.Join(ErrClosed, bean.Destroy(instance, ctx))
	}
	c.dependents = append(c.dependents, dependentInstance{bean: bean, instance: instance, ctx: ctx})
	c.mu.Unlock()
	return nil
}

// creating returns the chain of beans from bean up to c if bean is still
// being created somewhere along it.
func (c *InitializationContext) creating(bean Bean) ([]Bean, bool) {
	chain := []Bean{bean}
	for p := c; p != nil; p = p.parent {
		if p.bean == nil || p.created.Load() {
			continue
		}
		chain = append(chain, p.bean)
		if p.bean == bean {
			return chain, true
		}
	}
	return nil, false
}

// markWaiting records e as the entry every unfinished creation along c is
// blocked on. A nil e clears the record.
func (c *InitializationContext) markWaiting(e *scopeEntry) {
	for p := c; p != nil; p = p.parent {
		if p.bean != nil && !p.created.Load() {
			p.waiting.Store(e)
		}
	}
}

func (c *InitializationContext) descendsFrom(ancestor *InitializationContext) bool {
	for p := c; p != nil; p = p.parent {
		if p == ancestor {
			return true
		}
	}
	return false
}

// waitCycle follows what the creator of e waits on, and what that creator
// waits on in turn. It returns the beans along the way when the walk comes
// back to a creation c descends from, since waiting on e would then never end.
func (c *InitializationContext) waitCycle(e *scopeEntry) ([]Bean, bool) {
	var chain []Bean
	seen := map[*scopeEntry]bool{}
	for e != nil && !seen[e] {
		seen[e] = true
		chain = append(chain, e.bean)
		if e.ctx == nil {
			return nil, false
		}
		if c.descendsFrom(e.ctx) {
			return append(chain, chain[0]), true
		}
		e = e.ctx.waiting.Load()
	}
	return nil, false
}

// Close destroys the dependents, latest first. Failures do not stop the
// remaining destructions. Close is idempotent.
func (c *InitializationContext) Close() error {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return nil
	}
	c.closed = true
	deps := c.dependents
	c.dependents = nil
	c.mu.Unlock()

	var errs []error
	for i := len(deps) - 1; i >= 0; i-- {
		d := deps[i]
		errs = append(errs, d.bean.Destroy(d.instance, d.ctx))
	}
	return errors.Join(errs...)
}
