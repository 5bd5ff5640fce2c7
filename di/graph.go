package di

import (
	"errors"
	"log/slog"
	"strconv"

	"ocm.software/open-component-model/bindings/go/dag"
)

// dependencies returns the beans b needs before it can be created. Provider
// points resolve to provider beans, which need nothing, so a cycle through a
// Provider is no cycle.
func (m *Manager) dependencies(b Bean) ([]Bean, []error) {
	var (
		deps []Bean
		errs []error
	)
	for _, p := range b.InjectionPoints() {
		d, err := m.lookup(p)
		if err != nil {
			errs = append(errs, err)
			continue
		}
		deps = append(deps, d)
	}
	switch x := b.(type) {
	case *producerBean:
		if mp, ok := x.producer.(*memberProducer); ok && mp.owner != nil {
			deps = append(deps, mp.owner)
		}
	case *providedBeanOf:
		deps = append(deps, x.source)
	}
	return deps, errs
}

// validate checks every bean's dependencies and the absence of cycles. Invalid
// beans are removed along with every bean depending on them, transitively.
func (m *Manager) validate() error {
	var (
		errs    []error
		invalid = map[Bean]bool{}
		deps    = map[Bean][]Bean{}
	)
	beans := m.beans.all()
	for _, b := range beans {
		ds, derrs := m.dependencies(b)
		if len(derrs) > 0 {
			invalid[b] = true
			errs = append(errs, derrs...)
		}
		deps[b] = ds
	}
	// Lookups may have synthesized provider beans.
	beans = m.beans.all()

	g := newBeanGraph(beans)
	for _, b := range beans {
		if invalid[b] {
			continue
		}
		for _, d := range deps[b] {
			if err := g.depends(b, d); err != nil {
				var cerr CycleError
				if errors.As(err, &cerr) {
					for _, c := range g.cycleMembers(err) {
						invalid[c] = true
					}
				}
				invalid[b] = true
				errs = append(errs, err)
			}
		}
	}

	for changed := true; changed; {
		changed = false
		for _, b := range beans {
			if invalid[b] {
				continue
			}
			for _, d := range deps[b] {
				if invalid[d] {
					invalid[b] = true
					changed = true
					errs = append(errs, DefinitionError{Type: b.DeclaringType(), Member: b.String(), Reason: "depends on invalid " + d.String()})
					break
				}
			}
		}
	}

	var drop []Bean
	for _, b := range beans {
		if invalid[b] {
			m.log.Warn("removing invalid bean", slog.String("bean", b.String()))
			drop = append(drop, b)
		}
	}
	m.beans.remove(drop...)
	return errors.Join(errs...)
}

// beanGraph is the dependency graph of beans: an edge leads from a bean to
// each bean it depends on.
type beanGraph struct {
	dag  *dag.DirectedAcyclicGraph[int]
	byID map[int]Bean
}

func newBeanGraph(beans []Bean) *beanGraph {
	g := &beanGraph{dag: dag.NewDirectedAcyclicGraph[int](), byID: make(map[int]Bean, len(beans))}
	for _, b := range beans {
		id := b.base().id
		if _, ok := g.byID[id]; ok {
			continue
		}
		g.byID[id] = b
		_ = g.dag.AddVertex(id)
	}
	return g
}

// depends adds the edge from b to d. An edge closing a cycle is rejected
// with a CycleError wrapping the graph's own error.
func (g *beanGraph) depends(b, d Bean) error {
	from, to := b.base().id, d.base().id
	if !g.dag.Contains(to) {
		return nil
	}
	err := g.dag.AddEdge(from, to)
	switch {
	case err == nil:
		return nil
	case errors.Is(err, dag.ErrSelfReference):
		return cycleWrap{CycleError{Chain: []string{b.String(), b.String()}}, err}
	}
	var cerr *dag.CycleError
	if errors.As(err, &cerr) {
		return cycleWrap{CycleError{Chain: g.names(cerr.Cycle)}, err}
	}
	return err
}

// cycleWrap is a CycleError that keeps the graph error it came from.
type cycleWrap struct {
	CycleError
	cause error
}

func (e cycleWrap) Unwrap() []error { return []error{e.CycleError, e.cause} }

func (g *beanGraph) names(ids []string) []string {
	out := make([]string, len(ids))
	for i, s := range ids {
		out[i] = s
		if id, err := strconv.Atoi(s); err == nil {
			if b, ok := g.byID[id]; ok {
				out[i] = b.String()
			}
		}
	}
	return out
}

// cycleMembers returns the beans named by the cycle in err.
func (g *beanGraph) cycleMembers(err error) []Bean {
	var cerr *dag.CycleError
	if !errors.As(err, &cerr) {
		return nil
	}
	var out []Bean
	for _, s := range cerr.Cycle {
		if id, err := strconv.Atoi(s); err == nil {
			if b, ok := g.byID[id]; ok {
				out = append(out, b)
			}
		}
	}
	return out
}

// graph builds the dependency graph of beans.
func (m *Manager) graph(beans []Bean) (*beanGraph, error) {
	g := newBeanGraph(beans)
	var errs []error
	for _, b := range beans {
		deps, derrs := m.dependencies(b)
		errs = append(errs, derrs...)
		for _, d := range deps {
			if err := g.depends(b, d); err != nil {
				errs = append(errs, err)
			}
		}
	}
	return g, errors.Join(errs...)
}

// order returns the beans dependencies first.
func (g *beanGraph) order() ([]Bean, error) {
	ids, err := g.dag.TopologicalSort()
	if err != nil {
		var cerr *dag.CycleError
		if errors.As(err, &cerr) {
			return nil, cycleWrap{CycleError{Chain: g.names(cerr.Cycle)}, err}
		}
		return nil, err
	}
	out := make([]Bean, 0, len(ids))
	for _, id := range ids {
		out = append(out, g.byID[id])
	}
	return out, nil
}
