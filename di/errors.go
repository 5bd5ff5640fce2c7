package di

import (
	"errors"
	"reflect"
	"strconv"
	"strings"
)

var (
	// ErrNoScope is returned when a bean's scope has no registered ScopeContext.
	ErrNoScope = errors.New("di: no active scope context")

	// ErrClosed is returned by a Manager or ScopeContext after Close.
	ErrClosed = errors.New("di: closed")
)

// DefinitionError reports a class, member or bean that cannot be built.
type DefinitionError struct {
	Type   reflect.Type
	Member string
	Reason string
}

// Error implements the error interface.
func (e DefinitionError) Error() string {
	// Example: di: invalid definition of *app.Console member "NewConsole": multiple injectable constructors
	s := "di: invalid definition of " + typeString(e.Type)
	if e.Member != "" {
		s += " member " + strconv.Quote(e.Member)
	}
	return s + ": " + e.Reason
}

// UnsatisfiedDependencyError is returned when no bean matches an injection point.
type UnsatisfiedDependencyError struct{ Point *InjectionPoint }

// Error implements the error interface.
func (e UnsatisfiedDependencyError) Error() string {
	return "di: unsatisfied dependency for " + e.Point.String()
}

// AmbiguousDependencyError is returned when several beans match an injection
// point and none is preferred.
type AmbiguousDependencyError struct {
	Point *InjectionPoint
	Beans []Bean
}

// Error implements the error interface.
func (e AmbiguousDependencyError) Error() string {
	names := make([]string, len(e.Beans))
	for i, b := range e.Beans {
		names[i] = b.String()
	}
	return "di: ambiguous dependency for " + e.Point.String() + ": " +
		strconv.Itoa(len(e.Beans)) + " beans match (" + strings.Join(names, ", ") + ")"
}

// CycleError reports a dependency cycle. Chain starts and ends with the same bean.
type CycleError struct{ Chain []string }

// Error implements the error interface.
func (e CycleError) Error() string {
	return "di: dependency cycle: " + strings.Join(e.Chain, " -> ")
}

// LifecycleError wraps a failure of a constructor, post-construct, pre-destroy
// or disposer call.
type LifecycleError struct {
	Phase  string
	Type   reflect.Type
	Method string
	Err    error
}

// Error implements the error interface.
func (e LifecycleError) Error() string {
	// Example: di: pre-destroy *app.File.Close failed: disk full
	return "di: " + e.Phase + " " + typeString(e.Type) + "." + e.Method + " failed: " + e.Err.Error()
}

func (e LifecycleError) Unwrap() error { return e.Err }

func typeString(t reflect.Type) string {
	if t == nil {
		return "<nil>"
	}
	return t.String()
}
