package scan

import (
	"net/url"
	"reflect"
	"strings"
)

// Test decides which candidates and resources a Scanner keeps. Type tests
// receive the Candidate and load its type only when they need it.
type Test interface {
	MatchesType(c *Candidate) bool
	MatchesResource(uri *url.URL) bool
	DoesMatchType() bool
	DoesMatchResource() bool
}

// typeTest is embedded by tests that only look at types.
type typeTest struct{}

func (typeTest) MatchesResource(*url.URL) bool { return false }
func (typeTest) DoesMatchType() bool            { return true }
func (typeTest) DoesMatchResource() bool        { return false }

// AnnotatedWith matches types carrying a directive with the given name.
// It never loads a type to decide.
func AnnotatedWith(directive string) Test { return annotatedWith{name: directive} }

type annotatedWith struct {
	typeTest
	name string
}

func (a annotatedWith) MatchesType(c *Candidate) bool {
	_, ok := c.Directive(a.name)
	return ok
}

func (a annotatedWith) String() string { return "annotated with " + DirectivePrefix + a.name }

// IsA matches types assignable to parent. When parent is an interface, a
// type matches if it or a pointer to it implements parent.
func IsA(parent reflect.Type) Test { return isA{parent: parent} }

type isA struct {
	typeTest
	parent reflect.Type
}

func (a isA) MatchesType(c *Candidate) bool {
	t, err := c.Type()
	if err != nil {
		return false
	}
	if a.parent.Kind() == reflect.Interface {
		return t.Implements(a.parent) || reflect.PointerTo(t).Implements(a.parent)
	}
	return t.AssignableTo(a.parent)
}

func (a isA) String() string { return "is assignable to " + a.parent.String() }

// NameEndsWith matches type names ending in one of the suffixes.
func NameEndsWith(suffixes ...string) Test { return nameEndsWith{suffixes: suffixes} }

type nameEndsWith struct {
	typeTest
	suffixes []string
}

func (n nameEndsWith) MatchesType(c *Candidate) bool {
	return hasAnySuffix(c.TypeName, n.suffixes)
}

// ResourceNameEndsWith matches resource paths ending in one of the suffixes.
func ResourceNameEndsWith(suffixes ...string) Test {
	return resourceNameEndsWith{suffixes: suffixes}
}

type resourceNameEndsWith struct{ suffixes []string }

func (resourceNameEndsWith) MatchesType(*Candidate) bool { return false }
func (resourceNameEndsWith) DoesMatchType() bool         { return false }
func (resourceNameEndsWith) DoesMatchResource() bool     { return true }

func (r resourceNameEndsWith) MatchesResource(uri *url.URL) bool {
	return hasAnySuffix(uri.Path, r.suffixes)
}

// AnyOf matches what at least one of tests matches.
func AnyOf(tests ...Test) Test { return anyOf(tests) }

type anyOf []Test

func (a anyOf) MatchesType(c *Candidate) bool {
	for _, t := range a {
		if t.DoesMatchType() && t.MatchesType(c) {
			return true
		}
	}
	return false
}

func (a anyOf) MatchesResource(uri *url.URL) bool {
	for _, t := range a {
		if t.DoesMatchResource() && t.MatchesResource(uri) {
			return true
		}
	}
	return false
}

func (a anyOf) DoesMatchType() bool {
	for _, t := range a {
		if t.DoesMatchType() {
			return true
		}
	}
	return false
}

func (a anyOf) DoesMatchResource() bool {
	for _, t := range a {
		if t.DoesMatchResource() {
			return true
		}
	}
	return false
}

// collectAll hands every candidate to fn and matches nothing, so no type is
// ever loaded.
type collectAll func(c *Candidate)

func (f collectAll) MatchesType(c *Candidate) bool { f(c); return false }
func (collectAll) MatchesResource(*url.URL) bool   { return false }
func (collectAll) DoesMatchType() bool             { return true }
func (collectAll) DoesMatchResource() bool         { return false }

func hasAnySuffix(s string, suffixes []string) bool {
	for _, suf := range suffixes {
		if strings.HasSuffix(s, suf) {
			return true
		}
	}
	return false
}
