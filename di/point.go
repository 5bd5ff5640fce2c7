package di

import (
	"reflect"
	"strconv"
	"strings"
)

// MemberKind is the kind of member an injection point belongs to.
type MemberKind int

const (
	ConstructorMember MemberKind = iota + 1
	FieldMember
	MethodMember
	ProducerMember
	DisposerMember
)

func (k MemberKind) String() string {
	switch k {
	case ConstructorMember:
		return "constructor"
	case FieldMember:
		return "field"
	case MethodMember:
		return "method"
	case ProducerMember:
		return "producer"
	case DisposerMember:
		return "disposer"
	}
	return "member(" + strconv.Itoa(int(k)) + ")"
}

// Member identifies the constructor, field or method declaring a point.
type Member struct {
	Kind  MemberKind
	Owner reflect.Type
	Name  string
}

func (m Member) String() string {
	if m.Owner == nil {
		return m.Kind.String() + " " + m.Name
	}
	return m.Kind.String() + " " + m.Owner.String() + "." + m.Name
}

// InjectionPoint is a site that needs a resolved dependency: a field or a
// constructor, method, producer or disposer parameter.
type InjectionPoint struct {
	Type    reflect.Type
	Name    string
	Aliases []string
	// Bean owns the point; nil for ad-hoc lookups.
	Bean   Bean
	Member Member
	// Element is "field X" or "param N".
	Element string
}

// Equal compares points by owning bean, member and element.
func (p *InjectionPoint) Equal(o *InjectionPoint) bool {
	return p.Bean == o.Bean && p.Member == o.Member && p.Element == o.Element
}

// accepts reports whether b's name satisfies the point's qualifiers. An
// unnamed point accepts any bean.
func (p *InjectionPoint) accepts(b Bean) bool {
	if p.Name == "" {
		return true
	}
	names := append([]string{b.Name()}, b.Aliases()...)
	for _, n := range names {
		if n == "" {
			continue
		}
		if strings.EqualFold(n, p.Name) {
			return true
		}
		for _, a := range p.Aliases {
			if strings.EqualFold(n, a) {
				return true
			}
		}
	}
	return false
}

func (p *InjectionPoint) String() string {
	var sb strings.Builder
	sb.WriteString(typeString(p.Type))
	if p.Name != "" {
		sb.WriteString(" named " + strconv.Quote(p.Name))
	}
	if len(p.Aliases) > 0 {
		sb.WriteString(" (aliases " + strings.Join(p.Aliases, ",") + ")")
	}
	if p.Member.Kind != 0 {
		sb.WriteString(" at " + p.Member.String())
		if p.Element != "" {
			sb.WriteString(" " + p.Element)
		}
	}
	return sb.String()
}

func paramElement(i int) string { return "param " + strconv.Itoa(i) }
