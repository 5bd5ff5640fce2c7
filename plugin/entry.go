package plugin

import (
	"cmp"
	"strconv"
	"strings"
)

// Priority orders entries that share a key. Lower values win; the zero value
// means no priority was declared and sorts after every declared one.
type Priority struct {
	value int32
	set   bool
}

// WithPriority declares a priority.
func WithPriority(v int32) Priority { return Priority{value: v, set: true} }

// Value returns the declared priority, if any.
func (p Priority) Value() (int32, bool) { return p.value, p.set }

// Compare returns a negative number when p wins over o, zero on a tie.
func (p Priority) Compare(o Priority) int {
	switch {
	case p.set && o.set:
		return cmp.Compare(p.value, o.value)
	case p.set:
		return -1
	case o.set:
		return 1
	}
	return 0
}

func (p Priority) String() string {
	if !p.set {
		return "none"
	}
	return strconv.Itoa(int(p.value))
}

// Entry is the metadata of one plugin. It is a value: copies never share
// state.
type Entry struct {
	// Key is the lower-cased lookup key, unique within a namespace.
	Key string
	// Name is the display name.
	Name string
	// ClassName is the fully-qualified type name, "import/path.TypeName".
	ClassName string
	Namespace string
	// ElementType is the configuration element tag. Empty means Name.
	ElementType   string
	Printable     bool
	DeferChildren bool
	Priority      Priority
}

// NewEntry builds an entry keyed by the lower-cased name.
func NewEntry(namespace, name, className string) Entry {
	return Entry{
		Key:       NormalizeKey(name),
		Name:      name,
		ClassName: className,
		Namespace: namespace,
	}
}

// ElementName returns ElementType, falling back to Name.
func (e Entry) ElementName() string {
	if e.ElementType != "" {
		return e.ElementType
	}
	return e.Name
}

func (e Entry) String() string {
	return e.Namespace + ":" + e.Key + " (" + e.ClassName + ")"
}

// NormalizeKey folds a key or namespace name for case-insensitive lookup.
func NormalizeKey(s string) string { return strings.ToLower(strings.TrimSpace(s)) }
