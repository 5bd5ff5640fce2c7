package plugin

import (
	"strconv"
	"strings"

	"github.com/sghaida/plugdi/scan"
)

const (
	// Directive is the directive name marking a plugin type:
	//
	//	//plugdi:plugin name=Console namespace=Appender element=appender printable defer aliases=Out,StdOut priority=-10
	Directive = "plugin"

	// DefaultNamespace is used when a plugin directive names none.
	DefaultNamespace = "Core"
)

// EntriesFromDirective converts a plugin directive on className into its main
// entry followed by one entry per alias. Alias entries keep the display name
// and default their element type to the alias.
func EntriesFromDirective(className string, d scan.Directive) ([]Entry, error) {
	name := strings.TrimSpace(d.Attr("name"))
	if name == "" {
		return nil, DirectiveError{ClassName: className, Reason: "missing name"}
	}
	namespace := strings.TrimSpace(d.Attr("namespace"))
	if namespace == "" {
		namespace = DefaultNamespace
	}

	main := NewEntry(namespace, name, className)
	main.ElementType = strings.TrimSpace(d.Attr("element"))
	main.Printable = d.Bool("printable")
	main.DeferChildren = d.Bool("defer")
	if d.Has("priority") {
		p, err := strconv.ParseInt(d.Attr("priority"), 10, 32)
		if err != nil {
			return nil, DirectiveError{ClassName: className, Reason: "priority " + strconv.Quote(d.Attr("priority")) + " is not an int32"}
		}
		main.Priority = WithPriority(int32(p))
	}

	out := []Entry{main}
	if aliases := d.Attr("aliases"); aliases != "" {
		for _, alias := range strings.Split(aliases, ",") {
			alias = strings.TrimSpace(alias)
			if alias == "" || NormalizeKey(alias) == main.Key {
				continue
			}
			e := main
			e.Key = NormalizeKey(alias)
			if main.ElementType == "" {
				e.ElementType = alias
			}
			out = append(out, e)
		}
	}
	return out, nil
}

// EntriesFromCandidate reads the plugin directive of a scanned candidate. ok
// is false when the candidate carries none.
func EntriesFromCandidate(c *scan.Candidate) (entries []Entry, ok bool, err error) {
	d, ok := c.Directive(Directive)
	if !ok {
		return nil, false, nil
	}
	entries, err = EntriesFromDirective(c.Name, d)
	return entries, true, err
}
