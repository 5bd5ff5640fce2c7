package scan

import (
	"strconv"
	"strings"
)

// DirectivePrefix starts every directive comment.
const DirectivePrefix = "//plugdi:"

// Directive is one parsed "//plugdi:<name> key=value flag" comment.
type Directive struct {
	Name  string
	Attrs map[string]string
}

// Has reports whether key was given, with or without a value.
func (d Directive) Has(key string) bool {
	_, ok := d.Attrs[key]
	return ok
}

// Attr returns the value of key, or "" when absent.
func (d Directive) Attr(key string) string { return d.Attrs[key] }

// Bool reports whether key is set to a true value. A bare flag counts as true.
func (d Directive) Bool(key string) bool {
	v, ok := d.Attrs[key]
	if !ok {
		return false
	}
	b, err := strconv.ParseBool(v)
	return err == nil && b
}

// ParseDirective parses a comment line. ok is false when the line is not a
// directive at all.
func ParseDirective(line string) (d Directive, ok bool, err error) {
	line = strings.TrimSpace(line)
	if !strings.HasPrefix(line, DirectivePrefix) {
		return Directive{}, false, nil
	}
	fields, err := splitFields(line[len(DirectivePrefix):])
	if err != nil {
		return Directive{}, true, DirectiveError{Line: line, Reason: err.Error()}
	}
	if len(fields) == 0 || strings.Contains(fields[0], "=") {
		return Directive{}, true, DirectiveError{Line: line, Reason: "missing directive name"}
	}

	d = Directive{Name: fields[0], Attrs: make(map[string]string, len(fields)-1)}
	for _, f := range fields[1:] {
		key, val, hasVal := strings.Cut(f, "=")
		if key == "" {
			return Directive{}, true, DirectiveError{Line: line, Reason: "empty key"}
		}
		if !hasVal {
			val = "true"
		} else if strings.HasPrefix(val, `"`) {
			uq, err := strconv.Unquote(val)
			if err != nil {
				return Directive{}, true, DirectiveError{Line: line, Reason: "bad quoted value for " + key}
			}
			val = uq
		}
		d.Attrs[key] = val
	}
	return d, true, nil
}

// splitFields splits on spaces outside double quotes.
func splitFields(s string) ([]string, error) {
	var (
		out     []string
		cur     strings.Builder
		quoted  bool
		escaped bool
	)
	flush := func() {
		if cur.Len() > 0 {
			out = append(out, cur.String())
			cur.Reset()
		}
	}
	for _, r := range s {
		switch {
		case escaped:
			escaped = false
		case quoted && r == '\\':
			escaped = true
		case r == '"':
			quoted = !quoted
		case !quoted && (r == ' ' || r == '\t'):
			flush()
			continue
		}
		cur.WriteRune(r)
	}
	if quoted {
		return nil, strconv.ErrSyntax
	}
	flush()
	return out, nil
}
