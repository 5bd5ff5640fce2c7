package scan

import (
	"go/ast"
	"go/parser"
	"go/token"
	"reflect"
	"sync"
)

// Candidate is a type declaration found in a scanned source file. Its type is
// loaded on first use of Type and memoized.
type Candidate struct {
	Name       string
	Package    string
	TypeName   string
	Directives []Directive
	Source     Resource

	loader *Loader
	once   sync.Once
	typ    reflect.Type
	err    error
}

// Directive returns the first directive with the given name.
func (c *Candidate) Directive(name string) (Directive, bool) {
	for _, d := range c.Directives {
		if d.Name == name {
			return d, true
		}
	}
	return Directive{}, false
}

// Type loads the candidate's type through its loader.
func (c *Candidate) Type() (reflect.Type, error) {
	c.once.Do(func() {
		if c.loader == nil {
			c.err = TypeNotFoundError{Name: c.Name}
			return
		}
		c.typ, c.err = c.loader.LoadType(c.Name)
	})
	return c.typ, c.err
}

// ParseCandidates parses one Go source file and returns every type it
// declares. Directive errors are returned next to the candidates that parsed.
func ParseCandidates(res Resource, importPath string, src []byte, loader *Loader) ([]*Candidate, []error, error) {
	fset := token.NewFileSet()
	file, err := parser.ParseFile(fset, res.Path, src, parser.ParseComments|parser.SkipObjectResolution)
	if err != nil {
		return nil, nil, err
	}

	var (
		out  []*Candidate
		errs []error
	)
	for _, decl := range file.Decls {
		gd, ok := decl.(*ast.GenDecl)
		if !ok || gd.Tok != token.TYPE {
			continue
		}
		for _, spec := range gd.Specs {
			ts := spec.(*ast.TypeSpec)
			doc := ts.Doc
			if doc == nil && len(gd.Specs) == 1 {
				doc = gd.Doc
			}
			dirs, derrs := directivesOf(doc)
			errs = append(errs, derrs...)
			out = append(out, &Candidate{
				Name:       importPath + "." + ts.Name.Name,
				Package:    importPath,
				TypeName:   ts.Name.Name,
				Directives: dirs,
				Source:     res,
				loader:     loader,
			})
		}
	}
	return out, errs, nil
}

func directivesOf(doc *ast.CommentGroup) ([]Directive, []error) {
	if doc == nil {
		return nil, nil
	}
	var (
		out  []Directive
		errs []error
	)
	for _, c := range doc.List {
		d, ok, err := ParseDirective(c.Text)
		switch {
		case !ok:
		case err != nil:
			errs = append(errs, err)
		default:
			out = append(out, d)
		}
	}
	return out, errs
}
