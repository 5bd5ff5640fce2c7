package scan

import (
	"context"
	"fmt"
	"io/fs"
	"log/slog"
	"net/url"
	"path"
	"reflect"
	"sort"
	"strings"
	"sync"

	slogcontext "github.com/veqryn/slog-context"
	"golang.org/x/sync/errgroup"
)

// maxConcurrentRoots bounds how many roots of one package are walked at once.
const maxConcurrentRoots = 4

// Scanner accumulates the types and resources matched by successive Find
// calls. Matches are sets: scanning the same package twice changes nothing.
type Scanner struct {
	loader     *Loader
	sourceOnly bool

	mu         sync.Mutex
	candidates map[string]*Candidate
	resources  map[string]*url.URL
}

// ScannerOption configures a Scanner.
type ScannerOption func(*Scanner)

// SourceOnly keeps matched candidates without loading their types. Tools
// reading sources of other programs, whose types are not linked in, use it.
// Tests that need a type, such as IsA, still load it and skip on failure.
func SourceOnly() ScannerOption {
	return func(s *Scanner) { s.sourceOnly = true }
}

func NewScanner(loader *Loader, opts ...ScannerOption) *Scanner {
	s := &Scanner{
		loader:     loader,
		candidates: make(map[string]*Candidate),
		resources:  make(map[string]*url.URL),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Find scans each package with test and returns the scanner for chaining.
func (s *Scanner) Find(ctx context.Context, test Test, packages ...string) *Scanner {
	for _, pkg := range packages {
		s.FindInPackage(ctx, test, pkg)
	}
	return s
}

// FindInPackage scans every root serving pkg, including sub-packages.
func (s *Scanner) FindInPackage(ctx context.Context, test Test, pkg string) {
	dirs := s.loader.PackageDirs(pkg)
	if len(dirs) == 0 {
		slogcontext.Log(ctx, slog.LevelDebug, "no roots serve package", slog.String("package", pkg))
		return
	}

	var g errgroup.Group
	g.SetLimit(maxConcurrentRoots)
	for _, d := range dirs {
		g.Go(func() error {
			s.walk(ctx, test, d)
			return nil
		})
	}
	_ = g.Wait()
}

func (s *Scanner) walk(ctx context.Context, test Test, d PackageDir) {
	log := slogcontext.FromCtx(ctx).With(slog.String("root", d.Root.Name), slog.String("package", d.ImportPath))

	err := fs.WalkDir(d.Root.FS, d.Dir, func(p string, de fs.DirEntry, err error) error {
		if err != nil {
			log.Warn("could not read path, skipping", slog.String("path", p), slog.Any("error", err))
			if de != nil && de.IsDir() && p != d.Dir {
				return fs.SkipDir
			}
			return nil
		}
		if de.IsDir() {
			if p != d.Dir && skipDir(de.Name()) {
				return fs.SkipDir
			}
			return nil
		}

		res := Resource{Root: d.Root, Path: p}
		if strings.HasSuffix(p, ".go") {
			if test.DoesMatchType() && !strings.HasSuffix(p, "_test.go") {
				s.checkSource(ctx, log, test, res, importPathOf(d, path.Dir(p)))
			}
			return nil
		}
		if test.DoesMatchResource() {
			s.checkResource(log, test, res)
		}
		return nil
	})
	if err != nil {
		log.Warn("walk aborted", slog.Any("error", err))
	}
}

func (s *Scanner) checkSource(ctx context.Context, log *slog.Logger, test Test, res Resource, importPath string) {
	src, err := fs.ReadFile(res.Root.FS, res.Path)
	if err != nil {
		log.Warn("could not read source, skipping", slog.String("path", res.Path), slog.Any("error", err))
		return
	}
	candidates, derrs, err := ParseCandidates(res, importPath, src, s.loader)
	if err != nil {
		log.Warn("could not parse source, skipping", slog.String("path", res.Path), slog.Any("error", err))
		return
	}
	for _, derr := range derrs {
		log.Warn("ignoring directive", slog.String("path", res.Path), slog.Any("error", derr))
	}

	for _, c := range candidates {
		ok, err := matchType(test, c)
		if err != nil {
			log.Warn("type test failed, skipping", slog.String("type", c.Name), slog.Any("error", err))
			continue
		}
		if !ok {
			continue
		}
		if !s.sourceOnly {
			if _, err := c.Type(); err != nil {
				log.Warn("could not load matched type, skipping", slog.String("type", c.Name), slog.Any("error", err))
				continue
			}
		}
		s.mu.Lock()
		if _, seen := s.candidates[c.Name]; !seen {
			s.candidates[c.Name] = c
		}
		s.mu.Unlock()
		slogcontext.Log(ctx, slog.LevelDebug, "matched type", slog.String("type", c.Name))
	}
}

func (s *Scanner) checkResource(log *slog.Logger, test Test, res Resource) {
	uri := res.URI()
	ok, err := matchResource(test, uri)
	if err != nil {
		log.Warn("resource test failed, skipping", slog.String("resource", uri.String()), slog.Any("error", err))
		return
	}
	if !ok {
		return
	}
	s.mu.Lock()
	s.resources[uri.String()] = uri
	s.mu.Unlock()
}

// Types returns the matched types ordered by name. Candidates whose type
// cannot be loaded are left out.
func (s *Scanner) Types() []reflect.Type {
	cs := s.Candidates()
	out := make([]reflect.Type, 0, len(cs))
	for _, c := range cs {
		if t, err := c.Type(); err == nil {
			out = append(out, t)
		}
	}
	return out
}

// Candidates returns the matched candidates ordered by name.
func (s *Scanner) Candidates() []*Candidate {
	s.mu.Lock()
	out := make([]*Candidate, 0, len(s.candidates))
	for _, c := range s.candidates {
		out = append(out, c)
	}
	s.mu.Unlock()
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out
}

// Resources returns the matched resource URIs ordered by their string form.
func (s *Scanner) Resources() []*url.URL {
	s.mu.Lock()
	out := make([]*url.URL, 0, len(s.resources))
	for _, u := range s.resources {
		out = append(out, u)
	}
	s.mu.Unlock()
	sort.Slice(out, func(i, j int) bool { return out[i].String() < out[j].String() })
	return out
}

// Candidates walks pkg across all roots without running a test or loading
// types. Build tools use it to read directives from sources alone.
func (l *Loader) Candidates(ctx context.Context, pkg string) []*Candidate {
	s := NewScanner(l)
	var (
		mu  sync.Mutex
		out []*Candidate
	)
	collect := collectAll(func(c *Candidate) {
		mu.Lock()
		out = append(out, c)
		mu.Unlock()
	})
	s.FindInPackage(ctx, collect, pkg)
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out
}

// importPathOf converts a slash path inside a root back into an import path.
func importPathOf(d PackageDir, dir string) string {
	rel := strings.TrimPrefix(strings.TrimPrefix(dir, d.Dir), "/")
	if d.Dir == "." {
		rel = dir
	}
	switch {
	case rel == "" || rel == ".":
		return d.ImportPath
	case d.ImportPath == "":
		return rel
	default:
		return d.ImportPath + "/" + rel
	}
}

func skipDir(name string) bool {
	return name == "testdata" || name == "vendor" || strings.HasPrefix(name, ".") || strings.HasPrefix(name, "_")
}

func matchType(test Test, c *Candidate) (ok bool, err error) {
	defer func() {
		if rec := recover(); rec != nil {
			ok, err = false, fmt.Errorf("scan: panic in type test: %v", rec)
		}
	}()
	return test.MatchesType(c), nil
}

func matchResource(test Test, uri *url.URL) (ok bool, err error) {
	defer func() {
		if rec := recover(); rec != nil {
			ok, err = false, fmt.Errorf("scan: panic in resource test: %v", rec)
		}
	}()
	return test.MatchesResource(uri), nil
}
