package scan

import (
	"archive/zip"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"net/url"
	"os"
	"path"
	"path/filepath"
	"reflect"
	"strings"
	"sync"
)

// Root is one loading root. It serves the package directories of the import
// paths under Prefix; with an empty Prefix the directory layout mirrors full
// import paths.
type Root struct {
	Name   string
	Prefix string
	FS     fs.FS
}

// dirFor maps an import path onto a directory of the root. base is the import
// path of the returned directory.
func (r Root) dirFor(pkg string) (dir, base string, ok bool) {
	pkg = strings.Trim(pkg, "/")
	prefix := strings.Trim(r.Prefix, "/")
	switch {
	case prefix == "" && pkg == "":
		return ".", "", true
	case prefix == "":
		return pkg, pkg, true
	case pkg == prefix, pkg == "":
		return ".", prefix, true
	case strings.HasPrefix(pkg, prefix+"/"):
		return strings.TrimPrefix(pkg, prefix+"/"), pkg, true
	case strings.HasPrefix(prefix, pkg+"/"):
		// pkg is a parent of the root, so the whole root is below it.
		return ".", prefix, true
	}
	return "", "", false
}

// Resource is a file inside a root.
type Resource struct {
	Root Root
	Path string
}

// URI names the resource as plugdi://<root>/<path>.
func (r Resource) URI() *url.URL {
	return &url.URL{Scheme: "plugdi", Host: r.Root.Name, Path: "/" + r.Path}
}

// Open opens the resource for reading.
func (r Resource) Open() (fs.File, error) {
	return r.Root.FS.Open(r.Path)
}

func (r Resource) String() string { return r.URI().String() }

// PackageDir is the directory serving one import path inside one root.
type PackageDir struct {
	Root       Root
	Dir        string
	ImportPath string
}

// Loader resolves type names and enumerates roots.
// It is safe for concurrent use.
type Loader struct {
	mu       sync.RWMutex
	roots    []Root
	closers  []io.Closer
	types    *typeTable
	isolated bool
}

// LoaderOption configures a Loader.
type LoaderOption func(*Loader)

// WithRoots appends roots in order.
func WithRoots(roots ...Root) LoaderOption {
	return func(l *Loader) { l.roots = append(l.roots, roots...) }
}

// WithTypes defines types in the loader's own table.
func WithTypes(types ...reflect.Type) LoaderOption {
	return func(l *Loader) {
		for _, t := range types {
			l.types.define(t)
		}
	}
}

// Isolated stops the loader from falling back to the process type table.
func Isolated() LoaderOption {
	return func(l *Loader) { l.isolated = true }
}

func NewLoader(opts ...LoaderOption) *Loader {
	l := &Loader{types: newTypeTable()}
	for _, opt := range opts {
		opt(l)
	}
	return l
}

// AddRoot appends a root. Roots added later lose to earlier ones wherever
// enumeration order matters.
func (l *Loader) AddRoot(r Root) {
	l.mu.Lock()
	l.roots = append(l.roots, r)
	l.mu.Unlock()
}

// AddDir appends a directory root.
func (l *Loader) AddDir(prefix, dir string) {
	l.AddRoot(Root{Name: filepath.Base(dir), Prefix: prefix, FS: os.DirFS(dir)})
}

// AddArchive opens a zip archive and appends it as a root. The archive stays
// open until Close.
func (l *Loader) AddArchive(prefix, file string) error {
	rc, err := zip.OpenReader(file)
	if err != nil {
		return fmt.Errorf("scan: open archive %s: %w", file, err)
	}
	if len(rc.File) == 0 {
		_ = rc.Close()
		return fmt.Errorf("%w: %s is empty", ErrNoRoots, file)
	}
	l.mu.Lock()
	l.roots = append(l.roots, Root{Name: filepath.Base(file), Prefix: prefix, FS: &rc.Reader})
	l.closers = append(l.closers, rc)
	l.mu.Unlock()
	return nil
}

// Close releases archives opened by AddArchive.
func (l *Loader) Close() error {
	l.mu.Lock()
	closers := l.closers
	l.closers = nil
	l.mu.Unlock()

	var errs []error
	for _, c := range closers {
		errs = append(errs, c.Close())
	}
	return errors.Join(errs...)
}

// Roots returns a copy of the root list.
func (l *Loader) Roots() []Root {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return append([]Root(nil), l.roots...)
}

// Define adds types to the loader's own table.
func (l *Loader) Define(types ...reflect.Type) {
	for _, t := range types {
		l.types.define(t)
	}
}

// LoadType resolves a fully-qualified type name, first in the loader's own
// table, then in the process table.
func (l *Loader) LoadType(name string) (reflect.Type, error) {
	if t, ok := l.types.lookup(name); ok {
		return t, nil
	}
	if !l.isolated {
		if t, ok := registered.lookup(name); ok {
			return t, nil
		}
	}
	return nil, TypeNotFoundError{Name: name}
}

// PackageDirs lists, in root order, the directories serving pkg.
func (l *Loader) PackageDirs(pkg string) []PackageDir {
	var out []PackageDir
	for _, r := range l.Roots() {
		dir, base, ok := r.dirFor(pkg)
		if !ok {
			continue
		}
		info, err := fs.Stat(r.FS, dir)
		if err != nil || !info.IsDir() {
			continue
		}
		out = append(out, PackageDir{Root: r, Dir: dir, ImportPath: base})
	}
	return out
}

// Resources lists, in root order, every root holding the file name.
func (l *Loader) Resources(name string) []Resource {
	name = path.Clean(strings.TrimPrefix(name, "/"))
	var out []Resource
	for _, r := range l.Roots() {
		info, err := fs.Stat(r.FS, name)
		if err != nil || info.IsDir() {
			continue
		}
		out = append(out, Resource{Root: r, Path: name})
	}
	return out
}
