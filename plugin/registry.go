package plugin

import (
	"context"
	"log/slog"
	"maps"
	"slices"
	"sort"
	"strings"
	"sync"
	"sync/atomic"

	"github.com/google/uuid"
	slogcontext "github.com/veqryn/slog-context"
	"golang.org/x/sync/singleflight"

	"github.com/sghaida/plugdi/scan"
)

// DefaultPackage is scanned when the main source yields no plugins.
const DefaultPackage = "github.com/sghaida/plugdi/builtin"

// ModuleID identifies a dynamically added module.
type ModuleID string

type moduleSet map[ModuleID]Index

// Registry merges plugin types from the main source, modules and extra
// packages. It is safe for concurrent use; every source is built completely
// before it is published to readers.
type Registry struct {
	loader         *scan.Loader
	defaultPackage string
	services       []Service
	ownServices    bool

	mainMu sync.Mutex
	main   atomic.Pointer[Index]

	modMu   sync.Mutex
	modules atomic.Pointer[moduleSet]

	pkgGroup singleflight.Group
	pkgMu    sync.RWMutex
	packages map[string]Index
	// pkgGen counts evictions. A scan that began before one is not cached.
	pkgGen uint64
}

// Option configures a Registry.
type Option func(*Registry)

// WithDefaultPackage replaces DefaultPackage as the fallback scan target.
func WithDefaultPackage(pkg string) Option {
	return func(r *Registry) { r.defaultPackage = pkg }
}

// WithServices uses the given services instead of the process service list.
func WithServices(svcs ...Service) Option {
	return func(r *Registry) {
		r.services = svcs
		r.ownServices = true
	}
}

func NewRegistry(loader *scan.Loader, opts ...Option) *Registry {
	r := &Registry{
		loader:         loader,
		defaultPackage: DefaultPackage,
		packages:       make(map[string]Index),
	}
	for _, opt := range opts {
		opt(r)
	}
	empty := moduleSet{}
	r.modules.Store(&empty)
	return r
}

// GetNamespace returns a fresh namespace holding the types of all sources for
// name, merged by priority. The main source is merged first, then modules in
// ModuleID order, then packages in the order given.
func (r *Registry) GetNamespace(ctx context.Context, name string, packages []string) *Namespace {
	key := NormalizeKey(name)
	out := NewNamespace(name)

	out.MergeAll(r.LoadMain(ctx)[key])

	mods := *r.modules.Load()
	for _, id := range slices.Sorted(maps.Keys(mods)) {
		out.MergeAll(mods[id][key])
	}

	for _, pkg := range packages {
		pkg = strings.TrimSpace(pkg)
		if pkg == "" {
			continue
		}
		out.MergeAll(r.LoadPackage(ctx, pkg)[key])
	}
	return out
}

// Namespaces lists the names of every namespace known to the main source, the
// modules and the packages scanned so far.
func (r *Registry) Namespaces(ctx context.Context) []string {
	seen := map[string]string{}
	collect := func(idx Index) {
		for k, ns := range idx {
			if _, ok := seen[k]; !ok {
				seen[k] = ns.Name()
			}
		}
	}
	collect(r.LoadMain(ctx))
	for _, idx := range *r.modules.Load() {
		collect(idx)
	}
	r.pkgMu.RLock()
	for _, idx := range r.packages {
		collect(idx)
	}
	r.pkgMu.RUnlock()

	out := make([]string, 0, len(seen))
	for _, name := range seen {
		out = append(out, name)
	}
	sort.Strings(out)
	return out
}

// LoadMain returns the main source, building it on first use.
func (r *Registry) LoadMain(ctx context.Context) Index {
	if idx := r.main.Load(); idx != nil {
		return *idx
	}
	r.mainMu.Lock()
	defer r.mainMu.Unlock()
	if idx := r.main.Load(); idx != nil {
		return *idx
	}

	idx := r.buildMain(ctx)
	r.main.Store(&idx)
	return idx
}

func (r *Registry) buildMain(ctx context.Context) Index {
	idx := Index{}

	svcs := r.services
	if !r.ownServices {
		svcs = Services()
	}
	for _, svc := range svcs {
		for _, t := range svc.PluginTypes() {
			idx.add(t)
		}
	}

	cache := NewCache()
	cache.DecodeResources(ctx, r.loader.Resources(CacheResource))
	for _, t := range cache.Types(r.loader) {
		idx.add(t)
	}

	if len(idx) == 0 && r.defaultPackage != "" {
		slogcontext.Log(ctx, slog.LevelWarn, "no precompiled plugins found, scanning default package",
			slog.String("package", r.defaultPackage))
		idx = r.scanPackage(ctx, r.defaultPackage)
	}
	slogcontext.Log(ctx, slog.LevelDebug, "main plugin source loaded",
		slog.Int("namespaces", len(idx)), slog.Int("plugins", idx.size()))
	return idx
}

// AddModule decodes the cache resources of a module's loader and publishes
// them under id, replacing an earlier module with the same id. An empty id
// gets a generated one, which is returned.
func (r *Registry) AddModule(ctx context.Context, id ModuleID, loader *scan.Loader) ModuleID {
	cache := NewCache()
	cache.DecodeResources(ctx, loader.Resources(CacheResource))
	return r.AddModuleTypes(ctx, id, cache.Types(loader)...)
}

// AddModuleTypes publishes already built types under id.
func (r *Registry) AddModuleTypes(ctx context.Context, id ModuleID, types ...*Type) ModuleID {
	if id == "" {
		id = ModuleID(uuid.NewString())
	}
	idx := Index{}
	for _, t := range types {
		idx.add(t)
	}

	r.modMu.Lock()
	next := maps.Clone(*r.modules.Load())
	next[id] = idx
	r.modules.Store(&next)
	r.modMu.Unlock()

	slogcontext.Log(ctx, slog.LevelDebug, "module added",
		slog.String("module", string(id)), slog.Int("plugins", idx.size()))
	return id
}

// RemoveModule drops everything module id contributed. Other modules are not
// touched, even where they share keys.
func (r *Registry) RemoveModule(id ModuleID) bool {
	r.modMu.Lock()
	defer r.modMu.Unlock()
	cur := *r.modules.Load()
	if _, ok := cur[id]; !ok {
		return false
	}
	next := maps.Clone(cur)
	delete(next, id)
	r.modules.Store(&next)
	return true
}

// Modules lists the current module ids in order.
func (r *Registry) Modules() []ModuleID {
	return slices.Sorted(maps.Keys(*r.modules.Load()))
}

// LoadPackage scans pkg for plugin directives once and caches the result.
// Concurrent callers for the same package share one scan.
func (r *Registry) LoadPackage(ctx context.Context, pkg string) Index {
	if idx, ok := r.cachedPackage(pkg); ok {
		return idx
	}
	v, _, _ := r.pkgGroup.Do(pkg, func() (any, error) {
		r.pkgMu.RLock()
		idx, ok := r.packages[pkg]
		gen := r.pkgGen
		r.pkgMu.RUnlock()
		if ok {
			return idx, nil
		}
		idx = r.scanPackage(ctx, pkg)
		r.pkgMu.Lock()
		if r.pkgGen == gen {
			r.packages[pkg] = idx
		}
		r.pkgMu.Unlock()
		return idx, nil
	})
	return v.(Index)
}

func (r *Registry) cachedPackage(pkg string) (Index, bool) {
	r.pkgMu.RLock()
	defer r.pkgMu.RUnlock()
	idx, ok := r.packages[pkg]
	return idx, ok
}

// InvalidatePackages evicts cached package scans, all of them when none are
// named. The next lookup naming an evicted package rescans it, and a scan in
// flight when the eviction happens does not cache its result.
func (r *Registry) InvalidatePackages(pkgs ...string) {
	r.pkgMu.Lock()
	defer r.pkgMu.Unlock()
	r.pkgGen++
	if len(pkgs) == 0 {
		for pkg := range r.packages {
			r.pkgGroup.Forget(pkg)
		}
		clear(r.packages)
		return
	}
	for _, pkg := range pkgs {
		r.pkgGroup.Forget(pkg)
		delete(r.packages, pkg)
	}
}

// Reset drops every cached source. Modules are removed as well.
func (r *Registry) Reset() {
	r.mainMu.Lock()
	r.main.Store(nil)
	r.mainMu.Unlock()

	r.modMu.Lock()
	empty := moduleSet{}
	r.modules.Store(&empty)
	r.modMu.Unlock()

	r.InvalidatePackages()
}

func (r *Registry) scanPackage(ctx context.Context, pkg string) Index {
	s := scan.NewScanner(r.loader).Find(ctx, scan.AnnotatedWith(Directive), pkg)

	idx := Index{}
	for _, c := range s.Candidates() {
		t, err := c.Type()
		if err != nil {
			continue
		}
		entries, _, err := EntriesFromCandidate(c)
		if err != nil {
			slogcontext.Log(ctx, slog.LevelWarn, "skipping plugin", slog.Any("error", err))
			continue
		}
		for _, e := range entries {
			idx.add(ResolvedType(e, t))
		}
	}
	slogcontext.Log(ctx, slog.LevelDebug, "scanned plugin package",
		slog.String("package", pkg), slog.Int("plugins", idx.size()))
	return idx
}
