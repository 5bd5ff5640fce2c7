// plugdi/plugincache/main.go
package main

import (
	"bytes"
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	slogcontext "github.com/veqryn/slog-context"

	"github.com/sghaida/plugdi/config"
	"github.com/sghaida/plugdi/plugin"
	"github.com/sghaida/plugdi/scan"
)

// options is the parsed command line.
type options struct {
	dir      string
	prefix   string
	packages []string
	out      string
	logLevel string
}

// listFlag collects a repeatable, comma-separated flag.
type listFlag []string

func (l *listFlag) String() string { return strings.Join(*l, ",") }

func (l *listFlag) Set(v string) error {
	for _, s := range strings.Split(v, ",") {
		if s = strings.TrimSpace(s); s != "" {
			*l = append(*l, s)
		}
	}
	return nil
}

func parseFlags(args []string) (options, error) {
	fs := flag.NewFlagSet("plugincache", flag.ContinueOnError)
	fs.SetOutput(io.Discard)

	var opts options
	var pkgs listFlag
	fs.StringVar(&opts.dir, "dir", ".", "source directory to scan")
	fs.StringVar(&opts.prefix, "prefix", "", "import path of -dir (default: derived from go.mod)")
	fs.Var(&pkgs, "pkg", "package to scan, repeatable or comma-separated (default: -prefix)")
	fs.StringVar(&opts.out, "out", "", "cache file to write (default: <dir>/"+plugin.CacheResource+")")
	fs.StringVar(&opts.logLevel, "log-level", "warn", "log level")

	if err := fs.Parse(args); err != nil {
		return options{}, err
	}
	if fs.NArg() > 0 {
		return options{}, fmt.Errorf("unexpected arguments: %s", strings.Join(fs.Args(), " "))
	}
	if !dirExists(opts.dir) {
		return options{}, &cmdError{msg: "source directory does not exist: " + filepath.ToSlash(opts.dir)}
	}
	if strings.TrimSpace(opts.prefix) == "" {
		abs, err := filepath.Abs(opts.dir)
		if err != nil {
			return options{}, err
		}
		modRoot, modPath, err := findModule(abs)
		if err != nil {
			return options{}, fmt.Errorf("missing -prefix: %w", err)
		}
		if opts.prefix, err = moduleImportPathForDir(modRoot, modPath, abs); err != nil {
			return options{}, err
		}
	}
	opts.packages = pkgs
	if len(opts.packages) == 0 {
		opts.packages = []string{opts.prefix}
	}
	if opts.out == "" {
		opts.out = filepath.Join(opts.dir, filepath.FromSlash(plugin.CacheResource))
	}
	return opts, nil
}

func run(args []string, stderr io.Writer) error {
	opts, err := parseFlags(args)
	if err != nil {
		return err
	}
	log, err := config.LogConfig{Level: opts.logLevel}.NewLogger(stderr)
	if err != nil {
		return err
	}
	ctx := slogcontext.NewCtx(context.Background(), log)

	loader := scan.NewLoader(scan.Isolated())
	loader.AddDir(opts.prefix, opts.dir)
	defer loader.Close()

	cache, err := build(ctx, loader, opts.packages)
	if err != nil {
		return err
	}

	var buf bytes.Buffer
	if err := cache.Sorted().Encode(&buf); err != nil {
		return err
	}
	if err := writeAtomic(opts.out, buf.Bytes()); err != nil {
		return err
	}
	log.Info("wrote plugin cache",
		slog.String("path", filepath.ToSlash(opts.out)),
		slog.Int("namespaces", len(cache.Namespaces())),
		slog.Int("plugins", cache.Len()))
	return nil
}

func main() {
	if err := run(os.Args[1:], os.Stderr); err != nil {
		fmt.Fprintln(os.Stderr, "plugincache:", err)
		os.Exit(1)
	}
}

// build scans packages for plugin directives. Malformed directives fail the
// build; a cache must never silently drop a declared plugin.
func build(ctx context.Context, loader *scan.Loader, packages []string) (*plugin.Cache, error) {
	found := scan.NewScanner(loader, scan.SourceOnly()).Find(ctx, scan.AnnotatedWith(plugin.Directive), packages...).Candidates()

	cache := plugin.NewCache()
	var errs []error
	for _, c := range found {
		entries, _, err := plugin.EntriesFromCandidate(c)
		if err != nil {
			errs = append(errs, fmt.Errorf("%s: %w", c.Source, err))
			continue
		}
		for _, e := range entries {
			if !cache.Add(e) {
				slogcontext.Log(ctx, slog.LevelWarn, "duplicate plugin key, keeping first",
					slog.String("namespace", e.Namespace), slog.String("key", e.Key), slog.String("class", e.ClassName))
			}
		}
	}
	return cache, errors.Join(errs...)
}

// writeAtomic writes data next to path and renames it into place.
func writeAtomic(path string, data []byte) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}
	tmp, err := os.CreateTemp(filepath.Dir(path), "."+filepath.Base(path)+".*")
	if err != nil {
		return err
	}
	defer os.Remove(tmp.Name())

	if _, err := tmp.Write(data); err != nil {
		_ = tmp.Close()
		return err
	}
	if err := tmp.Close(); err != nil {
		return err
	}
	if err := os.Chmod(tmp.Name(), 0o644); err != nil {
		return err
	}
	return os.Rename(tmp.Name(), path)
}

// -------------------------
// go.mod helpers
// -------------------------

type cmdError struct{ msg string }

func (e *cmdError) Error() string { return e.msg }

func findModule(startDir string) (modRoot string, modPath string, err error) {
	dir := startDir
	for {
		gomod := filepath.Join(dir, "go.mod")
		if fileExists(gomod) {
			b, rerr := os.ReadFile(gomod)
			if rerr != nil {
				return "", "", rerr
			}
			for _, ln := range strings.Split(string(b), "\n") {
				ln = strings.TrimSpace(ln)
				if strings.HasPrefix(ln, "module ") {
					mod := strings.Trim(strings.TrimSpace(strings.TrimPrefix(ln, "module ")), `"`)
					if mod == "" {
						return "", "", &cmdError{msg: "go.mod has empty module path at " + filepath.ToSlash(gomod)}
					}
					return dir, mod, nil
				}
			}
			return "", "", &cmdError{msg: "go.mod missing module directive at " + filepath.ToSlash(gomod)}
		}
		parent := filepath.Dir(dir)
		if parent == dir {
			break
		}
		dir = parent
	}
	return "", "", &cmdError{msg: "could not find go.mod starting from " + filepath.ToSlash(startDir)}
}

func moduleImportPathForDir(modRoot, modPath, dir string) (string, error) {
	rel, err := filepath.Rel(modRoot, dir)
	if err != nil {
		return "", err
	}
	rel = filepath.ToSlash(rel)

	if rel == "." {
		return modPath, nil
	}
	if strings.HasPrefix(rel, "../") || rel == ".." {
		return "", &cmdError{msg: "directory is outside module root: dir=" + filepath.ToSlash(dir) + " modRoot=" + filepath.ToSlash(modRoot)}
	}
	return modPath + "/" + rel, nil
}

func dirExists(path string) bool {
	st, err := os.Stat(path)
	return err == nil && st.IsDir()
}

func fileExists(path string) bool {
	st, err := os.Stat(path)
	return err == nil && !st.IsDir()
}
