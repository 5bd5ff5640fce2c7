package plugin

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/fsnotify/fsnotify"
	slogcontext "github.com/veqryn/slog-context"
)

// Watcher evicts the registry's package scans when Go sources below the
// watched directories change, so the next lookup rescans them.
type Watcher struct {
	registry *Registry
	fsw      *fsnotify.Watcher
}

// NewWatcher watches every directory below dirs. Watches are in place when it
// returns.
func NewWatcher(r *Registry, dirs ...string) (*Watcher, error) {
	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("plugin: create watcher: %w", err)
	}
	w := &Watcher{registry: r, fsw: fsw}
	for _, dir := range dirs {
		if err := w.addTree(dir); err != nil {
			_ = fsw.Close()
			return nil, err
		}
	}
	return w, nil
}

func (w *Watcher) addTree(root string) error {
	return filepath.WalkDir(root, func(p string, d fs.DirEntry, err error) error {
		if err != nil {
			return fmt.Errorf("plugin: watch %s: %w", p, err)
		}
		if !d.IsDir() {
			return nil
		}
		if p != root && strings.HasPrefix(d.Name(), ".") {
			return filepath.SkipDir
		}
		if err := w.fsw.Add(p); err != nil {
			return fmt.Errorf("plugin: watch %s: %w", p, err)
		}
		return nil
	})
}

// Run handles events until ctx is done or the watcher is closed.
func (w *Watcher) Run(ctx context.Context) error {
	log := slogcontext.FromCtx(ctx)
	for {
		select {
		case <-ctx.Done():
			return nil
		case ev, ok := <-w.fsw.Events:
			if !ok {
				return nil
			}
			w.handle(log, ev)
		case err, ok := <-w.fsw.Errors:
			if !ok {
				return nil
			}
			log.Warn("plugin watcher error", slog.Any("error", err))
		}
	}
}

func (w *Watcher) handle(log *slog.Logger, ev fsnotify.Event) {
	if ev.Has(fsnotify.Create) {
		if info, err := os.Stat(ev.Name); err == nil && info.IsDir() {
			if err := w.addTree(ev.Name); err != nil {
				log.Warn("could not watch new directory", slog.Any("error", err))
			}
			w.registry.InvalidatePackages()
			return
		}
	}
	if !strings.HasSuffix(ev.Name, ".go") || ev.Has(fsnotify.Chmod) && !ev.Has(fsnotify.Write) {
		return
	}
	log.Debug("plugin sources changed, evicting package scans", slog.String("path", ev.Name))
	w.registry.InvalidatePackages()
}

// Close stops watching.
func (w *Watcher) Close() error {
	err := w.fsw.Close()
	if errors.Is(err, fsnotify.ErrClosed) {
		return nil
	}
	return err
}
