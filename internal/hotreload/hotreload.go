// Package hotreload recompiles a CUE module description when it changes on
// disk and hot-swaps the handlers of a running store.
package hotreload

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"

	"github.com/roach88/statetree/internal/compiler"
	"github.com/roach88/statetree/internal/store"
)

// DefaultDebounce is how long writes must settle before a reload.
const DefaultDebounce = 100 * time.Millisecond

// Reloader recompiles a module source and applies it with HotUpdate. A
// failed compile leaves the store's current handlers in place.
type Reloader struct {
	path     string
	store    *store.Store
	bindings compiler.Bindings

	debounce time.Duration
	logger   *slog.Logger
	onReload func(error)

	mu      sync.Mutex
	reloads int
}

// Option configures a Reloader.
type Option func(*Reloader)

// WithDebounce sets the settle delay between the last write and a reload.
func WithDebounce(d time.Duration) Option {
	return func(r *Reloader) {
		r.debounce = d
	}
}

// WithLogger sets the logger.
func WithLogger(l *slog.Logger) Option {
	return func(r *Reloader) {
		r.logger = l
	}
}

// WithOnReload registers a callback run after every reload attempt with
// its error, nil on success.
func WithOnReload(fn func(error)) Option {
	return func(r *Reloader) {
		r.onReload = fn
	}
}

// New creates a reloader for path, a .cue file or a directory holding one
// CUE package.
func New(path string, s *store.Store, b compiler.Bindings, opts ...Option) *Reloader {
	r := &Reloader{
		path:     filepath.Clean(path),
		store:    s,
		bindings: b,
		debounce: DefaultDebounce,
		logger:   slog.New(slog.NewTextHandler(io.Discard, nil)),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Reload compiles the source once and hot-updates the store.
func (r *Reloader) Reload() error {
	err := r.reload()

	r.mu.Lock()
	if err == nil {
		r.reloads++
	}
	r.mu.Unlock()

	if err != nil {
		r.logger.Error("hot reload failed", "path", r.path, "error", err)
	} else {
		r.logger.Info("hot reload applied", "path", r.path)
	}
	if r.onReload != nil {
		r.onReload(err)
	}
	return err
}

// Reloads returns the number of successful reloads.
func (r *Reloader) Reloads() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.reloads
}

func (r *Reloader) reload() error {
	spec, err := Load(r.path)
	if err != nil {
		return err
	}
	def, err := compiler.Build(spec, r.bindings)
	if err != nil {
		return fmt.Errorf("build %s: %w", r.path, err)
	}
	if err := r.store.HotUpdate(def); err != nil {
		return fmt.Errorf("hot update: %w", err)
	}
	return nil
}

// Load parses the module at path. It accepts what compiler.LoadPath does.
func Load(path string) (*compiler.ModuleSpec, error) {
	return compiler.LoadPath(path)
}

// Watch blocks until ctx is done, reloading after writes to the watched
// source settle. The parent directory of a file is watched so editors
// that replace files by rename are seen.
func (r *Reloader) Watch(ctx context.Context) error {
	w, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("create watcher: %w", err)
	}
	defer w.Close()

	dir, match := r.watchTarget()
	if err := w.Add(dir); err != nil {
		return fmt.Errorf("watch %s: %w", dir, err)
	}
	r.logger.Debug("watching", "dir", dir, "path", r.path)

	var timer *time.Timer
	fire := make(chan struct{}, 1)
	defer func() {
		if timer != nil {
			timer.Stop()
		}
	}()

	for {
		select {
		case <-ctx.Done():
			return nil

		case ev, ok := <-w.Events:
			if !ok {
				return nil
			}
			if !match(ev.Name) || !ev.Has(fsnotify.Write|fsnotify.Create|fsnotify.Rename) {
				continue
			}
			if timer != nil {
				timer.Stop()
			}
			timer = time.AfterFunc(r.debounce, func() {
				select {
				case fire <- struct{}{}:
				default:
				}
			})

		case <-fire:
			_ = r.Reload()

		case err, ok := <-w.Errors:
			if !ok {
				return nil
			}
			r.logger.Warn("watcher error", "error", err)
		}
	}
}

// watchTarget returns the directory to watch and a filter for its events.
func (r *Reloader) watchTarget() (string, func(string) bool) {
	info, err := os.Stat(r.path)
	if err == nil && info.IsDir() {
		return r.path, func(name string) bool { return filepath.Ext(name) == ".cue" }
	}
	return filepath.Dir(r.path), func(name string) bool { return filepath.Clean(name) == r.path }
}

// Watch is shorthand for New(path, s, b, opts...).Watch(ctx).
func Watch(ctx context.Context, path string, s *store.Store, b compiler.Bindings, opts ...Option) error {
	return New(path, s, b, opts...).Watch(ctx)
}
