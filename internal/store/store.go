package store

import (
	"fmt"
	"log/slog"
	"slices"
	"sync"
	"sync/atomic"

	"github.com/roach88/statetree/internal/reactive"
)

// Store is a live module tree runtime.
//
// Thread-safety: Commit, Dispatch, the subscription methods and the read
// accessors are safe for concurrent use. RegisterModule, UnregisterModule
// and HotUpdate must be serialized by the caller.
type Store struct {
	logger     *slog.Logger
	eng        *reactive.Engine
	clock      *Clock
	flowGen    FlowTokenGenerator
	strict     bool
	production bool
	devtools   DevtoolsHook

	tree *Tree

	regMu         sync.RWMutex
	reg           *registry
	getters       *getterView
	unwatchStrict func()

	rootMu sync.RWMutex
	root   *reactive.Object

	commitMu   sync.Mutex
	commitHeld atomic.Bool // commitMu is held by a top-level commit
	committing atomic.Bool

	syncMu       sync.Mutex
	deferredSync []func()

	subMu             sync.Mutex
	subscribers       []*mutationSub
	actionSubscribers []*actionSub

	pluginMu       sync.Mutex
	initialPlugins []Plugin
	installed      map[string]struct{}
	installing     map[string]chan struct{} // closed when that Apply returns
	pluginOrder    []string
}

// New builds the module tree from def, installs it and applies plugins.
// Structural problems in def return a *BuildError.
func New(def *Definition, opts ...Option) (*Store, error) {
	s := &Store{
		logger:     slog.Default(),
		clock:      NewClock(),
		flowGen:    UUIDv7Generator{},
		installed:  make(map[string]struct{}),
		installing: make(map[string]chan struct{}),
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.eng == nil {
		s.eng = reactive.New()
	}
	if err := s.eng.Bind(s); err != nil {
		return nil, fmt.Errorf("store: %w", err)
	}

	tree, err := NewTree(def)
	if err != nil {
		return nil, err
	}
	s.tree = tree
	s.root = s.eng.Wrap(tree.Root().state)

	reg := newRegistry()
	s.installModule(reg, s.root, nil, tree.Root(), false)
	s.regMu.Lock()
	s.reg = reg
	s.regMu.Unlock()
	s.resetGetters(false)

	for _, p := range s.initialPlugins {
		if err := s.Use(p); err != nil {
			return nil, err
		}
	}
	if s.devtools != nil {
		if err := s.Use(devtoolsPlugin{hook: s.devtools}); err != nil {
			return nil, err
		}
	}

	s.logger.Debug("store created",
		"strict", s.strict,
		"mutations", len(reg.mutations),
		"actions", len(reg.actions),
		"getters", len(reg.getters))
	return s, nil
}

// State returns the live root state. Write to it only from mutation
// handlers.
func (s *Store) State() *reactive.Object {
	s.rootMu.RLock()
	defer s.rootMu.RUnlock()
	return s.root
}

// Getters returns the current flat, namespaced getter view.
func (s *Store) Getters() Getters {
	s.regMu.RLock()
	defer s.regMu.RUnlock()
	return s.getters
}

// Engine returns the reactive engine bound to this store.
func (s *Store) Engine() *reactive.Engine {
	return s.eng
}

// Clock returns the store's logical clock.
func (s *Store) Clock() *Clock {
	return s.clock
}

// Tree returns the module tree.
func (s *Store) Tree() *Tree {
	return s.tree
}

// Logger returns the store's logger.
func (s *Store) Logger() *slog.Logger {
	return s.logger
}

// ModuleByNamespace returns the namespaced module registered under ns,
// e.g. "cart/".
func (s *Store) ModuleByNamespace(ns string) (*Module, bool) {
	s.regMu.RLock()
	defer s.regMu.RUnlock()
	m, ok := s.reg.namespaces[ns]
	return m, ok
}

// MutationTypes returns every registered mutation type, sorted.
func (s *Store) MutationTypes() []string {
	s.regMu.RLock()
	defer s.regMu.RUnlock()
	return sortedKeys(s.reg.mutations)
}

// ActionTypes returns every registered action type, sorted.
func (s *Store) ActionTypes() []string {
	s.regMu.RLock()
	defer s.regMu.RUnlock()
	return sortedKeys(s.reg.actions)
}

// GetterTypes returns every registered getter type, sorted.
func (s *Store) GetterTypes() []string {
	s.regMu.RLock()
	defer s.regMu.RUnlock()
	return sortedKeys(s.reg.getters)
}

// report sends a non-fatal error to the logger and the devtools hook.
func (s *Store) report(err *Error) {
	attrs := []any{"code", string(err.Code)}
	if err.Type != "" {
		attrs = append(attrs, "type", err.Type)
	}
	if len(err.Path) > 0 {
		attrs = append(attrs, "path", slices.Clone(err.Path))
	}

	switch err.Code {
	case CodeStaticModule, CodeHotAdd:
		s.logger.Warn(err.Message, attrs...)
	default:
		s.logger.Error(err.Message, attrs...)
	}
	if s.devtools != nil {
		s.devtools.Error(err)
	}
}

// withCommit runs fn inside the committing window, restoring the previous
// flag afterwards so nested windows are safe.
func (s *Store) withCommit(fn func()) {
	prev := s.committing.Swap(true)
	defer s.committing.Store(prev)
	fn()
}

// Committing reports whether a commit window is open.
func (s *Store) Committing() bool {
	return s.committing.Load()
}
