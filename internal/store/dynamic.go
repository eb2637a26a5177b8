package store

import (
	"slices"
	"strings"

	"github.com/roach88/statetree/internal/ir"
)

// RegisterModule builds def and installs it at path. State already present
// at path is kept when PreserveState is given; otherwise the module's
// initial state is grafted in. All getters are rebuilt afterwards.
func (s *Store) RegisterModule(path []string, def *Definition, opts ...RegisterOption) error {
	var o registerOptions
	for _, opt := range opts {
		opt(&o)
	}

	m, err := s.tree.Register(path, def)
	if err != nil {
		return err
	}

	hot := o.preserveState && s.State().Walk(path) != nil

	reg := s.current().clone()
	s.installModule(reg, s.State(), slices.Clone(path), m, hot)
	s.regMu.Lock()
	s.reg = reg
	s.regMu.Unlock()
	s.resetGetters(false)

	s.logger.Debug("module registered", "path", path, "preserve_state", hot)
	return nil
}

// UnregisterModule removes a module added with RegisterModule, deletes its
// state branch and reinstalls the remaining tree. Modules that were part of
// the initial tree are reported and left in place.
func (s *Store) UnregisterModule(path []string) error {
	if len(path) > 0 {
		m, ok := s.tree.Get(path)
		switch {
		case !ok:
			s.report(&Error{Code: CodeStaticModule, Message: "module is not registered", Path: path})
			return nil
		case !m.Runtime():
			s.report(&Error{Code: CodeStaticModule, Message: "cannot unregister a module that was not registered at runtime", Path: path})
			return nil
		}
	}

	removed, err := s.tree.Unregister(path)
	if err != nil || !removed {
		return err
	}

	s.lockCommit()
	s.withCommit(func() {
		if parent := s.State().Walk(path[:len(path)-1]); parent != nil {
			s.eng.Delete(parent, path[len(path)-1])
		}
	})
	s.unlockCommit()

	s.resetStore(false)
	s.runDeferredSync()
	s.eng.Flush()

	s.logger.Debug("module unregistered", "path", path)
	return nil
}

// HotUpdate swaps in new handlers and getters from def while keeping all
// state. Modules in def that do not exist yet are reported and skipped.
func (s *Store) HotUpdate(def *Definition) error {
	if _, err := NewTree(def); err != nil {
		return err
	}

	for _, p := range s.tree.Update(def) {
		s.report(&Error{
			Code:    CodeHotAdd,
			Message: "cannot add a new module on hot update, a manual reload is needed",
			Path:    splitPath(p),
		})
	}

	s.resetStore(true)
	s.logger.Debug("hot update applied")
	return nil
}

// ReplaceState swaps the whole root state, e.g. for devtools time travel.
// The swap counts as a commit.
func (s *Store) ReplaceState(state ir.IRObject) error {
	root := s.eng.Wrap(state)

	s.lockCommit()
	s.withCommit(func() {
		s.rootMu.Lock()
		s.root = root
		s.rootMu.Unlock()
		s.eng.Trigger()
	})
	s.unlockCommit()

	s.runDeferredSync()
	s.eng.Flush()
	return nil
}

// resetStore rebuilds every registry from the tree against the existing
// state, then republishes getters.
func (s *Store) resetStore(hot bool) {
	reg := newRegistry()
	s.installModule(reg, s.State(), nil, s.tree.Root(), true)
	s.regMu.Lock()
	s.reg = reg
	s.regMu.Unlock()
	s.resetGetters(hot)
}

func splitPath(p string) []string {
	if p == "" {
		return nil
	}
	return strings.Split(p, "/")
}
