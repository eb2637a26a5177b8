package store

import (
	"context"
	"fmt"
	"slices"

	"github.com/roach88/statetree/internal/reactive"
)

// installModule registers m and its subtree into reg. Unless hot is set or
// m is the root, each module's initial state is grafted onto its parent's
// state object.
func (s *Store) installModule(reg *registry, rootState *reactive.Object, path []string, m *Module, hot bool) {
	isRoot := len(path) == 0
	namespace := s.tree.Namespace(path)

	if m.Namespaced() {
		if prev, dup := reg.namespaces[namespace]; dup && prev != m {
			s.logger.Warn("duplicate namespace", "namespace", namespace, "path", path)
		}
		reg.namespaces[namespace] = m
	}

	if !isRoot && !hot {
		parent := rootState.Walk(path[:len(path)-1])
		key := path[len(path)-1]
		if parent == nil {
			s.logger.Warn("parent state missing; module state not grafted", "path", path)
		} else {
			s.withCommit(func() {
				parent.Set(key, m.state)
			})
		}
	}

	local := s.newLocalContext(namespace, path)

	for _, key := range m.MutationKeys() {
		s.registerMutation(reg, namespace+key, m.raw.Mutations[key], local)
	}
	for _, key := range m.ActionKeys() {
		action := m.raw.Actions[key]
		typ := namespace + key
		if action.Root {
			typ = key
		}
		s.registerAction(reg, typ, action.Handler, local)
	}
	for _, key := range m.GetterKeys() {
		s.registerGetter(reg, namespace+key, m.raw.Getters[key], local)
	}

	for _, key := range m.order {
		childPath := append(slices.Clone(path), key)
		s.installModule(reg, rootState, childPath, m.children[key], hot)
	}
}

func (s *Store) registerMutation(reg *registry, typ string, h MutationHandler, local *LocalContext) {
	reg.mutations[typ] = append(reg.mutations[typ], func(ctx context.Context, payload any) {
		h(ctx, local.State(), payload)
	})
}

func (s *Store) registerAction(reg *registry, typ string, h ActionHandler, local *LocalContext) {
	reg.actions[typ] = append(reg.actions[typ], func(ctx context.Context, payload any) (res any, err error) {
		defer func() {
			if r := recover(); r != nil {
				err = &PanicError{Type: typ, Value: r}
			}
			if err != nil && s.devtools != nil {
				s.devtools.Error(fmt.Errorf("action %q: %w", typ, err))
			}
		}()
		return h(ctx, local, payload)
	})
}

func (s *Store) registerGetter(reg *registry, typ string, g Getter, local *LocalContext) {
	if _, dup := reg.getters[typ]; dup {
		s.report(&Error{Code: CodeDuplicateGetter, Message: "duplicate getter key", Type: typ})
		return
	}
	reg.getters[typ] = func() any {
		return g(local.State(), local.Getters(), s.State(), s.Getters())
	}
}
