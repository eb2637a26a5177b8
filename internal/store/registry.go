package store

import (
	"context"
	"maps"
	"slices"
)

type mutationEntry func(ctx context.Context, payload any)

type actionEntry func(ctx context.Context, payload any) (any, error)

type wrappedGetter func() any

// registry holds the flat, namespaced handler tables derived from the
// module tree. A registry is never mutated once published; reinstalls
// build a new one and swap it in.
type registry struct {
	mutations  map[string][]mutationEntry
	actions    map[string][]actionEntry
	getters    map[string]wrappedGetter
	namespaces map[string]*Module
}

func newRegistry() *registry {
	return &registry{
		mutations:  make(map[string][]mutationEntry),
		actions:    make(map[string][]actionEntry),
		getters:    make(map[string]wrappedGetter),
		namespaces: make(map[string]*Module),
	}
}

// clone copies the tables so new registrations do not leak into the
// published registry.
func (r *registry) clone() *registry {
	out := &registry{
		mutations:  make(map[string][]mutationEntry, len(r.mutations)),
		actions:    make(map[string][]actionEntry, len(r.actions)),
		getters:    maps.Clone(r.getters),
		namespaces: maps.Clone(r.namespaces),
	}
	for k, v := range r.mutations {
		out.mutations[k] = slices.Clone(v)
	}
	for k, v := range r.actions {
		out.actions[k] = slices.Clone(v)
	}
	return out
}

func (s *Store) current() *registry {
	s.regMu.RLock()
	defer s.regMu.RUnlock()
	return s.reg
}

func (s *Store) lookupMutation(typ string) []mutationEntry {
	return s.current().mutations[typ]
}

func (s *Store) lookupAction(typ string) []actionEntry {
	return s.current().actions[typ]
}
