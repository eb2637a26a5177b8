package compiler

import (
	"context"

	"github.com/roach88/statetree/internal/reactive"
	"github.com/roach88/statetree/internal/store"
)

// StubBindings returns b with a no-op handler for every handler name spec
// refers to that b does not bind. Stub mutations change nothing, stub
// actions resolve to nil and stub getters return nil. Tools use it to
// build a module whose Go handlers live elsewhere.
func StubBindings(spec *ModuleSpec, b Bindings) Bindings {
	out := Bindings{
		Mutations: make(map[string]store.MutationHandler, len(b.Mutations)),
		Actions:   make(map[string]store.ActionHandler, len(b.Actions)),
		Getters:   make(map[string]store.Getter, len(b.Getters)),
	}
	for k, h := range b.Mutations {
		out.Mutations[k] = h
	}
	for k, h := range b.Actions {
		out.Actions[k] = h
	}
	for k, g := range b.Getters {
		out.Getters[k] = g
	}

	spec.Walk(func(_ []string, m *ModuleSpec) {
		for _, mut := range m.Mutations {
			if mut.Op == OpHandler && out.Mutations[mut.Handler] == nil {
				out.Mutations[mut.Handler] = stubMutation
			}
		}
		for _, a := range m.Actions {
			if a.Handler != "" && out.Actions[a.Handler] == nil {
				out.Actions[a.Handler] = stubAction
			}
		}
		for _, g := range m.Getters {
			if g.Op == OpHandler && out.Getters[g.Handler] == nil {
				out.Getters[g.Handler] = stubGetter
			}
		}
	})
	return out
}

func stubMutation(context.Context, *reactive.Object, any) {}

func stubAction(context.Context, *store.LocalContext, any) (any, error) { return nil, nil }

func stubGetter(*reactive.Object, store.Getters, *reactive.Object, store.Getters) any { return nil }
