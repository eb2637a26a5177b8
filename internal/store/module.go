package store

import (
	"context"
	"fmt"
	"slices"
	"strings"

	"github.com/roach88/statetree/internal/ir"
	"github.com/roach88/statetree/internal/reactive"
)

// MutationHandler changes local state synchronously. ctx marks the
// committing window; pass it to any nested Commit.
type MutationHandler func(ctx context.Context, state *reactive.Object, payload any)

// ActionHandler performs arbitrary, possibly blocking work and commits
// mutations through ac. The returned value resolves the dispatch.
type ActionHandler func(ctx context.Context, ac *LocalContext, payload any) (any, error)

// Getter derives a value from local and root state and getters.
type Getter func(state *reactive.Object, getters Getters, rootState *reactive.Object, rootGetters Getters) any

// Action is an action handler plus its binding. A Root action registers
// under its bare key even inside a namespaced module.
type Action struct {
	Root    bool
	Handler ActionHandler
}

// Handle is shorthand for a non-root Action.
func Handle(h ActionHandler) Action {
	return Action{Handler: h}
}

// Definition is the raw description of a module and its children.
//
// State may be nil, an ir.IRObject, a map[string]any, or a
// func() ir.IRObject factory. Factories must be pure: they run again every
// time the definition is registered.
type Definition struct {
	Namespaced bool
	State      any
	Mutations  map[string]MutationHandler
	Actions    map[string]Action
	Getters    map[string]Getter
	Modules    map[string]*Definition

	// Order fixes the install order of Modules. Keys not listed follow in
	// sorted order.
	Order []string
}

// Module is one node of the module tree.
type Module struct {
	key      string
	runtime  bool
	raw      Definition
	state    ir.IRObject
	children map[string]*Module
	order    []string
}

// Key returns the module's key in its parent ("" for the root).
func (m *Module) Key() string { return m.key }

// Namespaced reports whether the module prefixes its types.
func (m *Module) Namespaced() bool { return m.raw.Namespaced }

// Runtime reports whether the module was added with RegisterModule.
func (m *Module) Runtime() bool { return m.runtime }

// Child returns the child module at key.
func (m *Module) Child(key string) (*Module, bool) {
	c, ok := m.children[key]
	return c, ok
}

// ChildKeys returns child keys in install order.
func (m *Module) ChildKeys() []string {
	return slices.Clone(m.order)
}

// InitialState returns a copy of the state the module was built with.
func (m *Module) InitialState() ir.IRObject {
	return m.state.Clone()
}

// MutationKeys returns the module's own mutation names, sorted.
func (m *Module) MutationKeys() []string { return sortedKeys(m.raw.Mutations) }

// ActionKeys returns the module's own action names, sorted.
func (m *Module) ActionKeys() []string { return sortedKeys(m.raw.Actions) }

// GetterKeys returns the module's own getter names, sorted.
func (m *Module) GetterKeys() []string { return sortedKeys(m.raw.Getters) }

// newModule builds a node and its subtree, validating shape only. No
// handler runs at build time; state factories do.
func newModule(path []string, def *Definition, runtime bool) (*Module, error) {
	if def == nil {
		return nil, &BuildError{Path: path, Message: "module definition is nil"}
	}

	state, err := resolveState(path, def.State)
	if err != nil {
		return nil, err
	}
	if err := validateHandlers(path, def); err != nil {
		return nil, err
	}

	m := &Module{
		runtime:  runtime,
		raw:      *def,
		state:    state,
		children: make(map[string]*Module, len(def.Modules)),
	}
	if len(path) > 0 {
		m.key = path[len(path)-1]
	}

	for _, key := range childOrder(def) {
		childPath := append(slices.Clone(path), key)
		if err := validateChildKey(childPath, key); err != nil {
			return nil, err
		}
		if _, clash := state[key]; clash {
			return nil, &BuildError{
				Path:    childPath,
				Message: fmt.Sprintf("child module %q collides with a state field of the same name", key),
			}
		}
		child, err := newModule(childPath, def.Modules[key], runtime)
		if err != nil {
			return nil, err
		}
		m.addChild(key, child)
	}
	return m, nil
}

func (m *Module) addChild(key string, child *Module) {
	if _, exists := m.children[key]; !exists {
		m.order = append(m.order, key)
	}
	m.children[key] = child
}

func (m *Module) removeChild(key string) {
	delete(m.children, key)
	m.order = slices.DeleteFunc(m.order, func(k string) bool { return k == key })
}

// update replaces handlers in place. Maps left nil in def keep the current
// handlers. State is never touched.
func (m *Module) update(def *Definition) {
	m.raw.Namespaced = def.Namespaced
	if def.Mutations != nil {
		m.raw.Mutations = def.Mutations
	}
	if def.Actions != nil {
		m.raw.Actions = def.Actions
	}
	if def.Getters != nil {
		m.raw.Getters = def.Getters
	}
}

func resolveState(path []string, raw any) (ir.IRObject, error) {
	switch st := raw.(type) {
	case nil:
		return ir.IRObject{}, nil
	case ir.IRObject:
		return st.Clone(), nil
	case map[string]any:
		v, err := ir.FromGo(st)
		if err != nil {
			return nil, &BuildError{Path: path, Message: fmt.Sprintf("invalid state: %v", err)}
		}
		return v.(ir.IRObject), nil
	case func() ir.IRObject:
		obj := st()
		if obj == nil {
			return ir.IRObject{}, nil
		}
		return obj, nil
	default:
		return nil, &BuildError{
			Path:    path,
			Message: fmt.Sprintf("state must be an object or a zero-argument factory, got %T", raw),
		}
	}
}

func validateHandlers(path []string, def *Definition) error {
	for name, h := range def.Mutations {
		if h == nil {
			return &BuildError{Path: path, Message: fmt.Sprintf("mutation %q has a nil handler", name)}
		}
	}
	for name, a := range def.Actions {
		if a.Handler == nil {
			return &BuildError{Path: path, Message: fmt.Sprintf("action %q has a nil handler", name)}
		}
	}
	for name, g := range def.Getters {
		if g == nil {
			return &BuildError{Path: path, Message: fmt.Sprintf("getter %q is nil", name)}
		}
	}
	return nil
}

func validateChildKey(path []string, key string) error {
	if key == "" {
		return &BuildError{Path: path, Message: "child module key must not be empty"}
	}
	if strings.Contains(key, "/") {
		return &BuildError{Path: path, Message: fmt.Sprintf("child module key %q must not contain '/'", key)}
	}
	return nil
}

// childOrder lists Modules keys: those named in Order first, then the rest
// sorted.
func childOrder(def *Definition) []string {
	seen := make(map[string]bool, len(def.Modules))
	keys := make([]string, 0, len(def.Modules))
	for _, k := range def.Order {
		if _, ok := def.Modules[k]; ok && !seen[k] {
			seen[k] = true
			keys = append(keys, k)
		}
	}
	var rest []string
	for k := range def.Modules {
		if !seen[k] {
			rest = append(rest, k)
		}
	}
	slices.Sort(rest)
	return append(keys, rest...)
}

func sortedKeys[V any](m map[string]V) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	slices.Sort(keys)
	return keys
}
