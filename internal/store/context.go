package store

import (
	"context"
	"slices"
	"strings"

	"github.com/roach88/statetree/internal/reactive"
)

// LocalContext is the view of the store an action handler receives:
// commit, dispatch and getters scoped to the module's namespace, plus root
// access.
type LocalContext struct {
	store     *Store
	namespace string
	path      []string
}

func (s *Store) newLocalContext(namespace string, path []string) *LocalContext {
	return &LocalContext{store: s, namespace: namespace, path: slices.Clone(path)}
}

// Namespace returns the type prefix of the module, e.g. "cart/".
func (c *LocalContext) Namespace() string { return c.namespace }

// Path returns the module path.
func (c *LocalContext) Path() []string { return slices.Clone(c.path) }

// Commit commits typ relative to the module's namespace. With Root() the
// type is used as is. An unknown local type is reported and ignored.
func (c *LocalContext) Commit(ctx context.Context, typ string, payload any, opts ...CallOption) {
	typ, payload = unifyObjectStyle(typ, payload)
	o := applyCallOptions(opts)
	if c.namespace != "" && !o.root {
		full := c.namespace + typ
		if len(c.store.lookupMutation(full)) == 0 {
			c.store.report(&Error{
				Code:    CodeUnknownLocalMutation,
				Message: "unknown local mutation type " + typ + ", global type " + full,
				Type:    full,
				Path:    c.path,
			})
			return
		}
		typ = full
	}
	c.store.Commit(ctx, typ, payload)
}

// Dispatch dispatches typ relative to the module's namespace. With Root()
// the type is used as is. An unknown local type is reported and resolves
// to nil without error.
func (c *LocalContext) Dispatch(ctx context.Context, typ string, payload any, opts ...CallOption) *Future {
	typ, payload = unifyObjectStyle(typ, payload)
	o := applyCallOptions(opts)
	if c.namespace != "" && !o.root {
		full := c.namespace + typ
		if len(c.store.lookupAction(full)) == 0 {
			c.store.report(&Error{
				Code:    CodeUnknownLocalAction,
				Message: "unknown local action type " + typ + ", global type " + full,
				Type:    full,
				Path:    c.path,
			})
			return resolvedFuture(nil, nil)
		}
		typ = full
	}
	return c.store.Dispatch(ctx, typ, payload)
}

// State walks the root state to the module's branch on every call; it is
// never cached because the branch may be replaced. Returns nil if the
// branch no longer exists.
func (c *LocalContext) State() *reactive.Object {
	return c.store.State().Walk(c.path)
}

// Getters returns the module's getters with the namespace stripped.
func (c *LocalContext) Getters() Getters {
	if c.namespace == "" {
		return c.store.Getters()
	}
	return localGetters{store: c.store, namespace: c.namespace}
}

// RootState returns the root state.
func (c *LocalContext) RootState() *reactive.Object {
	return c.store.State()
}

// RootGetters returns the full getter view.
func (c *LocalContext) RootGetters() Getters {
	return c.store.Getters()
}

type localGetters struct {
	store     *Store
	namespace string
}

func (l localGetters) Get(name string) (any, bool) {
	return l.store.Getters().Get(l.namespace + name)
}

func (l localGetters) Keys() []string {
	var out []string
	for _, k := range l.store.Getters().Keys() {
		if local, ok := strings.CutPrefix(k, l.namespace); ok {
			out = append(out, local)
		}
	}
	return out
}
