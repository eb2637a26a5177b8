// Package component models a tree of UI components that share a store.
//
// A component either receives its own store at construction or inherits
// its parent's. The store is resolved once, in New; moving a component or
// swapping a parent's store later does not change it.
package component

import (
	"strings"
	"sync"

	"github.com/roach88/statetree/internal/store"
)

// Component is one node of a component tree.
type Component struct {
	name   string
	parent *Component
	store  *store.Store

	mu       sync.Mutex
	children []*Component
}

// Option configures a Component.
type Option func(*config)

type config struct {
	store   *store.Store
	factory func() *store.Store
}

// WithStore gives the component its own store instead of the parent's.
func WithStore(s *store.Store) Option {
	return func(c *config) {
		c.store = s
	}
}

// WithStoreFactory calls fn at construction to obtain the component's
// store. WithStore wins when both are given.
func WithStoreFactory(fn func() *store.Store) Option {
	return func(c *config) {
		c.factory = fn
	}
}

// New creates a component under parent (nil for a root).
func New(name string, parent *Component, opts ...Option) *Component {
	var cfg config
	for _, opt := range opts {
		opt(&cfg)
	}

	c := &Component{name: name, parent: parent}
	switch {
	case cfg.store != nil:
		c.store = cfg.store
	case cfg.factory != nil:
		c.store = cfg.factory()
	case parent != nil:
		c.store = parent.store
	}

	if parent != nil {
		parent.mu.Lock()
		parent.children = append(parent.children, c)
		parent.mu.Unlock()
	}
	return c
}

// Store returns the component's store, or nil if neither it nor any
// ancestor was given one.
func (c *Component) Store() *store.Store { return c.store }

func (c *Component) Name() string { return c.name }

func (c *Component) Parent() *Component { return c.parent }

// Children returns the direct children in creation order.
func (c *Component) Children() []*Component {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]*Component, len(c.children))
	copy(out, c.children)
	return out
}

// Path returns the slash-joined names from the root to c.
func (c *Component) Path() string {
	var names []string
	for n := c; n != nil; n = n.parent {
		names = append(names, n.name)
	}
	for i, j := 0, len(names)-1; i < j; i, j = i+1, j-1 {
		names[i], names[j] = names[j], names[i]
	}
	return strings.Join(names, "/")
}
