package store

import (
	"fmt"
	"slices"
	"strings"
)

// Tree is the module tree: the root module plus path lookup.
type Tree struct {
	root *Module
}

// NewTree builds a tree from the root definition.
func NewTree(def *Definition) (*Tree, error) {
	root, err := newModule(nil, def, false)
	if err != nil {
		return nil, err
	}
	return &Tree{root: root}, nil
}

// Root returns the root module.
func (t *Tree) Root() *Module {
	return t.root
}

// Get returns the module at path. An empty path is the root.
func (t *Tree) Get(path []string) (*Module, bool) {
	m := t.root
	for _, key := range path {
		child, ok := m.children[key]
		if !ok {
			return nil, false
		}
		m = child
	}
	return m, true
}

// Namespace returns the type prefix for path: the key plus "/" of every
// namespaced module on the way down, inclusive.
func (t *Tree) Namespace(path []string) string {
	var b strings.Builder
	m := t.root
	for _, key := range path {
		child, ok := m.children[key]
		if !ok {
			break
		}
		m = child
		if m.Namespaced() {
			b.WriteString(key)
			b.WriteByte('/')
		}
	}
	return b.String()
}

// Register builds def and attaches it at path as a runtime module.
func (t *Tree) Register(path []string, def *Definition) (*Module, error) {
	if len(path) == 0 {
		return nil, &BuildError{Message: "cannot register the root module"}
	}
	key := path[len(path)-1]
	if err := validateChildKey(path, key); err != nil {
		return nil, err
	}

	parent, ok := t.Get(path[:len(path)-1])
	if !ok {
		return nil, &BuildError{
			Path:    path,
			Message: fmt.Sprintf("parent module %q is not registered", strings.Join(path[:len(path)-1], "/")),
		}
	}

	m, err := newModule(slices.Clone(path), def, true)
	if err != nil {
		return nil, err
	}
	parent.addChild(key, m)
	return m, nil
}

// Unregister detaches the runtime module at path. It reports whether the
// module was removed; modules built with the tree are never removed.
func (t *Tree) Unregister(path []string) (bool, error) {
	if len(path) == 0 {
		return false, &BuildError{Message: "cannot unregister the root module"}
	}
	parent, ok := t.Get(path[:len(path)-1])
	if !ok {
		return false, nil
	}
	key := path[len(path)-1]
	child, ok := parent.children[key]
	if !ok || !child.runtime {
		return false, nil
	}
	parent.removeChild(key)
	return true, nil
}

// Update replaces handlers throughout the tree with those of def. Modules
// present in def but absent from the tree cannot be hot-added; their paths
// are returned and they are skipped.
func (t *Tree) Update(def *Definition) []string {
	var skipped []string
	updateModule(nil, t.root, def, &skipped)
	return skipped
}

func updateModule(path []string, target *Module, def *Definition, skipped *[]string) {
	target.update(def)
	for _, key := range childOrder(def) {
		childPath := append(slices.Clone(path), key)
		child, ok := target.children[key]
		if !ok {
			*skipped = append(*skipped, strings.Join(childPath, "/"))
			continue
		}
		updateModule(childPath, child, def.Modules[key], skipped)
	}
}
