// Package store implements the module tree runtime: a centralized state
// container assembled from a tree of modules, mutated only through named
// synchronous mutation handlers and extended through actions and memoized
// getters.
//
// ARCHITECTURE:
//
// Module Tree:
// New and RegisterModule parse a *Definition into Module nodes (tree.go).
// Structural problems surface eagerly as *BuildError and stop construction.
//
// Namespaces:
// A namespaced module prefixes its mutation, action and getter names with
// its key and "/". The prefix is inherited: every descendant of a
// namespaced module carries it, whether or not it is namespaced itself.
//
// Installation:
// installModule walks the tree, grafts module state onto the root state
// object, and registers wrapped handlers into flat registries keyed by the
// namespaced type. Mutations and actions accumulate lists under one type;
// a getter type has exactly one evaluator and duplicates are reported and
// skipped. Registries are rebuilt from scratch on every reinstall and
// swapped in as a whole.
//
// Routing:
// Commit runs every mutation handler for a type inside the committing
// window, then notifies subscribers. Dispatch runs every action handler in
// registration order and resolves to the first handler's value once all
// finish.
// Unknown types are reported to the logger and the devtools hook, never
// returned to the caller of Commit.
//
// Strict Mode:
// A sync deep watcher over the root state flags any write made while no
// commit is in flight. In development this panics on the writer's
// goroutine; WithProduction silences it.
//
// CONCURRENCY:
//
// Top-level commits are serialized by a mutex. A mutation handler that
// commits again must pass the ctx it received; that ctx marks the
// committing window so the nested commit re-enters without locking.
// Sync watcher callbacks that fire while a top-level commit holds the mutex
// are queued and run right after it is released, so they may commit too.
// RegisterModule, UnregisterModule and HotUpdate must not race with each
// other; callers serialize them.
package store
