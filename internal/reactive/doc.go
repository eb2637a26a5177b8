// Package reactive is the observed-state engine a store runs on.
//
// It supplies the narrow capability the module runtime consumes:
//
//   - Wrap turns a plain IR object into a tree of observed *Object nodes.
//   - Object.Set and Object.Delete (also Engine.Set / Engine.Delete) write
//     through the engine so every write bumps a global version and notifies
//     watchers.
//   - Watch observes an expression. Sync watchers are re-evaluated on the
//     writer's goroutine right after each write; the rest are queued until
//     Flush.
//   - Computed memoizes a derivation keyed by the engine version. There is
//     no per-read dependency tracking: any write invalidates every computed.
//   - NextTick queues deferred work that Flush drains after watchers.
//
// Arrays are leaf values. They are replaced wholesale (Set, Append) rather
// than observed element by element.
//
// An Engine serves exactly one owner. Bind rejects a second owner with
// ErrAlreadyBound.
package reactive
