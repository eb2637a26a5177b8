// Package journal provides a SQLite-backed devtools log for a store.
//
// The journal is an append-only record of:
//   - Mutations: every commit with its payload and the full state snapshot
//     taken right after it, plus the snapshot hash
//   - Actions: the before, after and error phases of every dispatch
//   - Errors: lookup and handler errors the store reported
//
// Attach it with store.WithDevtools(j.Hook()). The initial state is
// recorded as a mutation row of type InitType at the seq the store's clock
// held when the hook was installed. A store resuming a journal that already
// holds activity starts its clock at LastSeq and restores its state with
// TravelTo; no second init row is written.
//
// # Ordering
//
// All ordering uses seq (the store's logical clock), never timestamps.
// Queries order by seq ASC then id so results are identical across runs.
//
// # Time travel
//
// SnapshotAt returns the state recorded by the last mutation at or before
// a seq; TravelTo replaces a live store's state with it.
//
// # Database configuration
//
//   - WAL mode: concurrent reads during writes
//   - synchronous=NORMAL
//   - busy_timeout=5000
//
// Open(":memory:") gives a private in-memory journal.
package journal
