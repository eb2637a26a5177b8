// Package compiler turns declarative CUE module descriptions into
// store.Definition trees.
//
// A CUE file describes a module under the top-level "module" field:
//
//	module: {
//		state: count: 0
//		mutations: increment: {op: "add", path: "count", value: 1}
//		actions: incrementTwice: steps: [{commit: "increment"}, {commit: "increment"}]
//		getters: doubled: {op: "mul", path: "count", by: 2}
//		modules: cart: {namespaced: true, state: items: []}
//	}
//
// Compilation runs in three phases:
//
//  1. Parse (ParseModule): CUE value to ModuleSpec. Only CUE-level problems
//     (non-concrete values, wrong kinds) fail here, as *CompileError with a
//     source position.
//  2. Validate: collect every ValidationError (unknown ops, missing paths,
//     unbound handlers, float literals) without failing fast.
//  3. Build: ModuleSpec plus Bindings to *store.Definition with handlers
//     implemented as closures over the declared ops.
//
// AnalyzeCycles reports action dispatch cycles as warnings; an action that
// dispatches itself through a chain of steps may be intentional.
package compiler
