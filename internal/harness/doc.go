// Package harness runs scripted scenarios against a store built from a
// CUE module and checks the resulting trace and state.
//
// # Scenario Format
//
// Scenarios are YAML files:
//
//	name: cart_checkout
//	description: "Adding items bumps the root counter"
//	module: ../modules/shop.cue
//	strict: true
//	flow_token: test-flow-cart
//	steps:
//	  - dispatch: cart/addItem
//	    payload: {sku: apple}
//	  - commit: nope
//	    expect_error: UNKNOWN_MUTATION
//	  - dispatch: incrementTwice
//	    expect_result: 6
//	assertions:
//	  - type: trace_contains
//	    kind: mutation
//	    name: cart/push
//	    payload: {sku: apple}
//	  - type: trace_order
//	    names: [cart/push, increment]
//	  - type: trace_count
//	    name: increment
//	    count: 3
//	  - type: final_state
//	    path: cart.items
//	    expect: [{sku: apple}]
//	  - type: getter
//	    name: cart/itemCount
//	    expect: 1
//
// module and the module of a register step are resolved relative to the
// scenario file.
//
// # Steps
//
// Each step does exactly one of commit, dispatch, register, unregister or
// travel_to. expect_error matches a store error code or a substring of the
// error message. Commits never fail, so for a commit step the errors
// reported while it ran are checked instead.
//
// components lists slash paths mounted under a root component that owns
// the store; a step with via: app/header runs against the store that
// component inherited.
//
// # Deterministic Runs
//
// Every scenario runs against a fresh in-memory journal with a fixed flow
// token and a store clock starting at 0, so two runs of the same scenario
// produce byte-identical traces. RunWithGolden compares the trace with a
// golden file under testdata/golden.
package harness
