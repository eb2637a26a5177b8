package harness

import (
	"fmt"
	"strings"

	"github.com/roach88/statetree/internal/ir"
	"github.com/roach88/statetree/internal/store"
)

// AssertionError is returned when an assertion fails.
type AssertionError struct {
	Type     string
	Expected string
	Actual   string
	Trace    []TraceEvent
}

// Error implements the error interface.
func (e *AssertionError) Error() string {
	var buf strings.Builder

	fmt.Fprintf(&buf, "Assertion failed: %s\n", e.Type)
	fmt.Fprintf(&buf, "  Expected: %s\n", e.Expected)
	fmt.Fprintf(&buf, "  Actual: %s\n", e.Actual)

	if len(e.Trace) > 0 {
		fmt.Fprintf(&buf, "\nFull trace:\n")
		for i, event := range e.Trace {
			fmt.Fprintf(&buf, "  [%d] %s %s", i+1, event.Kind, event.Type)
			if event.Payload != nil {
				fmt.Fprintf(&buf, " %v", event.Payload)
			}
			buf.WriteByte('\n')
		}
	}
	return buf.String()
}

// AssertionContext carries what state assertions read from.
type AssertionContext struct {
	Store *store.Store
}

// EvaluateAssertions checks every assertion and returns one message per
// failure.
func EvaluateAssertions(result *Result, assertions []Assertion, actx *AssertionContext) []string {
	var errs []string
	for i := range assertions {
		a := assertions[i]
		var err error
		switch a.Type {
		case AssertTraceContains:
			err = assertTraceContains(result.Trace, a)
		case AssertTraceOrder:
			err = assertTraceOrder(result.Trace, a)
		case AssertTraceCount:
			err = assertTraceCount(result.Trace, a)
		case AssertFinalState:
			err = assertFinalState(result.State, a)
		case AssertGetter:
			if actx == nil || actx.Store == nil {
				err = fmt.Errorf("getter assertion needs a store")
			} else {
				err = assertGetter(actx.Store, a)
			}
		default:
			err = fmt.Errorf("unknown assertion type: %s", a.Type)
		}
		if err != nil {
			errs = append(errs, fmt.Sprintf("assertion %d (%s): %s", i, a.Type, err.Error()))
		}
	}
	return errs
}

// assertTraceContains checks for an event of the given kind and type whose
// payload contains the expected fields.
func assertTraceContains(trace []TraceEvent, a Assertion) error {
	for _, event := range trace {
		if event.Kind == a.kind() && event.Type == a.Name && matchPayload(event.Payload, a.Payload) {
			return nil
		}
	}
	expected := fmt.Sprintf("%s %s", a.kind(), a.Name)
	if a.Payload != nil {
		expected += fmt.Sprintf(" with payload %v", a.Payload)
	}
	return &AssertionError{
		Type:     AssertTraceContains,
		Expected: expected,
		Actual:   "not found in trace",
		Trace:    trace,
	}
}

// assertTraceOrder checks that the first occurrences of the named types
// appear in order. Other events may sit in between.
func assertTraceOrder(trace []TraceEvent, a Assertion) error {
	positions := make(map[string]int)
	for i, event := range trace {
		if event.Kind != a.kind() {
			continue
		}
		for _, name := range a.Names {
			if event.Type == name && positions[name] == 0 {
				positions[name] = i + 1
			}
		}
	}

	for _, name := range a.Names {
		if positions[name] == 0 {
			return &AssertionError{
				Type:     AssertTraceOrder,
				Expected: fmt.Sprintf("all present: %v", a.Names),
				Actual:   fmt.Sprintf("missing %s: %s", a.kind(), name),
				Trace:    trace,
			}
		}
	}

	for i := 1; i < len(a.Names); i++ {
		prev, curr := a.Names[i-1], a.Names[i]
		if positions[prev] >= positions[curr] {
			return &AssertionError{
				Type:     AssertTraceOrder,
				Expected: fmt.Sprintf("in order: %v", a.Names),
				Actual: fmt.Sprintf("%s (pos %d) should be before %s (pos %d)",
					prev, positions[prev], curr, positions[curr]),
				Trace: trace,
			}
		}
	}
	return nil
}

// assertTraceCount checks the exact number of events of a type.
func assertTraceCount(trace []TraceEvent, a Assertion) error {
	count := 0
	for _, event := range trace {
		if event.Kind == a.kind() && event.Type == a.Name {
			count++
		}
	}
	if count != a.Count {
		return &AssertionError{
			Type:     AssertTraceCount,
			Expected: fmt.Sprintf("%d occurrences of %s %s", a.Count, a.kind(), a.Name),
			Actual:   fmt.Sprintf("%d occurrences", count),
			Trace:    trace,
		}
	}
	return nil
}

// assertFinalState compares the value at a dotted path with the expected
// value. Module state nests under module keys, so "cart.items" reaches the
// items field of the cart module.
func assertFinalState(state map[string]any, a Assertion) error {
	var cur any = state
	for _, key := range strings.Split(a.Path, ".") {
		obj, ok := cur.(map[string]any)
		if !ok {
			return &AssertionError{
				Type:     AssertFinalState,
				Expected: fmt.Sprintf("%s = %v", a.Path, a.Expect),
				Actual:   fmt.Sprintf("%q is not an object", key),
			}
		}
		cur, ok = obj[key]
		if !ok {
			return &AssertionError{
				Type:     AssertFinalState,
				Expected: fmt.Sprintf("%s = %v", a.Path, a.Expect),
				Actual:   fmt.Sprintf("path not found at %q", key),
			}
		}
	}

	if !valuesEqual(cur, a.Expect) {
		return &AssertionError{
			Type:     AssertFinalState,
			Expected: fmt.Sprintf("%s = %v", a.Path, a.Expect),
			Actual:   fmt.Sprintf("%v", cur),
		}
	}
	return nil
}

// assertGetter compares a root getter's current value.
func assertGetter(s *store.Store, a Assertion) error {
	got, ok := s.Getters().Get(a.Name)
	if !ok {
		return &AssertionError{
			Type:     AssertGetter,
			Expected: fmt.Sprintf("getter %s = %v", a.Name, a.Expect),
			Actual:   "getter not defined",
		}
	}
	if !valuesEqual(got, a.Expect) {
		return &AssertionError{
			Type:     AssertGetter,
			Expected: fmt.Sprintf("getter %s = %v", a.Name, a.Expect),
			Actual:   fmt.Sprintf("%v", got),
		}
	}
	return nil
}

// matchPayload reports whether actual contains expected. Objects match as
// a subset, everything else must be equal. A nil expectation matches
// anything.
func matchPayload(actual, expected any) bool {
	if expected == nil {
		return true
	}
	exp, ok := normalize(expected).(map[string]any)
	if !ok {
		return valuesEqual(actual, expected)
	}
	act, ok := actual.(map[string]any)
	if !ok {
		return false
	}
	for k, want := range exp {
		got, exists := act[k]
		if !exists || !valuesEqual(got, want) {
			return false
		}
	}
	return true
}

// valuesEqual compares through the IR so int and int64 (and nested YAML
// maps) compare equal.
func valuesEqual(actual, expected any) bool {
	a, err := ir.FromGo(normalize(actual))
	if err != nil {
		return false
	}
	e, err := ir.FromGo(normalize(expected))
	if err != nil {
		return false
	}
	return ir.Equal(a, e)
}
