package harness

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/statetree/internal/compiler"
	"github.com/roach88/statetree/internal/store"
	"github.com/roach88/statetree/internal/testutil"
)

const shopModule = "testdata/modules/shop.cue"

func loadAndRun(t *testing.T, path string, opts ...Option) *Result {
	t.Helper()
	s, err := LoadScenario(path)
	require.NoError(t, err)
	res, err := Run(s, opts...)
	require.NoError(t, err)
	return res
}

func TestRun_CounterScenario(t *testing.T) {
	res := loadAndRun(t, "testdata/scenarios/counter.yaml")

	assert.True(t, res.Pass, "errors: %v", res.Errors)
	assert.Empty(t, res.Errors)
	assert.Equal(t, int64(16), res.Results[2])
	assert.Equal(t, int64(8), res.State["count"])
}

func TestRun_CartScenario(t *testing.T) {
	res := loadAndRun(t, "testdata/scenarios/cart.yaml")
	require.True(t, res.Pass, "errors: %v", res.Errors)

	var kinds []string
	for _, ev := range res.Trace {
		kinds = append(kinds, ev.Kind+" "+ev.Type)
	}
	assert.Equal(t, []string{
		"action cart/addItem",
		"mutation cart/push",
		"mutation increment",
		"action cart/addItem",
		"mutation cart/push",
		"mutation increment",
		"action cart/checkout",
		"mutation cart/clear",
	}, kinds)

	assert.Equal(t, map[string]any{"sku": "apple"}, res.Trace[1].Payload)
	assert.Equal(t, OutcomeOK, res.Trace[0].Outcome)
}

func TestRun_DynamicScenario(t *testing.T) {
	res := loadAndRun(t, "testdata/scenarios/dynamic.yaml")
	assert.True(t, res.Pass, "errors: %v", res.Errors)
	assert.NotContains(t, res.State, "wishlist")
}

func TestRun_StepsViaComponents(t *testing.T) {
	s := &Scenario{
		Name:        "components",
		Description: "child components share the root component's store",
		Module:      shopModule,
		Components:  []string{"app/header", "app/cart"},
		Steps: []Step{
			{Commit: "increment", Via: "app/header"},
			{Commit: "increment", Via: "app/cart"},
			{Dispatch: "incrementTwice", Via: "app"},
			{Commit: "increment", Via: "app/footer", ExpectError: "not mounted"},
		},
	}

	res, err := Run(s)
	require.NoError(t, err)
	assert.True(t, res.Pass, "errors: %v", res.Errors)
	assert.Equal(t, int64(4), res.State["count"])
}

func TestRun_TraceIsDeterministic(t *testing.T) {
	first := loadAndRun(t, "testdata/scenarios/cart.yaml")
	second := loadAndRun(t, "testdata/scenarios/cart.yaml")
	assert.Equal(t, first.Trace, second.Trace)
}

func TestRun_FailedExpectationsAreReported(t *testing.T) {
	s := &Scenario{
		Name:        "failing",
		Description: "every expectation is wrong",
		Module:      shopModule,
		Steps: []Step{
			{Commit: "increment", ExpectError: "UNKNOWN_MUTATION"},
			{Commit: "nope"},
			{Dispatch: "incrementTwice", ExpectResult: 99},
			{Dispatch: "missing", ExpectError: "STATIC_MODULE"},
		},
		Assertions: []Assertion{
			{Type: AssertFinalState, Path: "count", Expect: 0},
			{Type: AssertGetter, Name: "nope", Expect: 1},
		},
	}

	res, err := Run(s)
	require.NoError(t, err)
	assert.False(t, res.Pass)
	require.Len(t, res.Errors, 6)
	assert.Contains(t, res.Errors[0], `expected error "UNKNOWN_MUTATION", got none`)
	assert.Contains(t, res.Errors[1], "unexpected error")
	assert.Contains(t, res.Errors[1], "UNKNOWN_MUTATION")
	assert.Contains(t, res.Errors[2], "expected result 99, got 6")
	assert.Contains(t, res.Errors[3], "UNKNOWN_ACTION")
	assert.Contains(t, res.Errors[4], "final_state")
	assert.Contains(t, res.Errors[5], "getter not defined")
}

func TestRun_HandlerPanicBecomesStepError(t *testing.T) {
	s := &Scenario{
		Name:        "panics",
		Description: "add with a string payload",
		Module:      shopModule,
		Steps:       []Step{{Commit: "add", Payload: "three", ExpectError: "panicked"}},
	}
	res, err := Run(s)
	require.NoError(t, err)
	assert.True(t, res.Pass, "errors: %v", res.Errors)
}

func TestRun_FloatPayloadStopsRun(t *testing.T) {
	s := &Scenario{
		Name:        "float",
		Description: "floats never reach the store",
		Module:      shopModule,
		Steps:       []Step{{Commit: "add", Payload: 1.5}},
	}
	_, err := Run(s)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "floats are forbidden")
}

func TestRun_ModuleThatDoesNotBuild(t *testing.T) {
	s := &Scenario{
		Name:        "broken",
		Description: "path does not exist",
		Module:      "testdata/modules/broken.cue",
		Steps:       []Step{{Commit: "bump"}},
	}
	_, err := Run(s)
	require.Error(t, err)

	var be *compiler.BuildError
	assert.True(t, errors.As(err, &be))
}

func TestRun_WithBindings(t *testing.T) {
	calls := 0
	b := compiler.Bindings{
		Actions: map[string]store.ActionHandler{
			"increment": func(ctx context.Context, ac *store.LocalContext, _ any) (any, error) {
				calls++
				ac.Commit(ctx, "increment", nil)
				return "done", nil
			},
		},
	}
	dir := t.TempDir()
	path := writeCUE(t, dir, `
module: {
	state: count: 0
	mutations: increment: {op: "add", path: "count", value: 1}
	actions: bump: handler: "increment"
}
`)
	buf, logger := testutil.NewLogBuffer()
	s := &Scenario{
		Name:        "bound",
		Description: "handler ops resolve through bindings",
		Module:      path,
		Steps:       []Step{{Dispatch: "bump", ExpectResult: "done"}},
		Assertions:  []Assertion{{Type: AssertFinalState, Path: "count", Expect: 1}},
	}

	res, err := Run(s, WithBindings(b), WithLogger(logger))
	require.NoError(t, err)
	assert.True(t, res.Pass, "errors: %v", res.Errors)
	assert.Equal(t, 1, calls)
	assert.Contains(t, buf.Messages(), "commit")
}
