package compiler

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/statetree/internal/store"
	"github.com/roach88/statetree/internal/testutil"
)

const handlerModule = `
module: {
	state: count: 0
	mutations: reset: {op: "handler", handler: "reset"}
	actions: load: handler: "load"
	getters: label: {op: "handler", handler: "label"}
	modules: child: {
		state: {}
		actions: sync: handler: "sync"
	}
}
`

func TestStubBindings_FillsMissingHandlers(t *testing.T) {
	spec, err := ParseSource([]byte(handlerModule), "handlers.cue")
	require.NoError(t, err)

	// unbound handlers fail the build
	_, err = Build(spec, Bindings{})
	require.Error(t, err)

	bound := false
	b := StubBindings(spec, Bindings{
		Actions: map[string]store.ActionHandler{
			"load": func(context.Context, *store.LocalContext, any) (any, error) {
				bound = true
				return "loaded", nil
			},
		},
	})
	assert.Contains(t, b.Mutations, "reset")
	assert.Contains(t, b.Actions, "sync")
	assert.Contains(t, b.Getters, "label")

	def, err := Build(spec, b)
	require.NoError(t, err)
	s, err := store.New(def, store.WithLogger(testutil.DiscardLogger()))
	require.NoError(t, err)

	ctx := context.Background()
	v, err := s.Dispatch(ctx, "load", nil).Await(ctx)
	require.NoError(t, err)
	assert.Equal(t, "loaded", v)
	assert.True(t, bound)

	v, err = s.Dispatch(ctx, "sync", nil).Await(ctx)
	require.NoError(t, err)
	assert.Nil(t, v)

	s.Commit(ctx, "reset", nil)
	assert.Equal(t, int64(0), s.State().Int("count"))
}
