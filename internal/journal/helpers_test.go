package journal

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/roach88/statetree/internal/ir"
	"github.com/roach88/statetree/internal/reactive"
	"github.com/roach88/statetree/internal/store"
)

// createTestJournal opens a journal in a temp dir.
func createTestJournal(t *testing.T) *Journal {
	t.Helper()
	j, err := Open(filepath.Join(t.TempDir(), "test.db"))
	require.NoError(t, err)
	t.Cleanup(func() { j.Close() })
	return j
}

// counterStore builds a counter store journaled into j.
func counterStore(t *testing.T, j *Journal, tokens ...string) *store.Store {
	t.Helper()
	s, err := store.New(counterDef(),
		store.WithLogger(slog.New(slog.NewTextHandler(io.Discard, nil))),
		store.WithFlowGenerator(store.NewFixedGenerator(tokens...)),
		store.WithDevtools(j.Hook()),
	)
	require.NoError(t, err)
	return s
}

func counterDef() *store.Definition {
	return &store.Definition{
		State: map[string]any{"count": 0},
		Mutations: map[string]store.MutationHandler{
			"increment": func(_ context.Context, st *reactive.Object, _ any) {
				st.SetInt("count", st.Int("count")+1)
			},
			"set": func(_ context.Context, st *reactive.Object, p any) {
				st.Set("count", p)
			},
		},
		Actions: map[string]store.Action{
			"incrementTwice": store.Handle(func(ctx context.Context, ac *store.LocalContext, _ any) (any, error) {
				ac.Commit(ctx, "increment", nil)
				ac.Commit(ctx, "increment", nil)
				return nil, nil
			}),
			"fail": store.Handle(func(context.Context, *store.LocalContext, any) (any, error) {
				return nil, errors.New("boom")
			}),
		},
	}
}

func mutationTypes(recs []ir.MutationRecord) []string {
	out := make([]string, len(recs))
	for i, r := range recs {
		out[i] = r.Type
	}
	return out
}
