package store

import (
	"context"
	"io"
	"log/slog"
	"sync"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/roach88/statetree/internal/ir"
	"github.com/roach88/statetree/internal/reactive"
)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func newTestStore(t *testing.T, def *Definition, opts ...Option) *Store {
	t.Helper()
	opts = append([]Option{WithLogger(discardLogger())}, opts...)
	s, err := New(def, opts...)
	require.NoError(t, err)
	return s
}

// counterDef is the root module used across tests: count with increment
// and add, plus a doubled getter.
func counterDef() *Definition {
	return &Definition{
		State: func() ir.IRObject { return ir.IRObject{"count": ir.IRInt(0)} },
		Mutations: map[string]MutationHandler{
			"increment": func(_ context.Context, st *reactive.Object, _ any) {
				st.SetInt("count", st.Int("count")+1)
			},
			"add": func(_ context.Context, st *reactive.Object, p any) {
				st.SetInt("count", st.Int("count")+int64(p.(int)))
			},
		},
		Getters: map[string]Getter{
			"doubled": func(st *reactive.Object, _ Getters, _ *reactive.Object, _ Getters) any {
				return st.Int("count") * 2
			},
		},
	}
}

// setterModule is a module with a single "set" mutation writing "value".
func setterModule(namespaced bool) *Definition {
	return &Definition{
		Namespaced: namespaced,
		State:      map[string]any{"value": ""},
		Mutations: map[string]MutationHandler{
			"set": func(_ context.Context, st *reactive.Object, p any) {
				st.Set("value", p)
			},
		},
		Getters: map[string]Getter{
			"upper": func(st *reactive.Object, _ Getters, _ *reactive.Object, _ Getters) any {
				return "<" + st.String("value") + ">"
			},
		},
	}
}

// recordingHook is a DevtoolsHook that keeps everything it receives.
type recordingHook struct {
	mu        sync.Mutex
	inited    bool
	mutations []Mutation
	actions   []string
	errors    []error
}

func (h *recordingHook) Init(*Store) error {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.inited = true
	return nil
}

func (h *recordingHook) Mutation(m Mutation, _ *reactive.Object) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.mutations = append(h.mutations, m)
}

func (h *recordingHook) Action(ev ActionEvent, phase ir.ActionPhase, _ error) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.actions = append(h.actions, string(phase)+":"+ev.Type)
}

func (h *recordingHook) Error(err error) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.errors = append(h.errors, err)
}

func (h *recordingHook) errorCodes() []ErrorCode {
	h.mu.Lock()
	defer h.mu.Unlock()
	var out []ErrorCode
	for _, err := range h.errors {
		if code := CodeOf(err); code != "" {
			out = append(out, code)
		}
	}
	return out
}
