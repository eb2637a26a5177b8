package journal

import (
	"context"
	"sync"

	"github.com/roach88/statetree/internal/ir"
	"github.com/roach88/statetree/internal/reactive"
	"github.com/roach88/statetree/internal/store"
)

// InitType is the mutation type of the row holding the initial state.
const InitType = "@@INIT"

// Hook records a store's diagnostics stream into the journal.
type Hook struct {
	j *Journal

	mu    sync.Mutex
	store *store.Store
}

var _ store.DevtoolsHook = (*Hook)(nil)

// Hook returns a devtools hook writing into j. Pass it to
// store.WithDevtools.
func (j *Journal) Hook() *Hook {
	return &Hook{j: j}
}

// Init records the initial state. A journal that already holds activity is
// being resumed: nothing is written and the caller restores state with
// TravelTo.
func (h *Hook) Init(s *store.Store) error {
	h.mu.Lock()
	h.store = s
	h.mu.Unlock()

	ctx := context.Background()
	last, err := h.j.LastSeq(ctx)
	if err != nil {
		return err
	}
	if last > 0 {
		return nil
	}

	return h.j.WriteMutation(ctx, ir.MutationRecord{
		Seq:     s.Clock().Current(),
		Type:    InitType,
		Payload: ir.IRNull{},
		State:   s.State().Snapshot(),
	})
}

// Mutation records a commit together with the state after it.
func (h *Hook) Mutation(m store.Mutation, state *reactive.Object) {
	rec := m.Record()
	rec.State = state.Snapshot()
	if err := h.j.WriteMutation(context.Background(), rec); err != nil {
		h.j.logger.Error("journal write failed",
			"kind", "mutation",
			"type", m.Type,
			"seq", m.Seq,
			"error", err)
	}
}

// Action records one dispatch phase.
func (h *Hook) Action(ev store.ActionEvent, phase ir.ActionPhase, err error) {
	rec := ir.ActionRecord{
		Seq:       ev.Seq,
		FlowToken: ev.FlowToken,
		Type:      ev.Type,
		Payload:   ir.PayloadValue(ev.Payload),
		Phase:     phase,
	}
	if err != nil {
		rec.Error = err.Error()
	}
	if werr := h.j.WriteAction(context.Background(), rec); werr != nil {
		h.j.logger.Error("journal write failed",
			"kind", "action",
			"type", ev.Type,
			"seq", ev.Seq,
			"phase", phase,
			"error", werr)
	}
}

// Error records a reported error. Errors without a store code are stored
// with code "ERROR".
func (h *Hook) Error(err error) {
	code := string(store.CodeOf(err))
	if code == "" {
		code = "ERROR"
	}

	var seq int64
	h.mu.Lock()
	if h.store != nil {
		seq = h.store.Clock().Current()
	}
	h.mu.Unlock()

	if werr := h.j.WriteError(context.Background(), ErrorRecord{Seq: seq, Code: code, Message: err.Error()}); werr != nil {
		h.j.logger.Error("journal write failed", "kind", "error", "error", werr)
	}
}
