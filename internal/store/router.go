package store

import (
	"context"
	"log/slog"

	"github.com/roach88/statetree/internal/ir"
)

// Typed is implemented by payloads that carry their own type, for
// object-style calls: Commit(ctx, "", payload).
type Typed interface {
	Type() string
}

func unifyObjectStyle(typ string, payload any) (string, any) {
	if typ == "" {
		if t, ok := payload.(Typed); ok {
			return t.Type(), payload
		}
	}
	return typ, payload
}

// Mutation describes one committed mutation to subscribers.
type Mutation struct {
	Type      string
	Payload   any
	Seq       int64
	FlowToken string
}

// Record converts the mutation into its journal form.
func (m Mutation) Record() ir.MutationRecord {
	payload := ir.PayloadValue(m.Payload)
	id, err := ir.MutationID(m.FlowToken, m.Type, payload, m.Seq)
	if err != nil {
		id = ""
	}
	return ir.MutationRecord{
		ID:        id,
		Seq:       m.Seq,
		FlowToken: m.FlowToken,
		Type:      m.Type,
		Payload:   payload,
	}
}

type committingKey struct{}

func (s *Store) inCommit(ctx context.Context) bool {
	owner, _ := ctx.Value(committingKey{}).(*Store)
	return owner == s
}

// Commit runs every mutation handler registered for typ in registration
// order, then notifies subscribers. An unknown type is reported and
// ignored; Commit never fails.
//
// When typ is "" and payload implements Typed, the type is taken from the
// payload.
//
// A panic in a mutation handler propagates to the caller after the
// committing window is closed.
func (s *Store) Commit(ctx context.Context, typ string, payload any, opts ...CallOption) {
	typ, payload = unifyObjectStyle(typ, payload)

	handlers := s.lookupMutation(typ)
	if len(handlers) == 0 {
		s.report(&Error{Code: CodeUnknownMutation, Message: "unknown mutation type", Type: typ})
		return
	}

	nested := s.inCommit(ctx)
	ctx, flow := s.ensureFlow(ctx)
	m := Mutation{Type: typ, Payload: payload, FlowToken: flow}

	s.applyMutation(ctx, nested, &m, handlers)
	s.notifySubscribers(m)

	if !nested {
		s.runDeferredSync()
		s.eng.Flush()
	}
}

func (s *Store) applyMutation(ctx context.Context, nested bool, m *Mutation, handlers []mutationEntry) {
	if !nested {
		s.lockCommit()
		defer s.unlockCommit()
	}
	m.Seq = s.clock.Next()

	s.logger.Debug("commit", "type", m.Type, "seq", m.Seq, "flow_token", m.FlowToken, "handlers", len(handlers))

	cctx := context.WithValue(ctx, committingKey{}, s)
	s.withCommit(func() {
		for _, h := range handlers {
			h(cctx, m.Payload)
		}
	})
}

// Dispatch runs every action handler registered for typ and returns a
// Future for the result. Before subscribers run first. With several
// handlers the future resolves once all complete, fails with the first
// error, and otherwise carries the first handler's value. After (or Error)
// subscribers run before the future resolves.
//
// An unknown type is reported and returns an already failed Future.
// Handlers are never cancelled: they receive ctx without its cancellation.
func (s *Store) Dispatch(ctx context.Context, typ string, payload any, opts ...CallOption) *Future {
	typ, payload = unifyObjectStyle(typ, payload)

	handlers := s.lookupAction(typ)
	if len(handlers) == 0 {
		err := &Error{Code: CodeUnknownAction, Message: "unknown action type", Type: typ}
		s.report(err)
		return resolvedFuture(nil, err)
	}

	ctx, flow := s.ensureFlow(ctx)
	ev := ActionEvent{Type: typ, Payload: payload, FlowToken: flow, Seq: s.clock.Next()}
	s.logger.Debug("dispatch", "type", typ, "seq", ev.Seq, "flow_token", flow, "handlers", len(handlers))

	s.runBeforeSubscribers(ev)

	fut := newFuture()
	hctx := context.WithoutCancel(ctx)
	go func() {
		res, err := runActionHandlers(hctx, handlers, payload)
		if err != nil {
			s.logger.Debug("action failed", "type", typ, "flow_token", flow, "error", err)
			s.runErrorSubscribers(ev, err)
		} else {
			s.runAfterSubscribers(ev)
		}
		fut.resolve(res, err)
	}()
	return fut
}

// lockCommit takes the top-level commit lock. Sync watcher callbacks that
// fire while it is held are queued and run by runDeferredSync once released.
func (s *Store) lockCommit() {
	s.commitMu.Lock()
	s.commitHeld.Store(true)
}

func (s *Store) unlockCommit() {
	s.commitHeld.Store(false)
	s.commitMu.Unlock()
}

// runActionHandlers calls the handlers one after another in registration
// order. Every handler runs; the first error fails the aggregate, which
// otherwise resolves to the first handler's value.
func runActionHandlers(ctx context.Context, handlers []actionEntry, payload any) (any, error) {
	var (
		first    any
		firstErr error
	)
	for i, h := range handlers {
		v, err := h(ctx, payload)
		if err != nil && firstErr == nil {
			firstErr = err
		}
		if i == 0 {
			first = v
		}
	}
	if firstErr != nil {
		return nil, firstErr
	}
	return first, nil
}

func (s *Store) logSubscriberPanic(kind string, ev ActionEvent, r any) {
	s.logger.Error("action subscriber failed",
		slog.String("phase", kind),
		slog.String("type", ev.Type),
		slog.String("flow_token", ev.FlowToken),
		slog.Any("panic", r))
}
