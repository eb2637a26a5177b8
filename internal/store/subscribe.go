package store

import (
	"slices"

	"github.com/roach88/statetree/internal/reactive"
)

// ActionEvent describes one dispatch to action subscribers.
type ActionEvent struct {
	Type      string
	Payload   any
	Seq       int64
	FlowToken string
}

// ActionSubscriber observes dispatches. Any hook may be nil. Panics in a
// hook are recovered and logged; they never reach the dispatch result.
type ActionSubscriber struct {
	Before func(ev ActionEvent, state *reactive.Object)
	After  func(ev ActionEvent, state *reactive.Object)
	Error  func(ev ActionEvent, state *reactive.Object, err error)
}

type mutationSub struct {
	fn func(Mutation, *reactive.Object)
}

type actionSub struct {
	sub ActionSubscriber
}

// Subscribe registers fn to run after every commit with the mutation and
// the state after it. The returned function unsubscribes; calling it more
// than once is harmless.
func (s *Store) Subscribe(fn func(m Mutation, state *reactive.Object)) func() {
	entry := &mutationSub{fn: fn}
	s.subMu.Lock()
	s.subscribers = append(s.subscribers, entry)
	s.subMu.Unlock()

	return func() {
		s.subMu.Lock()
		defer s.subMu.Unlock()
		s.subscribers = slices.DeleteFunc(s.subscribers, func(e *mutationSub) bool { return e == entry })
	}
}

// SubscribeAction registers action hooks. The returned function
// unsubscribes.
func (s *Store) SubscribeAction(sub ActionSubscriber) func() {
	entry := &actionSub{sub: sub}
	s.subMu.Lock()
	s.actionSubscribers = append(s.actionSubscribers, entry)
	s.subMu.Unlock()

	return func() {
		s.subMu.Lock()
		defer s.subMu.Unlock()
		s.actionSubscribers = slices.DeleteFunc(s.actionSubscribers, func(e *actionSub) bool { return e == entry })
	}
}

// Watch calls cb when getter's value changes. Non-sync watchers fire when
// the engine flushes, which happens after every top-level commit. Sync
// watchers triggered inside a commit run once the commit has released its
// lock, so cb may commit.
func (s *Store) Watch(getter func(state *reactive.Object, getters Getters) any, cb func(newV, oldV any), opts reactive.WatchOptions) func() {
	if opts.Sync {
		inner := cb
		cb = func(newV, oldV any) {
			if s.commitHeld.Load() {
				s.deferSync(func() { inner(newV, oldV) })
				return
			}
			inner(newV, oldV)
		}
	}
	return s.eng.Watch(func() any {
		return getter(s.State(), s.Getters())
	}, cb, opts)
}

func (s *Store) deferSync(fn func()) {
	s.syncMu.Lock()
	s.deferredSync = append(s.deferredSync, fn)
	s.syncMu.Unlock()
}

// runDeferredSync runs sync watcher callbacks queued during a commit,
// including any queued by the commits they issue.
func (s *Store) runDeferredSync() {
	for {
		s.syncMu.Lock()
		queued := s.deferredSync
		s.deferredSync = nil
		s.syncMu.Unlock()
		if len(queued) == 0 {
			return
		}
		for _, fn := range queued {
			fn()
		}
	}
}

func (s *Store) notifySubscribers(m Mutation) {
	s.subMu.Lock()
	subs := slices.Clone(s.subscribers)
	s.subMu.Unlock()

	state := s.State()
	for _, sub := range subs {
		sub.fn(m, state)
	}
}

func (s *Store) actionSubs() []*actionSub {
	s.subMu.Lock()
	defer s.subMu.Unlock()
	return slices.Clone(s.actionSubscribers)
}

func (s *Store) runBeforeSubscribers(ev ActionEvent) {
	state := s.State()
	for _, e := range s.actionSubs() {
		if e.sub.Before != nil {
			s.safeSubscriber("before", ev, func() { e.sub.Before(ev, state) })
		}
	}
}

func (s *Store) runAfterSubscribers(ev ActionEvent) {
	state := s.State()
	for _, e := range s.actionSubs() {
		if e.sub.After != nil {
			s.safeSubscriber("after", ev, func() { e.sub.After(ev, state) })
		}
	}
}

func (s *Store) runErrorSubscribers(ev ActionEvent, err error) {
	state := s.State()
	for _, e := range s.actionSubs() {
		if e.sub.Error != nil {
			s.safeSubscriber("error", ev, func() { e.sub.Error(ev, state, err) })
		}
	}
}

func (s *Store) safeSubscriber(phase string, ev ActionEvent, fn func()) {
	defer func() {
		if r := recover(); r != nil {
			s.logSubscriberPanic(phase, ev, r)
		}
	}()
	fn()
}
