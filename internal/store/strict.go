package store

import "github.com/roach88/statetree/internal/reactive"

// enableStrictMode attaches one deep, sync watcher over the root state.
// Any change seen while no commit window is open is a violation. Callers
// hold no store locks.
func (s *Store) enableStrictMode() {
	unwatch := s.eng.Watch(func() any {
		return s.State()
	}, func(_, _ any) {
		if s.committing.Load() {
			return
		}
		s.strictViolation()
	}, reactive.WatchOptions{Deep: true, Sync: true})

	s.regMu.Lock()
	s.unwatchStrict = unwatch
	s.regMu.Unlock()
}

func (s *Store) strictViolation() {
	if s.production {
		return
	}
	panic(&Error{
		Code:    CodeStrictViolation,
		Message: "do not mutate store state outside mutation handlers",
	})
}
