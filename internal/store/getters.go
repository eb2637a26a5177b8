package store

import (
	"slices"

	"github.com/roach88/statetree/internal/reactive"
)

// Getters is a read-only view of getter values.
type Getters interface {
	// Get returns the value of the getter and whether it exists.
	Get(name string) (any, bool)

	// Keys returns the getter names in sorted order.
	Keys() []string
}

// GetInt reads an integer getter. It returns 0 when the getter is missing
// or yields a non-integer.
func GetInt(g Getters, name string) int64 {
	v, _ := g.Get(name)
	switch n := v.(type) {
	case int64:
		return n
	case int:
		return int64(n)
	}
	return 0
}

// getterView publishes one memoized computed per registered getter.
type getterView struct {
	computeds map[string]*reactive.Computed
	keys      []string
}

func newGetterView(eng *reactive.Engine, getters map[string]wrappedGetter) *getterView {
	v := &getterView{computeds: make(map[string]*reactive.Computed, len(getters))}
	for name, fn := range getters {
		v.computeds[name] = eng.Computed(fn)
		v.keys = append(v.keys, name)
	}
	slices.Sort(v.keys)
	return v
}

func (v *getterView) Get(name string) (any, bool) {
	c, ok := v.computeds[name]
	if !ok {
		return nil, false
	}
	return c.Get(), true
}

func (v *getterView) Keys() []string {
	return slices.Clone(v.keys)
}

func (v *getterView) destroy() {
	for _, c := range v.computeds {
		c.Destroy()
	}
}

// resetGetters publishes a fresh getter view for the current registry and
// re-arms strict mode. The previous view is destroyed on the next tick, so
// there is never a moment without valid getters.
func (s *Store) resetGetters(hot bool) {
	s.regMu.Lock()
	old := s.getters
	view := newGetterView(s.eng, s.reg.getters)
	s.getters = view
	unwatch := s.unwatchStrict
	s.unwatchStrict = nil
	s.regMu.Unlock()

	if unwatch != nil {
		unwatch()
	}
	if s.strict {
		s.enableStrictMode()
	}

	if old != nil {
		s.logger.Debug("getters rebuilt", "hot", hot, "count", len(view.keys))
		s.eng.NextTick(old.destroy)
	}
}
