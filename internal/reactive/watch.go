package reactive

import (
	"reflect"
	"sync"

	"github.com/roach88/statetree/internal/ir"
)

// WatchOptions configures Watch.
type WatchOptions struct {
	// Deep compares values by canonical snapshot hash, so writes anywhere
	// below a watched node count as a change.
	Deep bool

	// Sync re-evaluates the watcher on the writer's goroutine immediately
	// after each write instead of on Flush.
	Sync bool

	// Immediate invokes the callback once at registration with a nil old
	// value.
	Immediate bool
}

type watcher struct {
	eng  *Engine
	id   uint64
	expr func() any
	cb   func(newV, oldV any)
	opts WatchOptions

	mu     sync.Mutex
	active bool
	last   any
	digest string
}

// Watch observes expr and calls cb whenever its value changes. The
// returned function stops the watcher; calling it twice is harmless.
func (e *Engine) Watch(expr func() any, cb func(newV, oldV any), opts WatchOptions) func() {
	w := &watcher{eng: e, expr: expr, cb: cb, opts: opts, active: true}
	w.last = expr()
	w.digest = w.fingerprint(w.last)

	e.mu.Lock()
	e.nextID++
	w.id = e.nextID
	e.watchers[w.id] = w
	e.order = append(e.order, w.id)
	e.mu.Unlock()

	if opts.Immediate {
		cb(w.last, nil)
	}

	return func() {
		w.mu.Lock()
		w.active = false
		w.mu.Unlock()
		e.removeWatcher(w.id)
	}
}

func (e *Engine) removeWatcher(id uint64) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if _, ok := e.watchers[id]; !ok {
		return
	}
	delete(e.watchers, id)
	delete(e.dirty, id)
	for i, other := range e.order {
		if other == id {
			e.order = append(e.order[:i:i], e.order[i+1:]...)
			break
		}
	}
}

// run re-evaluates the expression and fires the callback on change. The
// callback runs without the watcher lock so it may write again; a panic in
// it propagates to the writer.
func (w *watcher) run() {
	w.mu.Lock()
	if !w.active {
		w.mu.Unlock()
		return
	}
	next := w.expr()
	digest := w.fingerprint(next)
	if !w.differs(next, digest) {
		w.mu.Unlock()
		return
	}
	old := w.last
	w.last = next
	w.digest = digest
	w.mu.Unlock()

	w.cb(next, old)
}

func (w *watcher) differs(next any, digest string) bool {
	if w.opts.Deep {
		return digest != w.digest
	}
	if obj, ok := next.(*Object); ok {
		prev, _ := w.last.(*Object)
		return obj != prev
	}
	return !reflect.DeepEqual(next, w.last)
}

// fingerprint is only computed for deep watchers.
func (w *watcher) fingerprint(v any) string {
	if !w.opts.Deep {
		return ""
	}
	var val ir.IRValue
	switch x := v.(type) {
	case *Object:
		val = x.Snapshot()
	default:
		converted, err := ir.FromGo(v)
		if err != nil {
			return ""
		}
		val = converted
	}
	h, err := ir.ValueHash(val)
	if err != nil {
		return ""
	}
	return h
}
