package reactive

import (
	"errors"
	"sync"
	"sync/atomic"

	"github.com/roach88/statetree/internal/ir"
)

// ErrAlreadyBound is returned when an engine is bound to a second owner.
var ErrAlreadyBound = errors.New("reactive: engine already bound to a store")

// Engine owns the global write version, the watcher set and the tick queue.
//
// Thread-safety: all methods are safe for concurrent use. Watcher callbacks
// run outside engine locks and may write through the engine again.
type Engine struct {
	version atomic.Int64

	mu       sync.Mutex
	owner    any
	nextID   uint64
	watchers map[uint64]*watcher
	order    []uint64 // watcher ids in registration order
	dirty    map[uint64]struct{}
	ticks    []func()

	flushing atomic.Bool
}

// New creates an unbound engine.
func New() *Engine {
	return &Engine{
		watchers: make(map[uint64]*watcher),
		dirty:    make(map[uint64]struct{}),
	}
}

// Bind attaches the engine to owner. An engine accepts exactly one owner
// for its lifetime; any second call fails with ErrAlreadyBound.
func (e *Engine) Bind(owner any) error {
	if owner == nil {
		return errors.New("reactive: cannot bind to nil owner")
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.owner != nil {
		return ErrAlreadyBound
	}
	e.owner = owner
	return nil
}

// Owner returns the bound owner, or nil.
func (e *Engine) Owner() any {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.owner
}

// Version returns the current write version. It increases on every write
// and on Trigger.
func (e *Engine) Version() int64 {
	return e.version.Load()
}

// Wrap deep-converts obj into observed nodes owned by this engine.
// The input is cloned; later changes to obj are not observed.
func (e *Engine) Wrap(obj ir.IRObject) *Object {
	o := newObject(e)
	for k, v := range obj {
		o.fields[k] = e.wrapValue(v)
	}
	return o
}

func (e *Engine) wrapValue(v ir.IRValue) any {
	switch val := v.(type) {
	case ir.IRObject:
		return e.Wrap(val)
	case nil:
		return ir.IRNull{}
	default:
		return ir.CloneValue(val)
	}
}

// Set adds or replaces key on obj and notifies watchers.
func (e *Engine) Set(obj *Object, key string, value any) {
	obj.Set(key, value)
}

// Delete removes key from obj and notifies watchers. Deleting an absent
// key does nothing.
func (e *Engine) Delete(obj *Object, key string) {
	obj.Delete(key)
}

// Trigger signals an out-of-band change, such as a root replacement, that
// did not pass through Object writes.
func (e *Engine) Trigger() {
	e.changed()
}

// NextTick queues fn to run on the next Flush, after pending watchers.
func (e *Engine) NextTick(fn func()) {
	e.mu.Lock()
	e.ticks = append(e.ticks, fn)
	e.mu.Unlock()
}

// Flush runs queued watchers and ticks until none remain. A Flush started
// while another is in progress returns immediately; the running Flush picks
// up the new work.
func (e *Engine) Flush() {
	if !e.flushing.CompareAndSwap(false, true) {
		return
	}
	defer e.flushing.Store(false)

	for {
		e.mu.Lock()
		var pending []*watcher
		for _, id := range e.order {
			if _, ok := e.dirty[id]; ok {
				pending = append(pending, e.watchers[id])
			}
		}
		clear(e.dirty)
		ticks := e.ticks
		e.ticks = nil
		e.mu.Unlock()

		if len(pending) == 0 && len(ticks) == 0 {
			return
		}
		for _, w := range pending {
			w.run()
		}
		for _, fn := range ticks {
			fn()
		}
	}
}

// changed bumps the version, evaluates sync watchers on the calling
// goroutine and marks the rest dirty.
func (e *Engine) changed() {
	e.version.Add(1)

	e.mu.Lock()
	var syncs []*watcher
	for _, id := range e.order {
		w := e.watchers[id]
		if w.opts.Sync {
			syncs = append(syncs, w)
			continue
		}
		e.dirty[id] = struct{}{}
	}
	e.mu.Unlock()

	for _, w := range syncs {
		w.run()
	}
}
