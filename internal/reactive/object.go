package reactive

import (
	"fmt"
	"sync"

	"github.com/roach88/statetree/internal/ir"
)

// Object is an observed state node. Field values are either nested
// *Object nodes or IR leaf values (strings, ints, bools, null, arrays).
type Object struct {
	eng *Engine

	mu     sync.RWMutex
	fields map[string]any
}

func newObject(e *Engine) *Object {
	return &Object{eng: e, fields: make(map[string]any)}
}

// Engine returns the engine that observes this node.
func (o *Object) Engine() *Engine {
	return o.eng
}

// Get returns the raw field: a *Object, an ir.IRValue, or nil when absent.
func (o *Object) Get(key string) any {
	o.mu.RLock()
	defer o.mu.RUnlock()
	return o.fields[key]
}

// Has reports whether key is present.
func (o *Object) Has(key string) bool {
	o.mu.RLock()
	defer o.mu.RUnlock()
	_, ok := o.fields[key]
	return ok
}

// Object returns the nested node at key, or nil.
func (o *Object) Object(key string) *Object {
	child, _ := o.Get(key).(*Object)
	return child
}

// Int returns the integer at key, or 0.
func (o *Object) Int(key string) int64 {
	n, _ := o.Get(key).(ir.IRInt)
	return int64(n)
}

// String returns the string at key, or "".
func (o *Object) String(key string) string {
	s, _ := o.Get(key).(ir.IRString)
	return string(s)
}

// Bool returns the boolean at key, or false.
func (o *Object) Bool(key string) bool {
	b, _ := o.Get(key).(ir.IRBool)
	return bool(b)
}

// Array returns a copy of the array at key, or nil.
func (o *Object) Array(key string) ir.IRArray {
	arr, _ := o.Get(key).(ir.IRArray)
	if arr == nil {
		return nil
	}
	return ir.CloneValue(arr).(ir.IRArray)
}

// Value returns key as a detached IR value. Nested nodes are snapshotted.
func (o *Object) Value(key string) (ir.IRValue, bool) {
	v := o.Get(key)
	switch val := v.(type) {
	case nil:
		return nil, false
	case *Object:
		return val.Snapshot(), true
	case ir.IRValue:
		return ir.CloneValue(val), true
	default:
		return nil, false
	}
}

// Keys returns the field names in canonical order.
func (o *Object) Keys() []string {
	o.mu.RLock()
	shape := make(ir.IRObject, len(o.fields))
	for k := range o.fields {
		shape[k] = ir.IRNull{}
	}
	o.mu.RUnlock()
	return shape.SortedKeys()
}

// Len returns the number of fields.
func (o *Object) Len() int {
	o.mu.RLock()
	defer o.mu.RUnlock()
	return len(o.fields)
}

// Walk follows path through nested nodes. It returns nil if any segment is
// missing or is not an object. An empty path returns o.
func (o *Object) Walk(path []string) *Object {
	cur := o
	for _, key := range path {
		if cur == nil {
			return nil
		}
		cur = cur.Object(key)
	}
	return cur
}

// Set writes key and notifies the engine. Accepted values are *Object
// nodes of the same engine, IR values and the Go literals ir.FromGo
// accepts; IR objects and maps become nested nodes.
//
// Set panics on values that have no IR form (floats, structs). This is a
// programming error in a mutation handler, not a runtime condition.
func (o *Object) Set(key string, value any) {
	stored, err := o.convert(value)
	if err != nil {
		panic(fmt.Sprintf("reactive: set %q: %v", key, err))
	}

	o.mu.Lock()
	o.fields[key] = stored
	o.mu.Unlock()

	o.eng.changed()
}

// SetInt is shorthand for Set(key, ir.IRInt(n)).
func (o *Object) SetInt(key string, n int64) {
	o.Set(key, ir.IRInt(n))
}

// Append appends value to the array at key, creating the array if absent.
func (o *Object) Append(key string, value any) {
	if child, ok := value.(*Object); ok {
		value = child.Snapshot()
	}
	elem, err := ir.FromGo(value)
	if err != nil {
		panic(fmt.Sprintf("reactive: append %q: %v", key, err))
	}

	o.mu.Lock()
	arr, _ := o.fields[key].(ir.IRArray)
	next := make(ir.IRArray, len(arr), len(arr)+1)
	copy(next, arr)
	o.fields[key] = append(next, elem)
	o.mu.Unlock()

	o.eng.changed()
}

// Delete removes key and notifies the engine. Absent keys are ignored.
func (o *Object) Delete(key string) {
	o.mu.Lock()
	_, ok := o.fields[key]
	delete(o.fields, key)
	o.mu.Unlock()

	if ok {
		o.eng.changed()
	}
}

// Snapshot returns a detached deep copy of the node as an IR object.
func (o *Object) Snapshot() ir.IRObject {
	o.mu.RLock()
	fields := make(map[string]any, len(o.fields))
	for k, v := range o.fields {
		fields[k] = v
	}
	o.mu.RUnlock()

	out := make(ir.IRObject, len(fields))
	for k, v := range fields {
		switch val := v.(type) {
		case *Object:
			out[k] = val.Snapshot()
		case ir.IRValue:
			out[k] = ir.CloneValue(val)
		}
	}
	return out
}

func (o *Object) convert(value any) (any, error) {
	switch val := value.(type) {
	case *Object:
		if val.eng != o.eng {
			return o.eng.Wrap(val.Snapshot()), nil
		}
		return val, nil
	case ir.IRObject:
		return o.eng.Wrap(val), nil
	}

	v, err := ir.FromGo(value)
	if err != nil {
		return nil, err
	}
	return o.eng.wrapValue(v), nil
}
